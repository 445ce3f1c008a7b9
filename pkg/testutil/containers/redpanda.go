//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcredpanda "github.com/testcontainers/testcontainers-go/modules/redpanda"
)

// RedpandaContainer is a single-node Kafka-compatible broker.
type RedpandaContainer struct {
	Container testcontainers.Container
	Broker    string
}

func NewRedpandaContainer(t *testing.T) *RedpandaContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcredpanda.Run(ctx, "docker.redpanda.com/redpandadata/redpanda:v24.2.4")
	if err != nil {
		fail(t, nil, "start redpanda container", err)
	}
	broker, err := container.KafkaSeedBroker(ctx)
	if err != nil {
		fail(t, container, "kafka seed broker", err)
	}

	terminateOnCleanup(t, container)
	return &RedpandaContainer{Container: container, Broker: broker}
}
