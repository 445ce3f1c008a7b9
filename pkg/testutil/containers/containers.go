//go:build integration

// Package containers starts the backing services used by integration tests.
// Every container is terminated through t.Cleanup.
package containers

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
)

// fail terminates c and any already-opened closers before failing t.
func fail(t *testing.T, c testcontainers.Container, msg string, err error, closers ...func() error) {
	t.Helper()
	for _, closeFn := range closers {
		_ = closeFn()
	}
	if c != nil {
		_ = c.Terminate(context.Background())
	}
	t.Fatalf("%s: %v", msg, err)
}

func terminateOnCleanup(t *testing.T, c testcontainers.Container, closers ...func() error) {
	t.Cleanup(func() {
		for _, closeFn := range closers {
			_ = closeFn()
		}
		_ = c.Terminate(context.Background())
	})
}
