//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// RedisContainer is a throwaway redis with a connected client.
type RedisContainer struct {
	Container testcontainers.Container
	Addr      string
	Client    *redis.Client
}

// NewRedisContainer starts redis:7-alpine and pings it.
func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		fail(t, nil, "start redis container", err)
	}
	addr, err := container.ConnectionString(ctx)
	if err != nil {
		fail(t, container, "redis connection string", err)
	}
	opts, err := redis.ParseURL(addr)
	if err != nil {
		fail(t, container, "parse redis URL", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		fail(t, container, "ping redis", err, client.Close)
	}

	terminateOnCleanup(t, container, client.Close)
	return &RedisContainer{Container: container, Addr: addr, Client: client}
}

// FlushAll empties the database so tests sharing a container stay isolated.
func (r *RedisContainer) FlushAll(ctx context.Context) error {
	return r.Client.FlushAll(ctx).Err()
}
