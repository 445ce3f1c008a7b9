//go:build integration

package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wordhub/pkg/platform/sentinel"
	"wordhub/pkg/testutil/containers"
)

func TestRedisConflictStoreIntegration(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))
	s := NewRedis(rc.Client, "")
	now := time.Now()

	t.Run("single use consumption", func(t *testing.T) {
		c := newConflict(now, time.Hour)
		require.NoError(t, s.Create(ctx, c))
		assert.ErrorIs(t, s.Create(ctx, c), sentinel.ErrConflict)

		found, err := s.Find(ctx, c.Token, now)
		require.NoError(t, err)
		assert.Equal(t, c.Arbiter, found.Arbiter)

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.Consume(ctx, c.Token, now); err == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})

	t.Run("ttl is applied", func(t *testing.T) {
		c := newConflict(now, time.Hour)
		require.NoError(t, s.Create(ctx, c))
		ttl, err := rc.Client.TTL(ctx, s.key(c.Token)).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, 59*time.Minute)
	})
}
