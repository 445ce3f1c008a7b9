package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wordhub/internal/conflict/models"
	"wordhub/pkg/domain"
	"wordhub/pkg/platform/sentinel"
)

func newConflict(now time.Time, ttl time.Duration) *models.PendingConflict {
	return &models.PendingConflict{
		Token:     domain.NewConflictToken(),
		Arbiter:   1,
		Requester: 2,
		Type:      "ad",
		Word:      "foo",
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func TestInMemoryConflictStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("create find consume", func(t *testing.T) {
		s := NewInMemory()
		c := newConflict(now, time.Hour)
		require.NoError(t, s.Create(ctx, c))
		assert.ErrorIs(t, s.Create(ctx, c), sentinel.ErrConflict)

		found, err := s.Find(ctx, c.Token, now)
		require.NoError(t, err)
		assert.Equal(t, c.Word, found.Word)

		consumed, err := s.Consume(ctx, c.Token, now)
		require.NoError(t, err)
		assert.Equal(t, c.Token, consumed.Token)

		_, err = s.Consume(ctx, c.Token, now)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		_, err = s.Find(ctx, c.Token, now)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("expired conflicts", func(t *testing.T) {
		s := NewInMemory()
		c := newConflict(now, time.Minute)
		require.NoError(t, s.Create(ctx, c))

		later := now.Add(2 * time.Minute)
		_, err := s.Find(ctx, c.Token, later)
		assert.ErrorIs(t, err, sentinel.ErrExpired)
		_, err = s.Consume(ctx, c.Token, later)
		assert.ErrorIs(t, err, sentinel.ErrExpired)
	})

	t.Run("delete expired", func(t *testing.T) {
		s := NewInMemory()
		require.NoError(t, s.Create(ctx, newConflict(now, time.Minute)))
		live := newConflict(now, time.Hour)
		require.NoError(t, s.Create(ctx, live))

		n, err := s.DeleteExpired(ctx, now.Add(10*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		_, err = s.Find(ctx, live.Token, now)
		assert.NoError(t, err)
	})

	t.Run("concurrent consume succeeds once", func(t *testing.T) {
		s := NewInMemory()
		c := newConflict(now, time.Hour)
		require.NoError(t, s.Create(ctx, c))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 32; i++ {
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
}
