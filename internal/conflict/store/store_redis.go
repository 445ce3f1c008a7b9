package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"wordhub/internal/conflict/models"
	"wordhub/pkg/domain"
	"wordhub/pkg/platform/sentinel"
)

var consumeDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "wordhub_conflict_consume_duration_ms",
	Help:    "Latency of conflict token consumption in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
})

// DefaultKeyPrefix namespaces conflict keys when no prefix is configured.
const DefaultKeyPrefix = "wordhub:conflict:"

// RedisConflictStore shares pending conflicts between replicas. Expiry is
// delegated to redis key TTLs and consumption uses GETDEL.
type RedisConflictStore struct {
	client *redis.Client
	prefix string
}

// NewRedis constructs a redis-backed conflict store. An empty prefix falls
// back to DefaultKeyPrefix.
func NewRedis(client *redis.Client, prefix string) *RedisConflictStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisConflictStore{client: client, prefix: prefix}
}

func (s *RedisConflictStore) key(token domain.ConflictToken) string {
	return s.prefix + token.String()
}

func (s *RedisConflictStore) Create(ctx context.Context, c *models.PendingConflict) error {
	blob, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode conflict: %w", err)
	}
	var ttl time.Duration
	if !c.ExpiresAt.IsZero() {
		ttl = time.Until(c.ExpiresAt)
		if ttl <= 0 {
			return fmt.Errorf("conflict already expired: %w", sentinel.ErrExpired)
		}
	}
	ok, err := s.client.SetNX(ctx, s.key(c.Token), blob, ttl).Result()
	if err != nil {
		return fmt.Errorf("store conflict: %w", err)
	}
	if !ok {
		return fmt.Errorf("conflict token already issued: %w", sentinel.ErrConflict)
	}
	return nil
}

func (s *RedisConflictStore) Find(ctx context.Context, token domain.ConflictToken, now time.Time) (*models.PendingConflict, error) {
	blob, err := s.client.Get(ctx, s.key(token)).Bytes()
	return decode(blob, err, now)
}

func (s *RedisConflictStore) Consume(ctx context.Context, token domain.ConflictToken, now time.Time) (*models.PendingConflict, error) {
	start := time.Now()
	defer func() {
		consumeDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()
	blob, err := s.client.GetDel(ctx, s.key(token)).Bytes()
	return decode(blob, err, now)
}

// DeleteExpired is a no-op: redis expires keys itself.
func (s *RedisConflictStore) DeleteExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}

func decode(blob []byte, err error, now time.Time) (*models.PendingConflict, error) {
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("conflict not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load conflict: %w", err)
	}
	var c models.PendingConflict
	if err := json.Unmarshal(blob, &c); err != nil {
		return nil, fmt.Errorf("decode conflict: %w", err)
	}
	if c.IsExpired(now) {
		return nil, fmt.Errorf("conflict expired: %w", sentinel.ErrExpired)
	}
	return &c, nil
}
