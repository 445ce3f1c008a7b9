package store

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var saveDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "wordhub_redis_table_save_duration_ms",
	Help:    "Latency of word table saves to redis in milliseconds",
	Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100},
})

// DefaultRedisKey is the hash holding one field per table.
const DefaultRedisKey = "wordhub:tables"

// RedisStore keeps every table as a field of one redis hash.
type RedisStore struct {
	client *redis.Client
	key    string
}

// RedisStoreOption configures a RedisStore instance.
type RedisStoreOption func(*RedisStore)

// WithRedisKey overrides the hash key, used to isolate tests.
func WithRedisKey(key string) RedisStoreOption {
	return func(s *RedisStore) {
		if key != "" {
			s.key = key
		}
	}
}

// NewRedis constructs a redis-backed store.
func NewRedis(client *redis.Client, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{client: client, key: DefaultRedisKey}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *RedisStore) Load(ctx context.Context, names []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(names))
	if len(names) == 0 {
		return out, nil
	}
	vals, err := s.client.HMGet(ctx, s.key, names...).Result()
	if err != nil {
		return nil, fmt.Errorf("load word tables: %w", err)
	}
	for i, v := range vals {
		if str, ok := v.(string); ok {
			out[names[i]] = []byte(str)
		}
	}
	return out, nil
}

func (s *RedisStore) Save(ctx context.Context, name string, blob []byte) error {
	start := time.Now()
	defer func() {
		saveDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()
	if err := s.client.HSet(ctx, s.key, name, blob).Err(); err != nil {
		return fmt.Errorf("save word table %s: %w", name, err)
	}
	return nil
}
