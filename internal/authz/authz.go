// Package authz answers whether an actor may run administrative commands.
package authz

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"

	"wordhub/pkg/domain"
)

// Oracle decides admin membership.
type Oracle interface {
	IsAdmin(ctx context.Context, actor domain.ActorID) bool
}

// Static is a fixed admin set.
type Static map[domain.ActorID]struct{}

// NewStatic builds a Static oracle from a list of admins.
func NewStatic(admins ...domain.ActorID) Static {
	s := make(Static, len(admins))
	for _, a := range admins {
		s[a] = struct{}{}
	}
	return s
}

func (s Static) IsAdmin(_ context.Context, actor domain.ActorID) bool {
	_, ok := s[actor]
	return ok
}

// DefaultRedisKey is the set consulted by RedisOracle.
const DefaultRedisKey = "wordhub:admins"

// RedisOracle checks membership of a redis set shared with the rest of the
// fleet. When redis is unreachable it falls back to a static set.
type RedisOracle struct {
	client   *redis.Client
	key      string
	fallback Oracle
	logger   *slog.Logger
}

// RedisOption configures a RedisOracle.
type RedisOption func(*RedisOracle)

func WithKey(key string) RedisOption {
	return func(o *RedisOracle) {
		if key != "" {
			o.key = key
		}
	}
}

func WithLogger(logger *slog.Logger) RedisOption {
	return func(o *RedisOracle) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewRedis creates a redis-backed oracle. fallback may be nil, in which case
// lookup failures deny.
func NewRedis(client *redis.Client, fallback Oracle, opts ...RedisOption) *RedisOracle {
	if fallback == nil {
		fallback = Static{}
	}
	o := &RedisOracle{
		client:   client,
		key:      DefaultRedisKey,
		fallback: fallback,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *RedisOracle) IsAdmin(ctx context.Context, actor domain.ActorID) bool {
	ok, err := o.client.SIsMember(ctx, o.key, strconv.FormatInt(int64(actor), 10)).Result()
	if err != nil {
		o.logger.WarnContext(ctx, "admin lookup failed, using static admins",
			"actor", actor.String(),
			"error", err,
		)
		return o.fallback.IsAdmin(ctx, actor)
	}
	return ok || o.fallback.IsAdmin(ctx, actor)
}

// Grant adds actors to the shared admin set.
func (o *RedisOracle) Grant(ctx context.Context, actors ...domain.ActorID) error {
	if len(actors) == 0 {
		return nil
	}
	members := make([]any, 0, len(actors))
	for _, a := range actors {
		members = append(members, strconv.FormatInt(int64(a), 10))
	}
	return o.client.SAdd(ctx, o.key, members...).Err()
}
