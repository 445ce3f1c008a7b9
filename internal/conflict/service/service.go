package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"wordhub/internal/conflict/models"
	"wordhub/internal/taxonomy"
	wordmodels "wordhub/internal/words/models"
	"wordhub/pkg/domain"
	dErrors "wordhub/pkg/domain-errors"
	"wordhub/pkg/platform/sentinel"
	"wordhub/pkg/requestcontext"
)

// DefaultTTL bounds how long a conflict waits for its arbiter.
const DefaultTTL = 24 * time.Hour

// Store persists pending conflicts. Consume must be atomic.
type Store interface {
	Create(ctx context.Context, c *models.PendingConflict) error
	Find(ctx context.Context, token domain.ConflictToken, now time.Time) (*models.PendingConflict, error)
	Consume(ctx context.Context, token domain.ConflictToken, now time.Time) (*models.PendingConflict, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// Replacer applies a replace decision to the registry.
type Replacer interface {
	Replace(ctx context.Context, t taxonomy.WordType, word string, owner domain.ActorID) (wordmodels.WordStatus, error)
}

// Metrics counts the workflow's transitions. A nil *Metrics records nothing.
type Metrics struct {
	Opened  prometheus.Counter
	Decided *prometheus.CounterVec
	Swept   prometheus.Counter
}

// NewMetrics registers the conflict workflow metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		Opened: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wordhub_conflicts_opened_total",
			Help: "Duplicate adds that entered arbitration",
		}),
		Decided: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wordhub_conflicts_decided_total",
			Help: "Accepted arbitration decisions by decision",
		}, []string{"decision"}),
		Swept: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wordhub_conflicts_expired_total",
			Help: "Pending conflicts removed after their TTL",
		}),
	}
}

// Service runs the duplicate-resolution workflow. Decide mutates the registry
// and must run inside the registry guard.
type Service struct {
	store    Store
	replacer Replacer
	ttl      time.Duration
	logger   *slog.Logger
	metrics  *Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTTL sets the conflict expiry. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl >= 0 {
			s.ttl = ttl
		}
	}
}

// WithMetrics attaches workflow metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs the workflow service.
func New(store Store, replacer Replacer, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("conflict store is required")
	}
	if replacer == nil {
		return nil, errors.New("replacer is required")
	}
	s := &Service{
		store:    store,
		replacer: replacer,
		ttl:      DefaultTTL,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Open records a duplicate add by requester and returns the pending conflict
// whose token the prompt embeds. The existing owner becomes the arbiter.
func (s *Service) Open(ctx context.Context, t taxonomy.WordType, word string, requester domain.ActorID, chat domain.ChatID, existing wordmodels.WordStatus) (*models.PendingConflict, error) {
	if existing.Owner == 0 {
		return nil, dErrors.New(dErrors.CodeConflict, "word already exists and has no owner to arbitrate")
	}
	if existing.Owner == requester {
		return nil, dErrors.New(dErrors.CodeConflict, "word already exists")
	}

	now := requestcontext.Now(ctx)
	c := &models.PendingConflict{
		Token:     domain.NewConflictToken(),
		Arbiter:   existing.Owner,
		Requester: requester,
		Type:      t,
		Word:      word,
		Chat:      chat,
		CreatedAt: now,
	}
	if s.ttl > 0 {
		c.ExpiresAt = now.Add(s.ttl)
	}
	if err := s.store.Create(ctx, c); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record conflict")
	}
	if s.metrics != nil {
		s.metrics.Opened.Inc()
	}
	s.logger.InfoContext(ctx, "conflict opened",
		"token", c.Token.String(),
		"type", string(t),
		"word", word,
		"arbiter", c.Arbiter.String(),
		"requester", requester.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return c, nil
}

// Decide applies the arbiter's decision.
//
// Unknown, consumed or expired tokens fail with CodeInvalidRequest. A reply
// from anyone but the arbiter fails with CodeForbidden and leaves the token
// usable. Accepted decisions consume the token exactly once.
func (s *Service) Decide(ctx context.Context, token domain.ConflictToken, actor domain.ActorID, decision models.Decision) (*models.Outcome, error) {
	now := requestcontext.Now(ctx)
	pending, err := s.store.Find(ctx, token, now)
	if err != nil {
		return nil, translate(err)
	}
	if pending.Arbiter != actor {
		return nil, dErrors.New(dErrors.CodeForbidden, "only the current owner may decide")
	}

	consumed, err := s.store.Consume(ctx, token, now)
	if err != nil {
		return nil, translate(err)
	}

	outcome := &models.Outcome{Conflict: *consumed, Decision: decision}
	if decision == models.DecisionReplace {
		if _, err := s.replacer.Replace(ctx, consumed.Type, consumed.Word, consumed.Requester); err != nil {
			return nil, err
		}
		outcome.Replaced = true
	}
	if s.metrics != nil {
		s.metrics.Decided.WithLabelValues(string(decision)).Inc()
	}
	s.logger.InfoContext(ctx, "conflict decided",
		"token", token.String(),
		"decision", string(decision),
		"type", string(consumed.Type),
		"word", consumed.Word,
		"request_id", requestcontext.RequestID(ctx),
	)
	return outcome, nil
}

// Sweep drops expired conflicts.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	n, err := s.store.DeleteExpired(ctx, time.Now())
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sweep conflicts")
	}
	if n > 0 {
		if s.metrics != nil {
			s.metrics.Swept.Add(float64(n))
		}
		s.logger.InfoContext(ctx, "expired conflicts swept", "count", n)
	}
	return n, nil
}

func translate(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeInvalidRequest, "unknown or already used token")
	case errors.Is(err, sentinel.ErrExpired):
		return dErrors.New(dErrors.CodeInvalidRequest, "token expired")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load conflict")
	}
}
