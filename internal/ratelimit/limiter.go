// Package ratelimit throttles command issuers with an in-memory sliding
// window per actor.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wordhub/pkg/domain"
	dErrors "wordhub/pkg/domain-errors"
	"wordhub/pkg/requestcontext"
)

// Result describes the window of one actor after a check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// slidingWindow holds the accepted command times inside the window, oldest first.
type slidingWindow struct {
	timestamps []time.Time
}

func (sw *slidingWindow) cleanup(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}

// Limiter admits at most limit commands per actor in any window. It is not
// shared between processes.
type Limiter struct {
	mu      sync.Mutex
	windows map[domain.ActorID]*slidingWindow
	limit   int
	window  time.Duration
	metrics *Metrics
}

// Option configures a Limiter.
type Option func(*Limiter)

func WithMetrics(m *Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

// New creates a limiter. A non-positive limit admits everything.
func New(limit int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		windows: make(map[domain.ActorID]*slidingWindow),
		limit:   limit,
		window:  window,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check records one command by actor and reports the resulting window.
// Denied commands are not recorded.
func (l *Limiter) Check(ctx context.Context, actor domain.ActorID) Result {
	now := requestcontext.Now(ctx)
	if l.limit <= 0 || l.window <= 0 {
		return Result{Allowed: true, Limit: l.limit, ResetAt: now}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	sw := l.windows[actor]
	if sw == nil {
		sw = &slidingWindow{}
		l.windows[actor] = sw
	}
	sw.cleanup(now, l.window)

	if len(sw.timestamps) >= l.limit {
		l.metrics.IncrementRejected()
		return Result{
			Allowed: false,
			Limit:   l.limit,
			ResetAt: sw.timestamps[0].Add(l.window),
		}
	}
	sw.timestamps = append(sw.timestamps, now)
	return Result{
		Allowed:   true,
		Limit:     l.limit,
		Remaining: l.limit - len(sw.timestamps),
		ResetAt:   sw.timestamps[0].Add(l.window),
	}
}

// Allow is Check returning a CodeRateLimited error when actor is over the limit.
func (l *Limiter) Allow(ctx context.Context, actor domain.ActorID) error {
	res := l.Check(ctx, actor)
	if res.Allowed {
		return nil
	}
	wait := max(res.ResetAt.Sub(requestcontext.Now(ctx)).Round(time.Second), time.Second)
	return dErrors.New(dErrors.CodeRateLimited, fmt.Sprintf("too many commands, retry in %s", wait))
}

// Reset forgets actor's window.
func (l *Limiter) Reset(actor domain.ActorID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, actor)
}

// Prune drops windows with no command left inside them and returns how
// many were removed.
func (l *Limiter) Prune(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for actor, sw := range l.windows {
		sw.cleanup(now, l.window)
		if len(sw.timestamps) == 0 {
			delete(l.windows, actor)
			n++
		}
	}
	return n
}
