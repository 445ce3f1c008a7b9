package main

import (
	"context"
	"log/slog"
	"time"

	conflictservice "wordhub/internal/conflict/service"
	"wordhub/internal/ratelimit"
	"wordhub/internal/words/service"
)

// jobs are the registry's background chores. Each loop runs until ctx is
// cancelled; a failed round is logged and retried on the next tick.
type jobs struct {
	guard     *service.Guard
	registry  *service.Registry
	conflicts *conflictservice.Service
	limiter   *ratelimit.Limiter
	logger    *slog.Logger
}

func (j *jobs) flush(ctx context.Context) error {
	return j.guard.RunInTx(ctx, j.registry.FlushDirty)
}

func (j *jobs) flushEvery(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := j.flush(ctx); err != nil {
				j.logger.ErrorContext(ctx, "flushing hit counters failed", "error", err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// rolloverDaily closes the counting period at every local midnight.
func (j *jobs) rolloverDaily(ctx context.Context) error {
	for {
		timer := time.NewTimer(time.Until(nextMidnight(time.Now())))
		select {
		case <-timer.C:
			err := j.guard.RunInTx(ctx, j.registry.Rollover)
			if err != nil {
				j.logger.ErrorContext(ctx, "daily rollover failed", "error", err)
			} else {
				j.logger.InfoContext(ctx, "daily rollover done")
			}
		case <-ctx.Done():
			timer.Stop()
			return nil
		}
	}
}

func (j *jobs) sweepEvery(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := j.conflicts.Sweep(ctx); err != nil {
				j.logger.WarnContext(ctx, "conflict sweep failed", "error", err)
			}
			if j.limiter != nil {
				j.limiter.Prune(time.Now())
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func nextMidnight(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
}
