package service

import (
	"context"
	"sync"

	dErrors "wordhub/pkg/domain-errors"
)

// Guard serializes every registry mutation behind one process-wide lock.
// Callers pass the whole mutating step, including propagation and push
// scheduling, as fn; the lock is released on every exit path.
type Guard struct {
	mu sync.Mutex
}

// NewGuard returns an unlocked guard.
func NewGuard() *Guard {
	return &Guard{}
}

// RunInTx runs fn while holding the registry lock.
func (g *Guard) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "registry update aborted: context cancelled")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return fn(ctx)
}
