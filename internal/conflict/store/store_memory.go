package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wordhub/internal/conflict/models"
	"wordhub/pkg/domain"
	"wordhub/pkg/platform/sentinel"
)

// Error Contract:
// - Return ErrNotFound when the token does not exist or was consumed
// - Return ErrExpired when the token exists but outlived its TTL
// - Return wrapped errors with context for infrastructure failures

// InMemoryConflictStore keeps pending conflicts in memory.
type InMemoryConflictStore struct {
	mu        sync.Mutex
	conflicts map[domain.ConflictToken]*models.PendingConflict
}

// NewInMemory constructs an empty in-memory conflict store.
func NewInMemory() *InMemoryConflictStore {
	return &InMemoryConflictStore{
		conflicts: make(map[domain.ConflictToken]*models.PendingConflict),
	}
}

func (s *InMemoryConflictStore) Create(_ context.Context, c *models.PendingConflict) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conflicts[c.Token]; ok {
		return fmt.Errorf("conflict token already issued: %w", sentinel.ErrConflict)
	}
	cp := *c
	s.conflicts[c.Token] = &cp
	return nil
}

func (s *InMemoryConflictStore) Find(_ context.Context, token domain.ConflictToken, now time.Time) (*models.PendingConflict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conflicts[token]
	if !ok {
		return nil, fmt.Errorf("conflict not found: %w", sentinel.ErrNotFound)
	}
	if c.IsExpired(now) {
		return nil, fmt.Errorf("conflict expired: %w", sentinel.ErrExpired)
	}
	cp := *c
	return &cp, nil
}

// Consume removes and returns the conflict in one step, so a token can only
// be consumed once.
func (s *InMemoryConflictStore) Consume(_ context.Context, token domain.ConflictToken, now time.Time) (*models.PendingConflict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conflicts[token]
	if !ok {
		return nil, fmt.Errorf("conflict not found: %w", sentinel.ErrNotFound)
	}
	delete(s.conflicts, token)
	if c.IsExpired(now) {
		return nil, fmt.Errorf("conflict expired: %w", sentinel.ErrExpired)
	}
	return c, nil
}

// DeleteExpired removes all conflicts that have expired as of now.
func (s *InMemoryConflictStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for token, c := range s.conflicts {
		if c.IsExpired(now) {
			delete(s.conflicts, token)
			deleted++
		}
	}
	return deleted, nil
}
