package store

import (
	"context"
	"slices"
	"sync"
)

// InMemoryStore keeps blobs in memory for tests and ephemeral runs.
type InMemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewInMemory constructs an empty in-memory store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{blobs: make(map[string][]byte)}
}

func (s *InMemoryStore) Load(_ context.Context, names []string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]byte, len(names))
	for _, name := range names {
		if blob, ok := s.blobs[name]; ok {
			out[name] = slices.Clone(blob)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Save(_ context.Context, name string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[name] = slices.Clone(blob)
	return nil
}
