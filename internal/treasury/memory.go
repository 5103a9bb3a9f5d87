package treasury

import (
	"context"
	"sync"
)

type memoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore creates an in-memory entry store useful for unit tests
// and development mode.
func NewMemoryStore() Store {
	return &memoryStore{entries: make(map[string]Entry)}
}

func (s *memoryStore) Get(_ context.Context, asset string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[asset], nil
}

func (s *memoryStore) Put(_ context.Context, asset string, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[asset] = entry
	return nil
}
