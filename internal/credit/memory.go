package credit

import (
	"context"
	"sync"
)

// MemoryStore keeps balances in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	balances map[string]int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{balances: make(map[string]int)}
}

func (s *MemoryStore) Get(_ context.Context, userID string) (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bal, ok := s.balances[userID]
	return bal, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, userID string, balance int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[userID] = balance
	return nil
}
