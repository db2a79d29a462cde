package memory

import (
	"context"
	"sync"
)

// IdempotencyStore maps create request keys to project ids. Keys never expire.
type IdempotencyStore struct {
	mu   sync.Mutex
	keys map[string]uint64
}

func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{keys: make(map[string]uint64)}
}

func (s *IdempotencyStore) Lookup(_ context.Context, key string) (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.keys[key]
	return id, ok, nil
}

func (s *IdempotencyStore) Remember(_ context.Context, key string, id uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return false, nil
	}
	s.keys[key] = id
	return true, nil
}
