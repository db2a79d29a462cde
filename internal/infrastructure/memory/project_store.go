// Package memory holds process-local adapters. They back the default
// development setup and double as test fixtures for the HTTP layer.
package memory

import (
	"context"
	"sync"

	"github.com/99minutos/escrow-service/internal/core/domain"
)

// ProjectStore keeps projects in a map guarded by a mutex.
type ProjectStore struct {
	mu       sync.RWMutex
	next     uint64
	projects map[uint64]*domain.Project
}

func NewProjectStore() *ProjectStore {
	return &ProjectStore{projects: make(map[uint64]*domain.Project)}
}

func (s *ProjectStore) Allocate(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	return id, nil
}

func (s *ProjectStore) Get(_ context.Context, id uint64) (*domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, domain.ErrProjectNotFound
	}
	return p.Clone(), nil
}

func (s *ProjectStore) Put(_ context.Context, p *domain.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = p.Clone()
	return nil
}

func (s *ProjectStore) HeldBalance(_ context.Context) (domain.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total domain.Amount
	for _, p := range s.projects {
		total += p.Amount
	}
	return total, nil
}
