package ports

import (
	"context"

	"github.com/99minutos/escrow-service/internal/core/domain"
)

// ProjectStore owns project records and the next-id counter.
type ProjectStore interface {
	// Allocate returns a fresh id. Ids start at 0 and are never reused, even
	// when the caller never stores a project under it.
	Allocate(ctx context.Context) (uint64, error)
	// Get returns domain.ErrProjectNotFound for ids that hold no record.
	Get(ctx context.Context, id uint64) (*domain.Project, error)
	// Put overwrites the whole record stored under p.ID.
	Put(ctx context.Context, p *domain.Project) error
	// HeldBalance sums the amounts of all projects still holding funds.
	HeldBalance(ctx context.Context) (domain.Amount, error)
}
