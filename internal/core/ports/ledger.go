package ports

import (
	"context"

	"github.com/99minutos/escrow-service/internal/core/domain"
)

// Ledger moves value to its final recipient. The engine calls Transfer once
// per terminal transition, after the project is already stored as resolved.
type Ledger interface {
	Transfer(ctx context.Context, to domain.Identity, amount domain.Amount) error
}
