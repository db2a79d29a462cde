package ports

import (
	"context"

	"github.com/99minutos/escrow-service/internal/core/domain"
)

// RegisterInput carries the fields of a new account.
type RegisterInput struct {
	Email    string
	Password string
	Role     string
	Identity domain.Identity
	// ActorRole is the role of the authenticated account making the request,
	// empty for anonymous sign-ups.
	ActorRole string
}

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
}
