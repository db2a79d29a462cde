package memory

import (
	"context"
	"strconv"
	"sync"

	"github.com/99minutos/escrow-service/internal/core/domain"
)

// AuthRepository stores accounts keyed by email. Escrow identities are
// unique too, since the identity is what the engine authorizes against.
type AuthRepository struct {
	mu         sync.RWMutex
	seq        int
	users      map[string]*domain.User
	identities map[domain.Identity]string
}

func NewAuthRepository() *AuthRepository {
	return &AuthRepository{
		users:      make(map[string]*domain.User),
		identities: make(map[domain.Identity]string),
	}
}

func (r *AuthRepository) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[user.Email]; exists {
		return nil, domain.ErrUserExists
	}
	if _, taken := r.identities[user.Identity]; taken {
		return nil, domain.ErrUserExists
	}
	r.seq++
	stored := *user
	stored.ID = "user-" + strconv.Itoa(r.seq)
	r.users[stored.Email] = &stored
	r.identities[stored.Identity] = stored.Email
	out := stored
	return &out, nil
}

func (r *AuthRepository) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	out := *u
	return &out, nil
}
