package ports

import (
	"context"
	"time"

	"github.com/99minutos/escrow-service/internal/core/domain"
)

// CreateProjectInput carries everything needed to create and fund a project.
type CreateProjectInput struct {
	Caller     domain.Identity
	Freelancer domain.Identity
	Details    string
	Deadline   time.Time
	Value      domain.Amount
	// IdempotencyKey is optional. A repeated key returns the original project.
	IdempotencyKey string
}

// CreateProjectResult is returned after creating a project.
type CreateProjectResult struct {
	Project *ProjectView
	// AlreadyExisted is true when the Idempotency-Key matched an existing project.
	AlreadyExisted bool
}

// ProjectView is the read-only representation handed to callers.
type ProjectView struct {
	ID                  uint64
	Client              domain.Identity
	Freelancer          domain.Identity
	Amount              domain.Amount
	Status              domain.ProjectStatus
	Details             string
	Deadline            time.Time
	ClientApproved      bool
	FreelancerCompleted bool
	Winner              domain.Identity
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// EscrowService defines the escrow use-case operations.
type EscrowService interface {
	CreateAndFund(ctx context.Context, input CreateProjectInput) (*CreateProjectResult, error)
	MarkComplete(ctx context.Context, id uint64, caller domain.Identity) (*ProjectView, error)
	ApproveAndRelease(ctx context.Context, id uint64, caller domain.Identity) (*ProjectView, error)
	RaiseDispute(ctx context.Context, id uint64, caller domain.Identity) (*ProjectView, error)
	ResolveDispute(ctx context.Context, id uint64, favorFreelancer bool, caller domain.Identity) (*ProjectView, error)
	GetDetails(ctx context.Context, id uint64) (*ProjectView, error)
	GetBalance(ctx context.Context) (domain.Amount, error)
	Events(ctx context.Context, id uint64) ([]domain.Event, error)
}
