package domain

import (
	"strings"
	"time"
)

// Identity is an opaque party identifier (account address, user id, ...).
type Identity string

// IsZero reports whether the identity is empty once surrounding whitespace is ignored.
func (i Identity) IsZero() bool {
	return strings.TrimSpace(string(i)) == ""
}

// Amount is an escrowed value in minor currency units.
type Amount int64

// ProjectStatus represents the lifecycle state of an escrow project.
type ProjectStatus string

const (
	// StatusCreated is never persisted: creation and funding happen in one step.
	StatusCreated   ProjectStatus = "created"
	StatusFunded    ProjectStatus = "funded"
	StatusCompleted ProjectStatus = "completed"
	StatusDisputed  ProjectStatus = "disputed"
	StatusResolved  ProjectStatus = "resolved"
)

// validTransitions defines the allowed state machine edges. Resolved has none.
var validTransitions = map[ProjectStatus][]ProjectStatus{
	StatusCreated:   {StatusFunded},
	StatusFunded:    {StatusCompleted, StatusDisputed},
	StatusCompleted: {StatusResolved, StatusDisputed},
	StatusDisputed:  {StatusResolved},
}

// CanTransitionTo reports whether a transition from current status to next is valid.
func (s ProjectStatus) CanTransitionTo(next ProjectStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s ProjectStatus) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

// Valid reports whether s is one of the known statuses.
func (s ProjectStatus) Valid() bool {
	switch s {
	case StatusCreated, StatusFunded, StatusCompleted, StatusDisputed, StatusResolved:
		return true
	}
	return false
}

// Project is the escrow aggregate root: one funded piece of work between a
// client and a freelancer.
type Project struct {
	ID                  uint64        `json:"id" bson:"_id"`
	Client              Identity      `json:"client" bson:"client"`
	Freelancer          Identity      `json:"freelancer" bson:"freelancer"`
	Amount              Amount        `json:"amount" bson:"amount"`
	Status              ProjectStatus `json:"status" bson:"status"`
	Details             string        `json:"details" bson:"details"`
	Deadline            time.Time     `json:"deadline" bson:"deadline"`
	ClientApproved      bool          `json:"client_approved" bson:"client_approved"`
	FreelancerCompleted bool          `json:"freelancer_completed" bson:"freelancer_completed"`
	// Winner is the payout recipient, set once the project is resolved.
	Winner         Identity  `json:"winner,omitempty" bson:"winner,omitempty"`
	IdempotencyKey string    `json:"idempotency_key,omitempty" bson:"idempotency_key,omitempty"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" bson:"updated_at"`
}

// IsParty reports whether id is the client or the freelancer of the project.
func (p *Project) IsParty(id Identity) bool {
	return id == p.Client || id == p.Freelancer
}

// Clone returns a copy safe to hand out of a store.
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
