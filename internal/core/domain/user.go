package domain

import "time"

const (
	// RoleMember can fund, complete, and dispute projects it is a party to.
	RoleMember = "member"
	// RoleOperator can additionally inspect held balance and audit trails.
	RoleOperator = "operator"
)

// User models an authenticated account. Identity is what the escrow engine
// sees as the caller.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Identity     Identity  `json:"identity"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
