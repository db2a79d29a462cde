package handler

import "time"

// createProjectRequest is the body of POST /v1/projects.
type createProjectRequest struct {
	Freelancer string    `json:"freelancer" validate:"required,identity"`
	Details    string    `json:"details" validate:"max=4096"`
	Deadline   time.Time `json:"deadline" validate:"required"`
	Value      int64     `json:"value" validate:"gt=0"`
}

// resolveDisputeRequest is the body of POST /v1/projects/:id/resolve.
// FavorFreelancer is a pointer so an omitted field fails validation instead
// of defaulting to the client.
type resolveDisputeRequest struct {
	FavorFreelancer *bool `json:"favor_freelancer" validate:"required"`
}

type projectResponse struct {
	ID                  uint64    `json:"id"`
	Client              string    `json:"client"`
	Freelancer          string    `json:"freelancer"`
	Amount              int64     `json:"amount"`
	Status              string    `json:"status"`
	Details             string    `json:"details"`
	Deadline            time.Time `json:"deadline"`
	ClientApproved      bool      `json:"client_approved"`
	FreelancerCompleted bool      `json:"freelancer_completed"`
	Winner              string    `json:"winner,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

type eventResponse struct {
	ID         string    `json:"id"`
	ProjectID  uint64    `json:"project_id"`
	Type       string    `json:"type"`
	Actor      string    `json:"actor"`
	Amount     int64     `json:"amount,omitempty"`
	Winner     string    `json:"winner,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type eventListResponse struct {
	ProjectID uint64          `json:"project_id"`
	Events    []eventResponse `json:"events"`
}

type balanceResponse struct {
	Held int64 `json:"held"`
}

// errorBody documents the envelope rendered by the API error handler.
type errorBody struct {
	Error string `json:"error"`
}
