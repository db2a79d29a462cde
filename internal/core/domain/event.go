package domain

import "time"

// EventType names a domain event emitted by the escrow engine.
type EventType string

const (
	EventProjectCreated   EventType = "project_created"
	EventProjectFunded    EventType = "project_funded"
	EventProjectCompleted EventType = "project_completed"
	EventFundsReleased    EventType = "funds_released"
	EventProjectDisputed  EventType = "project_disputed"
	EventDisputeResolved  EventType = "dispute_resolved"
)

// Event records a single state change of a project, for subscribers and the
// audit trail.
type Event struct {
	ID         string    `json:"id" bson:"_id"`
	ProjectID  uint64    `json:"project_id" bson:"project_id"`
	Type       EventType `json:"type" bson:"type"`
	Actor      Identity  `json:"actor" bson:"actor"`
	Amount     Amount    `json:"amount,omitempty" bson:"amount,omitempty"`
	Winner     Identity  `json:"winner,omitempty" bson:"winner,omitempty"`
	OccurredAt time.Time `json:"occurred_at" bson:"occurred_at"`
}
