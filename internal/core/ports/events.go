package ports

import (
	"context"

	"github.com/99minutos/escrow-service/internal/core/domain"
)

// EventPublisher hands domain events to whatever delivers them. Publish must
// not block on slow subscribers for long.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event)
}

// EventSink receives events from the dispatcher, one project at a time in
// emission order.
type EventSink interface {
	Name() string
	Handle(ctx context.Context, event domain.Event) error
}

// EventLog is the append-only audit trail of project events.
type EventLog interface {
	Append(ctx context.Context, event domain.Event) error
	ListByProject(ctx context.Context, projectID uint64) ([]domain.Event, error)
}
