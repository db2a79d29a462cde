package memory

import (
	"context"
	"sync"

	"github.com/99minutos/escrow-service/internal/core/domain"
)

// EventLog is an append-only audit trail. It also serves as a dispatcher
// sink so the trail fills up as events are delivered.
type EventLog struct {
	mu        sync.RWMutex
	byProject map[uint64][]domain.Event
}

func NewEventLog() *EventLog {
	return &EventLog{byProject: make(map[uint64][]domain.Event)}
}

func (l *EventLog) Name() string { return "memory_event_log" }

func (l *EventLog) Handle(ctx context.Context, e domain.Event) error {
	return l.Append(ctx, e)
}

func (l *EventLog) Append(_ context.Context, e domain.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byProject[e.ProjectID] = append(l.byProject[e.ProjectID], e)
	return nil
}

func (l *EventLog) ListByProject(_ context.Context, projectID uint64) ([]domain.Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]domain.Event{}, l.byProject[projectID]...), nil
}
