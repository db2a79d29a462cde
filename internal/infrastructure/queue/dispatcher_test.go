package queue

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99minutos/escrow-service/internal/core/domain"
)

type recordingSink struct {
	name string
	err  error

	mu     sync.Mutex
	events []domain.Event
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Handle(_ context.Context, e domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

func (s *recordingSink) byProject() map[uint64][]domain.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uint64][]domain.EventType)
	for _, e := range s.events {
		out[e.ProjectID] = append(out[e.ProjectID], e.Type)
	}
	return out
}

var lifecycle = []domain.EventType{
	domain.EventProjectCreated,
	domain.EventProjectFunded,
	domain.EventProjectCompleted,
	domain.EventFundsReleased,
}

func TestDispatcher_PreservesPerProjectOrder(t *testing.T) {
	sink := &recordingSink{name: "rec"}
	d := NewDispatcher(4, zerolog.Nop(), sink)
	d.Start(context.Background())

	const projects = 16
	var wg sync.WaitGroup
	for p := uint64(0); p < projects; p++ {
		wg.Add(1)
		go func(p uint64) {
			defer wg.Done()
			for _, typ := range lifecycle {
				d.Publish(context.Background(), domain.Event{ProjectID: p, Type: typ})
			}
		}(p)
	}
	wg.Wait()
	d.Stop()

	got := sink.byProject()
	require.Len(t, got, projects)
	for p, types := range got {
		assert.Equal(t, lifecycle, types, "project %d", p)
	}
}

func TestDispatcher_FailingSinkDoesNotBlockOthers(t *testing.T) {
	failing := &recordingSink{name: "failing", err: errors.New("boom")}
	ok := &recordingSink{name: "ok"}
	d := NewDispatcher(1, zerolog.Nop(), failing, ok)
	d.Start(context.Background())

	d.Publish(context.Background(), domain.Event{ProjectID: 1, Type: domain.EventProjectCreated})
	d.Publish(context.Background(), domain.Event{ProjectID: 1, Type: domain.EventProjectFunded})
	d.Stop()

	assert.Len(t, failing.events, 2)
	assert.Len(t, ok.events, 2)
}

func TestDispatcher_PublishAfterStopDrops(t *testing.T) {
	sink := &recordingSink{name: "rec"}
	d := NewDispatcher(2, zerolog.Nop(), sink)
	d.Start(context.Background())
	d.Stop()
	d.Stop()

	d.Publish(context.Background(), domain.Event{ProjectID: 1, Type: domain.EventProjectCreated})
	assert.Empty(t, sink.events)
}

func TestDispatcher_ShardIndexIsStable(t *testing.T) {
	d := NewDispatcher(0, zerolog.Nop())
	assert.Len(t, d.workers, defaultWorkers)
	for id := uint64(0); id < 100; id++ {
		idx := d.shardIndex(id)
		assert.Equal(t, idx, d.shardIndex(id))
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, defaultWorkers)
	}
}
