// Package queue fans project events out to the configured sinks on a fixed
// pool of sharded workers.
package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/99minutos/escrow-service/internal/core/domain"
	"github.com/99minutos/escrow-service/internal/core/ports"
)

const (
	defaultWorkers = 8
	channelBuffer  = 256
)

// Dispatcher routes project events to workers by consistent hashing on the
// project id, so every sink sees one project's events in emission order.
type Dispatcher struct {
	workers []chan domain.Event
	sinks   []ports.EventSink
	log     zerolog.Logger

	mu      sync.RWMutex
	started bool
	stopped bool
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, log zerolog.Logger, sinks ...ports.EventSink) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan domain.Event, numWorkers),
		sinks:   sinks,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.Event, channelBuffer)
	}
	return d
}

// Start launches the worker goroutines. Workers exit when ctx is cancelled
// or when Stop has drained their queue.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true

	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Publish enqueues the event on the worker that owns its project. It blocks
// only while that worker's buffer is full. Events published after Stop are
// dropped.
func (d *Dispatcher) Publish(_ context.Context, event domain.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		d.log.Warn().
			Str("event_id", event.ID).
			Uint64("project_id", event.ProjectID).
			Msg("dispatcher stopped, dropping event")
		return
	}
	d.workers[d.shardIndex(event.ProjectID)] <- event
}

// Stop closes the queues and waits for the workers to deliver what is
// already buffered.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	for _, ch := range d.workers {
		close(ch)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

// shardIndex maps a project id deterministically to a worker index.
func (d *Dispatcher) shardIndex(projectID uint64) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strconv.FormatUint(projectID, 10)))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.Event) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			d.deliver(ctx, id, event)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, workerID int, event domain.Event) {
	for _, sink := range d.sinks {
		if err := sink.Handle(ctx, event); err != nil {
			d.log.Error().Err(err).
				Str("sink", sink.Name()).
				Str("event_id", event.ID).
				Str("event_type", string(event.Type)).
				Uint64("project_id", event.ProjectID).
				Int("worker_id", workerID).
				Msg("event delivery failed")
		}
	}
}
