package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/songokas/hvents/internal/logger"
	"github.com/songokas/hvents/pkg/models"
)

const defaultCapacity = 1000

// ReadyQueue is the bounded multi-producer/single-consumer channel every
// source pool feeds and the dispatcher alone drains. It holds no state
// beyond what is currently in flight: time-wheel entries, not ready-queue
// contents, are what gets restored across restarts.
type ReadyQueue struct {
	ch       chan models.Event
	capacity int
	mu       sync.Mutex
	stopped  bool
	stopChan chan struct{}
}

// New creates a ready queue with the given buffer capacity.
func New(capacity int) *ReadyQueue {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &ReadyQueue{
		ch:       make(chan models.Event, capacity),
		capacity: capacity,
		stopChan: make(chan struct{}),
	}
}

// Enqueue blocks until the event is accepted or the queue is stopped.
func (q *ReadyQueue) Enqueue(event models.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	select {
	case q.ch <- event:
		logger.L().Debug("event enqueued", "event_id", event.ID, "name", event.Name, "source_id", event.SourceID)
		return nil
	case <-q.stopChan:
		return fmt.Errorf("ready queue is stopped, cannot enqueue event %s", event.ID)
	}
}

// TryEnqueue is the non-blocking variant the MQTT source uses to implement the "drop and log queue_full" backpressure rule instead
// of stalling the source pool's read loop.
func (q *ReadyQueue) TryEnqueue(event models.Event) bool {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	select {
	case q.ch <- event:
		logger.L().Debug("event enqueued", "event_id", event.ID, "name", event.Name, "source_id", event.SourceID)
		return true
	default:
		logger.L().Warn("queue_full", "event_name", event.Name, "source_id", event.SourceID)
		return false
	}
}

// Dequeue blocks until an event is available, the context is cancelled, or
// the queue is stopped.
func (q *ReadyQueue) Dequeue(ctx context.Context) (models.Event, error) {
	select {
	case event := <-q.ch:
		return event, nil
	case <-ctx.Done():
		return models.Event{}, ctx.Err()
	case <-q.stopChan:
		select {
		case event := <-q.ch:
			return event, nil
		default:
			return models.Event{}, fmt.Errorf("ready queue stopped")
		}
	}
}

// Stop signals the queue to stop accepting new events. Events already
// buffered remain available to Dequeue until drained.
func (q *ReadyQueue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return
	}
	q.stopped = true
	close(q.stopChan)
	logger.L().Info("ready queue stopped")
}

// Len reports the number of events currently buffered, for diagnostics.
func (q *ReadyQueue) Len() int { return len(q.ch) }
