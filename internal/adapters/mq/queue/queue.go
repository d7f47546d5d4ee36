// Package queue provides the single ordered mailbox between device listeners
// and the judgment engine.
//
// Every device reader funnels its decoded events here; one consumer drains the
// channel, which is what makes engine processing order (and therefore the
// first-to-complete tie-break) well-defined.
package queue

import (
	"context"
	"sync"

	"github.com/mkanda/typerace/internal/domain/model"
	"github.com/mkanda/typerace/pkg/metrics"
)

// Default queue configuration constants.
const defaultCapacity = 4096

// Event is the payload type flowing through the queue.
type Event = model.KeyEvent

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an event to the queue.
	// Returns false if the queue is full or closed and the event was dropped.
	Enqueue(ctx context.Context, e Event) bool

	// Dequeue returns the channel events arrive on, in enqueue order.
	// The channel is closed when the queue is closed.
	Dequeue() <-chan Event

	// Len returns the current number of queued events.
	Len() int

	// Close shuts the queue down; enqueues after Close are dropped.
	Close() error
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	events chan Event

	mu     sync.RWMutex
	closed bool
}

// Option applies a configuration option to the InMemoryQueue.
type Option func(*InMemoryQueue)

// WithCapacity bounds the number of events the queue buffers.
func WithCapacity(n int) Option {
	return func(q *InMemoryQueue) {
		if n > 0 {
			q.events = make(chan Event, n)
		}
	}
}

// NewInMemoryQueue creates a queue with configuration options applied.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		events: make(chan Event, defaultCapacity),
	}
	for _, opt := range opts {
		opt(q)
	}
	metrics.UpdateQueueDepth(0)
	return q
}

// Enqueue adds an event without blocking; a full queue drops the event rather
// than stalling a device reader.
func (q *InMemoryQueue) Enqueue(ctx context.Context, e Event) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueDrop()
		return false
	}

	select {
	case q.events <- e:
		metrics.UpdateQueueDepth(len(q.events))
		return true
	case <-ctx.Done():
		metrics.RecordQueueDrop()
		return false
	default:
		metrics.RecordQueueDrop()
		return false
	}
}

// Dequeue returns the underlying channel; events arrive strictly in enqueue
// order for a single consumer.
func (q *InMemoryQueue) Dequeue() <-chan Event {
	return q.events
}

// Len returns the current number of queued events.
func (q *InMemoryQueue) Len() int {
	n := len(q.events)
	metrics.UpdateQueueDepth(n)
	return n
}

// Close shuts down the queue. Idempotent.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.events)
	q.closed = true
	return nil
}
