// Package queue is the in-process notification outbox. Award and alert
// paths enqueue here without blocking; delivery workers drain it.
package queue

import (
	"context"
	"sync"

	"github.com/klupa/klupa/internal/domain/model"
	"github.com/klupa/klupa/pkg/metrics"
)

// Default outbox configuration constants.
const (
	defaultCapacity   = 10000
	defaultBufferSize = 10000
)

// Notification is the payload type flowing through the outbox.
type Notification = model.Notification

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a notification to the outbox.
	// Returns false if the outbox is full or closed.
	Enqueue(ctx context.Context, n Notification) bool

	// Dequeue returns a channel that receives notifications as they
	// become available. The channel is closed when the outbox closes.
	Dequeue(ctx context.Context) <-chan Notification

	// Len returns the current number of pending notifications.
	Len(ctx context.Context) int

	// Close stops accepting new notifications and closes the dequeue
	// channel once drained.
	Close() error

	// IsClosed reports whether the outbox has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	pending    chan Notification
	capacity   int
	bufferSize int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new outbox with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity:   defaultCapacity,
		bufferSize: defaultBufferSize,
	}
	for _, opt := range opts {
		opt(q)
	}

	q.pending = make(chan Notification, q.bufferSize)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)

	return q
}

// Enqueue adds a notification to the outbox.
func (q *InMemoryQueue) Enqueue(ctx context.Context, n Notification) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("outbox", "closed")
		return false
	}
	if len(q.pending) >= q.capacity {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("outbox", "capacity_exceeded")
		return false
	}

	select {
	case q.pending <- n:
		metrics.RecordNotificationEnqueued()
		metrics.UpdateQueueSize(len(q.pending))
		return true
	case <-ctx.Done():
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("outbox", "context_cancelled")
		return false
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("outbox", "queue_full")
		return false
	}
}

// Dequeue returns a channel that receives notifications as they become
// available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Notification {
	out := make(chan Notification)
	go func() {
		defer close(out)
		for n := range q.pending {
			select {
			case out <- n:
				metrics.UpdateQueueSize(len(q.pending))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of pending notifications.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	size := len(q.pending)
	metrics.UpdateQueueSize(size)
	return size
}

// Close stops accepting new notifications.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.pending)
	q.closed = true
	return nil
}

// IsClosed reports whether the outbox has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
