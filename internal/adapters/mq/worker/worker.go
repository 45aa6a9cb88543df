// Package worker drains the notification outbox and persists the
// notifications so users can read them later.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/klupa/klupa/internal/domain/model"
	"github.com/klupa/klupa/pkg/logger"
	"github.com/klupa/klupa/pkg/metrics"
)

// Default delivery configuration constants.
const (
	defaultWorkerCount  = 4
	poolShutdownTimeout = 30 * time.Second
)

// Notification abstracts what workers read off the outbox.
type Notification = model.Notification

// Sink persists a delivered notification.
type Sink interface {
	AppendNotification(ctx context.Context, n model.Notification) (model.Notification, error)
}

// Queue defines how workers receive notifications.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Notification
}

// Worker processes notifications until stopped.
type Worker interface {
	// Run starts the delivery loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for persisting notifications.
type InMemoryWorker struct {
	queue Queue
	sink  Sink
	name  string

	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new delivery worker with configuration
// options.
func NewInMemoryWorker(queue Queue, sink Sink, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		sink:     sink,
		name:     "delivery",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("delivery"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "delivery" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the delivery loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	pending := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case n, ok := <-pending:
			if !ok {
				return
			}
			if err := w.deliver(ctx, n); err != nil {
				w.logger.Error(ctx, "notification delivery failed", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker. Safe to call more than once.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) deliver(ctx context.Context, n Notification) error {
	if _, err := w.sink.AppendNotification(ctx, n); err != nil {
		metrics.RecordNotificationError()
		metrics.RecordErrorByComponent("delivery", "store_error")
		return fmt.Errorf("store notification for %s: %w", n.UserID, err)
	}
	metrics.RecordNotificationStored()
	return nil
}

// Pool manages multiple delivery workers draining one outbox.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	sink    Sink

	logger logger.Logger
}

// NewPool creates a new delivery pool.
func NewPool(workerCount int, queue Queue, sink Sink) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		sink:    sink,
		logger:  logger.Get().Named("delivery-pool"),
	}
	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(
			queue,
			sink,
			WithName("delivery-"+strconv.Itoa(i)),
		)
	}

	metrics.UpdateWorkerCount(workerCount)

	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the outbox, lets workers drain it and waits for them
// to finish or the timeout to pass.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing outbox", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	return nil
}
