// Package worker delivers queued oracle events to their sinks.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/quorum/internal/domain/model"
	"github.com/okian/quorum/pkg/logger"
	"github.com/okian/quorum/pkg/metrics"
)

// ErrStopped is returned when a pool is shut down twice.
var ErrStopped = errors.New("worker pool stopped")

const poolShutdownTimeout = 30 * time.Second

// Event abstracts what workers read off the queue.
type Event = model.Event

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Worker delivers events until its queue is drained.
type Worker interface {
	// Run starts the worker loop until the queue closes or ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker without draining the queue.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker hands every event to each sink in turn. A failing sink
// is logged and counted but does not stop delivery to the others.
type InMemoryWorker struct {
	queue   Queue
	sinks   []Sink
	name    string
	timeout time.Duration

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, sinks []Sink, opts ...Option) *InMemoryWorker {
	return newWorker(queue, sinks, newSettings("worker", opts))
}

func newWorker(queue Queue, sinks []Sink, s settings) *InMemoryWorker {
	return &InMemoryWorker{
		queue:    queue,
		sinks:    sinks,
		name:     s.name,
		timeout:  s.deliveryTimeout,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   s.logger.Named(s.name),
	}
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	events := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			w.deliver(ctx, event)
		}
	}
}

// Shutdown stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) deliver(ctx context.Context, event Event) { //nolint:gocritic // hugeParam: Event is passed by value for channel semantics
	for _, sink := range w.sinks {
		if err := w.handle(ctx, sink, event); err != nil {
			metrics.RecordEventDispatched(sink.Name(), "error")
			metrics.RecordErrorByComponent("worker", sink.Name())
			w.logger.Error(ctx, "sink failed",
				logger.String("sink", sink.Name()),
				logger.String("event_id", event.ID),
				logger.String("kind", string(event.Kind)),
				logger.Error(err),
			)
			continue
		}
		metrics.RecordEventDispatched(sink.Name(), "ok")
	}
	if !event.At.IsZero() {
		metrics.RecordDispatchLatency(float64(time.Since(event.At).Milliseconds()))
	}
}

func (w *InMemoryWorker) handle(ctx context.Context, sink Sink, event Event) error { //nolint:gocritic // hugeParam
	if w.timeout <= 0 {
		return sink.Handle(ctx, event)
	}
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	return sink.Handle(ctx, event)
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	mu      sync.Mutex
	stopped bool

	logger logger.Logger
}

// NewPool creates a new worker pool. Fewer than one worker means one, which
// also keeps delivery in publish order.
func NewPool(workerCount int, queue Queue, sinks []Sink, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}

	s := newSettings("worker", opts)
	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  s.logger.Named(s.name + "-pool"),
	}
	for i := 0; i < workerCount; i++ {
		ws := s
		ws.name = s.name + "-" + strconv.Itoa(i)
		pool.workers[i] = newWorker(queue, sinks, ws)
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

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Shutdown closes the queue and waits for the workers to deliver what is
// already queued. Workers still busy when ctx expires are abandoned.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrStopped
	}
	p.stopped = true
	p.mu.Unlock()

	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			w.shutdownOnce.Do(func() { close(w.shutdown) })
		}
	}
	metrics.UpdateWorkerCount(0)
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
