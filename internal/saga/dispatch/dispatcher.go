// Package dispatch serializes saga event handling per correlation id.
//
// Events that share a correlation id are handled strictly in arrival order by
// a single goroutine at a time; events for distinct ids run fully in
// parallel. This realizes the orchestrator's single-writer-per-key contract
// without any locking inside the state machine itself.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/ecomsagas/fulfillment/internal/saga"
)

// ErrClosed is returned by Submit after Close has been called.
var ErrClosed = errors.New("dispatch: dispatcher closed")

// Handler processes one saga event. saga.Orchestrator satisfies it.
type Handler interface {
	Handle(ctx context.Context, ev saga.Event) error
}

type queued struct {
	ctx context.Context
	ev  saga.Event
}

// Dispatcher routes events to per-correlation-id sequential queues. An entry
// in queues means a worker goroutine is active for that id; it drains the
// pending slice and removes the entry when empty, so idle ids cost nothing.
type Dispatcher struct {
	handler Handler
	logger  *slog.Logger

	mu     sync.Mutex
	queues map[string][]queued
	closed bool
	wg     sync.WaitGroup
}

func New(handler Handler, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		handler: handler,
		logger:  logger,
		queues:  make(map[string][]queued),
	}
}

// Submit enqueues an event for its correlation id and returns immediately.
// The event is handled on a context detached from ctx's cancellation (the
// HTTP response must not abort saga progress) while keeping its tracing
// metadata.
func (d *Dispatcher) Submit(ctx context.Context, ev saga.Event) error {
	evCtx := context.WithoutCancel(ctx)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}

	key := ev.OrderID
	if pending, active := d.queues[key]; active {
		d.queues[key] = append(pending, queued{ctx: evCtx, ev: ev})
		d.mu.Unlock()
		return nil
	}

	// No worker for this id yet: mark it active and start one.
	d.queues[key] = nil
	d.wg.Add(1)
	d.mu.Unlock()

	go d.run(key, queued{ctx: evCtx, ev: ev})
	return nil
}

// run handles first, then drains whatever accumulated for the key while it
// was busy, exiting (and unmarking the key) once the queue is empty.
func (d *Dispatcher) run(key string, first queued) {
	defer d.wg.Done()

	q := first
	for {
		if err := d.handler.Handle(q.ctx, q.ev); err != nil {
			d.logger.ErrorContext(q.ctx, "event handling failed, awaiting redelivery",
				"correlation_id", q.ev.OrderID,
				"event", string(q.ev.Type),
				"error", err,
			)
		}

		d.mu.Lock()
		pending := d.queues[key]
		if len(pending) == 0 {
			delete(d.queues, key)
			d.mu.Unlock()
			return
		}
		q, d.queues[key] = pending[0], pending[1:]
		d.mu.Unlock()
	}
}

// Close rejects further submissions and waits for in-flight events to drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}
