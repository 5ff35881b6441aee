package saga

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Store.Get when no instance exists for the
// requested correlation id.
var ErrNotFound = errors.New("saga: instance not found")

// Store is the port for saga instance persistence. The orchestrator depends
// on this abstraction, not on SQLite directly, so the implementation can be
// swapped for in-memory (tests) or another durable backend.
//
// Put must be durable before it returns: the orchestrator persists every
// transition before acting on it, so that a crash mid-action is recoverable
// once the transport redelivers the triggering event.
//
// The store does not serialize access per correlation id; that is the
// dispatcher's job. It only has to make individual Get/Put calls safe for
// concurrent use across different ids.
type Store interface {
	// Get returns the instance for the correlation id, or ErrNotFound.
	Get(ctx context.Context, correlationID string) (*Instance, error)

	// Put inserts or replaces the instance keyed by its CorrelationID.
	Put(ctx context.Context, in *Instance) error

	// ListUnfinished returns every instance not yet in a terminal state.
	// Used on startup to surface sagas that were in flight during a crash;
	// their triggering events are expected to be redelivered.
	ListUnfinished(ctx context.Context) ([]*Instance, error)
}

// ReservationClient is the port to the inventory collaborator.
// Release must be safe to call even if the reservation never fully succeeded;
// the orchestrator only invokes it when the instance recorded a successful
// reservation.
type ReservationClient interface {
	Reserve(ctx context.Context, orderID string, items []LineItem) error
	Release(ctx context.Context, orderID string, items []LineItem) error
}

// StatusSync applies the saga's terminal decision to the order aggregate.
type StatusSync interface {
	MarkProcessed(ctx context.Context, orderID string) error
	Cancel(ctx context.Context, orderID string) error
}
