package saga

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const defaultReservationTimeout = 10 * time.Second

// Orchestrator drives the order fulfillment state machine. Handle must be
// called sequentially per correlation id (the dispatcher guarantees this);
// calls for distinct ids may run concurrently.
type Orchestrator struct {
	store        Store
	reservations ReservationClient
	status       StatusSync
	logger       *slog.Logger

	// reservationTimeout bounds the reserve call; expiry synthesizes a
	// ReservationFailed so the saga cannot hang in ReservationPending.
	reservationTimeout time.Duration

	now func() time.Time
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithReservationTimeout overrides the deadline applied to reserve calls.
func WithReservationTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.reservationTimeout = d }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func NewOrchestrator(store Store, reservations ReservationClient, status StatusSync, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:              store,
		reservations:       reservations,
		status:             status,
		logger:             logger,
		reservationTimeout: defaultReservationTimeout,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Handle processes one saga event. Business failures never escape: they are
// translated into saga transitions. The returned error is reserved for
// infrastructure problems (the state store), in which case the event should
// be redelivered.
func (o *Orchestrator) Handle(ctx context.Context, ev Event) error {
	if ev.Type == EventOrderCreated {
		return o.handleOrderCreated(ctx, ev)
	}

	in, err := o.store.Get(ctx, ev.OrderID)
	if err == ErrNotFound {
		o.discard(ctx, ev, "no saga instance for correlation id")
		return nil
	}
	if err != nil {
		return fmt.Errorf("saga: load instance %s: %w", ev.OrderID, err)
	}

	return o.apply(ctx, in, ev)
}

// handleOrderCreated creates the saga instance, persists it in
// ReservationPending, and attempts the inventory reservation. The reservation
// outcome is fed back through apply as a synthesized event, keeping every
// transition on the same code path.
func (o *Orchestrator) handleOrderCreated(ctx context.Context, ev Event) error {
	if _, err := o.store.Get(ctx, ev.OrderID); err == nil {
		// Already-initialized guard: a redelivered OrderCreated must not
		// create a second instance nor re-trigger the reservation.
		o.discard(ctx, ev, "saga already initialized")
		return nil
	} else if err != ErrNotFound {
		return fmt.Errorf("saga: load instance %s: %w", ev.OrderID, err)
	}

	now := o.now()
	items := make([]LineItem, len(ev.Items))
	for i, it := range ev.Items {
		items[i] = LineItem{ProductID: it.ProductID, Quantity: it.Quantity}
	}

	in := &Instance{
		CorrelationID: ev.OrderID,
		State:         StateInitial,
		CustomerID:    ev.CustomerID,
		CustomerName:  ev.CustomerName,
		CustomerEmail: ev.CustomerEmail,
		Items:         items,
		TotalAmount:   ev.TotalAmount,
		CreatedAt:     ev.CreatedAt,
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = now
	}

	// Persist in ReservationPending before calling out, so a crash during
	// the reserve call leaves a resumable instance behind.
	in.transitionTo(StateReservationPending, now)
	if err := o.store.Put(ctx, in); err != nil {
		return fmt.Errorf("saga: persist instance %s: %w", ev.OrderID, err)
	}

	o.logger.InfoContext(ctx, "saga initialized",
		"correlation_id", in.CorrelationID,
		"customer_id", in.CustomerID,
		"items", len(in.Items),
	)

	return o.apply(ctx, in, o.reserve(ctx, in))
}

// reserve calls the inventory collaborator under the configured deadline and
// converts the outcome into the corresponding saga event.
func (o *Orchestrator) reserve(ctx context.Context, in *Instance) Event {
	callCtx, cancel := context.WithTimeout(ctx, o.reservationTimeout)
	defer cancel()

	if err := o.reservations.Reserve(callCtx, in.CorrelationID, in.Items); err != nil {
		return Event{Type: EventReservationFailed, OrderID: in.CorrelationID, Error: err.Error()}
	}
	return Event{Type: EventReservationSucceeded, OrderID: in.CorrelationID}
}

// apply runs one transition: validate against the table, mutate, persist,
// then perform the actions the new state demands.
func (o *Orchestrator) apply(ctx context.Context, in *Instance, ev Event) error {
	next, ok := nextState(in.State, ev.Type)
	if !ok {
		o.discard(ctx, ev, fmt.Sprintf("no transition from state %s", in.State))
		return nil
	}

	switch ev.Type {
	case EventReservationSucceeded:
		in.ProductsReserved = true
	case EventNotificationSucceeded:
		in.NotificationSent = true
	case EventReservationFailed, EventNotificationFailed:
		in.ErrorMessage = ev.Error
	}

	in.transitionTo(next, o.now())
	if err := o.store.Put(ctx, in); err != nil {
		return fmt.Errorf("saga: persist instance %s: %w", in.CorrelationID, err)
	}

	o.logger.InfoContext(ctx, "saga transition",
		"correlation_id", in.CorrelationID,
		"event", string(ev.Type),
		"state", string(in.State),
	)

	switch in.State {
	case StateNotificationPending:
		// The notification itself is fired by the notification collaborator
		// when it consumes OrderCreated; here we only await its outcome.
		return nil
	case StateCompleted:
		o.markProcessed(ctx, in)
		return nil
	case StateFailed:
		return o.compensate(ctx, in)
	case StateCancelled:
		o.cancel(ctx, in)
		return nil
	}
	return nil
}

// compensate undoes the reservation if one was taken, then drives the saga
// to Cancelled via CompensationDone. Release failure is an operator-visible
// condition: the order is still cancelled locally (the alternative is a stuck
// order), and the discrepancy is recorded on the instance.
func (o *Orchestrator) compensate(ctx context.Context, in *Instance) error {
	if in.ProductsReserved {
		if err := o.reservations.Release(ctx, in.CorrelationID, in.Items); err != nil {
			in.ErrorMessage = fmt.Sprintf("%s; release failed: %v", in.ErrorMessage, err)
			o.logger.ErrorContext(ctx, "compensation failed, inventory may need manual release",
				"correlation_id", in.CorrelationID,
				"error", err,
			)
		} else {
			o.logger.InfoContext(ctx, "reservation released",
				"correlation_id", in.CorrelationID,
				"items", len(in.Items),
			)
		}
	}

	return o.apply(ctx, in, Event{Type: EventCompensationDone, OrderID: in.CorrelationID})
}

// markProcessed applies the Completed decision to the order aggregate.
func (o *Orchestrator) markProcessed(ctx context.Context, in *Instance) {
	if err := o.status.MarkProcessed(ctx, in.CorrelationID); err != nil {
		o.logger.WarnContext(ctx, "failed to mark order processed",
			"correlation_id", in.CorrelationID,
			"error", err,
		)
	}
	o.logger.InfoContext(ctx, "saga completed", "correlation_id", in.CorrelationID)
}

// cancel applies the Cancelled decision to the order aggregate.
func (o *Orchestrator) cancel(ctx context.Context, in *Instance) {
	if err := o.status.Cancel(ctx, in.CorrelationID); err != nil {
		o.logger.WarnContext(ctx, "failed to mark order cancelled",
			"correlation_id", in.CorrelationID,
			"error", err,
		)
	}
	o.logger.InfoContext(ctx, "saga cancelled",
		"correlation_id", in.CorrelationID,
		"reason", in.ErrorMessage,
	)
}

// discard logs an event that cannot be applied. Duplicates and out-of-order
// deliveries land here; dropping them without side effects is what makes
// at-least-once redelivery safe.
func (o *Orchestrator) discard(ctx context.Context, ev Event, reason string) {
	o.logger.WarnContext(ctx, "event discarded",
		"correlation_id", ev.OrderID,
		"event", string(ev.Type),
		"reason", reason,
	)
}
