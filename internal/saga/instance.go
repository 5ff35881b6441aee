// Package saga implements the order fulfillment saga: a per-order state
// machine that reserves inventory, waits for the notification outcome, and
// either completes the order or compensates and cancels it.
//
// All mutation of an Instance happens inside the orchestrator, which is
// driven through a per-correlation-id sequential dispatcher, so no locking
// is needed on the Instance itself.
package saga

import "time"

// State is the current position of a saga instance in its lifecycle.
type State string

const (
	StateInitial             State = "INITIAL"
	StateReservationPending  State = "RESERVATION_PENDING"
	StateNotificationPending State = "NOTIFICATION_PENDING"
	StateCompleted           State = "COMPLETED"
	StateFailed              State = "FAILED"
	StateCancelled           State = "CANCELLED"
)

// Terminal reports whether no further transitions can occur from s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// LineItem is one (product, quantity) pair captured when the saga is created.
// The snapshot is what compensation releases; it is never re-derived from
// the order aggregate.
type LineItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Instance is the durable state of one order's saga, keyed by the order id.
type Instance struct {
	// CorrelationID is the order id. Immutable identity key.
	CorrelationID string `json:"correlation_id"`

	State State `json:"state"`

	// Customer snapshot, copied from the OrderCreated event and immutable
	// thereafter.
	CustomerID    string `json:"customer_id"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`

	Items       []LineItem `json:"items"`
	TotalAmount float64    `json:"total_amount"`

	// ProductsReserved and NotificationSent record completed side effects so
	// compensation stays idempotent: release is only invoked when
	// ProductsReserved is true.
	ProductsReserved bool `json:"products_reserved"`
	NotificationSent bool `json:"notification_sent"`

	// ErrorMessage holds the last failure detail, for diagnostics only.
	ErrorMessage string `json:"error_message,omitempty"`

	CreatedAt        time.Time `json:"created_at"`
	LastTransitionAt time.Time `json:"last_transition_at"`
}

// transitionTo moves the instance to next and stamps the transition time.
func (in *Instance) transitionTo(next State, now time.Time) {
	in.State = next
	in.LastTransitionAt = now
}
