package saga

import "time"

// EventType identifies the kind of saga event being dispatched.
type EventType string

const (
	EventOrderCreated          EventType = "OrderCreated"
	EventReservationSucceeded  EventType = "ReservationSucceeded"
	EventReservationFailed     EventType = "ReservationFailed"
	EventNotificationSucceeded EventType = "NotificationSucceeded"
	EventNotificationFailed    EventType = "NotificationFailed"
	EventCompensationDone      EventType = "CompensationDone"
)

// OrderItem is one line of an OrderCreated event as it arrives on the wire.
type OrderItem struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	UnitPrice   float64 `json:"unitPrice"`
	Quantity    int     `json:"quantity"`
}

// Event is the single message type consumed by the orchestrator. OrderID is
// the correlation id; the remaining fields are populated depending on Type.
//
// OrderCreated and the notification events arrive from outside the process.
// ReservationSucceeded/Failed and CompensationDone are raised by the
// orchestrator itself after the corresponding outbound call returns, mirroring
// how the reservation outcome belongs to this order's own event stream.
type Event struct {
	Type    EventType `json:"type"`
	OrderID string    `json:"orderId"`

	// OrderCreated payload.
	CustomerID    string      `json:"customerId,omitempty"`
	CustomerName  string      `json:"customerName,omitempty"`
	CustomerEmail string      `json:"customerEmail,omitempty"`
	Items         []OrderItem `json:"items,omitempty"`
	TotalAmount   float64     `json:"totalAmount,omitempty"`
	CreatedAt     time.Time   `json:"createdAt,omitempty"`

	// Failure detail for ReservationFailed / NotificationFailed.
	Error string `json:"error,omitempty"`
}
