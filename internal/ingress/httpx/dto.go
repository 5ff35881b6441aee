package httpx

import "time"

// OrderCreatedRequest is the inbound OrderCreated event payload.
type OrderCreatedRequest struct {
	OrderID       string         `json:"orderId"`
	CustomerID    string         `json:"customerId"`
	CustomerName  string         `json:"customerName"`
	CustomerEmail string         `json:"customerEmail"`
	Items         []OrderItemDTO `json:"items"`
	TotalAmount   float64        `json:"totalAmount"`
	CreatedAt     time.Time      `json:"createdAt"`
}

type OrderItemDTO struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	UnitPrice   float64 `json:"unitPrice"`
	Quantity    int     `json:"quantity"`
}

// NotificationOutcomeRequest is the payload of the notification collaborator's
// succeeded/failed events.
type NotificationOutcomeRequest struct {
	OrderID string `json:"orderId"`
	Error   string `json:"error,omitempty"`
}

// SagaResponse is the representation of a saga instance on the status
// endpoint.
type SagaResponse struct {
	CorrelationID    string        `json:"correlation_id"`
	State            string        `json:"state"`
	CustomerID       string        `json:"customer_id"`
	Items            []SagaItemDTO `json:"items"`
	TotalAmount      float64       `json:"total_amount"`
	ProductsReserved bool          `json:"products_reserved"`
	NotificationSent bool          `json:"notification_sent"`
	ErrorMessage     string        `json:"error_message,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	LastTransitionAt time.Time     `json:"last_transition_at"`
}

type SagaItemDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type AcceptedResponse struct {
	Accepted bool   `json:"accepted"`
	OrderID  string `json:"order_id"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
