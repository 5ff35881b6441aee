// Package order holds the order aggregate and its repository contract. The
// saga treats the aggregate as a collaborator: it only reads orders and
// applies terminal status decisions.
package order

import "time"

// Status is the order lifecycle status on the aggregate side.
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusProcessed Status = "PROCESSED"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

type Item struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	UnitPrice   float64 `json:"unit_price"`
	Quantity    int     `json:"quantity"`
}

type Order struct {
	ID            string    `json:"id"`
	CustomerID    string    `json:"customer_id"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email"`
	Items         []Item    `json:"items"`
	TotalAmount   float64   `json:"total_amount"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
