package order

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no order exists for the requested id.
var ErrNotFound = errors.New("order: not found")

// Repository is the order aggregate contract as the saga sees it.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Order, error)

	Save(ctx context.Context, o *Order) error

	// UpdateStatus sets the status of an existing order and returns the
	// updated aggregate, or ErrNotFound.
	UpdateStatus(ctx context.Context, id string, status Status) (*Order, error)
}
