// Package status applies the saga's terminal decision back onto the order
// aggregate.
package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ecomsagas/fulfillment/internal/order"
	"github.com/ecomsagas/fulfillment/internal/saga"
)

// Sync translates Completed/Cancelled saga outcomes into order statuses.
// A missing order is a warning, not a saga failure — the order may have been
// deleted out of band, and the saga must still reach its terminal state.
type Sync struct {
	orders order.Repository
	logger *slog.Logger
}

func NewSync(orders order.Repository, logger *slog.Logger) *Sync {
	return &Sync{orders: orders, logger: logger}
}

var _ saga.StatusSync = (*Sync)(nil)

// MarkProcessed sets the order status to Processed.
func (s *Sync) MarkProcessed(ctx context.Context, orderID string) error {
	return s.update(ctx, orderID, order.StatusProcessed)
}

// Cancel sets the order status to Cancelled.
func (s *Sync) Cancel(ctx context.Context, orderID string) error {
	return s.update(ctx, orderID, order.StatusCancelled)
}

func (s *Sync) update(ctx context.Context, orderID string, st order.Status) error {
	_, err := s.orders.UpdateStatus(ctx, orderID, st)
	if errors.Is(err, order.ErrNotFound) {
		s.logger.WarnContext(ctx, "order missing during status sync",
			"order_id", orderID,
			"status", string(st),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("status: update order %s to %s: %w", orderID, st, err)
	}

	s.logger.InfoContext(ctx, "order status updated",
		"order_id", orderID,
		"status", string(st),
	)
	return nil
}
