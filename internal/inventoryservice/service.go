// Package inventoryservice is a stand-in for the inventory collaborator:
// an in-memory stock ledger served over the reserve/release HTTP contract.
// It exists for local runs and integration-style tests of the orchestrator.
package inventoryservice

import (
	"log/slog"
	"sync"
)

// Item is one (product, quantity) pair in a reservation.
type Item struct {
	ProductID string
	Quantity  int
}

// Service holds stock levels and per-order reservations. Reserve is
// all-or-nothing: either every item can be taken or nothing is.
type Service struct {
	mu           sync.Mutex
	stock        map[string]int
	reservations map[string][]Item
	logger       *slog.Logger
}

func NewService(stock map[string]int, logger *slog.Logger) *Service {
	s := make(map[string]int, len(stock))
	for k, v := range stock {
		s[k] = v
	}
	return &Service{
		stock:        s,
		reservations: make(map[string][]Item),
		logger:       logger,
	}
}

// Reserve takes stock for the order. Returns ok=false with a message when a
// product is unknown or stock is insufficient; nothing is decremented in
// that case. A repeated reserve for an order that already holds a
// reservation is a no-op success, so redelivered commands cannot
// double-reserve.
func (s *Service) Reserve(orderID string, items []Item) (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reservations[orderID]; exists {
		s.logger.Info("reservation already held", "order_id", orderID)
		return true, ""
	}

	for _, item := range items {
		current, exists := s.stock[item.ProductID]
		if !exists {
			return false, "unknown product " + item.ProductID
		}
		if current < item.Quantity {
			return false, "insufficient stock for product " + item.ProductID
		}
	}

	for _, item := range items {
		s.stock[item.ProductID] -= item.Quantity
	}
	s.reservations[orderID] = append([]Item(nil), items...)

	s.logger.Info("stock reserved", "order_id", orderID, "items", len(items))
	return true, ""
}

// Release restores the stock held by the order's reservation. Unknown
// reservation returns ok=false; callers treat that as "nothing to release".
// The reservation record is deleted so a redelivered release cannot restore
// stock twice.
func (s *Service) Release(orderID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, exists := s.reservations[orderID]
	if !exists {
		s.logger.Warn("no reservation to release", "order_id", orderID)
		return false
	}

	for _, item := range items {
		s.stock[item.ProductID] += item.Quantity
	}
	delete(s.reservations, orderID)

	s.logger.Info("stock released", "order_id", orderID, "items", len(items))
	return true
}

// Stock returns the current level for a product (tests, admin endpoint).
func (s *Service) Stock(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stock[productID]
}
