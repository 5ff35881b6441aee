package order

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository is a map-backed Repository for tests and local runs.
type MemoryRepository struct {
	mu     sync.RWMutex
	orders map[string]Order
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{orders: make(map[string]Order)}
}

var _ Repository = (*MemoryRepository)(nil)

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := o
	out.Items = append([]Item(nil), o.Items...)
	return &out, nil
}

func (r *MemoryRepository) Save(ctx context.Context, o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *o
	cp.Items = append([]Item(nil), o.Items...)
	r.orders[o.ID] = cp
	return nil
}

func (r *MemoryRepository) UpdateStatus(ctx context.Context, id string, status Status) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now().UTC()
	r.orders[id] = o

	out := o
	out.Items = append([]Item(nil), o.Items...)
	return &out, nil
}
