// Package store provides saga.Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/ecomsagas/fulfillment/internal/saga"
)

// Memory is an in-memory saga.Store for tests and local runs. Instances are
// copied on the way in and out so callers never share mutable state with the
// map.
type Memory struct {
	mu        sync.RWMutex
	instances map[string]saga.Instance
}

func NewMemory() *Memory {
	return &Memory{instances: make(map[string]saga.Instance)}
}

var _ saga.Store = (*Memory)(nil)

func (m *Memory) Get(ctx context.Context, correlationID string) (*saga.Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	in, ok := m.instances[correlationID]
	if !ok {
		return nil, saga.ErrNotFound
	}
	out := in
	out.Items = append([]saga.LineItem(nil), in.Items...)
	return &out, nil
}

func (m *Memory) Put(ctx context.Context, in *saga.Instance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *in
	cp.Items = append([]saga.LineItem(nil), in.Items...)
	m.instances[in.CorrelationID] = cp
	return nil
}

func (m *Memory) ListUnfinished(ctx context.Context) ([]*saga.Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*saga.Instance
	for _, in := range m.instances {
		if in.State.Terminal() {
			continue
		}
		cp := in
		cp.Items = append([]saga.LineItem(nil), in.Items...)
		out = append(out, &cp)
	}
	return out, nil
}
