package saga_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ecomsagas/fulfillment/internal/saga"
	"github.com/ecomsagas/fulfillment/internal/saga/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeReservations records reserve/release calls and fails them on demand.
type fakeReservations struct {
	mu           sync.Mutex
	reserveErr   error
	releaseErr   error
	reserveBlock bool // block until the context expires

	reserveCalls []string
	releaseCalls []string
	releasedWith [][]saga.LineItem
}

func (f *fakeReservations) Reserve(ctx context.Context, orderID string, items []saga.LineItem) error {
	f.mu.Lock()
	f.reserveCalls = append(f.reserveCalls, orderID)
	block := f.reserveBlock
	err := f.reserveErr
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (f *fakeReservations) Release(ctx context.Context, orderID string, items []saga.LineItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releaseCalls = append(f.releaseCalls, orderID)
	f.releasedWith = append(f.releasedWith, append([]saga.LineItem(nil), items...))
	return f.releaseErr
}

// fakeStatus records terminal decisions applied to the order aggregate.
type fakeStatus struct {
	mu        sync.Mutex
	processed []string
	cancelled []string
}

func (f *fakeStatus) MarkProcessed(ctx context.Context, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed = append(f.processed, orderID)
	return nil
}

func (f *fakeStatus) Cancel(ctx context.Context, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, orderID)
	return nil
}

func orderCreated(orderID string, items ...saga.OrderItem) saga.Event {
	return saga.Event{
		Type:          saga.EventOrderCreated,
		OrderID:       orderID,
		CustomerID:    "cust-1",
		CustomerName:  "Ada",
		CustomerEmail: "ada@example.com",
		Items:         items,
		TotalAmount:   42.50,
		CreatedAt:     time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func mustGet(t *testing.T, st saga.Store, id string) *saga.Instance {
	t.Helper()
	in, err := st.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error loading instance %s: %v", id, err)
	}
	return in
}

func TestHappyPathCompletesOrder(t *testing.T) {
	st := store.NewMemory()
	res := &fakeReservations{}
	stat := &fakeStatus{}
	o := saga.NewOrchestrator(st, res, stat, testLogger())
	ctx := context.Background()

	ev := orderCreated("O1", saga.OrderItem{ProductID: "P1", Quantity: 2})
	if err := o.Handle(ctx, ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	in := mustGet(t, st, "O1")
	if in.State != saga.StateNotificationPending {
		t.Fatalf("expected state %s, got %s", saga.StateNotificationPending, in.State)
	}
	if !in.ProductsReserved {
		t.Fatal("expected ProductsReserved=true after successful reservation")
	}

	if err := o.Handle(ctx, saga.Event{Type: saga.EventNotificationSucceeded, OrderID: "O1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	in = mustGet(t, st, "O1")
	if in.State != saga.StateCompleted {
		t.Fatalf("expected state %s, got %s", saga.StateCompleted, in.State)
	}
	if !in.NotificationSent {
		t.Fatal("expected NotificationSent=true")
	}
	if len(stat.processed) != 1 || stat.processed[0] != "O1" {
		t.Fatalf("expected order O1 marked processed once, got %v", stat.processed)
	}
	if len(res.releaseCalls) != 0 {
		t.Fatalf("release must never run on the happy path, got %v", res.releaseCalls)
	}
}

func TestReservationFailureCancelsWithoutRelease(t *testing.T) {
	st := store.NewMemory()
	res := &fakeReservations{reserveErr: errors.New("insufficient stock")}
	stat := &fakeStatus{}
	o := saga.NewOrchestrator(st, res, stat, testLogger())

	ev := orderCreated("O2", saga.OrderItem{ProductID: "P2", Quantity: 5})
	if err := o.Handle(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	in := mustGet(t, st, "O2")
	if in.State != saga.StateCancelled {
		t.Fatalf("expected state %s, got %s", saga.StateCancelled, in.State)
	}
	if in.ProductsReserved {
		t.Fatal("nothing was reserved, ProductsReserved must be false")
	}
	if in.ErrorMessage != "insufficient stock" {
		t.Fatalf("expected error message recorded, got %q", in.ErrorMessage)
	}
	if len(res.releaseCalls) != 0 {
		t.Fatalf("release must not be called when reservation failed, got %v", res.releaseCalls)
	}
	if len(stat.cancelled) != 1 || stat.cancelled[0] != "O2" {
		t.Fatalf("expected order O2 cancelled once, got %v", stat.cancelled)
	}
}

func TestNotificationFailureReleasesOriginalItems(t *testing.T) {
	st := store.NewMemory()
	res := &fakeReservations{}
	stat := &fakeStatus{}
	o := saga.NewOrchestrator(st, res, stat, testLogger())
	ctx := context.Background()

	items := []saga.OrderItem{
		{ProductID: "P1", Quantity: 2},
		{ProductID: "P2", Quantity: 1},
	}
	if err := o.Handle(ctx, orderCreated("O3", items...)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := o.Handle(ctx, saga.Event{Type: saga.EventNotificationFailed, OrderID: "O3", Error: "smtp down"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	in := mustGet(t, st, "O3")
	if in.State != saga.StateCancelled {
		t.Fatalf("expected state %s, got %s", saga.StateCancelled, in.State)
	}
	if len(res.releaseCalls) != 1 {
		t.Fatalf("expected exactly one release, got %d", len(res.releaseCalls))
	}
	released := res.releasedWith[0]
	if len(released) != 2 || released[0] != (saga.LineItem{ProductID: "P1", Quantity: 2}) || released[1] != (saga.LineItem{ProductID: "P2", Quantity: 1}) {
		t.Fatalf("release must use the original item list, got %v", released)
	}
	if len(stat.cancelled) != 1 {
		t.Fatalf("expected one cancellation, got %v", stat.cancelled)
	}
}

func TestDuplicateOrderCreatedIsIgnored(t *testing.T) {
	st := store.NewMemory()
	res := &fakeReservations{}
	stat := &fakeStatus{}
	o := saga.NewOrchestrator(st, res, stat, testLogger())
	ctx := context.Background()

	ev := orderCreated("O4", saga.OrderItem{ProductID: "P1", Quantity: 1})
	if err := o.Handle(ctx, ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := o.Handle(ctx, ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.reserveCalls) != 1 {
		t.Fatalf("duplicate OrderCreated must not re-trigger reservation, got %d calls", len(res.reserveCalls))
	}
	in := mustGet(t, st, "O4")
	if in.State != saga.StateNotificationPending {
		t.Fatalf("expected state %s, got %s", saga.StateNotificationPending, in.State)
	}
}

func TestEventForUnknownSagaIsDiscarded(t *testing.T) {
	st := store.NewMemory()
	o := saga.NewOrchestrator(st, &fakeReservations{}, &fakeStatus{}, testLogger())

	err := o.Handle(context.Background(), saga.Event{Type: saga.EventReservationSucceeded, OrderID: "ghost"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := st.Get(context.Background(), "ghost"); err != saga.ErrNotFound {
		t.Fatal("out-of-order event must not create partial state")
	}
}

func TestDuplicateEventAfterTerminalIsDiscarded(t *testing.T) {
	st := store.NewMemory()
	res := &fakeReservations{}
	stat := &fakeStatus{}
	o := saga.NewOrchestrator(st, res, stat, testLogger())
	ctx := context.Background()

	if err := o.Handle(ctx, orderCreated("O5", saga.OrderItem{ProductID: "P1", Quantity: 1})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := o.Handle(ctx, saga.Event{Type: saga.EventNotificationSucceeded, OrderID: "O5"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	in := mustGet(t, st, "O5")
	if in.State != saga.StateCompleted {
		t.Fatalf("expected state %s, got %s", saga.StateCompleted, in.State)
	}
	if len(stat.processed) != 1 {
		t.Fatalf("redelivered notification must not re-run status sync, got %d", len(stat.processed))
	}
}

func TestReleaseFailureStillCancels(t *testing.T) {
	st := store.NewMemory()
	res := &fakeReservations{releaseErr: errors.New("inventory unreachable")}
	stat := &fakeStatus{}
	o := saga.NewOrchestrator(st, res, stat, testLogger())
	ctx := context.Background()

	if err := o.Handle(ctx, orderCreated("O6", saga.OrderItem{ProductID: "P1", Quantity: 1})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := o.Handle(ctx, saga.Event{Type: saga.EventNotificationFailed, OrderID: "O6", Error: "smtp down"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	in := mustGet(t, st, "O6")
	if in.State != saga.StateCancelled {
		t.Fatalf("order must still end cancelled when release fails, got %s", in.State)
	}
	if !strings.Contains(in.ErrorMessage, "release failed") {
		t.Fatalf("expected release failure recorded in ErrorMessage, got %q", in.ErrorMessage)
	}
	if len(stat.cancelled) != 1 {
		t.Fatalf("expected one cancellation, got %v", stat.cancelled)
	}
}

func TestReservationTimeoutSynthesizesFailure(t *testing.T) {
	st := store.NewMemory()
	res := &fakeReservations{reserveBlock: true}
	stat := &fakeStatus{}
	o := saga.NewOrchestrator(st, res, stat, testLogger(),
		saga.WithReservationTimeout(20*time.Millisecond),
	)

	if err := o.Handle(context.Background(), orderCreated("O7", saga.OrderItem{ProductID: "P1", Quantity: 1})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	in := mustGet(t, st, "O7")
	if in.State != saga.StateCancelled {
		t.Fatalf("expected timed-out reservation to cancel the saga, got %s", in.State)
	}
	if in.ErrorMessage == "" {
		t.Fatal("expected the deadline error recorded in ErrorMessage")
	}
	if len(res.releaseCalls) != 0 {
		t.Fatalf("nothing was reserved, release must not run, got %v", res.releaseCalls)
	}
}

func TestSnapshotIsImmutableAcrossTransitions(t *testing.T) {
	st := store.NewMemory()
	res := &fakeReservations{}
	o := saga.NewOrchestrator(st, res, &fakeStatus{}, testLogger())
	ctx := context.Background()

	if err := o.Handle(ctx, orderCreated("O8", saga.OrderItem{ProductID: "P9", Quantity: 3})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := o.Handle(ctx, saga.Event{Type: saga.EventNotificationSucceeded, OrderID: "O8"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	in := mustGet(t, st, "O8")
	if in.CustomerName != "Ada" || in.CustomerEmail != "ada@example.com" {
		t.Fatalf("customer snapshot changed: %+v", in)
	}
	if len(in.Items) != 1 || in.Items[0] != (saga.LineItem{ProductID: "P9", Quantity: 3}) {
		t.Fatalf("item snapshot changed: %v", in.Items)
	}
	if in.TotalAmount != 42.50 {
		t.Fatalf("total amount changed: %v", in.TotalAmount)
	}
}
