package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ecomsagas/fulfillment/internal/saga"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "sagas.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func sampleInstance(id string, state saga.State) *saga.Instance {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &saga.Instance{
		CorrelationID:    id,
		State:            state,
		CustomerID:       "cust-1",
		CustomerName:     "Ada",
		CustomerEmail:    "ada@example.com",
		Items:            []saga.LineItem{{ProductID: "P1", Quantity: 2}},
		TotalAmount:      42.5,
		CreatedAt:        now,
		LastTransitionAt: now,
	}
}

func TestGetUnknownReturnsNotFound(t *testing.T) {
	repo := openTestRepo(t)
	if _, err := repo.Get(context.Background(), "missing"); err != saga.ErrNotFound {
		t.Fatalf("expected saga.ErrNotFound, got %v", err)
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	in := sampleInstance("O1", saga.StateReservationPending)
	if err := repo.Put(ctx, in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := repo.Get(ctx, "O1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.State != saga.StateReservationPending {
		t.Fatalf("state mismatch: %s", got.State)
	}
	if got.CustomerName != "Ada" || got.CustomerEmail != "ada@example.com" {
		t.Fatalf("snapshot mismatch: %+v", got)
	}
	if len(got.Items) != 1 || got.Items[0] != (saga.LineItem{ProductID: "P1", Quantity: 2}) {
		t.Fatalf("items mismatch: %v", got.Items)
	}
	if got.TotalAmount != 42.5 {
		t.Fatalf("total mismatch: %v", got.TotalAmount)
	}
	if !got.CreatedAt.Equal(in.CreatedAt) {
		t.Fatalf("created_at mismatch: %v vs %v", got.CreatedAt, in.CreatedAt)
	}
}

func TestPutUpsertsTransitions(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	in := sampleInstance("O1", saga.StateReservationPending)
	if err := repo.Put(ctx, in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	in.State = saga.StateNotificationPending
	in.ProductsReserved = true
	in.LastTransitionAt = in.LastTransitionAt.Add(time.Second)
	if err := repo.Put(ctx, in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := repo.Get(ctx, "O1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.State != saga.StateNotificationPending {
		t.Fatalf("expected upserted state, got %s", got.State)
	}
	if !got.ProductsReserved {
		t.Fatal("expected ProductsReserved persisted")
	}
	if !got.LastTransitionAt.After(got.CreatedAt) {
		t.Fatalf("expected last_transition_at to advance, got %v", got.LastTransitionAt)
	}
}

func TestListUnfinishedSkipsTerminal(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	_ = repo.Put(ctx, sampleInstance("O1", saga.StateReservationPending))
	_ = repo.Put(ctx, sampleInstance("O2", saga.StateCompleted))
	_ = repo.Put(ctx, sampleInstance("O3", saga.StateFailed))
	_ = repo.Put(ctx, sampleInstance("O4", saga.StateCancelled))

	got, err := repo.ListUnfinished(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 unfinished sagas, got %d", len(got))
	}
	for _, in := range got {
		if in.State.Terminal() {
			t.Fatalf("terminal instance %s returned as unfinished", in.CorrelationID)
		}
	}
}
