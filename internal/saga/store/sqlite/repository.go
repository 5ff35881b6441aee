// Package sqlite provides a SQLite-backed implementation of saga.Store.
//
// WAL mode is enabled on Open so that readers never block writers and vice
// versa — the dispatcher goroutines write while the HTTP status endpoint
// may be reading.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/ecomsagas/fulfillment/internal/saga"

	// Register the pure-Go SQLite driver. modernc.org/sqlite avoids CGO,
	// which keeps Docker builds on Alpine simple.
	_ "modernc.org/sqlite"
)

// schema is the DDL executed once on startup. One row per saga instance,
// upserted on every transition. Rows are never deleted: terminal instances
// are retained for audit; compaction is an external concern.
const schema = `
CREATE TABLE IF NOT EXISTS saga_instances (
    -- Business identifier: the order ID. One live instance per id.
    correlation_id      TEXT PRIMARY KEY,

    state               TEXT NOT NULL,

    -- Customer snapshot, copied at creation and immutable thereafter.
    customer_id         TEXT NOT NULL DEFAULT '',
    customer_name       TEXT NOT NULL DEFAULT '',
    customer_email      TEXT NOT NULL DEFAULT '',

    -- JSON array of {product_id, quantity}; the compensation item list.
    items               TEXT NOT NULL DEFAULT '[]',

    total_amount        REAL NOT NULL DEFAULT 0,

    products_reserved   INTEGER NOT NULL DEFAULT 0,
    notification_sent   INTEGER NOT NULL DEFAULT 0,

    error_message       TEXT NOT NULL DEFAULT '',

    -- W3C trace/span ids from the OTel span active at the last transition.
    -- Lets you jump from a saga row straight to the distributed trace.
    trace_id            TEXT NOT NULL DEFAULT '',
    span_id             TEXT NOT NULL DEFAULT '',

    -- RFC3339 stored as TEXT, SQLite idiom.
    created_at          TEXT NOT NULL,
    last_transition_at  TEXT NOT NULL
);

-- Index for the recovery query: "which sagas are still in flight".
CREATE INDEX IF NOT EXISTS idx_saga_instances_state ON saga_instances(state);
`

// Repository is the SQLite implementation of saga.Store.
type Repository struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
//
//	repo, err := sqlite.Open("./data/sagas.db")
func Open(path string) (*Repository, error) {
	// WAL enables concurrent readers; busy_timeout waits for locks instead
	// of failing immediately.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", path)

	// "sqlite", not "sqlite3", for the modernc driver.
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// SQLite performs best with a single writer connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close releases the database connection. Call it with defer in main().
func (r *Repository) Close() error {
	return r.db.Close()
}

var _ saga.Store = (*Repository)(nil)

// Put inserts or replaces the instance row. Durable once it returns.
func (r *Repository) Put(ctx context.Context, in *saga.Instance) error {
	items, err := json.Marshal(in.Items)
	if err != nil {
		return fmt.Errorf("sqlite: marshal items for %q: %w", in.CorrelationID, err)
	}

	traceID, spanID := traceIDs(ctx)

	const q = `
		INSERT INTO saga_instances
			(correlation_id, state, customer_id, customer_name, customer_email,
			 items, total_amount, products_reserved, notification_sent,
			 error_message, trace_id, span_id, created_at, last_transition_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(correlation_id) DO UPDATE SET
			state              = excluded.state,
			products_reserved  = excluded.products_reserved,
			notification_sent  = excluded.notification_sent,
			error_message      = excluded.error_message,
			trace_id           = excluded.trace_id,
			span_id            = excluded.span_id,
			last_transition_at = excluded.last_transition_at`

	_, err = r.db.ExecContext(ctx, q,
		in.CorrelationID,
		string(in.State),
		in.CustomerID,
		in.CustomerName,
		in.CustomerEmail,
		string(items),
		in.TotalAmount,
		boolToInt(in.ProductsReserved),
		boolToInt(in.NotificationSent),
		in.ErrorMessage,
		traceID,
		spanID,
		formatRFC3339(in.CreatedAt),
		formatRFC3339(in.LastTransitionAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: put instance %q: %w", in.CorrelationID, err)
	}
	return nil
}

// Get returns the instance for the correlation id, or saga.ErrNotFound.
func (r *Repository) Get(ctx context.Context, correlationID string) (*saga.Instance, error) {
	const q = selectColumns + ` WHERE correlation_id = ?`

	in, err := scanInstance(r.db.QueryRowContext(ctx, q, correlationID))
	if err == sql.ErrNoRows {
		return nil, saga.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get instance %q: %w", correlationID, err)
	}
	return in, nil
}

// ListUnfinished returns every instance not yet in a terminal state.
func (r *Repository) ListUnfinished(ctx context.Context) ([]*saga.Instance, error) {
	const q = selectColumns + ` WHERE state NOT IN (?, ?) ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, q, string(saga.StateCompleted), string(saga.StateCancelled))
	if err != nil {
		return nil, fmt.Errorf("sqlite: list unfinished: %w", err)
	}
	defer rows.Close()

	var out []*saga.Instance
	for rows.Next() {
		in, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: list unfinished: %w", err)
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

const selectColumns = `
	SELECT correlation_id, state, customer_id, customer_name, customer_email,
	       items, total_amount, products_reserved, notification_sent,
	       error_message, created_at, last_transition_at
	FROM   saga_instances`

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstance(row rowScanner) (*saga.Instance, error) {
	var (
		in                   saga.Instance
		state, items         string
		reserved, notified   int
		createdAt, updatedAt string
	)
	err := row.Scan(
		&in.CorrelationID,
		&state,
		&in.CustomerID,
		&in.CustomerName,
		&in.CustomerEmail,
		&items,
		&in.TotalAmount,
		&reserved,
		&notified,
		&in.ErrorMessage,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	in.State = saga.State(state)
	in.ProductsReserved = reserved != 0
	in.NotificationSent = notified != 0

	if err := json.Unmarshal([]byte(items), &in.Items); err != nil {
		return nil, fmt.Errorf("unmarshal items: %w", err)
	}
	if in.CreatedAt, err = parseRFC3339(createdAt); err != nil {
		return nil, err
	}
	if in.LastTransitionAt, err = parseRFC3339(updatedAt); err != nil {
		return nil, err
	}
	return &in, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// traceIDs extracts the active OTel span's trace/span ids as hex strings,
// empty when no span is recording (e.g. unit tests).
func traceIDs(ctx context.Context) (string, string) {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return "", ""
	}
	return sc.TraceID().String(), sc.SpanID().String()
}
