// Package journal persists the engine's event stream to Postgres as an
// append-only audit log. The journal is a consumer of the event bus like any
// other collaborator; the engine itself never touches it.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // Postgres driver

	"github.com/trustmesh/backend/internal/events"
)

const schema = `
CREATE TABLE IF NOT EXISTS engine_events (
    id          TEXT PRIMARY KEY,
    event_type  TEXT NOT NULL,
    source      TEXT NOT NULL,
    subject     TEXT NOT NULL DEFAULT '',
    occurred_at TIMESTAMPTZ NOT NULL,
    payload     JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS engine_events_type_idx ON engine_events (event_type, occurred_at);
`

// Postgres is an append-only event journal backed by a Postgres table.
type Postgres struct {
	db *sql.DB
}

// Open connects to Postgres and ensures the journal schema exists.
func Open(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: ensure schema: %w", err)
	}
	return &Postgres{db: db}, nil
}

// Append writes one event to the journal. Duplicate IDs are ignored so that
// redelivery from the bus or the Redis mirror stays idempotent.
func (j *Postgres) Append(ctx context.Context, event *events.CloudEvent) error {
	payload, err := event.JSON()
	if err != nil {
		return fmt.Errorf("journal: marshal event: %w", err)
	}
	_, err = j.db.ExecContext(ctx,
		`INSERT INTO engine_events (id, event_type, source, subject, occurred_at, payload)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		event.ID, event.Type, event.Source, event.Subject, event.Time, payload,
	)
	if err != nil {
		return fmt.Errorf("journal: insert event: %w", err)
	}
	return nil
}

// Recent returns the latest events in reverse chronological order.
func (j *Postgres) Recent(ctx context.Context, limit int) ([]events.CloudEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT payload FROM engine_events ORDER BY occurred_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: query recent: %w", err)
	}
	defer rows.Close()

	var out []events.CloudEvent
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("journal: scan row: %w", err)
		}
		var ev events.CloudEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			slog.Warn("journal: skipping undecodable event", "error", err)
			continue
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Run consumes the bus and appends every event until the context ends.
// Insert failures are logged and dropped; the journal is an observer, not a
// participant in the state machine.
func (j *Postgres) Run(ctx context.Context, bus *events.Bus) {
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub:
			if !ok {
				return
			}
			if err := j.Append(ctx, event); err != nil {
				slog.Warn("journal: append failed", "type", event.Type, "error", err)
			}
		}
	}
}

// Close shuts down the database handle.
func (j *Postgres) Close() error {
	return j.db.Close()
}
