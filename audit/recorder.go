package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/glebarez/sqlite"

	"nftmarket/core/events"
	"nftmarket/core/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS trade_events (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    event_type  TEXT NOT NULL,
    attributes  TEXT NOT NULL,
    recorded_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trade_events_type ON trade_events(event_type);
`

// Entry is one persisted trade event.
type Entry struct {
	ID         int64
	EventType  string
	Attributes map[string]string
	RecordedAt time.Time
}

type payloadEvent interface {
	Event() *types.Event
}

// Recorder persists every emitted trade event into a SQLite journal so
// operators can reconstruct the history of any item after the fact. Emit
// never fails the emitting operation; persistence errors are logged and
// dropped.
type Recorder struct {
	db    *sql.DB
	nowFn func() time.Time
}

var _ events.Emitter = (*Recorder)(nil)

// Open opens (and migrates) the journal at the given path.
func Open(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: migrate: %w", err)
	}
	return &Recorder{db: db, nowFn: time.Now}, nil
}

// Close releases the underlying database handle.
func (r *Recorder) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SetNowFunc overrides the timestamp source. Primarily intended for tests.
func (r *Recorder) SetNowFunc(now func() time.Time) {
	if now == nil {
		r.nowFn = time.Now
		return
	}
	r.nowFn = now
}

// Emit persists the event. Events without a structured payload are stored
// with empty attributes.
func (r *Recorder) Emit(evt events.Event) {
	if r == nil || r.db == nil || evt == nil {
		return
	}
	attrs := map[string]string{}
	if payload, ok := evt.(payloadEvent); ok {
		if e := payload.Event(); e != nil && e.Attributes != nil {
			attrs = e.Attributes
		}
	}
	encoded, err := json.Marshal(attrs)
	if err != nil {
		slog.Error("audit: encode attributes", "error", err, "event", evt.EventType())
		return
	}
	if _, err := r.db.Exec(
		`INSERT INTO trade_events (event_type, attributes, recorded_at) VALUES (?, ?, ?)`,
		evt.EventType(), string(encoded), r.nowFn().UTC(),
	); err != nil {
		slog.Error("audit: persist event", "error", err, "event", evt.EventType())
	}
}

// Recent returns up to limit entries, newest first.
func (r *Recorder) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(
		`SELECT id, event_type, attributes, recorded_at FROM trade_events ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry   Entry
			encoded string
		)
		if err := rows.Scan(&entry.ID, &entry.EventType, &encoded, &entry.RecordedAt); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(encoded), &entry.Attributes); err != nil {
			return nil, fmt.Errorf("audit: decode attributes: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
