package eventstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const buildEventsSchema = `
CREATE TABLE IF NOT EXISTS build_events (
	seq      INTEGER PRIMARY KEY AUTOINCREMENT,
	build_id TEXT    NOT NULL,
	type     TEXT    NOT NULL,
	at_ms    INTEGER NOT NULL,
	payload  BLOB    NOT NULL
);
CREATE INDEX IF NOT EXISTS build_events_build ON build_events(build_id);
CREATE INDEX IF NOT EXISTS build_events_at ON build_events(at_ms);
`

const selectBuildEvents = `SELECT seq, build_id, type, at_ms, payload FROM build_events`

// SQLiteStore keeps build events in a single sqlite table. All access goes
// through one connection, so writes from concurrent runs are serialized.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens or creates the history database at dbPath.
// ":memory:" gives a private in-process database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, storeFailure(ErrDatabaseOpenFailed, err)
	}
	// A second connection to ":memory:" would see an empty database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(buildEventsSchema); err != nil {
		_ = db.Close()
		return nil, storeFailure(ErrInitializeSchemaFailed, err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Append records one event stamped with the store clock.
func (s *SQLiteStore) Append(ctx context.Context, buildID, eventType string, payload []byte) error {
	if payload == nil {
		payload = []byte{}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO build_events (build_id, type, at_ms, payload) VALUES (?, ?, ?, ?)`,
		buildID, eventType, s.now().UnixMilli(), payload,
	)
	if err != nil {
		return storeFailure(ErrEventAppendFailed, err)
	}
	return nil
}

// GetByBuildID returns the events of one run in append order.
func (s *SQLiteStore) GetByBuildID(ctx context.Context, buildID string) ([]Event, error) {
	return s.query(ctx, selectBuildEvents+` WHERE build_id = ? ORDER BY seq`, buildID)
}

// GetRange returns the events stamped within [start, end] in append order.
func (s *SQLiteStore) GetRange(ctx context.Context, start, end time.Time) ([]Event, error) {
	return s.query(ctx, selectBuildEvents+` WHERE at_ms BETWEEN ? AND ? ORDER BY seq`,
		start.UnixMilli(), end.UnixMilli())
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storeFailure(ErrEventQueryFailed, err)
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		var (
			e    BaseEvent
			atMS int64
		)
		if err := rows.Scan(&e.EventID, &e.EventBuildID, &e.EventType, &atMS, &e.EventPayload); err != nil {
			return nil, storeFailure(ErrEventQueryFailed, fmt.Errorf("scan build event: %w", err))
		}
		e.EventTimestamp = time.UnixMilli(atMS)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeFailure(ErrEventQueryFailed, err)
	}
	return events, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
