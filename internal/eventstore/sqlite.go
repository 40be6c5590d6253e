package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore creates a new SQLite-based event store.
// Use ":memory:" for an in-memory database, or a file path for persistent
// storage.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, ferrors.EventStoreError("open event store database").
			WithCause(err).
			WithContext("path", dbPath).
			Build()
	}

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, ferrors.EventStoreError("initialize event store schema").
			WithCause(err).
			WithContext("path", dbPath).
			Build()
	}

	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		payload BLOB NOT NULL,
		metadata TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_job_id ON events(job_id);
	CREATE INDEX IF NOT EXISTS idx_timestamp ON events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_event_type ON events(event_type);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append adds a new event to the store.
func (s *SQLiteStore) Append(ctx context.Context, jobID, eventType string, payload []byte, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var metadataJSON []byte
	if metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(metadata)
		if err != nil {
			return ferrors.EventStoreError("marshal event metadata").
				WithCause(err).
				WithContext("job_id", jobID).
				Build()
		}
	}

	timestamp := time.Now().Unix()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO events (job_id, event_type, timestamp, payload, metadata) VALUES (?, ?, ?, ?, ?)",
		jobID, eventType, timestamp, payload, metadataJSON,
	)
	if err != nil {
		return ferrors.EventStoreError("insert event").
			WithCause(err).
			WithContext("job_id", jobID).
			WithContext("event_type", eventType).
			Build()
	}

	return nil
}

// GetByJobID retrieves all events for a specific publish job.
func (s *SQLiteStore) GetByJobID(ctx context.Context, jobID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, job_id, event_type, timestamp, payload, metadata FROM events WHERE job_id = ? ORDER BY id",
		jobID,
	)
	if err != nil {
		return nil, ferrors.EventStoreError("query events by job").
			WithCause(err).
			WithContext("job_id", jobID).
			Build()
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

// GetRange retrieves events within a time range.
func (s *SQLiteStore) GetRange(ctx context.Context, start, end time.Time) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, job_id, event_type, timestamp, payload, metadata FROM events WHERE timestamp >= ? AND timestamp <= ? ORDER BY id",
		start.Unix(), end.Unix(),
	)
	if err != nil {
		return nil, ferrors.EventStoreError("query events by range").
			WithCause(err).
			Build()
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

func (s *SQLiteStore) scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var e BaseEvent
		var timestampUnix int64
		var metadataJSON []byte

		err := rows.Scan(&e.EventID, &e.EventJobID, &e.EventType, &timestampUnix, &e.EventPayload, &metadataJSON)
		if err != nil {
			return nil, ferrors.EventStoreError("scan event row").
				WithCause(err).
				Build()
		}

		e.EventTimestamp = time.Unix(timestampUnix, 0)

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &e.EventMetadata); err != nil {
				return nil, ferrors.EventStoreError("unmarshal event metadata").
					WithCause(err).
					WithContext("job_id", e.EventJobID).
					Build()
			}
		}

		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, ferrors.EventStoreError("iterate event rows").
			WithCause(err).
			Build()
	}

	return events, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
