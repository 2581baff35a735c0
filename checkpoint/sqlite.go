package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// SQLite driver, registered as "sqlite".
	_ "modernc.org/sqlite"
)

const checkpointSchema = `
CREATE TABLE IF NOT EXISTS processed_messages (
	source     TEXT NOT NULL,
	timestamp  INTEGER NOT NULL,
	enqueued_at TEXT,
	PRIMARY KEY (source, timestamp)
);`

// SQLiteStore persists checkpoints in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the database at path. Use
// ":memory:" for an ephemeral store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: opening sqlite db: %w", err)
	}
	// modernc.org/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent workers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(checkpointSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("checkpoint: applying schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// IsDuplicate implements Store.
func (s *SQLiteStore) IsDuplicate(ctx context.Context, source string, timestamp int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM processed_messages WHERE source = ? AND timestamp = ?`,
		source, timestamp,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checkpoint: sqlite lookup: %w", err)
	}
	return true, nil
}

// MarkProcessed implements Store.
func (s *SQLiteStore) MarkProcessed(ctx context.Context, source string, timestamp int64, enqueuedAt time.Time) error {
	var enq any
	if !enqueuedAt.IsZero() {
		enq = enqueuedAt.UTC().Format(time.RFC3339Nano)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO processed_messages (source, timestamp, enqueued_at) VALUES (?, ?, ?)`,
		source, timestamp, enq,
	)
	if err != nil {
		return fmt.Errorf("checkpoint: sqlite insert: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error { return s.db.Close() }
