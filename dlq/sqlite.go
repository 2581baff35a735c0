package dlq

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	// SQLite driver, registered as "sqlite".
	_ "modernc.org/sqlite"
)

const dlqSchema = `
CREATE TABLE IF NOT EXISTS dead_letters (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	raw         BLOB NOT NULL,
	reason      TEXT NOT NULL,
	metadata    TEXT,
	inserted_at TEXT NOT NULL
);`

// SQLiteQueue persists dead letters in a SQLite database, typically the
// same file as the checkpoint store.
type SQLiteQueue struct {
	db *sql.DB
}

// NewSQLiteQueue opens (and migrates) the database at path.
func NewSQLiteQueue(path string) (*SQLiteQueue, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("dlq: opening sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(dlqSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("dlq: applying schema: %w", err)
	}
	return &SQLiteQueue{db: db}, nil
}

func nowUTC() time.Time { return time.Now().UTC() }

// Send implements Queue.
func (q *SQLiteQueue) Send(ctx context.Context, entry Entry) error {
	if entry.InsertedAt.IsZero() {
		entry.InsertedAt = nowUTC()
	}
	var meta any
	if len(entry.Metadata) > 0 {
		encoded, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("dlq: encoding metadata: %w", err)
		}
		meta = string(encoded)
	}
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO dead_letters (raw, reason, metadata, inserted_at) VALUES (?, ?, ?, ?)`,
		[]byte(entry.Raw), entry.Reason, meta, entry.InsertedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("dlq: inserting entry: %w", err)
	}
	return nil
}

// Inspect implements Queue.
func (q *SQLiteQueue) Inspect(ctx context.Context) ([]Entry, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT raw, reason, metadata, inserted_at FROM dead_letters ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("dlq: querying entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry    Entry
			raw      []byte
			meta     sql.NullString
			inserted string
		)
		if err := rows.Scan(&raw, &entry.Reason, &meta, &inserted); err != nil {
			return entries, fmt.Errorf("dlq: scanning entry: %w", err)
		}
		entry.Raw = json.RawMessage(raw)
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &entry.Metadata); err != nil {
				entry.Metadata = map[string]any{"_decode_error": err.Error()}
			}
		}
		if ts, err := time.Parse(time.RFC3339Nano, inserted); err == nil {
			entry.InsertedAt = ts
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return entries, fmt.Errorf("dlq: iterating entries: %w", err)
	}
	return entries, nil
}

// Close implements Queue.
func (q *SQLiteQueue) Close() error { return q.db.Close() }
