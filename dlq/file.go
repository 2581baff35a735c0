package dlq

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileQueue appends dead letters to a JSON-lines file, one entry per
// line. The format is append-only and human-readable, so entries can be
// inspected with standard shell tools as well as the CLI.
type FileQueue struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// NewFileQueue opens (creating if needed) the JSON-lines file at path.
func NewFileQueue(path string) (*FileQueue, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("dlq: creating directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("dlq: opening %s: %w", path, err)
	}
	return &FileQueue{path: path, file: f}, nil
}

// Send implements Queue. Each entry is written as a single JSON line
// and synced so a crash cannot lose an acknowledged dead letter.
func (q *FileQueue) Send(_ context.Context, entry Entry) error {
	if entry.InsertedAt.IsZero() {
		entry.InsertedAt = nowUTC()
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("dlq: encoding entry: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if _, err := q.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("dlq: appending entry: %w", err)
	}
	if err := q.file.Sync(); err != nil {
		return fmt.Errorf("dlq: syncing: %w", err)
	}
	return nil
}

// Inspect implements Queue. Lines that fail to decode are skipped
// rather than failing the whole read, so one corrupt line cannot hide
// the rest of the queue.
func (q *FileQueue) Inspect(_ context.Context) ([]Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	f, err := os.Open(q.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("dlq: opening %s: %w", q.path, err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("dlq: reading %s: %w", q.path, err)
	}
	return entries, nil
}

// Close implements Queue.
func (q *FileQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.file.Close()
}
