package dlq

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue keeps dead letters in memory. Entries are lost on
// restart; use the file or SQLite queue for anything that matters.
type MemoryQueue struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemoryQueue creates an empty MemoryQueue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

// Send implements Queue.
func (q *MemoryQueue) Send(_ context.Context, entry Entry) error {
	if entry.InsertedAt.IsZero() {
		entry.InsertedAt = time.Now().UTC()
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, entry)
	return nil
}

// Inspect implements Queue.
func (q *MemoryQueue) Inspect(_ context.Context) ([]Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Entry, len(q.entries))
	copy(out, q.entries)
	return out, nil
}

// Close implements Queue.
func (q *MemoryQueue) Close() error { return nil }
