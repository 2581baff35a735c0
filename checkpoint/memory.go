package checkpoint

import (
	"context"
	"sync"
	"time"
)

// defaultPerSourceLimit bounds how many timestamps are remembered per
// source before the oldest entries are evicted.
const defaultPerSourceLimit = 1024

// MemoryStore is an in-memory Store with a bounded per-source LRU
// window. It is safe for concurrent use and suitable for development
// and single-instance deployments; use SQLite or Redis when checkpoints
// must survive restarts.
type MemoryStore struct {
	mu      sync.RWMutex
	sources map[string]*sourceWindow
	limit   int
}

type sourceWindow struct {
	set   map[int64]struct{}
	order []int64
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithPerSourceLimit overrides the per-source eviction bound.
func WithPerSourceLimit(n int) MemoryOption {
	return func(s *MemoryStore) {
		if n > 0 {
			s.limit = n
		}
	}
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		sources: make(map[string]*sourceWindow),
		limit:   defaultPerSourceLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsDuplicate reports whether the pair is inside the remembered window.
func (s *MemoryStore) IsDuplicate(_ context.Context, source string, timestamp int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.sources[source]
	if !ok {
		return false, nil
	}
	_, dup := w.set[timestamp]
	return dup, nil
}

// MarkProcessed records the pair, evicting the oldest timestamp for the
// source once the window is full.
func (s *MemoryStore) MarkProcessed(_ context.Context, source string, timestamp int64, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.sources[source]
	if !ok {
		w = &sourceWindow{set: make(map[int64]struct{})}
		s.sources[source] = w
	}
	if _, exists := w.set[timestamp]; exists {
		return nil
	}
	w.set[timestamp] = struct{}{}
	w.order = append(w.order, timestamp)
	for len(w.order) > s.limit {
		oldest := w.order[0]
		w.order = w.order[1:]
		delete(w.set, oldest)
	}
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
