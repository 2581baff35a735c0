// Package locks provides per-recipient mutual exclusion so dispatch for
// a single conversation stays serialized even when a shard holds
// multiple recipients.
package locks

import "sync"

// Manager hands out one mutex per resource ID. The inner map is only
// mutated under the manager mutex.
type Manager struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for resourceID and returns the function that
// releases it. Callers are expected to defer the release.
func (m *Manager) Lock(resourceID string) (unlock func()) {
	m.mu.Lock()
	l, ok := m.locks[resourceID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[resourceID] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Evict drops the mutex for resourceID from the table. Safe to call
// while the mutex is held; holders keep their reference. Long-running
// processes can call this to bound memory.
func (m *Manager) Evict(resourceID string) {
	m.mu.Lock()
	delete(m.locks, resourceID)
	m.mu.Unlock()
}

// Len returns the number of tracked resources.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
