package locks

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockSerializesPerResource(t *testing.T) {
	m := NewManager()

	var (
		mu      sync.Mutex
		current int
		max     int
		wg      sync.WaitGroup
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock("conversation-a")
			defer unlock()

			mu.Lock()
			current++
			if current > max {
				max = current
			}
			mu.Unlock()

			mu.Lock()
			current--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, max, "at most one holder per resource")
}

func TestLockIndependentResources(t *testing.T) {
	m := NewManager()

	unlockA := m.Lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := m.Lock("b")
		unlockB()
		close(done)
	}()
	<-done
	unlockA()

	assert.Equal(t, 2, m.Len())
}

func TestEvict(t *testing.T) {
	m := NewManager()
	unlock := m.Lock("a")
	unlock()

	m.Evict("a")
	assert.Equal(t, 0, m.Len())

	// A new lock for the same ID works after eviction.
	unlock = m.Lock("a")
	unlock()
}
