package limiter

import (
	"context"
	"sync"
	"time"
)

// Limiter is an atomic increment-with-ceiling counter keyed by an opaque
// string (rule ID plus local date). TryConsume claims one slot and reports
// whether the claim fit under the limit. Claims are taken at match time, so
// a dispatch that later fails still counts against the budget.
type Limiter interface {
	TryConsume(ctx context.Context, key string, limit int) (bool, error)
}

type entry struct {
	count   int
	touched time.Time
}

// Memory is a mutex-serialized in-process limiter for single-node
// deployments and tests.
type Memory struct {
	mu     sync.Mutex
	counts map[string]*entry
}

func NewMemory() *Memory {
	return &Memory{counts: make(map[string]*entry)}
}

func (m *Memory) TryConsume(ctx context.Context, key string, limit int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.counts[key]
	if !ok {
		e = &entry{}
		m.counts[key] = e
	}
	if e.count >= limit {
		return false, nil
	}
	e.count++
	e.touched = time.Now()
	return true, nil
}

// Count returns the current counter value for a key.
func (m *Memory) Count(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.counts[key]; ok {
		return e.count
	}
	return 0
}

// Sweep evicts counters untouched for longer than maxAge and returns the
// number removed. Day-keyed counters roll over naturally; the sweep only
// bounds memory.
func (m *Memory) Sweep(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for key, e := range m.counts {
		if e.touched.Before(cutoff) {
			delete(m.counts, key)
			removed++
		}
	}
	return removed
}
