package limiter

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTryConsume(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := m.TryConsume(ctx, "rule:2026-03-02", 3)
		require.NoError(t, err)
		assert.True(t, ok, "claim %d should fit under the limit", i+1)
	}

	ok, err := m.TryConsume(ctx, "rule:2026-03-02", 3)
	require.NoError(t, err)
	assert.False(t, ok, "fourth claim must be rejected")
	assert.Equal(t, 3, m.Count("rule:2026-03-02"), "rejected claim must not grow the counter")
}

func TestMemoryKeysAreIndependent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	ok, err := m.TryConsume(ctx, "rule:2026-03-02", 1)
	require.NoError(t, err)
	require.True(t, ok)

	// Same rule, next local day: fresh budget.
	ok, err = m.TryConsume(ctx, "rule:2026-03-03", 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryConcurrentClaims(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	const limit = 50
	const attempts = 200

	var granted int64
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := m.TryConsume(ctx, "rule:day", limit)
			assert.NoError(t, err)
			if ok {
				atomic.AddInt64(&granted, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(limit), granted, "exactly the limit may be granted under contention")
	assert.Equal(t, limit, m.Count("rule:day"))
}

func TestMemorySweep(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.TryConsume(ctx, "old", 10)
	require.NoError(t, err)

	assert.Equal(t, 0, m.Sweep(time.Hour), "fresh counters survive the sweep")
	assert.Equal(t, 1, m.Sweep(0), "aged-out counters are evicted")
	assert.Equal(t, 0, m.Count("old"))
}
