package pool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// maxTracker records the highest number of simultaneous callers.
type maxTracker struct {
	current atomic.Int32
	max     atomic.Int32
}

func (m *maxTracker) enter() {
	cur := m.current.Add(1)
	for {
		max := m.max.Load()
		if cur <= max || m.max.CompareAndSwap(max, cur) {
			break
		}
	}
}

func (m *maxTracker) exit() { m.current.Add(-1) }

func TestPoolBoundsConcurrency(t *testing.T) {
	const fetchWidth, extractWidth = 4, 2

	limiter, err := New(fetchWidth, extractWidth)
	require.NoError(t, err)
	defer limiter.Release()

	var fetch, extract maxTracker
	var wg sync.WaitGroup

	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = limiter.RunFetch(func() {
				fetch.enter()
				defer fetch.exit()
				time.Sleep(2 * time.Millisecond)
			})
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = limiter.RunExtract(func() {
				extract.enter()
				defer extract.exit()
				time.Sleep(2 * time.Millisecond)
			})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, int(fetch.max.Load()), fetchWidth)
	assert.LessOrEqual(t, int(extract.max.Load()), extractWidth)
}

func TestRunWaitsForCompletion(t *testing.T) {
	limiter, err := New(1, 1)
	require.NoError(t, err)
	defer limiter.Release()

	ran := false
	require.NoError(t, limiter.RunFetch(func() {
		time.Sleep(time.Millisecond)
		ran = true
	}))
	assert.True(t, ran, "RunFetch should not return before the task finishes")
}

func TestWidthsClampedToOne(t *testing.T) {
	limiter, err := New(0, -3)
	require.NoError(t, err)
	defer limiter.Release()

	assert.Equal(t, 1, limiter.FetchWidth())
	assert.Equal(t, 1, limiter.ExtractWidth())
}

func TestRunAfterRelease(t *testing.T) {
	limiter, err := New(1, 1)
	require.NoError(t, err)
	limiter.Release()

	assert.Error(t, limiter.RunExtract(func() {}))
}
