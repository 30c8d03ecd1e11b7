package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"prophecywatch/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func countingCompute(calls *atomic.Int32, value []string) cache.ComputeFunc[[]string] {
	return func(ctx context.Context) ([]string, error) {
		calls.Add(1)
		return value, nil
	}
}

func TestGetOrComputeFreshness(t *testing.T) {
	clock := newFakeClock()
	c := cache.New[[]string](600*time.Second, cache.WithClock(clock.Now))
	ctx := context.Background()

	var calls atomic.Int32
	compute := countingCompute(&calls, []string{"a", "b"})

	value, err := c.GetOrCompute(ctx, "ALL_NEWS", compute)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, value)
	assert.Equal(t, int32(1), calls.Load())

	// Within the TTL the stored value is served without recomputing
	clock.Advance(599 * time.Second)
	_, err = c.GetOrCompute(ctx, "ALL_NEWS", compute)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	// At the TTL boundary the entry is expired and recomputed exactly once
	clock.Advance(time.Second)
	_, err = c.GetOrCompute(ctx, "ALL_NEWS", compute)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())

	_, err = c.GetOrCompute(ctx, "ALL_NEWS", compute)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetOrComputeStoresEmptyResults(t *testing.T) {
	c := cache.New[[]string](time.Minute)

	var calls atomic.Int32
	compute := countingCompute(&calls, []string{})

	for i := 0; i < 3; i++ {
		value, err := c.GetOrCompute(context.Background(), "k", compute)
		require.NoError(t, err)
		assert.Empty(t, value)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetOrComputeSingleFlight(t *testing.T) {
	c := cache.New[[]string](time.Minute)

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(ctx context.Context) ([]string, error) {
		calls.Add(1)
		<-release
		return []string{"shared"}, nil
	}

	const callers = 20
	var wg sync.WaitGroup
	results := make([][]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			value, err := c.GetOrCompute(context.Background(), "k", compute)
			assert.NoError(t, err)
			results[i] = value
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, []string{"shared"}, r)
	}
}

func TestGetOrComputeErrorIsNotCached(t *testing.T) {
	c := cache.New[[]string](time.Minute)
	boom := errors.New("boom")

	var calls atomic.Int32
	failing := func(ctx context.Context) ([]string, error) {
		calls.Add(1)
		return nil, boom
	}

	_, err := c.GetOrCompute(context.Background(), "k", failing)
	assert.ErrorIs(t, err, boom)

	_, ok := c.Get("k")
	assert.False(t, ok)

	value, err := c.GetOrCompute(context.Background(), "k", countingCompute(&calls, []string{"ok"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, value)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetOrComputeRecoversPanic(t *testing.T) {
	c := cache.New[[]string](time.Minute)

	_, err := c.GetOrCompute(context.Background(), "k", func(ctx context.Context) ([]string, error) {
		panic("corrupt state")
	})
	assert.ErrorIs(t, err, cache.ErrComputePanic)
	assert.Contains(t, err.Error(), "corrupt state")

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestGetOrComputeCallerCancellation(t *testing.T) {
	c := cache.New[[]string](time.Minute)

	release := make(chan struct{})
	done := make(chan struct{})
	compute := func(ctx context.Context) ([]string, error) {
		defer close(done)
		<-release
		// The computation context is not cancelled with the caller
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return []string{"late"}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.GetOrCompute(ctx, "k", compute)
		errCh <- err
	}()

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	close(release)
	<-done

	assert.Eventually(t, func() bool {
		value, ok := c.Get("k")
		return ok && len(value) == 1 && value[0] == "late"
	}, time.Second, 10*time.Millisecond)
}

func TestSetGetInvalidate(t *testing.T) {
	clock := newFakeClock()
	c := cache.New[int](time.Minute, cache.WithClock(clock.Now))

	_, ok := c.Get("k")
	assert.False(t, ok)

	c.Set("k", 42)
	value, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 42, value)

	c.Invalidate("k")
	_, ok = c.Get("k")
	assert.False(t, ok)

	c.Set("k", 7)
	clock.Advance(time.Minute)
	_, ok = c.Get("k")
	assert.False(t, ok)

	assert.Equal(t, time.Minute, c.TTL())
}
