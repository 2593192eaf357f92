package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCachesWithinTTL(t *testing.T) {
	c := New()
	calls := 0
	fetch := func(ctx context.Context) (any, error) {
		calls++
		return "value", nil
	}

	v, err := c.Get(context.Background(), "k", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, "value", v)

	v, err = c.Get(context.Background(), "k", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, "value", v)
	assert.Equal(t, 1, calls)
}

func TestGetRefetchesAfterTTL(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)
	c := New()
	c.now = func() time.Time { return at }

	calls := 0
	fetch := func(ctx context.Context) (any, error) {
		calls++
		return calls, nil
	}

	_, err := c.Get(context.Background(), "k", time.Minute, fetch)
	require.NoError(t, err)

	at = at.Add(2 * time.Minute)
	v, err := c.Get(context.Background(), "k", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, 2, calls)
}

func TestGetStampedeSharesOneFetch(t *testing.T) {
	c := New()

	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-release
		return "shared", nil
	}

	const n = 20
	var wg sync.WaitGroup
	results := make([]any, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Get(context.Background(), "hot", time.Minute, fetch)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	// Give the goroutines time to pile up behind the flight leader.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "concurrent misses must share one fetch")
	for _, v := range results {
		assert.Equal(t, "shared", v)
	}
}

func TestGetFetchErrorNotCached(t *testing.T) {
	c := New()
	boom := errors.New("upstream down")

	calls := 0
	_, err := c.Get(context.Background(), "k", time.Minute, func(ctx context.Context) (any, error) {
		calls++
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	v, err := c.Get(context.Background(), "k", time.Minute, func(ctx context.Context) (any, error) {
		calls++
		return "recovered", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", v)
	assert.Equal(t, 2, calls, "a failed fetch must not poison the cache")
}

func TestInvalidate(t *testing.T) {
	c := New()
	calls := 0
	fetch := func(ctx context.Context) (any, error) {
		calls++
		return calls, nil
	}

	_, err := c.Get(context.Background(), "k", time.Minute, fetch)
	require.NoError(t, err)

	c.Invalidate("k")

	v, err := c.Get(context.Background(), "k", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestSweepDropsOldEntries(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)
	c := New()
	c.now = func() time.Time { return at }

	fetch := func(ctx context.Context) (any, error) { return "v", nil }
	_, err := c.Get(context.Background(), "old", time.Minute, fetch)
	require.NoError(t, err)

	at = at.Add(10 * time.Minute)
	_, err = c.Get(context.Background(), "fresh", time.Minute, fetch)
	require.NoError(t, err)

	dropped := c.Sweep(5 * time.Minute)
	assert.Equal(t, 1, dropped)

	_, ok := c.fresh("fresh", time.Minute)
	assert.True(t, ok)
}
