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

func TestLoader_MissLoadsAndStores(t *testing.T) {
	c := NewMemory()
	l := NewLoader(c)

	calls := 0
	v, err := l.Get(context.Background(), "products", time.Minute, func(ctx context.Context) (any, error) {
		calls++
		return []int{1, 2, 3}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, v)
	assert.Equal(t, 1, calls)

	cached, ok := c.Get("products")
	require.True(t, ok)
	assert.Equal(t, []int{1, 2, 3}, cached)
}

func TestLoader_HitSkipsLoad(t *testing.T) {
	c := NewMemory()
	c.Set("products", "cached", time.Minute)
	l := NewLoader(c)

	v, err := l.Get(context.Background(), "products", time.Minute, func(ctx context.Context) (any, error) {
		t.Fatal("load must not run on a cache hit")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "cached", v)
}

func TestLoader_FailureDoesNotPopulate(t *testing.T) {
	c := NewMemory()
	l := NewLoader(c)

	boom := errors.New("boom")
	_, err := l.Get(context.Background(), "categories", time.Minute, func(ctx context.Context) (any, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())
}

func TestLoader_RefreshBypassesHit(t *testing.T) {
	c := NewMemory()
	c.Set("products", "old", time.Minute)
	l := NewLoader(c)

	v, err := l.Refresh(context.Background(), "products", time.Minute, func(ctx context.Context) (any, error) {
		return "new", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "new", v)

	cached, _ := c.Get("products")
	assert.Equal(t, "new", cached)
}

func TestLoader_RefreshFailureKeepsOldEntry(t *testing.T) {
	c := NewMemory()
	c.Set("products", "old", time.Minute)
	l := NewLoader(c)

	_, err := l.Refresh(context.Background(), "products", time.Minute, func(ctx context.Context) (any, error) {
		return nil, errors.New("down")
	})
	require.Error(t, err)

	cached, ok := c.Get("products")
	require.True(t, ok)
	assert.Equal(t, "old", cached)
}

func TestLoader_ConcurrentMissesShareOneLoad(t *testing.T) {
	l := NewLoader(NewMemory())

	var calls atomic.Int32
	release := make(chan struct{})
	load := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-release
		return "v", nil
	}

	const waiters = 10
	var wg sync.WaitGroup
	var started sync.WaitGroup
	results := make([]any, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		started.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			v, err := l.Get(context.Background(), "products", time.Minute, load)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	started.Wait()
	// give every goroutine a chance to join the in-flight load
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, "v", v)
	}
}

func TestLoader_CancelledWaiterDoesNotAbortLoad(t *testing.T) {
	c := NewMemory()
	l := NewLoader(c)

	release := make(chan struct{})
	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		defer close(done)
		_, err := l.Get(ctx, "products", time.Minute, func(ctx context.Context) (any, error) {
			<-release
			return "late", ctx.Err()
		})
		assert.ErrorIs(t, err, context.Canceled)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	<-done
	close(release)

	require.Eventually(t, func() bool {
		v, ok := c.Get("products")
		return ok && v == "late"
	}, time.Second, 5*time.Millisecond)
}
