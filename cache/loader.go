package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// LoadFunc fetches the value for a key from the backing data source
type LoadFunc func(ctx context.Context) (any, error)

// Loader puts a Cache in front of a data source. Concurrent misses for the
// same key share a single call to the LoadFunc. Only successful loads are
// written back.
type Loader struct {
	cache Cache
	group singleflight.Group
}

// NewLoader creates a read-through loader over c
func NewLoader(c Cache) *Loader {
	return &Loader{cache: c}
}

// Get returns the cached value for key, or loads, stores and returns it on a miss
func (l *Loader) Get(ctx context.Context, key string, ttl time.Duration, load LoadFunc) (any, error) {
	if v, ok := l.cache.Get(key); ok {
		return v, nil
	}
	return l.do(ctx, key, key, ttl, load)
}

// Refresh always loads key from the data source and overwrites the cached
// value on success. Concurrent refreshes of the same key share one load;
// a refresh never joins a load started by Get.
func (l *Loader) Refresh(ctx context.Context, key string, ttl time.Duration, load LoadFunc) (any, error) {
	return l.do(ctx, "refresh:"+key, key, ttl, load)
}

func (l *Loader) do(ctx context.Context, flightKey, key string, ttl time.Duration, load LoadFunc) (any, error) {
	// The shared load outlives any single waiter; a cancelled caller only
	// stops waiting for it.
	loadCtx := context.WithoutCancel(ctx)
	ch := l.group.DoChan(flightKey, func() (any, error) {
		v, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		l.cache.Set(key, v, ttl)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}
