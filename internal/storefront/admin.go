package storefront

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/briangreenhill/storefront/cache"
)

// DefaultPreloadConcurrency bounds the number of warmers run at once
const DefaultPreloadConcurrency = 4

// ErrUnknownEntity is returned by Check for names with no registered warmer
var ErrUnknownEntity = errors.New("unknown entity")

// Admin is the cache administration surface used after mutations and at
// start-up
type Admin struct {
	cache    cache.Cache
	registry *Registry
	limit    int
	log      zerolog.Logger
}

// NewAdmin creates an admin over c; concurrency <= 0 uses the default
func NewAdmin(c cache.Cache, registry *Registry, concurrency int, log zerolog.Logger) *Admin {
	if concurrency <= 0 {
		concurrency = DefaultPreloadConcurrency
	}
	return &Admin{cache: c, registry: registry, limit: concurrency, log: log}
}

// Invalidate removes the entry for key, or every entry when key is empty
func (a *Admin) Invalidate(key string) {
	if key == "" {
		a.Clear()
		return
	}
	a.cache.Invalidate(key)
	a.log.Debug().Str("key", key).Msg("cache entry invalidated")
}

// Clear removes every cache entry
func (a *Admin) Clear() {
	a.cache.Clear()
	a.log.Debug().Msg("cache cleared")
}

// Entities lists the entity types Preload accepts
func (a *Admin) Entities() []string {
	return a.registry.List()
}

// Check reports the first name that Preload would skip
func (a *Admin) Check(entities ...string) error {
	for _, name := range entities {
		if _, ok := a.registry.Get(name); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownEntity, name)
		}
	}
	return nil
}

// Preload warms the named entity types concurrently. Each entity commits to
// the cache on its own; failures and unknown names are logged, never
// returned, and do not stop the other entities.
func (a *Admin) Preload(ctx context.Context, entities ...string) {
	var g errgroup.Group
	g.SetLimit(a.limit)

	for _, name := range entities {
		w, ok := a.registry.Get(name)
		if !ok {
			a.log.Warn().Str("entity", name).Msg("preload: unknown entity")
			continue
		}

		g.Go(func() error {
			start := time.Now()
			if err := w.Warm(ctx); err != nil {
				a.log.Warn().Err(err).Str("entity", name).Msg("preload failed")
				return nil
			}
			a.log.Debug().Str("entity", name).Dur("duration", time.Since(start)).Msg("preloaded")
			return nil
		})
	}

	_ = g.Wait()
}
