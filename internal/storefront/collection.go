package storefront

import (
	"context"
	"slices"
	"sync"

	"github.com/rs/zerolog"
)

// Status is the lifecycle position of a view
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// State is what a view exposes to its caller
type State[T any] struct {
	Data    []T    `json:"data"`
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
	Status  Status `json:"status"`
}

// FetchFunc loads a whole collection; force bypasses a cache hit
type FetchFunc[T any] func(ctx context.Context, force bool) ([]T, error)

// Collection is a cached view over a non-paginated entity such as products
// or categories. Failures are recorded in the state, never returned, and
// leave previously loaded data in place.
type Collection[T any] struct {
	name  string
	fetch FetchFunc[T]
	log   zerolog.Logger

	mu    sync.Mutex
	state State[T]
	// gen identifies the most recently issued fetch; older results are dropped
	gen uint64
}

// NewCollection creates an idle view
func NewCollection[T any](name string, fetch FetchFunc[T], log zerolog.Logger) *Collection[T] {
	return &Collection[T]{
		name:  name,
		fetch: fetch,
		log:   log.With().Str("entity", name).Logger(),
		state: State[T]{Status: StatusIdle},
	}
}

// NewProducts creates a products view backed by c
func NewProducts(c *Catalog, log zerolog.Logger) *Collection[Product] {
	return NewCollection[Product](EntityProducts, c.Products, log)
}

// NewCategories creates a categories view backed by c
func NewCategories(c *Catalog, log zerolog.Logger) *Collection[Category] {
	return NewCollection[Category](EntityCategories, c.Categories, log)
}

// Load serves from the cache when fresh and fetches otherwise
func (c *Collection[T]) Load(ctx context.Context) State[T] {
	return c.run(ctx, false)
}

// Refetch always fetches from the data source and overwrites the cache entry
func (c *Collection[T]) Refetch(ctx context.Context) State[T] {
	return c.run(ctx, true)
}

// State returns a snapshot of the current state
func (c *Collection[T]) State() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

func (c *Collection[T]) run(ctx context.Context, force bool) State[T] {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.state.Loading = true
	c.state.Status = StatusLoading
	c.mu.Unlock()

	items, err := c.fetch(ctx, force)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		// superseded by a later Load/Refetch, which owns the state now
		return c.snapshot()
	}

	c.state.Loading = false
	if err != nil {
		c.log.Warn().Err(err).Msg("fetch failed")
		c.state.Error = err.Error()
		c.state.Status = StatusError
		return c.snapshot()
	}

	c.state.Data = items
	c.state.Error = ""
	c.state.Status = StatusReady
	return c.snapshot()
}

func (c *Collection[T]) snapshot() State[T] {
	s := c.state
	s.Data = slices.Clone(c.state.Data)
	return s
}
