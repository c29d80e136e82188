package storefront

import (
	"context"
	"slices"
	"sync"
)

// Warmer loads one entity type into the cache ahead of use
type Warmer interface {
	// Name returns the entity type name (e.g., "products", "categories")
	Name() string

	// Warm fetches the entity from the data source and stores it in the cache
	Warm(ctx context.Context) error
}

type warmerFunc struct {
	name string
	fn   func(ctx context.Context) error
}

func (w warmerFunc) Name() string                   { return w.name }
func (w warmerFunc) Warm(ctx context.Context) error { return w.fn(ctx) }

// NewWarmer adapts a function to the Warmer interface
func NewWarmer(name string, fn func(ctx context.Context) error) Warmer {
	return warmerFunc{name: name, fn: fn}
}

// Warmers returns the entity types of c that can be preloaded without
// caller-specific parameters
func (c *Catalog) Warmers() []Warmer {
	return []Warmer{
		NewWarmer(EntityProducts, func(ctx context.Context) error {
			_, err := c.Products(ctx, true)
			return err
		}),
		NewWarmer(EntityCategories, func(ctx context.Context) error {
			_, err := c.Categories(ctx, true)
			return err
		}),
	}
}

// Registry manages the preloadable entity types
type Registry struct {
	mu      sync.RWMutex
	warmers map[string]Warmer
}

// NewRegistry creates a registry holding ws
func NewRegistry(ws ...Warmer) *Registry {
	r := &Registry{warmers: make(map[string]Warmer)}
	for _, w := range ws {
		r.Register(w)
	}
	return r
}

// Register adds a warmer, replacing any previous one with the same name
func (r *Registry) Register(w Warmer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warmers[w.Name()] = w
}

// Get retrieves a warmer by entity name
func (r *Registry) Get(name string) (Warmer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.warmers[name]
	return w, ok
}

// List returns all registered entity names, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.warmers))
	for name := range r.warmers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
