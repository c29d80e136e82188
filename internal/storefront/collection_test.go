package storefront

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollection_InitialStateIdle(t *testing.T) {
	env := newTestEnv()
	products := NewProducts(env.catalog, zerolog.Nop())

	s := products.State()
	assert.Equal(t, StatusIdle, s.Status)
	assert.False(t, s.Loading)
	assert.Empty(t, s.Data)
	assert.Equal(t, 0, env.src.calls("products"))
}

func TestCollection_LoadThenHit(t *testing.T) {
	env := newTestEnv()
	env.src.setRows("products", Product{ID: "p1"}, Product{ID: "p2"})
	ctx := context.Background()

	first := NewProducts(env.catalog, zerolog.Nop())
	s := first.Load(ctx)
	assert.Equal(t, StatusReady, s.Status)
	assert.False(t, s.Loading)
	assert.Len(t, s.Data, 2)

	// a second view over the same cache is served without a fetch
	second := NewProducts(env.catalog, zerolog.Nop())
	s = second.Load(ctx)
	assert.Len(t, s.Data, 2)
	assert.Equal(t, 1, env.src.calls("products"))
}

func TestCollection_RefetchAlwaysFetches(t *testing.T) {
	env := newTestEnv()
	env.src.setRows("categories", Category{ID: "c1"})
	ctx := context.Background()

	categories := NewCategories(env.catalog, zerolog.Nop())
	categories.Load(ctx)
	categories.Refetch(ctx)
	categories.Refetch(ctx)

	assert.Equal(t, 3, env.src.calls("categories"))
}

func TestCollection_ErrorKeepsDataAndIsNotTerminal(t *testing.T) {
	env := newTestEnv()
	env.src.setRows("products", Product{ID: "p1"})
	ctx := context.Background()

	products := NewProducts(env.catalog, zerolog.Nop())
	require.Len(t, products.Load(ctx).Data, 1)

	env.src.setErr("products", errors.New("upstream unavailable"))
	s := products.Refetch(ctx)
	assert.Equal(t, StatusError, s.Status)
	assert.Contains(t, s.Error, "upstream unavailable")
	assert.Len(t, s.Data, 1, "failed refetch must not clear data")
	assert.False(t, s.Loading)

	env.src.setErr("products", nil)
	env.src.setRows("products", Product{ID: "p1"}, Product{ID: "p2"})
	s = products.Refetch(ctx)
	assert.Equal(t, StatusReady, s.Status)
	assert.Empty(t, s.Error)
	assert.Len(t, s.Data, 2)
}

func TestCollection_SupersededFetchIsDropped(t *testing.T) {
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex
	fetch := func(ctx context.Context, force bool) ([]string, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			<-release
			return []string{"stale"}, nil
		}
		return []string{"fresh"}, nil
	}
	c := NewCollection[string]("words", fetch, zerolog.Nop())

	done := make(chan State[string])
	go func() { done <- c.Load(context.Background()) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 1
	}, time.Second, time.Millisecond)

	s := c.Refetch(context.Background())
	assert.Equal(t, []string{"fresh"}, s.Data)

	close(release)
	<-done
	assert.Equal(t, []string{"fresh"}, c.State().Data)
}

func TestCollection_StateIsACopy(t *testing.T) {
	env := newTestEnv()
	env.src.setRows("products", Product{ID: "p1"})

	products := NewProducts(env.catalog, zerolog.Nop())
	s := products.Load(context.Background())
	s.Data[0].ID = "mutated"

	assert.Equal(t, "p1", products.State().Data[0].ID)
	cached, err := env.catalog.Products(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "p1", cached[0].ID)
}
