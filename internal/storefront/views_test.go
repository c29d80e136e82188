package storefront

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briangreenhill/storefront/cache"
)

func TestViewStore_SameVisitorSameViews(t *testing.T) {
	env := newTestEnv()
	store := NewViewStore(env.catalog, 10, time.Minute, zerolog.Nop())

	a := store.Get("v1")
	assert.Same(t, a, store.Get("v1"))
	assert.Same(t, a.Orders("u1"), a.Orders("u1"))
	assert.NotSame(t, a.Orders("u1"), a.Orders("u2"))

	assert.NotSame(t, a, store.Get("v2"))
	assert.Equal(t, 2, store.Len())
}

func TestViewStore_FailedRefetchKeepsVisitorData(t *testing.T) {
	env := newTestEnv()
	env.src.setRows("products", Product{ID: "p1", Name: "Runner"})
	store := NewViewStore(env.catalog, 10, time.Minute, zerolog.Nop())
	ctx := context.Background()

	require.Len(t, store.Get("v1").Products.Load(ctx).Data, 1)

	env.src.setErr("products", errors.New("down"))
	s := store.Get("v1").Products.Refetch(ctx)
	assert.Equal(t, StatusError, s.Status)
	assert.Len(t, s.Data, 1)
}

func TestViewStore_OrdersAccumulateAcrossCalls(t *testing.T) {
	env := newTestEnv()
	env.src.setRows("orders", makeOrders("u1", 15)...)
	store := NewViewStore(env.catalog, 10, time.Minute, zerolog.Nop())
	ctx := context.Background()

	store.Get("v1").Orders("u1").LoadMore(ctx)
	s := store.Get("v1").Orders("u1").LoadMore(ctx)
	assert.Len(t, s.Data, 15)
	assert.False(t, s.HasMore)
}

func TestViewStore_IdleVisitorsExpire(t *testing.T) {
	now := time.Date(2024, 8, 19, 7, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	env := newTestEnv()
	store := NewViewStore(env.catalog, 10, time.Minute, zerolog.Nop(), cache.WithClock(clock))

	first := store.Get("v1")
	store.Get("v2")

	now = now.Add(50 * time.Second)
	assert.Same(t, first, store.Get("v1"), "access restarts the idle timer")

	now = now.Add(50 * time.Second)
	store.Get("v3")
	assert.Equal(t, 2, store.Len(), "idle v2 purged when v3 arrives")
	assert.Same(t, first, store.Get("v1"))

	store.Forget("v1")
	assert.NotSame(t, first, store.Get("v1"))
}
