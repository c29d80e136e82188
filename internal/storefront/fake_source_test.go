package storefront

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/briangreenhill/storefront/cache"
	"github.com/briangreenhill/storefront/internal/source"
)

// fakeSource is an in-memory source.Source that records every query
type fakeSource struct {
	mu      sync.Mutex
	rows    map[string][]any
	errs    map[string]error
	queries []source.Query
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		rows: make(map[string][]any),
		errs: make(map[string]error),
	}
}

func (f *fakeSource) setRows(table string, rows ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[table] = rows
}

func (f *fakeSource) setErr(table string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[table] = err
}

func (f *fakeSource) calls(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, q := range f.queries {
		if q.Table == table {
			n++
		}
	}
	return n
}

func (f *fakeSource) lastQuery() source.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[len(f.queries)-1]
}

func (f *fakeSource) Fetch(ctx context.Context, q source.Query) ([]source.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queries = append(f.queries, q)
	if err := f.errs[q.Table]; err != nil {
		return nil, err
	}

	rows := f.rows[q.Table]
	if q.Limit > 0 {
		start := min(q.Offset, len(rows))
		end := min(q.Offset+q.Limit, len(rows))
		rows = rows[start:end]
	}

	records := make([]source.Record, 0, len(rows))
	for _, r := range rows {
		b, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		records = append(records, b)
	}
	return records, nil
}

func makeOrders(userID string, n int) []any {
	base := time.Date(2024, 8, 19, 7, 0, 0, 0, time.UTC)
	orders := make([]any, n)
	for i := range orders {
		orders[i] = Order{
			ID:        fmt.Sprintf("o%02d", i),
			UserID:    userID,
			Status:    "paid",
			Total:     float64(i),
			CreatedAt: base.Add(-time.Duration(i) * time.Hour),
			Items: []OrderItem{
				{ID: fmt.Sprintf("i%02d", i), OrderID: fmt.Sprintf("o%02d", i), ProductID: "p1", Quantity: 1, Price: float64(i)},
			},
		}
	}
	return orders
}

func orderIDs(orders []Order) []string {
	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	return ids
}

type testEnv struct {
	src     *fakeSource
	cache   *cache.MemoryCache
	catalog *Catalog
}

func newTestEnv() *testEnv {
	src := newFakeSource()
	c := cache.NewMemory()
	return &testEnv{
		src:     src,
		cache:   c,
		catalog: NewCatalog(src, cache.NewLoader(c), TTLs{}, zerolog.Nop()),
	}
}
