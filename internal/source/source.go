// Package source contains the data source implementations the storefront
// fetches its records from: Postgres, SQLite and a PostgREST-compatible REST API.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

var (
	ErrUnknownTable  = errors.New("unknown table")
	ErrUnknownColumn = errors.New("unknown column")
)

// Record is a single row as a JSON object, relations embedded as arrays
type Record = json.RawMessage

// Filter restricts a query to rows where Column equals Value
type Filter struct {
	Column string
	Value  string
}

// Order sorts a query by Column
type Order struct {
	Column string
	Desc   bool
}

// Query describes a fetch against one table
type Query struct {
	Table   string
	Filters []Filter
	Order   *Order
	// Embed names related tables whose rows are nested into each record
	Embed []string
	// Offset is only applied together with a non-zero Limit
	Offset int
	// Limit of zero means no limit
	Limit int
}

// Source defines the interface that all data sources must implement
type Source interface {
	// Fetch returns the rows matching q in the requested order
	Fetch(ctx context.Context, q Query) ([]Record, error)
}

type relation struct {
	table      string
	foreignKey string
}

type table struct {
	columns   []string
	relations map[string]relation
}

// tables is the schema every source agrees on. Queries naming anything
// outside it are rejected before any I/O.
var tables = map[string]table{
	"products": {
		columns: []string{"id", "name", "description", "price", "image_url", "category_id", "stock", "created_at"},
	},
	"categories": {
		columns: []string{"id", "name", "slug", "description", "created_at"},
	},
	"orders": {
		columns: []string{"id", "user_id", "status", "total", "created_at"},
		relations: map[string]relation{
			"order_items": {table: "order_items", foreignKey: "order_id"},
		},
	},
	"order_items": {
		columns: []string{"id", "order_id", "product_id", "quantity", "price"},
	},
}

func (t table) hasColumn(name string) bool {
	return slices.Contains(t.columns, name)
}

// validate checks q against the schema and returns its table definition
func validate(q Query) (table, error) {
	t, ok := tables[q.Table]
	if !ok {
		return table{}, fmt.Errorf("%w: %q", ErrUnknownTable, q.Table)
	}
	for _, f := range q.Filters {
		if !t.hasColumn(f.Column) {
			return table{}, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, q.Table, f.Column)
		}
	}
	if q.Order != nil && !t.hasColumn(q.Order.Column) {
		return table{}, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, q.Table, q.Order.Column)
	}
	for _, e := range q.Embed {
		if _, ok := t.relations[e]; !ok {
			return table{}, fmt.Errorf("%w: %q embedded in %s", ErrUnknownTable, e, q.Table)
		}
	}
	if q.Offset < 0 || q.Limit < 0 {
		return table{}, fmt.Errorf("invalid range offset=%d limit=%d", q.Offset, q.Limit)
	}
	return t, nil
}
