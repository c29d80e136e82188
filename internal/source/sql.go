package source

import (
	"fmt"
	"strconv"
	"strings"
)

// dialect captures the JSON and placeholder syntax that differs between
// the SQL backends
type dialect struct {
	placeholder func(n int) string
	object      string
	// agg wraps a per-row JSON object expression into an array aggregate
	agg func(expr string) string
	// nest marks a JSON subquery result so it is embedded, not quoted
	nest func(expr string) string
}

var postgresDialect = dialect{
	placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	object:      "json_build_object",
	agg:         func(expr string) string { return "coalesce(json_agg(" + expr + "), '[]'::json)" },
	nest:        func(expr string) string { return expr },
}

var sqliteDialect = dialect{
	placeholder: func(int) string { return "?" },
	object:      "json_object",
	agg:         func(expr string) string { return "json_group_array(" + expr + ")" },
	nest:        func(expr string) string { return "json(" + expr + ")" },
}

// jsonObject renders the columns of alias as a JSON object expression
func (d dialect) jsonObject(alias string, columns []string, extra ...string) string {
	args := make([]string, 0, len(columns)*2+len(extra))
	for _, c := range columns {
		args = append(args, "'"+c+"'", alias+"."+c)
	}
	args = append(args, extra...)
	return d.object + "(" + strings.Join(args, ", ") + ")"
}

// buildSelect renders q as a statement returning one JSON object per row
func (d dialect) buildSelect(q Query) (string, []any, error) {
	t, err := validate(q)
	if err != nil {
		return "", nil, err
	}

	var extra []string
	for _, name := range q.Embed {
		rel := t.relations[name]
		child := tables[rel.table]
		sub := fmt.Sprintf("(SELECT %s FROM %s r WHERE r.%s = t.id)",
			d.agg(d.jsonObject("r", child.columns)), rel.table, rel.foreignKey)
		extra = append(extra, "'"+name+"'", d.nest(sub))
	}

	var (
		b    strings.Builder
		args []any
	)
	fmt.Fprintf(&b, "SELECT %s FROM %s t", d.jsonObject("t", t.columns, extra...), q.Table)

	for i, f := range q.Filters {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		args = append(args, f.Value)
		fmt.Fprintf(&b, "t.%s = %s", f.Column, d.placeholder(len(args)))
	}

	if q.Order != nil {
		dir := "ASC"
		if q.Order.Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&b, " ORDER BY t.%s %s", q.Order.Column, dir)
	}

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&b, " LIMIT %s", d.placeholder(len(args)))
		args = append(args, q.Offset)
		fmt.Fprintf(&b, " OFFSET %s", d.placeholder(len(args)))
	}

	return b.String(), args, nil
}
