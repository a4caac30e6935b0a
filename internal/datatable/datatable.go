// Package datatable implements the server side of the client-driven
// table-widget query protocol: free-text filtering, per-column
// ordering and pagination over a declaratively mapped column set.
package datatable

import (
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"bilancio/internal/storage"
)

// Column maps a numeric datatable index onto either an underlying SQL
// expression (searchable and orderable) or a display-only label that
// exists purely for index bookkeeping ("Options" and friends).
type Column struct {
	Expr  string
	Label string
}

// Col declares a queryable column.
func Col(expr string) Column { return Column{Expr: expr} }

// Label declares a display-only column.
func Label(name string) Column { return Column{Label: name} }

// Columns is the per-resource index map driving the engine.
type Columns map[int]Column

// Request carries the parsed protocol parameters of one datatable
// query.
type Request struct {
	Draw          *int // echoed back incremented, nil when absent
	PageLength    int
	Start         int
	OrderedColumn *int
	OrderDir      string
	SearchValue   string

	searchable map[int]bool
	orderable  map[int]bool
}

// Parse reads the datatable protocol parameters from a query string.
// Per-column searchable/orderable flags are scanned from index 0
// upward; the first missing index stops the scan, so flags past a gap
// are invisible.
func Parse(values url.Values) Request {
	req := Request{
		PageLength:  10,
		OrderDir:    "asc",
		SearchValue: values.Get("search[value]"),
		searchable:  make(map[int]bool),
		orderable:   make(map[int]bool),
	}

	if v, err := strconv.Atoi(values.Get("length")); err == nil {
		req.PageLength = v
	}
	if v, err := strconv.Atoi(values.Get("start")); err == nil {
		req.Start = v
	}
	if v, err := strconv.Atoi(values.Get("draw")); err == nil {
		draw := v + 1
		req.Draw = &draw
	}
	if v, err := strconv.Atoi(values.Get("order[0][column]")); err == nil {
		req.OrderedColumn = &v
	}
	if v := values.Get("order[0][dir]"); v != "" {
		req.OrderDir = v
	}

	for i := 0; ; i++ {
		searchableKey := "columns[" + strconv.Itoa(i) + "][searchable]"
		orderableKey := "columns[" + strconv.Itoa(i) + "][orderable]"
		if !values.Has(searchableKey) || !values.Has(orderableKey) {
			break
		}
		req.searchable[i] = values.Get(searchableKey) == "true"
		req.orderable[i] = values.Get(orderableKey) == "true"
	}

	return req
}

// Searchable reports the parsed searchable flag for a column index.
func (r Request) Searchable(i int) bool { return r.searchable[i] }

// Orderable reports the parsed orderable flag for a column index.
func (r Request) Orderable(i int) bool { return r.orderable[i] }

// Apply layers the request's filter and order onto a base query.
//
// Filtering casts every searchable queryable column to text and tests
// case-sensitive substring containment (instr rather than LIKE, which
// SQLite treats case-insensitively), ORing the per-column tests. With
// no searchable column the search term is silently ignored. Ordering
// applies only when the ordered column's orderable flag is set and it
// maps to a real column; otherwise the base query's ordering stands.
func (r Request) Apply(cols Columns, q *storage.SelectQuery) {
	if r.SearchValue != "" {
		indexes := make([]int, 0, len(cols))
		for i := range cols {
			indexes = append(indexes, i)
		}
		sort.Ints(indexes)

		var conds []string
		var args []any
		for _, i := range indexes {
			c := cols[i]
			if c.Expr == "" || !r.searchable[i] {
				continue
			}
			conds = append(conds, "instr(CAST("+c.Expr+" AS TEXT), ?) > 0")
			args = append(args, r.SearchValue)
		}
		if len(conds) > 0 {
			q.AndWhere("("+strings.Join(conds, " OR ")+")", args...)
		}
	}

	if r.OrderedColumn != nil && r.orderable[*r.OrderedColumn] {
		if c, ok := cols[*r.OrderedColumn]; ok && c.Expr != "" {
			dir := " ASC"
			if r.OrderDir == "desc" {
				dir = " DESC"
			}
			q.OrderBy = c.Expr + dir
		}
	}
}

// Page converts the zero-based start offset into the 1-based page
// number expected by the pagination primitive. A non-positive page
// length always lands on page 1 (the caller returns all records).
func (r Request) Page() int {
	if r.PageLength <= 0 {
		return 1
	}
	return (r.Start + 2*r.PageLength - 1) / r.PageLength // ceil((start+length)/length)
}

// Envelope is the response body wrapper of the datatable protocol.
//
// RecordsFiltered is left at its zero default rather than the true
// post-filter count; table widgets using it will treat filtered
// result sets as empty. Kept for wire compatibility.
type Envelope struct {
	Draw            *int `json:"draw,omitempty"`
	RecordsTotal    int  `json:"recordsTotal"`
	RecordsFiltered int  `json:"recordsFiltered"`
	Data            any  `json:"data"`
}

// NewEnvelope wraps serialized items with the request's echoed draw
// counter. A negative total falls back to the number of items.
func (r Request) NewEnvelope(data any, total int) Envelope {
	if total < 0 {
		total = dataLen(data)
	}
	return Envelope{Draw: r.Draw, RecordsTotal: total, Data: data}
}

func dataLen(data any) int {
	v := reflect.ValueOf(data)
	switch v.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return v.Len()
	default:
		return 0
	}
}
