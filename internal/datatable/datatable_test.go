package datatable

import (
	"net/url"
	"strings"
	"testing"

	"bilancio/internal/storage"
)

func params(pairs ...string) url.Values {
	v := url.Values{}
	for i := 0; i < len(pairs); i += 2 {
		v.Set(pairs[i], pairs[i+1])
	}
	return v
}

func TestParseDefaults(t *testing.T) {
	req := Parse(url.Values{})
	if req.PageLength != 10 || req.Start != 0 || req.Draw != nil {
		t.Fatalf("defaults: %+v", req)
	}
	if req.OrderedColumn != nil || req.OrderDir != "asc" || req.SearchValue != "" {
		t.Fatalf("defaults: %+v", req)
	}
}

func TestParseDrawEchoedIncremented(t *testing.T) {
	req := Parse(params("draw", "7"))
	if req.Draw == nil || *req.Draw != 8 {
		t.Fatalf("draw = %v", req.Draw)
	}
}

func TestParseColumnFlagScanStopsAtGap(t *testing.T) {
	v := params(
		"columns[0][searchable]", "true",
		"columns[0][orderable]", "false",
		"columns[1][searchable]", "false",
		"columns[1][orderable]", "true",
		// index 2 missing: index 3 must be invisible
		"columns[3][searchable]", "true",
		"columns[3][orderable]", "true",
	)
	req := Parse(v)
	if !req.Searchable(0) || req.Orderable(0) {
		t.Fatalf("column 0 flags wrong")
	}
	if req.Searchable(1) || !req.Orderable(1) {
		t.Fatalf("column 1 flags wrong")
	}
	if req.Searchable(3) || req.Orderable(3) {
		t.Fatalf("column 3 should be invisible past the gap")
	}
}

func testColumns() Columns {
	return Columns{
		0: Col("expenses.description"),
		1: Col("categories.name"),
		2: Label("Options"),
		3: Col("expenses.amount"),
	}
}

func baseQuery() storage.SelectQuery {
	q := storage.SelectQuery{Columns: "expenses.id", From: "expenses"}
	q.AndWhere("expenses.user_id = ?", int64(1))
	return q
}

func TestApplySearchBuildsORPredicate(t *testing.T) {
	req := Parse(params(
		"search[value]", "Lunch",
		"columns[0][searchable]", "true",
		"columns[0][orderable]", "false",
		"columns[1][searchable]", "true",
		"columns[1][orderable]", "false",
		"columns[2][searchable]", "true", // label column: excluded
		"columns[2][orderable]", "false",
		"columns[3][searchable]", "false",
		"columns[3][orderable]", "false",
	))

	q := baseQuery()
	req.Apply(testColumns(), &q)

	sql := q.SQL()
	if !strings.Contains(sql, "instr(CAST(expenses.description AS TEXT), ?) > 0 OR instr(CAST(categories.name AS TEXT), ?) > 0") {
		t.Fatalf("search predicate missing: %s", sql)
	}
	if strings.Contains(sql, "Options") {
		t.Fatalf("label column leaked into predicate: %s", sql)
	}
	if len(q.Args) != 3 { // user id + two search terms
		t.Fatalf("args = %v", q.Args)
	}
}

func TestApplySearchIgnoredWithoutSearchableColumns(t *testing.T) {
	req := Parse(params(
		"search[value]", "Lunch",
		"columns[0][searchable]", "false",
		"columns[0][orderable]", "false",
	))

	q := baseQuery()
	before := q.SQL()
	req.Apply(testColumns(), &q)
	if q.SQL() != before {
		t.Fatalf("query changed despite no searchable columns: %s", q.SQL())
	}
}

func TestApplyOrdering(t *testing.T) {
	req := Parse(params(
		"order[0][column]", "3",
		"order[0][dir]", "desc",
		"columns[0][searchable]", "false",
		"columns[0][orderable]", "false",
		"columns[1][searchable]", "false",
		"columns[1][orderable]", "false",
		"columns[2][searchable]", "false",
		"columns[2][orderable]", "false",
		"columns[3][searchable]", "false",
		"columns[3][orderable]", "true",
	))

	q := baseQuery()
	req.Apply(testColumns(), &q)
	if q.OrderBy != "expenses.amount DESC" {
		t.Fatalf("OrderBy = %q", q.OrderBy)
	}
}

func TestApplyOrderingColumnZero(t *testing.T) {
	req := Parse(params(
		"order[0][column]", "0",
		"columns[0][searchable]", "false",
		"columns[0][orderable]", "true",
	))

	q := baseQuery()
	req.Apply(testColumns(), &q)
	if q.OrderBy != "expenses.description ASC" {
		t.Fatalf("OrderBy = %q", q.OrderBy)
	}
}

func TestApplyOrderingSkippedWhenNotOrderable(t *testing.T) {
	req := Parse(params(
		"order[0][column]", "1",
		"order[0][dir]", "desc",
		"columns[0][searchable]", "false",
		"columns[0][orderable]", "false",
		"columns[1][searchable]", "false",
		"columns[1][orderable]", "false",
	))

	q := baseQuery()
	q.OrderBy = "expenses.timestamp DESC" // base ordering must survive
	req.Apply(testColumns(), &q)
	if q.OrderBy != "expenses.timestamp DESC" {
		t.Fatalf("OrderBy = %q", q.OrderBy)
	}
}

func TestPage(t *testing.T) {
	cases := []struct {
		start, length int
		want          int
	}{
		{0, 10, 1},
		{10, 10, 2},
		{30, 10, 4},
		{0, -1, 1},
		{50, -1, 1},
		{50, 0, 1},
	}
	for _, tc := range cases {
		req := Request{Start: tc.start, PageLength: tc.length}
		if got := req.Page(); got != tc.want {
			t.Fatalf("Page(start=%d, length=%d) = %d, want %d", tc.start, tc.length, got, tc.want)
		}
	}
}

func TestEnvelopeDefaults(t *testing.T) {
	draw := 3
	req := Request{Draw: &draw}

	env := req.NewEnvelope([]string{"a", "b"}, 42)
	if env.RecordsTotal != 42 || env.RecordsFiltered != 0 || *env.Draw != 3 {
		t.Fatalf("envelope = %+v", env)
	}

	env = Request{}.NewEnvelope([]string{"a", "b"}, -1)
	if env.RecordsTotal != 2 {
		t.Fatalf("recordsTotal fallback = %d", env.RecordsTotal)
	}
	if env.Draw != nil {
		t.Fatalf("draw should be omitted when absent")
	}
}
