package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SelectQuery is a composable SELECT statement. Handlers build a base
// query, the datatable engine layers filter and order clauses on top,
// and Paginate executes it with a total count.
type SelectQuery struct {
	Columns string
	From    string
	Joins   []string
	Where   []string // conditions combined with AND
	Args    []any
	GroupBy string
	OrderBy string
}

// AndWhere appends a condition (ANDed with the existing ones).
func (q *SelectQuery) AndWhere(cond string, args ...any) {
	q.Where = append(q.Where, cond)
	q.Args = append(q.Args, args...)
}

// SQL renders the full SELECT statement.
func (q SelectQuery) SQL() string {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(q.Columns)
	b.WriteString(" FROM ")
	b.WriteString(q.From)
	for _, j := range q.Joins {
		b.WriteString(" ")
		b.WriteString(j)
	}
	if len(q.Where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(q.Where, " AND "))
	}
	if q.GroupBy != "" {
		b.WriteString(" GROUP BY ")
		b.WriteString(q.GroupBy)
	}
	if q.OrderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(q.OrderBy)
	}
	return b.String()
}

// Count returns the number of rows the query matches, ignoring
// ordering and pagination.
func (r *Repository) Count(ctx context.Context, q SelectQuery) (int, error) {
	counted := q
	counted.OrderBy = ""

	var total int
	stmt := fmt.Sprintf("SELECT COUNT(*) FROM (%s)", counted.SQL())
	if err := r.db.QueryRowContext(ctx, stmt, counted.Args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return total, nil
}

// Paginate executes q for the given 1-based page, invoking scan once
// per row, and returns the total matching row count (pre-pagination).
// A non-positive perPage returns every matching row on page 1.
func (r *Repository) Paginate(ctx context.Context, q SelectQuery, page, perPage int, scan func(*sql.Rows) error) (int, error) {
	total, err := r.Count(ctx, q)
	if err != nil {
		return 0, err
	}

	if perPage <= 0 {
		perPage = total
		page = 1
	}
	if page < 1 {
		page = 1
	}

	stmt := q.SQL() + " LIMIT ? OFFSET ?"
	args := append(append([]any{}, q.Args...), perPage, (page-1)*perPage)

	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("paginate query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return 0, err
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("paginate rows: %w", err)
	}
	return total, nil
}
