package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bilancio/internal/core"
)

// MonthCategoryTotal is one (category, month) spending bucket.
type MonthCategoryTotal struct {
	CategoryName string
	Color        string
	Month        time.Time // first instant of the bucket month
	Total        float64
}

// HistoryTotals sums the user's expenses per category and calendar
// month over an inclusive interval, ordered by category name.
func (r *Repository) HistoryTotals(ctx context.Context, userID int64, start, end time.Time) ([]MonthCategoryTotal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT categories.name, categories.color, strftime('%Y-%m', expenses.timestamp) AS month, SUM(expenses.amount)
		 FROM expenses
		 JOIN categories ON expenses.category_id = categories.id
		 WHERE expenses.user_id = ? AND expenses.timestamp >= ? AND expenses.timestamp <= ?
		 GROUP BY categories.id, month
		 ORDER BY categories.name`,
		userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("history totals: %w", err)
	}
	defer rows.Close()

	var out []MonthCategoryTotal
	for rows.Next() {
		var t MonthCategoryTotal
		var month string
		if err := rows.Scan(&t.CategoryName, &t.Color, &month, &t.Total); err != nil {
			return nil, fmt.Errorf("scan history total: %w", err)
		}
		m, err := time.Parse("2006-01", month)
		if err != nil {
			return nil, fmt.Errorf("parse bucket month %q: %w", month, err)
		}
		t.Month = m
		out = append(out, t)
	}
	return out, rows.Err()
}

// CategoryTotal is a category's spending sum over an interval.
type CategoryTotal struct {
	Name  string
	Color string
	Total float64
}

// IntervalTotals sums the user's expenses per category over an
// inclusive interval, largest first. categoryID 0 means no filter.
func (r *Repository) IntervalTotals(ctx context.Context, userID int64, start, end time.Time, categoryID int64) ([]CategoryTotal, error) {
	q := SelectQuery{
		Columns: "categories.name, categories.color, SUM(expenses.amount) AS total_amount",
		From:    "expenses",
		Joins:   []string{"JOIN categories ON expenses.category_id = categories.id"},
		GroupBy: "categories.id",
		OrderBy: "total_amount DESC",
	}
	q.AndWhere("expenses.user_id = ?", userID)
	q.AndWhere("expenses.timestamp >= ?", start)
	q.AndWhere("expenses.timestamp <= ?", end)
	if categoryID != 0 {
		q.AndWhere("expenses.category_id = ?", categoryID)
	}

	rows, err := r.db.QueryContext(ctx, q.SQL(), q.Args...)
	if err != nil {
		return nil, fmt.Errorf("interval totals: %w", err)
	}
	defer rows.Close()

	var out []CategoryTotal
	for rows.Next() {
		var t CategoryTotal
		if err := rows.Scan(&t.Name, &t.Color, &t.Total); err != nil {
			return nil, fmt.Errorf("scan interval total: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// BalanceRow is one category with its spending sum, for the balance
// datatable.
type BalanceRow struct {
	Category core.Category
	Spent    float64
}

// CategoriesBalanceQuery is the datatable base query summing the
// user's expenses per category over an interval. categoryID 0 means no
// filter.
func (r *Repository) CategoriesBalanceQuery(userID int64, start, end time.Time, categoryID int64) SelectQuery {
	q := SelectQuery{
		Columns: "categories.id, categories.name, categories.spending_limit, categories.color, categories.text_color, categories.active, categories.user_id, SUM(expenses.amount) AS total_amount",
		From:    "expenses",
		Joins:   []string{"JOIN categories ON expenses.category_id = categories.id"},
		GroupBy: "categories.id",
		OrderBy: "categories.name",
	}
	q.AndWhere("expenses.user_id = ?", userID)
	q.AndWhere("expenses.timestamp >= ?", start)
	q.AndWhere("expenses.timestamp <= ?", end)
	if categoryID != 0 {
		q.AndWhere("expenses.category_id = ?", categoryID)
	}
	return q
}

// ScanBalanceRow scans one balance-datatable row.
func ScanBalanceRow(rows *sql.Rows) (*BalanceRow, error) {
	var b BalanceRow
	c := &b.Category
	if err := rows.Scan(&c.ID, &c.Name, &c.Limit, &c.Color, &c.TextColor, &c.Active, &c.UserID, &b.Spent); err != nil {
		return nil, err
	}
	return &b, nil
}
