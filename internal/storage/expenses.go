package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"bilancio/internal/core"
)

const expenseColumns = "id, description, timestamp, amount, paid, is_favorite, favorite_order, user_id, category_id, parent_id"

// expenseColumnsQualified is expenseColumns with the expenses table
// prefix, for joined queries.
var expenseColumnsQualified = func() string {
	cols := strings.Split(expenseColumns, ", ")
	for i, c := range cols {
		cols[i] = "expenses." + c
	}
	return strings.Join(cols, ", ")
}()

func scanExpense(row interface{ Scan(...any) error }) (*core.Expense, error) {
	var e core.Expense
	var favOrder, parentID sql.NullInt64
	err := row.Scan(&e.ID, &e.Description, &e.Timestamp, &e.Amount, &e.Paid,
		&e.IsFavorite, &favOrder, &e.UserID, &e.CategoryID, &parentID)
	if err != nil {
		return nil, err
	}
	if favOrder.Valid {
		v := favOrder.Int64
		e.FavoriteOrder = &v
	}
	if parentID.Valid {
		v := parentID.Int64
		e.ParentID = &v
	}
	return &e, nil
}

// CreateExpense inserts a new expense row, setting its ID.
func (r *Repository) CreateExpense(ctx context.Context, e *core.Expense) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (description, timestamp, amount, paid, is_favorite, favorite_order, user_id, category_id, parent_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Description, e.Timestamp, e.Amount, e.Paid, e.IsFavorite,
		nullableInt64(e.FavoriteOrder), e.UserID, e.CategoryID, nullableInt64(e.ParentID))
	if err != nil {
		return fmt.Errorf("create expense: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create expense id: %w", err)
	}
	e.ID = id
	return nil
}

// UpdateExpense persists all mutable expense fields.
func (r *Repository) UpdateExpense(ctx context.Context, e *core.Expense) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET description = ?, timestamp = ?, amount = ?, paid = ?,
		 is_favorite = ?, favorite_order = ?, category_id = ? WHERE id = ?`,
		e.Description, e.Timestamp, e.Amount, e.Paid, e.IsFavorite,
		nullableInt64(e.FavoriteOrder), e.CategoryID, e.ID)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	return nil
}

// DeleteExpense removes an expense row; the schema cascades the delete
// to its children.
func (r *Repository) DeleteExpense(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return nil
}

// GetExpense fetches an expense owned by the given user.
func (r *Repository) GetExpense(ctx context.Context, id, userID int64) (*core.Expense, error) {
	e, err := scanExpense(r.db.QueryRowContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE id = ? AND user_id = ?", id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

// ListExpenses returns every expense owned by the user.
func (r *Repository) ListExpenses(ctx context.Context, userID int64) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE user_id = ?", userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()
	return collectExpenses(rows)
}

// GetChildExpense fetches the shared child of parentID belonging to
// the given recipient, if any.
func (r *Repository) GetChildExpense(ctx context.Context, parentID, recipientID int64) (*core.Expense, error) {
	e, err := scanExpense(r.db.QueryRowContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE parent_id = ? AND user_id = ?", parentID, recipientID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get child expense: %w", err)
	}
	return e, nil
}

// ListChildren returns the shared children of one expense.
func (r *Repository) ListChildren(ctx context.Context, parentID int64) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE parent_id = ?", parentID)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()
	return collectExpenses(rows)
}

// ChildrenByParents returns the shared children of every listed
// expense, keyed by parent id. Used to serialize expense lists without
// one child query per row.
func (r *Repository) ChildrenByParents(ctx context.Context, parentIDs []int64) (map[int64][]core.Expense, error) {
	out := make(map[int64][]core.Expense)
	if len(parentIDs) == 0 {
		return out, nil
	}

	placeholders := strings.Repeat("?, ", len(parentIDs)-1) + "?"
	args := make([]any, len(parentIDs))
	for i, id := range parentIDs {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE parent_id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("children by parents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan child expense: %w", err)
		}
		out[*e.ParentID] = append(out[*e.ParentID], *e)
	}
	return out, rows.Err()
}

// ExpensesIntervalQuery is the datatable base query over the user's
// expenses within an inclusive timestamp interval, joined to
// categories. categoryID 0 means no category filter.
func (r *Repository) ExpensesIntervalQuery(userID int64, start, end time.Time, categoryID int64) SelectQuery {
	q := SelectQuery{
		Columns: expenseColumnsQualified,
		From:    "expenses",
		Joins:   []string{"JOIN categories ON expenses.category_id = categories.id"},
	}
	q.AndWhere("expenses.user_id = ?", userID)
	q.AndWhere("expenses.timestamp >= ?", start)
	q.AndWhere("expenses.timestamp <= ?", end)
	if categoryID != 0 {
		q.AndWhere("expenses.category_id = ?", categoryID)
	}
	return q
}

// FavoritesQuery is the datatable base query over the user's favorite
// expenses.
func (r *Repository) FavoritesQuery(userID int64) SelectQuery {
	q := SelectQuery{
		Columns: expenseColumnsQualified,
		From:    "expenses",
		Joins:   []string{"JOIN categories ON expenses.category_id = categories.id"},
	}
	q.AndWhere("expenses.user_id = ?", userID)
	q.AndWhere("expenses.is_favorite = 1")
	return q
}

// ScanExpenseRow adapts scanExpense for datatable pagination.
func ScanExpenseRow(rows *sql.Rows) (*core.Expense, error) {
	return scanExpense(rows)
}

func collectExpenses(rows *sql.Rows) ([]core.Expense, error) {
	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
