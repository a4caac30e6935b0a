package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bilancio/internal/core"
)

const categoryColumns = "id, name, spending_limit, color, text_color, active, user_id"

func scanCategory(row interface{ Scan(...any) error }) (*core.Category, error) {
	var c core.Category
	err := row.Scan(&c.ID, &c.Name, &c.Limit, &c.Color, &c.TextColor, &c.Active, &c.UserID)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCategory inserts a new category, setting its ID.
func (r *Repository) CreateCategory(ctx context.Context, c *core.Category) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO categories (name, spending_limit, color, text_color, active, user_id) VALUES (?, ?, ?, ?, ?, ?)",
		c.Name, c.Limit, c.Color, c.TextColor, c.Active, c.UserID)
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create category id: %w", err)
	}
	c.ID = id
	return nil
}

// UpdateCategory persists all mutable category fields.
func (r *Repository) UpdateCategory(ctx context.Context, c *core.Category) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE categories SET name = ?, spending_limit = ?, color = ?, text_color = ?, active = ? WHERE id = ?",
		c.Name, c.Limit, c.Color, c.TextColor, c.Active, c.ID)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return nil
}

// GetCategory fetches a category owned by the given user.
func (r *Repository) GetCategory(ctx context.Context, id, userID int64) (*core.Category, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx,
		"SELECT "+categoryColumns+" FROM categories WHERE id = ? AND user_id = ?", id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

// GetActiveCategory fetches a category owned by the given user,
// requiring active = true.
func (r *Repository) GetActiveCategory(ctx context.Context, id, userID int64) (*core.Category, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx,
		"SELECT "+categoryColumns+" FROM categories WHERE id = ? AND user_id = ? AND active = 1", id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get active category: %w", err)
	}
	return c, nil
}

// GetCategoryByID fetches a category regardless of owner. Shared child
// expenses reference the sharer's category, so serializing them needs
// a lookup without the ownership filter.
func (r *Repository) GetCategoryByID(ctx context.Context, id int64) (*core.Category, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx,
		"SELECT "+categoryColumns+" FROM categories WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get category by id: %w", err)
	}
	return c, nil
}

// ListCategories returns the user's categories, optionally filtered to
// active ones.
func (r *Repository) ListCategories(ctx context.Context, userID int64, onlyActive bool) ([]core.Category, error) {
	stmt := "SELECT " + categoryColumns + " FROM categories WHERE user_id = ?"
	if onlyActive {
		stmt += " AND active = 1"
	}

	rows, err := r.db.QueryContext(ctx, stmt, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// CategoriesQuery is the datatable base query over the user's
// categories.
func (r *Repository) CategoriesQuery(userID int64) SelectQuery {
	q := SelectQuery{
		Columns: "categories.id, categories.name, categories.spending_limit, categories.color, categories.text_color, categories.active, categories.user_id",
		From:    "categories",
	}
	q.AndWhere("categories.user_id = ?", userID)
	return q
}

// ScanCategoryRow adapts scanCategory for datatable pagination.
func ScanCategoryRow(rows *sql.Rows) (*core.Category, error) {
	return scanCategory(rows)
}
