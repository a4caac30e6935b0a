package storage

import (
	"context"
	"database/sql"
	"fmt"

	"bilancio/internal/core"
)

// CreateShare records a permission edge allowing byUserID to share
// expenses with withUserID.
func (r *Repository) CreateShare(ctx context.Context, byUserID, withUserID int64) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO shares (shared_by_user_id, shared_with_user_id) VALUES (?, ?)",
		byUserID, withUserID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("create share: %w", err)
	}
	return nil
}

// AllowedShareTargets returns the ids of active users byUserID is
// permitted to share expenses with.
func (r *Repository) AllowedShareTargets(ctx context.Context, byUserID int64) (map[int64]bool, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT shares.shared_with_user_id FROM shares
		 JOIN users ON shares.shared_with_user_id = users.id
		 WHERE shares.shared_by_user_id = ? AND users.active = 1`, byUserID)
	if err != nil {
		return nil, fmt.Errorf("allowed share targets: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan share target: %w", err)
		}
		out[id] = true
	}
	return out, rows.Err()
}

// HasActiveShareEdge reports whether a share edge from byUserID to
// withUserID exists and the recipient is active.
func (r *Repository) HasActiveShareEdge(ctx context.Context, byUserID, withUserID int64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM shares
		 JOIN users ON shares.shared_with_user_id = users.id
		 WHERE shares.shared_by_user_id = ? AND shares.shared_with_user_id = ? AND users.active = 1`,
		byUserID, withUserID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check share edge: %w", err)
	}
	return n > 0, nil
}

// ShareRow is one row of the shares datatable: the edge plus the
// recipient's username.
type ShareRow struct {
	Share    core.Share
	Username string
}

// SharesQuery is the datatable base query over the share edges granted
// by the user, joined to the recipient user.
func (r *Repository) SharesQuery(userID int64) SelectQuery {
	q := SelectQuery{
		Columns: "shares.shared_by_user_id, shares.shared_with_user_id, users.username",
		From:    "shares",
		Joins:   []string{"JOIN users ON shares.shared_with_user_id = users.id"},
	}
	q.AndWhere("shares.shared_by_user_id = ?", userID)
	return q
}

// ScanShareRow scans one shares-datatable row.
func ScanShareRow(rows *sql.Rows) (*ShareRow, error) {
	var s ShareRow
	if err := rows.Scan(&s.Share.SharedByUserID, &s.Share.SharedWithUserID, &s.Username); err != nil {
		return nil, err
	}
	return &s, nil
}
