package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bilancio/internal/core"
)

const userColumns = "id, email, username, password, active, created_timestamp, updated_timestamp"

func scanUser(row interface{ Scan(...any) error }) (*core.User, error) {
	var u core.User
	var updated sql.NullTime
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.Active, &u.CreatedAt, &updated)
	if err != nil {
		return nil, err
	}
	if updated.Valid {
		t := updated.Time
		u.UpdatedAt = &t
	}
	return &u, nil
}

// CreateUser inserts a new user, setting its ID and creation timestamp.
func (r *Repository) CreateUser(ctx context.Context, u *core.User) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO users (email, username, password, active, created_timestamp) VALUES (?, ?, ?, ?, ?)",
		u.Email, u.Username, u.PasswordHash, u.Active, now)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("create user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create user id: %w", err)
	}
	u.ID = id
	u.CreatedAt = now
	return nil
}

// UpdateUser persists email, username, password hash and active flag,
// stamping updated_timestamp.
func (r *Repository) UpdateUser(ctx context.Context, u *core.User) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		"UPDATE users SET email = ?, username = ?, password = ?, active = ?, updated_timestamp = ? WHERE id = ?",
		u.Email, u.Username, u.PasswordHash, u.Active, now, u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("update user: %w", err)
	}
	u.UpdatedAt = &now
	return nil
}

// GetUser fetches a user by id regardless of its active flag.
func (r *Repository) GetUser(ctx context.Context, id int64) (*core.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetActiveUser fetches a user by id, requiring active = true.
func (r *Repository) GetActiveUser(ctx context.Context, id int64) (*core.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ? AND active = 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get active user: %w", err)
	}
	return u, nil
}

// GetUserByLogin fetches a user whose username or email matches the
// given login, regardless of its active flag.
func (r *Repository) GetUserByLogin(ctx context.Context, login string) (*core.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = ? OR email = ?", login, login))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by login: %w", err)
	}
	return u, nil
}
