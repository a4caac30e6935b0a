package core

import (
	"errors"
	"math"
	"strings"
	"time"
)

type (
	// User is an account owner. Deactivation is a soft flag; user rows
	// are never deleted.
	User struct {
		ID           int64
		Email        string
		Username     string
		PasswordHash string
		Active       bool
		CreatedAt    time.Time
		UpdatedAt    *time.Time
	}

	// Category groups expenses and carries a monthly spending limit.
	Category struct {
		ID        int64
		Name      string
		Limit     float64
		Color     string // background color, normalized to a leading '#'
		TextColor string // derived from Color luminance
		Active    bool
		UserID    int64
	}

	// Expense is a single spending record. A row with ParentID set is a
	// shared child mirroring its parent's description and timestamp; it
	// belongs to the recipient user.
	Expense struct {
		ID            int64
		Description   string
		Timestamp     time.Time
		Amount        float64
		Paid          bool
		IsFavorite    bool
		FavoriteOrder *int64
		UserID        int64
		CategoryID    int64
		ParentID      *int64
	}

	// Share is a permission edge: SharedBy may create shared-expense
	// rows for SharedWith.
	Share struct {
		SharedByUserID   int64
		SharedWithUserID int64
	}

	// ShareEntry is one desired share submitted alongside an expense.
	ShareEntry struct {
		UserID int64
		Amount float64
		Paid   bool
	}
)

var (
	ErrInvalidAmount    = errors.New("amount cannot be lower than 0")
	ErrInvalidLimit     = errors.New("limit cannot be lower than 0")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyName        = errors.New("empty name")
	ErrInvalidColor     = errors.New("color must be in hexadecimal format")
)

// IsOwner reports whether the expense is an original, user-entered row.
func (e Expense) IsOwner() bool {
	return e.ParentID == nil
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.Description) == "" {
		return ErrEmptyDescription
	}
	if e.Amount < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if c.Limit < 0 {
		return ErrInvalidLimit
	}
	if len(c.Color) > 7 {
		return ErrInvalidColor
	}
	return nil
}

// Round2 rounds a currency amount to 2 decimal places, half away from
// zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// CombineDateTime merges a date and a time-of-day into one timestamp,
// dropping sub-second precision.
func CombineDateTime(d, t time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(),
		t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}
