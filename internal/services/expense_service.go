// Package services implements the expense write path: validation,
// share permission checks and the reconciliation of shared child rows.
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/storage"
)

var (
	// ErrCategoryNotFound reports a category that is absent, disabled or
	// owned by another user. The cases are not distinguished.
	ErrCategoryNotFound = errors.New("category is disabled, does not exist or does not belong to user")

	// ErrExpenseNotFound reports an expense that is absent or owned by
	// another user.
	ErrExpenseNotFound = errors.New("expense does not exist or does not belong to user")

	// ErrChildAmountChanged reports an attempt to change a shared child
	// expense's amount through the standard update path. Child amounts
	// change only via reconciliation on the parent.
	ErrChildAmountChanged = errors.New("amount of a shared expense cannot be changed")
)

// ShareNotAllowedError reports share recipients with no active share
// edge from the owner. The whole share list is rejected.
type ShareNotAllowedError struct {
	UserIDs []int64
}

func (e *ShareNotAllowedError) Error() string {
	ids := make([]string, len(e.UserIDs))
	for i, id := range e.UserIDs {
		ids[i] = strconv.FormatInt(id, 10)
	}
	return "sharing with users " + strings.Join(ids, ", ") + " is not allowed"
}

// ExpenseService coordinates expense writes and keeps shared child
// rows in sync with the owner's desired share list.
type ExpenseService struct {
	repo   *storage.Repository
	logger *log.Logger
}

func NewExpenseService(repo *storage.Repository, logger *log.Logger) *ExpenseService {
	return &ExpenseService{repo: repo, logger: logger.WithComponent("expenses")}
}

// SaveExpense validates and persists an expense, then reconciles its
// shared children against the desired share list. The expense is
// created when its ID is zero and updated otherwise; created reports
// which happened.
//
// Checks run in a fixed order before any persistence: expense
// validation, share permission check, category check, and for updates
// the child amount-immutability rule. The expense write and the share
// reconciliation commit separately.
func (s *ExpenseService) SaveExpense(ctx context.Context, e *core.Expense, shares []core.ShareEntry) (created bool, err error) {
	if err := e.Validate(); err != nil {
		return false, err
	}

	if err := s.checkShareTargets(ctx, e.UserID, shares); err != nil {
		return false, err
	}

	if _, err := s.repo.GetActiveCategory(ctx, e.CategoryID, e.UserID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, ErrCategoryNotFound
		}
		return false, err
	}

	if e.ID == 0 {
		if err := s.repo.CreateExpense(ctx, e); err != nil {
			return false, err
		}
		created = true
	} else {
		stored, err := s.repo.GetExpense(ctx, e.ID, e.UserID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return false, ErrExpenseNotFound
			}
			return false, err
		}
		if !stored.IsOwner() && e.Amount != stored.Amount {
			return false, ErrChildAmountChanged
		}
		e.ParentID = stored.ParentID
		if err := s.repo.UpdateExpense(ctx, e); err != nil {
			return false, err
		}
	}

	// Only original rows carry shares; a child row is a leaf.
	if e.IsOwner() {
		if err := s.reconcileShares(ctx, e, shares); err != nil {
			return created, err
		}
	}
	return created, nil
}

// DeleteExpense removes an expense owned by the user; the schema
// cascades to any shared children.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id, userID int64) error {
	if _, err := s.repo.GetExpense(ctx, id, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrExpenseNotFound
		}
		return err
	}
	return s.repo.DeleteExpense(ctx, id)
}

// checkShareTargets rejects the whole share list when any recipient
// lacks an active share edge from the owner.
func (s *ExpenseService) checkShareTargets(ctx context.Context, ownerID int64, shares []core.ShareEntry) error {
	if len(shares) == 0 {
		return nil
	}

	allowed, err := s.repo.AllowedShareTargets(ctx, ownerID)
	if err != nil {
		return err
	}

	var denied []int64
	for _, entry := range shares {
		if !allowed[entry.UserID] {
			denied = append(denied, entry.UserID)
		}
	}
	if len(denied) > 0 {
		sort.Slice(denied, func(i, j int) bool { return denied[i] < denied[j] })
		return &ShareNotAllowedError{UserIDs: denied}
	}
	return nil
}

// shareOp is one planned child mutation.
type shareOp struct {
	kind  string // "create", "update" or "delete"
	child *core.Expense
	entry core.ShareEntry
}

// reconcileShares brings the parent's child rows in line with the
// desired share list. Mutations are planned first and committed in a
// single transaction, and only when at least one row actually changes.
func (s *ExpenseService) reconcileShares(ctx context.Context, parent *core.Expense, shares []core.ShareEntry) error {
	var ops []shareOp
	for _, entry := range shares {
		child, err := s.repo.GetChildExpense(ctx, parent.ID, entry.UserID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			ops = append(ops, shareOp{kind: "create", entry: entry})
		case err != nil:
			return err
		case entry.Amount == 0:
			ops = append(ops, shareOp{kind: "delete", child: child})
		case child.Amount != entry.Amount || child.Paid != entry.Paid ||
			child.Description != parent.Description || !child.Timestamp.Equal(parent.Timestamp):
			ops = append(ops, shareOp{kind: "update", child: child, entry: entry})
		}
	}
	if len(ops) == 0 {
		return nil
	}

	return s.repo.WithTx(ctx, func(tx *storage.Repository) error {
		for _, op := range ops {
			switch op.kind {
			case "create":
				if err := s.createChild(ctx, tx, parent, op.entry); err != nil {
					return err
				}
			case "delete":
				if err := tx.DeleteExpense(ctx, op.child.ID); err != nil {
					return err
				}
			case "update":
				op.child.Description = parent.Description
				op.child.Timestamp = parent.Timestamp
				op.child.Amount = op.entry.Amount
				op.child.Paid = op.entry.Paid
				if err := tx.UpdateExpense(ctx, op.child); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// createChild inserts a child row mirroring the parent's description
// and timestamp. The share edge is re-checked right before the insert;
// a failed re-check skips this entry without failing the request.
func (s *ExpenseService) createChild(ctx context.Context, tx *storage.Repository, parent *core.Expense, entry core.ShareEntry) error {
	ok, err := tx.HasActiveShareEdge(ctx, parent.UserID, entry.UserID)
	if err != nil {
		return err
	}
	if !ok {
		s.logger.WarnContext(ctx, "share creation denied, skipping",
			"expense_id", parent.ID, "recipient_id", entry.UserID)
		return nil
	}

	child := &core.Expense{
		Description: parent.Description,
		Timestamp:   parent.Timestamp,
		Amount:      entry.Amount,
		Paid:        entry.Paid,
		UserID:      entry.UserID,
		CategoryID:  parent.CategoryID,
		ParentID:    &parent.ID,
	}
	if err := tx.CreateExpense(ctx, child); err != nil {
		return fmt.Errorf("create shared expense: %w", err)
	}
	return nil
}
