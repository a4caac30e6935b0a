package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/storage"
)

type fixture struct {
	repo    *storage.Repository
	svc     *ExpenseService
	owner   core.User
	friend  core.User
	someone core.User

	ownerCategory  core.Category
	friendCategory core.Category
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	ctx := context.Background()
	f := &fixture{repo: repo}
	f.svc = NewExpenseService(repo, log.New(log.Config{Level: slog.LevelError}))

	f.owner = core.User{Email: "owner@example.com", Username: "owner", PasswordHash: "x", Active: true, CreatedAt: time.Now().UTC()}
	f.friend = core.User{Email: "friend@example.com", Username: "friend", PasswordHash: "x", Active: true, CreatedAt: time.Now().UTC()}
	f.someone = core.User{Email: "someone@example.com", Username: "someone", PasswordHash: "x", Active: true, CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.CreateUser(ctx, &f.owner))
	require.NoError(t, repo.CreateUser(ctx, &f.friend))
	require.NoError(t, repo.CreateUser(ctx, &f.someone))

	f.ownerCategory = core.Category{Name: "Groceries", Limit: 300, Color: "#ff0000", TextColor: "#ffffff", Active: true, UserID: f.owner.ID}
	f.friendCategory = core.Category{Name: "Shared", Limit: 100, Color: "#00ff00", TextColor: "#000000", Active: true, UserID: f.friend.ID}
	require.NoError(t, repo.CreateCategory(ctx, &f.ownerCategory))
	require.NoError(t, repo.CreateCategory(ctx, &f.friendCategory))

	require.NoError(t, repo.CreateShare(ctx, f.owner.ID, f.friend.ID))
	return f
}

func (f *fixture) newExpense(amount float64) *core.Expense {
	return &core.Expense{
		Description: "Dinner out",
		Timestamp:   time.Date(2026, 3, 10, 20, 30, 0, 0, time.UTC),
		Amount:      amount,
		Paid:        true,
		UserID:      f.owner.ID,
		CategoryID:  f.ownerCategory.ID,
	}
}

func TestSaveExpenseCreatesSharedChild(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e := f.newExpense(30)
	created, err := f.svc.SaveExpense(ctx, e, []core.ShareEntry{{UserID: f.friend.ID, Amount: 10, Paid: false}})
	require.NoError(t, err)
	require.True(t, created)
	require.NotZero(t, e.ID)

	child, err := f.repo.GetChildExpense(ctx, e.ID, f.friend.ID)
	require.NoError(t, err)
	require.Equal(t, "Dinner out", child.Description)
	require.True(t, child.Timestamp.Equal(e.Timestamp))
	require.Equal(t, 10.0, child.Amount)
	require.False(t, child.Paid)
	require.Equal(t, f.friend.ID, child.UserID)
	require.NotNil(t, child.ParentID)
	require.Equal(t, e.ID, *child.ParentID)
	require.False(t, child.IsOwner())
}

func TestSaveExpenseReconcileIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	shares := []core.ShareEntry{{UserID: f.friend.ID, Amount: 10, Paid: false}}

	e := f.newExpense(30)
	_, err := f.svc.SaveExpense(ctx, e, shares)
	require.NoError(t, err)

	firstChild, err := f.repo.GetChildExpense(ctx, e.ID, f.friend.ID)
	require.NoError(t, err)

	_, err = f.svc.SaveExpense(ctx, e, shares)
	require.NoError(t, err)

	children, err := f.repo.ListChildren(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	require.Equal(t, firstChild.ID, children[0].ID)
	require.Equal(t, firstChild.Amount, children[0].Amount)
}

func TestSaveExpenseUpdatesChangedShare(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e := f.newExpense(30)
	_, err := f.svc.SaveExpense(ctx, e, []core.ShareEntry{{UserID: f.friend.ID, Amount: 10, Paid: false}})
	require.NoError(t, err)

	_, err = f.svc.SaveExpense(ctx, e, []core.ShareEntry{{UserID: f.friend.ID, Amount: 15, Paid: true}})
	require.NoError(t, err)

	child, err := f.repo.GetChildExpense(ctx, e.ID, f.friend.ID)
	require.NoError(t, err)
	require.Equal(t, 15.0, child.Amount)
	require.True(t, child.Paid)
}

func TestSaveExpenseZeroAmountRemovesShare(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e := f.newExpense(30)
	_, err := f.svc.SaveExpense(ctx, e, []core.ShareEntry{{UserID: f.friend.ID, Amount: 10, Paid: false}})
	require.NoError(t, err)

	_, err = f.svc.SaveExpense(ctx, e, []core.ShareEntry{{UserID: f.friend.ID, Amount: 0}})
	require.NoError(t, err)

	_, err = f.repo.GetChildExpense(ctx, e.ID, f.friend.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSaveExpenseRejectsUnauthorizedRecipients(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e := f.newExpense(30)
	_, err := f.svc.SaveExpense(ctx, e, []core.ShareEntry{
		{UserID: f.friend.ID, Amount: 10},
		{UserID: f.someone.ID, Amount: 5},
	})

	var denied *ShareNotAllowedError
	require.ErrorAs(t, err, &denied)
	require.Equal(t, []int64{f.someone.ID}, denied.UserIDs)

	// the whole request is rejected before any persistence
	require.Zero(t, e.ID)
	expenses, err := f.repo.ListExpenses(ctx, f.owner.ID)
	require.NoError(t, err)
	require.Empty(t, expenses)
}

func TestSaveExpenseRejectsInactiveRecipient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.friend.Active = false
	require.NoError(t, f.repo.UpdateUser(ctx, &f.friend))

	e := f.newExpense(30)
	_, err := f.svc.SaveExpense(ctx, e, []core.ShareEntry{{UserID: f.friend.ID, Amount: 10}})

	var denied *ShareNotAllowedError
	require.ErrorAs(t, err, &denied)
	require.Equal(t, []int64{f.friend.ID}, denied.UserIDs)
}

func TestSaveExpenseRejectsInactiveCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.ownerCategory.Active = false
	require.NoError(t, f.repo.UpdateCategory(ctx, &f.ownerCategory))

	_, err := f.svc.SaveExpense(ctx, f.newExpense(30), nil)
	require.ErrorIs(t, err, ErrCategoryNotFound)
}

func TestSaveExpenseChildAmountIsImmutable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e := f.newExpense(30)
	_, err := f.svc.SaveExpense(ctx, e, []core.ShareEntry{{UserID: f.friend.ID, Amount: 10, Paid: false}})
	require.NoError(t, err)

	child, err := f.repo.GetChildExpense(ctx, e.ID, f.friend.ID)
	require.NoError(t, err)

	// recipient recategorizes and marks paid: allowed
	child.CategoryID = f.friendCategory.ID
	child.Paid = true
	_, err = f.svc.SaveExpense(ctx, child, nil)
	require.NoError(t, err)

	// recipient changes the amount: rejected
	child.Amount = 99
	_, err = f.svc.SaveExpense(ctx, child, nil)
	require.ErrorIs(t, err, ErrChildAmountChanged)
}

func TestSaveExpenseMirrorsParentFieldsToChildren(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	shares := []core.ShareEntry{{UserID: f.friend.ID, Amount: 10, Paid: false}}

	e := f.newExpense(30)
	_, err := f.svc.SaveExpense(ctx, e, shares)
	require.NoError(t, err)

	e.Description = "Dinner out, corrected"
	e.Timestamp = e.Timestamp.Add(24 * time.Hour)
	created, err := f.svc.SaveExpense(ctx, e, shares)
	require.NoError(t, err)
	require.False(t, created)

	child, err := f.repo.GetChildExpense(ctx, e.ID, f.friend.ID)
	require.NoError(t, err)
	require.Equal(t, "Dinner out, corrected", child.Description)
	require.True(t, child.Timestamp.Equal(e.Timestamp))
	require.Equal(t, 10.0, child.Amount)
}

func TestDeleteExpenseCascadesToChildren(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e := f.newExpense(30)
	_, err := f.svc.SaveExpense(ctx, e, []core.ShareEntry{{UserID: f.friend.ID, Amount: 10, Paid: false}})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteExpense(ctx, e.ID, f.owner.ID))

	_, err = f.repo.GetChildExpense(ctx, e.ID, f.friend.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteExpenseOfOtherUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e := f.newExpense(30)
	_, err := f.svc.SaveExpense(ctx, e, nil)
	require.NoError(t, err)

	err = f.svc.DeleteExpense(ctx, e.ID, f.friend.ID)
	require.ErrorIs(t, err, ErrExpenseNotFound)
}
