package charts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bilancio/internal/core"
	"bilancio/internal/storage"
)

func setup(t *testing.T) (*storage.Repository, core.User, core.Category, core.Category) {
	t.Helper()

	repo, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	ctx := context.Background()
	user := core.User{Email: "u@example.com", Username: "u", PasswordHash: "x", Active: true}
	require.NoError(t, repo.CreateUser(ctx, &user))

	food := core.Category{Name: "Food", Limit: 100, Color: "#ff0000", TextColor: "#ffffff", Active: true, UserID: user.ID}
	rent := core.Category{Name: "Rent", Limit: 500, Color: "#0000ff", TextColor: "#ffffff", Active: true, UserID: user.ID}
	require.NoError(t, repo.CreateCategory(ctx, &food))
	require.NoError(t, repo.CreateCategory(ctx, &rent))
	return repo, user, food, rent
}

func addExpense(t *testing.T, repo *storage.Repository, userID, categoryID int64, ts time.Time, amount float64) {
	t.Helper()
	e := core.Expense{Description: "e", Timestamp: ts, Amount: amount, Paid: true, UserID: userID, CategoryID: categoryID}
	require.NoError(t, repo.CreateExpense(context.Background(), &e))
}

func TestBuildHistoryChart(t *testing.T) {
	repo, user, food, rent := setup(t)
	now := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)

	addExpense(t, repo, user.ID, food.ID, time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC), 20)
	addExpense(t, repo, user.ID, food.ID, time.Date(2024, 1, 20, 10, 0, 0, 0, time.UTC), 30)
	addExpense(t, repo, user.ID, food.ID, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), 15)
	addExpense(t, repo, user.ID, rent.ID, time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC), 500)
	// outside the window
	addExpense(t, repo, user.ID, food.ID, time.Date(2023, 12, 31, 10, 0, 0, 0, time.UTC), 999)

	chart, err := BuildHistoryChart(context.Background(), repo, user.ID, 3, now)
	require.NoError(t, err)

	require.Equal(t, []string{"January", "February", "March"}, chart.Labels)
	require.Len(t, chart.Datasets, 2)

	require.Equal(t, "Food", chart.Datasets[0].Label)
	require.Equal(t, []float64{50, 0, 15}, chart.Datasets[0].Data)
	require.Equal(t, "#ff0000", chart.Datasets[0].BorderColor)

	require.Equal(t, "Rent", chart.Datasets[1].Label)
	require.Equal(t, []float64{0, 500, 0}, chart.Datasets[1].Data)
}

func TestBuildHistoryChartIncludesLaterToday(t *testing.T) {
	repo, user, food, _ := setup(t)
	now := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)

	// stamped after "now" but still today
	addExpense(t, repo, user.ID, food.ID, time.Date(2024, 3, 15, 20, 30, 0, 0, time.UTC), 25)

	chart, err := BuildHistoryChart(context.Background(), repo, user.ID, 3, now)
	require.NoError(t, err)

	require.Len(t, chart.Datasets, 1)
	require.Equal(t, []float64{0, 0, 25}, chart.Datasets[0].Data)
}

func TestBuildHistoryChartWrapsYearBoundary(t *testing.T) {
	repo, user, food, _ := setup(t)
	now := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	addExpense(t, repo, user.ID, food.ID, time.Date(2023, 12, 24, 10, 0, 0, 0, time.UTC), 40)

	chart, err := BuildHistoryChart(context.Background(), repo, user.ID, 3, now)
	require.NoError(t, err)

	require.Equal(t, []string{"November", "December", "January"}, chart.Labels)
	require.Len(t, chart.Datasets, 1)
	require.Equal(t, []float64{0, 40, 0}, chart.Datasets[0].Data)
}

func TestBuildHistoryChartNonPositiveMonths(t *testing.T) {
	repo, user, _, _ := setup(t)

	for _, months := range []int{0, -3} {
		chart, err := BuildHistoryChart(context.Background(), repo, user.ID, months, time.Now().UTC())
		require.NoError(t, err)
		require.Empty(t, chart.Labels)
		require.Empty(t, chart.Datasets)
	}
}

func TestBuildCategoriesChart(t *testing.T) {
	repo, user, food, rent := setup(t)
	now := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)

	addExpense(t, repo, user.ID, food.ID, time.Date(2024, 2, 5, 10, 0, 0, 0, time.UTC), 20.556)
	addExpense(t, repo, user.ID, rent.ID, time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC), 500)
	// previous month: outside the default interval
	addExpense(t, repo, user.ID, food.ID, time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC), 999)

	chart, err := BuildCategoriesChart(context.Background(), repo, user.ID, nil, nil, 0, now)
	require.NoError(t, err)

	// sorted by total, largest first
	require.Equal(t, []string{"Rent", "Food"}, chart.Chart.Labels)
	require.Equal(t, []float64{500, 20.56}, chart.Chart.Datasets[0].Data)
	require.Equal(t, []string{"#0000ff", "#ff0000"}, chart.Chart.Datasets[0].BackgroundColor)
	require.Equal(t, 520.56, chart.TotalAmount)
}

func TestBuildCategoriesChartExplicitIntervalAndFilter(t *testing.T) {
	repo, user, food, rent := setup(t)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	addExpense(t, repo, user.ID, food.ID, time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC), 10)
	addExpense(t, repo, user.ID, food.ID, time.Date(2024, 2, 29, 23, 0, 0, 0, time.UTC), 5)
	addExpense(t, repo, user.ID, rent.ID, time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC), 500)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)

	chart, err := BuildCategoriesChart(context.Background(), repo, user.ID, &start, &end, food.ID, now)
	require.NoError(t, err)

	require.Equal(t, []string{"Food"}, chart.Chart.Labels)
	require.Equal(t, []float64{15}, chart.Chart.Datasets[0].Data)
	require.Equal(t, 15.0, chart.TotalAmount)
}

func TestNewBalance(t *testing.T) {
	row := storage.BalanceRow{
		Category: core.Category{Name: "Food", Limit: 100},
		Spent:    150.2562,
	}

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC)

	b := NewBalance(row, from, to)
	require.Equal(t, 200.0, b.Limit)
	require.Equal(t, 150.26, b.Spent)
	require.Equal(t, 49.74, b.Balance)
}
