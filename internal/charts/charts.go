// Package charts builds the spending chart payloads: rolling monthly
// history per category, interval totals and per-category balances.
package charts

import (
	"context"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/storage"
)

// HistoryDataset is one category's line in the history chart.
type HistoryDataset struct {
	Label           string    `json:"label"`
	Data            []float64 `json:"data"`
	BorderColor     string    `json:"borderColor"`
	BackgroundColor string    `json:"backgroundColor"`
}

// HistoryChart is the rolling monthly history payload.
type HistoryChart struct {
	Labels   []string         `json:"labels"`
	Datasets []HistoryDataset `json:"datasets"`
}

// BuildHistoryChart sums the user's expenses per category over the
// rolling window of `months` calendar months ending with now's day,
// one zero-filled bucket per month. A non-positive month count yields
// an empty chart.
func BuildHistoryChart(ctx context.Context, repo *storage.Repository, userID int64, months int, now time.Time) (*HistoryChart, error) {
	chart := &HistoryChart{Labels: []string{}, Datasets: []HistoryDataset{}}
	if months <= 0 {
		return chart, nil
	}

	// the window closes at the end of today, so expenses stamped later
	// in the day than the request still count
	windowStart := core.MonthStart(core.HistoryStart(now, months))
	totals, err := repo.HistoryTotals(ctx, userID, windowStart, core.DayEnd(now))
	if err != nil {
		return nil, err
	}

	startMonth := int(windowStart.Month()) - 1
	for i := 0; i < months; i++ {
		chart.Labels = append(chart.Labels, time.Month((startMonth+i)%12+1).String())
	}

	byCategory := make(map[string]int)
	for _, t := range totals {
		idx, ok := byCategory[t.CategoryName]
		if !ok {
			idx = len(chart.Datasets)
			byCategory[t.CategoryName] = idx
			chart.Datasets = append(chart.Datasets, HistoryDataset{
				Label:           t.CategoryName,
				Data:            make([]float64, months),
				BorderColor:     t.Color,
				BackgroundColor: t.Color,
			})
		}

		bucket := core.MonthOffset(windowStart, t.Month)
		if bucket < 0 || bucket >= months {
			continue
		}
		chart.Datasets[idx].Data[bucket] = core.Round2(t.Total)
	}
	return chart, nil
}

// PieDataset carries the per-category slice values and colors.
type PieDataset struct {
	Data            []float64 `json:"data"`
	BackgroundColor []string  `json:"backgroundColor"`
}

// PieChart is a label/dataset pair in the shape the frontend chart
// library consumes.
type PieChart struct {
	Labels   []string     `json:"labels"`
	Datasets []PieDataset `json:"datasets"`
}

// CategoriesChart is the interval-totals payload: one pie slice per
// category, largest first, plus the rounded grand total.
type CategoriesChart struct {
	Chart       PieChart `json:"chart"`
	TotalAmount float64  `json:"total_amount"`
}

// BuildCategoriesChart sums the user's expenses per category over an
// interval. Nil start/end default to the current calendar month's
// bounds; categoryID 0 means no category filter.
func BuildCategoriesChart(ctx context.Context, repo *storage.Repository, userID int64, start, end *time.Time, categoryID int64, now time.Time) (*CategoriesChart, error) {
	from, to := core.Interval(start, end, now)
	totals, err := repo.IntervalTotals(ctx, userID, from, to, categoryID)
	if err != nil {
		return nil, err
	}

	chart := &CategoriesChart{
		Chart: PieChart{
			Labels:   []string{},
			Datasets: []PieDataset{{Data: []float64{}, BackgroundColor: []string{}}},
		},
	}

	var grandTotal float64
	ds := &chart.Chart.Datasets[0]
	for _, t := range totals {
		chart.Chart.Labels = append(chart.Chart.Labels, t.Name)
		ds.Data = append(ds.Data, core.Round2(t.Total))
		ds.BackgroundColor = append(ds.BackgroundColor, t.Color)
		grandTotal += t.Total
	}
	chart.TotalAmount = core.Round2(grandTotal)
	return chart, nil
}

// Balance is one category's budget position over an interval: the
// configured monthly limit scaled by the months spanned, what was
// spent and what remains.
type Balance struct {
	Category core.Category
	Limit    float64
	Balance  float64
	Spent    float64
}

// NewBalance scales the category limit by the whole calendar months
// the interval spans, inclusive on both ends.
func NewBalance(row storage.BalanceRow, from, to time.Time) Balance {
	limit := row.Category.Limit * float64(core.MonthsSpanned(from, to))
	return Balance{
		Category: row.Category,
		Limit:    core.Round2(limit),
		Balance:  core.Round2(limit - row.Spent),
		Spent:    core.Round2(row.Spent),
	}
}
