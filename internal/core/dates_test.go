package core

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestHistoryStart(t *testing.T) {
	cases := []struct {
		end    time.Time
		months int
		want   time.Time
	}{
		{date(2024, time.March, 31), 3, date(2024, time.January, 31)},
		{date(2024, time.March, 31), 1, date(2024, time.March, 31)},
		{date(2024, time.February, 15), 12, date(2023, time.March, 15)},
		{date(2024, time.May, 31), 2, date(2024, time.April, 30)}, // day clamped
		{date(2024, time.January, 10), 25, date(2022, time.January, 10)},
	}
	for _, tc := range cases {
		if got := HistoryStart(tc.end, tc.months); !got.Equal(tc.want) {
			t.Fatalf("HistoryStart(%v, %d) = %v, want %v", tc.end, tc.months, got, tc.want)
		}
	}
}

func TestAddCalendarMonthsNegativeRollover(t *testing.T) {
	got := AddCalendarMonths(date(2024, time.January, 31), -1)
	want := date(2023, time.December, 31)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	got = AddCalendarMonths(date(2024, time.November, 30), 3)
	want = date(2025, time.February, 28)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestMonthsSpanned(t *testing.T) {
	cases := []struct {
		start, end time.Time
		want       int
	}{
		{date(2024, time.January, 1), date(2024, time.January, 31), 1},
		{date(2024, time.January, 15), date(2024, time.February, 10), 2},
		{date(2023, time.December, 1), date(2024, time.January, 31), 2},
		{date(2023, time.March, 1), date(2024, time.February, 29), 12},
	}
	for _, tc := range cases {
		if got := MonthsSpanned(tc.start, tc.end); got != tc.want {
			t.Fatalf("MonthsSpanned(%v, %v) = %d, want %d", tc.start, tc.end, got, tc.want)
		}
	}
}

func TestIntervalDefaults(t *testing.T) {
	now := time.Date(2024, time.February, 14, 10, 30, 0, 0, time.UTC)

	s, e := Interval(nil, nil, now)
	if s.Day() != 1 || s.Month() != time.February || s.Hour() != 0 {
		t.Fatalf("default start = %v", s)
	}
	if e.Day() != 29 || e.Hour() != 23 { // 2024 is a leap year
		t.Fatalf("default end = %v", e)
	}

	start := date(2024, time.January, 5)
	end := date(2024, time.January, 20)
	s, e = Interval(&start, &end, now)
	if s.Hour() != 0 || e.Hour() != 23 || s.Day() != 5 || e.Day() != 20 {
		t.Fatalf("explicit interval = %v .. %v", s, e)
	}
}

func TestMonthEndVariableLength(t *testing.T) {
	if got := MonthEnd(date(2023, time.February, 3)).Day(); got != 28 {
		t.Fatalf("feb 2023 end day = %d", got)
	}
	if got := MonthEnd(date(2024, time.February, 3)).Day(); got != 29 {
		t.Fatalf("feb 2024 end day = %d", got)
	}
	if got := MonthEnd(date(2024, time.April, 30)).Day(); got != 30 {
		t.Fatalf("apr 2024 end day = %d", got)
	}
}

func TestRound2(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{12.3456, 12.35},
		{2.344, 2.34},
		{0.125, 0.13},
		{-0.125, -0.13},
		{100, 100},
	}
	for _, tc := range cases {
		if got := Round2(tc.in); got != tc.want {
			t.Fatalf("Round2(%v) = %v, want %v", tc.in, tc.want, got)
		}
	}
}

func TestExpenseValidate(t *testing.T) {
	e := Expense{Description: "Lunch", Amount: 12.5}
	if err := e.Validate(); err != nil {
		t.Fatalf("valid expense rejected: %v", err)
	}
	if err := (Expense{Description: " ", Amount: 1}).Validate(); err != ErrEmptyDescription {
		t.Fatalf("expected ErrEmptyDescription, got %v", err)
	}
	if err := (Expense{Description: "x", Amount: -1}).Validate(); err != ErrInvalidAmount {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestCategoryValidate(t *testing.T) {
	c := Category{Name: "Food", Limit: 50, Color: "#FF0000"}
	if err := c.Validate(); err != nil {
		t.Fatalf("valid category rejected: %v", err)
	}
	if err := (Category{Name: "Food", Limit: -1, Color: "#fff"}).Validate(); err != ErrInvalidLimit {
		t.Fatalf("expected ErrInvalidLimit, got %v", err)
	}
	if err := (Category{Name: "Food", Color: "#abc12345"}).Validate(); err != ErrInvalidColor {
		t.Fatalf("expected ErrInvalidColor, got %v", err)
	}
}
