package core

import "time"

// DayStart returns t at 00:00:00.
func DayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DayEnd returns t at the last representable instant of the day.
func DayEnd(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999999000, t.Location())
}

// MonthStart returns the first instant of t's calendar month.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// MonthEnd returns the last instant of t's calendar month, accounting
// for variable month length and leap years.
func MonthEnd(t time.Time) time.Time {
	return DayEnd(time.Date(t.Year(), t.Month(), DaysInMonth(t.Year(), t.Month()), 0, 0, 0, 0, t.Location()))
}

// DaysInMonth returns the number of days in the given calendar month.
func DaysInMonth(year int, month time.Month) int {
	// day 0 of the next month normalizes to the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Interval resolves an optional start/end pair into a concrete
// inclusive interval. A missing start defaults to the first day of the
// current month, a missing end to its last day; either way the start
// gets 00:00:00 and the end 23:59:59 time parts.
func Interval(start, end *time.Time, now time.Time) (time.Time, time.Time) {
	s := MonthStart(now)
	if start != nil {
		s = DayStart(*start)
	}
	e := MonthEnd(now)
	if end != nil {
		e = DayEnd(*end)
	}
	return s, e
}

// MonthsSpanned counts the whole calendar months covered by the
// interval, inclusive on both ends. An interval within one month
// spans 1.
func MonthsSpanned(start, end time.Time) int {
	return (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month()) + 1
}

// MonthOffset returns the signed month distance from a to b,
// ignoring days.
func MonthOffset(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

// AddCalendarMonths shifts t by n calendar months, clamping the day to
// the target month's length (Mar 31 - 1 month = Feb 28/29). Month
// overflow folds into years via floor division, in both directions.
func AddCalendarMonths(t time.Time, n int) time.Time {
	m0 := int(t.Month()) - 1 + n
	y := t.Year() + floorDiv(m0, 12)
	m := time.Month(mod(m0, 12) + 1)

	d := t.Day()
	if last := DaysInMonth(y, m); d > last {
		d = last
	}
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// HistoryStart computes the start instant of a rolling history window
// of `months` calendar months ending at end: the window covers the N
// consecutive months whose last one contains end.
func HistoryStart(end time.Time, months int) time.Time {
	return AddCalendarMonths(end, -(months - 1))
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
