package ledger

import "time"

// =============================================================================
// CALENDAR HELPERS - Month keys and day-of-month handling
// =============================================================================
// Snapshots and projections are keyed by the first of a calendar month at
// midnight UTC. All comparisons in the engine use these helpers so a key
// computed anywhere matches a key stored anywhere.

// StartOfDay truncates t to midnight, preserving nothing but the date.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MonthStart returns the first-of-month key for the month containing t.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthEnd returns the exclusive end of t's month (the next month's start).
func MonthEnd(t time.Time) time.Time {
	return MonthStart(t).AddDate(0, 1, 0)
}

// SameMonth reports whether a and b fall in the same calendar month.
func SameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// AddMonthsClamped adds n months to t, clamping the day of month to the last
// valid day of the target month. time.AddDate normalizes Jan 31 + 1 month to
// March 2/3; schedules need Feb 28/29 instead.
func AddMonthsClamped(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	last := daysInMonth(first.Year(), first.Month())
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ClampTime constrains t to the inclusive range [lo, hi].
func ClampTime(t, lo, hi time.Time) time.Time {
	if t.Before(lo) {
		return lo
	}
	if t.After(hi) {
		return hi
	}
	return t
}
