package ledger_test

import (
	"testing"
	"time"

	"github.com/ledgerkit/debt-engine/ledger"
)

// Note: date is defined in schedule_test.go.

func TestAddMonthsClamped(t *testing.T) {
	cases := []struct {
		name   string
		from   time.Time
		months int
		want   time.Time
	}{
		{"plain month hop", date(2025, time.March, 10), 1, date(2025, time.April, 10)},
		{"jan 31 clamps to feb 28", date(2025, time.January, 31), 1, date(2025, time.February, 28)},
		{"jan 31 to leap feb 29", date(2024, time.January, 31), 1, date(2024, time.February, 29)},
		{"clamp does not stick", date(2025, time.January, 31), 2, date(2025, time.March, 31)},
		{"may 31 to april 30", date(2025, time.January, 31), 3, date(2025, time.April, 30)},
		{"year rollover", date(2025, time.November, 15), 3, date(2026, time.February, 15)},
		{"zero months", date(2025, time.June, 5), 0, date(2025, time.June, 5)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := ledger.AddMonthsClamped(c.from, c.months)
			if !got.Equal(c.want) {
				t.Errorf("AddMonthsClamped(%v, %d) = %v, want %v", c.from, c.months, got, c.want)
			}
		})
	}
}

func TestMonthBounds(t *testing.T) {
	start := ledger.MonthStart(date(2025, time.February, 17))
	if !start.Equal(date(2025, time.February, 1)) {
		t.Errorf("MonthStart = %v", start)
	}
	end := ledger.MonthEnd(start)
	if !end.Equal(date(2025, time.March, 1)) {
		t.Errorf("MonthEnd = %v, want exclusive first of next month", end)
	}
}

func TestClampTime(t *testing.T) {
	lo, hi := date(2025, time.June, 1), date(2025, time.July, 1)

	if got := ledger.ClampTime(date(2025, time.May, 20), lo, hi); !got.Equal(lo) {
		t.Errorf("below range: got %v", got)
	}
	if got := ledger.ClampTime(date(2025, time.June, 15), lo, hi); !got.Equal(date(2025, time.June, 15)) {
		t.Errorf("inside range: got %v", got)
	}
	if got := ledger.ClampTime(date(2025, time.August, 2), lo, hi); !got.Equal(hi) {
		t.Errorf("above range: got %v", got)
	}
}

func TestInstallmentIsOverdue(t *testing.T) {
	due := date(2025, time.June, 15)
	i := ledger.Installment{DueDate: due, Status: ledger.StatusPending}

	if i.IsOverdue(due) {
		t.Error("due today must not be overdue")
	}
	if i.IsOverdue(due.Add(10 * time.Hour)) {
		t.Error("later the same day must not be overdue")
	}
	if !i.IsOverdue(due.AddDate(0, 0, 1)) {
		t.Error("the day after the due date is overdue")
	}

	paid := ledger.Installment{DueDate: due, Status: ledger.StatusPaid}
	if paid.IsOverdue(due.AddDate(0, 1, 0)) {
		t.Error("paid installments are never overdue")
	}
}
