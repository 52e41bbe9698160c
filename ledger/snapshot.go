/*
snapshot.go - Monthly financial snapshot aggregation

PURPOSE:
  Materializes one calendar month of financial facts into a MonthlySnapshot
  row: salary, payments received, variable income/expenses, currently-active
  fixed expenses, the overdue/planned receivables split, active agreement
  and debtor counts, and the derived totals.

UPSERT SEMANTICS:
  Snapshots are keyed by the first-of-month date. Rebuilding a month
  overwrites the existing row in place; a month never has two rows. The
  persisted row doubles as the memo for that month.

RECEIVABLES SPLIT:
  All non-paid installments due before the month's end are partitioned by a
  cutoff = asOf clamped into the month: due strictly before the cutoff is
  overdue, due in [cutoff, monthEnd) is planned. Only installments with a
  positive remaining amount contribute. Same-day is never overdue.

KNOWN APPROXIMATION:
  FixedExpenses reflects the CURRENT active fixed-expense set regardless of
  which historical month is being rebuilt. Documented in DESIGN.md.

SEE ALSO:
  - projection.go: consumes trailing snapshots
  - store.go: the query shapes used here
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ledgerkit/debt-engine/money"
)

// =============================================================================
// AGGREGATOR
// =============================================================================

// Aggregator rebuilds monthly snapshots from the underlying entity set.
type Aggregator struct {
	Store Store
}

func NewAggregator(store Store) *Aggregator {
	return &Aggregator{Store: store}
}

// Rebuild computes the snapshot for the month containing monthStart, as
// seen at asOfDate, and upserts it under the month key.
func (ag *Aggregator) Rebuild(ctx context.Context, monthStart, asOfDate time.Time) (*MonthlySnapshot, error) {
	start := MonthStart(monthStart)
	end := MonthEnd(start) // exclusive

	snapshot := &MonthlySnapshot{
		ReferenceMonth: start,
		CalculatedAt:   time.Now().UTC(),
	}

	// Salary for the month.
	salary, err := ag.Store.SalaryByMonth(ctx, start)
	if err != nil {
		return nil, err
	}
	if salary != nil {
		snapshot.Salary = salary.Amount
	} else {
		snapshot.Salary = decimal.Zero
	}

	// Payments received during the month.
	payments, err := ag.Store.PaymentsInRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	received := decimal.Zero
	for _, p := range payments {
		received = received.Add(p.Amount)
	}
	snapshot.PaymentsReceived = received

	// Ad-hoc transactions, partitioned by kind.
	txs, err := ag.Store.TransactionsInRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	varIncome, varExpenses := decimal.Zero, decimal.Zero
	for _, t := range txs {
		switch t.Kind {
		case TransactionIncome:
			varIncome = varIncome.Add(t.Amount)
		case TransactionExpense:
			varExpenses = varExpenses.Add(t.Amount)
		}
	}
	snapshot.VariableIncome = varIncome
	snapshot.VariableExpenses = varExpenses

	// Currently-active fixed expenses (not scoped to the month).
	fixed, err := ag.Store.ActiveFixedExpenses(ctx)
	if err != nil {
		return nil, err
	}
	fixedTotal := decimal.Zero
	for _, e := range fixed {
		fixedTotal = fixedTotal.Add(e.Amount)
	}
	snapshot.FixedExpenses = fixedTotal

	// Receivables split: overdue vs planned, cutoff clamped into the month.
	overdue, planned, err := ag.receivablesSplit(ctx, start, end, asOfDate)
	if err != nil {
		return nil, err
	}
	snapshot.OverdueAmount = overdue
	snapshot.PlannedReceivables = planned

	// Active agreement and distinct debtor counts.
	open, err := ag.Store.OpenAgreements(ctx)
	if err != nil {
		return nil, err
	}
	debtors := make(map[DebtorID]struct{}, len(open))
	for _, a := range open {
		debtors[a.DebtorID] = struct{}{}
	}
	snapshot.ActiveAgreements = len(open)
	snapshot.ActiveDebtors = len(debtors)

	// Derived totals.
	snapshot.TotalIncome = money.Round2(snapshot.Salary.Add(snapshot.PaymentsReceived).Add(snapshot.VariableIncome))
	snapshot.TotalExpenses = money.Round2(snapshot.FixedExpenses.Add(snapshot.VariableExpenses))
	snapshot.NetBalance = snapshot.TotalIncome.Sub(snapshot.TotalExpenses)

	if err := ag.Store.SaveSnapshot(ctx, snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (ag *Aggregator) receivablesSplit(ctx context.Context, start, end, asOfDate time.Time) (overdue, planned decimal.Decimal, err error) {
	// Cutoff is the reference day clamped into [monthStart, monthEnd].
	cutoff := ClampTime(StartOfDay(asOfDate), start, end)

	unpaid, err := ag.Store.UnpaidInstallmentsDueBefore(ctx, end)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	overdue, planned = decimal.Zero, decimal.Zero
	for _, inst := range unpaid {
		remaining := inst.RemainingAmount()
		if !remaining.IsPositive() {
			continue
		}
		if inst.DueDate.Before(cutoff) {
			overdue = overdue.Add(remaining)
		} else {
			planned = planned.Add(remaining)
		}
	}
	return overdue, planned, nil
}

// =============================================================================
// RANGE REBUILD - Backfill across months
// =============================================================================

// RebuildRange rebuilds every month from fromMonth for the given count.
// Months are independent snapshot keys, so they rebuild concurrently; any
// failure cancels the rest and is returned.
func (ag *Aggregator) RebuildRange(ctx context.Context, fromMonth time.Time, months int, asOfDate time.Time) ([]MonthlySnapshot, error) {
	if months < 1 {
		return nil, nil
	}

	results := make([]MonthlySnapshot, months)
	g, gctx := errgroup.WithContext(ctx)
	for k := 0; k < months; k++ {
		k := k
		month := MonthStart(fromMonth).AddDate(0, k, 0)
		g.Go(func() error {
			s, err := ag.Rebuild(gctx, month, asOfDate)
			if err != nil {
				return err
			}
			results[k] = *s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
