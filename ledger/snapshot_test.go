package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerkit/debt-engine/ledger"
	"github.com/ledgerkit/debt-engine/ledger/store"
)

// Note: date, dec and seedAgreement are defined in schedule_test.go.

func seedMonthFacts(t *testing.T, st ledger.Store, month time.Time) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, st.SaveSalary(ctx, &ledger.SalaryRecord{
		ID:             "sal-" + month.Format("2006-01"),
		ReferenceMonth: ledger.MonthStart(month),
		Amount:         dec("2000"),
	}))
	require.NoError(t, st.SaveTransaction(ctx, &ledger.CashTransaction{
		ID:          "tx-inc-" + month.Format("2006-01"),
		Date:        month.AddDate(0, 0, 4),
		Amount:      dec("150"),
		Kind:        ledger.TransactionIncome,
		Description: "side job",
	}))
	require.NoError(t, st.SaveTransaction(ctx, &ledger.CashTransaction{
		ID:          "tx-exp-" + month.Format("2006-01"),
		Date:        month.AddDate(0, 0, 10),
		Amount:      dec("300"),
		Kind:        ledger.TransactionExpense,
		Description: "groceries",
	}))
	require.NoError(t, st.SaveFixedExpense(ctx, &ledger.FixedExpense{
		ID:     "fix-rent",
		Name:   "rent",
		Amount: dec("700"),
		Active: true,
	}))
	require.NoError(t, st.SaveFixedExpense(ctx, &ledger.FixedExpense{
		ID:     "fix-old-gym",
		Name:   "gym",
		Amount: dec("45"),
		Active: false,
	}))
}

// =============================================================================
// REBUILD TESTS
// =============================================================================

func TestRebuild_TotalsAndNetBalance(t *testing.T) {
	// GIVEN: salary 2000, variable income 150, payment 100 received,
	//        variable expense 300, active fixed expense 700
	// THEN: income 2250, expenses 1000, net 1250

	st := store.NewTxMemory()
	ctx := context.Background()
	month := date(2025, time.June, 1)
	seedMonthFacts(t, st, month)

	installments := seedAgreement(t, st, "agr-1", "600", 2, "0", date(2025, time.June, 15))
	al, _ := newTestAllocator(st)
	_, err := al.ApplyPayment(ctx, installments[0].ID, dec("100"), date(2025, time.June, 16), "cash", "")
	require.NoError(t, err)

	snap, err := ledger.NewAggregator(st).Rebuild(ctx, month, date(2025, time.June, 20))
	require.NoError(t, err)

	assert.Equal(t, month, snap.ReferenceMonth)
	assert.True(t, snap.Salary.Equal(dec("2000")))
	assert.True(t, snap.PaymentsReceived.Equal(dec("100")))
	assert.True(t, snap.VariableIncome.Equal(dec("150")))
	assert.True(t, snap.VariableExpenses.Equal(dec("300")))
	assert.True(t, snap.FixedExpenses.Equal(dec("700")), "inactive expenses must not count")
	assert.True(t, snap.TotalIncome.Equal(dec("2250")), "income = %s", snap.TotalIncome)
	assert.True(t, snap.TotalExpenses.Equal(dec("1000")))
	assert.True(t, snap.NetBalance.Equal(dec("1250")))
	assert.Equal(t, 1, snap.ActiveAgreements)
	assert.Equal(t, 1, snap.ActiveDebtors)
}

func TestRebuild_OverduePlannedSplit(t *testing.T) {
	// GIVEN: installments due June 10 and June 20, rebuilt as of June 15
	// THEN: the June 10 one is overdue, the June 20 one is planned

	st := store.NewTxMemory()
	ctx := context.Background()
	seedAgreement(t, st, "agr-1", "600", 2, "0", date(2025, time.June, 10))

	snap, err := ledger.NewAggregator(st).Rebuild(ctx, date(2025, time.June, 1), date(2025, time.June, 15))
	require.NoError(t, err)

	// 600/2 = 300 each; installment 2 is due July 10 so it falls outside
	// the June window entirely.
	assert.True(t, snap.OverdueAmount.Equal(dec("300")), "overdue = %s", snap.OverdueAmount)
	assert.True(t, snap.PlannedReceivables.IsZero(), "planned = %s", snap.PlannedReceivables)
}

func TestRebuild_DueTodayIsPlannedNotOverdue(t *testing.T) {
	// An installment due on the as-of day itself is never overdue.
	st := store.NewTxMemory()
	ctx := context.Background()
	seedAgreement(t, st, "agr-1", "300", 1, "0", date(2025, time.June, 15))
	ag := ledger.NewAggregator(st)

	snap, err := ag.Rebuild(ctx, date(2025, time.June, 1), date(2025, time.June, 15))
	require.NoError(t, err)
	assert.True(t, snap.OverdueAmount.IsZero())
	assert.True(t, snap.PlannedReceivables.Equal(dec("300")))

	// One day later it tips over.
	snap, err = ag.Rebuild(ctx, date(2025, time.June, 1), date(2025, time.June, 16))
	require.NoError(t, err)
	assert.True(t, snap.OverdueAmount.Equal(dec("300")))
	assert.True(t, snap.PlannedReceivables.IsZero())
}

func TestRebuild_PartialPaymentReducesReceivables(t *testing.T) {
	st := store.NewTxMemory()
	ctx := context.Background()
	installments := seedAgreement(t, st, "agr-1", "300", 1, "0", date(2025, time.June, 10))
	al, _ := newTestAllocator(st)
	_, err := al.ApplyPayment(ctx, installments[0].ID, dec("120"), date(2025, time.June, 11), "cash", "")
	require.NoError(t, err)

	snap, err := ledger.NewAggregator(st).Rebuild(ctx, date(2025, time.June, 1), date(2025, time.June, 20))
	require.NoError(t, err)
	assert.True(t, snap.OverdueAmount.Equal(dec("180")), "overdue = %s", snap.OverdueAmount)
}

func TestRebuild_Idempotent(t *testing.T) {
	// GIVEN: a month already snapshotted
	// WHEN: rebuilding it again with unchanged facts
	// THEN: exactly one row exists and the figures are identical

	st := store.NewTxMemory()
	ctx := context.Background()
	month := date(2025, time.June, 1)
	seedMonthFacts(t, st, month)
	ag := ledger.NewAggregator(st)

	first, err := ag.Rebuild(ctx, month, date(2025, time.June, 20))
	require.NoError(t, err)
	second, err := ag.Rebuild(ctx, month, date(2025, time.June, 20))
	require.NoError(t, err)

	assert.True(t, first.NetBalance.Equal(second.NetBalance))

	all, err := st.SnapshotsInRange(ctx, month, month.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRebuild_NormalizesToMonthStart(t *testing.T) {
	st := store.NewTxMemory()
	ctx := context.Background()

	snap, err := ledger.NewAggregator(st).Rebuild(ctx, date(2025, time.June, 17), date(2025, time.June, 17))
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.June, 1), snap.ReferenceMonth)

	stored, err := st.SnapshotByMonth(ctx, date(2025, time.June, 1))
	require.NoError(t, err)
	require.NotNil(t, stored)
}

// =============================================================================
// RANGE REBUILD TESTS
// =============================================================================

func TestRebuildRange_BackfillsEachMonth(t *testing.T) {
	st := store.NewTxMemory()
	ctx := context.Background()
	for k := 0; k < 3; k++ {
		month := date(2025, time.March, 1).AddDate(0, k, 0)
		require.NoError(t, st.SaveSalary(ctx, &ledger.SalaryRecord{
			ID:             "sal-" + month.Format("2006-01"),
			ReferenceMonth: month,
			Amount:         dec("1800"),
		}))
	}

	snaps, err := ledger.NewAggregator(st).RebuildRange(ctx, date(2025, time.March, 1), 3, date(2025, time.June, 1))
	require.NoError(t, err)
	require.Len(t, snaps, 3)

	for k, s := range snaps {
		assert.Equal(t, date(2025, time.March, 1).AddDate(0, k, 0), s.ReferenceMonth)
		assert.True(t, s.Salary.Equal(dec("1800")))
	}
}

func TestRebuildRange_ZeroMonths(t *testing.T) {
	snaps, err := ledger.NewAggregator(store.NewTxMemory()).RebuildRange(context.Background(), date(2025, time.March, 1), 0, date(2025, time.June, 1))
	require.NoError(t, err)
	assert.Empty(t, snaps)
}
