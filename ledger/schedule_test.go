package ledger_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerkit/debt-engine/ledger"
	"github.com/ledgerkit/debt-engine/ledger/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================
// Shared by the other _test.go files in this package.

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// sequentialIDs returns a deterministic id generator for allocator tests.
func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return prefix + "-" + strconv.Itoa(n)
	}
}

// seedAgreement creates a debtor and an agreement with its schedule in one
// call, returning the generated installments.
func seedAgreement(t *testing.T, st ledger.TxStore, id string, principal string, count int, rate string, firstDue time.Time) []ledger.Installment {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, st.SaveDebtor(ctx, &ledger.Debtor{
		ID:        ledger.DebtorID("debtor-" + id),
		Name:      "Debtor " + id,
		CreatedAt: date(2025, time.January, 1),
	}))

	_, installments, err := ledger.CreateAgreement(ctx, st, ledger.CreateAgreementInput{
		ID:               ledger.AgreementID(id),
		DebtorID:         ledger.DebtorID("debtor-" + id),
		Principal:        dec(principal),
		MonthlyRate:      dec(rate),
		InstallmentCount: count,
		Currency:         "EUR",
		StartDate:        firstDue,
		FirstDueDate:     firstDue,
	}, date(2025, time.January, 1))
	require.NoError(t, err)
	return installments
}

// =============================================================================
// LINEAR SCHEDULE TESTS
// =============================================================================

func TestGenerateSchedule_LinearSumInvariant(t *testing.T) {
	// GIVEN: 1000 split into 3 interest-free installments
	// WHEN: generating the schedule
	// THEN: amounts are 333.33, 333.33, 333.34 and sum to the principal exactly

	entries, err := ledger.GenerateSchedule(dec("1000"), 3, decimal.Zero, date(2025, time.March, 10))
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.True(t, entries[0].Amount.Equal(dec("333.33")), "got %s", entries[0].Amount)
	assert.True(t, entries[1].Amount.Equal(dec("333.33")), "got %s", entries[1].Amount)
	assert.True(t, entries[2].Amount.Equal(dec("333.34")), "got %s", entries[2].Amount)

	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.Amount)
	}
	assert.True(t, sum.Equal(dec("1000")), "sum = %s", sum)
}

func TestGenerateSchedule_LinearSumInvariantHolds(t *testing.T) {
	// Last installment absorbs the remainder for awkward divisions too.
	cases := []struct {
		principal string
		count     int
	}{
		{"100", 3},
		{"999.99", 7},
		{"1", 12},
		{"0.03", 2},
	}
	for _, c := range cases {
		entries, err := ledger.GenerateSchedule(dec(c.principal), c.count, decimal.Zero, date(2025, time.June, 1))
		require.NoError(t, err)

		sum := decimal.Zero
		for _, e := range entries {
			sum = sum.Add(e.Amount)
		}
		assert.True(t, sum.Equal(dec(c.principal)), "%s/%d: sum = %s", c.principal, c.count, sum)
	}
}

func TestGenerateSchedule_MonthlyDueDates(t *testing.T) {
	entries, err := ledger.GenerateSchedule(dec("300"), 3, decimal.Zero, date(2025, time.March, 10))
	require.NoError(t, err)

	assert.Equal(t, date(2025, time.March, 10), entries[0].DueDate)
	assert.Equal(t, date(2025, time.April, 10), entries[1].DueDate)
	assert.Equal(t, date(2025, time.May, 10), entries[2].DueDate)
}

func TestGenerateSchedule_DueDayClampedToShortMonths(t *testing.T) {
	// GIVEN: first due date on January 31st
	// THEN: February clamps to the 28th, April to the 30th, May back to the 31st

	entries, err := ledger.GenerateSchedule(dec("500"), 5, decimal.Zero, date(2025, time.January, 31))
	require.NoError(t, err)

	assert.Equal(t, date(2025, time.January, 31), entries[0].DueDate)
	assert.Equal(t, date(2025, time.February, 28), entries[1].DueDate)
	assert.Equal(t, date(2025, time.March, 31), entries[2].DueDate)
	assert.Equal(t, date(2025, time.April, 30), entries[3].DueDate)
	assert.Equal(t, date(2025, time.May, 31), entries[4].DueDate)
}

// =============================================================================
// PRICE SCHEDULE TESTS
// =============================================================================

func TestGenerateSchedule_PriceEqualInstallments(t *testing.T) {
	// GIVEN: 1000 at 2% monthly over 12 installments
	// THEN: installments 1..11 share one constant amount; the final one
	//       closes the remaining balance and the total exceeds the principal

	entries, err := ledger.GenerateSchedule(dec("1000"), 12, dec("0.02"), date(2025, time.January, 15))
	require.NoError(t, err)
	require.Len(t, entries, 12)

	pmt := entries[0].Amount
	for k := 1; k < 11; k++ {
		assert.True(t, entries[k].Amount.Equal(pmt), "installment %d = %s, want %s", k+1, entries[k].Amount, pmt)
	}

	total := decimal.Zero
	for _, e := range entries {
		assert.True(t, e.Amount.IsPositive())
		total = total.Add(e.Amount)
	}
	assert.True(t, total.GreaterThan(dec("1000")), "total = %s", total)

	// The closing installment stays within a few cents of the constant
	// payment; it only absorbs rounding drift.
	drift := entries[11].Amount.Sub(pmt).Abs()
	assert.True(t, drift.LessThan(dec("0.25")), "final drift = %s", drift)
}

func TestGenerateSchedule_PercentRateMatchesFraction(t *testing.T) {
	// A rate of 2 (percent) and 0.02 (fraction) produce identical schedules.
	percent, err := ledger.GenerateSchedule(dec("2500"), 6, dec("2"), date(2025, time.February, 1))
	require.NoError(t, err)
	fraction, err := ledger.GenerateSchedule(dec("2500"), 6, dec("0.02"), date(2025, time.February, 1))
	require.NoError(t, err)

	for k := range percent {
		assert.True(t, percent[k].Amount.Equal(fraction[k].Amount),
			"installment %d: %s vs %s", k+1, percent[k].Amount, fraction[k].Amount)
	}
}

func TestGenerateSchedule_SingleInstallment(t *testing.T) {
	entries, err := ledger.GenerateSchedule(dec("250"), 1, decimal.Zero, date(2025, time.July, 1))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Amount.Equal(dec("250")))
}

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestGenerateSchedule_Validation(t *testing.T) {
	firstDue := date(2025, time.January, 1)

	_, err := ledger.GenerateSchedule(decimal.Zero, 3, decimal.Zero, firstDue)
	assert.ErrorIs(t, err, ledger.ErrInvalidPrincipal)

	_, err = ledger.GenerateSchedule(dec("-10"), 3, decimal.Zero, firstDue)
	assert.ErrorIs(t, err, ledger.ErrInvalidPrincipal)

	_, err = ledger.GenerateSchedule(dec("100"), 0, decimal.Zero, firstDue)
	assert.ErrorIs(t, err, ledger.ErrInvalidInstallmentCount)

	_, err = ledger.GenerateSchedule(dec("100"), 3, dec("-0.01"), firstDue)
	assert.ErrorIs(t, err, ledger.ErrInvalidRate)

	assert.True(t, ledger.IsValidation(err))
}

// =============================================================================
// AGREEMENT CREATION TESTS
// =============================================================================

func TestCreateAgreement_PersistsFullBatch(t *testing.T) {
	// GIVEN: a fresh store
	// WHEN: creating an agreement for 1000 over 3 months
	// THEN: the agreement and all 3 pending installments are persisted together

	st := store.NewTxMemory()
	ctx := context.Background()

	installments := seedAgreement(t, st, "agr-1", "1000", 3, "0", date(2025, time.March, 10))
	require.Len(t, installments, 3)

	agreement, err := st.Agreement(ctx, "agr-1")
	require.NoError(t, err)
	require.NotNil(t, agreement)
	assert.False(t, agreement.Closed)

	stored, err := st.InstallmentsByAgreement(ctx, "agr-1")
	require.NoError(t, err)
	require.Len(t, stored, 3)
	for k, inst := range stored {
		assert.Equal(t, k+1, inst.Number)
		assert.Equal(t, ledger.StatusPending, inst.Status)
		assert.True(t, inst.PaidAmount.IsZero())
	}
}

func TestCreateAgreement_NormalizesPercentRate(t *testing.T) {
	st := store.NewTxMemory()
	ctx := context.Background()

	require.NoError(t, st.SaveDebtor(ctx, &ledger.Debtor{ID: "d-1", Name: "D", CreatedAt: date(2025, time.January, 1)}))
	agreement, _, err := ledger.CreateAgreement(ctx, st, ledger.CreateAgreementInput{
		ID:               "agr-rate",
		DebtorID:         "d-1",
		Principal:        dec("1000"),
		MonthlyRate:      dec("2.5"),
		InstallmentCount: 4,
		Currency:         "EUR",
		StartDate:        date(2025, time.January, 1),
		FirstDueDate:     date(2025, time.February, 1),
	}, date(2025, time.January, 1))
	require.NoError(t, err)

	assert.True(t, agreement.MonthlyRate.Equal(dec("0.025")), "stored rate = %s", agreement.MonthlyRate)
}

func TestCreateAgreement_InvalidInputPersistsNothing(t *testing.T) {
	st := store.NewTxMemory()
	ctx := context.Background()

	_, _, err := ledger.CreateAgreement(ctx, st, ledger.CreateAgreementInput{
		ID:               "agr-bad",
		DebtorID:         "d-1",
		Principal:        decimal.Zero,
		InstallmentCount: 3,
		FirstDueDate:     date(2025, time.January, 1),
	}, date(2025, time.January, 1))
	require.Error(t, err)

	agreement, err := st.Agreement(ctx, "agr-bad")
	require.NoError(t, err)
	assert.Nil(t, agreement)
}
