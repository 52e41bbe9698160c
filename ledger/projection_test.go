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

// seedHistory writes count trailing snapshots ending the month before now.
func seedHistory(t *testing.T, st ledger.Store, now time.Time, count int) {
	t.Helper()
	ctx := context.Background()
	current := ledger.MonthStart(now)
	for k := 1; k <= count; k++ {
		month := current.AddDate(0, -k, 0)
		require.NoError(t, st.SaveSnapshot(ctx, &ledger.MonthlySnapshot{
			ReferenceMonth:   month,
			Salary:           dec("2000"),
			VariableIncome:   dec("100"),
			VariableExpenses: dec("300"),
			CalculatedAt:     now,
		}))
	}
}

// =============================================================================
// PROJECTION TESTS
// =============================================================================

func TestProject_RealisticUsesHistoricalAverages(t *testing.T) {
	// GIVEN: 6 months of history (salary 2000, var income 100, var expense
	//        300) and an active fixed expense of 1000
	// WHEN: projecting 1 month under the realistic scenario
	// THEN: the variable legs match the averages and fixed carries through

	st := store.NewTxMemory()
	ctx := context.Background()
	now := date(2025, time.July, 15)
	seedHistory(t, st, now, 6)
	require.NoError(t, st.SaveFixedExpense(ctx, &ledger.FixedExpense{
		ID: "fix-rent", Name: "rent", Amount: dec("1000"), Active: true,
	}))

	projections, err := ledger.NewProjector(st, nil).Project(ctx, 1, ledger.ScenarioRealistic, now)
	require.NoError(t, err)
	require.Len(t, projections, 1)

	p := projections[0]
	assert.Equal(t, date(2025, time.August, 1), p.TargetMonth)
	assert.True(t, p.ProjectedSalary.Equal(dec("2000")))
	assert.True(t, p.ProjectedVariableIncome.Equal(dec("100")))
	assert.True(t, p.ProjectedVariableExpenses.Equal(dec("300")))
	assert.True(t, p.ProjectedFixedExpenses.Equal(dec("1000")))
	assert.True(t, p.TotalExpenses.Equal(dec("1300")), "expenses = %s", p.TotalExpenses)
	assert.True(t, p.NetBalance.Equal(dec("800")), "net = %s", p.NetBalance)
	assert.True(t, p.Confidence.Equal(dec("0.90")))
}

func TestProject_ScenarioMultipliersScaleVariableLegs(t *testing.T) {
	st := store.NewTxMemory()
	ctx := context.Background()
	now := date(2025, time.July, 15)
	seedHistory(t, st, now, 6)
	pr := ledger.NewProjector(st, nil)

	optimistic, err := pr.Project(ctx, 1, ledger.ScenarioOptimistic, now)
	require.NoError(t, err)
	assert.True(t, optimistic[0].ProjectedVariableIncome.Equal(dec("110")), "income = %s", optimistic[0].ProjectedVariableIncome)
	assert.True(t, optimistic[0].ProjectedVariableExpenses.Equal(dec("270")), "expenses = %s", optimistic[0].ProjectedVariableExpenses)

	pessimistic, err := pr.Project(ctx, 1, ledger.ScenarioPessimistic, now)
	require.NoError(t, err)
	assert.True(t, pessimistic[0].ProjectedVariableIncome.Equal(dec("90")))
	assert.True(t, pessimistic[0].ProjectedVariableExpenses.Equal(dec("330")))

	// Salary is never scaled by the scenario.
	assert.True(t, optimistic[0].ProjectedSalary.Equal(pessimistic[0].ProjectedSalary))
}

func TestProject_ConfirmedSalaryOverridesAverage(t *testing.T) {
	st := store.NewTxMemory()
	ctx := context.Background()
	now := date(2025, time.July, 15)
	seedHistory(t, st, now, 6)

	// A salary record already exists for the target month.
	require.NoError(t, st.SaveSalary(ctx, &ledger.SalaryRecord{
		ID:             "sal-2025-08",
		ReferenceMonth: date(2025, time.August, 1),
		Amount:         dec("2400"),
	}))

	projections, err := ledger.NewProjector(st, nil).Project(ctx, 1, ledger.ScenarioRealistic, now)
	require.NoError(t, err)
	assert.True(t, projections[0].ProjectedSalary.Equal(dec("2400")))
}

func TestProject_ConfirmedInstallmentsDueInTargetMonth(t *testing.T) {
	// GIVEN: an unpaid installment of 250 due August 10
	// THEN: August's projection counts its remaining amount as confirmed

	st := store.NewTxMemory()
	ctx := context.Background()
	now := date(2025, time.July, 15)
	seedHistory(t, st, now, 3)
	seedAgreement(t, st, "agr-1", "250", 1, "0", date(2025, time.August, 10))

	projections, err := ledger.NewProjector(st, nil).Project(ctx, 2, ledger.ScenarioRealistic, now)
	require.NoError(t, err)
	require.Len(t, projections, 2)

	assert.True(t, projections[0].ProjectedPayments.Equal(dec("250")))
	assert.True(t, projections[1].ProjectedPayments.IsZero())
}

func TestProject_ConfidenceDecaysToFloor(t *testing.T) {
	st := store.NewTxMemory()
	now := date(2025, time.July, 15)
	seedHistory(t, st, now, 6)

	projections, err := ledger.NewProjector(st, nil).Project(context.Background(), 14, ledger.ScenarioRealistic, now)
	require.NoError(t, err)
	require.Len(t, projections, 14)

	assert.True(t, projections[0].Confidence.Equal(dec("0.90")))
	assert.True(t, projections[1].Confidence.Equal(dec("0.85")))
	assert.True(t, projections[10].Confidence.Equal(dec("0.40")))
	// Month 12 onward stays at the floor.
	assert.True(t, projections[11].Confidence.Equal(dec("0.40")))
	assert.True(t, projections[13].Confidence.Equal(dec("0.40")))
}

func TestProject_InsufficientHistory(t *testing.T) {
	st := store.NewTxMemory()

	_, err := ledger.NewProjector(st, nil).Project(context.Background(), 3, ledger.ScenarioRealistic, date(2025, time.July, 15))
	assert.ErrorIs(t, err, ledger.ErrInsufficientHistory)
}

func TestProject_CurrentMonthExcludedFromWindow(t *testing.T) {
	// A snapshot for the current (partial) month alone is not history.
	st := store.NewTxMemory()
	ctx := context.Background()
	now := date(2025, time.July, 15)
	require.NoError(t, st.SaveSnapshot(ctx, &ledger.MonthlySnapshot{
		ReferenceMonth: date(2025, time.July, 1),
		Salary:         dec("9999"),
		CalculatedAt:   now,
	}))

	_, err := ledger.NewProjector(st, nil).Project(ctx, 1, ledger.ScenarioRealistic, now)
	assert.ErrorIs(t, err, ledger.ErrInsufficientHistory)
}

func TestProject_UnknownScenario(t *testing.T) {
	st := store.NewTxMemory()
	seedHistory(t, st, date(2025, time.July, 15), 3)

	_, err := ledger.NewProjector(st, nil).Project(context.Background(), 1, "catastrophic", date(2025, time.July, 15))
	assert.ErrorIs(t, err, ledger.ErrInvalidScenario)
}

func TestProject_RerunOverwritesByKey(t *testing.T) {
	// GIVEN: a stored projection run
	// WHEN: facts change and the run repeats
	// THEN: one row per (month, scenario) remains, carrying the new figures

	st := store.NewTxMemory()
	ctx := context.Background()
	now := date(2025, time.July, 15)
	seedHistory(t, st, now, 6)
	pr := ledger.NewProjector(st, nil)

	_, err := pr.Project(ctx, 2, ledger.ScenarioRealistic, now)
	require.NoError(t, err)

	require.NoError(t, st.SaveFixedExpense(ctx, &ledger.FixedExpense{
		ID: "fix-new", Name: "insurance", Amount: dec("80"), Active: true,
	}))
	_, err = pr.Project(ctx, 2, ledger.ScenarioRealistic, now)
	require.NoError(t, err)

	stored, err := st.ProjectionsByScenario(ctx, ledger.ScenarioRealistic)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	for _, p := range stored {
		assert.True(t, p.ProjectedFixedExpenses.Equal(dec("80")))
	}
}
