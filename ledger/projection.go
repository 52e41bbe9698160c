/*
projection.go - Cash-flow projection from trailing snapshots

PURPOSE:
  Derives forward-looking monthly projections by blending three sources:
  1. Historical averages over the trailing snapshot window (salary,
     variable income, variable expenses)
  2. Confirmed near-term data (a salary record for the target month, the
     remaining amounts on installments due in that month, active fixed
     expenses)
  3. A scenario multiplier profile applied to the variable legs

LOOKBACK WINDOW:
  The trailing 6 calendar months EXCLUDING the current partial month. An
  incomplete month would skew the averages; this is a deliberate choice
  between two observed behaviors, recorded in DESIGN.md. The run fails with
  ErrInsufficientHistory when the window has zero snapshots.

CONFIDENCE:
  max(0.40, 0.90 - 0.05*(offset-1)): 90% for the first projected month,
  decaying five points per month, floored at 40%.

UPSERT SEMANTICS:
  One row per (target month, scenario). A newer run overwrites the existing
  row; stale rows for the same key are deleted first. All months of a run
  persist in one transaction - a failure at month k leaves nothing behind.

SEE ALSO:
  - snapshot.go: produces the history consumed here
  - types.go: Scenario and CashFlowProjection
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerkit/debt-engine/money"
)

// =============================================================================
// SCENARIO MULTIPLIERS
// =============================================================================

// ScenarioMultipliers scales the projected variable income and expense legs.
type ScenarioMultipliers struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
}

// ScenarioTable maps each scenario to its multiplier profile. The defaults
// use the +-10% profile; callers may override per deployment.
type ScenarioTable map[Scenario]ScenarioMultipliers

// DefaultScenarios returns the standard multiplier table:
// realistic 1.00/1.00, optimistic 1.10/0.90, pessimistic 0.90/1.10.
func DefaultScenarios() ScenarioTable {
	return ScenarioTable{
		ScenarioRealistic:   {Income: money.MustParse("1.00"), Expense: money.MustParse("1.00")},
		ScenarioOptimistic:  {Income: money.MustParse("1.10"), Expense: money.MustParse("0.90")},
		ScenarioPessimistic: {Income: money.MustParse("0.90"), Expense: money.MustParse("1.10")},
	}
}

// LookbackMonths is the trailing window width for historical averages.
const LookbackMonths = 6

// Confidence bounds for projected months.
var (
	confidenceStart = money.MustParse("0.90")
	confidenceStep  = money.MustParse("0.05")
	confidenceFloor = money.MustParse("0.40")
)

// =============================================================================
// PROJECTOR
// =============================================================================

// Projector derives cash-flow projections from snapshot history.
type Projector struct {
	Store     TxStore
	Scenarios ScenarioTable
}

func NewProjector(store TxStore, scenarios ScenarioTable) *Projector {
	if scenarios == nil {
		scenarios = DefaultScenarios()
	}
	return &Projector{Store: store, Scenarios: scenarios}
}

// Project computes one projection per future month, ordered by month, and
// upserts the whole run atomically.
func (pr *Projector) Project(ctx context.Context, monthsAhead int, scenario Scenario, now time.Time) ([]CashFlowProjection, error) {
	if monthsAhead < 1 {
		return nil, nil
	}
	multipliers, ok := pr.Scenarios[scenario]
	if !ok {
		return nil, newValidationError(ErrInvalidScenario, "scenario", string(scenario))
	}

	currentMonth := MonthStart(now)

	// Historical averages over the trailing window, current month excluded.
	windowStart := currentMonth.AddDate(0, -LookbackMonths, 0)
	history, err := pr.Store.SnapshotsInRange(ctx, windowStart, currentMonth)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, &InsufficientHistoryError{
			From: windowStart.Format("2006-01"),
			To:   currentMonth.AddDate(0, -1, 0).Format("2006-01"),
		}
	}

	salaries := make([]decimal.Decimal, len(history))
	incomes := make([]decimal.Decimal, len(history))
	expenses := make([]decimal.Decimal, len(history))
	for i, s := range history {
		salaries[i] = s.Salary
		incomes[i] = s.VariableIncome
		expenses[i] = s.VariableExpenses
	}
	avgSalary := money.Mean(salaries)
	avgVariableIncome := money.Mean(incomes)
	avgVariableExpenses := money.Mean(expenses)

	// Active fixed expenses apply to every projected month.
	fixed, err := pr.Store.ActiveFixedExpenses(ctx)
	if err != nil {
		return nil, err
	}
	fixedTotal := decimal.Zero
	for _, e := range fixed {
		fixedTotal = fixedTotal.Add(e.Amount)
	}

	calculatedAt := time.Now().UTC()
	projections := make([]CashFlowProjection, 0, monthsAhead)
	for offset := 1; offset <= monthsAhead; offset++ {
		target := currentMonth.AddDate(0, offset, 0)

		p, err := pr.projectMonth(ctx, target, offset, multipliers, monthInputs{
			avgSalary:           avgSalary,
			avgVariableIncome:   avgVariableIncome,
			avgVariableExpenses: avgVariableExpenses,
			fixedExpenses:       fixedTotal,
		})
		if err != nil {
			return nil, err
		}
		p.Scenario = scenario
		p.CalculatedAt = calculatedAt
		projections = append(projections, *p)
	}

	// Persist the run all-or-nothing, replacing stale rows per key.
	err = pr.Store.WithTx(ctx, func(s Store) error {
		for i := range projections {
			p := projections[i]
			if err := s.DeleteProjection(ctx, p.TargetMonth, p.Scenario); err != nil {
				return err
			}
			if err := s.SaveProjection(ctx, &p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return projections, nil
}

type monthInputs struct {
	avgSalary           decimal.Decimal
	avgVariableIncome   decimal.Decimal
	avgVariableExpenses decimal.Decimal
	fixedExpenses       decimal.Decimal
}

func (pr *Projector) projectMonth(ctx context.Context, target time.Time, offset int, m ScenarioMultipliers, in monthInputs) (*CashFlowProjection, error) {
	// Confirmed salary for the target month wins over the average.
	salary := in.avgSalary
	if record, err := pr.Store.SalaryByMonth(ctx, target); err != nil {
		return nil, err
	} else if record != nil {
		salary = record.Amount
	}

	// Confirmed payments: remaining amounts on non-paid installments due in
	// the target month.
	unpaid, err := pr.Store.UnpaidInstallmentsDueIn(ctx, target, MonthEnd(target))
	if err != nil {
		return nil, err
	}
	confirmed := decimal.Zero
	for _, inst := range unpaid {
		confirmed = confirmed.Add(inst.RemainingAmount())
	}

	variableIncome := money.Round2(in.avgVariableIncome.Mul(m.Income))
	variableExpenses := money.Round2(in.avgVariableExpenses.Mul(m.Expense))
	salary = money.Round2(salary)

	totalIncome := salary.Add(confirmed).Add(variableIncome)
	totalExpenses := in.fixedExpenses.Add(variableExpenses)

	return &CashFlowProjection{
		TargetMonth:               target,
		ProjectedSalary:           salary,
		ProjectedPayments:         confirmed,
		ProjectedVariableIncome:   variableIncome,
		ProjectedVariableExpenses: variableExpenses,
		ProjectedFixedExpenses:    in.fixedExpenses,
		TotalIncome:               totalIncome,
		TotalExpenses:             totalExpenses,
		NetBalance:                totalIncome.Sub(totalExpenses),
		Confidence:                confidenceFor(offset),
	}, nil
}

// confidenceFor decays from 90% by 5 points per month, floored at 40%.
func confidenceFor(offset int) decimal.Decimal {
	c := confidenceStart.Sub(confidenceStep.Mul(decimal.NewFromInt(int64(offset - 1))))
	if c.LessThan(confidenceFloor) {
		return confidenceFloor
	}
	return c
}
