/*
Package ledger implements the financial computation engine for a personal
debt ledger: amortization schedules, payment allocation, agreement closure,
monthly snapshots and cash-flow projections.

PURPOSE:
  This package is the source of truth for how debts owed by third parties
  evolve over time. Agreements own batches of installments generated up
  front; payments reduce installment balances; a closed agreement is exactly
  one whose installments are all paid; monthly snapshots materialize income
  and expense facts; projections extrapolate from trailing snapshots.

KEY CONCEPTS IN THIS FILE (types.go):
  - Debtor/Agreement/Installment/Payment: the debt side of the ledger
  - SalaryRecord/CashTransaction/FixedExpense: the cash-flow fact side
  - MonthlySnapshot: per-month aggregate, keyed by first-of-month date
  - CashFlowProjection: forward-looking aggregate, keyed by (month, scenario)

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal end-to-end, no float64 for money
  2. Derived over stored: overdue-ness and remaining amounts are computed
     from due dates and payments, not trusted from persisted flags
  3. Mutation funnels: installments change only through the Allocator,
     agreement closure only through ReevaluateAgreement

SEE ALSO:
  - schedule.go: installment batch generation
  - allocate.go: the single mutation point for payments
  - snapshot.go, projection.go: monthly aggregation and forecasting
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerkit/debt-engine/money"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type DebtorID string
type AgreementID string
type InstallmentID string
type PaymentID string

// =============================================================================
// DEBTOR
// =============================================================================

type Debtor struct {
	ID        DebtorID
	Name      string
	Phone     string
	Note      string
	CreatedAt time.Time
}

// =============================================================================
// AGREEMENT - A parcelled debt contract with one debtor
// =============================================================================

// Agreement is a debt split into installments, all generated together at
// creation time. Closed is maintained by ReevaluateAgreement and holds
// exactly when the agreement has a non-empty, fully paid installment set.
type Agreement struct {
	ID               AgreementID
	DebtorID         DebtorID
	Principal        decimal.Decimal
	MonthlyRate      decimal.Decimal // normalized fraction; zero = interest-free
	InstallmentCount int
	Currency         string
	StartDate        time.Time
	FirstDueDate     time.Time
	Closed           bool
	CreatedAt        time.Time
}

// =============================================================================
// INSTALLMENT - One scheduled obligation within an agreement
// =============================================================================

type InstallmentStatus string

const (
	StatusPending InstallmentStatus = "pending"
	StatusPartial InstallmentStatus = "partial"
	StatusPaid    InstallmentStatus = "paid"
	// StatusOverdue exists for callers that persist overdue-ness explicitly.
	// Fresh reads should prefer the IsOverdue predicate over this value.
	StatusOverdue InstallmentStatus = "overdue"
)

// ValidStatus reports whether s is one of the four installment statuses.
func ValidStatus(s InstallmentStatus) bool {
	switch s {
	case StatusPending, StatusPartial, StatusPaid, StatusOverdue:
		return true
	}
	return false
}

type Installment struct {
	ID          InstallmentID
	AgreementID AgreementID
	Number      int // 1..N, unique within the agreement
	DueDate     time.Time
	Amount      decimal.Decimal // fixed face value, > 0
	PaidAmount  decimal.Decimal // accumulated, capped at Amount
	Status      InstallmentStatus
}

// RemainingAmount is always clamped to [0, Amount] regardless of how
// PaidAmount was accumulated.
func (i Installment) RemainingAmount() decimal.Decimal {
	return money.Clamp(i.Amount.Sub(i.PaidAmount), decimal.Zero, i.Amount)
}

// IsOverdue is the derived overdue predicate: the due date falls strictly
// before the start of the reference day and the installment is not paid.
// An installment due today is never overdue.
func (i Installment) IsOverdue(asOf time.Time) bool {
	if i.Status == StatusPaid {
		return false
	}
	return StartOfDay(i.DueDate).Before(StartOfDay(asOf))
}

// =============================================================================
// PAYMENT - Append-only ledger entry against an installment
// =============================================================================

// Payment records one money transfer. Reversal means deleting the payment
// and recomputing the installment from the remaining set; payments are
// never edited in place.
type Payment struct {
	ID            PaymentID
	InstallmentID InstallmentID
	Date          time.Time
	Amount        decimal.Decimal // > 0
	Method        string
	Note          string
	CreatedAt     time.Time
}

// =============================================================================
// CASH-FLOW FACTS - Inputs to snapshots and projections
// =============================================================================

type SalaryRecord struct {
	ID             string
	ReferenceMonth time.Time // first of month
	Amount         decimal.Decimal
}

type TransactionKind string

const (
	TransactionIncome  TransactionKind = "income"
	TransactionExpense TransactionKind = "expense"
)

// CashTransaction is an ad-hoc income or expense, outside agreements,
// salaries and fixed expenses.
type CashTransaction struct {
	ID          string
	Date        time.Time
	Amount      decimal.Decimal
	Kind        TransactionKind
	Description string
}

type FixedExpense struct {
	ID     string
	Name   string
	Amount decimal.Decimal
	Active bool
}

// =============================================================================
// MONTHLY SNAPSHOT - Materialized per-month aggregate
// =============================================================================

// MonthlySnapshot holds one calendar month's financial facts. Keyed uniquely
// by ReferenceMonth (first of month); rebuilding a month overwrites the
// existing row in place.
type MonthlySnapshot struct {
	ReferenceMonth     time.Time
	Salary             decimal.Decimal
	PaymentsReceived   decimal.Decimal
	VariableIncome     decimal.Decimal
	VariableExpenses   decimal.Decimal
	FixedExpenses      decimal.Decimal
	OverdueAmount      decimal.Decimal
	PlannedReceivables decimal.Decimal
	ActiveDebtors      int
	ActiveAgreements   int
	TotalIncome        decimal.Decimal
	TotalExpenses      decimal.Decimal
	NetBalance         decimal.Decimal
	CalculatedAt       time.Time
}

// =============================================================================
// CASH-FLOW PROJECTION - Forecast keyed by (month, scenario)
// =============================================================================

type Scenario string

const (
	ScenarioRealistic   Scenario = "realistic"
	ScenarioOptimistic  Scenario = "optimistic"
	ScenarioPessimistic Scenario = "pessimistic"
)

// ValidScenario reports whether s is a known scenario name.
func ValidScenario(s Scenario) bool {
	switch s {
	case ScenarioRealistic, ScenarioOptimistic, ScenarioPessimistic:
		return true
	}
	return false
}

type CashFlowProjection struct {
	TargetMonth               time.Time // first of month
	Scenario                  Scenario
	ProjectedSalary           decimal.Decimal
	ProjectedPayments         decimal.Decimal
	ProjectedVariableIncome   decimal.Decimal
	ProjectedVariableExpenses decimal.Decimal
	ProjectedFixedExpenses    decimal.Decimal
	TotalIncome               decimal.Decimal
	TotalExpenses             decimal.Decimal
	NetBalance                decimal.Decimal
	Confidence                decimal.Decimal // 0.40 .. 0.90
	CalculatedAt              time.Time
}
