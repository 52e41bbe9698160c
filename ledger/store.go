/*
store.go - Persistence interface for the ledger engine

PURPOSE:
  Defines the contract between the engine and the database. The engine only
  depends on the query shapes listed here; any local transactional store
  (embedded SQL, in-memory for tests) satisfies it.

KEY INTERFACES:
  DebtStore:     debtors, agreements, installments, payments
  FactStore:     salary records, cash transactions, fixed expenses
  SnapshotStore: monthly snapshots and cash-flow projections (upsert by key)
  Store:         all of the above
  TxStore:       Store plus WithTx for atomic multi-record mutation

TRANSACTIONAL BOUNDARY:
  Payment allocation touches Installment, Payment and Agreement together.
  Those writes MUST go through TxStore.WithTx so they commit or roll back as
  one unit. Read-only aggregation may use the plain Store.

UPSERT KEYS:
  Snapshots are keyed by first-of-month date; projections by
  (target month, scenario). Saving an existing key overwrites in place -
  the store never accumulates duplicate rows for one key.

IMPLEMENTATIONS:
  - ledger/store/memory.go: in-memory, snapshot + rollback transactions
  - store/sqlite/sqlite.go: production SQLite

SEE ALSO:
  - allocate.go: the mutation path that requires WithTx
  - snapshot.go, projection.go: the read shapes used for aggregation
*/
package ledger

import (
	"context"
	"time"
)

// =============================================================================
// DEBT STORE - Agreements, installments, payments
// =============================================================================

type DebtStore interface {
	// Debtors
	Debtor(ctx context.Context, id DebtorID) (*Debtor, error)
	SaveDebtor(ctx context.Context, d *Debtor) error
	ListDebtors(ctx context.Context) ([]Debtor, error)

	// Agreements. SaveAgreement upserts; DeleteAgreement cascades to the
	// agreement's installments and their payments.
	Agreement(ctx context.Context, id AgreementID) (*Agreement, error)
	SaveAgreement(ctx context.Context, a *Agreement) error
	DeleteAgreement(ctx context.Context, id AgreementID) error
	OpenAgreements(ctx context.Context) ([]Agreement, error)

	// Installments. InsertInstallments writes a generated batch; individual
	// installments are never deleted, only cascade-deleted with the agreement.
	Installment(ctx context.Context, id InstallmentID) (*Installment, error)
	SaveInstallment(ctx context.Context, i *Installment) error
	InsertInstallments(ctx context.Context, batch []Installment) error
	InstallmentsByAgreement(ctx context.Context, id AgreementID) ([]Installment, error)

	// UnpaidInstallmentsDueBefore returns installments with status != paid
	// and due date strictly before the cutoff, ordered by due date then number.
	UnpaidInstallmentsDueBefore(ctx context.Context, cutoff time.Time) ([]Installment, error)

	// UnpaidInstallmentsDueIn returns non-paid installments due in [from, to).
	UnpaidInstallmentsDueIn(ctx context.Context, from, to time.Time) ([]Installment, error)

	// Payments (append + delete only; reversal deletes and recomputes).
	Payment(ctx context.Context, id PaymentID) (*Payment, error)
	InsertPayment(ctx context.Context, p *Payment) error
	DeletePayment(ctx context.Context, id PaymentID) error
	PaymentsByInstallment(ctx context.Context, id InstallmentID) ([]Payment, error)

	// PaymentsInRange returns payments dated in [from, to).
	PaymentsInRange(ctx context.Context, from, to time.Time) ([]Payment, error)
}

// =============================================================================
// FACT STORE - Salary, ad-hoc transactions, fixed expenses
// =============================================================================

type FactStore interface {
	SalaryByMonth(ctx context.Context, month time.Time) (*SalaryRecord, error)
	SaveSalary(ctx context.Context, s *SalaryRecord) error

	// TransactionsInRange returns cash transactions dated in [from, to).
	TransactionsInRange(ctx context.Context, from, to time.Time) ([]CashTransaction, error)
	SaveTransaction(ctx context.Context, t *CashTransaction) error

	ActiveFixedExpenses(ctx context.Context) ([]FixedExpense, error)
	SaveFixedExpense(ctx context.Context, e *FixedExpense) error
}

// =============================================================================
// SNAPSHOT STORE - Materialized aggregates, keyed upserts
// =============================================================================

type SnapshotStore interface {
	// SnapshotByMonth returns nil, nil when no snapshot exists for the key.
	SnapshotByMonth(ctx context.Context, month time.Time) (*MonthlySnapshot, error)
	SaveSnapshot(ctx context.Context, s *MonthlySnapshot) error
	DeleteSnapshot(ctx context.Context, month time.Time) error

	// SnapshotsInRange returns snapshots with ReferenceMonth in [from, to),
	// ordered by month ascending.
	SnapshotsInRange(ctx context.Context, from, to time.Time) ([]MonthlySnapshot, error)

	// Projection returns nil, nil when no projection exists for the key.
	Projection(ctx context.Context, month time.Time, scenario Scenario) (*CashFlowProjection, error)
	SaveProjection(ctx context.Context, p *CashFlowProjection) error
	DeleteProjection(ctx context.Context, month time.Time, scenario Scenario) error
	ProjectionsByScenario(ctx context.Context, scenario Scenario) ([]CashFlowProjection, error)
}

// =============================================================================
// AGGREGATE STORE
// =============================================================================

type Store interface {
	DebtStore
	FactStore
	SnapshotStore

	// Reset wipes every record. Demo scenario loading only; never call it
	// on a live database.
	Reset(ctx context.Context) error
}

// TxStore wraps Store with transaction support.
// If fn returns an error every write made through its Store argument is
// rolled back; otherwise all are committed together.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}
