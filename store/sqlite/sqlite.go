/*
Package sqlite provides a SQLite-backed implementation of the ledger store.

PURPOSE:
  Implements ledger.Store and ledger.TxStore on SQLite. The same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  debtors:               third parties who owe money
  agreements:            parcelled debt contracts
  installments:          scheduled obligations, one batch per agreement
  payments:              append-only entries against installments
  salary_records:        monthly salary facts
  cash_transactions:     ad-hoc variable income/expenses
  fixed_expenses:        recurring expenses with an active flag
  monthly_snapshots:     one row per month key (upsert in place)
  cash_flow_projections: one row per (month, scenario) key

DECIMAL STORAGE:
  Monetary columns are TEXT holding decimal strings. SQLite REAL is binary
  floating point; storing the decimal string keeps cent-exact round-trips.

TRANSACTIONS:
  WithTx wraps BEGIN/COMMIT and serializes writers with a mutex, which is
  the single-writer queue the allocation path requires: installment, payment
  and agreement mutate together or roll back together.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  st, err := sqlite.New("./data/debts.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

  allocator := ledger.NewAllocator(st, publisher, newID)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/ledgerkit/debt-engine/ledger"
)

// Store implements ledger.TxStore using SQLite.
type Store struct {
	conn
	db *sql.DB
	mu sync.Mutex // single-writer queue for WithTx
}

// Compile-time check.
var _ ledger.TxStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{conn: conn{db: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx executes fn within a database transaction. Writers are serialized;
// any error from fn rolls every write back.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&conn{db: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS debtors (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT,
		note TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agreements (
		id TEXT PRIMARY KEY,
		debtor_id TEXT NOT NULL REFERENCES debtors(id),
		principal TEXT NOT NULL,
		monthly_rate TEXT NOT NULL,
		installment_count INTEGER NOT NULL,
		currency TEXT NOT NULL,
		start_date TEXT NOT NULL,
		first_due_date TEXT NOT NULL,
		closed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_agreements_debtor
		ON agreements(debtor_id);
	CREATE INDEX IF NOT EXISTS idx_agreements_closed
		ON agreements(closed);

	CREATE TABLE IF NOT EXISTS installments (
		id TEXT PRIMARY KEY,
		agreement_id TEXT NOT NULL REFERENCES agreements(id) ON DELETE CASCADE,
		number INTEGER NOT NULL,
		due_date TEXT NOT NULL,
		amount TEXT NOT NULL,
		paid_amount TEXT NOT NULL,
		status TEXT NOT NULL,
		UNIQUE(agreement_id, number)
	);

	CREATE INDEX IF NOT EXISTS idx_installments_agreement
		ON installments(agreement_id);
	-- Receivables split and confirmed-payment lookups (hot path)
	CREATE INDEX IF NOT EXISTS idx_installments_status_due
		ON installments(status, due_date);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		installment_id TEXT NOT NULL REFERENCES installments(id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		amount TEXT NOT NULL,
		method TEXT,
		note TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_installment
		ON payments(installment_id);
	CREATE INDEX IF NOT EXISTS idx_payments_date
		ON payments(date);

	CREATE TABLE IF NOT EXISTS salary_records (
		id TEXT PRIMARY KEY,
		reference_month TEXT NOT NULL UNIQUE,
		amount TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cash_transactions (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		amount TEXT NOT NULL,
		kind TEXT NOT NULL,
		description TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_cash_transactions_date
		ON cash_transactions(date);

	CREATE TABLE IF NOT EXISTS fixed_expenses (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		amount TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE
	);

	-- One row per month key; rebuilds overwrite in place
	CREATE TABLE IF NOT EXISTS monthly_snapshots (
		reference_month TEXT PRIMARY KEY,
		salary TEXT NOT NULL,
		payments_received TEXT NOT NULL,
		variable_income TEXT NOT NULL,
		variable_expenses TEXT NOT NULL,
		fixed_expenses TEXT NOT NULL,
		overdue_amount TEXT NOT NULL,
		planned_receivables TEXT NOT NULL,
		active_debtors INTEGER NOT NULL,
		active_agreements INTEGER NOT NULL,
		total_income TEXT NOT NULL,
		total_expenses TEXT NOT NULL,
		net_balance TEXT NOT NULL,
		calculated_at TEXT NOT NULL
	);

	-- One row per (month, scenario) key
	CREATE TABLE IF NOT EXISTS cash_flow_projections (
		target_month TEXT NOT NULL,
		scenario TEXT NOT NULL,
		projected_salary TEXT NOT NULL,
		projected_payments TEXT NOT NULL,
		projected_variable_income TEXT NOT NULL,
		projected_variable_expenses TEXT NOT NULL,
		projected_fixed_expenses TEXT NOT NULL,
		total_income TEXT NOT NULL,
		total_expenses TEXT NOT NULL,
		net_balance TEXT NOT NULL,
		confidence TEXT NOT NULL,
		calculated_at TEXT NOT NULL,
		PRIMARY KEY(target_month, scenario)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Reset wipes every table. Demo scenario loading only. Children go first so
// the foreign keys never complain.
func (c *conn) Reset(ctx context.Context) error {
	tables := []string{
		"payments",
		"installments",
		"agreements",
		"debtors",
		"salary_records",
		"cash_transactions",
		"fixed_expenses",
		"monthly_snapshots",
		"cash_flow_projections",
	}
	for _, table := range tables {
		if _, err := c.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// CONNECTION - query methods shared by *sql.DB and *sql.Tx
// =============================================================================

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type conn struct {
	db dbtx
}

var _ ledger.Store = (*conn)(nil)

// Date columns hold day precision; RFC3339 timestamps keep lexicographic
// ordering for range queries.
const dayFormat = "2006-01-02"

func fmtDay(t time.Time) string   { return t.UTC().Format(dayFormat) }
func fmtMonth(t time.Time) string { return ledger.MonthStart(t).Format(dayFormat) }
func fmtTime(t time.Time) string  { return t.UTC().Format(time.RFC3339) }

func parseDay(s string) (time.Time, error) {
	return time.ParseInLocation(dayFormat, s, time.UTC)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func parseDecimal(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

// =============================================================================
// DEBTORS
// =============================================================================

func (c *conn) Debtor(ctx context.Context, id ledger.DebtorID) (*ledger.Debtor, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, name, phone, note, created_at FROM debtors WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query debtor: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanDebtor(rows)
}

func (c *conn) SaveDebtor(ctx context.Context, d *ledger.Debtor) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO debtors (id, name, phone, note, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, phone=excluded.phone, note=excluded.note`,
		d.ID, d.Name, d.Phone, d.Note, fmtTime(d.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save debtor: %w", err)
	}
	return nil
}

func (c *conn) ListDebtors(ctx context.Context) ([]ledger.Debtor, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, name, phone, note, created_at FROM debtors ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list debtors: %w", err)
	}
	defer rows.Close()

	var out []ledger.Debtor
	for rows.Next() {
		d, err := scanDebtor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func scanDebtor(rows *sql.Rows) (*ledger.Debtor, error) {
	var d ledger.Debtor
	var createdAt string
	err := rows.Scan(&d.ID, &d.Name, &d.Phone, &d.Note, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan debtor: %w", err)
	}
	if d.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &d, nil
}

// =============================================================================
// AGREEMENTS
// =============================================================================

const agreementColumns = `id, debtor_id, principal, monthly_rate, installment_count,
	currency, start_date, first_due_date, closed, created_at`

func (c *conn) Agreement(ctx context.Context, id ledger.AgreementID) (*ledger.Agreement, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+agreementColumns+` FROM agreements WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query agreement: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanAgreement(rows)
}

func (c *conn) SaveAgreement(ctx context.Context, a *ledger.Agreement) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO agreements (`+agreementColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET closed=excluded.closed`,
		a.ID, a.DebtorID, a.Principal.String(), a.MonthlyRate.String(),
		a.InstallmentCount, a.Currency, fmtDay(a.StartDate), fmtDay(a.FirstDueDate),
		a.Closed, fmtTime(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save agreement: %w", err)
	}
	return nil
}

func (c *conn) DeleteAgreement(ctx context.Context, id ledger.AgreementID) error {
	// Cascades to installments and their payments via foreign keys.
	_, err := c.db.ExecContext(ctx, `DELETE FROM agreements WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete agreement: %w", err)
	}
	return nil
}

func (c *conn) OpenAgreements(ctx context.Context) ([]ledger.Agreement, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+agreementColumns+` FROM agreements WHERE closed = FALSE ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query open agreements: %w", err)
	}
	defer rows.Close()

	var out []ledger.Agreement
	for rows.Next() {
		a, err := scanAgreement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func scanAgreement(rows *sql.Rows) (*ledger.Agreement, error) {
	var a ledger.Agreement
	var principal, rate, startDate, firstDue, createdAt string
	err := rows.Scan(&a.ID, &a.DebtorID, &principal, &rate, &a.InstallmentCount,
		&a.Currency, &startDate, &firstDue, &a.Closed, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan agreement: %w", err)
	}
	if a.Principal, err = parseDecimal(principal); err != nil {
		return nil, err
	}
	if a.MonthlyRate, err = parseDecimal(rate); err != nil {
		return nil, err
	}
	if a.StartDate, err = parseDay(startDate); err != nil {
		return nil, err
	}
	if a.FirstDueDate, err = parseDay(firstDue); err != nil {
		return nil, err
	}
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// =============================================================================
// INSTALLMENTS
// =============================================================================

const installmentColumns = `id, agreement_id, number, due_date, amount, paid_amount, status`

func (c *conn) Installment(ctx context.Context, id ledger.InstallmentID) (*ledger.Installment, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+installmentColumns+` FROM installments WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query installment: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanInstallment(rows)
}

func (c *conn) SaveInstallment(ctx context.Context, i *ledger.Installment) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO installments (`+installmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			paid_amount=excluded.paid_amount, status=excluded.status`,
		i.ID, i.AgreementID, i.Number, fmtDay(i.DueDate),
		i.Amount.String(), i.PaidAmount.String(), i.Status)
	if err != nil {
		return fmt.Errorf("failed to save installment: %w", err)
	}
	return nil
}

func (c *conn) InsertInstallments(ctx context.Context, batch []ledger.Installment) error {
	for i := range batch {
		if err := c.SaveInstallment(ctx, &batch[i]); err != nil {
			return err
		}
	}
	return nil
}

func (c *conn) InstallmentsByAgreement(ctx context.Context, id ledger.AgreementID) ([]ledger.Installment, error) {
	return c.queryInstallments(ctx,
		`SELECT `+installmentColumns+` FROM installments
		 WHERE agreement_id = ? ORDER BY number ASC`, id)
}

func (c *conn) UnpaidInstallmentsDueBefore(ctx context.Context, cutoff time.Time) ([]ledger.Installment, error) {
	return c.queryInstallments(ctx,
		`SELECT `+installmentColumns+` FROM installments
		 WHERE status != 'paid' AND due_date < ?
		 ORDER BY due_date ASC, number ASC`, fmtDay(cutoff))
}

func (c *conn) UnpaidInstallmentsDueIn(ctx context.Context, from, to time.Time) ([]ledger.Installment, error) {
	return c.queryInstallments(ctx,
		`SELECT `+installmentColumns+` FROM installments
		 WHERE status != 'paid' AND due_date >= ? AND due_date < ?
		 ORDER BY due_date ASC, number ASC`, fmtDay(from), fmtDay(to))
}

func (c *conn) queryInstallments(ctx context.Context, query string, args ...any) ([]ledger.Installment, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query installments: %w", err)
	}
	defer rows.Close()

	var out []ledger.Installment
	for rows.Next() {
		i, err := scanInstallment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *i)
	}
	return out, rows.Err()
}

func scanInstallment(rows *sql.Rows) (*ledger.Installment, error) {
	var i ledger.Installment
	var dueDate, amount, paid string
	err := rows.Scan(&i.ID, &i.AgreementID, &i.Number, &dueDate, &amount, &paid, &i.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to scan installment: %w", err)
	}
	if i.DueDate, err = parseDay(dueDate); err != nil {
		return nil, err
	}
	if i.Amount, err = parseDecimal(amount); err != nil {
		return nil, err
	}
	if i.PaidAmount, err = parseDecimal(paid); err != nil {
		return nil, err
	}
	return &i, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

const paymentColumns = `id, installment_id, date, amount, method, note, created_at`

func (c *conn) Payment(ctx context.Context, id ledger.PaymentID) (*ledger.Payment, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanPayment(rows)
}

func (c *conn) InsertPayment(ctx context.Context, p *ledger.Payment) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.InstallmentID, fmtDay(p.Date), p.Amount.String(),
		p.Method, p.Note, fmtTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

func (c *conn) DeletePayment(ctx context.Context, id ledger.PaymentID) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM payments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete payment: %w", err)
	}
	return nil
}

func (c *conn) PaymentsByInstallment(ctx context.Context, id ledger.InstallmentID) ([]ledger.Payment, error) {
	return c.queryPayments(ctx,
		`SELECT `+paymentColumns+` FROM payments
		 WHERE installment_id = ? ORDER BY date ASC, created_at ASC`, id)
}

func (c *conn) PaymentsInRange(ctx context.Context, from, to time.Time) ([]ledger.Payment, error) {
	return c.queryPayments(ctx,
		`SELECT `+paymentColumns+` FROM payments
		 WHERE date >= ? AND date < ? ORDER BY date ASC, created_at ASC`,
		fmtDay(from), fmtDay(to))
}

func (c *conn) queryPayments(ctx context.Context, query string, args ...any) ([]ledger.Payment, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var out []ledger.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanPayment(rows *sql.Rows) (*ledger.Payment, error) {
	var p ledger.Payment
	var date, amount, createdAt string
	err := rows.Scan(&p.ID, &p.InstallmentID, &date, &amount, &p.Method, &p.Note, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}
	if p.Date, err = parseDay(date); err != nil {
		return nil, err
	}
	if p.Amount, err = parseDecimal(amount); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// =============================================================================
// FACTS
// =============================================================================

func (c *conn) SalaryByMonth(ctx context.Context, month time.Time) (*ledger.SalaryRecord, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, reference_month, amount FROM salary_records WHERE reference_month = ?`,
		fmtMonth(month))
	if err != nil {
		return nil, fmt.Errorf("failed to query salary: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	var s ledger.SalaryRecord
	var refMonth, amount string
	if err := rows.Scan(&s.ID, &refMonth, &amount); err != nil {
		return nil, fmt.Errorf("failed to scan salary: %w", err)
	}
	if s.ReferenceMonth, err = parseDay(refMonth); err != nil {
		return nil, err
	}
	if s.Amount, err = parseDecimal(amount); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *conn) SaveSalary(ctx context.Context, s *ledger.SalaryRecord) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO salary_records (id, reference_month, amount)
		VALUES (?, ?, ?)
		ON CONFLICT(reference_month) DO UPDATE SET amount=excluded.amount`,
		s.ID, fmtMonth(s.ReferenceMonth), s.Amount.String())
	if err != nil {
		return fmt.Errorf("failed to save salary: %w", err)
	}
	return nil
}

func (c *conn) TransactionsInRange(ctx context.Context, from, to time.Time) ([]ledger.CashTransaction, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, date, amount, kind, description FROM cash_transactions
		WHERE date >= ? AND date < ? ORDER BY date ASC, id ASC`,
		fmtDay(from), fmtDay(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var out []ledger.CashTransaction
	for rows.Next() {
		var t ledger.CashTransaction
		var date, amount string
		if err := rows.Scan(&t.ID, &date, &amount, &t.Kind, &t.Description); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		if t.Date, err = parseDay(date); err != nil {
			return nil, err
		}
		if t.Amount, err = parseDecimal(amount); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (c *conn) SaveTransaction(ctx context.Context, t *ledger.CashTransaction) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO cash_transactions (id, date, amount, kind, description)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date=excluded.date, amount=excluded.amount,
			kind=excluded.kind, description=excluded.description`,
		t.ID, fmtDay(t.Date), t.Amount.String(), t.Kind, t.Description)
	if err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	return nil
}

func (c *conn) ActiveFixedExpenses(ctx context.Context) ([]ledger.FixedExpense, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, name, amount, active FROM fixed_expenses WHERE active = TRUE ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query fixed expenses: %w", err)
	}
	defer rows.Close()

	var out []ledger.FixedExpense
	for rows.Next() {
		var e ledger.FixedExpense
		var amount string
		if err := rows.Scan(&e.ID, &e.Name, &amount, &e.Active); err != nil {
			return nil, fmt.Errorf("failed to scan fixed expense: %w", err)
		}
		if e.Amount, err = parseDecimal(amount); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (c *conn) SaveFixedExpense(ctx context.Context, e *ledger.FixedExpense) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO fixed_expenses (id, name, amount, active)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, amount=excluded.amount, active=excluded.active`,
		e.ID, e.Name, e.Amount.String(), e.Active)
	if err != nil {
		return fmt.Errorf("failed to save fixed expense: %w", err)
	}
	return nil
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

const snapshotColumns = `reference_month, salary, payments_received, variable_income,
	variable_expenses, fixed_expenses, overdue_amount, planned_receivables,
	active_debtors, active_agreements, total_income, total_expenses, net_balance,
	calculated_at`

func (c *conn) SnapshotByMonth(ctx context.Context, month time.Time) (*ledger.MonthlySnapshot, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+snapshotColumns+` FROM monthly_snapshots WHERE reference_month = ?`,
		fmtMonth(month))
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanSnapshot(rows)
}

func (c *conn) SaveSnapshot(ctx context.Context, s *ledger.MonthlySnapshot) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO monthly_snapshots (`+snapshotColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(reference_month) DO UPDATE SET
			salary=excluded.salary,
			payments_received=excluded.payments_received,
			variable_income=excluded.variable_income,
			variable_expenses=excluded.variable_expenses,
			fixed_expenses=excluded.fixed_expenses,
			overdue_amount=excluded.overdue_amount,
			planned_receivables=excluded.planned_receivables,
			active_debtors=excluded.active_debtors,
			active_agreements=excluded.active_agreements,
			total_income=excluded.total_income,
			total_expenses=excluded.total_expenses,
			net_balance=excluded.net_balance,
			calculated_at=excluded.calculated_at`,
		fmtMonth(s.ReferenceMonth), s.Salary.String(), s.PaymentsReceived.String(),
		s.VariableIncome.String(), s.VariableExpenses.String(), s.FixedExpenses.String(),
		s.OverdueAmount.String(), s.PlannedReceivables.String(),
		s.ActiveDebtors, s.ActiveAgreements,
		s.TotalIncome.String(), s.TotalExpenses.String(), s.NetBalance.String(),
		fmtTime(s.CalculatedAt))
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (c *conn) DeleteSnapshot(ctx context.Context, month time.Time) error {
	_, err := c.db.ExecContext(ctx,
		`DELETE FROM monthly_snapshots WHERE reference_month = ?`, fmtMonth(month))
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

func (c *conn) SnapshotsInRange(ctx context.Context, from, to time.Time) ([]ledger.MonthlySnapshot, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+snapshotColumns+` FROM monthly_snapshots
		 WHERE reference_month >= ? AND reference_month < ?
		 ORDER BY reference_month ASC`,
		fmtMonth(from), fmtMonth(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var out []ledger.MonthlySnapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func scanSnapshot(rows *sql.Rows) (*ledger.MonthlySnapshot, error) {
	var s ledger.MonthlySnapshot
	var month, calculatedAt string
	raw := make([]string, 10)
	err := rows.Scan(&month, &raw[0], &raw[1], &raw[2], &raw[3], &raw[4],
		&raw[5], &raw[6], &s.ActiveDebtors, &s.ActiveAgreements,
		&raw[7], &raw[8], &raw[9], &calculatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}

	if s.ReferenceMonth, err = parseDay(month); err != nil {
		return nil, err
	}
	if s.CalculatedAt, err = parseTime(calculatedAt); err != nil {
		return nil, err
	}
	targets := []*decimal.Decimal{
		&s.Salary, &s.PaymentsReceived, &s.VariableIncome, &s.VariableExpenses,
		&s.FixedExpenses, &s.OverdueAmount, &s.PlannedReceivables,
		&s.TotalIncome, &s.TotalExpenses, &s.NetBalance,
	}
	for i, target := range targets {
		if *target, err = parseDecimal(raw[i]); err != nil {
			return nil, err
		}
	}
	return &s, nil
}

// =============================================================================
// PROJECTIONS
// =============================================================================

const projectionColumns = `target_month, scenario, projected_salary, projected_payments,
	projected_variable_income, projected_variable_expenses, projected_fixed_expenses,
	total_income, total_expenses, net_balance, confidence, calculated_at`

func (c *conn) Projection(ctx context.Context, month time.Time, scenario ledger.Scenario) (*ledger.CashFlowProjection, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+projectionColumns+` FROM cash_flow_projections
		 WHERE target_month = ? AND scenario = ?`,
		fmtMonth(month), scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to query projection: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanProjection(rows)
}

func (c *conn) SaveProjection(ctx context.Context, p *ledger.CashFlowProjection) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO cash_flow_projections (`+projectionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(target_month, scenario) DO UPDATE SET
			projected_salary=excluded.projected_salary,
			projected_payments=excluded.projected_payments,
			projected_variable_income=excluded.projected_variable_income,
			projected_variable_expenses=excluded.projected_variable_expenses,
			projected_fixed_expenses=excluded.projected_fixed_expenses,
			total_income=excluded.total_income,
			total_expenses=excluded.total_expenses,
			net_balance=excluded.net_balance,
			confidence=excluded.confidence,
			calculated_at=excluded.calculated_at`,
		fmtMonth(p.TargetMonth), p.Scenario, p.ProjectedSalary.String(),
		p.ProjectedPayments.String(), p.ProjectedVariableIncome.String(),
		p.ProjectedVariableExpenses.String(), p.ProjectedFixedExpenses.String(),
		p.TotalIncome.String(), p.TotalExpenses.String(), p.NetBalance.String(),
		p.Confidence.String(), fmtTime(p.CalculatedAt))
	if err != nil {
		return fmt.Errorf("failed to save projection: %w", err)
	}
	return nil
}

func (c *conn) DeleteProjection(ctx context.Context, month time.Time, scenario ledger.Scenario) error {
	_, err := c.db.ExecContext(ctx,
		`DELETE FROM cash_flow_projections WHERE target_month = ? AND scenario = ?`,
		fmtMonth(month), scenario)
	if err != nil {
		return fmt.Errorf("failed to delete projection: %w", err)
	}
	return nil
}

func (c *conn) ProjectionsByScenario(ctx context.Context, scenario ledger.Scenario) ([]ledger.CashFlowProjection, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+projectionColumns+` FROM cash_flow_projections
		 WHERE scenario = ? ORDER BY target_month ASC`, scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to query projections: %w", err)
	}
	defer rows.Close()

	var out []ledger.CashFlowProjection
	for rows.Next() {
		p, err := scanProjection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanProjection(rows *sql.Rows) (*ledger.CashFlowProjection, error) {
	var p ledger.CashFlowProjection
	var month, calculatedAt string
	raw := make([]string, 9)
	err := rows.Scan(&month, &p.Scenario, &raw[0], &raw[1], &raw[2], &raw[3],
		&raw[4], &raw[5], &raw[6], &raw[7], &raw[8], &calculatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan projection: %w", err)
	}

	if p.TargetMonth, err = parseDay(month); err != nil {
		return nil, err
	}
	if p.CalculatedAt, err = parseTime(calculatedAt); err != nil {
		return nil, err
	}
	targets := []*decimal.Decimal{
		&p.ProjectedSalary, &p.ProjectedPayments, &p.ProjectedVariableIncome,
		&p.ProjectedVariableExpenses, &p.ProjectedFixedExpenses,
		&p.TotalIncome, &p.TotalExpenses, &p.NetBalance, &p.Confidence,
	}
	for i, target := range targets {
		if *target, err = parseDecimal(raw[i]); err != nil {
			return nil, err
		}
	}
	return &p, nil
}
