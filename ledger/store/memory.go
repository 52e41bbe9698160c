// Package store provides ledger.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ledgerkit/debt-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	debtors       map[ledger.DebtorID]ledger.Debtor
	agreements    map[ledger.AgreementID]ledger.Agreement
	installments  map[ledger.InstallmentID]ledger.Installment
	payments      map[ledger.PaymentID]ledger.Payment
	salaries      map[time.Time]ledger.SalaryRecord
	transactions  map[string]ledger.CashTransaction
	fixedExpenses map[string]ledger.FixedExpense
	snapshots     map[time.Time]ledger.MonthlySnapshot
	projections   map[projectionKey]ledger.CashFlowProjection
}

type projectionKey struct {
	Month    time.Time
	Scenario ledger.Scenario
}

// Compile-time checks.
var (
	_ ledger.Store   = (*Memory)(nil)
	_ ledger.TxStore = (*TxMemory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		debtors:       make(map[ledger.DebtorID]ledger.Debtor),
		agreements:    make(map[ledger.AgreementID]ledger.Agreement),
		installments:  make(map[ledger.InstallmentID]ledger.Installment),
		payments:      make(map[ledger.PaymentID]ledger.Payment),
		salaries:      make(map[time.Time]ledger.SalaryRecord),
		transactions:  make(map[string]ledger.CashTransaction),
		fixedExpenses: make(map[string]ledger.FixedExpense),
		snapshots:     make(map[time.Time]ledger.MonthlySnapshot),
		projections:   make(map[projectionKey]ledger.CashFlowProjection),
	}
}

// Reset drops everything. Used by the demo scenario loaders.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debtors = make(map[ledger.DebtorID]ledger.Debtor)
	m.agreements = make(map[ledger.AgreementID]ledger.Agreement)
	m.installments = make(map[ledger.InstallmentID]ledger.Installment)
	m.payments = make(map[ledger.PaymentID]ledger.Payment)
	m.salaries = make(map[time.Time]ledger.SalaryRecord)
	m.transactions = make(map[string]ledger.CashTransaction)
	m.fixedExpenses = make(map[string]ledger.FixedExpense)
	m.snapshots = make(map[time.Time]ledger.MonthlySnapshot)
	m.projections = make(map[projectionKey]ledger.CashFlowProjection)
	return nil
}

// =============================================================================
// DEBTORS
// =============================================================================

func (m *Memory) Debtor(_ context.Context, id ledger.DebtorID) (*ledger.Debtor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.debtors[id]; ok {
		return &d, nil
	}
	return nil, nil
}

func (m *Memory) SaveDebtor(_ context.Context, d *ledger.Debtor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debtors[d.ID] = *d
	return nil
}

func (m *Memory) ListDebtors(_ context.Context) ([]ledger.Debtor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ledger.Debtor, 0, len(m.debtors))
	for _, d := range m.debtors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// AGREEMENTS
// =============================================================================

func (m *Memory) Agreement(_ context.Context, id ledger.AgreementID) (*ledger.Agreement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a, ok := m.agreements[id]; ok {
		return &a, nil
	}
	return nil, nil
}

func (m *Memory) SaveAgreement(_ context.Context, a *ledger.Agreement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agreements[a.ID] = *a
	return nil
}

func (m *Memory) DeleteAgreement(_ context.Context, id ledger.AgreementID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.agreements, id)
	for instID, inst := range m.installments {
		if inst.AgreementID != id {
			continue
		}
		delete(m.installments, instID)
		for payID, p := range m.payments {
			if p.InstallmentID == instID {
				delete(m.payments, payID)
			}
		}
	}
	return nil
}

func (m *Memory) OpenAgreements(_ context.Context) ([]ledger.Agreement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.Agreement
	for _, a := range m.agreements {
		if !a.Closed {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// INSTALLMENTS
// =============================================================================

func (m *Memory) Installment(_ context.Context, id ledger.InstallmentID) (*ledger.Installment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i, ok := m.installments[id]; ok {
		return &i, nil
	}
	return nil, nil
}

func (m *Memory) SaveInstallment(_ context.Context, i *ledger.Installment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.installments[i.ID] = *i
	return nil
}

func (m *Memory) InsertInstallments(_ context.Context, batch []ledger.Installment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, i := range batch {
		m.installments[i.ID] = i
	}
	return nil
}

func (m *Memory) InstallmentsByAgreement(_ context.Context, id ledger.AgreementID) ([]ledger.Installment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.Installment
	for _, i := range m.installments {
		if i.AgreementID == id {
			out = append(out, i)
		}
	}
	sortInstallments(out)
	return out, nil
}

func (m *Memory) UnpaidInstallmentsDueBefore(_ context.Context, cutoff time.Time) ([]ledger.Installment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.Installment
	for _, i := range m.installments {
		if i.Status != ledger.StatusPaid && i.DueDate.Before(cutoff) {
			out = append(out, i)
		}
	}
	sortInstallments(out)
	return out, nil
}

func (m *Memory) UnpaidInstallmentsDueIn(_ context.Context, from, to time.Time) ([]ledger.Installment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.Installment
	for _, i := range m.installments {
		if i.Status != ledger.StatusPaid && !i.DueDate.Before(from) && i.DueDate.Before(to) {
			out = append(out, i)
		}
	}
	sortInstallments(out)
	return out, nil
}

func sortInstallments(installments []ledger.Installment) {
	sort.Slice(installments, func(i, j int) bool {
		if !installments[i].DueDate.Equal(installments[j].DueDate) {
			return installments[i].DueDate.Before(installments[j].DueDate)
		}
		return installments[i].Number < installments[j].Number
	})
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (m *Memory) Payment(_ context.Context, id ledger.PaymentID) (*ledger.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.payments[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (m *Memory) InsertPayment(_ context.Context, p *ledger.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.ID] = *p
	return nil
}

func (m *Memory) DeletePayment(_ context.Context, id ledger.PaymentID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.payments, id)
	return nil
}

func (m *Memory) PaymentsByInstallment(_ context.Context, id ledger.InstallmentID) ([]ledger.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.Payment
	for _, p := range m.payments {
		if p.InstallmentID == id {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *Memory) PaymentsInRange(_ context.Context, from, to time.Time) ([]ledger.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.Payment
	for _, p := range m.payments {
		if !p.Date.Before(from) && p.Date.Before(to) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// =============================================================================
// FACTS
// =============================================================================

func (m *Memory) SalaryByMonth(_ context.Context, month time.Time) (*ledger.SalaryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.salaries[ledger.MonthStart(month)]; ok {
		return &s, nil
	}
	return nil, nil
}

func (m *Memory) SaveSalary(_ context.Context, s *ledger.SalaryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := *s
	rec.ReferenceMonth = ledger.MonthStart(s.ReferenceMonth)
	m.salaries[rec.ReferenceMonth] = rec
	return nil
}

func (m *Memory) TransactionsInRange(_ context.Context, from, to time.Time) ([]ledger.CashTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.CashTransaction
	for _, t := range m.transactions {
		if !t.Date.Before(from) && t.Date.Before(to) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *Memory) SaveTransaction(_ context.Context, t *ledger.CashTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions[t.ID] = *t
	return nil
}

func (m *Memory) ActiveFixedExpenses(_ context.Context) ([]ledger.FixedExpense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.FixedExpense
	for _, e := range m.fixedExpenses {
		if e.Active {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SaveFixedExpense(_ context.Context, e *ledger.FixedExpense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fixedExpenses[e.ID] = *e
	return nil
}

// =============================================================================
// SNAPSHOTS AND PROJECTIONS - Keyed upserts
// =============================================================================

func (m *Memory) SnapshotByMonth(_ context.Context, month time.Time) (*ledger.MonthlySnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.snapshots[ledger.MonthStart(month)]; ok {
		return &s, nil
	}
	return nil, nil
}

func (m *Memory) SaveSnapshot(_ context.Context, s *ledger.MonthlySnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := *s
	snap.ReferenceMonth = ledger.MonthStart(s.ReferenceMonth)
	m.snapshots[snap.ReferenceMonth] = snap
	return nil
}

func (m *Memory) DeleteSnapshot(_ context.Context, month time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snapshots, ledger.MonthStart(month))
	return nil
}

func (m *Memory) SnapshotsInRange(_ context.Context, from, to time.Time) ([]ledger.MonthlySnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.MonthlySnapshot
	for month, s := range m.snapshots {
		if !month.Before(from) && month.Before(to) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReferenceMonth.Before(out[j].ReferenceMonth) })
	return out, nil
}

func (m *Memory) Projection(_ context.Context, month time.Time, scenario ledger.Scenario) (*ledger.CashFlowProjection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.projections[projectionKey{ledger.MonthStart(month), scenario}]; ok {
		return &p, nil
	}
	return nil, nil
}

func (m *Memory) SaveProjection(_ context.Context, p *ledger.CashFlowProjection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	proj := *p
	proj.TargetMonth = ledger.MonthStart(p.TargetMonth)
	m.projections[projectionKey{proj.TargetMonth, proj.Scenario}] = proj
	return nil
}

func (m *Memory) DeleteProjection(_ context.Context, month time.Time, scenario ledger.Scenario) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.projections, projectionKey{ledger.MonthStart(month), scenario})
	return nil
}

func (m *Memory) ProjectionsByScenario(_ context.Context, scenario ledger.Scenario) ([]ledger.CashFlowProjection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.CashFlowProjection
	for key, p := range m.projections {
		if key.Scenario == scenario {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TargetMonth.Before(out[j].TargetMonth) })
	return out, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn against the store. For the memory store atomicity is
// simulated with a full snapshot + rollback on error.
func (tm *TxMemory) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	snapshot := tm.snapshot()
	if err := fn(tm.Memory); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

func (tm *TxMemory) snapshot() memorySnapshot {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return memorySnapshot{
		debtors:       copyMap(tm.debtors),
		agreements:    copyMap(tm.agreements),
		installments:  copyMap(tm.installments),
		payments:      copyMap(tm.payments),
		salaries:      copyMap(tm.salaries),
		transactions:  copyMap(tm.transactions),
		fixedExpenses: copyMap(tm.fixedExpenses),
		snapshots:     copyMap(tm.snapshots),
		projections:   copyMap(tm.projections),
	}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.debtors = s.debtors
	tm.agreements = s.agreements
	tm.installments = s.installments
	tm.payments = s.payments
	tm.salaries = s.salaries
	tm.transactions = s.transactions
	tm.fixedExpenses = s.fixedExpenses
	tm.snapshots = s.snapshots
	tm.projections = s.projections
}

type memorySnapshot struct {
	debtors       map[ledger.DebtorID]ledger.Debtor
	agreements    map[ledger.AgreementID]ledger.Agreement
	installments  map[ledger.InstallmentID]ledger.Installment
	payments      map[ledger.PaymentID]ledger.Payment
	salaries      map[time.Time]ledger.SalaryRecord
	transactions  map[string]ledger.CashTransaction
	fixedExpenses map[string]ledger.FixedExpense
	snapshots     map[time.Time]ledger.MonthlySnapshot
	projections   map[projectionKey]ledger.CashFlowProjection
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
