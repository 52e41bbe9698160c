/*
allocate.go - Payment allocation

PURPOSE:
  The single mutation point for installments. Applying a payment appends a
  Payment row, advances the installment's paid amount and status, and
  re-evaluates the owning agreement's closure - all inside one store
  transaction, so the three records change together or not at all.

STATUS TRANSITIONS:
  paidAmount >= amount         -> paid
  0 < paidAmount < amount      -> partial
  paidAmount == 0              -> unchanged (pending or overdue as stored)

PAID-AMOUNT CAP:
  Stored paidAmount never exceeds the installment's face value; overshoot
  flips the status to paid and the excess is dropped. RemainingAmount is
  therefore always in [0, amount].

REVERSAL:
  ReversePayment deletes the payment and recomputes paidAmount and status
  from the payments that remain (paid can regress to partial or pending,
  which can reopen a closed agreement).

EVENTS:
  PaymentChanged after every successful mutation; AgreementChanged when the
  closure flag flipped. Published after the transaction commits.

SEE ALSO:
  - lifecycle.go: the closure rule
  - store.go: the WithTx contract this file relies on
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ALLOCATOR
// =============================================================================

// Allocator applies payments and manual status overrides to installments.
type Allocator struct {
	Store     TxStore
	Publisher Publisher
	NewID     func() string // payment id generator
}

func NewAllocator(store TxStore, pub Publisher, newID func() string) *Allocator {
	if pub == nil {
		pub = NopPublisher{}
	}
	return &Allocator{Store: store, Publisher: pub, NewID: newID}
}

// AllocationResult reports what a mutation changed.
type AllocationResult struct {
	Payment          *Payment
	Installment      *Installment
	Agreement        *Agreement
	AgreementChanged bool
}

// ApplyPayment records a payment against an installment.
func (al *Allocator) ApplyPayment(ctx context.Context, installmentID InstallmentID, amount decimal.Decimal, date time.Time, method, note string) (*AllocationResult, error) {
	if !amount.IsPositive() {
		return nil, newValidationError(ErrInvalidAmount, "amount", amount.String())
	}

	var result AllocationResult
	err := al.Store.WithTx(ctx, func(s Store) error {
		inst, err := s.Installment(ctx, installmentID)
		if err != nil {
			return err
		}
		if inst == nil {
			return ErrInstallmentNotFound
		}

		payment := &Payment{
			ID:            PaymentID(al.NewID()),
			InstallmentID: inst.ID,
			Date:          StartOfDay(date),
			Amount:        amount,
			Method:        method,
			Note:          note,
			CreatedAt:     time.Now().UTC(),
		}
		if err := s.InsertPayment(ctx, payment); err != nil {
			return err
		}

		applyPaidAmount(inst, inst.PaidAmount.Add(amount))
		if err := s.SaveInstallment(ctx, inst); err != nil {
			return err
		}

		agreement, changed, err := reevaluateOwner(ctx, s, inst.AgreementID)
		if err != nil {
			return err
		}

		result = AllocationResult{
			Payment:          payment,
			Installment:      inst,
			Agreement:        agreement,
			AgreementChanged: changed,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	al.publishMutation(ctx, &result, string(result.Payment.ID), PaymentChanged)
	return &result, nil
}

// ReversePayment undoes a recorded payment: the Payment row is deleted and
// the installment's paid amount and status are recomputed from the payments
// that remain.
func (al *Allocator) ReversePayment(ctx context.Context, paymentID PaymentID) (*AllocationResult, error) {
	var result AllocationResult
	err := al.Store.WithTx(ctx, func(s Store) error {
		payment, err := s.Payment(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment == nil {
			return ErrPaymentNotFound
		}

		inst, err := s.Installment(ctx, payment.InstallmentID)
		if err != nil {
			return err
		}
		if inst == nil {
			return ErrInstallmentNotFound
		}

		if err := s.DeletePayment(ctx, paymentID); err != nil {
			return err
		}

		remaining, err := s.PaymentsByInstallment(ctx, inst.ID)
		if err != nil {
			return err
		}
		total := decimal.Zero
		for _, p := range remaining {
			total = total.Add(p.Amount)
		}

		inst.PaidAmount = decimal.Zero
		inst.Status = StatusPending
		applyPaidAmount(inst, total)
		if err := s.SaveInstallment(ctx, inst); err != nil {
			return err
		}

		agreement, changed, err := reevaluateOwner(ctx, s, inst.AgreementID)
		if err != nil {
			return err
		}

		result = AllocationResult{
			Installment:      inst,
			Agreement:        agreement,
			AgreementChanged: changed,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	al.publishMutation(ctx, &result, string(paymentID), PaymentChanged)
	return &result, nil
}

// SetStatus is the manual override path: mark an installment without a
// matching payment. Setting paid forces paidAmount to the face value; other
// statuses leave paidAmount untouched.
func (al *Allocator) SetStatus(ctx context.Context, installmentID InstallmentID, status InstallmentStatus) (*AllocationResult, error) {
	if !ValidStatus(status) {
		return nil, newValidationError(ErrInvalidStatus, "status", string(status))
	}

	var result AllocationResult
	err := al.Store.WithTx(ctx, func(s Store) error {
		inst, err := s.Installment(ctx, installmentID)
		if err != nil {
			return err
		}
		if inst == nil {
			return ErrInstallmentNotFound
		}

		inst.Status = status
		if status == StatusPaid {
			inst.PaidAmount = inst.Amount
		}
		if err := s.SaveInstallment(ctx, inst); err != nil {
			return err
		}

		agreement, changed, err := reevaluateOwner(ctx, s, inst.AgreementID)
		if err != nil {
			return err
		}

		result = AllocationResult{
			Installment:      inst,
			Agreement:        agreement,
			AgreementChanged: changed,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	al.publishMutation(ctx, &result, string(installmentID), PaymentChanged)
	return &result, nil
}

// =============================================================================
// INTERNALS
// =============================================================================

// applyPaidAmount sets the installment's paid amount (capped at the face
// value) and derives the status from the new total.
func applyPaidAmount(inst *Installment, total decimal.Decimal) {
	switch {
	case total.GreaterThanOrEqual(inst.Amount):
		inst.PaidAmount = inst.Amount
		inst.Status = StatusPaid
	case total.IsPositive():
		inst.PaidAmount = total
		inst.Status = StatusPartial
	default:
		inst.PaidAmount = decimal.Zero
		if inst.Status == StatusPaid || inst.Status == StatusPartial {
			inst.Status = StatusPending
		}
	}
}

// reevaluateOwner loads the owning agreement with its siblings and applies
// the closure rule, persisting the agreement only when the flag flipped.
func reevaluateOwner(ctx context.Context, s Store, id AgreementID) (*Agreement, bool, error) {
	agreement, err := s.Agreement(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if agreement == nil {
		return nil, false, ErrAgreementNotFound
	}

	siblings, err := s.InstallmentsByAgreement(ctx, id)
	if err != nil {
		return nil, false, err
	}

	changed := ReevaluateAgreement(agreement, siblings)
	if changed {
		if err := s.SaveAgreement(ctx, agreement); err != nil {
			return nil, false, err
		}
	}
	return agreement, changed, nil
}

func (al *Allocator) publishMutation(ctx context.Context, result *AllocationResult, entityID string, kind EventKind) {
	now := time.Now().UTC()
	var debtorID DebtorID
	if result.Agreement != nil {
		debtorID = result.Agreement.DebtorID
	}

	al.Publisher.Publish(ctx, Event{Kind: kind, EntityID: entityID, DebtorID: debtorID, At: now})
	if result.AgreementChanged && result.Agreement != nil {
		al.Publisher.Publish(ctx, Event{
			Kind:     AgreementChanged,
			EntityID: string(result.Agreement.ID),
			DebtorID: debtorID,
			At:       now,
		})
	}
}
