/*
schedule.go - Amortization schedule generation

PURPOSE:
  Turns (principal, count, optional monthly rate, first due date) into the
  ordered installment batch an agreement owns. Pure function: no store, no
  side effects, same inputs always produce the same schedule.

TWO METHODS:
  Linear (rate absent or zero):
    base = round2(principal / count); every installment gets base except the
    last, which gets principal - base*(count-1). The rounding remainder is
    absorbed entirely by the last installment so the amounts sum to the
    principal exactly.

  Price / annuity (rate > 0):
    pmt = P * i * (1+i)^n / ((1+i)^n - 1), rounded to 2 decimals once and
    held constant. Interest per period = round2(balance * rate), amortization
    = pmt - interest, balance decremented and clamped to [0, principal].
    The FINAL installment zeroes the running balance (amount = remaining
    balance + its interest) instead of repeating pmt, so the loan is fully
    repaid to the cent. Residual-cent policy documented in DESIGN.md.

RATE NORMALIZATION:
  Values > 1 are percentages (2.5 -> 0.025, rounded to 6 decimals); values
  in [0, 1] are fractions already. Negative rates fail validation.

DATES:
  Installment k (0-indexed) is due k calendar months after the first due
  date, with the day of month clamped to the target month's last valid day
  (Jan 31 -> Feb 28).

SEE ALSO:
  - money/money.go: rounding and normalization helpers
  - allocate.go: mutates the generated installments as payments arrive
*/
package ledger

import (
	"context"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerkit/debt-engine/money"
)

// =============================================================================
// SCHEDULE ENTRY
// =============================================================================

// ScheduleEntry is one row of a generated schedule, before it is persisted
// as an Installment.
type ScheduleEntry struct {
	Number  int
	DueDate time.Time
	Amount  decimal.Decimal
}

// =============================================================================
// SCHEDULE GENERATION
// =============================================================================

var one = decimal.NewFromInt(1)

// GenerateSchedule produces the full installment schedule for a debt.
// A zero rate selects the linear method; a positive rate the Price method.
func GenerateSchedule(principal decimal.Decimal, count int, monthlyRate decimal.Decimal, firstDueDate time.Time) ([]ScheduleEntry, error) {
	if !principal.IsPositive() {
		return nil, newValidationError(ErrInvalidPrincipal, "principal", principal.String())
	}
	if count < 1 {
		return nil, newValidationError(ErrInvalidInstallmentCount, "installmentCount", strconv.Itoa(count))
	}
	if monthlyRate.IsNegative() {
		return nil, newValidationError(ErrInvalidRate, "monthlyRate", monthlyRate.String())
	}

	rate := money.NormalizeRate(monthlyRate)

	var amounts []decimal.Decimal
	if rate.IsZero() {
		amounts = linearAmounts(principal, count)
	} else {
		amounts = priceAmounts(principal, count, rate)
	}

	entries := make([]ScheduleEntry, count)
	for k := 0; k < count; k++ {
		entries[k] = ScheduleEntry{
			Number:  k + 1,
			DueDate: AddMonthsClamped(StartOfDay(firstDueDate), k),
			Amount:  amounts[k],
		}
	}
	return entries, nil
}

// linearAmounts splits the principal evenly, remainder on the last row.
func linearAmounts(principal decimal.Decimal, count int) []decimal.Decimal {
	n := decimal.NewFromInt(int64(count))
	base := money.Round2(principal.Div(n))

	amounts := make([]decimal.Decimal, count)
	for k := 0; k < count-1; k++ {
		amounts[k] = base
	}
	amounts[count-1] = money.Round2(principal.Sub(base.Mul(decimal.NewFromInt(int64(count - 1)))))
	return amounts
}

// priceAmounts computes a French/annuity table with a balance-zeroing final
// installment.
func priceAmounts(principal decimal.Decimal, count int, rate decimal.Decimal) []decimal.Decimal {
	n := int64(count)
	factor := one.Add(rate).Pow(decimal.NewFromInt(n)) // (1+i)^n
	pmt := money.Round2(principal.Mul(rate).Mul(factor).Div(factor.Sub(one)))

	amounts := make([]decimal.Decimal, count)
	balance := principal
	for k := 0; k < count; k++ {
		interest := money.Round2(balance.Mul(rate))
		if k == count-1 {
			// Close out whatever balance remains after rounding drift.
			amounts[k] = money.Round2(balance.Add(interest))
			balance = decimal.Zero
			continue
		}
		amounts[k] = pmt
		amortization := pmt.Sub(interest)
		balance = money.Clamp(balance.Sub(amortization), decimal.Zero, principal)
	}
	return amounts
}

// =============================================================================
// AGREEMENT CREATION - Schedule + persistence in one transaction
// =============================================================================

// CreateAgreementInput carries everything needed to open a new debt.
type CreateAgreementInput struct {
	ID               AgreementID
	DebtorID         DebtorID
	Principal        decimal.Decimal
	MonthlyRate      decimal.Decimal // fraction or percent; normalized here
	InstallmentCount int
	Currency         string
	StartDate        time.Time
	FirstDueDate     time.Time
}

// CreateAgreement generates the schedule and persists the agreement with its
// full installment batch atomically. Installments are never partially
// generated: either the agreement exists with all N rows or not at all.
func CreateAgreement(ctx context.Context, store TxStore, in CreateAgreementInput, now time.Time) (*Agreement, []Installment, error) {
	entries, err := GenerateSchedule(in.Principal, in.InstallmentCount, in.MonthlyRate, in.FirstDueDate)
	if err != nil {
		return nil, nil, err
	}

	agreement := &Agreement{
		ID:               in.ID,
		DebtorID:         in.DebtorID,
		Principal:        in.Principal,
		MonthlyRate:      money.NormalizeRate(in.MonthlyRate),
		InstallmentCount: in.InstallmentCount,
		Currency:         in.Currency,
		StartDate:        StartOfDay(in.StartDate),
		FirstDueDate:     StartOfDay(in.FirstDueDate),
		Closed:           false,
		CreatedAt:        now,
	}

	installments := make([]Installment, len(entries))
	for i, e := range entries {
		installments[i] = Installment{
			ID:          InstallmentID(installmentID(in.ID, e.Number)),
			AgreementID: in.ID,
			Number:      e.Number,
			DueDate:     e.DueDate,
			Amount:      e.Amount,
			PaidAmount:  decimal.Zero,
			Status:      StatusPending,
		}
	}

	err = store.WithTx(ctx, func(s Store) error {
		if err := s.SaveAgreement(ctx, agreement); err != nil {
			return err
		}
		return s.InsertInstallments(ctx, installments)
	})
	if err != nil {
		return nil, nil, err
	}
	return agreement, installments, nil
}

func installmentID(agreementID AgreementID, number int) string {
	return string(agreementID) + "-" + strconv.Itoa(number)
}
