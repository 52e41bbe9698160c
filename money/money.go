/*
Package money provides fixed-point decimal arithmetic for monetary amounts.

PURPOSE:
  All money in the system flows through decimal.Decimal. Monetary amounts
  are rounded to 2 decimal places at the boundaries where they become
  observable (installment amounts, snapshot totals); intermediate rate math
  keeps full precision and rates are normalized to 6 decimal places.

DESIGN PRINCIPLES:
  1. Never round-trip through float64: cent-level results must be identical
     across platforms.
  2. Round once, late: rate math stays unrounded until an amount is produced.
  3. Rates are fractions: 0.02 means 2% per month. Callers may pass percent
     values (> 1) which are normalized.

SEE ALSO:
  - ledger/schedule.go: amortization math built on these helpers
  - ledger/snapshot.go: monthly aggregation sums
*/
package money

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// ROUNDING
// =============================================================================

// Round2 rounds a monetary amount to 2 decimal places, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Round6 rounds a rate to 6 decimal places. Used when normalizing
// percent-style rates so 2.5/100 stores as 0.025000 exactly.
func Round6(d decimal.Decimal) decimal.Decimal {
	return d.Round(6)
}

// =============================================================================
// RATE NORMALIZATION
// =============================================================================

var hundred = decimal.NewFromInt(100)

// NormalizeRate converts a caller-supplied monthly interest rate into a
// normalized fraction. Values greater than 1 are treated as percentages
// (2 -> 0.02); values in (0, 1] are already fractions and pass through.
// Zero means "no interest". Negative rates are the caller's bug and are
// reported by ledger validation, not silently corrected here.
func NormalizeRate(rate decimal.Decimal) decimal.Decimal {
	if rate.GreaterThan(decimal.NewFromInt(1)) {
		return Round6(rate.Div(hundred))
	}
	return rate
}

// =============================================================================
// CLAMPING AND AGGREGATION
// =============================================================================

// Clamp constrains d to the inclusive range [lo, hi].
func Clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	if d.LessThan(lo) {
		return lo
	}
	if d.GreaterThan(hi) {
		return hi
	}
	return d
}

// Sum adds a slice of decimals. Returns zero for an empty slice.
func Sum(ds []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, d := range ds {
		total = total.Add(d)
	}
	return total
}

// Mean returns the arithmetic mean of ds, or zero for an empty slice.
// The result is not rounded; callers round when the value becomes money.
func Mean(ds []decimal.Decimal) decimal.Decimal {
	if len(ds) == 0 {
		return decimal.Zero
	}
	return Sum(ds).Div(decimal.NewFromInt(int64(len(ds))))
}

// MustParse converts a decimal string, returning zero on malformed input.
// For trusted literals in wiring and tests.
func MustParse(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
