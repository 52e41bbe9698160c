package ledger

import "time"

// =============================================================================
// REMINDER TARGET SELECTION
// =============================================================================
// Downstream notification scheduling asks one question: which installment
// should the next reminder point at? Overdue debts always outrank upcoming
// ones, however near the upcoming due date is.

// SelectReminderTarget picks the installment the next reminder should
// reference: the earliest-due overdue installment if any exists, otherwise
// the earliest-due upcoming one. Ties break on the lowest installment
// number. Paid installments and installments with nothing remaining are
// never selected. Returns nil when no candidate exists.
func SelectReminderTarget(installments []Installment, asOf time.Time) *Installment {
	var overdue, upcoming *Installment
	for i := range installments {
		inst := &installments[i]
		if inst.Status == StatusPaid || !inst.RemainingAmount().IsPositive() {
			continue
		}
		if inst.IsOverdue(asOf) {
			overdue = earlier(overdue, inst)
		} else {
			upcoming = earlier(upcoming, inst)
		}
	}
	if overdue != nil {
		return overdue
	}
	return upcoming
}

func earlier(best, candidate *Installment) *Installment {
	if best == nil {
		return candidate
	}
	if candidate.DueDate.Before(best.DueDate) {
		return candidate
	}
	if candidate.DueDate.Equal(best.DueDate) && candidate.Number < best.Number {
		return candidate
	}
	return best
}
