/*
lifecycle.go - Agreement open/closed state machine

PURPOSE:
  One rule, applied everywhere installment statuses change: an agreement is
  closed exactly when it owns a non-empty installment set and every
  installment is paid. Both directions are live - paying the last
  installment closes the agreement, reversing a payment on a closed
  agreement reopens it. Neither state is terminal.

SEE ALSO:
  - allocate.go: invokes re-evaluation after every mutation
*/
package ledger

// =============================================================================
// AGREEMENT LIFECYCLE
// =============================================================================

// ReevaluateAgreement recomputes the agreement's closed flag from its
// installments. Returns true iff the stored state differed from the target
// and was updated in memory; persisting the change is the caller's job.
// Repeated calls with unchanged installments return false.
func ReevaluateAgreement(a *Agreement, installments []Installment) bool {
	target := false
	if len(installments) > 0 {
		target = true
		for _, inst := range installments {
			if inst.Status != StatusPaid {
				target = false
				break
			}
		}
	}

	if a.Closed == target {
		return false
	}
	a.Closed = target
	return true
}
