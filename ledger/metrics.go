/*
metrics.go - Per-debtor metrics with an explicit read-through cache

PURPOSE:
  Summarizes one debtor's position (total owed, overdue portion, open
  agreement count, next due date) for list views and widgets. Computing
  this walks every installment of every agreement, so results are cached
  per debtor with a short TTL.

INVALIDATION:
  The cache is invalidated explicitly when a domain event touches the
  debtor - the TTL is a backstop, not the correctness mechanism. Wire it
  with AttachTo(fanout) so payment and agreement changes evict the entry
  before the next read.
*/
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DEBTOR METRICS
// =============================================================================

type DebtorMetrics struct {
	DebtorID       DebtorID
	TotalOwed      decimal.Decimal
	OverdueAmount  decimal.Decimal
	OpenAgreements int
	NextDueDate    *time.Time
	ComputedAt     time.Time
}

// MetricsReader computes debtor metrics with a TTL memo keyed by debtor id.
type MetricsReader struct {
	Store Store
	TTL   time.Duration

	mu    sync.Mutex
	cache map[DebtorID]*DebtorMetrics
}

func NewMetricsReader(store Store, ttl time.Duration) *MetricsReader {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &MetricsReader{
		Store: store,
		TTL:   ttl,
		cache: make(map[DebtorID]*DebtorMetrics),
	}
}

// AttachTo subscribes the reader's invalidation hook to a fanout publisher.
func (mr *MetricsReader) AttachTo(f *Fanout) {
	f.Subscribe(func(_ context.Context, e Event) {
		if e.DebtorID != "" {
			mr.Invalidate(e.DebtorID)
		}
	})
}

// Invalidate evicts a debtor's cached metrics.
func (mr *MetricsReader) Invalidate(id DebtorID) {
	mr.mu.Lock()
	delete(mr.cache, id)
	mr.mu.Unlock()
}

// Metrics returns the debtor's metrics, from cache when fresh.
func (mr *MetricsReader) Metrics(ctx context.Context, id DebtorID, asOf time.Time) (*DebtorMetrics, error) {
	mr.mu.Lock()
	cached, ok := mr.cache[id]
	mr.mu.Unlock()
	if ok && time.Since(cached.ComputedAt) < mr.TTL {
		return cached, nil
	}

	computed, err := mr.compute(ctx, id, asOf)
	if err != nil {
		return nil, err
	}

	mr.mu.Lock()
	mr.cache[id] = computed
	mr.mu.Unlock()
	return computed, nil
}

func (mr *MetricsReader) compute(ctx context.Context, id DebtorID, asOf time.Time) (*DebtorMetrics, error) {
	debtor, err := mr.Store.Debtor(ctx, id)
	if err != nil {
		return nil, err
	}
	if debtor == nil {
		return nil, ErrDebtorNotFound
	}

	open, err := mr.Store.OpenAgreements(ctx)
	if err != nil {
		return nil, err
	}

	metrics := &DebtorMetrics{
		DebtorID:      id,
		TotalOwed:     decimal.Zero,
		OverdueAmount: decimal.Zero,
		ComputedAt:    time.Now().UTC(),
	}

	for _, a := range open {
		if a.DebtorID != id {
			continue
		}
		metrics.OpenAgreements++

		installments, err := mr.Store.InstallmentsByAgreement(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		for _, inst := range installments {
			remaining := inst.RemainingAmount()
			if !remaining.IsPositive() {
				continue
			}
			metrics.TotalOwed = metrics.TotalOwed.Add(remaining)
			if inst.IsOverdue(asOf) {
				metrics.OverdueAmount = metrics.OverdueAmount.Add(remaining)
			}
			if metrics.NextDueDate == nil || inst.DueDate.Before(*metrics.NextDueDate) {
				due := inst.DueDate
				metrics.NextDueDate = &due
			}
		}
	}
	return metrics, nil
}
