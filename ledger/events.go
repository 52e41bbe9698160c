/*
events.go - Typed domain events

PURPOSE:
  The engine announces data changes through an injected Publisher instead of
  a process-wide broadcast. Callers that need to react (notification
  scheduling, widget refresh, metric cache invalidation) subscribe
  explicitly; the engine itself never knows who is listening.

EVENT FLOW:
  Allocator.ApplyPayment  -> PaymentChanged (+ AgreementChanged on closure flip)
  Allocator.ReversePayment-> PaymentChanged (+ AgreementChanged on reopen)
  API debtor/salary/transaction writes -> DebtorChanged / SalaryChanged /
  TransactionChanged

  Events are emitted after the surrounding store transaction commits; a
  subscriber never observes an event for a rolled-back write.

SEE ALSO:
  - metrics.go: subscribes for cache invalidation
  - events/amqp: adapter publishing events to a broker
*/
package ledger

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// EVENTS
// =============================================================================

type EventKind string

const (
	DebtorChanged      EventKind = "debtor_changed"
	AgreementChanged   EventKind = "agreement_changed"
	PaymentChanged     EventKind = "payment_changed"
	SalaryChanged      EventKind = "salary_changed"
	TransactionChanged EventKind = "transaction_changed"
)

// Event describes one data change. EntityID is the changed record's id;
// DebtorID is set when the change is attributable to one debtor, so
// subscribers keyed by debtor can invalidate precisely.
type Event struct {
	Kind     EventKind
	EntityID string
	DebtorID DebtorID
	At       time.Time
}

// Publisher delivers domain events to interested parties. Publish must not
// fail the business operation: implementations log and drop on delivery
// problems.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// =============================================================================
// NOP PUBLISHER
// =============================================================================

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}

// =============================================================================
// FANOUT PUBLISHER - Synchronous in-process delivery
// =============================================================================

// Fanout delivers each event to every subscriber, in subscription order, on
// the publishing goroutine. Subscribers must be fast and must not publish
// reentrantly.
type Fanout struct {
	mu   sync.RWMutex
	subs []func(context.Context, Event)
}

func NewFanout() *Fanout { return &Fanout{} }

func (f *Fanout) Subscribe(fn func(context.Context, Event)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, fn)
}

func (f *Fanout) Publish(ctx context.Context, e Event) {
	f.mu.RLock()
	subs := make([]func(context.Context, Event), len(f.subs))
	copy(subs, f.subs)
	f.mu.RUnlock()

	for _, fn := range subs {
		fn(ctx, e)
	}
}
