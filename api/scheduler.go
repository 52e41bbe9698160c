/*
scheduler.go - Automated snapshot maintenance

PURPOSE:
  Keeps the current month's snapshot fresh without manual rebuild calls.
  A cron-driven job rebuilds the current-month snapshot so the receivables
  split (overdue vs planned) tracks the passage of days, not just writes.

DESIGN:
  - robfig/cron drives the schedule (default: nightly, shortly after
    midnight, when the overdue cutoff moves)
  - Each run rebuilds exactly one month: the current one. Historical months
    only change on writes, which go through the rebuild endpoint.
  - Failures are logged and retried on the next tick; a missed run never
    blocks the API.

USAGE:
  sched, err := NewSnapshotScheduler(handler, "5 0 * * *", log)
  sched.Start()
  // ... later
  sched.Stop()

SEE ALSO:
  - handlers.go: RebuildSnapshots endpoint (manual rebuild)
  - ledger/snapshot.go: the aggregation this schedules
*/
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/ledgerkit/debt-engine/ledger"
)

// SnapshotScheduler rebuilds the current-month snapshot on a cron schedule.
type SnapshotScheduler struct {
	Handler *Handler
	Log     *logrus.Logger

	cron    *cron.Cron
	entryID cron.EntryID
}

// NewSnapshotScheduler creates a scheduler from a standard 5-field cron spec.
func NewSnapshotScheduler(h *Handler, spec string, log *logrus.Logger) (*SnapshotScheduler, error) {
	s := &SnapshotScheduler{
		Handler: h,
		Log:     log,
		cron:    cron.New(),
	}

	id, err := s.cron.AddFunc(spec, s.RunNow)
	if err != nil {
		return nil, fmt.Errorf("invalid snapshot cron spec %q: %w", spec, err)
	}
	s.entryID = id
	return s, nil
}

// Start begins the scheduler.
func (s *SnapshotScheduler) Start() {
	s.cron.Start()
	s.Log.WithField("next_run", s.NextRunTime().Format(time.RFC3339)).
		Info("snapshot scheduler started")
}

// Stop stops the scheduler and waits for a running rebuild to finish.
func (s *SnapshotScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.Log.Info("snapshot scheduler stopped")
}

// RunNow rebuilds the current month immediately (also used by each tick).
func (s *SnapshotScheduler) RunNow() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	now := s.Handler.Now()
	month := ledger.MonthStart(now)

	snapshot, err := s.Handler.Aggregator.Rebuild(ctx, month, now)
	if err != nil {
		s.Log.WithError(err).WithField("month", month.Format("2006-01")).
			Error("scheduled snapshot rebuild failed")
		return
	}

	s.Log.WithFields(logrus.Fields{
		"month":       month.Format("2006-01"),
		"net_balance": snapshot.NetBalance.String(),
	}).Info("scheduled snapshot rebuild completed")
}

// NextRunTime returns when the next scheduled rebuild will occur.
func (s *SnapshotScheduler) NextRunTime() time.Time {
	return s.cron.Entry(s.entryID).Next
}
