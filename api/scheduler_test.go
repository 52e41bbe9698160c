package api

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnapshotScheduler_RejectsBadSpec(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	h, _ := newTestAPI(t, time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC))

	_, err := NewSnapshotScheduler(h, "not a cron spec", log)
	assert.Error(t, err)
}

func TestSnapshotScheduler_RunNowRebuildsCurrentMonth(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	h, _ := newTestAPI(t, time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC))

	sched, err := NewSnapshotScheduler(h, "5 0 * * *", log)
	require.NoError(t, err)
	sched.RunNow()

	snap, err := h.Store.SnapshotByMonth(context.Background(), time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), snap.ReferenceMonth)
}

func TestSnapshotScheduler_StartStop(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	h, _ := newTestAPI(t, time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC))

	sched, err := NewSnapshotScheduler(h, "5 0 * * *", log)
	require.NoError(t, err)

	sched.Start()
	assert.False(t, sched.NextRunTime().IsZero())
	sched.Stop()
}
