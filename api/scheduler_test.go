package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/extrahours/overtime"
)

type countingJob struct {
	calls atomic.Int32
	err   error
}

func (j *countingJob) Recalculate(ctx context.Context, clientID string) (overtime.RecalcResult, error) {
	j.calls.Add(1)
	if j.err != nil {
		return overtime.RecalcResult{}, j.err
	}
	return overtime.RecalcResult{ProcessedUsers: 3, Timestamp: time.Now()}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScheduler_RunsImmediatelyAndOnTick(t *testing.T) {
	job := &countingJob{}
	rs := NewRecalculationScheduler(job, quietLogger(), 10*time.Millisecond)

	rs.Start()
	assert.Eventually(t, func() bool { return job.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	rs.Stop()

	at, res, err := rs.LastRun()
	require.NoError(t, err)
	assert.False(t, at.IsZero())
	assert.Equal(t, 3, res.ProcessedUsers)

	// No more runs after Stop
	n := job.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, job.calls.Load())
}

func TestScheduler_DisabledWithoutInterval(t *testing.T) {
	job := &countingJob{}
	rs := NewRecalculationScheduler(job, quietLogger(), 0)

	rs.Start()
	rs.Stop()

	assert.False(t, rs.Enabled)
	assert.Zero(t, job.calls.Load())
}

func TestScheduler_RunNowRecordsError(t *testing.T) {
	job := &countingJob{err: errors.New("db down")}
	rs := NewRecalculationScheduler(job, quietLogger(), time.Hour)

	_, err := rs.RunNow(context.Background())
	assert.Error(t, err)

	_, _, lastErr := rs.LastRun()
	assert.EqualError(t, lastErr, "db down")
}
