/*
scheduler.go - Periodic recalculation job

PURPOSE:
  Runs overtime.Service.Recalculate on an interval: recomputes every
  user's generated extra hours (for the logs), normalises legacy bank ids
  and records a heartbeat. Same job as GET /api/cron.

DESIGN:
  - One background goroutine with a ticker
  - Runs once immediately on Start
  - Each run gets its own timeout-bound context
  - Stop cancels an in-flight run and waits for the goroutine

CONFIGURATION:
  - Interval: How often to run (RECALC_INTERVAL, default 24h)
  - Enabled:  Whether the scheduler starts at all (Interval > 0)

USAGE:
  scheduler := NewRecalculationScheduler(svc, logger, 24*time.Hour)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunCron endpoint (manual trigger)
  - overtime/recalc.go: the job itself
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/extrahours/overtime"
)

// Recalculator is the job the scheduler runs.
type Recalculator interface {
	Recalculate(ctx context.Context, clientID string) (overtime.RecalcResult, error)
}

// RecalculationScheduler runs the recalculation job periodically.
type RecalculationScheduler struct {
	Job      Recalculator
	Interval time.Duration
	Timeout  time.Duration
	Enabled  bool

	logger *slog.Logger
	ticker *time.Ticker
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex

	lastRun    time.Time
	lastResult overtime.RecalcResult
	lastErr    error
}

// NewRecalculationScheduler creates a new scheduler. A non-positive interval
// leaves it disabled.
func NewRecalculationScheduler(job Recalculator, logger *slog.Logger, interval time.Duration) *RecalculationScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecalculationScheduler{
		Job:      job,
		Interval: interval,
		Timeout:  5 * time.Minute,
		Enabled:  interval > 0,
		logger:   logger.With("component", "scheduler"),
	}
}

// Start begins the scheduler.
func (rs *RecalculationScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.logger.Info("disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ctx, rs.cancel = context.WithCancel(context.Background())
	rs.ticker = time.NewTicker(rs.Interval)
	rs.wg.Add(1)

	go rs.run(rs.ctx, rs.ticker)

	rs.logger.Info("started", "interval", rs.Interval)
}

// Stop stops the scheduler and waits for any in-flight run to return.
func (rs *RecalculationScheduler) Stop() {
	rs.mu.Lock()
	if rs.ticker == nil {
		rs.mu.Unlock()
		return
	}
	rs.ticker.Stop()
	rs.cancel()
	rs.ticker = nil
	rs.mu.Unlock()

	rs.wg.Wait()
	rs.logger.Info("stopped")
}

func (rs *RecalculationScheduler) run(ctx context.Context, ticker *time.Ticker) {
	defer rs.wg.Done()

	// Run immediately on start
	rs.RunNow(ctx)

	for {
		select {
		case <-ticker.C:
			rs.RunNow(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// RunNow executes one run synchronously.
func (rs *RecalculationScheduler) RunNow(ctx context.Context) (overtime.RecalcResult, error) {
	if rs.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rs.Timeout)
		defer cancel()
	}

	res, err := rs.Job.Recalculate(ctx, overtime.HealthCheckClientID)
	if err != nil {
		rs.logger.ErrorContext(ctx, "run failed", "error", err)
	} else {
		rs.logger.InfoContext(ctx, "run completed",
			"processed_users", res.ProcessedUsers, "updated_records", res.UpdatedRecords)
	}

	rs.mu.Lock()
	rs.lastRun = time.Now()
	rs.lastResult = res
	rs.lastErr = err
	rs.mu.Unlock()

	return res, err
}

// LastRun reports the most recent run, if any.
func (rs *RecalculationScheduler) LastRun() (time.Time, overtime.RecalcResult, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.lastRun, rs.lastResult, rs.lastErr
}
