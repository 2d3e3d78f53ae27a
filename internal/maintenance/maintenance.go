// Package maintenance runs periodic background tasks as Go tickers: purging
// aged sent rows so the partial index stays lean, and a catch-up sweep that
// re-raises a wake-up when overdue rows exist without a delivered NOTIFY
// (the channel is lossy; this is the reconciliation floor).
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/questboard/scheduler/internal/store"
)

// Config controls maintenance task intervals. Zero duration disables a task.
type Config struct {
	CleanupInterval time.Duration // purge aged sent rows
	SweepInterval   time.Duration // detect overdue rows missed by NOTIFY
	Retention       time.Duration // how long sent rows are kept
}

// DefaultConfig returns sensible production defaults.
func DefaultConfig() Config {
	return Config{
		CleanupInterval: 30 * time.Minute,
		SweepInterval:   5 * time.Minute,
		Retention:       30 * 24 * time.Hour,
	}
}

// Start launches all configured maintenance tickers. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func Start(ctx context.Context, pool *pgxpool.Pool, st *store.Store, cfg Config, logger *slog.Logger) {
	logger = logger.With("component", "maintenance")
	logger.Info("Maintenance tickers started",
		"cleanup", cfg.CleanupInterval,
		"sweep", cfg.SweepInterval,
		"retention", cfg.Retention)

	tickers := make([]*time.Ticker, 0, 2)
	defer func() {
		for _, t := range tickers {
			t.Stop()
		}
	}()

	if cfg.CleanupInterval > 0 {
		t := time.NewTicker(cfg.CleanupInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, func() { Cleanup(ctx, st, cfg.Retention, logger) })
	}

	if cfg.SweepInterval > 0 {
		t := time.NewTicker(cfg.SweepInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, func() { CatchUpSweep(ctx, pool, st, logger) })
	}

	<-ctx.Done()
	logger.Info("Maintenance tickers stopped")
}

func runLoop(ctx context.Context, ch <-chan time.Time, fn func()) {
	for {
		select {
		case <-ch:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// --------------------------------------------------------------------------
// Task implementations
// --------------------------------------------------------------------------

// Cleanup purges sent rows past the retention window. Dead-lettered rows are
// sent rows too, so they age out the same way.
func Cleanup(ctx context.Context, st *store.Store, retention time.Duration, logger *slog.Logger) {
	cutoff := time.Now().UTC().Add(-retention)
	n, err := st.DeleteSentBefore(ctx, cutoff)
	if err != nil {
		logger.Warn("Cleanup: failed to purge sent rows", "error", err)
		return
	}
	if n > 0 {
		logger.Info("Cleanup: purged sent rows", "count", n)
	}
}

// CatchUpSweep checks for unsent rows already past due. Overdue rows mean a
// wake-up was lost (listener downtime, dropped NOTIFY), so one synthetic
// notification is raised on the schedule channel to wake every scheduler
// instance immediately instead of waiting out the safety timeout.
func CatchUpSweep(ctx context.Context, pool *pgxpool.Pool, st *store.Store, logger *slog.Logger) {
	n, err := st.CountOverdueUnsent(ctx)
	if err != nil {
		logger.Warn("Catch-up sweep: count failed", "error", err)
		return
	}
	if n == 0 {
		return
	}

	logger.Warn("Catch-up sweep: overdue unsent rows detected", "count", n)
	_, err = pool.Exec(ctx, `SELECT pg_notify('schedule_changed', json_build_object(
		'op', 'SWEEP',
		'game_id', '00000000-0000-0000-0000-000000000000',
		'due_time', to_char(now(), 'YYYY-MM-DD"T"HH24:MI:SS"Z"')
	)::text)`)
	if err != nil {
		logger.Warn("Catch-up sweep: notify failed", "error", err)
	}
}
