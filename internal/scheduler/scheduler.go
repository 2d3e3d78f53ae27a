// Package scheduler runs the single-consumer event loop that advances the
// notification schedule: query the earliest due row, sleep on an
// interruptible wait, claim and dispatch due rows, mark them sent.
//
// One loop per process; horizontal scaling relies on claim's skip-locked
// semantics rather than any in-process coordination.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/questboard/scheduler/internal/clock"
	"github.com/questboard/scheduler/internal/listener"
	"github.com/questboard/scheduler/internal/publish"
	"github.com/questboard/scheduler/internal/store"
)

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// Config tunes the loop. Zero values are replaced by defaults in New.
type Config struct {
	SafetyTimeout    time.Duration // max wait even absent notifications
	SmallLead        time.Duration // wake slightly before the next due time
	BatchLimit       int           // rows claimed per dispatch
	MaxPublishRetry  int           // dead-letter past this many failures
	TransientBackoff time.Duration // backoff after a transient error
	MaxBackoff       time.Duration
	DBCallTimeout    time.Duration // per database round trip
}

func (c *Config) applyDefaults() {
	if c.SafetyTimeout <= 0 {
		c.SafetyTimeout = 300 * time.Second
	}
	if c.SmallLead <= 0 {
		c.SmallLead = 10 * time.Second
	}
	if c.BatchLimit <= 0 {
		c.BatchLimit = 20
	}
	if c.MaxPublishRetry <= 0 {
		c.MaxPublishRetry = 5
	}
	if c.TransientBackoff <= 0 {
		c.TransientBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 60 * time.Second
	}
	if c.DBCallTimeout <= 0 {
		c.DBCallTimeout = 5 * time.Second
	}
}

// WakeCause records why a WAIT ended, for observability.
type WakeCause string

const (
	WakeTimer    WakeCause = "timer"  // next-due wait elapsed
	WakeNotify   WakeCause = "notify" // schedule_changed notification
	WakeSafety   WakeCause = "safety" // safety timeout with empty horizon
	WakeShutdown WakeCause = "shutdown"
)

// --------------------------------------------------------------------------
// Store abstraction (fakeable in tests)
// --------------------------------------------------------------------------

// ScheduleStore is the slice of the store the loop consumes.
type ScheduleStore interface {
	// PeekNextDue returns the earliest unsent row, or false when empty.
	PeekNextDue(ctx context.Context) (store.Row, bool, error)
	// BeginClaim opens a claim/dispatch transaction.
	BeginClaim(ctx context.Context) (ClaimTx, error)
}

// ClaimTx is one claim/dispatch transaction. Locks acquired by Claim are
// held until Commit or Rollback.
type ClaimTx interface {
	Claim(ctx context.Context, now time.Time, limit int) ([]store.Row, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// --------------------------------------------------------------------------
// Scheduler
// --------------------------------------------------------------------------

// Scheduler is the loop. Not safe for concurrent Run calls.
type Scheduler struct {
	store  ScheduleStore
	pub    publish.Publisher
	clk    clock.Clock
	notify <-chan listener.ChangeEvent
	cfg    Config
	logger *slog.Logger

	// In-memory publish failure counts keyed by row id. Reset on success,
	// dropped on dead-letter. Lost on restart by design: a restart grants
	// a poison row one more full round of retries.
	retries map[uuid.UUID]int

	backoff time.Duration // pending transient backoff, 0 when healthy
}

func New(st ScheduleStore, pub publish.Publisher, clk clock.Clock, notify <-chan listener.ChangeEvent, cfg Config, logger *slog.Logger) *Scheduler {
	cfg.applyDefaults()
	return &Scheduler{
		store:   st,
		pub:     pub,
		clk:     clk,
		notify:  notify,
		cfg:     cfg,
		logger:  logger.With("component", "scheduler"),
		retries: make(map[uuid.UUID]int),
	}
}

// Run executes the loop until ctx is cancelled. A wait in progress is
// interrupted immediately on shutdown; an in-flight dispatch is finished and
// committed first.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Scheduler loop started",
		"safety_timeout", s.cfg.SafetyTimeout,
		"batch_limit", s.cfg.BatchLimit,
		"small_lead", s.cfg.SmallLead)

	for {
		if ctx.Err() != nil {
			s.logger.Info("Scheduler loop stopped")
			return nil
		}

		if s.backoff > 0 {
			if !s.sleep(ctx, s.backoff) {
				s.logger.Info("Scheduler loop stopped")
				return nil
			}
		}

		wait, idle, err := s.nextWait(ctx)
		if err != nil {
			s.bumpBackoff()
			s.logger.Warn("Peek failed, backing off", "error", err, "backoff", s.backoff)
			continue
		}

		cause := s.wait(ctx, wait, idle)
		if cause == WakeShutdown {
			s.logger.Info("Scheduler loop stopped")
			return nil
		}

		dispatched, err := s.dispatch(ctx)
		if err != nil {
			s.bumpBackoff()
			s.logger.Warn("Dispatch failed, backing off", "error", err, "backoff", s.backoff)
			continue
		}
		s.backoff = 0
		if dispatched > 0 {
			s.logger.Info("Dispatched batch", "count", dispatched, "wake", string(cause))
		}
	}
}

// nextWait queries the earliest due row and computes how long to wait.
// idle reports that the schedule was empty (safety idle).
func (s *Scheduler) nextWait(ctx context.Context) (time.Duration, bool, error) {
	qctx, cancel := context.WithTimeout(ctx, s.cfg.DBCallTimeout)
	defer cancel()

	row, ok, err := s.store.PeekNextDue(qctx)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return s.cfg.SafetyTimeout, true, nil
	}

	wait := row.DueTime.Sub(s.clk.Now()) - s.cfg.SmallLead
	if wait < 0 {
		wait = 0
	}
	// The safety timeout is the ceiling regardless of the next due time, so
	// missed notifications are reconciled within one safety interval.
	if wait > s.cfg.SafetyTimeout {
		wait = s.cfg.SafetyTimeout
	}
	return wait, false, nil
}

// wait blocks until the computed wait elapses, a change notification
// arrives, or shutdown. Extra queued notifications are drained so a burst
// wakes the loop once.
func (s *Scheduler) wait(ctx context.Context, wait time.Duration, idle bool) WakeCause {
	if wait <= 0 {
		return WakeTimer
	}
	select {
	case <-ctx.Done():
		return WakeShutdown
	case <-s.notify:
		s.drainNotify()
		return WakeNotify
	case <-s.clk.After(wait):
		if idle {
			return WakeSafety
		}
		return WakeTimer
	}
}

func (s *Scheduler) drainNotify() {
	for {
		select {
		case <-s.notify:
		default:
			return
		}
	}
}

// sleep pauses for d; returns false on shutdown.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-s.clk.After(d):
		return true
	}
}

func (s *Scheduler) bumpBackoff() {
	if s.backoff == 0 {
		s.backoff = s.cfg.TransientBackoff
		return
	}
	s.backoff = min(s.backoff*2, s.cfg.MaxBackoff)
}
