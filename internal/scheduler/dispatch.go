package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/questboard/scheduler/internal/publish"
	"github.com/questboard/scheduler/internal/store"
)

// dispatch claims due rows and publishes them in due-time order, marking
// each sent only after its publish succeeds. Rows whose publish fails stay
// unsent and are re-claimed on a later iteration, except poison rows that
// exhausted their retries — those are dead-lettered so the queue keeps
// moving.
//
// Once a batch is claimed it is finished and committed even if shutdown
// arrives mid-batch; shutdown only stops further rows from being attempted.
func (s *Scheduler) dispatch(ctx context.Context) (int, error) {
	// Detached from cancellation so an in-flight batch commits cleanly on
	// shutdown; every call below still carries its own timeout.
	opCtx := context.WithoutCancel(ctx)

	bctx, cancel := context.WithTimeout(opCtx, s.cfg.DBCallTimeout)
	tx, err := s.store.BeginClaim(bctx)
	cancel()
	if err != nil {
		return 0, err
	}
	defer func() {
		rctx, cancel := context.WithTimeout(opCtx, s.cfg.DBCallTimeout)
		defer cancel()
		_ = tx.Rollback(rctx) // no-op after commit
	}()

	cctx, cancel := context.WithTimeout(opCtx, s.cfg.DBCallTimeout)
	claimed, err := tx.Claim(cctx, s.clk.Now(), s.cfg.BatchLimit)
	cancel()
	if err != nil {
		return 0, err
	}
	if len(claimed) == 0 {
		// All candidates locked by a peer, or the wake-up raced a delete.
		cmctx, cancel := context.WithTimeout(opCtx, s.cfg.DBCallTimeout)
		defer cancel()
		return 0, tx.Commit(cmctx)
	}

	sent := 0
	busDown := false
	for _, row := range claimed {
		if busDown || ctx.Err() != nil {
			break // remaining rows stay claimed-but-unsent; unlock on commit
		}
		switch s.dispatchRow(opCtx, tx, row) {
		case rowSent:
			sent++
		case rowBusDown:
			busDown = true
		case rowSkipped:
		}
	}

	cmctx, cancel := context.WithTimeout(opCtx, s.cfg.DBCallTimeout)
	defer cancel()
	if err := tx.Commit(cmctx); err != nil {
		return 0, err
	}
	if busDown {
		return sent, publish.ErrUnavailable
	}
	return sent, nil
}

type rowOutcome int

const (
	rowSent rowOutcome = iota
	rowSkipped
	rowBusDown
)

func (s *Scheduler) dispatchRow(opCtx context.Context, tx ClaimTx, row store.Row) rowOutcome {
	pctx, cancel := context.WithTimeout(opCtx, s.cfg.DBCallTimeout)
	pubErr := s.pub.Publish(pctx, publish.FromRow(row))
	cancel()

	if pubErr == nil {
		delete(s.retries, row.ID)
		return s.markSent(opCtx, tx, row)
	}

	if errors.Is(pubErr, publish.ErrUnavailable) {
		// Broker outage affects every row; stop the batch and let the loop
		// back off. No retry counts are charged.
		s.logger.Warn("Event bus unavailable", "row_id", row.ID, "error", pubErr)
		return rowBusDown
	}

	// Persistent per-row failure.
	s.retries[row.ID]++
	if s.retries[row.ID] <= s.cfg.MaxPublishRetry {
		s.logger.Warn("Publish failed, will retry",
			"row_id", row.ID, "kind", row.Kind.String(),
			"attempt", s.retries[row.ID], "error", pubErr)
		return rowSkipped
	}

	// Poison row: emit the error event (best effort) and park it as sent so
	// it cannot block the queue. The safety sweep will not resurrect it.
	s.logger.Error("Publish retries exhausted, dead-lettering row",
		"row_id", row.ID, "kind", row.Kind.String(), "error", pubErr)
	dctx, cancel := context.WithTimeout(opCtx, s.cfg.DBCallTimeout)
	if dlErr := s.pub.Publish(dctx, publish.DeadLetter(row, pubErr.Error())); dlErr != nil {
		s.logger.Warn("Dead-letter event publish failed", "row_id", row.ID, "error", dlErr)
	}
	cancel()
	delete(s.retries, row.ID)
	return s.markSent(opCtx, tx, row)
}

func (s *Scheduler) markSent(opCtx context.Context, tx ClaimTx, row store.Row) rowOutcome {
	mctx, cancel := context.WithTimeout(opCtx, s.cfg.DBCallTimeout)
	defer cancel()

	err := tx.MarkSent(mctx, row.ID)
	if errors.Is(err, store.ErrStaleRow) {
		// Game deleted between claim and mark; the event went out but the
		// row is gone. Soft success.
		s.logger.Info("Row vanished before mark-sent", "row_id", row.ID)
		return rowSent
	}
	if err != nil {
		s.logger.Warn("Mark sent failed", "row_id", row.ID, "error", err)
		return rowSkipped
	}
	s.logLatency(row)
	return rowSent
}

// logLatency records dispatch lag against the 10 s target.
func (s *Scheduler) logLatency(row store.Row) {
	lag := s.clk.Now().Sub(row.DueTime)
	if lag > 10*time.Second {
		s.logger.Warn("Dispatch exceeded latency target",
			"row_id", row.ID, "kind", row.Kind.String(), "lag", lag.Round(time.Millisecond))
	}
}
