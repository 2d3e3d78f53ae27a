// Package populate keeps the schedule table consistent with each game. It
// runs inside the caller's game-mutation transaction so schedule changes and
// the NOTIFY they trigger commit atomically with the game edit; a rollback
// leaves no orphaned rows.
package populate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/questboard/scheduler/internal/clock"
	"github.com/questboard/scheduler/internal/game"
	"github.com/questboard/scheduler/internal/status"
	"github.com/questboard/scheduler/internal/store"
)

// ScheduleWriter is the slice of the schedule store the populator writes
// through. All writes go via the caller's DBTX.
type ScheduleWriter interface {
	Upsert(ctx context.Context, q store.DBTX, gameID uuid.UUID, kind store.Kind, offsetMinutes *int, dueTime time.Time) (uuid.UUID, error)
	DeleteByGame(ctx context.Context, q store.DBTX, gameID uuid.UUID) error
}

// Populator derives and reconciles schedule rows for games.
type Populator struct {
	store           ScheduleWriter
	games           game.Repository
	clock           clock.Clock
	fallbackOffsets []int
	defaultDuration time.Duration
	logger          *slog.Logger
}

func New(st ScheduleWriter, games game.Repository, clk clock.Clock, fallbackOffsets []int, defaultDuration time.Duration, logger *slog.Logger) *Populator {
	return &Populator{
		store:           st,
		games:           games,
		clock:           clk,
		fallbackOffsets: fallbackOffsets,
		defaultDuration: defaultDuration,
		logger:          logger.With("component", "populator"),
	}
}

// Populate recomputes the full schedule for one game: resolved reminder
// offsets still in the future, the one-shot join announcement on creation,
// and both status transition rows. Existing rows are deleted first so a game
// moved earlier leaves no stale larger-offset reminders behind.
//
// Errors surface synchronously to the caller; there is no retry here.
func (p *Populator) Populate(ctx context.Context, q store.DBTX, gameID uuid.UUID, justCreated bool) error {
	g, err := p.games.Get(ctx, gameID)
	if err != nil {
		return fmt.Errorf("populate: %w", err)
	}

	if err := p.store.DeleteByGame(ctx, q, g.ID); err != nil {
		return fmt.Errorf("populate: %w", err)
	}

	// Cancelled or finished games keep an empty schedule.
	if g.Status != game.StatusScheduled {
		p.logger.Info("Schedule cleared for inactive game",
			"game_id", g.ID, "status", g.Status.String())
		return nil
	}

	now := p.clock.Now()
	offsets := ResolveOffsets(g, p.fallbackOffsets)

	created := 0
	for _, offset := range offsets {
		due := g.ScheduledAt.UTC().Add(-time.Duration(offset) * time.Minute)
		if !due.After(now) {
			continue // reminder horizon already passed at generation time
		}
		off := offset
		if _, err := p.store.Upsert(ctx, q, g.ID, store.KindReminder, &off, due); err != nil {
			return fmt.Errorf("populate reminder(%d): %w", offset, err)
		}
		created++
	}

	if justCreated {
		if _, err := p.store.Upsert(ctx, q, g.ID, store.KindJoinAnnouncement, nil, now); err != nil {
			return fmt.Errorf("populate join announcement: %w", err)
		}
		created++
	}

	if err := status.EnsureTransitions(ctx, p.store, q, g, p.defaultDuration); err != nil {
		return fmt.Errorf("populate status rows: %w", err)
	}
	created += 2

	p.logger.Info("Schedule populated",
		"game_id", g.ID, "rows", created, "offsets", offsets,
		"scheduled_at", g.ScheduledAt.UTC().Format(time.RFC3339))
	return nil
}

// Clear removes all schedule rows for a game.
func (p *Populator) Clear(ctx context.Context, q store.DBTX, gameID uuid.UUID) error {
	return p.store.DeleteByGame(ctx, q, gameID)
}
