// Package status drives game lifecycle transitions on the schedule substrate.
// A game in the scheduled state owns exactly two pending rows: one firing at
// start time (→ in progress) and one at start+duration (→ completed). The
// dispatched events carry the intended target state; the game service applies
// it — the scheduler never writes game state.
package status

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/questboard/scheduler/internal/game"
	"github.com/questboard/scheduler/internal/store"
)

// Target returns the game status a dispatched status row drives, and false
// for non-status kinds.
func Target(k store.Kind) (game.Status, bool) {
	switch k {
	case store.KindStatusInProgress:
		return game.StatusInProgress, true
	case store.KindStatusCompleted:
		return game.StatusCompleted, true
	default:
		return 0, false
	}
}

// Duration resolves the game's play length: game override, then template,
// then the configured default.
func Duration(g *game.Game, fallback time.Duration) time.Duration {
	if g.DurationMinutes != nil && *g.DurationMinutes > 0 {
		return time.Duration(*g.DurationMinutes) * time.Minute
	}
	if g.TemplateDuration != nil && *g.TemplateDuration > 0 {
		return time.Duration(*g.TemplateDuration) * time.Minute
	}
	return fallback
}

// Writer is the slice of the schedule store the status scheduler writes
// through.
type Writer interface {
	Upsert(ctx context.Context, q store.DBTX, gameID uuid.UUID, kind store.Kind, offsetMinutes *int, dueTime time.Time) (uuid.UUID, error)
}

// EnsureTransitions upserts both status rows for a scheduled game inside the
// caller's transaction. The completed row is always strictly after the
// in-progress row. Past due times are allowed: the loop fires them on its
// next iteration.
func EnsureTransitions(ctx context.Context, st Writer, q store.DBTX, g *game.Game, defaultDuration time.Duration) error {
	startAt := g.ScheduledAt.UTC()
	endAt := startAt.Add(Duration(g, defaultDuration))
	if !endAt.After(startAt) {
		endAt = startAt.Add(time.Minute)
	}

	if _, err := st.Upsert(ctx, q, g.ID, store.KindStatusInProgress, nil, startAt); err != nil {
		return fmt.Errorf("ensure in-progress row: %w", err)
	}
	if _, err := st.Upsert(ctx, q, g.ID, store.KindStatusCompleted, nil, endAt); err != nil {
		return fmt.Errorf("ensure completed row: %w", err)
	}
	return nil
}
