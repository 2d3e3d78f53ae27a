package status

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questboard/scheduler/internal/game"
	"github.com/questboard/scheduler/internal/store"
)

func TestTarget(t *testing.T) {
	got, ok := Target(store.KindStatusInProgress)
	require.True(t, ok)
	assert.Equal(t, game.StatusInProgress, got)

	got, ok = Target(store.KindStatusCompleted)
	require.True(t, ok)
	assert.Equal(t, game.StatusCompleted, got)

	_, ok = Target(store.KindReminder)
	assert.False(t, ok)
	_, ok = Target(store.KindJoinAnnouncement)
	assert.False(t, ok)
}

func TestDurationLadder(t *testing.T) {
	fallback := 120 * time.Minute
	gameMin := 45
	tmplMin := 90
	zero := 0

	tests := []struct {
		name string
		g    game.Game
		want time.Duration
	}{
		{"game override wins", game.Game{DurationMinutes: &gameMin, TemplateDuration: &tmplMin}, 45 * time.Minute},
		{"template when game unset", game.Game{TemplateDuration: &tmplMin}, 90 * time.Minute},
		{"fallback when nothing set", game.Game{}, fallback},
		{"zero game duration is ignored", game.Game{DurationMinutes: &zero, TemplateDuration: &tmplMin}, 90 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Duration(&tt.g, fallback))
		})
	}
}

type recordedUpsert struct {
	kind store.Kind
	due  time.Time
}

type recordingWriter struct {
	calls []recordedUpsert
}

func (r *recordingWriter) Upsert(ctx context.Context, q store.DBTX, gameID uuid.UUID, kind store.Kind, offsetMinutes *int, dueTime time.Time) (uuid.UUID, error) {
	r.calls = append(r.calls, recordedUpsert{kind, dueTime})
	return uuid.New(), nil
}

func TestEnsureTransitions(t *testing.T) {
	startAt := time.Date(2026, 8, 24, 18, 0, 0, 0, time.UTC)
	dur := 30
	g := &game.Game{ID: uuid.New(), ScheduledAt: startAt, DurationMinutes: &dur}

	w := &recordingWriter{}
	require.NoError(t, EnsureTransitions(context.Background(), w, nil, g, 120*time.Minute))

	require.Len(t, w.calls, 2)
	assert.Equal(t, store.KindStatusInProgress, w.calls[0].kind)
	assert.Equal(t, startAt, w.calls[0].due)
	assert.Equal(t, store.KindStatusCompleted, w.calls[1].kind)
	assert.Equal(t, startAt.Add(30*time.Minute), w.calls[1].due)
}

func TestEnsureTransitionsCompletedAlwaysAfterStart(t *testing.T) {
	startAt := time.Date(2026, 8, 24, 18, 0, 0, 0, time.UTC)
	negative := -10
	g := &game.Game{ID: uuid.New(), ScheduledAt: startAt, DurationMinutes: &negative}

	w := &recordingWriter{}
	// A negative duration falls through to the default; force a degenerate
	// end by passing a zero default.
	require.NoError(t, EnsureTransitions(context.Background(), w, nil, g, 0))

	require.Len(t, w.calls, 2)
	assert.True(t, w.calls[1].due.After(w.calls[0].due),
		"completed row must fire strictly after in-progress")
}
