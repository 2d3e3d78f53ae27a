package populate

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questboard/scheduler/internal/game"
	"github.com/questboard/scheduler/internal/store"
)

// --------------------------------------------------------------------------
// Fakes
// --------------------------------------------------------------------------

type fakeClock struct{ now time.Time }

func (f fakeClock) Now() time.Time                       { return f.now }
func (f fakeClock) After(time.Duration) <-chan time.Time { return make(chan time.Time) }

type fakeRepo struct {
	g   *game.Game
	err error
}

func (f fakeRepo) Get(ctx context.Context, id uuid.UUID) (*game.Game, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.g, nil
}

type upsertCall struct {
	gameID uuid.UUID
	kind   store.Kind
	offset *int
	due    time.Time
}

type fakeWriter struct {
	deleted []uuid.UUID
	upserts []upsertCall
}

func (f *fakeWriter) Upsert(ctx context.Context, q store.DBTX, gameID uuid.UUID, kind store.Kind, offsetMinutes *int, dueTime time.Time) (uuid.UUID, error) {
	f.upserts = append(f.upserts, upsertCall{gameID, kind, offsetMinutes, dueTime})
	return uuid.New(), nil
}

func (f *fakeWriter) DeleteByGame(ctx context.Context, q store.DBTX, gameID uuid.UUID) error {
	f.deleted = append(f.deleted, gameID)
	return nil
}

func (f *fakeWriter) byKind(k store.Kind) []upsertCall {
	var out []upsertCall
	for _, u := range f.upserts {
		if u.kind == k {
			out = append(out, u)
		}
	}
	return out
}

func newPopulator(w *fakeWriter, g *game.Game, now time.Time) *Populator {
	return New(w, fakeRepo{g: g}, fakeClock{now: now},
		[]int{60, 15}, 120*time.Minute, slog.Default())
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestPopulateCreatesFullSchedule(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	startAt := now.Add(2 * time.Hour)
	g := &game.Game{
		ID:          uuid.New(),
		Status:      game.StatusScheduled,
		ScheduledAt: startAt,
	}

	w := &fakeWriter{}
	p := newPopulator(w, g, now)

	require.NoError(t, p.Populate(context.Background(), nil, g.ID, true))

	// Old rows are always removed first.
	require.Equal(t, []uuid.UUID{g.ID}, w.deleted)

	reminders := w.byKind(store.KindReminder)
	require.Len(t, reminders, 2)
	assert.Equal(t, 60, *reminders[0].offset)
	assert.Equal(t, startAt.Add(-60*time.Minute), reminders[0].due)
	assert.Equal(t, 15, *reminders[1].offset)
	assert.Equal(t, startAt.Add(-15*time.Minute), reminders[1].due)

	announce := w.byKind(store.KindJoinAnnouncement)
	require.Len(t, announce, 1)
	assert.Equal(t, now, announce[0].due)
	assert.Nil(t, announce[0].offset)

	inProgress := w.byKind(store.KindStatusInProgress)
	require.Len(t, inProgress, 1)
	assert.Equal(t, startAt, inProgress[0].due)

	completed := w.byKind(store.KindStatusCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, startAt.Add(120*time.Minute), completed[0].due)
}

func TestPopulateFiltersPastReminders(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	// Game 30 minutes out: the 60-minute reminder is already in the past.
	g := &game.Game{
		ID:          uuid.New(),
		Status:      game.StatusScheduled,
		ScheduledAt: now.Add(30 * time.Minute),
	}

	w := &fakeWriter{}
	p := newPopulator(w, g, now)
	require.NoError(t, p.Populate(context.Background(), nil, g.ID, false))

	reminders := w.byKind(store.KindReminder)
	require.Len(t, reminders, 1)
	assert.Equal(t, 15, *reminders[0].offset)
	assert.Equal(t, now.Add(15*time.Minute), reminders[0].due)
}

func TestPopulateGameEntirelyInPast(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	g := &game.Game{
		ID:          uuid.New(),
		Status:      game.StatusScheduled,
		ScheduledAt: now.Add(-1 * time.Hour),
	}

	w := &fakeWriter{}
	p := newPopulator(w, g, now)
	require.NoError(t, p.Populate(context.Background(), nil, g.ID, false))

	// No reminders, but status rows exist with past due times so the loop
	// fires them immediately.
	assert.Empty(t, w.byKind(store.KindReminder))
	require.Len(t, w.byKind(store.KindStatusInProgress), 1)
	require.Len(t, w.byKind(store.KindStatusCompleted), 1)
}

func TestPopulateInactiveGameClearsOnly(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	g := &game.Game{
		ID:          uuid.New(),
		Status:      game.StatusCancelled,
		ScheduledAt: now.Add(2 * time.Hour),
	}

	w := &fakeWriter{}
	p := newPopulator(w, g, now)
	require.NoError(t, p.Populate(context.Background(), nil, g.ID, false))

	assert.Equal(t, []uuid.UUID{g.ID}, w.deleted)
	assert.Empty(t, w.upserts)
}

func TestPopulateIsIdempotent(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	g := &game.Game{
		ID:          uuid.New(),
		Status:      game.StatusScheduled,
		ScheduledAt: now.Add(2 * time.Hour),
	}

	w1 := &fakeWriter{}
	require.NoError(t, newPopulator(w1, g, now).Populate(context.Background(), nil, g.ID, false))

	w2 := &fakeWriter{}
	p2 := newPopulator(w2, g, now)
	require.NoError(t, p2.Populate(context.Background(), nil, g.ID, false))
	require.NoError(t, p2.Populate(context.Background(), nil, g.ID, false))

	// Two runs produce the delete-then-upsert sequence twice with identical
	// rows; the second run's upserts match the first run exactly.
	assert.Equal(t, append(w1.upserts, w1.upserts...), w2.upserts)
	assert.Equal(t, []uuid.UUID{g.ID, g.ID}, w2.deleted)
}

func TestPopulateUnknownGame(t *testing.T) {
	w := &fakeWriter{}
	p := New(w, fakeRepo{err: game.ErrNotFound}, fakeClock{now: time.Now()},
		[]int{60, 15}, 120*time.Minute, slog.Default())

	err := p.Populate(context.Background(), nil, uuid.New(), false)
	assert.ErrorIs(t, err, game.ErrNotFound)
	assert.Empty(t, w.deleted)
	assert.Empty(t, w.upserts)
}

func TestClear(t *testing.T) {
	w := &fakeWriter{}
	p := newPopulator(w, &game.Game{}, time.Now())
	id := uuid.New()
	require.NoError(t, p.Clear(context.Background(), nil, id))
	assert.Equal(t, []uuid.UUID{id}, w.deleted)
}
