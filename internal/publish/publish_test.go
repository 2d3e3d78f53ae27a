package publish

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/questboard/scheduler/internal/store"
)

func TestFromRowEventNames(t *testing.T) {
	tests := []struct {
		kind store.Kind
		want string
	}{
		{store.KindReminder, EventReminderDue},
		{store.KindJoinAnnouncement, EventJoinAnnouncementDue},
		{store.KindStatusInProgress, EventStatusTransitionDue},
		{store.KindStatusCompleted, EventStatusTransitionDue},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			env := FromRow(store.Row{ID: uuid.New(), Kind: tt.kind})
			assert.Equal(t, tt.want, env.Event)
		})
	}
}

func TestFromRowCarriesNominalDueTime(t *testing.T) {
	due := time.Date(2026, 8, 24, 18, 30, 0, 0, time.UTC)
	offset := 60
	r := store.Row{
		ID:            uuid.New(),
		GameID:        uuid.New(),
		Kind:          store.KindReminder,
		OffsetMinutes: &offset,
		DueTime:       due,
	}

	env := FromRow(r)
	assert.Equal(t, due, env.ScheduledFor, "scheduled_for is the stored due time, not dispatch wall time")
	assert.Equal(t, r.GameID.String(), env.GameID)
	assert.Equal(t, "reminder", env.Kind)
	assert.Equal(t, 60, *env.OffsetMinutes)
	assert.Empty(t, env.Error)
}

func TestDedupKeyIsDeterministic(t *testing.T) {
	r := store.Row{ID: uuid.New(), Kind: store.KindStatusCompleted}
	want := r.ID.String() + ":status_completed"
	assert.Equal(t, want, DedupKey(r))
	assert.Equal(t, DedupKey(r), FromRow(r).DedupKey)
}

func TestDeadLetter(t *testing.T) {
	r := store.Row{ID: uuid.New(), GameID: uuid.New(), Kind: store.KindReminder}
	env := DeadLetter(r, "consumer rejected payload")

	assert.Equal(t, EventDeadLetter, env.Event)
	assert.Equal(t, "consumer rejected payload", env.Error)
	// Everything else matches the normal envelope so consumers can correlate.
	assert.Equal(t, DedupKey(r), env.DedupKey)
	assert.Equal(t, r.GameID.String(), env.GameID)
}
