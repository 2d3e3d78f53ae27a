// Package publish translates schedule rows into domain events and hands them
// to the external bus with at-least-once semantics. Duplicate delivery is
// possible on a crash between publish and mark-sent, so every event carries
// a deterministic dedup key and consumers must be idempotent.
package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/questboard/scheduler/internal/store"
)

// Event names carried in the envelope.
const (
	EventReminderDue         = "game.reminder_due"
	EventJoinAnnouncementDue = "game.join_announcement_due"
	EventStatusTransitionDue = "game.status_transition_due"
	EventDeadLetter          = "game.schedule_dead_letter"
)

// Envelope is the bus message body.
type Envelope struct {
	Event         string    `json:"event"`
	DedupKey      string    `json:"dedup_key"`
	GameID        string    `json:"game_id"`
	Kind          string    `json:"kind"`
	OffsetMinutes *int      `json:"offset_minutes"`
	ScheduledFor  time.Time `json:"scheduled_for"`
	Error         string    `json:"error,omitempty"` // dead-letter only
}

var (
	// ErrUnavailable marks transient broker failures; the row stays unsent
	// and will be re-claimed.
	ErrUnavailable = errors.New("event bus unavailable")

	// ErrBadPayload marks a row that cannot be serialized or that the bus
	// rejects deterministically; retrying is pointless beyond the cap.
	ErrBadPayload = errors.New("event payload rejected")
)

// Publisher is the at-least-once sink the dispatcher writes to.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// FromRow builds the outbound envelope for a schedule row. ScheduledFor is
// the stored nominal due time, not the dispatch wall time.
func FromRow(r store.Row) Envelope {
	return Envelope{
		Event:         eventName(r.Kind),
		DedupKey:      DedupKey(r),
		GameID:        r.GameID.String(),
		Kind:          r.Kind.String(),
		OffsetMinutes: r.OffsetMinutes,
		ScheduledFor:  r.DueTime.UTC(),
	}
}

// DeadLetter builds the error event emitted when a row exhausts its publish
// retries and is parked so it no longer blocks the queue.
func DeadLetter(r store.Row, cause string) Envelope {
	env := FromRow(r)
	env.Event = EventDeadLetter
	env.Error = cause
	return env
}

// DedupKey is the deterministic identity downstream consumers dedupe on.
func DedupKey(r store.Row) string {
	return fmt.Sprintf("%s:%s", r.ID, r.Kind)
}

func eventName(k store.Kind) string {
	switch k {
	case KindReminder:
		return EventReminderDue
	case KindJoinAnnouncement:
		return EventJoinAnnouncementDue
	default:
		return EventStatusTransitionDue
	}
}

// Local aliases keep the switch readable.
const (
	KindReminder         = store.KindReminder
	KindJoinAnnouncement = store.KindJoinAnnouncement
)
