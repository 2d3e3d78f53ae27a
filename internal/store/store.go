// Package store provides durable, indexed storage of pending schedule rows.
//
// Each row is a single "fire once at T" obligation owned by its parent game:
// a reminder, a one-shot join announcement, or a status transition. The
// dispatcher claims due rows with FOR UPDATE SKIP LOCKED so multiple
// scheduler instances partition the queue without coordination.
package store

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// --------------------------------------------------------------------------
// Kinds
// --------------------------------------------------------------------------

// Kind identifies what a schedule row fires.
type Kind int16

const (
	KindReminder Kind = iota
	KindJoinAnnouncement
	KindStatusInProgress
	KindStatusCompleted
)

func (k Kind) String() string {
	switch k {
	case KindReminder:
		return "reminder"
	case KindJoinAnnouncement:
		return "join_announcement"
	case KindStatusInProgress:
		return "status_in_progress"
	case KindStatusCompleted:
		return "status_completed"
	default:
		return "unknown"
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k >= KindReminder && k <= KindStatusCompleted
}

// IsStatus reports whether k drives a game status transition.
func (k Kind) IsStatus() bool {
	return k == KindStatusInProgress || k == KindStatusCompleted
}

// --------------------------------------------------------------------------
// Row
// --------------------------------------------------------------------------

// Row is one pending (or sent) notification.
type Row struct {
	ID            uuid.UUID
	GameID        uuid.UUID
	Kind          Kind
	OffsetMinutes *int // non-nil for reminders only
	DueTime       time.Time
	Sent          bool
	CreatedAt     time.Time
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	// ErrConstraint is returned when an upsert violates a table constraint
	// (malformed kind, missing game, bad offset).
	ErrConstraint = errors.New("schedule constraint violation")

	// ErrStaleRow is returned by MarkSent when the row no longer exists,
	// typically because the game was deleted between claim and mark.
	// Callers treat it as a soft success.
	ErrStaleRow = errors.New("schedule row no longer exists")
)
