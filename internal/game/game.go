// Package game defines the game entity the scheduler serves and read access
// to it. The scheduler never writes game state; transitions are applied by
// the downstream consumer of status events.
package game

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a game.
type Status int16

const (
	StatusScheduled Status = iota
	StatusInProgress
	StatusCompleted
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusScheduled:
		return "scheduled"
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Game is a scheduled session plus the inheritance tiers the populator needs
// to resolve reminder offsets. Tier fields are nil when that tier has no
// override configured.
type Game struct {
	ID              uuid.UUID
	ChannelID       uuid.UUID
	TemplateID      *uuid.UUID
	Title           string
	Status          Status
	ScheduledAt     time.Time
	DurationMinutes *int
	ReminderOffsets []int // game-level override; nil = inherit

	// Inheritance tiers, resolved alongside the game in one query.
	TemplateOffsets  []int
	TemplateDuration *int
	ChannelOffsets   []int
	GuildOffsets     []int
}

// ErrNotFound is returned when a game id resolves to nothing.
var ErrNotFound = errors.New("game not found")

// Repository is the read-only game access the scheduler core consumes.
type Repository interface {
	// Get returns a game with its inheritance tiers, or ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*Game, error)
}
