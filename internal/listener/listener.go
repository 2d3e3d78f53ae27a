// Package listener consumes Postgres LISTEN/NOTIFY wake-ups for the
// scheduler loop. It holds a dedicated pgx connection (not from the pool)
// listening on the `schedule_changed` channel.
//
// The schedule table's row trigger emits on commit, and only for rows whose
// due time falls inside the near horizon, so a received event always implies
// a committed, wait-target-relevant mutation. The channel is lossy by
// design; the scheduler's safety timeout is the reconciliation floor.
package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	channel          = "schedule_changed"
	reconnectBackoff = 5 * time.Second
	maxReconnect     = 30 * time.Second
)

// ChangeEvent is the JSON payload from pg_notify('schedule_changed', ...).
type ChangeEvent struct {
	Op      string    `json:"op"` // INSERT | UPDATE | DELETE
	GameID  uuid.UUID `json:"game_id"`
	DueTime time.Time `json:"due_time"`
}

// Listener owns the dedicated LISTEN connection and fans events into a
// buffered channel the scheduler selects on.
type Listener struct {
	dbURL  string
	logger *slog.Logger
	events chan ChangeEvent
}

func New(dbURL string, logger *slog.Logger) *Listener {
	return &Listener{
		dbURL:  dbURL,
		logger: logger.With("component", "listener"),
		events: make(chan ChangeEvent, 16),
	}
}

// Events returns the wake-up channel. Any received event means the wait
// horizon may have moved; the scheduler re-queries rather than trusting the
// payload.
func (l *Listener) Events() <-chan ChangeEvent {
	return l.events
}

// Run listens on the schedule_changed channel, reconnecting automatically on
// connection loss. Blocks until ctx is cancelled. Intended to be called
// with `go`.
func (l *Listener) Run(ctx context.Context) {
	backoff := reconnectBackoff

	for {
		err := l.listenLoop(ctx)
		if ctx.Err() != nil {
			l.logger.Info("Schedule listener stopped (context cancelled)")
			return
		}

		l.logger.Error("Schedule listener disconnected, reconnecting...",
			"error", err, "backoff", backoff)

		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, maxReconnect)
		case <-ctx.Done():
			return
		}
	}
}

// listenLoop runs a single listen session. Returns when the connection
// drops or the context is cancelled.
func (l *Listener) listenLoop(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+channel); err != nil {
		return fmt.Errorf("LISTEN %s: %w", channel, err)
	}
	l.logger.Info("Schedule listener connected", "channel", channel)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		event, err := ParsePayload([]byte(notification.Payload))
		if err != nil {
			l.logger.Warn("Failed to parse schedule change event",
				"payload", notification.Payload, "error", err)
			continue
		}

		// A full buffer already guarantees a pending wake-up; extra events
		// carry no additional information, so dropping them is safe.
		select {
		case l.events <- event:
		default:
		}
	}
}

// ParsePayload decodes a trigger payload into a ChangeEvent.
func ParsePayload(payload []byte) (ChangeEvent, error) {
	var event ChangeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return ChangeEvent{}, err
	}
	return event, nil
}
