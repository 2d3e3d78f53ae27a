package game

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgRepository reads games and their inheritance tiers from Postgres.
type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Get fetches the game joined with its template, channel, and guild so the
// populator resolves offsets in a single round trip.
func (r *PgRepository) Get(ctx context.Context, id uuid.UUID) (*Game, error) {
	var (
		g               Game
		status          int16
		gameOffsets     []int32
		templateOffsets []int32
		channelOffsets  []int32
		guildOffsets    []int32
	)
	err := r.pool.QueryRow(ctx, "game_with_tiers", id).Scan(
		&g.ID, &g.ChannelID, &g.TemplateID, &g.Title, &status,
		&g.ScheduledAt, &g.DurationMinutes, &gameOffsets,
		&templateOffsets, &g.TemplateDuration,
		&channelOffsets,
		&guildOffsets,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get game %s: %w", id, err)
	}

	g.Status = Status(status)
	g.ReminderOffsets = toInts(gameOffsets)
	g.TemplateOffsets = toInts(templateOffsets)
	g.ChannelOffsets = toInts(channelOffsets)
	g.GuildOffsets = toInts(guildOffsets)
	return &g, nil
}

func toInts(in []int32) []int {
	if in == nil {
		return nil
	}
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return out
}
