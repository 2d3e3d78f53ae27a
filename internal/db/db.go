// Package db provides a pgxpool-based connection pool with prepared statement
// registration, health checking, and embedded goose migrations.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/questboard/scheduler/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// registerPreparedStatements registers the hot-path read statements. The
// peek query runs on every loop iteration, so it must not pay parse cost.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Scheduler hot path: earliest unsent row, served by the partial index.
		"peek_next_due": `
			SELECT id, due_time FROM notification_schedule
			WHERE sent = false
			ORDER BY due_time, id
			LIMIT 1`,

		// Admin surface: pending rows for one game.
		"schedule_for_game": `
			SELECT id, game_id, kind, offset_minutes, due_time, sent, created_at
			FROM notification_schedule
			WHERE game_id = $1
			ORDER BY due_time, id`,

		// Populator: game with its inheritance tiers in one round trip.
		"game_with_tiers": `
			SELECT g.id, g.channel_id, g.template_id, g.title, g.status,
			       g.scheduled_at, g.duration_minutes, g.reminder_offsets,
			       t.reminder_offsets, t.duration_minutes,
			       c.reminder_offsets,
			       gl.reminder_offsets
			FROM games g
			JOIN channels c ON c.id = g.channel_id
			JOIN guilds gl ON gl.id = c.guild_id
			LEFT JOIN game_templates t ON t.id = g.template_id
			WHERE g.id = $1`,

		// Maintenance: overdue unsent rows outside the notify horizon.
		"count_overdue_unsent": `
			SELECT count(*) FROM notification_schedule
			WHERE sent = false AND due_time <= now()`,
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
