package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the subset of pgx satisfied by both *pgxpool.Pool and pgx.Tx.
// Populator writes pass the game mutation's transaction so schedule changes
// commit (and NOTIFY fires) atomically with the game edit.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store exposes schedule row operations backed by Postgres.
type Store struct {
	pool  *pgxpool.Pool
	grace time.Duration
}

// New creates a Store. grace widens the claim window so rows due imminently
// are dispatched in the current wake-up instead of forcing another iteration.
func New(pool *pgxpool.Pool, grace time.Duration) *Store {
	return &Store{pool: pool, grace: grace}
}

// Pool returns the underlying connection pool.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Begin opens a transaction for a claim/dispatch cycle.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	return s.pool.Begin(ctx)
}

// Upsert inserts a schedule row or, when the (game, kind, offset) triple
// already exists, moves its due time and resets sent. Idempotent on
// identical inputs.
func (s *Store) Upsert(ctx context.Context, q DBTX, gameID uuid.UUID, kind Kind, offsetMinutes *int, dueTime time.Time) (uuid.UUID, error) {
	if !kind.Valid() {
		return uuid.Nil, fmt.Errorf("%w: unknown kind %d", ErrConstraint, kind)
	}

	var id uuid.UUID
	err := q.QueryRow(ctx, `
		INSERT INTO notification_schedule (game_id, kind, offset_minutes, due_time)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (game_id, kind, offset_minutes) DO UPDATE
		SET due_time = EXCLUDED.due_time, sent = false
		RETURNING id`,
		gameID, int16(kind), offsetMinutes, dueTime.UTC(),
	).Scan(&id)
	if err != nil {
		return uuid.Nil, wrapPgError("upsert schedule row", err)
	}
	return id, nil
}

// DeleteByGame removes all schedule rows for a game. Used when a game is
// cancelled or edited so the schedule is recomputed from scratch.
func (s *Store) DeleteByGame(ctx context.Context, q DBTX, gameID uuid.UUID) error {
	_, err := q.Exec(ctx, `DELETE FROM notification_schedule WHERE game_id = $1`, gameID)
	if err != nil {
		return fmt.Errorf("delete schedule for game %s: %w", gameID, err)
	}
	return nil
}

// PeekNextDue returns the earliest unsent row's id and due time. The second
// return is false when the schedule is empty. Served by the partial index in
// O(log N) regardless of sent history size.
func (s *Store) PeekNextDue(ctx context.Context) (Row, bool, error) {
	var r Row
	err := s.pool.QueryRow(ctx, "peek_next_due").Scan(&r.ID, &r.DueTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return Row{}, false, nil
	}
	if err != nil {
		return Row{}, false, fmt.Errorf("peek next due: %w", err)
	}
	return r, true, nil
}

// ClaimDue locks and returns up to limit unsent rows due within now+grace,
// earliest first, ties broken by id. Rows locked by a peer scheduler are
// skipped; locks are held until the transaction ends.
func (s *Store) ClaimDue(ctx context.Context, tx pgx.Tx, now time.Time, limit int) ([]Row, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, game_id, kind, offset_minutes, due_time, sent, created_at
		FROM notification_schedule
		WHERE sent = false AND due_time <= $1
		ORDER BY due_time, id
		LIMIT $2
		FOR UPDATE SKIP LOCKED`,
		now.UTC().Add(s.grace), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("claim due rows: %w", err)
	}
	defer rows.Close()

	var claimed []Row
	for rows.Next() {
		var r Row
		var kind int16
		if err := rows.Scan(&r.ID, &r.GameID, &kind, &r.OffsetMinutes, &r.DueTime, &r.Sent, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan claimed row: %w", err)
		}
		r.Kind = Kind(kind)
		claimed = append(claimed, r)
	}
	return claimed, rows.Err()
}

// MarkSent flips sent=true for a claimed row. Returns ErrStaleRow when the
// row vanished between claim and mark (game deletion cascade).
func (s *Store) MarkSent(ctx context.Context, q DBTX, id uuid.UUID) error {
	tag, err := q.Exec(ctx, `
		UPDATE notification_schedule SET sent = true
		WHERE id = $1 AND sent = false`, id)
	if err != nil {
		return fmt.Errorf("mark sent %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleRow
	}
	return nil
}

// ListByGame returns all rows for one game, earliest first.
func (s *Store) ListByGame(ctx context.Context, gameID uuid.UUID) ([]Row, error) {
	rows, err := s.pool.Query(ctx, "schedule_for_game", gameID)
	if err != nil {
		return nil, fmt.Errorf("list schedule for game %s: %w", gameID, err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		var kind int16
		if err := rows.Scan(&r.ID, &r.GameID, &kind, &r.OffsetMinutes, &r.DueTime, &r.Sent, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan schedule row: %w", err)
		}
		r.Kind = Kind(kind)
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountOverdueUnsent returns how many unsent rows are already past due.
// The maintenance sweep uses it as the reconciliation floor beneath the
// lossy NOTIFY channel.
func (s *Store) CountOverdueUnsent(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, "count_overdue_unsent").Scan(&n); err != nil {
		return 0, fmt.Errorf("count overdue unsent: %w", err)
	}
	return n, nil
}

// DeleteSentBefore purges sent rows older than the cutoff and returns the
// number removed.
func (s *Store) DeleteSentBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM notification_schedule
		WHERE sent = true AND due_time < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge sent rows: %w", err)
	}
	return tag.RowsAffected(), nil
}

// wrapPgError maps Postgres constraint violations onto ErrConstraint so
// callers can branch without importing pgconn.
func wrapPgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23502", "23503", "23505", "23514":
			return fmt.Errorf("%s: %w: %s", op, ErrConstraint, pgErr.Message)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
