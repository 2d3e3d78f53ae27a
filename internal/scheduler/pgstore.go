package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/questboard/scheduler/internal/store"
)

// PgStore adapts *store.Store to the loop's ScheduleStore interface.
type PgStore struct {
	st *store.Store
}

func NewPgStore(st *store.Store) *PgStore {
	return &PgStore{st: st}
}

func (p *PgStore) PeekNextDue(ctx context.Context) (store.Row, bool, error) {
	return p.st.PeekNextDue(ctx)
}

func (p *PgStore) BeginClaim(ctx context.Context) (ClaimTx, error) {
	tx, err := p.st.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &pgClaimTx{st: p.st, tx: tx}, nil
}

type pgClaimTx struct {
	st *store.Store
	tx pgx.Tx
}

func (c *pgClaimTx) Claim(ctx context.Context, now time.Time, limit int) ([]store.Row, error) {
	return c.st.ClaimDue(ctx, c.tx, now, limit)
}

func (c *pgClaimTx) MarkSent(ctx context.Context, id uuid.UUID) error {
	return c.st.MarkSent(ctx, c.tx, id)
}

func (c *pgClaimTx) Commit(ctx context.Context) error {
	return c.tx.Commit(ctx)
}

func (c *pgClaimTx) Rollback(ctx context.Context) error {
	return c.tx.Rollback(ctx)
}
