package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrTenantMismatch is returned when a nested unit of work targets another tenant.
var ErrTenantMismatch = errors.New("platform/db: nested transaction belongs to another tenant")

type txKey struct{}

type scopedTx struct {
	tx     pgx.Tx
	tenant uuid.UUID
	after  *[]func()
}

// AfterCommit runs fn once the transaction carried by ctx commits, or right away when ctx
// carries none. A rolled back transaction drops fn.
func AfterCommit(ctx context.Context, fn func()) {
	scoped, ok := ctx.Value(txKey{}).(scopedTx)
	if !ok || scoped.after == nil {
		fn()
		return
	}
	*scoped.after = append(*scoped.after, fn)
}

func (s scopedTx) committed() {
	for _, fn := range *s.after {
		fn()
	}
}

// TxFromContext returns the transaction carried by ctx, if any.
func TxFromContext(ctx context.Context) (pgx.Tx, bool) {
	scoped, ok := ctx.Value(txKey{}).(scopedTx)
	if !ok {
		return nil, false
	}
	return scoped.tx, true
}

// Runner opens tenant scoped transactions on a pool.
type Runner struct {
	pool *pgxpool.Pool
}

// NewRunner builds a Runner around pool.
func NewRunner(pool *pgxpool.Pool) *Runner {
	return &Runner{pool: pool}
}

// WithTenantTx executes fn within a read-committed transaction whose session carries
// app.tenant_id for row level security. If ctx already carries a transaction for the same
// tenant, fn joins it and the outer caller owns commit and rollback.
func (r *Runner) WithTenantTx(ctx context.Context, tenantID uuid.UUID, fn func(context.Context, pgx.Tx) error) error {
	return r.run(ctx, tenantID, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
}

// WithTenantRead is WithTenantTx with a read-only transaction.
func (r *Runner) WithTenantRead(ctx context.Context, tenantID uuid.UUID, fn func(context.Context, pgx.Tx) error) error {
	return r.run(ctx, tenantID, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadOnly}, fn)
}

func (r *Runner) run(ctx context.Context, tenantID uuid.UUID, opts pgx.TxOptions, fn func(context.Context, pgx.Tx) error) error {
	if scoped, ok := ctx.Value(txKey{}).(scopedTx); ok {
		if scoped.tenant != tenantID {
			return ErrTenantMismatch
		}
		return fn(ctx, scoped.tx)
	}
	if tenantID == uuid.Nil {
		return errors.New("platform/db: tenant id required")
	}

	tx, err := r.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.tenant_id', $1, true)`, tenantID.String()); err != nil {
		return fmt.Errorf("platform/db: set tenant: %w", err)
	}

	scoped := scopedTx{tx: tx, tenant: tenantID, after: new([]func())}
	if err := fn(context.WithValue(ctx, txKey{}, scoped), tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}
	scoped.committed()

	return nil
}

// WithTx executes a function within a plain read-committed transaction. It is used by
// cross-tenant maintenance work such as the outbox relay.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}
