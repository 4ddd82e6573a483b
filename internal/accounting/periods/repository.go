package periods

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const (
	constraintOverlap = "ex_fiscal_periods_overlap"
	constraintName    = "uq_fiscal_periods_tenant_name"
)

// Repository persists fiscal periods.
type Repository interface {
	Get(ctx context.Context, tenantID uuid.UUID, id int64) (Period, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]Period, error)
	// Covering returns the period containing date, or nil. The row is read FOR SHARE so a
	// concurrent close waits for the posting transaction.
	Covering(ctx context.Context, tenantID uuid.UUID, date time.Time) (*Period, error)
	Insert(ctx context.Context, in CreateInput) (Period, error)
	WithTx(ctx context.Context, tenantID uuid.UUID, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, tenantID uuid.UUID, id int64) (Period, error)
	MarkClosed(ctx context.Context, tenantID uuid.UUID, id int64, rec CloseRecord) error
	MarkLocked(ctx context.Context, tenantID uuid.UUID, id int64, actor, reason string, at time.Time) error
	MarkUnlocked(ctx context.Context, tenantID uuid.UUID, id int64, actor, reason string, at time.Time) error
}

type repository struct {
	runner *db.Runner
}

// NewRepository builds the pgx backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{runner: db.NewRunner(pool)}
}

const periodColumns = `id, tenant_id, period_name, start_date, end_date, status, closed_at, COALESCE(closed_by, ''),
closing_journal_id, closing_snapshot, locked_at, COALESCE(locked_by, ''), COALESCE(lock_reason, ''),
unlocked_at, COALESCE(unlocked_by, ''), COALESCE(unlock_reason, ''), created_at`

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.StartDate, &p.EndDate, &p.Status, &p.ClosedAt, &p.ClosedBy,
		&p.ClosingJournalID, &p.ClosingSnapshot, &p.LockedAt, &p.LockedBy, &p.LockReason,
		&p.UnlockedAt, &p.UnlockedBy, &p.UnlockReason, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Period{}, shared.ErrPeriodNotFound
	}
	return p, err
}

func (r *repository) Get(ctx context.Context, tenantID uuid.UUID, id int64) (Period, error) {
	var period Period
	err := r.runner.WithTenantRead(ctx, tenantID, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		period, err = scanPeriod(tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM fiscal_periods WHERE tenant_id=$1 AND id=$2`, tenantID, id))
		return err
	})
	return period, err
}

func (r *repository) List(ctx context.Context, tenantID uuid.UUID) ([]Period, error) {
	var periods []Period
	err := r.runner.WithTenantRead(ctx, tenantID, func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+periodColumns+` FROM fiscal_periods WHERE tenant_id=$1 ORDER BY start_date`, tenantID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			p, err := scanPeriod(rows)
			if err != nil {
				return err
			}
			periods = append(periods, p)
		}
		return rows.Err()
	})
	return periods, err
}

func (r *repository) Covering(ctx context.Context, tenantID uuid.UUID, date time.Time) (*Period, error) {
	var found *Period
	err := r.runner.WithTenantTx(ctx, tenantID, func(ctx context.Context, tx pgx.Tx) error {
		p, err := scanPeriod(tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM fiscal_periods
WHERE tenant_id=$1 AND $2::date BETWEEN start_date AND end_date FOR SHARE`, tenantID, date))
		if errors.Is(err, shared.ErrPeriodNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = &p
		return nil
	})
	return found, err
}

func (r *repository) Insert(ctx context.Context, in CreateInput) (Period, error) {
	var period Period
	err := r.runner.WithTenantTx(ctx, in.TenantID, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		period, err = scanPeriod(tx.QueryRow(ctx, `INSERT INTO fiscal_periods (tenant_id, period_name, start_date, end_date, status)
VALUES ($1, $2, $3, $4, 'OPEN') RETURNING `+periodColumns, in.TenantID, in.Name, dateOnly(in.StartDate), dateOnly(in.EndDate)))
		return err
	})
	switch {
	case internalShared.IsExclusionViolation(err, constraintOverlap):
		return Period{}, shared.Invalid("start_date", "period overlaps existing period")
	case internalShared.IsUniqueViolation(err, constraintName):
		return Period{}, shared.Invalid("period_name", "period name already exists")
	}
	return period, err
}

func (r *repository) WithTx(ctx context.Context, tenantID uuid.UUID, fn func(context.Context, TxRepository) error) error {
	return r.runner.WithTenantTx(ctx, tenantID, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetForUpdate(ctx context.Context, tenantID uuid.UUID, id int64) (Period, error) {
	return scanPeriod(r.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM fiscal_periods WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, id))
}

func (r *txRepository) MarkClosed(ctx context.Context, tenantID uuid.UUID, id int64, rec CloseRecord) error {
	return r.exec(ctx, `UPDATE fiscal_periods SET status='CLOSED', closed_at=$3, closed_by=$4, closing_journal_id=$5, closing_snapshot=$6
WHERE tenant_id=$1 AND id=$2`, tenantID, id, rec.ClosedAt, rec.ClosedBy, rec.ClosingJournalID, rec.Snapshot)
}

func (r *txRepository) MarkLocked(ctx context.Context, tenantID uuid.UUID, id int64, actor, reason string, at time.Time) error {
	return r.exec(ctx, `UPDATE fiscal_periods SET status='LOCKED', locked_at=$3, locked_by=$4, lock_reason=$5
WHERE tenant_id=$1 AND id=$2`, tenantID, id, at, actor, reason)
}

func (r *txRepository) MarkUnlocked(ctx context.Context, tenantID uuid.UUID, id int64, actor, reason string, at time.Time) error {
	return r.exec(ctx, `UPDATE fiscal_periods SET status='CLOSED', unlocked_at=$3, unlocked_by=$4, unlock_reason=$5
WHERE tenant_id=$1 AND id=$2`, tenantID, id, at, actor, reason)
}

func (r *txRepository) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := r.tx.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrPeriodNotFound
	}
	return nil
}
