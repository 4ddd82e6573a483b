package subledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Repository persists items of one Kind.
type Repository interface {
	Get(ctx context.Context, tenantID uuid.UUID, id int64) (Item, error)
	ListOpen(ctx context.Context, tenantID uuid.UUID) ([]Item, error)
	Applications(ctx context.Context, tenantID uuid.UUID, itemID int64) ([]Application, error)
	WithTx(ctx context.Context, tenantID uuid.UUID, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	Insert(ctx context.Context, item Item) (Item, error)
	GetForUpdate(ctx context.Context, tenantID uuid.UUID, id int64) (Item, error)
	FindBySourceForUpdate(ctx context.Context, tenantID uuid.UUID, sourceType, sourceID string) (Item, error)
	SetJournal(ctx context.Context, tenantID uuid.UUID, id, journalID int64) error
	InsertApplication(ctx context.Context, tenantID uuid.UUID, app Application) (Application, error)
	SetApplicationJournal(ctx context.Context, tenantID uuid.UUID, applicationID, journalID int64) error
	UpdatePaid(ctx context.Context, tenantID uuid.UUID, id int64, paid decimal.Decimal, status Status) error
	CountApplications(ctx context.Context, tenantID uuid.UUID, id int64) (int, error)
	MarkVoid(ctx context.Context, tenantID uuid.UUID, id int64, reason string, at time.Time) error
}

type repository struct {
	kind   Kind
	runner *db.Runner
}

// NewRepository builds the pgx backed repository for kind.
func NewRepository(pool *pgxpool.Pool, kind Kind) Repository {
	return &repository{kind: kind, runner: db.NewRunner(pool)}
}

const itemColumns = `id, tenant_id, counterparty, source_type, source_id, amount, amount_paid, status, due_date,
journal_id, voided_at, COALESCE(void_reason, ''), created_at`

func (k Kind) scanItem(row pgx.Row) (Item, error) {
	item := Item{Kind: k}
	err := row.Scan(&item.ID, &item.TenantID, &item.Counterparty, &item.SourceType, &item.SourceID, &item.Amount,
		&item.AmountPaid, &item.Status, &item.DueDate, &item.JournalID, &item.VoidedAt, &item.VoidReason, &item.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, shared.ErrItemNotFound
	}
	return item, err
}

func (r *repository) Get(ctx context.Context, tenantID uuid.UUID, id int64) (Item, error) {
	var item Item
	err := r.runner.WithTenantRead(ctx, tenantID, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		item, err = r.kind.scanItem(tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM `+r.kind.itemTable()+` WHERE tenant_id=$1 AND id=$2`, tenantID, id))
		return err
	})
	return item, err
}

func (r *repository) ListOpen(ctx context.Context, tenantID uuid.UUID) ([]Item, error) {
	var items []Item
	err := r.runner.WithTenantRead(ctx, tenantID, func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+itemColumns+` FROM `+r.kind.itemTable()+`
WHERE tenant_id=$1 AND status IN ('OPEN','PARTIAL') ORDER BY due_date, id`, tenantID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			item, err := r.kind.scanItem(rows)
			if err != nil {
				return err
			}
			items = append(items, item)
		}
		return rows.Err()
	})
	return items, err
}

func (r *repository) Applications(ctx context.Context, tenantID uuid.UUID, itemID int64) ([]Application, error) {
	var apps []Application
	err := r.runner.WithTenantRead(ctx, tenantID, func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT id, item_id, payment_date, amount, method, journal_id, created_at
FROM `+r.kind.applicationTable()+` WHERE tenant_id=$1 AND item_id=$2 ORDER BY id`, tenantID, itemID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var a Application
			if err := rows.Scan(&a.ID, &a.ItemID, &a.PaymentDate, &a.Amount, &a.Method, &a.JournalID, &a.CreatedAt); err != nil {
				return err
			}
			apps = append(apps, a)
		}
		return rows.Err()
	})
	return apps, err
}

func (r *repository) WithTx(ctx context.Context, tenantID uuid.UUID, fn func(context.Context, TxRepository) error) error {
	return r.runner.WithTenantTx(ctx, tenantID, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepository{kind: r.kind, tx: tx})
	})
}

type txRepository struct {
	kind Kind
	tx   pgx.Tx
}

func (r *txRepository) Insert(ctx context.Context, item Item) (Item, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO `+r.kind.itemTable()+`
(tenant_id, counterparty, source_type, source_id, amount, amount_paid, status, due_date, journal_id)
VALUES ($1,$2,$3,$4,$5,0,'OPEN',$6,$7) RETURNING `+itemColumns,
		item.TenantID, item.Counterparty, item.SourceType, item.SourceID, item.Amount, item.DueDate, item.JournalID)
	out, err := r.kind.scanItem(row)
	if internalShared.IsUniqueViolation(err, "uq_"+r.kind.itemTable()+"_source") {
		return Item{}, shared.Invalid("source_id", "%s %s already has a %s item", item.SourceType, item.SourceID, r.kind)
	}
	return out, err
}

func (r *txRepository) GetForUpdate(ctx context.Context, tenantID uuid.UUID, id int64) (Item, error) {
	return r.kind.scanItem(r.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM `+r.kind.itemTable()+`
WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, id))
}

func (r *txRepository) FindBySourceForUpdate(ctx context.Context, tenantID uuid.UUID, sourceType, sourceID string) (Item, error) {
	return r.kind.scanItem(r.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM `+r.kind.itemTable()+`
WHERE tenant_id=$1 AND source_type=$2 AND source_id=$3 FOR UPDATE`, tenantID, sourceType, sourceID))
}

func (r *txRepository) SetJournal(ctx context.Context, tenantID uuid.UUID, id, journalID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE `+r.kind.itemTable()+` SET journal_id=$3 WHERE tenant_id=$1 AND id=$2`, tenantID, id, journalID)
	return err
}

func (r *txRepository) InsertApplication(ctx context.Context, tenantID uuid.UUID, app Application) (Application, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO `+r.kind.applicationTable()+` (item_id, tenant_id, payment_date, amount, method)
VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at`, app.ItemID, tenantID, app.PaymentDate, app.Amount, app.Method).
		Scan(&app.ID, &app.CreatedAt)
	if err != nil {
		return Application{}, fmt.Errorf("subledger: insert application: %w", err)
	}
	return app, nil
}

func (r *txRepository) SetApplicationJournal(ctx context.Context, tenantID uuid.UUID, applicationID, journalID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE `+r.kind.applicationTable()+` SET journal_id=$3 WHERE tenant_id=$1 AND id=$2`, tenantID, applicationID, journalID)
	return err
}

func (r *txRepository) UpdatePaid(ctx context.Context, tenantID uuid.UUID, id int64, paid decimal.Decimal, status Status) error {
	_, err := r.tx.Exec(ctx, `UPDATE `+r.kind.itemTable()+` SET amount_paid=$3, status=$4 WHERE tenant_id=$1 AND id=$2`, tenantID, id, paid, status)
	return err
}

func (r *txRepository) CountApplications(ctx context.Context, tenantID uuid.UUID, id int64) (int, error) {
	var n int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM `+r.kind.applicationTable()+` WHERE tenant_id=$1 AND item_id=$2`, tenantID, id).Scan(&n)
	return n, err
}

func (r *txRepository) MarkVoid(ctx context.Context, tenantID uuid.UUID, id int64, reason string, at time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE `+r.kind.itemTable()+` SET status='VOID', void_reason=$3, voided_at=$4
WHERE tenant_id=$1 AND id=$2 AND status <> 'VOID'`, tenantID, id, reason, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrInvalidStatus
	}
	return nil
}
