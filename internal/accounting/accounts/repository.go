package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Repository persists chart of accounts rows.
type Repository interface {
	Insert(ctx context.Context, account Account) (Account, error)
	InsertDefaults(ctx context.Context, tenantID uuid.UUID, accounts []Account) (int, error)
	GetByCode(ctx context.Context, tenantID uuid.UUID, code string) (Account, error)
	FindByCodes(ctx context.Context, tenantID uuid.UUID, codes []string) ([]Account, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]Account, error)
	SetActive(ctx context.Context, tenantID uuid.UUID, code string, active bool) error
}

type repository struct {
	runner *db.Runner
}

// NewRepository builds the pgx backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{runner: db.NewRunner(pool)}
}

const accountColumns = `id, tenant_id, code, name, type, normal_balance, COALESCE(parent_code, ''), is_active, is_system, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &a.Type, &a.NormalBalance, &a.ParentCode, &a.IsActive, &a.IsSystem, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *repository) Insert(ctx context.Context, account Account) (Account, error) {
	var out Account
	err := r.runner.WithTenantTx(ctx, account.TenantID, func(ctx context.Context, tx pgx.Tx) error {
		if err := registerTenant(ctx, tx, account.TenantID); err != nil {
			return err
		}
		row := tx.QueryRow(ctx, `INSERT INTO chart_of_accounts (tenant_id, code, name, type, normal_balance, parent_code, is_active, is_system)
VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),$7,$8) RETURNING `+accountColumns,
			account.TenantID, account.Code, account.Name, account.Type, account.NormalBalance, account.ParentCode, account.IsActive, account.IsSystem)
		var err error
		out, err = scanAccount(row)
		if internalShared.IsUniqueViolation(err, "uq_chart_of_accounts_tenant_code") {
			return shared.Invalid("code", "account %s already exists", account.Code)
		}
		return err
	})
	return out, err
}

func (r *repository) InsertDefaults(ctx context.Context, tenantID uuid.UUID, accounts []Account) (int, error) {
	inserted := 0
	err := r.runner.WithTenantTx(ctx, tenantID, func(ctx context.Context, tx pgx.Tx) error {
		if err := registerTenant(ctx, tx, tenantID); err != nil {
			return err
		}
		batch := &pgx.Batch{}
		for _, a := range accounts {
			batch.Queue(`INSERT INTO chart_of_accounts (tenant_id, code, name, type, normal_balance, parent_code, is_active, is_system)
VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),TRUE,$7) ON CONFLICT ON CONSTRAINT uq_chart_of_accounts_tenant_code DO NOTHING`,
				tenantID, a.Code, a.Name, a.Type, a.NormalBalance, a.ParentCode, a.IsSystem)
		}
		results := tx.SendBatch(ctx, batch)
		for range accounts {
			tag, err := results.Exec()
			if err != nil {
				_ = results.Close()
				return fmt.Errorf("accounts: seed: %w", err)
			}
			inserted += int(tag.RowsAffected())
		}
		return results.Close()
	})
	return inserted, err
}

func (r *repository) GetByCode(ctx context.Context, tenantID uuid.UUID, code string) (Account, error) {
	var out Account
	err := r.runner.WithTenantRead(ctx, tenantID, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		out, err = scanAccount(tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM chart_of_accounts WHERE tenant_id=$1 AND code=$2`, tenantID, code))
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", shared.ErrAccountNotFound, code)
		}
		return err
	})
	return out, err
}

func (r *repository) FindByCodes(ctx context.Context, tenantID uuid.UUID, codes []string) ([]Account, error) {
	var out []Account
	err := r.runner.WithTenantRead(ctx, tenantID, func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+accountColumns+` FROM chart_of_accounts WHERE tenant_id=$1 AND code = ANY($2)`, tenantID, codes)
		if err != nil {
			return err
		}
		out, err = collectAccounts(rows)
		return err
	})
	return out, err
}

func (r *repository) List(ctx context.Context, tenantID uuid.UUID) ([]Account, error) {
	var out []Account
	err := r.runner.WithTenantRead(ctx, tenantID, func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+accountColumns+` FROM chart_of_accounts WHERE tenant_id=$1 ORDER BY code`, tenantID)
		if err != nil {
			return err
		}
		out, err = collectAccounts(rows)
		return err
	})
	return out, err
}

func (r *repository) SetActive(ctx context.Context, tenantID uuid.UUID, code string, active bool) error {
	return r.runner.WithTenantTx(ctx, tenantID, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE chart_of_accounts SET is_active=$3, updated_at=now() WHERE tenant_id=$1 AND code=$2`, tenantID, code, active)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", shared.ErrAccountNotFound, code)
		}
		return nil
	})
}

func collectAccounts(rows pgx.Rows) ([]Account, error) {
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// registerTenant records the tenant for cross-tenant maintenance jobs.
func registerTenant(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID) error {
	_, err := tx.Exec(ctx, `INSERT INTO ledger_tenants (tenant_id) VALUES ($1) ON CONFLICT DO NOTHING`, tenantID)
	return err
}
