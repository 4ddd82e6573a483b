package mappings

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// ErrMappingNotFound indicates the tenant has no override for the method.
var ErrMappingNotFound = errors.New("accounting: payment method mapping not found")

// Repository stores tenant overrides of the payment method mapping.
type Repository interface {
	Get(ctx context.Context, tenantID uuid.UUID, method string) (MethodAccount, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]MethodAccount, error)
	Upsert(ctx context.Context, tenantID uuid.UUID, mapping MethodAccount) error
}

type repository struct {
	runner *db.Runner
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{runner: db.NewRunner(pool)}
}

// Get resolves the tenant override for method.
func (r *repository) Get(ctx context.Context, tenantID uuid.UUID, method string) (MethodAccount, error) {
	var mapping MethodAccount
	err := r.runner.WithTenantRead(ctx, tenantID, func(ctx context.Context, tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `SELECT method, account_code FROM payment_method_accounts WHERE tenant_id=$1 AND method=$2`, tenantID, method).
			Scan(&mapping.Method, &mapping.AccountCode)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrMappingNotFound
		}
		return err
	})
	return mapping, err
}

func (r *repository) List(ctx context.Context, tenantID uuid.UUID) ([]MethodAccount, error) {
	var out []MethodAccount
	err := r.runner.WithTenantRead(ctx, tenantID, func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT method, account_code FROM payment_method_accounts WHERE tenant_id=$1 ORDER BY method`, tenantID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var m MethodAccount
			if err := rows.Scan(&m.Method, &m.AccountCode); err != nil {
				return err
			}
			out = append(out, m)
		}
		return rows.Err()
	})
	return out, err
}

func (r *repository) Upsert(ctx context.Context, tenantID uuid.UUID, mapping MethodAccount) error {
	return r.runner.WithTenantTx(ctx, tenantID, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO payment_method_accounts (tenant_id, method, account_code) VALUES ($1,$2,$3)
ON CONFLICT (tenant_id, method) DO UPDATE SET account_code = EXCLUDED.account_code`, tenantID, mapping.Method, mapping.AccountCode)
		return err
	})
}
