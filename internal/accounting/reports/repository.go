package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// BalanceQuery selects the journals aggregated into account balances.
// A zero From puts everything up to To into the window.
type BalanceQuery struct {
	From               time.Time
	To                 time.Time
	ExcludeSourceTypes []string
}

// LineQuery selects ledger lines inside a window. An empty AccountCode selects every account.
type LineQuery struct {
	AccountCode string
	From        time.Time
	To          time.Time
}

// BalanceSource aggregates journal lines into per-account balances.
type BalanceSource interface {
	Balances(ctx context.Context, tenantID uuid.UUID, q BalanceQuery) ([]AccountBalance, error)
}

// Repository is the read model used by the report service.
type Repository interface {
	BalanceSource
	Lines(ctx context.Context, tenantID uuid.UUID, q LineQuery) ([]LedgerLine, error)
}

type repository struct {
	runner *db.Runner
}

// NewRepository builds the pgx backed read model.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{runner: db.NewRunner(pool)}
}

// effectiveStatuses lists journal statuses whose lines count towards balances.
const effectiveStatuses = `('POSTED','VOID')`

const balancesSQL = `SELECT a.id, a.code, a.name, a.type, a.normal_balance, a.is_active,
COALESCE(SUM(l.debit) FILTER (WHERE e.journal_date < $2), 0),
COALESCE(SUM(l.credit) FILTER (WHERE e.journal_date < $2), 0),
COALESCE(SUM(l.debit) FILTER (WHERE e.journal_date >= $2), 0),
COALESCE(SUM(l.credit) FILTER (WHERE e.journal_date >= $2), 0)
FROM chart_of_accounts a
LEFT JOIN journal_lines l ON l.account_id = a.id
LEFT JOIN journal_entries e ON e.id = l.journal_id
	AND e.status IN ` + effectiveStatuses + `
	AND e.journal_date <= $3
	AND NOT (e.source_type = ANY($4))
WHERE a.tenant_id = $1
GROUP BY a.id, a.code, a.name, a.type, a.normal_balance, a.is_active
ORDER BY a.code`

func (r *repository) Balances(ctx context.Context, tenantID uuid.UUID, q BalanceQuery) ([]AccountBalance, error) {
	exclude := q.ExcludeSourceTypes
	if exclude == nil {
		exclude = []string{}
	}
	var out []AccountBalance
	err := r.runner.WithTenantRead(ctx, tenantID, func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, balancesSQL, tenantID, dateOnly(q.From), dateOnly(q.To), exclude)
		if err != nil {
			return fmt.Errorf("reports: balances: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var b AccountBalance
			if err := rows.Scan(&b.AccountID, &b.Code, &b.Name, &b.Type, &b.NormalBalance, &b.IsActive,
				&b.OpeningDebit, &b.OpeningCredit, &b.Debit, &b.Credit); err != nil {
				return err
			}
			out = append(out, b)
		}
		return rows.Err()
	})
	return out, err
}

func (r *repository) Lines(ctx context.Context, tenantID uuid.UUID, q LineQuery) ([]LedgerLine, error) {
	var out []LedgerLine
	err := r.runner.WithTenantRead(ctx, tenantID, func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT e.id, e.journal_number, e.journal_date, e.source_type, e.description,
a.code, l.line_number, l.debit, l.credit, l.memo
FROM journal_lines l
JOIN journal_entries e ON e.id = l.journal_id
JOIN chart_of_accounts a ON a.id = l.account_id
WHERE e.tenant_id = $1 AND e.status IN `+effectiveStatuses+`
	AND e.journal_date BETWEEN $2 AND $3
	AND ($4::text = '' OR a.code = $4::text)
ORDER BY e.journal_date, e.id, l.line_number`, tenantID, dateOnly(q.From), dateOnly(q.To), q.AccountCode)
		if err != nil {
			return fmt.Errorf("reports: ledger lines: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var l LedgerLine
			if err := rows.Scan(&l.JournalID, &l.JournalNumber, &l.Date, &l.SourceType, &l.Description,
				&l.AccountCode, &l.LineNumber, &l.Debit, &l.Credit, &l.Memo); err != nil {
				return err
			}
			out = append(out, l)
		}
		return rows.Err()
	})
	return out, err
}

func dateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
