package journals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Repository encapsulates DB operations for journals.
type Repository interface {
	Get(ctx context.Context, tenantID uuid.UUID, id int64) (JournalEntry, error)
	List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]JournalEntry, error)
	WithTx(ctx context.Context, tenantID uuid.UUID, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	FindByTrace(ctx context.Context, tenantID uuid.UUID, traceID string) (JournalEntry, error)
	NextNumber(ctx context.Context, tenantID uuid.UUID, prefix, periodKey string) (int64, error)
	// InsertJournalEntry returns shared.ErrDuplicateTrace when the trace id is already taken.
	InsertJournalEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error)
	InsertJournalLines(ctx context.Context, entry JournalEntry, lines []JournalLine) error
	GetForUpdate(ctx context.Context, tenantID uuid.UUID, id int64) (JournalEntry, error)
	MarkVoid(ctx context.Context, tenantID uuid.UUID, id int64, reason string, at time.Time) error
	MarkReversed(ctx context.Context, tenantID uuid.UUID, id, reversalID int64, reason string, at time.Time) error
	// SubledgerLinked reports whether a receivable, payable or payment application references the journal.
	SubledgerLinked(ctx context.Context, tenantID uuid.UUID, journalID int64) (bool, error)
}

type repository struct {
	runner *db.Runner
}

// NewRepository builds the pgx backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{runner: db.NewRunner(pool)}
}

const entryColumns = `id, tenant_id, journal_number, journal_date, description, source_type, source_id, trace_id, status,
reversal_of_id, reversed_by_id, COALESCE(reversal_reason, ''), reversed_at, voided_at, COALESCE(void_reason, ''),
period_id, snapshot, created_by, created_at`

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var e JournalEntry
	err := row.Scan(&e.ID, &e.TenantID, &e.Number, &e.Date, &e.Description, &e.SourceType, &e.SourceID, &e.TraceID, &e.Status,
		&e.ReversalOfID, &e.ReversedByID, &e.ReversalReason, &e.ReversedAt, &e.VoidedAt, &e.VoidReason,
		&e.PeriodID, &e.Snapshot, &e.CreatedBy, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return JournalEntry{}, shared.ErrJournalNotFound
	}
	return e, err
}

func (r *repository) Get(ctx context.Context, tenantID uuid.UUID, id int64) (JournalEntry, error) {
	var entry JournalEntry
	err := r.runner.WithTenantRead(ctx, tenantID, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		entry, err = scanEntry(tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE tenant_id=$1 AND id=$2`, tenantID, id))
		if err != nil {
			return err
		}
		entry.Lines, err = loadLines(ctx, tx, entry.ID)
		return err
	})
	return entry, err
}

func (r *repository) List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]JournalEntry, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var entries []JournalEntry
	err := r.runner.WithTenantRead(ctx, tenantID, func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+entryColumns+` FROM journal_entries
WHERE tenant_id=$1
  AND ($2::date IS NULL OR journal_date >= $2)
  AND ($3::date IS NULL OR journal_date <= $3)
  AND ($4::text = '' OR source_type = $4)
  AND ($5::text = '' OR status = $5)
ORDER BY journal_date DESC, id DESC
LIMIT $6 OFFSET $7`, tenantID, filter.From, filter.To, string(filter.SourceType), string(filter.Status), limit, filter.Offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			e, err := scanEntry(rows)
			if err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return rows.Err()
	})
	return entries, err
}

func (r *repository) WithTx(ctx context.Context, tenantID uuid.UUID, fn func(context.Context, TxRepository) error) error {
	return r.runner.WithTenantTx(ctx, tenantID, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) FindByTrace(ctx context.Context, tenantID uuid.UUID, traceID string) (JournalEntry, error) {
	entry, err := scanEntry(r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE tenant_id=$1 AND trace_id=$2`, tenantID, traceID))
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines, err = loadLines(ctx, r.tx, entry.ID)
	return entry, err
}

func (r *txRepository) NextNumber(ctx context.Context, tenantID uuid.UUID, prefix, periodKey string) (int64, error) {
	var next int64
	err := r.tx.QueryRow(ctx, `INSERT INTO journal_sequences (tenant_id, prefix, period_key, last_value) VALUES ($1,$2,$3,1)
ON CONFLICT (tenant_id, prefix, period_key) DO UPDATE SET last_value = journal_sequences.last_value + 1
RETURNING last_value`, tenantID, prefix, periodKey).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("journals: next number: %w", err)
	}
	return next, nil
}

func (r *txRepository) InsertJournalEntry(ctx context.Context, e JournalEntry) (JournalEntry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries
(tenant_id, journal_number, journal_date, description, source_type, source_id, trace_id, status, reversal_of_id, period_id, snapshot, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT ON CONSTRAINT uq_journal_entries_tenant_trace DO NOTHING
RETURNING id, created_at`, e.TenantID, e.Number, e.Date, e.Description, e.SourceType, e.SourceID, e.TraceID, e.Status,
		e.ReversalOfID, e.PeriodID, nullJSON(e.Snapshot), e.CreatedBy)
	if err := row.Scan(&e.ID, &e.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.ErrDuplicateTrace
		}
		return JournalEntry{}, err
	}
	return e, nil
}

func (r *txRepository) InsertJournalLines(ctx context.Context, entry JournalEntry, lines []JournalLine) error {
	batch := &pgx.Batch{}
	for _, l := range lines {
		batch.Queue(`INSERT INTO journal_lines (journal_id, tenant_id, account_id, line_number, debit, credit, memo)
VALUES ($1,$2,$3,$4,$5,$6,$7)`, entry.ID, entry.TenantID, l.AccountID, l.LineNumber, l.Debit, l.Credit, l.Memo)
	}
	results := r.tx.SendBatch(ctx, batch)
	for range lines {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("journals: insert lines: %w", err)
		}
	}
	return results.Close()
}

func (r *txRepository) GetForUpdate(ctx context.Context, tenantID uuid.UUID, id int64) (JournalEntry, error) {
	entry, err := scanEntry(r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, id))
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines, err = loadLines(ctx, r.tx, entry.ID)
	return entry, err
}

func (r *txRepository) MarkVoid(ctx context.Context, tenantID uuid.UUID, id int64, reason string, at time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status='VOID', void_reason=$3, voided_at=$4
WHERE tenant_id=$1 AND id=$2 AND status='POSTED'`, tenantID, id, reason, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrInvalidStatus
	}
	return nil
}

func (r *txRepository) MarkReversed(ctx context.Context, tenantID uuid.UUID, id, reversalID int64, reason string, at time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE journal_entries SET reversed_by_id=$3, reversal_reason=$4, reversed_at=$5
WHERE tenant_id=$1 AND id=$2 AND reversed_by_id IS NULL`, tenantID, id, reversalID, reason, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrAlreadyReversed
	}
	return nil
}

func (r *txRepository) SubledgerLinked(ctx context.Context, tenantID uuid.UUID, journalID int64) (bool, error) {
	var linked bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (
    SELECT 1 FROM accounts_receivable WHERE tenant_id=$1 AND journal_id=$2
    UNION ALL SELECT 1 FROM accounts_payable WHERE tenant_id=$1 AND journal_id=$2
    UNION ALL SELECT 1 FROM ar_payment_applications WHERE tenant_id=$1 AND journal_id=$2
    UNION ALL SELECT 1 FROM ap_payment_applications WHERE tenant_id=$1 AND journal_id=$2)`, tenantID, journalID).Scan(&linked)
	if err != nil {
		return false, fmt.Errorf("journals: subledger link: %w", err)
	}
	return linked, nil
}

func loadLines(ctx context.Context, tx pgx.Tx, journalID int64) ([]JournalLine, error) {
	rows, err := tx.Query(ctx, `SELECT l.id, l.journal_id, l.account_id, a.code, l.line_number, l.debit, l.credit, l.memo
FROM journal_lines l JOIN chart_of_accounts a ON a.id = l.account_id
WHERE l.journal_id=$1 ORDER BY l.line_number`, journalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []JournalLine
	for rows.Next() {
		var l JournalLine
		if err := rows.Scan(&l.ID, &l.JournalID, &l.AccountID, &l.AccountCode, &l.LineNumber, &l.Debit, &l.Credit, &l.Memo); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func nullJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
