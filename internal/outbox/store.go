package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Message is a stored outbox row.
type Message struct {
	ID          int64
	EventID     uuid.UUID
	TenantID    uuid.UUID
	EventType   EventType
	AggregateID string
	Payload     []byte
	CreatedAt   time.Time
	Attempts    int
}

// Batch is a set of claimed messages whose outcome is recorded before Commit.
type Batch interface {
	Messages() []Message
	MarkPublished(ctx context.Context, id int64, at time.Time) error
	MarkFailed(ctx context.Context, id int64, reason string) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store claims pending outbox rows.
type Store interface {
	Claim(ctx context.Context, limit, maxAttempts int) (Batch, error)
	Purge(ctx context.Context, olderThan time.Time) (int64, error)
}

type pgStore struct {
	pool *pgxpool.Pool
}

// NewStore builds the pgx store. accounting_outbox is not tenant scoped so the relay
// serves every tenant.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

func (s *pgStore) Claim(ctx context.Context, limit, maxAttempts int) (Batch, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `SELECT id, event_id, tenant_id, event_type, aggregate_id, payload, created_at, attempts
FROM accounting_outbox
WHERE published_at IS NULL AND attempts < $2
ORDER BY id
LIMIT $1
FOR UPDATE SKIP LOCKED`, limit, maxAttempts)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}
	defer rows.Close()
	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.EventID, &m.TenantID, &m.EventType, &m.AggregateID, &m.Payload, &m.CreatedAt, &m.Attempts); err != nil {
			_ = tx.Rollback(ctx)
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}
	return &pgBatch{tx: tx, msgs: msgs}, nil
}

func (s *pgStore) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	var n int64
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM accounting_outbox WHERE published_at IS NOT NULL AND published_at < $1`, olderThan)
		n = tag.RowsAffected()
		return err
	})
	return n, err
}

type pgBatch struct {
	tx   pgx.Tx
	msgs []Message
}

func (b *pgBatch) Messages() []Message { return b.msgs }

func (b *pgBatch) MarkPublished(ctx context.Context, id int64, at time.Time) error {
	_, err := b.tx.Exec(ctx, `UPDATE accounting_outbox SET published_at=$2, attempts=attempts+1, last_error=NULL WHERE id=$1`, id, at)
	return err
}

func (b *pgBatch) MarkFailed(ctx context.Context, id int64, reason string) error {
	_, err := b.tx.Exec(ctx, `UPDATE accounting_outbox SET attempts=attempts+1, last_error=$2 WHERE id=$1`, id, reason)
	return err
}

func (b *pgBatch) Commit(ctx context.Context) error   { return b.tx.Commit(ctx) }
func (b *pgBatch) Rollback(ctx context.Context) error { return b.tx.Rollback(ctx) }
