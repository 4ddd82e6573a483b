package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Writer appends events to accounting_outbox inside the caller's transaction.
type Writer struct {
	runner *db.Runner
}

// NewWriter constructs a Writer.
func NewWriter(pool *pgxpool.Pool) *Writer {
	return &Writer{runner: db.NewRunner(pool)}
}

// Append encodes evt and inserts it. When ctx carries a tenant transaction the row commits
// or rolls back with it.
func (w *Writer) Append(ctx context.Context, tenantID uuid.UUID, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("outbox: encode %s: %w", evt.Type(), err)
	}
	return w.runner.WithTenantTx(ctx, tenantID, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO accounting_outbox (event_id, tenant_id, event_type, aggregate_id, payload)
VALUES ($1,$2,$3,$4,$5)`, uuid.New(), tenantID, string(evt.Type()), evt.AggregateID(), payload)
		if err != nil {
			return fmt.Errorf("outbox: append %s: %w", evt.Type(), err)
		}
		return nil
	})
}
