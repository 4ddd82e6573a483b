// Package ap exposes the accounts payable subledger.
package ap

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/subledger"
)

// Service manages payables.
type Service struct {
	ledger *subledger.Service
}

// NewService wraps a payable subledger.
func NewService(ledger *subledger.Service) *Service {
	return &Service{ledger: ledger}
}

// CreatePayable opens a payable, posting Dr inventory or expense / Cr AP when asked to.
func (s *Service) CreatePayable(ctx context.Context, in subledger.CreateInput) (subledger.Item, error) {
	return s.ledger.Create(ctx, in)
}

// ApplyPayment records a supplier payment against a payable.
func (s *Service) ApplyPayment(ctx context.Context, in subledger.PaymentInput) (subledger.PaymentResult, error) {
	return s.ledger.ApplyPayment(ctx, in)
}

// PayBill pays the payable opened by a bill. A bill without a payable is reported as an
// integrity gap and nothing is fabricated.
func (s *Service) PayBill(ctx context.Context, billID string, in subledger.PaymentInput) (subledger.PaymentResult, error) {
	return s.ledger.PayBySource(ctx, string(journals.SourceBill), billID, in)
}

func (s *Service) VoidPayable(ctx context.Context, in subledger.VoidInput) (subledger.Item, error) {
	return s.ledger.Void(ctx, in)
}

func (s *Service) Get(ctx context.Context, tenantID uuid.UUID, id int64) (subledger.Item, error) {
	return s.ledger.Get(ctx, tenantID, id)
}

func (s *Service) ListOpen(ctx context.Context, tenantID uuid.UUID) ([]subledger.Item, error) {
	return s.ledger.ListOpen(ctx, tenantID)
}

// Aging buckets open payables as of asOf.
func (s *Service) Aging(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (subledger.AgingReport, error) {
	return s.ledger.Aging(ctx, tenantID, asOf)
}
