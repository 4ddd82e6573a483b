// Package ar exposes the accounts receivable subledger.
package ar

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/subledger"
)

// Service manages receivables.
type Service struct {
	ledger *subledger.Service
}

// NewService wraps a receivable subledger.
func NewService(ledger *subledger.Service) *Service {
	return &Service{ledger: ledger}
}

// CreateReceivable opens a receivable, posting Dr AR / Cr revenue when asked to.
func (s *Service) CreateReceivable(ctx context.Context, in subledger.CreateInput) (subledger.Item, error) {
	return s.ledger.Create(ctx, in)
}

// ApplyPayment records a customer payment against a receivable.
func (s *Service) ApplyPayment(ctx context.Context, in subledger.PaymentInput) (subledger.PaymentResult, error) {
	return s.ledger.ApplyPayment(ctx, in)
}

// ReceiveInvoicePayment pays the receivable opened by an invoice. An invoice without a
// receivable is reported as an integrity gap.
func (s *Service) ReceiveInvoicePayment(ctx context.Context, invoiceID string, in subledger.PaymentInput) (subledger.PaymentResult, error) {
	return s.ledger.PayBySource(ctx, string(journals.SourceInvoice), invoiceID, in)
}

func (s *Service) VoidReceivable(ctx context.Context, in subledger.VoidInput) (subledger.Item, error) {
	return s.ledger.Void(ctx, in)
}

func (s *Service) Get(ctx context.Context, tenantID uuid.UUID, id int64) (subledger.Item, error) {
	return s.ledger.Get(ctx, tenantID, id)
}

func (s *Service) ListOpen(ctx context.Context, tenantID uuid.UUID) ([]subledger.Item, error) {
	return s.ledger.ListOpen(ctx, tenantID)
}

// Aging buckets open receivables as of asOf.
func (s *Service) Aging(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (subledger.AgingReport, error) {
	return s.ledger.Aging(ctx, tenantID, asOf)
}
