package kernel

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/subledger"
)

// JournalService is the part of the journal service the kernel drives.
type JournalService interface {
	Create(ctx context.Context, req journals.Request) (journals.Result, error)
	Get(ctx context.Context, tenantID uuid.UUID, id int64) (journals.JournalEntry, error)
	GetByTrace(ctx context.Context, tenantID uuid.UUID, traceID string) (journals.JournalEntry, error)
	List(ctx context.Context, tenantID uuid.UUID, filter journals.ListFilter) ([]journals.JournalEntry, error)
	VoidJournal(ctx context.Context, input journals.VoidInput) (journals.Result, error)
	ReverseJournal(ctx context.Context, input journals.ReverseInput) (journals.Result, error)
}

// PeriodService drives the fiscal period lifecycle.
type PeriodService interface {
	CreatePeriod(ctx context.Context, in periods.CreateInput) (periods.Period, error)
	ClosePeriod(ctx context.Context, in periods.CloseInput) (periods.Period, error)
	LockPeriod(ctx context.Context, in periods.LockInput) (periods.Period, error)
	UnlockPeriod(ctx context.Context, in periods.UnlockInput) (periods.Period, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]periods.Period, error)
}

// Receivables is the AR subledger.
type Receivables interface {
	CreateReceivable(ctx context.Context, in subledger.CreateInput) (subledger.Item, error)
	ApplyPayment(ctx context.Context, in subledger.PaymentInput) (subledger.PaymentResult, error)
	ReceiveInvoicePayment(ctx context.Context, invoiceID string, in subledger.PaymentInput) (subledger.PaymentResult, error)
	VoidReceivable(ctx context.Context, in subledger.VoidInput) (subledger.Item, error)
}

// Payables is the AP subledger.
type Payables interface {
	CreatePayable(ctx context.Context, in subledger.CreateInput) (subledger.Item, error)
	ApplyPayment(ctx context.Context, in subledger.PaymentInput) (subledger.PaymentResult, error)
	PayBill(ctx context.Context, billID string, in subledger.PaymentInput) (subledger.PaymentResult, error)
	VoidPayable(ctx context.Context, in subledger.VoidInput) (subledger.Item, error)
}

// ReportService builds financial reports.
type ReportService interface {
	TrialBalance(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (reports.TrialBalance, error)
	BalanceSheet(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (reports.BalanceSheet, error)
	ProfitAndLoss(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (reports.ProfitAndLoss, error)
	CashFlow(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (reports.CashFlow, error)
	GeneralLedger(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (reports.GeneralLedger, error)
	AccountLedger(ctx context.Context, tenantID uuid.UUID, code string, from, to time.Time) (reports.AccountLedger, error)
	ArAging(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (subledger.AgingReport, error)
	ApAging(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (subledger.AgingReport, error)
	Invalidate(ctx context.Context, tenantID uuid.UUID) error
}

// MethodResolver maps a payment method to its settlement account code.
type MethodResolver interface {
	AccountFor(ctx context.Context, tenantID uuid.UUID, method string) (string, error)
}

// ChartSeeder provisions the default chart of accounts for a tenant.
type ChartSeeder interface {
	Seed(ctx context.Context, tenantID uuid.UUID) (int, error)
}

// UnitOfWork runs fn in one tenant transaction carried by the context it passes on.
type UnitOfWork interface {
	Do(ctx context.Context, tenantID uuid.UUID, fn func(context.Context) error) error
}
