// Package kernelhttp exposes the ledger kernel as a JSON API.
package kernelhttp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	"github.com/odyssey-erp/odyssey-ledger/internal/kernel"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/subledger"
)

const dateLayout = "2006-01-02"

// Ledger is the kernel surface served over HTTP.
type Ledger interface {
	RecordSale(ctx context.Context, tenantID uuid.UUID, evt integration.SaleEvent) (kernel.PostingResult, error)
	RecordPurchase(ctx context.Context, tenantID uuid.UUID, evt integration.PurchaseEvent) (kernel.PostingResult, error)
	RecordExpense(ctx context.Context, tenantID uuid.UUID, evt integration.ExpenseEvent) (kernel.PostingResult, error)
	RecordTransfer(ctx context.Context, tenantID uuid.UUID, evt integration.TransferEvent) (kernel.PostingResult, error)
	RecordInventoryAdjustment(ctx context.Context, tenantID uuid.UUID, evt integration.InventoryAdjustmentEvent) (kernel.PostingResult, error)
	PostJournal(ctx context.Context, tenantID uuid.UUID, evt integration.ManualJournalEvent) (kernel.PostingResult, error)
	RecordPaymentReceived(ctx context.Context, tenantID uuid.UUID, evt integration.PaymentEvent) (kernel.PaymentResult, error)
	RecordPaymentMade(ctx context.Context, tenantID uuid.UUID, evt integration.PaymentEvent) (kernel.PaymentResult, error)

	CreateReceivable(ctx context.Context, tenantID uuid.UUID, in subledger.CreateInput) (kernel.ItemResult, error)
	CreatePayable(ctx context.Context, tenantID uuid.UUID, in subledger.CreateInput) (kernel.ItemResult, error)
	ApplyArPayment(ctx context.Context, tenantID uuid.UUID, itemID int64, in subledger.PaymentInput) (kernel.PaymentResult, error)
	ApplyApPayment(ctx context.Context, tenantID uuid.UUID, itemID int64, in subledger.PaymentInput) (kernel.PaymentResult, error)
	VoidReceivable(ctx context.Context, tenantID uuid.UUID, itemID int64, reason string) (kernel.VoidResult, error)
	VoidPayable(ctx context.Context, tenantID uuid.UUID, itemID int64, reason string) (kernel.VoidResult, error)

	GetJournal(ctx context.Context, tenantID uuid.UUID, journalID int64) (journals.JournalEntry, error)
	ListJournals(ctx context.Context, tenantID uuid.UUID, filter journals.ListFilter, page shared.Pagination) (kernel.JournalPage, error)
	ReverseJournal(ctx context.Context, tenantID uuid.UUID, journalID int64, reversalDate time.Time, reason string) (kernel.PostingResult, error)
	VoidJournal(ctx context.Context, tenantID uuid.UUID, journalID int64, reason string) (kernel.PostingResult, error)

	CreatePeriod(ctx context.Context, tenantID uuid.UUID, name string, start, end time.Time) (kernel.PeriodResult, error)
	ClosePeriod(ctx context.Context, tenantID uuid.UUID, periodID int64, createClosingEntries bool) (kernel.PeriodResult, error)
	LockPeriod(ctx context.Context, tenantID uuid.UUID, periodID int64, reason string) (kernel.PeriodResult, error)
	UnlockPeriod(ctx context.Context, tenantID uuid.UUID, periodID int64, reason string, isAdmin bool) (kernel.PeriodResult, error)
	ListPeriods(ctx context.Context, tenantID uuid.UUID) ([]periods.Period, error)

	GetTrialBalance(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (reports.TrialBalance, error)
	GetBalanceSheet(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (reports.BalanceSheet, error)
	GetProfitLoss(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (reports.ProfitAndLoss, error)
	GetCashFlow(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (reports.CashFlow, error)
	GetGeneralLedger(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (reports.GeneralLedger, error)
	GetAccountLedger(ctx context.Context, tenantID uuid.UUID, code string, from, to time.Time) (reports.AccountLedger, error)
	GetArAging(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (subledger.AgingReport, error)
	GetApAging(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (subledger.AgingReport, error)
}

// Handler serves the /v1 ledger API.
type Handler struct {
	logger    *slog.Logger
	ledger    Ledger
	rateLimit int
}

// NewHandler constructs the handler. rateLimit is requests per minute per tenant; zero disables it.
func NewHandler(logger *slog.Logger, ledger Ledger, rateLimit int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, ledger: ledger, rateLimit: rateLimit}
}

func decode(r *http.Request, target any) error {
	if err := httpx.DecodeJSON(r, target); err != nil {
		return badJSON(err)
	}
	return shared.ValidateStruct(target)
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", httpx.ErrBadRequest, raw)
	}
	return id, nil
}

func parseDate(field, raw string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", httpx.ErrBadRequest, field)
	}
	return t, nil
}

func queryDate(r *http.Request, field string) (time.Time, error) {
	raw := r.URL.Query().Get(field)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: %s is required", httpx.ErrBadRequest, field)
	}
	return parseDate(field, raw)
}

func optionalDate(raw, field string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := parseDate(field, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func queryPage(r *http.Request) (shared.Pagination, error) {
	q := r.URL.Query()
	page, err := queryInt(q.Get("page"), "page")
	if err != nil {
		return shared.Pagination{}, err
	}
	perPage, err := queryInt(q.Get("per_page"), "per_page")
	if err != nil {
		return shared.Pagination{}, err
	}
	return shared.NewPagination(page, perPage), nil
}

func queryInt(raw, field string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", httpx.ErrBadRequest, field)
	}
	return n, nil
}

func queryRange(r *http.Request) (time.Time, time.Time, error) {
	from, err := queryDate(r, "from")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := queryDate(r, "to")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

func postingStatus(duplicate bool) int {
	if duplicate {
		return http.StatusOK
	}
	return http.StatusCreated
}

func badJSON(err error) error {
	return fmt.Errorf("%w: %v", httpx.ErrBadRequest, err)
}
