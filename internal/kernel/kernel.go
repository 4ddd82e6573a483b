// Package kernel is the facade business modules call to post to the ledger. Every command
// runs in one tenant transaction; nested kernel calls join the transaction carried by ctx.
package kernel

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	acctshared "github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/subledger"
)

// Deps lists the collaborators of a Kernel.
type Deps struct {
	Journals    JournalService
	Periods     PeriodService
	Receivables Receivables
	Payables    Payables
	Reports     ReportService
	Methods     MethodResolver
	Chart       ChartSeeder
	Work        UnitOfWork
	Metrics     *Metrics
	Logger      *slog.Logger
}

// Kernel records business events and drives the ledger services.
type Kernel struct {
	journals JournalService
	periods  PeriodService
	ar       Receivables
	ap       Payables
	reports  ReportService
	methods  MethodResolver
	chart    ChartSeeder
	work     UnitOfWork
	metrics  *Metrics
	logger   *slog.Logger
}

// New assembles a Kernel. Use NewBuilder to wire one from a pool.
func New(d Deps) *Kernel {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Kernel{
		journals: d.Journals,
		periods:  d.Periods,
		ar:       d.Receivables,
		ap:       d.Payables,
		reports:  d.Reports,
		methods:  d.Methods,
		chart:    d.Chart,
		work:     d.Work,
		metrics:  d.Metrics,
		logger:   logger,
	}
}

// ProvisionTenant seeds the default chart of accounts. It is safe to call repeatedly.
func (k *Kernel) ProvisionTenant(ctx context.Context, tenantID uuid.UUID) (int, error) {
	if tenantID == uuid.Nil {
		return 0, acctshared.Invalid("tenant_id", "is required")
	}
	n, err := k.chart.Seed(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	k.logger.Info("tenant provisioned", slog.String("tenant", tenantID.String()), slog.Int("accounts_created", n))
	return n, nil
}

// RecordSale posts a sale. A credit sale also opens the receivable linked to its invoice journal.
func (k *Kernel) RecordSale(ctx context.Context, tenantID uuid.UUID, evt integration.SaleEvent) (PostingResult, error) {
	return k.record(ctx, tenantID, integration.KindSale, func(ctx context.Context) (journals.Request, followUp, error) {
		if err := shared.ValidateStruct(evt); err != nil {
			return journals.Request{}, nil, err
		}
		if !evt.OnCredit {
			settlement, err := k.methods.AccountFor(ctx, tenantID, evt.Method)
			if err != nil {
				return journals.Request{}, nil, err
			}
			req, err := integration.Sale(tenantID, evt, settlement)
			return req, nil, err
		}
		if strings.TrimSpace(evt.Customer) == "" {
			return journals.Request{}, nil, acctshared.Invalid("customer", "is required for credit sales")
		}
		req, err := integration.Sale(tenantID, evt, "")
		if err != nil {
			return journals.Request{}, nil, err
		}
		return req, func(ctx context.Context, res journals.Result) (*int64, error) {
			item, err := k.ar.CreateReceivable(ctx, subledger.CreateInput{
				TenantID:     tenantID,
				Counterparty: evt.Customer,
				SourceType:   string(journals.SourceInvoice),
				SourceID:     evt.TransactionID,
				Amount:       decimal.NewFromInt(evt.Amount),
				Date:         evt.Date,
				DueDate:      dueDate(evt.DueDate, evt.Date),
				Description:  req.Description,
				JournalID:    &res.Entry.ID,
				Actor:        ActorFrom(ctx),
			})
			if err != nil {
				return nil, err
			}
			return &item.ID, nil
		}, nil
	})
}

// RecordPurchase posts a purchase. A credit purchase also opens the payable linked to its bill journal.
func (k *Kernel) RecordPurchase(ctx context.Context, tenantID uuid.UUID, evt integration.PurchaseEvent) (PostingResult, error) {
	return k.record(ctx, tenantID, integration.KindPurchase, func(ctx context.Context) (journals.Request, followUp, error) {
		if err := shared.ValidateStruct(evt); err != nil {
			return journals.Request{}, nil, err
		}
		if !evt.OnCredit {
			settlement, err := k.methods.AccountFor(ctx, tenantID, evt.Method)
			if err != nil {
				return journals.Request{}, nil, err
			}
			req, err := integration.Purchase(tenantID, evt, settlement)
			return req, nil, err
		}
		if strings.TrimSpace(evt.Supplier) == "" {
			return journals.Request{}, nil, acctshared.Invalid("supplier", "is required for credit purchases")
		}
		req, err := integration.Purchase(tenantID, evt, "")
		if err != nil {
			return journals.Request{}, nil, err
		}
		return req, func(ctx context.Context, res journals.Result) (*int64, error) {
			item, err := k.ap.CreatePayable(ctx, subledger.CreateInput{
				TenantID:     tenantID,
				Counterparty: evt.Supplier,
				SourceType:   string(journals.SourceBill),
				SourceID:     evt.TransactionID,
				Amount:       decimal.NewFromInt(evt.Amount),
				Date:         evt.Date,
				DueDate:      dueDate(evt.DueDate, evt.Date),
				Description:  req.Description,
				JournalID:    &res.Entry.ID,
				Actor:        ActorFrom(ctx),
			})
			if err != nil {
				return nil, err
			}
			return &item.ID, nil
		}, nil
	})
}

// RecordExpense posts an expense paid immediately.
func (k *Kernel) RecordExpense(ctx context.Context, tenantID uuid.UUID, evt integration.ExpenseEvent) (PostingResult, error) {
	return k.record(ctx, tenantID, integration.KindExpense, func(ctx context.Context) (journals.Request, followUp, error) {
		if err := shared.ValidateStruct(evt); err != nil {
			return journals.Request{}, nil, err
		}
		settlement, err := k.methods.AccountFor(ctx, tenantID, evt.Method)
		if err != nil {
			return journals.Request{}, nil, err
		}
		req, err := integration.Expense(tenantID, evt, settlement)
		return req, nil, err
	})
}

// RecordTransfer moves funds between the accounts behind two payment methods.
func (k *Kernel) RecordTransfer(ctx context.Context, tenantID uuid.UUID, evt integration.TransferEvent) (PostingResult, error) {
	return k.record(ctx, tenantID, integration.KindTransfer, func(ctx context.Context) (journals.Request, followUp, error) {
		if err := shared.ValidateStruct(evt); err != nil {
			return journals.Request{}, nil, err
		}
		from, err := k.methods.AccountFor(ctx, tenantID, evt.FromMethod)
		if err != nil {
			return journals.Request{}, nil, err
		}
		to, err := k.methods.AccountFor(ctx, tenantID, evt.ToMethod)
		if err != nil {
			return journals.Request{}, nil, err
		}
		req, err := integration.Transfer(tenantID, evt, from, to)
		return req, nil, err
	})
}

// RecordInventoryAdjustment posts a stock gain or loss.
func (k *Kernel) RecordInventoryAdjustment(ctx context.Context, tenantID uuid.UUID, evt integration.InventoryAdjustmentEvent) (PostingResult, error) {
	return k.record(ctx, tenantID, integration.KindInventoryAdjustment, func(context.Context) (journals.Request, followUp, error) {
		if err := shared.ValidateStruct(evt); err != nil {
			return journals.Request{}, nil, err
		}
		req, err := integration.InventoryAdjustment(tenantID, evt)
		return req, nil, err
	})
}

// PostJournal posts caller-supplied lines as a MANUAL, OPENING or ADJUSTMENT journal. It goes
// through the same period gate as business events, so a CLOSED period rejects it.
func (k *Kernel) PostJournal(ctx context.Context, tenantID uuid.UUID, evt integration.ManualJournalEvent) (PostingResult, error) {
	return k.record(ctx, tenantID, integration.KindManual, func(context.Context) (journals.Request, followUp, error) {
		if err := shared.ValidateStruct(evt); err != nil {
			return journals.Request{}, nil, err
		}
		req, err := integration.ManualJournal(tenantID, evt)
		return req, nil, err
	})
}

// followUp runs after a first posting in the same unit of work and returns the subledger item it opened.
type followUp func(context.Context, journals.Result) (*int64, error)

type buildFunc func(ctx context.Context) (journals.Request, followUp, error)

// record builds the request, posts it and runs the follow-up in one unit of work. A duplicate
// trace skips the follow-up: the first delivery already ran it.
func (k *Kernel) record(ctx context.Context, tenantID uuid.UUID, kind string, build buildFunc) (PostingResult, error) {
	var result PostingResult
	err := k.work.Do(ctx, tenantID, func(ctx context.Context) error {
		req, then, err := build(ctx)
		if err != nil {
			return err
		}
		req.Actor = ActorFrom(ctx)
		res, err := k.journals.Create(ctx, req)
		if err != nil {
			return err
		}
		result = postingResult(res.Entry, res.IsDuplicate)
		if res.IsDuplicate || then == nil {
			return nil
		}
		result.ItemID, err = then(ctx, res)
		return err
	})
	k.metrics.observe(kind, result.IsDuplicate, err)
	if err != nil {
		k.logRejected(tenantID, kind, err)
		return PostingResult{}, err
	}
	if !result.IsDuplicate {
		k.refreshReports(ctx, tenantID)
	}
	return result, nil
}

// RecordPaymentReceived settles an invoice from a payment event. Redelivery returns the journal
// posted by the first delivery.
func (k *Kernel) RecordPaymentReceived(ctx context.Context, tenantID uuid.UUID, evt integration.PaymentEvent) (PaymentResult, error) {
	return k.recordPayment(ctx, tenantID, integration.KindPaymentReceived, evt, k.ar.ReceiveInvoicePayment)
}

// RecordPaymentMade settles a bill from a payment event.
func (k *Kernel) RecordPaymentMade(ctx context.Context, tenantID uuid.UUID, evt integration.PaymentEvent) (PaymentResult, error) {
	return k.recordPayment(ctx, tenantID, integration.KindPaymentMade, evt, k.ap.PayBill)
}

type payBySource func(ctx context.Context, documentID string, in subledger.PaymentInput) (subledger.PaymentResult, error)

func (k *Kernel) recordPayment(ctx context.Context, tenantID uuid.UUID, kind string, evt integration.PaymentEvent, pay payBySource) (PaymentResult, error) {
	if err := shared.ValidateStruct(evt); err != nil {
		k.metrics.observe(kind, false, err)
		return PaymentResult{}, err
	}
	trace := integration.TraceID(kind, evt.PaymentID)
	if res, ok, err := k.existingPayment(ctx, tenantID, trace); err != nil || ok {
		k.metrics.observe(kind, ok, err)
		return res, err
	}
	out, err := pay(ctx, evt.DocumentID, subledger.PaymentInput{
		TenantID:      tenantID,
		PaymentDate:   evt.Date,
		Amount:        decimal.NewFromInt(evt.Amount),
		Method:        evt.Method,
		CreateJournal: true,
		TraceID:       trace,
		Actor:         ActorFrom(ctx),
	})
	if errors.Is(err, acctshared.ErrDuplicateTrace) {
		// Lost a race with a concurrent delivery of the same payment.
		res, ok, lookupErr := k.existingPayment(ctx, tenantID, trace)
		if lookupErr == nil && ok {
			k.metrics.observe(kind, true, nil)
			return res, nil
		}
	}
	k.metrics.observe(kind, false, err)
	if err != nil {
		k.logRejected(tenantID, kind, err)
		return PaymentResult{}, err
	}
	k.refreshReports(ctx, tenantID)
	return paymentResult(out), nil
}

func (k *Kernel) existingPayment(ctx context.Context, tenantID uuid.UUID, trace string) (PaymentResult, bool, error) {
	entry, err := k.journals.GetByTrace(ctx, tenantID, trace)
	if errors.Is(err, acctshared.ErrJournalNotFound) {
		return PaymentResult{}, false, nil
	}
	if err != nil {
		return PaymentResult{}, false, err
	}
	id := entry.ID
	return PaymentResult{Success: true, JournalID: &id, IsDuplicate: true}, true, nil
}

func paymentResult(out subledger.PaymentResult) PaymentResult {
	return PaymentResult{
		Success:       true,
		ItemID:        out.Item.ID,
		ApplicationID: out.Application.ID,
		JournalID:     out.Application.JournalID,
		Status:        string(out.Item.Status),
		Balance:       out.Item.Balance(),
	}
}

// CreateReceivable opens a receivable, posting its invoice journal when in.CreateJournal is set.
func (k *Kernel) CreateReceivable(ctx context.Context, tenantID uuid.UUID, in subledger.CreateInput) (ItemResult, error) {
	in.TenantID, in.Actor = tenantID, ActorFrom(ctx)
	item, err := k.ar.CreateReceivable(ctx, in)
	return k.itemResult(ctx, tenantID, item, err)
}

// CreatePayable opens a payable, posting its bill journal when in.CreateJournal is set.
func (k *Kernel) CreatePayable(ctx context.Context, tenantID uuid.UUID, in subledger.CreateInput) (ItemResult, error) {
	in.TenantID, in.Actor = tenantID, ActorFrom(ctx)
	item, err := k.ap.CreatePayable(ctx, in)
	return k.itemResult(ctx, tenantID, item, err)
}

func (k *Kernel) itemResult(ctx context.Context, tenantID uuid.UUID, item subledger.Item, err error) (ItemResult, error) {
	if err != nil {
		return ItemResult{}, err
	}
	k.refreshReports(ctx, tenantID)
	return ItemResult{Success: true, ItemID: item.ID, JournalID: item.JournalID}, nil
}

// ApplyArPayment applies a customer payment to receivable itemID.
func (k *Kernel) ApplyArPayment(ctx context.Context, tenantID uuid.UUID, itemID int64, in subledger.PaymentInput) (PaymentResult, error) {
	in.TenantID, in.ItemID, in.Actor = tenantID, itemID, ActorFrom(ctx)
	out, err := k.ar.ApplyPayment(ctx, in)
	k.metrics.observe("ar-payment", false, err)
	if err != nil {
		return PaymentResult{}, err
	}
	k.refreshReports(ctx, tenantID)
	return paymentResult(out), nil
}

// ApplyApPayment applies a supplier payment to payable itemID.
func (k *Kernel) ApplyApPayment(ctx context.Context, tenantID uuid.UUID, itemID int64, in subledger.PaymentInput) (PaymentResult, error) {
	in.TenantID, in.ItemID, in.Actor = tenantID, itemID, ActorFrom(ctx)
	out, err := k.ap.ApplyPayment(ctx, in)
	k.metrics.observe("ap-payment", false, err)
	if err != nil {
		return PaymentResult{}, err
	}
	k.refreshReports(ctx, tenantID)
	return paymentResult(out), nil
}

// VoidReceivable voids a receivable without payments.
func (k *Kernel) VoidReceivable(ctx context.Context, tenantID uuid.UUID, itemID int64, reason string) (VoidResult, error) {
	if _, err := k.ar.VoidReceivable(ctx, subledger.VoidInput{TenantID: tenantID, ItemID: itemID, Reason: reason, Actor: ActorFrom(ctx)}); err != nil {
		return VoidResult{}, err
	}
	k.refreshReports(ctx, tenantID)
	return VoidResult{Success: true}, nil
}

// VoidPayable voids a payable without payments.
func (k *Kernel) VoidPayable(ctx context.Context, tenantID uuid.UUID, itemID int64, reason string) (VoidResult, error) {
	if _, err := k.ap.VoidPayable(ctx, subledger.VoidInput{TenantID: tenantID, ItemID: itemID, Reason: reason, Actor: ActorFrom(ctx)}); err != nil {
		return VoidResult{}, err
	}
	k.refreshReports(ctx, tenantID)
	return VoidResult{Success: true}, nil
}

// ReverseJournal posts the reversal of journalID dated reversalDate.
func (k *Kernel) ReverseJournal(ctx context.Context, tenantID uuid.UUID, journalID int64, reversalDate time.Time, reason string) (PostingResult, error) {
	res, err := k.journals.ReverseJournal(ctx, journals.ReverseInput{
		TenantID:     tenantID,
		EntryID:      journalID,
		Actor:        ActorFrom(ctx),
		Reason:       reason,
		ReversalDate: reversalDate,
	})
	k.metrics.observe("reversal", false, err)
	if err != nil {
		return PostingResult{}, err
	}
	k.refreshReports(ctx, tenantID)
	return postingResult(res.Entry, false), nil
}

// VoidJournal voids journalID and returns its counter-entry.
func (k *Kernel) VoidJournal(ctx context.Context, tenantID uuid.UUID, journalID int64, reason string) (PostingResult, error) {
	res, err := k.journals.VoidJournal(ctx, journals.VoidInput{
		TenantID: tenantID,
		EntryID:  journalID,
		Actor:    ActorFrom(ctx),
		Reason:   reason,
	})
	k.metrics.observe("void", false, err)
	if err != nil {
		return PostingResult{}, err
	}
	k.refreshReports(ctx, tenantID)
	return postingResult(res.Entry, false), nil
}

// GetJournal returns a journal with its lines.
func (k *Kernel) GetJournal(ctx context.Context, tenantID uuid.UUID, journalID int64) (journals.JournalEntry, error) {
	return k.journals.Get(ctx, tenantID, journalID)
}

// JournalPage is one page of a journal listing.
type JournalPage struct {
	Journals   []journals.JournalEntry `json:"journals"`
	Pagination shared.Pagination       `json:"pagination"`
}

// ListJournals lists journal headers newest first, one page at a time.
func (k *Kernel) ListJournals(ctx context.Context, tenantID uuid.UUID, filter journals.ListFilter, page shared.Pagination) (JournalPage, error) {
	filter.Limit = page.Limit()
	filter.Offset = page.Offset()
	rows, err := k.journals.List(ctx, tenantID, filter)
	if err != nil {
		return JournalPage{}, err
	}
	rows = shared.Paginate(&page, rows)
	if rows == nil {
		rows = []journals.JournalEntry{}
	}
	return JournalPage{Journals: rows, Pagination: page}, nil
}

// CreatePeriod opens a fiscal period. Failures are reported in the result and returned as err.
func (k *Kernel) CreatePeriod(ctx context.Context, tenantID uuid.UUID, name string, start, end time.Time) (PeriodResult, error) {
	p, err := k.periods.CreatePeriod(ctx, periods.CreateInput{
		TenantID:  tenantID,
		Name:      name,
		StartDate: start,
		EndDate:   end,
		Actor:     ActorFrom(ctx),
	})
	if err != nil {
		return periodFailed(0, err), err
	}
	k.refreshReports(ctx, tenantID)
	return periodOK(p, "period created"), nil
}

// ClosePeriod closes periodID, posting closing entries when createClosingEntries is set.
func (k *Kernel) ClosePeriod(ctx context.Context, tenantID uuid.UUID, periodID int64, createClosingEntries bool) (PeriodResult, error) {
	p, err := k.periods.ClosePeriod(ctx, periods.CloseInput{
		TenantID:             tenantID,
		PeriodID:             periodID,
		Actor:                ActorFrom(ctx),
		CreateClosingEntries: createClosingEntries,
	})
	if err != nil {
		return periodFailed(periodID, err), err
	}
	k.refreshReports(ctx, tenantID)
	return periodOK(p, "period closed"), nil
}

func (k *Kernel) LockPeriod(ctx context.Context, tenantID uuid.UUID, periodID int64, reason string) (PeriodResult, error) {
	p, err := k.periods.LockPeriod(ctx, periods.LockInput{
		TenantID: tenantID,
		PeriodID: periodID,
		Actor:    ActorFrom(ctx),
		Reason:   reason,
	})
	if err != nil {
		return periodFailed(periodID, err), err
	}
	k.refreshReports(ctx, tenantID)
	return periodOK(p, "period locked"), nil
}

// UnlockPeriod moves a LOCKED period back to CLOSED. Only administrators may unlock.
func (k *Kernel) UnlockPeriod(ctx context.Context, tenantID uuid.UUID, periodID int64, reason string, isAdmin bool) (PeriodResult, error) {
	p, err := k.periods.UnlockPeriod(ctx, periods.UnlockInput{
		TenantID: tenantID,
		PeriodID: periodID,
		Actor:    ActorFrom(ctx),
		Reason:   reason,
		IsAdmin:  isAdmin,
	})
	if err != nil {
		return periodFailed(periodID, err), err
	}
	k.refreshReports(ctx, tenantID)
	return periodOK(p, "period unlocked"), nil
}

func (k *Kernel) ListPeriods(ctx context.Context, tenantID uuid.UUID) ([]periods.Period, error) {
	return k.periods.List(ctx, tenantID)
}

func (k *Kernel) GetTrialBalance(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (reports.TrialBalance, error) {
	return k.reports.TrialBalance(ctx, tenantID, asOf)
}

func (k *Kernel) GetBalanceSheet(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (reports.BalanceSheet, error) {
	return k.reports.BalanceSheet(ctx, tenantID, asOf)
}

func (k *Kernel) GetProfitLoss(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (reports.ProfitAndLoss, error) {
	return k.reports.ProfitAndLoss(ctx, tenantID, from, to)
}

func (k *Kernel) GetCashFlow(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (reports.CashFlow, error) {
	return k.reports.CashFlow(ctx, tenantID, from, to)
}

func (k *Kernel) GetGeneralLedger(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (reports.GeneralLedger, error) {
	return k.reports.GeneralLedger(ctx, tenantID, from, to)
}

func (k *Kernel) GetAccountLedger(ctx context.Context, tenantID uuid.UUID, code string, from, to time.Time) (reports.AccountLedger, error) {
	return k.reports.AccountLedger(ctx, tenantID, code, from, to)
}

func (k *Kernel) GetArAging(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (subledger.AgingReport, error) {
	return k.reports.ArAging(ctx, tenantID, asOf)
}

func (k *Kernel) GetApAging(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (subledger.AgingReport, error) {
	return k.reports.ApAging(ctx, tenantID, asOf)
}

// refreshReports drops the tenant's cached reports once the command's writes are committed: at
// once, or when the caller's transaction carried by ctx commits. The outbox delivery job bumps
// the cache again for events written by other processes.
func (k *Kernel) refreshReports(ctx context.Context, tenantID uuid.UUID) {
	detached := context.WithoutCancel(ctx)
	db.AfterCommit(ctx, func() {
		if err := k.reports.Invalidate(detached, tenantID); err != nil {
			k.logger.Warn("report invalidation failed",
				slog.String("tenant", tenantID.String()),
				slog.Any("error", err))
		}
	})
}

// InvalidateReports drops cached reports of tenantID.
func (k *Kernel) InvalidateReports(ctx context.Context, tenantID uuid.UUID) error {
	return k.reports.Invalidate(ctx, tenantID)
}

// Reports exposes the report service to background jobs.
func (k *Kernel) Reports() ReportService {
	return k.reports
}

func (k *Kernel) logRejected(tenantID uuid.UUID, kind string, err error) {
	level := slog.LevelWarn
	if Reason(err) == "internal" {
		level = slog.LevelError
	}
	k.logger.Log(context.Background(), level, "kernel command rejected",
		slog.String("tenant", tenantID.String()),
		slog.String("kind", kind),
		slog.String("reason", Reason(err)),
		slog.Any("error", err))
}

// dueDate defaults a missing due date to the document date.
func dueDate(due, date time.Time) time.Time {
	if due.IsZero() {
		return date
	}
	return due
}
