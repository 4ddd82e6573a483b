package integration

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Trace id prefixes, one per event kind. A redelivered event maps to the same trace id.
const (
	KindSale                = "sale"
	KindInvoice             = "invoice"
	KindPurchase            = "purchase"
	KindBill                = "bill"
	KindExpense             = "expense"
	KindTransfer            = "transfer"
	KindInventoryAdjustment = "inventory-adjustment"
	KindPaymentReceived     = "payment-received"
	KindPaymentMade         = "payment-made"
	KindManual              = "manual"
)

// TraceID composes the idempotency key of a business event.
func TraceID(kind, key string) string {
	return kind + ":" + key
}

func requireKey(field, key string) error {
	if strings.TrimSpace(key) == "" {
		return shared.Invalid(field, "is required")
	}
	return nil
}

func requireAmount(amount int64) error {
	if amount <= 0 {
		return shared.Invalid("amount", "must be greater than zero")
	}
	return nil
}

func debit(code string, amount int64, memo string) journals.LineRequest {
	return journals.LineRequest{AccountCode: code, Debit: money(amount), Memo: memo}
}

func credit(code string, amount int64, memo string) journals.LineRequest {
	return journals.LineRequest{AccountCode: code, Credit: money(amount), Memo: memo}
}

func describe(description, format string, args ...any) string {
	if description != "" {
		return description
	}
	return fmt.Sprintf(format, args...)
}

// Sale maps a sale: Dr settlement (or AR on credit), Cr Sales Revenue, plus Dr COGS / Cr Inventory
// when the cost is known. settlement is ignored for credit sales.
func Sale(tenantID uuid.UUID, evt SaleEvent, settlement string) (journals.Request, error) {
	if err := requireKey("transaction_id", evt.TransactionID); err != nil {
		return journals.Request{}, err
	}
	if err := requireAmount(evt.Amount); err != nil {
		return journals.Request{}, err
	}
	if evt.Cost < 0 {
		return journals.Request{}, shared.Invalid("cost", "must not be negative")
	}
	req := journals.Request{
		TenantID: tenantID,
		Date:     evt.Date,
		SourceID: evt.TransactionID,
	}
	if evt.OnCredit {
		req.SourceType = journals.SourceInvoice
		req.TraceID = TraceID(KindInvoice, evt.TransactionID)
		req.Description = describe(evt.Description, "Credit sale %s %s", evt.TransactionID, evt.Customer)
		req.Lines = append(req.Lines, debit(accounts.CodeAccountsReceivable, evt.Amount, evt.Customer))
	} else {
		if settlement == "" {
			return journals.Request{}, shared.Invalid("method", "is required for cash sales")
		}
		req.SourceType = journals.SourceSale
		req.TraceID = TraceID(KindSale, evt.TransactionID)
		req.Description = describe(evt.Description, "Sale %s", evt.TransactionID)
		req.Lines = append(req.Lines, debit(settlement, evt.Amount, evt.Method))
	}
	req.Lines = append(req.Lines, credit(accounts.CodeSalesRevenue, evt.Amount, ""))
	if evt.Cost > 0 {
		req.Lines = append(req.Lines,
			debit(accounts.CodeCostOfGoodsSold, evt.Cost, ""),
			credit(accounts.CodeInventory, evt.Cost, ""),
		)
	}
	return req, nil
}

// Purchase maps a purchase: Dr inventory or the given account, Cr settlement (or AP on credit).
func Purchase(tenantID uuid.UUID, evt PurchaseEvent, settlement string) (journals.Request, error) {
	if err := requireKey("transaction_id", evt.TransactionID); err != nil {
		return journals.Request{}, err
	}
	if err := requireAmount(evt.Amount); err != nil {
		return journals.Request{}, err
	}
	target := evt.DebitAccount
	if target == "" {
		target = accounts.CodeInventory
	}
	req := journals.Request{
		TenantID: tenantID,
		Date:     evt.Date,
		SourceID: evt.TransactionID,
		Lines:    []journals.LineRequest{debit(target, evt.Amount, evt.Description)},
	}
	if evt.OnCredit {
		req.SourceType = journals.SourceBill
		req.TraceID = TraceID(KindBill, evt.TransactionID)
		req.Description = describe(evt.Description, "Bill %s %s", evt.TransactionID, evt.Supplier)
		req.Lines = append(req.Lines, credit(accounts.CodeAccountsPayable, evt.Amount, evt.Supplier))
		return req, nil
	}
	if settlement == "" {
		return journals.Request{}, shared.Invalid("method", "is required for cash purchases")
	}
	req.SourceType = journals.SourcePurchase
	req.TraceID = TraceID(KindPurchase, evt.TransactionID)
	req.Description = describe(evt.Description, "Purchase %s", evt.TransactionID)
	req.Lines = append(req.Lines, credit(settlement, evt.Amount, evt.Method))
	return req, nil
}

// Expense maps a paid expense: Dr expense account, Cr settlement.
func Expense(tenantID uuid.UUID, evt ExpenseEvent, settlement string) (journals.Request, error) {
	if err := requireKey("expense_id", evt.ExpenseID); err != nil {
		return journals.Request{}, err
	}
	if err := requireAmount(evt.Amount); err != nil {
		return journals.Request{}, err
	}
	if settlement == "" {
		return journals.Request{}, shared.Invalid("method", "is required")
	}
	target := evt.ExpenseAccount
	if target == "" {
		target = accounts.CodeGeneralExpenses
	}
	return journals.Request{
		TenantID:    tenantID,
		Date:        evt.Date,
		Description: describe(evt.Description, "Expense %s", evt.ExpenseID),
		SourceType:  journals.SourceExpense,
		SourceID:    evt.ExpenseID,
		TraceID:     TraceID(KindExpense, evt.ExpenseID),
		Lines: []journals.LineRequest{
			debit(target, evt.Amount, evt.Description),
			credit(settlement, evt.Amount, evt.Method),
		},
	}, nil
}

// Transfer maps a transfer between two settlement accounts: Dr destination, Cr source.
func Transfer(tenantID uuid.UUID, evt TransferEvent, from, to string) (journals.Request, error) {
	if err := requireKey("transfer_id", evt.TransferID); err != nil {
		return journals.Request{}, err
	}
	if err := requireAmount(evt.Amount); err != nil {
		return journals.Request{}, err
	}
	if from == "" || to == "" {
		return journals.Request{}, shared.Invalid("method", "source and destination are required")
	}
	if from == to {
		return journals.Request{}, shared.Invalid("to_method", "settles to the same account %s as the source", to)
	}
	return journals.Request{
		TenantID:    tenantID,
		Date:        evt.Date,
		Description: describe(evt.Description, "Transfer %s", evt.TransferID),
		SourceType:  journals.SourceTransfer,
		SourceID:    evt.TransferID,
		TraceID:     TraceID(KindTransfer, evt.TransferID),
		Lines: []journals.LineRequest{
			debit(to, evt.Amount, evt.ToMethod),
			credit(from, evt.Amount, evt.FromMethod),
		},
	}, nil
}

// InventoryAdjustment maps a stock count difference: a gain is Dr Inventory / Cr Other Income,
// a loss is Dr Inventory Shrinkage / Cr Inventory.
func InventoryAdjustment(tenantID uuid.UUID, evt InventoryAdjustmentEvent) (journals.Request, error) {
	if err := requireKey("adjustment_id", evt.AdjustmentID); err != nil {
		return journals.Request{}, err
	}
	if evt.Amount == 0 {
		return journals.Request{}, shared.Invalid("amount", "must not be zero")
	}
	req := journals.Request{
		TenantID:    tenantID,
		Date:        evt.Date,
		Description: describe(evt.Reason, "Inventory adjustment %s", evt.AdjustmentID),
		SourceType:  journals.SourceAdjustment,
		SourceID:    evt.AdjustmentID,
		TraceID:     TraceID(KindInventoryAdjustment, evt.AdjustmentID),
	}
	if evt.Amount > 0 {
		req.Lines = []journals.LineRequest{
			debit(accounts.CodeInventory, evt.Amount, evt.Reason),
			credit(accounts.CodeOtherIncome, evt.Amount, evt.Reason),
		}
		return req, nil
	}
	loss := -evt.Amount
	req.Lines = []journals.LineRequest{
		debit(accounts.CodeInventoryShrinkage, loss, evt.Reason),
		credit(accounts.CodeInventory, loss, evt.Reason),
	}
	return req, nil
}

// ManualJournal maps caller-supplied lines. The trace is keyed on the reference, so a resubmitted
// journal is a duplicate rather than a second posting.
func ManualJournal(tenantID uuid.UUID, evt ManualJournalEvent) (journals.Request, error) {
	if err := requireKey("reference", evt.Reference); err != nil {
		return journals.Request{}, err
	}
	var source journals.SourceType
	switch st := journals.SourceType(strings.ToUpper(strings.TrimSpace(evt.SourceType))); st {
	case "", journals.SourceManual:
		source = journals.SourceManual
	case journals.SourceOpening, journals.SourceAdjustment:
		source = st
	default:
		return journals.Request{}, shared.Invalid("source_type", "must be MANUAL, OPENING or ADJUSTMENT, got %q", evt.SourceType)
	}
	lines := make([]journals.LineRequest, 0, len(evt.Lines))
	for _, l := range evt.Lines {
		lines = append(lines, journals.LineRequest{
			AccountCode: strings.TrimSpace(l.AccountCode),
			Debit:       l.Debit,
			Credit:      l.Credit,
			Memo:        l.Memo,
		})
	}
	return journals.Request{
		TenantID:    tenantID,
		Date:        evt.Date,
		Description: evt.Description,
		SourceType:  source,
		SourceID:    evt.Reference,
		TraceID:     TraceID(KindManual, evt.Reference),
		Lines:       lines,
	}, nil
}
