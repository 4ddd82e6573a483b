// Package integration turns business events into balanced journal requests.
// Rules are pure: account resolution and posting happen in the caller.
package integration

import (
	"time"

	"github.com/shopspring/decimal"
)

// Amounts on business events are whole units of the tenant currency.

// SaleEvent is a completed sale. OnCredit sales are invoiced to the customer.
type SaleEvent struct {
	TransactionID string    `json:"transaction_id" validate:"required"`
	Date          time.Time `json:"date" validate:"required"`
	Amount        int64     `json:"amount" validate:"gt=0"`
	Cost          int64     `json:"cost,omitempty" validate:"gte=0"`
	Method        string    `json:"method,omitempty"`
	OnCredit      bool      `json:"on_credit,omitempty"`
	Customer      string    `json:"customer,omitempty"`
	DueDate       time.Time `json:"due_date,omitempty"`
	Description   string    `json:"description,omitempty"`
}

// PurchaseEvent is a purchase of stock or of an expense item. OnCredit purchases become bills.
type PurchaseEvent struct {
	TransactionID string    `json:"transaction_id" validate:"required"`
	Date          time.Time `json:"date" validate:"required"`
	Amount        int64     `json:"amount" validate:"gt=0"`
	Method        string    `json:"method,omitempty"`
	OnCredit      bool      `json:"on_credit,omitempty"`
	Supplier      string    `json:"supplier,omitempty"`
	DueDate       time.Time `json:"due_date,omitempty"`
	DebitAccount  string    `json:"debit_account,omitempty"`
	Description   string    `json:"description,omitempty"`
}

// ExpenseEvent is an expense paid immediately.
type ExpenseEvent struct {
	ExpenseID      string    `json:"expense_id" validate:"required"`
	Date           time.Time `json:"date" validate:"required"`
	Amount         int64     `json:"amount" validate:"gt=0"`
	Method         string    `json:"method" validate:"required"`
	ExpenseAccount string    `json:"expense_account,omitempty"`
	Description    string    `json:"description,omitempty"`
}

// TransferEvent moves funds between two settlement methods or accounts.
type TransferEvent struct {
	TransferID  string    `json:"transfer_id" validate:"required"`
	Date        time.Time `json:"date" validate:"required"`
	Amount      int64     `json:"amount" validate:"gt=0"`
	FromMethod  string    `json:"from_method" validate:"required"`
	ToMethod    string    `json:"to_method" validate:"required"`
	Description string    `json:"description,omitempty"`
}

// InventoryAdjustmentEvent carries a signed stock value change: positive is a gain, negative a loss.
type InventoryAdjustmentEvent struct {
	AdjustmentID string    `json:"adjustment_id" validate:"required"`
	Date         time.Time `json:"date" validate:"required"`
	Amount       int64     `json:"amount" validate:"ne=0"`
	Reason       string    `json:"reason,omitempty"`
}

// PaymentEvent settles an invoice or a bill identified by its document id.
type PaymentEvent struct {
	PaymentID  string    `json:"payment_id" validate:"required"`
	DocumentID string    `json:"document_id" validate:"required"`
	Date       time.Time `json:"date" validate:"required"`
	Amount     int64     `json:"amount" validate:"gt=0"`
	Method     string    `json:"method" validate:"required"`
}

// ManualJournalEvent is a journal keyed in by an accountant. SourceType selects MANUAL (the
// default), OPENING or ADJUSTMENT. Line amounts may carry cents.
type ManualJournalEvent struct {
	Reference   string              `json:"reference" validate:"required,max=100"`
	Date        time.Time           `json:"date" validate:"required"`
	SourceType  string              `json:"source_type,omitempty"`
	Description string              `json:"description" validate:"required,max=500"`
	Lines       []ManualJournalLine `json:"lines" validate:"min=2,dive"`
}

// ManualJournalLine carries exactly one positive side.
type ManualJournalLine struct {
	AccountCode string          `json:"account_code" validate:"required"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Memo        string          `json:"memo,omitempty" validate:"max=255"`
}

func money(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}
