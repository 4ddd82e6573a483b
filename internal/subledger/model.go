// Package subledger implements the receivable and payable ledgers shared by the ar and ap packages.
package subledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Kind selects the receivable or the payable side.
type Kind string

const (
	KindAR Kind = "ar"
	KindAP Kind = "ap"
)

func (k Kind) itemTable() string {
	if k == KindAP {
		return "accounts_payable"
	}
	return "accounts_receivable"
}

func (k Kind) applicationTable() string {
	if k == KindAP {
		return "ap_payment_applications"
	}
	return "ar_payment_applications"
}

// ControlAccount is the GL account mirrored by the subledger.
func (k Kind) ControlAccount() string {
	if k == KindAP {
		return accounts.CodeAccountsPayable
	}
	return accounts.CodeAccountsReceivable
}

// DocumentSource is the source type of the document that opens an item.
func (k Kind) DocumentSource() journals.SourceType {
	if k == KindAP {
		return journals.SourceBill
	}
	return journals.SourceInvoice
}

// PaymentSource is the source type of payment journals.
func (k Kind) PaymentSource() journals.SourceType {
	if k == KindAP {
		return journals.SourcePaymentBill
	}
	return journals.SourcePaymentInvoice
}

// DefaultOffsetAccount is the other side of the document journal when none is given.
func (k Kind) DefaultOffsetAccount() string {
	if k == KindAP {
		return accounts.CodeInventory
	}
	return accounts.CodeSalesRevenue
}

// Status enumerates the item lifecycle. Paid amounts only grow, so status never regresses except to VOID.
type Status string

const (
	StatusOpen    Status = "OPEN"
	StatusPartial Status = "PARTIAL"
	StatusPaid    Status = "PAID"
	StatusVoid    Status = "VOID"
)

// statusFor derives the status implied by the paid amount.
func statusFor(amount, paid decimal.Decimal) Status {
	switch {
	case paid.IsZero():
		return StatusOpen
	case paid.GreaterThanOrEqual(amount):
		return StatusPaid
	default:
		return StatusPartial
	}
}

// Item is a receivable or payable.
type Item struct {
	ID           int64           `json:"id"`
	TenantID     uuid.UUID       `json:"tenant_id"`
	Kind         Kind            `json:"kind"`
	Counterparty string          `json:"counterparty"`
	SourceType   string          `json:"source_type"`
	SourceID     string          `json:"source_id"`
	Amount       decimal.Decimal `json:"amount"`
	AmountPaid   decimal.Decimal `json:"amount_paid"`
	Status       Status          `json:"status"`
	DueDate      time.Time       `json:"due_date"`
	JournalID    *int64          `json:"journal_id,omitempty"`
	VoidedAt     *time.Time      `json:"voided_at,omitempty"`
	VoidReason   string          `json:"void_reason,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Balance is the amount still outstanding.
func (i Item) Balance() decimal.Decimal {
	return i.Amount.Sub(i.AmountPaid)
}

// Application records one payment applied to an item.
type Application struct {
	ID          int64           `json:"id"`
	ItemID      int64           `json:"item_id"`
	PaymentDate time.Time       `json:"payment_date"`
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method"`
	JournalID   *int64          `json:"journal_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// CreateInput opens an item, optionally posting the document journal.
type CreateInput struct {
	TenantID      uuid.UUID       `json:"-"`
	Counterparty  string          `json:"counterparty"`
	SourceType    string          `json:"source_type"`
	SourceID      string          `json:"source_id"`
	Amount        decimal.Decimal `json:"amount"`
	Date          time.Time       `json:"date"`
	DueDate       time.Time       `json:"due_date"`
	Description   string          `json:"description"`
	OffsetAccount string          `json:"offset_account,omitempty"`
	CreateJournal bool            `json:"create_journal"`
	// JournalID links a document journal posted by the caller in the same unit of work.
	JournalID *int64 `json:"-"`
	Actor     string `json:"-"`
}

// Validate checks the input before any write.
func (in CreateInput) Validate() error {
	if in.TenantID == uuid.Nil {
		return shared.Invalid("tenant_id", "is required")
	}
	if strings.TrimSpace(in.Counterparty) == "" {
		return shared.Invalid("counterparty", "is required")
	}
	if strings.TrimSpace(in.SourceID) == "" {
		return shared.Invalid("source_id", "is required")
	}
	if !in.Amount.IsPositive() {
		return shared.Invalid("amount", "must be greater than zero")
	}
	if in.DueDate.IsZero() {
		return shared.Invalid("due_date", "is required")
	}
	if in.CreateJournal && in.JournalID != nil {
		return shared.Invalid("create_journal", "cannot post a journal for an item linked to journal %d", *in.JournalID)
	}
	if in.CreateJournal && in.Date.IsZero() {
		return shared.Invalid("date", "is required when posting a journal")
	}
	return nil
}

// PaymentInput applies a payment to an item.
type PaymentInput struct {
	TenantID      uuid.UUID       `json:"-"`
	ItemID        int64           `json:"-"`
	PaymentDate   time.Time       `json:"payment_date"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"`
	CreateJournal bool            `json:"create_journal"`
	// TraceID overrides the payment journal trace so redelivered payment events stay idempotent.
	TraceID string `json:"-"`
	Actor   string `json:"-"`
}

// Validate checks the input before any write.
func (in PaymentInput) Validate() error {
	if in.TenantID == uuid.Nil {
		return shared.Invalid("tenant_id", "is required")
	}
	if !in.Amount.IsPositive() {
		return shared.Invalid("amount", "must be greater than zero")
	}
	if in.PaymentDate.IsZero() {
		return shared.Invalid("payment_date", "is required")
	}
	if strings.TrimSpace(in.Method) == "" {
		return shared.Invalid("method", "is required")
	}
	return nil
}

// PaymentResult is returned by ApplyPayment.
type PaymentResult struct {
	Item        Item        `json:"item"`
	Application Application `json:"application"`
}

// VoidInput voids an item without applications.
type VoidInput struct {
	TenantID uuid.UUID
	ItemID   int64
	Reason   string
	Actor    string
}
