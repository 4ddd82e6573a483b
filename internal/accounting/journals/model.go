package journals

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// JournalStatus enumerates journal lifecycle values.
type JournalStatus string

const (
	JournalStatusDraft  JournalStatus = "DRAFT"
	JournalStatusPosted JournalStatus = "POSTED"
	JournalStatusVoid   JournalStatus = "VOID"
)

// SourceType identifies the business document behind a journal.
type SourceType string

const (
	SourceSale           SourceType = "SALE"
	SourceInvoice        SourceType = "INVOICE"
	SourcePurchase       SourceType = "PURCHASE"
	SourceBill           SourceType = "BILL"
	SourceExpense        SourceType = "EXPENSE"
	SourcePaymentInvoice SourceType = "PAYMENT_INVOICE"
	SourcePaymentBill    SourceType = "PAYMENT_BILL"
	SourceTransfer       SourceType = "TRANSFER"
	SourceAdjustment     SourceType = "ADJUSTMENT"
	SourceReversal       SourceType = "REVERSAL"
	SourceVoid           SourceType = "VOID"
	SourceClosing        SourceType = "CLOSING"
	SourceOpening        SourceType = "OPENING"
	SourceManual         SourceType = "MANUAL"
)

// Prefix returns the journal number prefix for the source type.
func (s SourceType) Prefix() string {
	switch s {
	case SourceSale:
		return "SAL"
	case SourceInvoice:
		return "INV"
	case SourcePurchase:
		return "PUR"
	case SourceBill:
		return "BIL"
	case SourceExpense:
		return "EXP"
	case SourcePaymentInvoice:
		return "RCV"
	case SourcePaymentBill:
		return "PAY"
	case SourceTransfer:
		return "TRF"
	case SourceAdjustment:
		return "ADJ"
	case SourceReversal:
		return "REV"
	case SourceVoid:
		return "VOD"
	case SourceClosing:
		return "CLS"
	case SourceOpening:
		return "OPN"
	default:
		return "JRN"
	}
}

// MayPostToAPControl reports whether journals of this source may touch the AP control account directly.
func (s SourceType) MayPostToAPControl() bool {
	switch s {
	case SourceBill, SourcePaymentBill, SourceAdjustment, SourceClosing, SourceOpening:
		return true
	default:
		return false
	}
}

// JournalEntry captures posting metadata.
type JournalEntry struct {
	ID             int64           `json:"id"`
	TenantID       uuid.UUID       `json:"-"`
	Number         string          `json:"journal_number"`
	Date           time.Time       `json:"journal_date"`
	Description    string          `json:"description"`
	SourceType     SourceType      `json:"source_type"`
	SourceID       string          `json:"source_id"`
	TraceID        string          `json:"trace_id"`
	Status         JournalStatus   `json:"status"`
	ReversalOfID   *int64          `json:"reversal_of_id,omitempty"`
	ReversedByID   *int64          `json:"reversed_by_id,omitempty"`
	ReversalReason string          `json:"reversal_reason,omitempty"`
	ReversedAt     *time.Time      `json:"reversed_at,omitempty"`
	VoidedAt       *time.Time      `json:"voided_at,omitempty"`
	VoidReason     string          `json:"void_reason,omitempty"`
	PeriodID       *int64          `json:"period_id,omitempty"`
	Snapshot       json.RawMessage `json:"snapshot,omitempty"`
	CreatedBy      string          `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
	Lines          []JournalLine   `json:"lines"`
}

// JournalLine stores debit or credit amount for an account.
type JournalLine struct {
	ID          int64           `json:"id"`
	JournalID   int64           `json:"journal_id"`
	AccountID   int64           `json:"account_id"`
	AccountCode string          `json:"account_code"`
	LineNumber  int             `json:"line_number"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Memo        string          `json:"memo,omitempty"`
}

// Totals sums the debit and credit sides of the entry.
func (e JournalEntry) Totals() (debit, credit decimal.Decimal) {
	for _, l := range e.Lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}

// ListFilter narrows List results.
type ListFilter struct {
	From       *time.Time
	To         *time.Time
	SourceType SourceType
	Status     JournalStatus
	Limit      int
	Offset     int
}
