package kernel

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// PostingResult reports the journal behind a recorded business event.
type PostingResult struct {
	Success       bool   `json:"success"`
	JournalID     int64  `json:"journal_id"`
	JournalNumber string `json:"journal_number"`
	IsDuplicate   bool   `json:"is_duplicate"`
	// ItemID is the receivable or payable opened by a credit sale or purchase.
	ItemID *int64 `json:"item_id,omitempty"`
}

func postingResult(entry journals.JournalEntry, duplicate bool) PostingResult {
	return PostingResult{Success: true, JournalID: entry.ID, JournalNumber: entry.Number, IsDuplicate: duplicate}
}

// ItemResult reports a created receivable or payable.
type ItemResult struct {
	Success   bool   `json:"success"`
	ItemID    int64  `json:"id"`
	JournalID *int64 `json:"journal_id,omitempty"`
}

// PaymentResult reports an applied payment.
type PaymentResult struct {
	Success       bool            `json:"success"`
	ItemID        int64           `json:"item_id"`
	ApplicationID int64           `json:"application_id"`
	JournalID     *int64          `json:"journal_id,omitempty"`
	Status        string          `json:"status"`
	Balance       decimal.Decimal `json:"balance"`
	IsDuplicate   bool            `json:"is_duplicate,omitempty"`
}

// VoidResult reports a voided receivable or payable.
type VoidResult struct {
	Success bool `json:"success"`
}

// PeriodResult reports a period lifecycle command. On failure Message and Errors carry the reason.
type PeriodResult struct {
	Success  bool            `json:"success"`
	PeriodID int64           `json:"period_id"`
	Message  string          `json:"message"`
	Errors   []string        `json:"errors,omitempty"`
	Period   *periods.Period `json:"period,omitempty"`
}

func periodOK(p periods.Period, message string) PeriodResult {
	return PeriodResult{Success: true, PeriodID: p.ID, Message: message, Period: &p}
}

func periodFailed(id int64, err error) PeriodResult {
	res := PeriodResult{PeriodID: id, Message: err.Error(), Errors: []string{err.Error()}}
	var verr *shared.ValidationError
	if errors.As(err, &verr) && verr.Field != "" {
		res.Errors = []string{verr.Field + ": " + verr.Message}
	}
	return res
}
