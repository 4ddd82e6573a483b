package journals

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// DefaultTolerance is the maximum accepted gap between debit and credit totals.
var DefaultTolerance = decimal.New(1, -2)

// LineRequest describes one line of a posting request.
type LineRequest struct {
	AccountCode string          `json:"account_code"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Memo        string          `json:"memo,omitempty"`
}

// Request groups fields required to create a journal entry.
type Request struct {
	TenantID    uuid.UUID       `json:"-"`
	Date        time.Time       `json:"journal_date"`
	Description string          `json:"description"`
	SourceType  SourceType      `json:"source_type"`
	SourceID    string          `json:"source_id"`
	TraceID     string          `json:"trace_id,omitempty"`
	Lines       []LineRequest   `json:"lines"`
	Snapshot    json.RawMessage `json:"snapshot,omitempty"`
	Actor       string          `json:"-"`
	// System marks journals generated by the ledger itself (reversal, void, closing).
	System bool `json:"-"`

	reversalOf *int64
}

// Result is returned by Create. IsDuplicate is set when the trace id was already posted.
type Result struct {
	Entry       JournalEntry
	IsDuplicate bool
}

// Validate checks the structural double-entry rules on the amounts as given. It never touches storage.
func (in Request) Validate(tolerance decimal.Decimal) error {
	if in.TenantID == uuid.Nil {
		return shared.Invalid("tenant_id", "is required")
	}
	if in.Date.IsZero() {
		return shared.Invalid("journal_date", "is required")
	}
	if in.SourceType == "" {
		return shared.Invalid("source_type", "is required")
	}
	if len(in.Lines) < 2 {
		return &shared.ValidationError{Field: "lines", Message: shared.ErrTooFewLines.Error()}
	}
	var debit, credit decimal.Decimal
	for idx, line := range in.Lines {
		field := fmt.Sprintf("lines[%d]", idx)
		if line.AccountCode == "" {
			return shared.Invalid(field, "missing account code")
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return shared.Invalid(field, "negative amount")
		}
		if line.Debit.IsPositive() == line.Credit.IsPositive() {
			return shared.Invalid(field, "must carry exactly one of debit or credit")
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if debit.Sub(credit).Abs().GreaterThanOrEqual(tolerance) {
		return &shared.ValidationError{
			Field:   "lines",
			Message: fmt.Sprintf("%s (debit %s, credit %s)", shared.ErrUnbalanced.Error(), debit.StringFixed(2), credit.StringFixed(2)),
		}
	}
	return nil
}

// inCents returns a copy whose line amounts are rounded to the two decimals lines are stored with.
func (in Request) inCents() Request {
	lines := make([]LineRequest, len(in.Lines))
	for i, l := range in.Lines {
		l.Debit = l.Debit.Round(2)
		l.Credit = l.Credit.Round(2)
		lines[i] = l
	}
	in.Lines = lines
	return in
}

func (in Request) accountCodes() []string {
	out := make([]string, 0, len(in.Lines))
	for _, l := range in.Lines {
		out = append(out, l.AccountCode)
	}
	return out
}

// VoidInput wraps parameters for voiding.
type VoidInput struct {
	TenantID uuid.UUID
	EntryID  int64
	Actor    string
	Reason   string
	// Subledger is set by the AR/AP void, the only caller allowed to void a journal an item points to.
	Subledger bool
}

// ReverseInput wraps parameters for reversal.
type ReverseInput struct {
	TenantID     uuid.UUID
	EntryID      int64
	Actor        string
	Reason       string
	ReversalDate time.Time
}
