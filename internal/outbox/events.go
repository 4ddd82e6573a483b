// Package outbox persists accounting events in the same transaction as the state change
// and relays them to the task queue afterwards.
package outbox

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// EventType names an outbox event.
type EventType string

const (
	EventJournalPosted    EventType = "journal.posted"
	EventJournalVoided    EventType = "journal.voided"
	EventJournalReversed  EventType = "journal.reversed"
	EventPeriodClosed     EventType = "period.closed"
	EventPeriodLocked     EventType = "period.locked"
	EventPeriodUnlocked   EventType = "period.unlocked"
	EventARPaymentApplied EventType = "ar.payment_applied"
	EventAPPaymentApplied EventType = "ap.payment_applied"
	EventARVoided         EventType = "ar.voided"
	EventAPVoided         EventType = "ap.voided"
)

// Event is implemented by every payload struct written to the outbox.
type Event interface {
	Type() EventType
	AggregateID() string
}

// AffectsLedger reports whether consumers should treat the event as a change of journal data.
func AffectsLedger(t EventType) bool {
	switch t {
	case EventJournalPosted, EventJournalVoided, EventJournalReversed, EventPeriodClosed:
		return true
	default:
		return false
	}
}

// JournalLine is the wire shape of a posted line.
type JournalLine struct {
	LineNumber  int             `json:"line_number"`
	AccountCode string          `json:"account_code"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Memo        string          `json:"memo,omitempty"`
}

// JournalPosted carries the full journal written by a posting.
type JournalPosted struct {
	JournalID    int64         `json:"journal_id"`
	Number       string        `json:"journal_number"`
	Date         time.Time     `json:"journal_date"`
	Description  string        `json:"description"`
	SourceType   string        `json:"source_type"`
	SourceID     string        `json:"source_id"`
	TraceID      string        `json:"trace_id"`
	PeriodID     *int64        `json:"period_id,omitempty"`
	ReversalOfID *int64        `json:"reversal_of_id,omitempty"`
	CreatedBy    string        `json:"created_by"`
	Lines        []JournalLine `json:"lines"`
}

func (e JournalPosted) Type() EventType     { return EventJournalPosted }
func (e JournalPosted) AggregateID() string { return strconv.FormatInt(e.JournalID, 10) }

// JournalVoided records a void and its counter-entry.
type JournalVoided struct {
	JournalID     int64     `json:"journal_id"`
	Number        string    `json:"journal_number"`
	VoidJournalID int64     `json:"void_journal_id"`
	VoidNumber    string    `json:"void_journal_number"`
	Reason        string    `json:"reason"`
	Actor         string    `json:"actor"`
	VoidedAt      time.Time `json:"voided_at"`
}

func (e JournalVoided) Type() EventType     { return EventJournalVoided }
func (e JournalVoided) AggregateID() string { return strconv.FormatInt(e.JournalID, 10) }

// JournalReversed links an original journal to its reversal.
type JournalReversed struct {
	JournalID      int64     `json:"journal_id"`
	Number         string    `json:"journal_number"`
	ReversalID     int64     `json:"reversal_id"`
	ReversalNumber string    `json:"reversal_number"`
	ReversalDate   time.Time `json:"reversal_date"`
	Reason         string    `json:"reason"`
	Actor          string    `json:"actor"`
	ReversedAt     time.Time `json:"reversed_at"`
}

func (e JournalReversed) Type() EventType     { return EventJournalReversed }
func (e JournalReversed) AggregateID() string { return strconv.FormatInt(e.JournalID, 10) }

// PeriodClosed is emitted once a period is closed and snapshotted.
type PeriodClosed struct {
	PeriodID         int64           `json:"period_id"`
	Name             string          `json:"period_name"`
	ClosedBy         string          `json:"closed_by"`
	ClosedAt         time.Time       `json:"closed_at"`
	ClosingJournalID *int64          `json:"closing_journal_id,omitempty"`
	NetIncome        decimal.Decimal `json:"net_income"`
}

func (e PeriodClosed) Type() EventType     { return EventPeriodClosed }
func (e PeriodClosed) AggregateID() string { return strconv.FormatInt(e.PeriodID, 10) }

// PeriodLocked is emitted when a closed period becomes immutable.
type PeriodLocked struct {
	PeriodID int64     `json:"period_id"`
	Name     string    `json:"period_name"`
	LockedBy string    `json:"locked_by"`
	LockedAt time.Time `json:"locked_at"`
	Reason   string    `json:"reason"`
}

func (e PeriodLocked) Type() EventType     { return EventPeriodLocked }
func (e PeriodLocked) AggregateID() string { return strconv.FormatInt(e.PeriodID, 10) }

// PeriodUnlocked is the audit record of an admin unlock.
type PeriodUnlocked struct {
	PeriodID        int64      `json:"period_id"`
	Name            string     `json:"period_name"`
	UnlockedBy      string     `json:"unlocked_by"`
	UnlockedAt      time.Time  `json:"unlocked_at"`
	Reason          string     `json:"reason"`
	PriorLockedBy   string     `json:"prior_locked_by"`
	PriorLockedAt   *time.Time `json:"prior_locked_at,omitempty"`
	PriorLockReason string     `json:"prior_lock_reason"`
}

func (e PeriodUnlocked) Type() EventType     { return EventPeriodUnlocked }
func (e PeriodUnlocked) AggregateID() string { return strconv.FormatInt(e.PeriodID, 10) }

// PaymentApplied is emitted for receivable and payable payment applications.
type PaymentApplied struct {
	Kind          string          `json:"kind"`
	ItemID        int64           `json:"item_id"`
	ApplicationID int64           `json:"application_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"`
	PaymentDate   time.Time       `json:"payment_date"`
	JournalID     *int64          `json:"journal_id,omitempty"`
	Status        string          `json:"status"`
}

func (e PaymentApplied) Type() EventType {
	if e.Kind == "ap" {
		return EventAPPaymentApplied
	}
	return EventARPaymentApplied
}
func (e PaymentApplied) AggregateID() string { return strconv.FormatInt(e.ItemID, 10) }

// SubledgerVoided is emitted when a receivable or payable is voided.
type SubledgerVoided struct {
	Kind   string `json:"kind"`
	ItemID int64  `json:"item_id"`
	Reason string `json:"reason"`
	Actor  string `json:"actor"`
}

func (e SubledgerVoided) Type() EventType {
	if e.Kind == "ap" {
		return EventAPVoided
	}
	return EventARVoided
}
func (e SubledgerVoided) AggregateID() string { return strconv.FormatInt(e.ItemID, 10) }

// Decode turns a stored payload back into its typed event.
func Decode(eventType EventType, payload []byte) (Event, error) {
	var (
		evt Event
		err error
	)
	switch eventType {
	case EventJournalPosted:
		evt, err = decodeAs[JournalPosted](payload)
	case EventJournalVoided:
		evt, err = decodeAs[JournalVoided](payload)
	case EventJournalReversed:
		evt, err = decodeAs[JournalReversed](payload)
	case EventPeriodClosed:
		evt, err = decodeAs[PeriodClosed](payload)
	case EventPeriodLocked:
		evt, err = decodeAs[PeriodLocked](payload)
	case EventPeriodUnlocked:
		evt, err = decodeAs[PeriodUnlocked](payload)
	case EventARPaymentApplied, EventAPPaymentApplied:
		evt, err = decodeAs[PaymentApplied](payload)
	case EventARVoided, EventAPVoided:
		evt, err = decodeAs[SubledgerVoided](payload)
	default:
		return nil, fmt.Errorf("outbox: unknown event type %q", eventType)
	}
	if err != nil {
		return nil, fmt.Errorf("outbox: decode %s: %w", eventType, err)
	}
	return evt, nil
}

func decodeAs[T Event](payload []byte) (Event, error) {
	var evt T
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, err
	}
	return evt, nil
}
