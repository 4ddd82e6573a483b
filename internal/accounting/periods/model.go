package periods

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Status enumerates valid period states.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
	StatusLocked Status = "LOCKED"
)

// CanTransition reports whether a period may move from s to next.
// LOCKED goes back to CLOSED only for administrators.
func (s Status) CanTransition(next Status, admin bool) bool {
	switch s {
	case StatusOpen:
		return next == StatusClosed
	case StatusClosed:
		return next == StatusLocked
	case StatusLocked:
		return next == StatusClosed && admin
	default:
		return false
	}
}

// Period represents a fiscal period window.
type Period struct {
	ID               int64           `json:"id"`
	TenantID         uuid.UUID       `json:"-"`
	Name             string          `json:"period_name"`
	StartDate        time.Time       `json:"start_date"`
	EndDate          time.Time       `json:"end_date"`
	Status           Status          `json:"status"`
	ClosedAt         *time.Time      `json:"closed_at,omitempty"`
	ClosedBy         string          `json:"closed_by,omitempty"`
	ClosingJournalID *int64          `json:"closing_journal_id,omitempty"`
	ClosingSnapshot  json.RawMessage `json:"closing_snapshot,omitempty"`
	LockedAt         *time.Time      `json:"locked_at,omitempty"`
	LockedBy         string          `json:"locked_by,omitempty"`
	LockReason       string          `json:"lock_reason,omitempty"`
	UnlockedAt       *time.Time      `json:"unlocked_at,omitempty"`
	UnlockedBy       string          `json:"unlocked_by,omitempty"`
	UnlockReason     string          `json:"unlock_reason,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Covers reports whether date falls inside the period, both ends inclusive.
func (p Period) Covers(date time.Time) bool {
	d := dateOnly(date)
	return !d.Before(dateOnly(p.StartDate)) && !d.After(dateOnly(p.EndDate))
}

// CreateInput captures a new period.
type CreateInput struct {
	TenantID  uuid.UUID
	Name      string
	StartDate time.Time
	EndDate   time.Time
	Actor     string
}

// Validate ensures the create input is coherent.
func (in CreateInput) Validate() error {
	if in.TenantID == uuid.Nil {
		return shared.Invalid("tenant_id", "is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return shared.Invalid("period_name", "is required")
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return shared.Invalid("start_date", "start and end date are required")
	}
	if dateOnly(in.StartDate).After(dateOnly(in.EndDate)) {
		return shared.Invalid("start_date", "must not be after end date")
	}
	return nil
}

// CloseInput drives ClosePeriod.
type CloseInput struct {
	TenantID             uuid.UUID
	PeriodID             int64
	Actor                string
	CreateClosingEntries bool
}

// LockInput drives LockPeriod.
type LockInput struct {
	TenantID uuid.UUID
	PeriodID int64
	Actor    string
	Reason   string
}

// UnlockInput drives UnlockPeriod.
type UnlockInput struct {
	TenantID uuid.UUID
	PeriodID int64
	Actor    string
	Reason   string
	IsAdmin  bool
}

// SnapshotLine is one account of the closing snapshot.
type SnapshotLine struct {
	Code          string                 `json:"code"`
	Name          string                 `json:"name"`
	Type          accounts.AccountType   `json:"type"`
	NormalBalance accounts.NormalBalance `json:"normal_balance"`
	Debit         decimal.Decimal        `json:"debit"`
	Credit        decimal.Decimal        `json:"credit"`
	Balance       decimal.Decimal        `json:"balance"`
}

// Snapshot is the immutable record persisted when a period closes.
type Snapshot struct {
	PeriodName string          `json:"period_name"`
	AsOf       time.Time       `json:"as_of"`
	Accounts   []SnapshotLine  `json:"accounts"`
	NetIncome  decimal.Decimal `json:"net_income"`
}

// CloseRecord is written on the period row by ClosePeriod.
type CloseRecord struct {
	ClosedBy         string
	ClosedAt         time.Time
	ClosingJournalID *int64
	Snapshot         json.RawMessage
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
