package shared

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = errors.New("accounting: journal lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("accounting: journal requires at least two lines")
	// ErrJournalNotFound indicates missing entry.
	ErrJournalNotFound = errors.New("accounting: journal entry not found")
	// ErrPeriodNotFound indicates missing fiscal period.
	ErrPeriodNotFound = errors.New("accounting: fiscal period not found")
	// ErrAccountNotFound indicates an unknown account id or code.
	ErrAccountNotFound = errors.New("accounting: account not found")
	// ErrInvalidStatus indicates action can't proceed.
	ErrInvalidStatus = errors.New("accounting: invalid status transition")
	// ErrAlreadyReversed indicates a journal already has a reversing counterpart.
	ErrAlreadyReversed = errors.New("accounting: journal already reversed")
	// ErrDuplicateTrace indicates the (tenant, trace) pair is already taken.
	ErrDuplicateTrace = errors.New("accounting: trace id already posted")
	// ErrItemNotFound indicates a missing receivable or payable.
	ErrItemNotFound = errors.New("accounting: subledger item not found")
	// ErrForbidden indicates the actor lacks the privilege the operation requires.
	ErrForbidden = errors.New("accounting: operation requires an administrator")
)

// ValidationError reports malformed input rejected before any write.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// PeriodViolation reports a posting rejected by the fiscal period gate.
type PeriodViolation struct {
	PeriodName string
	Status     string
	Message    string
}

func (e *PeriodViolation) Error() string {
	if e.PeriodName == "" {
		return e.Message
	}
	return fmt.Sprintf("period %s is %s: %s", e.PeriodName, e.Status, e.Message)
}

// SubledgerOverflow reports a payment larger than the remaining balance.
type SubledgerOverflow struct {
	Amount  decimal.Decimal
	Balance decimal.Decimal
}

func (e *SubledgerOverflow) Error() string {
	return fmt.Sprintf("payment %s exceeds remaining balance %s", e.Amount.StringFixed(2), e.Balance.StringFixed(2))
}

// IntegrityGap reports a missing cross reference the kernel refuses to fabricate.
type IntegrityGap struct {
	Entity string
	Ref    string
	Detail string
}

func (e *IntegrityGap) Error() string {
	return fmt.Sprintf("integrity gap: %s %s: %s", e.Entity, e.Ref, e.Detail)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsPeriodViolation reports whether err is a PeriodViolation.
func IsPeriodViolation(err error) bool {
	var target *PeriodViolation
	return errors.As(err, &target)
}
