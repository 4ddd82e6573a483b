package journals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/outbox"
)

// AccountResolver maps account codes to accounts. Resolve rejects deactivated accounts,
// ResolveAny accepts them and is used for system postings.
type AccountResolver interface {
	Resolve(ctx context.Context, tenantID uuid.UUID, codes []string) (map[string]accounts.Account, error)
	ResolveAny(ctx context.Context, tenantID uuid.UUID, codes []string) (map[string]accounts.Account, error)
}

// PeriodGate admits or rejects a posting date. A rejection is a *shared.PeriodViolation.
type PeriodGate interface {
	Admit(ctx context.Context, tenantID uuid.UUID, date time.Time, system bool) (*int64, error)
}

// EventSink receives outbox events inside the posting transaction.
type EventSink interface {
	Append(ctx context.Context, tenantID uuid.UUID, evt outbox.Event) error
}

// Service posts, voids and reverses journals.
type Service struct {
	repo      Repository
	accounts  AccountResolver
	gate      PeriodGate
	events    EventSink
	logger    *slog.Logger
	now       func() time.Time
	tolerance decimal.Decimal
	apControl string
}

// NewService wires the journal service.
func NewService(repo Repository, resolver AccountResolver, gate PeriodGate, events EventSink, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		accounts:  resolver,
		gate:      gate,
		events:    events,
		logger:    logger,
		now:       time.Now,
		tolerance: DefaultTolerance,
		apControl: accounts.CodeAccountsPayable,
	}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithTolerance overrides the balance tolerance.
func (s *Service) WithTolerance(tolerance decimal.Decimal) {
	if tolerance.IsPositive() {
		s.tolerance = tolerance
	}
}

// WithAPControlCode overrides the account guarded against direct postings.
func (s *Service) WithAPControlCode(code string) {
	if code != "" {
		s.apControl = code
	}
}

// Get returns a journal with its lines.
func (s *Service) Get(ctx context.Context, tenantID uuid.UUID, id int64) (JournalEntry, error) {
	return s.repo.Get(ctx, tenantID, id)
}

// GetByTrace returns the journal posted for traceID.
func (s *Service) GetByTrace(ctx context.Context, tenantID uuid.UUID, traceID string) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, tenantID, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = tx.FindByTrace(ctx, tenantID, traceID)
		return err
	})
	return entry, err
}

func (s *Service) List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]JournalEntry, error) {
	return s.repo.List(ctx, tenantID, filter)
}

// Create validates and posts a journal atomically. Amounts are rounded to cents before the
// balance check, so the stored lines are exactly what was validated. A request whose trace id
// was already posted returns the stored journal with IsDuplicate set and writes nothing.
func (s *Service) Create(ctx context.Context, req Request) (Result, error) {
	req = req.inCents()
	if err := req.Validate(s.tolerance); err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(req.TraceID) == "" {
		req.TraceID = "auto:" + uuid.NewString()
	}
	var result Result
	err := s.repo.WithTx(ctx, req.TenantID, func(ctx context.Context, tx TxRepository) error {
		var err error
		result, err = s.create(ctx, tx, req)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	if result.IsDuplicate {
		s.logger.Debug("journal trace already posted",
			slog.String("tenant", req.TenantID.String()),
			slog.String("trace_id", req.TraceID),
			slog.Int64("journal_id", result.Entry.ID))
	}
	return result, nil
}

func (s *Service) create(ctx context.Context, tx TxRepository, req Request) (Result, error) {
	if existing, err := tx.FindByTrace(ctx, req.TenantID, req.TraceID); err == nil {
		return Result{Entry: existing, IsDuplicate: true}, nil
	} else if !errors.Is(err, shared.ErrJournalNotFound) {
		return Result{}, err
	}

	resolve := s.accounts.Resolve
	if req.System {
		resolve = s.accounts.ResolveAny
	}
	resolved, err := resolve(ctx, req.TenantID, req.accountCodes())
	if err != nil {
		return Result{}, err
	}
	if !req.System && !req.SourceType.MayPostToAPControl() {
		for _, line := range req.Lines {
			if line.AccountCode == s.apControl {
				return Result{}, shared.Invalid("account_code",
					"direct posting to accounts payable control %s is not allowed for source type %s", s.apControl, req.SourceType)
			}
		}
	}

	date := dateOnly(req.Date)
	periodID, err := s.gate.Admit(ctx, req.TenantID, date, req.System)
	if err != nil {
		return Result{}, err
	}

	prefix := req.SourceType.Prefix()
	seq, err := tx.NextNumber(ctx, req.TenantID, prefix, date.Format("200601"))
	if err != nil {
		return Result{}, err
	}
	entry := JournalEntry{
		TenantID:     req.TenantID,
		Number:       FormatNumber(prefix, date, seq),
		Date:         date,
		Description:  req.Description,
		SourceType:   req.SourceType,
		SourceID:     req.SourceID,
		TraceID:      req.TraceID,
		Status:       JournalStatusPosted,
		ReversalOfID: req.reversalOf,
		PeriodID:     periodID,
		Snapshot:     req.Snapshot,
		CreatedBy:    req.Actor,
	}
	inserted, err := tx.InsertJournalEntry(ctx, entry)
	if errors.Is(err, shared.ErrDuplicateTrace) {
		winner, findErr := tx.FindByTrace(ctx, req.TenantID, req.TraceID)
		if findErr != nil {
			return Result{}, fmt.Errorf("journals: read duplicate trace %s: %w", req.TraceID, findErr)
		}
		return Result{Entry: winner, IsDuplicate: true}, nil
	}
	if err != nil {
		return Result{}, err
	}

	lines := make([]JournalLine, 0, len(req.Lines))
	for idx, l := range req.Lines {
		lines = append(lines, JournalLine{
			JournalID:   inserted.ID,
			AccountID:   resolved[l.AccountCode].ID,
			AccountCode: l.AccountCode,
			LineNumber:  idx + 1,
			Debit:       l.Debit,
			Credit:      l.Credit,
			Memo:        l.Memo,
		})
	}
	if err := tx.InsertJournalLines(ctx, inserted, lines); err != nil {
		return Result{}, err
	}
	inserted.Lines = lines

	if err := s.events.Append(ctx, req.TenantID, postedEvent(inserted)); err != nil {
		return Result{}, err
	}
	return Result{Entry: inserted}, nil
}

// VoidJournal marks the original VOID and posts its counter-entry dated today, in one transaction.
func (s *Service) VoidJournal(ctx context.Context, input VoidInput) (Result, error) {
	if input.EntryID == 0 {
		return Result{}, shared.Invalid("journal_id", "is required")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return Result{}, shared.Invalid("reason", "is required")
	}
	var result Result
	err := s.repo.WithTx(ctx, input.TenantID, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetForUpdate(ctx, input.TenantID, input.EntryID)
		if err != nil {
			return err
		}
		if original.Status != JournalStatusPosted {
			return fmt.Errorf("%w: journal %s is %s", shared.ErrInvalidStatus, original.Number, original.Status)
		}
		if original.ReversedByID != nil {
			return fmt.Errorf("%w: journal %s", shared.ErrAlreadyReversed, original.Number)
		}
		if original.ReversalOfID != nil || original.SourceType == SourceVoid {
			return fmt.Errorf("%w: journal %s is a %s counter-entry", shared.ErrInvalidStatus, original.Number, original.SourceType)
		}
		if !input.Subledger {
			linked, err := tx.SubledgerLinked(ctx, input.TenantID, original.ID)
			if err != nil {
				return err
			}
			if linked {
				return fmt.Errorf("%w: journal %s belongs to a receivable or payable, void the item instead",
					shared.ErrInvalidStatus, original.Number)
			}
		}
		if _, err := s.gate.Admit(ctx, input.TenantID, original.Date, true); err != nil {
			return err
		}
		now := s.now()
		req := Request{
			TenantID:    input.TenantID,
			Date:        now,
			Description: fmt.Sprintf("Void of %s: %s", original.Number, input.Reason),
			SourceType:  SourceVoid,
			SourceID:    strconv.FormatInt(original.ID, 10),
			TraceID:     "void:" + strconv.FormatInt(original.ID, 10),
			Lines:       reverseLines(original.Lines),
			Actor:       input.Actor,
			System:      true,
		}
		if err := req.Validate(s.tolerance); err != nil {
			return err
		}
		result, err = s.create(ctx, tx, req)
		if err != nil {
			return err
		}
		if err := tx.MarkVoid(ctx, input.TenantID, original.ID, input.Reason, now); err != nil {
			return err
		}
		return s.events.Append(ctx, input.TenantID, outbox.JournalVoided{
			JournalID:     original.ID,
			Number:        original.Number,
			VoidJournalID: result.Entry.ID,
			VoidNumber:    result.Entry.Number,
			Reason:        input.Reason,
			Actor:         input.Actor,
			VoidedAt:      now,
		})
	})
	if err != nil {
		return Result{}, err
	}
	s.logger.Info("journal voided",
		slog.String("tenant", input.TenantID.String()),
		slog.Int64("journal_id", input.EntryID),
		slog.Int64("void_journal_id", result.Entry.ID))
	return result, nil
}

// ReverseJournal posts a first-class reversal. The original stays POSTED and records reversed_by_id.
func (s *Service) ReverseJournal(ctx context.Context, input ReverseInput) (Result, error) {
	if input.EntryID == 0 {
		return Result{}, shared.Invalid("journal_id", "is required")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return Result{}, shared.Invalid("reason", "is required")
	}
	if input.ReversalDate.IsZero() {
		return Result{}, shared.Invalid("reversal_date", "is required")
	}
	var result Result
	err := s.repo.WithTx(ctx, input.TenantID, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetForUpdate(ctx, input.TenantID, input.EntryID)
		if err != nil {
			return err
		}
		if original.ReversedByID != nil {
			return fmt.Errorf("%w: journal %s", shared.ErrAlreadyReversed, original.Number)
		}
		if original.Status != JournalStatusPosted {
			return fmt.Errorf("%w: journal %s is %s", shared.ErrInvalidStatus, original.Number, original.Status)
		}
		if _, err := s.gate.Admit(ctx, input.TenantID, original.Date, true); err != nil {
			return err
		}
		originalID := original.ID
		req := Request{
			TenantID:    input.TenantID,
			Date:        input.ReversalDate,
			Description: defaultReversalMemo(input.Reason, original.Number),
			SourceType:  SourceReversal,
			SourceID:    strconv.FormatInt(original.ID, 10),
			TraceID:     "reversal:" + strconv.FormatInt(original.ID, 10),
			Lines:       reverseLines(original.Lines),
			Actor:       input.Actor,
			System:      true,
			reversalOf:  &originalID,
		}
		if err := req.Validate(s.tolerance); err != nil {
			return err
		}
		result, err = s.create(ctx, tx, req)
		if err != nil {
			return err
		}
		now := s.now()
		if err := tx.MarkReversed(ctx, input.TenantID, original.ID, result.Entry.ID, input.Reason, now); err != nil {
			return err
		}
		return s.events.Append(ctx, input.TenantID, outbox.JournalReversed{
			JournalID:      original.ID,
			Number:         original.Number,
			ReversalID:     result.Entry.ID,
			ReversalNumber: result.Entry.Number,
			ReversalDate:   result.Entry.Date,
			Reason:         input.Reason,
			Actor:          input.Actor,
			ReversedAt:     now,
		})
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

// FormatNumber renders PREFIX-YYYYMM-NNNNN.
func FormatNumber(prefix string, date time.Time, seq int64) string {
	return fmt.Sprintf("%s-%s-%05d", prefix, date.Format("200601"), seq)
}

func reverseLines(lines []JournalLine) []LineRequest {
	out := make([]LineRequest, 0, len(lines))
	for _, line := range lines {
		out = append(out, LineRequest{
			AccountCode: line.AccountCode,
			Debit:       line.Credit,
			Credit:      line.Debit,
			Memo:        line.Memo,
		})
	}
	return out
}

func defaultReversalMemo(reason, number string) string {
	return fmt.Sprintf("Reversal of %s: %s", number, reason)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func postedEvent(e JournalEntry) outbox.JournalPosted {
	lines := make([]outbox.JournalLine, 0, len(e.Lines))
	for _, l := range e.Lines {
		lines = append(lines, outbox.JournalLine{
			LineNumber:  l.LineNumber,
			AccountCode: l.AccountCode,
			Debit:       l.Debit,
			Credit:      l.Credit,
			Memo:        l.Memo,
		})
	}
	return outbox.JournalPosted{
		JournalID:    e.ID,
		Number:       e.Number,
		Date:         e.Date,
		Description:  e.Description,
		SourceType:   string(e.SourceType),
		SourceID:     e.SourceID,
		TraceID:      e.TraceID,
		PeriodID:     e.PeriodID,
		ReversalOfID: e.ReversalOfID,
		CreatedBy:    e.CreatedBy,
		Lines:        lines,
	}
}
