package subledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/outbox"
)

// JournalPoster is the part of the journal service the subledger drives.
type JournalPoster interface {
	Create(ctx context.Context, req journals.Request) (journals.Result, error)
	VoidJournal(ctx context.Context, input journals.VoidInput) (journals.Result, error)
}

// MethodResolver maps a payment method to its cash or bank account code.
type MethodResolver interface {
	AccountFor(ctx context.Context, tenantID uuid.UUID, method string) (string, error)
}

// EventSink receives outbox events inside the subledger transaction.
type EventSink interface {
	Append(ctx context.Context, tenantID uuid.UUID, evt outbox.Event) error
}

// Service manages items of one Kind.
type Service struct {
	kind     Kind
	repo     Repository
	journals JournalPoster
	methods  MethodResolver
	events   EventSink
	logger   *slog.Logger
	now      func() time.Time
}

// NewService wires a subledger service.
func NewService(kind Kind, repo Repository, poster JournalPoster, methods MethodResolver, events EventSink, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		kind:     kind,
		repo:     repo,
		journals: poster,
		methods:  methods,
		events:   events,
		logger:   logger.With(slog.String("subledger", string(kind))),
		now:      time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Kind reports which side the service manages.
func (s *Service) Kind() Kind { return s.kind }

func (s *Service) Get(ctx context.Context, tenantID uuid.UUID, id int64) (Item, error) {
	return s.repo.Get(ctx, tenantID, id)
}

func (s *Service) ListOpen(ctx context.Context, tenantID uuid.UUID) ([]Item, error) {
	return s.repo.ListOpen(ctx, tenantID)
}

func (s *Service) Applications(ctx context.Context, tenantID uuid.UUID, itemID int64) ([]Application, error) {
	return s.repo.Applications(ctx, tenantID, itemID)
}

// Aging buckets the open items as of the given date.
func (s *Service) Aging(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (AgingReport, error) {
	items, err := s.repo.ListOpen(ctx, tenantID)
	if err != nil {
		return AgingReport{}, err
	}
	return BuildAging(s.kind, asOf, items), nil
}

// Create opens an item and, when requested, posts the document journal in the same transaction.
func (s *Service) Create(ctx context.Context, in CreateInput) (Item, error) {
	if in.SourceType == "" {
		in.SourceType = string(s.kind.DocumentSource())
	}
	if err := in.Validate(); err != nil {
		return Item{}, err
	}
	var item Item
	err := s.repo.WithTx(ctx, in.TenantID, func(ctx context.Context, tx TxRepository) error {
		var err error
		item, err = tx.Insert(ctx, Item{
			TenantID:     in.TenantID,
			Kind:         s.kind,
			Counterparty: in.Counterparty,
			SourceType:   in.SourceType,
			SourceID:     in.SourceID,
			Amount:       in.Amount.Round(2),
			DueDate:      dateOnly(in.DueDate),
			JournalID:    in.JournalID,
		})
		if err != nil {
			return err
		}
		if !in.CreateJournal {
			return nil
		}
		res, err := s.journals.Create(ctx, s.documentJournal(in))
		if err != nil {
			return err
		}
		if err := tx.SetJournal(ctx, in.TenantID, item.ID, res.Entry.ID); err != nil {
			return err
		}
		item.JournalID = &res.Entry.ID
		return nil
	})
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

func (s *Service) documentJournal(in CreateInput) journals.Request {
	offset := in.OffsetAccount
	if offset == "" {
		offset = s.kind.DefaultOffsetAccount()
	}
	amount := in.Amount.Round(2)
	control := journals.LineRequest{AccountCode: s.kind.ControlAccount(), Memo: in.Counterparty}
	other := journals.LineRequest{AccountCode: offset, Memo: in.Description}
	var lines []journals.LineRequest
	if s.kind == KindAP {
		other.Debit, control.Credit = amount, amount
		lines = []journals.LineRequest{other, control}
	} else {
		control.Debit, other.Credit = amount, amount
		lines = []journals.LineRequest{control, other}
	}
	source := s.kind.DocumentSource()
	description := in.Description
	if description == "" {
		description = fmt.Sprintf("%s %s %s", source, in.SourceID, in.Counterparty)
	}
	return journals.Request{
		TenantID:    in.TenantID,
		Date:        in.Date,
		Description: description,
		SourceType:  source,
		SourceID:    in.SourceID,
		TraceID:     strings.ToLower(string(source)) + ":" + in.SourceID,
		Lines:       lines,
		Actor:       in.Actor,
	}
}

// ApplyPayment applies a payment to the item identified by in.ItemID.
func (s *Service) ApplyPayment(ctx context.Context, in PaymentInput) (PaymentResult, error) {
	if in.ItemID == 0 {
		return PaymentResult{}, shared.Invalid("id", "is required")
	}
	if err := in.Validate(); err != nil {
		return PaymentResult{}, err
	}
	var result PaymentResult
	err := s.repo.WithTx(ctx, in.TenantID, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.GetForUpdate(ctx, in.TenantID, in.ItemID)
		if err != nil {
			return err
		}
		result, err = s.apply(ctx, tx, item, in)
		return err
	})
	if err != nil {
		return PaymentResult{}, err
	}
	return result, nil
}

// PayBySource applies a payment to the item opened by the given source document. A missing
// item is an IntegrityGap: the payment is refused and nothing is created in its place.
func (s *Service) PayBySource(ctx context.Context, sourceType, sourceID string, in PaymentInput) (PaymentResult, error) {
	if err := in.Validate(); err != nil {
		return PaymentResult{}, err
	}
	var result PaymentResult
	err := s.repo.WithTx(ctx, in.TenantID, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.FindBySourceForUpdate(ctx, in.TenantID, sourceType, sourceID)
		if errors.Is(err, shared.ErrItemNotFound) {
			gap := &shared.IntegrityGap{
				Entity: string(s.kind),
				Ref:    sourceType + ":" + sourceID,
				Detail: "no linked " + string(s.kind) + " item for payment",
			}
			s.logger.Error("subledger integrity gap",
				slog.String("tenant", in.TenantID.String()),
				slog.String("source_type", sourceType),
				slog.String("source_id", sourceID),
				slog.Any("error", gap))
			return gap
		}
		if err != nil {
			return err
		}
		in.ItemID = item.ID
		result, err = s.apply(ctx, tx, item, in)
		return err
	})
	if err != nil {
		return PaymentResult{}, err
	}
	return result, nil
}

func (s *Service) apply(ctx context.Context, tx TxRepository, item Item, in PaymentInput) (PaymentResult, error) {
	switch item.Status {
	case StatusVoid, StatusPaid:
		return PaymentResult{}, fmt.Errorf("%w: %s item %d is %s", shared.ErrInvalidStatus, s.kind, item.ID, item.Status)
	}
	amount := in.Amount.Round(2)
	if amount.GreaterThan(item.Balance()) {
		return PaymentResult{}, &shared.SubledgerOverflow{Amount: amount, Balance: item.Balance()}
	}

	app, err := tx.InsertApplication(ctx, in.TenantID, Application{
		ItemID:      item.ID,
		PaymentDate: dateOnly(in.PaymentDate),
		Amount:      amount,
		Method:      strings.ToLower(strings.TrimSpace(in.Method)),
	})
	if err != nil {
		return PaymentResult{}, err
	}
	item.AmountPaid = item.AmountPaid.Add(amount)
	item.Status = statusFor(item.Amount, item.AmountPaid)
	if err := tx.UpdatePaid(ctx, in.TenantID, item.ID, item.AmountPaid, item.Status); err != nil {
		return PaymentResult{}, err
	}

	if in.CreateJournal {
		req, err := s.paymentJournal(ctx, item, app, in)
		if err != nil {
			return PaymentResult{}, err
		}
		res, err := s.journals.Create(ctx, req)
		if err != nil {
			return PaymentResult{}, err
		}
		if res.IsDuplicate {
			return PaymentResult{}, fmt.Errorf("%w: %s", shared.ErrDuplicateTrace, req.TraceID)
		}
		if err := tx.SetApplicationJournal(ctx, in.TenantID, app.ID, res.Entry.ID); err != nil {
			return PaymentResult{}, err
		}
		app.JournalID = &res.Entry.ID
	}

	if err := s.events.Append(ctx, in.TenantID, outbox.PaymentApplied{
		Kind:          string(s.kind),
		ItemID:        item.ID,
		ApplicationID: app.ID,
		Amount:        amount,
		Method:        app.Method,
		PaymentDate:   app.PaymentDate,
		JournalID:     app.JournalID,
		Status:        string(item.Status),
	}); err != nil {
		return PaymentResult{}, err
	}
	return PaymentResult{Item: item, Application: app}, nil
}

func (s *Service) paymentJournal(ctx context.Context, item Item, app Application, in PaymentInput) (journals.Request, error) {
	cash, err := s.methods.AccountFor(ctx, in.TenantID, app.Method)
	if err != nil {
		return journals.Request{}, err
	}
	cashLine := journals.LineRequest{AccountCode: cash, Memo: app.Method}
	control := journals.LineRequest{AccountCode: s.kind.ControlAccount(), Memo: item.Counterparty}
	var lines []journals.LineRequest
	if s.kind == KindAP {
		control.Debit, cashLine.Credit = app.Amount, app.Amount
		lines = []journals.LineRequest{control, cashLine}
	} else {
		cashLine.Debit, control.Credit = app.Amount, app.Amount
		lines = []journals.LineRequest{cashLine, control}
	}
	trace := in.TraceID
	if trace == "" {
		trace = string(s.kind) + "-payment:" + strconv.FormatInt(app.ID, 10)
	}
	return journals.Request{
		TenantID:    in.TenantID,
		Date:        app.PaymentDate,
		Description: fmt.Sprintf("Payment %s %s %s", item.SourceType, item.SourceID, item.Counterparty),
		SourceType:  s.kind.PaymentSource(),
		SourceID:    item.SourceID,
		TraceID:     trace,
		Lines:       lines,
		Actor:       in.Actor,
	}, nil
}

// Void voids an item that has no payment applications. A linked document journal is voided with it.
func (s *Service) Void(ctx context.Context, in VoidInput) (Item, error) {
	if in.ItemID == 0 {
		return Item{}, shared.Invalid("id", "is required")
	}
	if strings.TrimSpace(in.Reason) == "" {
		return Item{}, shared.Invalid("reason", "is required")
	}
	var item Item
	err := s.repo.WithTx(ctx, in.TenantID, func(ctx context.Context, tx TxRepository) error {
		var err error
		item, err = tx.GetForUpdate(ctx, in.TenantID, in.ItemID)
		if err != nil {
			return err
		}
		if item.Status == StatusVoid {
			return fmt.Errorf("%w: %s item %d is already VOID", shared.ErrInvalidStatus, s.kind, item.ID)
		}
		n, err := tx.CountApplications(ctx, in.TenantID, item.ID)
		if err != nil {
			return err
		}
		if n > 0 {
			return shared.Invalid("id", "%s item %d has %d payment applications: reverse payments first", s.kind, item.ID, n)
		}
		now := s.now()
		if err := tx.MarkVoid(ctx, in.TenantID, item.ID, in.Reason, now); err != nil {
			return err
		}
		if item.JournalID != nil {
			if _, err := s.journals.VoidJournal(ctx, journals.VoidInput{
				TenantID: in.TenantID,
				EntryID:   *item.JournalID,
				Actor:     in.Actor,
				Reason:    in.Reason,
				Subledger: true,
			}); err != nil {
				return err
			}
		}
		item.Status = StatusVoid
		item.VoidReason = in.Reason
		item.VoidedAt = &now
		return s.events.Append(ctx, in.TenantID, outbox.SubledgerVoided{
			Kind:   string(s.kind),
			ItemID: item.ID,
			Reason: in.Reason,
			Actor:  in.Actor,
		})
	})
	if err != nil {
		return Item{}, err
	}
	return item, nil
}
