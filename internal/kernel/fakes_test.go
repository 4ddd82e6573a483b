package kernel

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/subledger"
)

type stubJournals struct {
	nextID   int64
	byTrace  map[string]journals.JournalEntry
	requests []journals.Request
	createFn func(journals.Request) error
}

func newStubJournals() *stubJournals {
	return &stubJournals{nextID: 1, byTrace: map[string]journals.JournalEntry{}}
}

func (s *stubJournals) post(req journals.Request) journals.JournalEntry {
	entry := journals.JournalEntry{
		ID:         s.nextID,
		TenantID:   req.TenantID,
		Number:     fmt.Sprintf("%s-202502-%05d", req.SourceType.Prefix(), s.nextID),
		Date:       req.Date,
		SourceType: req.SourceType,
		SourceID:   req.SourceID,
		TraceID:    req.TraceID,
		Status:     journals.JournalStatusPosted,
		CreatedBy:  req.Actor,
	}
	s.nextID++
	s.byTrace[req.TraceID] = entry
	return entry
}

func (s *stubJournals) Create(_ context.Context, req journals.Request) (journals.Result, error) {
	if existing, ok := s.byTrace[req.TraceID]; ok {
		return journals.Result{Entry: existing, IsDuplicate: true}, nil
	}
	if err := req.Validate(journals.DefaultTolerance); err != nil {
		return journals.Result{}, err
	}
	if s.createFn != nil {
		if err := s.createFn(req); err != nil {
			return journals.Result{}, err
		}
	}
	s.requests = append(s.requests, req)
	return journals.Result{Entry: s.post(req)}, nil
}

func (s *stubJournals) Get(_ context.Context, _ uuid.UUID, id int64) (journals.JournalEntry, error) {
	for _, e := range s.byTrace {
		if e.ID == id {
			return e, nil
		}
	}
	return journals.JournalEntry{}, shared.ErrJournalNotFound
}

func (s *stubJournals) List(_ context.Context, tenantID uuid.UUID, filter journals.ListFilter) ([]journals.JournalEntry, error) {
	var out []journals.JournalEntry
	for _, e := range s.byTrace {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *stubJournals) GetByTrace(_ context.Context, _ uuid.UUID, trace string) (journals.JournalEntry, error) {
	if e, ok := s.byTrace[trace]; ok {
		return e, nil
	}
	return journals.JournalEntry{}, shared.ErrJournalNotFound
}

func (s *stubJournals) VoidJournal(_ context.Context, in journals.VoidInput) (journals.Result, error) {
	if in.EntryID == 0 {
		return journals.Result{}, shared.Invalid("journal_id", "is required")
	}
	return journals.Result{Entry: s.post(journals.Request{SourceType: journals.SourceVoid, TraceID: fmt.Sprintf("void:%d", in.EntryID), Actor: in.Actor})}, nil
}

func (s *stubJournals) ReverseJournal(_ context.Context, in journals.ReverseInput) (journals.Result, error) {
	if _, ok := s.byTrace[fmt.Sprintf("reversal:%d", in.EntryID)]; ok {
		return journals.Result{}, shared.ErrAlreadyReversed
	}
	return journals.Result{Entry: s.post(journals.Request{SourceType: journals.SourceReversal, Date: in.ReversalDate, TraceID: fmt.Sprintf("reversal:%d", in.EntryID), Actor: in.Actor})}, nil
}

// stubLedger plays both subledger sides. Payments post through the journal stub so traces are shared.
type stubLedger struct {
	kind      subledger.Kind
	journals  *stubJournals
	items     []subledger.CreateInput
	payments  []subledger.PaymentInput
	voids     []subledger.VoidInput
	createErr error
	payErr    error
	// onPay runs before payErr is returned.
	onPay func(subledger.PaymentInput)
}

func (s *stubLedger) create(in subledger.CreateInput) (subledger.Item, error) {
	if s.createErr != nil {
		return subledger.Item{}, s.createErr
	}
	if err := in.Validate(); err != nil {
		return subledger.Item{}, err
	}
	s.items = append(s.items, in)
	return subledger.Item{
		ID:           int64(len(s.items)),
		TenantID:     in.TenantID,
		Kind:         s.kind,
		Counterparty: in.Counterparty,
		SourceType:   in.SourceType,
		SourceID:     in.SourceID,
		Amount:       in.Amount,
		Status:       subledger.StatusOpen,
		DueDate:      in.DueDate,
		JournalID:    in.JournalID,
	}, nil
}

func (s *stubLedger) pay(in subledger.PaymentInput) (subledger.PaymentResult, error) {
	if s.onPay != nil {
		s.onPay(in)
	}
	if s.payErr != nil {
		return subledger.PaymentResult{}, s.payErr
	}
	if err := in.Validate(); err != nil {
		return subledger.PaymentResult{}, err
	}
	s.payments = append(s.payments, in)
	app := subledger.Application{ID: int64(len(s.payments)), ItemID: in.ItemID, Amount: in.Amount, Method: in.Method}
	if in.CreateJournal {
		entry := s.journals.post(journals.Request{TenantID: in.TenantID, SourceType: s.kind.PaymentSource(), TraceID: in.TraceID, Actor: in.Actor})
		app.JournalID = &entry.ID
	}
	item := subledger.Item{ID: max(in.ItemID, 1), Kind: s.kind, Amount: in.Amount, AmountPaid: in.Amount, Status: subledger.StatusPaid}
	return subledger.PaymentResult{Item: item, Application: app}, nil
}

func (s *stubLedger) void(in subledger.VoidInput) (subledger.Item, error) {
	if in.Reason == "" {
		return subledger.Item{}, shared.Invalid("reason", "is required")
	}
	s.voids = append(s.voids, in)
	return subledger.Item{ID: in.ItemID, Status: subledger.StatusVoid}, nil
}

type stubReceivables struct{ *stubLedger }

func (s stubReceivables) CreateReceivable(_ context.Context, in subledger.CreateInput) (subledger.Item, error) {
	return s.create(in)
}

func (s stubReceivables) ApplyPayment(_ context.Context, in subledger.PaymentInput) (subledger.PaymentResult, error) {
	return s.pay(in)
}

func (s stubReceivables) ReceiveInvoicePayment(_ context.Context, _ string, in subledger.PaymentInput) (subledger.PaymentResult, error) {
	return s.pay(in)
}

func (s stubReceivables) VoidReceivable(_ context.Context, in subledger.VoidInput) (subledger.Item, error) {
	return s.void(in)
}

type stubPayables struct{ *stubLedger }

func (s stubPayables) CreatePayable(_ context.Context, in subledger.CreateInput) (subledger.Item, error) {
	return s.create(in)
}

func (s stubPayables) ApplyPayment(_ context.Context, in subledger.PaymentInput) (subledger.PaymentResult, error) {
	return s.pay(in)
}

func (s stubPayables) PayBill(_ context.Context, _ string, in subledger.PaymentInput) (subledger.PaymentResult, error) {
	return s.pay(in)
}

func (s stubPayables) VoidPayable(_ context.Context, in subledger.VoidInput) (subledger.Item, error) {
	return s.void(in)
}

type stubPeriods struct {
	err  error
	last any
}

func (s *stubPeriods) result(in any, p periods.Period) (periods.Period, error) {
	s.last = in
	if s.err != nil {
		return periods.Period{}, s.err
	}
	return p, nil
}

func (s *stubPeriods) CreatePeriod(_ context.Context, in periods.CreateInput) (periods.Period, error) {
	return s.result(in, periods.Period{ID: 7, Name: in.Name, StartDate: in.StartDate, EndDate: in.EndDate, Status: periods.StatusOpen})
}

func (s *stubPeriods) ClosePeriod(_ context.Context, in periods.CloseInput) (periods.Period, error) {
	return s.result(in, periods.Period{ID: in.PeriodID, Status: periods.StatusClosed})
}

func (s *stubPeriods) LockPeriod(_ context.Context, in periods.LockInput) (periods.Period, error) {
	return s.result(in, periods.Period{ID: in.PeriodID, Status: periods.StatusLocked})
}

func (s *stubPeriods) UnlockPeriod(_ context.Context, in periods.UnlockInput) (periods.Period, error) {
	return s.result(in, periods.Period{ID: in.PeriodID, Status: periods.StatusClosed})
}

func (s *stubPeriods) List(context.Context, uuid.UUID) ([]periods.Period, error) {
	return nil, s.err
}

type stubReports struct {
	invalidated int
}

func (s *stubReports) TrialBalance(_ context.Context, _ uuid.UUID, asOf time.Time) (reports.TrialBalance, error) {
	return reports.TrialBalance{AsOf: asOf}, nil
}

func (s *stubReports) BalanceSheet(_ context.Context, _ uuid.UUID, asOf time.Time) (reports.BalanceSheet, error) {
	return reports.BalanceSheet{AsOf: asOf}, nil
}

func (s *stubReports) ProfitAndLoss(context.Context, uuid.UUID, time.Time, time.Time) (reports.ProfitAndLoss, error) {
	return reports.ProfitAndLoss{}, nil
}

func (s *stubReports) CashFlow(context.Context, uuid.UUID, time.Time, time.Time) (reports.CashFlow, error) {
	return reports.CashFlow{}, nil
}

func (s *stubReports) GeneralLedger(context.Context, uuid.UUID, time.Time, time.Time) (reports.GeneralLedger, error) {
	return reports.GeneralLedger{}, nil
}

func (s *stubReports) AccountLedger(context.Context, uuid.UUID, string, time.Time, time.Time) (reports.AccountLedger, error) {
	return reports.AccountLedger{}, nil
}

func (s *stubReports) ArAging(_ context.Context, _ uuid.UUID, asOf time.Time) (subledger.AgingReport, error) {
	return subledger.AgingReport{Kind: subledger.KindAR, AsOf: asOf}, nil
}

func (s *stubReports) ApAging(_ context.Context, _ uuid.UUID, asOf time.Time) (subledger.AgingReport, error) {
	return subledger.AgingReport{Kind: subledger.KindAP, AsOf: asOf}, nil
}

func (s *stubReports) Invalidate(context.Context, uuid.UUID) error {
	s.invalidated++
	return nil
}

type defaultMethods struct{}

func (defaultMethods) AccountFor(_ context.Context, _ uuid.UUID, method string) (string, error) {
	if code, ok := mappings.DefaultMethodAccounts[mappings.NormalizeMethod(method)]; ok {
		return code, nil
	}
	return "", shared.Invalid("method", "unknown payment method %q", method)
}

type countingSeeder struct{ calls int }

func (s *countingSeeder) Seed(context.Context, uuid.UUID) (int, error) {
	s.calls++
	if s.calls > 1 {
		return 0, nil
	}
	return 24, nil
}

// inlineWork runs fn directly and records how many units of work were opened.
type inlineWork struct{ units int }

func (w *inlineWork) Do(ctx context.Context, _ uuid.UUID, fn func(context.Context) error) error {
	w.units++
	return fn(ctx)
}

type harness struct {
	kernel   *Kernel
	journals *stubJournals
	ar       *stubLedger
	ap       *stubLedger
	periods  *stubPeriods
	reports  *stubReports
	work     *inlineWork
	seeder   *countingSeeder
}

func newHarness(metrics *Metrics) *harness {
	j := newStubJournals()
	h := &harness{
		journals: j,
		ar:       &stubLedger{kind: subledger.KindAR, journals: j},
		ap:       &stubLedger{kind: subledger.KindAP, journals: j},
		periods:  &stubPeriods{},
		reports:  &stubReports{},
		work:     &inlineWork{},
		seeder:   &countingSeeder{},
	}
	h.kernel = New(Deps{
		Journals:    j,
		Periods:     h.periods,
		Receivables: stubReceivables{h.ar},
		Payables:    stubPayables{h.ap},
		Reports:     h.reports,
		Methods:     defaultMethods{},
		Chart:       h.seeder,
		Work:        h.work,
		Metrics:     metrics,
	})
	return h
}

func day(d int) time.Time {
	return time.Date(2025, time.February, d, 0, 0, 0, 0, time.UTC)
}
