package periods

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/outbox"
)

type memoryRepo struct {
	mu      sync.Mutex
	nextID  int64
	periods map[int64]Period
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{periods: make(map[int64]Period)}
}

func (r *memoryRepo) Get(_ context.Context, tenantID uuid.UUID, id int64) (Period, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.periods[id]
	if !ok || p.TenantID != tenantID {
		return Period{}, shared.ErrPeriodNotFound
	}
	return p, nil
}

func (r *memoryRepo) List(_ context.Context, tenantID uuid.UUID) ([]Period, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Period
	for _, p := range r.periods {
		if p.TenantID == tenantID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (r *memoryRepo) Covering(_ context.Context, tenantID uuid.UUID, date time.Time) (*Period, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.periods {
		if p.TenantID == tenantID && p.Covers(date) {
			found := p
			return &found, nil
		}
	}
	return nil, nil
}

func (r *memoryRepo) Insert(_ context.Context, in CreateInput) (Period, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.periods {
		if p.TenantID != in.TenantID {
			continue
		}
		if p.Name == in.Name {
			return Period{}, shared.Invalid("period_name", "period name already exists")
		}
		if !dateOnly(in.StartDate).After(dateOnly(p.EndDate)) && !dateOnly(in.EndDate).Before(dateOnly(p.StartDate)) {
			return Period{}, shared.Invalid("start_date", "period overlaps existing period")
		}
	}
	r.nextID++
	p := Period{
		ID:        r.nextID,
		TenantID:  in.TenantID,
		Name:      in.Name,
		StartDate: dateOnly(in.StartDate),
		EndDate:   dateOnly(in.EndDate),
		Status:    StatusOpen,
	}
	r.periods[p.ID] = p
	return p, nil
}

func (r *memoryRepo) WithTx(ctx context.Context, _ uuid.UUID, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	saved := make(map[int64]Period, len(r.periods))
	for k, v := range r.periods {
		saved[k] = v
	}
	r.mu.Unlock()
	if err := fn(ctx, r); err != nil {
		r.mu.Lock()
		r.periods = saved
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *memoryRepo) GetForUpdate(ctx context.Context, tenantID uuid.UUID, id int64) (Period, error) {
	return r.Get(ctx, tenantID, id)
}

func (r *memoryRepo) update(id int64, fn func(*Period)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.periods[id]
	if !ok {
		return shared.ErrPeriodNotFound
	}
	fn(&p)
	r.periods[id] = p
	return nil
}

func (r *memoryRepo) MarkClosed(_ context.Context, _ uuid.UUID, id int64, rec CloseRecord) error {
	return r.update(id, func(p *Period) {
		p.Status = StatusClosed
		p.ClosedAt = &rec.ClosedAt
		p.ClosedBy = rec.ClosedBy
		p.ClosingJournalID = rec.ClosingJournalID
		p.ClosingSnapshot = rec.Snapshot
	})
}

func (r *memoryRepo) MarkLocked(_ context.Context, _ uuid.UUID, id int64, actor, reason string, at time.Time) error {
	return r.update(id, func(p *Period) {
		p.Status = StatusLocked
		p.LockedAt = &at
		p.LockedBy = actor
		p.LockReason = reason
	})
}

func (r *memoryRepo) MarkUnlocked(_ context.Context, _ uuid.UUID, id int64, actor, reason string, at time.Time) error {
	return r.update(id, func(p *Period) {
		p.Status = StatusClosed
		p.UnlockedAt = &at
		p.UnlockedBy = actor
		p.UnlockReason = reason
	})
}

// fixedBalances serves the same balances for every query and records the last one.
type fixedBalances struct {
	rows []reports.AccountBalance
	last reports.BalanceQuery
}

func (f *fixedBalances) Balances(_ context.Context, _ uuid.UUID, q reports.BalanceQuery) ([]reports.AccountBalance, error) {
	f.last = q
	return f.rows, nil
}

type recordingPoster struct {
	requests []journals.Request
	err      error
}

func (p *recordingPoster) Create(_ context.Context, req journals.Request) (journals.Result, error) {
	if p.err != nil {
		return journals.Result{}, p.err
	}
	if err := req.Validate(journals.DefaultTolerance); err != nil {
		return journals.Result{}, err
	}
	p.requests = append(p.requests, req)
	return journals.Result{Entry: journals.JournalEntry{ID: int64(100 + len(p.requests)), Number: "CLS-TEST"}}, nil
}

type recordingSink struct {
	events []outbox.Event
}

func (s *recordingSink) Append(_ context.Context, _ uuid.UUID, evt outbox.Event) error {
	s.events = append(s.events, evt)
	return nil
}

func balance(code, name string, typ accounts.AccountType, debit, credit int64) reports.AccountBalance {
	return reports.AccountBalance{
		Code:          code,
		Name:          name,
		Type:          typ,
		NormalBalance: typ.DefaultNormalBalance(),
		IsActive:      true,
		Debit:         decimal.NewFromInt(debit),
		Credit:        decimal.NewFromInt(credit),
	}
}

// scenarioBalances is a cash sale of 100000 with a cost of 40000.
func scenarioBalances() []reports.AccountBalance {
	return []reports.AccountBalance{
		balance(accounts.CodeCash, "Cash", accounts.AccountTypeAsset, 100000, 0),
		balance(accounts.CodeInventory, "Inventory", accounts.AccountTypeAsset, 0, 40000),
		balance(accounts.CodeSalesRevenue, "Sales Revenue", accounts.AccountTypeIncome, 0, 100000),
		balance(accounts.CodeCostOfGoodsSold, "Cost of Goods Sold", accounts.AccountTypeExpense, 40000, 0),
	}
}

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}
