package periods

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/outbox"
)

var tenant = uuid.MustParse("0b3a4c8e-1f6d-4c1a-9a55-2d7c5e0f9b11")

type fixture struct {
	svc      *Service
	repo     *memoryRepo
	balances *fixedBalances
	poster   *recordingPoster
	sink     *recordingSink
}

func newFixture() fixture {
	f := fixture{
		repo:     newMemoryRepo(),
		balances: &fixedBalances{},
		poster:   &recordingPoster{},
		sink:     &recordingSink{},
	}
	f.svc = NewService(f.repo, f.balances, f.poster, f.sink, nil)
	f.svc.WithNow(func() time.Time { return time.Date(2025, 2, 3, 9, 0, 0, 0, time.UTC) })
	return f
}

func (f fixture) january(t *testing.T) Period {
	t.Helper()
	p, err := f.svc.CreatePeriod(context.Background(), CreateInput{
		TenantID: tenant, Name: "2025-01", StartDate: day("2025-01-01"), EndDate: day("2025-01-31"),
	})
	require.NoError(t, err)
	return p
}

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		admin    bool
		ok       bool
	}{
		{StatusOpen, StatusClosed, false, true},
		{StatusOpen, StatusLocked, false, false},
		{StatusClosed, StatusLocked, false, true},
		{StatusClosed, StatusOpen, true, false},
		{StatusLocked, StatusClosed, false, false},
		{StatusLocked, StatusClosed, true, true},
		{StatusLocked, StatusOpen, true, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.ok, tc.from.CanTransition(tc.to, tc.admin), "%s -> %s admin=%v", tc.from, tc.to, tc.admin)
	}
}

func TestEvaluate(t *testing.T) {
	open := &Period{Name: "2025-01", Status: StatusOpen}
	closed := &Period{Name: "2025-01", Status: StatusClosed}
	locked := &Period{Name: "2025-01", Status: StatusLocked}

	require.True(t, Evaluate(nil, false, false).Allowed)
	require.False(t, Evaluate(nil, false, true).Allowed)
	require.True(t, Evaluate(open, false, true).Allowed)
	require.False(t, Evaluate(closed, false, false).Allowed)
	require.True(t, Evaluate(closed, true, false).Allowed)
	require.False(t, Evaluate(locked, true, false).Allowed)
	require.Equal(t, locked, Evaluate(locked, true, false).Period)
}

func TestGateAdmit(t *testing.T) {
	f := newFixture()
	p := f.january(t)
	ctx := context.Background()

	gate := NewGate(f.repo, false)
	id, err := gate.Admit(ctx, tenant, day("2025-01-15"), false)
	require.NoError(t, err)
	require.Equal(t, p.ID, *id)

	id, err = gate.Admit(ctx, tenant, day("2025-03-01"), false)
	require.NoError(t, err)
	require.Nil(t, id)

	_, err = NewGate(f.repo, true).Admit(ctx, tenant, day("2025-03-01"), false)
	require.True(t, shared.IsPeriodViolation(err))

	_, err = f.svc.ClosePeriod(ctx, CloseInput{TenantID: tenant, PeriodID: p.ID, Actor: "alice"})
	require.NoError(t, err)
	_, err = gate.Admit(ctx, tenant, day("2025-01-31"), false)
	require.True(t, shared.IsPeriodViolation(err))
	require.ErrorContains(t, err, "period 2025-01 is CLOSED")
	_, err = gate.Admit(ctx, tenant, day("2025-01-31"), true)
	require.NoError(t, err)

	_, err = f.svc.LockPeriod(ctx, LockInput{TenantID: tenant, PeriodID: p.ID, Actor: "alice", Reason: "audit"})
	require.NoError(t, err)
	_, err = gate.Admit(ctx, tenant, day("2025-01-31"), true)
	require.ErrorContains(t, err, "LOCKED")
}

func TestCreatePeriodRejectsOverlapAndDuplicates(t *testing.T) {
	f := newFixture()
	f.january(t)
	ctx := context.Background()

	_, err := f.svc.CreatePeriod(ctx, CreateInput{TenantID: tenant, Name: "overlap", StartDate: day("2025-01-31"), EndDate: day("2025-02-28")})
	require.ErrorContains(t, err, "period overlaps existing period")

	_, err = f.svc.CreatePeriod(ctx, CreateInput{TenantID: tenant, Name: "2025-01", StartDate: day("2025-03-01"), EndDate: day("2025-03-31")})
	require.ErrorContains(t, err, "period name already exists")

	_, err = f.svc.CreatePeriod(ctx, CreateInput{TenantID: tenant, Name: "bad", StartDate: day("2025-04-30"), EndDate: day("2025-04-01")})
	require.True(t, shared.IsValidation(err))

	feb, err := f.svc.CreatePeriod(ctx, CreateInput{TenantID: tenant, Name: "2025-02", StartDate: day("2025-02-01"), EndDate: day("2025-02-28")})
	require.NoError(t, err)
	require.Equal(t, StatusOpen, feb.Status)

	found, err := f.svc.FindByDate(ctx, tenant, day("2025-02-14"))
	require.NoError(t, err)
	require.Equal(t, feb.ID, found.ID)
	_, err = f.svc.FindByDate(ctx, tenant, day("2026-01-01"))
	require.ErrorIs(t, err, shared.ErrPeriodNotFound)
}

func TestClosePeriodPostsNetIncomeToRetainedEarnings(t *testing.T) {
	f := newFixture()
	p := f.january(t)
	f.balances.rows = scenarioBalances()
	ctx := context.Background()

	closed, err := f.svc.ClosePeriod(ctx, CloseInput{TenantID: tenant, PeriodID: p.ID, Actor: "alice", CreateClosingEntries: true})
	require.NoError(t, err)
	require.Equal(t, StatusClosed, closed.Status)
	require.NotNil(t, closed.ClosingJournalID)
	require.True(t, f.balances.last.To.Equal(p.EndDate))
	require.Empty(t, f.balances.last.ExcludeSourceTypes)

	require.Len(t, f.poster.requests, 1)
	req := f.poster.requests[0]
	require.Equal(t, journals.SourceClosing, req.SourceType)
	require.True(t, req.System)
	require.True(t, req.Date.Equal(p.EndDate))
	byCode := map[string]journals.LineRequest{}
	for _, l := range req.Lines {
		byCode[l.AccountCode] = l
	}
	require.True(t, byCode[accounts.CodeSalesRevenue].Debit.Equal(decimal.NewFromInt(100000)))
	require.True(t, byCode[accounts.CodeCostOfGoodsSold].Credit.Equal(decimal.NewFromInt(40000)))
	require.True(t, byCode[accounts.CodeRetainedEarnings].Credit.Equal(decimal.NewFromInt(60000)))

	var snap Snapshot
	require.NoError(t, json.Unmarshal(closed.ClosingSnapshot, &snap))
	require.True(t, snap.NetIncome.Equal(decimal.NewFromInt(60000)))
	require.Len(t, snap.Accounts, 4)

	require.Len(t, f.sink.events, 1)
	evt := f.sink.events[0].(outbox.PeriodClosed)
	require.Equal(t, p.ID, evt.PeriodID)
	require.True(t, evt.NetIncome.Equal(decimal.NewFromInt(60000)))

	_, err = f.svc.ClosePeriod(ctx, CloseInput{TenantID: tenant, PeriodID: p.ID, Actor: "alice"})
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestClosePeriodWithoutClosingEntries(t *testing.T) {
	f := newFixture()
	p := f.january(t)
	f.balances.rows = scenarioBalances()

	closed, err := f.svc.ClosePeriod(context.Background(), CloseInput{TenantID: tenant, PeriodID: p.ID, Actor: "alice"})
	require.NoError(t, err)
	require.Nil(t, closed.ClosingJournalID)
	require.Empty(t, f.poster.requests)
	require.NotEmpty(t, closed.ClosingSnapshot)
}

func TestClosePeriodRollsBackWhenClosingEntryFails(t *testing.T) {
	f := newFixture()
	p := f.january(t)
	f.balances.rows = scenarioBalances()
	f.poster.err = errors.New("boom")

	_, err := f.svc.ClosePeriod(context.Background(), CloseInput{TenantID: tenant, PeriodID: p.ID, CreateClosingEntries: true})
	require.Error(t, err)
	got, err := f.svc.Get(context.Background(), tenant, p.ID)
	require.NoError(t, err)
	require.Equal(t, StatusOpen, got.Status)
	require.Empty(t, f.sink.events)
}

func TestLockAndUnlock(t *testing.T) {
	f := newFixture()
	p := f.january(t)
	ctx := context.Background()

	_, err := f.svc.LockPeriod(ctx, LockInput{TenantID: tenant, PeriodID: p.ID, Actor: "alice"})
	require.ErrorIs(t, err, shared.ErrInvalidStatus)

	_, err = f.svc.ClosePeriod(ctx, CloseInput{TenantID: tenant, PeriodID: p.ID, Actor: "alice"})
	require.NoError(t, err)
	locked, err := f.svc.LockPeriod(ctx, LockInput{TenantID: tenant, PeriodID: p.ID, Actor: "alice", Reason: "filed"})
	require.NoError(t, err)
	require.Equal(t, StatusLocked, locked.Status)

	_, err = f.svc.UnlockPeriod(ctx, UnlockInput{TenantID: tenant, PeriodID: p.ID, Actor: "bob", Reason: "restatement"})
	require.ErrorIs(t, err, shared.ErrForbidden)
	_, err = f.svc.UnlockPeriod(ctx, UnlockInput{TenantID: tenant, PeriodID: p.ID, Actor: "bob", IsAdmin: true})
	require.True(t, shared.IsValidation(err))

	unlocked, err := f.svc.UnlockPeriod(ctx, UnlockInput{TenantID: tenant, PeriodID: p.ID, Actor: "bob", Reason: "restatement", IsAdmin: true})
	require.NoError(t, err)
	require.Equal(t, StatusClosed, unlocked.Status)

	evt := f.sink.events[len(f.sink.events)-1].(outbox.PeriodUnlocked)
	require.Equal(t, "bob", evt.UnlockedBy)
	require.Equal(t, "alice", evt.PriorLockedBy)
	require.Equal(t, "filed", evt.PriorLockReason)
	require.NotNil(t, evt.PriorLockedAt)

	_, err = f.svc.UnlockPeriod(ctx, UnlockInput{TenantID: tenant, PeriodID: p.ID, Actor: "bob", Reason: "again", IsAdmin: true})
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestClosingLinesSkipsZeroBalancesAndHandlesLoss(t *testing.T) {
	require.Nil(t, ClosingLines([]reports.AccountBalance{
		balance(accounts.CodeSalesRevenue, "Sales Revenue", accounts.AccountTypeIncome, 500, 500),
		balance(accounts.CodeCash, "Cash", accounts.AccountTypeAsset, 500, 0),
	}))

	lines := ClosingLines([]reports.AccountBalance{
		balance(accounts.CodeSalesRevenue, "Sales Revenue", accounts.AccountTypeIncome, 0, 1000),
		balance(accounts.CodeRent, "Rent", accounts.AccountTypeExpense, 2500, 0),
		balance(accounts.CodeCash, "Cash", accounts.AccountTypeAsset, 1000, 2500),
	})
	require.Len(t, lines, 3)
	require.Equal(t, accounts.CodeRetainedEarnings, lines[2].AccountCode)
	require.True(t, lines[2].Debit.Equal(decimal.NewFromInt(1500)))
}
