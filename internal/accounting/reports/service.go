package reports

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/subledger"
)

const sourceClosing = "CLOSING"

// sharedBuildTimeout bounds a coalesced report build once it no longer follows its caller.
const sharedBuildTimeout = time.Minute

// AgingSource buckets the open items of one subledger.
type AgingSource interface {
	Aging(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (subledger.AgingReport, error)
}

// Service builds reports from committed journal lines and caches the results per tenant.
type Service struct {
	repo   Repository
	cache  *Cache
	ar     AgingSource
	ap     AgingSource
	logger *slog.Logger
	group  singleflight.Group
}

// NewService wires the report service. cache may be nil.
func NewService(repo Repository, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// WithAging attaches the receivable and payable subledgers.
func (s *Service) WithAging(ar, ap AgingSource) *Service {
	s.ar = ar
	s.ap = ap
	return s
}

// Invalidate drops every cached report of the tenant.
func (s *Service) Invalidate(ctx context.Context, tenantID uuid.UUID) error {
	return s.cache.Bump(ctx, tenantID)
}

// cached serves a report from the cache, coalescing concurrent builds of the same key. The
// shared build outlives the caller that started it; each caller stops waiting on its own ctx.
func cached[T any](ctx context.Context, s *Service, tenantID uuid.UUID, parts []string, build func(context.Context) (T, error)) (T, error) {
	var zero T
	key, err := s.cache.BuildKey(ctx, tenantID, parts...)
	if err != nil {
		s.logger.Warn("report cache unavailable", slog.Any("error", err))
		return build(ctx)
	}
	ch := s.group.DoChan(key, func() (any, error) {
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedBuildTimeout)
		defer cancel()
		var out T
		err := s.cache.FetchJSON(buildCtx, key, &out, func(ctx context.Context) (any, error) {
			return build(ctx)
		})
		return out, err
	})
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

func day(t time.Time) string { return dateOnly(t).Format(time.DateOnly) }

func checkWindow(from, to time.Time) error {
	if to.IsZero() {
		return shared.Invalid("to", "is required")
	}
	if !from.IsZero() && dateOnly(from).After(dateOnly(to)) {
		return shared.Invalid("from", "must not be after to")
	}
	return nil
}

// TrialBalance lists every account balance as of asOf.
func (s *Service) TrialBalance(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (TrialBalance, error) {
	if err := checkWindow(time.Time{}, asOf); err != nil {
		return TrialBalance{}, err
	}
	return cached(ctx, s, tenantID, []string{"tb", day(asOf)}, func(ctx context.Context) (TrialBalance, error) {
		balances, err := s.repo.Balances(ctx, tenantID, BalanceQuery{To: asOf})
		if err != nil {
			return TrialBalance{}, fmt.Errorf("reports: trial balance: %w", err)
		}
		return BuildTrialBalance(dateOnly(asOf), balances), nil
	})
}

// ProfitAndLoss reports income and expense movements inside the window, closing entries excluded.
func (s *Service) ProfitAndLoss(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (ProfitAndLoss, error) {
	if err := checkWindow(from, to); err != nil {
		return ProfitAndLoss{}, err
	}
	return cached(ctx, s, tenantID, []string{"pl", day(from), day(to)}, func(ctx context.Context) (ProfitAndLoss, error) {
		balances, err := s.repo.Balances(ctx, tenantID, BalanceQuery{From: from, To: to, ExcludeSourceTypes: []string{sourceClosing}})
		if err != nil {
			return ProfitAndLoss{}, fmt.Errorf("reports: profit and loss: %w", err)
		}
		return BuildProfitAndLoss(dateOnly(from), dateOnly(to), balances), nil
	})
}

// BalanceSheet reports positions as of asOf with unclosed earnings shown inside equity.
func (s *Service) BalanceSheet(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (BalanceSheet, error) {
	if err := checkWindow(time.Time{}, asOf); err != nil {
		return BalanceSheet{}, err
	}
	return cached(ctx, s, tenantID, []string{"bs", day(asOf)}, func(ctx context.Context) (BalanceSheet, error) {
		balances, err := s.repo.Balances(ctx, tenantID, BalanceQuery{To: asOf})
		if err != nil {
			return BalanceSheet{}, fmt.Errorf("reports: balance sheet: %w", err)
		}
		return BuildBalanceSheet(dateOnly(asOf), balances), nil
	})
}

// CashFlow compares the snapshots at the edges of the window, loaded concurrently.
func (s *Service) CashFlow(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (CashFlow, error) {
	if from.IsZero() {
		return CashFlow{}, shared.Invalid("from", "is required")
	}
	if err := checkWindow(from, to); err != nil {
		return CashFlow{}, err
	}
	return cached(ctx, s, tenantID, []string{"cf", day(from), day(to)}, func(ctx context.Context) (CashFlow, error) {
		var opening, closing []AccountBalance
		exclude := []string{sourceClosing}
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			opening, err = s.repo.Balances(gctx, tenantID, BalanceQuery{To: dateOnly(from).AddDate(0, 0, -1), ExcludeSourceTypes: exclude})
			return err
		})
		g.Go(func() error {
			var err error
			closing, err = s.repo.Balances(gctx, tenantID, BalanceQuery{To: to, ExcludeSourceTypes: exclude})
			return err
		})
		if err := g.Wait(); err != nil {
			return CashFlow{}, fmt.Errorf("reports: cash flow: %w", err)
		}
		cf := BuildCashFlow(dateOnly(from), dateOnly(to), opening, closing)
		if !cf.IsReconciled {
			s.logger.Warn("cash flow does not reconcile",
				slog.String("tenant", tenantID.String()),
				slog.String("net_change", cf.NetChange.StringFixed(2)),
				slog.String("cash_change", cf.CashChange.StringFixed(2)))
		}
		return cf, nil
	})
}

// AccountLedger lists the lines of one account with a running balance.
func (s *Service) AccountLedger(ctx context.Context, tenantID uuid.UUID, code string, from, to time.Time) (AccountLedger, error) {
	if code == "" {
		return AccountLedger{}, shared.Invalid("account_code", "is required")
	}
	if err := checkWindow(from, to); err != nil {
		return AccountLedger{}, err
	}
	return cached(ctx, s, tenantID, []string{"ledger", code, day(from), day(to)}, func(ctx context.Context) (AccountLedger, error) {
		balances, err := s.repo.Balances(ctx, tenantID, BalanceQuery{From: from, To: to})
		if err != nil {
			return AccountLedger{}, fmt.Errorf("reports: account ledger: %w", err)
		}
		for _, b := range balances {
			if b.Code != code {
				continue
			}
			lines, err := s.repo.Lines(ctx, tenantID, LineQuery{AccountCode: code, From: from, To: to})
			if err != nil {
				return AccountLedger{}, fmt.Errorf("reports: account ledger: %w", err)
			}
			return BuildAccountLedger(dateOnly(from), dateOnly(to), b, lines), nil
		}
		return AccountLedger{}, fmt.Errorf("%w: %s", shared.ErrAccountNotFound, code)
	})
}

// GeneralLedger is AccountLedger for every account that moved or carries an opening balance.
func (s *Service) GeneralLedger(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (GeneralLedger, error) {
	if err := checkWindow(from, to); err != nil {
		return GeneralLedger{}, err
	}
	return cached(ctx, s, tenantID, []string{"gl", day(from), day(to)}, func(ctx context.Context) (GeneralLedger, error) {
		balances, err := s.repo.Balances(ctx, tenantID, BalanceQuery{From: from, To: to})
		if err != nil {
			return GeneralLedger{}, fmt.Errorf("reports: general ledger: %w", err)
		}
		lines, err := s.repo.Lines(ctx, tenantID, LineQuery{From: from, To: to})
		if err != nil {
			return GeneralLedger{}, fmt.Errorf("reports: general ledger: %w", err)
		}
		return BuildGeneralLedger(dateOnly(from), dateOnly(to), balances, lines), nil
	})
}

// ArAging buckets open receivables. Subledger state is not versioned with journals, so it is never cached.
func (s *Service) ArAging(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (subledger.AgingReport, error) {
	return aging(ctx, s.ar, tenantID, asOf)
}

// ApAging buckets open payables.
func (s *Service) ApAging(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (subledger.AgingReport, error) {
	return aging(ctx, s.ap, tenantID, asOf)
}

func aging(ctx context.Context, src AgingSource, tenantID uuid.UUID, asOf time.Time) (subledger.AgingReport, error) {
	if src == nil {
		return subledger.AgingReport{}, fmt.Errorf("reports: aging source not configured")
	}
	if asOf.IsZero() {
		return subledger.AgingReport{}, shared.Invalid("as_of", "is required")
	}
	return src.Aging(ctx, tenantID, asOf)
}
