package periods

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/outbox"
)

// JournalPoster posts the closing entry.
type JournalPoster interface {
	Create(ctx context.Context, req journals.Request) (journals.Result, error)
}

// EventSink receives outbox events inside the period transaction.
type EventSink interface {
	Append(ctx context.Context, tenantID uuid.UUID, evt outbox.Event) error
}

// Service drives the fiscal period lifecycle.
type Service struct {
	repo     Repository
	balances reports.BalanceSource
	journals JournalPoster
	events   EventSink
	logger   *slog.Logger
	now      func() time.Time
}

// NewService wires the period service.
func NewService(repo Repository, balances reports.BalanceSource, poster JournalPoster, events EventSink, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		balances: balances,
		journals: poster,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) Get(ctx context.Context, tenantID uuid.UUID, id int64) (Period, error) {
	return s.repo.Get(ctx, tenantID, id)
}

func (s *Service) List(ctx context.Context, tenantID uuid.UUID) ([]Period, error) {
	return s.repo.List(ctx, tenantID)
}

// FindByDate returns the period covering date.
func (s *Service) FindByDate(ctx context.Context, tenantID uuid.UUID, date time.Time) (Period, error) {
	p, err := s.repo.Covering(ctx, tenantID, dateOnly(date))
	if err != nil {
		return Period{}, err
	}
	if p == nil {
		return Period{}, shared.ErrPeriodNotFound
	}
	return *p, nil
}

// CreatePeriod inserts a new OPEN period. Overlaps and duplicate names are rejected by the store.
func (s *Service) CreatePeriod(ctx context.Context, in CreateInput) (Period, error) {
	if err := in.Validate(); err != nil {
		return Period{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	period, err := s.repo.Insert(ctx, in)
	if err != nil {
		return Period{}, err
	}
	s.logger.Info("fiscal period created",
		slog.String("tenant", in.TenantID.String()),
		slog.Int64("period_id", period.ID),
		slog.String("period_name", period.Name))
	return period, nil
}

// ClosePeriod snapshots every account as of the end date, optionally posts the closing entry
// into retained earnings and marks the period CLOSED, all in one transaction.
func (s *Service) ClosePeriod(ctx context.Context, in CloseInput) (Period, error) {
	if in.PeriodID == 0 {
		return Period{}, shared.Invalid("period_id", "is required")
	}
	var period Period
	err := s.repo.WithTx(ctx, in.TenantID, func(ctx context.Context, tx TxRepository) error {
		var err error
		period, err = tx.GetForUpdate(ctx, in.TenantID, in.PeriodID)
		if err != nil {
			return err
		}
		if !period.Status.CanTransition(StatusClosed, false) {
			return fmt.Errorf("%w: period %s is %s, only OPEN periods can be closed", shared.ErrInvalidStatus, period.Name, period.Status)
		}

		balances, err := s.balances.Balances(ctx, in.TenantID, reports.BalanceQuery{To: period.EndDate})
		if err != nil {
			return fmt.Errorf("periods: balances for %s: %w", period.Name, err)
		}
		snapshot := BuildSnapshot(period.Name, period.EndDate, balances)
		raw, err := json.Marshal(snapshot)
		if err != nil {
			return fmt.Errorf("periods: encode snapshot: %w", err)
		}

		var closingID *int64
		if in.CreateClosingEntries {
			if lines := ClosingLines(balances); len(lines) > 0 {
				res, err := s.journals.Create(ctx, journals.Request{
					TenantID:    in.TenantID,
					Date:        period.EndDate,
					Description: "Closing entries for " + period.Name,
					SourceType:  journals.SourceClosing,
					SourceID:    strconv.FormatInt(period.ID, 10),
					TraceID:     "closing:" + strconv.FormatInt(period.ID, 10),
					Lines:       lines,
					Actor:       in.Actor,
					System:      true,
				})
				if err != nil {
					return fmt.Errorf("periods: closing entry for %s: %w", period.Name, err)
				}
				id := res.Entry.ID
				closingID = &id
			}
		}

		now := s.now()
		rec := CloseRecord{ClosedBy: in.Actor, ClosedAt: now, ClosingJournalID: closingID, Snapshot: raw}
		if err := tx.MarkClosed(ctx, in.TenantID, period.ID, rec); err != nil {
			return err
		}
		period.Status = StatusClosed
		period.ClosedAt = &now
		period.ClosedBy = in.Actor
		period.ClosingJournalID = closingID
		period.ClosingSnapshot = raw
		return s.events.Append(ctx, in.TenantID, outbox.PeriodClosed{
			PeriodID:         period.ID,
			Name:             period.Name,
			ClosedBy:         in.Actor,
			ClosedAt:         now,
			ClosingJournalID: closingID,
			NetIncome:        snapshot.NetIncome,
		})
	})
	if err != nil {
		return Period{}, err
	}
	s.logger.Info("fiscal period closed",
		slog.String("tenant", in.TenantID.String()),
		slog.Int64("period_id", period.ID),
		slog.String("period_name", period.Name),
		slog.Bool("closing_entry", period.ClosingJournalID != nil))
	return period, nil
}

// LockPeriod makes a CLOSED period immutable.
func (s *Service) LockPeriod(ctx context.Context, in LockInput) (Period, error) {
	if in.PeriodID == 0 {
		return Period{}, shared.Invalid("period_id", "is required")
	}
	var period Period
	err := s.repo.WithTx(ctx, in.TenantID, func(ctx context.Context, tx TxRepository) error {
		var err error
		period, err = tx.GetForUpdate(ctx, in.TenantID, in.PeriodID)
		if err != nil {
			return err
		}
		if !period.Status.CanTransition(StatusLocked, false) {
			return fmt.Errorf("%w: period %s is %s, only CLOSED periods can be locked", shared.ErrInvalidStatus, period.Name, period.Status)
		}
		now := s.now()
		if err := tx.MarkLocked(ctx, in.TenantID, period.ID, in.Actor, in.Reason, now); err != nil {
			return err
		}
		period.Status = StatusLocked
		period.LockedAt = &now
		period.LockedBy = in.Actor
		period.LockReason = in.Reason
		return s.events.Append(ctx, in.TenantID, outbox.PeriodLocked{
			PeriodID: period.ID,
			Name:     period.Name,
			LockedBy: in.Actor,
			LockedAt: now,
			Reason:   in.Reason,
		})
	})
	if err != nil {
		return Period{}, err
	}
	return period, nil
}

// UnlockPeriod returns a LOCKED period to CLOSED. Administrators only, with a mandatory reason;
// the prior lock metadata travels in the audit event.
func (s *Service) UnlockPeriod(ctx context.Context, in UnlockInput) (Period, error) {
	if in.PeriodID == 0 {
		return Period{}, shared.Invalid("period_id", "is required")
	}
	if !in.IsAdmin {
		return Period{}, fmt.Errorf("%w: unlocking a period", shared.ErrForbidden)
	}
	if strings.TrimSpace(in.Reason) == "" {
		return Period{}, shared.Invalid("reason", "is required")
	}
	var period Period
	err := s.repo.WithTx(ctx, in.TenantID, func(ctx context.Context, tx TxRepository) error {
		var err error
		period, err = tx.GetForUpdate(ctx, in.TenantID, in.PeriodID)
		if err != nil {
			return err
		}
		if period.Status != StatusLocked || !period.Status.CanTransition(StatusClosed, in.IsAdmin) {
			return fmt.Errorf("%w: period %s is %s, only LOCKED periods can be unlocked", shared.ErrInvalidStatus, period.Name, period.Status)
		}
		now := s.now()
		if err := tx.MarkUnlocked(ctx, in.TenantID, period.ID, in.Actor, in.Reason, now); err != nil {
			return err
		}
		evt := outbox.PeriodUnlocked{
			PeriodID:        period.ID,
			Name:            period.Name,
			UnlockedBy:      in.Actor,
			UnlockedAt:      now,
			Reason:          in.Reason,
			PriorLockedBy:   period.LockedBy,
			PriorLockedAt:   period.LockedAt,
			PriorLockReason: period.LockReason,
		}
		period.Status = StatusClosed
		period.UnlockedAt = &now
		period.UnlockedBy = in.Actor
		period.UnlockReason = in.Reason
		return s.events.Append(ctx, in.TenantID, evt)
	})
	if err != nil {
		return Period{}, err
	}
	s.logger.Warn("fiscal period unlocked",
		slog.String("tenant", in.TenantID.String()),
		slog.Int64("period_id", period.ID),
		slog.String("actor", in.Actor),
		slog.String("reason", in.Reason))
	return period, nil
}
