package periods

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Decision is the outcome of a posting date check.
type Decision struct {
	Allowed bool    `json:"allowed"`
	Reason  string  `json:"reason,omitempty"`
	Period  *Period `json:"period,omitempty"`
}

// Evaluate decides whether a posting may land in p. A nil p means no period covers the date;
// strict turns that into a rejection.
func Evaluate(p *Period, system, strict bool) Decision {
	if p == nil {
		if strict {
			return Decision{Reason: "no fiscal period covers the date"}
		}
		return Decision{Allowed: true}
	}
	switch p.Status {
	case StatusOpen:
		return Decision{Allowed: true, Period: p}
	case StatusClosed:
		if system {
			return Decision{Allowed: true, Period: p}
		}
		return Decision{Reason: "closed periods accept system postings only", Period: p}
	case StatusLocked:
		return Decision{Reason: "locked periods accept no postings", Period: p}
	default:
		return Decision{Reason: fmt.Sprintf("unknown period status %q", p.Status), Period: p}
	}
}

// Gate checks posting dates against the tenant's fiscal periods.
type Gate struct {
	repo   Repository
	strict bool
}

// NewGate builds a Gate. strict rejects dates that no period covers.
func NewGate(repo Repository, strict bool) *Gate {
	return &Gate{repo: repo, strict: strict}
}

// CanPostToDate reports whether a posting dated date is accepted.
func (g *Gate) CanPostToDate(ctx context.Context, tenantID uuid.UUID, date time.Time, system bool) (Decision, error) {
	period, err := g.repo.Covering(ctx, tenantID, dateOnly(date))
	if err != nil {
		return Decision{}, fmt.Errorf("periods: lookup %s: %w", date.Format(time.DateOnly), err)
	}
	return Evaluate(period, system, g.strict), nil
}

// Admit returns the id of the period receiving the posting, nil when none covers it,
// or a PeriodViolation.
func (g *Gate) Admit(ctx context.Context, tenantID uuid.UUID, date time.Time, system bool) (*int64, error) {
	decision, err := g.CanPostToDate(ctx, tenantID, date, system)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		violation := &shared.PeriodViolation{Message: decision.Reason}
		if decision.Period != nil {
			violation.PeriodName = decision.Period.Name
			violation.Status = string(decision.Period.Status)
		}
		return nil, violation
	}
	if decision.Period == nil {
		return nil, nil
	}
	id := decision.Period.ID
	return &id, nil
}
