package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/subledger"
)

const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"

	CheckTrialBalance = "trial_balance"
	CheckARControl    = "ar_control"
	CheckAPControl    = "ap_control"
)

var integrityTolerance = decimal.RequireFromString("0.01")

// TenantLister enumerates provisioned tenants.
type TenantLister interface {
	ListTenants(ctx context.Context) ([]uuid.UUID, error)
}

// PoolTenants reads the tenant registry maintained by chart seeding.
type PoolTenants struct {
	Pool *pgxpool.Pool
}

// ListTenants implements TenantLister.
func (p PoolTenants) ListTenants(ctx context.Context) ([]uuid.UUID, error) {
	if p.Pool == nil {
		return nil, errors.New("gl integrity: pool not configured")
	}
	rows, err := p.Pool.Query(ctx, `SELECT tenant_id FROM ledger_tenants ORDER BY tenant_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// IntegrityReports is the report surface the check reconciles.
type IntegrityReports interface {
	TrialBalance(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (reports.TrialBalance, error)
	ArAging(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (subledger.AgingReport, error)
	ApAging(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (subledger.AgingReport, error)
}

// Finding is one failed reconciliation.
type Finding struct {
	TenantID uuid.UUID       `json:"tenant_id"`
	Check    string          `json:"check"`
	Severity string          `json:"severity"`
	Expected decimal.Decimal `json:"expected"`
	Actual   decimal.Decimal `json:"actual"`
}

// GLIntegrityJob verifies that every tenant's trial balance balances and that the AR and AP
// control accounts agree with their subledgers.
type GLIntegrityJob struct {
	Tenants TenantLister
	Reports IntegrityReports
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewGLIntegrityJob initialises the integrity handler.
func NewGLIntegrityJob(tenants TenantLister, reps IntegrityReports, logger *slog.Logger, metrics *jobmetrics.Metrics) *GLIntegrityJob {
	return &GLIntegrityJob{
		Tenants: tenants,
		Reports: reps,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskGLIntegrity tasks.
func (j *GLIntegrityJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Reports == nil {
		return errors.New("gl integrity: handler not configured")
	}
	var payload GLIntegrityPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("gl integrity: %v: %w", err, asynq.SkipRetry)
		}
	}
	asOf := j.now()
	if payload.AsOf != "" {
		parsed, err := time.Parse(time.DateOnly, payload.AsOf)
		if err != nil {
			return fmt.Errorf("gl integrity: as_of: %v: %w", err, asynq.SkipRetry)
		}
		asOf = parsed
	}

	tracker := j.Metrics.Track(TaskGLIntegrity)
	defer func() {
		err = tracker.End(err)
	}()

	var tenants []uuid.UUID
	if payload.TenantID != nil {
		tenants = []uuid.UUID{*payload.TenantID}
	} else {
		if j.Tenants == nil {
			return errors.New("gl integrity: tenant lister not configured")
		}
		tenants, err = j.Tenants.ListTenants(ctx)
		if err != nil {
			return fmt.Errorf("gl integrity: list tenants: %w", err)
		}
	}

	start := j.now()
	findings, err := j.Run(ctx, tenants, asOf)
	j.logger().Info("gl integrity check completed",
		slog.Int("tenants", len(tenants)),
		slog.Int("findings", len(findings)),
		slog.String("as_of", asOf.Format(time.DateOnly)),
		slog.Duration("duration", j.now().Sub(start)),
	)
	return err
}

// Run checks each tenant and reports every finding. A tenant whose reports cannot be built
// does not stop the others; the errors are joined.
func (j *GLIntegrityJob) Run(ctx context.Context, tenants []uuid.UUID, asOf time.Time) ([]Finding, error) {
	var (
		all  []Finding
		errs []error
	)
	for _, tenantID := range tenants {
		if err := ctx.Err(); err != nil {
			return all, err
		}
		findings, err := j.Check(ctx, tenantID, asOf)
		if err != nil {
			j.logger().Error("gl integrity check failed", slog.String("tenant_id", tenantID.String()), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("tenant %s: %w", tenantID, err))
			continue
		}
		for _, f := range findings {
			j.logger().Error("ledger integrity anomaly",
				slog.String("tenant_id", f.TenantID.String()),
				slog.String("check", f.Check),
				slog.String("severity", f.Severity),
				slog.String("expected", f.Expected.StringFixed(2)),
				slog.String("actual", f.Actual.StringFixed(2)),
			)
			j.Metrics.AddAnomalies(f.Severity, f.TenantID, 1)
		}
		all = append(all, findings...)
	}
	return all, errors.Join(errs...)
}

// Check reconciles a single tenant as of the given date.
func (j *GLIntegrityJob) Check(ctx context.Context, tenantID uuid.UUID, asOf time.Time) ([]Finding, error) {
	tb, err := j.Reports.TrialBalance(ctx, tenantID, asOf)
	if err != nil {
		return nil, fmt.Errorf("trial balance: %w", err)
	}
	arAging, err := j.Reports.ArAging(ctx, tenantID, asOf)
	if err != nil {
		return nil, fmt.Errorf("ar aging: %w", err)
	}
	apAging, err := j.Reports.ApAging(ctx, tenantID, asOf)
	if err != nil {
		return nil, fmt.Errorf("ap aging: %w", err)
	}

	var findings []Finding
	if !tb.IsBalanced {
		findings = append(findings, Finding{
			TenantID: tenantID, Check: CheckTrialBalance, Severity: SeverityCritical,
			Expected: tb.TotalDebit, Actual: tb.TotalCredit,
		})
	}
	control := controlBalances(tb)
	if gl := control[accounts.CodeAccountsReceivable]; outOfTolerance(gl, arAging.Totals.Total) {
		findings = append(findings, Finding{
			TenantID: tenantID, Check: CheckARControl, Severity: SeverityWarning,
			Expected: gl, Actual: arAging.Totals.Total,
		})
	}
	if gl := control[accounts.CodeAccountsPayable]; outOfTolerance(gl, apAging.Totals.Total) {
		findings = append(findings, Finding{
			TenantID: tenantID, Check: CheckAPControl, Severity: SeverityWarning,
			Expected: gl, Actual: apAging.Totals.Total,
		})
	}
	return findings, nil
}

func controlBalances(tb reports.TrialBalance) map[string]decimal.Decimal {
	out := map[string]decimal.Decimal{}
	for _, group := range tb.Groups {
		for _, acc := range group.Accounts {
			if acc.Code == accounts.CodeAccountsReceivable || acc.Code == accounts.CodeAccountsPayable {
				out[acc.Code] = acc.Balance
			}
		}
	}
	return out
}

func outOfTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().GreaterThanOrEqual(integrityTolerance)
}

func (j *GLIntegrityJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *GLIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
