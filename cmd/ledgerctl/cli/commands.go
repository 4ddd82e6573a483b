// Package cli implements the ledgerctl subcommands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/kernel"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

// Globals are flags shared by every command.
type Globals struct {
	Locale string `help:"Locale used to format amounts." default:"en-US"`
	JSON   bool   `help:"Print JSON instead of tables."`
}

// Commands is the ledgerctl command tree.
type Commands struct {
	Globals

	Migrate   MigrateCmd   `cmd:"" help:"Apply or roll back the embedded schema."`
	Tenant    TenantCmd    `cmd:"" help:"Tenant administration."`
	Report    ReportCmd    `cmd:"" help:"Print a financial report."`
	Integrity IntegrityCmd `cmd:"" help:"Run the GL integrity check inline."`
	Jobs      JobsCmd      `cmd:"" help:"Inspect and trigger background jobs."`
}

// Env carries process wide dependencies resolved once in main.
type Env struct {
	Config *app.Config
	Logger *slog.Logger
}

func (e *Env) pool(ctx context.Context) (*pgxpool.Pool, error) {
	return db.New(ctx, e.Config.PGDSN, db.PoolOptions{MaxConns: 4, AppName: "ledgerctl"})
}

func (e *Env) kernel(pool *pgxpool.Pool) (*kernel.Kernel, error) {
	tolerance, err := e.Config.Tolerance()
	if err != nil {
		return nil, err
	}
	return kernel.NewBuilder(pool).
		WithLogger(e.Logger).
		WithRequirePeriod(e.Config.LedgerRequirePeriod).
		WithTolerance(tolerance).
		Build(), nil
}

func parseDay(field, value string) (time.Time, error) {
	if value == "" {
		return time.Now().UTC().Truncate(24 * time.Hour), nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: expected YYYY-MM-DD, got %q", field, value)
	}
	return t, nil
}

func parseTenants(values []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("tenant: %q is not a uuid", v)
		}
		out = append(out, id)
	}
	return out, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// MigrateCmd runs the embedded migrations.
type MigrateCmd struct {
	Steps int `help:"Number of versions to apply; negative rolls back, zero migrates fully up." default:"0"`
}

func (cmd *MigrateCmd) Run(kctx *kong.Context, env *Env) error {
	version, err := db.Migrate(env.Config.PGDSN, cmd.Steps)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(kctx.Stdout, "schema at version %d\n", version)
	return nil
}

// TenantCmd groups tenant subcommands.
type TenantCmd struct {
	Provision TenantProvisionCmd `cmd:"" help:"Seed the default chart of accounts for a tenant."`
}

// TenantProvisionCmd seeds a tenant chart.
type TenantProvisionCmd struct {
	Tenant uuid.UUID `arg:"" help:"Tenant id."`
}

func (cmd *TenantProvisionCmd) Run(ctx context.Context, kctx *kong.Context, env *Env) error {
	pool, err := env.pool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()
	ledger, err := env.kernel(pool)
	if err != nil {
		return err
	}
	inserted, err := ledger.ProvisionTenant(ctx, cmd.Tenant)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(kctx.Stdout, "tenant %s: %d accounts created\n", cmd.Tenant, inserted)
	return nil
}

// ReportCmd prints one report for a tenant.
type ReportCmd struct {
	Name   string    `arg:"" enum:"trial-balance,balance-sheet,profit-loss" help:"Report to print (${enum})."`
	Tenant uuid.UUID `required:"" help:"Tenant id."`
	AsOf   string    `help:"As-of date for point in time reports (YYYY-MM-DD, default today)."`
	From   string    `help:"Window start for profit-loss (YYYY-MM-DD)."`
	To     string    `help:"Window end for profit-loss (YYYY-MM-DD, default today)."`
}

func (cmd *ReportCmd) Run(ctx context.Context, kctx *kong.Context, globals *Globals, env *Env) error {
	format, err := NewFormatter(globals.Locale)
	if err != nil {
		return err
	}
	pool, err := env.pool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()
	ledger, err := env.kernel(pool)
	if err != nil {
		return err
	}

	switch cmd.Name {
	case "trial-balance":
		asOf, err := parseDay("as-of", cmd.AsOf)
		if err != nil {
			return err
		}
		tb, err := ledger.GetTrialBalance(ctx, cmd.Tenant, asOf)
		if err != nil {
			return err
		}
		if globals.JSON {
			return writeJSON(kctx.Stdout, tb)
		}
		return format.TrialBalance(kctx.Stdout, tb)
	case "balance-sheet":
		asOf, err := parseDay("as-of", cmd.AsOf)
		if err != nil {
			return err
		}
		bs, err := ledger.GetBalanceSheet(ctx, cmd.Tenant, asOf)
		if err != nil {
			return err
		}
		if globals.JSON {
			return writeJSON(kctx.Stdout, bs)
		}
		return format.BalanceSheet(kctx.Stdout, bs)
	default:
		if cmd.From == "" {
			return fmt.Errorf("from: required for %s", cmd.Name)
		}
		from, err := parseDay("from", cmd.From)
		if err != nil {
			return err
		}
		to, err := parseDay("to", cmd.To)
		if err != nil {
			return err
		}
		pl, err := ledger.GetProfitLoss(ctx, cmd.Tenant, from, to)
		if err != nil {
			return err
		}
		if globals.JSON {
			return writeJSON(kctx.Stdout, pl)
		}
		return format.ProfitAndLoss(kctx.Stdout, pl)
	}
}

// IntegrityCmd runs the integrity reconciliation without the queue.
type IntegrityCmd struct {
	Tenant []string `help:"Limit the check to these tenant ids; default is every registered tenant."`
	AsOf   string   `help:"Reconciliation date (YYYY-MM-DD, default today)."`
}

func (cmd *IntegrityCmd) Run(ctx context.Context, kctx *kong.Context, globals *Globals, env *Env) error {
	asOf, err := parseDay("as-of", cmd.AsOf)
	if err != nil {
		return err
	}
	pool, err := env.pool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()
	ledger, err := env.kernel(pool)
	if err != nil {
		return err
	}
	tenants := jobs.PoolTenants{Pool: pool}
	job := jobs.NewGLIntegrityJob(tenants, ledger.Reports(), env.Logger, nil)

	scope, err := parseTenants(cmd.Tenant)
	if err != nil {
		return err
	}
	if len(scope) == 0 {
		if scope, err = tenants.ListTenants(ctx); err != nil {
			return err
		}
	}
	findings, runErr := job.Run(ctx, scope, asOf)
	if globals.JSON {
		if err := writeJSON(kctx.Stdout, findings); err != nil {
			return err
		}
		return runErr
	}
	format, err := NewFormatter(globals.Locale)
	if err != nil {
		return err
	}
	if len(findings) == 0 {
		_, _ = fmt.Fprintf(kctx.Stdout, "%d tenants reconciled, no findings\n", len(scope))
	}
	for _, f := range findings {
		_, _ = fmt.Fprintf(kctx.Stdout, "%s  %-13s %-8s expected %s actual %s\n",
			f.TenantID, f.Check, f.Severity, format.Amount(f.Expected), format.Amount(f.Actual))
	}
	return runErr
}

// JobsCmd groups queue subcommands.
type JobsCmd struct {
	Trigger JobsTriggerCmd `cmd:"" help:"Enqueue a job."`
	Stats   JobsStatsCmd   `cmd:"" help:"Show queue statistics."`
	Dead    JobsDeadCmd    `cmd:"" help:"List archived outbox deliveries."`
}

// JobsTriggerCmd enqueues a job by task type.
type JobsTriggerCmd struct {
	Name   string `arg:"" enum:"ledger:gl-integrity" help:"Task type (${enum})."`
	Tenant string `help:"Limit the run to one tenant id."`
	AsOf   string `help:"Reconciliation date (YYYY-MM-DD)."`
}

func (cmd *JobsTriggerCmd) Run(ctx context.Context, kctx *kong.Context, env *Env) error {
	payload := jobs.GLIntegrityPayload{AsOf: cmd.AsOf}
	if cmd.AsOf != "" {
		if _, err := parseDay("as-of", cmd.AsOf); err != nil {
			return err
		}
	}
	if cmd.Tenant != "" {
		tenants, err := parseTenants([]string{cmd.Tenant})
		if err != nil {
			return err
		}
		payload.TenantID = &tenants[0]
	}
	client := NewJobsCLI(env.Config.AsynqRedis())
	defer func() {
		_ = client.Close()
	}()
	info, err := client.Trigger(ctx, cmd.Name, payload)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(kctx.Stdout, "enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
	return nil
}

// JobsStatsCmd prints queue counters.
type JobsStatsCmd struct{}

func (cmd *JobsStatsCmd) Run(ctx context.Context, kctx *kong.Context, globals *Globals, env *Env) error {
	client := NewJobsCLI(env.Config.AsynqRedis())
	defer func() {
		_ = client.Close()
	}()
	stats, err := client.InspectQueues(ctx)
	if err != nil {
		return err
	}
	if globals.JSON {
		return writeJSON(kctx.Stdout, stats)
	}
	for _, s := range stats {
		_, _ = fmt.Fprintf(kctx.Stdout, "%-8s pending=%d active=%d scheduled=%d retry=%d dead=%d latency=%s\n",
			s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry, s.Dead, s.Latency)
	}
	return nil
}

// JobsDeadCmd lists archived outbox tasks.
type JobsDeadCmd struct {
	Size int `help:"Page size." default:"10"`
}

func (cmd *JobsDeadCmd) Run(kctx *kong.Context, env *Env) error {
	client := NewJobsCLI(env.Config.AsynqRedis())
	defer func() {
		_ = client.Close()
	}()
	tasks, err := client.ListArchived(cmd.Size)
	if err != nil {
		return err
	}
	for _, task := range tasks {
		_, _ = fmt.Fprintf(kctx.Stdout, "%s  %s  retried=%d  %s\n", task.ID, task.Type, task.Retried, task.LastErr)
	}
	return nil
}
