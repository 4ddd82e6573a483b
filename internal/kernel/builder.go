package kernel

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/ap"
	"github.com/odyssey-erp/odyssey-ledger/internal/ar"
	"github.com/odyssey-erp/odyssey-ledger/internal/outbox"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/subledger"
)

// Builder wires a Kernel onto a Postgres pool.
type Builder struct {
	pool          *pgxpool.Pool
	logger        *slog.Logger
	redis         *redis.Client
	cacheTTL      time.Duration
	requirePeriod bool
	tolerance     decimal.Decimal
	registerer    prometheus.Registerer
}

// NewBuilder starts a Builder for pool.
func NewBuilder(pool *pgxpool.Pool) *Builder {
	return &Builder{pool: pool, tolerance: journals.DefaultTolerance}
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithCache enables the Redis report cache. A nil client disables it.
func (b *Builder) WithCache(client *redis.Client, ttl time.Duration) *Builder {
	b.redis, b.cacheTTL = client, ttl
	return b
}

// WithRequirePeriod rejects postings on dates no fiscal period covers.
func (b *Builder) WithRequirePeriod(required bool) *Builder {
	b.requirePeriod = required
	return b
}

func (b *Builder) WithTolerance(tolerance decimal.Decimal) *Builder {
	if tolerance.IsPositive() {
		b.tolerance = tolerance
	}
	return b
}

// WithMetrics registers kernel counters against registerer.
func (b *Builder) WithMetrics(registerer prometheus.Registerer) *Builder {
	b.registerer = registerer
	return b
}

// Build assembles the services and returns the Kernel.
func (b *Builder) Build() *Kernel {
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	events := outbox.NewWriter(b.pool)

	chart := accounts.NewService(accounts.NewRepository(b.pool), logger)
	periodRepo := periods.NewRepository(b.pool)
	journalSvc := journals.NewService(journals.NewRepository(b.pool), chart, periods.NewGate(periodRepo, b.requirePeriod), events, logger)
	journalSvc.WithTolerance(b.tolerance)

	methods := mappings.NewResolver(mappings.NewRepository(b.pool))
	arLedger := subledger.NewService(subledger.KindAR, subledger.NewRepository(b.pool, subledger.KindAR), journalSvc, methods, events, logger)
	apLedger := subledger.NewService(subledger.KindAP, subledger.NewRepository(b.pool, subledger.KindAP), journalSvc, methods, events, logger)

	var cache *reports.Cache
	if b.redis != nil {
		cache = reports.NewCache(b.redis, b.cacheTTL)
	}
	reportRepo := reports.NewRepository(b.pool)
	reportSvc := reports.NewService(reportRepo, cache, logger).WithAging(arLedger, apLedger)

	var metrics *Metrics
	if b.registerer != nil {
		metrics = NewMetrics(b.registerer)
	}

	return New(Deps{
		Journals:    journalSvc,
		Periods:     periods.NewService(periodRepo, reportRepo, journalSvc, events, logger),
		Receivables: ar.NewService(arLedger),
		Payables:    ap.NewService(apLedger),
		Reports:     reportSvc,
		Methods:     methods,
		Chart:       chart,
		Work:        runnerWork{runner: db.NewRunner(b.pool)},
		Metrics:     metrics,
		Logger:      logger,
	})
}

type runnerWork struct {
	runner *db.Runner
}

func (w runnerWork) Do(ctx context.Context, tenantID uuid.UUID, fn func(context.Context) error) error {
	return w.runner.WithTenantTx(ctx, tenantID, func(ctx context.Context, _ pgx.Tx) error {
		return fn(ctx)
	})
}
