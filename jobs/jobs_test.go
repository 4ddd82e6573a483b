package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/outbox"
	"github.com/odyssey-erp/odyssey-ledger/internal/subledger"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeEnqueuer struct {
	tasks []*asynq.Task
	ids   map[string]bool
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, opt := range opts {
		if opt.Type() != asynq.TaskIDOpt {
			continue
		}
		id := opt.Value().(string)
		if f.ids[id] {
			return nil, asynq.ErrTaskIDConflict
		}
		f.ids[id] = true
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func postedMessage(t *testing.T, tenant uuid.UUID) outbox.Message {
	t.Helper()
	payload, err := json.Marshal(outbox.JournalPosted{JournalID: 7, Number: "JE-202502-0007", TraceID: "sale:T-1"})
	require.NoError(t, err)
	return outbox.Message{
		ID:          1,
		EventID:     uuid.New(),
		TenantID:    tenant,
		EventType:   outbox.EventJournalPosted,
		AggregateID: "7",
		Payload:     payload,
		CreatedAt:   time.Date(2025, 2, 3, 10, 0, 0, 0, time.UTC),
	}
}

func TestOutboxPublisherEnqueuesOncePerEvent(t *testing.T) {
	enq := &fakeEnqueuer{ids: map[string]bool{}}
	reg := prometheus.NewRegistry()
	pub := NewOutboxPublisher(enq, 5).WithMetrics(jobmetrics.NewMetrics(reg))
	msg := postedMessage(t, uuid.New())

	require.NoError(t, pub.Publish(context.Background(), msg))
	require.NoError(t, pub.Publish(context.Background(), msg))
	require.Len(t, enq.tasks, 1)
	published, err := testutil.GatherAndCount(reg, "ledger_outbox_published_total")
	require.NoError(t, err)
	require.Equal(t, 1, published)
	require.Equal(t, TaskOutboxDeliver, enq.tasks[0].Type())

	var payload OutboxDeliverPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	require.Equal(t, msg.EventID, payload.EventID)
	require.Equal(t, msg.TenantID, payload.TenantID)
	require.JSONEq(t, string(msg.Payload), string(payload.Payload))
}

func TestOutboxPublisherSurfacesQueueErrors(t *testing.T) {
	pub := NewOutboxPublisher(&fakeEnqueuer{err: errors.New("redis down")}, 0)
	err := pub.Publish(context.Background(), postedMessage(t, uuid.New()))
	require.ErrorContains(t, err, "redis down")
}

type recordingInvalidator struct {
	tenants []uuid.UUID
	err     error
}

func (r *recordingInvalidator) Invalidate(_ context.Context, tenant uuid.UUID) error {
	r.tenants = append(r.tenants, tenant)
	return r.err
}

func deliverTask(t *testing.T, msg outbox.Message) *asynq.Task {
	t.Helper()
	task, err := NewOutboxDeliverTask(msg)
	require.NoError(t, err)
	return task
}

func TestOutboxDeliveryInvalidatesReportsForLedgerEvents(t *testing.T) {
	inv := &recordingInvalidator{}
	job := NewOutboxDeliveryJob(inv, quiet, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	tenant := uuid.New()

	require.NoError(t, job.Handle(context.Background(), deliverTask(t, postedMessage(t, tenant))))
	require.Equal(t, []uuid.UUID{tenant}, inv.tenants)

	locked := postedMessage(t, tenant)
	locked.EventType = outbox.EventPeriodLocked
	locked.Payload = []byte(`{"period_id":3,"period_name":"2025-02","locked_by":"cfo","reason":"audit"}`)
	require.NoError(t, job.Handle(context.Background(), deliverTask(t, locked)))
	require.Len(t, inv.tenants, 1)
}

func TestOutboxDeliveryRetriesFailedInvalidation(t *testing.T) {
	inv := &recordingInvalidator{err: errors.New("redis down")}
	job := NewOutboxDeliveryJob(inv, quiet, nil)

	err := job.Handle(context.Background(), deliverTask(t, postedMessage(t, uuid.New())))
	require.Error(t, err)
	require.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestOutboxDeliverySkipsRetryOnGarbage(t *testing.T) {
	job := NewOutboxDeliveryJob(&recordingInvalidator{}, quiet, nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskOutboxDeliver, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	msg := postedMessage(t, uuid.New())
	msg.EventType = "journal.exploded"
	err = job.Handle(context.Background(), deliverTask(t, msg))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

type staticTenants []uuid.UUID

func (s staticTenants) ListTenants(context.Context) ([]uuid.UUID, error) { return s, nil }

type fakeIntegrityReports struct {
	tb     map[uuid.UUID]reports.TrialBalance
	ar, ap map[uuid.UUID]decimal.Decimal
	fail   map[uuid.UUID]error
	asOf   time.Time
}

func (f *fakeIntegrityReports) TrialBalance(_ context.Context, tenant uuid.UUID, asOf time.Time) (reports.TrialBalance, error) {
	f.asOf = asOf
	if err := f.fail[tenant]; err != nil {
		return reports.TrialBalance{}, err
	}
	return f.tb[tenant], nil
}

func (f *fakeIntegrityReports) ArAging(_ context.Context, tenant uuid.UUID, asOf time.Time) (subledger.AgingReport, error) {
	return subledger.AgingReport{Kind: subledger.KindAR, AsOf: asOf, Totals: subledger.AgingRow{Total: f.ar[tenant]}}, nil
}

func (f *fakeIntegrityReports) ApAging(_ context.Context, tenant uuid.UUID, asOf time.Time) (subledger.AgingReport, error) {
	return subledger.AgingReport{Kind: subledger.KindAP, AsOf: asOf, Totals: subledger.AgingRow{Total: f.ap[tenant]}}, nil
}

func trialBalance(balanced bool, ar, ap string) reports.TrialBalance {
	tb := reports.TrialBalance{
		IsBalanced:  balanced,
		TotalDebit:  decimal.RequireFromString("1000"),
		TotalCredit: decimal.RequireFromString("1000"),
		Groups: []reports.TrialBalanceGroup{
			{Key: "12", Accounts: []reports.TrialBalanceAccount{{Code: "1201", Balance: decimal.RequireFromString(ar)}}},
			{Key: "21", Accounts: []reports.TrialBalanceAccount{{Code: "2101", Balance: decimal.RequireFromString(ap)}}},
		},
	}
	if !balanced {
		tb.TotalCredit = decimal.RequireFromString("990")
	}
	return tb
}

func TestGLIntegrityReportsDriftPerTenant(t *testing.T) {
	clean, drifting := uuid.New(), uuid.New()
	reps := &fakeIntegrityReports{
		tb: map[uuid.UUID]reports.TrialBalance{
			clean:    trialBalance(true, "500", "200"),
			drifting: trialBalance(false, "500", "200"),
		},
		ar: map[uuid.UUID]decimal.Decimal{clean: decimal.RequireFromString("500"), drifting: decimal.RequireFromString("450")},
		ap: map[uuid.UUID]decimal.Decimal{clean: decimal.RequireFromString("200.004"), drifting: decimal.RequireFromString("200")},
	}
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	job := NewGLIntegrityJob(staticTenants{clean, drifting}, reps, quiet, metrics)

	findings, err := job.Run(context.Background(), []uuid.UUID{clean, drifting}, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, findings, 2)
	require.Equal(t, CheckTrialBalance, findings[0].Check)
	require.Equal(t, SeverityCritical, findings[0].Severity)
	require.Equal(t, CheckARControl, findings[1].Check)
	require.True(t, decimal.RequireFromString("500").Equal(findings[1].Expected))
	require.True(t, decimal.RequireFromString("450").Equal(findings[1].Actual))

	series, err := testutil.GatherAndCount(reg, "ledger_integrity_anomalies_total")
	require.NoError(t, err)
	require.Equal(t, 2, series)
}

func TestGLIntegrityContinuesPastBrokenTenant(t *testing.T) {
	broken, ok := uuid.New(), uuid.New()
	reps := &fakeIntegrityReports{
		tb:   map[uuid.UUID]reports.TrialBalance{ok: trialBalance(false, "0", "0")},
		fail: map[uuid.UUID]error{broken: errors.New("connection reset")},
	}
	job := NewGLIntegrityJob(nil, reps, quiet, nil)

	findings, err := job.Run(context.Background(), []uuid.UUID{broken, ok}, time.Now())
	require.ErrorContains(t, err, "connection reset")
	require.Len(t, findings, 1)
	require.Equal(t, ok, findings[0].TenantID)
}

func TestGLIntegrityHandleUsesPayloadScope(t *testing.T) {
	tenant := uuid.New()
	reps := &fakeIntegrityReports{tb: map[uuid.UUID]reports.TrialBalance{tenant: trialBalance(true, "0", "0")}}
	job := NewGLIntegrityJob(nil, reps, quiet, nil)

	task, err := NewGLIntegrityTask(GLIntegrityPayload{TenantID: &tenant, AsOf: "2025-01-31"})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), reps.asOf)

	bad, err := NewGLIntegrityTask(GLIntegrityPayload{AsOf: "31/01/2025"})
	require.NoError(t, err)
	require.ErrorIs(t, job.Handle(context.Background(), bad), asynq.SkipRetry)
}

type fakeInspector struct {
	queues map[string]*asynq.QueueInfo
	err    error
}

func (f fakeInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	info, ok := f.queues[queue]
	if !ok {
		return nil, asynq.ErrQueueNotFound
	}
	return info, nil
}

func TestJobsHealthReportsQueueDepth(t *testing.T) {
	h := NewHandler(fakeInspector{queues: map[string]*asynq.QueueInfo{
		QueueOutbox: {Queue: QueueOutbox, Pending: 4, Retry: 1, Archived: 2, Latency: time.Second},
	}}, quiet)
	r := chi.NewRouter()
	h.MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats []QueueStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Len(t, stats, 2)
	require.Equal(t, QueueStats{Queue: QueueOutbox, Pending: 4, Retry: 1, Dead: 2, Latency: time.Second}, stats[0])
	require.Equal(t, QueueStats{Queue: QueueDefault}, stats[1])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health?queue="+QueueDefault, nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Len(t, stats, 1)
}

func TestJobsHealthFailsWhenRedisIsDown(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(fakeInspector{err: errors.New("dial tcp: refused")}, quiet).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestNewWorkerRejectsBadHandlerTable(t *testing.T) {
	noop := func(context.Context, *asynq.Task) error { return nil }

	_, err := NewWorker(WorkerConfig{Handlers: []TaskHandler{{Type: TaskGLIntegrity}}})
	require.Error(t, err)

	_, err = NewWorker(WorkerConfig{Handlers: []TaskHandler{
		{Type: TaskGLIntegrity, Handler: noop},
		{Type: TaskGLIntegrity, Handler: noop},
	}})
	require.ErrorContains(t, err, "duplicate handler")
}
