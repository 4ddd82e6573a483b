// Package jobmetrics instruments the ledger's background work: asynq task runs, outbox
// hand-off and integrity findings.
package jobmetrics

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	statusSuccess = "success"
	statusFailure = "failure"
)

// Metrics groups the job collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	runs          *prometheus.CounterVec
	failures      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	anomalies     *prometheus.CounterVec
	published     *prometheus.CounterVec
	deliveryDelay prometheus.Histogram
}

var (
	sharedOnce sync.Once
	shared     *Metrics
)

// NewMetrics registers the collectors on registerer. A nil registerer selects the process
// default registry, registered once however often this is called.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer != nil {
		return register(registerer)
	}
	sharedOnce.Do(func() {
		shared = register(prometheus.DefaultRegisterer)
	})
	return shared
}

func register(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_jobs_total",
			Help: "Background task runs by task type and outcome.",
		}, []string{"job", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_jobs_failures_total",
			Help: "Failed background task runs by task type.",
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_job_duration_seconds",
			Help:    "Background task run time by task type.",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_integrity_anomalies_total",
			Help: "GL integrity findings by severity and tenant.",
		}, []string{"severity", "tenant"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_outbox_published_total",
			Help: "Outbox events handed to the task queue by event type.",
		}, []string{"event_type"}),
		deliveryDelay: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledger_outbox_delivery_delay_seconds",
			Help:    "Time from outbox commit to delivery by the worker.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 12),
		}),
	}
	registerer.MustRegister(m.runs, m.failures, m.duration, m.anomalies, m.published, m.deliveryDelay)
	return m
}

// Tracker times one task run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track starts timing a run of job.
func (m *Metrics) Track(job string) *Tracker {
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End records the outcome of the run and hands err back so it can be used in a deferred return.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := statusSuccess
	if err != nil {
		status = statusFailure
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// AddAnomalies counts integrity findings of a tenant.
func (m *Metrics) AddAnomalies(severity string, tenantID uuid.UUID, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.anomalies.WithLabelValues(severity, tenantID.String()).Add(float64(count))
}

// Published counts an outbox event accepted by the queue.
func (m *Metrics) Published(eventType string) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(eventType).Inc()
}

// ObserveDelivery records how long an event waited between commit and delivery.
func (m *Metrics) ObserveDelivery(committedAt time.Time) {
	if m == nil || committedAt.IsZero() {
		return
	}
	delay := time.Since(committedAt)
	if delay < 0 {
		delay = 0
	}
	m.deliveryDelay.Observe(delay.Seconds())
}
