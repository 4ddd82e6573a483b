package kernel

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Metrics counts kernel postings. A nil *Metrics records nothing.
type Metrics struct {
	posted     *prometheus.CounterVec
	duplicates *prometheus.CounterVec
	rejected   *prometheus.CounterVec
}

// NewMetrics registers the kernel collectors against registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		posted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_journals_posted_total",
			Help: "Journals posted by the kernel per event kind.",
		}, []string{"kind"}),
		duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_journal_duplicates_total",
			Help: "Redelivered events answered from an existing journal.",
		}, []string{"kind"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_postings_rejected_total",
			Help: "Kernel commands rejected per reason.",
		}, []string{"kind", "reason"}),
	}
	registerer.MustRegister(m.posted, m.duplicates, m.rejected)
	return m
}

func (m *Metrics) observe(kind string, duplicate bool, err error) {
	if m == nil {
		return
	}
	switch {
	case err != nil:
		m.rejected.WithLabelValues(kind, Reason(err)).Inc()
	case duplicate:
		m.duplicates.WithLabelValues(kind).Inc()
	default:
		m.posted.WithLabelValues(kind).Inc()
	}
}

// Reason classifies err into a short label.
func Reason(err error) string {
	var (
		overflow *shared.SubledgerOverflow
		gap      *shared.IntegrityGap
	)
	switch {
	case err == nil:
		return ""
	case shared.IsValidation(err):
		return "validation"
	case shared.IsPeriodViolation(err):
		return "period"
	case errors.As(err, &overflow):
		return "overflow"
	case errors.As(err, &gap):
		return "integrity"
	case errors.Is(err, shared.ErrForbidden):
		return "forbidden"
	case errors.Is(err, shared.ErrJournalNotFound), errors.Is(err, shared.ErrItemNotFound),
		errors.Is(err, shared.ErrPeriodNotFound), errors.Is(err, shared.ErrAccountNotFound):
		return "not_found"
	case errors.Is(err, shared.ErrInvalidStatus), errors.Is(err, shared.ErrAlreadyReversed):
		return "status"
	default:
		return "internal"
	}
}
