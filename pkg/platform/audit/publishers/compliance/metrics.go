package compliance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	eventsEmitted   prometheus.Counter
	persistFailures prometheus.Counter
	persistDuration prometheus.Histogram
}

// NewMetrics registers on the given registerer; pass nil for the default one.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		eventsEmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "amsf_audit_compliance_events_emitted_total",
			Help: "Compliance audit events persisted",
		}),
		persistFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "amsf_audit_compliance_persist_failures_total",
			Help: "Compliance audit events that failed to persist",
		}),
		persistDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "amsf_audit_compliance_persist_duration_seconds",
			Help:    "Time to persist a compliance audit event",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncEventsEmitted()                 { m.eventsEmitted.Inc() }
func (m *Metrics) IncPersistFailures()               { m.persistFailures.Inc() }
func (m *Metrics) ObservePersistDuration(s float64) { m.persistDuration.Observe(s) }
