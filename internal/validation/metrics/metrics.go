package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes of a remote validation call.
const (
	OutcomeValid    = "valid"
	OutcomeInvalid  = "invalid"
	OutcomeDegraded = "degraded"
	OutcomeCached   = "cached"
)

// Metrics provides observability for the validation layers.
type Metrics struct {
	RemoteCalls    *prometheus.CounterVec
	RemoteAttempts prometheus.Counter
	RemoteDuration prometheus.Histogram
	LocalIssues    *prometheus.CounterVec
}

// New registers the validation metrics on reg. A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RemoteCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "amsf_validation_remote_calls_total",
			Help: "Remote validation calls by outcome",
		}, []string{"outcome"}),
		RemoteAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "amsf_validation_remote_attempts_total",
			Help: "HTTP attempts made against the remote validator, retries included",
		}),
		RemoteDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "amsf_validation_remote_duration_seconds",
			Help:    "Wall time of a remote validation call including retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		LocalIssues: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "amsf_validation_local_issues_total",
			Help: "Issues reported by the local checker by severity",
		}, []string{"severity"}),
	}
}

// ObserveRemote records one completed remote call.
func (m *Metrics) ObserveRemote(start time.Time, outcome string) {
	m.RemoteCalls.WithLabelValues(outcome).Inc()
	m.RemoteDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveLocal(errors, warnings int) {
	m.LocalIssues.WithLabelValues("error").Add(float64(errors))
	m.LocalIssues.WithLabelValues("warning").Add(float64(warnings))
}
