package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the submission workflow.
type Metrics struct {
	SubmissionsCreated prometheus.Counter
	Transitions        *prometheus.CounterVec
	LockConflicts      prometheus.Counter
	Overrides          prometheus.Counter
	UnvalidatedExports prometheus.Counter
	ReadDuration       prometheus.Histogram
}

// New registers the submission metrics on reg. A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SubmissionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "amsf_submissions_created_total",
			Help: "Total number of submissions created",
		}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "amsf_submission_transitions_total",
			Help: "Lifecycle transitions by event and outcome",
		}, []string{"event", "outcome"}),
		LockConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "amsf_submission_lock_conflicts_total",
			Help: "Edits or lock attempts refused because another user holds the lock",
		}),
		Overrides: factory.NewCounter(prometheus.CounterOpts{
			Name: "amsf_submission_value_overrides_total",
			Help: "Manual overrides of calculated values",
		}),
		UnvalidatedExports: factory.NewCounter(prometheus.CounterOpts{
			Name: "amsf_submission_unvalidated_downloads_total",
			Help: "Artifacts downloaded without a successful remote validation",
		}),
		ReadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "amsf_submission_read_duration_seconds",
			Help:    "Duration of reading a submission's values, including recomputation for drafts",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

func (m *Metrics) ObserveTransition(event string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "rejected"
	}
	m.Transitions.WithLabelValues(event, outcome).Inc()
}

// ObserveRead records the duration of a values read.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveRead(start time.Time) {
	m.ReadDuration.Observe(time.Since(start).Seconds())
}
