package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for survey calculation.
type Metrics struct {
	Calculations      *prometheus.CounterVec
	CalculateDuration prometheus.Histogram
	PopulateDuration  prometheus.Histogram
	ValuesWritten     *prometheus.CounterVec
}

// New registers the survey metrics on reg. A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Calculations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "amsf_survey_calculations_total",
			Help: "Total number of full survey calculations by outcome",
		}, []string{"outcome"}),
		CalculateDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "amsf_survey_calculate_duration_seconds",
			Help:    "Duration of loading a dataset and computing every element",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		PopulateDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "amsf_survey_populate_duration_seconds",
			Help:    "Duration of populating a submission's stored values",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		ValuesWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "amsf_survey_values_written_total",
			Help: "Stored values created or updated by populate",
		}, []string{"action"}),
	}
}

// ObserveCalculation records one CalculateAll call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveCalculation(start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.Calculations.WithLabelValues(outcome).Inc()
	m.CalculateDuration.Observe(time.Since(start).Seconds())
}

// ObservePopulate records the duration and the writes of one populate run.
func (m *Metrics) ObservePopulate(start time.Time, created, updated int) {
	m.PopulateDuration.Observe(time.Since(start).Seconds())
	m.ValuesWritten.WithLabelValues("created").Add(float64(created))
	m.ValuesWritten.WithLabelValues("updated").Add(float64(updated))
}
