// Public domain.

// Package metrics collects counters and timings of an inversion run.
//
// A batch run has no scrape endpoint; collectors are written to a
// node_exporter textfile when the run ends.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors of one run.  A nil *Metrics records
// nothing.
type Metrics struct {
	Trials           *prometheus.CounterVec
	Solves           *prometheus.CounterVec
	AssembleDuration prometheus.Histogram
	SolveDuration    prometheus.Histogram
	SimulationRuns   *prometheus.CounterVec
}

// New registers the run collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Trials: f.NewCounterVec(prometheus.CounterOpts{
			Name: "occam_trials_total",
			Help: "Non-linear parameter trials by outcome",
		}, []string{"outcome"}),
		Solves: f.NewCounterVec(prometheus.CounterOpts{
			Name: "occam_solves_total",
			Help: "Damped least squares solves by outcome (ok or gap)",
		}, []string{"outcome"}),
		AssembleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "occam_assemble_duration_seconds",
			Help:    "Time to assemble jacobian, observation and regularization for a trial",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		SolveDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "occam_solve_duration_seconds",
			Help:    "Time of one damped solve",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		SimulationRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "occam_simulation_runs_total",
			Help: "External simulation jobs by outcome (ok, failed, skipped)",
		}, []string{"outcome"}),
	}
}

func outcome(err error, bad string) string {
	if err != nil {
		return bad
	}
	return "ok"
}

// ObserveAssemble records a trial assembly started at start.
func (m *Metrics) ObserveAssemble(start time.Time, err error) {
	if m == nil {
		return
	}
	m.AssembleDuration.Observe(time.Since(start).Seconds())
	m.Trials.WithLabelValues(outcome(err, "failed")).Inc()
}

// ObserveSolve records a solve started at start.
func (m *Metrics) ObserveSolve(start time.Time, err error) {
	if m == nil {
		return
	}
	m.SolveDuration.Observe(time.Since(start).Seconds())
	m.Solves.WithLabelValues(outcome(err, "gap")).Inc()
}

// ObserveSimulation records the outcome of one external job.
func (m *Metrics) ObserveSimulation(outcome string) {
	if m == nil {
		return
	}
	m.SimulationRuns.WithLabelValues(outcome).Inc()
}

// WriteFile writes everything gathered by g in text exposition format.
func WriteFile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
