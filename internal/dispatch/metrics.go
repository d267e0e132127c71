package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for calcbench_dispatch_total.
const (
	outcomeOK            = "ok"
	outcomeTransient     = "transient"
	outcomeDeterministic = "deterministic"
	outcomeRejected      = "rejected"
)

// Metrics counts dispatches and times the remote calls.
type Metrics struct {
	dispatches *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetrics registers the dispatch collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "calcbench_dispatch_total",
				Help: "Binary operations dispatched, by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "calcbench_dispatch_duration_seconds",
				Help:    "Duration of remote operation calls",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
			},
			[]string{"op"},
		),
	}
	reg.MustRegister(m.dispatches, m.duration)
	return m
}

func (m *Metrics) record(op, outcome string) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) observe(op string, seconds float64) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(op).Observe(seconds)
}
