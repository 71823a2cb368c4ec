package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registerer is the subset of prometheus registration the pipeline needs.
// Pass nil to disable metrics (tests).
type Registerer = prometheus.Registerer

type metrics struct {
	eventsEvaluated     prometheus.Counter
	predictionsVerified *prometheus.CounterVec
	consensusRuns       prometheus.Counter
	batchDuration       prometheus.Histogram
}

func newMetrics(reg Registerer) *metrics {
	m := &metrics{
		eventsEvaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulse_events_evaluated_total",
			Help: "Events re-scored by the decay/boost model.",
		}),
		predictionsVerified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_predictions_verified_total",
			Help: "Prediction verification outcomes by resulting status.",
		}, []string{"status"}),
		consensusRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulse_consensus_runs_total",
			Help: "Consensus aggregation passes completed.",
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pulse_batch_duration_seconds",
			Help:    "Wall time of one full evaluation pass.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.eventsEvaluated, m.predictionsVerified, m.consensusRuns, m.batchDuration)
	}
	return m
}
