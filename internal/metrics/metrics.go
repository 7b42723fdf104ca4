// Package metrics defines Prometheus metrics for the retrieval engine.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RetrievalDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "graphweave_retrieval_duration_seconds",
			Help:    "End-to-end triplet retrieval duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	TripletsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "graphweave_retrieval_triplets",
			Help:    "Number of triplets returned per retrieval call",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)

	EmptyResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphweave_retrieval_empty_total",
			Help: "Empty retrieval results by cause",
		},
		[]string{"cause"},
	)

	DegradedStages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphweave_retrieval_degraded_total",
			Help: "Pipeline stages that failed and were degraded past",
		},
		[]string{"stage"},
	)

	ChannelFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphweave_fusion_channel_failures_total",
			Help: "Hybrid fusion channels that errored and contributed nothing",
		},
		[]string{"channel"},
	)
)

func init() {
	prometheus.MustRegister(
		RetrievalDuration, TripletsReturned,
		EmptyResults, DegradedStages, ChannelFailures,
	)
}
