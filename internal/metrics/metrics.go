// Package metrics exposes the Prometheus collectors shared by the gateway,
// the analysis service and the HTTP server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credit_provider_calls_total",
			Help: "Total number of external provider calls by outcome",
		},
		[]string{"provider", "outcome", "kind"},
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "credit_provider_call_duration_seconds",
			Help:    "Duration of external provider calls in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"provider"},
	)

	AnalysesCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credit_analyses_completed_total",
			Help: "Total number of credit analyses completed by risk tier",
		},
		[]string{"tier"},
	)

	AnalysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "credit_analysis_duration_seconds",
			Help:    "End-to-end duration of a credit analysis in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8),
		},
	)

	NarrativesGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credit_narratives_total",
			Help: "Total number of narratives by the provider that produced them",
		},
		[]string{"provider"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credit_http_requests_total",
			Help: "Total number of HTTP API requests by route and status",
		},
		[]string{"method", "route", "status"},
	)
)

// ObserveCall records one provider call.
func ObserveCall(provider, outcome, kind string, d time.Duration) {
	ProviderCalls.WithLabelValues(provider, outcome, kind).Inc()
	if outcome != "skipped" {
		ProviderLatency.WithLabelValues(provider).Observe(d.Seconds())
	}
}
