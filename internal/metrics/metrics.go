package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "kursy"

var (
	// FetchRequests counts endpoint requests by outcome ("ok" or an error kind).
	FetchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_requests_total",
		Help:      "Provider endpoint requests by outcome.",
	}, []string{"endpoint", "outcome"})

	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "fetch_duration_seconds",
		Help:      "Provider endpoint request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint"})

	// AssetUnresolved counts assets that resolved to zero, by error kind.
	AssetUnresolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "asset_unresolved_total",
		Help:      "Assets left unresolved by a refresh cycle.",
	}, []string{"asset", "kind"})

	AssetFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "asset_fallback_total",
		Help:      "Assets estimated from a fallback dependency.",
	}, []string{"asset"})

	// RefreshCycles counts cycles by outcome: committed, stale, no_data.
	RefreshCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refresh_cycles_total",
		Help:      "Refresh cycles by outcome.",
	}, []string{"outcome"})

	RefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "refresh_duration_seconds",
		Help:      "End-to-end refresh cycle latency.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
	})

	RatesResolved = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "rates_resolved",
		Help:      "Nonzero rates in the current snapshot.",
	})

	// HistoryRequests counts historical series requests by source and outcome.
	HistoryRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "history_requests_total",
		Help:      "Historical series requests by source and outcome.",
	}, []string{"source", "outcome"})
)
