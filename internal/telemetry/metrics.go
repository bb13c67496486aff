package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SearchesTotal counts search calls.
	// Labels: mode (hybrid, lexical), result (success, error)
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mojify",
			Subsystem: "search",
			Name:      "queries_total",
			Help:      "Total number of search queries",
		},
		[]string{"mode", "result"},
	)

	// SearchDuration tracks end-to-end search latency.
	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mojify",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Duration of search queries in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"mode"},
	)

	// ZeroResultSearches counts successful searches that returned nothing.
	ZeroResultSearches = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mojify",
			Subsystem: "search",
			Name:      "zero_result_queries_total",
			Help:      "Total number of searches that returned no results",
		},
	)

	// RebuildsTotal counts index rebuilds.
	// Labels: result (success, error)
	RebuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mojify",
			Subsystem: "index",
			Name:      "rebuilds_total",
			Help:      "Total number of full index rebuilds",
		},
		[]string{"result"},
	)

	// RebuildDuration tracks how long rebuilds take.
	RebuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mojify",
			Subsystem: "index",
			Name:      "rebuild_duration_seconds",
			Help:      "Duration of full index rebuilds in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	// IndexedEntities reports the entity count of the last successful rebuild.
	// Labels: entity_type (prompt, agent, proposal)
	IndexedEntities = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "mojify",
			Subsystem: "index",
			Name:      "entities",
			Help:      "Number of entities indexed by the last rebuild",
		},
		[]string{"entity_type"},
	)

	// EmbedderAvailable is 1 when semantic ranking is enabled, 0 otherwise.
	EmbedderAvailable = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mojify",
			Subsystem: "embed",
			Name:      "available",
			Help:      "Whether an embedding model is loaded (1) or not (0)",
		},
	)
)

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordSearch records the outcome of one search call.
func RecordSearch(mode QueryMode, resultCount int, latency time.Duration, err error) {
	SearchesTotal.WithLabelValues(string(mode), resultLabel(err)).Inc()
	SearchDuration.WithLabelValues(string(mode)).Observe(latency.Seconds())
	if err == nil && resultCount == 0 {
		ZeroResultSearches.Inc()
	}
}

// RecordRebuild records a finished rebuild. counts is only applied on success.
func RecordRebuild(counts map[string]int, duration time.Duration, err error) {
	RebuildsTotal.WithLabelValues(resultLabel(err)).Inc()
	RebuildDuration.Observe(duration.Seconds())
	if err != nil {
		return
	}
	for entityType, n := range counts {
		IndexedEntities.WithLabelValues(entityType).Set(float64(n))
	}
}

// SetEmbedderAvailable updates the embedder availability gauge.
func SetEmbedderAvailable(available bool) {
	if available {
		EmbedderAvailable.Set(1)
	} else {
		EmbedderAvailable.Set(0)
	}
}
