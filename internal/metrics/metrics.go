// Package metrics exposes Prometheus collectors for the pipeline and its
// provider adapters. All collectors are registered on the default registry
// and served from /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PipelineRuns counts pipeline executions by terminal state (done|failed).
	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vibearb",
		Subsystem: "pipeline",
		Name:      "runs_total",
		Help:      "Pipeline runs by terminal state",
	}, []string{"state"})

	// PipelineCacheHits counts whole-result cache hits on /api/search.
	PipelineCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vibearb",
		Subsystem: "pipeline",
		Name:      "cache_hits_total",
		Help:      "Trend results served from cache",
	})

	// StepDuration observes per-step pipeline latency.
	StepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vibearb",
		Subsystem: "pipeline",
		Name:      "step_duration_seconds",
		Help:      "Pipeline step latency",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"step"})

	// ProviderCalls counts upstream calls actually issued per provider.
	ProviderCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vibearb",
		Subsystem: "provider",
		Name:      "calls_total",
		Help:      "Upstream provider calls issued",
	}, []string{"provider"})

	// ProviderErrors counts failed upstream calls per provider.
	ProviderErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vibearb",
		Subsystem: "provider",
		Name:      "errors_total",
		Help:      "Failed upstream provider calls",
	}, []string{"provider"})

	// ProviderCacheHits counts guard-level response cache hits.
	ProviderCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vibearb",
		Subsystem: "provider",
		Name:      "cache_hits_total",
		Help:      "Provider responses served from cache",
	}, []string{"provider"})

	// ProviderCacheMisses counts guard-level response cache misses.
	ProviderCacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vibearb",
		Subsystem: "provider",
		Name:      "cache_misses_total",
		Help:      "Provider cache misses",
	}, []string{"provider"})

	// ProviderLatency observes upstream call latency per provider.
	ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vibearb",
		Subsystem: "provider",
		Name:      "latency_seconds",
		Help:      "Upstream provider call latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"provider"})
)
