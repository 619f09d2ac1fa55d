package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CacheOperation identifies the cache method being instrumented.
type CacheOperation string

const (
	// CacheOperationLookup records artifact cache lookup calls.
	CacheOperationLookup CacheOperation = "lookup"
	// CacheOperationStore records artifact cache store attempts.
	CacheOperationStore CacheOperation = "store"
)

// CacheLookupOutcome captures the result of a cache lookup.
type CacheLookupOutcome string

const (
	// CacheLookupHit indicates the lookup reused a cached artifact.
	CacheLookupHit CacheLookupOutcome = "hit"
	// CacheLookupMiss indicates no cached artifact was present.
	CacheLookupMiss CacheLookupOutcome = "miss"
	// CacheLookupError indicates the lookup failed due to an error.
	CacheLookupError CacheLookupOutcome = "error"
)

// CacheStoreOutcome captures the result of a cache store attempt.
type CacheStoreOutcome string

const (
	// CacheStoreStored indicates the artifact was persisted.
	CacheStoreStored CacheStoreOutcome = "stored"
	// CacheStoreError indicates the store operation failed.
	CacheStoreError CacheStoreOutcome = "error"
)

// ProviderOutcome captures how a gateway call against an external provider ended.
type ProviderOutcome string

const (
	ProviderOutcomeSuccess   ProviderOutcome = "success"
	ProviderOutcomeTransient ProviderOutcome = "transient"
	ProviderOutcomePermanent ProviderOutcome = "permanent"
)

// Recorder publishes Prometheus metrics for pipeline activity.
type Recorder struct {
	gatherer prometheus.Gatherer
	handler  http.Handler

	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec

	stageExecutions *prometheus.CounterVec
	stageLatency    *prometheus.HistogramVec

	cacheOperations *prometheus.CounterVec
	cacheLatency    *prometheus.HistogramVec

	providerCalls *prometheus.CounterVec
}

// NewRecorder constructs a Prometheus-backed Recorder. When reg is nil a dedicated
// registry is created so multiple recorders can coexist without conflicting with
// the global default registerer.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "valluvarai",
		Subsystem: "generate",
		Name:      "requests_total",
		Help:      "Total generation requests processed by the pipeline.",
	}, []string{"state"})

	requestLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "valluvarai",
		Subsystem: "generate",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for completed generation requests.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"state"})

	stageExecutions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "valluvarai",
		Subsystem: "stage",
		Name:      "executions_total",
		Help:      "Stage executions by artifact source and status.",
	}, []string{"stage", "source", "status"})

	stageLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "valluvarai",
		Subsystem: "stage",
		Name:      "execution_duration_seconds",
		Help:      "Latency distribution for stage executions.",
		Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"stage", "status"})

	cacheOperations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "valluvarai",
		Subsystem: "cache",
		Name:      "operations_total",
		Help:      "Artifact cache operations executed by the stage executors.",
	}, []string{"stage", "operation", "result"})

	cacheLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "valluvarai",
		Subsystem: "cache",
		Name:      "operation_duration_seconds",
		Help:      "Latency distribution for artifact cache operations.",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
	}, []string{"stage", "operation", "result"})

	providerCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "valluvarai",
		Subsystem: "provider",
		Name:      "calls_total",
		Help:      "External provider invocations by capability and outcome.",
	}, []string{"provider", "kind", "outcome"})

	reg.MustRegister(requests, requestLatency, stageExecutions, stageLatency, cacheOperations, cacheLatency, providerCalls)

	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	return &Recorder{
		gatherer:        reg,
		handler:         handler,
		requests:        requests,
		requestLatency:  requestLatency,
		stageExecutions: stageExecutions,
		stageLatency:    stageLatency,
		cacheOperations: cacheOperations,
		cacheLatency:    cacheLatency,
		providerCalls:   providerCalls,
	}
}

// Handler exposes the Prometheus HTTP handler for the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics unavailable", http.StatusServiceUnavailable)
		})
	}
	return r.handler
}

// Gatherer returns the underlying Prometheus gatherer for tests and advanced
// integrations.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.gatherer
}

// ObserveRequest records the terminal state and latency of a generation request.
func (r *Recorder) ObserveRequest(state string, duration time.Duration) {
	if r == nil {
		return
	}
	label := normalizeLabel(state)
	r.requests.WithLabelValues(label).Inc()
	r.requestLatency.WithLabelValues(label).Observe(duration.Seconds())
}

// ObserveStage records the outcome and latency for a completed stage execution.
func (r *Recorder) ObserveStage(stage, source, status string, duration time.Duration) {
	if r == nil {
		return
	}
	stageLabel := normalizeLabel(stage)
	statusLabel := normalizeLabel(status)
	r.stageExecutions.WithLabelValues(stageLabel, normalizeLabel(source), statusLabel).Inc()
	r.stageLatency.WithLabelValues(stageLabel, statusLabel).Observe(duration.Seconds())
}

// ObserveCacheLookup records the result of an artifact cache lookup.
func (r *Recorder) ObserveCacheLookup(stage string, result CacheLookupOutcome, duration time.Duration) {
	if r == nil {
		return
	}
	resultLabel := string(result)
	if resultLabel == "" {
		resultLabel = string(CacheLookupMiss)
	}
	r.observeCache(normalizeLabel(stage), CacheOperationLookup, resultLabel, duration)
}

// ObserveCacheStore records the result of an artifact cache store attempt.
func (r *Recorder) ObserveCacheStore(stage string, result CacheStoreOutcome, duration time.Duration) {
	if r == nil {
		return
	}
	resultLabel := string(result)
	if resultLabel == "" {
		resultLabel = string(CacheStoreError)
	}
	r.observeCache(normalizeLabel(stage), CacheOperationStore, resultLabel, duration)
}

// ObserveProviderCall records one external provider invocation.
func (r *Recorder) ObserveProviderCall(provider, kind string, outcome ProviderOutcome) {
	if r == nil {
		return
	}
	outcomeLabel := string(outcome)
	if outcomeLabel == "" {
		outcomeLabel = string(ProviderOutcomePermanent)
	}
	r.providerCalls.WithLabelValues(normalizeLabel(provider), normalizeLabel(kind), outcomeLabel).Inc()
}

func (r *Recorder) observeCache(stage string, operation CacheOperation, result string, duration time.Duration) {
	opLabel := string(operation)
	if opLabel == "" {
		opLabel = string(CacheOperationLookup)
	}
	resLabel := normalizeLabel(result)
	r.cacheOperations.WithLabelValues(stage, opLabel, resLabel).Inc()
	r.cacheLatency.WithLabelValues(stage, opLabel, resLabel).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
