// Package metrics provides Prometheus metrics export for the analysis service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hrygo/captain/ai/core/llm"
)

const namespace = "captain"

// PrometheusExporter exports analysis metrics in Prometheus format.
// It implements team.Observer.
type PrometheusExporter struct {
	registry *prometheus.Registry

	// HTTP analyze endpoint
	analyzeRequests *prometheus.CounterVec
	analyzeLatency  prometheus.Histogram

	// Team runs
	runs       *prometheus.CounterVec
	runLatency prometheus.Histogram
	runTurns   prometheus.Histogram
	runsActive prometheus.Gauge

	// Agent turns
	agentTurns       *prometheus.CounterVec
	agentTurnLatency *prometheus.HistogramVec
	agentErrors      *prometheus.CounterVec

	// LLM token metrics
	llmTokensUsed   *prometheus.CounterVec
	llmTokensCached *prometheus.CounterVec
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64

	// RegisterRuntime adds the Go runtime and process collectors.
	RegisterRuntime bool
}

// DefaultConfig returns default Prometheus configuration.
// Team runs take tens of seconds, so the buckets reach two minutes.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60, 90, 120},
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter.
func NewPrometheusExporter(cfg Config) *PrometheusExporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &PrometheusExporter{
		registry: registry,
	}

	e.analyzeRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "analyze_requests_total",
			Help:      "Total number of analyze requests by response code",
		},
		[]string{"code"},
	)

	e.analyzeLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "analyze_latency_seconds",
			Help:      "Analyze request latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
	)

	e.runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "team",
			Name:      "runs_total",
			Help:      "Total number of team runs",
		},
		[]string{"status"},
	)

	e.runLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "team",
			Name:      "run_latency_seconds",
			Help:      "Team run latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
	)

	e.runTurns = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "team",
			Name:      "run_turns",
			Help:      "Completed agent turns per team run",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		},
	)

	e.runsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "team",
			Name:      "runs_active",
			Help:      "Number of team runs in progress",
		},
	)

	e.agentTurns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "turns_total",
			Help:      "Total number of agent turns",
		},
		[]string{"agent", "status"},
	)

	e.agentTurnLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "turn_latency_seconds",
			Help:      "Agent turn latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"agent"},
	)

	e.agentErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "errors_total",
			Help:      "Total number of agent errors",
		},
		[]string{"agent", "error_class"},
	)

	e.llmTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Total LLM tokens consumed",
		},
		[]string{"agent", "token_type"},
	)

	e.llmTokensCached = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "tokens_cached_total",
			Help:      "Total LLM tokens served from cache",
		},
		[]string{"agent"},
	)

	registry.MustRegister(
		e.analyzeRequests,
		e.analyzeLatency,
		e.runs,
		e.runLatency,
		e.runTurns,
		e.runsActive,
		e.agentTurns,
		e.agentTurnLatency,
		e.agentErrors,
		e.llmTokensUsed,
		e.llmTokensCached,
	)
	if cfg.RegisterRuntime {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return e
}

// RecordAnalyzeRequest records one analyze HTTP request.
func (e *PrometheusExporter) RecordAnalyzeRequest(code int, latency time.Duration) {
	e.analyzeRequests.WithLabelValues(strconv.Itoa(code)).Inc()
	e.analyzeLatency.Observe(latency.Seconds())
}

// RunStarted marks a team run as in progress. Call the returned func when it ends.
func (e *PrometheusExporter) RunStarted() (done func()) {
	e.runsActive.Inc()
	return e.runsActive.Dec
}

// ObserveTurn records one agent turn.
func (e *PrometheusExporter) ObserveTurn(agentName string, latency time.Duration, stats *llm.LLMCallStats, errorClass string) {
	status := "success"
	if errorClass != "" {
		status = "error"
		e.agentErrors.WithLabelValues(agentName, errorClass).Inc()
	}

	e.agentTurns.WithLabelValues(agentName, status).Inc()
	e.agentTurnLatency.WithLabelValues(agentName).Observe(latency.Seconds())

	if stats == nil {
		return
	}
	e.llmTokensUsed.WithLabelValues(agentName, "prompt").Add(float64(stats.PromptTokens))
	e.llmTokensUsed.WithLabelValues(agentName, "completion").Add(float64(stats.CompletionTokens))
	if stats.CacheReadTokens > 0 {
		e.llmTokensCached.WithLabelValues(agentName).Add(float64(stats.CacheReadTokens))
	}
}

// ObserveRun records a finished team run.
func (e *PrometheusExporter) ObserveRun(status string, turns int, latency time.Duration) {
	e.runs.WithLabelValues(status).Inc()
	e.runLatency.Observe(latency.Seconds())
	e.runTurns.Observe(float64(turns))
}

// Handler returns an HTTP handler for the metrics endpoint.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// ServeHTTP implements http.Handler for the metrics endpoint.
func (e *PrometheusExporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.Handler().ServeHTTP(w, r)
}

// GetRegistry returns the Prometheus registry.
func (e *PrometheusExporter) GetRegistry() *prometheus.Registry {
	return e.registry
}
