// Package observability provides Prometheus metrics for monitoring the
// famulus engine.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// ToolBuckets defines histogram buckets for tool invocations, which are
// usually much faster than model turns.
var ToolBuckets = []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 15, 30}

var (
	// TurnsTotal counts completed turns by outcome (completed, failed, cancelled).
	TurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "famulus_turns_total",
			Help: "Completed turns by outcome",
		},
		[]string{"outcome"},
	)

	// ProviderRequestsTotal counts streaming requests sent to model backends.
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "famulus_provider_requests_total",
			Help: "Provider requests",
		},
		[]string{"backend", "model", "status"},
	)

	// ProviderLatency records time from request start to terminal stream event.
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "famulus_provider_latency_seconds",
			Help:    "Provider stream latency",
			Buckets: LLMBuckets,
		},
		[]string{"backend", "model"},
	)

	// ProviderTokensTotal counts tokens processed by direction (input/output).
	ProviderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "famulus_provider_tokens_total",
			Help: "Token count",
		},
		[]string{"backend", "model", "direction"},
	)

	// StreamEventsTotal counts stream events by type.
	StreamEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "famulus_stream_events_total",
			Help: "Stream events by type",
		},
		[]string{"type"},
	)

	// ToolInvocationsTotal counts tool invocations by server, tool, and outcome.
	ToolInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "famulus_tool_invocations_total",
			Help: "Tool invocations",
		},
		[]string{"server", "tool", "status"},
	)

	// ToolInvocationDuration records tool invocation duration in seconds.
	ToolInvocationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "famulus_tool_invocation_seconds",
			Help:    "Tool invocation duration",
			Buckets: ToolBuckets,
		},
		[]string{"server", "tool"},
	)

	// ToolServersReady tracks the number of tool servers in the ready state.
	ToolServersReady = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "famulus_tool_servers_ready",
			Help: "Tool servers currently ready",
		},
	)
)

func init() {
	prometheus.MustRegister(
		TurnsTotal,
		ProviderRequestsTotal,
		ProviderLatency,
		ProviderTokensTotal,
		StreamEventsTotal,
		ToolInvocationsTotal,
		ToolInvocationDuration,
		ToolServersReady,
	)
}
