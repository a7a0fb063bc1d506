package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// TestMetricsRegistered verifies that all metrics are registered in the
// default registry without panicking.
func TestMetricsRegistered(t *testing.T) {
	// Counters and histograms only appear in Gather output after the
	// first observation, so seed every metric.
	TurnsTotal.WithLabelValues("completed").Inc()
	ProviderRequestsTotal.WithLabelValues("openai", "test", "ok").Inc()
	ProviderLatency.WithLabelValues("openai", "test").Observe(0.1)
	ProviderTokensTotal.WithLabelValues("openai", "test", "input").Add(10)
	StreamEventsTotal.WithLabelValues("text_delta").Inc()
	ToolInvocationsTotal.WithLabelValues("tools", "echo", "ok").Inc()
	ToolInvocationDuration.WithLabelValues("tools", "echo").Observe(0.01)
	ToolServersReady.Set(1)

	expected := map[string]bool{
		"famulus_turns_total":              false,
		"famulus_provider_requests_total":  false,
		"famulus_provider_latency_seconds": false,
		"famulus_provider_tokens_total":    false,
		"famulus_stream_events_total":      false,
		"famulus_tool_invocations_total":   false,
		"famulus_tool_invocation_seconds":  false,
		"famulus_tool_servers_ready":       false,
	}

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("unexpected gather error: %v", err)
	}
	for _, mf := range families {
		if _, ok := expected[mf.GetName()]; ok {
			expected[mf.GetName()] = true
		}
	}
	for name, found := range expected {
		if !found {
			t.Errorf("metric %q not found in default registry", name)
		}
	}
}

// TestCounterIncrements verifies label routing on the turn counter.
func TestCounterIncrements(t *testing.T) {
	before := counterValue(t, TurnsTotal, "cancelled")
	TurnsTotal.WithLabelValues("cancelled").Inc()
	after := counterValue(t, TurnsTotal, "cancelled")
	if after-before != 1 {
		t.Errorf("expected counter to increase by 1, got delta=%f", after-before)
	}
}

// counterValue reads the current value of a CounterVec for the given labels.
func counterValue(t *testing.T, cv *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	c, err := cv.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("getting counter metric: %v", err)
	}
	if err := c.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("writing counter metric: %v", err)
	}
	return m.GetCounter().GetValue()
}
