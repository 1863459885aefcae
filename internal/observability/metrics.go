package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks session token consumption on a private registry, so
// two sessions in one process never share counters.
type Metrics struct {
	registry         *prometheus.Registry
	promptTokens     *prometheus.CounterVec
	completionTokens *prometheus.CounterVec
	requests         *prometheus.CounterVec
	failures         *prometheus.CounterVec
}

// NewMetrics creates an empty token accounting registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		promptTokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "datatalk_prompt_tokens_total",
				Help: "Total prompt tokens sent to the model.",
			},
			[]string{"purpose"},
		),
		completionTokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "datatalk_completion_tokens_total",
				Help: "Total completion tokens returned by the model.",
			},
			[]string{"purpose"},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "datatalk_model_requests_total",
				Help: "Total model requests issued.",
			},
			[]string{"purpose"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "datatalk_translation_failures_total",
				Help: "Total model requests that produced no usable answer.",
			},
			[]string{"purpose"},
		),
	}
	m.registry.MustRegister(m.promptTokens, m.completionTokens, m.requests, m.failures)
	return m
}

// Record adds one request's token usage under a purpose label
// ("query", "suggestions", ...).
func (m *Metrics) Record(purpose string, promptTokens, completionTokens int) {
	m.requests.WithLabelValues(purpose).Inc()
	if promptTokens > 0 {
		m.promptTokens.WithLabelValues(purpose).Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.completionTokens.WithLabelValues(purpose).Add(float64(completionTokens))
	}
}

// RecordFailure counts a request whose response could not be turned
// into SQL or an operation.
func (m *Metrics) RecordFailure(purpose string) {
	m.failures.WithLabelValues(purpose).Inc()
}

// UsageSnapshot is the aggregated session consumption for the final
// token report.
type UsageSnapshot struct {
	Requests         int
	PromptTokens     int
	CompletionTokens int
	Failures         int
}

// TotalTokens is prompt plus completion tokens.
func (s UsageSnapshot) TotalTokens() int {
	return s.PromptTokens + s.CompletionTokens
}

// Snapshot gathers the current counter values across all purposes.
func (m *Metrics) Snapshot() (UsageSnapshot, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return UsageSnapshot{}, fmt.Errorf("gather metrics: %w", err)
	}

	var snapshot UsageSnapshot
	for _, family := range families {
		var total float64
		for _, metric := range family.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
		switch family.GetName() {
		case "datatalk_prompt_tokens_total":
			snapshot.PromptTokens = int(total)
		case "datatalk_completion_tokens_total":
			snapshot.CompletionTokens = int(total)
		case "datatalk_model_requests_total":
			snapshot.Requests = int(total)
		case "datatalk_translation_failures_total":
			snapshot.Failures = int(total)
		}
	}
	return snapshot, nil
}
