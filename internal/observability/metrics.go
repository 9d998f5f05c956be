package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting pipeline
// metrics. The metrics system is built on Prometheus and tracks:
//   - Per-stage duration (decompose, plan, execute, synthesize)
//   - LLM request performance, token usage, and cost by provider/model
//   - Tool execution patterns and latencies by tool name
//   - Error rates categorized by pipeline stage and error kind
//   - In-flight run counts for capacity planning
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	defer metrics.StageDuration("decompose").Observe(time.Since(start).Seconds())
//	metrics.RecordLLMRequest("openai", "gpt-4o", "success", elapsed, 200, 150)
type Metrics struct {
	// StageDurationSeconds measures how long each pipeline stage takes.
	// Labels: stage (decompose|plan|execute|synthesize)
	StageDurationSeconds *prometheus.HistogramVec

	// RunsTotal counts completed pipeline runs by final status.
	// Labels: status (complete|error)
	RunsTotal *prometheus.CounterVec

	// RunsInFlight is a gauge of pipeline runs currently executing.
	RunsInFlight prometheus.Gauge

	// LLMRequestDuration measures LLM API call latency in seconds.
	// Labels: provider (openai|anthropic), model
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts LLM requests by provider and model.
	// Labels: provider, model, status (success|error)
	LLMRequestCounter *prometheus.CounterVec

	// LLMTokensUsed tracks token consumption.
	// Labels: provider, model, type (prompt|completion)
	LLMTokensUsed *prometheus.CounterVec

	// LLMCostUSD tracks estimated cost in USD.
	// Labels: provider, model
	LLMCostUSD *prometheus.CounterVec

	// SubQueryCounter counts sub-query executions by tool and outcome.
	// Labels: tool_name, status (success|error)
	SubQueryCounter *prometheus.CounterVec

	// SubQueryDuration measures sub-query execution time in seconds.
	// Labels: tool_name
	SubQueryDuration *prometheus.HistogramVec

	// CandidatesRanked tracks how many candidates survive ranking per run.
	CandidatesRanked prometheus.Histogram

	// ProfilesFetched counts profile fetches by outcome during synthesis.
	// Labels: status (success|error)
	ProfilesFetched *prometheus.CounterVec

	// ErrorCounter tracks pipeline errors by stage and kind.
	// Labels: stage, error_kind
	ErrorCounter *prometheus.CounterVec

	// ToolServerRetries counts retried tool-server calls.
	// Labels: tool_name
	ToolServerRetries *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics. Call once at
// startup; every metric registers against the default registry and is
// served by whatever handler internal/observability wires to
// config.Observability.Metrics.Addr.
func NewMetrics() *Metrics {
	return &Metrics{
		StageDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "graphquery_stage_duration_seconds",
				Help:    "Duration of each pipeline stage in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),

		RunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graphquery_runs_total",
				Help: "Total number of pipeline runs by final status",
			},
			[]string{"status"},
		),

		RunsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "graphquery_runs_in_flight",
				Help: "Current number of pipeline runs executing",
			},
		),

		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "graphquery_llm_request_duration_seconds",
				Help:    "Duration of LLM API requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),

		LLMRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graphquery_llm_requests_total",
				Help: "Total number of LLM requests by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),

		LLMTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graphquery_llm_tokens_total",
				Help: "Total number of tokens used by provider, model, and type",
			},
			[]string{"provider", "model", "type"},
		),

		LLMCostUSD: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graphquery_llm_cost_usd_total",
				Help: "Estimated LLM API cost in USD",
			},
			[]string{"provider", "model"},
		),

		SubQueryCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graphquery_subquery_executions_total",
				Help: "Total number of sub-query executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),

		SubQueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "graphquery_subquery_duration_seconds",
				Help:    "Duration of sub-query executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),

		CandidatesRanked: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "graphquery_candidates_ranked",
				Help:    "Number of ranked candidates produced per run",
				Buckets: []float64{0, 1, 5, 10, 20, 40, 60},
			},
		),

		ProfilesFetched: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graphquery_profiles_fetched_total",
				Help: "Total number of profile fetches during synthesis by outcome",
			},
			[]string{"status"},
		),

		ErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graphquery_errors_total",
				Help: "Total number of pipeline errors by stage and error kind",
			},
			[]string{"stage", "error_kind"},
		),

		ToolServerRetries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graphquery_toolserver_retries_total",
				Help: "Total number of retried tool-server calls by tool name",
			},
			[]string{"tool_name"},
		),
	}
}

// StageDuration returns the observer for a named pipeline stage.
//
// Example:
//
//	start := time.Now()
//	filters := decomposer.Decompose(ctx, query)
//	metrics.StageDuration("decompose").Observe(time.Since(start).Seconds())
func (m *Metrics) StageDuration(stage string) prometheus.Observer {
	return m.StageDurationSeconds.WithLabelValues(stage)
}

// RecordRun records a completed pipeline run's final status.
func (m *Metrics) RecordRun(status string) {
	m.RunsTotal.WithLabelValues(status).Inc()
}

// RunStarted increments the in-flight run gauge.
func (m *Metrics) RunStarted() {
	m.RunsInFlight.Inc()
}

// RunEnded decrements the in-flight run gauge.
func (m *Metrics) RunEnded() {
	m.RunsInFlight.Dec()
}

// RecordLLMRequest records metrics for an LLM API request.
//
// Example:
//
//	start := time.Now()
//	text, err := provider.Complete(ctx, req)
//	metrics.RecordLLMRequest("openai", "gpt-4o", status(err), time.Since(start).Seconds(), 0, 0)
func (m *Metrics) RecordLLMRequest(provider, model, status string, durationSeconds float64, promptTokens, completionTokens int) {
	m.LLMRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	if promptTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}

// RecordLLMCost records estimated API cost.
func (m *Metrics) RecordLLMCost(provider, model string, costUSD float64) {
	m.LLMCostUSD.WithLabelValues(provider, model).Add(costUSD)
}

// RecordSubQuery records metrics for one sub-query's tool call.
//
// Example:
//
//	start := time.Now()
//	_, err := client.Call(ctx, sub.ToolName, sub.Arguments)
//	metrics.RecordSubQuery(sub.ToolName, status(err), time.Since(start).Seconds())
func (m *Metrics) RecordSubQuery(toolName, status string, durationSeconds float64) {
	m.SubQueryCounter.WithLabelValues(toolName, status).Inc()
	m.SubQueryDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordToolServerRetry records a retried tool-server call.
func (m *Metrics) RecordToolServerRetry(toolName string) {
	m.ToolServerRetries.WithLabelValues(toolName).Inc()
}

// RecordCandidatesRanked records the candidate count a run's executor
// stage produced.
func (m *Metrics) RecordCandidatesRanked(count int) {
	m.CandidatesRanked.Observe(float64(count))
}

// RecordProfileFetch records one profile-fetch outcome during synthesis.
func (m *Metrics) RecordProfileFetch(status string) {
	m.ProfilesFetched.WithLabelValues(status).Inc()
}

// RecordError increments the error counter for a given pipeline stage and
// error kind.
//
// Example:
//
//	metrics.RecordError("execute", string(graphmodel.ErrKindSubQuery))
func (m *Metrics) RecordError(stage, errorKind string) {
	m.ErrorCounter.WithLabelValues(stage, errorKind).Inc()
}
