// Package observability provides comprehensive monitoring and debugging capabilities
// for the graphquery pipeline through metrics, structured logging, and distributed tracing.
//
// # Overview
//
// The observability package implements the three pillars of observability:
//
//  1. Metrics - Quantitative measurements using Prometheus
//  2. Logging - Structured logs with sensitive data redaction
//  3. Tracing - Distributed request tracing with OpenTelemetry
//
// # Architecture
//
// The package is designed to be:
//   - Low-overhead: Minimal performance impact on production systems
//   - Type-safe: Strongly-typed APIs reduce configuration errors
//   - Production-ready: Built-in security (redaction) and reliability features
//   - Standards-based: Uses Prometheus, OpenTelemetry, and slog
//
// # Metrics
//
// Metrics are implemented using Prometheus client libraries and track:
//   - Pipeline stage duration (decompose, plan, execute, synthesize)
//   - Run outcome counts and in-flight run gauge
//   - LLM API request latency, token usage, and cost
//   - Sub-query (tool-server call) performance, by tool name
//   - Ranked candidate counts and profile fetch outcomes
//   - Error rates by pipeline stage and error kind
//
// Example usage:
//
//	metrics := observability.NewMetrics()
//	defer prometheus.Handler() // Expose metrics endpoint
//
//	// Track a run
//	metrics.RunStarted()
//	defer metrics.RunEnded()
//
//	// Track LLM requests
//	start := time.Now()
//	// ... make LLM request ...
//	metrics.RecordLLMRequest("anthropic", "claude-sonnet-4", "success",
//	    time.Since(start).Seconds(), promptTokens, completionTokens)
//
//	// Track a sub-query call
//	start = time.Now()
//	// ... call the tool server ...
//	metrics.RecordSubQuery("find_people_by_skill", "success", time.Since(start).Seconds())
//
// # Logging
//
// Logging is built on Go's slog package with enhancements for:
//   - Automatic request ID and run ID correlation from context
//   - Sensitive data redaction (API keys, passwords, tokens)
//   - JSON output for production, text for development
//   - Configurable log levels
//
// Example usage:
//
//	logger := observability.NewLogger(observability.LogConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    AddSource: true,
//	})
//
//	// Add correlation IDs for a run
//	ctx := observability.AddRequestID(ctx, requestID)
//	ctx = observability.AddRunID(ctx, runID)
//
//	// Structured logging with automatic context correlation
//	logger.Info(ctx, "decomposition complete",
//	    "query", query,
//	    "skills", len(filters.Skills),
//	)
//
//	// Error logging with automatic redaction
//	logger.Error(ctx, "LLM request failed",
//	    "error", err,
//	    "provider", "anthropic",
//	    "api_key", apiKey, // Automatically redacted
//	)
//
// # Tracing
//
// Distributed tracing uses OpenTelemetry to track a run across pipeline stages:
//   - End-to-end run visualization
//   - Per-stage latency breakdown
//   - Sub-query and LLM call dependency mapping
//   - Error correlation across stages
//
// Example usage:
//
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//	    ServiceName:    "graphquery",
//	    ServiceVersion: "1.0.0",
//	    Environment:    "production",
//	    Endpoint:       "localhost:4317", // OTLP collector
//	    SamplingRate:   0.1,              // Sample 10% of traces
//	})
//	defer shutdown(context.Background())
//
//	// Trace a pipeline stage
//	ctx, span := tracer.TraceStage(ctx, "decompose", runID)
//	defer span.End()
//
//	// Trace LLM requests
//	ctx, llmSpan := tracer.TraceLLMRequest(ctx, "anthropic", "claude-sonnet-4")
//	defer llmSpan.End()
//	tracer.SetAttributes(llmSpan, "prompt_tokens", 100, "completion_tokens", 500)
//
//	// Trace a sub-query call
//	ctx, toolSpan := tracer.TraceToolExecution(ctx, "find_people_by_skill")
//	defer toolSpan.End()
//	if err != nil {
//	    tracer.RecordError(toolSpan, err)
//	}
//
// # Context Propagation
//
// All three components integrate with Go's context for automatic correlation:
//
//	// Add IDs to context
//	ctx = observability.AddRequestID(ctx, "req-123")
//	ctx = observability.AddRunID(ctx, "run-456")
//
//	// IDs automatically appear in logs
//	logger.Info(ctx, "stage complete") // Includes request_id, run_id, etc.
//
//	// Spans inherit context
//	ctx, span := tracer.Start(ctx, "operation")
//	// Trace context propagates to child spans
//
// # Integration Example
//
// Complete example integrating all three components around one pipeline run:
//
//	func RunPipeline(ctx context.Context, query string) (*graphmodel.PipelineState, error) {
//	    runID := uuid.NewString()
//	    ctx = observability.AddRunID(ctx, runID)
//
//	    metrics.RunStarted()
//	    defer metrics.RunEnded()
//
//	    ctx, span := tracer.TraceStage(ctx, "decompose", runID)
//	    defer span.End()
//
//	    logger.Info(ctx, "run started", "query", query)
//
//	    llmStart := time.Now()
//	    ctx, llmSpan := tracer.TraceLLMRequest(ctx, "anthropic", "claude-sonnet-4")
//	    defer llmSpan.End()
//
//	    response, err := provider.Complete(ctx, req)
//	    llmDuration := time.Since(llmStart).Seconds()
//
//	    if err != nil {
//	        metrics.RecordError("decompose", "composition")
//	        tracer.RecordError(llmSpan, err)
//	        logger.Error(ctx, "decomposition failed", "error", err)
//	        metrics.RecordLLMRequest("anthropic", "claude-sonnet-4", "error", llmDuration, 0, 0)
//	        return nil, err
//	    }
//
//	    metrics.RecordLLMRequest("anthropic", "claude-sonnet-4", "success", llmDuration, 0, 0)
//	    return state, nil
//	}
//
// # Security Considerations
//
// The logging component automatically redacts:
//   - API keys (Anthropic, OpenAI, generic)
//   - Passwords and secrets
//   - JWT tokens
//   - Bearer tokens
//   - Custom patterns via configuration
//
// Sensitive fields in maps are also redacted:
//   - password, passwd, pwd
//   - secret, api_key, apikey
//   - token, auth, authorization
//   - private_key, privatekey
//
// # Performance
//
// The observability system is designed for minimal overhead:
//   - Metrics use lock-free counters where possible
//   - Logging with slog is highly efficient
//   - Tracing supports sampling to reduce overhead
//   - Context propagation is zero-allocation in most cases
//
// Typical overhead:
//   - Metrics: <1% CPU, ~10KB memory per metric
//   - Logging: ~1-5μs per log call
//   - Tracing: ~2-10μs per span (when sampled)
//
// # Configuration
//
// All components support configuration via structs:
//
//	// Metrics - no configuration needed, auto-registered
//	metrics := observability.NewMetrics()
//
//	// Logging - configurable output, level, format
//	logger := observability.NewLogger(observability.LogConfig{
//	    Level:          os.Getenv("GRAPHQUERY_LOG_LEVEL"),
//	    Format:         "json",
//	    AddSource:      true,
//	    RedactPatterns: []string{`custom-secret-\d+`},
//	})
//
//	// Tracing - configurable sampling, endpoint, attributes
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//	    ServiceName:    "graphquery",
//	    ServiceVersion: version,
//	    Environment:    env,
//	    Endpoint:       os.Getenv("OTEL_ENDPOINT"),
//	    SamplingRate:   0.1,
//	    Attributes: map[string]string{
//	        "deployment.region": region,
//	        "deployment.cluster": cluster,
//	    },
//	})
//	defer shutdown(context.Background())
//
// # Testing
//
// All components provide testable interfaces:
//   - Metrics can be verified using prometheus/testutil
//   - Logging can write to bytes.Buffer for assertions
//   - Tracing works with no-op exporters in tests
//
// # Best Practices
//
//  1. Always propagate context to enable correlation
//  2. Use defer for span.End() to ensure spans are closed
//  3. Record errors on both metrics and traces
//  4. Use structured logging with key-value pairs
//  5. Set appropriate sampling rates for high-traffic systems
//  6. Add relevant attributes to spans for debugging
//  7. Use typed metric labels (avoid high-cardinality values)
//  8. Call shutdown() on tracer during graceful shutdown
//
// # Monitoring Dashboard
//
// The metrics exposed can be used to build dashboards:
//
//	# Run throughput
//	rate(graphquery_runs_total[5m])
//
//	# LLM request latency (95th percentile)
//	histogram_quantile(0.95, rate(graphquery_llm_request_duration_seconds_bucket[5m]))
//
//	# Error rate
//	rate(graphquery_errors_total[5m])
//
//	# In-flight runs
//	graphquery_runs_in_flight
//
//	# Sub-query execution time
//	rate(graphquery_subquery_duration_seconds_sum[5m]) /
//	rate(graphquery_subquery_duration_seconds_count[5m])
//
// # Alerting
//
// Recommended alerts based on metrics:
//   - High error rate: graphquery_errors_total > threshold
//   - High LLM latency: p95 latency > 10s
//   - Low run throughput: rate(graphquery_runs_total) < threshold
//   - Run accumulation: graphquery_runs_in_flight growing unbounded
//
// # Further Reading
//
//   - Prometheus best practices: https://prometheus.io/docs/practices/naming/
//   - OpenTelemetry specification: https://opentelemetry.io/docs/specs/otel/
//   - slog documentation: https://pkg.go.dev/log/slog
package observability
