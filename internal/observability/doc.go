// Package observability provides comprehensive monitoring and debugging capabilities
// for the Legion runtime through metrics, structured logging, and distributed tracing.
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
//   - Messages flowing through Conversations, by participant variant
//   - Provider Adapter request latency, token usage, and cost
//   - Tool execution performance
//   - Error rates by component and legionerr.Kind
//   - Active Agent Runtime dispatches and iteration counts
//   - Approval cascade volume and resolution outcome
//
// Example usage:
//
//	metrics := observability.NewMetrics()
//
//	// Track message flow
//	metrics.MessageSent("agent")
//
//	// Track Provider Adapter requests
//	start := time.Now()
//	// ... call provider.Chat ...
//	metrics.RecordProviderRequest("anthropic", "claude-3-opus", "success",
//	    time.Since(start).Seconds(), promptTokens, completionTokens)
//
//	// Track tool execution
//	start = time.Now()
//	// ... execute tool ...
//	metrics.RecordToolExecution("web_search", "success", time.Since(start).Seconds())
//
// # Logging
//
// Logging is built on Go's slog package with enhancements for:
//   - Automatic request ID correlation from context
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
//	// Add context IDs for correlation
//	ctx := observability.AddRequestID(ctx, requestID)
//	ctx = observability.AddSessionID(ctx, sessionID)
//
//	// Structured logging with automatic context correlation
//	logger.Info(ctx, "dispatching agent",
//	    "agent_id", agentID,
//	    "conversation_id", convID,
//	)
//
//	// Error logging with automatic redaction
//	logger.Error(ctx, "provider request failed",
//	    "error", err,
//	    "provider", "anthropic",
//	    "api_key", apiKey, // Automatically redacted
//	)
//
// # Tracing
//
// Distributed tracing uses OpenTelemetry to track requests across components:
//   - End-to-end dispatch visualization across a communication chain
//   - Performance bottleneck identification
//   - Error correlation across agents
//
// Example usage:
//
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//	    ServiceName:    "legion",
//	    ServiceVersion: "1.0.0",
//	    Environment:    "production",
//	    Endpoint:       "localhost:4317", // OTLP collector
//	    SamplingRate:   0.1,              // Sample 10% of traces
//	})
//	defer shutdown(context.Background())
//
//	// Trace a dispatch
//	ctx, span := tracer.TraceDispatch(ctx, agentID, conversationID)
//	defer span.End()
//
//	// Trace Provider Adapter requests
//	ctx, providerSpan := tracer.TraceProviderRequest(ctx, "anthropic", "claude-3-opus")
//	defer providerSpan.End()
//
//	// Trace tool execution
//	ctx, toolSpan := tracer.TraceToolExecution(ctx, "web_search")
//	defer toolSpan.End()
//	if err != nil {
//	    tracer.RecordError(toolSpan, err)
//	}
//
// # Context Propagation
//
// All three components integrate with Go's context for automatic correlation:
//
//	ctx = observability.AddRequestID(ctx, "req-123")
//	ctx = observability.AddSessionID(ctx, "sess-456")
//	ctx = observability.AddAgentID(ctx, "agent-789")
//
//	// IDs automatically appear in logs
//	logger.Info(ctx, "dispatching") // Includes request_id, session_id, agent_id
//
//	// Spans inherit context
//	ctx, span := tracer.Start(ctx, "operation")
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
// # Monitoring Dashboard
//
// The metrics exposed can be used to build dashboards:
//
//	# Message throughput
//	rate(legion_messages_total[5m])
//
//	# Provider request latency (95th percentile)
//	histogram_quantile(0.95, rate(legion_provider_request_duration_seconds_bucket[5m]))
//
//	# Error rate
//	rate(legion_errors_total[5m])
//
//	# Active agent dispatches
//	legion_active_dispatches
//
//	# Approval cascade rejection rate
//	rate(legion_approval_outcome_total{approved="false"}[5m])
//
// # Alerting
//
// Recommended alerts based on metrics:
//   - High error rate: legion_errors_total > threshold
//   - High provider latency: p95 latency > 10s
//   - Dispatch accumulation: legion_active_dispatches growing unbounded
//   - Approval backlog: legion_approval_requests_total without matching outcome
//
// # Further Reading
//
//   - Prometheus best practices: https://prometheus.io/docs/practices/naming/
//   - OpenTelemetry specification: https://opentelemetry.io/docs/specs/otel/
//   - slog documentation: https://pkg.go.dev/log/slog
package observability
