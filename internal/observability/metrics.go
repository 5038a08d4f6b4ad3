package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting runtime metrics.
//
// The metrics system is built on Prometheus and tracks:
//   - Messages flowing through Conversations, by participant variant
//   - Provider Adapter request performance and token usage
//   - Tool execution patterns and latencies
//   - Error rates categorized by legionerr.Kind and component
//   - Active Agent Runtime dispatches and their iteration counts
//   - Approval cascade volume and outcome
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	metrics.MessageSent("agent")
//	defer metrics.RecordProviderRequest("anthropic", "claude-3-opus", "success", time.Since(start).Seconds(), 100, 500)
type Metrics struct {
	// MessageCounter tracks messages appended to Conversations.
	// Labels: variant (agent|user|mock), direction (sent|received)
	MessageCounter *prometheus.CounterVec

	// ProviderRequestDuration measures Provider Adapter Chat call latency.
	// Labels: provider, model
	ProviderRequestDuration *prometheus.HistogramVec

	// ProviderRequestCounter counts Provider Adapter Chat calls.
	// Labels: provider, model, status (success|error)
	ProviderRequestCounter *prometheus.CounterVec

	// ProviderTokensUsed tracks token consumption.
	// Labels: provider, model, type (prompt|completion)
	ProviderTokensUsed *prometheus.CounterVec

	// ToolExecutionCounter counts tool invocations.
	// Labels: tool_name, status (success|error|denied|rejected)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_name
	ToolExecutionDuration *prometheus.HistogramVec

	// ErrorCounter tracks errors by component and legionerr.Kind.
	// Labels: component, kind
	ErrorCounter *prometheus.CounterVec

	// ActiveDispatches is a gauge tracking in-flight Agent Runtime dispatches.
	// Labels: agent_id
	ActiveDispatches *prometheus.GaugeVec

	// RuntimeIterations measures how many loop iterations a dispatch took.
	// Labels: agent_id
	RuntimeIterations *prometheus.HistogramVec

	// ApprovalRequests counts approval cascade suspensions by outcome route.
	// Labels: route (user_medium|agent_authority|parent_bridge|rejected_no_approver)
	ApprovalRequests *prometheus.CounterVec

	// ApprovalOutcome counts resolved approval decisions.
	// Labels: approved (true|false)
	ApprovalOutcome *prometheus.CounterVec

	// ChainDepth observes the communication chain depth at each dispatch.
	ChainDepth *prometheus.HistogramVec

	// ProviderCostUSD tracks estimated cost in USD.
	// Labels: provider, model
	ProviderCostUSD *prometheus.CounterVec

	// ContextWindowUsed tracks context window utilization.
	// Labels: provider, model
	ContextWindowUsed *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
// This should be called once at application startup.
func NewMetrics() *Metrics {
	return &Metrics{
		MessageCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "legion_messages_total",
				Help: "Total number of messages appended to conversations, by participant variant and direction",
			},
			[]string{"variant", "direction"},
		),

		ProviderRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "legion_provider_request_duration_seconds",
				Help:    "Duration of Provider Adapter Chat calls in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),

		ProviderRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "legion_provider_requests_total",
				Help: "Total number of Provider Adapter Chat calls by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),

		ProviderTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "legion_provider_tokens_total",
				Help: "Total number of tokens used by provider, model, and type",
			},
			[]string{"provider", "model", "type"},
		),

		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "legion_tool_executions_total",
				Help: "Total number of tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),

		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "legion_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),

		ErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "legion_errors_total",
				Help: "Total number of errors by component and legionerr kind",
			},
			[]string{"component", "kind"},
		),

		ActiveDispatches: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "legion_active_dispatches",
				Help: "Current number of in-flight Agent Runtime dispatches by agent id",
			},
			[]string{"agent_id"},
		),

		RuntimeIterations: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "legion_runtime_iterations",
				Help:    "Agent Runtime loop iterations consumed per dispatch",
				Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34, 50},
			},
			[]string{"agent_id"},
		),

		ApprovalRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "legion_approval_requests_total",
				Help: "Total number of approval cascade suspensions by resolution route",
			},
			[]string{"route"},
		),

		ApprovalOutcome: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "legion_approval_outcome_total",
				Help: "Total number of resolved approval decisions by outcome",
			},
			[]string{"approved"},
		),

		ChainDepth: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "legion_chain_depth",
				Help:    "Communication chain depth observed at dispatch time",
				Buckets: []float64{1, 2, 3, 4, 5, 7, 10},
			},
			[]string{},
		),

		ProviderCostUSD: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "legion_provider_cost_usd_total",
				Help: "Estimated Provider Adapter API cost in USD",
			},
			[]string{"provider", "model"},
		),

		ContextWindowUsed: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "legion_context_window_tokens",
				Help:    "Context window tokens used per Chat call",
				Buckets: []float64{1000, 4000, 8000, 16000, 32000, 64000, 128000},
			},
			[]string{"provider", "model"},
		),
	}
}

// MessageSent increments the message counter for a sent message.
func (m *Metrics) MessageSent(variant string) {
	m.MessageCounter.WithLabelValues(variant, "sent").Inc()
}

// MessageReceived increments the message counter for a received message.
func (m *Metrics) MessageReceived(variant string) {
	m.MessageCounter.WithLabelValues(variant, "received").Inc()
}

// RecordProviderRequest records metrics for a Provider Adapter Chat call.
func (m *Metrics) RecordProviderRequest(provider, model, status string, durationSeconds float64, promptTokens, completionTokens int) {
	m.ProviderRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.ProviderRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	if promptTokens > 0 {
		m.ProviderTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.ProviderTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}

// RecordToolExecution records metrics for a tool execution.
func (m *Metrics) RecordToolExecution(toolName, status string, durationSeconds float64) {
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordError increments the error counter for a given component and
// legionerr.Kind (see legionerr.Error.Kind).
func (m *Metrics) RecordError(component, kind string) {
	m.ErrorCounter.WithLabelValues(component, kind).Inc()
}

// DispatchStarted increments the active-dispatch gauge for agentID.
func (m *Metrics) DispatchStarted(agentID string) {
	m.ActiveDispatches.WithLabelValues(agentID).Inc()
}

// DispatchEnded decrements the active-dispatch gauge and records the
// iteration count the dispatch consumed.
func (m *Metrics) DispatchEnded(agentID string, iterations int) {
	m.ActiveDispatches.WithLabelValues(agentID).Dec()
	m.RuntimeIterations.WithLabelValues(agentID).Observe(float64(iterations))
}

// RecordApprovalRequest records one approval cascade suspension and the
// route the Communicator resolved it through.
func (m *Metrics) RecordApprovalRequest(route string) {
	m.ApprovalRequests.WithLabelValues(route).Inc()
}

// RecordApprovalOutcome records a resolved approval decision.
func (m *Metrics) RecordApprovalOutcome(approved bool) {
	label := "false"
	if approved {
		label = "true"
	}
	m.ApprovalOutcome.WithLabelValues(label).Inc()
}

// RecordChainDepth observes the communication chain depth at dispatch time.
func (m *Metrics) RecordChainDepth(depth int) {
	m.ChainDepth.WithLabelValues().Observe(float64(depth))
}

// RecordProviderCost records estimated API cost.
func (m *Metrics) RecordProviderCost(provider, model string, costUSD float64) {
	m.ProviderCostUSD.WithLabelValues(provider, model).Add(costUSD)
}

// RecordContextWindow records context window utilization.
func (m *Metrics) RecordContextWindow(provider, model string, tokensUsed int) {
	m.ContextWindowUsed.WithLabelValues(provider, model).Observe(float64(tokensUsed))
}
