// Package agentruntime implements the Agent Runtime: the bounded
// tool-use loop a Communicator dispatch drives on behalf of an agent
// Participant (spec §4.7).
package agentruntime

import (
	"context"
	"fmt"

	"github.com/legionai/legion/internal/collective"
	"github.com/legionai/legion/internal/conversation"
	"github.com/legionai/legion/internal/legionerr"
	"github.com/legionai/legion/internal/providers"
	"github.com/legionai/legion/internal/suspension"
	"github.com/legionai/legion/internal/tools"
	"github.com/legionai/legion/pkg/models"
)

// DefaultMaxIterations is the built-in stop-gap used when neither the
// agent, nor the workspace, nor the global configuration overrides it.
const DefaultMaxIterations = 50

// ProviderResolver looks up the Provider a ModelRef names.
type ProviderResolver interface {
	Provider(ref *collective.ModelRef) (providers.Provider, error)
}

// EventPublisher is the subset of the Event Bus the runtime needs to
// announce each loop iteration.
type EventPublisher interface {
	Publish(models.Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(models.Event) {}

// Runtime drives one agent's bounded LLM/tool loop.
type Runtime struct {
	providerResolver ProviderResolver
	toolRegistry     *tools.Registry
	collectiveReg    *collective.Registry
	executor         *tools.Executor
	defaultMaxIter   int
	events           EventPublisher
}

// Config wires a Runtime's dependencies.
type Config struct {
	Providers      ProviderResolver
	ToolRegistry   *tools.Registry
	CollectiveReg  *collective.Registry
	DefaultMaxIter int
	Events         EventPublisher
}

// New builds a Runtime.
func New(cfg Config) *Runtime {
	maxIter := cfg.DefaultMaxIter
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	events := cfg.Events
	if events == nil {
		events = noopPublisher{}
	}
	return &Runtime{
		providerResolver: cfg.Providers,
		toolRegistry:     cfg.ToolRegistry,
		collectiveReg:    cfg.CollectiveReg,
		executor:         tools.NewExecutorWithEvents(cfg.ToolRegistry, events),
		defaultMaxIter:   maxIter,
		events:           events,
	}
}

// Run handles one incoming message directed at agent within conv, per
// spec §4.7. It blocks for the whole turn, including any time spent
// rendezvousing through bridge for tool approval — the Communicator is
// responsible for racing this call's goroutine against the bridge's
// signal to implement the approval cascade without blocking the process.
func (rt *Runtime) Run(
	ctx context.Context,
	agent *collective.Participant,
	conv *conversation.Conversation,
	chain []string,
	bridge *suspension.Bridge,
	sessionID string,
) (string, error) {
	provider, err := rt.providerResolver.Provider(agent.Model)
	if err != nil {
		rt.publishError(err)
		return "", legionerr.ProviderErr(err)
	}

	effectiveTools := rt.toolRegistry.EffectiveTools(agent)
	toolDefs := tools.Definitions(effectiveTools)

	history := append([]models.Message(nil), conv.Messages()...)

	maxIter := rt.defaultMaxIter
	if agent.RuntimeLimits != nil && agent.RuntimeLimits.MaxIterations != nil {
		maxIter = *agent.RuntimeLimits.MaxIterations
	}

	opts := providers.Options{
		Model:        modelName(agent.Model),
		SystemPrompt: agent.SystemPrompt,
		Tools:        toolDefs,
	}
	if agent.Model != nil {
		opts.Temperature = agent.Model.Temperature
		opts.MaxTokens = agent.Model.MaxTokens
	}

	execCtx := tools.ExecContext{
		Caller:         agent.ID,
		ConversationID: conv.ID(),
		SessionID:      sessionID,
		Chain:          chain,
		Registry:       rt.toolRegistry,
		Collective:     rt.collectiveReg,
		Bridge:         bridge,
	}

	for iteration := 0; iteration < maxIter; iteration++ {
		select {
		case <-ctx.Done():
			return "", legionerr.CancelledErr(conv.ID())
		default:
		}

		completion, err := provider.Chat(ctx, history, opts)
		if err != nil {
			rt.publishError(err)
			return "", legionerr.ProviderErr(err)
		}

		rt.events.Publish(models.Event{
			Type: models.EventIteration,
			Iteration: &models.IterationPayload{
				ConversationID: conv.ID(),
				Iteration:      iteration,
				ToolCallCount:  len(completion.ToolCalls),
			},
		})

		if !completion.HasToolCalls() {
			msg := conv.Append(agent.ID, []models.Block{models.TextBlock(completion.Text)})
			return msg.Text(), nil
		}

		var assistantContent []models.Block
		if completion.Text != "" {
			assistantContent = append(assistantContent, models.TextBlock(completion.Text))
		}
		for _, call := range completion.ToolCalls {
			assistantContent = append(assistantContent, models.ToolCallBlock(call))
		}
		assistantMsg := conv.Append(agent.ID, assistantContent)
		history = append(history, assistantMsg)

		results := rt.executor.Execute(ctx, completion.ToolCalls, agent, rt.collectiveReg, chain, bridge, execCtx)
		if len(results) != len(completion.ToolCalls) {
			// A catastrophic executor failure must still preserve the
			// tool-ordering invariant: synthesize an error-result for
			// every call rather than appending a short batch.
			results = synthesizeFailureResults(completion.ToolCalls)
		}

		var resultBlocks []models.Block
		for _, r := range results {
			resultBlocks = append(resultBlocks, models.ToolResultBlock(r))
		}
		resultMsg := conv.Append(agent.ID, resultBlocks)
		history = append(history, resultMsg)
	}

	boundedMsg := conv.Append(agent.ID, []models.Block{
		models.TextBlock(fmt.Sprintf("reached max iterations (%d) without a final response", maxIter)),
	})
	return boundedMsg.Text(), legionerr.IterationExceeded(conv.ID(), maxIter)
}

// publishError announces a ProviderError abort on the Event Bus, per
// spec §7's propagation policy ("surfaces as... an error event").
func (rt *Runtime) publishError(err error) {
	rt.events.Publish(models.Event{
		Type: models.EventError,
		Error: &models.ErrorPayload{
			Message: err.Error(),
			Code:    string(legionerr.KindProvider),
		},
	})
}

func synthesizeFailureResults(calls []models.ToolCall) []models.ToolResult {
	out := make([]models.ToolResult, len(calls))
	for i, c := range calls {
		out[i] = models.ToolResult{ToolCallID: c.ID, Content: "tool executor failed", IsError: true}
	}
	return out
}

func modelName(ref *collective.ModelRef) string {
	if ref == nil {
		return ""
	}
	return ref.Model
}
