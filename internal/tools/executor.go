package tools

import (
	"context"

	"github.com/legionai/legion/internal/collective"
	"github.com/legionai/legion/internal/legionerr"
	"github.com/legionai/legion/internal/policy"
	"github.com/legionai/legion/internal/suspension"
	"github.com/legionai/legion/pkg/models"
)

// EventPublisher is the subset of the Event Bus the Executor needs to
// announce each tool call and its result.
type EventPublisher interface {
	Publish(models.Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(models.Event) {}

// Executor runs a batch of tool-calls produced by one LLM turn through the
// three-phase contract: pre-scan (authorize), batch-approve (rendezvous),
// execute. It always produces exactly one ToolResult per input ToolCall,
// preserving ids and order, so the tool-ordering invariant holds even when
// the batch is denied, rejected, or fails outright.
type Executor struct {
	registry *Registry
	events   EventPublisher
}

// NewExecutor builds an Executor over registry with no event publishing.
func NewExecutor(registry *Registry) *Executor {
	return &Executor{registry: registry, events: noopPublisher{}}
}

// NewExecutorWithEvents builds an Executor over registry that publishes
// tool:call/tool:result events to events as each call is scanned and run.
func NewExecutorWithEvents(registry *Registry, events EventPublisher) *Executor {
	if events == nil {
		events = noopPublisher{}
	}
	return &Executor{registry: registry, events: events}
}

type scanResult struct {
	call     models.ToolCall
	tool     Tool
	decision policy.Decision
}

// Execute runs calls on behalf of participant within chain, using bridge
// for the batch-approve rendezvous if any call requires approval. It
// blocks for the duration of that rendezvous; the Communicator races this
// call's goroutine against the bridge's signal to implement the approval
// cascade without blocking the rest of the process.
func (e *Executor) Execute(
	ctx context.Context,
	calls []models.ToolCall,
	participant *collective.Participant,
	collectiveReg policy.Registry,
	chain []string,
	bridge *suspension.Bridge,
	execCtx ExecContext,
) []models.ToolResult {
	scans := e.preScan(calls, participant, collectiveReg, chain)

	for _, s := range scans {
		e.events.Publish(models.Event{
			Type: models.EventToolCall,
			ToolCall: &models.ToolCallPayload{
				ToolCallID: s.call.ID,
				ToolName:   s.call.Name,
				Input:      s.call.Input,
				Caller:     execCtx.Caller,
			},
		})
	}

	var pendingBatch suspension.Batch
	for _, s := range scans {
		if s.decision.Kind == policy.PendingApproval {
			pendingBatch.Items = append(pendingBatch.Items, suspension.PendingItem{
				ToolCallID: s.call.ID,
				ToolName:   s.call.Name,
				Input:      s.call.Input,
				Approver:   s.decision.Approver,
			})
		}
	}

	var decisions suspension.DecisionMap
	if len(pendingBatch.Items) > 0 {
		d, err := bridge.RequestApproval(ctx, pendingBatch)
		if err != nil {
			// Bridge failure: treat every pending item as rejected so the
			// agent can still observe and adapt, per the recoverable
			// AuthError propagation policy.
			decisions = make(suspension.DecisionMap, len(pendingBatch.Items))
			for _, item := range pendingBatch.Items {
				decisions[item.ToolCallID] = suspension.Decision{Approved: false, Reason: "approval channel closed"}
			}
		} else {
			decisions = d
		}
	}

	return e.executePhase(ctx, scans, decisions, execCtx)
}

// preScan looks up each call's tool and authorization decision, without
// executing anything.
func (e *Executor) preScan(calls []models.ToolCall, participant *collective.Participant, collectiveReg policy.Registry, chain []string) []scanResult {
	out := make([]scanResult, len(calls))
	for i, call := range calls {
		tool, ok := e.registry.Get(call.Name)
		if !ok {
			out[i] = scanResult{call: call, decision: policy.Decision{Kind: policy.Denied, Reason: "unknown tool"}}
			continue
		}
		decision := policy.Evaluate(participant, collectiveReg, call.Name, chain)
		out[i] = scanResult{call: call, tool: tool, decision: decision}
	}
	return out
}

// executePhase produces exactly one ToolResult per scanned call.
func (e *Executor) executePhase(ctx context.Context, scans []scanResult, decisions suspension.DecisionMap, execCtx ExecContext) []models.ToolResult {
	results := make([]models.ToolResult, len(scans))
	for i, s := range scans {
		switch {
		case s.tool == nil:
			results[i] = models.ToolResult{ToolCallID: s.call.ID, Content: "unknown tool: " + s.call.Name, IsError: true}

		case s.decision.Kind == policy.Denied:
			results[i] = models.ToolResult{ToolCallID: s.call.ID, Content: "denied: " + s.decision.Reason, IsError: true}

		case s.decision.Kind == policy.PendingApproval:
			d := decisions[s.call.ID]
			if !d.Approved {
				reason := d.Reason
				if reason == "" {
					reason = "rejected by approver"
				}
				// A rejection is a first-class observation, not an error:
				// the agent should be able to adapt and try something else.
				results[i] = models.ToolResult{ToolCallID: s.call.ID, Content: "request rejected: " + reason}
				e.publishResult(s, results[i])
				continue
			}
			results[i] = e.run(ctx, s, execCtx)

		default: // Allowed
			results[i] = e.run(ctx, s, execCtx)
		}
		e.publishResult(s, results[i])
	}
	return results
}

// publishResult announces one tool:result event. Called once per call; the
// PendingApproval-rejected branch publishes inline and continues its loop
// iteration before reaching the common call below it.
func (e *Executor) publishResult(s scanResult, result models.ToolResult) {
	reason := ""
	if result.IsError {
		reason = result.Content
	}
	e.events.Publish(models.Event{
		Type: models.EventToolResult,
		ToolResult: &models.ToolResultPayload{
			ToolCallID: s.call.ID,
			ToolName:   s.call.Name,
			IsError:    result.IsError,
			Reason:     reason,
		},
	})
}

// run invokes a single authorized tool, converting panics and errors into
// error results rather than letting them escape the batch.
func (e *Executor) run(ctx context.Context, s scanResult, execCtx ExecContext) (result models.ToolResult) {
	result = models.ToolResult{ToolCallID: s.call.ID}
	defer func() {
		if r := recover(); r != nil {
			result = models.ToolResult{ToolCallID: s.call.ID, Content: "tool panicked", IsError: true}
		}
	}()

	out, err := s.tool.Execute(ctx, s.call.Input, execCtx)
	if err != nil {
		toolErr := legionerr.ToolErr(s.call.Name, s.call.ID, err)
		return models.ToolResult{ToolCallID: s.call.ID, Content: toolErr.Error(), IsError: true}
	}
	return models.ToolResult{ToolCallID: s.call.ID, Content: out}
}
