package main

import (
	"context"

	"github.com/legionai/legion/internal/eventbus"
	"github.com/legionai/legion/internal/observability"
	"github.com/legionai/legion/pkg/models"
)

// wireObservability subscribes a single fan-out handler to bus that
// drives both the Prometheus counters and the debugging EventRecorder
// off every models.Event the core publishes — the adapter the
// observability package's Metrics/EventRecorder lacked before this
// wiring (see DESIGN.md).
func wireObservability(bus *eventbus.Bus, metrics *observability.Metrics, recorder *observability.EventRecorder) {
	bus.Subscribe(func(evt models.Event) {
		ctx := context.Background()
		switch evt.Type {
		case models.EventMessageSent:
			if p := evt.MessageSent; p != nil {
				metrics.MessageSent(string(p.Role))
				_ = recorder.Record(ctx, observability.EventTypeMessage, "message_sent", map[string]interface{}{
					"conversation_id": p.ConversationID,
					"from":            p.From,
					"to":              p.To,
				})
			}
		case models.EventToolCall:
			if p := evt.ToolCall; p != nil {
				_ = recorder.RecordToolStart(ctx, p.ToolName, p.Input)
			}
		case models.EventToolResult:
			if p := evt.ToolResult; p != nil {
				status := "success"
				if p.IsError {
					status = "error"
				}
				metrics.RecordToolExecution(p.ToolName, status, 0)
				var err error
				if p.IsError {
					err = errorReason(p.Reason)
				}
				_ = recorder.RecordToolEnd(ctx, p.ToolName, 0, nil, err)
			}
		case models.EventApprovalRequested:
			if p := evt.ApprovalRequested; p != nil {
				metrics.RecordApprovalRequest(p.Approver)
				_ = recorder.RecordApprovalRequested(ctx, p.RequestID, p.Approver, p.ToolCalls)
			}
		case models.EventApprovalResolved:
			if p := evt.ApprovalResolved; p != nil {
				metrics.RecordApprovalOutcome(p.Approved)
				_ = recorder.RecordApprovalResolved(ctx, p.RequestID, p.Approved, p.Reason)
			}
		case models.EventIteration:
			if p := evt.Iteration; p != nil {
				metrics.RecordChainDepth(evt.ChainDepth)
				_ = recorder.Record(ctx, observability.EventTypeCustom, "iteration", map[string]interface{}{
					"conversation_id": p.ConversationID,
					"iteration":       p.Iteration,
					"tool_call_count": p.ToolCallCount,
				})
			}
		case models.EventError:
			if p := evt.Error; p != nil {
				metrics.RecordError("core", p.Code)
				_ = recorder.RecordError(ctx, observability.EventTypeRunError, "error", errString(p.Message), nil)
			}
		case models.EventParticipantChanged:
			if p := evt.ParticipantChanged; p != nil {
				_ = recorder.Record(ctx, observability.EventTypeCustom, "participant_changed", map[string]interface{}{
					"participant_id": p.ParticipantID,
					"status":         p.Status,
					"action":         p.Action,
				})
			}
		}
	})
}

func errorReason(msg string) error {
	if msg == "" {
		return nil
	}
	return errString(msg)
}

type errString string

func (e errString) Error() string { return string(e) }
