package communicator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/legionai/legion/internal/conversation"
	"github.com/legionai/legion/internal/legionerr"
	"github.com/legionai/legion/internal/suspension"
	"github.com/legionai/legion/internal/tools"
)

// communicateSchema is the LLM-facing input schema for the communicate
// tool: send a message to another participant and await its reply.
const communicateSchema = `{
  "type": "object",
  "properties": {
    "target_id": {"type": "string", "description": "id of the participant to message"},
    "message": {"type": "string", "description": "text to send"},
    "session_name": {"type": "string", "description": "optional conversation name, defaults to the standard conversation between these two participants"}
  },
  "required": ["target_id", "message"]
}`

// resolveApprovalSchema is the LLM-facing input schema for the
// resolve_approval tool: decide a request parked by an earlier
// communicate dispatch that suspended for this participant's approval.
const resolveApprovalSchema = `{
  "type": "object",
  "properties": {
    "request_id": {"type": "string", "description": "id from a prior APPROVAL REQUEST"},
    "decision": {"type": "string", "enum": ["approved", "rejected"]},
    "reason": {"type": "string", "description": "required when decision is rejected"}
  },
  "required": ["request_id", "decision"]
}`

// CommunicateTool is the universal send tool every Participant with
// communicate in its granted tool list can call (spec §6).
type CommunicateTool struct {
	comm *Communicator
}

// NewCommunicateTool builds the communicate tool bound to comm.
func NewCommunicateTool(comm *Communicator) *CommunicateTool {
	return &CommunicateTool{comm: comm}
}

func (t *CommunicateTool) Name() string { return "communicate" }

func (t *CommunicateTool) Definition() tools.Definition {
	return tools.Definition{
		Name:        "communicate",
		Description: "Send a message to another participant in the collective and receive their response.",
		InputSchema: json.RawMessage(communicateSchema),
	}
}

type communicateInput struct {
	TargetID    string `json:"target_id"`
	Message     string `json:"message"`
	SessionName string `json:"session_name"`
}

func (t *CommunicateTool) Execute(ctx context.Context, input json.RawMessage, execCtx tools.ExecContext) (string, error) {
	var in communicateInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", legionerr.ToolErr(t.Name(), "", fmt.Errorf("invalid input: %w", err))
	}
	if in.TargetID == "" || in.Message == "" {
		return "", legionerr.ToolErr(t.Name(), "", fmt.Errorf("target_id and message are required"))
	}

	// Active-conversation shortcut (spec §4.8): if this dispatch is about
	// to open the very Conversation the caller's own turn is already
	// running in, skip the append — the caller's turn already owns it.
	prospectiveID := conversation.ID(execCtx.Caller, in.TargetID, in.SessionName)
	skipAppend := prospectiveID == execCtx.ConversationID

	reply, err := t.comm.Send(ctx, Request{
		From:             execCtx.Caller,
		To:               in.TargetID,
		Text:             in.Message,
		ConversationName: in.SessionName,
		Chain:            execCtx.Chain,
		ParentBridge:     execCtx.Bridge,
		SkipAppend:       skipAppend,
	})
	if err != nil {
		return "", err
	}
	return reply, nil
}

// ResolveApprovalTool is the universal resolve_approval tool every
// Participant with approval authority can call to decide a parked
// request (spec §6).
type ResolveApprovalTool struct {
	comm *Communicator
}

// NewResolveApprovalTool builds the resolve_approval tool bound to comm.
func NewResolveApprovalTool(comm *Communicator) *ResolveApprovalTool {
	return &ResolveApprovalTool{comm: comm}
}

func (t *ResolveApprovalTool) Name() string { return "resolve_approval" }

func (t *ResolveApprovalTool) Definition() tools.Definition {
	return tools.Definition{
		Name:        "resolve_approval",
		Description: "Approve or reject a pending tool-call approval request by its request id.",
		InputSchema: json.RawMessage(resolveApprovalSchema),
	}
}

type resolveApprovalInput struct {
	RequestID string `json:"request_id"`
	Decision  string `json:"decision"`
	Reason    string `json:"reason"`
}

func (t *ResolveApprovalTool) Execute(ctx context.Context, input json.RawMessage, execCtx tools.ExecContext) (string, error) {
	var in resolveApprovalInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", legionerr.ToolErr(t.Name(), "", fmt.Errorf("invalid input: %w", err))
	}
	if in.RequestID == "" {
		return "", legionerr.ToolErr(t.Name(), "", fmt.Errorf("request_id is required"))
	}

	approved := in.Decision == "approved"
	if !approved && in.Decision != "rejected" {
		return "", legionerr.ToolErr(t.Name(), "", fmt.Errorf("decision must be \"approved\" or \"rejected\""))
	}

	entry, ok := t.comm.pending.peekBatch(in.RequestID)
	if !ok {
		return "", legionerr.ToolErr(t.Name(), "", fmt.Errorf("unknown or already-resolved request_id %q", in.RequestID))
	}

	decisions := make(suspension.DecisionMap, len(entry.Items))
	for _, item := range entry.Items {
		decisions[item.ToolCallID] = suspension.Decision{Approved: approved, Reason: in.Reason}
	}

	text, err := t.comm.ResolveApproval(ctx, in.RequestID, decisions)
	if err != nil {
		return "", err
	}
	return text, nil
}
