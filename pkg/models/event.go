package models

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of Event bus event, per the core's fan-out
// publisher contract: message:sent, tool:call, tool:result,
// approval:requested, approval:resolved, iteration, error,
// participant:changed.
type EventType string

const (
	EventMessageSent        EventType = "message:sent"
	EventToolCall           EventType = "tool:call"
	EventToolResult         EventType = "tool:result"
	EventApprovalRequested  EventType = "approval:requested"
	EventApprovalResolved   EventType = "approval:resolved"
	EventIteration          EventType = "iteration"
	EventError              EventType = "error"
	EventParticipantChanged EventType = "participant:changed"
)

// Event is one entry on the Event Bus. Subscribers are opaque to the core;
// delivery is best-effort and synchronous with respect to the publishing
// task. Exactly one of the payload fields is populated, matching Type.
type Event struct {
	Type       EventType `json:"type"`
	Time       time.Time `json:"time"`
	RunID      string    `json:"run_id,omitempty"`
	ChainDepth int       `json:"chain_depth,omitempty"`

	MessageSent        *MessageSentPayload        `json:"message_sent,omitempty"`
	ToolCall           *ToolCallPayload           `json:"tool_call,omitempty"`
	ToolResult         *ToolResultPayload         `json:"tool_result,omitempty"`
	ApprovalRequested  *ApprovalRequestedPayload  `json:"approval_requested,omitempty"`
	ApprovalResolved   *ApprovalResolvedPayload   `json:"approval_resolved,omitempty"`
	Iteration          *IterationPayload          `json:"iteration,omitempty"`
	Error              *ErrorPayload              `json:"error,omitempty"`
	ParticipantChanged *ParticipantChangedPayload `json:"participant_changed,omitempty"`
}

// MessageSentPayload describes a message appended to a Conversation.
type MessageSentPayload struct {
	ConversationID string `json:"conversation_id"`
	From           string `json:"from"`
	To             string `json:"to"`
	Role           Role   `json:"role"`
	Text           string `json:"text,omitempty"`
}

// ToolCallPayload describes a tool invocation request.
type ToolCallPayload struct {
	ToolCallID string          `json:"tool_call_id"`
	ToolName   string          `json:"tool_name"`
	Input      json.RawMessage `json:"input,omitempty"`
	Caller     string          `json:"caller"`
}

// ToolResultPayload describes the outcome of executing one tool call.
type ToolResultPayload struct {
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name"`
	IsError    bool   `json:"is_error,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// ApprovalRequestedPayload describes a batch parked on the Suspension Bridge.
type ApprovalRequestedPayload struct {
	RequestID string   `json:"request_id,omitempty"`
	Approver  string   `json:"approver,omitempty"`
	ToolCalls []string `json:"tool_calls"`
}

// ApprovalResolvedPayload describes a resolved approval batch.
type ApprovalResolvedPayload struct {
	RequestID string `json:"request_id,omitempty"`
	Approved  bool   `json:"approved"`
	Reason    string `json:"reason,omitempty"`
}

// IterationPayload describes one Agent Runtime loop iteration.
type IterationPayload struct {
	ConversationID string `json:"conversation_id"`
	Iteration      int    `json:"iteration"`
	ToolCallCount  int    `json:"tool_call_count"`
}

// ErrorPayload standardizes errors published on the bus.
type ErrorPayload struct {
	Message   string `json:"message"`
	Code      string `json:"code,omitempty"`
	Retriable bool   `json:"retriable,omitempty"`
}

// ParticipantChangedPayload describes a Collective Registry config
// change — a Save or Retire — not a Conversation message.
type ParticipantChangedPayload struct {
	ParticipantID string `json:"participant_id"`
	Status        string `json:"status"`
	Action        string `json:"action"` // "saved" or "retired"
}
