// Package tools implements the Tool Registry and the three-phase Tool
// Executor: resolve tools, authorize/approve/run a batch of tool-calls
// produced by one LLM turn.
package tools

import (
	"context"
	"encoding/json"

	"github.com/legionai/legion/internal/collective"
	"github.com/legionai/legion/internal/suspension"
)

// Definition is a tool's LLM-facing declaration: name, description, and a
// JSON-Schema for its input.
type Definition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ExecContext is passed by reference to every Tool.Execute call. It
// carries everything a tool needs to reach back into the core: the caller
// participant id, the active communication chain, the active Conversation
// and Session ids, and references to the shared process-wide registries.
type ExecContext struct {
	Caller         string
	Chain          []string
	ConversationID string
	SessionID      string

	Registry   *Registry
	Collective *collective.Registry
	Bridge     *suspension.Bridge
}

// Tool is the public contract every tool implementation satisfies.
type Tool interface {
	Name() string
	Definition() Definition
	Execute(ctx context.Context, input json.RawMessage, execCtx ExecContext) (string, error)
}
