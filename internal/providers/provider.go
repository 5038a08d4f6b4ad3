// Package providers implements the Provider Adapter Interface: normalizing
// concrete LLM APIs to the canonical message/tool format.
package providers

import (
	"context"

	"github.com/legionai/legion/internal/tools"
	"github.com/legionai/legion/pkg/models"
)

// FinishReason is the canonical enum every adapter maps its wire-specific
// stop reason onto.
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishToolUse   FinishReason = "tool_use"
	FinishMaxTokens FinishReason = "max_tokens"
	FinishUnknown   FinishReason = "unknown"
)

// Usage carries optional token-usage counts.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Options carries the per-call parameters of a chat request.
type Options struct {
	Model        string
	SystemPrompt string
	Tools        []tools.Definition
	Temperature  *float64
	MaxTokens    *int
	Stop         []string
}

// Completion is a Provider Adapter's normalized response.
type Completion struct {
	Text         string
	ToolCalls    []models.ToolCall
	FinishReason FinishReason
	Usage        *Usage
}

// HasToolCalls reports whether the completion requested any tool calls.
func (c *Completion) HasToolCalls() bool { return len(c.ToolCalls) > 0 }

// Provider is the Provider Adapter Interface: chat(messages, options) ->
// completion. Implementations own their wire format's translation and
// defensive tool-ordering repair.
type Provider interface {
	Name() string
	Chat(ctx context.Context, messages []models.Message, opts Options) (*Completion, error)
}
