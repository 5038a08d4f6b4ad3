package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/legionai/legion/internal/ratelimit"
	"github.com/legionai/legion/internal/tools"
	"github.com/legionai/legion/pkg/models"
)

// AnthropicProvider implements Provider against Anthropic's Messages API.
type AnthropicProvider struct {
	BaseProvider
	client anthropic.Client
}

// AnthropicConfig configures an AnthropicProvider.
type AnthropicConfig struct {
	APIKey  string
	BaseURL string
	Limiter *ratelimit.Bucket
}

// NewAnthropicProvider builds an AnthropicProvider.
func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicProvider{
		BaseProvider: NewBaseProvider("anthropic", cfg.Limiter),
		client:       anthropic.NewClient(opts...),
	}, nil
}

// Chat implements Provider.
func (p *AnthropicProvider) Chat(ctx context.Context, messages []models.Message, opts Options) (*Completion, error) {
	wireMessages, err := p.convertMessages(messages)
	if err != nil {
		return nil, fmt.Errorf("anthropic: convert messages: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:    anthropic.Model(opts.Model),
		Messages: wireMessages,
	}
	if opts.MaxTokens != nil {
		params.MaxTokens = int64(*opts.MaxTokens)
	} else {
		params.MaxTokens = 4096
	}
	if opts.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: opts.SystemPrompt}}
	}
	if opts.Temperature != nil {
		params.Temperature = anthropic.Float(*opts.Temperature)
	}
	if len(opts.Tools) > 0 {
		toolParams, err := p.convertTools(opts.Tools)
		if err != nil {
			return nil, fmt.Errorf("anthropic: convert tools: %w", err)
		}
		params.Tools = toolParams
	}

	var message *anthropic.Message
	err = p.Retry(ctx, p.isRetryable, func(ctx context.Context) error {
		m, err := p.client.Messages.New(ctx, params)
		if err != nil {
			return err
		}
		message = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	return p.convertCompletion(message), nil
}

func (p *AnthropicProvider) convertMessages(messages []models.Message) ([]anthropic.MessageParam, error) {
	var out []anthropic.MessageParam

	for _, msg := range messages {
		var content []anthropic.ContentBlockParamUnion
		for _, b := range msg.Content {
			switch b.Type {
			case models.BlockText:
				content = append(content, anthropic.NewTextBlock(b.Text))
			case models.BlockToolCall:
				var input map[string]any
				if len(b.ToolCall.Input) > 0 {
					if err := json.Unmarshal(b.ToolCall.Input, &input); err != nil {
						return nil, fmt.Errorf("invalid tool call input for %s: %w", b.ToolCall.Name, err)
					}
				}
				content = append(content, anthropic.NewToolUseBlock(b.ToolCall.ID, input, b.ToolCall.Name))
			case models.BlockToolResult:
				content = append(content, anthropic.NewToolResultBlock(b.ToolResult.ToolCallID, b.ToolResult.Content, b.ToolResult.IsError))
			}
		}

		if msg.Role == models.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(content...))
		} else {
			out = append(out, anthropic.NewUserMessage(content...))
		}
	}
	return out, nil
}

func (p *AnthropicProvider) convertTools(defs []tools.Definition) ([]anthropic.ToolUnionParam, error) {
	var out []anthropic.ToolUnionParam
	for _, d := range defs {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(d.InputSchema, &schema); err != nil {
			return nil, fmt.Errorf("invalid schema for %s: %w", d.Name, err)
		}
		toolParam := anthropic.ToolUnionParamOfTool(schema, d.Name)
		if toolParam.OfTool != nil {
			toolParam.OfTool.Description = anthropic.String(d.Description)
		}
		out = append(out, toolParam)
	}
	return out, nil
}

func (p *AnthropicProvider) convertCompletion(msg *anthropic.Message) *Completion {
	c := &Completion{FinishReason: p.convertFinishReason(string(msg.StopReason))}
	if msg.Usage.InputTokens > 0 || msg.Usage.OutputTokens > 0 {
		c.Usage = &Usage{InputTokens: int(msg.Usage.InputTokens), OutputTokens: int(msg.Usage.OutputTokens)}
	}

	var text strings.Builder
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(variant.Text)
		case anthropic.ToolUseBlock:
			input, _ := json.Marshal(variant.Input)
			c.ToolCalls = append(c.ToolCalls, models.ToolCall{ID: variant.ID, Name: variant.Name, Input: input})
		}
	}
	c.Text = text.String()
	return c
}

func (p *AnthropicProvider) convertFinishReason(reason string) FinishReason {
	switch reason {
	case "end_turn", "stop_sequence":
		return FinishStop
	case "tool_use":
		return FinishToolUse
	case "max_tokens":
		return FinishMaxTokens
	default:
		return FinishUnknown
	}
}

func (p *AnthropicProvider) isRetryable(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
	}
	return false
}
