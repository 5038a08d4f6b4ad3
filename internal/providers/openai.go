package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/legionai/legion/internal/ratelimit"
	"github.com/legionai/legion/internal/tools"
	"github.com/legionai/legion/pkg/models"
)

// OpenAIProvider implements Provider against the Chat Completions API.
type OpenAIProvider struct {
	BaseProvider
	client *openai.Client
}

// OpenAIConfig configures an OpenAIProvider.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Limiter *ratelimit.Bucket
}

// NewOpenAIProvider builds an OpenAIProvider.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIProvider{
		BaseProvider: NewBaseProvider("openai", cfg.Limiter),
		client:       openai.NewClientWithConfig(clientCfg),
	}, nil
}

// Chat implements Provider.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []models.Message, opts Options) (*Completion, error) {
	wireMessages, err := p.convertMessages(messages, opts.SystemPrompt)
	if err != nil {
		return nil, fmt.Errorf("openai: convert messages: %w", err)
	}

	req := openai.ChatCompletionRequest{
		Model:    opts.Model,
		Messages: wireMessages,
	}
	if opts.MaxTokens != nil {
		req.MaxTokens = *opts.MaxTokens
	}
	if opts.Temperature != nil {
		req.Temperature = float32(*opts.Temperature)
	}
	if len(opts.Stop) > 0 {
		req.Stop = opts.Stop
	}
	if len(opts.Tools) > 0 {
		req.Tools = p.convertTools(opts.Tools)
	}

	var resp openai.ChatCompletionResponse
	err = p.Retry(ctx, p.isRetryable, func(ctx context.Context) error {
		r, err := p.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: empty choices in response")
	}

	return p.convertCompletion(&resp), nil
}

func (p *OpenAIProvider) convertMessages(messages []models.Message, system string) ([]openai.ChatCompletionMessage, error) {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)

	if system != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, msg := range messages {
		if results := msg.ToolResults(); len(results) > 0 {
			for _, tr := range results {
				out = append(out, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    tr.Content,
					ToolCallID: tr.ToolCallID,
				})
			}
			continue
		}

		role := openai.ChatMessageRoleUser
		if msg.Role == models.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		oaiMsg := openai.ChatCompletionMessage{Role: role, Content: msg.Text()}

		if calls := msg.ToolCalls(); len(calls) > 0 {
			oaiMsg.ToolCalls = make([]openai.ToolCall, len(calls))
			for i, tc := range calls {
				oaiMsg.ToolCalls[i] = openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Input),
					},
				}
			}
		}

		out = append(out, oaiMsg)
	}

	return out, nil
}

func (p *OpenAIProvider) convertTools(defs []tools.Definition) []openai.Tool {
	out := make([]openai.Tool, len(defs))
	for i, d := range defs {
		var schema map[string]any
		if err := json.Unmarshal(d.InputSchema, &schema); err != nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  schema,
			},
		}
	}
	return out
}

func (p *OpenAIProvider) convertCompletion(resp *openai.ChatCompletionResponse) *Completion {
	choice := resp.Choices[0]
	c := &Completion{
		Text:         choice.Message.Content,
		FinishReason: p.convertFinishReason(choice.FinishReason),
	}
	if resp.Usage.PromptTokens > 0 || resp.Usage.CompletionTokens > 0 {
		c.Usage = &Usage{InputTokens: resp.Usage.PromptTokens, OutputTokens: resp.Usage.CompletionTokens}
	}
	for _, tc := range choice.Message.ToolCalls {
		c.ToolCalls = append(c.ToolCalls, models.ToolCall{
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: json.RawMessage(tc.Function.Arguments),
		})
	}
	return c
}

func (p *OpenAIProvider) convertFinishReason(reason openai.FinishReason) FinishReason {
	switch reason {
	case openai.FinishReasonStop:
		return FinishStop
	case openai.FinishReasonToolCalls, openai.FinishReasonFunctionCall:
		return FinishToolUse
	case openai.FinishReasonLength:
		return FinishMaxTokens
	default:
		return FinishUnknown
	}
}

func (p *OpenAIProvider) isRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		switch reqErr.HTTPStatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
	}
	return false
}
