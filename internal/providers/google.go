package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/legionai/legion/internal/ratelimit"
	"github.com/legionai/legion/internal/tools"
	"github.com/legionai/legion/pkg/models"
)

// GoogleProvider implements Provider against Gemini's GenerateContent API.
// Where the teacher's GoogleProvider streams chunks over a channel, this
// adapter drains genai.Models.GenerateContent's single response into one
// Completion, matching every other adapter's blocking Chat contract.
type GoogleProvider struct {
	BaseProvider
	client       *genai.Client
	defaultModel string
}

// GoogleConfig configures a GoogleProvider.
type GoogleConfig struct {
	APIKey       string
	DefaultModel string
	Limiter      *ratelimit.Bucket
}

// NewGoogleProvider builds a GoogleProvider against the Gemini API backend.
func NewGoogleProvider(ctx context.Context, cfg GoogleConfig) (*GoogleProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("google: API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("google: create client: %w", err)
	}

	return &GoogleProvider{
		BaseProvider: NewBaseProvider("google", cfg.Limiter),
		client:       client,
		defaultModel: cfg.DefaultModel,
	}, nil
}

// Chat implements Provider.
func (p *GoogleProvider) Chat(ctx context.Context, messages []models.Message, opts Options) (*Completion, error) {
	model := opts.Model
	if model == "" {
		model = p.defaultModel
	}

	contents := p.convertMessages(messages)
	config := p.buildConfig(opts)

	var resp *genai.GenerateContentResponse
	err := p.Retry(ctx, p.isRetryable, func(ctx context.Context) error {
		r, err := p.client.Models.GenerateContent(ctx, model, contents, config)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	return p.convertCompletion(resp), nil
}

func (p *GoogleProvider) convertMessages(messages []models.Message) []*genai.Content {
	var out []*genai.Content

	for _, msg := range messages {
		content := &genai.Content{Role: genai.RoleUser}
		if msg.Role == models.RoleAssistant {
			content.Role = genai.RoleModel
		}

		for _, b := range msg.Content {
			switch b.Type {
			case models.BlockText:
				if b.Text != "" {
					content.Parts = append(content.Parts, &genai.Part{Text: b.Text})
				}
			case models.BlockToolCall:
				var args map[string]any
				if len(b.ToolCall.Input) > 0 {
					if err := json.Unmarshal(b.ToolCall.Input, &args); err != nil {
						args = map[string]any{}
					}
				}
				content.Parts = append(content.Parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{Name: b.ToolCall.Name, Args: args},
				})
			case models.BlockToolResult:
				var response map[string]any
				if err := json.Unmarshal([]byte(b.ToolResult.Content), &response); err != nil {
					response = map[string]any{"result": b.ToolResult.Content, "error": b.ToolResult.IsError}
				}
				content.Parts = append(content.Parts, &genai.Part{
					FunctionResponse: &genai.FunctionResponse{
						Name:     p.toolNameForCall(messages, b.ToolResult.ToolCallID),
						Response: response,
					},
				})
			}
		}

		if len(content.Parts) > 0 {
			out = append(out, content)
		}
	}

	return out
}

// toolNameForCall recovers the function name Gemini's FunctionResponse part
// requires by looking back through the history for the matching call. The
// Collective's ToolCall.ID is assigned by this adapter (see
// generateToolCallID); Gemini itself never names one.
func (p *GoogleProvider) toolNameForCall(messages []models.Message, toolCallID string) string {
	for _, msg := range messages {
		for _, tc := range msg.ToolCalls() {
			if tc.ID == toolCallID {
				return tc.Name
			}
		}
	}
	return ""
}

func (p *GoogleProvider) convertTools(defs []tools.Definition) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, len(defs))
	for i, d := range defs {
		var schema *genai.Schema
		if err := json.Unmarshal(d.InputSchema, &schema); err != nil {
			schema = &genai.Schema{Type: genai.TypeObject}
		}
		decls[i] = &genai.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  schema,
		}
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func (p *GoogleProvider) buildConfig(opts Options) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	if opts.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: opts.SystemPrompt}}}
	}
	if opts.MaxTokens != nil {
		config.MaxOutputTokens = int32(*opts.MaxTokens)
	}
	if opts.Temperature != nil {
		temp := float32(*opts.Temperature)
		config.Temperature = &temp
	}
	if len(opts.Tools) > 0 {
		config.Tools = p.convertTools(opts.Tools)
	}

	return config
}

func (p *GoogleProvider) convertCompletion(resp *genai.GenerateContentResponse) *Completion {
	c := &Completion{FinishReason: FinishStop}
	if resp.UsageMetadata != nil {
		in, out := int(resp.UsageMetadata.PromptTokenCount), int(resp.UsageMetadata.CandidatesTokenCount)
		if in > 0 || out > 0 {
			c.Usage = &Usage{InputTokens: in, OutputTokens: out}
		}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return c
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" {
			text.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			argsJSON, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				argsJSON = []byte("{}")
			}
			c.ToolCalls = append(c.ToolCalls, models.ToolCall{
				ID:    p.generateToolCallID(part.FunctionCall.Name),
				Name:  part.FunctionCall.Name,
				Input: argsJSON,
			})
		}
	}
	c.Text = text.String()

	if len(c.ToolCalls) > 0 {
		c.FinishReason = FinishToolUse
	} else {
		c.FinishReason = p.convertFinishReason(string(resp.Candidates[0].FinishReason))
	}
	return c
}

func (p *GoogleProvider) convertFinishReason(reason string) FinishReason {
	switch genai.FinishReason(reason) {
	case genai.FinishReasonStop:
		return FinishStop
	case genai.FinishReasonMaxTokens:
		return FinishMaxTokens
	default:
		return FinishUnknown
	}
}

// generateToolCallID synthesizes a call id Gemini never provides on the
// wire, in a form toolNameForCall can parse back out of a later
// FunctionResponse round-trip.
func (p *GoogleProvider) generateToolCallID(name string) string {
	return "call_" + name + "_" + strconv.FormatInt(time.Now().UnixNano(), 10)
}

func (p *GoogleProvider) isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 429, 500, 502, 503, 504:
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"resource exhausted", "rate limit", "quota", "429", "500", "502", "503", "504", "deadline exceeded"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
