package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/legionai/legion/internal/ratelimit"
	"github.com/legionai/legion/internal/tools"
	"github.com/legionai/legion/pkg/models"
)

// BedrockProvider implements Provider against AWS Bedrock's Converse API.
type BedrockProvider struct {
	BaseProvider
	client       *bedrockruntime.Client
	defaultModel string
}

// BedrockConfig configures a BedrockProvider.
type BedrockConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	DefaultModel    string
	Limiter         *ratelimit.Bucket
}

// NewBedrockProvider builds a BedrockProvider, loading AWS credentials from
// the explicit fields when present or the default credential chain otherwise.
func NewBedrockProvider(ctx context.Context, cfg BedrockConfig) (*BedrockProvider, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "anthropic.claude-3-sonnet-20240229-v1:0"
	}

	var awsCfg aws.Config
	var err error
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken,
			)),
		)
	} else {
		awsCfg, err = config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	}
	if err != nil {
		return nil, fmt.Errorf("bedrock: load AWS config: %w", err)
	}

	return &BedrockProvider{
		BaseProvider: NewBaseProvider("bedrock", cfg.Limiter),
		client:       bedrockruntime.NewFromConfig(awsCfg),
		defaultModel: cfg.DefaultModel,
	}, nil
}

// Chat implements Provider.
func (p *BedrockProvider) Chat(ctx context.Context, messages []models.Message, opts Options) (*Completion, error) {
	model := opts.Model
	if model == "" {
		model = p.defaultModel
	}

	wireMessages := p.convertMessages(messages)

	req := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(model),
		Messages: wireMessages,
	}
	if opts.SystemPrompt != "" {
		req.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: opts.SystemPrompt},
		}
	}
	if opts.MaxTokens != nil {
		req.InferenceConfig = &types.InferenceConfiguration{MaxTokens: aws.Int32(int32(*opts.MaxTokens))}
	}
	if opts.Temperature != nil {
		if req.InferenceConfig == nil {
			req.InferenceConfig = &types.InferenceConfiguration{}
		}
		temp := float32(*opts.Temperature)
		req.InferenceConfig.Temperature = aws.Float32(temp)
	}
	if len(opts.Tools) > 0 {
		req.ToolConfig = p.convertTools(opts.Tools)
	}

	var resp *bedrockruntime.ConverseOutput
	err := p.Retry(ctx, p.isRetryable, func(ctx context.Context) error {
		r, err := p.client.Converse(ctx, req)
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

func (p *BedrockProvider) convertMessages(messages []models.Message) []types.Message {
	out := make([]types.Message, 0, len(messages))

	for _, msg := range messages {
		var content []types.ContentBlock

		for _, b := range msg.Content {
			switch b.Type {
			case models.BlockText:
				if b.Text != "" {
					content = append(content, &types.ContentBlockMemberText{Value: b.Text})
				}
			case models.BlockToolCall:
				var input any
				if len(b.ToolCall.Input) > 0 {
					if err := json.Unmarshal(b.ToolCall.Input, &input); err != nil {
						input = map[string]any{}
					}
				}
				content = append(content, &types.ContentBlockMemberToolUse{
					Value: types.ToolUseBlock{
						ToolUseId: aws.String(b.ToolCall.ID),
						Name:      aws.String(b.ToolCall.Name),
						Input:     document.NewLazyDocument(input),
					},
				})
			case models.BlockToolResult:
				content = append(content, &types.ContentBlockMemberToolResult{
					Value: types.ToolResultBlock{
						ToolUseId: aws.String(b.ToolResult.ToolCallID),
						Content: []types.ToolResultContentBlock{
							&types.ToolResultContentBlockMemberText{Value: b.ToolResult.Content},
						},
					},
				})
			}
		}

		if len(content) == 0 {
			continue
		}

		role := types.ConversationRoleUser
		if msg.Role == models.RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		out = append(out, types.Message{Role: role, Content: content})
	}

	return out
}

func (p *BedrockProvider) convertTools(defs []tools.Definition) *types.ToolConfiguration {
	out := make([]types.Tool, len(defs))
	for i, d := range defs {
		var schema any
		if err := json.Unmarshal(d.InputSchema, &schema); err != nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out[i] = &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        aws.String(d.Name),
				Description: aws.String(d.Description),
				InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
			},
		}
	}
	return &types.ToolConfiguration{Tools: out}
}

func (p *BedrockProvider) convertCompletion(resp *bedrockruntime.ConverseOutput) *Completion {
	c := &Completion{FinishReason: p.convertFinishReason(string(resp.StopReason))}

	if resp.Usage != nil {
		in, out := int(aws.ToInt32(resp.Usage.InputTokens)), int(aws.ToInt32(resp.Usage.OutputTokens))
		if in > 0 || out > 0 {
			c.Usage = &Usage{InputTokens: in, OutputTokens: out}
		}
	}

	outputMember, ok := resp.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return c
	}

	var text strings.Builder
	for _, block := range outputMember.Value.Content {
		switch variant := block.(type) {
		case *types.ContentBlockMemberText:
			text.WriteString(variant.Value)
		case *types.ContentBlockMemberToolUse:
			input, _ := variant.Value.Input.MarshalSmithyDocument()
			c.ToolCalls = append(c.ToolCalls, models.ToolCall{
				ID:    aws.ToString(variant.Value.ToolUseId),
				Name:  aws.ToString(variant.Value.Name),
				Input: input,
			})
		}
	}
	c.Text = text.String()
	return c
}

func (p *BedrockProvider) convertFinishReason(reason string) FinishReason {
	switch types.StopReason(reason) {
	case types.StopReasonEndTurn, types.StopReasonStopSequence:
		return FinishStop
	case types.StopReasonToolUse:
		return FinishToolUse
	case types.StopReasonMaxTokens:
		return FinishMaxTokens
	default:
		return FinishUnknown
	}
}

func (p *BedrockProvider) isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var throttle *types.ThrottlingException
	var unavailable *types.ServiceUnavailableException
	if errors.As(err, &throttle) || errors.As(err, &unavailable) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"throttling", "toomanyrequests", "serviceunavailable", "429", "500", "502", "503", "504"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
