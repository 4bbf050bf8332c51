package model

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/lockstep-ai/gatekit/pkg/orchestrator"
	"github.com/lockstep-ai/gatekit/pkg/stream"
)

// AnthropicConfig configures the Anthropic-backed adapter.
type AnthropicConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	System    string
	Tools     []ToolSpec
}

const (
	defaultAnthropicModel     = "claude-sonnet-4-20250514"
	defaultAnthropicMaxTokens = 8192
)

type anthropicMessages interface {
	NewStreaming(ctx context.Context, params anthropicsdk.MessageNewParams, opts ...option.RequestOption) *ssestream.Stream[anthropicsdk.MessageStreamEventUnion]
}

// Anthropic streams messages-API deltas. It implements
// orchestrator.ModelStream.
type Anthropic struct {
	msgs      anthropicMessages
	model     string
	maxTokens int
	system    string
	tools     []anthropicsdk.ToolUnionParam
}

// NewAnthropic constructs the adapter. The API key falls back to
// ANTHROPIC_API_KEY, then ANTHROPIC_AUTH_TOKEN.
func NewAnthropic(cfg AnthropicConfig) (*Anthropic, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	}
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv("ANTHROPIC_AUTH_TOKEN"))
	}
	if apiKey == "" {
		return nil, errors.New("anthropic: api key required")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropicsdk.NewClient(opts...)

	modelName := strings.TrimSpace(cfg.Model)
	if modelName == "" {
		modelName = defaultAnthropicModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	return &Anthropic{
		msgs:      &client.Messages,
		model:     modelName,
		maxTokens: maxTokens,
		system:    strings.TrimSpace(cfg.System),
		tools:     convertToolsToAnthropic(cfg.Tools),
	}, nil
}

// Provider implements orchestrator.ModelStream.
func (m *Anthropic) Provider() string { return "anthropic" }

// Stream implements orchestrator.ModelStream. Tool-use blocks surface as
// fragments: identity on content_block_start, argument JSON on every
// input_json delta.
func (m *Anthropic) Stream(ctx context.Context, messages []orchestrator.Message, onDelta func(stream.Delta) error) error {
	params := m.buildParams(messages)

	return retryStream(ctx, func(ctx context.Context, emitted *bool) error {
		s := m.msgs.NewStreaming(ctx, params)
		if s == nil {
			return errors.New("anthropic: stream not available")
		}
		defer s.Close()

		for s.Next() {
			event := s.Current()
			var d stream.Delta

			switch ev := event.AsAny().(type) {
			case anthropicsdk.ContentBlockStartEvent:
				if ev.ContentBlock.Type == "tool_use" {
					d.Fragments = append(d.Fragments, stream.Fragment{
						Index: int(ev.Index),
						ID:    ev.ContentBlock.ID,
						Name:  ev.ContentBlock.Name,
					})
				}
			case anthropicsdk.ContentBlockDeltaEvent:
				switch ev.Delta.Type {
				case "text_delta":
					d.Text = ev.Delta.Text
				case "input_json_delta":
					d.Fragments = append(d.Fragments, stream.Fragment{
						Index: int(ev.Index),
						Args:  ev.Delta.PartialJSON,
					})
				}
			}

			if d.Text == "" && len(d.Fragments) == 0 {
				continue
			}
			*emitted = true
			if err := onDelta(d); err != nil {
				return err
			}
		}
		return s.Err()
	})
}

func (m *Anthropic) buildParams(messages []orchestrator.Message) anthropicsdk.MessageNewParams {
	systemBlocks, messageParams := convertMessagesToAnthropic(messages, m.system)

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(m.model),
		MaxTokens: int64(m.maxTokens),
		Messages:  messageParams,
	}
	if len(systemBlocks) > 0 {
		params.System = systemBlocks
	}
	if len(m.tools) > 0 {
		params.Tools = m.tools
	}
	return params
}

func convertMessagesToAnthropic(msgs []orchestrator.Message, system string) ([]anthropicsdk.TextBlockParam, []anthropicsdk.MessageParam) {
	var systemBlocks []anthropicsdk.TextBlockParam
	if system != "" {
		systemBlocks = append(systemBlocks, anthropicsdk.TextBlockParam{Text: system})
	}

	var messageParams []anthropicsdk.MessageParam
	for _, msg := range msgs {
		switch strings.ToLower(strings.TrimSpace(msg.Role)) {
		case "system":
			if trimmed := strings.TrimSpace(msg.Content); trimmed != "" {
				systemBlocks = append(systemBlocks, anthropicsdk.TextBlockParam{Text: trimmed})
			}
		case "assistant":
			var blocks []anthropicsdk.ContentBlockParamUnion
			if strings.TrimSpace(msg.Content) != "" {
				blocks = append(blocks, anthropicsdk.NewTextBlock(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				if call.ID == "" || call.Name == "" {
					continue
				}
				blocks = append(blocks, anthropicsdk.NewToolUseBlock(call.ID, call.Arguments, call.Name))
			}
			if len(blocks) == 0 {
				blocks = append(blocks, anthropicsdk.NewTextBlock("."))
			}
			messageParams = append(messageParams, anthropicsdk.MessageParam{
				Role:    anthropicsdk.MessageParamRoleAssistant,
				Content: blocks,
			})
		case "tool":
			messageParams = append(messageParams, anthropicsdk.MessageParam{
				Role: anthropicsdk.MessageParamRoleUser,
				Content: []anthropicsdk.ContentBlockParamUnion{
					anthropicsdk.NewToolResultBlock(msg.ToolCallID, msg.Content, false),
				},
			})
		default: // user
			content := msg.Content
			if strings.TrimSpace(content) == "" {
				content = "."
			}
			messageParams = append(messageParams, anthropicsdk.MessageParam{
				Role:    anthropicsdk.MessageParamRoleUser,
				Content: []anthropicsdk.ContentBlockParamUnion{anthropicsdk.NewTextBlock(content)},
			})
		}
	}

	if len(messageParams) == 0 {
		messageParams = append(messageParams, anthropicsdk.MessageParam{
			Role:    anthropicsdk.MessageParamRoleUser,
			Content: []anthropicsdk.ContentBlockParamUnion{anthropicsdk.NewTextBlock(".")},
		})
	}
	return systemBlocks, messageParams
}

func convertToolsToAnthropic(tools []ToolSpec) []anthropicsdk.ToolUnionParam {
	var result []anthropicsdk.ToolUnionParam
	for _, spec := range tools {
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			continue
		}
		t := anthropicsdk.ToolParam{
			Name:        name,
			InputSchema: encodeInputSchema(spec.Parameters),
		}
		if desc := strings.TrimSpace(spec.Description); desc != "" {
			t.Description = anthropicsdk.String(desc)
		}
		result = append(result, anthropicsdk.ToolUnionParam{OfTool: &t})
	}
	return result
}

// encodeInputSchema reshapes a JSON-schema map into the SDK's schema param.
// Malformed schemas degrade to an empty object schema rather than failing
// the whole tool list.
func encodeInputSchema(raw map[string]any) anthropicsdk.ToolInputSchemaParam {
	if len(raw) == 0 {
		return anthropicsdk.ToolInputSchemaParam{Type: "object"}
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return anthropicsdk.ToolInputSchemaParam{Type: "object"}
	}
	var schema anthropicsdk.ToolInputSchemaParam
	if err := json.Unmarshal(data, &schema); err != nil {
		return anthropicsdk.ToolInputSchemaParam{Type: "object"}
	}
	if schema.Type == "" {
		schema.Type = "object"
	}
	return schema
}
