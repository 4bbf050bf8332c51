package model

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/openai/openai-go/shared"

	"github.com/lockstep-ai/gatekit/pkg/orchestrator"
	"github.com/lockstep-ai/gatekit/pkg/stream"
)

// OpenAIConfig configures the OpenAI-backed adapter.
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string // optional: Azure or proxies
	Model     string
	MaxTokens int
	System    string
	Tools     []ToolSpec
}

const (
	defaultOpenAIModel     = "gpt-4o"
	defaultOpenAIMaxTokens = 4096
)

type openaiChatCompletions interface {
	NewStreaming(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) *ssestream.Stream[openai.ChatCompletionChunk]
}

// OpenAI streams chat-completion deltas. It implements
// orchestrator.ModelStream.
type OpenAI struct {
	completions openaiChatCompletions
	model       string
	maxTokens   int
	system      string
	tools       []openai.ChatCompletionToolParam
}

// NewOpenAI constructs the adapter. The API key falls back to
// OPENAI_API_KEY.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
	if apiKey == "" {
		return nil, errors.New("openai: api key required")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	modelName := strings.TrimSpace(cfg.Model)
	if modelName == "" {
		modelName = defaultOpenAIModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultOpenAIMaxTokens
	}

	return &OpenAI{
		completions: &client.Chat.Completions,
		model:       modelName,
		maxTokens:   maxTokens,
		system:      strings.TrimSpace(cfg.System),
		tools:       convertToolsToOpenAI(cfg.Tools),
	}, nil
}

// Provider implements orchestrator.ModelStream.
func (m *OpenAI) Provider() string { return "openai" }

// Stream implements orchestrator.ModelStream.
func (m *OpenAI) Stream(ctx context.Context, messages []orchestrator.Message, onDelta func(stream.Delta) error) error {
	params := m.buildParams(messages)

	return retryStream(ctx, func(ctx context.Context, emitted *bool) error {
		s := m.completions.NewStreaming(ctx, params)
		if s == nil {
			return errors.New("openai: stream not available")
		}
		defer s.Close()

		for s.Next() {
			chunk := s.Current()
			for _, choice := range chunk.Choices {
				d := stream.Delta{Text: choice.Delta.Content}
				for _, tc := range choice.Delta.ToolCalls {
					d.Fragments = append(d.Fragments, stream.Fragment{
						Index: int(tc.Index),
						ID:    tc.ID,
						Name:  tc.Function.Name,
						Args:  tc.Function.Arguments,
					})
				}
				if d.Text == "" && len(d.Fragments) == 0 {
					continue
				}
				*emitted = true
				if err := onDelta(d); err != nil {
					return err
				}
			}
		}
		return s.Err()
	})
}

func (m *OpenAI) buildParams(messages []orchestrator.Message) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(m.model),
		MaxCompletionTokens: openai.Int(int64(m.maxTokens)),
		Messages:            convertMessagesToOpenAI(messages, m.system),
	}
	if len(m.tools) > 0 {
		params.Tools = m.tools
	}
	return params
}

func convertMessagesToOpenAI(msgs []orchestrator.Message, system string) []openai.ChatCompletionMessageParamUnion {
	var result []openai.ChatCompletionMessageParamUnion
	if system != "" {
		result = append(result, openai.SystemMessage(system))
	}

	for _, msg := range msgs {
		switch strings.ToLower(strings.TrimSpace(msg.Role)) {
		case "system":
			if trimmed := strings.TrimSpace(msg.Content); trimmed != "" {
				result = append(result, openai.SystemMessage(trimmed))
			}
		case "assistant":
			result = append(result, buildOpenAIAssistantMessage(msg))
		case "tool":
			result = append(result, openai.ToolMessage(msg.Content, msg.ToolCallID))
		default: // user
			content := msg.Content
			if strings.TrimSpace(content) == "" {
				content = "."
			}
			result = append(result, openai.UserMessage(content))
		}
	}

	if len(result) == 0 {
		result = append(result, openai.UserMessage("."))
	}
	return result
}

func buildOpenAIAssistantMessage(msg orchestrator.Message) openai.ChatCompletionMessageParamUnion {
	assistant := openai.ChatCompletionAssistantMessageParam{}

	content := msg.Content
	if strings.TrimSpace(content) == "" {
		content = "."
	}
	assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
		OfString: openai.String(content),
	}

	if len(msg.ToolCalls) > 0 {
		var toolCalls []openai.ChatCompletionMessageToolCallParam
		for _, call := range msg.ToolCalls {
			if call.ID == "" || call.Name == "" {
				continue
			}
			argsJSON, _ := json.Marshal(call.Arguments) //nolint:errcheck
			toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
				ID: call.ID,
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      call.Name,
					Arguments: string(argsJSON),
				},
			})
		}
		assistant.ToolCalls = toolCalls
	}

	return openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant}
}

func convertToolsToOpenAI(tools []ToolSpec) []openai.ChatCompletionToolParam {
	var result []openai.ChatCompletionToolParam
	for _, spec := range tools {
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			continue
		}
		t := openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:       name,
				Parameters: convertFunctionParameters(spec.Parameters),
			},
		}
		if desc := strings.TrimSpace(spec.Description); desc != "" {
			t.Function.Description = openai.Opt(desc)
		}
		result = append(result, t)
	}
	return result
}

func convertFunctionParameters(params map[string]any) shared.FunctionParameters {
	result := make(shared.FunctionParameters, len(params)+1)
	for k, v := range params {
		result[k] = v
	}
	if _, ok := result["type"]; !ok {
		result["type"] = "object"
	}
	return result
}
