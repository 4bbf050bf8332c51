package model

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lockstep-ai/gatekit/pkg/orchestrator"
	"github.com/lockstep-ai/gatekit/pkg/stream"
)

func TestNewOpenAI_RequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewOpenAI(OpenAIConfig{})
	require.Error(t, err)
}

func TestNewOpenAI_Defaults(t *testing.T) {
	m, err := NewOpenAI(OpenAIConfig{APIKey: "sk-test"})
	require.NoError(t, err)
	require.Equal(t, "openai", m.Provider())
	require.Equal(t, defaultOpenAIModel, m.model)
	require.Equal(t, defaultOpenAIMaxTokens, m.maxTokens)
}

func TestConvertMessagesToOpenAI(t *testing.T) {
	msgs := []orchestrator.Message{
		{Role: "system", Content: "extra system"},
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "running", ToolCalls: []stream.ToolCall{
			{ID: "call_1", Name: "bash", Arguments: map[string]any{"command": "ls"}},
		}},
		{Role: "tool", Content: "file.txt", ToolCallID: "call_1"},
		{Role: "user", Content: "   "},
	}

	result := convertMessagesToOpenAI(msgs, "base system")
	require.Len(t, result, 6)
	require.NotNil(t, result[0].OfSystem)
	require.NotNil(t, result[1].OfSystem)
	require.NotNil(t, result[2].OfUser)
	require.NotNil(t, result[3].OfAssistant)
	require.Len(t, result[3].OfAssistant.ToolCalls, 1)
	require.Equal(t, "call_1", result[3].OfAssistant.ToolCalls[0].ID)
	require.Contains(t, result[3].OfAssistant.ToolCalls[0].Function.Arguments, `"command":"ls"`)
	require.NotNil(t, result[4].OfTool)
	// Blank user content gets a placeholder rather than an empty message.
	require.NotNil(t, result[5].OfUser)
}

func TestConvertMessagesToOpenAI_EmptyHistory(t *testing.T) {
	result := convertMessagesToOpenAI(nil, "")
	require.Len(t, result, 1)
	require.NotNil(t, result[0].OfUser)
}

func TestBuildOpenAIAssistantMessage_SkipsIncompleteCalls(t *testing.T) {
	msg := orchestrator.Message{Role: "assistant", ToolCalls: []stream.ToolCall{
		{ID: "", Name: "bash"},
		{ID: "call_2", Name: ""},
		{ID: "call_3", Name: "echo", Arguments: map[string]any{}},
	}}
	result := buildOpenAIAssistantMessage(msg)
	require.NotNil(t, result.OfAssistant)
	require.Len(t, result.OfAssistant.ToolCalls, 1)
	require.Equal(t, "call_3", result.OfAssistant.ToolCalls[0].ID)
}

func TestConvertToolsToOpenAI(t *testing.T) {
	tools := convertToolsToOpenAI([]ToolSpec{
		{Name: "bash", Description: "run a command", Parameters: map[string]any{
			"properties": map[string]any{"command": map[string]any{"type": "string"}},
		}},
		{Name: "  "},
	})
	require.Len(t, tools, 1)
	require.Equal(t, "bash", tools[0].Function.Name)
	require.Equal(t, "object", tools[0].Function.Parameters["type"])
}

func TestConvertFunctionParameters_PreservesExplicitType(t *testing.T) {
	params := convertFunctionParameters(map[string]any{"type": "string"})
	require.Equal(t, "string", params["type"])
}
