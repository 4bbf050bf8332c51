package orchestrator

import (
	"context"

	"github.com/lockstep-ai/gatekit/pkg/risk"
	"github.com/lockstep-ai/gatekit/pkg/stream"
)

// Message is one role-tagged entry in the conversation history.
type Message struct {
	Role       string            `json:"role"`
	Content    string            `json:"content"`
	ToolCalls  []stream.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
	ToolName   string            `json:"tool_name,omitempty"`
}

// ModelStream produces model response deltas for a message history. It is
// supplied by the model-client collaborator; pkg/model ships adapters for
// OpenAI and Anthropic.
type ModelStream interface {
	// Provider names the upstream for circuit-breaker bookkeeping.
	Provider() string
	// Stream invokes the model and forwards each delta to onDelta in
	// arrival order. It returns once the stream is drained or broken.
	Stream(ctx context.Context, messages []Message, onDelta func(stream.Delta) error) error
}

// ToolRegistry is the external catalog of executable tools.
type ToolRegistry interface {
	// RiskLevel reports the declared risk for a tool name. ok is false for
	// unknown tools.
	RiskLevel(name string) (level risk.Level, ok bool)
	// Execute runs the tool and returns its textual result.
	Execute(ctx context.Context, name string, args map[string]any) (string, error)
	// Len reports how many tools are registered, for diagnostics.
	Len() int
}

// HistoryStore is an append-only ordered message sequence. The core only
// appends; trimming and persistence belong to the host.
type HistoryStore interface {
	Append(msg Message)
	Messages() []Message
}

// MemoryHistory is a minimal in-process HistoryStore.
type MemoryHistory struct {
	messages []Message
}

// Append implements HistoryStore.
func (h *MemoryHistory) Append(msg Message) {
	h.messages = append(h.messages, msg)
}

// Messages implements HistoryStore.
func (h *MemoryHistory) Messages() []Message {
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}
