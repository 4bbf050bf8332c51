// Package approval turns pending tool calls into approve/deny decisions
// through pluggable providers: interactive terminal prompts, remote
// webhooks, chat callbacks, or configurable auto-approval.
package approval

import (
	"context"

	"github.com/lockstep-ai/gatekit/pkg/risk"
)

// Request describes one tool call awaiting a decision. It is created per
// call, consumed once by a provider, then discarded.
type Request struct {
	ToolCallID  string            `json:"tool_call_id"`
	ToolName    string            `json:"tool_name"`
	Arguments   map[string]any    `json:"arguments"`
	RiskLevel   risk.Level        `json:"risk_level"`
	Description string            `json:"description"`
	Context     map[string]string `json:"context,omitempty"`
}

// Response is the outcome of one approval request.
type Response struct {
	Approved        bool           `json:"approved"`
	Reason          string         `json:"reason,omitempty"`
	TimeoutOverride int            `json:"timeout_override,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// Provider obtains a yes/no decision for a risky action. Implementations
// may suspend (terminal input, network round-trips) and must honor ctx.
// A transport or implementation failure must resolve to a denial, never an
// approval.
type Provider interface {
	RequestApproval(ctx context.Context, req *Request) (*Response, error)
}

// Denied builds a denial response with the given reason.
func Denied(reason string) *Response {
	return &Response{Approved: false, Reason: reason}
}

// Approved builds an approval response with the given reason.
func Approved(reason string) *Response {
	return &Response{Approved: true, Reason: reason}
}
