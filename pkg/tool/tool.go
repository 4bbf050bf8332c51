// Package tool provides the registry mapping tool names to their declared
// risk level and executable behavior. Concrete tool implementations live in
// the host; this package only catalogs them.
package tool

import (
	"context"

	"github.com/lockstep-ai/gatekit/pkg/risk"
)

// Tool is an executable capability exposed to the agent runtime.
type Tool interface {
	// Name returns the unique identifier of the tool.
	Name() string

	// Description gives a short human readable summary.
	Description() string

	// RiskLevel declares the static risk of invoking this tool. Command
	// executors are re-classified per call by the orchestrator.
	RiskLevel() risk.Level

	// Execute runs the tool and returns its textual result.
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// Func adapts an ordinary function into a Tool.
type Func struct {
	ToolName string
	Summary  string
	Level    risk.Level
	Fn       func(ctx context.Context, args map[string]any) (string, error)
}

// Name implements Tool.
func (f *Func) Name() string { return f.ToolName }

// Description implements Tool.
func (f *Func) Description() string { return f.Summary }

// RiskLevel implements Tool.
func (f *Func) RiskLevel() risk.Level { return f.Level }

// Execute implements Tool.
func (f *Func) Execute(ctx context.Context, args map[string]any) (string, error) {
	return f.Fn(ctx, args)
}
