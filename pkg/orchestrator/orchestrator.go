// Package orchestrator drives the bounded agent loop: stream a model
// response, reconstruct tool calls, gate each through the permission
// resolver and approval provider, execute, feed results back, repeat.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lockstep-ai/gatekit/pkg/approval"
	"github.com/lockstep-ai/gatekit/pkg/breaker"
	"github.com/lockstep-ai/gatekit/pkg/policy"
	"github.com/lockstep-ai/gatekit/pkg/risk"
	"github.com/lockstep-ai/gatekit/pkg/stream"
)

const (
	defaultMaxIterations = 10
	defaultBashTool      = "bash"
)

var (
	ErrNilModel    = errors.New("orchestrator: model stream is nil")
	ErrNilRegistry = errors.New("orchestrator: tool registry is nil")
)

// Config tunes the loop.
type Config struct {
	// MaxIterations caps model round-trips per turn. Zero means the default.
	MaxIterations int
	// BashTool is the tool name whose command argument routes through the
	// risk classifier instead of static registry metadata.
	BashTool string
}

func (c Config) withDefaults() Config {
	if c.MaxIterations <= 0 {
		c.MaxIterations = defaultMaxIterations
	}
	if c.BashTool == "" {
		c.BashTool = defaultBashTool
	}
	return c
}

// TurnResult summarizes one completed RunTurn.
type TurnResult struct {
	// Text is the final (or best-known) assistant text.
	Text string
	// Iterations is how many model round-trips ran.
	Iterations int
	// CapReached is set when the loop hit MaxIterations with tool calls
	// still pending; Warning then carries a user-visible explanation.
	CapReached bool
	Warning    string
}

// Orchestrator composes the reconstructor, resolver, approval provider,
// breaker manager, and the external registry and history collaborators.
// All dependencies are injected; there is no hidden global state.
type Orchestrator struct {
	model      ModelStream
	registry   ToolRegistry
	history    HistoryStore
	resolver   *policy.Resolver
	approver   approval.Provider
	breakers   *breaker.Manager
	classifier *risk.Classifier
	cfg        Config
	tracer     trace.Tracer
}

// New wires an orchestrator. resolver, approver, and breakers may be nil
// for fully-open setups; nil resolver behaves as the balanced policy.
func New(model ModelStream, registry ToolRegistry, history HistoryStore,
	resolver *policy.Resolver, approver approval.Provider,
	breakers *breaker.Manager, cfg Config) (*Orchestrator, error) {

	if model == nil {
		return nil, ErrNilModel
	}
	if registry == nil {
		return nil, ErrNilRegistry
	}
	if history == nil {
		history = &MemoryHistory{}
	}
	if resolver == nil {
		var err error
		resolver, err = policy.NewResolver(&policy.ToolConfig{PermissionPolicy: policy.Balanced})
		if err != nil {
			return nil, err
		}
	}
	if breakers == nil {
		breakers = breaker.NewManager(breaker.Config{})
	}

	return &Orchestrator{
		model:      model,
		registry:   registry,
		history:    history,
		resolver:   resolver,
		approver:   approver,
		breakers:   breakers,
		classifier: risk.NewClassifier(),
		cfg:        cfg.withDefaults(),
		tracer:     otel.Tracer("gatekit/orchestrator"),
	}, nil
}

// History exposes the store, primarily for callers that append the user
// message before calling RunTurn.
func (o *Orchestrator) History() HistoryStore { return o.history }

// RunTurn drives the loop until the model stops calling tools, the
// iteration cap is reached, or a session-level failure occurs. onToken, if
// non-nil, receives text tokens as they arrive. Per-tool failures (denials,
// execution errors) are fed back into history and never abort the loop.
func (o *Orchestrator) RunTurn(ctx context.Context, onToken func(string)) (*TurnResult, error) {
	var lastText string

	for iteration := 0; iteration < o.cfg.MaxIterations; iteration++ {
		turn, err := o.streamResponse(ctx, onToken)
		if err != nil {
			return nil, err
		}
		lastText = turn.Text

		o.history.Append(Message{
			Role:      "assistant",
			Content:   turn.Text,
			ToolCalls: turn.ToolCalls,
		})

		if len(turn.ToolCalls) == 0 {
			return &TurnResult{Text: turn.Text, Iterations: iteration + 1}, nil
		}

		// Strictly in parsed order, never in parallel: concurrent
		// side-effecting tools would scramble approval semantics and
		// history ordering.
		for _, call := range turn.ToolCalls {
			o.history.Append(o.runToolCall(ctx, call, iteration))
		}
	}

	warning := fmt.Sprintf("stopped after %d iterations with tool calls still pending", o.cfg.MaxIterations)
	log.Printf("[orchestrator] %s", warning)
	return &TurnResult{
		Text:       lastText,
		Iterations: o.cfg.MaxIterations,
		CapReached: true,
		Warning:    warning,
	}, nil
}

// streamResponse runs one breaker-wrapped model call through the
// reconstructor. On a mid-stream failure the partial assistant text is
// persisted before the typed error propagates.
func (o *Orchestrator) streamResponse(ctx context.Context, onToken func(string)) (*stream.Turn, error) {
	ctx, span := o.tracer.Start(ctx, "model.stream",
		trace.WithAttributes(attribute.String("provider", o.model.Provider())))
	defer span.End()

	recon := stream.NewReconstructor(func(ev stream.Event) error {
		if ev.Token != "" && onToken != nil {
			onToken(ev.Token)
		}
		return nil
	})

	err := o.breakers.Call(ctx, o.model.Provider(), func(ctx context.Context) error {
		return o.model.Stream(ctx, o.history.Messages(), recon.Feed)
	})
	if err != nil {
		var open *breaker.OpenError
		if errors.As(err, &open) {
			return nil, open
		}
		serr := recon.Fail(err)
		serr.Interrupted = errors.Is(err, context.Canceled)
		if serr.Partial != "" {
			o.history.Append(Message{Role: "assistant", Content: serr.Partial})
		}
		return nil, serr
	}

	return recon.Finish()
}

// runToolCall resolves risk, gates on approval, executes, and synthesizes
// the tool-result message. Every failure path resolves to a result the
// model can see; nothing escapes the loop.
func (o *Orchestrator) runToolCall(ctx context.Context, call stream.ToolCall, iteration int) Message {
	ctx, span := o.tracer.Start(ctx, "tool.execute",
		trace.WithAttributes(attribute.String("tool", call.Name)))
	defer span.End()

	level, reason := o.resolveRisk(call)
	span.SetAttributes(attribute.String("risk", level.String()))

	if o.resolver.RequiresApproval(call.Name, level, call.Arguments) {
		resp := o.requestApproval(ctx, call, level, reason, iteration)
		if !resp.Approved {
			why := resp.Reason
			if why == "" {
				why = "denied by user/policy"
			}
			return toolResult(call, "Tool call denied: "+why)
		}
	}

	output, err := o.registry.Execute(ctx, call.Name, call.Arguments)
	if err != nil {
		return toolResult(call, "Tool execution failed: "+err.Error())
	}
	return toolResult(call, output)
}

// resolveRisk routes command-executor calls through the classifier and
// everything else through the registry's declared risk. Unknown tools are
// treated as dangerous rather than safe.
func (o *Orchestrator) resolveRisk(call stream.ToolCall) (risk.Level, string) {
	if call.Name == o.cfg.BashTool {
		cmd, _ := call.Arguments["command"].(string)
		cr := o.classifier.Classify(cmd)
		return cr.Level, cr.Reason
	}
	if level, ok := o.registry.RiskLevel(call.Name); ok {
		return level, "declared tool risk"
	}
	return risk.Dangerous, "tool not present in registry"
}

// requestApproval never lets a provider failure escalate into an approval:
// a provider error or nil response is a denial carrying the failure text.
func (o *Orchestrator) requestApproval(ctx context.Context, call stream.ToolCall, level risk.Level, reason string, iteration int) *approval.Response {
	if o.approver == nil {
		return approval.Denied("no approval provider configured")
	}

	req := &approval.Request{
		ToolCallID:  call.ID,
		ToolName:    call.Name,
		Arguments:   call.Arguments,
		RiskLevel:   level,
		Description: reason,
		Context: map[string]string{
			"iteration": strconv.Itoa(iteration),
		},
	}

	resp, err := o.approver.RequestApproval(ctx, req)
	if err != nil {
		log.Printf("[orchestrator] approval provider failed for %s: %v", call.Name, err)
		return approval.Denied("approval provider failed: " + err.Error())
	}
	if resp == nil {
		return approval.Denied("approval provider returned no decision")
	}
	return resp
}

func toolResult(call stream.ToolCall, content string) Message {
	return Message{
		Role:       "tool",
		Content:    content,
		ToolCallID: call.ID,
		ToolName:   call.Name,
	}
}
