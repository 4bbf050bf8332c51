package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/lockstep-ai/gatekit/pkg/risk"
)

// Registry keeps the mapping between tool names and implementations. It
// satisfies the orchestrator's ToolRegistry interface.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register inserts a tool when its name is not in use.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return fmt.Errorf("tool: tool is nil")
	}
	name := t.Name()
	if name == "" {
		return fmt.Errorf("tool: tool name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool: %s already registered", name)
	}
	r.tools[name] = t
	return nil
}

// Get fetches a tool by name.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, exists := r.tools[name]
	if !exists {
		return nil, fmt.Errorf("tool: %s not found", name)
	}
	return t, nil
}

// List produces a name-sorted snapshot of all registered tools.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name() < tools[j].Name() })
	return tools
}

// Len reports how many tools are registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// RiskLevel reports the declared risk for a tool name.
func (r *Registry) RiskLevel(name string) (risk.Level, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, exists := r.tools[name]
	if !exists {
		return risk.Dangerous, false
	}
	return t.RiskLevel(), true
}

// Execute runs a registered tool.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	t, err := r.Get(name)
	if err != nil {
		return "", err
	}
	return t.Execute(ctx, args)
}
