package policy

import (
	"fmt"
	"log"
	"strings"

	"github.com/lockstep-ai/gatekit/pkg/risk"
)

// Resolver turns a ToolConfig into approval decisions. It is immutable
// after construction and safe for concurrent use.
type Resolver struct {
	settings  Settings
	allowed   map[string]struct{}
	whitelist []whitelistRule
}

type whitelistRule struct {
	raw   string
	match func(string) bool
}

// NewResolver compiles the config's whitelists and resolves its settings.
// Invalid whitelist patterns fail construction rather than being skipped.
func NewResolver(cfg *ToolConfig) (*Resolver, error) {
	settings, err := EffectiveSettings(cfg)
	if err != nil {
		return nil, err
	}

	r := &Resolver{
		settings: settings,
		allowed:  make(map[string]struct{}),
	}
	if cfg != nil {
		for _, name := range cfg.AllowedTools {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			r.allowed[strings.ToLower(name)] = struct{}{}
		}
		for _, pat := range cfg.BashWhitelistPatterns {
			matcher, err := compilePattern(pat)
			if err != nil {
				return nil, fmt.Errorf("policy: bash whitelist pattern %q: %w", pat, err)
			}
			r.whitelist = append(r.whitelist, whitelistRule{raw: pat, match: matcher})
		}
		for _, warning := range Validate(cfg) {
			log.Printf("[policy] warning: %s", warning)
		}
	}
	return r, nil
}

// Settings exposes the resolved settings.
func (r *Resolver) Settings() Settings { return r.settings }

// RequiresApproval decides whether the tool call needs sign-off.
// Blocked risk always requires approval; no whitelist or policy bypasses it.
func (r *Resolver) RequiresApproval(toolName string, level risk.Level, args map[string]any) bool {
	if level >= risk.Blocked {
		return true
	}

	name := strings.ToLower(strings.TrimSpace(toolName))
	if _, ok := r.allowed[name]; ok {
		return false
	}
	if name == "bash" && r.commandWhitelisted(args) {
		return false
	}

	switch r.settings.ApprovalMode {
	case ModeAlways:
		return true
	case ModeNever:
		return false
	default:
		return level > r.settings.RiskThreshold
	}
}

func (r *Resolver) commandWhitelisted(args map[string]any) bool {
	if len(r.whitelist) == 0 {
		return false
	}
	cmd, _ := args["command"].(string)
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return false
	}
	for _, rule := range r.whitelist {
		if rule.match(cmd) {
			return true
		}
	}
	return false
}
