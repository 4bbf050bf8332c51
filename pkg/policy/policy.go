// Package policy resolves named permission policies into concrete approval
// decisions for tool calls.
package policy

import (
	"fmt"

	"github.com/lockstep-ai/gatekit/pkg/risk"
)

// Policy is a named bundle of approval defaults.
type Policy string

const (
	Paranoid     Policy = "paranoid"
	Balanced     Policy = "balanced"
	Trusting     Policy = "trusting"
	Unrestricted Policy = "unrestricted"
)

// ApprovalMode controls when a tool call needs human sign-off.
type ApprovalMode string

const (
	ModeAlways    ApprovalMode = "always"
	ModeNever     ApprovalMode = "never"
	ModeRiskBased ApprovalMode = "risk_based"
)

// Settings is the concrete shape a policy resolves to.
type Settings struct {
	ApprovalMode  ApprovalMode `json:"approval_mode"`
	AutoApprove   bool         `json:"auto_approve"`
	RiskThreshold risk.Level   `json:"risk_threshold"`
	Description   string       `json:"description"`
}

// settingsTable is the single source of truth for policy semantics.
var settingsTable = map[Policy]Settings{
	Paranoid: {
		ApprovalMode:  ModeAlways,
		AutoApprove:   false,
		RiskThreshold: risk.Safe,
		Description:   "every tool call requires approval",
	},
	Balanced: {
		ApprovalMode:  ModeRiskBased,
		AutoApprove:   false,
		RiskThreshold: risk.Safe,
		Description:   "anything beyond safe requires approval",
	},
	Trusting: {
		ApprovalMode:  ModeRiskBased,
		AutoApprove:   false,
		RiskThreshold: risk.Caution,
		Description:   "only dangerous operations require approval",
	},
	Unrestricted: {
		ApprovalMode:  ModeNever,
		AutoApprove:   true,
		RiskThreshold: risk.Dangerous,
		Description:   "no approvals; blocked commands are still refused",
	},
}

// ToolConfig is the session-scoped permission configuration. It is loaded
// once at session start and treated as read-only afterwards.
type ToolConfig struct {
	PermissionPolicy      Policy   `json:"permission_policy" yaml:"permission_policy"`
	AllowedTools          []string `json:"allowed_tools" yaml:"allowed_tools"`
	BashWhitelistPatterns []string `json:"bash_whitelist_patterns" yaml:"bash_whitelist_patterns"`

	// Legacy knobs, fully shadowed whenever PermissionPolicy is set.
	ApprovalModeOverride ApprovalMode `json:"approval_mode,omitempty" yaml:"approval_mode,omitempty"`
	AutoApproveOverride  *bool        `json:"auto_approve,omitempty" yaml:"auto_approve,omitempty"`
}

// EffectiveSettings resolves the settings for a config. A named policy
// always wins over the legacy approval_mode/auto_approve fields; those only
// apply when no policy is set, on top of the balanced defaults.
func EffectiveSettings(cfg *ToolConfig) (Settings, error) {
	if cfg == nil || cfg.PermissionPolicy == "" {
		settings := settingsTable[Balanced]
		if cfg != nil {
			if cfg.ApprovalModeOverride != "" {
				settings.ApprovalMode = cfg.ApprovalModeOverride
			}
			if cfg.AutoApproveOverride != nil {
				settings.AutoApprove = *cfg.AutoApproveOverride
			}
		}
		return settings, nil
	}
	settings, ok := settingsTable[cfg.PermissionPolicy]
	if !ok {
		return Settings{}, fmt.Errorf("policy: unknown policy %q", cfg.PermissionPolicy)
	}
	return settings, nil
}

// Validate returns advisory, human-readable warnings for objectively risky
// configurations. It never fails the config.
func Validate(cfg *ToolConfig) []string {
	if cfg == nil {
		return nil
	}
	var warnings []string
	if cfg.PermissionPolicy == Unrestricted {
		warnings = append(warnings,
			"unrestricted policy auto-approves dangerous operations; use only in throwaway environments")
	}
	return warnings
}
