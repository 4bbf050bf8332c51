package policy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lockstep-ai/gatekit/pkg/risk"
)

func TestEffectiveSettings_NamedPolicies(t *testing.T) {
	cases := []struct {
		policy    Policy
		mode      ApprovalMode
		auto      bool
		threshold risk.Level
	}{
		{Paranoid, ModeAlways, false, risk.Safe},
		{Balanced, ModeRiskBased, false, risk.Safe},
		{Trusting, ModeRiskBased, false, risk.Caution},
		{Unrestricted, ModeNever, true, risk.Dangerous},
	}
	for _, tc := range cases {
		t.Run(string(tc.policy), func(t *testing.T) {
			s, err := EffectiveSettings(&ToolConfig{PermissionPolicy: tc.policy})
			require.NoError(t, err)
			require.Equal(t, tc.mode, s.ApprovalMode)
			require.Equal(t, tc.auto, s.AutoApprove)
			require.Equal(t, tc.threshold, s.RiskThreshold)
		})
	}
}

func TestEffectiveSettings_NilAndDefault(t *testing.T) {
	s, err := EffectiveSettings(nil)
	require.NoError(t, err)
	require.Equal(t, ModeRiskBased, s.ApprovalMode)
	require.Equal(t, risk.Safe, s.RiskThreshold)

	s2, err := EffectiveSettings(&ToolConfig{})
	require.NoError(t, err)
	require.Equal(t, s, s2)
}

func TestEffectiveSettings_UnknownPolicy(t *testing.T) {
	_, err := EffectiveSettings(&ToolConfig{PermissionPolicy: "yolo"})
	require.Error(t, err)
}

func TestEffectiveSettings_LegacyOverrides(t *testing.T) {
	auto := true
	s, err := EffectiveSettings(&ToolConfig{
		ApprovalModeOverride: ModeAlways,
		AutoApproveOverride:  &auto,
	})
	require.NoError(t, err)
	require.Equal(t, ModeAlways, s.ApprovalMode)
	require.True(t, s.AutoApprove)

	// A named policy fully shadows the legacy knobs.
	s, err = EffectiveSettings(&ToolConfig{
		PermissionPolicy:     Trusting,
		ApprovalModeOverride: ModeAlways,
		AutoApproveOverride:  &auto,
	})
	require.NoError(t, err)
	require.Equal(t, ModeRiskBased, s.ApprovalMode)
	require.False(t, s.AutoApprove)
}

func TestResolver_BlockedAlwaysRequiresApproval(t *testing.T) {
	cfgs := []*ToolConfig{
		{PermissionPolicy: Unrestricted},
		{PermissionPolicy: Paranoid, AllowedTools: []string{"bash"}},
		{PermissionPolicy: Balanced, BashWhitelistPatterns: []string{"*"}},
	}
	for _, cfg := range cfgs {
		r, err := NewResolver(cfg)
		require.NoError(t, err)
		require.True(t, r.RequiresApproval("bash",
			risk.Blocked, map[string]any{"command": "rm -rf /"}))
	}
}

func TestResolver_RiskBasedThresholds(t *testing.T) {
	balanced, err := NewResolver(&ToolConfig{PermissionPolicy: Balanced})
	require.NoError(t, err)
	require.False(t, balanced.RequiresApproval("bash", risk.Safe, nil))
	require.True(t, balanced.RequiresApproval("bash", risk.Caution, nil))
	require.True(t, balanced.RequiresApproval("bash", risk.Dangerous, nil))

	trusting, err := NewResolver(&ToolConfig{PermissionPolicy: Trusting})
	require.NoError(t, err)
	require.False(t, trusting.RequiresApproval("bash", risk.Caution, nil))
	require.True(t, trusting.RequiresApproval("bash", risk.Dangerous, nil))
}

func TestResolver_ModeEndpoints(t *testing.T) {
	paranoid, err := NewResolver(&ToolConfig{PermissionPolicy: Paranoid})
	require.NoError(t, err)
	require.True(t, paranoid.RequiresApproval("read_file", risk.Safe, nil))

	unrestricted, err := NewResolver(&ToolConfig{PermissionPolicy: Unrestricted})
	require.NoError(t, err)
	require.False(t, unrestricted.RequiresApproval("bash", risk.Dangerous, nil))
}

func TestResolver_AllowedTools(t *testing.T) {
	r, err := NewResolver(&ToolConfig{
		PermissionPolicy: Paranoid,
		AllowedTools:     []string{"Read_File", " "},
	})
	require.NoError(t, err)

	// Matching is case-insensitive and trims whitespace.
	require.False(t, r.RequiresApproval("read_file", risk.Caution, nil))
	require.True(t, r.RequiresApproval("write_file", risk.Caution, nil))
}

func TestResolver_BashWhitelist(t *testing.T) {
	r, err := NewResolver(&ToolConfig{
		PermissionPolicy: Paranoid,
		BashWhitelistPatterns: []string{
			"git status*",
			"regex:^npm (test|run lint)$",
		},
	})
	require.NoError(t, err)

	require.False(t, r.RequiresApproval("bash", risk.Safe,
		map[string]any{"command": "git status --short"}))
	require.False(t, r.RequiresApproval("bash", risk.Caution,
		map[string]any{"command": "npm test"}))
	require.True(t, r.RequiresApproval("bash", risk.Safe,
		map[string]any{"command": "git stash"}))

	// Whitelist only applies to the command executor.
	require.True(t, r.RequiresApproval("write_file", risk.Safe,
		map[string]any{"command": "git status"}))
}

func TestNewResolver_InvalidPatternFailsClosed(t *testing.T) {
	_, err := NewResolver(&ToolConfig{
		BashWhitelistPatterns: []string{"regex:("},
	})
	require.Error(t, err)
}

func TestCompilePattern_Glob(t *testing.T) {
	match, err := compilePattern("npm run *")
	require.NoError(t, err)
	require.True(t, match("npm run build"))
	require.False(t, match("npm install"))
	require.False(t, match("prefix npm run build"))

	exact, err := compilePattern("go test ./...")
	require.NoError(t, err)
	require.True(t, exact("go test ./..."))
	require.False(t, exact("go test ./... -count=1"))
}

func TestValidate_UnrestrictedWarns(t *testing.T) {
	require.Empty(t, Validate(&ToolConfig{PermissionPolicy: Balanced}))
	require.NotEmpty(t, Validate(&ToolConfig{PermissionPolicy: Unrestricted}))
	require.Nil(t, Validate(nil))
}
