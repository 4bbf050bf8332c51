package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lockstep-ai/gatekit/pkg/approval"
	"github.com/lockstep-ai/gatekit/pkg/breaker"
	"github.com/lockstep-ai/gatekit/pkg/config"
	"github.com/lockstep-ai/gatekit/pkg/model"
	"github.com/lockstep-ai/gatekit/pkg/orchestrator"
	"github.com/lockstep-ai/gatekit/pkg/policy"
	"github.com/lockstep-ai/gatekit/pkg/risk"
	"github.com/lockstep-ai/gatekit/pkg/tool"
)

var rootCmd = &cobra.Command{
	Use:   "gatekit",
	Short: "gatekit - agent tool-call safety runtime",
}

var classifyCmd = &cobra.Command{
	Use:   "classify <command...>",
	Short: "Classify a shell command's risk level",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runClassify,
}

var checkCmd = &cobra.Command{
	Use:   "check <tool> [command]",
	Short: "Report whether a tool call would require approval",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runCheck,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single agent turn against the configured model",
	RunE:  runTurn,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show effective configuration",
	RunE:  runStatus,
}

var (
	configFlag  string
	jsonFlag    bool
	messageFlag string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", defaultConfigPath(), "Config file path")
	classifyCmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit JSON")
	runCmd.Flags().StringVarP(&messageFlag, "message", "m", "", "Single message to send")
	rootCmd.AddCommand(classifyCmd, checkCmd, runCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	home, _ := os.UserHomeDir()
	if home == "" {
		return "gatekit.json"
	}
	return home + "/.gatekit/config.json"
}

func runClassify(cmd *cobra.Command, args []string) error {
	command := strings.Join(args, " ")
	result := risk.NewClassifier().Classify(command)

	if jsonFlag {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Level: %s\n", result.Level)
	fmt.Printf("Reason: %s\n", result.Reason)
	if result.MatchedPattern != "" {
		fmt.Printf("Pattern: %s\n", result.MatchedPattern)
	}
	for _, s := range result.Suggestions {
		fmt.Printf("Suggestion: %s\n", s)
	}
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return err
	}

	resolver, err := policy.NewResolver(&cfg.Tools)
	if err != nil {
		return fmt.Errorf("build resolver: %w", err)
	}

	toolName := args[0]
	toolArgs := map[string]any{}
	level := risk.Caution
	if len(args) > 1 {
		toolArgs["command"] = args[1]
		if toolName == "bash" {
			level = risk.NewClassifier().Classify(args[1]).Level
		}
	}

	needed := resolver.RequiresApproval(toolName, level, toolArgs)
	settings := resolver.Settings()

	fmt.Printf("Policy: %s (%s)\n", effectivePolicy(&cfg.Tools), settings.Description)
	fmt.Printf("Risk: %s\n", level)
	if needed {
		fmt.Println("Approval: required")
	} else {
		fmt.Println("Approval: not required")
	}
	return nil
}

func effectivePolicy(cfg *policy.ToolConfig) policy.Policy {
	if cfg.PermissionPolicy == "" {
		return policy.Balanced
	}
	return cfg.PermissionPolicy
}

func runTurn(cmd *cobra.Command, args []string) error {
	if messageFlag == "" {
		return fmt.Errorf("a message is required (use -m)")
	}

	cfg, err := config.Load(configFlag)
	if err != nil {
		return err
	}
	if cfg.Provider.APIKey == "" {
		return fmt.Errorf("API key not set. Set GATEKIT_API_KEY / ANTHROPIC_API_KEY / OPENAI_API_KEY or edit %s", configFlag)
	}

	registry := tool.NewRegistry()
	specs := toolSpecs(registry)

	var stream orchestrator.ModelStream
	switch cfg.Provider.Type {
	case "openai":
		stream, err = model.NewOpenAI(model.OpenAIConfig{
			APIKey:    cfg.Provider.APIKey,
			BaseURL:   cfg.Provider.BaseURL,
			Model:     cfg.Agent.Model,
			MaxTokens: cfg.Agent.MaxTokens,
			System:    cfg.Agent.SystemPrompt,
			Tools:     specs,
		})
	default:
		stream, err = model.NewAnthropic(model.AnthropicConfig{
			APIKey:    cfg.Provider.APIKey,
			BaseURL:   cfg.Provider.BaseURL,
			Model:     cfg.Agent.Model,
			MaxTokens: cfg.Agent.MaxTokens,
			System:    cfg.Agent.SystemPrompt,
			Tools:     specs,
		})
	}
	if err != nil {
		return fmt.Errorf("create model: %w", err)
	}

	resolver, err := policy.NewResolver(&cfg.Tools)
	if err != nil {
		return fmt.Errorf("build resolver: %w", err)
	}

	approver, err := buildApprover(cfg)
	if err != nil {
		return fmt.Errorf("create approval provider: %w", err)
	}

	breakers := breaker.NewManager(cfg.Breaker.ToBreaker())
	orc, err := orchestrator.New(stream, registry, nil, resolver, approver, breakers,
		orchestrator.Config{MaxIterations: cfg.Agent.MaxToolIterations})
	if err != nil {
		return fmt.Errorf("create orchestrator: %w", err)
	}

	orc.History().Append(orchestrator.Message{Role: "user", Content: messageFlag})

	result, err := orc.RunTurn(context.Background(), func(token string) {
		fmt.Print(token)
	})
	if err != nil {
		return fmt.Errorf("agent error: %w", err)
	}
	fmt.Println()
	if result.Warning != "" {
		fmt.Fprintln(os.Stderr, result.Warning)
	}
	return nil
}

func buildApprover(cfg *config.Config) (approval.Provider, error) {
	switch cfg.Approval.Provider {
	case "webhook":
		return approval.NewWebhook(
			cfg.Approval.Webhook.URL,
			cfg.Approval.Webhook.Token,
			time.Duration(cfg.Approval.Webhook.TimeoutSeconds)*time.Second,
		), nil
	case "auto":
		return approval.NewAuto(approval.AutoMode(cfg.Approval.Auto.Mode), nil), nil
	case "telegram":
		bot, err := approval.NewTelegramBot(cfg.Approval.Telegram.Token)
		if err != nil {
			return nil, err
		}
		timeout := time.Duration(cfg.Approval.Telegram.TimeoutSeconds) * time.Second
		return approval.NewTelegram(bot, cfg.Approval.Telegram.ChatID, timeout), nil
	default:
		return approval.NewInteractive(os.Stdin, os.Stdout), nil
	}
}

func toolSpecs(registry *tool.Registry) []model.ToolSpec {
	tools := registry.List()
	specs := make([]model.ToolSpec, 0, len(tools))
	for _, t := range tools {
		specs = append(specs, model.ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  map[string]any{"type": "object"},
		})
	}
	return specs
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFlag)
	if err != nil {
		fmt.Printf("Config: error (%v)\n", err)
		return nil
	}

	settings, err := policy.EffectiveSettings(&cfg.Tools)
	if err != nil {
		return err
	}

	fmt.Printf("Config: %s\n", configFlag)
	fmt.Printf("Policy: %s\n", effectivePolicy(&cfg.Tools))
	fmt.Printf("Approval mode: %s (auto_approve=%v, threshold=%s)\n",
		settings.ApprovalMode, settings.AutoApprove, settings.RiskThreshold)
	fmt.Printf("Approval provider: %s\n", cfg.Approval.Provider)
	fmt.Printf("Provider: %s\n", providerDisplay(cfg.Provider.Type))
	if key := cfg.Provider.APIKey; len(key) > 8 {
		fmt.Printf("API Key: %s...%s\n", key[:4], key[len(key)-4:])
	} else if key != "" {
		fmt.Println("API Key: set")
	} else {
		fmt.Println("API Key: not set")
	}
	for _, w := range policy.Validate(&cfg.Tools) {
		fmt.Printf("Warning: %s\n", w)
	}
	return nil
}

func providerDisplay(t string) string {
	if t == "" {
		return "anthropic (default)"
	}
	return t
}
