// Package config loads the runtime configuration file and watches it for
// changes. Files may be JSON or YAML; ${VAR} references are expanded from
// the environment before decoding.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lockstep-ai/gatekit/pkg/breaker"
	"github.com/lockstep-ai/gatekit/pkg/policy"
)

const (
	DefaultMaxTokens         = 8192
	DefaultMaxToolIterations = 10
	DefaultApprovalProvider  = "interactive"
	DefaultApprovalTimeout   = 120
)

type Config struct {
	Agent    AgentConfig       `json:"agent" yaml:"agent"`
	Provider ProviderConfig    `json:"provider" yaml:"provider"`
	Tools    policy.ToolConfig `json:"tools" yaml:"tools"`
	Approval ApprovalConfig    `json:"approval" yaml:"approval"`
	Breaker  BreakerConfig     `json:"breaker" yaml:"breaker"`
}

type AgentConfig struct {
	Model             string `json:"model,omitempty" yaml:"model,omitempty"`
	MaxTokens         int    `json:"maxTokens" yaml:"maxTokens"`
	MaxToolIterations int    `json:"maxToolIterations" yaml:"maxToolIterations"`
	SystemPrompt      string `json:"systemPrompt,omitempty" yaml:"systemPrompt,omitempty"`
}

type ProviderConfig struct {
	Type    string `json:"type,omitempty" yaml:"type,omitempty"` // "anthropic" (default) or "openai"
	APIKey  string `json:"apiKey" yaml:"apiKey"`
	BaseURL string `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`
}

type ApprovalConfig struct {
	Provider string         `json:"provider" yaml:"provider"` // interactive | webhook | auto | telegram
	Webhook  WebhookConfig  `json:"webhook" yaml:"webhook"`
	Auto     AutoConfig     `json:"auto" yaml:"auto"`
	Telegram TelegramConfig `json:"telegram" yaml:"telegram"`
}

type WebhookConfig struct {
	URL            string `json:"url,omitempty" yaml:"url,omitempty"`
	Token          string `json:"token,omitempty" yaml:"token,omitempty"`
	TimeoutSeconds int    `json:"timeoutSeconds,omitempty" yaml:"timeoutSeconds,omitempty"`
}

type AutoConfig struct {
	Mode string `json:"mode,omitempty" yaml:"mode,omitempty"` // auto | safe_only | none
}

type TelegramConfig struct {
	Token          string `json:"token,omitempty" yaml:"token,omitempty"`
	ChatID         int64  `json:"chatId,omitempty" yaml:"chatId,omitempty"`
	TimeoutSeconds int    `json:"timeoutSeconds,omitempty" yaml:"timeoutSeconds,omitempty"`
}

type BreakerConfig struct {
	FailureThreshold int `json:"failureThreshold" yaml:"failureThreshold"`
	SuccessThreshold int `json:"successThreshold" yaml:"successThreshold"`
	TimeoutSeconds   int `json:"timeoutSeconds" yaml:"timeoutSeconds"`
	HalfOpenMaxCalls int `json:"halfOpenMaxCalls" yaml:"halfOpenMaxCalls"`
}

// ToBreaker converts the file shape into the runtime breaker config. Zero
// fields keep the breaker defaults.
func (b BreakerConfig) ToBreaker() breaker.Config {
	cfg := breaker.Config{
		FailureThreshold: b.FailureThreshold,
		SuccessThreshold: b.SuccessThreshold,
		HalfOpenMaxCalls: b.HalfOpenMaxCalls,
	}
	if b.TimeoutSeconds > 0 {
		cfg.Timeout = time.Duration(b.TimeoutSeconds) * time.Second
	}
	return cfg
}

func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			MaxTokens:         DefaultMaxTokens,
			MaxToolIterations: DefaultMaxToolIterations,
		},
		Tools: policy.ToolConfig{
			PermissionPolicy: policy.Balanced,
		},
		Approval: ApprovalConfig{
			Provider: DefaultApprovalProvider,
			Webhook:  WebhookConfig{TimeoutSeconds: DefaultApprovalTimeout},
			Telegram: TelegramConfig{TimeoutSeconds: DefaultApprovalTimeout},
		},
	}
}

var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvRefs substitutes ${VAR} references. Unset variables expand to
// the empty string.
func expandEnvRefs(data []byte) []byte {
	return envRefPattern.ReplaceAllFunc(data, func(m []byte) []byte {
		name := string(m[2 : len(m)-1])
		return []byte(os.Getenv(name))
	})
}

// Load reads the config file at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		data = expandEnvRefs(data)
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		default:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(cfg)
	fillDefaults(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if key := os.Getenv("GATEKIT_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
		if cfg.Provider.Type == "" {
			cfg.Provider.Type = "openai"
		}
	}
	if url := os.Getenv("GATEKIT_BASE_URL"); url != "" {
		cfg.Provider.BaseURL = url
	}
	if p := os.Getenv("GATEKIT_POLICY"); p != "" {
		cfg.Tools.PermissionPolicy = policy.Policy(strings.ToLower(p))
	}
	if p := os.Getenv("GATEKIT_APPROVAL_PROVIDER"); p != "" {
		cfg.Approval.Provider = strings.ToLower(p)
	}
	if token := os.Getenv("GATEKIT_TELEGRAM_TOKEN"); token != "" {
		cfg.Approval.Telegram.Token = token
	}
}

func fillDefaults(cfg *Config) {
	if cfg.Agent.MaxTokens <= 0 {
		cfg.Agent.MaxTokens = DefaultMaxTokens
	}
	if cfg.Agent.MaxToolIterations <= 0 {
		cfg.Agent.MaxToolIterations = DefaultMaxToolIterations
	}
	if cfg.Approval.Provider == "" {
		cfg.Approval.Provider = DefaultApprovalProvider
	}
	if cfg.Approval.Webhook.TimeoutSeconds <= 0 {
		cfg.Approval.Webhook.TimeoutSeconds = DefaultApprovalTimeout
	}
	if cfg.Approval.Telegram.TimeoutSeconds <= 0 {
		cfg.Approval.Telegram.TimeoutSeconds = DefaultApprovalTimeout
	}
}
