// Package config loads threadchat settings from an optional YAML file,
// THREADCHAT_* environment variables and a local .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

const (
	AppName = "threadchat"

	BackendOpenAI    = "openai"
	BackendAnthropic = "anthropic"
)

// ErrMissingCredential is returned by CheckCredentials when the selected
// backend has no API key configured.
var ErrMissingCredential = errors.New("missing credential")

// Config stores all configuration of the application.
type Config struct {
	Backend   string          `mapstructure:"backend"`
	Sandbox   SandboxConfig   `mapstructure:"sandbox"`
	State     StateConfig     `mapstructure:"state"`
	Poll      PollConfig      `mapstructure:"poll"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Log       LogConfig       `mapstructure:"log"`
}

type SandboxConfig struct {
	Root string `mapstructure:"root"`
}

// StateConfig locates the persisted conversation handle (File) and the
// directory for logs and local transcripts (Dir).
type StateConfig struct {
	File string `mapstructure:"file"`
	Dir  string `mapstructure:"dir"`
}

type PollConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type DispatchConfig struct {
	Attempts    int           `mapstructure:"attempts"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	BackoffCap  time.Duration `mapstructure:"backoff_cap"`
}

type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	AssistantID string        `mapstructure:"assistant_id"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type AnthropicConfig struct {
	APIKey      string `mapstructure:"api_key"`
	Model       string `mapstructure:"model"`
	MaxTokens   int64  `mapstructure:"max_tokens"`
	TokenBudget int    `mapstructure:"token_budget"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment. Variables that are already set win. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := gotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads configuration from configPath, or from threadchat.yaml in the
// working directory or $HOME/.config/threadchat when configPath is empty.
// A missing config file is not an error unless configPath names it.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", AppName))
		}
		v.SetConfigName(AppName)
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix(strings.ToUpper(AppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Well-known variable names take part alongside the prefixed ones.
	bindings := map[string][]string{
		"openai.api_key":      {"THREADCHAT_OPENAI_API_KEY", "OPENAI_API_KEY"},
		"openai.assistant_id": {"THREADCHAT_OPENAI_ASSISTANT_ID", "ASSISTANT_ID"},
		"anthropic.api_key":   {"THREADCHAT_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend", BackendOpenAI)

	v.SetDefault("sandbox.root", "agent_directory")
	v.SetDefault("state.file", "thread_id.txt")
	v.SetDefault("state.dir", ".threadchat")

	v.SetDefault("poll.interval", "500ms")

	// 3 attempts, 4s..10s exponential backoff
	v.SetDefault("dispatch.attempts", 3)
	v.SetDefault("dispatch.backoff_base", "4s")
	v.SetDefault("dispatch.backoff_cap", "10s")

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.assistant_id", "")
	v.SetDefault("openai.timeout", "60s")

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "claude-3-7-sonnet-latest")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.token_budget", 12000)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", false)
}

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendOpenAI, BackendAnthropic:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive, got %s", c.Poll.Interval)
	}
	if c.Dispatch.Attempts < 1 {
		return fmt.Errorf("dispatch.attempts must be at least 1, got %d", c.Dispatch.Attempts)
	}
	if c.Dispatch.BackoffBase <= 0 || c.Dispatch.BackoffCap < c.Dispatch.BackoffBase {
		return fmt.Errorf("invalid dispatch backoff %s..%s", c.Dispatch.BackoffBase, c.Dispatch.BackoffCap)
	}
	if strings.TrimSpace(c.Sandbox.Root) == "" {
		return errors.New("sandbox.root must not be empty")
	}
	if strings.TrimSpace(c.State.File) == "" {
		return errors.New("state.file must not be empty")
	}
	if c.Backend == BackendAnthropic && (c.Anthropic.MaxTokens <= 0 || c.Anthropic.TokenBudget <= 0) {
		return errors.New("anthropic.max_tokens and anthropic.token_budget must be positive")
	}
	return nil
}

// CheckCredentials reports ErrMissingCredential when the API key for the
// selected backend is empty.
func (c *Config) CheckCredentials() error {
	switch c.Backend {
	case BackendOpenAI:
		if strings.TrimSpace(c.OpenAI.APIKey) == "" {
			return fmt.Errorf("%w: set OPENAI_API_KEY", ErrMissingCredential)
		}
	case BackendAnthropic:
		if strings.TrimSpace(c.Anthropic.APIKey) == "" {
			return fmt.Errorf("%w: set ANTHROPIC_API_KEY", ErrMissingCredential)
		}
	}
	return nil
}
