// Package config loads the RLM runtime's JSON config file via viper,
// matching the shape documented in spec.md §6, in the teacher's
// viper+mapstructure style (internal/config/config.go).
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// LLMConfig selects the default provider/model for a run.
type LLMConfig struct {
	Provider string         `mapstructure:"provider" json:"provider"`
	Model    string         `mapstructure:"model" json:"model,omitempty"`
	Options  map[string]any `mapstructure:"options" json:"options,omitempty"`
}

// ProviderConfig describes one named provider entry.
type ProviderConfig struct {
	BaseURL string         `mapstructure:"baseUrl" json:"baseUrl,omitempty"`
	APIKey  string         `mapstructure:"apiKey" json:"apiKey,omitempty"`
	Model   string         `mapstructure:"model" json:"model,omitempty"`
	Adapter string         `mapstructure:"adapter" json:"adapter,omitempty"`
	Options map[string]any `mapstructure:"options" json:"options,omitempty"`
}

// SandboxConfig controls the JS sandbox's resource limits (spec.md §4.6).
type SandboxConfig struct {
	MaxSubCalls   int `mapstructure:"maxSubCalls" json:"maxSubCalls"`
	TurnTimeoutMs int `mapstructure:"turnTimeoutMs" json:"turnTimeoutMs"`
	MemoryLimitMb int `mapstructure:"memoryLimitMb" json:"memoryLimitMb"`
}

// RLMConfig controls the turn loop.
type RLMConfig struct {
	MaxTurns int `mapstructure:"maxTurns" json:"maxTurns"`
}

// Config is the top-level config file shape from spec.md §6.
type Config struct {
	LLM       LLMConfig                 `mapstructure:"llm" json:"llm"`
	Providers map[string]ProviderConfig `mapstructure:"providers" json:"providers,omitempty"`
	Sandbox   SandboxConfig             `mapstructure:"sandbox" json:"sandbox"`
	RLM       RLMConfig                 `mapstructure:"rlm" json:"rlm"`
}

// Defaults documented in spec.md §6 and §4.6.
const (
	DefaultMaxTurns      = 10
	DefaultTurnTimeoutMs = 30000
	DefaultMaxSubCalls   = 10
	DefaultMemoryLimitMb = 128
)

// Default returns a Config populated with the documented defaults.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{Provider: "anthropic"},
		Sandbox: SandboxConfig{
			MaxSubCalls:   DefaultMaxSubCalls,
			TurnTimeoutMs: DefaultTurnTimeoutMs,
			MemoryLimitMb: DefaultMemoryLimitMb,
		},
		RLM:       RLMConfig{MaxTurns: DefaultMaxTurns},
		Providers: map[string]ProviderConfig{},
	}
}

// Load reads the config file at path (JSON). A missing file is not an
// error — the documented defaults are returned, matching spec.md §6:
// "Missing file falls back to documented defaults." Unknown keys are
// ignored by viper's Unmarshal.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("json")

	applyDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if os.IsNotExist(err) {
				return Default(), nil
			}
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				return Default(), nil
			}
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Providers == nil {
		cfg.Providers = map[string]ProviderConfig{}
	}
	return cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("sandbox.maxSubCalls", DefaultMaxSubCalls)
	v.SetDefault("sandbox.turnTimeoutMs", DefaultTurnTimeoutMs)
	v.SetDefault("sandbox.memoryLimitMb", DefaultMemoryLimitMb)
	v.SetDefault("rlm.maxTurns", DefaultMaxTurns)
}

// ResolveDefaultConfigPath returns the conventional config path under the
// user's config directory, matching the teacher's GetConfigDir pattern.
func ResolveDefaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "rlm", "config.json"), nil
}
