package llm

import (
	"fmt"

	"github.com/rlm-runtime/rlm/internal/config"
)

// NewClient builds a Client for cfg.LLM.Provider, wrapped with retry,
// grounded on the teacher's factory.go NewProvider/NewProviderByName
// dispatch-by-provider-type pattern.
func NewClient(cfg *config.Config) (Client, error) {
	return NewClientByName(cfg, cfg.LLM.Provider, cfg.LLM.Model)
}

// NewClientByName builds a Client for an explicit provider name, allowing
// the CLI's --provider/--model flags to override the config default.
func NewClientByName(cfg *config.Config, name, model string) (Client, error) {
	providerCfg := cfg.Providers[name]
	if model == "" {
		model = providerCfg.Model
	}
	if model == "" && name == cfg.LLM.Provider {
		model = cfg.LLM.Model
	}

	var client Client
	switch name {
	case "anthropic":
		if model == "" {
			model = "claude-sonnet-4-5"
		}
		client = NewAnthropicClient(providerCfg.APIKey, model)
	case "openai":
		if model == "" {
			model = "gpt-5.2"
		}
		client = NewOpenAIClient(providerCfg.APIKey, model)
	case "gemini":
		if model == "" {
			model = "gemini-3-pro-preview"
		}
		client = NewGeminiClient(providerCfg.APIKey, model)
	default:
		return nil, fmt.Errorf("unknown provider: %s", name)
	}

	return WrapWithRetry(client, DefaultRetryConfig()), nil
}
