package config

import (
	"fmt"
	"os"
)

// Supported LLM provider types.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// LLMProviderConfig defines one LLM provider.
type LLMProviderConfig struct {
	// Type is the provider type: "openai" or "anthropic".
	Type string `yaml:"type"`

	// Model is the default model for this provider.
	Model string `yaml:"model"`

	// APIKeyEnv names the environment variable holding the API key. Keys
	// never appear in the config file itself.
	APIKeyEnv string `yaml:"api_key_env"`
}

// APIKey resolves the provider's API key from the environment.
func (p *LLMProviderConfig) APIKey() string {
	return os.Getenv(p.APIKeyEnv)
}

// LLMConfig defines the configured LLM providers.
type LLMConfig struct {
	// DefaultProvider is the provider skills use unless overridden.
	DefaultProvider string `yaml:"default_provider"`

	// Providers maps provider names to their configuration.
	Providers map[string]*LLMProviderConfig `yaml:"providers"`
}

// DefaultLLMConfig returns the built-in LLM defaults: an OpenAI provider
// keyed from OPENAI_API_KEY.
func DefaultLLMConfig() *LLMConfig {
	return &LLMConfig{
		DefaultProvider: "openai",
		Providers: map[string]*LLMProviderConfig{
			"openai": {
				Type:      ProviderOpenAI,
				Model:     "gpt-4o",
				APIKeyEnv: "OPENAI_API_KEY",
			},
			"anthropic": {
				Type:      ProviderAnthropic,
				Model:     "claude-sonnet-4-20250514",
				APIKeyEnv: "ANTHROPIC_API_KEY",
			},
		},
	}
}

// Validate checks provider definitions.
func (c *LLMConfig) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one LLM provider is required")
	}
	if _, ok := c.Providers[c.DefaultProvider]; !ok {
		return fmt.Errorf("default_provider %q is not a configured provider", c.DefaultProvider)
	}
	for name, p := range c.Providers {
		switch p.Type {
		case ProviderOpenAI, ProviderAnthropic:
		default:
			return fmt.Errorf("provider %q has unsupported type %q", name, p.Type)
		}
		if p.Model == "" {
			return fmt.Errorf("provider %q requires a model", name)
		}
	}
	return nil
}
