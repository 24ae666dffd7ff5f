// Package config loads and validates the application configuration: YAML file
// plus environment overrides for secrets.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the umbrella configuration object returned by Load and used
// throughout the application.
type Config struct {
	Server    *ServerConfig    `yaml:"server"`
	Engine    *EngineConfig    `yaml:"engine"`
	Resonance *ResonanceConfig `yaml:"resonance"`
	LLM       *LLMConfig       `yaml:"llm"`
	Database  *DatabaseConfig  `yaml:"database"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Engine:    DefaultEngineConfig(),
		Resonance: DefaultResonanceConfig(),
		LLM:       DefaultLLMConfig(),
		Database:  DefaultDatabaseConfig(),
	}
}

// Load reads the configuration file at path, applies environment overrides,
// and validates the result. An empty path or a missing file yields the
// defaults (environment overrides still apply).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to defaults
		case err != nil:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv pulls secrets and deploy-specific settings from the environment.
// Values in the environment win over the file.
func (c *Config) applyEnv() {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		c.Database.URL = url
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		fmt.Sscanf(port, "%d", &c.Server.Port)
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine config: %w", err)
	}
	if err := c.Resonance.Validate(); err != nil {
		return fmt.Errorf("resonance config: %w", err)
	}
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm config: %w", err)
	}
	return nil
}
