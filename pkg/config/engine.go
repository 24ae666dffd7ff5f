package config

import (
	"fmt"
	"time"
)

// EngineConfig controls the negotiation engine.
type EngineConfig struct {
	// MaxCenterRounds is the number of normal center rounds before a forced
	// terminal round.
	MaxCenterRounds int `yaml:"max_center_rounds"`

	// MaxRecursionDepth bounds sub-negotiation nesting. Depth 0 sessions may
	// spawn children up to this depth.
	MaxRecursionDepth int `yaml:"max_recursion_depth"`

	// OfferTimeout bounds each agent's offer production. Zero disables it.
	OfferTimeout time.Duration `yaml:"offer_timeout"`

	// ConfirmationTimeout bounds the confirmation gate. Zero means wait
	// indefinitely; on expiry the session is cancelled.
	ConfirmationTimeout time.Duration `yaml:"confirmation_timeout"`
}

// DefaultEngineConfig returns the built-in engine defaults.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		MaxCenterRounds:     2,
		MaxRecursionDepth:   1,
		OfferTimeout:        2 * time.Minute,
		ConfirmationTimeout: 0,
	}
}

// Validate checks engine bounds.
func (c *EngineConfig) Validate() error {
	if c.MaxCenterRounds < 1 {
		return fmt.Errorf("max_center_rounds must be at least 1, got %d", c.MaxCenterRounds)
	}
	if c.MaxRecursionDepth < 0 {
		return fmt.Errorf("max_recursion_depth must not be negative, got %d", c.MaxRecursionDepth)
	}
	if c.OfferTimeout < 0 {
		return fmt.Errorf("offer_timeout must not be negative")
	}
	if c.ConfirmationTimeout < 0 {
		return fmt.Errorf("confirmation_timeout must not be negative")
	}
	return nil
}
