package config

import "fmt"

// ResonanceConfig controls agent selection.
type ResonanceConfig struct {
	// KStar is the maximum number of agents selected per session.
	KStar int `yaml:"k_star"`

	// MinScore is the minimum cosine similarity for selection.
	MinScore float64 `yaml:"min_score"`

	// EmbeddingModel names the embedding model used by the encoder. Empty
	// selects the provider default.
	EmbeddingModel string `yaml:"embedding_model,omitempty"`
}

// DefaultResonanceConfig returns the built-in resonance defaults.
func DefaultResonanceConfig() *ResonanceConfig {
	return &ResonanceConfig{
		KStar:    5,
		MinScore: 0.3,
	}
}

// Validate checks resonance bounds.
func (c *ResonanceConfig) Validate() error {
	if c.KStar < 1 {
		return fmt.Errorf("k_star must be at least 1, got %d", c.KStar)
	}
	if c.MinScore < 0 || c.MinScore > 1 {
		return fmt.Errorf("min_score must be within [0, 1], got %v", c.MinScore)
	}
	return nil
}
