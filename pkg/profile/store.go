// Package profile stores agent profiles: the durable description of each
// agent's identity and capabilities that resonance matches demands against.
package profile

import (
	"context"
	"errors"

	"github.com/parley-ai/parley/pkg/models"
)

// ErrNotFound is returned when a requested agent profile does not exist.
var ErrNotFound = errors.New("agent profile not found")

// Store is the agent profile persistence interface. Implementations must be
// safe for concurrent use.
type Store interface {
	// GetProfile returns the profile for the given agent ID, or ErrNotFound.
	GetProfile(ctx context.Context, agentID string) (*models.AgentProfile, error)

	// ListActiveAgents returns all active profiles, ordered by agent ID.
	ListActiveAgents(ctx context.Context) ([]*models.AgentProfile, error)

	// UpsertProfile creates or replaces a profile.
	UpsertProfile(ctx context.Context, p *models.AgentProfile) error

	// DeactivateAgent marks an agent inactive so resonance stops considering
	// it. Returns ErrNotFound if the agent does not exist.
	DeactivateAgent(ctx context.Context, agentID string) error
}
