package profile

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/parley-ai/parley/pkg/models"
)

// MemoryStore is an in-memory Store used by tests and by deployments that run
// without Postgres.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*models.AgentProfile
}

// NewMemoryStore creates an empty in-memory profile store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]*models.AgentProfile)}
}

// GetProfile returns the profile for the given agent ID, or ErrNotFound.
func (s *MemoryStore) GetProfile(_ context.Context, agentID string) (*models.AgentProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[agentID]
	if !ok {
		return nil, fmt.Errorf("agent %q: %w", agentID, ErrNotFound)
	}
	return p.Clone(), nil
}

// ListActiveAgents returns all active profiles, ordered by agent ID.
func (s *MemoryStore) ListActiveAgents(_ context.Context) ([]*models.AgentProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.AgentProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		if p.Active {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpsertProfile creates or replaces a profile.
func (s *MemoryStore) UpsertProfile(_ context.Context, p *models.AgentProfile) error {
	if p.ID == "" {
		return fmt.Errorf("agent profile requires an ID")
	}
	stored := p.Clone()
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[stored.ID] = stored
	return nil
}

// DeactivateAgent marks an agent inactive.
func (s *MemoryStore) DeactivateAgent(_ context.Context, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[agentID]
	if !ok {
		return fmt.Errorf("agent %q: %w", agentID, ErrNotFound)
	}
	p.Active = false
	p.UpdatedAt = time.Now().UTC()
	return nil
}
