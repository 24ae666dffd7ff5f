package resonance

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/parley-ai/parley/pkg/models"
)

const profileCollection = "agent_profiles"

// Index caches agent profile embeddings. Profiles are re-encoded only when
// their text changes (cache key is a hash of the profile text); the vectors
// live in an embedded chromem collection so the same index also serves
// free-text agent search.
type Index struct {
	encoder Encoder

	mu      sync.RWMutex
	col     *chromem.Collection
	entries map[string]*indexEntry
}

type indexEntry struct {
	hash    string
	vector  []float32
	profile *models.AgentProfile
}

// Candidate is one indexed agent: its profile and its embedding vector.
type Candidate struct {
	Profile *models.AgentProfile
	Vector  []float32
}

// NewIndex creates an empty index backed by an in-memory vector collection.
func NewIndex(encoder Encoder) (*Index, error) {
	db := chromem.NewDB()
	col, err := db.GetOrCreateCollection(profileCollection, nil, chromem.EmbeddingFunc(encoder.Encode))
	if err != nil {
		return nil, fmt.Errorf("failed to create vector collection: %w", err)
	}
	return &Index{
		encoder: encoder,
		col:     col,
		entries: make(map[string]*indexEntry),
	}, nil
}

// Sync brings the index in line with the given profile set: new or changed
// profile texts are re-encoded, unchanged ones keep their cached vector, and
// agents absent from the set are removed.
func (idx *Index) Sync(ctx context.Context, profiles []*models.AgentProfile) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	seen := make(map[string]bool, len(profiles))
	for _, p := range profiles {
		seen[p.ID] = true
		hash := profileHash(p.ProfileText)

		if entry, ok := idx.entries[p.ID]; ok && entry.hash == hash {
			// Text unchanged; refresh the rest of the profile without
			// re-encoding.
			entry.profile = p.Clone()
			continue
		}

		vector, err := idx.encoder.Encode(ctx, p.ProfileText)
		if err != nil {
			return fmt.Errorf("failed to encode profile for agent %q: %w", p.ID, err)
		}
		doc := chromem.Document{
			ID:        p.ID,
			Content:   p.ProfileText,
			Metadata:  map[string]string{"display_name": p.DisplayName},
			Embedding: vector,
		}
		if err := idx.col.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
			return fmt.Errorf("failed to index agent %q: %w", p.ID, err)
		}
		idx.entries[p.ID] = &indexEntry{hash: hash, vector: vector, profile: p.Clone()}
	}

	for id := range idx.entries {
		if !seen[id] {
			if err := idx.col.Delete(ctx, nil, nil, id); err != nil {
				return fmt.Errorf("failed to remove agent %q from index: %w", id, err)
			}
			delete(idx.entries, id)
		}
	}
	return nil
}

// Candidates returns all indexed agents ordered by agent ID.
func (idx *Index) Candidates() []Candidate {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]Candidate, 0, len(idx.entries))
	for _, entry := range idx.entries {
		out = append(out, Candidate{Profile: entry.profile.Clone(), Vector: entry.vector})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Profile.ID < out[j].Profile.ID })
	return out
}

// Profile returns the indexed profile for an agent, or nil.
func (idx *Index) Profile(agentID string) *models.AgentProfile {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	entry, ok := idx.entries[agentID]
	if !ok {
		return nil
	}
	return entry.profile.Clone()
}

// Search runs a free-text similarity query over the indexed profiles and
// returns up to limit scored agents.
func (idx *Index) Search(ctx context.Context, query string, limit int) ([]models.ScoredAgent, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.entries) == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > len(idx.entries) {
		limit = len(idx.entries)
	}

	results, err := idx.col.Query(ctx, query, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}

	out := make([]models.ScoredAgent, 0, len(results))
	for _, r := range results {
		out = append(out, models.ScoredAgent{AgentID: r.ID, Score: float64(r.Similarity)})
	}
	return out, nil
}

func profileHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
