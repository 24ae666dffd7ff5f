package resonance

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-ai/parley/pkg/models"
)

// tokenEncoder is a deterministic fake: each token hashes into a fixed-size
// bag-of-words vector, so related texts score higher than unrelated ones.
type tokenEncoder struct {
	mu    sync.Mutex
	calls int
}

func (e *tokenEncoder) Encode(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	vec := make([]float32, 64)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[h.Sum32()%uint32(len(vec))]++
	}
	return vec, nil
}

func (e *tokenEncoder) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func testProfile(id, text string) *models.AgentProfile {
	return &models.AgentProfile{ID: id, DisplayName: id, ProfileText: text, Active: true}
}

func TestIndexSyncCachesUnchangedProfiles(t *testing.T) {
	ctx := context.Background()
	enc := &tokenEncoder{}
	idx, err := NewIndex(enc)
	require.NoError(t, err)

	profiles := []*models.AgentProfile{
		testProfile("venues", "books venues for events"),
		testProfile("catering", "arranges food and catering"),
	}
	require.NoError(t, idx.Sync(ctx, profiles))
	assert.Equal(t, 2, enc.callCount())

	// unchanged text: no re-encode, but non-text fields refresh
	profiles[0].DisplayName = "Venue Booker"
	require.NoError(t, idx.Sync(ctx, profiles))
	assert.Equal(t, 2, enc.callCount())
	assert.Equal(t, "Venue Booker", idx.Profile("venues").DisplayName)

	// changed text: re-encode that profile only
	profiles[1].ProfileText = "arranges food, drinks and catering"
	require.NoError(t, idx.Sync(ctx, profiles))
	assert.Equal(t, 3, enc.callCount())
}

func TestIndexSyncRemovesStaleAgents(t *testing.T) {
	ctx := context.Background()
	idx, err := NewIndex(&tokenEncoder{})
	require.NoError(t, err)

	require.NoError(t, idx.Sync(ctx, []*models.AgentProfile{
		testProfile("a", "alpha"),
		testProfile("b", "bravo"),
	}))
	require.Len(t, idx.Candidates(), 2)

	require.NoError(t, idx.Sync(ctx, []*models.AgentProfile{
		testProfile("b", "bravo"),
	}))
	cands := idx.Candidates()
	require.Len(t, cands, 1)
	assert.Equal(t, "b", cands[0].Profile.ID)
	assert.Nil(t, idx.Profile("a"))
}

func TestIndexCandidatesOrderedAndDetectable(t *testing.T) {
	ctx := context.Background()
	enc := &tokenEncoder{}
	idx, err := NewIndex(enc)
	require.NoError(t, err)

	require.NoError(t, idx.Sync(ctx, []*models.AgentProfile{
		testProfile("venue-agent", "finds venues and books event spaces"),
		testProfile("tax-agent", "files corporate tax returns"),
	}))

	cands := idx.Candidates()
	require.Len(t, cands, 2)
	assert.Equal(t, "tax-agent", cands[0].Profile.ID, "ordered by agent ID")

	demand, err := enc.Encode(ctx, "organize an event and book a venue")
	require.NoError(t, err)

	sel := NewDetector(1, 0.0).Detect(demand, cands)
	require.Len(t, sel.Agents, 1)
	assert.Equal(t, "venue-agent", sel.Agents[0].AgentID)
}

func TestIndexSearch(t *testing.T) {
	ctx := context.Background()
	idx, err := NewIndex(&tokenEncoder{})
	require.NoError(t, err)

	// empty index returns no results rather than an error
	results, err := idx.Search(ctx, "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	require.NoError(t, idx.Sync(ctx, []*models.AgentProfile{
		testProfile("venue-agent", "finds venues and books event spaces"),
		testProfile("tax-agent", "files corporate tax returns"),
	}))

	results, err = idx.Search(ctx, "book a venue for an event", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "venue-agent", results[0].AgentID)
}
