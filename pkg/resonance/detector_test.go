package resonance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-ai/parley/pkg/models"
)

func candidate(id string, vector ...float32) Candidate {
	return Candidate{
		Profile: &models.AgentProfile{ID: id, DisplayName: id, Active: true},
		Vector:  vector,
	}
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)

	// degenerate inputs
	assert.Zero(t, CosineSimilarity(nil, nil))
	assert.Zero(t, CosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{1, 2}))
}

func TestDetectOrdersByScoreThenID(t *testing.T) {
	d := NewDetector(5, 0.0)
	demand := []float32{1, 0}

	sel := d.Detect(demand, []Candidate{
		candidate("zeta", 1, 0),
		candidate("alpha", 1, 0),
		candidate("mid", 1, 1),
	})

	require.Len(t, sel.Agents, 3)
	assert.Equal(t, "alpha", sel.Agents[0].AgentID, "tie broken by agent ID")
	assert.Equal(t, "zeta", sel.Agents[1].AgentID)
	assert.Equal(t, "mid", sel.Agents[2].AgentID)
	assert.Empty(t, sel.Filtered)
}

func TestDetectAppliesThresholdAndKCut(t *testing.T) {
	d := NewDetector(2, 0.5)
	demand := []float32{1, 0}

	sel := d.Detect(demand, []Candidate{
		candidate("strong-a", 1, 0),
		candidate("strong-b", 2, 0.1),
		candidate("medium", 1, 1),
		candidate("weak", 0, 1),
	})

	require.Len(t, sel.Agents, 2)
	assert.Equal(t, "strong-a", sel.Agents[0].AgentID)
	assert.Equal(t, "strong-b", sel.Agents[1].AgentID)

	// medium passed the threshold but lost the k cut; weak failed the threshold
	require.Len(t, sel.Filtered, 2)
	assert.Equal(t, "medium", sel.Filtered[0].AgentID)
	assert.Equal(t, "weak", sel.Filtered[1].AgentID)
}

func TestDetectEmptyPopulation(t *testing.T) {
	d := NewDetector(0, -1)
	assert.Equal(t, DefaultKStar, d.KStar)
	assert.Equal(t, DefaultMinScore, d.MinScore)

	sel := d.Detect([]float32{1, 0}, nil)
	assert.Empty(t, sel.Agents)
	assert.Empty(t, sel.Filtered)
}
