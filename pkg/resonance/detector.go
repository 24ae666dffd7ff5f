package resonance

import (
	"math"
	"sort"

	"github.com/parley-ai/parley/pkg/models"
)

// Detection defaults. Both are configurable per submission.
const (
	DefaultKStar    = 5
	DefaultMinScore = 0.3
)

// Detector ranks indexed agents against a demand vector: cosine similarity,
// top k* above a minimum score.
type Detector struct {
	KStar    int
	MinScore float64
}

// NewDetector creates a detector. Non-positive kStar and negative minScore
// fall back to the defaults.
func NewDetector(kStar int, minScore float64) *Detector {
	if kStar <= 0 {
		kStar = DefaultKStar
	}
	if minScore < 0 {
		minScore = DefaultMinScore
	}
	return &Detector{KStar: kStar, MinScore: minScore}
}

// Detect scores every candidate against the demand vector and returns the
// frozen selection: up to KStar agents at or above MinScore, ordered by score
// descending with agent ID as the tie-break. Agents excluded by the threshold
// or the k cut are reported in Filtered.
func (d *Detector) Detect(demandVector []float32, candidates []Candidate) models.AgentSelection {
	scored := make([]models.ScoredAgent, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, models.ScoredAgent{
			AgentID: c.Profile.ID,
			Score:   CosineSimilarity(demandVector, c.Vector),
		})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].AgentID < scored[j].AgentID
	})

	var selection models.AgentSelection
	for _, s := range scored {
		if s.Score >= d.MinScore && len(selection.Agents) < d.KStar {
			selection.Agents = append(selection.Agents, s)
		} else {
			selection.Filtered = append(selection.Filtered, s)
		}
	}
	return selection
}

// CosineSimilarity returns the cosine of the angle between two vectors, or 0
// when either vector is empty, zero, or the dimensions differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
