package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanDocValidate(t *testing.T) {
	tests := []struct {
		name    string
		doc     PlanDoc
		wantErr string
	}{
		{
			name: "valid chain",
			doc: PlanDoc{
				Summary: "three step plan",
				Tasks: []PlanTask{
					{ID: "t1", Title: "book venue"},
					{ID: "t2", Title: "invite speakers", Prerequisites: []string{"t1"}},
					{ID: "t3", Title: "announce", Prerequisites: []string{"t1", "t2"}},
				},
			},
		},
		{
			name: "valid with topology edges",
			doc: PlanDoc{
				Tasks: []PlanTask{
					{ID: "a", Title: "a"},
					{ID: "b", Title: "b"},
				},
				Topology: &PlanTopology{Edges: []PlanEdge{{From: "a", To: "b"}}},
			},
		},
		{
			name:    "empty task id",
			doc:     PlanDoc{Tasks: []PlanTask{{Title: "nameless"}}},
			wantErr: "empty id",
		},
		{
			name: "duplicate task id",
			doc: PlanDoc{Tasks: []PlanTask{
				{ID: "t1", Title: "one"},
				{ID: "t1", Title: "two"},
			}},
			wantErr: "duplicate task id",
		},
		{
			name: "dangling prerequisite",
			doc: PlanDoc{Tasks: []PlanTask{
				{ID: "t1", Title: "one", Prerequisites: []string{"ghost"}},
			}},
			wantErr: "unknown prerequisite",
		},
		{
			name: "dangling topology edge",
			doc: PlanDoc{
				Tasks:    []PlanTask{{ID: "t1", Title: "one"}},
				Topology: &PlanTopology{Edges: []PlanEdge{{From: "t1", To: "ghost"}}},
			},
			wantErr: "unknown task",
		},
		{
			name: "two-node cycle",
			doc: PlanDoc{Tasks: []PlanTask{
				{ID: "t1", Title: "one", Prerequisites: []string{"t2"}},
				{ID: "t2", Title: "two", Prerequisites: []string{"t1"}},
			}},
			wantErr: "cycle",
		},
		{
			name: "self cycle via topology",
			doc: PlanDoc{
				Tasks:    []PlanTask{{ID: "t1", Title: "one"}},
				Topology: &PlanTopology{Edges: []PlanEdge{{From: "t1", To: "t1"}}},
			},
			wantErr: "cycle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.doc.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestSessionClone(t *testing.T) {
	s := &Session{
		ID:    "s1",
		State: StateOffering,
		Selection: &AgentSelection{
			Agents: []ScoredAgent{{AgentID: "a", Score: 0.9}},
		},
		Offers: map[string]*Offer{
			"a": {AgentID: "a", Content: "offer", Capabilities: []string{"x"}},
		},
		Rounds: []CenterRound{{Number: 1, ToolCalls: []ToolCallRecord{{Name: "output_gap"}}}},
		Plan:   &Plan{Text: "plan", ParticipatingAgents: []string{"a"}},
	}

	c := s.Clone()
	c.Selection.Agents[0].AgentID = "mutated"
	c.Offers["a"].Content = "mutated"
	c.Offers["b"] = &Offer{AgentID: "b"}
	c.Rounds[0].ToolCalls[0].Name = "mutated"
	c.Plan.ParticipatingAgents[0] = "mutated"

	assert.Equal(t, "a", s.Selection.Agents[0].AgentID)
	assert.Equal(t, "offer", s.Offers["a"].Content)
	assert.Len(t, s.Offers, 1)
	assert.Equal(t, "output_gap", s.Rounds[0].ToolCalls[0].Name)
	assert.Equal(t, "a", s.Plan.ParticipatingAgents[0])
}
