package models

import "fmt"

// Task status values used in structured plans.
const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusDone       = "done"
)

// PlanParticipant is one agent's role in a structured plan.
type PlanParticipant struct {
	AgentID     string `json:"agent_id"`
	DisplayName string `json:"display_name,omitempty"`
	RoleInPlan  string `json:"role_in_plan,omitempty"`
}

// PlanTask is one unit of work in a structured plan. Prerequisites reference
// other task ids in the same plan and must form a DAG.
type PlanTask struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	AssigneeID    string   `json:"assignee_id,omitempty"`
	Prerequisites []string `json:"prerequisites,omitempty"`
	Status        string   `json:"status,omitempty"`
}

// PlanEdge is one dependency edge in the plan topology.
type PlanEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// PlanTopology is the explicit edge list of the task graph.
type PlanTopology struct {
	Edges []PlanEdge `json:"edges"`
}

// PlanDoc is the optional structured form of a plan (the plan_json wire shape).
type PlanDoc struct {
	Summary      string            `json:"summary"`
	Participants []PlanParticipant `json:"participants,omitempty"`
	Tasks        []PlanTask        `json:"tasks,omitempty"`
	Topology     *PlanTopology     `json:"topology,omitempty"`
}

// Validate checks the structural invariants of a plan document: every task id
// unique, every prerequisite and topology edge resolving to a task in the same
// plan, and the resulting dependency graph acyclic.
func (p *PlanDoc) Validate() error {
	ids := make(map[string]bool, len(p.Tasks))
	for _, t := range p.Tasks {
		if t.ID == "" {
			return fmt.Errorf("task %q has empty id", t.Title)
		}
		if ids[t.ID] {
			return fmt.Errorf("duplicate task id %q", t.ID)
		}
		ids[t.ID] = true
	}

	// adjacency: prerequisite → dependent
	adj := make(map[string][]string, len(p.Tasks))
	for _, t := range p.Tasks {
		for _, pre := range t.Prerequisites {
			if !ids[pre] {
				return fmt.Errorf("task %q references unknown prerequisite %q", t.ID, pre)
			}
			adj[pre] = append(adj[pre], t.ID)
		}
	}
	if p.Topology != nil {
		for _, e := range p.Topology.Edges {
			if !ids[e.From] {
				return fmt.Errorf("topology edge references unknown task %q", e.From)
			}
			if !ids[e.To] {
				return fmt.Errorf("topology edge references unknown task %q", e.To)
			}
			adj[e.From] = append(adj[e.From], e.To)
		}
	}

	// Kahn's algorithm over the combined edge set.
	indeg := make(map[string]int, len(p.Tasks))
	for id := range ids {
		indeg[id] = 0
	}
	for _, deps := range adj {
		for _, to := range deps {
			indeg[to]++
		}
	}
	queue := make([]string, 0, len(ids))
	for id, d := range indeg {
		if d == 0 {
			queue = append(queue, id)
		}
	}
	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, to := range adj[id] {
			indeg[to]--
			if indeg[to] == 0 {
				queue = append(queue, to)
			}
		}
	}
	if visited != len(ids) {
		return fmt.Errorf("task graph contains a cycle")
	}
	return nil
}

// Clone returns a deep copy of the plan document.
func (p *PlanDoc) Clone() *PlanDoc {
	c := *p
	c.Participants = append([]PlanParticipant(nil), p.Participants...)
	c.Tasks = make([]PlanTask, len(p.Tasks))
	for i, t := range p.Tasks {
		tc := t
		tc.Prerequisites = append([]string(nil), t.Prerequisites...)
		c.Tasks[i] = tc
	}
	if p.Topology != nil {
		top := PlanTopology{Edges: append([]PlanEdge(nil), p.Topology.Edges...)}
		c.Topology = &top
	}
	return &c
}

// Plan is the terminal artifact of a session. Text is always present; Doc is
// the optional structured form and is dropped when it violates its invariants.
// Rejected marks a negative outcome (the Center declared no viable plan).
type Plan struct {
	Text                string   `json:"text"`
	Doc                 *PlanDoc `json:"doc,omitempty"`
	Rejected            bool     `json:"rejected,omitempty"`
	CenterRounds        int      `json:"center_rounds"`
	ParticipatingAgents []string `json:"participating_agents"`
}

// Clone returns a deep copy of the plan.
func (p *Plan) Clone() *Plan {
	c := *p
	c.ParticipatingAgents = append([]string(nil), p.ParticipatingAgents...)
	if p.Doc != nil {
		c.Doc = p.Doc.Clone()
	}
	return &c
}
