package models

import (
	"encoding/json"
	"time"
)

// SessionState is the lifecycle state of a negotiation session.
type SessionState string

const (
	StateCreated              SessionState = "created"
	StateFormulating          SessionState = "formulating"
	StateAwaitingConfirmation SessionState = "awaiting_confirmation"
	StateEncoding             SessionState = "encoding"
	StateOffering             SessionState = "offering"
	StateBarrierWaiting       SessionState = "barrier_waiting"
	StateSynthesizing         SessionState = "synthesizing"
	StateCompleted            SessionState = "completed"
	StateFailed               SessionState = "failed"
	StateCancelled            SessionState = "cancelled"
)

// IsTerminal reports whether the state allows no further transitions.
func (s SessionState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Machine-readable reason codes carried by session.failed / session.cancelled.
const (
	ReasonNoAgents            = "no_agents"
	ReasonAllOffersFailed     = "all_offers_failed"
	ReasonFormulationFailed   = "formulation_failed"
	ReasonCenterFailed        = "center_failed"
	ReasonUserCancelled       = "user_cancelled"
	ReasonConfirmationTimeout = "confirmation_timeout"
	ReasonInternalError       = "internal_error"
)

// DemandSnapshot is the demand being negotiated. RawIntent is immutable;
// FormulatedText is mutable only until confirmation, then frozen.
type DemandSnapshot struct {
	RawIntent      string `json:"raw_intent"`
	FormulatedText string `json:"formulated_text"`
	Confirmed      bool   `json:"confirmed"`
}

// ScoredAgent is one (agent, resonance score) pair.
type ScoredAgent struct {
	AgentID string  `json:"agent_id"`
	Score   float64 `json:"resonance_score"`
}

// AgentSelection is the frozen output of resonance. Agents is ordered by
// score descending (agent id ascending on ties). Filtered records agents
// that scored below the threshold, for observability only.
type AgentSelection struct {
	Agents   []ScoredAgent `json:"agents"`
	Filtered []ScoredAgent `json:"filtered_agents,omitempty"`
}

// AgentIDs returns the selected agent ids in selection order.
func (s *AgentSelection) AgentIDs() []string {
	ids := make([]string, len(s.Agents))
	for i, a := range s.Agents {
		ids[i] = a.AgentID
	}
	return ids
}

// Offer is one agent's proposal, or a record of its failure to produce one.
type Offer struct {
	AgentID      string    `json:"agent_id"`
	Content      string    `json:"content"`
	Capabilities []string  `json:"capabilities"`
	Error        string    `json:"error,omitempty"`
	ReceivedAt   time.Time `json:"received_at"`
}

// Failed reports whether the agent failed to produce an offer.
func (o *Offer) Failed() bool { return o.Error != "" }

// ToolCallRecord is one dispatched Center tool call and its result.
type ToolCallRecord struct {
	CallID    string          `json:"call_id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
	Result    string          `json:"result"`
	IsError   bool            `json:"is_error,omitempty"`
}

// CenterRound is one iteration of the Center loop.
type CenterRound struct {
	Number    int              `json:"number"`
	Reasoning string           `json:"reasoning,omitempty"`
	Forced    bool             `json:"forced,omitempty"`
	ToolCalls []ToolCallRecord `json:"tool_calls"`
}

// Session is one negotiation run. It is exclusively owned by the engine
// goroutine driving it; concurrent readers get a Clone.
type Session struct {
	ID     string         `json:"id"`
	State  SessionState   `json:"state"`
	Demand DemandSnapshot `json:"demand"`

	// Selection is nil until the encoding phase completes.
	Selection *AgentSelection `json:"selection,omitempty"`

	// Offers is monotonic: entries are only ever added, one per selected agent.
	Offers map[string]*Offer `json:"offers,omitempty"`

	Rounds []CenterRound `json:"center_rounds,omitempty"`
	Plan   *Plan         `json:"plan,omitempty"`

	// Gaps are the unfilled requirements declared via output_gap.
	Gaps []string `json:"gaps,omitempty"`

	Depth           int    `json:"depth"`
	ParentSessionID string `json:"parent_session_id,omitempty"`

	// FailureReason is the machine-readable reason code for failed or
	// cancelled sessions.
	FailureReason string `json:"failure_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	// LastSeq is the sequence number of the most recently published event.
	LastSeq int `json:"last_seq"`
}

// Clone returns a deep copy for lock-free reads outside the owning goroutine.
func (s *Session) Clone() *Session {
	c := *s
	if s.Selection != nil {
		sel := AgentSelection{
			Agents:   append([]ScoredAgent(nil), s.Selection.Agents...),
			Filtered: append([]ScoredAgent(nil), s.Selection.Filtered...),
		}
		c.Selection = &sel
	}
	if s.Offers != nil {
		c.Offers = make(map[string]*Offer, len(s.Offers))
		for id, o := range s.Offers {
			oc := *o
			oc.Capabilities = append([]string(nil), o.Capabilities...)
			c.Offers[id] = &oc
		}
	}
	if s.Rounds != nil {
		c.Rounds = make([]CenterRound, len(s.Rounds))
		for i, r := range s.Rounds {
			rc := r
			rc.ToolCalls = append([]ToolCallRecord(nil), r.ToolCalls...)
			c.Rounds[i] = rc
		}
	}
	if s.Plan != nil {
		c.Plan = s.Plan.Clone()
	}
	c.Gaps = append([]string(nil), s.Gaps...)
	return &c
}
