package events

import (
	"encoding/json"

	"github.com/parley-ai/parley/pkg/models"
)

// FormulationReadyPayload is the payload for formulation.ready events.
// Published when the Formulation skill has turned the raw intent into a
// structured demand awaiting user confirmation.
type FormulationReadyPayload struct {
	Type            string   `json:"type"` // always EventTypeFormulationReady
	SessionID       string   `json:"session_id"`
	ParentSessionID string   `json:"parent_session_id,omitempty"`
	RawIntent       string   `json:"raw_intent"`
	FormulatedText  string   `json:"formulated_text"`
	Enrichments     []string `json:"enrichments,omitempty"`
	Timestamp       string   `json:"timestamp"` // RFC3339Nano
}

// FormulationConfirmedPayload is the payload for formulation.confirmed events.
// FormulatedText is the frozen text, including any user amendment.
type FormulationConfirmedPayload struct {
	Type            string `json:"type"` // always EventTypeFormulationConfirmed
	SessionID       string `json:"session_id"`
	ParentSessionID string `json:"parent_session_id,omitempty"`
	FormulatedText  string `json:"formulated_text"`
	Timestamp       string `json:"timestamp"`
}

// ResonanceActivatedPayload is the payload for resonance.activated events.
// Agents is the frozen selection in score order; FilteredAgents records
// candidates cut by the minimum score threshold.
type ResonanceActivatedPayload struct {
	Type            string               `json:"type"` // always EventTypeResonanceActivated
	SessionID       string               `json:"session_id"`
	ParentSessionID string               `json:"parent_session_id,omitempty"`
	Agents          []models.ScoredAgent `json:"agents"`
	FilteredAgents  []models.ScoredAgent `json:"filtered_agents,omitempty"`
	Timestamp       string               `json:"timestamp"`
}

// OfferReceivedPayload is the payload for offer.received events.
// Published only for successful offers; failures surface in barrier.complete.
type OfferReceivedPayload struct {
	Type            string   `json:"type"` // always EventTypeOfferReceived
	SessionID       string   `json:"session_id"`
	ParentSessionID string   `json:"parent_session_id,omitempty"`
	AgentID         string   `json:"agent_id"`
	Content         string   `json:"content"`
	Capabilities    []string `json:"capabilities"`
	Timestamp       string   `json:"timestamp"`
}

// BarrierCompletePayload is the payload for barrier.complete events.
// AgentCount is the selected count; SucceededCount how many produced offers.
type BarrierCompletePayload struct {
	Type            string `json:"type"` // always EventTypeBarrierComplete
	SessionID       string `json:"session_id"`
	ParentSessionID string `json:"parent_session_id,omitempty"`
	AgentCount      int    `json:"agent_count"`
	SucceededCount  int    `json:"succeeded_count"`
	Timestamp       string `json:"timestamp"`
}

// CenterToolCallPayload is the payload for center.tool_call events, one per
// dispatched tool call including protocol errors (unknown tools).
type CenterToolCallPayload struct {
	Type            string          `json:"type"` // always EventTypeCenterToolCall
	SessionID       string          `json:"session_id"`
	ParentSessionID string          `json:"parent_session_id,omitempty"`
	RoundNumber     int             `json:"round_number"`
	ToolName        string          `json:"tool_name"`
	ToolArgs        json.RawMessage `json:"tool_args,omitempty"`
	Result          string          `json:"result"`
	IsError         bool            `json:"is_error,omitempty"`
	Timestamp       string          `json:"timestamp"`
}

// SubNegotiationStartedPayload is the payload for sub_negotiation.started
// events, published under the parent session when a child session is spawned.
type SubNegotiationStartedPayload struct {
	Type            string   `json:"type"` // always EventTypeSubNegotiationStarted
	SessionID       string   `json:"session_id"`
	ParentSessionID string   `json:"parent_session_id,omitempty"`
	ChildSessionID  string   `json:"child_session_id"`
	Topic           string   `json:"topic"`
	ParticipantIDs  []string `json:"participant_ids"`
	Timestamp       string   `json:"timestamp"`
}

// PlanReadyPayload is the payload for plan.ready events. PlanJSON is the
// optional structured form; it is omitted when absent or invalid.
type PlanReadyPayload struct {
	Type                string          `json:"type"` // always EventTypePlanReady
	SessionID           string          `json:"session_id"`
	ParentSessionID     string          `json:"parent_session_id,omitempty"`
	PlanText            string          `json:"plan_text"`
	PlanJSON            *models.PlanDoc `json:"plan_json,omitempty"`
	Rejected            bool            `json:"rejected,omitempty"`
	CenterRounds        int             `json:"center_rounds"`
	ParticipatingAgents []string        `json:"participating_agents"`
	Timestamp           string          `json:"timestamp"`
}

// SessionTerminalPayload is the shared payload shape for session.cancelled
// and session.failed events. Reason is a machine-readable code from models.
type SessionTerminalPayload struct {
	Type            string `json:"type"` // EventTypeSessionCancelled or EventTypeSessionFailed
	SessionID       string `json:"session_id"`
	ParentSessionID string `json:"parent_session_id,omitempty"`
	Reason          string `json:"reason"`
	Timestamp       string `json:"timestamp"`
}
