// Package events provides the in-order, per-session event fabric: an
// in-memory bus assigning strictly increasing per-session sequence numbers,
// typed payloads for the negotiation event kinds, and WebSocket fan-out
// with seq-based catchup.
package events

// Event kinds (the wire contract to listeners). Payload fields are additive;
// consumers must tolerate unknown fields.
const (
	EventTypeFormulationReady      = "formulation.ready"
	EventTypeFormulationConfirmed  = "formulation.confirmed"
	EventTypeResonanceActivated    = "resonance.activated"
	EventTypeOfferReceived         = "offer.received"
	EventTypeBarrierComplete       = "barrier.complete"
	EventTypeCenterToolCall        = "center.tool_call"
	EventTypeSubNegotiationStarted = "sub_negotiation.started"
	EventTypePlanReady             = "plan.ready"
	EventTypeSessionCancelled      = "session.cancelled"
	EventTypeSessionFailed         = "session.failed"
)

// GlobalSessionsChannel carries transient copies of terminal events for
// listeners that watch all sessions. No sequence numbers, no catchup.
const GlobalSessionsChannel = "sessions"

// SessionChannel returns the channel name for a specific session's events.
// Format: "session:{session_id}"
func SessionChannel(sessionID string) string {
	return "session:" + sessionID
}

// ClientMessage is the JSON structure for client → server WebSocket messages.
type ClientMessage struct {
	Action  string `json:"action"`            // "subscribe", "unsubscribe", "catchup", "ping"
	Channel string `json:"channel,omitempty"` // Channel name (e.g., "session:abc-123")
	LastSeq *int   `json:"last_seq,omitempty"` // For catchup
}
