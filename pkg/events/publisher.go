package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Publisher publishes typed negotiation events onto the bus. Each public
// method accepts a specific payload struct — see payloads.go. The method
// fills in the type tag and timestamp; the bus assigns the sequence number.
type Publisher struct {
	bus *Bus
}

// NewPublisher creates a publisher over the given bus.
func NewPublisher(bus *Bus) *Publisher {
	return &Publisher{bus: bus}
}

func nowRFC3339Nano() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// PublishFormulationReady publishes a formulation.ready event.
func (p *Publisher) PublishFormulationReady(sessionID string, payload FormulationReadyPayload) (int, error) {
	payload.Type = EventTypeFormulationReady
	payload.SessionID = sessionID
	payload.Timestamp = nowRFC3339Nano()
	return p.publish(sessionID, payload.Type, payload)
}

// PublishFormulationConfirmed publishes a formulation.confirmed event.
func (p *Publisher) PublishFormulationConfirmed(sessionID string, payload FormulationConfirmedPayload) (int, error) {
	payload.Type = EventTypeFormulationConfirmed
	payload.SessionID = sessionID
	payload.Timestamp = nowRFC3339Nano()
	return p.publish(sessionID, payload.Type, payload)
}

// PublishResonanceActivated publishes a resonance.activated event with the
// frozen agent selection.
func (p *Publisher) PublishResonanceActivated(sessionID string, payload ResonanceActivatedPayload) (int, error) {
	payload.Type = EventTypeResonanceActivated
	payload.SessionID = sessionID
	payload.Timestamp = nowRFC3339Nano()
	return p.publish(sessionID, payload.Type, payload)
}

// PublishOfferReceived publishes an offer.received event.
func (p *Publisher) PublishOfferReceived(sessionID string, payload OfferReceivedPayload) (int, error) {
	payload.Type = EventTypeOfferReceived
	payload.SessionID = sessionID
	payload.Timestamp = nowRFC3339Nano()
	return p.publish(sessionID, payload.Type, payload)
}

// PublishBarrierComplete publishes a barrier.complete event.
func (p *Publisher) PublishBarrierComplete(sessionID string, payload BarrierCompletePayload) (int, error) {
	payload.Type = EventTypeBarrierComplete
	payload.SessionID = sessionID
	payload.Timestamp = nowRFC3339Nano()
	return p.publish(sessionID, payload.Type, payload)
}

// PublishCenterToolCall publishes a center.tool_call event, one per
// dispatched tool call (protocol errors included).
func (p *Publisher) PublishCenterToolCall(sessionID string, payload CenterToolCallPayload) (int, error) {
	payload.Type = EventTypeCenterToolCall
	payload.SessionID = sessionID
	payload.Timestamp = nowRFC3339Nano()
	return p.publish(sessionID, payload.Type, payload)
}

// PublishSubNegotiationStarted publishes a sub_negotiation.started event
// under the parent session.
func (p *Publisher) PublishSubNegotiationStarted(sessionID string, payload SubNegotiationStartedPayload) (int, error) {
	payload.Type = EventTypeSubNegotiationStarted
	payload.SessionID = sessionID
	payload.Timestamp = nowRFC3339Nano()
	return p.publish(sessionID, payload.Type, payload)
}

// PublishPlanReady publishes a plan.ready event and mirrors a transient copy
// to the global sessions channel.
func (p *Publisher) PublishPlanReady(sessionID string, payload PlanReadyPayload) (int, error) {
	payload.Type = EventTypePlanReady
	payload.SessionID = sessionID
	payload.Timestamp = nowRFC3339Nano()
	return p.publishWithGlobal(sessionID, payload.Type, payload)
}

// PublishSessionCancelled publishes a session.cancelled event and mirrors a
// transient copy to the global sessions channel.
func (p *Publisher) PublishSessionCancelled(sessionID string, payload SessionTerminalPayload) (int, error) {
	payload.Type = EventTypeSessionCancelled
	payload.SessionID = sessionID
	payload.Timestamp = nowRFC3339Nano()
	return p.publishWithGlobal(sessionID, payload.Type, payload)
}

// PublishSessionFailed publishes a session.failed event and mirrors a
// transient copy to the global sessions channel.
func (p *Publisher) PublishSessionFailed(sessionID string, payload SessionTerminalPayload) (int, error) {
	payload.Type = EventTypeSessionFailed
	payload.SessionID = sessionID
	payload.Timestamp = nowRFC3339Nano()
	return p.publishWithGlobal(sessionID, payload.Type, payload)
}

func (p *Publisher) publish(sessionID, kind string, payload any) (int, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal %s payload: %w", kind, err)
	}
	return p.bus.Publish(sessionID, kind, payloadJSON)
}

func (p *Publisher) publishWithGlobal(sessionID, kind string, payload any) (int, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal %s payload: %w", kind, err)
	}
	seq, err := p.bus.Publish(sessionID, kind, payloadJSON)
	if err != nil {
		return 0, err
	}
	p.bus.NotifyGlobal(payloadJSON)
	return seq, nil
}
