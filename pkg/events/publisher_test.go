package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisherFillsTypeSessionAndTimestamp(t *testing.T) {
	bus := NewBus()
	pub := NewPublisher(bus)

	seq, err := pub.PublishFormulationReady("s1", FormulationReadyPayload{
		RawIntent:      "organize a meetup",
		FormulatedText: "Organize a small AI meetup.",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, seq)

	events := bus.History(SessionChannel("s1"), 0, 0)
	require.Len(t, events, 1)
	assert.Equal(t, EventTypeFormulationReady, events[0].Kind)

	var m map[string]any
	require.NoError(t, json.Unmarshal(events[0].Payload, &m))
	assert.Equal(t, EventTypeFormulationReady, m["type"])
	assert.Equal(t, "s1", m["session_id"])
	assert.NotEmpty(t, m["timestamp"])
	assert.EqualValues(t, 1, m["seq"])
}

type captureBroadcaster struct {
	byChannel map[string][][]byte
}

func (c *captureBroadcaster) Broadcast(channel string, event []byte) {
	if c.byChannel == nil {
		c.byChannel = make(map[string][][]byte)
	}
	c.byChannel[channel] = append(c.byChannel[channel], event)
}

func TestPublisherMirrorsTerminalEventsToGlobalChannel(t *testing.T) {
	bus := NewBus()
	br := &captureBroadcaster{}
	bus.SetBroadcaster(br)
	pub := NewPublisher(bus)

	_, err := pub.PublishSessionFailed("s1", SessionTerminalPayload{Reason: "no_agents"})
	require.NoError(t, err)
	_, err = pub.PublishOfferReceived("s1", OfferReceivedPayload{AgentID: "a"})
	require.NoError(t, err)

	assert.Len(t, br.byChannel[SessionChannel("s1")], 2)
	assert.Len(t, br.byChannel[GlobalSessionsChannel], 1, "only terminal events mirrored globally")
}
