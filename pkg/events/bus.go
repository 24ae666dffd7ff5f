package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Default bounds for the in-memory bus. History is per channel; the buffer is
// per subscriber. A subscriber whose buffer stays full is disconnected rather
// than ever blocking a publisher.
const (
	DefaultHistoryLimit     = 1000
	DefaultSubscriberBuffer = 256
)

// Event is one published occurrence on a session channel. Payload is the
// marshaled payload JSON with the assigned "seq" field injected.
type Event struct {
	Channel string
	Seq     int
	Kind    string
	Payload []byte
}

// Broadcaster receives a copy of every published event for out-of-process
// delivery. Implemented by ConnectionManager for WebSocket fan-out.
type Broadcaster interface {
	Broadcast(channel string, event []byte)
}

// Bus is the in-memory event fabric. Each session channel carries a strictly
// increasing, gap-free sequence of events; subscribers get bounded buffers
// and replay of retained history.
type Bus struct {
	mu        sync.Mutex
	streams   map[string]*stream
	nextSubID int

	historyLimit     int
	subscriberBuffer int

	broadcasterMu sync.RWMutex
	broadcaster   Broadcaster
}

type stream struct {
	nextSeq int
	history []Event
	subs    map[int]*subscriber
}

type subscriber struct {
	id string
	ch chan Event
}

// NewBus creates a bus with default history and buffer bounds.
func NewBus() *Bus {
	return NewBusWithLimits(DefaultHistoryLimit, DefaultSubscriberBuffer)
}

// NewBusWithLimits creates a bus with explicit per-channel history and
// per-subscriber buffer bounds.
func NewBusWithLimits(historyLimit, subscriberBuffer int) *Bus {
	return &Bus{
		streams:          make(map[string]*stream),
		historyLimit:     historyLimit,
		subscriberBuffer: subscriberBuffer,
	}
}

// SetBroadcaster attaches a broadcaster for WebSocket fan-out. Called once
// during startup after both Bus and ConnectionManager are created.
func (b *Bus) SetBroadcaster(br Broadcaster) {
	b.broadcasterMu.Lock()
	defer b.broadcasterMu.Unlock()
	b.broadcaster = br
}

// Publish assigns the next sequence number on the session's channel, injects
// it into the payload, retains the event in history, and fans out to live
// subscribers and the broadcaster. Returns the assigned sequence number.
func (b *Bus) Publish(sessionID, kind string, payloadJSON []byte) (int, error) {
	channel := SessionChannel(sessionID)

	b.mu.Lock()
	st := b.streamLocked(channel)
	seq := st.nextSeq + 1

	enriched, err := injectSeq(payloadJSON, seq)
	if err != nil {
		b.mu.Unlock()
		return 0, err
	}
	st.nextSeq = seq

	evt := Event{Channel: channel, Seq: seq, Kind: kind, Payload: enriched}
	st.history = append(st.history, evt)
	if len(st.history) > b.historyLimit {
		st.history = st.history[len(st.history)-b.historyLimit:]
	}

	// Non-blocking delivery. A subscriber with a full buffer is dropped —
	// slow sinks must never stall the engine.
	for id, sub := range st.subs {
		select {
		case sub.ch <- evt:
		default:
			slog.Warn("Dropping slow event subscriber",
				"channel", channel, "subscriber_id", sub.id)
			close(sub.ch)
			delete(st.subs, id)
		}
	}
	b.mu.Unlock()

	b.broadcast(channel, enriched)
	return seq, nil
}

// NotifyGlobal broadcasts a transient copy of an event to the global sessions
// channel. No sequence number, no history — WebSocket listeners only.
func (b *Bus) NotifyGlobal(payloadJSON []byte) {
	b.broadcast(GlobalSessionsChannel, payloadJSON)
}

func (b *Bus) broadcast(channel string, payload []byte) {
	b.broadcasterMu.RLock()
	br := b.broadcaster
	b.broadcasterMu.RUnlock()
	if br != nil {
		br.Broadcast(channel, payload)
	}
}

// Subscription is one subscriber's view of a session channel. Events is
// closed when the subscription is cancelled or the subscriber is dropped for
// falling behind.
type Subscription struct {
	Events <-chan Event
	cancel func()
}

// Close cancels the subscription. Safe to call more than once.
func (s *Subscription) Close() { s.cancel() }

// Subscribe returns the ordered event stream for a session, replaying
// retained history with Seq > fromSeq before delivering live events.
// Use fromSeq 0 for the full stream.
func (b *Bus) Subscribe(sessionID string, fromSeq int) *Subscription {
	channel := SessionChannel(sessionID)

	b.mu.Lock()
	st := b.streamLocked(channel)

	replay := historyAfter(st.history, fromSeq, 0)
	ch := make(chan Event, len(replay)+b.subscriberBuffer)
	for _, evt := range replay {
		ch <- evt
	}

	b.nextSubID++
	id := b.nextSubID
	st.subs[id] = &subscriber{id: fmt.Sprintf("sub-%d", id), ch: ch}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := st.subs[id]; ok {
				close(sub.ch)
				delete(st.subs, id)
			}
		})
	}
	return &Subscription{Events: ch, cancel: cancel}
}

// History returns up to limit retained events on a channel with Seq >
// sinceSeq, in order. limit <= 0 means no limit. Implements the catchup
// source for ConnectionManager.
func (b *Bus) History(channel string, sinceSeq, limit int) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.streams[channel]
	if !ok {
		return nil
	}
	return historyAfter(st.history, sinceSeq, limit)
}

// LastSeq returns the most recently assigned sequence number for a session,
// or 0 if nothing has been published.
func (b *Bus) LastSeq(sessionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.streams[SessionChannel(sessionID)]
	if !ok {
		return 0
	}
	return st.nextSeq
}

func (b *Bus) streamLocked(channel string) *stream {
	st, ok := b.streams[channel]
	if !ok {
		st = &stream{subs: make(map[int]*subscriber)}
		b.streams[channel] = st
	}
	return st
}

func historyAfter(history []Event, sinceSeq, limit int) []Event {
	// History is ordered by seq; find the first retained event past sinceSeq.
	start := len(history)
	for i, evt := range history {
		if evt.Seq > sinceSeq {
			start = i
			break
		}
	}
	out := history[start:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return append([]Event(nil), out...)
}

// injectSeq adds the assigned sequence number to the JSON payload so wire
// consumers can track their position for catchup.
func injectSeq(payloadJSON []byte, seq int) ([]byte, error) {
	var m map[string]any
	if err := json.Unmarshal(payloadJSON, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload for seq injection: %w", err)
	}
	m["seq"] = seq

	enriched, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal enriched payload: %w", err)
	}
	return enriched, nil
}
