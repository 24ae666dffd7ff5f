// Package e2e provides end-to-end test infrastructure for the parley
// negotiation pipeline: a full in-process instance with a scripted LLM, an
// HTTP server on an ephemeral port, and WebSocket access to the event stream.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/parley-ai/parley/pkg/api"
	"github.com/parley-ai/parley/pkg/config"
	"github.com/parley-ai/parley/pkg/engine"
	"github.com/parley-ai/parley/pkg/events"
	"github.com/parley-ai/parley/pkg/llm"
	"github.com/parley-ai/parley/pkg/models"
	"github.com/parley-ai/parley/pkg/profile"
	"github.com/parley-ai/parley/pkg/resonance"
	"github.com/parley-ai/parley/pkg/session"
	"github.com/parley-ai/parley/pkg/skill"
	"github.com/parley-ai/parley/pkg/tools"
)

const waitFor = 10 * time.Second

// hashingEncoder is a deterministic bag-of-words embedding, good enough for
// agents and demands that share vocabulary to resonate.
type hashingEncoder struct{}

func (hashingEncoder) Encode(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, 32)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[h.Sum32()%32]++
	}
	return vec, nil
}

// TestApp boots a complete parley instance for e2e testing.
type TestApp struct {
	Config *config.Config
	LLM    *ScriptedLLMClient
	Store  *profile.MemoryStore
	Bus    *events.Bus
	Engine *engine.Engine
	Server *api.Server

	BaseURL string // e.g. "http://127.0.0.1:54321"
	WSURL   string // e.g. "ws://127.0.0.1:54321/ws"

	t *testing.T
}

type testAppConfig struct {
	cfg    *config.Config
	llm    *ScriptedLLMClient
	agents []*models.AgentProfile
}

// TestAppOption configures the test app.
type TestAppOption func(*testAppConfig)

// WithConfig sets a custom config.
func WithConfig(cfg *config.Config) TestAppOption {
	return func(c *testAppConfig) { c.cfg = cfg }
}

// WithLLM sets a pre-scripted LLM client.
func WithLLM(client *ScriptedLLMClient) TestAppOption {
	return func(c *testAppConfig) { c.llm = client }
}

// WithAgents seeds the agent registry.
func WithAgents(agents ...*models.AgentProfile) TestAppOption {
	return func(c *testAppConfig) { c.agents = append(c.agents, agents...) }
}

// Agent builds an active agent profile for seeding.
func Agent(id, profileText string, capabilities ...string) *models.AgentProfile {
	return &models.AgentProfile{
		ID:           id,
		DisplayName:  id,
		ProfileText:  profileText,
		Capabilities: capabilities,
		Active:       true,
	}
}

// NewTestApp creates and starts a full parley test instance. Shutdown is
// registered via t.Cleanup automatically.
func NewTestApp(t *testing.T, opts ...TestAppOption) *TestApp {
	t.Helper()

	tc := &testAppConfig{}
	for _, opt := range opts {
		opt(tc)
	}
	if tc.cfg == nil {
		tc.cfg = defaultTestConfig()
	}
	if tc.llm == nil {
		tc.llm = NewScriptedLLMClient()
	}

	store := profile.NewMemoryStore()
	for _, agent := range tc.agents {
		require.NoError(t, store.UpsertProfile(context.Background(), agent))
	}

	registry := llm.NewRegistry()
	registry.Register("scripted", tc.llm)

	encoder := hashingEncoder{}
	index, err := resonance.NewIndex(encoder)
	require.NoError(t, err)

	bus := events.NewBus()
	connManager := events.NewConnectionManager(bus, 2*time.Second)
	bus.SetBroadcaster(connManager)

	eng := engine.New(tc.cfg, engine.Dependencies{
		Sessions:  session.NewManager(),
		Profiles:  store,
		Encoder:   encoder,
		Index:     index,
		Skills:    skill.NewRunner(registry, skill.WithTimeout(waitFor)),
		Tools:     tools.DefaultRegistry(),
		Publisher: events.NewPublisher(bus),
	})

	server := api.NewServer(tc.cfg.Server, eng, store, index, connManager)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		_ = server.StartWithListener(ln)
	}()

	addr := ln.Addr().String()
	app := &TestApp{
		Config:  tc.cfg,
		LLM:     tc.llm,
		Store:   store,
		Bus:     bus,
		Engine:  eng,
		Server:  server,
		BaseURL: fmt.Sprintf("http://%s", addr),
		WSURL:   fmt.Sprintf("ws://%s/ws", addr),
		t:       t,
	}

	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		_ = eng.Shutdown(shutdownCtx)
	})

	return app
}

// defaultTestConfig returns a config tuned for fast tests.
func defaultTestConfig() *config.Config {
	cfg := config.Default()
	cfg.Engine.OfferTimeout = waitFor
	cfg.Resonance.MinScore = 0
	return cfg
}

// CreateNegotiation posts a new negotiation and returns the created session.
func (app *TestApp) CreateNegotiation(req api.CreateNegotiationRequest) models.Session {
	app.t.Helper()
	var sess models.Session
	app.doJSON(http.MethodPost, "/api/v1/negotiations", req, http.StatusCreated, &sess)
	return sess
}

// Confirm confirms a negotiation, optionally amending the formulated text.
func (app *TestApp) Confirm(sessionID, text string) {
	app.t.Helper()
	app.doJSON(http.MethodPost, "/api/v1/negotiations/"+sessionID+"/confirm",
		api.ConfirmNegotiationRequest{FormulatedText: text}, http.StatusOK, nil)
}

// Cancel requests cancellation of a negotiation.
func (app *TestApp) Cancel(sessionID string) {
	app.t.Helper()
	app.doJSON(http.MethodPost, "/api/v1/negotiations/"+sessionID+"/cancel",
		nil, http.StatusAccepted, nil)
}

// GetSession fetches a session snapshot over HTTP.
func (app *TestApp) GetSession(sessionID string) models.Session {
	app.t.Helper()
	var sess models.Session
	app.doJSON(http.MethodGet, "/api/v1/negotiations/"+sessionID, nil, http.StatusOK, &sess)
	return sess
}

// WaitForState polls until the session reaches the given state.
func (app *TestApp) WaitForState(sessionID string, state models.SessionState) models.Session {
	app.t.Helper()
	var sess models.Session
	require.Eventually(app.t, func() bool {
		sess = app.GetSession(sessionID)
		return sess.State == state
	}, waitFor, 10*time.Millisecond, "session %s never reached state %s", sessionID, state)
	return sess
}

// SessionEvents returns the full retained event history for a session.
func (app *TestApp) SessionEvents(sessionID string) []events.Event {
	return app.Bus.History(events.SessionChannel(sessionID), 0, 0)
}

// EventKinds returns the ordered event kinds for a session.
func (app *TestApp) EventKinds(sessionID string) []string {
	history := app.SessionEvents(sessionID)
	kinds := make([]string, len(history))
	for i, evt := range history {
		kinds[i] = evt.Kind
	}
	return kinds
}

// EventPayload unmarshals the first event of the given kind into out and
// reports whether one was found.
func (app *TestApp) EventPayload(sessionID, kind string, out any) bool {
	app.t.Helper()
	for _, evt := range app.SessionEvents(sessionID) {
		if evt.Kind == kind {
			require.NoError(app.t, json.Unmarshal(evt.Payload, out))
			return true
		}
	}
	return false
}

func (app *TestApp) doJSON(method, path string, body any, wantStatus int, out any) {
	app.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(app.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, app.BaseURL+path, &buf)
	require.NoError(app.t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(app.t, err)
	defer resp.Body.Close()

	var raw bytes.Buffer
	_, _ = raw.ReadFrom(resp.Body)
	require.Equal(app.t, wantStatus, resp.StatusCode,
		"%s %s: %s", method, path, raw.String())
	if out != nil {
		require.NoError(app.t, json.Unmarshal(raw.Bytes(), out))
	}
}
