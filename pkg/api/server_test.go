package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

// stubLLM answers formulation with a fixed text, offers with a minimal JSON
// offer, and the center with an immediate output_plan call.
type stubLLM struct{}

func (stubLLM) Generate(_ context.Context, req *llm.Request) (*llm.Response, error) {
	switch {
	case strings.Contains(req.System, "formulation assistant"):
		return &llm.Response{Content: "Formulated demand."}, nil
	case strings.HasPrefix(req.System, "You are agent "):
		return &llm.Response{Content: `{"content": "I can help.", "capabilities": ["help"]}`}, nil
	default:
		return &llm.Response{ToolCalls: []llm.ToolCall{{
			ID:        "call-1",
			Name:      tools.ToolOutputPlan,
			Arguments: `{"plan_text": "The plan."}`,
		}}}, nil
	}
}

type wordEncoder struct{}

func (wordEncoder) Encode(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, 8)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		var h uint32
		for _, r := range word {
			h = h*31 + uint32(r)
		}
		vec[h%8]++
	}
	return vec, nil
}

func newTestServer(t *testing.T) (*Server, *profile.MemoryStore) {
	t.Helper()

	cfg := config.Default()
	registry := llm.NewRegistry()
	registry.Register("stub", stubLLM{})

	index, err := resonance.NewIndex(wordEncoder{})
	require.NoError(t, err)

	bus := events.NewBus()
	connManager := events.NewConnectionManager(bus, time.Second)
	bus.SetBroadcaster(connManager)

	store := profile.NewMemoryStore()
	eng := engine.New(cfg, engine.Dependencies{
		Sessions:  session.NewManager(),
		Profiles:  store,
		Encoder:   wordEncoder{},
		Index:     index,
		Skills:    skill.NewRunner(registry),
		Tools:     tools.DefaultRegistry(),
		Publisher: events.NewPublisher(bus),
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = eng.Shutdown(ctx)
	})

	return NewServer(cfg.Server, eng, store, index, connManager), store
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func seedAgent(t *testing.T, store *profile.MemoryStore, id, text string) {
	t.Helper()
	require.NoError(t, store.UpsertProfile(context.Background(), &models.AgentProfile{
		ID:          id,
		ProfileText: text,
		Active:      true,
	}))
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
}

func TestAgentEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/agents", UpsertAgentRequest{
		ID:           "venue-agent",
		DisplayName:  "Venue Agent",
		ProfileText:  "Books venues and rooms for events.",
		Capabilities: []string{"venues"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Missing profile_text is a binding error.
	rec = doJSON(t, s, http.MethodPost, "/api/v1/agents", map[string]any{"id": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/agents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var agents []models.AgentProfile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &agents))
	require.Len(t, agents, 1)
	assert.Equal(t, "venue-agent", agents[0].ID)

	rec = doJSON(t, s, http.MethodDelete, "/api/v1/agents/venue-agent", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodDelete, "/api/v1/agents/venue-agent", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/agents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &agents))
	assert.Empty(t, agents)
}

func TestAgentSearchEndpoint(t *testing.T) {
	s, store := newTestServer(t)
	seedAgent(t, store, "venue-agent", "Books venues and rooms for events.")
	seedAgent(t, store, "catering-agent", "Provides catering and food service.")

	rec := doJSON(t, s, http.MethodGet, "/api/v1/agents/search?q=venues+rooms+events&limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Query   string               `json:"query"`
		Results []models.ScoredAgent `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "venue-agent", resp.Results[0].AgentID)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/agents/search", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/agents/search?q=x&limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNegotiationLifecycleEndpoints(t *testing.T) {
	s, store := newTestServer(t)
	seedAgent(t, store, "venue-agent", "Formulated demand and everything about it.")

	rec := doJSON(t, s, http.MethodPost, "/api/v1/negotiations", CreateNegotiationRequest{
		RawIntent:   "plan a thing",
		AutoConfirm: true,
		MinScore:    float64Ptr(0),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "plan a thing", created.Demand.RawIntent)

	require.Eventually(t, func() bool {
		rec := doJSON(t, s, http.MethodGet, "/api/v1/negotiations/"+created.ID, nil)
		if rec.Code != http.StatusOK {
			return false
		}
		var sess models.Session
		if err := json.Unmarshal(rec.Body.Bytes(), &sess); err != nil {
			return false
		}
		return sess.State == models.StateCompleted
	}, 5*time.Second, 10*time.Millisecond)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/negotiations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var all []models.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 1)

	// Terminal sessions cannot be confirmed; cancelling one is a no-op.
	rec = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/v1/negotiations/%s/confirm", created.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/v1/negotiations/%s/cancel", created.ID), nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestNegotiationErrorResponses(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/negotiations", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/negotiations/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/negotiations/unknown/confirm", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/negotiations/unknown/cancel", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func float64Ptr(v float64) *float64 { return &v }
