package e2e

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-ai/parley/pkg/api"
	"github.com/parley-ai/parley/pkg/events"
	"github.com/parley-ai/parley/pkg/llm"
	"github.com/parley-ai/parley/pkg/models"
	"github.com/parley-ai/parley/pkg/tools"
)

// TestHappyPath: three agents resonate, all offer, the center plans in one
// round. The session channel carries exactly nine ordered events.
func TestHappyPath(t *testing.T) {
	script := NewScriptedLLMClient()
	script.FormulationText = "Organize a workshop with venue catering and schedule."
	script.Offers["venue-agent"] = OfferScript{Content: "I can book the venue.", Capabilities: []string{"venue"}}
	script.Offers["catering-agent"] = OfferScript{Content: "I can cater the workshop.", Capabilities: []string{"catering"}}
	script.Offers["schedule-agent"] = OfferScript{Content: "I can draft the schedule.", Capabilities: []string{"schedule"}}
	script.CenterRounds = []CenterScript{{
		Reasoning: "all three cover the demand",
		ToolCalls: []llm.ToolCall{ToolCallJSON("call-1", tools.ToolOutputPlan, map[string]any{
			"plan_text": "Venue booked, catering arranged, schedule drafted.",
		})},
	}}

	app := NewTestApp(t,
		WithLLM(script),
		WithAgents(
			Agent("venue-agent", "Books the venue and rooms.", "venue"),
			Agent("catering-agent", "Provides catering for events.", "catering"),
			Agent("schedule-agent", "Drafts the schedule and agenda.", "schedule"),
		),
	)

	created := app.CreateNegotiation(api.CreateNegotiationRequest{RawIntent: "I need a workshop"})
	app.WaitForState(created.ID, models.StateAwaitingConfirmation)
	app.Confirm(created.ID, "")

	sess := app.WaitForState(created.ID, models.StateCompleted)
	require.NotNil(t, sess.Plan)
	assert.Equal(t, "Venue booked, catering arranged, schedule drafted.", sess.Plan.Text)
	assert.Equal(t, []string{"catering-agent", "schedule-agent", "venue-agent"}, sess.Plan.ParticipatingAgents)
	assert.Equal(t, "Organize a workshop with venue catering and schedule.", sess.Demand.FormulatedText)

	kinds := app.EventKinds(created.ID)
	require.Equal(t, []string{
		events.EventTypeFormulationReady,
		events.EventTypeFormulationConfirmed,
		events.EventTypeResonanceActivated,
		events.EventTypeOfferReceived,
		events.EventTypeOfferReceived,
		events.EventTypeOfferReceived,
		events.EventTypeBarrierComplete,
		events.EventTypeCenterToolCall,
		events.EventTypePlanReady,
	}, kinds)

	// Sequence numbers are strictly increasing from 1.
	for i, evt := range app.SessionEvents(created.ID) {
		assert.Equal(t, i+1, evt.Seq)
	}
	assert.Equal(t, 9, sess.LastSeq)
}

// TestEmptyRegistry: with no agents registered the session fails after
// confirmation with reason no_agents and resonance.activated never fires.
func TestEmptyRegistry(t *testing.T) {
	script := NewScriptedLLMClient()
	script.FormulationText = "Do something no agent can do."

	app := NewTestApp(t, WithLLM(script))

	created := app.CreateNegotiation(api.CreateNegotiationRequest{
		RawIntent:   "impossible",
		AutoConfirm: true,
	})

	sess := app.WaitForState(created.ID, models.StateFailed)
	assert.Equal(t, models.ReasonNoAgents, sess.FailureReason)
	assert.Nil(t, sess.Selection)

	assert.Equal(t, []string{
		events.EventTypeFormulationReady,
		events.EventTypeFormulationConfirmed,
		events.EventTypeSessionFailed,
	}, app.EventKinds(created.ID))
}

// TestPartialOfferFailure: one of three agents fails its offer. The barrier
// still completes with all three accounted for, only the two successes are
// published, and the plan proceeds without the failed agent.
func TestPartialOfferFailure(t *testing.T) {
	script := NewScriptedLLMClient()
	script.FormulationText = "Ship the release with build test docs."
	script.Offers["build-agent"] = OfferScript{Content: "I can build the release.", Capabilities: []string{"build"}}
	script.Offers["test-agent"] = OfferScript{Content: "I can run the test suite.", Capabilities: []string{"test"}}
	script.Offers["docs-agent"] = OfferScript{Err: fmt.Errorf("provider overloaded")}
	script.CenterRounds = []CenterScript{{
		Reasoning: "docs are missing but the release can ship",
		ToolCalls: []llm.ToolCall{ToolCallJSON("call-1", tools.ToolOutputPlan, map[string]any{
			"plan_text": "Build, then test, ship without fresh docs.",
		})},
	}}

	app := NewTestApp(t,
		WithLLM(script),
		WithAgents(
			Agent("build-agent", "Builds the release artifacts.", "build"),
			Agent("test-agent", "Runs the test suite.", "test"),
			Agent("docs-agent", "Writes the docs.", "docs"),
		),
	)

	created := app.CreateNegotiation(api.CreateNegotiationRequest{
		RawIntent:   "ship it",
		AutoConfirm: true,
	})

	sess := app.WaitForState(created.ID, models.StateCompleted)
	require.Len(t, sess.Offers, 3)
	assert.True(t, sess.Offers["docs-agent"].Failed())
	assert.Equal(t, []string{"build-agent", "test-agent"}, sess.Plan.ParticipatingAgents)

	var barrier events.BarrierCompletePayload
	require.True(t, app.EventPayload(created.ID, events.EventTypeBarrierComplete, &barrier))
	assert.Equal(t, 3, barrier.AgentCount)
	assert.Equal(t, 2, barrier.SucceededCount)

	var offerEvents int
	for _, kind := range app.EventKinds(created.ID) {
		if kind == events.EventTypeOfferReceived {
			offerEvents++
		}
	}
	assert.Equal(t, 2, offerEvents)
}

// TestCenterRoundCap: the center spends its two free rounds on ask_agent and
// output_gap, then the forced round restricts it to output_plan/reject and it
// concludes. Offers are masked to summaries from round two onward.
func TestCenterRoundCap(t *testing.T) {
	script := NewScriptedLLMClient()
	script.FormulationText = "Plan the conference with venue and catering."
	script.Offers["venue-agent"] = OfferScript{
		Content:      "I can book the hall. It holds two hundred people comfortably.",
		Capabilities: []string{"venue"},
	}
	script.Offers["catering-agent"] = OfferScript{Content: "I can cater all lunches.", Capabilities: []string{"catering"}}
	script.Answers["venue-agent"] = "The hall is free the first week of March."
	script.CenterRounds = []CenterScript{
		{
			Reasoning: "need the venue availability",
			ToolCalls: []llm.ToolCall{ToolCallJSON("call-ask", tools.ToolAskAgent, map[string]any{
				"agent_id": "venue-agent",
				"question": "When is the hall available?",
			})},
		},
		{
			Reasoning: "nobody covers travel",
			ToolCalls: []llm.ToolCall{ToolCallJSON("call-gap", tools.ToolOutputGap, map[string]any{
				"description": "attendee travel is not covered",
			})},
		},
		{
			Reasoning: "concluding with what we have",
			ToolCalls: []llm.ToolCall{ToolCallJSON("call-plan", tools.ToolOutputPlan, map[string]any{
				"plan_text": "Hall in March, lunches catered, travel left to attendees.",
			})},
		},
	}

	cfg := defaultTestConfig()
	cfg.Engine.MaxCenterRounds = 2
	app := NewTestApp(t,
		WithConfig(cfg),
		WithLLM(script),
		WithAgents(
			Agent("venue-agent", "Books the venue hall.", "venue"),
			Agent("catering-agent", "Provides catering lunches.", "catering"),
		),
	)

	created := app.CreateNegotiation(api.CreateNegotiationRequest{
		RawIntent:   "conference",
		AutoConfirm: true,
	})

	sess := app.WaitForState(created.ID, models.StateCompleted)
	require.Len(t, sess.Rounds, 3)
	assert.False(t, sess.Rounds[0].Forced)
	assert.False(t, sess.Rounds[1].Forced)
	assert.True(t, sess.Rounds[2].Forced)
	assert.Equal(t, 3, sess.Plan.CenterRounds)
	assert.Equal(t, []string{"attendee travel is not covered"}, sess.Gaps)
	assert.Equal(t, "The hall is free the first week of March.", sess.Rounds[0].ToolCalls[0].Result)

	reqs := app.LLM.CenterRequests()
	require.Len(t, reqs, 3)

	// Round 1 sees the raw offer; round 2 only the one-sentence summary.
	assert.Contains(t, reqs[0].Messages[0].Content, "It holds two hundred people comfortably.")
	assert.NotContains(t, reqs[1].Messages[0].Content, "It holds two hundred people comfortably.")
	assert.Contains(t, reqs[1].Messages[0].Content, "I can book the hall.")

	// The forced round offers only the terminal tools and says so.
	var names []string
	for _, def := range reqs[2].Tools {
		names = append(names, def.Name)
	}
	assert.ElementsMatch(t, []string{tools.ToolOutputPlan, tools.ToolReject}, names)
	assert.Contains(t, reqs[2].Messages[0].Content, "final round")

	// One center.tool_call event per dispatched call.
	var toolEvents int
	for _, kind := range app.EventKinds(created.ID) {
		if kind == events.EventTypeCenterToolCall {
			toolEvents++
		}
	}
	assert.Equal(t, 3, toolEvents)
}

// TestRecursiveDiscovery: the parent center opens a depth-1 sub-negotiation;
// the child runs to completion with its own event stream before the parent
// concludes around the child's plan.
func TestRecursiveDiscovery(t *testing.T) {
	script := NewScriptedLLMClient()
	script.FormulationText = "Launch the product with marketing and website."
	script.Offers["marketing-agent"] = OfferScript{Content: "I can run the launch campaign.", Capabilities: []string{"marketing"}}
	script.Offers["web-agent"] = OfferScript{Content: "I can rebuild the website.", Capabilities: []string{"web"}}
	script.CenterRounds = []CenterScript{
		{
			Reasoning: "the landing page scope needs its own negotiation",
			ToolCalls: []llm.ToolCall{ToolCallJSON("call-disc", tools.ToolStartDiscovery, map[string]any{
				"topic":           "Settle the landing page scope",
				"participant_ids": []string{"web-agent"},
			})},
		},
		// Child session's single round.
		{
			Reasoning: "a single page is enough",
			ToolCalls: []llm.ToolCall{ToolCallJSON("call-child-plan", tools.ToolOutputPlan, map[string]any{
				"plan_text": "One landing page with a signup form.",
			})},
		},
		// Parent resumes.
		{
			Reasoning: "campaign plus the scoped page",
			ToolCalls: []llm.ToolCall{ToolCallJSON("call-plan", tools.ToolOutputPlan, map[string]any{
				"plan_text": "Run the campaign against the scoped landing page.",
			})},
		},
	}

	app := NewTestApp(t,
		WithLLM(script),
		WithAgents(
			Agent("marketing-agent", "Runs marketing campaigns.", "marketing"),
			Agent("web-agent", "Builds the website.", "web"),
		),
	)

	created := app.CreateNegotiation(api.CreateNegotiationRequest{
		RawIntent:   "product launch",
		AutoConfirm: true,
	})
	parent := app.WaitForState(created.ID, models.StateCompleted)

	var started events.SubNegotiationStartedPayload
	require.True(t, app.EventPayload(created.ID, events.EventTypeSubNegotiationStarted, &started))
	assert.Equal(t, "Settle the landing page scope", started.Topic)
	require.NotEmpty(t, started.ChildSessionID)

	child := app.GetSession(started.ChildSessionID)
	assert.Equal(t, models.StateCompleted, child.State)
	assert.Equal(t, created.ID, child.ParentSessionID)
	assert.Equal(t, 1, child.Depth)
	assert.True(t, child.Demand.Confirmed)
	assert.Equal(t, "Settle the landing page scope", child.Demand.FormulatedText)
	assert.Equal(t, "One landing page with a signup form.", child.Plan.Text)

	// The child has its own event stream on its own channel, and its terminal
	// payload carries the parent session id.
	childKinds := app.EventKinds(started.ChildSessionID)
	assert.Contains(t, childKinds, events.EventTypePlanReady)
	var childPlan events.PlanReadyPayload
	require.True(t, app.EventPayload(started.ChildSessionID, events.EventTypePlanReady, &childPlan))
	assert.Equal(t, created.ID, childPlan.ParentSessionID)

	// The parent's tool call result carries the child's plan text.
	require.Len(t, parent.Rounds, 2)
	assert.Equal(t, child.Plan.Text, parent.Rounds[0].ToolCalls[0].Result)
	assert.Equal(t, "Run the campaign against the scoped landing page.", parent.Plan.Text)
}

// TestCancellationDuringOffers: with one offer hanging, cancellation aborts
// the barrier. No barrier.complete fires and the hanging agent never lands
// in the offer table.
func TestCancellationDuringOffers(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	script := NewScriptedLLMClient()
	script.FormulationText = "Migrate the database with schema and ops."
	script.Offers["schema-agent"] = OfferScript{Content: "I can migrate the schema.", Capabilities: []string{"schema"}}
	script.Offers["ops-agent"] = OfferScript{Block: block}

	app := NewTestApp(t,
		WithLLM(script),
		WithAgents(
			Agent("schema-agent", "Migrates database schemas.", "schema"),
			Agent("ops-agent", "Handles operations.", "ops"),
		),
	)

	created := app.CreateNegotiation(api.CreateNegotiationRequest{
		RawIntent:   "migrate",
		AutoConfirm: true,
	})

	// Wait until the fast offer has arrived so cancellation hits the barrier.
	require.Eventually(t, func() bool {
		return len(app.GetSession(created.ID).Offers) == 1
	}, waitFor, 10*time.Millisecond)

	app.Cancel(created.ID)
	sess := app.WaitForState(created.ID, models.StateCancelled)
	assert.Equal(t, models.ReasonUserCancelled, sess.FailureReason)

	kinds := app.EventKinds(created.ID)
	assert.NotContains(t, kinds, events.EventTypeBarrierComplete)
	require.NotEmpty(t, kinds)
	assert.Equal(t, events.EventTypeSessionCancelled, kinds[len(kinds)-1])

	assert.Len(t, sess.Offers, 1)
	_, ok := sess.Offers["ops-agent"]
	assert.False(t, ok)
}
