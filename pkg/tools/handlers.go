package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/parley-ai/parley/pkg/llm"
	"github.com/parley-ai/parley/pkg/models"
)

// OutputPlanHandler implements the terminal output_plan tool. The plan text
// is required; the structured plan is optional and degrades to text-only when
// it fails validation.
type OutputPlanHandler struct{}

func (h *OutputPlanHandler) Name() string      { return ToolOutputPlan }
func (h *OutputPlanHandler) Terminating() bool { return true }

func (h *OutputPlanHandler) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        ToolOutputPlan,
		Description: "Emit the final coordinated plan. plan_text is the human-readable plan; plan_json optionally adds the structured task graph.",
		ParametersSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"plan_text": {"type": "string", "description": "The complete plan as prose."},
				"plan_json": {"type": "object", "description": "Optional structured plan: summary, participants, tasks, topology."}
			},
			"required": ["plan_text"]
		}`),
	}
}

func (h *OutputPlanHandler) Handle(_ context.Context, tc *Context, call llm.ToolCall) (*Result, error) {
	var args struct {
		PlanText string          `json:"plan_text"`
		PlanJSON *models.PlanDoc `json:"plan_json"`
	}
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return nil, fmt.Errorf("malformed output_plan arguments: %w", err)
	}
	if strings.TrimSpace(args.PlanText) == "" {
		return nil, fmt.Errorf("output_plan requires plan_text")
	}

	plan := &models.Plan{Text: args.PlanText}
	if args.PlanJSON != nil {
		if err := args.PlanJSON.Validate(); err != nil {
			// Invalid structure degrades to a text-only plan.
			slog.Warn("Discarding invalid structured plan",
				"session_id", tc.SessionID, "error", err)
		} else {
			plan.Doc = args.PlanJSON
		}
	}

	return &Result{
		CallID:      call.ID,
		Name:        ToolOutputPlan,
		Content:     "plan accepted",
		Terminating: true,
		Plan:        plan,
	}, nil
}

// RejectHandler implements the terminal reject tool: no viable plan exists.
type RejectHandler struct{}

func (h *RejectHandler) Name() string      { return ToolReject }
func (h *RejectHandler) Terminating() bool { return true }

func (h *RejectHandler) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        ToolReject,
		Description: "Declare that no viable plan exists for this demand and end the negotiation.",
		ParametersSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"reason": {"type": "string", "description": "Why no viable plan exists."}
			},
			"required": ["reason"]
		}`),
	}
}

func (h *RejectHandler) Handle(_ context.Context, _ *Context, call llm.ToolCall) (*Result, error) {
	var args struct {
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return nil, fmt.Errorf("malformed reject arguments: %w", err)
	}
	if strings.TrimSpace(args.Reason) == "" {
		return nil, fmt.Errorf("reject requires a reason")
	}

	return &Result{
		CallID:      call.ID,
		Name:        ToolReject,
		Content:     "demand rejected",
		Terminating: true,
		Plan:        &models.Plan{Text: args.Reason, Rejected: true},
	}, nil
}

// AskAgentHandler relays a center question to one selected agent.
type AskAgentHandler struct{}

func (h *AskAgentHandler) Name() string      { return ToolAskAgent }
func (h *AskAgentHandler) Terminating() bool { return false }

func (h *AskAgentHandler) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        ToolAskAgent,
		Description: "Ask one participating agent a follow-up question and receive its answer.",
		ParametersSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"agent_id": {"type": "string", "description": "The participant to ask."},
				"question": {"type": "string", "description": "The question."}
			},
			"required": ["agent_id", "question"]
		}`),
	}
}

func (h *AskAgentHandler) Handle(ctx context.Context, tc *Context, call llm.ToolCall) (*Result, error) {
	var args struct {
		AgentID  string `json:"agent_id"`
		Question string `json:"question"`
	}
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return nil, fmt.Errorf("malformed ask_agent arguments: %w", err)
	}
	if _, ok := tc.Offers[args.AgentID]; !ok {
		return nil, fmt.Errorf("agent %q is not a participant of this negotiation", args.AgentID)
	}
	if tc.AskAgent == nil {
		return nil, fmt.Errorf("ask_agent is not available")
	}

	answer, err := tc.AskAgent(ctx, args.AgentID, args.Question)
	if err != nil {
		return nil, fmt.Errorf("agent %q failed to answer: %w", args.AgentID, err)
	}
	return &Result{
		CallID:  call.ID,
		Name:    ToolAskAgent,
		Content: answer,
	}, nil
}

// StartDiscoveryHandler spawns a sub-negotiation and blocks until its plan
// summary is available.
type StartDiscoveryHandler struct{}

func (h *StartDiscoveryHandler) Name() string      { return ToolStartDiscovery }
func (h *StartDiscoveryHandler) Terminating() bool { return false }

func (h *StartDiscoveryHandler) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        ToolStartDiscovery,
		Description: "Open a focused sub-negotiation on a narrower topic with a subset of participants; returns the sub-negotiation's plan summary.",
		ParametersSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"topic": {"type": "string", "description": "What the sub-negotiation should settle."},
				"participant_ids": {
					"type": "array",
					"items": {"type": "string"},
					"description": "The participants to involve."
				}
			},
			"required": ["topic", "participant_ids"]
		}`),
	}
}

func (h *StartDiscoveryHandler) Handle(ctx context.Context, tc *Context, call llm.ToolCall) (*Result, error) {
	var args struct {
		Topic          string   `json:"topic"`
		ParticipantIDs []string `json:"participant_ids"`
	}
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return nil, fmt.Errorf("malformed start_discovery arguments: %w", err)
	}
	if strings.TrimSpace(args.Topic) == "" {
		return nil, fmt.Errorf("start_discovery requires a topic")
	}
	if len(args.ParticipantIDs) == 0 {
		return nil, fmt.Errorf("start_discovery requires at least one participant")
	}
	for _, id := range args.ParticipantIDs {
		if _, ok := tc.Offers[id]; !ok {
			return nil, fmt.Errorf("agent %q is not a participant of this negotiation", id)
		}
	}
	if tc.StartDiscovery == nil {
		return nil, fmt.Errorf("start_discovery is not available")
	}

	summary, err := tc.StartDiscovery(ctx, args.Topic, args.ParticipantIDs)
	if err != nil {
		return nil, fmt.Errorf("sub-negotiation failed: %w", err)
	}
	return &Result{
		CallID:  call.ID,
		Name:    ToolStartDiscovery,
		Content: summary,
	}, nil
}

// OutputGapHandler records a declared unfilled requirement.
type OutputGapHandler struct{}

func (h *OutputGapHandler) Name() string      { return ToolOutputGap }
func (h *OutputGapHandler) Terminating() bool { return false }

func (h *OutputGapHandler) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        ToolOutputGap,
		Description: "Declare a requirement no current offer covers. Typically followed by start_discovery or a plan that works around the gap.",
		ParametersSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"description": {"type": "string", "description": "The unfilled requirement."}
			},
			"required": ["description"]
		}`),
	}
}

func (h *OutputGapHandler) Handle(_ context.Context, tc *Context, call llm.ToolCall) (*Result, error) {
	var args struct {
		Description string `json:"description"`
	}
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return nil, fmt.Errorf("malformed output_gap arguments: %w", err)
	}
	if strings.TrimSpace(args.Description) == "" {
		return nil, fmt.Errorf("output_gap requires a description")
	}
	if tc.RecordGap != nil {
		tc.RecordGap(args.Description)
	}

	return &Result{
		CallID:  call.ID,
		Name:    ToolOutputGap,
		Content: "gap recorded",
	}, nil
}
