// Package tools implements the center's tool handler registry: the five
// negotiation tools the center may call, their JSON schemas, and dispatch.
package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/parley-ai/parley/pkg/llm"
	"github.com/parley-ai/parley/pkg/models"
)

// Tool names.
const (
	ToolOutputPlan     = "output_plan"
	ToolAskAgent       = "ask_agent"
	ToolStartDiscovery = "start_discovery"
	ToolOutputGap      = "output_gap"
	ToolReject         = "reject"
)

// Context carries the per-session facilities a handler may use. The engine
// builds one per center loop; the callbacks close over the running session.
type Context struct {
	SessionID string
	Demand    string
	Round     int

	// Offers holds the offer table keyed by agent id, successes and
	// failures both. Handlers treat it as read-only.
	Offers map[string]*models.Offer

	// AskAgent relays a question to one selected agent and returns its
	// answer.
	AskAgent func(ctx context.Context, agentID, question string) (string, error)

	// StartDiscovery spawns a child negotiation and blocks until it
	// completes, returning the child's plan summary.
	StartDiscovery func(ctx context.Context, topic string, participantIDs []string) (string, error)

	// RecordGap notes a declared unfilled requirement on the session.
	RecordGap func(description string)
}

// Result is the outcome of dispatching one tool call.
type Result struct {
	CallID      string
	Name        string
	Content     string
	IsError     bool
	Terminating bool

	// Plan is set by terminating tools only.
	Plan *models.Plan
}

// Handler is one tool implementation.
type Handler interface {
	Name() string
	Terminating() bool
	Definition() llm.ToolDefinition
	Handle(ctx context.Context, tc *Context, call llm.ToolCall) (*Result, error)
}

// Registry dispatches center tool calls to handlers.
type Registry struct {
	handlers map[string]Handler
	order    []string
}

// NewRegistry creates a registry over the given handlers.
func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{handlers: make(map[string]Handler)}
	for _, h := range handlers {
		r.handlers[h.Name()] = h
		r.order = append(r.order, h.Name())
	}
	return r
}

// DefaultRegistry returns a registry with all five negotiation tools.
func DefaultRegistry() *Registry {
	return NewRegistry(
		&OutputPlanHandler{},
		&AskAgentHandler{},
		&StartDiscoveryHandler{},
		&OutputGapHandler{},
		&RejectHandler{},
	)
}

// Definitions returns every tool's definition in registration order.
func (r *Registry) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.handlers[name].Definition())
	}
	return defs
}

// TerminalDefinitions returns only the terminating tools' definitions. Used
// for the forced final round.
func (r *Registry) TerminalDefinitions() []llm.ToolDefinition {
	var defs []llm.ToolDefinition
	for _, name := range r.order {
		if h := r.handlers[name]; h.Terminating() {
			defs = append(defs, h.Definition())
		}
	}
	return defs
}

// Dispatch routes one tool call. Unknown tool names and handler errors come
// back as error Results rather than Go errors: a bad call is a protocol
// error recorded on the transcript, not an engine failure.
func (r *Registry) Dispatch(ctx context.Context, tc *Context, call llm.ToolCall) *Result {
	handler, ok := r.handlers[call.Name]
	if !ok {
		slog.Warn("Unknown tool call",
			"session_id", tc.SessionID, "tool", call.Name)
		return &Result{
			CallID:  call.ID,
			Name:    call.Name,
			Content: fmt.Sprintf("unknown tool %q", call.Name),
			IsError: true,
		}
	}

	result, err := handler.Handle(ctx, tc, call)
	if err != nil {
		return &Result{
			CallID:  call.ID,
			Name:    call.Name,
			Content: err.Error(),
			IsError: true,
		}
	}
	return result
}
