package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/parley-ai/parley/pkg/llm"
)

// OfferScript is one agent's scripted offer behavior.
type OfferScript struct {
	Content      string
	Capabilities []string

	// Err fails the offer instead of producing content.
	Err error

	// Block, when set, holds the offer until the channel closes or the
	// request context is cancelled. Used by cancellation tests.
	Block chan struct{}
}

// CenterScript is one scripted center round.
type CenterScript struct {
	Reasoning string
	ToolCalls []llm.ToolCall
}

// ScriptedLLMClient implements llm.Client with deterministic scripts, routed
// by system prompt: formulation, per-agent offers and answers, and a
// sequential list of center rounds (shared across parent and child sessions,
// which is deterministic because parents block on their children).
type ScriptedLLMClient struct {
	mu sync.Mutex

	FormulationText string
	Offers          map[string]OfferScript
	Answers         map[string]string
	CenterRounds    []CenterScript

	centerIdx  int
	centerReqs []*llm.Request
}

// NewScriptedLLMClient returns an empty script; tests fill in the fields.
func NewScriptedLLMClient() *ScriptedLLMClient {
	return &ScriptedLLMClient{
		Offers:  make(map[string]OfferScript),
		Answers: make(map[string]string),
	}
}

// Generate implements llm.Client.
func (c *ScriptedLLMClient) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	switch {
	case strings.Contains(req.System, "formulation assistant"):
		if c.FormulationText == "" {
			return nil, fmt.Errorf("no scripted formulation")
		}
		return &llm.Response{Content: c.FormulationText}, nil

	case strings.HasPrefix(req.System, "You are agent "):
		firstLine, _, _ := strings.Cut(req.System, "\n")
		agentID := strings.TrimSuffix(strings.TrimPrefix(firstLine, "You are agent "), ".")

		if strings.Contains(req.Messages[0].Content, "facilitator asks you") {
			answer := c.Answers[agentID]
			if answer == "" {
				answer = "Nothing further from me."
			}
			return &llm.Response{Content: answer}, nil
		}

		script, ok := c.Offers[agentID]
		if !ok {
			return nil, fmt.Errorf("no scripted offer for agent %q", agentID)
		}
		if script.Block != nil {
			select {
			case <-script.Block:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if script.Err != nil {
			return nil, script.Err
		}
		payload, err := json.Marshal(map[string]any{
			"content":      script.Content,
			"capabilities": script.Capabilities,
		})
		if err != nil {
			return nil, err
		}
		return &llm.Response{Content: string(payload)}, nil

	case strings.Contains(req.System, "center of a multi-agent negotiation"):
		c.mu.Lock()
		defer c.mu.Unlock()
		c.centerReqs = append(c.centerReqs, req)
		if c.centerIdx >= len(c.CenterRounds) {
			return nil, fmt.Errorf("no scripted center round %d", c.centerIdx+1)
		}
		step := c.CenterRounds[c.centerIdx]
		c.centerIdx++
		return &llm.Response{Content: step.Reasoning, ToolCalls: step.ToolCalls}, nil
	}

	return nil, fmt.Errorf("unrouted LLM request, system prompt: %q", req.System)
}

// CenterRequests returns the center requests seen so far.
func (c *ScriptedLLMClient) CenterRequests() []*llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*llm.Request(nil), c.centerReqs...)
}

// ToolCallJSON builds a tool call with JSON-marshaled arguments.
func ToolCallJSON(id, name string, args map[string]any) llm.ToolCall {
	raw, err := json.Marshal(args)
	if err != nil {
		panic(err)
	}
	return llm.ToolCall{ID: id, Name: name, Arguments: string(raw)}
}
