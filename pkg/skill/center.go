package skill

import (
	"context"
	"fmt"
	"strings"

	"github.com/parley-ai/parley/pkg/llm"
)

const centerSystemPrompt = `You are the center of a multi-agent negotiation: a neutral facilitator
who synthesizes the participants' offers into a coordinated plan for the demand.
Each round you reason briefly, then act by calling the tools available to you.
You never contribute work yourself; you only combine, question, and decide.
You must call at least one tool every round.`

// OfferView is one offer as the center sees it this round: the raw content in
// round 1, a deterministic summary on later rounds.
type OfferView struct {
	AgentID      string
	Capabilities []string
	Content      string
}

// RoundView is a prior round's reasoning, retained verbatim.
type RoundView struct {
	Number    int
	Reasoning string
}

// CenterInput is the full context for one center round.
type CenterInput struct {
	Demand      string
	Offers      []OfferView
	PriorRounds []RoundView
	RoundNumber int
	Forced      bool
	Tools       []llm.ToolDefinition
}

// CenterResult is one round of center output.
type CenterResult struct {
	Reasoning string
	ToolCalls []llm.ToolCall
}

// Center runs one round of the center loop and returns its reasoning and tool
// calls. A response without tool calls is rejected and retried once.
func (r *Runner) Center(ctx context.Context, input CenterInput) (*CenterResult, error) {
	req := &llm.Request{
		System:    centerSystemPrompt,
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: renderCenterContext(input)}},
		Tools:     input.Tools,
		MaxTokens: centerSkillMaxTokens,
	}

	var result CenterResult
	err := r.invoke(ctx, SkillCenter, req, func(resp *llm.Response) error {
		if len(resp.ToolCalls) == 0 {
			return fmt.Errorf("center round produced no tool calls")
		}
		result = CenterResult{
			Reasoning: strings.TrimSpace(resp.Content),
			ToolCalls: resp.ToolCalls,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func renderCenterContext(input CenterInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Demand:\n%s\n\n", input.Demand)

	b.WriteString("Offers:\n")
	for _, offer := range input.Offers {
		caps := strings.Join(offer.Capabilities, ", ")
		if caps != "" {
			fmt.Fprintf(&b, "- %s (capabilities: %s): %s\n", offer.AgentID, caps, offer.Content)
		} else {
			fmt.Fprintf(&b, "- %s: %s\n", offer.AgentID, offer.Content)
		}
	}

	for _, round := range input.PriorRounds {
		fmt.Fprintf(&b, "\nYour reasoning in round %d:\n%s\n", round.Number, round.Reasoning)
	}

	fmt.Fprintf(&b, "\nThis is round %d.", input.RoundNumber)
	if input.Forced {
		b.WriteString(" This is the final round: you must conclude now by producing a plan" +
			" with output_plan, or reject the demand with reject. No other tools are available.")
	}
	return b.String()
}
