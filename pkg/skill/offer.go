package skill

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/parley-ai/parley/pkg/llm"
	"github.com/parley-ai/parley/pkg/models"
)

// The offer skill receives only the agent's own profile and the confirmed
// demand. Other agents' identities never enter the prompt; they are used
// solely to validate that the output does not fabricate knowledge of them.

const offerInstructions = `Given the demand below, state what you can contribute.
Speak only for yourself, based strictly on your own profile. Do not mention,
assume, or coordinate with any other participant.
Respond with a JSON object and nothing else:
{"content": "<your offer, a short paragraph>", "capabilities": ["<capability>", ...]}`

// OfferInput is the input to the offer skill: the confirmed demand and the
// offering agent's own profile only.
type OfferInput struct {
	Demand  string
	Profile *models.AgentProfile
}

// OfferResult is a parsed offer.
type OfferResult struct {
	Content      string   `json:"content"`
	Capabilities []string `json:"capabilities"`
}

// Offer produces one agent's offer for the demand. forbiddenNames lists the
// identifiers of the other selected agents; an offer that mentions any of
// them is rejected and retried once.
func (r *Runner) Offer(ctx context.Context, input OfferInput, forbiddenNames []string) (*OfferResult, error) {
	req := &llm.Request{
		System: agentSystemPrompt(input.Profile),
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: fmt.Sprintf("Demand:\n%s\n\n%s", input.Demand, offerInstructions),
		}},
		MaxTokens: defaultSkillMaxTokens,
	}

	var result OfferResult
	err := r.invoke(ctx, SkillOffer, req, func(resp *llm.Response) error {
		raw := extractJSON(resp.Content)
		if raw == "" {
			return fmt.Errorf("no JSON object in offer output")
		}
		var parsed OfferResult
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return fmt.Errorf("malformed offer JSON: %w", err)
		}
		if strings.TrimSpace(parsed.Content) == "" {
			return fmt.Errorf("offer content is empty")
		}
		if name := mentionedName(parsed.Content, forbiddenNames); name != "" {
			return fmt.Errorf("offer references another agent %q", name)
		}
		result = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// QuestionInput is the input for answering a center question directed at one
// agent. The agent sees the demand, its own profile, and its own prior offer.
type QuestionInput struct {
	Demand   string
	Profile  *models.AgentProfile
	OwnOffer string
	Question string
}

// AnswerQuestion produces an agent's answer to a question from the center.
func (r *Runner) AnswerQuestion(ctx context.Context, input QuestionInput) (string, error) {
	var user strings.Builder
	fmt.Fprintf(&user, "Demand:\n%s\n\n", input.Demand)
	if input.OwnOffer != "" {
		fmt.Fprintf(&user, "Your earlier offer:\n%s\n\n", input.OwnOffer)
	}
	fmt.Fprintf(&user, "The negotiation facilitator asks you:\n%s\n\nAnswer concisely, speaking only for yourself.", input.Question)

	req := &llm.Request{
		System:    agentSystemPrompt(input.Profile),
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: user.String()}},
		MaxTokens: defaultSkillMaxTokens,
	}

	var answer string
	err := r.invoke(ctx, SkillOffer, req, func(resp *llm.Response) error {
		text := strings.TrimSpace(resp.Content)
		if text == "" {
			return fmt.Errorf("empty answer")
		}
		answer = text
		return nil
	})
	if err != nil {
		return "", err
	}
	return answer, nil
}

func agentSystemPrompt(p *models.AgentProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are agent %s.\n", p.ID)
	if p.DisplayName != "" && p.DisplayName != p.ID {
		fmt.Fprintf(&b, "Display name: %s\n", p.DisplayName)
	}
	fmt.Fprintf(&b, "Your profile: %s\n", p.ProfileText)
	if len(p.Capabilities) > 0 {
		fmt.Fprintf(&b, "Your capabilities: %s\n", strings.Join(p.Capabilities, ", "))
	}
	b.WriteString("You participate in a negotiation. You know nothing about the other participants.")
	return b.String()
}

// mentionedName returns the first forbidden name found in text, or "".
func mentionedName(text string, forbidden []string) string {
	lower := strings.ToLower(text)
	for _, name := range forbidden {
		if name == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(name)) {
			return name
		}
	}
	return ""
}

// extractJSON returns the first JSON object in text, tolerating markdown
// fences around it.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return ""
	}
	return text[start : end+1]
}
