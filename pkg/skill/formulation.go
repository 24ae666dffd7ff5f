package skill

import (
	"context"
	"fmt"
	"strings"

	"github.com/parley-ai/parley/pkg/llm"
)

const formulationSystemPrompt = `You are the formulation assistant of a multi-agent negotiation system.
Rewrite the user's raw intent as a single clear, self-contained demand statement.
Preserve every constraint the user stated. Do not invent participants, vendors,
or facts the user did not mention. Respond with the formulated demand text only,
no preamble and no markdown.`

// FormulationInput is the input to the formulation skill.
type FormulationInput struct {
	RawIntent string
	Hints     []string // optional user-profile hints
}

// Formulate turns a raw intent into the formulated demand text.
func (r *Runner) Formulate(ctx context.Context, input FormulationInput) (string, error) {
	var user strings.Builder
	user.WriteString("Raw intent: ")
	user.WriteString(input.RawIntent)
	if len(input.Hints) > 0 {
		user.WriteString("\n\nKnown context about the requester:\n")
		for _, hint := range input.Hints {
			fmt.Fprintf(&user, "- %s\n", hint)
		}
	}

	req := &llm.Request{
		System:    formulationSystemPrompt,
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: user.String()}},
		MaxTokens: defaultSkillMaxTokens,
	}

	var formulated string
	err := r.invoke(ctx, SkillFormulation, req, func(resp *llm.Response) error {
		text := strings.TrimSpace(resp.Content)
		if text == "" {
			return fmt.Errorf("empty formulation")
		}
		formulated = text
		return nil
	})
	if err != nil {
		return "", err
	}
	return formulated, nil
}
