// Package skill implements the LLM-backed skills of the negotiation engine:
// formulation, offer, and center. Each skill renders a typed input to a model
// request, parses the response back into a typed result, and retries once on
// validation failure. Model errors propagate without retry.
package skill

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/parley-ai/parley/pkg/llm"
)

// Skill names, used in logs and error messages.
const (
	SkillFormulation = "formulation"
	SkillOffer       = "offer"
	SkillCenter      = "center"
)

const (
	defaultSkillTimeout   = 60 * time.Second
	maxValidationRetries  = 1
	defaultSkillMaxTokens = 2048
	centerSkillMaxTokens  = 4096
)

// Runner executes skills against the configured LLM provider.
type Runner struct {
	clients *llm.Registry
	model   string
	timeout time.Duration
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithTimeout overrides the per-invocation timeout.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) { r.timeout = d }
}

// WithModel overrides the provider's default model.
func WithModel(model string) RunnerOption {
	return func(r *Runner) { r.model = model }
}

// NewRunner creates a skill runner over the given client registry.
func NewRunner(clients *llm.Registry, opts ...RunnerOption) *Runner {
	r := &Runner{
		clients: clients,
		timeout: defaultSkillTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// invoke performs one skill invocation: generate, validate, and retry once if
// validation rejects the output. The parsed result is returned through
// validate's closure.
func (r *Runner) invoke(ctx context.Context, skillName string, req *llm.Request, validate func(*llm.Response) error) error {
	client, err := r.clients.Default()
	if err != nil {
		return fmt.Errorf("%s skill has no LLM client: %w", skillName, err)
	}
	if req.Model == "" {
		req.Model = r.model
	}

	var lastErr error
	for attempt := 0; attempt <= maxValidationRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		resp, err := client.Generate(callCtx, req)
		cancel()
		if err != nil {
			// Model errors propagate; only validation failures retry.
			return fmt.Errorf("%s skill failed: %w", skillName, err)
		}

		if err := validate(resp); err != nil {
			lastErr = err
			slog.Warn("Skill output rejected",
				"skill", skillName, "attempt", attempt+1, "error", err)
			continue
		}
		return nil
	}
	return fmt.Errorf("%s skill produced invalid output after %d attempts: %w",
		skillName, maxValidationRetries+1, lastErr)
}
