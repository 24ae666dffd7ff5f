package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/parley-ai/parley/pkg/events"
	"github.com/parley-ai/parley/pkg/models"
	"github.com/parley-ai/parley/pkg/resonance"
	"github.com/parley-ai/parley/pkg/skill"
)

// failure is a phase error that carries the machine-readable reason code for
// the resulting session.failed event.
type failure struct {
	reason string
	cause  error
}

func (f *failure) Error() string { return fmt.Sprintf("%s: %v", f.reason, f.cause) }
func (f *failure) Unwrap() error { return f.cause }

func failWith(reason string, cause error) *failure {
	return &failure{reason: reason, cause: cause}
}

// runSession is the goroutine driving one session from formulation to a
// terminal state.
func (e *Engine) runSession(run *sessionRun) {
	defer e.wg.Done()
	defer e.removeRun(run.sessionID)
	defer close(run.done)
	defer run.cancel()

	log := slog.With("session_id", run.sessionID)
	if run.spec.parentID != "" {
		log = log.With("parent_session_id", run.spec.parentID)
	}
	log.Info("Negotiation started", "depth", run.spec.depth)

	err := e.drive(run.ctx, run, log)
	switch {
	case err == nil:
		log.Info("Negotiation completed")
	case run.ctx.Err() != nil:
		e.cancelSession(run, run.cancelReasonOr(models.ReasonUserCancelled), log)
	default:
		reason := models.ReasonInternalError
		var f *failure
		if errors.As(err, &f) {
			reason = f.reason
		}
		e.failSession(run, reason, err, log)
	}
}

// drive runs the session phases in order. A returned context error means the
// session was cancelled; any other error fails it.
func (e *Engine) drive(ctx context.Context, run *sessionRun, log *slog.Logger) error {
	spec := run.spec

	formulated, err := e.formulate(ctx, run, log)
	if err != nil {
		return err
	}

	formulated, err = e.awaitConfirmation(ctx, run, formulated)
	if err != nil {
		return err
	}
	seq, pubErr := e.publisher.PublishFormulationConfirmed(run.sessionID, events.FormulationConfirmedPayload{
		ParentSessionID: spec.parentID,
		FormulatedText:  formulated,
	})
	e.record(run, seq, pubErr)

	selection, err := e.resonate(ctx, run, formulated, log)
	if err != nil {
		return err
	}
	run.update(func(s *models.Session) { s.Selection = selection })
	seq, pubErr = e.publisher.PublishResonanceActivated(run.sessionID, events.ResonanceActivatedPayload{
		ParentSessionID: spec.parentID,
		Agents:          selection.Agents,
		FilteredAgents:  selection.Filtered,
	})
	e.record(run, seq, pubErr)
	log.Info("Resonance selection frozen",
		"selected", len(selection.Agents),
		"filtered", len(selection.Filtered))

	succeeded, err := e.collectOffers(ctx, run, formulated, selection)
	if err != nil {
		return err
	}
	seq, pubErr = e.publisher.PublishBarrierComplete(run.sessionID, events.BarrierCompletePayload{
		ParentSessionID: spec.parentID,
		AgentCount:      len(selection.Agents),
		SucceededCount:  succeeded,
	})
	e.record(run, seq, pubErr)
	log.Info("Offer barrier complete",
		"agents", len(selection.Agents),
		"succeeded", succeeded)
	if succeeded == 0 {
		return failWith(models.ReasonAllOffersFailed, fmt.Errorf("no agent produced an offer"))
	}

	run.setState(models.StateSynthesizing)
	plan, err := e.runCenter(ctx, run, formulated, log)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return failWith(models.ReasonCenterFailed, err)
	}
	plan.ParticipatingAgents = succeededAgentIDs(run.handle.Snapshot().Offers)

	run.update(func(s *models.Session) { s.Plan = plan })
	seq, pubErr = e.publisher.PublishPlanReady(run.sessionID, events.PlanReadyPayload{
		ParentSessionID:     spec.parentID,
		PlanText:            plan.Text,
		PlanJSON:            plan.Doc,
		Rejected:            plan.Rejected,
		CenterRounds:        plan.CenterRounds,
		ParticipatingAgents: plan.ParticipatingAgents,
	})
	e.record(run, seq, pubErr)
	// The terminal state flips last so that anyone observing it also sees
	// the plan and the plan.ready sequence number.
	run.setState(models.StateCompleted)
	return nil
}

// formulate produces the formulated demand text and publishes
// formulation.ready. Child sessions arrive with a preset text and skip the
// formulation skill.
func (e *Engine) formulate(ctx context.Context, run *sessionRun, log *slog.Logger) (string, error) {
	spec := run.spec
	run.setState(models.StateFormulating)

	formulated := spec.formulated
	if formulated == "" {
		var err error
		formulated, err = e.skills.Formulate(ctx, skill.FormulationInput{
			RawIntent: spec.rawIntent,
			Hints:     spec.hints,
		})
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", failWith(models.ReasonFormulationFailed, err)
		}
		log.Info("Demand formulated")
	}

	run.update(func(s *models.Session) { s.Demand.FormulatedText = formulated })
	seq, pubErr := e.publisher.PublishFormulationReady(run.sessionID, events.FormulationReadyPayload{
		ParentSessionID: spec.parentID,
		RawIntent:       spec.rawIntent,
		FormulatedText:  formulated,
		Enrichments:     spec.hints,
	})
	e.record(run, seq, pubErr)
	return formulated, nil
}

// awaitConfirmation holds the session at the confirmation gate until the user
// confirms (optionally amending the text), the gate times out, or the session
// is cancelled. The returned text is frozen.
func (e *Engine) awaitConfirmation(ctx context.Context, run *sessionRun, formulated string) (string, error) {
	if run.spec.autoConfirm {
		run.update(func(s *models.Session) { s.Demand.Confirmed = true })
		return formulated, nil
	}

	run.setState(models.StateAwaitingConfirmation)

	var timeout <-chan time.Time
	if e.engineCfg.ConfirmationTimeout > 0 {
		timer := time.NewTimer(e.engineCfg.ConfirmationTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case msg := <-run.inbox:
		if msg.text != "" {
			formulated = msg.text
		}
		run.update(func(s *models.Session) {
			s.Demand.FormulatedText = formulated
			s.Demand.Confirmed = true
		})
		msg.reply <- nil
		return formulated, nil
	case <-timeout:
		run.setCancelReason(models.ReasonConfirmationTimeout)
		run.cancel()
		<-ctx.Done()
		return "", ctx.Err()
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// resonate computes the frozen agent selection for the confirmed demand.
// Child sessions use their preset participant list instead of the vector
// search. An empty selection fails the session; resonance.activated is only
// published by the caller for non-empty selections.
func (e *Engine) resonate(ctx context.Context, run *sessionRun, formulated string, log *slog.Logger) (*models.AgentSelection, error) {
	run.setState(models.StateEncoding)

	if len(run.spec.participants) > 0 {
		ids := append([]string(nil), run.spec.participants...)
		sort.Strings(ids)
		agents := make([]models.ScoredAgent, len(ids))
		for i, id := range ids {
			agents[i] = models.ScoredAgent{AgentID: id, Score: 1.0}
		}
		return &models.AgentSelection{Agents: agents}, nil
	}

	profiles, err := e.profiles.ListActiveAgents(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, failWith(models.ReasonInternalError, fmt.Errorf("failed to list agents: %w", err))
	}
	if err := e.index.Sync(ctx, profiles); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, failWith(models.ReasonInternalError, fmt.Errorf("failed to sync agent index: %w", err))
	}

	demandVector, err := e.encoder.Encode(ctx, formulated)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, failWith(models.ReasonInternalError, fmt.Errorf("failed to encode demand: %w", err))
	}

	kStar := run.spec.kStar
	if kStar <= 0 {
		kStar = e.resCfg.KStar
	}
	minScore := e.resCfg.MinScore
	if run.spec.minScore != nil {
		minScore = *run.spec.minScore
	}

	detector := resonance.NewDetector(kStar, minScore)
	selection := detector.Detect(demandVector, e.index.Candidates())
	if len(selection.Agents) == 0 {
		log.Warn("No agents resonated with the demand",
			"candidates", len(profiles),
			"min_score", minScore)
		return nil, failWith(models.ReasonNoAgents, fmt.Errorf("no agents resonated with the demand"))
	}
	return &selection, nil
}

func (e *Engine) failSession(run *sessionRun, reason string, cause error, log *slog.Logger) {
	log.Error("Negotiation failed", "reason", reason, "error", cause)
	run.update(func(s *models.Session) { s.FailureReason = reason })
	seq, pubErr := e.publisher.PublishSessionFailed(run.sessionID, events.SessionTerminalPayload{
		ParentSessionID: run.spec.parentID,
		Reason:          reason,
	})
	e.record(run, seq, pubErr)
	run.setState(models.StateFailed)
}

func (e *Engine) cancelSession(run *sessionRun, reason string, log *slog.Logger) {
	log.Info("Negotiation cancelled", "reason", reason)
	run.update(func(s *models.Session) { s.FailureReason = reason })
	seq, pubErr := e.publisher.PublishSessionCancelled(run.sessionID, events.SessionTerminalPayload{
		ParentSessionID: run.spec.parentID,
		Reason:          reason,
	})
	e.record(run, seq, pubErr)
	run.setState(models.StateCancelled)
}

// succeededAgentIDs returns the sorted ids of agents whose offers succeeded.
func succeededAgentIDs(offers map[string]*models.Offer) []string {
	ids := make([]string, 0, len(offers))
	for id, offer := range offers {
		if !offer.Failed() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
