package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/parley-ai/parley/pkg/events"
	"github.com/parley-ai/parley/pkg/models"
	"github.com/parley-ai/parley/pkg/skill"
	"github.com/parley-ai/parley/pkg/tools"
)

// runCenter drives the bounded center loop: up to MaxCenterRounds free
// rounds, then one forced round restricted to the terminal tools. The first
// successful terminal tool call ends the loop with a plan.
func (e *Engine) runCenter(ctx context.Context, run *sessionRun, demand string, log *slog.Logger) (*models.Plan, error) {
	offers := run.handle.Snapshot().Offers
	toolCtx := &tools.Context{
		SessionID: run.sessionID,
		Demand:    demand,
		Offers:    offers,
		AskAgent: func(ctx context.Context, agentID, question string) (string, error) {
			return e.askAgent(ctx, demand, offers, agentID, question)
		},
		StartDiscovery: func(ctx context.Context, topic string, participantIDs []string) (string, error) {
			return e.startDiscovery(ctx, run, topic, participantIDs)
		},
		RecordGap: func(description string) {
			run.update(func(s *models.Session) { s.Gaps = append(s.Gaps, description) })
		},
	}

	maxRounds := e.engineCfg.MaxCenterRounds
	var prior []skill.RoundView
	for round := 1; round <= maxRounds+1; round++ {
		forced := round > maxRounds
		defs := e.tools.Definitions()
		if forced {
			defs = e.tools.TerminalDefinitions()
		}

		result, err := e.skills.Center(ctx, skill.CenterInput{
			Demand:      demand,
			Offers:      offerViews(offers, round),
			PriorRounds: prior,
			RoundNumber: round,
			Forced:      forced,
			Tools:       defs,
		})
		if err != nil {
			return nil, fmt.Errorf("center round %d: %w", round, err)
		}

		toolCtx.Round = round
		roundRec := models.CenterRound{Number: round, Reasoning: result.Reasoning, Forced: forced}
		var plan *models.Plan
		for _, call := range result.ToolCalls {
			res := e.tools.Dispatch(ctx, toolCtx, call)
			args := rawArgs(call.Arguments)
			roundRec.ToolCalls = append(roundRec.ToolCalls, models.ToolCallRecord{
				CallID:    call.ID,
				Name:      call.Name,
				Arguments: args,
				Result:    res.Content,
				IsError:   res.IsError,
			})
			seq, pubErr := e.publisher.PublishCenterToolCall(run.sessionID, events.CenterToolCallPayload{
				ParentSessionID: run.spec.parentID,
				RoundNumber:     round,
				ToolName:        call.Name,
				ToolArgs:        args,
				Result:          res.Content,
				IsError:         res.IsError,
			})
			e.record(run, seq, pubErr)
			if res.Terminating && !res.IsError && plan == nil {
				plan = res.Plan
			}
			if ctx.Err() != nil {
				run.update(func(s *models.Session) { s.Rounds = append(s.Rounds, roundRec) })
				return nil, ctx.Err()
			}
		}
		run.update(func(s *models.Session) { s.Rounds = append(s.Rounds, roundRec) })
		prior = append(prior, skill.RoundView{Number: round, Reasoning: result.Reasoning})

		if plan != nil {
			plan.CenterRounds = round
			log.Info("Center produced a terminal decision",
				"rounds", round,
				"rejected", plan.Rejected)
			return plan, nil
		}
		if forced {
			return nil, fmt.Errorf("forced final round ended without a terminal tool call")
		}
	}
	return nil, fmt.Errorf("center loop exhausted without a terminal tool call")
}

// askAgent relays a center question to one selected agent. The agent answers
// from its own profile and its own prior offer only.
func (e *Engine) askAgent(ctx context.Context, demand string, offers map[string]*models.Offer, agentID, question string) (string, error) {
	p := e.lookupProfile(ctx, agentID)
	if p == nil {
		return "", fmt.Errorf("no profile for agent %q", agentID)
	}
	ownOffer := ""
	if offer := offers[agentID]; offer != nil && !offer.Failed() {
		ownOffer = offer.Content
	}
	return e.skills.AnswerQuestion(ctx, skill.QuestionInput{
		Demand:   demand,
		Profile:  p,
		OwnOffer: ownOffer,
		Question: question,
	})
}

// startDiscovery spawns a depth-limited child negotiation on the topic with
// the given participants, blocks until it terminates, and returns the child's
// plan text as the tool result.
func (e *Engine) startDiscovery(ctx context.Context, run *sessionRun, topic string, participantIDs []string) (string, error) {
	depth := run.spec.depth + 1
	if depth > e.engineCfg.MaxRecursionDepth {
		return "", fmt.Errorf("recursion depth limit of %d reached", e.engineCfg.MaxRecursionDepth)
	}

	child := e.newRun(sessionSpec{
		rawIntent:    topic,
		formulated:   topic,
		autoConfirm:  true,
		participants: append([]string(nil), participantIDs...),
		depth:        depth,
		parentID:     run.sessionID,
	})
	seq, pubErr := e.publisher.PublishSubNegotiationStarted(run.sessionID, events.SubNegotiationStartedPayload{
		ParentSessionID: run.spec.parentID,
		ChildSessionID:  child.sessionID,
		Topic:           topic,
		ParticipantIDs:  participantIDs,
	})
	e.record(run, seq, pubErr)
	e.launch(child)

	select {
	case <-child.done:
	case <-ctx.Done():
		child.setCancelReason(run.cancelReasonOr(models.ReasonUserCancelled))
		child.cancel()
		<-child.done
		return "", ctx.Err()
	}

	snap, err := e.sessions.Snapshot(child.sessionID)
	if err != nil {
		return "", err
	}
	switch snap.State {
	case models.StateCompleted:
		if snap.Plan.Rejected {
			return "", fmt.Errorf("sub-negotiation rejected the topic: %s", snap.Plan.Text)
		}
		return snap.Plan.Text, nil
	case models.StateFailed:
		return "", fmt.Errorf("sub-negotiation failed: %s", snap.FailureReason)
	default:
		return "", fmt.Errorf("sub-negotiation cancelled")
	}
}

// offerViews renders the successful offers in canonical order for one center
// round. Round 1 sees full offer content; later rounds see the deterministic
// summary.
func offerViews(offers map[string]*models.Offer, round int) []skill.OfferView {
	views := make([]skill.OfferView, 0, len(offers))
	for _, offer := range offers {
		if offer.Failed() {
			continue
		}
		content := offer.Content
		if round > 1 {
			content = skill.SummarizeOffer(offer.AgentID, offer.Capabilities, offer.Content)
		}
		views = append(views, skill.OfferView{
			AgentID:      offer.AgentID,
			Capabilities: offer.Capabilities,
			Content:      content,
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].AgentID < views[j].AgentID })
	return views
}

// rawArgs returns tool call arguments as JSON, quoting anything that is not
// already valid JSON so event payloads always marshal.
func rawArgs(arguments string) json.RawMessage {
	if arguments == "" {
		return json.RawMessage("{}")
	}
	if json.Valid([]byte(arguments)) {
		return json.RawMessage(arguments)
	}
	return json.RawMessage(strconv.Quote(arguments))
}
