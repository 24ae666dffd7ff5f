package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/parley-ai/parley/pkg/events"
	"github.com/parley-ai/parley/pkg/models"
	"github.com/parley-ai/parley/pkg/skill"
)

// offerOutcome is one agent's offer attempt, success or failure.
type offerOutcome struct {
	agentID string
	offer   *skill.OfferResult
	err     error
}

// collectOffers fans out one offer skill invocation per selected agent and
// waits at the count barrier until every agent has exactly one entry in the
// offer table. Failures count as arrivals. Returns the number of successful
// offers; a context error means the session was cancelled mid-collection and
// late results are discarded.
func (e *Engine) collectOffers(ctx context.Context, run *sessionRun, demand string, selection *models.AgentSelection) (int, error) {
	run.setState(models.StateOffering)

	agentIDs := selection.AgentIDs()
	profiles := make(map[string]*models.AgentProfile, len(agentIDs))
	for _, id := range agentIDs {
		if p := e.lookupProfile(ctx, id); p != nil {
			profiles[id] = p
		}
	}

	resultsCh := make(chan offerOutcome, len(agentIDs))
	closeCh := make(chan struct{})
	for _, agentID := range agentIDs {
		go e.produceOffer(ctx, agentID, demand, profiles[agentID], forbiddenNamesFor(agentID, agentIDs, profiles), resultsCh, closeCh)
	}

	run.setState(models.StateBarrierWaiting)

	succeeded := 0
	for received := 0; received < len(agentIDs); received++ {
		select {
		case out := <-resultsCh:
			offer := &models.Offer{
				AgentID:    out.agentID,
				ReceivedAt: time.Now().UTC(),
			}
			if out.err != nil {
				offer.Error = out.err.Error()
				slog.Warn("Agent failed to produce an offer",
					"session_id", run.sessionID,
					"agent_id", out.agentID,
					"error", out.err)
			} else {
				offer.Content = out.offer.Content
				offer.Capabilities = out.offer.Capabilities
				succeeded++
			}
			run.update(func(s *models.Session) {
				if s.Offers == nil {
					s.Offers = make(map[string]*models.Offer, len(agentIDs))
				}
				s.Offers[out.agentID] = offer
			})
			if !offer.Failed() {
				seq, pubErr := e.publisher.PublishOfferReceived(run.sessionID, events.OfferReceivedPayload{
					ParentSessionID: run.spec.parentID,
					AgentID:         offer.AgentID,
					Content:         offer.Content,
					Capabilities:    offer.Capabilities,
				})
				e.record(run, seq, pubErr)
			}
		case <-ctx.Done():
			close(closeCh)
			return succeeded, ctx.Err()
		}
	}
	return succeeded, nil
}

// produceOffer runs one agent's offer skill and delivers the outcome. The
// offer prompt sees only the agent's own profile; forbiddenNames is used
// purely to validate the output.
func (e *Engine) produceOffer(ctx context.Context, agentID, demand string, p *models.AgentProfile, forbiddenNames []string, resultsCh chan<- offerOutcome, closeCh <-chan struct{}) {
	out := offerOutcome{agentID: agentID}
	if p == nil {
		out.err = fmt.Errorf("no profile for agent %q", agentID)
	} else {
		offerCtx := ctx
		if e.engineCfg.OfferTimeout > 0 {
			var cancel context.CancelFunc
			offerCtx, cancel = context.WithTimeout(ctx, e.engineCfg.OfferTimeout)
			defer cancel()
		}
		out.offer, out.err = e.skills.Offer(offerCtx, skill.OfferInput{
			Demand:  demand,
			Profile: p,
		}, forbiddenNames)
	}

	// Drop the result if the barrier has already been abandoned.
	select {
	case resultsCh <- out:
	case <-closeCh:
	}
}

// forbiddenNamesFor lists the identifiers of every other selected agent: ids
// plus display names. An offer mentioning any of them is fabricated knowledge.
func forbiddenNamesFor(agentID string, agentIDs []string, profiles map[string]*models.AgentProfile) []string {
	var names []string
	for _, other := range agentIDs {
		if other == agentID {
			continue
		}
		names = append(names, other)
		if p := profiles[other]; p != nil && p.DisplayName != "" && p.DisplayName != other {
			names = append(names, p.DisplayName)
		}
	}
	return names
}
