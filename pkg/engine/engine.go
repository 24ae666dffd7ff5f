// Package engine drives negotiation sessions through their lifecycle:
// formulation, confirmation, resonance, parallel offer collection, the
// bounded center loop, and plan delivery. Each session runs on its own
// goroutine that exclusively owns the session record.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parley-ai/parley/pkg/config"
	"github.com/parley-ai/parley/pkg/events"
	"github.com/parley-ai/parley/pkg/models"
	"github.com/parley-ai/parley/pkg/profile"
	"github.com/parley-ai/parley/pkg/resonance"
	"github.com/parley-ai/parley/pkg/session"
	"github.com/parley-ai/parley/pkg/skill"
	"github.com/parley-ai/parley/pkg/tools"
)

var (
	// ErrNotFound is returned for unknown session ids.
	ErrNotFound = session.ErrNotFound

	// ErrInvalidTransition is returned when an operation does not apply to
	// the session's current state.
	ErrInvalidTransition = errors.New("operation not valid in the session's current state")

	// ErrShuttingDown is returned by Submit after Shutdown has begun.
	ErrShuttingDown = errors.New("engine is shutting down")
)

// Dependencies are the collaborators an Engine needs.
type Dependencies struct {
	Sessions  *session.Manager
	Profiles  profile.Store
	Encoder   resonance.Encoder
	Index     *resonance.Index
	Skills    *skill.Runner
	Tools     *tools.Registry
	Publisher *events.Publisher
}

// Engine owns all running negotiation sessions.
type Engine struct {
	engineCfg *config.EngineConfig
	resCfg    *config.ResonanceConfig

	sessions  *session.Manager
	profiles  profile.Store
	encoder   resonance.Encoder
	index     *resonance.Index
	skills    *skill.Runner
	tools     *tools.Registry
	publisher *events.Publisher

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu   sync.Mutex
	runs map[string]*sessionRun
	wg   sync.WaitGroup
}

// New creates an engine. The configuration must already be validated.
func New(cfg *config.Config, deps Dependencies) *Engine {
	baseCtx, baseCancel := context.WithCancel(context.Background())
	return &Engine{
		engineCfg:  cfg.Engine,
		resCfg:     cfg.Resonance,
		sessions:   deps.Sessions,
		profiles:   deps.Profiles,
		encoder:    deps.Encoder,
		index:      deps.Index,
		skills:     deps.Skills,
		tools:      deps.Tools,
		publisher:  deps.Publisher,
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
		runs:       make(map[string]*sessionRun),
	}
}

// SubmitOptions are per-session overrides for Submit.
type SubmitOptions struct {
	// Hints are optional requester-profile enrichments fed to formulation.
	Hints []string

	// KStar overrides the configured selection size when positive.
	KStar int

	// MinScore overrides the configured resonance threshold when set.
	MinScore *float64

	// AutoConfirm skips the confirmation gate and freezes the formulated
	// text as produced.
	AutoConfirm bool
}

// sessionSpec is the resolved description of one session run. Child sessions
// carry a preset formulated text and participant list.
type sessionSpec struct {
	rawIntent   string
	hints       []string
	kStar       int
	minScore    *float64
	autoConfirm bool

	formulated   string
	participants []string
	depth        int
	parentID     string
}

// confirmMsg carries a user confirmation (optionally with amended text) into
// the session goroutine.
type confirmMsg struct {
	text  string
	reply chan error
}

// sessionRun is the engine-side handle on one running session goroutine.
type sessionRun struct {
	sessionID string
	handle    *session.Handle
	spec      sessionSpec

	ctx    context.Context
	cancel context.CancelFunc
	inbox  chan confirmMsg
	done   chan struct{}

	mu           sync.Mutex
	cancelReason string
}

func (r *sessionRun) update(fn func(*models.Session)) {
	r.handle.Update(fn)
}

func (r *sessionRun) setState(state models.SessionState) {
	r.handle.Update(func(s *models.Session) { s.State = state })
}

// setCancelReason records the reason for a pending cancellation. The first
// writer wins.
func (r *sessionRun) setCancelReason(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelReason == "" {
		r.cancelReason = reason
	}
}

func (r *sessionRun) cancelReasonOr(fallback string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelReason != "" {
		return r.cancelReason
	}
	return fallback
}

// Submit starts a new root negotiation for the raw intent and returns the
// created session snapshot. The negotiation proceeds asynchronously.
func (e *Engine) Submit(rawIntent string, opts SubmitOptions) (*models.Session, error) {
	rawIntent = strings.TrimSpace(rawIntent)
	if rawIntent == "" {
		return nil, fmt.Errorf("raw intent must not be empty")
	}
	if e.baseCtx.Err() != nil {
		return nil, ErrShuttingDown
	}

	run := e.newRun(sessionSpec{
		rawIntent:   rawIntent,
		hints:       opts.Hints,
		kStar:       opts.KStar,
		minScore:    opts.MinScore,
		autoConfirm: opts.AutoConfirm,
	})
	e.launch(run)
	return run.handle.Snapshot(), nil
}

// Confirm freezes the session's formulated text and releases it into the
// resonance phase. A non-empty text replaces the formulated demand.
func (e *Engine) Confirm(sessionID, text string) error {
	run, ok := e.run(sessionID)
	if !ok {
		if _, err := e.sessions.Snapshot(sessionID); err != nil {
			return err
		}
		return ErrInvalidTransition
	}
	if run.handle.Snapshot().State != models.StateAwaitingConfirmation {
		return ErrInvalidTransition
	}

	msg := confirmMsg{text: strings.TrimSpace(text), reply: make(chan error, 1)}
	select {
	case run.inbox <- msg:
		return <-msg.reply
	case <-run.done:
		return ErrInvalidTransition
	}
}

// Cancel requests cancellation of a running session. Cancelling a session
// that already reached a terminal state is a no-op.
func (e *Engine) Cancel(sessionID string) error {
	run, ok := e.run(sessionID)
	if !ok {
		snap, err := e.sessions.Snapshot(sessionID)
		if err != nil {
			return err
		}
		if snap.State.IsTerminal() {
			return nil
		}
		return ErrInvalidTransition
	}
	run.setCancelReason(models.ReasonUserCancelled)
	run.cancel()
	return nil
}

// Session returns a snapshot of one session.
func (e *Engine) Session(sessionID string) (*models.Session, error) {
	return e.sessions.Snapshot(sessionID)
}

// Sessions returns snapshots of all known sessions, terminal ones included.
func (e *Engine) Sessions() []*models.Session {
	return e.sessions.List()
}

// Shutdown cancels all running sessions and waits for their goroutines to
// finish or the context to expire.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.baseCancel()

	finished := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown wait: %w", ctx.Err())
	}
}

// newRun creates the session record and registers its run without starting
// the goroutine.
func (e *Engine) newRun(spec sessionSpec) *sessionRun {
	sess := &models.Session{
		ID:              uuid.NewString(),
		State:           models.StateCreated,
		Demand:          models.DemandSnapshot{RawIntent: spec.rawIntent},
		Depth:           spec.depth,
		ParentSessionID: spec.parentID,
		CreatedAt:       time.Now().UTC(),
	}
	handle := e.sessions.Create(sess)

	ctx, cancel := context.WithCancel(e.baseCtx)
	run := &sessionRun{
		sessionID: sess.ID,
		handle:    handle,
		spec:      spec,
		ctx:       ctx,
		cancel:    cancel,
		inbox:     make(chan confirmMsg),
		done:      make(chan struct{}),
	}

	e.mu.Lock()
	e.runs[sess.ID] = run
	e.mu.Unlock()
	return run
}

func (e *Engine) launch(run *sessionRun) {
	e.wg.Add(1)
	go e.runSession(run)
}

func (e *Engine) run(sessionID string) (*sessionRun, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	run, ok := e.runs[sessionID]
	return run, ok
}

func (e *Engine) removeRun(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.runs, sessionID)
}

// record stores the published event's sequence number on the session.
// Publish failures are logged and otherwise ignored; the session itself
// remains authoritative.
func (e *Engine) record(run *sessionRun, seq int, err error) {
	if err != nil {
		slog.Warn("Failed to publish session event",
			"session_id", run.sessionID,
			"error", err)
		return
	}
	run.update(func(s *models.Session) {
		if seq > s.LastSeq {
			s.LastSeq = seq
		}
	})
}

// lookupProfile resolves an agent profile, preferring the resonance index
// over the backing store.
func (e *Engine) lookupProfile(ctx context.Context, agentID string) *models.AgentProfile {
	if p := e.index.Profile(agentID); p != nil {
		return p
	}
	p, err := e.profiles.GetProfile(ctx, agentID)
	if err != nil {
		return nil
	}
	return p
}
