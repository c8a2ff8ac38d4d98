// Package engine runs one participant's or host's view of a session. All mirror
// mutations happen on a single loop goroutine; store calls happen off it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/engagements/go/internal/game/channel"
	"github.com/mcdev12/engagements/go/internal/game/enrichment"
	"github.com/mcdev12/engagements/go/internal/game/machine"
	"github.com/mcdev12/engagements/go/internal/game/mirror"
	"github.com/mcdev12/engagements/go/internal/game/reconcile"
	"github.com/mcdev12/engagements/go/internal/game/scoring"
	"github.com/mcdev12/engagements/go/internal/game/signal"
	"github.com/mcdev12/engagements/go/internal/models"
)

// Role decides which actions an engine may take.
type Role string

const (
	RoleHost        Role = "host"
	RoleParticipant Role = "participant"
	RoleObserver    Role = "observer"
)

// Transport selects the signal producer.
type Transport string

const (
	TransportPush Transport = "push"
	TransportPoll Transport = "poll"
)

var ErrStopped = errors.New("engine stopped")

// Store is everything the engine needs from the game store.
type Store interface {
	machine.Store
	reconcile.Store
	enrichment.Store
	Join(ctx context.Context, sessionID, name string) (models.JoinResult, error)
	SubmitAnswer(ctx context.Context, sessionID string, answer models.Answer) error
	SubmitVote(ctx context.Context, sessionID string, vote models.Vote) error
	GetPartialVote(ctx context.Context, sessionID, questionNumber, participant string) (*models.PartialVote, error)
	SavePartialVote(ctx context.Context, sessionID string, draft models.PartialVote) error
}

// NameStore remembers the display name used per session.
type NameStore interface {
	ParticipantName(sessionID string) (string, error)
	SetParticipantName(sessionID, name string) error
}

type Config struct {
	SessionID       string
	Role            Role
	ParticipantName string
	Transport       Transport

	PollInterval      time.Duration
	SuppressionWindow time.Duration
	TriviaPoints      int

	Enrichment enrichment.Config
	Channel    channel.Config
}

func DefaultConfig() Config {
	return Config{
		Role:              RoleParticipant,
		Transport:         TransportPush,
		PollInterval:      signal.DefaultPollInterval,
		SuppressionWindow: 3 * time.Second,
		TriviaPoints:      scoring.DefaultTriviaPoints,
		Enrichment:        enrichment.DefaultConfig(),
		Channel:           channel.DefaultConfig(),
	}
}

type Engine struct {
	cfg    Config
	store  Store
	names  NameStore
	clock  clockwork.Clock
	owner  string
	logger zerolog.Logger

	mirror     *mirror.Mirror
	machine    *machine.Machine
	controller *reconcile.Controller
	enrich     *enrichment.Coordinator
	enrichQN   string

	tasks    chan func()
	updates  chan mirror.View
	switchCh chan Transport
	stopped  chan struct{}
	started  chan struct{}

	bgMu    sync.Mutex
	runCtx  context.Context
	closing bool
	bg      sync.WaitGroup

	saveMu   sync.Mutex
	saving   bool
	nextSave *models.PartialVote
}

func New(cfg Config, store Store, bank machine.QuestionSource, names NameStore, clock clockwork.Clock) *Engine {
	if cfg.SuppressionWindow <= 0 {
		cfg.SuppressionWindow = DefaultConfig().SuppressionWindow
	}
	if cfg.Transport == "" {
		cfg.Transport = TransportPush
	}
	if cfg.Role == "" {
		cfg.Role = RoleParticipant
	}

	e := &Engine{
		cfg:      cfg,
		store:    store,
		names:    names,
		clock:    clock,
		owner:    uuid.New().String()[:8],
		mirror:   mirror.New(clock, cfg.SessionID, cfg.SuppressionWindow),
		machine:  machine.New(store, bank, scoring.NewScorer(store, cfg.TriviaPoints)),
		tasks:    make(chan func(), 64),
		updates:  make(chan mirror.View, 1),
		switchCh: make(chan Transport, 1),
		stopped:  make(chan struct{}),
		started:  make(chan struct{}),
	}
	e.logger = log.With().
		Str("session_id", cfg.SessionID).
		Str("role", string(cfg.Role)).
		Str("instance", e.owner).
		Logger()
	e.controller = reconcile.NewController(store, applier{e}, cfg.SessionID)
	e.enrich = enrichment.NewCoordinator(store, clock, cfg.Enrichment, func(u enrichment.Update) {
		e.post(func() {
			if u.QuestionNumber != e.mirror.CurrentQuestion() {
				return
			}
			e.mirror.SetEnrichment(u)
			e.publish()
		})
	})
	return e
}

// Machine exposes the phase machine, mainly so tests can seed its random source.
func (e *Engine) Machine() *machine.Machine {
	return e.machine
}

// Updates delivers a fresh view after every change. Only the latest view is kept when
// the reader falls behind. The channel is closed when Run returns.
func (e *Engine) Updates() <-chan mirror.View {
	return e.updates
}

// Run drives the engine until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.bgMu.Lock()
	e.runCtx = ctx
	e.bgMu.Unlock()

	if e.cfg.ParticipantName == "" && e.names != nil && e.cfg.Role == RoleParticipant {
		if name, err := e.names.ParticipantName(e.cfg.SessionID); err != nil {
			e.logger.Warn().Err(err).Msg("Failed to read remembered participant name")
		} else {
			e.cfg.ParticipantName = name
		}
	}
	e.mirror.SetSelf(e.cfg.ParticipantName)

	e.bg.Add(1)
	go func() {
		defer e.bg.Done()
		e.superviseTransport(ctx)
	}()

	e.logger.Info().Str("transport", string(e.cfg.Transport)).Msg("Engine started")
	close(e.started)

	defer func() {
		close(e.stopped)
		cancel()
		e.bgMu.Lock()
		e.closing = true
		e.bgMu.Unlock()
		e.bg.Wait()
		e.enrich.Close()
		close(e.updates)
		e.logger.Info().Msg("Engine stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case task := <-e.tasks:
			task()
		}
	}
}

// do runs fn on the loop and waits for it to finish. ctx only bounds the wait for a
// free slot: once queued, fn may write the caller's variables, so do waits until fn
// has run or the loop has stopped without running it.
func (e *Engine) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	task := func() {
		defer close(done)
		fn()
	}
	select {
	case e.tasks <- task:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.stopped:
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-e.stopped:
		// The loop never runs a task after stopped is closed.
		select {
		case <-done:
			return nil
		default:
			return ErrStopped
		}
	}
}

// post queues fn on the loop without waiting.
func (e *Engine) post(fn func()) {
	select {
	case e.tasks <- fn:
	case <-e.stopped:
	}
}

// publish must run on the loop.
func (e *Engine) publish() {
	v := e.mirror.View()
	select {
	case e.updates <- v:
		return
	default:
	}
	select {
	case <-e.updates:
	default:
	}
	select {
	case e.updates <- v:
	default:
	}
}

// spawn runs fn in the background with the run context and reports whether it was
// started. Nothing is started before Run or once shutdown has begun.
func (e *Engine) spawn(fn func(ctx context.Context)) bool {
	e.bgMu.Lock()
	defer e.bgMu.Unlock()
	if e.runCtx == nil || e.closing {
		return false
	}
	ctx := e.runCtx
	e.bg.Add(1)
	go func() {
		defer e.bg.Done()
		fn(ctx)
	}()
	return true
}

// refresh schedules a reconciliation of kind in the background.
func (e *Engine) refresh(kind signal.Kind) {
	e.spawn(func(ctx context.Context) {
		e.controller.OnSignal(ctx, signal.Signal{Kind: kind, Source: signal.SourceLocal, SessionID: e.cfg.SessionID})
	})
}

// View returns the current view.
func (e *Engine) View(ctx context.Context) (mirror.View, error) {
	var v mirror.View
	err := e.do(ctx, func() { v = e.mirror.View() })
	return v, err
}

// WaitStarted blocks until Run has started or ctx ends.
func (e *Engine) WaitStarted(ctx context.Context) error {
	select {
	case <-e.started:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("engine did not start: %w", ctx.Err())
	}
}
