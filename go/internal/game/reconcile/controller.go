// Package reconcile turns change signals into fresh reads from the game store and
// hands the results to the mirror's owner.
package reconcile

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/engagements/go/internal/game/signal"
	"github.com/mcdev12/engagements/go/internal/models"
)

// Store is the read side of the game store.
type Store interface {
	GetState(ctx context.Context, sessionID string) (models.Snapshot, error)
	ListParticipants(ctx context.Context, sessionID string) ([]models.Participant, error)
	ListAnswers(ctx context.Context, sessionID, questionNumber string) ([]models.Answer, error)
	ListVotes(ctx context.Context, sessionID, questionNumber string) ([]models.Vote, error)
}

// Applier owns the mirror. Each call is an idempotent overwrite of one slice of it.
type Applier interface {
	// ApplyState offers a fetched snapshot and returns the snapshot the mirror holds
	// afterwards, which may be a local proposal if the fetched one was suppressed.
	ApplyState(ctx context.Context, snap models.Snapshot) (models.Snapshot, error)
	ApplyParticipants(ctx context.Context, ps []models.Participant) error
	ApplyAnswers(ctx context.Context, questionNumber string, answers []models.Answer) error
	ApplyVotes(ctx context.Context, questionNumber string, votes []models.Vote) error
	Current(ctx context.Context) (models.Snapshot, error)
	EnrichmentReady(ctx context.Context, questionNumber string) error
}

type resource string

const (
	resState        resource = "state"
	resParticipants resource = "participants"
	resAnswers      resource = "answers"
	resVotes        resource = "votes"
)

type flight struct {
	running bool
	dirty   bool
}

// Controller implements signal.Consumer. A resource is never fetched concurrently with
// itself; triggers that arrive during a fetch collapse into one trailing fetch.
type Controller struct {
	store     Store
	applier   Applier
	sessionID string

	mu      sync.Mutex
	flights map[resource]*flight
}

func NewController(store Store, applier Applier, sessionID string) *Controller {
	return &Controller{
		store:     store,
		applier:   applier,
		sessionID: sessionID,
		flights:   make(map[resource]*flight),
	}
}

// OnSignal re-reads whatever the signal names. Payload contents are not trusted beyond
// the question number of an enrichment notification.
func (c *Controller) OnSignal(ctx context.Context, s signal.Signal) {
	if s.SessionID != "" && s.SessionID != c.sessionID {
		log.Debug().
			Str("session_id", c.sessionID).
			Str("signal_session_id", s.SessionID).
			Msg("Ignoring signal for another session")
		return
	}

	switch s.Kind {
	case signal.KindSync, signal.KindState:
		c.Sync(ctx)
	case signal.KindParticipants:
		c.single(ctx, resParticipants, c.refreshParticipants)
	case signal.KindAnswers:
		c.single(ctx, resAnswers, c.refreshAnswers)
	case signal.KindVotes:
		c.single(ctx, resVotes, c.refreshVotes)
	case signal.KindEnrichment:
		if err := c.applier.EnrichmentReady(ctx, s.QuestionNumber); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Str("question_number", s.QuestionNumber).Msg("Failed to deliver enrichment notice")
		}
	}
}

// Sync refreshes the phase snapshot, then the answers and votes of the question the
// mirror is on and the participant list. Answers and votes are fetched in parallel.
func (c *Controller) Sync(ctx context.Context) {
	c.single(ctx, resState, c.refreshState)

	var wg sync.WaitGroup
	for res, fn := range map[resource]func(context.Context) error{
		resParticipants: c.refreshParticipants,
		resAnswers:      c.refreshAnswers,
		resVotes:        c.refreshVotes,
	} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.single(ctx, res, fn)
		}()
	}
	wg.Wait()
}

// single runs fetch unless one for res is already running, in which case it marks the
// running one dirty so that it fetches once more when done.
func (c *Controller) single(ctx context.Context, res resource, fetch func(context.Context) error) {
	c.mu.Lock()
	f, ok := c.flights[res]
	if !ok {
		f = &flight{}
		c.flights[res] = f
	}
	if f.running {
		f.dirty = true
		c.mu.Unlock()
		return
	}
	f.running = true
	c.mu.Unlock()

	for {
		if err := fetch(ctx); err != nil && ctx.Err() == nil {
			log.Warn().
				Err(err).
				Str("session_id", c.sessionID).
				Str("resource", string(res)).
				Msg("Reconciliation fetch failed")
		}

		c.mu.Lock()
		if f.dirty && ctx.Err() == nil {
			f.dirty = false
			c.mu.Unlock()
			continue
		}
		f.running = false
		f.dirty = false
		c.mu.Unlock()
		return
	}
}

func (c *Controller) refreshState(ctx context.Context) error {
	snap, err := c.store.GetState(ctx, c.sessionID)
	if err != nil {
		return err
	}
	_, err = c.applier.ApplyState(ctx, snap)
	return err
}

func (c *Controller) refreshParticipants(ctx context.Context) error {
	ps, err := c.store.ListParticipants(ctx, c.sessionID)
	if err != nil {
		return err
	}
	return c.applier.ApplyParticipants(ctx, ps)
}

func (c *Controller) refreshAnswers(ctx context.Context) error {
	cur, err := c.applier.Current(ctx)
	if err != nil {
		return err
	}
	if cur.Phase == models.PhaseWaiting || cur.CurrentQuestionNumber == "" {
		return nil
	}
	answers, err := c.store.ListAnswers(ctx, c.sessionID, cur.CurrentQuestionNumber)
	if err != nil {
		return err
	}
	return c.applier.ApplyAnswers(ctx, cur.CurrentQuestionNumber, answers)
}

func (c *Controller) refreshVotes(ctx context.Context) error {
	cur, err := c.applier.Current(ctx)
	if err != nil {
		return err
	}
	if cur.Phase != models.PhaseVoting && cur.Phase != models.PhaseResults {
		return nil
	}
	if cur.Type() == models.GameTypeTrivia {
		return nil
	}
	votes, err := c.store.ListVotes(ctx, c.sessionID, cur.CurrentQuestionNumber)
	if err != nil {
		return err
	}
	return c.applier.ApplyVotes(ctx, cur.CurrentQuestionNumber, votes)
}
