// Package machine advances a session through its phases. Every transition re-reads
// the store, performs the writes and returns the snapshot to apply locally.
package machine

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/engagements/go/internal/game"
	"github.com/mcdev12/engagements/go/internal/game/scoring"
	"github.com/mcdev12/engagements/go/internal/models"
)

// Store is the part of the game store the machine writes to.
type Store interface {
	scoring.Store
	ListParticipants(ctx context.Context, sessionID string) ([]models.Participant, error)
	StartQuestion(ctx context.Context, sessionID string, start models.QuestionStart) error
}

// QuestionSource lists the questions of a set.
type QuestionSource interface {
	ListQuestions(ctx context.Context, setID string) ([]models.Question, error)
}

// Request describes the transition the host asked for.
type Request struct {
	// From is the phase the host saw. If the store has moved on the request is a
	// conflict and nothing is written.
	From models.Phase
	// Confirmed skips the check that every participant answered or voted.
	Confirmed bool
	// Categories restricts which questions may be drawn.
	Categories []string
}

type Machine struct {
	store  Store
	bank   QuestionSource
	scorer *scoring.Scorer

	rngMu sync.Mutex
	rng   *rand.Rand
}

func New(store Store, bank QuestionSource, scorer *scoring.Scorer) *Machine {
	seed := uint64(time.Now().UnixNano())
	return &Machine{
		store:  store,
		bank:   bank,
		scorer: scorer,
		rng:    rand.New(rand.NewPCG(seed, seed>>1)),
	}
}

// SetRand replaces the random source used for drawing questions.
func (m *Machine) SetRand(r *rand.Rand) {
	m.rngMu.Lock()
	m.rng = r
	m.rngMu.Unlock()
}

// Advance moves the session one phase forward.
func (m *Machine) Advance(ctx context.Context, sessionID string, req Request) (models.Snapshot, error) {
	snap, err := m.store.GetState(ctx, sessionID)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("failed to read state: %w", err)
	}
	if req.From != "" && snap.Phase != req.From {
		return snap, fmt.Errorf("%w: session is in %s, not %s", game.ErrConflict, snap.Phase, req.From)
	}

	mode := ModeFor(snap.Type())
	to, err := mode.Advance(snap.Phase)
	if err != nil {
		return snap, err
	}

	logger := log.With().
		Str("session_id", sessionID).
		Str("from", string(snap.Phase)).
		Str("to", string(to)).
		Logger()

	var next models.Snapshot
	switch to {
	case models.PhaseQuestion:
		next, err = m.startQuestion(ctx, snap, req)
	case models.PhaseVoting:
		next, err = m.openVoting(ctx, snap, req)
	case models.PhaseResults:
		next, err = m.showResults(ctx, snap, mode, req)
	}
	if err != nil {
		logger.Warn().Err(err).Msg("Transition not applied")
		return snap, err
	}

	logger.Info().Str("question_number", next.CurrentQuestionNumber).Msg("Phase advanced")
	return next, nil
}

func (m *Machine) startQuestion(ctx context.Context, snap models.Snapshot, req Request) (models.Snapshot, error) {
	qn := snap.NextQuestionNumber()
	if snap.HasPlayed(qn) {
		return snap, fmt.Errorf("%w: question %s already started", game.ErrConflict, qn)
	}

	questions, err := m.bank.ListQuestions(ctx, snap.QuestionSetID)
	if err != nil {
		return snap, fmt.Errorf("failed to load question set %s: %w", snap.QuestionSetID, err)
	}

	m.rngMu.Lock()
	q, err := Draw(questions, snap.UsedQuestionRefs, req.Categories, m.rng)
	m.rngMu.Unlock()
	if err != nil {
		return snap, err
	}

	start := models.QuestionStart{QuestionNumber: qn, QuestionRef: q.ID, SetID: snap.QuestionSetID, Category: q.Category}
	if err := m.store.StartQuestion(ctx, snap.SessionID, start); err != nil {
		return snap, err
	}

	next := snap.Clone()
	frozen := q.Clone()
	next.Phase = models.PhaseQuestion
	next.CurrentQuestionNumber = qn
	next.CurrentQuestion = &frozen
	next.PlayedQuestions = append(next.PlayedQuestions, qn)
	next.UsedQuestionRefs = append(next.UsedQuestionRefs, q.ID)
	if err := m.store.WriteState(ctx, next); err != nil {
		return snap, err
	}
	return next, nil
}

func (m *Machine) openVoting(ctx context.Context, snap models.Snapshot, req Request) (models.Snapshot, error) {
	qn := snap.CurrentQuestionNumber
	answers, err := m.store.ListAnswers(ctx, snap.SessionID, qn)
	if err != nil {
		return snap, err
	}
	if len(answers) == 0 {
		return snap, fmt.Errorf("%w for question %s", game.ErrNoAnswers, qn)
	}
	if !req.Confirmed {
		if err := m.confirm(ctx, snap.SessionID, "answered", len(answers)); err != nil {
			return snap, err
		}
	}

	next := snap.Clone()
	next.Phase = models.PhaseVoting
	if err := m.store.WriteState(ctx, next); err != nil {
		return snap, err
	}
	return next, nil
}

func (m *Machine) showResults(ctx context.Context, snap models.Snapshot, mode Mode, req Request) (models.Snapshot, error) {
	qn := snap.CurrentQuestionNumber
	if mode.RequiresVoting() && !req.Confirmed {
		votes, err := m.store.ListVotes(ctx, snap.SessionID, qn)
		if err != nil {
			return snap, err
		}
		if err := m.confirm(ctx, snap.SessionID, "voted", len(votes)); err != nil {
			return snap, err
		}
	}

	res, err := m.scorer.ScoreQuestion(ctx, snap.SessionID, qn, mode)
	if err != nil {
		return snap, err
	}
	if !res.Skipped {
		return res.Snapshot, nil
	}

	// Already scored, only the phase write may be missing.
	next := res.Snapshot
	if next.Phase == models.PhaseResults {
		return next, fmt.Errorf("%w: question %s already scored", game.ErrConflict, qn)
	}
	next.Phase = models.PhaseResults
	if err := m.store.WriteState(ctx, next); err != nil {
		return snap, err
	}
	return next, nil
}

// confirm returns a ConfirmationError when fewer than all participants responded.
func (m *Machine) confirm(ctx context.Context, sessionID, stage string, responded int) error {
	ps, err := m.store.ListParticipants(ctx, sessionID)
	if err != nil {
		return err
	}
	if responded < len(ps) {
		return &game.ConfirmationError{Stage: stage, Responded: responded, Expected: len(ps)}
	}
	return nil
}
