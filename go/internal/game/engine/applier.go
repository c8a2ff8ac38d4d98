package engine

import (
	"context"

	"github.com/mcdev12/engagements/go/internal/game/enrichment"
	"github.com/mcdev12/engagements/go/internal/game/mirror"
	"github.com/mcdev12/engagements/go/internal/game/signal"
	"github.com/mcdev12/engagements/go/internal/models"
)

// applier hands reconciled data to the engine loop.
type applier struct {
	e *Engine
}

func (a applier) ApplyState(ctx context.Context, snap models.Snapshot) (models.Snapshot, error) {
	var current models.Snapshot
	err := a.e.do(ctx, func() {
		a.e.afterChange(a.e.mirror.ApplySnapshot(snap))
		current = a.e.mirror.Snapshot()
	})
	return current, err
}

func (a applier) ApplyParticipants(ctx context.Context, ps []models.Participant) error {
	return a.e.do(ctx, func() {
		a.e.mirror.ApplyParticipants(ps)
		a.e.publish()
	})
}

func (a applier) ApplyAnswers(ctx context.Context, questionNumber string, answers []models.Answer) error {
	return a.e.do(ctx, func() {
		if a.e.mirror.ApplyAnswers(questionNumber, answers) {
			a.e.ensureEnrichment()
			a.e.publish()
		}
	})
}

func (a applier) ApplyVotes(ctx context.Context, questionNumber string, votes []models.Vote) error {
	return a.e.do(ctx, func() {
		if a.e.mirror.ApplyVotes(questionNumber, votes) {
			a.e.publish()
		}
	})
}

func (a applier) Current(ctx context.Context) (models.Snapshot, error) {
	var current models.Snapshot
	err := a.e.do(ctx, func() { current = a.e.mirror.Snapshot() })
	return current, err
}

func (a applier) EnrichmentReady(ctx context.Context, questionNumber string) error {
	e := a.e
	if e.cfg.Role == RoleHost || e.enrich.State(e.cfg.SessionID, questionNumber) == enrichment.StatePending {
		e.enrich.NotifyReady(e.cfg.SessionID, questionNumber)
		return nil
	}
	return e.fetchSummary(ctx, questionNumber)
}

// afterChange runs the follow-ups of an applied snapshot. It must run on the loop.
func (e *Engine) afterChange(c mirror.Change) {
	logger := e.logger.With().
		Str("outcome", string(c.Outcome)).
		Str("phase", string(c.Current.Phase)).
		Str("question_number", c.Current.CurrentQuestionNumber).
		Logger()

	switch c.Outcome {
	case mirror.OutcomeSuppressed:
		logger.Debug().Msg("Stale snapshot suppressed")
		return
	case mirror.OutcomeReverted:
		logger.Warn().Msg("Local change was not confirmed, reverted to store state")
	}
	if c.PhaseChanged || c.QuestionChanged {
		logger.Info().Str("previous_phase", string(c.Previous.Phase)).Msg("Session changed")
	}

	prev, cur := c.Previous, c.Current
	if c.QuestionChanged {
		e.refresh(signal.KindAnswers)
	}

	leftResults := prev.Phase == models.PhaseResults &&
		(cur.Phase != models.PhaseResults || c.QuestionChanged)
	if leftResults {
		e.enrich.Cancel(e.cfg.SessionID, prev.CurrentQuestionNumber)
		e.enrichQN = ""
		e.mirror.SetEnrichment(enrichment.Update{})
	}

	if c.PhaseChanged || c.QuestionChanged {
		switch cur.Phase {
		case models.PhaseVoting:
			e.refresh(signal.KindVotes)
			e.restoreDraft(cur.CurrentQuestionNumber)
		case models.PhaseResults:
			e.refresh(signal.KindVotes)
			e.refresh(signal.KindParticipants)
		}
	}

	e.ensureEnrichment()
	e.publish()
}

// ensureEnrichment asks for the current question's enrichment once the session is
// showing results for a question with at least one answer. Only hosts trigger
// generation; other roles watch for the host's result. It must run on the loop.
func (e *Engine) ensureEnrichment() {
	snap := e.mirror.Snapshot()
	qn := snap.CurrentQuestionNumber
	if snap.Phase != models.PhaseResults || qn == "" || e.enrichQN == qn {
		return
	}
	if len(e.mirror.Answers()) == 0 {
		return
	}
	e.enrichQN = qn

	if e.cfg.Role == RoleHost {
		e.mirror.SetEnrichment(e.enrich.Ensure(e.cfg.SessionID, qn))
		return
	}
	e.mirror.SetEnrichment(e.enrich.Watch(e.cfg.SessionID, qn))
}

// fetchSummary reads an existing enrichment result without triggering generation.
func (e *Engine) fetchSummary(ctx context.Context, questionNumber string) error {
	res, err := e.store.GetSummary(ctx, e.cfg.SessionID, questionNumber)
	if err != nil || res == nil {
		return err
	}
	e.post(func() {
		if e.mirror.CurrentQuestion() != questionNumber {
			return
		}
		e.mirror.SetEnrichment(enrichment.Update{
			SessionID:      e.cfg.SessionID,
			QuestionNumber: questionNumber,
			State:          enrichment.StateReady,
			Result:         res,
		})
		e.publish()
	})
	return nil
}

// restoreDraft loads a saved partial vote for the participant. It must run on the loop.
func (e *Engine) restoreDraft(questionNumber string) {
	name := e.mirror.Self()
	if e.cfg.Role != RoleParticipant || name == "" || e.mirror.HasVoted(name) {
		return
	}

	e.spawn(func(ctx context.Context) {
		pv, err := e.store.GetPartialVote(ctx, e.cfg.SessionID, questionNumber, name)
		if err != nil {
			if ctx.Err() == nil {
				e.logger.Warn().Err(err).Str("question_number", questionNumber).Msg("Failed to load partial vote")
			}
			return
		}
		if pv == nil {
			return
		}
		e.post(func() {
			if e.mirror.RestoreDraft(*pv) {
				e.logger.Debug().Str("question_number", questionNumber).Msg("Restored draft ranking")
				e.publish()
			}
		})
	})
}
