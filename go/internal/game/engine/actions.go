package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/mcdev12/engagements/go/internal/game"
	"github.com/mcdev12/engagements/go/internal/game/enrichment"
	"github.com/mcdev12/engagements/go/internal/game/machine"
	"github.com/mcdev12/engagements/go/internal/game/signal"
	"github.com/mcdev12/engagements/go/internal/models"
)

var (
	// ErrRole is returned when an action is not available to the engine's role.
	ErrRole = errors.New("action not allowed for this role")
	// ErrNotJoined is returned when a participant acts before joining.
	ErrNotJoined = errors.New("participant has not joined")
)

// StartQuestion draws the next question and opens it.
func (e *Engine) StartQuestion(ctx context.Context, categories []string) (models.Snapshot, error) {
	return e.advance(ctx, machine.Request{Categories: categories}, models.PhaseWaiting, models.PhaseResults)
}

// CloseQuestion stops answering. Call-and-answer sessions move to voting, trivia
// sessions are scored and move to results. Unless confirmed it fails with a
// *game.ConfirmationError when some participants have not answered.
func (e *Engine) CloseQuestion(ctx context.Context, confirmed bool) (models.Snapshot, error) {
	return e.advance(ctx, machine.Request{Confirmed: confirmed}, models.PhaseQuestion)
}

// ShowResults scores the current question and shows the results. Trivia sessions may
// skip straight from the question.
func (e *Engine) ShowResults(ctx context.Context, confirmed bool) (models.Snapshot, error) {
	var gt models.GameType
	if err := e.do(ctx, func() { gt = e.mirror.Snapshot().Type() }); err != nil {
		return models.Snapshot{}, err
	}
	allowed := []models.Phase{models.PhaseVoting}
	if gt == models.GameTypeTrivia {
		allowed = append(allowed, models.PhaseQuestion)
	}
	return e.advance(ctx, machine.Request{Confirmed: confirmed}, allowed...)
}

func (e *Engine) advance(ctx context.Context, req machine.Request, allowed ...models.Phase) (models.Snapshot, error) {
	if e.cfg.Role != RoleHost {
		return models.Snapshot{}, ErrRole
	}

	var current models.Snapshot
	if err := e.do(ctx, func() { current = e.mirror.Snapshot() }); err != nil {
		return models.Snapshot{}, err
	}
	if !slices.Contains(allowed, current.Phase) {
		return current, fmt.Errorf("%w: cannot do that from %s", game.ErrIllegalTransition, current.Phase)
	}
	req.From = current.Phase

	next, err := e.machine.Advance(ctx, e.cfg.SessionID, req)
	if errors.Is(err, game.ErrConflict) {
		// Someone else already moved the session. Catch up instead of failing.
		e.logger.Info().Err(err).Msg("Transition already handled, resyncing")
		e.refresh(signal.KindSync)
		return current, nil
	}
	if err != nil {
		return current, err
	}

	err = e.do(ctx, func() {
		e.afterChange(e.mirror.ProposeLocal(e.owner, next))
	})
	return next, err
}

// Join registers the participant under name, or rejoins if the name is taken by a
// previous session of the same person.
func (e *Engine) Join(ctx context.Context, name string) (models.JoinResult, error) {
	if e.cfg.Role != RoleParticipant {
		return models.JoinResult{}, ErrRole
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return models.JoinResult{}, fmt.Errorf("participant name is required")
	}

	res, err := e.store.Join(ctx, e.cfg.SessionID, name)
	if err != nil {
		return models.JoinResult{}, fmt.Errorf("failed to join session: %w", err)
	}
	if e.names != nil {
		if err := e.names.SetParticipantName(e.cfg.SessionID, name); err != nil {
			e.logger.Warn().Err(err).Msg("Failed to remember participant name")
		}
	}

	e.logger.Info().
		Str("participant", name).
		Bool("rejoined", res.Rejoined).
		Msg("Joined session")

	err = e.do(ctx, func() {
		e.mirror.SetSelf(name)
		e.publish()
	})
	e.refresh(signal.KindParticipants)
	return res, err
}

// SubmitAnswer submits content as the participant's answer to the current question.
func (e *Engine) SubmitAnswer(ctx context.Context, content string) error {
	if e.cfg.Role != RoleParticipant {
		return ErrRole
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("answer is empty")
	}

	var (
		snap     models.Snapshot
		self     string
		answered bool
	)
	if err := e.do(ctx, func() {
		snap = e.mirror.Snapshot()
		self = e.mirror.Self()
		answered = e.mirror.HasAnswered(self)
	}); err != nil {
		return err
	}
	switch {
	case self == "":
		return ErrNotJoined
	case snap.Phase != models.PhaseQuestion:
		return fmt.Errorf("%w: answers are closed", game.ErrIllegalTransition)
	case answered:
		return fmt.Errorf("%w: answer for question %s", game.ErrSubmission, snap.CurrentQuestionNumber)
	}

	now := e.clock.Now().UTC()
	err := e.store.SubmitAnswer(ctx, e.cfg.SessionID, models.Answer{
		QuestionNumber:  snap.CurrentQuestionNumber,
		ParticipantName: self,
		Content:         content,
		SubmittedAt:     &now,
	})
	if err != nil {
		return fmt.Errorf("failed to submit answer: %w", err)
	}
	e.refresh(signal.KindAnswers)
	return nil
}

// SetRank gives rank to the answer at position in the participant's draft ranking and
// saves the draft. Rank zero clears the position.
func (e *Engine) SetRank(ctx context.Context, position, rank int) (map[int]int, error) {
	if e.cfg.Role != RoleParticipant {
		return nil, ErrRole
	}

	var (
		draft map[int]int
		qn    string
		self  string
		fail  error
	)
	err := e.do(ctx, func() {
		self = e.mirror.Self()
		qn = e.mirror.CurrentQuestion()
		answers := len(e.mirror.Answers())
		switch {
		case self == "":
			fail = ErrNotJoined
		case e.mirror.Phase() != models.PhaseVoting:
			fail = fmt.Errorf("%w: voting is closed", game.ErrIllegalTransition)
		case e.mirror.HasVoted(self):
			fail = fmt.Errorf("%w: vote for question %s", game.ErrSubmission, qn)
		case position < 0 || position >= answers:
			fail = fmt.Errorf("answer position %d out of range", position)
		case rank < 0 || rank > models.RankSlots(answers):
			fail = fmt.Errorf("rank %d out of range", rank)
		default:
			draft = e.mirror.SetRank(e.owner, position, rank)
			e.publish()
		}
	})
	if err != nil {
		return nil, err
	}
	if fail != nil {
		return nil, fail
	}

	e.saveDraft(models.PartialVote{QuestionNumber: qn, ParticipantName: self, Rankings: draft})
	return draft, nil
}

// saveDraft persists pv as the participant's partial vote. Saves run one at a time and
// only the newest draft queued behind a running save is written, so an older draft
// never lands after a newer one.
func (e *Engine) saveDraft(pv models.PartialVote) {
	e.saveMu.Lock()
	e.nextSave = &pv
	if e.saving {
		e.saveMu.Unlock()
		return
	}
	e.saving = true
	e.saveMu.Unlock()

	if !e.spawn(e.drainSaves) {
		e.saveMu.Lock()
		e.saving = false
		e.saveMu.Unlock()
	}
}

func (e *Engine) drainSaves(ctx context.Context) {
	for {
		e.saveMu.Lock()
		pv := e.nextSave
		e.nextSave = nil
		if pv == nil || ctx.Err() != nil {
			e.saving = false
			e.saveMu.Unlock()
			return
		}
		e.saveMu.Unlock()

		if err := e.store.SavePartialVote(ctx, e.cfg.SessionID, *pv); err != nil && ctx.Err() == nil {
			e.logger.Warn().Err(err).Str("question_number", pv.QuestionNumber).Msg("Failed to save partial vote")
		}
	}
}

// SubmitVote submits the draft ranking as the participant's vote.
func (e *Engine) SubmitVote(ctx context.Context) error {
	if e.cfg.Role != RoleParticipant {
		return ErrRole
	}

	var (
		vote  models.Vote
		fail  error
		count int
	)
	if err := e.do(ctx, func() {
		self := e.mirror.Self()
		vote = models.Vote{
			QuestionNumber: e.mirror.CurrentQuestion(),
			VoterName:      self,
			Rankings:       e.mirror.Draft(),
		}
		count = len(e.mirror.Answers())
		switch {
		case self == "":
			fail = ErrNotJoined
		case e.mirror.Phase() != models.PhaseVoting:
			fail = fmt.Errorf("%w: voting is closed", game.ErrIllegalTransition)
		case e.mirror.HasVoted(self):
			fail = fmt.Errorf("%w: vote for question %s", game.ErrSubmission, vote.QuestionNumber)
		}
	}); err != nil {
		return err
	}
	if fail != nil {
		return fail
	}
	if err := models.ValidateRanking(vote.Rankings, count); err != nil {
		return fmt.Errorf("invalid ranking: %w", err)
	}

	if err := e.store.SubmitVote(ctx, e.cfg.SessionID, vote); err != nil {
		return fmt.Errorf("failed to submit vote: %w", err)
	}
	err := e.do(ctx, func() {
		e.mirror.ClearDraft()
		e.publish()
	})
	e.refresh(signal.KindVotes)
	return err
}

// RetryEnrichment restarts enrichment for the current question after a timeout or
// failure.
func (e *Engine) RetryEnrichment(ctx context.Context) (enrichment.Update, error) {
	if e.cfg.Role != RoleHost {
		return enrichment.Update{}, ErrRole
	}
	var u enrichment.Update
	err := e.do(ctx, func() {
		snap := e.mirror.Snapshot()
		if snap.Phase != models.PhaseResults {
			return
		}
		u = e.enrich.Retry(e.cfg.SessionID, snap.CurrentQuestionNumber)
		e.enrichQN = snap.CurrentQuestionNumber
		e.mirror.SetEnrichment(u)
		e.publish()
	})
	return u, err
}
