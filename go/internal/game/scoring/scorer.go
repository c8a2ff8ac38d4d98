package scoring

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/engagements/go/internal/models"
)

// Store is the part of the game store the scorer reads and writes.
type Store interface {
	GetState(ctx context.Context, sessionID string) (models.Snapshot, error)
	ListAnswers(ctx context.Context, sessionID, questionNumber string) ([]models.Answer, error)
	ListVotes(ctx context.Context, sessionID, questionNumber string) ([]models.Vote, error)
	ApplyScores(ctx context.Context, sessionID, questionNumber string, deltas map[string]int) error
	WriteState(ctx context.Context, snap models.Snapshot) error
}

// Result describes one scoring pass.
type Result struct {
	QuestionNumber string
	Skipped        bool
	Deltas         map[string]int
	Snapshot       models.Snapshot
}

type Scorer struct {
	store  Store
	points int
}

func NewScorer(store Store, triviaPoints int) *Scorer {
	if triviaPoints <= 0 {
		triviaPoints = DefaultTriviaPoints
	}
	return &Scorer{store: store, points: triviaPoints}
}

// ScoreQuestion scores questionNumber at most once. When the store already lists it
// in scoredQuestions nothing is written. Otherwise scores are incremented first and the
// snapshot with scoredQuestions and phase=results is written second, so a crash in
// between is recovered from scoredQuestions rather than from the phase.
func (s *Scorer) ScoreQuestion(ctx context.Context, sessionID, questionNumber string, rules Rules) (Result, error) {
	snap, err := s.store.GetState(ctx, sessionID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read state before scoring: %w", err)
	}
	if snap.HasScored(questionNumber) {
		log.Debug().
			Str("session_id", sessionID).
			Str("question_number", questionNumber).
			Msg("Question already scored, skipping")
		return Result{QuestionNumber: questionNumber, Skipped: true, Snapshot: snap}, nil
	}

	in := Input{Points: s.points}
	if snap.CurrentQuestionNumber == questionNumber {
		in.Question = snap.CurrentQuestion
	}
	in.Answers, err = s.store.ListAnswers(ctx, sessionID, questionNumber)
	if err != nil {
		return Result{}, err
	}
	if rules.RequiresVoting() {
		in.Votes, err = s.store.ListVotes(ctx, sessionID, questionNumber)
		if err != nil {
			return Result{}, err
		}
	}

	deltas := rules.Score(in)
	if len(deltas) > 0 {
		if err := s.store.ApplyScores(ctx, sessionID, questionNumber, deltas); err != nil {
			return Result{}, err
		}
	}

	snap.ScoredQuestions = append(snap.ScoredQuestions, questionNumber)
	snap.Phase = models.PhaseResults
	if err := s.store.WriteState(ctx, snap); err != nil {
		return Result{}, fmt.Errorf("scores applied but phase write failed: %w", err)
	}

	log.Info().
		Str("session_id", sessionID).
		Str("question_number", questionNumber).
		Int("answers", len(in.Answers)).
		Int("votes", len(in.Votes)).
		Interface("deltas", deltas).
		Msg("Question scored")

	return Result{QuestionNumber: questionNumber, Deltas: deltas, Snapshot: snap}, nil
}
