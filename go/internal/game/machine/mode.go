package machine

import (
	"fmt"

	"github.com/mcdev12/engagements/go/internal/game"
	"github.com/mcdev12/engagements/go/internal/game/scoring"
	"github.com/mcdev12/engagements/go/internal/models"
)

// Mode is the per game type behaviour the machine dispatches through.
type Mode interface {
	Type() models.GameType
	RequiresVoting() bool
	// Advance returns the phase that follows from.
	Advance(from models.Phase) (models.Phase, error)
	Score(in scoring.Input) map[string]int
}

// ModeFor returns the mode for t. Unknown types play as call-and-answer.
func ModeFor(t models.GameType) Mode {
	if t == models.GameTypeTrivia {
		return Trivia{}
	}
	return CallAndAnswer{}
}

// CallAndAnswer collects free-form answers, then lets participants rank them.
type CallAndAnswer struct{}

func (CallAndAnswer) Type() models.GameType { return models.GameTypeCallAndAnswer }

func (CallAndAnswer) RequiresVoting() bool { return true }

func (CallAndAnswer) Advance(from models.Phase) (models.Phase, error) {
	switch from {
	case models.PhaseWaiting, models.PhaseResults:
		return models.PhaseQuestion, nil
	case models.PhaseQuestion:
		return models.PhaseVoting, nil
	case models.PhaseVoting:
		return models.PhaseResults, nil
	}
	return "", fmt.Errorf("%w: from %q", game.ErrIllegalTransition, from)
}

func (CallAndAnswer) Score(in scoring.Input) map[string]int {
	return scoring.CallAndAnswer(in.Answers, in.Votes)
}

// Trivia asks multiple choice questions and goes straight to results.
type Trivia struct{}

func (Trivia) Type() models.GameType { return models.GameTypeTrivia }

func (Trivia) RequiresVoting() bool { return false }

func (Trivia) Advance(from models.Phase) (models.Phase, error) {
	switch from {
	case models.PhaseWaiting, models.PhaseResults:
		return models.PhaseQuestion, nil
	case models.PhaseQuestion:
		return models.PhaseResults, nil
	}
	return "", fmt.Errorf("%w: %s has no %q phase", game.ErrIllegalTransition, models.GameTypeTrivia, from)
}

func (Trivia) Score(in scoring.Input) map[string]int {
	return scoring.Trivia(in.Question, in.Answers, in.Points)
}
