package models

import (
	"fmt"
	"slices"
)

// Phase is the session's current macro-state.
type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhaseQuestion Phase = "question"
	PhaseVoting   Phase = "voting"
	PhaseResults  Phase = "results"
)

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	switch p {
	case PhaseWaiting, PhaseQuestion, PhaseVoting, PhaseResults:
		return true
	}
	return false
}

// GameType selects how a session is played and scored.
type GameType string

const (
	GameTypeCallAndAnswer GameType = "call-and-answer"
	GameTypeTrivia        GameType = "trivia"
)

// Snapshot is the authoritative phase record of one session as held by the game store.
type Snapshot struct {
	SessionID             string    `json:"sessionId"`
	Phase                 Phase     `json:"phase"`
	EventTitle            string    `json:"eventTitle,omitempty"`
	GameType              GameType  `json:"gameType,omitempty"`
	QuestionSetID         string    `json:"questionSetId,omitempty"`
	CurrentQuestionNumber string    `json:"currentQuestionNumber,omitempty"`
	CurrentQuestion       *Question `json:"currentQuestionSnapshot,omitempty"`
	PlayedQuestions       []string  `json:"playedQuestions"`
	UsedQuestionRefs      []string  `json:"usedQuestionRefs"`
	ScoredQuestions       []string  `json:"scoredQuestions"`
	DebugMode             bool      `json:"debugMode,omitempty"`
}

// Clone returns a deep copy so callers can mutate without aliasing the mirror.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.PlayedQuestions = slices.Clone(s.PlayedQuestions)
	out.UsedQuestionRefs = slices.Clone(s.UsedQuestionRefs)
	out.ScoredQuestions = slices.Clone(s.ScoredQuestions)
	if s.CurrentQuestion != nil {
		q := s.CurrentQuestion.Clone()
		out.CurrentQuestion = &q
	}
	return out
}

// Type returns the game type, treating an unset value as call-and-answer.
func (s Snapshot) Type() GameType {
	if s.GameType == "" {
		return GameTypeCallAndAnswer
	}
	return s.GameType
}

func (s Snapshot) HasPlayed(questionNumber string) bool {
	return slices.Contains(s.PlayedQuestions, questionNumber)
}

func (s Snapshot) HasScored(questionNumber string) bool {
	return slices.Contains(s.ScoredQuestions, questionNumber)
}

func (s Snapshot) HasUsed(ref string) bool {
	return slices.Contains(s.UsedQuestionRefs, ref)
}

// NextQuestionNumber is the number the next drawn question will receive.
func (s Snapshot) NextQuestionNumber() string {
	return FormatQuestionNumber(len(s.PlayedQuestions) + 1)
}

// Equal compares the fields that define a phase snapshot.
func (s Snapshot) Equal(o Snapshot) bool {
	if s.Phase != o.Phase || s.CurrentQuestionNumber != o.CurrentQuestionNumber {
		return false
	}
	return slices.Equal(s.PlayedQuestions, o.PlayedQuestions) &&
		slices.Equal(s.UsedQuestionRefs, o.UsedQuestionRefs) &&
		slices.Equal(s.ScoredQuestions, o.ScoredQuestions)
}

// CatchesUp reports whether s reflects every append and the phase of proposed.
// A remote snapshot that catches up with a local proposal confirms it.
func (s Snapshot) CatchesUp(proposed Snapshot) bool {
	if s.Phase != proposed.Phase || s.CurrentQuestionNumber != proposed.CurrentQuestionNumber {
		return false
	}
	for _, qn := range proposed.PlayedQuestions {
		if !s.HasPlayed(qn) {
			return false
		}
	}
	for _, qn := range proposed.ScoredQuestions {
		if !s.HasScored(qn) {
			return false
		}
	}
	return true
}

// FormatQuestionNumber renders n as a zero padded three digit question number.
func FormatQuestionNumber(n int) string {
	return fmt.Sprintf("%03d", n)
}

// QuestionStart registers which bank question backs a question number.
type QuestionStart struct {
	QuestionNumber string `json:"questionNumber"`
	QuestionRef    string `json:"questionRef"`
	SetID          string `json:"setId"`
	Category       string `json:"category,omitempty"`
}
