package mirror

import (
	"slices"

	"github.com/mcdev12/engagements/go/internal/models"
)

// Derived holds values computed from a snapshot and the current question's answers
// and votes. It is never patched incrementally.
type Derived struct {
	// QuestionIndex is the position of the current question in playedQuestions.
	QuestionIndex int
	// Ordinal is how many questions have been played.
	Ordinal    int
	AnsweredBy []string
	VotedBy    []string
}

// Derive is a pure function of its inputs. Answers and votes for other question
// numbers are ignored.
func Derive(snap models.Snapshot, answers []models.Answer, votes []models.Vote) Derived {
	d := Derived{
		QuestionIndex: slices.Index(snap.PlayedQuestions, snap.CurrentQuestionNumber),
		Ordinal:       len(snap.PlayedQuestions),
		AnsweredBy:    []string{},
		VotedBy:       []string{},
	}
	if d.QuestionIndex < 0 {
		d.QuestionIndex = len(snap.PlayedQuestions) - 1
	}
	for _, a := range answers {
		if a.QuestionNumber == snap.CurrentQuestionNumber && !slices.Contains(d.AnsweredBy, a.ParticipantName) {
			d.AnsweredBy = append(d.AnsweredBy, a.ParticipantName)
		}
	}
	for _, v := range votes {
		if v.QuestionNumber == snap.CurrentQuestionNumber && !slices.Contains(d.VotedBy, v.VoterName) {
			d.VotedBy = append(d.VotedBy, v.VoterName)
		}
	}
	return d
}
