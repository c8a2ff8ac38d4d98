package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mcdev12/engagements/go/internal/models"
)

func TestCallAndAnswer(t *testing.T) {
	answers := []models.Answer{
		{QuestionNumber: "002", ParticipantName: "ana", Content: "first"},
		{QuestionNumber: "002", ParticipantName: "ben", Content: "second"},
	}
	votes := []models.Vote{
		{VoterName: "cy", Rankings: map[int]int{0: 1}},
		{VoterName: "dee", Rankings: map[int]int{0: 2}},
		{VoterName: "eve", Rankings: map[int]int{0: 1, 1: 3}},
	}

	assert.Equal(t, map[string]int{"ana": 8, "ben": 1}, CallAndAnswer(answers, votes))
}

func TestCallAndAnswerIgnoresUnknownPositionsAndRanks(t *testing.T) {
	answers := []models.Answer{{ParticipantName: "ana"}}
	votes := []models.Vote{{VoterName: "ben", Rankings: map[int]int{0: 4, 5: 1}}}

	assert.Empty(t, CallAndAnswer(answers, votes))
}

func TestTrivia(t *testing.T) {
	q := &models.Question{
		Options:       map[string]string{"A": "Lisbon", "B": "Porto"},
		CorrectAnswer: "optionB",
	}
	answers := []models.Answer{
		{ParticipantName: "p1", Content: "A"},
		{ParticipantName: "p2", Content: "B"},
		{ParticipantName: "p3", Content: "B"},
	}

	assert.Equal(t, map[string]int{"p2": 10, "p3": 10}, Trivia(q, answers, 0))

	q.Points = 5
	assert.Equal(t, map[string]int{"p2": 5, "p3": 5}, Trivia(q, answers, 10))

	assert.Empty(t, Trivia(nil, answers, 10))
}

func TestRank(t *testing.T) {
	tests := []struct {
		name   string
		scores []int
		want   []int
	}{
		{"ties jump", []int{10, 10, 7, 7, 5}, []int{1, 1, 3, 3, 5}},
		{"three way tie", []int{10, 10, 10}, []int{1, 1, 1}},
		{"unsorted input", []int{7, 10, 10}, []int{1, 1, 3}},
		{"no ties", []int{3, 2, 1}, []int{1, 2, 3}},
		{"empty", nil, []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps := make([]models.Participant, len(tt.scores))
			for i, s := range tt.scores {
				ps[i] = models.Participant{Name: string(rune('a' + i)), Score: s}
			}
			got := make([]int, 0, len(ps))
			for _, st := range Rank(ps) {
				got = append(got, st.Rank)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRankOrdersEqualScoresByName(t *testing.T) {
	standings := Rank([]models.Participant{{Name: "zed", Score: 5}, {Name: "amy", Score: 5}})
	assert.Equal(t, "amy", standings[0].Name)
	assert.Equal(t, 1, standings[1].Rank)
}
