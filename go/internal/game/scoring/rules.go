// Package scoring computes per-question score deltas and leaderboard ranks.
package scoring

import (
	"cmp"
	"slices"

	"github.com/mcdev12/engagements/go/internal/models"
)

// DefaultTriviaPoints is awarded per correct trivia answer when the question sets none.
const DefaultTriviaPoints = 10

// Input is everything a scoring rule may look at for one question.
type Input struct {
	Question *models.Question
	Answers  []models.Answer
	Votes    []models.Vote
	Points   int
}

// Rules scores one question. Implemented by the game modes.
type Rules interface {
	RequiresVoting() bool
	Score(Input) map[string]int
}

// PointsForRank converts a vote rank into points for the answer's author.
func PointsForRank(rank int) int {
	switch rank {
	case 1:
		return 3
	case 2:
		return 2
	case 3:
		return 1
	}
	return 0
}

// CallAndAnswer credits the author of each ranked answer. Rankings refer to answer
// positions in the order the store returns them.
func CallAndAnswer(answers []models.Answer, votes []models.Vote) map[string]int {
	deltas := make(map[string]int)
	for _, v := range votes {
		for pos, rank := range v.Rankings {
			if pos < 0 || pos >= len(answers) {
				continue
			}
			if pts := PointsForRank(rank); pts > 0 {
				deltas[answers[pos].ParticipantName] += pts
			}
		}
	}
	return deltas
}

// Trivia awards points to every participant whose answer matches the correct option.
func Trivia(q *models.Question, answers []models.Answer, points int) map[string]int {
	deltas := make(map[string]int)
	if q == nil {
		return deltas
	}
	if q.Points > 0 {
		points = q.Points
	}
	if points <= 0 {
		points = DefaultTriviaPoints
	}
	for _, a := range answers {
		if q.IsCorrect(a.Content) {
			deltas[a.ParticipantName] += points
		}
	}
	return deltas
}

// Standing is a participant with its leaderboard rank.
type Standing struct {
	models.Participant
	Rank int
}

// Rank orders participants by score and assigns competition ranks: equal scores share a
// rank and the next distinct score takes its position, so [10,10,7] ranks [1,1,3].
func Rank(participants []models.Participant) []Standing {
	sorted := slices.Clone(participants)
	slices.SortStableFunc(sorted, func(a, b models.Participant) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})

	out := make([]Standing, len(sorted))
	for i, p := range sorted {
		rank := i + 1
		if i > 0 && p.Score == sorted[i-1].Score {
			rank = out[i-1].Rank
		}
		out[i] = Standing{Participant: p, Rank: rank}
	}
	return out
}
