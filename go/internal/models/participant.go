package models

import (
	"fmt"
	"time"
)

// Participant is one named player of a session. Name is the case-sensitive join key.
type Participant struct {
	Name     string     `json:"name"`
	Score    int        `json:"score"`
	JoinedAt *time.Time `json:"joinedAt,omitempty"`
}

// JoinResult is returned by the store when a participant joins or rejoins.
type JoinResult struct {
	Participant Participant `json:"participant"`
	Rejoined    bool        `json:"rejoined"`
}

// Answer is a participant's submission for one question number.
type Answer struct {
	QuestionNumber  string     `json:"questionNumber"`
	ParticipantName string     `json:"participantName"`
	Content         string     `json:"content"`
	SubmittedAt     *time.Time `json:"submittedAt,omitempty"`
}

// MaxRanks is the largest number of answers a single vote may rank.
const MaxRanks = 3

// Vote ranks a subset of answer positions. Rankings maps answer position to rank.
type Vote struct {
	QuestionNumber string      `json:"questionNumber"`
	VoterName      string      `json:"voterName"`
	Rankings       map[int]int `json:"rankings"`
}

// PartialVote is a draft ranking saved before the vote is submitted.
type PartialVote struct {
	QuestionNumber  string      `json:"questionNumber"`
	ParticipantName string      `json:"participantName"`
	Rankings        map[int]int `json:"rankings"`
}

// RankSlots returns K, the number of ranks a complete vote assigns.
func RankSlots(answerCount int) int {
	return min(MaxRanks, answerCount)
}

// ValidateRanking checks that rankings assigns ranks 1..K to distinct valid positions.
func ValidateRanking(rankings map[int]int, answerCount int) error {
	k := RankSlots(answerCount)
	if k == 0 {
		return fmt.Errorf("no answers to rank")
	}
	if len(rankings) != k {
		return fmt.Errorf("expected %d ranked answers, got %d", k, len(rankings))
	}
	seen := make(map[int]bool, k)
	for pos, rank := range rankings {
		if pos < 0 || pos >= answerCount {
			return fmt.Errorf("answer position %d out of range", pos)
		}
		if rank < 1 || rank > k {
			return fmt.Errorf("rank %d out of range 1..%d", rank, k)
		}
		if seen[rank] {
			return fmt.Errorf("rank %d assigned twice", rank)
		}
		seen[rank] = true
	}
	return nil
}
