package mirror

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/engagements/go/internal/models"
)

const window = 3 * time.Second

func results001() models.Snapshot {
	return models.Snapshot{
		SessionID:             "S1",
		Phase:                 models.PhaseResults,
		CurrentQuestionNumber: "001",
		PlayedQuestions:       []string{"001"},
		UsedQuestionRefs:      []string{"q-1"},
		ScoredQuestions:       []string{"001"},
	}
}

func question002() models.Snapshot {
	s := results001()
	s.Phase = models.PhaseQuestion
	s.CurrentQuestionNumber = "002"
	s.PlayedQuestions = append(s.PlayedQuestions, "002")
	s.UsedQuestionRefs = append(s.UsedQuestionRefs, "q-2")
	return s
}

func TestLease(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLease("host", now, window)

	assert.True(t, l.Active(now))
	assert.Equal(t, window, l.Remaining(now))
	assert.False(t, l.Active(now.Add(window)))
	assert.Zero(t, l.Remaining(now.Add(time.Hour)))
	assert.False(t, Lease{}.Active(now))
}

func TestStaleSnapshotSuppressedInsideWindow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := New(clock, "S1", window)
	m.ApplySnapshot(results001())

	m.ProposeLocal("host", question002())
	require.Equal(t, "002", m.CurrentQuestion())

	clock.Advance(time.Second)
	c := m.ApplySnapshot(results001())
	assert.Equal(t, OutcomeSuppressed, c.Outcome)
	assert.False(t, c.Applied())
	assert.Equal(t, models.PhaseQuestion, m.Phase())
	assert.Equal(t, "002", m.CurrentQuestion())
	assert.True(t, m.View().Pending)
}

func TestMatchingSnapshotConfirmsProposal(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := New(clock, "S1", window)
	m.ApplySnapshot(results001())
	m.ProposeLocal("host", question002())

	c := m.ApplySnapshot(question002())
	assert.Equal(t, OutcomeConfirmed, c.Outcome)
	assert.False(t, m.View().Pending)
	assert.False(t, m.TransitionLease().Active(clock.Now()))

	// confirmed, so the next stale read is an ordinary overwrite
	c = m.ApplySnapshot(results001())
	assert.Equal(t, OutcomeApplied, c.Outcome)
}

func TestStaleSnapshotAppliesAfterWindow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := New(clock, "S1", window)
	m.ApplySnapshot(results001())
	m.ProposeLocal("host", question002())

	clock.Advance(window + time.Millisecond)
	c := m.ApplySnapshot(results001())
	assert.Equal(t, OutcomeReverted, c.Outcome)
	assert.Equal(t, models.PhaseResults, m.Phase())
	assert.Equal(t, "001", m.CurrentQuestion())
	assert.True(t, c.QuestionChanged)
}

func TestApplyingSameSnapshotTwiceIsIdempotent(t *testing.T) {
	m := New(clockwork.NewFakeClock(), "S1", window)
	snap := question002()
	answers := []models.Answer{
		{QuestionNumber: "002", ParticipantName: "ana"},
		{QuestionNumber: "002", ParticipantName: "ben"},
	}

	m.ApplySnapshot(snap)
	m.ApplyAnswers("002", answers)
	first := m.View()

	c := m.ApplySnapshot(snap)
	m.ApplyAnswers("002", answers)
	second := m.View()

	assert.False(t, c.QuestionChanged)
	assert.Equal(t, first.Derived, second.Derived)
	assert.Equal(t, 2, second.Derived.Ordinal)
	assert.Equal(t, 1, second.Derived.QuestionIndex)
	assert.Equal(t, []string{"ana", "ben"}, second.Derived.AnsweredBy)
}

func TestAnswersForOtherQuestionsAreDropped(t *testing.T) {
	m := New(clockwork.NewFakeClock(), "S1", window)
	m.ApplySnapshot(results001())
	m.ApplyAnswers("001", []models.Answer{{QuestionNumber: "001", ParticipantName: "ana"}})

	m.ProposeLocal("host", question002())
	assert.Empty(t, m.Answers(), "new question resets answers")

	assert.False(t, m.ApplyAnswers("001", []models.Answer{{QuestionNumber: "001", ParticipantName: "ana"}}))
	assert.False(t, m.ApplyVotes("001", []models.Vote{{QuestionNumber: "001", VoterName: "ana"}}))
	assert.Empty(t, m.Answers())
}

func TestDeriveQuestionIndexFallsBackToLast(t *testing.T) {
	d := Derive(models.Snapshot{PlayedQuestions: []string{"001", "002", "003"}}, nil, nil)
	assert.Equal(t, 2, d.QuestionIndex)
	assert.Equal(t, 3, d.Ordinal)

	d = Derive(models.Snapshot{}, nil, nil)
	assert.Equal(t, -1, d.QuestionIndex)
	assert.Equal(t, 0, d.Ordinal)
}

func TestDraftRankingAndRestore(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := New(clock, "S1", window)
	voting := question002()
	voting.Phase = models.PhaseVoting
	m.ApplySnapshot(voting)

	saved := models.PartialVote{QuestionNumber: "002", ParticipantName: "ana", Rankings: map[int]int{2: 1}}
	require.True(t, m.RestoreDraft(saved))
	assert.Equal(t, map[int]int{2: 1}, m.Draft())

	m.ClearDraft()
	draft := m.SetRank("ana", 0, 1)
	assert.Equal(t, map[int]int{0: 1}, draft)
	draft = m.SetRank("ana", 1, 1)
	assert.Equal(t, map[int]int{1: 1}, draft, "rank moves to the new position")

	assert.False(t, m.RestoreDraft(saved), "local draft wins")

	m.ClearDraft()
	m.SetRank("ana", 0, 0)
	assert.False(t, m.RestoreDraft(saved), "ranking in progress holds the voting lease")

	clock.Advance(window)
	m.ApplyVotes("002", []models.Vote{{QuestionNumber: "002", VoterName: "ana"}})
	assert.False(t, m.RestoreDraft(saved), "already voted")
}

func TestViewRanksParticipants(t *testing.T) {
	m := New(clockwork.NewFakeClock(), "S1", window)
	m.ApplyParticipants([]models.Participant{{Name: "a", Score: 7}, {Name: "b", Score: 10}, {Name: "c", Score: 10}})

	v := m.View()
	require.Len(t, v.Standings, 3)
	assert.Equal(t, []int{1, 1, 3}, []int{v.Standings[0].Rank, v.Standings[1].Rank, v.Standings[2].Rank})
	assert.Equal(t, "a", v.Standings[2].Name)
}
