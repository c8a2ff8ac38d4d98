// Package mirror keeps the local, possibly stale copy of a session and decides whether
// fetched data may overwrite it.
package mirror

import (
	"maps"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/engagements/go/internal/game/enrichment"
	"github.com/mcdev12/engagements/go/internal/game/scoring"
	"github.com/mcdev12/engagements/go/internal/models"
)

// Outcome says what ApplySnapshot did with a fetched snapshot.
type Outcome string

const (
	// OutcomeApplied means the snapshot replaced the mirror.
	OutcomeApplied Outcome = "applied"
	// OutcomeConfirmed means the snapshot caught up with a local proposal.
	OutcomeConfirmed Outcome = "confirmed"
	// OutcomeSuppressed means the snapshot was stale and discarded inside the window.
	OutcomeSuppressed Outcome = "suppressed"
	// OutcomeReverted means the window ran out before the store confirmed the proposal
	// and the store's snapshot replaced it.
	OutcomeReverted Outcome = "reverted"
)

// Change reports the effect of applying a snapshot.
type Change struct {
	Outcome         Outcome
	Previous        models.Snapshot
	Current         models.Snapshot
	PhaseChanged    bool
	QuestionChanged bool
}

// Applied reports whether the mirror now holds the new snapshot.
func (c Change) Applied() bool {
	return c.Outcome != OutcomeSuppressed
}

// View is an immutable picture of the mirror handed to renderers.
type View struct {
	Snapshot     models.Snapshot
	Derived      Derived
	Participants []models.Participant
	Standings    []scoring.Standing
	Answers      []models.Answer
	Votes        []models.Vote
	Draft        map[int]int
	Enrichment   enrichment.Update
	Self         string
	Pending      bool
	Connected    bool
	Transport    string
}

// Mirror is owned by a single goroutine, the engine loop. It is not safe for
// concurrent use.
type Mirror struct {
	clock  clockwork.Clock
	window time.Duration

	snapshot models.Snapshot
	pending  *models.Snapshot

	transition Lease
	voting     Lease

	participants []models.Participant
	answers      []models.Answer
	votes        []models.Vote
	draft        map[int]int
	enrichment   enrichment.Update

	self      string
	connected bool
	transport string
}

// New returns an empty mirror for sessionID. window bounds both the transition and
// the voting leases.
func New(clock clockwork.Clock, sessionID string, window time.Duration) *Mirror {
	return &Mirror{
		clock:    clock,
		window:   window,
		snapshot: models.Snapshot{SessionID: sessionID, Phase: models.PhaseWaiting},
		draft:    make(map[int]int),
	}
}

func (m *Mirror) Snapshot() models.Snapshot {
	return m.snapshot.Clone()
}

func (m *Mirror) CurrentQuestion() string {
	return m.snapshot.CurrentQuestionNumber
}

func (m *Mirror) Phase() models.Phase {
	return m.snapshot.Phase
}

// TransitionLease returns the lease that guards the last local proposal.
func (m *Mirror) TransitionLease() Lease {
	return m.transition
}

// ProposeLocal applies proposed optimistically and holds the transition lease so
// that echoes of older state do not overwrite it.
func (m *Mirror) ProposeLocal(owner string, proposed models.Snapshot) Change {
	p := proposed.Clone()
	m.pending = &p
	m.transition = NewLease(owner, m.clock.Now(), m.window)
	return m.replace(proposed, OutcomeApplied)
}

// ApplySnapshot reconciles a snapshot fetched from the store. While a proposal is
// pending, a snapshot that catches up with it confirms it, anything else is discarded
// until the lease expires, after which the store wins.
func (m *Mirror) ApplySnapshot(remote models.Snapshot) Change {
	if m.pending != nil {
		switch {
		case remote.CatchesUp(*m.pending):
			m.pending = nil
			m.transition = Lease{}
			return m.replace(remote, OutcomeConfirmed)
		case m.transition.Active(m.clock.Now()):
			return Change{Outcome: OutcomeSuppressed, Previous: m.snapshot.Clone(), Current: m.snapshot.Clone()}
		default:
			m.pending = nil
			return m.replace(remote, OutcomeReverted)
		}
	}
	return m.replace(remote, OutcomeApplied)
}

func (m *Mirror) replace(next models.Snapshot, outcome Outcome) Change {
	prev := m.snapshot
	if next.SessionID == "" {
		next.SessionID = prev.SessionID
	}
	m.snapshot = next.Clone()

	c := Change{
		Outcome:         outcome,
		Previous:        prev.Clone(),
		Current:         m.snapshot.Clone(),
		PhaseChanged:    prev.Phase != next.Phase,
		QuestionChanged: prev.CurrentQuestionNumber != next.CurrentQuestionNumber,
	}
	if c.QuestionChanged {
		m.answers = nil
		m.votes = nil
		m.draft = make(map[int]int)
		m.voting = Lease{}
	}
	return c
}

// ApplyAnswers overwrites the answers slice when it belongs to the current question.
func (m *Mirror) ApplyAnswers(questionNumber string, answers []models.Answer) bool {
	if questionNumber != m.snapshot.CurrentQuestionNumber {
		return false
	}
	m.answers = slices.Clone(answers)
	return true
}

// ApplyVotes overwrites the votes slice when it belongs to the current question.
func (m *Mirror) ApplyVotes(questionNumber string, votes []models.Vote) bool {
	if questionNumber != m.snapshot.CurrentQuestionNumber {
		return false
	}
	m.votes = slices.Clone(votes)
	return true
}

func (m *Mirror) ApplyParticipants(ps []models.Participant) {
	m.participants = slices.Clone(ps)
}

func (m *Mirror) Answers() []models.Answer {
	return slices.Clone(m.answers)
}

func (m *Mirror) Votes() []models.Vote {
	return slices.Clone(m.votes)
}

func (m *Mirror) Participants() []models.Participant {
	return slices.Clone(m.participants)
}

func (m *Mirror) SetSelf(name string) {
	m.self = name
}

func (m *Mirror) Self() string {
	return m.self
}

func (m *Mirror) SetConnection(connected bool, transport string) {
	m.connected = connected
	m.transport = transport
}

func (m *Mirror) SetEnrichment(u enrichment.Update) {
	m.enrichment = u
}

// HasAnswered reports whether name has an answer for the current question.
func (m *Mirror) HasAnswered(name string) bool {
	return slices.ContainsFunc(m.answers, func(a models.Answer) bool {
		return a.QuestionNumber == m.snapshot.CurrentQuestionNumber && a.ParticipantName == name
	})
}

// HasVoted reports whether name has a vote for the current question.
func (m *Mirror) HasVoted(name string) bool {
	return slices.ContainsFunc(m.votes, func(v models.Vote) bool {
		return v.QuestionNumber == m.snapshot.CurrentQuestionNumber && v.VoterName == name
	})
}

// SetRank records a draft rank for an answer position and takes the voting lease.
// A rank already given to another position moves to this one. Rank zero clears.
func (m *Mirror) SetRank(owner string, position, rank int) map[int]int {
	for pos, r := range m.draft {
		if r == rank && pos != position {
			delete(m.draft, pos)
		}
	}
	if rank <= 0 {
		delete(m.draft, position)
	} else {
		m.draft[position] = rank
	}
	m.voting = NewLease(owner, m.clock.Now(), m.window)
	return maps.Clone(m.draft)
}

func (m *Mirror) Draft() map[int]int {
	return maps.Clone(m.draft)
}

// ClearDraft drops the draft ranking and releases the voting lease.
func (m *Mirror) ClearDraft() {
	m.draft = make(map[int]int)
	m.voting = Lease{}
}

// RestoreDraft installs a saved partial vote unless the participant is already ranking,
// has a local draft, or has voted.
func (m *Mirror) RestoreDraft(pv models.PartialVote) bool {
	if pv.QuestionNumber != m.snapshot.CurrentQuestionNumber {
		return false
	}
	if len(m.draft) > 0 || m.voting.Active(m.clock.Now()) || m.HasVoted(pv.ParticipantName) {
		return false
	}
	m.draft = maps.Clone(pv.Rankings)
	if m.draft == nil {
		m.draft = make(map[int]int)
	}
	return true
}

// View builds a fresh view. Derived values and standings are recomputed every call.
func (m *Mirror) View() View {
	return View{
		Snapshot:     m.snapshot.Clone(),
		Derived:      Derive(m.snapshot, m.answers, m.votes),
		Participants: slices.Clone(m.participants),
		Standings:    scoring.Rank(m.participants),
		Answers:      slices.Clone(m.answers),
		Votes:        slices.Clone(m.votes),
		Draft:        maps.Clone(m.draft),
		Enrichment:   m.enrichment,
		Self:         m.self,
		Pending:      m.pending != nil,
		Connected:    m.connected,
		Transport:    m.transport,
	}
}
