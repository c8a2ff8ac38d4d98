// Package signal unifies push notifications and poll ticks into one stream of change
// signals. A signal only says which part of the session may have changed.
package signal

import (
	"context"

	"github.com/mcdev12/engagements/go/internal/game/events"
)

// Kind names the sub-resource a signal refers to.
type Kind string

const (
	// KindSync asks for a full refresh of state, answers, votes and participants.
	KindSync         Kind = "sync"
	KindState        Kind = "state"
	KindParticipants Kind = "participants"
	KindAnswers      Kind = "answers"
	KindVotes        Kind = "votes"
	KindEnrichment   Kind = "enrichment"
)

// Source says which producer emitted a signal.
type Source string

const (
	SourcePush Source = "push"
	SourcePoll Source = "poll"
	// SourceLocal marks follow-up refreshes the engine schedules itself.
	SourceLocal Source = "local"
)

type Signal struct {
	Kind           Kind
	Source         Source
	SessionID      string
	QuestionNumber string
}

// Consumer receives signals. OnSignal may be called from several goroutines.
type Consumer interface {
	OnSignal(ctx context.Context, s Signal)
}

// Producer feeds signals to a consumer until ctx ends or it gives up.
type Producer interface {
	Run(ctx context.Context, c Consumer) error
}

// FromMessage maps a channel message onto the signal it triggers.
func FromMessage(m events.Message) (Signal, bool) {
	s := Signal{Source: SourcePush, SessionID: m.Data.SessionID, QuestionNumber: m.Data.QuestionNumber}
	switch m.Type.Canonical() {
	case events.TypeInitialStateSync:
		s.Kind = KindSync
	case events.TypeStateChanged, events.TypeQuestionStarted:
		s.Kind = KindState
	case events.TypeParticipantJoined, events.TypeParticipantLeft:
		s.Kind = KindParticipants
	case events.TypeAnswerSubmitted:
		s.Kind = KindAnswers
	case events.TypeVoteSubmitted:
		s.Kind = KindVotes
	case events.TypeEnrichmentReady:
		s.Kind = KindEnrichment
	default:
		return Signal{}, false
	}
	return s, true
}
