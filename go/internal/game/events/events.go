// Package events defines the messages carried by the session notification channel.
// Notifications only say what changed; receivers re-read the store.
package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType names a channel message.
type MessageType string

const (
	TypeInitialStateSync  MessageType = "initialStateSync"
	TypeParticipantJoined MessageType = "participantJoined"
	TypeParticipantLeft   MessageType = "participantLeft"
	TypeStateChanged      MessageType = "stateChanged"
	TypeQuestionStarted   MessageType = "questionStarted"
	TypeAnswerSubmitted   MessageType = "answerSubmitted"
	TypeVoteSubmitted     MessageType = "voteSubmitted"
	TypeEnrichmentReady   MessageType = "enrichmentReady"
)

// Older clients and publishers still emit these names.
var legacyTypes = map[MessageType]MessageType{
	"playerJoined":     TypeParticipantJoined,
	"playerLeft":       TypeParticipantLeft,
	"gameStateChanged": TypeStateChanged,
	"playerAnswered":   TypeAnswerSubmitted,
	"playerVoted":      TypeVoteSubmitted,
	"aiSummaryReady":   TypeEnrichmentReady,
}

// Canonical maps legacy names onto the current ones.
func (t MessageType) Canonical() MessageType {
	if c, ok := legacyTypes[t]; ok {
		return c
	}
	return t
}

// Known reports whether t (after aliasing) is a message this package understands.
func (t MessageType) Known() bool {
	switch t.Canonical() {
	case TypeInitialStateSync, TypeParticipantJoined, TypeParticipantLeft, TypeStateChanged,
		TypeQuestionStarted, TypeAnswerSubmitted, TypeVoteSubmitted, TypeEnrichmentReady:
		return true
	}
	return false
}

// Notification is the trigger carried by every message.
type Notification struct {
	SessionID       string `json:"sessionId"`
	QuestionNumber  string `json:"questionNumber,omitempty"`
	ParticipantName string `json:"participantName,omitempty"`
}

// Message is one server to client channel frame.
type Message struct {
	Type      MessageType  `json:"type"`
	Data      Notification `json:"data"`
	Timestamp time.Time    `json:"timestamp"`
}

func NewMessage(t MessageType, n Notification) Message {
	return Message{Type: t, Data: n, Timestamp: time.Now().UTC()}
}

// wireNotification accepts both the current and the legacy field names.
type wireNotification struct {
	SessionID       string `json:"sessionId"`
	GameID          string `json:"gameId"`
	QuestionNumber  string `json:"questionNumber"`
	QuestionID      string `json:"questionId"`
	ParticipantName string `json:"participantName"`
	PlayerName      string `json:"playerName"`
}

func (w wireNotification) notification() Notification {
	n := Notification{SessionID: w.SessionID, QuestionNumber: w.QuestionNumber, ParticipantName: w.ParticipantName}
	if n.SessionID == "" {
		n.SessionID = w.GameID
	}
	if n.QuestionNumber == "" {
		n.QuestionNumber = w.QuestionID
	}
	if n.ParticipantName == "" {
		n.ParticipantName = w.PlayerName
	}
	return n
}

// Decode parses a frame. The notification is read from "data" when present and from
// the top level fields otherwise.
func Decode(raw []byte) (Message, error) {
	var frame struct {
		Type      MessageType     `json:"type"`
		Data      json.RawMessage `json:"data"`
		Timestamp time.Time       `json:"timestamp"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		return Message{}, fmt.Errorf("failed to decode message: %w", err)
	}
	if frame.Type == "" {
		return Message{}, fmt.Errorf("message has no type")
	}

	body := raw
	if len(frame.Data) > 0 && string(frame.Data) != "null" {
		body = frame.Data
	}
	var w wireNotification
	if err := json.Unmarshal(body, &w); err != nil {
		return Message{}, fmt.Errorf("failed to decode %s payload: %w", frame.Type, err)
	}

	return Message{Type: frame.Type.Canonical(), Data: w.notification(), Timestamp: frame.Timestamp}, nil
}

func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Action is a client to server frame.
type Action struct {
	Action          string          `json:"action"`
	SessionID       string          `json:"sessionId"`
	ParticipantName string          `json:"participantName,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
	Data            json.RawMessage `json:"data,omitempty"`
}
