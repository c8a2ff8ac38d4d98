package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is the change event the game store publishes to JetStream.
type Envelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	SessionID string          `json:"sessionId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// ToMessage converts a store change event into the channel message relayed to clients.
func (e Envelope) ToMessage() (Message, error) {
	t := MessageType(e.EventType).Canonical()
	if !t.Known() || t == TypeInitialStateSync {
		return Message{}, fmt.Errorf("unsupported event type %q", e.EventType)
	}

	var w wireNotification
	if len(e.Payload) > 0 && string(e.Payload) != "null" {
		if err := json.Unmarshal(e.Payload, &w); err != nil {
			return Message{}, fmt.Errorf("failed to decode %s payload: %w", e.EventType, err)
		}
	}
	n := w.notification()
	if n.SessionID == "" {
		n.SessionID = e.SessionID
	}
	if n.SessionID == "" {
		return Message{}, fmt.Errorf("event %s has no session", e.EventID)
	}

	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return Message{Type: t, Data: n, Timestamp: ts}, nil
}
