package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Message
	}{
		{
			name: "data form",
			raw:  `{"type":"answerSubmitted","data":{"sessionId":"AB12","questionNumber":"003","participantName":"ana"}}`,
			want: Message{Type: TypeAnswerSubmitted, Data: Notification{SessionID: "AB12", QuestionNumber: "003", ParticipantName: "ana"}},
		},
		{
			name: "flat legacy form",
			raw:  `{"type":"aiSummaryReady","gameId":"AB12","questionId":"002"}`,
			want: Message{Type: TypeEnrichmentReady, Data: Notification{SessionID: "AB12", QuestionNumber: "002"}},
		},
		{
			name: "legacy names inside data",
			raw:  `{"type":"playerJoined","data":{"gameId":"AB12","playerName":"ben"}}`,
			want: Message{Type: TypeParticipantJoined, Data: Notification{SessionID: "AB12", ParticipantName: "ben"}},
		},
		{
			name: "null data falls back to flat",
			raw:  `{"type":"stateChanged","data":null,"sessionId":"AB12"}`,
			want: Message{Type: TypeStateChanged, Data: Notification{SessionID: "AB12"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeRejectsUntypedFrames(t *testing.T) {
	_, err := Decode([]byte(`{"data":{}}`))
	assert.Error(t, err)

	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestEnvelopeToMessage(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	env := Envelope{
		EventID:   "e-1",
		EventType: "playerVoted",
		SessionID: "AB12",
		Timestamp: ts,
		Payload:   json.RawMessage(`{"questionNumber":"004","participantName":"cy"}`),
	}

	msg, err := env.ToMessage()
	require.NoError(t, err)
	assert.Equal(t, TypeVoteSubmitted, msg.Type)
	assert.Equal(t, Notification{SessionID: "AB12", QuestionNumber: "004", ParticipantName: "cy"}, msg.Data)
	assert.Equal(t, ts, msg.Timestamp)

	_, err = Envelope{EventType: "somethingElse", SessionID: "AB12"}.ToMessage()
	assert.Error(t, err)

	_, err = Envelope{EventType: "stateChanged"}.ToMessage()
	assert.Error(t, err, "session is required")
}
