package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/engagements/go/internal/game/engine"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engagements.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "push", cfg.Transport)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, 3*time.Second, cfg.SuppressionWindow)
	assert.Equal(t, 3*time.Second, cfg.EnrichmentPollInterval)
	assert.Equal(t, 45*time.Second, cfg.EnrichmentTimeout)
	assert.Equal(t, 5, cfg.ReconnectAttempts)
	assert.Equal(t, time.Second, cfg.ReconnectBaseDelay)
	assert.Equal(t, 10, cfg.TriviaPoints)
	assert.Equal(t, "session.events.>", cfg.Gateway.NATS.SubjectFilter)
}

func TestLoadLayersFileThenEnvironment(t *testing.T) {
	path := writeFile(t, `
game_store_url: http://store.test
transport: poll
poll_interval: 500ms
gateway:
  port: "9000"
  nats:
    stream: QUIZ
`)
	t.Setenv("POLL_INTERVAL", "750ms")
	t.Setenv("TRIVIA_POINTS", "25")
	t.Setenv("NATS_URL", "nats://broker:4222")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://store.test", cfg.GameStoreURL)
	assert.Equal(t, "poll", cfg.Transport)
	assert.Equal(t, 750*time.Millisecond, cfg.PollInterval, "environment wins over the file")
	assert.Equal(t, 25, cfg.TriviaPoints)
	assert.Equal(t, "9000", cfg.Gateway.Port)
	assert.Equal(t, "QUIZ", cfg.Gateway.NATS.StreamName)
	assert.Equal(t, "nats://broker:4222", cfg.Gateway.NATS.URL)
	assert.Equal(t, "session-gateway", cfg.Gateway.NATS.ConsumerName)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"transport", "transport: carrier-pigeon\n"},
		{"duration", "suppression_window: 0s\n"},
		{"log level", "log_level: loud\n"},
		{"yaml", "transport: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEngineConfig(t *testing.T) {
	cfg := Default()
	cfg.Transport = "poll"
	cfg.ReconnectAttempts = 2

	ec := cfg.Engine("ROOM", engine.RoleHost)
	assert.Equal(t, "ROOM", ec.SessionID)
	assert.Equal(t, engine.RoleHost, ec.Role)
	assert.Equal(t, engine.TransportPoll, ec.Transport)
	assert.Equal(t, cfg.ChannelURL, ec.Channel.URL)
	assert.Equal(t, 2, ec.Channel.MaxReconnects)
	assert.Equal(t, 45*time.Second, ec.Enrichment.Timeout)
}
