// Package config loads settings for the engagements binaries. Values come from
// defaults, then an optional yaml file, then the environment (a .env file is loaded
// first when present).
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/engagements/go/internal/game/channel"
	"github.com/mcdev12/engagements/go/internal/game/engine"
	"github.com/mcdev12/engagements/go/internal/game/enrichment"
	"github.com/mcdev12/engagements/go/internal/gateway"
	"github.com/mcdev12/engagements/go/internal/localstate"
)

type Config struct {
	GameStoreURL    string `yaml:"game_store_url" env:"GAME_STORE_URL"`
	QuestionBankURL string `yaml:"question_bank_url" env:"QUESTION_BANK_URL"`
	ChannelURL      string `yaml:"channel_url" env:"CHANNEL_URL"`

	// Transport is the initial notification transport, push or poll.
	Transport         string        `yaml:"transport" env:"TRANSPORT"`
	PollInterval      time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
	SuppressionWindow time.Duration `yaml:"suppression_window" env:"SUPPRESSION_WINDOW"`

	EnrichmentPollInterval time.Duration `yaml:"enrichment_poll_interval" env:"ENRICHMENT_POLL_INTERVAL"`
	EnrichmentTimeout      time.Duration `yaml:"enrichment_timeout" env:"ENRICHMENT_TIMEOUT"`

	ReconnectAttempts  int           `yaml:"reconnect_attempts" env:"RECONNECT_ATTEMPTS"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay" env:"RECONNECT_BASE_DELAY"`

	TriviaPoints int    `yaml:"trivia_points" env:"TRIVIA_POINTS"`
	StatePath    string `yaml:"state_path" env:"STATE_PATH"`
	LogLevel     string `yaml:"log_level" env:"LOG_LEVEL"`

	Gateway Gateway `yaml:"gateway"`
}

// Gateway configures the notification relay.
type Gateway struct {
	Port string                          `yaml:"port" env:"GATEWAY_PORT"`
	NATS gateway.JetStreamConsumerConfig `yaml:"nats"`
}

func Default() Config {
	ec := engine.DefaultConfig()
	cc := channel.DefaultConfig()
	return Config{
		GameStoreURL:           "http://localhost:8080",
		QuestionBankURL:        "http://localhost:8080",
		ChannelURL:             "ws://localhost:8081/ws",
		Transport:              string(engine.TransportPush),
		PollInterval:           ec.PollInterval,
		SuppressionWindow:      ec.SuppressionWindow,
		EnrichmentPollInterval: ec.Enrichment.PollInterval,
		EnrichmentTimeout:      ec.Enrichment.Timeout,
		ReconnectAttempts:      cc.MaxReconnects,
		ReconnectBaseDelay:     cc.ReconnectDelay,
		TriviaPoints:           ec.TriviaPoints,
		StatePath:              localstate.DefaultPath(),
		LogLevel:               "info",
		Gateway: Gateway{
			Port: "8081",
			NATS: gateway.DefaultJetStreamConsumerConfig(),
		},
	}
}

// Load reads path (if not empty) over the defaults and then applies the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("could not load .env file")
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch engine.Transport(c.Transport) {
	case engine.TransportPush, engine.TransportPoll:
	default:
		return fmt.Errorf("invalid transport %q: want push or poll", c.Transport)
	}
	for name, d := range map[string]time.Duration{
		"poll_interval":            c.PollInterval,
		"suppression_window":       c.SuppressionWindow,
		"enrichment_poll_interval": c.EnrichmentPollInterval,
		"enrichment_timeout":       c.EnrichmentTimeout,
		"reconnect_base_delay":     c.ReconnectBaseDelay,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.ReconnectAttempts < 0 {
		return fmt.Errorf("reconnect_attempts must not be negative")
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	return nil
}

// Engine returns the engine settings for one session and role.
func (c Config) Engine(sessionID string, role engine.Role) engine.Config {
	ec := engine.DefaultConfig()
	ec.SessionID = sessionID
	ec.Role = role
	ec.Transport = engine.Transport(c.Transport)
	ec.PollInterval = c.PollInterval
	ec.SuppressionWindow = c.SuppressionWindow
	ec.TriviaPoints = c.TriviaPoints
	ec.Enrichment = enrichment.Config{
		PollInterval: c.EnrichmentPollInterval,
		Timeout:      c.EnrichmentTimeout,
	}
	ec.Channel.URL = c.ChannelURL
	ec.Channel.MaxReconnects = c.ReconnectAttempts
	ec.Channel.ReconnectDelay = c.ReconnectBaseDelay
	return ec
}

// SetupLogging points the global logger at a console writer on w with the configured
// level.
func (c Config) SetupLogging(w io.Writer) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen})
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
