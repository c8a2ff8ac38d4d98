// Package channel is the push producer: a websocket client that turns server
// notifications into change signals and reconnects with exponential backoff.
package channel

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/engagements/go/internal/game"
	"github.com/mcdev12/engagements/go/internal/game/events"
	"github.com/mcdev12/engagements/go/internal/game/signal"
)

// Config holds connection settings for one session channel.
type Config struct {
	URL             string
	SessionID       string
	ParticipantName string
	Host            bool

	MaxReconnects  int
	ReconnectDelay time.Duration
	MaxDelay       time.Duration

	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
}

func DefaultConfig() Config {
	return Config{
		MaxReconnects:  5,
		ReconnectDelay: time.Second,
		MaxDelay:       30 * time.Second,
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 64 * 1024,
	}
}

// Client implements signal.Producer. A Client serves one Run; after Disconnect it does
// not reconnect.
type Client struct {
	cfg      Config
	clock    clockwork.Clock
	dialer   *websocket.Dialer
	onStatus func(connected bool)

	manual atomic.Bool

	mu   sync.Mutex
	conn *websocket.Conn
}

func New(cfg Config, clock clockwork.Clock) *Client {
	def := DefaultConfig()
	if cfg.MaxReconnects < 0 {
		cfg.MaxReconnects = 0
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	return &Client{
		cfg:    cfg,
		clock:  clock,
		dialer: websocket.DefaultDialer,
	}
}

// OnStatusChange registers fn to be called whenever the connection opens or closes.
func (c *Client) OnStatusChange(fn func(connected bool)) {
	c.onStatus = fn
}

// Endpoint returns the URL dialled for this session.
func (c *Client) Endpoint() (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("invalid channel url: %w", err)
	}
	q := u.Query()
	q.Set("sessionId", c.cfg.SessionID)
	if c.cfg.ParticipantName != "" {
		q.Set("participantName", c.cfg.ParticipantName)
	}
	if c.cfg.Host {
		q.Set("isHost", "true")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) newBackOff() *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     c.cfg.ReconnectDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         c.cfg.MaxDelay,
	}
	b.Reset()
	return b
}

// Run connects and dispatches signals until ctx ends, Disconnect is called, or the
// server closes normally. It returns game.ErrReconnectExhausted when every reconnect
// attempt failed. Signals are dispatched on their own goroutines; Run waits for them
// before returning.
func (c *Client) Run(ctx context.Context, consumer signal.Consumer) error {
	endpoint, err := c.Endpoint()
	if err != nil {
		return err
	}

	var dispatch sync.WaitGroup
	defer dispatch.Wait()

	b := c.newBackOff()
	attempts := 0
	for {
		if c.manual.Load() {
			return nil
		}

		conn, _, err := c.dialer.DialContext(ctx, endpoint, nil)
		if err == nil {
			attempts = 0
			b.Reset()
			err = c.serve(ctx, conn, consumer, &dispatch)
			if c.manual.Load() || ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Info().Str("session_id", c.cfg.SessionID).Msg("Channel closed by server")
				return nil
			}
		}
		if ctx.Err() != nil {
			return nil
		}

		if attempts >= c.cfg.MaxReconnects {
			return fmt.Errorf("%w after %d attempts: %v", game.ErrReconnectExhausted, attempts, err)
		}
		attempts++
		delay := b.NextBackOff()
		log.Warn().
			Err(err).
			Str("session_id", c.cfg.SessionID).
			Int("attempt", attempts).
			Int("max_attempts", c.cfg.MaxReconnects).
			Dur("delay", delay).
			Msg("Channel lost, reconnecting")

		select {
		case <-ctx.Done():
			return nil
		case <-c.clock.After(delay):
		}
	}
}

func (c *Client) serve(ctx context.Context, conn *websocket.Conn, consumer signal.Consumer, dispatch *sync.WaitGroup) error {
	done := make(chan struct{})

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.setStatus(true)
	log.Info().Str("session_id", c.cfg.SessionID).Msg("Channel connected")

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	go c.pingPump(conn, done)

	defer func() {
		stop()
		close(done)
		conn.Close()
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		c.setStatus(false)
	}()

	conn.SetReadLimit(c.cfg.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))

		msg, err := events.Decode(data)
		if err != nil {
			log.Warn().Err(err).Str("session_id", c.cfg.SessionID).Msg("Dropping undecodable message")
			continue
		}
		sig, ok := signal.FromMessage(msg)
		if !ok {
			log.Debug().Str("type", string(msg.Type)).Msg("No handler for message type")
			continue
		}
		if sig.SessionID == "" {
			sig.SessionID = c.cfg.SessionID
		}

		dispatch.Add(1)
		go func() {
			defer dispatch.Done()
			consumer.OnSignal(ctx, sig)
		}()
	}
}

// pingPump keeps the connection alive. The client only listens, so pings are the
// only frames it writes.
func (c *Client) pingPump(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Msg("Failed to send ping")
				conn.Close()
				return
			}
		}
	}
}

func (c *Client) setStatus(connected bool) {
	if c.onStatus != nil {
		c.onStatus(connected)
	}
}

// Connected reports whether a connection is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Disconnect closes the connection with a normal closure and stops reconnecting.
func (c *Client) Disconnect() {
	c.manual.Store(true)

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}
	log.Info().Str("session_id", c.cfg.SessionID).Msg("Manually disconnecting channel")
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "Manual disconnect")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.cfg.WriteTimeout))
	conn.Close()
}
