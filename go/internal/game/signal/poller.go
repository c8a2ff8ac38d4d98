package signal

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// DefaultPollInterval is the poll period used when none is configured.
const DefaultPollInterval = 2 * time.Second

// Poller emits a sync signal on a fixed interval. Each cycle runs to completion
// before the next tick is honoured, so cycles never overlap.
type Poller struct {
	clock     clockwork.Clock
	sessionID string
	interval  time.Duration
}

func NewPoller(clock clockwork.Clock, sessionID string, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{clock: clock, sessionID: sessionID, interval: interval}
}

// Run syncs once immediately and then on every tick.
func (p *Poller) Run(ctx context.Context, c Consumer) error {
	log.Info().
		Str("session_id", p.sessionID).
		Dur("interval", p.interval).
		Msg("Poller started")

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	sig := Signal{Kind: KindSync, Source: SourcePoll, SessionID: p.sessionID}
	c.OnSignal(ctx, sig)
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("session_id", p.sessionID).Msg("Poller stopped")
			return nil
		case <-ticker.Chan():
			c.OnSignal(ctx, sig)
		}
	}
}
