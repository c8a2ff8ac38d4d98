package engine

import (
	"context"
	"errors"

	"github.com/mcdev12/engagements/go/internal/game"
	"github.com/mcdev12/engagements/go/internal/game/channel"
	"github.com/mcdev12/engagements/go/internal/game/signal"
)

// SetTransport switches the signal producer. The current producer is stopped before the
// new one starts.
func (e *Engine) SetTransport(t Transport) {
	if t != TransportPush && t != TransportPoll {
		e.logger.Warn().Str("transport", string(t)).Msg("Ignoring unknown transport")
		return
	}
	select {
	case <-e.switchCh:
	default:
	}
	select {
	case e.switchCh <- t:
	case <-e.stopped:
	}
}

// superviseTransport runs exactly one producer at a time. A push producer that ends
// for any reason other than shutdown or a switch is replaced by polling.
func (e *Engine) superviseTransport(ctx context.Context) {
	mode := e.cfg.Transport
	for {
		pctx, cancel := context.WithCancel(ctx)
		producer := e.producer(mode)
		e.enrich.SetPolling(mode == TransportPoll)

		done := make(chan error, 1)
		go func() {
			done <- producer.Run(pctx, e.controller)
		}()

		select {
		case <-ctx.Done():
			cancel()
			<-done
			return

		case next := <-e.switchCh:
			cancel()
			if c, ok := producer.(*channel.Client); ok {
				c.Disconnect()
			}
			<-done
			e.logger.Info().
				Str("from", string(mode)).
				Str("to", string(next)).
				Msg("Switching transport")
			mode = next

		case err := <-done:
			cancel()
			if ctx.Err() != nil {
				return
			}
			if mode == TransportPoll {
				e.logger.Error().Err(err).Msg("Poller stopped unexpectedly")
				return
			}
			if errors.Is(err, game.ErrReconnectExhausted) {
				e.logger.Warn().Err(err).Msg("Push channel unavailable, falling back to polling")
			} else {
				e.logger.Warn().Err(err).Msg("Push channel ended, falling back to polling")
			}
			mode = TransportPoll
		}
	}
}

func (e *Engine) producer(mode Transport) signal.Producer {
	if mode == TransportPoll {
		e.post(func() {
			e.mirror.SetConnection(true, string(TransportPoll))
			e.publish()
		})
		return signal.NewPoller(e.clock, e.cfg.SessionID, e.cfg.PollInterval)
	}

	cfg := e.cfg.Channel
	cfg.SessionID = e.cfg.SessionID
	cfg.ParticipantName = e.cfg.ParticipantName
	cfg.Host = e.cfg.Role == RoleHost

	c := channel.New(cfg, e.clock)
	c.OnStatusChange(func(connected bool) {
		e.post(func() {
			e.mirror.SetConnection(connected, string(TransportPush))
			e.publish()
		})
		if connected {
			// Anything missed while disconnected is picked up by a full refresh.
			e.refresh(signal.KindSync)
		}
	})
	return c
}
