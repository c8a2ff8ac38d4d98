package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/engagements/go/clients/gamestore"
	"github.com/mcdev12/engagements/go/clients/questionbank"
	"github.com/mcdev12/engagements/go/internal/config"
	"github.com/mcdev12/engagements/go/internal/game/engine"
	"github.com/mcdev12/engagements/go/internal/localstate"
)

// newEngine wires the store clients and local state into an engine for one session.
func newEngine(c config.Config, sessionID string, role engine.Role) *engine.Engine {
	store := gamestore.NewClient(c.GameStoreURL)
	bank := questionbank.NewClient(c.QuestionBankURL)
	names := localstate.Open(c.StatePath)
	return engine.New(c.Engine(sessionID, role), store, bank, names, clockwork.NewRealClock())
}

// session runs e until the user quits or the process is interrupted. Views are
// rendered to out as they change while interact reads commands.
func session(e *engine.Engine, out io.Writer, interact func(ctx context.Context) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- e.Run(ctx) }()
	if err := e.WaitStarted(ctx); err != nil {
		return err
	}

	rendered := make(chan struct{})
	go func() {
		defer close(rendered)
		var last string
		for v := range e.Updates() {
			text := renderView(v)
			if text == last {
				continue
			}
			last = text
			fmt.Fprint(out, text)
		}
	}()

	err := interact(ctx)
	cancel()
	if stopErr := <-runErr; stopErr != nil {
		log.Error().Err(stopErr).Msg("engine stopped with error")
	}
	<-rendered
	return err
}
