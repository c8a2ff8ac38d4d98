package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mcdev12/engagements/go/internal/game"
	"github.com/mcdev12/engagements/go/internal/game/engine"
)

var hostCmd = &cobra.Command{
	Use:     "host <session-id>",
	GroupID: "session",
	Short:   "Run a session as its host",
	Long: `Host a session from the terminal. Commands:
  start [category...]  draw and open the next question
  close [!]            close answering, ! skips the everyone-answered check
  results [!]          score and show results, ! skips the everyone-voted check
  retry                retry enrichment after a timeout or failure
  push | poll          switch the notification transport`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e := newEngine(cfg, args[0], engine.RoleHost)
		out := cmd.OutOrStdout()
		return session(e, out, func(ctx context.Context) error {
			return repl(ctx, cmd.InOrStdin(), out, hostCommands(e, out))
		})
	},
}

func hostCommands(e *engine.Engine, out io.Writer) commands {
	confirmed := func(args []string) bool {
		return len(args) > 0 && args[0] == "!"
	}
	advanced := func(err error) error {
		if game.NeedsConfirmation(err) {
			return fmt.Errorf("%w (repeat with ! to continue anyway)", err)
		}
		return err
	}

	return commands{
		"start": func(ctx context.Context, args []string) error {
			_, err := e.StartQuestion(ctx, args)
			return err
		},
		"close": func(ctx context.Context, args []string) error {
			_, err := e.CloseQuestion(ctx, confirmed(args))
			return advanced(err)
		},
		"results": func(ctx context.Context, args []string) error {
			_, err := e.ShowResults(ctx, confirmed(args))
			return advanced(err)
		},
		"retry": func(ctx context.Context, _ []string) error {
			u, err := e.RetryEnrichment(ctx)
			if err == nil && u.State != "" {
				fmt.Fprintf(out, "enrichment %s\n", u.State)
			}
			return err
		},
		"push": func(context.Context, []string) error {
			e.SetTransport(engine.TransportPush)
			return nil
		},
		"poll": func(context.Context, []string) error {
			e.SetTransport(engine.TransportPoll)
			return nil
		},
	}
}
