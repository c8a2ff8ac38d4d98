package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/mcdev12/engagements/go/internal/game/engine"
)

var watchCmd = &cobra.Command{
	Use:     "watch <session-id>",
	GroupID: "session",
	Short:   "Follow a session without taking part",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e := newEngine(cfg, args[0], engine.RoleObserver)
		return session(e, cmd.OutOrStdout(), func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		})
	},
}
