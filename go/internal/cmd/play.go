package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mcdev12/engagements/go/internal/game/engine"
)

var playName string

func init() {
	playCmd.Flags().StringVar(&playName, "name", "", "display name; defaults to the name last used in this session")
}

var playCmd = &cobra.Command{
	Use:     "play <session-id>",
	GroupID: "session",
	Short:   "Join a session as a participant",
	Long: `Play in a session from the terminal. Commands:
  join <name>           join or rejoin under name
  answer <text>         answer the open question
  rank <position> <n>   rank the answer at position (0 based), rank 0 clears
  vote                  submit the current ranking`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e := newEngine(cfg, args[0], engine.RoleParticipant)
		out := cmd.OutOrStdout()
		return session(e, out, func(ctx context.Context) error {
			cmds := playCommands(e, out)
			if playName != "" {
				cmds.run(ctx, out, "join "+playName)
			}
			return repl(ctx, cmd.InOrStdin(), out, cmds)
		})
	},
}

func playCommands(e *engine.Engine, out io.Writer) commands {
	return commands{
		"join": func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("usage: join <name>")
			}
			res, err := e.Join(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if res.Rejoined {
				fmt.Fprintf(out, "welcome back %s, score %d\n", res.Participant.Name, res.Participant.Score)
			} else {
				fmt.Fprintf(out, "joined as %s\n", res.Participant.Name)
			}
			return nil
		},
		"answer": func(ctx context.Context, args []string) error {
			return e.SubmitAnswer(ctx, strings.Join(args, " "))
		},
		"rank": func(ctx context.Context, args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("usage: rank <position> <rank>")
			}
			pos, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid position %q", args[0])
			}
			rank, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid rank %q", args[1])
			}
			_, err = e.SetRank(ctx, pos, rank)
			return err
		},
		"vote": func(ctx context.Context, _ []string) error {
			return e.SubmitVote(ctx)
		},
	}
}
