package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcdev12/engagements/go/internal/config"
)

var (
	configPath string
	transport  string
	cfg        config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("ENGAGEMENTS_CONFIG"), "path to a yaml config file")
	rootCmd.PersistentFlags().StringVar(&transport, "transport", "", "notification transport: push or poll")

	rootCmd.AddGroup(sessionGroup)
	rootCmd.AddCommand(hostCmd, playCmd, watchCmd)
}

var sessionGroup = &cobra.Group{
	ID:    "session",
	Title: "Session commands",
}

var rootCmd = &cobra.Command{
	Use:           "engagements",
	Short:         "Run, play or watch a live quiz session",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if transport != "" {
			loaded.Transport = transport
			if err := loaded.Validate(); err != nil {
				return err
			}
		}
		cfg = loaded
		cfg.SetupLogging(cmd.ErrOrStderr())
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}
