// Command phitsreport parses PHITS reports and edits input decks from the
// shell.
package main

import (
	"fmt"
	"os"

	"phitsreport/internal/config"
	"phitsreport/internal/logging"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type cli struct {
	cfg      config.Config
	logLevel string
	pretty   bool
	log      zerolog.Logger
}

func newRootCmd(cfg config.Config) *cobra.Command {
	c := &cli{cfg: cfg}
	root := &cobra.Command{
		Use:           "phitsreport",
		Short:         "Parse PHITS reports and edit input decks",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			c.log = logging.New("phitsreport", logging.Config{Level: c.logLevel, Pretty: c.pretty, Output: cmd.ErrOrStderr()})
		},
	}
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&c.pretty, "pretty", cfg.LogPretty, "human readable logs")

	root.AddCommand(c.parseCmd(), c.kindsCmd(), c.planCmd(), c.deckCmd())
	return root
}

func main() {
	_ = godotenv.Load(".env")
	if err := newRootCmd(config.Load()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
