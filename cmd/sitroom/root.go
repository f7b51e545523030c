package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var version = "dev"

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	dir   string
	debug bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "sitroom",
		Short: "Situation room - precompute and serve war-game intelligence briefings",
		Long: `Situation room precomputes intelligence reports and advisor briefings from
war-game transcripts, stores them in a JSON report cache, and serves them to
a dashboard with per-advisor chat.

Configuration is read from .sitroom.yaml (searched upward from --dir), an
optional .env file next to it, and SITROOM_* environment variables.`,
		Version:      version,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.dir, "dir", ".", "Project directory to search for .sitroom.yaml")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		setupLogging(opts.debug)
		return nil
	}

	cmd.AddCommand(newPrecomputeCommand(opts))
	cmd.AddCommand(newReportsCommand(opts))
	cmd.AddCommand(newChatCommand(opts))
	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newRunsCommand(opts))
	cmd.AddCommand(newCacheCommand(opts))
	cmd.AddCommand(newCatalogCommand(opts))
	cmd.AddCommand(newTranscriptsCommand(opts))

	return cmd
}

// setupLogging routes slog through a charm log handler on stderr.
func setupLogging(debug bool) {
	level := log.WarnLevel
	if debug {
		level = log.DebugLevel
	}
	handler := log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		ReportTimestamp: debug,
		TimeFormat:      time.TimeOnly,
	})
	slog.SetDefault(slog.New(handler))
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
