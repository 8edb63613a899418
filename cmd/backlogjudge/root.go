package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backlogjudge",
		Short: "Backlogjudge - LLM-judged quality scoring for backlog artifacts",
		Long: `Backlogjudge scores generated backlog artifacts (epics, features, user
stories, acceptance criteria) against the prompt and context they were
generated from, using a panel of independently weighted judge metrics.

It can run as an HTTP service or evaluate a single request from the
command line.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	// Add subcommands
	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newEvaluateCommand())
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newMetricsCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
