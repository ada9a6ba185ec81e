package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/flagpost/internal/domain"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "flagpost",
		Short:         "CTF progression and scoring engine",
		Long:          "Flagpost scores flag submissions, unlocks hints and recommends the next challenge.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level, _ := cmd.Flags().GetString("log-level")
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: parseLogLevel(level),
			})))
		},
	}

	root.PersistentFlags().String("db", "", "Path to SQLite database file (overrides storage.sqlite_path)")
	root.PersistentFlags().String("log-level", "warn", "Log level: debug, info, warn, error")

	root.AddCommand(
		newMigrateCmd(),
		newRegisterCmd(),
		newChallengeCmd(),
		newSubmitCmd(),
		newHintCmd(),
		newHintsCmd(),
		newProgressCmd(),
		newStatsCmd(),
		newRecommendCmd(),
		newTrainCmd(),
		newModelsCmd(),
		newLeaderboardCmd(),
		newFeedCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "flagpost", Version)
		},
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// exitCode maps error classes to process exit codes
func exitCode(err error) int {
	switch domain.Classify(err) {
	case domain.ClassRetryable:
		return 75
	case domain.ClassTerminal:
		return 2
	}
	return 1
}
