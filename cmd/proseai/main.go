// Command proseai rewrites chat messages in a chosen tone. It serves the
// rewrite API, drives the browser pilot, and manages settings.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

var (
	logLevel   string
	settingsDB string
	metricsDB  string

	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "proseai",
	Short:         "Rewrite chat messages in a chosen tone",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = newLogger(logLevel)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", env("LOG_LEVEL", "info"), "debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&settingsDB, "settings-db", env("SETTINGS_DB", "data/settings.db"), "settings database path")
	rootCmd.PersistentFlags().StringVar(&metricsDB, "metrics-db", env("METRICS_DB", "data/metrics.db"), "metrics database path")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(pilotCmd)
	rootCmd.AddCommand(rewriteCmd)
	rootCmd.AddCommand(tonesCmd)
	rootCmd.AddCommand(platformsCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(statsCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "proseai:", err)
		cancel()
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
