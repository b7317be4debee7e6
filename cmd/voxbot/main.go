// Package main provides the CLI entry point for the voxbot command bot.
//
// Voxbot listens to a chat transport, parses prefixed command lines,
// resolves aliases, enforces group-based permissions, and dispatches to
// registered plugin handlers whose output is routed by reserved keyword
// parameters.
//
// # Basic Usage
//
// Run the bot against the console transport:
//
//	voxbot serve --config voxbot.yaml
//
// # Environment Variables
//
// Any ${VAR} reference in the config file is expanded, and VOXBOT_*
// variables override individual settings (for example VOXBOT_PREFIX or
// VOXBOT_DB_PATH). A .env file in the working directory is loaded first.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Build information, populated by ldflags.
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not load .env file", "error", err)
	}

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "voxbot",
		Short:        "Voxbot - chat command bot",
		Long:         "Voxbot parses prefixed chat commands and dispatches them to plugin handlers.",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.AddCommand(buildServeCmd(), buildVersionCmd())
	return rootCmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "voxbot %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
