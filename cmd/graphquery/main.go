// Package main provides the CLI entry point for graphquery, a
// professional-network knowledge-graph query orchestration pipeline.
//
// graphquery decomposes a natural-language query into structured filters,
// plans a set of sub-queries against a remote knowledge-graph tool
// server, executes them concurrently, and synthesizes a single answer
// over the ranked candidates.
//
// # Basic Usage
//
// Ask a question:
//
//	graphquery ask "who knows Go and worked at a YC startup?"
//
// List the tools the configured tool server advertises:
//
//	graphquery tools
//
// Check tool server and configuration health:
//
//	graphquery health
//
// # Environment Variables
//
//   - GRAPHQUERY_CONFIG: Path to configuration file (default: graphquery.yaml)
//   - GRAPHQUERY_TOOLSERVER_API_KEY: API key for the knowledge-graph tool server
//   - GRAPHQUERY_LLM_API_KEY: API key for the configured LLM provider
package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// Build information - populated by ldflags during build.
//
// Example build command:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not load .env file", "error", err)
	}

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}
