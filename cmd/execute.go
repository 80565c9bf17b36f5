// Package cmd implements the kubesage command line interface.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/kubesage/kubesage/internal/log"
)

// Build information. Overridden at link time via -ldflags.
var (
	AppVersion = "dev"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

// Execute dispatches the CLI. It returns an exit code for main.
func Execute() int {
	if len(os.Args) < 2 {
		printHelp()
		return 1
	}

	switch os.Args[1] {
	case "serve":
		logger := initLogger()
		if err := runServe(logger); err != nil {
			logger.Error("serve failed", "error", err)
			return 1
		}
		return 0
	case "version", "-v", "--version":
		printVersionInfo()
		return 0
	case "help", "-h", "--help":
		printHelp()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printHelp()
		return 1
	}
}

// initLogger builds the process logger. DEBUG=1 (or "true") lowers the
// level to debug.
func initLogger() log.Logger {
	level := slog.LevelInfo
	if v := os.Getenv("DEBUG"); v == "1" || v == "true" {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level, JSON: true})
}

func printVersionInfo() {
	fmt.Printf("kubesage %s\n", AppVersion)
	fmt.Printf("  build time: %s\n", BuildTime)
	fmt.Printf("  commit:     %s\n", GitCommit)
}

func printHelp() {
	fmt.Print(`kubesage - Kubernetes AI assistant backend

Usage:
  kubesage <command>

Commands:
  serve      Start the HTTP API server
  version    Print version information
  help       Show this help

Environment:
  DEBUG=1    Enable debug logging

Configuration is read from ~/.kubesage/config.yaml (or ./config.yaml)
and environment variables such as OPENAI_API_KEY, GEMINI_API_KEY and
KUBESAGE_LISTEN_ADDR.
`)
}
