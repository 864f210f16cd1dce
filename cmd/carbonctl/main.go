// Command carbonctl reads and logs purchases against the purchase API from
// the terminal.
package main

import (
	"log/slog"
	"os"

	"carbontracker/internal/cli"
	applog "carbontracker/internal/log"
)

func main() {
	cli.LoadEnvFile()

	// stdout carries command output; logs go to stderr.
	lvl := applog.ParseLevel(envOrDefault("LOG_LEVEL", "warn"))
	applog.SetDefault(applog.New(applog.Config{
		Level:     lvl,
		Component: applog.ComponentCLI,
		Handler:   slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}),
	}))

	if err := newRootCmd(wireApp()).Execute(); err != nil {
		os.Exit(1)
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
