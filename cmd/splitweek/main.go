package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/paularlott/cli"
	"github.com/paularlott/cli/env"

	"github.com/dukerupert/splitweek/internal/logging"
)

var version = "dev"

func main() {
	// Load .env file if it exists
	env.Load()

	logging.Setup("info", "text")

	rootCmd := &cli.Command{
		Name:        "splitweek",
		Version:     version,
		Usage:       "Shared custody calendar for co-parents",
		Description: "Custody calendar, schedule change negotiation and co-parent linking over a JSON API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:         "log-level",
				Usage:        "Log level (debug, info, warn, error)",
				DefaultValue: "info",
				EnvVars:      []string{"SPLITWEEK_LOG_LEVEL"},
				Global:       true,
			},
			&cli.StringFlag{
				Name:         "log-format",
				Usage:        "Log format (text, json)",
				DefaultValue: "text",
				EnvVars:      []string{"SPLITWEEK_LOG_FORMAT"},
				Global:       true,
			},
		},
		PreRun: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			logging.Setup(cmd.GetString("log-level"), cmd.GetString("log-format"))
			return ctx, nil
		},
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			seedCommand(),
			tokenCommand(),
			vapidKeysCommand(),
		},
	}

	if err := rootCmd.Execute(context.Background()); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}
