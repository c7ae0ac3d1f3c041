// Command styx-api serves the backfill HTTP surface: create, edit, halt,
// and inspect backfills over REST. It shares configuration and storage
// with cmd/styx-scheduler but runs as its own process, so the API stays
// reachable even while the scheduler is restarting or catching up.
//
// Grounded on cmd/operion-api/main.go (single urfave/cli/v3
// Command, flags from environment variables, NewAPI(...).Start(port)).
package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/dukex/styxgo/pkg/log"
)

const defaultPort = 9191

func main() {
	logger := log.WithModule("styx-api")

	cmd := &cli.Command{
		Name:                  "styx-api",
		Usage:                 "Create, edit, halt, and inspect backfills over HTTP",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the YAML configuration file",
				Required: true,
				Sources:  cli.EnvVars("CONFIG_PATH"),
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to serve the backfill API on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logger.Error("styx-api exited with error", "error", err)
		os.Exit(1)
	}
}
