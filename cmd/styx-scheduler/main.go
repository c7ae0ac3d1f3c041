// Command styx-scheduler runs the background composition root: the state
// manager, the scheduler tick, the trigger manager, the backfill engine,
// and the submission rate limiter's runtime-config refresh. It exposes no
// HTTP surface of its own — see cmd/styx-api for that.
//
// Grounded on cmd/operion-worker and cmd/operion-trigger
// main.go (a single urfave/cli/v3 Command, no subcommands, flags sourced
// from environment variables).
package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/dukex/styxgo/pkg/log"
)

func main() {
	logger := log.WithModule("styx-scheduler")

	cmd := &cli.Command{
		Name:                  "styx-scheduler",
		Usage:                 "Drive workflow scheduling, triggering, backfill, and submission",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the YAML configuration file",
				Required: true,
				Sources:  cli.EnvVars("CONFIG_PATH"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus for downstream notifications (kafka, memory)",
				Value:   "memory",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma-separated Kafka broker addresses, required when --event-bus=kafka",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "redis-addr",
				Usage:   "Redis address for a shared submission rate limiter; empty uses a single-process token bucket",
				Sources: cli.EnvVars("REDIS_ADDR"),
			},
			&cli.Float64Flag{
				Name:    "initial-rate",
				Usage:   "Initial submission rate in permits per second, before the first runtime-config refresh",
				Value:   10,
				Sources: cli.EnvVars("INITIAL_SUBMISSION_RATE"),
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
		logger.Error("styx-scheduler exited with error", "error", err)
		os.Exit(1)
	}
}
