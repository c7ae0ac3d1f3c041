package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/dukex/styxgo/pkg/api"
	"github.com/dukex/styxgo/pkg/backfill"
	backfillpg "github.com/dukex/styxgo/pkg/backfill/postgres"
	"github.com/dukex/styxgo/pkg/config"
	"github.com/dukex/styxgo/pkg/eventlog"
	eventlogpg "github.com/dukex/styxgo/pkg/eventlog/postgres"
	"github.com/dukex/styxgo/pkg/log"
	"github.com/dukex/styxgo/pkg/otelhelper"
	"github.com/dukex/styxgo/pkg/statemanager"
	"github.com/dukex/styxgo/pkg/workflow"
	workflowpg "github.com/dukex/styxgo/pkg/workflow/postgres"
)

const shutdownGrace = 15 * time.Second

func run(ctx context.Context, cmd *cli.Command) error {
	log.Setup(cmd.String("log-level"))
	logger := log.WithModule("styx-api")

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracer, err := otelhelper.NewTracer(ctx, "styx-api")
	if err != nil {
		logger.WarnContext(ctx, "failed to initialize tracer, continuing without it", "error", err)
		tracer = noop.NewTracerProvider().Tracer("styx-api")
	}

	events, workflows, backfills, closeStores, err := openStores(ctx, logger, cfg)
	if err != nil {
		return err
	}
	defer closeStores()

	// The API only needs a manager to emit the Halt events a backfill
	// halt sends to its active instances; it carries no handlers of its
	// own — those run in cmd/styx-scheduler.
	manager := statemanager.New(events, nil, statemanager.WithTracer(tracer))
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := manager.Close(shutdownCtx); err != nil {
			logger.ErrorContext(ctx, "failed to close state manager", "error", err)
		}
	}()

	engine := backfill.New(backfills, workflows, events, manager)
	app := api.New(engine, tracer).App()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- app.Listen(":" + strconv.Itoa(cmd.Int("port")))
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("serve backfill API: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down styx-api")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	return app.ShutdownWithContext(shutdownCtx)
}

func openStores(ctx context.Context, logger *slog.Logger, cfg config.File) (eventlog.Store, workflow.Store, backfill.Store, func(), error) {
	if cfg.Mode == config.ModeDevelopment {
		return eventlog.NewMemoryStore(), workflow.NewMemoryStore(), backfill.NewMemoryStore(), func() {}, nil
	}

	postgresLogger := log.WithModule("postgres")

	eventStore, err := eventlogpg.Open(ctx, postgresLogger, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("open event log store: %w", err)
	}

	workflowStore, err := workflowpg.Open(ctx, postgresLogger, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("open workflow store: %w", err)
	}

	backfillStore, err := backfillpg.Open(ctx, postgresLogger, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("open backfill store: %w", err)
	}

	closeAll := func() {
		if err := eventStore.Close(); err != nil {
			logger.ErrorContext(ctx, "failed to close event log store", "error", err)
		}
		if err := workflowStore.Close(); err != nil {
			logger.ErrorContext(ctx, "failed to close workflow store", "error", err)
		}
		if err := backfillStore.Close(); err != nil {
			logger.ErrorContext(ctx, "failed to close backfill store", "error", err)
		}
	}

	return eventStore, workflowStore, backfillStore, closeAll, nil
}
