package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel/trace/noop"

	cli "github.com/urfave/cli/v3"

	"github.com/dukex/styxgo/pkg/backfill"
	backfillpg "github.com/dukex/styxgo/pkg/backfill/postgres"
	"github.com/dukex/styxgo/pkg/config"
	"github.com/dukex/styxgo/pkg/eventbus"
	"github.com/dukex/styxgo/pkg/eventlog"
	eventlogpg "github.com/dukex/styxgo/pkg/eventlog/postgres"
	"github.com/dukex/styxgo/pkg/handlers"
	"github.com/dukex/styxgo/pkg/log"
	"github.com/dukex/styxgo/pkg/models"
	"github.com/dukex/styxgo/pkg/otelhelper"
	"github.com/dukex/styxgo/pkg/ratelimit"
	"github.com/dukex/styxgo/pkg/ratelimit/distributed"
	"github.com/dukex/styxgo/pkg/runner"
	"github.com/dukex/styxgo/pkg/runner/kubernetes"
	"github.com/dukex/styxgo/pkg/runner/local"
	"github.com/dukex/styxgo/pkg/scheduler"
	"github.com/dukex/styxgo/pkg/statemanager"
	"github.com/dukex/styxgo/pkg/trigger"
	"github.com/dukex/styxgo/pkg/workflow"
	workflowpg "github.com/dukex/styxgo/pkg/workflow/postgres"
)

const shutdownGrace = 30 * time.Second

// managerEmitter forwards to a *statemanager.Manager set after
// construction, breaking the handler-list/manager initialization cycle.
type managerEmitter struct {
	target handlers.EventEmitter
}

func (e *managerEmitter) Receive(ctx context.Context, instance models.WorkflowInstance, event models.Event) error {
	return e.target.Receive(ctx, instance, event)
}

func run(ctx context.Context, cmd *cli.Command) error {
	log.Setup(cmd.String("log-level"))
	logger := log.WithModule("styx-scheduler")

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracer, err := otelhelper.NewTracer(ctx, "styx-scheduler")
	if err != nil {
		logger.WarnContext(ctx, "failed to initialize tracer, continuing without it", "error", err)
		tracer = noop.NewTracerProvider().Tracer("styx-scheduler")
	}
	meter := otelhelper.NewMeter(ctx, "styx-scheduler")

	events, workflows, backfills, closeStores, err := openStores(ctx, logger, cfg)
	if err != nil {
		return err
	}
	defer closeStores()

	r, err := openRunner(cfg)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}

	bus, err := openEventBus(cmd)
	if err != nil {
		return fmt.Errorf("initialize event bus: %w", err)
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logger.ErrorContext(ctx, "failed to close event bus", "error", err)
		}
	}()

	limiter, rateStore, closeRateStore, err := openRateLimiter(ctx, cmd, cfg)
	if err != nil {
		return fmt.Errorf("initialize rate limiter: %w", err)
	}
	defer closeRateStore()

	retryBaseDelay, err := config.ParseISO8601Duration(cfg.RetryBaseDelay)
	if err != nil {
		return fmt.Errorf("parse retry-base-delay: %w", err)
	}
	retryCeiling, err := config.ParseISO8601Duration(cfg.RetryCeiling)
	if err != nil {
		return fmt.Errorf("parse retry-ceiling: %w", err)
	}
	executionPollInterval, err := config.ParseISO8601Duration(cfg.ExecutionPollInterval)
	if err != nil {
		return fmt.Errorf("parse execution-poll-interval: %w", err)
	}

	monitoringHandler, err := handlers.NewMonitoringHandler(meter)
	if err != nil {
		return fmt.Errorf("initialize monitoring handler: %w", err)
	}

	// Handlers need the manager as their EventEmitter, but the manager's
	// constructor takes the handler list and starts its shard goroutines
	// immediately — so the manager itself can't be built first. emitter
	// breaks the cycle: handlers hold it instead of the manager directly,
	// and it starts forwarding once the manager exists.
	emitter := new(managerEmitter)

	manager := statemanager.New(events, []handlers.Handler{
		handlers.NewTransitionLogger(),
		handlers.NewDequeueHandler(emitter),
		handlers.NewExecutionDescriptionHandler(workflows, emitter),
		handlers.NewDockerRunnerHandler(workflows, limiter, r, emitter, executionPollInterval),
		handlers.NewTerminationHandler(retryBaseDelay, cfg.RetryMaxExponent, retryCeiling, cfg.MaxRetries, emitter),
		handlers.NewPublisherHandler(bus),
		monitoringHandler,
	},
		statemanager.WithShardCount(cfg.StateManagerShards),
		statemanager.WithHandlerPoolSize(cfg.HandlerPoolSize),
		statemanager.WithTracer(tracer),
	)
	emitter.target = manager

	if err := manager.Restore(ctx); err != nil {
		return fmt.Errorf("restore active states: %w", err)
	}

	sched := scheduler.New(manager, manager, cfg.StaleTTL)

	triggerManager := trigger.New(workflows, manager)
	if err := triggerManager.WarmUp(ctx); err != nil {
		return fmt.Errorf("warm up trigger manager: %w", err)
	}

	backfillEngine := backfill.New(backfills, workflows, events, manager)

	schedulerInterval, err := config.ParseISO8601Duration(cfg.SchedulerTickInterval)
	if err != nil {
		return fmt.Errorf("parse scheduler-tick-interval: %w", err)
	}
	triggerInterval, err := config.ParseISO8601Duration(cfg.TriggerManagerTickInterval)
	if err != nil {
		return fmt.Errorf("parse trigger-manager-tick-interval: %w", err)
	}
	runtimeConfigInterval, err := config.ParseISO8601Duration(cfg.RuntimeConfigTickInterval)
	if err != nil {
		return fmt.Errorf("parse runtime-config-tick-interval: %w", err)
	}

	refresher := ratelimit.NewRefresher(rateStore, limiter)

	logger.InfoContext(ctx, "starting scheduler, trigger manager, backfill engine, and rate refresher",
		"mode", cfg.Mode, "shards", cfg.StateManagerShards)

	go sched.Run(ctx, schedulerInterval)
	go triggerManager.Run(ctx, triggerInterval)
	go backfillEngine.Run(ctx, schedulerInterval)
	go refresher.Run(ctx, runtimeConfigInterval)

	<-ctx.Done()
	logger.Info("shutting down styx-scheduler")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	return manager.Close(shutdownCtx)
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

func openRunner(cfg config.File) (runner.Runner, error) {
	if cfg.Mode == config.ModeDevelopment || cfg.Runner.Kubernetes == nil {
		return local.New(cfg.Runner.DockerHost)
	}

	return kubernetes.New(kubernetes.Coordinates{
		ProjectID: cfg.Runner.Kubernetes.ProjectID,
		Zone:      cfg.Runner.Kubernetes.Zone,
		ClusterID: cfg.Runner.Kubernetes.ClusterID,
		Namespace: cfg.Runner.Kubernetes.Namespace,
	}), nil
}

func openEventBus(cmd *cli.Command) (eventbus.EventBus, error) {
	switch cmd.String("event-bus") {
	case "kafka":
		brokers := strings.Split(cmd.String("kafka-brokers"), ",")
		return eventbus.NewKafkaEventBus(brokers)
	default:
		return eventbus.NewMemoryEventBus(), nil
	}
}

// openRateLimiter picks a RedisLimiter when --redis-addr is set, so more
// than one scheduler process can share a submission budget, or a
// single-process TokenBucket otherwise. The RateStore is independent of
// that choice: in production mode it is a PostgresRateStore over its own
// connection to cfg.Storage.PostgresDSN, so an operator can change the
// rate by updating a row instead of restarting every scheduler process;
// in development mode it stays the static configured value.
func openRateLimiter(ctx context.Context, cmd *cli.Command, cfg config.File) (ratelimit.Limiter, ratelimit.RateStore, func(), error) {
	initialRate := cmd.Float64("initial-rate")

	var limiter ratelimit.Limiter
	if addr := cmd.String("redis-addr"); addr != "" {
		redisLimiter, err := distributed.NewRedisLimiter(ctx, log.WithModule("redis_rate_limiter"), addr, "", 0, "styx:submission-rate", initialRate)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect redis rate limiter: %w", err)
		}
		limiter = redisLimiter
	} else {
		limiter = ratelimit.NewTokenBucket(initialRate, int(initialRate)+1)
	}

	if cfg.Mode == config.ModeDevelopment {
		return limiter, ratelimit.StaticRateStore(initialRate), func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect rate store to postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, nil, nil, fmt.Errorf("ping rate store postgres: %w", err)
	}

	rateStore := ratelimit.NewPostgresRateStore(db)
	if err := rateStore.EnsureSchema(ctx, initialRate); err != nil {
		return nil, nil, nil, fmt.Errorf("ensure submission_rate schema: %w", err)
	}

	return limiter, rateStore, func() { _ = db.Close() }, nil
}
