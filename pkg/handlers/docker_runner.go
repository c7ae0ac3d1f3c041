package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	stdlog "github.com/dukex/styxgo/pkg/log"
	"github.com/dukex/styxgo/pkg/models"
	"github.com/dukex/styxgo/pkg/ratelimit"
	"github.com/dukex/styxgo/pkg/runner"
)

// defaultExecutionPollInterval is used when a DockerRunnerHandler is built
// with a zero pollInterval.
const defaultExecutionPollInterval = 2 * time.Second

// DockerRunnerHandler is the bridge to the container runtime adapter: on
// SUBMITTING it acquires a submission token from the global rate limiter
// (C9), then asks the configured runner.Runner to start the execution. Once
// started, a detached poll loop watches runner.Status for the instance
// until it reports the execution terminated, feeding Started (once it is
// seen running) and Terminate back through the emitter — the runner has no push
// notification of its own, so polling is the only way those transitions
// ever happen. On TERMINATED/FAILED/DONE the handler asks the runner to
// release whatever resources it held for the execution.
//
// Grounded on StyxScheduler's DockerRunnerHandler in original_source: the
// rate-limiter acquire happens on the handler executor, never on a
// state-manager shard, matching this package's handler pool dispatch. The
// poll loop itself follows TerminationHandler.scheduleRetryTimer's
// detached-goroutine idiom: launched outside TransitionInto so a
// multi-tick watch never stalls a shard, each Receive call built on its
// own context.Background-derived timeout.
type DockerRunnerHandler struct {
	workflows    WorkflowLookup
	limiter      ratelimit.Limiter
	runner       runner.Runner
	emitter      EventEmitter
	pollInterval time.Duration
	logger       *slog.Logger
}

func NewDockerRunnerHandler(workflows WorkflowLookup, limiter ratelimit.Limiter, r runner.Runner, emitter EventEmitter, pollInterval time.Duration) *DockerRunnerHandler {
	if pollInterval <= 0 {
		pollInterval = defaultExecutionPollInterval
	}

	return &DockerRunnerHandler{
		workflows:    workflows,
		limiter:      limiter,
		runner:       r,
		emitter:      emitter,
		pollInterval: pollInterval,
		logger:       stdlog.WithModule("docker_runner_handler"),
	}
}

func (h *DockerRunnerHandler) Name() string { return "docker_runner_handler" }

func (h *DockerRunnerHandler) TransitionInto(ctx context.Context, rs models.RunState) {
	switch rs.State {
	case models.StateSubmitting:
		h.submit(ctx, rs)
	case models.StateTerminated, models.StateFailed, models.StateDone:
		h.cleanup(ctx, rs)
	}
}

func (h *DockerRunnerHandler) submit(ctx context.Context, rs models.RunState) {
	if err := h.limiter.Acquire(ctx); err != nil {
		h.logger.ErrorContext(ctx, "failed to acquire submission token", "instance", rs.WorkflowInstance.String(), "error", err)
		return
	}

	workflow, err := h.workflows.Get(ctx, rs.WorkflowInstance.WorkflowId)
	if err != nil {
		h.runError(ctx, rs, fmt.Sprintf("resolve workflow for submission: %v", err))
		return
	}

	execID, err := h.runner.Start(ctx, rs.WorkflowInstance, workflow.Configuration, rs.StateData.ExecutionDescription)
	if err != nil {
		h.runError(ctx, rs, fmt.Sprintf("runner start failed: %v", err))
		return
	}

	event := models.Submitted{
		EventHeader: models.EventHeader{WorkflowInstance: rs.WorkflowInstance},
		ExecutionID: execID,
	}
	if err := h.emitter.Receive(ctx, rs.WorkflowInstance, event); err != nil {
		h.logger.ErrorContext(ctx, "failed to emit submitted", "instance", rs.WorkflowInstance.String(), "error", err)
		return
	}

	go h.pollExecution(rs.WorkflowInstance, execID)
}

// pollExecution watches a started execution until the runner reports it
// terminated, emitting Started the first time the runner reports it
// running and Terminate once it exits. It runs detached from the handler
// pool, since a multi-tick watch cannot occupy a handler worker.
//
// A container observed straight from "not yet running" to "terminated"
// between two polls (fast executions, coarse poll intervals) never shows
// Running true — Started is still emitted just ahead of Terminate in that
// case, since RUNNING is the only state Terminate is valid from.
func (h *DockerRunnerHandler) pollExecution(instance models.WorkflowInstance, executionID string) {
	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	started := false

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		status, err := h.runner.Status(ctx, executionID)
		cancel()

		if err != nil {
			if errors.Is(err, runner.ErrExecutionNotFound) {
				h.logger.ErrorContext(context.Background(), "execution vanished from runner, giving up polling",
					"instance", instance.String(), "execution_id", executionID, "error", err)
				return
			}
			h.logger.WarnContext(context.Background(), "failed to poll execution status, retrying next tick",
				"instance", instance.String(), "execution_id", executionID, "error", err)
			continue
		}

		if status.Running && !started {
			if !h.emit(instance, models.Started{EventHeader: models.EventHeader{WorkflowInstance: instance}}) {
				return
			}
			started = true
		}

		if status.Terminated {
			if !started {
				if !h.emit(instance, models.Started{EventHeader: models.EventHeader{WorkflowInstance: instance}}) {
					return
				}
				started = true
			}

			h.emit(instance, models.Terminate{
				EventHeader: models.EventHeader{WorkflowInstance: instance},
				ExitCode:    status.ExitCode,
			})
			return
		}
	}
}

// emit sends event through h.emitter with a fresh timeout, returning false
// if the caller should stop polling (the instance has moved on, e.g. an
// operator halted it — Receive then rejects the stale event with
// IllegalTransition, which is expected and harmless here).
func (h *DockerRunnerHandler) emit(instance models.WorkflowInstance, event models.Event) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := h.emitter.Receive(ctx, instance, event); err != nil {
		h.logger.WarnContext(ctx, "failed to emit execution status event, stopping poll",
			"instance", instance.String(), "event", event.Type(), "error", err)
		return false
	}
	return true
}

func (h *DockerRunnerHandler) cleanup(ctx context.Context, rs models.RunState) {
	if rs.StateData.ExecutionID == "" {
		return
	}

	if err := h.runner.Cleanup(ctx, rs.StateData.ExecutionID); err != nil {
		h.logger.ErrorContext(ctx, "failed to clean up execution", "instance", rs.WorkflowInstance.String(), "execution_id", rs.StateData.ExecutionID, "error", err)
	}
}

func (h *DockerRunnerHandler) runError(ctx context.Context, rs models.RunState, message string) {
	h.logger.ErrorContext(ctx, "submission failed", "instance", rs.WorkflowInstance.String(), "reason", message)

	event := models.RunError{
		EventHeader: models.EventHeader{WorkflowInstance: rs.WorkflowInstance},
		Message:     message,
	}
	if err := h.emitter.Receive(ctx, rs.WorkflowInstance, event); err != nil {
		h.logger.ErrorContext(ctx, "failed to emit runError", "instance", rs.WorkflowInstance.String(), "error", err)
	}
}

var _ Handler = (*DockerRunnerHandler)(nil)
