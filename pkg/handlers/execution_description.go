package handlers

import (
	"context"
	"fmt"
	"log/slog"

	stdlog "github.com/dukex/styxgo/pkg/log"
	"github.com/dukex/styxgo/pkg/models"
)

// ExecutionDescriptionHandler resolves a PREPARE instance's owning
// Workflow configuration into a runner-facing execution description and
// emits Submit, advancing it to SUBMITTING. If the workflow is missing or
// unconfigured, it emits RunError instead so the instance fails fast
// rather than sitting in PREPARE until its TTL expires.
type ExecutionDescriptionHandler struct {
	workflows WorkflowLookup
	emitter   EventEmitter
	logger    *slog.Logger
}

func NewExecutionDescriptionHandler(workflows WorkflowLookup, emitter EventEmitter) *ExecutionDescriptionHandler {
	return &ExecutionDescriptionHandler{
		workflows: workflows,
		emitter:   emitter,
		logger:    stdlog.WithModule("execution_description_handler"),
	}
}

func (h *ExecutionDescriptionHandler) Name() string { return "execution_description_handler" }

func (h *ExecutionDescriptionHandler) TransitionInto(ctx context.Context, rs models.RunState) {
	if rs.State != models.StatePrepare {
		return
	}

	workflow, err := h.workflows.Get(ctx, rs.WorkflowInstance.WorkflowId)
	if err != nil {
		h.fail(ctx, rs, fmt.Sprintf("resolve workflow %s: %v", rs.WorkflowInstance.WorkflowId, err))
		return
	}

	if !workflow.Configuration.Configured() {
		h.fail(ctx, rs, fmt.Sprintf("workflow %s has no docker image configured", rs.WorkflowInstance.WorkflowId))
		return
	}

	description := fmt.Sprintf("%s image=%s params=%v", rs.WorkflowInstance.String(), *workflow.Configuration.DockerImage, rs.StateData.TriggerParameters)

	event := models.Submit{
		EventHeader:          models.EventHeader{WorkflowInstance: rs.WorkflowInstance},
		ExecutionDescription: description,
	}
	if err := h.emitter.Receive(ctx, rs.WorkflowInstance, event); err != nil {
		h.logger.ErrorContext(ctx, "failed to emit submit", "instance", rs.WorkflowInstance.String(), "error", err)
	}
}

func (h *ExecutionDescriptionHandler) fail(ctx context.Context, rs models.RunState, message string) {
	h.logger.ErrorContext(ctx, "failed to resolve execution description", "instance", rs.WorkflowInstance.String(), "reason", message)

	event := models.RunError{
		EventHeader: models.EventHeader{WorkflowInstance: rs.WorkflowInstance},
		Message:     message,
	}
	if err := h.emitter.Receive(ctx, rs.WorkflowInstance, event); err != nil {
		h.logger.ErrorContext(ctx, "failed to emit runError", "instance", rs.WorkflowInstance.String(), "error", err)
	}
}

var _ Handler = (*ExecutionDescriptionHandler)(nil)
