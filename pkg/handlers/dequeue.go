package handlers

import (
	"context"
	"log/slog"

	stdlog "github.com/dukex/styxgo/pkg/log"
	"github.com/dukex/styxgo/pkg/models"
)

// DequeueHandler drives the QUEUED --dequeue--> PREPARE transition. Moving
// past QUEUED is conventionally tied to "rate-limiter admits and
// concurrency gate is open", but both gates are already enforced earlier
// in this pipeline: the backfill engine (C8) never emits more concurrent
// triggers than a backfill's concurrency cap allows, and the global
// submission rate limiter (C9) is consulted where it actually matters —
// immediately before the runner RPC, inside DockerRunnerHandler's
// SUBMITTING handling. Gating a second time on dequeue would only delay
// PREPARE's (cheap, in-memory) execution description resolution without
// protecting any additional resource, so this handler is a direct
// pass-through once an instance reaches QUEUED.
type DequeueHandler struct {
	emitter EventEmitter
	logger  *slog.Logger
}

func NewDequeueHandler(emitter EventEmitter) *DequeueHandler {
	return &DequeueHandler{
		emitter: emitter,
		logger:  stdlog.WithModule("dequeue_handler"),
	}
}

func (h *DequeueHandler) Name() string { return "dequeue_handler" }

func (h *DequeueHandler) TransitionInto(ctx context.Context, rs models.RunState) {
	if rs.State != models.StateQueued {
		return
	}

	event := models.Dequeue{EventHeader: models.EventHeader{WorkflowInstance: rs.WorkflowInstance}}
	if err := h.emitter.Receive(ctx, rs.WorkflowInstance, event); err != nil {
		h.logger.ErrorContext(ctx, "failed to emit dequeue", "instance", rs.WorkflowInstance.String(), "error", err)
	}
}

var _ Handler = (*DequeueHandler)(nil)
