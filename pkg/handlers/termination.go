package handlers

import (
	"context"
	"log/slog"
	"time"

	stdlog "github.com/dukex/styxgo/pkg/log"
	"github.com/dukex/styxgo/pkg/models"
	"github.com/dukex/styxgo/pkg/runstate"
)

// TerminationHandler decides what happens after a RUNNING instance exits
// non-zero: retry with exponential backoff, or give up once MaxRetries is
// exhausted. Grounded on the
// "TERMINATED/FAILED --retryAfter(dtMs)--> AWAITING_RETRY" transition and
// its exponential backoff formula.
type TerminationHandler struct {
	baseDelay   time.Duration
	maxExponent int
	ceiling     time.Duration
	maxRetries  int
	emitter     EventEmitter
	logger      *slog.Logger
}

// NewTerminationHandler builds a TerminationHandler. maxRetries bounds
// StateData.RetryCost: once reached, the instance is failed outright
// instead of scheduled for another retry.
func NewTerminationHandler(baseDelay time.Duration, maxExponent int, ceiling time.Duration, maxRetries int, emitter EventEmitter) *TerminationHandler {
	return &TerminationHandler{
		baseDelay:   baseDelay,
		maxExponent: maxExponent,
		ceiling:     ceiling,
		maxRetries:  maxRetries,
		emitter:     emitter,
		logger:      stdlog.WithModule("termination_handler"),
	}
}

func (h *TerminationHandler) Name() string { return "termination_handler" }

func (h *TerminationHandler) TransitionInto(ctx context.Context, rs models.RunState) {
	switch rs.State {
	case models.StateTerminated:
		h.scheduleRetryOrFail(ctx, rs)
	case models.StateAwaitingRetry:
		h.scheduleRetryTimer(rs)
	}
}

func (h *TerminationHandler) scheduleRetryOrFail(ctx context.Context, rs models.RunState) {
	if rs.StateData.RetryCost >= h.maxRetries {
		h.emit(ctx, rs.WorkflowInstance, models.RunError{
			EventHeader: models.EventHeader{WorkflowInstance: rs.WorkflowInstance},
			Message:     "retries exhausted",
		})
		return
	}

	delay := runstate.RetryDelay(h.baseDelay, rs.StateData.RetryCost, h.maxExponent, h.ceiling)

	h.emit(ctx, rs.WorkflowInstance, models.RetryAfter{
		EventHeader: models.EventHeader{WorkflowInstance: rs.WorkflowInstance},
		DelayMillis: delay.Milliseconds(),
	})
}

// scheduleRetryTimer fires the Retry event that moves AWAITING_RETRY back
// to QUEUED once the computed backoff delay has elapsed. It runs detached
// from the handler pool's worker, since handler latency cannot stall a
// shard and this applies doubly to a multi-second sleep: a background
// goroutine, not a blocking call inside TransitionInto.
func (h *TerminationHandler) scheduleRetryTimer(rs models.RunState) {
	delay := time.Duration(rs.StateData.RetryDelayMillis) * time.Millisecond
	instance := rs.WorkflowInstance

	go func() {
		time.Sleep(delay)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// Best-effort: if the instance has moved on (e.g. an operator
		// halted it) by the time the timer fires, Receive will reject the
		// stale Retry with IllegalTransition, which is expected and
		// harmless here.
		h.emit(ctx, instance, models.Retry{EventHeader: models.EventHeader{WorkflowInstance: instance}})
	}()
}

func (h *TerminationHandler) emit(ctx context.Context, instance models.WorkflowInstance, event models.Event) {
	if err := h.emitter.Receive(ctx, instance, event); err != nil {
		h.logger.ErrorContext(ctx, "failed to emit termination follow-up event", "instance", instance.String(), "event", event.Type(), "error", err)
	}
}

var _ Handler = (*TerminationHandler)(nil)
