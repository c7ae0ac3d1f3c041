package handlers

import (
	"context"
	"log/slog"

	stdlog "github.com/dukex/styxgo/pkg/log"
	"github.com/dukex/styxgo/pkg/models"
)

// TransitionLogger is the first handler in the chain: a structured log line
// per transition, nothing else. Grounded on pkg/log/log.go's WithModule
// structured-logging convention.
type TransitionLogger struct {
	logger *slog.Logger
}

func NewTransitionLogger() *TransitionLogger {
	return &TransitionLogger{logger: stdlog.WithModule("transition")}
}

func (h *TransitionLogger) Name() string { return "transition_logger" }

func (h *TransitionLogger) TransitionInto(ctx context.Context, rs models.RunState) {
	h.logger.InfoContext(ctx, "transition",
		"instance", rs.WorkflowInstance.String(),
		"state", string(rs.State),
		"counter", rs.Counter,
		"trigger_id", rs.StateData.TriggerID,
	)
}

var _ Handler = (*TransitionLogger)(nil)
