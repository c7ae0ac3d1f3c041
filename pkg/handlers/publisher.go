package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukex/styxgo/pkg/eventbus"
	stdlog "github.com/dukex/styxgo/pkg/log"
	"github.com/dukex/styxgo/pkg/models"
)

// PublisherHandler emits a domain notification to an external pub/sub
// topic whenever a RunState reaches DONE or FAILED. Grounded on
// pkg/eventbus's publisher usage, generalized from a workflow-node
// lifecycle event to this domain's terminal-transition notification.
type PublisherHandler struct {
	bus    eventbus.EventBus
	logger *slog.Logger
	now    func() time.Time
}

func NewPublisherHandler(bus eventbus.EventBus) *PublisherHandler {
	return &PublisherHandler{
		bus:    bus,
		logger: stdlog.WithModule("publisher_handler"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (h *PublisherHandler) Name() string { return "publisher_handler" }

func (h *PublisherHandler) TransitionInto(ctx context.Context, rs models.RunState) {
	var notificationType eventbus.NotificationType
	switch rs.State {
	case models.StateDone:
		notificationType = eventbus.NotificationDone
	case models.StateFailed:
		notificationType = eventbus.NotificationFailed
	default:
		return
	}

	notification := eventbus.Notification{
		Type:             notificationType,
		WorkflowInstance: rs.WorkflowInstance,
		State:            rs.State,
		TriggerID:        rs.StateData.TriggerID,
		ExecutionID:      rs.StateData.ExecutionID,
		OccurredAt:       h.now(),
	}

	if err := h.bus.Publish(ctx, rs.WorkflowInstance.String(), notification); err != nil {
		h.logger.ErrorContext(ctx, "failed to publish transition notification", "instance", rs.WorkflowInstance.String(), "error", err)
	}
}

var _ Handler = (*PublisherHandler)(nil)
