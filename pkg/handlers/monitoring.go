package handlers

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	stdlog "github.com/dukex/styxgo/pkg/log"
	"github.com/dukex/styxgo/pkg/models"
)

// MonitoringHandler updates counters and gauges for every transition.
// Grounded on pkg/otelhelper's tracer-provider singleton pattern, extended
// here onto the metric API (the same go.opentelemetry.io/otel module this
// module already depends on for tracing).
type MonitoringHandler struct {
	transitions metric.Int64Counter
	active      metric.Int64UpDownCounter
	logger      *slog.Logger
}

// NewMonitoringHandler instruments meter with this handler's counters.
func NewMonitoringHandler(meter metric.Meter) (*MonitoringHandler, error) {
	transitions, err := meter.Int64Counter(
		"styx.state_transitions",
		metric.WithDescription("count of RunState transitions by resulting state"),
	)
	if err != nil {
		return nil, err
	}

	active, err := meter.Int64UpDownCounter(
		"styx.active_instances",
		metric.WithDescription("count of non-terminal RunStates currently tracked"),
	)
	if err != nil {
		return nil, err
	}

	return &MonitoringHandler{
		transitions: transitions,
		active:      active,
		logger:      stdlog.WithModule("monitoring_handler"),
	}, nil
}

func (h *MonitoringHandler) Name() string { return "monitoring_handler" }

func (h *MonitoringHandler) TransitionInto(ctx context.Context, rs models.RunState) {
	attrs := attribute.NewSet(
		attribute.String("component", rs.WorkflowInstance.WorkflowId.Component),
		attribute.String("workflow", rs.WorkflowInstance.WorkflowId.Name),
		attribute.String("state", string(rs.State)),
	)

	h.transitions.Add(ctx, 1, metric.WithAttributeSet(attrs))

	switch rs.State {
	case models.StateNew, models.StateQueued:
		// entering the active set for the first time
	case models.StateDone, models.StateError:
		h.active.Add(ctx, -1, metric.WithAttributeSet(attrs))
		return
	}

	if rs.State == models.StateQueued && rs.StateData.RetryCost == 0 {
		h.active.Add(ctx, 1, metric.WithAttributeSet(attrs))
	}
}

var _ Handler = (*MonitoringHandler)(nil)
