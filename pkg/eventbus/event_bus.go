// Package eventbus publishes domain notifications for completed or failed
// workflow instances to an external pub/sub topic, backing
// PublisherHandler (C5). Kept from pkg/eventbus and adapted
// from a generic workflow-node event bus into a closed set of two
// notifications this domain actually emits.
package eventbus

import (
	"context"
	"time"

	"github.com/dukex/styxgo/pkg/models"
)

// NotificationType discriminates the two domain events PublisherHandler
// emits, grounded on events.EventType discriminator style.
type NotificationType string

const (
	// NotificationDone fires when a RunState reaches DONE.
	NotificationDone NotificationType = "workflow_instance.done"
	// NotificationFailed fires when a RunState reaches FAILED.
	NotificationFailed NotificationType = "workflow_instance.failed"
)

// Notification is the payload published for a terminal (DONE/FAILED)
// transition.
type Notification struct {
	Type             NotificationType  `json:"type"`
	WorkflowInstance models.WorkflowInstance `json:"workflow_instance"`
	State            models.State      `json:"state"`
	TriggerID        string            `json:"trigger_id,omitempty"`
	ExecutionID      string            `json:"execution_id,omitempty"`
	OccurredAt       time.Time         `json:"occurred_at"`
}

// EventBus is the narrow publish-only surface PublisherHandler needs.
// Grounded on eventbus.EventPublisher, trimmed to this
// domain's one outbound message shape.
type EventBus interface {
	Publish(ctx context.Context, key string, notification Notification) error
	Close() error
}
