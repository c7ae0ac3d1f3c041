package handlers

import (
	"context"

	"github.com/dukex/styxgo/pkg/models"
)

// EventEmitter is the subset of the state manager's surface handlers need
// to feed follow-up events back into C4 (submit, submitted, runError,
// retryAfter, ...). Kept as a narrow interface here, rather than importing
// pkg/statemanager, so the dependency only runs one way: statemanager
// depends on handlers, never the reverse.
type EventEmitter interface {
	Receive(ctx context.Context, instance models.WorkflowInstance, event models.Event) error
}

// WorkflowLookup resolves a WorkflowId to its current Workflow definition,
// backing ExecutionDescriptionHandler's config-to-execution-description
// resolution.
type WorkflowLookup interface {
	Get(ctx context.Context, id models.WorkflowId) (models.Workflow, error)
}
