// Package workflow holds the durable definition of every schedulable
// workflow and the per-workflow natural-trigger cursor the Trigger Manager
// advances on each tick. Grounded on pkg/persistence/postgresql/workflow.go's
// CRUD shape, generalized from a node-graph workflow definition to this
// domain's identity+schedule+configuration triple, plus a cursor table for
// NextNaturalTrigger (mirroring Styx's Counters table).
package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/dukex/styxgo/pkg/models"
)

// ErrNotFound is returned when a lookup finds no workflow with the given id.
var ErrNotFound = errors.New("workflow not found")

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ErrCursorConflict is returned by AdvanceNextTrigger when the stored cursor
// no longer matches the expected value, meaning another tick (or process)
// already advanced it.
var ErrCursorConflict = errors.New("next-trigger cursor conflict")

// IsCursorConflict reports whether err wraps ErrCursorConflict.
func IsCursorConflict(err error) bool {
	return errors.Is(err, ErrCursorConflict)
}

// Store is the workflow directory and natural-trigger cursor contract.
type Store interface {
	// Get resolves id to its current definition. Returns ErrNotFound if no
	// such workflow exists.
	Get(ctx context.Context, id models.WorkflowId) (models.Workflow, error)

	// List returns every workflow definition, enabled or not.
	List(ctx context.Context) ([]models.Workflow, error)

	// Save creates or updates a workflow definition.
	Save(ctx context.Context, workflow models.Workflow) error

	// Delete removes a workflow definition.
	Delete(ctx context.Context, id models.WorkflowId) error

	// NextTrigger returns the workflow's current natural-trigger cursor.
	// ok is false if no cursor has been seeded yet.
	NextTrigger(ctx context.Context, id models.WorkflowId) (at time.Time, ok bool, err error)

	// SeedNextTrigger sets id's cursor if one doesn't already exist. Used
	// when a workflow is first created or its schedule changes.
	SeedNextTrigger(ctx context.Context, id models.WorkflowId, at time.Time) error

	// AdvanceNextTrigger moves id's cursor from expected to next. Returns
	// ErrCursorConflict if the stored value no longer equals expected.
	AdvanceNextTrigger(ctx context.Context, id models.WorkflowId, expected, next time.Time) error
}
