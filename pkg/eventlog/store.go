package eventlog

import (
	"context"
	"time"

	"github.com/dukex/styxgo/pkg/models"
)

// StoredEvent is one row read back from the log: the event itself plus the
// counter and wall-clock time it was appended at.
type StoredEvent struct {
	Event     models.Event
	Counter   int64
	Timestamp time.Time
}

// ActiveEntry is one row of the active-instance index.
type ActiveEntry struct {
	Instance  models.WorkflowInstance
	Counter   int64
	TriggerID string
}

// Store is the event log and active-instance index contract (C1). Append
// and the index methods are separate operations: no implementation makes
// an Append and the matching index update one atomic step (the Postgres
// Append transaction covers only the event insert). The state manager
// issues them one after the other from the single shard that owns the
// instance, so a crash between the two can leave the index behind the log.
type Store interface {
	// Append durably logs event for instance, assigning it the counter
	// immediately following expectedCounter. If the log's current counter
	// for instance does not equal expectedCounter, Append returns
	// ErrConflict and the caller must re-read and retry.
	Append(ctx context.Context, instance models.WorkflowInstance, event models.Event, expectedCounter int64) (newCounter int64, err error)

	// ReadEvents returns every event logged for instance, in counter
	// order.
	ReadEvents(ctx context.Context, instance models.WorkflowInstance) ([]StoredEvent, error)

	// IndexUpsert records instance as active at counter, triggered by
	// triggerID. Called after, and separately from, the Append that made
	// the instance active or advanced it.
	IndexUpsert(ctx context.Context, instance models.WorkflowInstance, counter int64, triggerID string) error

	// IndexRemove drops instance from the active-instance index, called
	// once its RunState reaches a terminal state.
	IndexRemove(ctx context.Context, instance models.WorkflowInstance) error

	// IndexRead returns every row of the active-instance index, keyed by
	// the instance's canonical string form.
	IndexRead(ctx context.Context) (map[string]ActiveEntry, error)

	// IndexReadByTriggerID returns every active-instance index row whose
	// TriggerID equals triggerID — used by the backfill engine to count and
	// halt the active instances a specific backfill triggered.
	IndexReadByTriggerID(ctx context.Context, triggerID string) (map[string]ActiveEntry, error)
}
