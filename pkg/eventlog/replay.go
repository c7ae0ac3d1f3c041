package eventlog

import (
	"context"
	"fmt"

	"github.com/dukex/styxgo/pkg/models"
	"github.com/dukex/styxgo/pkg/runstate"
)

// Replay reads every event logged for instance and folds it through the
// run state machine (C3) starting from the NEW base state, in counter
// order. It is idempotent and deterministic: replaying the same log twice
// always yields the same RunState.
//
// Used at boot to rebuild the in-memory active-state map (hand the result
// to the state manager's Restore), and by the backfill status endpoint to
// reconstruct the last known state of instances no longer in the active
// index.
func Replay(ctx context.Context, store Store, instance models.WorkflowInstance) (models.RunState, error) {
	events, err := store.ReadEvents(ctx, instance)
	if err != nil {
		return models.RunState{}, &EventLogError{Op: "Replay", Instance: instance, Err: err}
	}
	if len(events) == 0 {
		return models.RunState{}, &EventLogError{Op: "Replay", Instance: instance, Err: ErrNotFound}
	}

	rs := models.NewRunState(instance)
	for _, stored := range events {
		state, data, err := runstate.Apply(rs.State, rs.StateData, stored.Event, stored.Timestamp)
		if err != nil {
			return models.RunState{}, &EventLogError{
				Op:       "Replay",
				Instance: instance,
				Err:      fmt.Errorf("replay stopped at counter %d: %w", stored.Counter, err),
			}
		}
		rs.State = state
		rs.StateData = data
		rs.Timestamp = stored.Timestamp
		rs.Counter = stored.Counter
	}

	return rs, nil
}

// ReplayAll rebuilds every active instance's RunState from the active
// index, for use at boot. Instances whose replay fails are reported via
// the errs map rather than aborting the whole rebuild: one corrupt
// instance must never block startup for every other instance.
func ReplayAll(ctx context.Context, store Store) (states []models.RunState, errs map[models.WorkflowInstance]error, err error) {
	index, err := store.IndexRead(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("read active index: %w", err)
	}

	errs = make(map[models.WorkflowInstance]error)
	for _, entry := range index {
		rs, rErr := Replay(ctx, store, entry.Instance)
		if rErr != nil {
			errs[entry.Instance] = rErr
			continue
		}
		states = append(states, rs)
	}

	return states, errs, nil
}
