package models

import (
	"errors"
	"time"
)

// Backfill is a bounded, replayable set of triggers for historical (or, in
// reverse mode, not-yet-natural) partitions, with its own concurrency cap
// independent of the workflow's natural trigger cadence.
//
// Grounded on original_source's BackfillResource.java / Backfill.java:
// start is inclusive, end exclusive, both schedule-aligned; nextTrigger
// lies in [start, end], except that a reverse backfill which has triggered
// its start partition leaves it one partition below start; forward
// backfills only increase nextTrigger, reverse only decrease it.
type Backfill struct {
	ID                string            `json:"id"`
	WorkflowId        WorkflowId        `json:"workflow_id"`
	Start             time.Time         `json:"start"`
	End               time.Time         `json:"end"`
	Schedule          Schedule          `json:"schedule"`
	Concurrency       int               `json:"concurrency"`
	NextTrigger       time.Time         `json:"next_trigger"`
	Description       string            `json:"description,omitempty"`
	Reverse           bool              `json:"reverse"`
	AllTriggered      bool              `json:"all_triggered"`
	Halted            bool              `json:"halted"`
	TriggerParameters map[string]string `json:"trigger_parameters,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}

var (
	ErrBackfillRange       = errors.New("start must be strictly before end")
	ErrBackfillMisaligned  = errors.New("start or end is not aligned with schedule")
	ErrBackfillConcurrency = errors.New("concurrency must be at least 1")
	ErrBackfillNextTrigger = errors.New("next trigger out of [start, end] range")
)

// Validate checks a Backfill's invariants: start < end, both aligned,
// concurrency >= 1, and nextTrigger within [start, end].
func (b Backfill) Validate() error {
	if !b.Start.Before(b.End) {
		return ErrBackfillRange
	}
	if !b.Schedule.Aligned(b.Start) || !b.Schedule.Aligned(b.End) {
		return ErrBackfillMisaligned
	}
	if b.Concurrency < 1 {
		return ErrBackfillConcurrency
	}
	if b.NextTrigger.Before(b.Start) || b.NextTrigger.After(b.End) {
		return ErrBackfillNextTrigger
	}
	return nil
}

// Done reports whether this backfill has triggered every partition in its
// range: nextTrigger has reached the end of the range in its direction of
// travel (end for a forward backfill, below start for a reverse one).
func (b Backfill) Done() bool {
	if b.Reverse {
		return b.NextTrigger.Before(b.Start)
	}
	return !b.NextTrigger.Before(b.End)
}

// ActiveInstance is one row of the state manager's active-instance index:
// the instances currently tracked in memory because they have not yet
// reached a terminal state.
type ActiveInstance struct {
	WorkflowInstance WorkflowInstance `json:"workflow_instance"`
	Counter          int64            `json:"counter"`
	TriggerID        string           `json:"trigger_id"`
}
