package backfill

import "errors"

var (
	// ErrNotFound is returned when a lookup finds no backfill with the
	// given id.
	ErrNotFound = errors.New("backfill not found")

	// ErrWorkflowNotFound is returned by Create when the named workflow
	// does not exist.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrWorkflowUnconfigured is returned by Create when the named
	// workflow has no docker image configured and so can never submit an
	// execution.
	ErrWorkflowUnconfigured = errors.New("workflow is not configured")

	// ErrInvalidRange is returned when start is not strictly before end.
	ErrInvalidRange = errors.New("start must be before end")

	// ErrMisaligned is returned when start or end is not aligned with the
	// workflow's schedule.
	ErrMisaligned = errors.New("start or end is not aligned with schedule")

	// ErrFuturePartition is returned by Create when the range includes
	// partitions after now and allowFuture was not set.
	ErrFuturePartition = errors.New("cannot backfill future partitions")

	// ErrActiveConflict is returned by Create when one or more partitions
	// in the requested range are already active under a different
	// trigger.
	ErrActiveConflict = errors.New("some partitions are already active under a different trigger")
)
