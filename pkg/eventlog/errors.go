// Package eventlog implements the append-only event log and active-instance
// index (C1), and the replay function that folds a logged sequence of
// events back into a RunState (C2).
package eventlog

import (
	"errors"
	"fmt"

	"github.com/dukex/styxgo/pkg/models"
)

// Standard event log error sentinels, grounded on
// pkg/persistence/errors.go's standardized-error-types pattern.
var (
	// ErrConflict is returned by Append when the caller's expectedCounter
	// does not match the log's current counter for the instance.
	ErrConflict = errors.New("event log conflict")

	// ErrIllegalTransition names a state-machine rejection at the event
	// log level. The Store implementations in this package never return
	// it: Append does not consult the state machine, and rejections from
	// runstate.Apply carry runstate.ErrIllegalTransition instead.
	ErrIllegalTransition = errors.New("illegal transition")

	// ErrNotFound is returned when an instance has no logged events.
	ErrNotFound = errors.New("instance not found in event log")
)

// EventLogError wraps an event log operation failure with the instance and
// operation it occurred on.
type EventLogError struct {
	Op       string
	Instance models.WorkflowInstance
	Err      error
}

func (e *EventLogError) Error() string {
	return fmt.Sprintf("%s operation failed for instance %s: %v", e.Op, e.Instance, e.Err)
}

func (e *EventLogError) Unwrap() error { return e.Err }

func (e *EventLogError) Is(target error) bool { return errors.Is(e.Err, target) }

// IsConflict reports whether err is (or wraps) ErrConflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsIllegalTransition reports whether err is (or wraps) ErrIllegalTransition.
func IsIllegalTransition(err error) bool { return errors.Is(err, ErrIllegalTransition) }

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
