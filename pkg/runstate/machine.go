// Package runstate implements the per-instance state machine (C3): a pure
// function from the current (State, StateData) and an incoming event to
// the next (State, StateData), with no side effects and no knowledge of
// storage, workers, or time beyond the single timestamp it is given.
//
// Grounded directly on the abridged RunState transition table this system
// specifies; no direct analogue for this exact machine exists elsewhere in
// the codebase, so the Go shape here (a plain function over value types,
// no interfaces) follows a general preference for small pure helpers over
// a heavyweight FSM library — none are wired in anywhere in this module.
package runstate

import (
	"errors"
	"fmt"
	"time"

	"github.com/dukex/styxgo/pkg/models"
)

// ErrIllegalTransition is returned when an event is not valid for the
// RunState's current state.
var ErrIllegalTransition = errors.New("illegal transition")

// IllegalTransitionError names the state and event type that were
// rejected, for logging; callers such as the backfill engine and the
// trigger manager test for it with errors.Is(err, ErrIllegalTransition).
type IllegalTransitionError struct {
	State State
	Event models.EventType
}

type State = models.State

func (e IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition: event %s not valid in state %s", e.Event, e.State)
}

func (e IllegalTransitionError) Unwrap() error { return ErrIllegalTransition }

// DefaultBaseRetryDelay and DefaultMaxRetryExponent feed RetryDelay when
// the caller has no override configured.
const (
	DefaultBaseRetryDelay   = 10 * time.Second
	DefaultMaxRetryExponent = 6 // base * 2^6 = base * 64
)

// RetryDelay computes the exponential backoff delay for a given retry
// attempt count, capped at ceiling.
func RetryDelay(base time.Duration, retryCost, maxExponent int, ceiling time.Duration) time.Duration {
	exp := retryCost
	if exp > maxExponent {
		exp = maxExponent
	}
	if exp < 0 {
		exp = 0
	}
	delay := base * time.Duration(1<<uint(exp))
	if ceiling > 0 && delay > ceiling {
		delay = ceiling
	}
	return delay
}

// Apply is the sole pure transition function of the run state machine. It
// never consults the clock or storage: occurredAt is a caller-supplied
// timestamp used only to order appended messages.
func Apply(state State, data models.StateData, event models.Event, occurredAt time.Time) (State, models.StateData, error) {
	if state.IsTerminal() {
		return state, data, IllegalTransitionError{State: state, Event: event.Type()}
	}

	// Wildcard events accepted from any non-terminal state.
	switch ev := event.(type) {
	case models.Halt:
		return models.StateDone, data, nil
	case models.Timeout:
		return models.StateFailed, data.WithMessage("warning", "state timed out", occurredAt), nil
	case models.Info:
		return state, data.WithMessage(ev.Level, ev.Message, occurredAt), nil
	case models.Created:
		return state, data, nil
	}

	switch state {
	case models.StateNew:
		if ev, ok := event.(models.TriggerExecution); ok {
			data.TriggerID = ev.TriggerID
			data.TriggerType = ev.TriggerType
			data.TriggerParameters = ev.TriggerParameters
			return models.StateQueued, data, nil
		}

	case models.StateQueued:
		if _, ok := event.(models.Dequeue); ok {
			return models.StatePrepare, data, nil
		}

	case models.StatePrepare:
		if ev, ok := event.(models.Submit); ok {
			data.ExecutionDescription = ev.ExecutionDescription
			return models.StateSubmitting, data, nil
		}

	case models.StateSubmitting:
		switch ev := event.(type) {
		case models.Submitted:
			data.ExecutionID = ev.ExecutionID
			return models.StateSubmitted, data, nil
		case models.RunError:
			return models.StateFailed, data.WithMessage("error", ev.Message, occurredAt), nil
		}

	case models.StateSubmitted:
		if _, ok := event.(models.Started); ok {
			return models.StateRunning, data, nil
		}

	case models.StateRunning:
		if ev, ok := event.(models.Terminate); ok {
			data.LastExit = ev.ExitCode
			if ev.ExitCode != nil && *ev.ExitCode == 0 {
				return models.StateDone, data, nil
			}
			return models.StateTerminated, data, nil
		}

	case models.StateTerminated, models.StateFailed:
		switch ev := event.(type) {
		case models.RetryAfter:
			data.RetryDelayMillis = ev.DelayMillis
			return models.StateAwaitingRetry, data, nil
		case models.RunError:
			return models.StateFailed, data.WithMessage("error", ev.Message, occurredAt), nil
		}

	case models.StateAwaitingRetry:
		if _, ok := event.(models.Retry); ok {
			data.RetryCost++
			return models.StateQueued, data, nil
		}
	}

	return state, data, IllegalTransitionError{State: state, Event: event.Type()}
}
