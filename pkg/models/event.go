package models

import "time"

// EventType discriminates the event log's event variants for JSON
// encoding and for storage-layer filtering (e.g. by trigger id).
type EventType string

const (
	EventTimeTrigger      EventType = "TimeTrigger"
	EventTriggerExecution EventType = "TriggerExecution"
	EventCreated          EventType = "Created"
	EventInfo             EventType = "Info"
	EventDequeue          EventType = "Dequeue"
	EventSubmit           EventType = "Submit"
	EventSubmitted        EventType = "Submitted"
	EventStarted          EventType = "Started"
	EventTerminate        EventType = "Terminate"
	EventRunError         EventType = "RunError"
	EventSuccess          EventType = "Success"
	EventRetry            EventType = "Retry"
	EventRetryAfter       EventType = "RetryAfter"
	EventStop             EventType = "Stop"
	EventTimeout          EventType = "Timeout"
	EventHalt             EventType = "Halt"
)

// EventHeader is embedded by every event variant. Counter is zero until
// the event has been durably appended to the log, at which point it holds
// the counter value the append assigned.
type EventHeader struct {
	WorkflowInstance WorkflowInstance `json:"workflow_instance"`
	Counter          int64            `json:"counter,omitempty"`
}

// Event is the sealed interface implemented by every event-log event
// variant. isEvent is unexported so no type outside this package can
// satisfy it, grounded on BaseEvent/GetType tagging pattern
// (pkg/events/events.go) generalized to a closed sum type matching Styx's
// state.Event hierarchy in original_source.
type Event interface {
	isEvent()
	Header() EventHeader
	Type() EventType
}

// TimeTrigger marks a natural or backfill partition becoming due. Nothing
// in this module emits it, and runstate.Apply accepts it in no state.
type TimeTrigger struct {
	EventHeader
	TriggerID string `json:"trigger_id"`
}

// TriggerExecution moves a RunState from NEW to QUEUED, recording which
// trigger (natural or backfill) is responsible for this run.
type TriggerExecution struct {
	EventHeader
	TriggerID         string            `json:"trigger_id"`
	TriggerType       string            `json:"trigger_type"`
	TriggerParameters map[string]string `json:"trigger_parameters,omitempty"`
}

// Created is the audit record of a RunState coming into existence,
// carrying the wall-clock time its owning TriggerExecution was decided.
// It never changes state on its own: the trigger manager and the backfill
// engine both emit it immediately ahead of the TriggerExecution that
// actually moves the instance from NEW to QUEUED, so the log carries a
// creation timestamp independent of whatever timestamp the first
// transition happens to be folded with.
type Created struct {
	EventHeader
	CreatedAt time.Time `json:"created_at"`
}

// Info appends a diagnostic message without changing state.
type Info struct {
	EventHeader
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Dequeue moves QUEUED to PREPARE. DequeueHandler emits it as soon as an
// instance reaches QUEUED; neither the rate limiter nor a concurrency gate
// is consulted at this step (the rate limiter gates submission, in
// DockerRunnerHandler).
type Dequeue struct {
	EventHeader
}

// Submit moves PREPARE to SUBMITTING with a resolved execution
// description.
type Submit struct {
	EventHeader
	ExecutionDescription string `json:"execution_description"`
}

// Submitted moves SUBMITTING to SUBMITTED once the runner has accepted the
// execution.
type Submitted struct {
	EventHeader
	ExecutionID string `json:"execution_id"`
}

// Started moves SUBMITTED to RUNNING once the runner reports the container
// has begun executing.
type Started struct {
	EventHeader
}

// Terminate moves RUNNING to DONE or TERMINATED depending on exit code.
type Terminate struct {
	EventHeader
	ExitCode *int `json:"exit_code,omitempty"`
}

// RunError moves SUBMITTING or TERMINATED to FAILED when the runner
// reports an unrecoverable error for the execution attempt.
type RunError struct {
	EventHeader
	Message string `json:"message"`
}

// Success names a successful terminal transition. runstate.Apply accepts
// it in no state, so a log containing it does not replay.
type Success struct {
	EventHeader
}

// RetryAfter moves TERMINATED or FAILED to AWAITING_RETRY with a computed
// backoff delay.
type RetryAfter struct {
	EventHeader
	DelayMillis int64 `json:"delay_millis"`
}

// Retry moves AWAITING_RETRY back to QUEUED for another attempt.
type Retry struct {
	EventHeader
}

// Stop names an operator request to halt a single instance without
// halting the owning backfill, if any. Nothing in this module emits it,
// and runstate.Apply accepts it in no state; halting goes through Halt.
type Stop struct {
	EventHeader
}

// Timeout is emitted by the scheduler tick when a RunState has spent
// longer than its state's configured TTL without progressing.
type Timeout struct {
	EventHeader
}

// Halt is an operator abort from any non-terminal state straight to DONE.
type Halt struct {
	EventHeader
}

func (TimeTrigger) isEvent()      {}
func (TriggerExecution) isEvent() {}
func (Created) isEvent()          {}
func (Info) isEvent()             {}
func (Dequeue) isEvent()          {}
func (Submit) isEvent()           {}
func (Submitted) isEvent()        {}
func (Started) isEvent()          {}
func (Terminate) isEvent()        {}
func (RunError) isEvent()         {}
func (Success) isEvent()          {}
func (RetryAfter) isEvent()       {}
func (Retry) isEvent()            {}
func (Stop) isEvent()             {}
func (Timeout) isEvent()          {}
func (Halt) isEvent()             {}

func (e TimeTrigger) Header() EventHeader      { return e.EventHeader }
func (e TriggerExecution) Header() EventHeader { return e.EventHeader }
func (e Created) Header() EventHeader          { return e.EventHeader }
func (e Info) Header() EventHeader             { return e.EventHeader }
func (e Dequeue) Header() EventHeader          { return e.EventHeader }
func (e Submit) Header() EventHeader           { return e.EventHeader }
func (e Submitted) Header() EventHeader        { return e.EventHeader }
func (e Started) Header() EventHeader          { return e.EventHeader }
func (e Terminate) Header() EventHeader        { return e.EventHeader }
func (e RunError) Header() EventHeader         { return e.EventHeader }
func (e Success) Header() EventHeader          { return e.EventHeader }
func (e RetryAfter) Header() EventHeader       { return e.EventHeader }
func (e Retry) Header() EventHeader            { return e.EventHeader }
func (e Stop) Header() EventHeader             { return e.EventHeader }
func (e Timeout) Header() EventHeader          { return e.EventHeader }
func (e Halt) Header() EventHeader             { return e.EventHeader }

func (TimeTrigger) Type() EventType      { return EventTimeTrigger }
func (TriggerExecution) Type() EventType { return EventTriggerExecution }
func (Created) Type() EventType          { return EventCreated }
func (Info) Type() EventType             { return EventInfo }
func (Dequeue) Type() EventType          { return EventDequeue }
func (Submit) Type() EventType           { return EventSubmit }
func (Submitted) Type() EventType        { return EventSubmitted }
func (Started) Type() EventType          { return EventStarted }
func (Terminate) Type() EventType        { return EventTerminate }
func (RunError) Type() EventType         { return EventRunError }
func (Success) Type() EventType          { return EventSuccess }
func (RetryAfter) Type() EventType       { return EventRetryAfter }
func (Retry) Type() EventType            { return EventRetry }
func (Stop) Type() EventType             { return EventStop }
func (Timeout) Type() EventType          { return EventTimeout }
func (Halt) Type() EventType             { return EventHalt }
