// Package runner defines the container runtime adapter contract, with two
// concrete adapters: pkg/runner/local for development and
// pkg/runner/kubernetes for production.
package runner

import (
	"context"
	"errors"

	"github.com/dukex/styxgo/pkg/models"
)

// ErrExecutionNotFound is returned by Status when the runner
// has no record of executionID, e.g. because the process that started it
// was restarted and the runner's own bookkeeping was lost.
var ErrExecutionNotFound = errors.New("execution not found")

// ExecutionStatus reports what the runner currently knows about a
// submitted execution, polled by DockerRunnerHandler between Submitted and
// Terminate.
type ExecutionStatus struct {
	// Running is true once the runner has observed the container actually
	// executing (backs the Started event), false while still pending.
	Running bool

	// Terminated is true once the container has exited, successfully or
	// not. ExitCode is only meaningful when Terminated is true.
	Terminated bool
	ExitCode   *int
}

// Runner starts, tracks, and cleans up container executions for one
// triggered WorkflowInstance. Implementations are not required to be
// durable: DockerRunnerHandler's poll loop that watches Status is an
// in-process goroutine, so a process restart loses it for whatever
// executions were in flight. The event log replayer rebuilds the RunState
// itself on restart either way, and the scheduler's stale-state timeout is
// the backstop that eventually fails an instance whose poller was lost
// instead of leaving it stuck in SUBMITTED/RUNNING forever.
type Runner interface {
	// Start submits configuration's image/command/resources for instance,
	// returning a runner-assigned execution id. Start must not block for
	// the execution's full lifetime — it returns once the runtime has
	// accepted the submission.
	Start(ctx context.Context, instance models.WorkflowInstance, configuration models.WorkflowConfiguration, description string) (executionID string, err error)

	// Status polls the current state of a previously started execution.
	Status(ctx context.Context, executionID string) (ExecutionStatus, error)

	// Cleanup releases any runner-side resources (containers, volumes,
	// pods) held for executionID. Called once the owning RunState reaches
	// TERMINATED, FAILED, or DONE. Idempotent.
	Cleanup(ctx context.Context, executionID string) error
}
