// Package models defines the core domain types for the time-partitioned
// workflow scheduler: workflow identity and configuration, schedules,
// instances, run state, the event log's event variants, and backfills.
package models

// WorkflowId identifies a workflow by its owning component and name.
// Two WorkflowIds are equal iff both fields are equal.
type WorkflowId struct {
	Component string `json:"component" validate:"required"`
	Name      string `json:"name"      validate:"required"`
}

// String renders the canonical "component#name" form used in logs, event
// keys, and as the workflow id path segment in the HTTP API.
func (w WorkflowId) String() string {
	return w.Component + "#" + w.Name
}

// ResourceRequirements bounds the compute resources a triggered execution
// may request from the runner.
type ResourceRequirements struct {
	CPU    string `json:"cpu,omitempty"`
	Memory string `json:"memory,omitempty"`
}

// SecretSpec names a secret mount made available to the container at
// execution time. The secret's contents are never held by this process.
type SecretSpec struct {
	Name      string `json:"name"`
	MountPath string `json:"mount_path"`
}

// WorkflowConfiguration carries everything the runner needs to submit an
// execution once a workflow instance is triggered. A workflow with a nil
// DockerImage is unconfigured: it can be scheduled but never submitted.
type WorkflowConfiguration struct {
	DockerImage *string               `json:"docker_image,omitempty"`
	Resources   ResourceRequirements  `json:"resources"`
	Command     []string              `json:"args,omitempty"`
	Env         map[string]string     `json:"env,omitempty"`
	Secret      *SecretSpec           `json:"secret,omitempty"`
	CommitSHA   string                `json:"commit_sha,omitempty"`
}

// Configured reports whether this configuration carries enough information
// to submit an execution.
func (c WorkflowConfiguration) Configured() bool {
	return c.DockerImage != nil
}

// Workflow is the control-plane's durable definition of a schedulable unit
// of work: an identity, a partitioning schedule, and a submission
// configuration. A disabled workflow keeps its history but is skipped by
// the natural-trigger scan.
type Workflow struct {
	ID            WorkflowId            `json:"id"`
	Schedule      Schedule              `json:"schedule"`
	Configuration WorkflowConfiguration `json:"configuration"`
	Enabled       bool                  `json:"enabled"`
}
