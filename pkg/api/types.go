// Package api provides the HTTP surface (C10): CRUD and status for
// backfills over the Backfill engine, exposed under /api/v3. Grounded on
// pkg/web package (Fiber v3 handlers, validator-tagged
// request DTOs, moogar0880/problems error envelopes).
package api

import "time"

// BackfillInput is the POST /backfills request body.
type BackfillInput struct {
	Component         string            `json:"component"          validate:"required"`
	Workflow          string            `json:"workflow"           validate:"required"`
	Start             time.Time         `json:"start"              validate:"required"`
	End               time.Time         `json:"end"                validate:"required"`
	Concurrency       int               `json:"concurrency"        validate:"required,min=1"`
	Description       string            `json:"description,omitempty"`
	Reverse           bool              `json:"reverse,omitempty"`
	TriggerParameters map[string]string `json:"triggerParameters,omitempty"`
}

// EditableBackfillInput is the PUT /backfills/{id} request body. Only
// concurrency and description may be edited; a nil pointer leaves the
// corresponding column unchanged.
type EditableBackfillInput struct {
	Concurrency *int    `json:"concurrency,omitempty" validate:"omitempty,min=1"`
	Description *string `json:"description,omitempty"`
}

// InstanceStatusPayload is one row of a BackfillPayload's statuses list.
type InstanceStatusPayload struct {
	Instance string `json:"workflowInstance"`
	State    string `json:"state"`
}

// BackfillPayload is a Backfill enriched with its per-partition statuses,
// returned by GET /backfills and GET /backfills/{id} when the caller asked
// for status (the "status" query param).
type BackfillPayload struct {
	ID                string            `json:"id"`
	Component         string            `json:"component"`
	Workflow          string            `json:"workflow"`
	Start             time.Time         `json:"start"`
	End               time.Time         `json:"end"`
	Concurrency       int               `json:"concurrency"`
	NextTrigger       time.Time         `json:"nextTrigger"`
	Description       string            `json:"description,omitempty"`
	Reverse           bool              `json:"reverse"`
	AllTriggered      bool              `json:"allTriggered"`
	Halted            bool              `json:"halted"`
	TriggerParameters map[string]string `json:"triggerParameters,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	Statuses          []InstanceStatusPayload `json:"statuses,omitempty"`
}

// BackfillsResponse is the GET /backfills envelope.
type BackfillsResponse struct {
	Backfills []BackfillPayload `json:"backfills"`
}
