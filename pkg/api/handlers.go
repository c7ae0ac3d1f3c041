package api

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/dukex/styxgo/pkg/backfill"
	"github.com/dukex/styxgo/pkg/models"
)

// Handlers implements the /api/v3/backfills surface over a backfill.Engine.
// Grounded on web.APIHandlers (one struct per resource,
// validator.Validate injected, handler methods doing parse-validate-call-
// map and nothing else).
type Handlers struct {
	engine   *backfill.Engine
	validate *validator.Validate
}

// NewHandlers builds a Handlers over engine.
func NewHandlers(engine *backfill.Engine) *Handlers {
	return &Handlers{
		engine:   engine,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// ListBackfills handles GET /backfills.
func (h *Handlers) ListBackfills(c fiber.Ctx) error {
	filter := backfill.Filter{ShowAll: queryBool(c, "showAll")}
	if v := c.Query("component"); v != "" {
		filter.Component = &v
	}
	if v := c.Query("workflow"); v != "" {
		filter.Workflow = &v
	}

	backfills, err := h.engine.List(c.Context(), filter)
	if err != nil {
		return internalError(c, err)
	}

	withStatus := queryBool(c, "status")
	payloads := make([]BackfillPayload, 0, len(backfills))
	for _, b := range backfills {
		payloads = append(payloads, h.toPayload(c, b, withStatus))
	}

	return c.JSON(BackfillsResponse{Backfills: payloads})
}

// CreateBackfill handles POST /backfills.
func (h *Handlers) CreateBackfill(c fiber.Ctx) error {
	var req BackfillInput
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	if err := h.validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	if !req.Start.Before(req.End) {
		return badRequest(c, "start must be before end")
	}

	b, err := h.engine.Create(c.Context(), backfill.CreateInput{
		WorkflowId:        models.WorkflowId{Component: req.Component, Name: req.Workflow},
		Start:             req.Start,
		End:               req.End,
		Concurrency:       req.Concurrency,
		Description:       req.Description,
		Reverse:           req.Reverse,
		TriggerParameters: req.TriggerParameters,
		AllowFuture:       queryBool(c, "allowFuture"),
	})
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(b)
}

// GetBackfill handles GET /backfills/{id}.
func (h *Handlers) GetBackfill(c fiber.Ctx) error {
	b, err := h.engine.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(h.toPayload(c, b, queryBool(c, "status")))
}

// UpdateBackfill handles PUT /backfills/{id}.
func (h *Handlers) UpdateBackfill(c fiber.Ctx) error {
	var req EditableBackfillInput
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	if err := h.validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	b, err := h.engine.Update(c.Context(), c.Params("id"), req.Concurrency, req.Description)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(b)
}

// HaltBackfill handles DELETE /backfills/{id}. A backfill is never
// physically deleted — DELETE halts it, mirroring BackfillResource's own
// mapping of the verb onto haltBackfill.
func (h *Handlers) HaltBackfill(c fiber.Ctx) error {
	if err := h.engine.Halt(c.Context(), c.Params("id")); err != nil {
		if errors.Is(err, backfill.ErrNotFound) {
			return notFound(c, "backfill not found")
		}
		return internalError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handlers) toPayload(c fiber.Ctx, b models.Backfill, withStatus bool) BackfillPayload {
	payload := BackfillPayload{
		ID:                b.ID,
		Component:         b.WorkflowId.Component,
		Workflow:          b.WorkflowId.Name,
		Start:             b.Start,
		End:               b.End,
		Concurrency:       b.Concurrency,
		NextTrigger:       b.NextTrigger,
		Description:       b.Description,
		Reverse:           b.Reverse,
		AllTriggered:      b.AllTriggered,
		Halted:            b.Halted,
		TriggerParameters: b.TriggerParameters,
		CreatedAt:         b.CreatedAt,
	}

	if !withStatus {
		return payload
	}

	statuses, err := h.engine.Status(c.Context(), b.ID)
	if err != nil {
		return payload
	}
	payload.Statuses = make([]InstanceStatusPayload, 0, len(statuses))
	for _, s := range statuses {
		payload.Statuses = append(payload.Statuses, InstanceStatusPayload{
			Instance: s.WorkflowInstance.String(),
			State:    s.State,
		})
	}

	return payload
}

func queryBool(c fiber.Ctx, key string) bool {
	v, err := strconv.ParseBool(c.Query(key))
	return err == nil && v
}
