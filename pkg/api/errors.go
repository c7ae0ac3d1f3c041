package api

import (
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/dukex/styxgo/pkg/backfill"
	"github.com/dukex/styxgo/pkg/workflow"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func conflict(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType("conflict").
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

// internalError stamps the request id into the problem detail alongside
// the error, so a report back to the caller can be matched to server-side
// logs for the same request.
func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithDetail("storage error (request-id " + c.GetRespHeader(headerRequestID) + "): " + err.Error())

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleEngineError maps backfill.Engine's sentinel errors onto status
// codes: 400 for validation, 404 for missing workflow or backfill, 409 for
// an active-instance conflict, 500 otherwise.
func handleEngineError(c fiber.Ctx, err error) error {
	switch {
	case errorsIsAny(err, backfill.ErrInvalidRange, backfill.ErrMisaligned, backfill.ErrFuturePartition, backfill.ErrWorkflowUnconfigured):
		return badRequest(c, err.Error())

	case errorsIsAny(err, backfill.ErrWorkflowNotFound, workflow.ErrNotFound):
		return notFound(c, "workflow not found")

	case errorsIsAny(err, backfill.ErrNotFound):
		return notFound(c, "backfill not found")

	case errorsIsAny(err, backfill.ErrActiveConflict):
		return conflict(c, err.Error())

	default:
		return internalError(c, err)
	}
}
