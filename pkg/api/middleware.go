package api

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/gofiber/fiber/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dukex/styxgo/pkg/otelhelper"
)

const headerRequestID = "X-Request-Id"

// requestID echoes an inbound X-Request-Id or mints a fresh one (a UUID
// with its dashes stripped), and stamps it on the response before the
// handler runs so a panic recovered further up the middleware chain still
// sees it on the way out. Grounded on wilke-GoWe's
// request-id-in-context-and-header pattern (requestIDMiddleware), adapted
// from net/http to Fiber v3.
func requestID(c fiber.Ctx) error {
	id := c.Get(headerRequestID)
	if id == "" {
		id = strings.ReplaceAll(uuid.New().String(), "-", "")
	}
	c.Set(headerRequestID, id)

	return c.Next()
}

// tracing wraps every request in a span named after its route, stamping
// the request id requestID already minted and recording the final error,
// if any, once the handler chain returns.
func tracing(tracer trace.Tracer) fiber.Handler {
	return func(c fiber.Ctx) error {
		ctx, span := otelhelper.StartSpan(c.Context(), tracer, "api."+c.Method()+" "+c.Path(),
			attribute.String(otelhelper.RequestIDKey, c.Get(headerRequestID)),
		)
		defer span.End()

		c.SetContext(ctx)

		err := c.Next()
		if err != nil {
			otelhelper.SetError(span, err)
		}
		return err
	}
}

func errorsIsAny(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
