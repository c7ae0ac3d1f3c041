package api

import (
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"go.opentelemetry.io/otel/trace"

	"github.com/dukex/styxgo/pkg/backfill"
)

// API builds the Fiber app exposing the backfill engine over HTTP.
// Grounded on cmd/operion-api/api.go App() factory: one
// top-level group per resource, CORS + access log + recover as global
// middleware, a liveness/readiness pair for the orchestrator.
type API struct {
	engine *backfill.Engine
	tracer trace.Tracer
}

// New builds an API over engine, tracing every request with tracer.
func New(engine *backfill.Engine, tracer trace.Tracer) *API {
	return &API{engine: engine, tracer: tracer}
}

// App assembles the Fiber app. Call once at process start; App.Listen
// blocks the caller.
func (a *API) App() *fiber.App {
	handlers := NewHandlers(a.engine)

	app := fiber.New()
	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{DisableColors: true}))
	app.Use(requestID)
	app.Use(tracing(a.tracer))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	v3 := app.Group("/api/v3")
	v3.Get("/backfills", handlers.ListBackfills)
	v3.Post("/backfills", handlers.CreateBackfill)
	v3.Get("/backfills/:id", handlers.GetBackfill)
	v3.Put("/backfills/:id", handlers.UpdateBackfill)
	v3.Delete("/backfills/:id", handlers.HaltBackfill)

	return app
}

// Start assembles the app and listens on port, blocking until the
// listener stops.
func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}
