// Package main provides the Conveyor API server.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/conveyor-ci/conveyor/pkg/coordinator"
	"github.com/conveyor-ci/conveyor/pkg/persistence"
	"github.com/conveyor-ci/conveyor/pkg/registry"
	"github.com/conveyor-ci/conveyor/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	coordinator *coordinator.Coordinator
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	coordinator *coordinator.Coordinator,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		registry:    registry,
		coordinator: coordinator,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.persistence, a.coordinator, a.validate, a.registry)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Conveyor API")
	})

	pipelines := app.Group("/pipelines")
	pipelines.Get("/", handlers.GetPipelines)
	pipelines.Post("/", handlers.CreatePipeline)
	pipelines.Get("/:id", handlers.GetPipeline)
	pipelines.Delete("/:id", handlers.DeletePipeline)
	pipelines.Get("/:id/runs", handlers.GetRuns)
	pipelines.Post("/:id/runs", handlers.SubmitRun)

	runs := app.Group("/runs")
	runs.Get("/:id", handlers.GetRun)
	runs.Post("/:id/stop", handlers.StopRun)
	runs.Get("/:id/outputs", handlers.GetRunOutputs)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}
