package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/conveyor-ci/conveyor/pkg/coordinator"
	"github.com/conveyor-ci/conveyor/pkg/models"
	"github.com/conveyor-ci/conveyor/pkg/persistence"
	"github.com/conveyor-ci/conveyor/pkg/registry"
)

type APIHandlers struct {
	persistence persistence.Persistence
	coordinator *coordinator.Coordinator
	validator   *validator.Validate
	registry    *registry.Registry
}

func NewAPIHandlers(
	p persistence.Persistence,
	c *coordinator.Coordinator,
	validator *validator.Validate,
	registry *registry.Registry,
) *APIHandlers {
	return &APIHandlers{
		persistence: p,
		coordinator: c,
		validator:   validator,
		registry:    registry,
	}
}

func (h *APIHandlers) GetPipelines(c fiber.Ctx) error {
	pipelines, err := h.persistence.PipelineRepository().List(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	if pipelines == nil {
		pipelines = []*models.Pipeline{}
	}

	return c.JSON(pipelines)
}

func (h *APIHandlers) GetPipeline(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Pipeline ID is required")
	}

	pipeline, err := h.persistence.PipelineRepository().GetByID(c.Context(), id)
	if err != nil {
		if persistence.IsPipelineNotFound(err) {
			return notFound(c, "Pipeline not found")
		}

		return internalError(c, err)
	}

	return c.JSON(pipeline)
}

// CreatePipeline registers an immutable pipeline definition. The definition
// is validated structurally, then each action and trigger configuration is
// checked against its registered schema.
func (h *APIHandlers) CreatePipeline(c fiber.Ctx) error {
	var req CreatePipelineRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	id := req.ID
	if id == "" {
		id = "pipeline-" + uuid.New().String()[:8]
	}

	pipeline := &models.Pipeline{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Stages:      req.Stages,
		Triggers:    req.Triggers,
		Variables:   req.Variables,
		CreatedAt:   time.Now().UTC(),
	}

	if err := pipeline.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.registry.ValidatePipeline(pipeline); err != nil {
		return badRequest(c, err.Error())
	}

	if _, err := h.persistence.PipelineRepository().GetByID(c.Context(), pipeline.ID); err == nil {
		return conflict(c, "Pipeline already exists: "+pipeline.ID)
	}

	if err := h.persistence.PipelineRepository().Save(c.Context(), pipeline); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(pipeline)
}

func (h *APIHandlers) DeletePipeline(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Pipeline ID is required")
	}

	if err := h.persistence.PipelineRepository().Delete(c.Context(), id); err != nil {
		if persistence.IsPipelineNotFound(err) {
			return notFound(c, "Pipeline not found")
		}

		return internalError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// SubmitRun is the manual trigger: it enqueues a revision for the pipeline.
// Submitting a revision that already has a non-terminal run returns that
// run instead of creating a duplicate.
func (h *APIHandlers) SubmitRun(c fiber.Ctx) error {
	pipelineID := c.Params("id")
	if pipelineID == "" {
		return badRequest(c, "Pipeline ID is required")
	}

	var req SubmitRunRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	run, err := h.coordinator.Submit(c.Context(), pipelineID, req.Revision, req.TriggerID)
	if err != nil {
		if persistence.IsPipelineNotFound(err) {
			return notFound(c, "Pipeline not found")
		}

		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(run)
}

func (h *APIHandlers) GetRuns(c fiber.Ctx) error {
	pipelineID := c.Params("id")
	if pipelineID == "" {
		return badRequest(c, "Pipeline ID is required")
	}

	if _, err := h.persistence.PipelineRepository().GetByID(c.Context(), pipelineID); err != nil {
		if persistence.IsPipelineNotFound(err) {
			return notFound(c, "Pipeline not found")
		}

		return internalError(c, err)
	}

	runs, err := h.persistence.RunRepository().ListByPipeline(c.Context(), pipelineID)
	if err != nil {
		return internalError(c, err)
	}

	if runs == nil {
		runs = []*models.Run{}
	}

	return c.JSON(runs)
}

func (h *APIHandlers) GetRun(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Run ID is required")
	}

	run, err := h.persistence.RunRepository().GetByID(c.Context(), id)
	if err != nil {
		if persistence.IsRunNotFound(err) {
			return notFound(c, "Run not found")
		}

		return internalError(c, err)
	}

	return c.JSON(run)
}

// StopRun ends a run. Stopping a run that already reached a terminal state
// is a conflict, not an internal error.
func (h *APIHandlers) StopRun(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Run ID is required")
	}

	err := h.coordinator.Stop(c.Context(), id)
	if err != nil {
		switch {
		case persistence.IsRunNotFound(err):
			return notFound(c, "Run not found")
		case errors.Is(err, models.ErrInvalidTransition):
			return conflict(c, err.Error())
		default:
			return internalError(c, err)
		}
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (h *APIHandlers) GetRunOutputs(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Run ID is required")
	}

	run, err := h.persistence.RunRepository().GetByID(c.Context(), id)
	if err != nil {
		if persistence.IsRunNotFound(err) {
			return notFound(c, "Run not found")
		}

		return internalError(c, err)
	}

	return c.JSON(RunOutputsResponse{
		RunID:    run.ID,
		Status:   run.Status,
		Outputs:  run.Outputs,
		Revision: run.Revision,
	})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	message := "Conveyor API is healthy"
	httpStatus := http.StatusOK

	var repository string
	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		message = "Conveyor API is unhealthy"
		httpStatus = http.StatusInternalServerError
		repository = err.Error()
	} else {
		repository = "ok"
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repository,
		},
		"timestamp": time.Now().UTC(),
	})
}
