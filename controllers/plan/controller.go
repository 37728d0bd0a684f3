package controllers

import (
	"errors"

	"comply/middleware"
	"comply/services"

	"github.com/gofiber/fiber/v2"
)

// orch is the shared orchestrator instance, set once from main. Sharing
// matters: per-plan locks live on it.
var orch *services.Orchestrator

// Init wires the controllers to the orchestrator
func Init(o *services.Orchestrator) {
	orch = o
}

// serviceErrorResponse maps engine errors to HTTP responses
func serviceErrorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, err.Error(), nil)
	case errors.Is(err, services.ErrInvalidFact), errors.Is(err, services.ErrInvalidRule):
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, err.Error(), nil)
	case errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrRetakeNotAllowed),
		errors.Is(err, services.ErrPlanNotReadyToComplete):
		return middleware.JsonResponse(c, fiber.StatusConflict, false, err.Error(), nil)
	}
	return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Internal server error!", nil)
}
