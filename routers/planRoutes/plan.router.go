package planRoutes

import (
	controllers "comply/controllers/plan"
	"comply/middleware"
	validators "comply/validators/plan"

	"github.com/gofiber/fiber/v2"
)

// SetupPlanRoutes sets up plan definition, lifecycle and rollup routes
func SetupPlanRoutes(app *fiber.App) {
	planGroup := app.Group("/plan")

	// Plan definition and lifecycle
	planGroup.Post("/", middleware.JWTMiddleware, validators.CreatePlan(), controllers.CreatePlan)
	planGroup.Post("/:id/transition", middleware.JWTMiddleware, validators.PlanIDParam(), validators.TransitionPlan(), controllers.TransitionPlan)

	// Rollup output and certificate evaluation
	planGroup.Get("/:id/coverage", middleware.JWTMiddleware, validators.PlanIDParam(), controllers.GetPlanCoverage)
	planGroup.Post("/:id/evaluate-certificates", middleware.JWTMiddleware, validators.PlanIDParam(), controllers.EvaluatePlanCertificates)
	planGroup.Get("/:id/events", middleware.JWTMiddleware, validators.PlanIDParam(), controllers.GetPlanEvents)

	// Escalation handling
	app.Post("/escalation/:id/resolve", middleware.JWTMiddleware, validators.IDParam("id", "eventID"), controllers.ResolveEscalation)

	// HR reference feed
	app.Post("/unit", middleware.JWTMiddleware, validators.CreateUnit(), controllers.CreateUnit)
	app.Post("/learner", middleware.JWTMiddleware, validators.CreateLearner(), controllers.CreateLearner)
}
