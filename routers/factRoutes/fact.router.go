package factRoutes

import (
	controllers "comply/controllers/plan"
	"comply/middleware"
	validators "comply/validators/plan"

	"github.com/gofiber/fiber/v2"
)

// SetupFactRoutes sets up the ingestion endpoints for the external
// learning-delivery system
func SetupFactRoutes(app *fiber.App) {
	app.Post("/progress-fact", middleware.JWTMiddleware, validators.ProgressFact(), controllers.IngestProgressFact)
	app.Post("/exam-attempt", middleware.JWTMiddleware, validators.ExamAttempt(), controllers.IngestExamAttempt)
}
