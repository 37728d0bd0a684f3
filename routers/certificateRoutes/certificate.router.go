package certificateRoutes

import (
	controllers "comply/controllers/plan"
	"comply/middleware"
	validators "comply/validators/plan"

	"github.com/gofiber/fiber/v2"
)

// SetupCertificateRoutes sets up template and certificate record routes
func SetupCertificateRoutes(app *fiber.App) {
	app.Post("/template", middleware.JWTMiddleware, validators.CreateTemplate(), controllers.CreateTemplate)

	certGroup := app.Group("/certificate")
	certGroup.Get("/:id", middleware.JWTMiddleware, validators.IDParam("id", "learnerID"), controllers.GetLearnerCertificates)
	certGroup.Post("/:id/revoke", middleware.JWTMiddleware, validators.IDParam("id", "recordID"), controllers.RevokeCertificate)
	certGroup.Post("/:id/renew", middleware.JWTMiddleware, validators.IDParam("id", "recordID"), controllers.RenewCertificate)
}
