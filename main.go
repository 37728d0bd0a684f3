package main

import (
	"comply/config"
	controllers "comply/controllers/plan"
	"comply/database"
	"comply/middleware"
	certificateRoutes "comply/routers/certificateRoutes"
	factRoutes "comply/routers/factRoutes"
	planRoutes "comply/routers/planRoutes"
	"comply/services"
	"comply/utils"

	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func main() {
	config.LoadConfig()
	database.ConnectDb()

	orch := services.NewOrchestrator(database.Database.Db, config.AppConfig.RenewalGraceDays)
	dispatcher := services.NewEventDispatcher(database.Database.Db, config.AppConfig.NotifyWebhookURL)
	controllers.Init(orch)

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE",        // Allowed HTTP methods
		AllowHeaders: "Content-Type,Authorization", // Allowed headers
	}))

	// Enable the built-in logger middleware to log all requests
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${ip} ${method} ${path} ${status} ${latency}\n",
	}))

	planRoutes.SetupPlanRoutes(app)
	factRoutes.SetupFactRoutes(app)
	certificateRoutes.SetupCertificateRoutes(app)

	utils.InitializeComplianceScheduler(orch, dispatcher)

	if token, err := middleware.GenerateServiceToken("bootstrap-admin"); err != nil {
		log.Printf("Failed to generate bootstrap token: %v", err)
	} else {
		log.Printf("Bootstrap admin token (valid 24h): %s", token)
	}

	log.Printf("Server is running on port %s", config.AppConfig.Port)
	log.Fatal(app.Listen(":" + config.AppConfig.Port))
}
