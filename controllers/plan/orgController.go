package controllers

import (
	"comply/database"
	"comply/middleware"
	"comply/models"
	validators "comply/validators/plan"

	"github.com/gofiber/fiber/v2"
)

// CreateUnit registers an organizational unit
func CreateUnit(c *fiber.Ctx) error {
	reqData := c.Locals("validatedUnit").(*validators.UnitPayload)
	db := database.Database.Db

	var existing models.Unit
	if err := db.Where("code = ? AND is_deleted = ?", reqData.Code, false).First(&existing).Error; err == nil {
		return middleware.JsonResponse(c, fiber.StatusConflict, false, "Unit code already exists!", nil)
	}

	unit := models.Unit{Code: reqData.Code, Name: reqData.Name}
	if err := db.Create(&unit).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to create unit!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Unit created successfully!", unit)
}

// CreateLearner registers a learner from the HR feed
func CreateLearner(c *fiber.Ctx) error {
	reqData := c.Locals("validatedLearner").(*validators.LearnerPayload)
	db := database.Database.Db

	var unit models.Unit
	if err := db.Where("id = ? AND is_deleted = ?", reqData.UnitID, false).First(&unit).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Unit not found!", nil)
	}

	learner := models.Learner{
		Name:            reqData.Name,
		Email:           reqData.Email,
		UnitID:          reqData.UnitID,
		Role:            reqData.Role,
		Confirmed:       reqData.Confirmed,
		ProfileApproved: reqData.ProfileApproved,
		OnsiteAssessed:  reqData.OnsiteAssessed,
	}
	if err := db.Create(&learner).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to create learner!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Learner created successfully!", learner)
}
