package planValidator

import (
	"strconv"
	"strings"

	"comply/middleware"

	"github.com/gofiber/fiber/v2"
)

// LearnerPayload is a learner record from the HR feed
type LearnerPayload struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	UnitID          uint   `json:"unit_id"`
	Role            string `json:"role"`
	Confirmed       bool   `json:"confirmed"`
	ProfileApproved bool   `json:"profile_approved"`
	OnsiteAssessed  bool   `json:"onsite_assessed"`
}

// CreateLearner validates a learner feed payload
func CreateLearner() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(LearnerPayload)

		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		errors := make(map[string]string)

		if strings.TrimSpace(reqData.Name) == "" {
			errors["name"] = "Name is required!"
		}
		if reqData.UnitID == 0 {
			errors["unit_id"] = "Unit ID is required!"
		}

		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedLearner", reqData)
		return c.Next()
	}
}

// UnitPayload is an organizational unit definition
type UnitPayload struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// CreateUnit validates a unit definition payload
func CreateUnit() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(UnitPayload)

		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		if strings.TrimSpace(reqData.Code) == "" {
			return middleware.ValidationErrorResponse(c, map[string]string{"code": "Code is required!"})
		}

		c.Locals("validatedUnit", reqData)
		return c.Next()
	}
}

// IDParam validates a positive integer path parameter and stores it under localKey
func IDParam(param, localKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		idStr := strings.TrimSpace(c.Params(param))
		if idStr == "" {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "ID is required!", nil)
		}

		id, err := strconv.Atoi(idStr)
		if err != nil || id <= 0 {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid ID!", nil)
		}

		c.Locals(localKey, id)
		return c.Next()
	}
}
