package planValidator

import (
	"strings"
	"time"

	"comply/middleware"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// TemplatePayload is a certificate template definition
type TemplatePayload struct {
	Name          string     `json:"name" validate:"required"`
	IssueStrategy string     `json:"issue_strategy" validate:"omitempty,oneof=AUTO MANUAL"`
	ValidityType  string     `json:"validity_type" validate:"omitempty,oneof=FIXED_DATE DURATION PERMANENT"`
	ValidityDays  int        `json:"validity_days" validate:"gte=0"`
	FixedExpireAt *time.Time `json:"fixed_expire_at"`

	CourseCompletionPercent float64 `json:"course_completion_percent" validate:"gte=0,lte=100"`
	ExamScorePercent        float64 `json:"exam_score_percent" validate:"gte=0,lte=100"`
	RequireProfileApproved  *bool   `json:"require_profile_approved"`
	RequireOnsiteAssessment bool    `json:"require_onsite_assessment"`

	Renewable *bool `json:"renewable"`
	PlanID    uint  `json:"plan_id"` // optional, enables plan-specific rule checks
}

// CreateTemplate validates a certificate template payload. The rule
// semantics themselves (InvalidRule) are checked by the controller at save
// time, never at evaluation time.
func CreateTemplate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(TemplatePayload)

		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		errors := make(map[string]string)

		if err := validate.Struct(reqData); err != nil {
			for _, fieldErr := range err.(validator.ValidationErrors) {
				errors[strings.ToLower(fieldErr.Field())] = "Failed validation: " + fieldErr.Tag()
			}
		}

		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedTemplate", reqData)
		return c.Next()
	}
}
