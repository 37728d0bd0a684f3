package planValidator

import (
	"strconv"
	"strings"
	"time"

	"comply/middleware"
	"comply/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// CourseRequirementPayload is one required course in a plan definition
type CourseRequirementPayload struct {
	CourseID            uint    `json:"course_id" validate:"required"`
	Required            *bool   `json:"required"`
	MinProgressPercent  float64 `json:"min_progress_percent" validate:"gte=0,lte=100"`
	MinQuizScorePercent float64 `json:"min_quiz_score_percent" validate:"gte=0,lte=100"`
	OrderIndex          int     `json:"order_index" validate:"gte=0"`
}

// ExamDefinitionPayload is one exam in a plan definition
type ExamDefinitionPayload struct {
	Name             string  `json:"name" validate:"required"`
	PassScorePercent float64 `json:"pass_score_percent" validate:"gte=0,lte=100"`
	AllowRetake      bool    `json:"allow_retake"`
	MaxAttempts      int     `json:"max_attempts" validate:"gte=0"`
	Required         *bool   `json:"required"`
}

// CreatePlanPayload matches the plan definition schema
type CreatePlanPayload struct {
	Code               string                     `json:"code" validate:"required"`
	Name               string                     `json:"name" validate:"required"`
	Type               string                     `json:"type" validate:"omitempty,oneof=ONBOARDING PROMOTION ANNUAL SPECIAL"`
	PeriodStart        time.Time                  `json:"period_start" validate:"required"`
	PeriodEnd          time.Time                  `json:"period_end" validate:"required"`
	Owner              string                     `json:"owner"`
	Sequential         bool                       `json:"sequential"`
	MinProgressPercent float64                    `json:"min_progress_percent" validate:"gte=0,lte=100"`
	RemindBeforeDays   int                        `json:"remind_before_days" validate:"gte=0"`
	TargetUnitIDs      []uint                     `json:"target_unit_ids" validate:"required,min=1"`
	TargetRoles        []string                   `json:"target_roles"`
	TemplateID         *uint                      `json:"template_id"`
	AutoIssue          bool                       `json:"auto_issue"`
	RequiredCourses    []CourseRequirementPayload `json:"required_courses" validate:"dive"`
	Exams              []ExamDefinitionPayload    `json:"exams" validate:"dive"`
}

// CreatePlan validates the plan definition payload
func CreatePlan() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(CreatePlanPayload)

		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		errors := make(map[string]string)

		if err := validate.Struct(reqData); err != nil {
			for _, fieldErr := range err.(validator.ValidationErrors) {
				errors[strings.ToLower(fieldErr.Field())] = "Failed validation: " + fieldErr.Tag()
			}
		}

		if !reqData.PeriodStart.IsZero() && !reqData.PeriodEnd.IsZero() && reqData.PeriodEnd.Before(reqData.PeriodStart) {
			errors["period_end"] = "Period end must not be before period start!"
		}

		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedPlan", reqData)
		return c.Next()
	}
}

// TransitionPayload carries a plan lifecycle action
type TransitionPayload struct {
	Action   string `json:"action"`
	Override bool   `json:"override"` // bypass the complete guard, logged
}

// TransitionPlan validates a plan transition request
func TransitionPlan() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(TransitionPayload)

		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		switch reqData.Action {
		case services.ActionSubmit, services.ActionApprove, services.ActionFinalize,
			services.ActionReject, services.ActionComplete, services.ActionArchive:
		default:
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Unknown transition action!", nil)
		}

		c.Locals("validatedTransition", reqData)
		return c.Next()
	}
}

// PlanIDParam validates the :id path parameter
func PlanIDParam() fiber.Handler {
	return func(c *fiber.Ctx) error {
		planIDStr := strings.TrimSpace(c.Params("id"))
		if planIDStr == "" {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Plan ID is required!", nil)
		}

		planID, err := strconv.Atoi(planIDStr)
		if err != nil || planID <= 0 {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid Plan ID!", nil)
		}

		c.Locals("planID", planID)
		return c.Next()
	}
}
