package controllers

import (
	"encoding/json"

	"comply/database"
	"comply/middleware"
	"comply/models"
	planModels "comply/models/plan"
	validators "comply/validators/plan"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
)

// CreatePlan stores a new plan definition in DRAFT state
func CreatePlan(c *fiber.Ctx) error {
	reqData := c.Locals("validatedPlan").(*validators.CreatePlanPayload)
	db := database.Database.Db

	var existing planModels.Plan
	if err := db.Where("code = ? AND is_deleted = ?", reqData.Code, false).First(&existing).Error; err == nil {
		return middleware.JsonResponse(c, fiber.StatusConflict, false, "Plan code already exists!", nil)
	}

	if reqData.TemplateID != nil {
		var template planModels.CertificateTemplate
		if err := db.Where("id = ? AND is_deleted = ?", *reqData.TemplateID, false).First(&template).Error; err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Certificate template not found!", nil)
		}
	}

	unitIDs, _ := json.Marshal(reqData.TargetUnitIDs)
	roles, _ := json.Marshal(reqData.TargetRoles)

	planType := reqData.Type
	if planType == "" {
		planType = planModels.TypeAnnual
	}

	p := planModels.Plan{
		Code:               reqData.Code,
		Name:               reqData.Name,
		Type:               planType,
		PeriodStart:        reqData.PeriodStart,
		PeriodEnd:          reqData.PeriodEnd,
		Status:             planModels.StatusDraft,
		Owner:              reqData.Owner,
		Sequential:         reqData.Sequential,
		MinProgressPercent: reqData.MinProgressPercent,
		RemindBeforeDays:   reqData.RemindBeforeDays,
		TargetUnitIDs:      datatypes.JSON(unitIDs),
		TargetRoles:        datatypes.JSON(roles),
		TemplateID:         reqData.TemplateID,
		AutoIssue:          reqData.AutoIssue,
	}

	if err := db.Create(&p).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to create plan!", nil)
	}

	for _, course := range reqData.RequiredCourses {
		required := true
		if course.Required != nil {
			required = *course.Required
		}
		db.Create(&planModels.CourseRequirement{
			PlanID:              p.ID,
			CourseID:            course.CourseID,
			Required:            required,
			MinProgressPercent:  course.MinProgressPercent,
			MinQuizScorePercent: course.MinQuizScorePercent,
			OrderIndex:          course.OrderIndex,
		})
	}

	for _, exam := range reqData.Exams {
		required := true
		if exam.Required != nil {
			required = *exam.Required
		}
		db.Create(&planModels.ExamDefinition{
			PlanID:           p.ID,
			Name:             exam.Name,
			PassScorePercent: exam.PassScorePercent,
			AllowRetake:      exam.AllowRetake,
			MaxAttempts:      exam.MaxAttempts,
			Required:         required,
		})
	}

	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Plan created successfully!", p)
}

// TransitionPlan applies a lifecycle action to a plan
func TransitionPlan(c *fiber.Ctx) error {
	planID := c.Locals("planID").(int)
	reqData := c.Locals("validatedTransition").(*validators.TransitionPayload)

	newState, err := orch.TransitionPlan(uint(planID), reqData.Action, reqData.Override)
	if err != nil {
		return serviceErrorResponse(c, err)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Plan transitioned successfully!", fiber.Map{
		"plan_id":   planID,
		"new_state": newState,
	})
}

// GetPlanCoverage returns the current rollup for a plan
func GetPlanCoverage(c *fiber.Ctx) error {
	planID := c.Locals("planID").(int)
	db := database.Database.Db

	var p planModels.Plan
	if err := db.Where("id = ? AND is_deleted = ?", planID, false).First(&p).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Plan not found!", nil)
	}

	var coverages []planModels.UnitCoverage
	db.Where("plan_id = ?", planID).Order("unit_id asc").Find(&coverages)

	totalTarget := 0
	totalFinished := 0
	for _, coverage := range coverages {
		totalTarget += coverage.TargetLearnerCount
		totalFinished += coverage.FinishedLearnerCount
	}
	planRate := 0.0
	if totalTarget > 0 {
		planRate = float64(totalFinished) / float64(totalTarget)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Coverage fetched successfully!", fiber.Map{
		"plan":                 p,
		"units":                coverages,
		"plan_completion_rate": planRate,
	})
}

// EvaluatePlanCertificates runs the eligibility evaluation for a plan
func EvaluatePlanCertificates(c *fiber.Ctx) error {
	planID := c.Locals("planID").(int)

	issued, err := orch.EvaluateCertificates(uint(planID))
	if err != nil {
		return serviceErrorResponse(c, err)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Certificates evaluated successfully!", fiber.Map{
		"issued":       issued,
		"issued_count": len(issued),
	})
}

// GetPlanEvents lists outbound events for a plan, newest first
func GetPlanEvents(c *fiber.Ctx) error {
	planID := c.Locals("planID").(int)
	db := database.Database.Db

	var events []models.OutboundEvent
	db.Where("plan_id = ?", planID).Order("created_at desc").Find(&events)

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Events fetched successfully!", fiber.Map{
		"events": events,
		"total":  len(events),
	})
}

// ResolveEscalation marks an escalation event as handled
func ResolveEscalation(c *fiber.Ctx) error {
	eventID := c.Locals("eventID").(int)

	if err := orch.ResolveEscalation(uint(eventID)); err != nil {
		return serviceErrorResponse(c, err)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Escalation resolved successfully!", nil)
}
