package controllers

import (
	"comply/middleware"
	planModels "comply/models/plan"
	validators "comply/validators/plan"

	"github.com/gofiber/fiber/v2"
)

// IngestProgressFact accepts a learner progress fact from the external
// learning-delivery system. The fact is stored durably and acknowledged
// immediately; the rollup runs asynchronously.
func IngestProgressFact(c *fiber.Ctx) error {
	reqData := c.Locals("validatedFact").(*validators.ProgressFactPayload)

	fact := planModels.LearnerProgressFact{
		LearnerID:        reqData.LearnerID,
		PlanID:           reqData.PlanID,
		CourseID:         reqData.CourseID,
		ProgressPercent:  reqData.ProgressPercent,
		QuizScorePercent: reqData.QuizScorePercent,
		LastUpdatedAt:    reqData.LastUpdatedAt,
	}

	if err := orch.IngestProgress(&fact); err != nil {
		return serviceErrorResponse(c, err)
	}

	return middleware.JsonResponse(c, fiber.StatusAccepted, true, "Progress fact accepted!", fiber.Map{
		"fact_id": fact.ID,
	})
}

// IngestExamAttempt accepts an exam attempt, enforcing the retake policy
func IngestExamAttempt(c *fiber.Ctx) error {
	reqData := c.Locals("validatedAttempt").(*validators.ExamAttemptPayload)

	attempt := planModels.ExamAttempt{
		LearnerID:   reqData.LearnerID,
		ExamID:      reqData.ExamID,
		Score:       reqData.Score,
		AttemptedAt: reqData.AttemptedAt,
	}

	if err := orch.IngestExamAttempt(&attempt); err != nil {
		return serviceErrorResponse(c, err)
	}

	return middleware.JsonResponse(c, fiber.StatusAccepted, true, "Exam attempt accepted!", fiber.Map{
		"attempt_id":     attempt.ID,
		"attempt_number": attempt.AttemptNumber,
		"passed":         attempt.Passed,
	})
}
