package planValidator

import (
	"time"

	"comply/middleware"

	"github.com/gofiber/fiber/v2"
)

// ProgressFactPayload is a progress event from the learning-delivery system
type ProgressFactPayload struct {
	LearnerID        uint      `json:"learner_id"`
	PlanID           uint      `json:"plan_id"`
	CourseID         uint      `json:"course_id"`
	ProgressPercent  float64   `json:"progress_percent"`
	QuizScorePercent *float64  `json:"quiz_score_percent"`
	LastUpdatedAt    time.Time `json:"last_updated_at"`
}

// ProgressFact validates a progress fact submission. Range and business
// checks live in the orchestrator; this only rejects structurally broken
// payloads.
func ProgressFact() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(ProgressFactPayload)

		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		errors := make(map[string]string)

		if reqData.LearnerID == 0 {
			errors["learner_id"] = "Learner ID is required!"
		}
		if reqData.PlanID == 0 {
			errors["plan_id"] = "Plan ID is required!"
		}
		if reqData.CourseID == 0 {
			errors["course_id"] = "Course ID is required!"
		}

		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		if reqData.LastUpdatedAt.IsZero() {
			reqData.LastUpdatedAt = time.Now()
		}

		c.Locals("validatedFact", reqData)
		return c.Next()
	}
}

// ExamAttemptPayload is one exam sitting submission
type ExamAttemptPayload struct {
	LearnerID   uint      `json:"learner_id"`
	ExamID      uint      `json:"exam_id"`
	Score       float64   `json:"score"`
	AttemptedAt time.Time `json:"attempted_at"`
}

// ExamAttempt validates an exam attempt submission
func ExamAttempt() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(ExamAttemptPayload)

		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		errors := make(map[string]string)

		if reqData.LearnerID == 0 {
			errors["learner_id"] = "Learner ID is required!"
		}
		if reqData.ExamID == 0 {
			errors["exam_id"] = "Exam ID is required!"
		}

		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedAttempt", reqData)
		return c.Next()
	}
}
