package plan

import (
	"time"

	"gorm.io/gorm"
)

// LearnerProgressFact is an append-only progress event from the external
// learning-delivery system. The latest fact per (learner, course) wins
// during aggregation.
type LearnerProgressFact struct {
	gorm.Model
	LearnerID        uint      `json:"learner_id" gorm:"index;not null"`
	PlanID           uint      `json:"plan_id" gorm:"index;not null"`
	CourseID         uint      `json:"course_id" gorm:"index;not null"`
	ProgressPercent  float64   `json:"progress_percent"`
	QuizScorePercent *float64  `json:"quiz_score_percent"` // nil until first quiz attempt
	LastUpdatedAt    time.Time `json:"last_updated_at"`
}

// ExamAttempt records one sitting of a plan exam.
// AttemptNumber is strictly increasing per (learner, exam).
type ExamAttempt struct {
	gorm.Model
	LearnerID     uint      `json:"learner_id" gorm:"index;not null"`
	ExamID        uint      `json:"exam_id" gorm:"index;not null"` // ExamDefinition ID
	Score         float64   `json:"score"`
	Passed        bool      `json:"passed" gorm:"default:false"`
	AttemptedAt   time.Time `json:"attempted_at"`
	AttemptNumber int       `json:"attempt_number" gorm:"default:1"`
}
