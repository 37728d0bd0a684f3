package plan

import (
	"time"

	"gorm.io/gorm"
)

// UnitCoverage is the per-unit rollup of learner completion for one plan.
// Rows are recomputed by the rollup calculator, never hand-edited.
// Invariant: FinishedLearnerCount <= ConfirmedLearnerCount <= TargetLearnerCount.
type UnitCoverage struct {
	gorm.Model
	PlanID                uint      `json:"plan_id" gorm:"index;not null"`
	UnitID                uint      `json:"unit_id" gorm:"index;not null"`
	TargetLearnerCount    int       `json:"target_learner_count" gorm:"default:0"`
	ConfirmedLearnerCount int       `json:"confirmed_learner_count" gorm:"default:0"`
	FinishedLearnerCount  int       `json:"finished_learner_count" gorm:"default:0"`
	LaggingLearnerCount   int       `json:"lagging_learner_count" gorm:"default:0"`
	CompletionRate        float64   `json:"completion_rate" gorm:"default:0"` // finished / target, 0 when target is 0
	LastRecomputedAt      time.Time `json:"last_recomputed_at"`
}
