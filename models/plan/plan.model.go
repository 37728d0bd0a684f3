package plan

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Plan lifecycle states
const (
	StatusDraft     = "DRAFT"
	StatusPending   = "PENDING"
	StatusApproving = "APPROVING"
	StatusActive    = "ACTIVE"
	StatusCompleted = "COMPLETED"
	StatusArchived  = "ARCHIVED"
)

// Plan types
const (
	TypeOnboarding = "ONBOARDING"
	TypePromotion  = "PROMOTION"
	TypeAnnual     = "ANNUAL"
	TypeSpecial    = "SPECIAL"
)

// Plan represents a compliance training program scoped to a period and a
// set of target units/roles. Plans are never physically deleted, only
// archived.
type Plan struct {
	gorm.Model
	Code               string         `json:"code" gorm:"unique;not null"`
	Name               string         `json:"name"`
	Type               string         `json:"type" gorm:"default:'ANNUAL'"` // ONBOARDING, PROMOTION, ANNUAL, SPECIAL
	PeriodStart        time.Time      `json:"period_start"`
	PeriodEnd          time.Time      `json:"period_end"`
	Status             string         `json:"status" gorm:"default:'DRAFT'"` // DRAFT, PENDING, APPROVING, ACTIVE, COMPLETED, ARCHIVED
	Owner              string         `json:"owner"`
	Sequential         bool           `json:"sequential" gorm:"default:false"`
	MinProgressPercent float64        `json:"min_progress_percent" gorm:"default:80"` // lag threshold for escalation
	RemindBeforeDays   int            `json:"remind_before_days" gorm:"default:7"`
	TargetUnitIDs      datatypes.JSON `json:"target_unit_ids"` // JSON array of unit IDs
	TargetRoles        datatypes.JSON `json:"target_roles"`    // JSON array of role names, empty = all roles
	TemplateID         *uint          `json:"template_id" gorm:"index"`
	AutoIssue          bool           `json:"auto_issue" gorm:"default:false"`
	IsDeleted          bool           `gorm:"default:false"`
}

// CourseRequirement attaches a catalog course to a plan with completion
// thresholds. OrderIndex is honored only when the plan is sequential.
type CourseRequirement struct {
	gorm.Model
	PlanID              uint    `json:"plan_id" gorm:"index;not null"`
	CourseID            uint    `json:"course_id" gorm:"index;not null"`
	Required            bool    `json:"required" gorm:"default:true"`
	MinProgressPercent  float64 `json:"min_progress_percent" gorm:"default:100"`
	MinQuizScorePercent float64 `json:"min_quiz_score_percent" gorm:"default:0"`
	OrderIndex          int     `json:"order_index" gorm:"default:0"`
	IsDeleted           bool    `gorm:"default:false"`
}

// ExamDefinition defines an exam attached to a plan
type ExamDefinition struct {
	gorm.Model
	PlanID           uint    `json:"plan_id" gorm:"index;not null"`
	Name             string  `json:"name"`
	PassScorePercent float64 `json:"pass_score_percent" gorm:"default:60"`
	AllowRetake      bool    `json:"allow_retake" gorm:"default:false"`
	MaxAttempts      int     `json:"max_attempts" gorm:"default:0"` // 0 = unlimited when retakes allowed
	Required         bool    `json:"required" gorm:"default:true"`
	IsDeleted        bool    `gorm:"default:false"`
}
