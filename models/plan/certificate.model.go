package plan

import (
	"time"

	"gorm.io/gorm"
)

// Certificate issue strategies
const (
	IssueAuto   = "AUTO"
	IssueManual = "MANUAL"
)

// Certificate validity types
const (
	ValidityFixedDate = "FIXED_DATE"
	ValidityDuration  = "DURATION"
	ValidityPermanent = "PERMANENT"
)

// Certificate record states
const (
	CertValid    = "VALID"
	CertExpiring = "EXPIRING"
	CertExpired  = "EXPIRED"
	CertRevoked  = "REVOKED"
)

// CertificateTemplate defines how certificates for a plan are issued.
// A template is immutable once referenced by an issued record; edits
// insert a new version row instead of updating in place.
type CertificateTemplate struct {
	gorm.Model
	Name       string `json:"name" gorm:"index;not null"`
	Version    int    `json:"version" gorm:"default:1"`
	Referenced bool   `json:"referenced" gorm:"default:false"` // set on first issuance, locks the row

	IssueStrategy string     `json:"issue_strategy" gorm:"default:'MANUAL'"` // AUTO, MANUAL
	ValidityType  string     `json:"validity_type" gorm:"default:'PERMANENT'"`
	ValidityDays  int        `json:"validity_days" gorm:"default:0"` // DURATION type
	FixedExpireAt *time.Time `json:"fixed_expire_at"`                // FIXED_DATE type

	// Auto-issue conditions
	CourseCompletionPercent float64 `json:"course_completion_percent" gorm:"default:100"`
	ExamScorePercent        float64 `json:"exam_score_percent" gorm:"default:0"`
	RequireProfileApproved  bool    `json:"require_profile_approved" gorm:"default:true"`
	RequireOnsiteAssessment bool    `json:"require_onsite_assessment" gorm:"default:false"`

	Renewable bool `json:"renewable" gorm:"default:true"`
	IsDeleted bool `gorm:"default:false"`
}

// CertificateRecord is one issued certificate. Records are append-only
// history: a renewal creates a new record, revocation is terminal, and an
// expired record is never rewritten.
type CertificateRecord struct {
	gorm.Model
	TemplateID        uint       `json:"template_id" gorm:"index;not null"`
	LearnerID         uint       `json:"learner_id" gorm:"index;not null"`
	PlanID            uint       `json:"plan_id" gorm:"index"`
	CertificateNumber string     `json:"certificate_number" gorm:"unique"`
	IssuedAt          time.Time  `json:"issued_at"`
	ExpireAt          *time.Time `json:"expire_at"`                     // nil iff PERMANENT validity
	Status            string     `json:"status" gorm:"default:'VALID'"` // VALID, EXPIRING, EXPIRED, REVOKED
	IssueMethod       string     `json:"issue_method" gorm:"default:'AUTO'"`
	Renewable         bool       `json:"renewable" gorm:"default:true"`
	RenewedFromID     *uint      `json:"renewed_from_id"` // previous record when issued via renew
}
