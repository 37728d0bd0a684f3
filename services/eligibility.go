package services

import (
	"fmt"

	planModels "comply/models/plan"

	"gorm.io/gorm"
)

// Verdict reason strings, stable so the UI layer can map them
const (
	ReasonCourseCompletion   = "courseCompletion below threshold"
	ReasonExamScore          = "examScore below threshold"
	ReasonProfileNotApproved = "profile not approved"
	ReasonOnsiteMissing      = "onsite assessment missing"
)

// CertificateRule is the threshold set evaluated against a learner's facts
type CertificateRule struct {
	CourseCompletionPercent float64
	ExamScorePercent        float64
	RequireProfileApproved  bool
	RequireOnsiteAssessment bool
}

// LearnerFactSet is a learner's aggregated facts for one plan
type LearnerFactSet struct {
	AvgCourseCompletion float64 // arithmetic mean over required courses, missing facts count as 0
	BestExamScore       float64 // worst of the per-exam best scores across required exams
	ProfileApproved     bool
	OnsiteAssessed      bool
}

// Verdict is the outcome of evaluating a certificate rule
type Verdict struct {
	Eligible bool     `json:"eligible"`
	Reasons  []string `json:"reasons"`
}

// Evaluate checks a learner's facts against a certificate rule. All checks
// run and every failing reason is reported so the caller can show the
// learner exactly what is missing. Pure and deterministic; comparisons are
// boundary-inclusive.
func Evaluate(rule CertificateRule, facts LearnerFactSet) Verdict {
	var reasons []string

	if facts.AvgCourseCompletion < rule.CourseCompletionPercent {
		reasons = append(reasons, ReasonCourseCompletion)
	}
	if facts.BestExamScore < rule.ExamScorePercent {
		reasons = append(reasons, ReasonExamScore)
	}
	if rule.RequireProfileApproved && !facts.ProfileApproved {
		reasons = append(reasons, ReasonProfileNotApproved)
	}
	if rule.RequireOnsiteAssessment && !facts.OnsiteAssessed {
		reasons = append(reasons, ReasonOnsiteMissing)
	}

	return Verdict{Eligible: len(reasons) == 0, Reasons: reasons}
}

// RuleFromTemplate extracts the evaluable rule from a certificate template
func RuleFromTemplate(tpl *planModels.CertificateTemplate) CertificateRule {
	return CertificateRule{
		CourseCompletionPercent: tpl.CourseCompletionPercent,
		ExamScorePercent:        tpl.ExamScorePercent,
		RequireProfileApproved:  tpl.RequireProfileApproved,
		RequireOnsiteAssessment: tpl.RequireOnsiteAssessment,
	}
}

// ValidateTemplate rejects misconfigured certificate templates at save
// time, never at evaluation time.
func ValidateTemplate(tpl *planModels.CertificateTemplate) error {
	if tpl.CourseCompletionPercent < 0 || tpl.CourseCompletionPercent > 100 {
		return fmt.Errorf("%w: course completion threshold must be within [0,100]", ErrInvalidRule)
	}
	if tpl.ExamScorePercent < 0 || tpl.ExamScorePercent > 100 {
		return fmt.Errorf("%w: exam score threshold must be within [0,100]", ErrInvalidRule)
	}
	switch tpl.ValidityType {
	case planModels.ValidityPermanent:
	case planModels.ValidityDuration:
		if tpl.ValidityDays <= 0 {
			return fmt.Errorf("%w: duration validity requires positive validity days", ErrInvalidRule)
		}
	case planModels.ValidityFixedDate:
		if tpl.FixedExpireAt == nil {
			return fmt.Errorf("%w: fixed-date validity requires an expiry date", ErrInvalidRule)
		}
	default:
		return fmt.Errorf("%w: unknown validity type %q", ErrInvalidRule, tpl.ValidityType)
	}
	if tpl.IssueStrategy != planModels.IssueAuto && tpl.IssueStrategy != planModels.IssueManual {
		return fmt.Errorf("%w: unknown issue strategy %q", ErrInvalidRule, tpl.IssueStrategy)
	}
	return nil
}

// ValidateTemplateForPlan additionally checks the rule against the plan it
// is being attached to: an exam threshold is meaningless on a plan with no
// required exams.
func ValidateTemplateForPlan(db *gorm.DB, tpl *planModels.CertificateTemplate, planID uint) error {
	if err := ValidateTemplate(tpl); err != nil {
		return err
	}
	if tpl.ExamScorePercent > 0 {
		var count int64
		db.Model(&planModels.ExamDefinition{}).
			Where("plan_id = ? AND required = ? AND is_deleted = ?", planID, true, false).
			Count(&count)
		if count == 0 {
			return fmt.Errorf("%w: exam score threshold set but plan has no required exams", ErrInvalidRule)
		}
	}
	return nil
}
