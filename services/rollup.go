package services

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"comply/models"
	planModels "comply/models/plan"

	"gorm.io/gorm"
)

// LearnerFactsForPlan aggregates a learner's latest progress facts and exam
// attempts into the fact set the eligibility evaluator consumes. Facts with
// missing course reference data are skipped and returned as integrity
// warnings; the aggregation continues for everything else.
func LearnerFactsForPlan(db *gorm.DB, p *planModels.Plan, requirements []planModels.CourseRequirement, exams []planModels.ExamDefinition, learner *models.Learner) (LearnerFactSet, []models.IntegrityWarning) {
	var warnings []models.IntegrityWarning

	requiredCourses := make(map[uint]bool)
	for _, req := range requirements {
		if req.Required && !req.IsDeleted {
			requiredCourses[req.CourseID] = true
		}
	}

	// Latest fact per course wins; the log is append-only
	var facts []planModels.LearnerProgressFact
	db.Where("learner_id = ? AND plan_id = ?", learner.ID, p.ID).
		Order("last_updated_at asc").Find(&facts)

	latest := make(map[uint]planModels.LearnerProgressFact)
	for _, fact := range facts {
		var course models.Course
		if err := db.Where("id = ? AND is_deleted = ?", fact.CourseID, false).First(&course).Error; err != nil {
			warnings = append(warnings, models.IntegrityWarning{
				PlanID:    p.ID,
				LearnerID: learner.ID,
				RefType:   "COURSE",
				RefID:     fact.CourseID,
				Message:   "progress fact references unknown course",
			})
			continue
		}
		latest[fact.CourseID] = fact
	}

	// Arithmetic mean over required courses only; a required course with no
	// fact contributes 0, it is not excluded.
	var avgCompletion float64
	if len(requiredCourses) > 0 {
		var sum float64
		for courseID := range requiredCourses {
			if fact, ok := latest[courseID]; ok {
				sum += fact.ProgressPercent
			}
		}
		avgCompletion = sum / float64(len(requiredCourses))
	}

	// Best score per required exam, then the worst of those: every required
	// exam must clear the threshold for the single figure to clear it.
	bestExamScore := 0.0
	requiredExams := make([]planModels.ExamDefinition, 0, len(exams))
	for _, exam := range exams {
		if exam.Required && !exam.IsDeleted {
			requiredExams = append(requiredExams, exam)
		}
	}
	if len(requiredExams) > 0 {
		bestExamScore = 100
		for _, exam := range requiredExams {
			var attempts []planModels.ExamAttempt
			db.Where("learner_id = ? AND exam_id = ?", learner.ID, exam.ID).Find(&attempts)

			best := 0.0
			for _, attempt := range attempts {
				if attempt.Score > best {
					best = attempt.Score
				}
			}
			if best < bestExamScore {
				bestExamScore = best
			}
		}
	}

	return LearnerFactSet{
		AvgCourseCompletion: avgCompletion,
		BestExamScore:       bestExamScore,
		ProfileApproved:     learner.ProfileApproved,
		OnsiteAssessed:      learner.OnsiteAssessed,
	}, warnings
}

// RecomputeCoverage rebuilds every UnitCoverage row for a plan from the
// fact logs. It is the single authoritative recompute: triggered after
// ingestion and by the scheduler as a safety net. Archived plans are
// skipped entirely.
func RecomputeCoverage(db *gorm.DB, planID uint, now time.Time) ([]planModels.UnitCoverage, error) {
	var p planModels.Plan
	if err := db.Where("id = ? AND is_deleted = ?", planID, false).First(&p).Error; err != nil {
		return nil, ErrNotFound
	}
	if p.Status == planModels.StatusArchived {
		return nil, nil
	}

	var requirements []planModels.CourseRequirement
	db.Where("plan_id = ? AND is_deleted = ?", p.ID, false).Find(&requirements)

	var exams []planModels.ExamDefinition
	db.Where("plan_id = ? AND is_deleted = ?", p.ID, false).Find(&exams)

	var template *planModels.CertificateTemplate
	if p.TemplateID != nil {
		var tpl planModels.CertificateTemplate
		if err := db.Where("id = ? AND is_deleted = ?", *p.TemplateID, false).First(&tpl).Error; err == nil {
			template = &tpl
		}
	}

	unitIDs := decodeUintSlice(p.TargetUnitIDs)
	roles := decodeStringSlice(p.TargetRoles)
	deadline := p.PeriodEnd.AddDate(0, 0, -p.RemindBeforeDays)

	coverages := make([]planModels.UnitCoverage, 0, len(unitIDs))
	for _, unitID := range unitIDs {
		query := db.Where("unit_id = ? AND is_deleted = ?", unitID, false)
		if len(roles) > 0 {
			query = query.Where("role IN ?", roles)
		}
		var learners []models.Learner
		query.Find(&learners)

		target := len(learners)
		confirmed := 0
		finished := 0
		lagging := 0

		for i := range learners {
			learner := &learners[i]
			if !learner.Confirmed {
				continue
			}
			confirmed++

			factSet, warnings := LearnerFactsForPlan(db, &p, requirements, exams, learner)
			for _, warning := range warnings {
				db.Create(&warning)
				log.Printf("[ROLLUP] Data integrity warning: plan=%d learner=%d %s=%d: %s",
					warning.PlanID, warning.LearnerID, warning.RefType, warning.RefID, warning.Message)
			}

			if template != nil {
				if Evaluate(RuleFromTemplate(template), factSet).Eligible {
					finished++
				}
			} else if factSet.AvgCourseCompletion >= 100 {
				finished++
			}

			if factSet.AvgCourseCompletion < p.MinProgressPercent && now.After(deadline) {
				lagging++
			}
		}

		rate := 0.0
		if target > 0 {
			rate = float64(finished) / float64(target)
		}

		coverage := upsertCoverage(db, p.ID, unitID, planModels.UnitCoverage{
			PlanID:                p.ID,
			UnitID:                unitID,
			TargetLearnerCount:    target,
			ConfirmedLearnerCount: confirmed,
			FinishedLearnerCount:  finished,
			LaggingLearnerCount:   lagging,
			CompletionRate:        rate,
			LastRecomputedAt:      now,
		})
		coverages = append(coverages, coverage)

		// Units with nobody confirmed have nothing to escalate
		if lagging > 0 && confirmed > 0 {
			dedupeKey := escalationKey(p.ID, unitID)
			if _, err := EmitEvent(db, models.EventEscalationRaised, p.ID, unitID, 0, map[string]interface{}{
				"reason":           "lagging",
				"lagging_learners": lagging,
				"deadline":         deadline,
			}, dedupeKey); err != nil {
				log.Printf("[ROLLUP] Failed to raise escalation for plan=%d unit=%d: %v", p.ID, unitID, err)
			}
		}
	}

	return coverages, nil
}

func escalationKey(planID, unitID uint) string {
	return fmt.Sprintf("escalation:%d:%d:lagging", planID, unitID)
}

func upsertCoverage(db *gorm.DB, planID, unitID uint, next planModels.UnitCoverage) planModels.UnitCoverage {
	var existing planModels.UnitCoverage
	if err := db.Where("plan_id = ? AND unit_id = ?", planID, unitID).First(&existing).Error; err != nil {
		db.Create(&next)
		return next
	}

	db.Model(&existing).Updates(map[string]interface{}{
		"target_learner_count":    next.TargetLearnerCount,
		"confirmed_learner_count": next.ConfirmedLearnerCount,
		"finished_learner_count":  next.FinishedLearnerCount,
		"lagging_learner_count":   next.LaggingLearnerCount,
		"completion_rate":         next.CompletionRate,
		"last_recomputed_at":      next.LastRecomputedAt,
	})
	existing.TargetLearnerCount = next.TargetLearnerCount
	existing.ConfirmedLearnerCount = next.ConfirmedLearnerCount
	existing.FinishedLearnerCount = next.FinishedLearnerCount
	existing.LaggingLearnerCount = next.LaggingLearnerCount
	existing.CompletionRate = next.CompletionRate
	existing.LastRecomputedAt = next.LastRecomputedAt
	return existing
}

func decodeUintSlice(raw []byte) []uint {
	var out []uint
	if len(raw) == 0 {
		return out
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		log.Printf("[ROLLUP] Failed to decode id list: %v", err)
	}
	return out
}

func decodeStringSlice(raw []byte) []string {
	var out []string
	if len(raw) == 0 {
		return out
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		log.Printf("[ROLLUP] Failed to decode role list: %v", err)
	}
	return out
}
