package services

import (
	"fmt"
	"log"
	"sync"
	"time"

	"comply/models"
	planModels "comply/models/plan"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Orchestrator is the engine's entry point. All recomputation and state
// transitions for one plan are serialized through a per-plan mutex; facts
// for different plans proceed fully in parallel. No cross-plan locking.
type Orchestrator struct {
	db        *gorm.DB
	graceDays int // renewal grace window before expireAt
	locks     sync.Map
}

// NewOrchestrator creates the orchestrator over the shared database handle
func NewOrchestrator(db *gorm.DB, graceDays int) *Orchestrator {
	return &Orchestrator{db: db, graceDays: graceDays}
}

func (o *Orchestrator) planLock(planID uint) *sync.Mutex {
	lock, _ := o.locks.LoadOrStore(planID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// IngestProgress validates and durably stores a progress fact, then
// triggers an asynchronous rollup. Callers get an immediate ack; the
// consistency window is observable via UnitCoverage.LastRecomputedAt.
func (o *Orchestrator) IngestProgress(fact *planModels.LearnerProgressFact) error {
	if fact.ProgressPercent < 0 || fact.ProgressPercent > 100 {
		return fmt.Errorf("%w: progress percent must be within [0,100]", ErrInvalidFact)
	}
	if fact.QuizScorePercent != nil && (*fact.QuizScorePercent < 0 || *fact.QuizScorePercent > 100) {
		return fmt.Errorf("%w: quiz score percent must be within [0,100]", ErrInvalidFact)
	}
	if fact.LastUpdatedAt.After(time.Now()) {
		return fmt.Errorf("%w: timestamp is in the future", ErrInvalidFact)
	}

	var p planModels.Plan
	if err := o.db.Where("id = ? AND is_deleted = ?", fact.PlanID, false).First(&p).Error; err != nil {
		return fmt.Errorf("%w: unknown plan %d", ErrInvalidFact, fact.PlanID)
	}
	if p.Status != planModels.StatusActive {
		return fmt.Errorf("%w: plan %s is not active", ErrInvalidFact, p.Code)
	}

	var requirement planModels.CourseRequirement
	if err := o.db.Where("plan_id = ? AND course_id = ? AND is_deleted = ?", fact.PlanID, fact.CourseID, false).
		First(&requirement).Error; err != nil {
		return fmt.Errorf("%w: course %d is not part of plan %s", ErrInvalidFact, fact.CourseID, p.Code)
	}

	if err := o.db.Create(fact).Error; err != nil {
		return err
	}

	o.scheduleRollup(fact.PlanID)
	return nil
}

// IngestExamAttempt enforces the retake policy, assigns the strictly
// increasing attempt number, stores the attempt and triggers rollup.
func (o *Orchestrator) IngestExamAttempt(attempt *planModels.ExamAttempt) error {
	if attempt.Score < 0 || attempt.Score > 100 {
		return fmt.Errorf("%w: score must be within [0,100]", ErrInvalidFact)
	}
	if attempt.AttemptedAt.After(time.Now()) {
		return fmt.Errorf("%w: timestamp is in the future", ErrInvalidFact)
	}

	var exam planModels.ExamDefinition
	if err := o.db.Where("id = ? AND is_deleted = ?", attempt.ExamID, false).First(&exam).Error; err != nil {
		return fmt.Errorf("%w: unknown exam %d", ErrInvalidFact, attempt.ExamID)
	}

	var p planModels.Plan
	if err := o.db.Where("id = ? AND is_deleted = ?", exam.PlanID, false).First(&p).Error; err != nil {
		return fmt.Errorf("%w: unknown plan %d", ErrInvalidFact, exam.PlanID)
	}
	if p.Status != planModels.StatusActive {
		return fmt.Errorf("%w: plan %s is not active", ErrInvalidFact, p.Code)
	}

	// Count, policy check and insert must be one serialized step, or two
	// concurrent sittings would both read the same count.
	lock := o.planLock(exam.PlanID)
	lock.Lock()
	defer lock.Unlock()

	var priorAttempts int64
	o.db.Model(&planModels.ExamAttempt{}).
		Where("learner_id = ? AND exam_id = ?", attempt.LearnerID, attempt.ExamID).
		Count(&priorAttempts)

	if priorAttempts > 0 && !exam.AllowRetake {
		return fmt.Errorf("%w: exam %s does not allow retakes", ErrRetakeNotAllowed, exam.Name)
	}
	if exam.AllowRetake && exam.MaxAttempts > 0 && priorAttempts >= int64(exam.MaxAttempts) {
		return fmt.Errorf("%w: exam %s allows at most %d attempts", ErrRetakeNotAllowed, exam.Name, exam.MaxAttempts)
	}

	attempt.AttemptNumber = int(priorAttempts) + 1
	attempt.Passed = attempt.Score >= exam.PassScorePercent
	if attempt.AttemptedAt.IsZero() {
		attempt.AttemptedAt = time.Now()
	}

	if err := o.db.Create(attempt).Error; err != nil {
		return err
	}

	o.scheduleRollup(exam.PlanID)
	return nil
}

// scheduleRollup kicks off an asynchronous recompute for the plan.
// Archived plans schedule no further runs.
func (o *Orchestrator) scheduleRollup(planID uint) {
	go func() {
		if _, err := o.RecomputeNow(planID); err != nil && err != ErrNotFound {
			log.Printf("[ORCHESTRATOR] Rollup failed for plan %d: %v", planID, err)
		}
	}()
}

// RecomputeNow runs the rollup synchronously under the plan lock
func (o *Orchestrator) RecomputeNow(planID uint) ([]planModels.UnitCoverage, error) {
	lock := o.planLock(planID)
	lock.Lock()
	defer lock.Unlock()
	return RecomputeCoverage(o.db, planID, time.Now())
}

// EvaluateCertificates runs the rule evaluator for every confirmed learner
// in the plan. AUTO templates issue certificate records directly; MANUAL
// templates emit a MANUAL_ISSUE_REQUIRED event instead. A learner with a
// VALID or EXPIRING record for the template is never issued a second one.
func (o *Orchestrator) EvaluateCertificates(planID uint) ([]planModels.CertificateRecord, error) {
	lock := o.planLock(planID)
	lock.Lock()
	defer lock.Unlock()

	var p planModels.Plan
	if err := o.db.Where("id = ? AND is_deleted = ?", planID, false).First(&p).Error; err != nil {
		return nil, ErrNotFound
	}
	if p.TemplateID == nil {
		return nil, nil // plan has no certificate rule
	}

	var template planModels.CertificateTemplate
	if err := o.db.Where("id = ? AND is_deleted = ?", *p.TemplateID, false).First(&template).Error; err != nil {
		return nil, ErrNotFound
	}

	var requirements []planModels.CourseRequirement
	o.db.Where("plan_id = ? AND is_deleted = ?", p.ID, false).Find(&requirements)

	var exams []planModels.ExamDefinition
	o.db.Where("plan_id = ? AND is_deleted = ?", p.ID, false).Find(&exams)

	rule := RuleFromTemplate(&template)
	now := time.Now()

	var issued []planModels.CertificateRecord
	for _, unitID := range decodeUintSlice(p.TargetUnitIDs) {
		query := o.db.Where("unit_id = ? AND confirmed = ? AND is_deleted = ?", unitID, true, false)
		if roles := decodeStringSlice(p.TargetRoles); len(roles) > 0 {
			query = query.Where("role IN ?", roles)
		}
		var learners []models.Learner
		query.Find(&learners)

		for i := range learners {
			learner := &learners[i]

			factSet, _ := LearnerFactsForPlan(o.db, &p, requirements, exams, learner)
			if !Evaluate(rule, factSet).Eligible {
				continue
			}

			var current planModels.CertificateRecord
			if err := o.db.Where("template_id = ? AND learner_id = ? AND status IN ?",
				template.ID, learner.ID, []string{planModels.CertValid, planModels.CertExpiring}).
				First(&current).Error; err == nil {
				continue // already holds a live certificate
			}

			if template.IssueStrategy != planModels.IssueAuto {
				dedupeKey := fmt.Sprintf("manual-issue:%d:%d", template.ID, learner.ID)
				EmitEvent(o.db, models.EventManualIssueRequired, p.ID, unitID, learner.ID, map[string]interface{}{
					"template_id": template.ID,
				}, dedupeKey)
				continue
			}

			record, err := o.issueCertificate(&template, learner.ID, p.ID, unitID, now, nil)
			if err != nil {
				log.Printf("[ORCHESTRATOR] Failed to issue certificate for learner %d: %v", learner.ID, err)
				continue
			}
			issued = append(issued, *record)
		}
	}

	return issued, nil
}

func (o *Orchestrator) issueCertificate(template *planModels.CertificateTemplate, learnerID, planID, unitID uint, now time.Time, renewedFrom *uint) (*planModels.CertificateRecord, error) {
	record := planModels.CertificateRecord{
		TemplateID:        template.ID,
		LearnerID:         learnerID,
		PlanID:            planID,
		CertificateNumber: uuid.NewString(),
		IssuedAt:          now,
		ExpireAt:          expiryFor(template, now),
		Status:            planModels.CertValid,
		IssueMethod:       template.IssueStrategy,
		Renewable:         template.Renewable,
		RenewedFromID:     renewedFrom,
	}

	if err := o.db.Create(&record).Error; err != nil {
		return nil, err
	}

	// First issuance locks the template version
	if !template.Referenced {
		o.db.Model(template).Update("referenced", true)
		template.Referenced = true
	}

	EmitEvent(o.db, models.EventCertificateIssued, planID, unitID, learnerID, map[string]interface{}{
		"certificate_id":     record.ID,
		"certificate_number": record.CertificateNumber,
		"template_id":        template.ID,
	}, "")

	return &record, nil
}

func expiryFor(template *planModels.CertificateTemplate, now time.Time) *time.Time {
	switch template.ValidityType {
	case planModels.ValidityDuration:
		expireAt := now.AddDate(0, 0, template.ValidityDays)
		return &expireAt
	case planModels.ValidityFixedDate:
		return template.FixedExpireAt
	}
	return nil // permanent
}

// TransitionPlan applies a lifecycle action with its guards and returns the
// new state. Guard failures leave the plan state unchanged.
func (o *Orchestrator) TransitionPlan(planID uint, action string, override bool) (string, error) {
	lock := o.planLock(planID)
	lock.Lock()
	defer lock.Unlock()

	var p planModels.Plan
	if err := o.db.Where("id = ? AND is_deleted = ?", planID, false).First(&p).Error; err != nil {
		return "", ErrNotFound
	}

	next, err := NextPlanState(p.Status, action)
	if err != nil {
		return "", err
	}

	switch action {
	case ActionSubmit:
		var count int64
		o.db.Model(&planModels.CourseRequirement{}).
			Where("plan_id = ? AND required = ? AND is_deleted = ?", p.ID, true, false).
			Count(&count)
		if count == 0 {
			return "", fmt.Errorf("%w: plan has no required courses", ErrInvalidTransition)
		}

	case ActionFinalize:
		if p.AutoIssue && p.TemplateID == nil {
			return "", fmt.Errorf("%w: auto-issue plan has no certificate template", ErrInvalidTransition)
		}
		if o.confirmedLearnerCount(&p) == 0 {
			return "", fmt.Errorf("%w: plan has no confirmed learners in any target unit", ErrInvalidTransition)
		}

	case ActionComplete:
		if err := o.completeGuard(&p, override); err != nil {
			return "", err
		}
	}

	// Update mutates p.Status in place; keep the prior state for the event
	prev := p.Status
	if err := o.db.Model(&p).Update("status", next).Error; err != nil {
		return "", err
	}

	EmitEvent(o.db, models.EventPlanStateChanged, p.ID, 0, 0, map[string]interface{}{
		"from":   prev,
		"to":     next,
		"action": action,
	}, "")

	return next, nil
}

func (o *Orchestrator) confirmedLearnerCount(p *planModels.Plan) int64 {
	unitIDs := decodeUintSlice(p.TargetUnitIDs)
	if len(unitIDs) == 0 {
		return 0
	}
	query := o.db.Model(&models.Learner{}).
		Where("unit_id IN ? AND confirmed = ? AND is_deleted = ?", unitIDs, true, false)
	if roles := decodeStringSlice(p.TargetRoles); len(roles) > 0 {
		query = query.Where("role IN ?", roles)
	}
	var count int64
	query.Count(&count)
	return count
}

func (o *Orchestrator) completeGuard(p *planModels.Plan, override bool) error {
	now := time.Now()
	if now.Before(p.PeriodEnd) {
		if !override {
			return fmt.Errorf("%w: plan period has not ended", ErrPlanNotReadyToComplete)
		}
		log.Printf("[ORCHESTRATOR] Force-completing plan %s before period end", p.Code)
		return nil
	}

	var unresolved int64
	o.db.Model(&models.OutboundEvent{}).
		Where("plan_id = ? AND kind = ? AND resolved = ?", p.ID, models.EventEscalationRaised, false).
		Count(&unresolved)
	if unresolved > 0 {
		if !override {
			return fmt.Errorf("%w: plan has %d unresolved lagging escalations", ErrPlanNotReadyToComplete, unresolved)
		}
		log.Printf("[ORCHESTRATOR] Force-completing plan %s with %d unresolved escalations", p.Code, unresolved)
	}
	return nil
}

// RevokeCertificate is an administrative, terminal action on a live record
func (o *Orchestrator) RevokeCertificate(recordID uint) error {
	var record planModels.CertificateRecord
	if err := o.db.Where("id = ?", recordID).First(&record).Error; err != nil {
		return ErrNotFound
	}
	if record.Status != planModels.CertValid && record.Status != planModels.CertExpiring {
		return fmt.Errorf("%w: cannot revoke a %s certificate", ErrInvalidTransition, record.Status)
	}
	return o.db.Model(&record).Update("status", planModels.CertRevoked).Error
}

// RenewCertificate issues a fresh record for an expired renewable one.
// The expired record stays untouched for audit.
func (o *Orchestrator) RenewCertificate(recordID uint) (*planModels.CertificateRecord, error) {
	var record planModels.CertificateRecord
	if err := o.db.Where("id = ?", recordID).First(&record).Error; err != nil {
		return nil, ErrNotFound
	}
	if record.Status != planModels.CertExpired {
		return nil, fmt.Errorf("%w: only expired certificates can be renewed", ErrInvalidTransition)
	}
	if !record.Renewable {
		return nil, fmt.Errorf("%w: certificate is not renewable", ErrInvalidTransition)
	}

	var template planModels.CertificateTemplate
	if err := o.db.Where("id = ?", record.TemplateID).First(&template).Error; err != nil {
		return nil, ErrNotFound
	}

	previousID := record.ID
	return o.issueCertificate(&template, record.LearnerID, record.PlanID, 0, time.Now(), &previousID)
}

// ResolveEscalation marks an escalation event handled by the admin
func (o *Orchestrator) ResolveEscalation(eventID uint) error {
	var event models.OutboundEvent
	if err := o.db.Where("id = ? AND kind = ?", eventID, models.EventEscalationRaised).First(&event).Error; err != nil {
		return ErrNotFound
	}
	return o.db.Model(&event).Update("resolved", true).Error
}

// SweepCertificates applies the time-driven VALID -> EXPIRING -> EXPIRED
// transitions. The only time-driven transitions in the engine; re-running
// with no new facts changes nothing.
func (o *Orchestrator) SweepCertificates(now time.Time) (int, error) {
	var records []planModels.CertificateRecord
	if err := o.db.Where("status IN ? AND expire_at IS NOT NULL",
		[]string{planModels.CertValid, planModels.CertExpiring}).Find(&records).Error; err != nil {
		return 0, err
	}

	transitions := 0
	for i := range records {
		record := &records[i]
		next := CertificateStatusAt(record.Status, record.ExpireAt, now, o.graceDays)
		if next == record.Status {
			continue
		}
		if err := o.db.Model(record).Update("status", next).Error; err != nil {
			log.Printf("[ORCHESTRATOR] Failed to transition certificate %d: %v", record.ID, err)
			continue
		}
		transitions++
	}
	return transitions, nil
}

// SweepLag re-runs the rollup for every active plan as a safety net
// against missed ingestion triggers.
func (o *Orchestrator) SweepLag() {
	var plans []planModels.Plan
	o.db.Where("status = ? AND is_deleted = ?", planModels.StatusActive, false).Find(&plans)

	for _, p := range plans {
		if _, err := o.RecomputeNow(p.ID); err != nil {
			log.Printf("[ORCHESTRATOR] Lag sweep failed for plan %s: %v", p.Code, err)
		}
	}
}
