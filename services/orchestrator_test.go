package services

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"comply/models"
	planModels "comply/models/plan"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestProgressValidation(t *testing.T) {
	db := newTestDB(t)
	orch := NewOrchestrator(db, 30)

	unit := createUnit(t, db, "O-1")
	p, requirement := createPlan(t, db, planModels.StatusActive, []uint{unit.ID}, nil)
	learner := createLearner(t, db, unit.ID, true, true)

	base := planModels.LearnerProgressFact{
		LearnerID:       learner.ID,
		PlanID:          p.ID,
		CourseID:        requirement.CourseID,
		ProgressPercent: 50,
		LastUpdatedAt:   time.Now().Add(-time.Hour),
	}

	outOfRange := base
	outOfRange.ProgressPercent = 150
	assert.ErrorIs(t, orch.IngestProgress(&outOfRange), ErrInvalidFact)

	future := base
	future.LastUpdatedAt = time.Now().Add(time.Hour)
	assert.ErrorIs(t, orch.IngestProgress(&future), ErrInvalidFact)

	unknownCourse := base
	unknownCourse.CourseID = 9999
	assert.ErrorIs(t, orch.IngestProgress(&unknownCourse), ErrInvalidFact)

	badQuiz := base
	quiz := 130.0
	badQuiz.QuizScorePercent = &quiz
	assert.ErrorIs(t, orch.IngestProgress(&badQuiz), ErrInvalidFact)

	good := base
	require.NoError(t, orch.IngestProgress(&good))
	assert.NotZero(t, good.ID)
}

func TestIngestProgressRejectsInactivePlan(t *testing.T) {
	db := newTestDB(t)
	orch := NewOrchestrator(db, 30)

	unit := createUnit(t, db, "O-2")
	p, requirement := createPlan(t, db, planModels.StatusDraft, []uint{unit.ID}, nil)
	learner := createLearner(t, db, unit.ID, true, true)

	fact := planModels.LearnerProgressFact{
		LearnerID:       learner.ID,
		PlanID:          p.ID,
		CourseID:        requirement.CourseID,
		ProgressPercent: 50,
		LastUpdatedAt:   time.Now(),
	}
	assert.ErrorIs(t, orch.IngestProgress(&fact), ErrInvalidFact)
}

func TestIngestExamAttemptRetakePolicy(t *testing.T) {
	db := newTestDB(t)
	orch := NewOrchestrator(db, 30)

	unit := createUnit(t, db, "O-3")
	p, _ := createPlan(t, db, planModels.StatusActive, []uint{unit.ID}, nil)
	learner := createLearner(t, db, unit.ID, true, true)

	noRetake := planModels.ExamDefinition{PlanID: p.ID, Name: "Final", PassScorePercent: 60, AllowRetake: false, Required: true}
	require.NoError(t, db.Create(&noRetake).Error)

	first := planModels.ExamAttempt{LearnerID: learner.ID, ExamID: noRetake.ID, Score: 55}
	require.NoError(t, orch.IngestExamAttempt(&first))
	assert.Equal(t, 1, first.AttemptNumber)
	assert.False(t, first.Passed)

	second := planModels.ExamAttempt{LearnerID: learner.ID, ExamID: noRetake.ID, Score: 80}
	assert.ErrorIs(t, orch.IngestExamAttempt(&second), ErrRetakeNotAllowed)
}

func TestIngestExamAttemptMaxAttempts(t *testing.T) {
	db := newTestDB(t)
	orch := NewOrchestrator(db, 30)

	unit := createUnit(t, db, "O-4")
	p, _ := createPlan(t, db, planModels.StatusActive, []uint{unit.ID}, nil)
	learner := createLearner(t, db, unit.ID, true, true)

	exam := planModels.ExamDefinition{PlanID: p.ID, Name: "Retakable", PassScorePercent: 60, AllowRetake: true, MaxAttempts: 2, Required: true}
	require.NoError(t, db.Create(&exam).Error)

	first := planModels.ExamAttempt{LearnerID: learner.ID, ExamID: exam.ID, Score: 40}
	require.NoError(t, orch.IngestExamAttempt(&first))
	assert.Equal(t, 1, first.AttemptNumber)

	second := planModels.ExamAttempt{LearnerID: learner.ID, ExamID: exam.ID, Score: 70}
	require.NoError(t, orch.IngestExamAttempt(&second))
	assert.Equal(t, 2, second.AttemptNumber)
	assert.True(t, second.Passed)

	third := planModels.ExamAttempt{LearnerID: learner.ID, ExamID: exam.ID, Score: 90}
	assert.ErrorIs(t, orch.IngestExamAttempt(&third), ErrRetakeNotAllowed)
}

func TestEvaluateCertificatesAutoIssuesOnce(t *testing.T) {
	db := newTestDB(t)
	orch := NewOrchestrator(db, 30)

	unit := createUnit(t, db, "O-5")
	template := createTemplate(t, db, planModels.IssueAuto, 90, 0)
	p, requirement := createPlan(t, db, planModels.StatusActive, []uint{unit.ID}, &template.ID)

	learner := createLearner(t, db, unit.ID, true, true)
	addProgressFact(t, db, learner.ID, p.ID, requirement.CourseID, 92)

	issued, err := orch.EvaluateCertificates(p.ID)
	require.NoError(t, err)
	require.Len(t, issued, 1)
	assert.Equal(t, planModels.CertValid, issued[0].Status)
	assert.NotEmpty(t, issued[0].CertificateNumber)
	assert.NotNil(t, issued[0].ExpireAt) // DURATION template

	// Template locked after first issuance
	var tpl planModels.CertificateTemplate
	require.NoError(t, db.First(&tpl, template.ID).Error)
	assert.True(t, tpl.Referenced)

	var events int64
	db.Model(&models.OutboundEvent{}).Where("kind = ?", models.EventCertificateIssued).Count(&events)
	assert.Equal(t, int64(1), events)

	// Round-trip: re-evaluating must not issue a second certificate while
	// one is VALID
	issued, err = orch.EvaluateCertificates(p.ID)
	require.NoError(t, err)
	assert.Empty(t, issued)

	var records int64
	db.Model(&planModels.CertificateRecord{}).Count(&records)
	assert.Equal(t, int64(1), records)
}

func TestEvaluateCertificatesManualStrategy(t *testing.T) {
	db := newTestDB(t)
	orch := NewOrchestrator(db, 30)

	unit := createUnit(t, db, "O-6")
	template := createTemplate(t, db, planModels.IssueManual, 90, 0)
	p, requirement := createPlan(t, db, planModels.StatusActive, []uint{unit.ID}, &template.ID)

	learner := createLearner(t, db, unit.ID, true, true)
	addProgressFact(t, db, learner.ID, p.ID, requirement.CourseID, 95)

	issued, err := orch.EvaluateCertificates(p.ID)
	require.NoError(t, err)
	assert.Empty(t, issued)

	var records int64
	db.Model(&planModels.CertificateRecord{}).Count(&records)
	assert.Equal(t, int64(0), records)

	var events int64
	db.Model(&models.OutboundEvent{}).Where("kind = ?", models.EventManualIssueRequired).Count(&events)
	assert.Equal(t, int64(1), events)

	// Re-running keeps the manual-issue event deduplicated
	_, err = orch.EvaluateCertificates(p.ID)
	require.NoError(t, err)
	db.Model(&models.OutboundEvent{}).Where("kind = ?", models.EventManualIssueRequired).Count(&events)
	assert.Equal(t, int64(1), events)
}

func TestEvaluateCertificatesIneligibleLearner(t *testing.T) {
	db := newTestDB(t)
	orch := NewOrchestrator(db, 30)

	unit := createUnit(t, db, "O-7")
	template := createTemplate(t, db, planModels.IssueAuto, 90, 0)
	p, requirement := createPlan(t, db, planModels.StatusActive, []uint{unit.ID}, &template.ID)

	learner := createLearner(t, db, unit.ID, true, true)
	addProgressFact(t, db, learner.ID, p.ID, requirement.CourseID, 85)

	issued, err := orch.EvaluateCertificates(p.ID)
	require.NoError(t, err)
	assert.Empty(t, issued)
}

func TestTransitionPlanFullLifecycle(t *testing.T) {
	db := newTestDB(t)
	orch := NewOrchestrator(db, 30)

	unit := createUnit(t, db, "O-8")
	p, _ := createPlan(t, db, planModels.StatusDraft, []uint{unit.ID}, nil)
	createLearner(t, db, unit.ID, true, true)

	state, err := orch.TransitionPlan(p.ID, ActionSubmit, false)
	require.NoError(t, err)
	assert.Equal(t, planModels.StatusPending, state)

	state, err = orch.TransitionPlan(p.ID, ActionApprove, false)
	require.NoError(t, err)
	assert.Equal(t, planModels.StatusApproving, state)

	state, err = orch.TransitionPlan(p.ID, ActionFinalize, false)
	require.NoError(t, err)
	assert.Equal(t, planModels.StatusActive, state)

	// Period over, nothing lagging
	require.NoError(t, db.Model(&planModels.Plan{}).Where("id = ?", p.ID).
		Update("period_end", time.Now().AddDate(0, 0, -1)).Error)

	state, err = orch.TransitionPlan(p.ID, ActionComplete, false)
	require.NoError(t, err)
	assert.Equal(t, planModels.StatusCompleted, state)

	state, err = orch.TransitionPlan(p.ID, ActionArchive, false)
	require.NoError(t, err)
	assert.Equal(t, planModels.StatusArchived, state)

	var events int64
	db.Model(&models.OutboundEvent{}).Where("kind = ?", models.EventPlanStateChanged).Count(&events)
	assert.Equal(t, int64(5), events)
}

func TestTransitionPlanEventRecordsPriorState(t *testing.T) {
	db := newTestDB(t)
	orch := NewOrchestrator(db, 30)

	unit := createUnit(t, db, "O-19")
	p, _ := createPlan(t, db, planModels.StatusDraft, []uint{unit.ID}, nil)
	createLearner(t, db, unit.ID, true, true)

	_, err := orch.TransitionPlan(p.ID, ActionSubmit, false)
	require.NoError(t, err)

	var event models.OutboundEvent
	require.NoError(t, db.Where("kind = ? AND plan_id = ?", models.EventPlanStateChanged, p.ID).
		First(&event).Error)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(event.Payload, &payload))
	assert.Equal(t, planModels.StatusDraft, payload["from"])
	assert.Equal(t, planModels.StatusPending, payload["to"])
	assert.Equal(t, ActionSubmit, payload["action"])

	_, err = orch.TransitionPlan(p.ID, ActionApprove, false)
	require.NoError(t, err)

	event = models.OutboundEvent{}
	require.NoError(t, db.Where("kind = ? AND plan_id = ?", models.EventPlanStateChanged, p.ID).
		Order("id DESC").First(&event).Error)
	require.NoError(t, json.Unmarshal(event.Payload, &payload))
	assert.Equal(t, planModels.StatusPending, payload["from"])
	assert.Equal(t, planModels.StatusApproving, payload["to"])
}

func TestIngestExamAttemptConcurrentSittings(t *testing.T) {
	db := newTestDB(t)
	orch := NewOrchestrator(db, 30)

	unit := createUnit(t, db, "O-20")
	p, _ := createPlan(t, db, planModels.StatusActive, []uint{unit.ID}, nil)
	learner := createLearner(t, db, unit.ID, true, true)

	noRetake := planModels.ExamDefinition{PlanID: p.ID, Name: "Single Sitting", PassScorePercent: 60, AllowRetake: false, Required: true}
	require.NoError(t, db.Create(&noRetake).Error)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			attempt := planModels.ExamAttempt{LearnerID: learner.ID, ExamID: noRetake.ID, Score: 70}
			errs[i] = orch.IngestExamAttempt(&attempt)
		}(i)
	}
	wg.Wait()

	rejected := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, ErrRetakeNotAllowed)
			rejected++
		}
	}
	assert.Equal(t, 1, rejected)

	var stored int64
	db.Model(&planModels.ExamAttempt{}).
		Where("learner_id = ? AND exam_id = ?", learner.ID, noRetake.ID).
		Count(&stored)
	assert.Equal(t, int64(1), stored)

	retakable := planModels.ExamDefinition{PlanID: p.ID, Name: "Open Retakes", PassScorePercent: 60, AllowRetake: true, Required: true}
	require.NoError(t, db.Create(&retakable).Error)

	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			attempt := planModels.ExamAttempt{LearnerID: learner.ID, ExamID: retakable.ID, Score: 70}
			errs[i] = orch.IngestExamAttempt(&attempt)
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	var numbers []int
	db.Model(&planModels.ExamAttempt{}).
		Where("learner_id = ? AND exam_id = ?", learner.ID, retakable.ID).
		Order("attempt_number").Pluck("attempt_number", &numbers)
	assert.Equal(t, []int{1, 2}, numbers)
}

func TestTransitionPlanRejectsDirectActivation(t *testing.T) {
	db := newTestDB(t)
	orch := NewOrchestrator(db, 30)

	unit := createUnit(t, db, "O-9")
	p, _ := createPlan(t, db, planModels.StatusDraft, []uint{unit.ID}, nil)

	_, err := orch.TransitionPlan(p.ID, ActionFinalize, false)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// Guard failure leaves the state unchanged
	var stored planModels.Plan
	require.NoError(t, db.First(&stored, p.ID).Error)
	assert.Equal(t, planModels.StatusDraft, stored.Status)
}

func TestTransitionSubmitRequiresCourses(t *testing.T) {
	db := newTestDB(t)
	orch := NewOrchestrator(db, 30)

	unit := createUnit(t, db, "O-10")
	p := planModels.Plan{
		Code:          "EMPTY-1",
		Name:          "Empty Plan",
		Status:        planModels.StatusDraft,
		PeriodStart:   time.Now(),
		PeriodEnd:     time.Now().AddDate(0, 1, 0),
		TargetUnitIDs: jsonIDs(t, unit.ID),
	}
	require.NoError(t, db.Create(&p).Error)

	_, err := orch.TransitionPlan(p.ID, ActionSubmit, false)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransitionFinalizeRequiresConfirmedLearners(t *testing.T) {
	db := newTestDB(t)
	orch := NewOrchestrator(db, 30)

	unit := createUnit(t, db, "O-11")
	p, _ := createPlan(t, db, planModels.StatusApproving, []uint{unit.ID}, nil)
	createLearner(t, db, unit.ID, false, false) // present but unconfirmed

	_, err := orch.TransitionPlan(p.ID, ActionFinalize, false)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransitionFinalizeAutoIssueNeedsTemplate(t *testing.T) {
	db := newTestDB(t)
	orch := NewOrchestrator(db, 30)

	unit := createUnit(t, db, "O-12")
	p, _ := createPlan(t, db, planModels.StatusApproving, []uint{unit.ID}, nil)
	createLearner(t, db, unit.ID, true, true)
	require.NoError(t, db.Model(&p).Update("auto_issue", true).Error)

	_, err := orch.TransitionPlan(p.ID, ActionFinalize, false)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransitionCompleteGuard(t *testing.T) {
	db := newTestDB(t)
	orch := NewOrchestrator(db, 30)

	unit := createUnit(t, db, "O-13")
	p, _ := createPlan(t, db, planModels.StatusActive, []uint{unit.ID}, nil)
	require.NoError(t, db.Model(&p).Update("period_end", time.Now().AddDate(0, 0, -1)).Error)

	// Unresolved lagging escalation blocks completion
	event, err := EmitEvent(db, models.EventEscalationRaised, p.ID, unit.ID, 0,
		map[string]interface{}{"reason": "lagging"}, escalationKey(p.ID, unit.ID))
	require.NoError(t, err)
	require.NotNil(t, event)

	_, err = orch.TransitionPlan(p.ID, ActionComplete, false)
	assert.ErrorIs(t, err, ErrPlanNotReadyToComplete)

	// Resolving the escalation clears the guard
	require.NoError(t, orch.ResolveEscalation(event.ID))

	state, err := orch.TransitionPlan(p.ID, ActionComplete, false)
	require.NoError(t, err)
	assert.Equal(t, planModels.StatusCompleted, state)
}

func TestTransitionCompleteOverride(t *testing.T) {
	db := newTestDB(t)
	orch := NewOrchestrator(db, 30)

	unit := createUnit(t, db, "O-14")
	p, _ := createPlan(t, db, planModels.StatusActive, []uint{unit.ID}, nil)
	// Period still running

	_, err := orch.TransitionPlan(p.ID, ActionComplete, false)
	assert.ErrorIs(t, err, ErrPlanNotReadyToComplete)

	state, err := orch.TransitionPlan(p.ID, ActionComplete, true)
	require.NoError(t, err)
	assert.Equal(t, planModels.StatusCompleted, state)
}

func TestSweepCertificatesExpiry(t *testing.T) {
	db := newTestDB(t)
	orch := NewOrchestrator(db, 30)

	template := createTemplate(t, db, planModels.IssueAuto, 90, 0)
	learner := createLearner(t, db, createUnit(t, db, "O-15").ID, true, true)

	past := time.Now().AddDate(0, 0, -1)
	expired := planModels.CertificateRecord{
		TemplateID: template.ID, LearnerID: learner.ID,
		CertificateNumber: "CERT-PAST", IssuedAt: time.Now().AddDate(-1, 0, 0),
		ExpireAt: &past, Status: planModels.CertValid, IssueMethod: planModels.IssueAuto, Renewable: true,
	}
	require.NoError(t, db.Create(&expired).Error)

	soon := time.Now().AddDate(0, 0, 10)
	expiring := planModels.CertificateRecord{
		TemplateID: template.ID, LearnerID: learner.ID,
		CertificateNumber: "CERT-SOON", IssuedAt: time.Now().AddDate(0, -11, 0),
		ExpireAt: &soon, Status: planModels.CertValid, IssueMethod: planModels.IssueAuto, Renewable: true,
	}
	require.NoError(t, db.Create(&expiring).Error)

	transitions, err := orch.SweepCertificates(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, transitions)

	var stored planModels.CertificateRecord
	require.NoError(t, db.First(&stored, expired.ID).Error)
	assert.Equal(t, planModels.CertExpired, stored.Status)

	stored = planModels.CertificateRecord{}
	require.NoError(t, db.First(&stored, expiring.ID).Error)
	assert.Equal(t, planModels.CertExpiring, stored.Status)

	// Idempotent: the second sweep has nothing left to move
	transitions, err = orch.SweepCertificates(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, transitions)
}

func TestRenewCreatesNewRecord(t *testing.T) {
	db := newTestDB(t)
	orch := NewOrchestrator(db, 30)

	template := createTemplate(t, db, planModels.IssueAuto, 90, 0)
	learner := createLearner(t, db, createUnit(t, db, "O-16").ID, true, true)

	past := time.Now().AddDate(0, 0, -5)
	old := planModels.CertificateRecord{
		TemplateID: template.ID, LearnerID: learner.ID,
		CertificateNumber: "CERT-OLD", IssuedAt: time.Now().AddDate(-1, 0, 0),
		ExpireAt: &past, Status: planModels.CertExpired, IssueMethod: planModels.IssueAuto, Renewable: true,
	}
	require.NoError(t, db.Create(&old).Error)

	renewed, err := orch.RenewCertificate(old.ID)
	require.NoError(t, err)
	assert.NotEqual(t, old.ID, renewed.ID)
	assert.Equal(t, planModels.CertValid, renewed.Status)
	assert.Equal(t, old.TemplateID, renewed.TemplateID)
	require.NotNil(t, renewed.RenewedFromID)
	assert.Equal(t, old.ID, *renewed.RenewedFromID)

	// The expired record is untouched audit history
	var stored planModels.CertificateRecord
	require.NoError(t, db.First(&stored, old.ID).Error)
	assert.Equal(t, planModels.CertExpired, stored.Status)
	assert.Equal(t, "CERT-OLD", stored.CertificateNumber)
}

func TestRenewRejectsLiveOrNonRenewable(t *testing.T) {
	db := newTestDB(t)
	orch := NewOrchestrator(db, 30)

	template := createTemplate(t, db, planModels.IssueAuto, 90, 0)
	learner := createLearner(t, db, createUnit(t, db, "O-17").ID, true, true)

	live := planModels.CertificateRecord{
		TemplateID: template.ID, LearnerID: learner.ID,
		CertificateNumber: "CERT-LIVE", IssuedAt: time.Now(),
		Status: planModels.CertValid, IssueMethod: planModels.IssueAuto, Renewable: true,
	}
	require.NoError(t, db.Create(&live).Error)

	_, err := orch.RenewCertificate(live.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	past := time.Now().AddDate(0, 0, -5)
	frozen := planModels.CertificateRecord{
		TemplateID: template.ID, LearnerID: learner.ID,
		CertificateNumber: "CERT-FROZEN", IssuedAt: time.Now().AddDate(-1, 0, 0),
		ExpireAt: &past, Status: planModels.CertExpired, IssueMethod: planModels.IssueAuto, Renewable: false,
	}
	require.NoError(t, db.Create(&frozen).Error)

	_, err = orch.RenewCertificate(frozen.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRevokeCertificate(t *testing.T) {
	db := newTestDB(t)
	orch := NewOrchestrator(db, 30)

	template := createTemplate(t, db, planModels.IssueAuto, 90, 0)
	learner := createLearner(t, db, createUnit(t, db, "O-18").ID, true, true)

	record := planModels.CertificateRecord{
		TemplateID: template.ID, LearnerID: learner.ID,
		CertificateNumber: "CERT-REV", IssuedAt: time.Now(),
		Status: planModels.CertValid, IssueMethod: planModels.IssueAuto, Renewable: true,
	}
	require.NoError(t, db.Create(&record).Error)

	require.NoError(t, orch.RevokeCertificate(record.ID))

	var stored planModels.CertificateRecord
	require.NoError(t, db.First(&stored, record.ID).Error)
	assert.Equal(t, planModels.CertRevoked, stored.Status)

	// Revoked is terminal
	assert.ErrorIs(t, orch.RevokeCertificate(record.ID), ErrInvalidTransition)
}
