package services

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"comply/models"
	planModels "comply/models/plan"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testDBCounter int64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:comply_test_%d?mode=memory&cache=shared", atomic.AddInt64(&testDBCounter, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	// sqlite tolerates one writer; a single pooled connection keeps
	// concurrent test traffic serialized at the driver
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Unit{},
		&models.Learner{},
		&models.Course{},
		&models.OutboundEvent{},
		&models.IntegrityWarning{},
		&planModels.Plan{},
		&planModels.CourseRequirement{},
		&planModels.ExamDefinition{},
		&planModels.UnitCoverage{},
		&planModels.LearnerProgressFact{},
		&planModels.ExamAttempt{},
		&planModels.CertificateTemplate{},
		&planModels.CertificateRecord{},
	))
	return db
}

func createUnit(t *testing.T, db *gorm.DB, code string) models.Unit {
	t.Helper()
	unit := models.Unit{Code: code, Name: "Unit " + code}
	require.NoError(t, db.Create(&unit).Error)
	return unit
}

func createLearner(t *testing.T, db *gorm.DB, unitID uint, confirmed, approved bool) models.Learner {
	t.Helper()
	learner := models.Learner{
		Name:            "Learner",
		UnitID:          unitID,
		Confirmed:       confirmed,
		ProfileApproved: approved,
	}
	require.NoError(t, db.Create(&learner).Error)
	return learner
}

func createCourse(t *testing.T, db *gorm.DB, title string) models.Course {
	t.Helper()
	course := models.Course{Title: title}
	require.NoError(t, db.Create(&course).Error)
	return course
}

func jsonIDs(t *testing.T, ids ...uint) datatypes.JSON {
	t.Helper()
	raw, err := json.Marshal(ids)
	require.NoError(t, err)
	return datatypes.JSON(raw)
}

// createPlan stores a plan in the given status targeting the units, with a
// single required course attached.
func createPlan(t *testing.T, db *gorm.DB, status string, unitIDs []uint, templateID *uint) (planModels.Plan, planModels.CourseRequirement) {
	t.Helper()

	course := createCourse(t, db, "Safety Basics")
	p := planModels.Plan{
		Code:               fmt.Sprintf("PLAN-%d", atomic.AddInt64(&testDBCounter, 1)),
		Name:               "Annual Compliance",
		Type:               planModels.TypeAnnual,
		PeriodStart:        time.Now().AddDate(0, -1, 0),
		PeriodEnd:          time.Now().AddDate(0, 1, 0),
		Status:             status,
		MinProgressPercent: 80,
		RemindBeforeDays:   7,
		TargetUnitIDs:      jsonIDs(t, unitIDs...),
		TemplateID:         templateID,
	}
	require.NoError(t, db.Create(&p).Error)

	requirement := planModels.CourseRequirement{
		PlanID:             p.ID,
		CourseID:           course.ID,
		Required:           true,
		MinProgressPercent: 100,
	}
	require.NoError(t, db.Create(&requirement).Error)

	return p, requirement
}

func createTemplate(t *testing.T, db *gorm.DB, strategy string, completion, examScore float64) planModels.CertificateTemplate {
	t.Helper()
	template := planModels.CertificateTemplate{
		Name:                    "Compliance Certificate",
		Version:                 1,
		IssueStrategy:           strategy,
		ValidityType:            planModels.ValidityDuration,
		ValidityDays:            365,
		CourseCompletionPercent: completion,
		ExamScorePercent:        examScore,
		RequireProfileApproved:  true,
		Renewable:               true,
	}
	require.NoError(t, db.Create(&template).Error)
	return template
}

func addProgressFact(t *testing.T, db *gorm.DB, learnerID, planID, courseID uint, percent float64) {
	t.Helper()
	fact := planModels.LearnerProgressFact{
		LearnerID:       learnerID,
		PlanID:          planID,
		CourseID:        courseID,
		ProgressPercent: percent,
		LastUpdatedAt:   time.Now(),
	}
	require.NoError(t, db.Create(&fact).Error)
}
