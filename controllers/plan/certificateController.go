package controllers

import (
	"comply/database"
	"comply/middleware"
	planModels "comply/models/plan"
	"comply/services"
	validators "comply/validators/plan"

	"github.com/gofiber/fiber/v2"
)

// CreateTemplate saves a certificate template. Rule configuration errors
// surface here, at save time, never during evaluation. Editing a name that
// already has a referenced version inserts a new version row.
func CreateTemplate(c *fiber.Ctx) error {
	reqData := c.Locals("validatedTemplate").(*validators.TemplatePayload)
	db := database.Database.Db

	issueStrategy := reqData.IssueStrategy
	if issueStrategy == "" {
		issueStrategy = planModels.IssueManual
	}
	validityType := reqData.ValidityType
	if validityType == "" {
		validityType = planModels.ValidityPermanent
	}
	requireProfile := true
	if reqData.RequireProfileApproved != nil {
		requireProfile = *reqData.RequireProfileApproved
	}
	renewable := true
	if reqData.Renewable != nil {
		renewable = *reqData.Renewable
	}

	var maxVersion int64
	db.Model(&planModels.CertificateTemplate{}).
		Where("name = ? AND is_deleted = ?", reqData.Name, false).
		Count(&maxVersion)

	template := planModels.CertificateTemplate{
		Name:          reqData.Name,
		Version:       int(maxVersion) + 1,
		IssueStrategy: issueStrategy,
		ValidityType:  validityType,
		ValidityDays:  reqData.ValidityDays,
		FixedExpireAt: reqData.FixedExpireAt,

		CourseCompletionPercent: reqData.CourseCompletionPercent,
		ExamScorePercent:        reqData.ExamScorePercent,
		RequireProfileApproved:  requireProfile,
		RequireOnsiteAssessment: reqData.RequireOnsiteAssessment,

		Renewable: renewable,
	}

	var err error
	if reqData.PlanID != 0 {
		err = services.ValidateTemplateForPlan(db, &template, reqData.PlanID)
	} else {
		err = services.ValidateTemplate(&template)
	}
	if err != nil {
		return serviceErrorResponse(c, err)
	}

	if err := db.Create(&template).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to save template!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Template saved successfully!", template)
}

// GetLearnerCertificates lists all certificate records for a learner,
// including expired and revoked history
func GetLearnerCertificates(c *fiber.Ctx) error {
	learnerID := c.Locals("learnerID").(int)
	db := database.Database.Db

	var records []planModels.CertificateRecord
	if err := db.Where("learner_id = ?", learnerID).Order("issued_at desc").Find(&records).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch certificates!", nil)
	}

	type RecordWithTemplate struct {
		planModels.CertificateRecord
		TemplateName string `json:"template_name"`
	}

	result := make([]RecordWithTemplate, len(records))
	for i, record := range records {
		var template planModels.CertificateTemplate
		db.Where("id = ?", record.TemplateID).First(&template)
		result[i] = RecordWithTemplate{
			CertificateRecord: record,
			TemplateName:      template.Name,
		}
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Certificates fetched successfully!", fiber.Map{
		"certificates": result,
		"total":        len(result),
	})
}

// RevokeCertificate revokes a live certificate (administrative, terminal)
func RevokeCertificate(c *fiber.Ctx) error {
	recordID := c.Locals("recordID").(int)

	if err := orch.RevokeCertificate(uint(recordID)); err != nil {
		return serviceErrorResponse(c, err)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Certificate revoked successfully!", nil)
}

// RenewCertificate issues a new record for an expired renewable certificate
func RenewCertificate(c *fiber.Ctx) error {
	recordID := c.Locals("recordID").(int)

	record, err := orch.RenewCertificate(uint(recordID))
	if err != nil {
		return serviceErrorResponse(c, err)
	}

	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Certificate renewed successfully!", record)
}
