package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Outbound event kinds consumed by the external notification/UI layer
const (
	EventEscalationRaised    = "ESCALATION_RAISED"
	EventCertificateIssued   = "CERTIFICATE_ISSUED"
	EventManualIssueRequired = "MANUAL_ISSUE_REQUIRED"
	EventPlanStateChanged    = "PLAN_STATE_CHANGED"
)

// OutboundEvent is the engine's only side-effect channel. Events are
// persisted first and delivered to the notification webhook best-effort;
// the engine never sends emails or SMS itself.
type OutboundEvent struct {
	gorm.Model
	EventID     string         `json:"event_id" gorm:"unique;not null"`
	Kind        string         `json:"kind" gorm:"index;not null"`
	PlanID      uint           `json:"plan_id" gorm:"index"`
	UnitID      uint           `json:"unit_id" gorm:"index"`
	LearnerID   uint           `json:"learner_id" gorm:"index"`
	Payload     datatypes.JSON `json:"payload"`
	DedupeKey   string         `json:"dedupe_key" gorm:"index"` // empty for always-emitted events
	Resolved    bool           `json:"resolved" gorm:"default:false"`
	Delivered   bool           `json:"delivered" gorm:"default:false"`
	DeliveredAt *time.Time     `json:"delivered_at"`
}

// IntegrityWarning records a skipped fact whose course or exam reference
// data is missing. Rollup continues past these.
type IntegrityWarning struct {
	gorm.Model
	PlanID    uint   `json:"plan_id" gorm:"index"`
	LearnerID uint   `json:"learner_id" gorm:"index"`
	RefType   string `json:"ref_type"` // COURSE or EXAM
	RefID     uint   `json:"ref_id"`
	Message   string `json:"message"`
}
