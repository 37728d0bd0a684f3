package models

import "gorm.io/gorm"

// Learner represents a tracked employee, fed from the external HR system.
// A learner belongs to exactly one current unit; moving units does not
// re-attribute historical facts.
type Learner struct {
	gorm.Model
	Name            string `json:"name"`
	Email           string `json:"email"`
	UnitID          uint   `json:"unit_id" gorm:"index;not null"`
	Role            string `json:"role" gorm:"index"`
	Confirmed       bool   `json:"confirmed" gorm:"default:false"` // confirmed as a plan participant
	ProfileApproved bool   `json:"profile_approved" gorm:"default:false"`
	OnsiteAssessed  bool   `json:"onsite_assessed" gorm:"default:false"`
	IsDeleted       bool   `gorm:"default:false"`
}
