package models

import "gorm.io/gorm"

// Unit represents an organizational subdivision whose learners are tracked in aggregate
type Unit struct {
	gorm.Model
	Code      string `json:"code" gorm:"unique;not null"`
	Name      string `json:"name"`
	IsDeleted bool   `gorm:"default:false"`
}
