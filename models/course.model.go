package models

import "gorm.io/gorm"

// Course is catalog reference data from the learning-delivery system.
// Progress facts referencing an unknown course are skipped with an
// integrity warning during rollup.
type Course struct {
	gorm.Model
	Title     string `json:"title"`
	Author    string `json:"author"`
	Duration  int64  `json:"duration" gorm:"default:0"` // duration in hours
	IsDeleted bool   `gorm:"default:false"`
}
