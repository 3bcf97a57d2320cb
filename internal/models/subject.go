package models

import "time"

// SubjectStatus captures the enrollment state of a student in the directory.
type SubjectStatus string

const (
	SubjectStatusEnrolled  SubjectStatus = "enrolled"
	SubjectStatusDropout   SubjectStatus = "dropout"
	SubjectStatusGraduated SubjectStatus = "graduated"
)

// Subject is the student identity every risk entity references. The directory
// is owned upstream; this service only reads it.
type Subject struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	Code      string        `gorm:"size:50;uniqueIndex;not null" json:"code"`
	Name      string        `gorm:"size:255" json:"name"`
	Program   string        `gorm:"size:255" json:"program"`
	Campus    string        `gorm:"size:50" json:"campus"`
	Cohort    int           `json:"cohort"`
	Status    SubjectStatus `gorm:"size:20;default:enrolled" json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}
