package models

import "time"

// FollowUpRecord is the per-subject rollup of alert and intervention activity
// plus the latest risk snapshot. Counters are a cache over the alert and
// intervention tables and are always fully recomputed, never incremented.
type FollowUpRecord struct {
	SubjectID               uint       `gorm:"primaryKey" json:"subject_id"`
	Subject                 *Subject   `gorm:"foreignKey:SubjectID" json:"subject,omitempty"`
	InFollowup              bool       `gorm:"not null;default:false" json:"in_followup"`
	FollowupStartedAt       *time.Time `json:"followup_started_at"`
	LatestRiskIndex         *float64   `json:"latest_risk_index"`
	LatestRiskLevel         *RiskLevel `gorm:"size:10" json:"latest_risk_level"`
	LatestAssessmentAt      *time.Time `json:"latest_assessment_at"`
	TotalAlerts             int        `gorm:"not null;default:0" json:"total_alerts"`
	OpenAlerts              int        `gorm:"not null;default:0" json:"open_alerts"`
	TotalInterventions      int        `gorm:"not null;default:0" json:"total_interventions"`
	SuccessfulInterventions int        `gorm:"not null;default:0" json:"successful_interventions"`
	AssignedOwnerID         *uint      `json:"assigned_owner_id"`
	Notes                   string     `gorm:"type:text" json:"notes"`
	LastContactDate         *time.Time `json:"last_contact_date"`
	NextContactDate         *time.Time `json:"next_contact_date"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
}
