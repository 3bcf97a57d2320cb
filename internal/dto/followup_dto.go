package dto

import (
	"time"

	"github.com/univpredict/early-warning-api/internal/models"
)

// FollowUpResponse is the API representation of the per-subject rollup.
type FollowUpResponse struct {
	SubjectID               uint       `json:"subject_id"`
	InFollowup              bool       `json:"in_followup"`
	FollowupStartedAt       *time.Time `json:"followup_started_at,omitempty"`
	LatestRiskIndex         *float64   `json:"latest_risk_index,omitempty"`
	LatestRiskLevel         string     `json:"latest_risk_level,omitempty"`
	LatestAssessmentAt      *time.Time `json:"latest_assessment_at,omitempty"`
	TotalAlerts             int        `json:"total_alerts"`
	OpenAlerts              int        `json:"open_alerts"`
	TotalInterventions      int        `json:"total_interventions"`
	SuccessfulInterventions int        `json:"successful_interventions"`
	AssignedOwnerID         *uint      `json:"assigned_owner_id,omitempty"`
	Notes                   string     `json:"notes,omitempty"`
	LastContactDate         *time.Time `json:"last_contact_date,omitempty"`
	NextContactDate         *time.Time `json:"next_contact_date,omitempty"`
	UpdatedAt               time.Time  `json:"updated_at"`
}

// FollowUpUpdateRequest carries operator edits to the rollup. EndFollowup is
// the only way the sticky in_followup flag turns off.
type FollowUpUpdateRequest struct {
	AssignedOwnerID *uint      `json:"assigned_owner_id" validate:"omitempty,gt=0"`
	Notes           *string    `json:"notes" validate:"omitempty,max=10000"`
	LastContactDate *time.Time `json:"last_contact_date"`
	NextContactDate *time.Time `json:"next_contact_date"`
	EndFollowup     bool       `json:"end_followup"`
}

// NewFollowUpResponse maps a rollup model to its API shape.
func NewFollowUpResponse(record models.FollowUpRecord) FollowUpResponse {
	level := ""
	if record.LatestRiskLevel != nil {
		level = string(*record.LatestRiskLevel)
	}

	return FollowUpResponse{
		SubjectID:               record.SubjectID,
		InFollowup:              record.InFollowup,
		FollowupStartedAt:       record.FollowupStartedAt,
		LatestRiskIndex:         record.LatestRiskIndex,
		LatestRiskLevel:         level,
		LatestAssessmentAt:      record.LatestAssessmentAt,
		TotalAlerts:             record.TotalAlerts,
		OpenAlerts:              record.OpenAlerts,
		TotalInterventions:      record.TotalInterventions,
		SuccessfulInterventions: record.SuccessfulInterventions,
		AssignedOwnerID:         record.AssignedOwnerID,
		Notes:                   record.Notes,
		LastContactDate:         record.LastContactDate,
		NextContactDate:         record.NextContactDate,
		UpdatedAt:               record.UpdatedAt,
	}
}
