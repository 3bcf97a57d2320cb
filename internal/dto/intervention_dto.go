package dto

import (
	"time"

	"github.com/univpredict/early-warning-api/internal/models"
)

// InterventionCreateRequest records a remediation action for a subject.
type InterventionCreateRequest struct {
	SubjectID        uint       `json:"subject_id" validate:"required,gt=0"`
	RelatedAlertID   *uint      `json:"related_alert_id" validate:"omitempty,gt=0"`
	Kind             string     `json:"kind" validate:"required,oneof=tutoring psychological vocational financial follow_up meeting family_contact referral other"`
	Title            string     `json:"title" validate:"required,max=200"`
	Description      string     `json:"description" validate:"required,max=5000"`
	PerformedAt      *time.Time `json:"performed_at"`
	RequiresFollowup bool       `json:"requires_followup"`
	FollowupDate     *time.Time `json:"followup_date"`
}

// InterventionOutcomeRequest finalises a pending intervention.
type InterventionOutcomeRequest struct {
	Outcome string `json:"outcome" validate:"required,oneof=successful partial no_effect"`
	Notes   string `json:"notes" validate:"omitempty,max=5000"`
}

// InterventionResponse is the API representation of an intervention.
type InterventionResponse struct {
	ID               uint       `json:"id"`
	SubjectID        uint       `json:"subject_id"`
	RelatedAlertID   *uint      `json:"related_alert_id,omitempty"`
	Kind             string     `json:"kind"`
	PerformedAt      time.Time  `json:"performed_at"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Outcome          string     `json:"outcome"`
	Notes            string     `json:"notes,omitempty"`
	RequiresFollowup bool       `json:"requires_followup"`
	FollowupDate     *time.Time `json:"followup_date,omitempty"`
	AttachmentURL    string     `json:"attachment_url,omitempty"`
	RecordedBy       uint       `json:"recorded_by"`
	RecordedAt       time.Time  `json:"recorded_at"`
}

// NewInterventionResponse maps an intervention model to its API shape.
func NewInterventionResponse(intervention models.Intervention) InterventionResponse {
	return InterventionResponse{
		ID:               intervention.ID,
		SubjectID:        intervention.SubjectID,
		RelatedAlertID:   intervention.RelatedAlertID,
		Kind:             string(intervention.Kind),
		PerformedAt:      intervention.PerformedAt,
		Title:            intervention.Title,
		Description:      intervention.Description,
		Outcome:          string(intervention.Outcome),
		Notes:            intervention.Notes,
		RequiresFollowup: intervention.RequiresFollowup,
		FollowupDate:     intervention.FollowupDate,
		AttachmentURL:    intervention.AttachmentURL,
		RecordedBy:       intervention.RecordedBy,
		RecordedAt:       intervention.RecordedAt,
	}
}
