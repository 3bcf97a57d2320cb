package dto

import (
	"time"

	"github.com/univpredict/early-warning-api/internal/models"
)

// AlertResponse is the API representation of an alert.
type AlertResponse struct {
	ID                  uint       `json:"id"`
	SubjectID           uint       `json:"subject_id"`
	SubjectCode         string     `json:"subject_code,omitempty"`
	SubjectName         string     `json:"subject_name,omitempty"`
	SourceAssessmentID  *uint      `json:"source_assessment_id,omitempty"`
	Kind                string     `json:"kind"`
	Priority            string     `json:"priority"`
	State               string     `json:"state"`
	Title               string     `json:"title"`
	Message             string     `json:"message"`
	RiskIndexAtCreation float64    `json:"risk_index_at_creation"`
	CreatedAt           time.Time  `json:"created_at"`
	ReviewedAt          *time.Time `json:"reviewed_at,omitempty"`
	ResolvedAt          *time.Time `json:"resolved_at,omitempty"`
	ActionsTaken        string     `json:"actions_taken,omitempty"`
	AssigneeID          *uint      `json:"assignee_id,omitempty"`
	NotificationSent    bool       `json:"notification_sent"`
}

// AlertListRequest carries dashboard listing filters.
type AlertListRequest struct {
	State        string `query:"state" validate:"omitempty,oneof=pending in_review resolved dismissed"`
	Priority     string `query:"priority" validate:"omitempty,oneof=critical high medium low"`
	SubjectQuery string `query:"subject" validate:"omitempty,max=100"`
	Page         int    `query:"page" validate:"omitempty,min=1"`
	PageSize     int    `query:"page_size" validate:"omitempty,min=1,max=100"`
}

// AlertTransitionRequest moves an alert through its state machine.
type AlertTransitionRequest struct {
	ToState string `json:"to_state" validate:"required,oneof=in_review resolved dismissed"`
	Note    string `json:"note" validate:"omitempty,max=2000"`
}

// AlertAssignRequest assigns a reviewer to an open alert.
type AlertAssignRequest struct {
	AssigneeID uint `json:"assignee_id" validate:"required,gt=0"`
}

// NewAlertResponse maps an alert model to its API shape.
func NewAlertResponse(alert models.Alert) AlertResponse {
	response := AlertResponse{
		ID:                  alert.ID,
		SubjectID:           alert.SubjectID,
		SourceAssessmentID:  alert.SourceAssessmentID,
		Kind:                string(alert.Kind),
		Priority:            string(alert.Priority),
		State:               string(alert.State),
		Title:               alert.Title,
		Message:             alert.Message,
		RiskIndexAtCreation: alert.RiskIndexAtCreation,
		CreatedAt:           alert.CreatedAt,
		ReviewedAt:          alert.ReviewedAt,
		ResolvedAt:          alert.ResolvedAt,
		ActionsTaken:        alert.ActionsTaken,
		AssigneeID:          alert.AssigneeID,
		NotificationSent:    alert.NotificationSent,
	}

	if alert.Subject != nil {
		response.SubjectCode = alert.Subject.Code
		response.SubjectName = alert.Subject.Name
	}

	return response
}

// NewAlertResponseSlice maps a page of alerts.
func NewAlertResponseSlice(alerts []models.Alert) []AlertResponse {
	responses := make([]AlertResponse, 0, len(alerts))
	for _, alert := range alerts {
		responses = append(responses, NewAlertResponse(alert))
	}
	return responses
}
