package models

import (
	"time"

	"gorm.io/datatypes"
)

// AlertKind categorises what triggered an alert.
type AlertKind string

const (
	AlertKindRiskLevelChange  AlertKind = "risk_level_change"
	AlertKindHighRiskDetected AlertKind = "high_risk_detected"
	AlertKindInactivity       AlertKind = "inactivity"
	AlertKindLowPerformance   AlertKind = "low_performance"
	AlertKindManual           AlertKind = "manual"
)

// AlertPriority is fixed at creation from the triggering risk level and never
// re-evaluated afterwards.
type AlertPriority string

const (
	AlertPriorityCritical AlertPriority = "critical"
	AlertPriorityHigh     AlertPriority = "high"
	AlertPriorityMedium   AlertPriority = "medium"
	AlertPriorityLow      AlertPriority = "low"
)

// AlertState is the lifecycle state of an alert. Resolved and dismissed are
// terminal.
type AlertState string

const (
	AlertStatePending   AlertState = "pending"
	AlertStateInReview  AlertState = "in_review"
	AlertStateResolved  AlertState = "resolved"
	AlertStateDismissed AlertState = "dismissed"
)

// IsTerminal reports whether no further transitions may leave the state.
func (s AlertState) IsTerminal() bool {
	return s == AlertStateResolved || s == AlertStateDismissed
}

// IsOpen reports whether the alert still counts against dedup and open counters.
func (s AlertState) IsOpen() bool {
	return s == AlertStatePending || s == AlertStateInReview
}

// Alert is a reviewable warning raised for a subject, usually from a ledger
// commit. Alerts are never deleted; Visible=false hides them.
type Alert struct {
	ID                  uint                          `gorm:"primaryKey" json:"id"`
	SubjectID           uint                          `gorm:"index:idx_alert_subject_created,priority:1;not null" json:"subject_id"`
	Subject             *Subject                      `gorm:"foreignKey:SubjectID" json:"subject,omitempty"`
	SourceAssessmentID  *uint                         `gorm:"index" json:"source_assessment_id"`
	Kind                AlertKind                     `gorm:"size:32;not null" json:"kind"`
	Priority            AlertPriority                 `gorm:"size:16;index:idx_alert_state_priority,priority:2;not null" json:"priority"`
	State               AlertState                    `gorm:"size:16;index:idx_alert_state_priority,priority:1;default:pending;not null" json:"state"`
	Title               string                        `gorm:"size:200;not null" json:"title"`
	Message             string                        `gorm:"type:text" json:"message"`
	RiskIndexAtCreation float64                       `json:"risk_index_at_creation"`
	CreatedAt           time.Time                     `gorm:"index:idx_alert_subject_created,priority:2,sort:desc" json:"created_at"`
	ReviewedAt          *time.Time                    `json:"reviewed_at"`
	ResolvedAt          *time.Time                    `json:"resolved_at"`
	ActionsTaken        string                        `gorm:"type:text" json:"actions_taken"`
	AssigneeID          *uint                         `gorm:"index" json:"assignee_id"`
	NotificationSent    bool                          `gorm:"not null;default:false" json:"notification_sent"`
	NotifiedAt          *time.Time                    `json:"notified_at"`
	Recipients          datatypes.JSONSlice[string]   `json:"recipients"`
	Visible             bool                          `gorm:"not null;default:true" json:"visible"`
}
