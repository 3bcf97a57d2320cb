package models

import "time"

// InterventionKind enumerates remediation categories.
type InterventionKind string

const (
	InterventionKindTutoring      InterventionKind = "tutoring"
	InterventionKindPsychological InterventionKind = "psychological"
	InterventionKindVocational    InterventionKind = "vocational"
	InterventionKindFinancial     InterventionKind = "financial"
	InterventionKindFollowUp      InterventionKind = "follow_up"
	InterventionKindMeeting       InterventionKind = "meeting"
	InterventionKindFamilyContact InterventionKind = "family_contact"
	InterventionKindReferral      InterventionKind = "referral"
	InterventionKindOther         InterventionKind = "other"
)

// InterventionOutcome records how an intervention worked out. Pending is the
// only non-terminal outcome.
type InterventionOutcome string

const (
	InterventionOutcomeSuccessful InterventionOutcome = "successful"
	InterventionOutcomePartial    InterventionOutcome = "partial"
	InterventionOutcomeNoEffect   InterventionOutcome = "no_effect"
	InterventionOutcomePending    InterventionOutcome = "pending"
)

// IsTerminal reports whether the outcome can no longer change.
func (o InterventionOutcome) IsTerminal() bool {
	return o == InterventionOutcomeSuccessful || o == InterventionOutcomePartial || o == InterventionOutcomeNoEffect
}

// Intervention is one append-only remediation record for a subject,
// optionally tied to the alert that motivated it.
type Intervention struct {
	ID               uint                `gorm:"primaryKey" json:"id"`
	SubjectID        uint                `gorm:"index:idx_intervention_subject_performed,priority:1;not null" json:"subject_id"`
	Subject          *Subject            `gorm:"foreignKey:SubjectID" json:"subject,omitempty"`
	RelatedAlertID   *uint               `gorm:"index" json:"related_alert_id"`
	Kind             InterventionKind    `gorm:"size:32;not null" json:"kind"`
	PerformedAt      time.Time           `gorm:"index:idx_intervention_subject_performed,priority:2,sort:desc" json:"performed_at"`
	Title            string              `gorm:"size:200;not null" json:"title"`
	Description      string              `gorm:"type:text" json:"description"`
	Outcome          InterventionOutcome `gorm:"size:16;default:pending;not null" json:"outcome"`
	Notes            string              `gorm:"type:text" json:"notes"`
	RequiresFollowup bool                `gorm:"not null;default:false" json:"requires_followup"`
	FollowupDate     *time.Time          `json:"followup_date"`
	AttachmentURL    string              `gorm:"size:512" json:"attachment_url"`
	RecordedBy       uint                `gorm:"not null" json:"recorded_by"`
	RecordedAt       time.Time           `gorm:"autoCreateTime" json:"recorded_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}
