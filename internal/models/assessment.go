package models

import (
	"time"

	"gorm.io/datatypes"
)

// RiskLevel is the discrete ordered classification of a risk index.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

var riskLevelRank = map[RiskLevel]int{
	RiskLevelLow:      0,
	RiskLevelMedium:   1,
	RiskLevelHigh:     2,
	RiskLevelCritical: 3,
}

// Rank returns the ordinal position of the level, low first.
func (l RiskLevel) Rank() int {
	return riskLevelRank[l]
}

// RequiresAttention reports whether the level should open follow-up and alerts.
func (l RiskLevel) RequiresAttention() bool {
	return l == RiskLevelHigh || l == RiskLevelCritical
}

// FactorImpact grades how strongly a risk factor contributes.
type FactorImpact string

const (
	FactorImpactHigh   FactorImpact = "high"
	FactorImpactMedium FactorImpact = "medium"
	FactorImpactLow    FactorImpact = "low"
)

// RiskFactor describes one contributing factor behind an assessment,
// stored as JSON alongside the assessment row.
type RiskFactor struct {
	Name           string       `json:"name"`
	Description    string       `json:"description"`
	CurrentValue   float64      `json:"current_value"`
	ExpectedValue  string       `json:"expected_value"`
	Impact         FactorImpact `json:"impact"`
	Weight         float64      `json:"weight"`
	Recommendation string       `json:"recommendation"`
}

// RiskAssessment is one ledger entry: the fused output of the dropout,
// anomaly, and performance models for a subject at a point in time. Rows are
// never deleted; only the Active flag of the superseded entry flips.
type RiskAssessment struct {
	ID                 uint                             `gorm:"primaryKey" json:"id"`
	SubjectID          uint                             `gorm:"index:idx_assessment_subject_created,priority:1;not null" json:"subject_id"`
	Subject            *Subject                         `gorm:"foreignKey:SubjectID" json:"subject,omitempty"`
	CreatedAt          time.Time                        `gorm:"index:idx_assessment_subject_created,priority:2,sort:desc" json:"created_at"`
	DropoutProbability float64                          `gorm:"not null" json:"dropout_probability"`
	RiskIndex          float64                          `gorm:"index;not null" json:"risk_index"`
	RiskLevel          RiskLevel                        `gorm:"size:10;index;not null" json:"risk_level"`
	IsAnomaly          bool                             `gorm:"not null;default:false" json:"is_anomaly"`
	AnomalyScore       *float64                         `json:"anomaly_score"`
	PredictedFuture    *float64                         `json:"predicted_future_performance"`
	RiskFactors        datatypes.JSONSlice[RiskFactor]  `json:"risk_factors"`
	ModelName          string                           `gorm:"size:100;default:XGBoost" json:"model_name"`
	ModelVersion       string                           `gorm:"size:50;default:1.0" json:"model_version"`
	Active             bool                             `gorm:"index;not null;default:true" json:"active"`
	SignificantChange  bool                             `gorm:"not null;default:false" json:"significant_change"`
	ChangeDescription  string                           `gorm:"size:100" json:"change_description"`
}
