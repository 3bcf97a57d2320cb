package dto

import (
	"time"

	"github.com/univpredict/early-warning-api/internal/models"
)

// RiskFactorResponse mirrors one contributing factor of an assessment.
type RiskFactorResponse struct {
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	CurrentValue   float64 `json:"current_value"`
	ExpectedValue  string  `json:"expected_value"`
	Impact         string  `json:"impact"`
	Weight         float64 `json:"weight"`
	Recommendation string  `json:"recommendation"`
}

// RiskAssessmentResponse is the API representation of one ledger entry.
type RiskAssessmentResponse struct {
	ID                 uint                 `json:"id"`
	SubjectID          uint                 `json:"subject_id"`
	CreatedAt          time.Time            `json:"created_at"`
	DropoutProbability float64              `json:"dropout_probability"`
	RiskIndex          float64              `json:"risk_index"`
	RiskLevel          string               `json:"risk_level"`
	IsAnomaly          bool                 `json:"is_anomaly"`
	AnomalyScore       *float64             `json:"anomaly_score,omitempty"`
	PredictedFuture    *float64             `json:"predicted_future_performance,omitempty"`
	RiskFactors        []RiskFactorResponse `json:"risk_factors"`
	ModelName          string               `json:"model_name"`
	ModelVersion       string               `json:"model_version"`
	Active             bool                 `json:"active"`
	SignificantChange  bool                 `json:"significant_change"`
	ChangeDescription  string               `json:"change_description,omitempty"`
}

// ActiveRiskResponse pairs the active assessment with its recent trend.
type ActiveRiskResponse struct {
	Assessment RiskAssessmentResponse `json:"assessment"`
	Trend      string                 `json:"trend"`
}

// NewRiskAssessmentResponse maps a ledger model to its API shape.
func NewRiskAssessmentResponse(assessment models.RiskAssessment) RiskAssessmentResponse {
	factors := make([]RiskFactorResponse, 0, len(assessment.RiskFactors))
	for _, factor := range assessment.RiskFactors {
		factors = append(factors, RiskFactorResponse{
			Name:           factor.Name,
			Description:    factor.Description,
			CurrentValue:   factor.CurrentValue,
			ExpectedValue:  factor.ExpectedValue,
			Impact:         string(factor.Impact),
			Weight:         factor.Weight,
			Recommendation: factor.Recommendation,
		})
	}

	return RiskAssessmentResponse{
		ID:                 assessment.ID,
		SubjectID:          assessment.SubjectID,
		CreatedAt:          assessment.CreatedAt,
		DropoutProbability: assessment.DropoutProbability,
		RiskIndex:          assessment.RiskIndex,
		RiskLevel:          string(assessment.RiskLevel),
		IsAnomaly:          assessment.IsAnomaly,
		AnomalyScore:       assessment.AnomalyScore,
		PredictedFuture:    assessment.PredictedFuture,
		RiskFactors:        factors,
		ModelName:          assessment.ModelName,
		ModelVersion:       assessment.ModelVersion,
		Active:             assessment.Active,
		SignificantChange:  assessment.SignificantChange,
		ChangeDescription:  assessment.ChangeDescription,
	}
}

// NewRiskAssessmentResponseSlice maps a ledger page.
func NewRiskAssessmentResponseSlice(assessments []models.RiskAssessment) []RiskAssessmentResponse {
	responses := make([]RiskAssessmentResponse, 0, len(assessments))
	for _, assessment := range assessments {
		responses = append(responses, NewRiskAssessmentResponse(assessment))
	}
	return responses
}
