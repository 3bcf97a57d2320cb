package service

import (
	"fmt"
	"sort"

	"github.com/univpredict/early-warning-api/internal/models"
)

// AnomalyLabel is the binary verdict of the anomaly detector.
type AnomalyLabel string

const (
	AnomalyLabelNormal  AnomalyLabel = "normal"
	AnomalyLabelAnomaly AnomalyLabel = "anomaly"
)

// FeatureVector carries the engagement features the upstream models consume.
// Keys follow the feature extraction service's naming.
type FeatureVector map[string]float64

// Feature names required for risk-factor identification.
const (
	FeatureCampusDays     = "campus_days"
	FeatureTasksSubmitted = "tasks_submitted"
	FeatureExamsSubmitted = "exams_submitted"
	FeatureLMSVisits      = "lms_visits"
	FeatureResourceDays   = "resource_days"
	FeatureCareerYear     = "career_year"
)

var requiredFeatures = []string{
	FeatureCampusDays,
	FeatureTasksSubmitted,
	FeatureExamsSubmitted,
	FeatureLMSVisits,
	FeatureResourceDays,
	FeatureCareerYear,
}

// FusionInput groups the raw outputs of the three models for one subject.
type FusionInput struct {
	SubjectID           uint
	DropoutProbability  float64
	BaselineProbability *float64
	AnomalyLabel        AnomalyLabel
	AnomalyScore        *float64
	Features            FeatureVector
}

// ScoreFusion combines independent model outputs into an unsaved
// RiskAssessment draft. It has no side effects.
type ScoreFusion struct {
	classifier   *RiskClassifier
	modelName    string
	modelVersion string
}

// NewScoreFusion constructs the fusion component.
func NewScoreFusion(classifier *RiskClassifier, modelName, modelVersion string) *ScoreFusion {
	if modelName == "" {
		modelName = "XGBoost"
	}
	if modelVersion == "" {
		modelVersion = "1.0"
	}

	return &ScoreFusion{
		classifier:   classifier,
		modelName:    modelName,
		modelVersion: modelVersion,
	}
}

// Fuse normalizes raw scores into a RiskAssessment draft. The draft is not
// persisted; committing it is the ledger's job.
func (f *ScoreFusion) Fuse(input FusionInput) (models.RiskAssessment, error) {
	if input.DropoutProbability < 0 || input.DropoutProbability > 1 {
		return models.RiskAssessment{}, fmt.Errorf("%w: dropout probability %.4f outside [0,1]", ErrInvalidScore, input.DropoutProbability)
	}

	for _, name := range requiredFeatures {
		if _, ok := input.Features[name]; !ok {
			return models.RiskAssessment{}, fmt.Errorf("%w: missing feature %q", ErrInvalidScore, name)
		}
	}

	riskIndex := input.DropoutProbability * 100
	predicted := (1 - input.DropoutProbability) * 100

	return models.RiskAssessment{
		SubjectID:          input.SubjectID,
		DropoutProbability: input.DropoutProbability,
		RiskIndex:          riskIndex,
		RiskLevel:          f.classifier.Classify(riskIndex),
		IsAnomaly:          input.AnomalyLabel == AnomalyLabelAnomaly,
		AnomalyScore:       input.AnomalyScore,
		PredictedFuture:    &predicted,
		RiskFactors:        IdentifyRiskFactors(input.Features),
		ModelName:          f.modelName,
		ModelVersion:       f.modelVersion,
		Active:             true,
	}, nil
}

var factorImpactRank = map[models.FactorImpact]int{
	models.FactorImpactHigh:   0,
	models.FactorImpactMedium: 1,
	models.FactorImpactLow:    2,
}

// IdentifyRiskFactors derives the contributing-factor list from the feature
// vector. Factors are ordered by impact, high first; ties keep insertion order.
func IdentifyRiskFactors(features FeatureVector) []models.RiskFactor {
	factors := make([]models.RiskFactor, 0, 6)

	if campusDays := features[FeatureCampusDays]; campusDays < 15 {
		factors = append(factors, models.RiskFactor{
			Name:           "Low campus presence",
			Description:    fmt.Sprintf("Only %.0f days of on-campus attendance", campusDays),
			CurrentValue:   campusDays,
			ExpectedValue:  ">= 15 days",
			Impact:         models.FactorImpactHigh,
			Weight:         14.34,
			Recommendation: "Encourage on-campus attendance",
		})
	}

	if tasks := features[FeatureTasksSubmitted]; tasks < 6 {
		factors = append(factors, models.RiskFactor{
			Name:           "Low task engagement",
			Description:    fmt.Sprintf("Only %.0f tasks submitted", tasks),
			CurrentValue:   tasks,
			ExpectedValue:  ">= 6 tasks",
			Impact:         models.FactorImpactHigh,
			Weight:         13.63,
			Recommendation: "Track upcoming submission deadlines",
		})
	}

	if exams := features[FeatureExamsSubmitted]; exams < 3 {
		factors = append(factors, models.RiskFactor{
			Name:           "Low exam participation",
			Description:    fmt.Sprintf("Only %.0f exams submitted", exams),
			CurrentValue:   exams,
			ExpectedValue:  ">= 3 exams",
			Impact:         models.FactorImpactHigh,
			Weight:         14.24,
			Recommendation: "Check for barriers to sitting exams",
		})
	}

	if visits := features[FeatureLMSVisits]; visits < 50 {
		factors = append(factors, models.RiskFactor{
			Name:           "Low LMS activity",
			Description:    fmt.Sprintf("Only %.0f LMS visits", visits),
			CurrentValue:   visits,
			ExpectedValue:  ">= 50 visits",
			Impact:         models.FactorImpactMedium,
			Weight:         6.89,
			Recommendation: "Offer LMS onboarding support",
		})
	}

	if resourceDays := features[FeatureResourceDays]; resourceDays < 8 {
		factors = append(factors, models.RiskFactor{
			Name:           "Low resource usage",
			Description:    fmt.Sprintf("Only %.0f days accessing course resources", resourceDays),
			CurrentValue:   resourceDays,
			ExpectedValue:  ">= 8 days",
			Impact:         models.FactorImpactMedium,
			Weight:         10.19,
			Recommendation: "Promote available study resources",
		})
	}

	if year := features[FeatureCareerYear]; year >= 4 {
		factors = append(factors, models.RiskFactor{
			Name:           "Senior-year student",
			Description:    fmt.Sprintf("Enrolled in year %.0f of the program", year),
			CurrentValue:   year,
			ExpectedValue:  "Complete the program",
			Impact:         models.FactorImpactMedium,
			Weight:         16.03,
			Recommendation: "Support completion of final requirements",
		})
	}

	sort.SliceStable(factors, func(i, j int) bool {
		return factorImpactRank[factors[i].Impact] < factorImpactRank[factors[j].Impact]
	})

	return factors
}
