package service

import (
	"fmt"

	"github.com/univpredict/early-warning-api/internal/config"
	"github.com/univpredict/early-warning-api/internal/models"
)

// RiskClassifier maps a continuous 0-100 risk index onto the discrete risk
// bands. Thresholds come from configuration and are validated once at startup.
type RiskClassifier struct {
	thresholds config.RiskThresholds
}

// NewRiskClassifier validates the threshold partition and builds a classifier.
func NewRiskClassifier(thresholds config.RiskThresholds) (*RiskClassifier, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("risk classifier: %w", err)
	}

	return &RiskClassifier{thresholds: thresholds}, nil
}

// Classify returns the band the risk index falls into. Boundary values belong
// to the higher band.
func (c *RiskClassifier) Classify(riskIndex float64) models.RiskLevel {
	switch {
	case riskIndex >= c.thresholds.Critical:
		return models.RiskLevelCritical
	case riskIndex >= c.thresholds.High:
		return models.RiskLevelHigh
	case riskIndex >= c.thresholds.Medium:
		return models.RiskLevelMedium
	default:
		return models.RiskLevelLow
	}
}
