package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/univpredict/early-warning-api/internal/config"
	"github.com/univpredict/early-warning-api/internal/models"
)

func TestRiskClassifierBandBoundaries(t *testing.T) {
	classifier, err := NewRiskClassifier(testThresholds())
	require.NoError(t, err)

	cases := []struct {
		index float64
		want  models.RiskLevel
	}{
		{0, models.RiskLevelLow},
		{74.9, models.RiskLevelLow},
		{75, models.RiskLevelMedium},
		{94.9, models.RiskLevelMedium},
		{95, models.RiskLevelHigh},
		{96.9, models.RiskLevelHigh},
		{97, models.RiskLevelCritical},
		{100, models.RiskLevelCritical},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, classifier.Classify(tc.index), "index %.1f", tc.index)
	}
}

func TestRiskClassifierRejectsBadThresholds(t *testing.T) {
	_, err := NewRiskClassifier(config.RiskThresholds{Medium: 95, High: 75, Critical: 97})
	require.Error(t, err)

	_, err = NewRiskClassifier(config.RiskThresholds{Medium: 0, High: 50, Critical: 60})
	require.Error(t, err)

	_, err = NewRiskClassifier(config.RiskThresholds{Medium: 75, High: 95, Critical: 100})
	require.Error(t, err)
}
