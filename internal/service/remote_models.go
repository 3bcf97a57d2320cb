package service

import (
	"context"

	"github.com/univpredict/early-warning-api/pkg/scoring"
)

// RemoteFeatureProvider adapts the scoring client to FeatureProvider.
type RemoteFeatureProvider struct {
	client *scoring.Client
}

// NewRemoteFeatureProvider wraps a scoring client.
func NewRemoteFeatureProvider(client *scoring.Client) *RemoteFeatureProvider {
	return &RemoteFeatureProvider{client: client}
}

func (p *RemoteFeatureProvider) Features(ctx context.Context, subjectID uint) (FeatureVector, error) {
	features, err := p.client.FetchFeatures(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	return FeatureVector(features), nil
}

// RemoteModelScorer adapts the scoring client to ModelScorer.
type RemoteModelScorer struct {
	client *scoring.Client
}

// NewRemoteModelScorer wraps a scoring client.
func NewRemoteModelScorer(client *scoring.Client) *RemoteModelScorer {
	return &RemoteModelScorer{client: client}
}

func (s *RemoteModelScorer) Score(ctx context.Context, subjectID uint, features FeatureVector) (FusionInput, error) {
	prediction, err := s.client.Predict(ctx, subjectID, map[string]float64(features))
	if err != nil {
		return FusionInput{}, err
	}

	return FusionInput{
		SubjectID:           subjectID,
		DropoutProbability:  prediction.DropoutProbability,
		BaselineProbability: prediction.BaselineProbability,
		AnomalyLabel:        AnomalyLabel(prediction.AnomalyLabel),
		AnomalyScore:        prediction.AnomalyScore,
		Features:            features,
	}, nil
}
