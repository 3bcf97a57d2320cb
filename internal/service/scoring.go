package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/univpredict/early-warning-api/internal/dto"
	"github.com/univpredict/early-warning-api/internal/models"
	"github.com/univpredict/early-warning-api/internal/observability"
)

// FeatureProvider fetches the engagement feature vector for one subject from
// the feature extraction service.
type FeatureProvider interface {
	Features(ctx context.Context, subjectID uint) (FeatureVector, error)
}

// ModelScorer runs the upstream models over a feature vector.
type ModelScorer interface {
	Score(ctx context.Context, subjectID uint, features FeatureVector) (FusionInput, error)
}

// ScoringService orchestrates scoring runs: fetch features, score, fuse,
// commit, raise alerts, refresh rollups.
type ScoringService interface {
	RunBatch(ctx context.Context, payload dto.BatchRequest) (dto.BatchReport, error)
	ScoreSubject(ctx context.Context, subjectID uint) (dto.RiskAssessmentResponse, error)
}

type scoringService struct {
	features   FeatureProvider
	scorer     ModelScorer
	fusion     *ScoreFusion
	ledger     PredictionLedger
	alerts     AlertEngine
	aggregator FollowUpAggregator
	validate   *validator.Validate
	workers    int
	logger     zerolog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewScoringService constructs the scoring orchestrator.
func NewScoringService(
	features FeatureProvider,
	scorer ModelScorer,
	fusion *ScoreFusion,
	ledger PredictionLedger,
	alerts AlertEngine,
	aggregator FollowUpAggregator,
	validate *validator.Validate,
	workers int,
	logger zerolog.Logger,
) ScoringService {
	if workers < 1 {
		workers = 1
	}

	return &scoringService{
		features:   features,
		scorer:     scorer,
		fusion:     fusion,
		ledger:     ledger,
		alerts:     alerts,
		aggregator: aggregator,
		validate:   validate,
		workers:    workers,
		logger:     logger.With().Str("component", "scoring").Logger(),
		tracer:     otel.Tracer("github.com/univpredict/early-warning-api/internal/service/scoring"),
		now:        time.Now,
	}
}

// fusionResult pairs one subject's fused draft with whatever went wrong.
type fusionResult struct {
	subjectID uint
	draft     models.RiskAssessment
	err       error
}

// RunBatch scores every requested subject. Fusing is fanned out across a
// worker pool; commits run sequentially in request order so the ledger and
// alert pipeline stay deterministic. A failing subject is reported in the
// run's error list and never aborts the batch.
func (s *scoringService) RunBatch(ctx context.Context, payload dto.BatchRequest) (dto.BatchReport, error) {
	if err := s.validate.Struct(payload); err != nil {
		return dto.BatchReport{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	runID := uuid.NewString()
	ctx, span := s.tracer.Start(ctx, "scoring.run_batch", trace.WithAttributes(
		attribute.String("scoring.run_id", runID),
		attribute.Int("scoring.subject_count", len(payload.SubjectIDs)),
	))
	defer span.End()

	report := dto.BatchReport{
		RunID:     runID,
		StartedAt: s.now(),
		Errors:    []dto.BatchError{},
	}

	s.logger.Info().
		Str("run_id", runID).
		Int("subjects", len(payload.SubjectIDs)).
		Str("period", payload.Period).
		Msg("scoring run started")

	drafts := s.fuseAll(ctx, payload.SubjectIDs)

	for _, subjectID := range payload.SubjectIDs {
		if err := ctx.Err(); err != nil {
			report.Cancelled = true
			span.SetAttributes(attribute.Bool("scoring.cancelled", true))
			break
		}

		result := drafts[subjectID]
		report.Processed++

		if result.err != nil {
			report.Errors = append(report.Errors, dto.BatchError{SubjectID: subjectID, Reason: result.err.Error()})
			observability.BatchSubjectErrors().Inc()
			continue
		}

		committed, err := s.ledger.Commit(ctx, result.draft)
		if err != nil {
			report.Errors = append(report.Errors, dto.BatchError{SubjectID: subjectID, Reason: err.Error()})
			observability.BatchSubjectErrors().Inc()
			s.logger.Warn().Err(err).Str("run_id", runID).Uint("subject_id", subjectID).Msg("subject commit failed")
			continue
		}

		report.Committed++
		tallyLevel(&report.Stats, committed)

		alert, err := s.alerts.OnAssessmentCommitted(ctx, committed)
		if err != nil {
			report.Errors = append(report.Errors, dto.BatchError{SubjectID: subjectID, Reason: err.Error()})
			observability.BatchSubjectErrors().Inc()
			continue
		}
		if alert != nil {
			report.AlertsCreated++
		}

		if !committed.RiskLevel.RequiresAttention() {
			// The alert path already recomputed for high and critical subjects.
			if _, err := s.aggregator.Recompute(ctx, subjectID); err != nil {
				report.Errors = append(report.Errors, dto.BatchError{SubjectID: subjectID, Reason: err.Error()})
				observability.BatchSubjectErrors().Inc()
			}
		}
	}

	report.FinishedAt = s.now()
	observability.BatchRuns().Inc()

	if report.Cancelled {
		span.SetStatus(codes.Error, "cancelled")
	}

	s.logger.Info().
		Str("run_id", runID).
		Int("processed", report.Processed).
		Int("committed", report.Committed).
		Int("alerts_created", report.AlertsCreated).
		Int("errors", len(report.Errors)).
		Bool("cancelled", report.Cancelled).
		Msg("scoring run finished")

	return report, nil
}

// fuseAll runs feature fetch, model scoring, and fusion for every subject on
// a bounded worker pool. Results are keyed by subject so the caller can
// commit in request order.
func (s *scoringService) fuseAll(ctx context.Context, subjectIDs []uint) map[uint]fusionResult {
	jobs := make(chan uint)
	results := make(chan fusionResult)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for subjectID := range jobs {
				results <- s.fuseOne(ctx, subjectID)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, subjectID := range subjectIDs {
			select {
			case jobs <- subjectID:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	drafts := make(map[uint]fusionResult, len(subjectIDs))
	for result := range results {
		drafts[result.subjectID] = result
	}

	for _, subjectID := range subjectIDs {
		if _, ok := drafts[subjectID]; !ok {
			drafts[subjectID] = fusionResult{subjectID: subjectID, err: ctx.Err()}
		}
	}

	return drafts
}

func (s *scoringService) fuseOne(ctx context.Context, subjectID uint) fusionResult {
	features, err := s.features.Features(ctx, subjectID)
	if err != nil {
		return fusionResult{subjectID: subjectID, err: fmt.Errorf("feature fetch: %w", err)}
	}

	input, err := s.scorer.Score(ctx, subjectID, features)
	if err != nil {
		return fusionResult{subjectID: subjectID, err: fmt.Errorf("model scoring: %w", err)}
	}
	input.SubjectID = subjectID

	draft, err := s.fusion.Fuse(input)
	if err != nil {
		return fusionResult{subjectID: subjectID, err: err}
	}

	return fusionResult{subjectID: subjectID, draft: draft}
}

// ScoreSubject runs the full pipeline for a single subject synchronously.
func (s *scoringService) ScoreSubject(ctx context.Context, subjectID uint) (dto.RiskAssessmentResponse, error) {
	result := s.fuseOne(ctx, subjectID)
	if result.err != nil {
		return dto.RiskAssessmentResponse{}, result.err
	}

	committed, err := s.ledger.Commit(ctx, result.draft)
	if err != nil {
		return dto.RiskAssessmentResponse{}, err
	}

	if _, err := s.alerts.OnAssessmentCommitted(ctx, committed); err != nil {
		return dto.RiskAssessmentResponse{}, err
	}

	if !committed.RiskLevel.RequiresAttention() {
		if _, err := s.aggregator.Recompute(ctx, subjectID); err != nil {
			return dto.RiskAssessmentResponse{}, err
		}
	}

	return dto.NewRiskAssessmentResponse(committed), nil
}

func tallyLevel(stats *dto.BatchStats, assessment models.RiskAssessment) {
	switch assessment.RiskLevel {
	case models.RiskLevelLow:
		stats.Low++
	case models.RiskLevelMedium:
		stats.Medium++
	case models.RiskLevelHigh:
		stats.High++
	case models.RiskLevelCritical:
		stats.Critical++
	}

	if assessment.IsAnomaly {
		stats.Anomalies++
	}
}
