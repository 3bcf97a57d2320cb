package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/univpredict/early-warning-api/internal/models"
	"github.com/univpredict/early-warning-api/internal/observability"
	"github.com/univpredict/early-warning-api/internal/repository"
)

// significantChangeDelta is the risk-index movement that marks a commit as a
// significant change even when the classification stays the same.
const significantChangeDelta = 10.0

// Risk trend labels derived from the two most recent ledger entries.
const (
	TrendNew       = "new"
	TrendImproving = "improving"
	TrendStable    = "stable"
	TrendWorsening = "worsening"
)

// PredictionLedger is the versioned history of risk assessments per subject.
// It owns the "exactly one active record per subject" invariant.
type PredictionLedger interface {
	Commit(ctx context.Context, draft models.RiskAssessment) (models.RiskAssessment, error)
	GetActive(ctx context.Context, subjectID uint) (models.RiskAssessment, error)
	History(ctx context.Context, subjectID uint, since *time.Time, limit, offset int) ([]models.RiskAssessment, int64, error)
	Trend(ctx context.Context, subjectID uint) (string, error)
}

type predictionLedger struct {
	assessments repository.AssessmentRepository
	subjects    repository.SubjectRepository
	locks       *subjectLocks
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewPredictionLedger constructs the ledger service.
func NewPredictionLedger(assessments repository.AssessmentRepository, subjects repository.SubjectRepository, logger zerolog.Logger) PredictionLedger {
	return &predictionLedger{
		assessments: assessments,
		subjects:    subjects,
		locks:       newSubjectLocks(),
		logger:      logger.With().Str("component", "prediction_ledger").Logger(),
		tracer:      otel.Tracer("github.com/univpredict/early-warning-api/internal/service/prediction_ledger"),
	}
}

// Commit records the draft as the subject's new active assessment. The
// per-subject lock serializes the read-compute-write sequence; the supersede
// step itself runs in one transaction, so the ledger never partially applies.
func (l *predictionLedger) Commit(ctx context.Context, draft models.RiskAssessment) (models.RiskAssessment, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.commit", trace.WithAttributes(
		attribute.Int64("ledger.subject_id", int64(draft.SubjectID)),
		attribute.Float64("ledger.risk_index", draft.RiskIndex),
		attribute.String("ledger.risk_level", string(draft.RiskLevel)),
	))
	defer span.End()

	exists, err := l.subjects.Exists(ctx, draft.SubjectID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "subject_lookup_failed")
		return models.RiskAssessment{}, fmt.Errorf("ledger commit: %w", err)
	}
	if !exists {
		span.SetStatus(codes.Error, "subject_not_found")
		return models.RiskAssessment{}, ErrSubjectNotFound
	}

	unlock := l.locks.acquire(draft.SubjectID)
	defer unlock()

	previous, err := l.assessments.FindActive(ctx, draft.SubjectID)
	switch {
	case err == nil:
		delta := math.Abs(draft.RiskIndex - previous.RiskIndex)
		levelChanged := draft.RiskLevel != previous.RiskLevel
		draft.SignificantChange = delta >= significantChangeDelta || levelChanged
		if levelChanged {
			draft.ChangeDescription = fmt.Sprintf("%s → %s", previous.RiskLevel, draft.RiskLevel)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		// First assessment for the subject.
	case errors.Is(err, repository.ErrMultipleActiveAssessments):
		l.logger.Error().Uint("subject_id", draft.SubjectID).Msg("single-active invariant broken, halting subject pipeline")
		span.SetStatus(codes.Error, "ledger_corrupted")
		return models.RiskAssessment{}, ErrLedgerCorrupted
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "active_lookup_failed")
		return models.RiskAssessment{}, fmt.Errorf("ledger commit: %w", err)
	}

	if err := l.assessments.Supersede(ctx, &draft); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "supersede_failed")
		return models.RiskAssessment{}, fmt.Errorf("ledger commit: %w", err)
	}

	observability.AssessmentsCommitted().WithLabelValues(string(draft.RiskLevel)).Inc()
	if draft.SignificantChange {
		observability.SignificantChanges().Inc()
	}

	l.logger.Info().
		Uint("subject_id", draft.SubjectID).
		Float64("risk_index", draft.RiskIndex).
		Str("risk_level", string(draft.RiskLevel)).
		Bool("significant_change", draft.SignificantChange).
		Msg("assessment committed")

	return draft, nil
}

func (l *predictionLedger) GetActive(ctx context.Context, subjectID uint) (models.RiskAssessment, error) {
	assessment, err := l.assessments.FindActive(ctx, subjectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.RiskAssessment{}, ErrAssessmentNotFound
		}
		if errors.Is(err, repository.ErrMultipleActiveAssessments) {
			return models.RiskAssessment{}, ErrLedgerCorrupted
		}
		return models.RiskAssessment{}, err
	}

	return assessment, nil
}

func (l *predictionLedger) History(ctx context.Context, subjectID uint, since *time.Time, limit, offset int) ([]models.RiskAssessment, int64, error) {
	return l.assessments.History(ctx, subjectID, since, limit, offset)
}

// Trend compares the two newest ledger entries. Movements within five index
// points count as stable.
func (l *predictionLedger) Trend(ctx context.Context, subjectID uint) (string, error) {
	recent, _, err := l.assessments.History(ctx, subjectID, nil, 2, 0)
	if err != nil {
		return "", err
	}

	if len(recent) == 0 {
		return "", ErrAssessmentNotFound
	}
	if len(recent) == 1 {
		return TrendNew, nil
	}

	diff := recent[0].RiskIndex - recent[1].RiskIndex
	switch {
	case diff < -5:
		return TrendImproving, nil
	case diff > 5:
		return TrendWorsening, nil
	default:
		return TrendStable, nil
	}
}
