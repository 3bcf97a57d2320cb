package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/univpredict/early-warning-api/internal/dto"
	"github.com/univpredict/early-warning-api/internal/repository"
)

// RiskQuery serves read-only risk views keyed by subject code.
type RiskQuery interface {
	ActiveByCode(ctx context.Context, code string) (dto.ActiveRiskResponse, error)
	HistoryByCode(ctx context.Context, code string, since *time.Time, limit, offset int) ([]dto.RiskAssessmentResponse, int64, error)
}

type riskQuery struct {
	subjects repository.SubjectRepository
	ledger   PredictionLedger
	logger   zerolog.Logger
}

// NewRiskQuery constructs the read-side risk service.
func NewRiskQuery(subjects repository.SubjectRepository, ledger PredictionLedger, logger zerolog.Logger) RiskQuery {
	return &riskQuery{
		subjects: subjects,
		ledger:   ledger,
		logger:   logger.With().Str("component", "risk_query").Logger(),
	}
}

func (q *riskQuery) resolve(ctx context.Context, code string) (uint, error) {
	subject, err := q.subjects.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrSubjectNotFound
		}
		return 0, err
	}

	return subject.ID, nil
}

func (q *riskQuery) ActiveByCode(ctx context.Context, code string) (dto.ActiveRiskResponse, error) {
	subjectID, err := q.resolve(ctx, code)
	if err != nil {
		return dto.ActiveRiskResponse{}, err
	}

	assessment, err := q.ledger.GetActive(ctx, subjectID)
	if err != nil {
		return dto.ActiveRiskResponse{}, err
	}

	trend, err := q.ledger.Trend(ctx, subjectID)
	if err != nil {
		return dto.ActiveRiskResponse{}, err
	}

	return dto.ActiveRiskResponse{
		Assessment: dto.NewRiskAssessmentResponse(assessment),
		Trend:      trend,
	}, nil
}

func (q *riskQuery) HistoryByCode(ctx context.Context, code string, since *time.Time, limit, offset int) ([]dto.RiskAssessmentResponse, int64, error) {
	subjectID, err := q.resolve(ctx, code)
	if err != nil {
		return nil, 0, err
	}

	assessments, total, err := q.ledger.History(ctx, subjectID, since, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	return dto.NewRiskAssessmentResponseSlice(assessments), total, nil
}
