package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/univpredict/early-warning-api/internal/dto"
	"github.com/univpredict/early-warning-api/internal/models"
	"github.com/univpredict/early-warning-api/internal/observability"
	"github.com/univpredict/early-warning-api/internal/repository"
)

// FollowUpAggregator keeps the per-subject rollup in sync with the ledger,
// alert, and intervention tables. Counters are always recomputed from scratch;
// the record is a cache, never a source of truth.
type FollowUpAggregator interface {
	Recompute(ctx context.Context, subjectID uint) (models.FollowUpRecord, error)
	Get(ctx context.Context, subjectID uint) (dto.FollowUpResponse, error)
	Update(ctx context.Context, subjectID uint, payload dto.FollowUpUpdateRequest) (dto.FollowUpResponse, error)
}

type followUpAggregator struct {
	followups     repository.FollowUpRepository
	assessments   repository.AssessmentRepository
	alerts        repository.AlertRepository
	interventions repository.InterventionRepository
	redis         *redis.Client
	cacheTTL      time.Duration
	logger        zerolog.Logger
	now           func() time.Time
}

// NewFollowUpAggregator constructs the aggregator. redisClient may be nil, in
// which case Get always reads the database.
func NewFollowUpAggregator(
	followups repository.FollowUpRepository,
	assessments repository.AssessmentRepository,
	alerts repository.AlertRepository,
	interventions repository.InterventionRepository,
	redisClient *redis.Client,
	cacheTTL time.Duration,
	logger zerolog.Logger,
) FollowUpAggregator {
	return &followUpAggregator{
		followups:     followups,
		assessments:   assessments,
		alerts:        alerts,
		interventions: interventions,
		redis:         redisClient,
		cacheTTL:      cacheTTL,
		logger:        logger.With().Str("component", "followup_aggregator").Logger(),
		now:           time.Now,
	}
}

func followupCacheKey(subjectID uint) string {
	return fmt.Sprintf("ews:followup:%d", subjectID)
}

// Recompute rebuilds the rollup from live aggregates. in_followup is sticky:
// it turns on when the latest risk level reaches high or critical and only an
// explicit operator update clears it.
func (a *followUpAggregator) Recompute(ctx context.Context, subjectID uint) (models.FollowUpRecord, error) {
	record, err := a.followups.GetOrCreate(ctx, subjectID)
	if err != nil {
		return models.FollowUpRecord{}, fmt.Errorf("followup recompute: %w", err)
	}

	alertCounts, err := a.alerts.CountsForSubject(ctx, subjectID)
	if err != nil {
		return models.FollowUpRecord{}, fmt.Errorf("followup recompute: %w", err)
	}
	record.TotalAlerts = alertCounts.Total
	record.OpenAlerts = alertCounts.Open

	interventionCounts, err := a.interventions.CountsForSubject(ctx, subjectID)
	if err != nil {
		return models.FollowUpRecord{}, fmt.Errorf("followup recompute: %w", err)
	}
	record.TotalInterventions = interventionCounts.Total
	record.SuccessfulInterventions = interventionCounts.Successful

	active, err := a.assessments.FindActive(ctx, subjectID)
	switch {
	case err == nil:
		record.LatestRiskIndex = &active.RiskIndex
		level := active.RiskLevel
		record.LatestRiskLevel = &level
		createdAt := active.CreatedAt
		record.LatestAssessmentAt = &createdAt

		if level.RequiresAttention() && !record.InFollowup {
			record.InFollowup = true
			startedAt := a.now()
			record.FollowupStartedAt = &startedAt
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		// No assessment yet; keep whatever snapshot the record has.
	default:
		return models.FollowUpRecord{}, fmt.Errorf("followup recompute: %w", err)
	}

	if err := a.followups.Save(ctx, &record); err != nil {
		return models.FollowUpRecord{}, fmt.Errorf("followup recompute: %w", err)
	}

	a.invalidateCache(ctx, subjectID)
	observability.FollowupRecomputes().Inc()

	return record, nil
}

func (a *followUpAggregator) Get(ctx context.Context, subjectID uint) (dto.FollowUpResponse, error) {
	if cached, ok := a.readCache(ctx, subjectID); ok {
		return cached, nil
	}

	record, err := a.followups.Get(ctx, subjectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.FollowUpResponse{}, ErrFollowUpNotFound
		}
		return dto.FollowUpResponse{}, err
	}

	response := dto.NewFollowUpResponse(record)
	a.writeCache(ctx, subjectID, response)

	return response, nil
}

// Update applies operator edits. Clearing in_followup via EndFollowup is the
// only path that turns the sticky flag off.
func (a *followUpAggregator) Update(ctx context.Context, subjectID uint, payload dto.FollowUpUpdateRequest) (dto.FollowUpResponse, error) {
	record, err := a.followups.Get(ctx, subjectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.FollowUpResponse{}, ErrFollowUpNotFound
		}
		return dto.FollowUpResponse{}, err
	}

	if payload.AssignedOwnerID != nil {
		record.AssignedOwnerID = payload.AssignedOwnerID
	}
	if payload.Notes != nil {
		record.Notes = *payload.Notes
	}
	if payload.LastContactDate != nil {
		record.LastContactDate = payload.LastContactDate
	}
	if payload.NextContactDate != nil {
		record.NextContactDate = payload.NextContactDate
	}
	if payload.EndFollowup {
		record.InFollowup = false
	}

	if err := a.followups.Save(ctx, &record); err != nil {
		return dto.FollowUpResponse{}, err
	}

	a.invalidateCache(ctx, subjectID)

	return dto.NewFollowUpResponse(record), nil
}

func (a *followUpAggregator) readCache(ctx context.Context, subjectID uint) (dto.FollowUpResponse, bool) {
	if a.redis == nil {
		return dto.FollowUpResponse{}, false
	}

	payload, err := a.redis.Get(ctx, followupCacheKey(subjectID)).Bytes()
	if err != nil {
		return dto.FollowUpResponse{}, false
	}

	var response dto.FollowUpResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		return dto.FollowUpResponse{}, false
	}

	return response, true
}

func (a *followUpAggregator) writeCache(ctx context.Context, subjectID uint, response dto.FollowUpResponse) {
	if a.redis == nil || a.cacheTTL <= 0 {
		return
	}

	payload, err := json.Marshal(response)
	if err != nil {
		return
	}

	if err := a.redis.Set(ctx, followupCacheKey(subjectID), payload, a.cacheTTL).Err(); err != nil {
		a.logger.Debug().Err(err).Uint("subject_id", subjectID).Msg("failed to cache followup record")
	}
}

func (a *followUpAggregator) invalidateCache(ctx context.Context, subjectID uint) {
	if a.redis == nil {
		return
	}

	if err := a.redis.Del(ctx, followupCacheKey(subjectID)).Err(); err != nil {
		a.logger.Debug().Err(err).Uint("subject_id", subjectID).Msg("failed to invalidate followup cache")
	}
}
