package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/univpredict/early-warning-api/internal/dto"
	"github.com/univpredict/early-warning-api/internal/models"
	"github.com/univpredict/early-warning-api/internal/repository"
)

func newAggregatorFixture(t *testing.T, redisClient *redis.Client) (*gorm.DB, models.Subject, FollowUpAggregator) {
	t.Helper()

	db := newTestDB(t)
	subject := createTestSubject(t, db, "F001")

	aggregator := NewFollowUpAggregator(
		repository.NewFollowUpRepository(db),
		repository.NewAssessmentRepository(db),
		repository.NewAlertRepository(db),
		repository.NewInterventionRepository(db),
		redisClient,
		time.Minute,
		zerolog.Nop(),
	)

	return db, subject, aggregator
}

func TestRecomputeCountsFromScratch(t *testing.T) {
	db, subject, aggregator := newAggregatorFixture(t, nil)
	ctx := context.Background()

	alerts := []models.Alert{
		{SubjectID: subject.ID, Kind: models.AlertKindHighRiskDetected, Priority: models.AlertPriorityHigh, State: models.AlertStatePending, Title: "a", Visible: true},
		{SubjectID: subject.ID, Kind: models.AlertKindHighRiskDetected, Priority: models.AlertPriorityHigh, State: models.AlertStateInReview, Title: "b", Visible: true},
		{SubjectID: subject.ID, Kind: models.AlertKindHighRiskDetected, Priority: models.AlertPriorityHigh, State: models.AlertStateResolved, Title: "c", Visible: true},
	}
	for i := range alerts {
		require.NoError(t, db.Create(&alerts[i]).Error)
	}

	interventions := []models.Intervention{
		{SubjectID: subject.ID, Kind: models.InterventionKindTutoring, Outcome: models.InterventionOutcomeSuccessful, Title: "t", PerformedAt: time.Now(), RecordedBy: 1},
		{SubjectID: subject.ID, Kind: models.InterventionKindMeeting, Outcome: models.InterventionOutcomePending, Title: "m", PerformedAt: time.Now(), RecordedBy: 1},
	}
	for i := range interventions {
		require.NoError(t, db.Create(&interventions[i]).Error)
	}

	active := draftAssessment(subject.ID, 98, models.RiskLevelCritical, time.Now().UTC())
	require.NoError(t, db.Create(&active).Error)

	record, err := aggregator.Recompute(ctx, subject.ID)
	require.NoError(t, err)
	require.Equal(t, 3, record.TotalAlerts)
	require.Equal(t, 2, record.OpenAlerts)
	require.Equal(t, 2, record.TotalInterventions)
	require.Equal(t, 1, record.SuccessfulInterventions)
	require.NotNil(t, record.LatestRiskLevel)
	require.Equal(t, models.RiskLevelCritical, *record.LatestRiskLevel)
	require.NotNil(t, record.LatestRiskIndex)
	require.InDelta(t, 98, *record.LatestRiskIndex, 0.001)
	require.True(t, record.InFollowup)
	require.NotNil(t, record.FollowupStartedAt)
}

func TestRecomputeDoesNotStartFollowupForLowRisk(t *testing.T) {
	db, subject, aggregator := newAggregatorFixture(t, nil)

	active := draftAssessment(subject.ID, 40, models.RiskLevelLow, time.Now().UTC())
	require.NoError(t, db.Create(&active).Error)

	record, err := aggregator.Recompute(context.Background(), subject.ID)
	require.NoError(t, err)
	require.False(t, record.InFollowup)
	require.Nil(t, record.FollowupStartedAt)
}

func TestFollowupFlagStickyUntilOperatorEndsIt(t *testing.T) {
	db, subject, aggregator := newAggregatorFixture(t, nil)
	ctx := context.Background()

	active := draftAssessment(subject.ID, 96, models.RiskLevelHigh, time.Now().UTC())
	require.NoError(t, db.Create(&active).Error)

	record, err := aggregator.Recompute(ctx, subject.ID)
	require.NoError(t, err)
	require.True(t, record.InFollowup)

	// Risk drops below the attention bands; the flag stays on.
	require.NoError(t, db.Model(&models.RiskAssessment{}).Where("id = ?", active.ID).
		Updates(map[string]interface{}{"risk_index": 40.0, "risk_level": models.RiskLevelLow}).Error)

	record, err = aggregator.Recompute(ctx, subject.ID)
	require.NoError(t, err)
	require.True(t, record.InFollowup, "only an operator ends follow-up")

	// The operator closes it out explicitly.
	updated, err := aggregator.Update(ctx, subject.ID, dto.FollowUpUpdateRequest{EndFollowup: true})
	require.NoError(t, err)
	require.False(t, updated.InFollowup)
}

func TestFollowupUpdateAppliesOperatorFields(t *testing.T) {
	_, subject, aggregator := newAggregatorFixture(t, nil)
	ctx := context.Background()

	_, err := aggregator.Recompute(ctx, subject.ID)
	require.NoError(t, err)

	owner := uint(9)
	notes := "weekly check-ins agreed"
	nextContact := time.Now().UTC().Add(7 * 24 * time.Hour)

	updated, err := aggregator.Update(ctx, subject.ID, dto.FollowUpUpdateRequest{
		AssignedOwnerID: &owner,
		Notes:           &notes,
		NextContactDate: &nextContact,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.AssignedOwnerID)
	require.Equal(t, owner, *updated.AssignedOwnerID)
	require.Equal(t, notes, updated.Notes)
	require.NotNil(t, updated.NextContactDate)
}

func TestFollowupGetUnknownSubject(t *testing.T) {
	_, _, aggregator := newAggregatorFixture(t, nil)

	_, err := aggregator.Get(context.Background(), 999)
	require.ErrorIs(t, err, ErrFollowUpNotFound)
}

func TestFollowupGetUsesCache(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	db, subject, aggregator := newAggregatorFixture(t, redisClient)
	ctx := context.Background()

	_, err = aggregator.Recompute(ctx, subject.ID)
	require.NoError(t, err)

	first, err := aggregator.Get(ctx, subject.ID)
	require.NoError(t, err)

	// A direct database edit must not show through the cache.
	require.NoError(t, db.Model(&models.FollowUpRecord{}).
		Where("subject_id = ?", subject.ID).
		Update("total_alerts", 99).Error)

	second, err := aggregator.Get(ctx, subject.ID)
	require.NoError(t, err)
	require.Equal(t, first.TotalAlerts, second.TotalAlerts)

	// Recompute invalidates, so the next read is fresh.
	_, err = aggregator.Recompute(ctx, subject.ID)
	require.NoError(t, err)

	third, err := aggregator.Get(ctx, subject.ID)
	require.NoError(t, err)
	require.Equal(t, 0, third.TotalAlerts)
}
