package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/univpredict/early-warning-api/internal/models"
	"github.com/univpredict/early-warning-api/internal/repository"
)

type alertFixture struct {
	db         *gorm.DB
	subject    models.Subject
	ledger     PredictionLedger
	engine     AlertEngine
	aggregator FollowUpAggregator
	alerts     repository.AlertRepository
}

func newAlertFixture(t *testing.T) *alertFixture {
	t.Helper()

	db := newTestDB(t)
	subject := createTestSubject(t, db, "A001")

	subjectRepo := repository.NewSubjectRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	interventionRepo := repository.NewInterventionRepository(db)
	followupRepo := repository.NewFollowUpRepository(db)

	aggregator := NewFollowUpAggregator(followupRepo, assessmentRepo, alertRepo, interventionRepo, nil, 0, zerolog.Nop())
	notifier := NewLogAlertNotifier([]string{"coordinator@university.test"}, zerolog.Nop())
	engine := NewAlertEngine(alertRepo, subjectRepo, aggregator, notifier, zerolog.Nop())
	ledger := NewPredictionLedger(assessmentRepo, subjectRepo, zerolog.Nop())

	return &alertFixture{
		db:         db,
		subject:    subject,
		ledger:     ledger,
		engine:     engine,
		aggregator: aggregator,
		alerts:     alertRepo,
	}
}

func (f *alertFixture) commit(t *testing.T, riskIndex float64, level models.RiskLevel) models.RiskAssessment {
	t.Helper()

	committed, err := f.ledger.Commit(context.Background(), draftAssessment(f.subject.ID, riskIndex, level, time.Now().UTC()))
	require.NoError(t, err)

	return committed
}

func TestAlertCreatedForHighRiskAssessment(t *testing.T) {
	f := newAlertFixture(t)
	ctx := context.Background()

	assessment := f.commit(t, 96, models.RiskLevelHigh)

	alert, err := f.engine.OnAssessmentCommitted(ctx, assessment)
	require.NoError(t, err)
	require.NotNil(t, alert)
	require.Equal(t, models.AlertStatePending, alert.State)
	require.Equal(t, models.AlertPriorityHigh, alert.Priority)
	require.Equal(t, models.AlertKindHighRiskDetected, alert.Kind)
	require.NotNil(t, alert.SourceAssessmentID)
	require.Equal(t, assessment.ID, *alert.SourceAssessmentID)
	require.InDelta(t, 96, alert.RiskIndexAtCreation, 0.001)

	stored, err := f.alerts.FindByID(ctx, alert.ID)
	require.NoError(t, err)
	require.True(t, stored.NotificationSent)
	require.NotNil(t, stored.NotifiedAt)
	require.Equal(t, []string{"coordinator@university.test"}, []string(stored.Recipients))

	record, err := f.aggregator.Recompute(ctx, f.subject.ID)
	require.NoError(t, err)
	require.Equal(t, 1, record.OpenAlerts)
	require.True(t, record.InFollowup)
}

func TestAlertCriticalPriority(t *testing.T) {
	f := newAlertFixture(t)

	assessment := f.commit(t, 98, models.RiskLevelCritical)

	alert, err := f.engine.OnAssessmentCommitted(context.Background(), assessment)
	require.NoError(t, err)
	require.NotNil(t, alert)
	require.Equal(t, models.AlertPriorityCritical, alert.Priority)
}

func TestAlertSkippedBelowHigh(t *testing.T) {
	f := newAlertFixture(t)

	assessment := f.commit(t, 80, models.RiskLevelMedium)

	alert, err := f.engine.OnAssessmentCommitted(context.Background(), assessment)
	require.NoError(t, err)
	require.Nil(t, alert)
}

func TestAlertDeduplicatedWhileOpen(t *testing.T) {
	f := newAlertFixture(t)
	ctx := context.Background()

	first, err := f.engine.OnAssessmentCommitted(ctx, f.commit(t, 96, models.RiskLevelHigh))
	require.NoError(t, err)
	require.NotNil(t, first)

	// A worse assessment arrives while the first alert is still open.
	second, err := f.engine.OnAssessmentCommitted(ctx, f.commit(t, 99, models.RiskLevelCritical))
	require.NoError(t, err)
	require.Nil(t, second)

	var count int64
	require.NoError(t, f.db.Model(&models.Alert{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestAlertRecreatedAfterResolution(t *testing.T) {
	f := newAlertFixture(t)
	ctx := context.Background()

	first, err := f.engine.OnAssessmentCommitted(ctx, f.commit(t, 96, models.RiskLevelHigh))
	require.NoError(t, err)

	_, err = f.engine.Transition(ctx, first.ID, models.AlertStateResolved, Actor{ID: 1}, "met with student")
	require.NoError(t, err)

	second, err := f.engine.OnAssessmentCommitted(ctx, f.commit(t, 98, models.RiskLevelCritical))
	require.NoError(t, err)
	require.NotNil(t, second, "a closed alert no longer blocks creation")
}

func TestAlertTransitionStateMachine(t *testing.T) {
	f := newAlertFixture(t)
	ctx := context.Background()

	alert, err := f.engine.OnAssessmentCommitted(ctx, f.commit(t, 96, models.RiskLevelHigh))
	require.NoError(t, err)

	reviewed, err := f.engine.Transition(ctx, alert.ID, models.AlertStateInReview, Actor{ID: 4}, "")
	require.NoError(t, err)
	require.Equal(t, string(models.AlertStateInReview), reviewed.State)
	require.NotNil(t, reviewed.ReviewedAt)

	_, err = f.engine.Transition(ctx, alert.ID, models.AlertStatePending, Actor{ID: 4}, "")
	require.ErrorIs(t, err, ErrInvalidTransition)

	resolved, err := f.engine.Transition(ctx, alert.ID, models.AlertStateResolved, Actor{ID: 4}, "met with student")
	require.NoError(t, err)
	require.Equal(t, string(models.AlertStateResolved), resolved.State)
	require.NotNil(t, resolved.ResolvedAt)
	require.Contains(t, resolved.ActionsTaken, "met with student")

	// Terminal states reject everything.
	_, err = f.engine.Transition(ctx, alert.ID, models.AlertStateInReview, Actor{ID: 4}, "")
	require.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.engine.Transition(ctx, alert.ID, models.AlertStateDismissed, Actor{ID: 4}, "")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAlertTransitionNotFound(t *testing.T) {
	f := newAlertFixture(t)

	_, err := f.engine.Transition(context.Background(), 404, models.AlertStateInReview, Actor{ID: 1}, "")
	require.ErrorIs(t, err, ErrAlertNotFound)
}

func TestAlertTransitionSanitizesNote(t *testing.T) {
	f := newAlertFixture(t)
	ctx := context.Background()

	alert, err := f.engine.OnAssessmentCommitted(ctx, f.commit(t, 96, models.RiskLevelHigh))
	require.NoError(t, err)

	resolved, err := f.engine.Transition(ctx, alert.ID, models.AlertStateResolved, Actor{ID: 1}, "<b>escalated</b> to dean")
	require.NoError(t, err)
	require.Equal(t, "escalated to dean", resolved.ActionsTaken)
}

func TestAlertAssignRejectsClosed(t *testing.T) {
	f := newAlertFixture(t)
	ctx := context.Background()

	alert, err := f.engine.OnAssessmentCommitted(ctx, f.commit(t, 96, models.RiskLevelHigh))
	require.NoError(t, err)

	assigned, err := f.engine.Assign(ctx, alert.ID, 42)
	require.NoError(t, err)
	require.NotNil(t, assigned.AssigneeID)
	require.Equal(t, uint(42), *assigned.AssigneeID)

	_, err = f.engine.Transition(ctx, alert.ID, models.AlertStateDismissed, Actor{ID: 1}, "")
	require.NoError(t, err)

	_, err = f.engine.Assign(ctx, alert.ID, 43)
	require.ErrorIs(t, err, ErrAlertClosed)
}

func TestAlertCountersAfterResolution(t *testing.T) {
	f := newAlertFixture(t)
	ctx := context.Background()

	alert, err := f.engine.OnAssessmentCommitted(ctx, f.commit(t, 96, models.RiskLevelHigh))
	require.NoError(t, err)

	_, err = f.engine.Transition(ctx, alert.ID, models.AlertStateResolved, Actor{ID: 1}, "")
	require.NoError(t, err)

	record, err := f.aggregator.Recompute(ctx, f.subject.ID)
	require.NoError(t, err)
	require.Equal(t, 1, record.TotalAlerts)
	require.Equal(t, 0, record.OpenAlerts)
}
