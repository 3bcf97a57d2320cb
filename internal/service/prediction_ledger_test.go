package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/univpredict/early-warning-api/internal/config"
	"github.com/univpredict/early-warning-api/internal/models"
	"github.com/univpredict/early-warning-api/internal/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Subject{},
		&models.RiskAssessment{},
		&models.Alert{},
		&models.Intervention{},
		&models.FollowUpRecord{},
	))

	return db
}

func createTestSubject(t *testing.T, db *gorm.DB, code string) models.Subject {
	t.Helper()

	subject := models.Subject{
		Code:    code,
		Name:    "Test Student",
		Program: "Systems Engineering",
		Campus:  "Main",
		Cohort:  2023,
		Status:  models.SubjectStatusEnrolled,
	}
	require.NoError(t, db.Create(&subject).Error)

	return subject
}

func testThresholds() config.RiskThresholds {
	return config.RiskThresholds{Medium: 75, High: 95, Critical: 97}
}

func draftAssessment(subjectID uint, riskIndex float64, level models.RiskLevel, createdAt time.Time) models.RiskAssessment {
	return models.RiskAssessment{
		SubjectID:          subjectID,
		CreatedAt:          createdAt,
		DropoutProbability: riskIndex / 100,
		RiskIndex:          riskIndex,
		RiskLevel:          level,
		ModelName:          "XGBoost",
		ModelVersion:       "1.0",
		Active:             true,
	}
}

func TestLedgerCommitFirstAssessment(t *testing.T) {
	db := newTestDB(t)
	subject := createTestSubject(t, db, "S001")

	ledger := NewPredictionLedger(repository.NewAssessmentRepository(db), repository.NewSubjectRepository(db), zerolog.Nop())
	ctx := context.Background()

	committed, err := ledger.Commit(ctx, draftAssessment(subject.ID, 40, models.RiskLevelLow, time.Now().UTC()))
	require.NoError(t, err)
	require.True(t, committed.Active)
	require.False(t, committed.SignificantChange)
	require.Empty(t, committed.ChangeDescription)

	active, err := ledger.GetActive(ctx, subject.ID)
	require.NoError(t, err)
	require.Equal(t, committed.ID, active.ID)
}

func TestLedgerCommitSupersedesPrevious(t *testing.T) {
	db := newTestDB(t)
	subject := createTestSubject(t, db, "S002")

	ledger := NewPredictionLedger(repository.NewAssessmentRepository(db), repository.NewSubjectRepository(db), zerolog.Nop())
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	first, err := ledger.Commit(ctx, draftAssessment(subject.ID, 40, models.RiskLevelLow, base))
	require.NoError(t, err)

	second, err := ledger.Commit(ctx, draftAssessment(subject.ID, 52, models.RiskLevelLow, base.Add(time.Minute)))
	require.NoError(t, err)
	require.True(t, second.SignificantChange, "a 12 point jump is significant even within the same band")
	require.Empty(t, second.ChangeDescription, "no band change, no description")

	active, err := ledger.GetActive(ctx, subject.ID)
	require.NoError(t, err)
	require.Equal(t, second.ID, active.ID)

	var superseded models.RiskAssessment
	require.NoError(t, db.First(&superseded, first.ID).Error)
	require.False(t, superseded.Active)

	_, total, err := ledger.History(ctx, subject.ID, nil, 10, 0)
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
}

func TestLedgerCommitLevelChangeDescription(t *testing.T) {
	db := newTestDB(t)
	subject := createTestSubject(t, db, "S003")

	ledger := NewPredictionLedger(repository.NewAssessmentRepository(db), repository.NewSubjectRepository(db), zerolog.Nop())
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	_, err := ledger.Commit(ctx, draftAssessment(subject.ID, 90, models.RiskLevelMedium, base))
	require.NoError(t, err)

	second, err := ledger.Commit(ctx, draftAssessment(subject.ID, 96, models.RiskLevelHigh, base.Add(time.Minute)))
	require.NoError(t, err)
	require.True(t, second.SignificantChange, "band changes are always significant regardless of delta")
	require.Equal(t, "medium → high", second.ChangeDescription)
}

func TestLedgerCommitSmallDeltaSameBandNotSignificant(t *testing.T) {
	db := newTestDB(t)
	subject := createTestSubject(t, db, "S004")

	ledger := NewPredictionLedger(repository.NewAssessmentRepository(db), repository.NewSubjectRepository(db), zerolog.Nop())
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	_, err := ledger.Commit(ctx, draftAssessment(subject.ID, 40, models.RiskLevelLow, base))
	require.NoError(t, err)

	second, err := ledger.Commit(ctx, draftAssessment(subject.ID, 48, models.RiskLevelLow, base.Add(time.Minute)))
	require.NoError(t, err)
	require.False(t, second.SignificantChange)
}

func TestLedgerCommitUnknownSubject(t *testing.T) {
	db := newTestDB(t)

	ledger := NewPredictionLedger(repository.NewAssessmentRepository(db), repository.NewSubjectRepository(db), zerolog.Nop())

	_, err := ledger.Commit(context.Background(), draftAssessment(999, 40, models.RiskLevelLow, time.Now().UTC()))
	require.ErrorIs(t, err, ErrSubjectNotFound)
}

func TestLedgerCommitHaltsOnCorruption(t *testing.T) {
	db := newTestDB(t)
	subject := createTestSubject(t, db, "S005")

	// Two active rows break the single-active invariant.
	for _, index := range []float64{40, 60} {
		row := draftAssessment(subject.ID, index, models.RiskLevelLow, time.Now().UTC())
		require.NoError(t, db.Create(&row).Error)
	}

	ledger := NewPredictionLedger(repository.NewAssessmentRepository(db), repository.NewSubjectRepository(db), zerolog.Nop())

	_, err := ledger.Commit(context.Background(), draftAssessment(subject.ID, 70, models.RiskLevelLow, time.Now().UTC()))
	require.ErrorIs(t, err, ErrLedgerCorrupted)

	_, err = ledger.GetActive(context.Background(), subject.ID)
	require.ErrorIs(t, err, ErrLedgerCorrupted)
}

func TestLedgerTrend(t *testing.T) {
	db := newTestDB(t)
	subject := createTestSubject(t, db, "S006")

	ledger := NewPredictionLedger(repository.NewAssessmentRepository(db), repository.NewSubjectRepository(db), zerolog.Nop())
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	_, err := ledger.Trend(ctx, subject.ID)
	require.ErrorIs(t, err, ErrAssessmentNotFound)

	_, err = ledger.Commit(ctx, draftAssessment(subject.ID, 40, models.RiskLevelLow, base))
	require.NoError(t, err)

	trend, err := ledger.Trend(ctx, subject.ID)
	require.NoError(t, err)
	require.Equal(t, TrendNew, trend)

	_, err = ledger.Commit(ctx, draftAssessment(subject.ID, 43, models.RiskLevelLow, base.Add(time.Minute)))
	require.NoError(t, err)

	trend, err = ledger.Trend(ctx, subject.ID)
	require.NoError(t, err)
	require.Equal(t, TrendStable, trend)

	_, err = ledger.Commit(ctx, draftAssessment(subject.ID, 55, models.RiskLevelLow, base.Add(2*time.Minute)))
	require.NoError(t, err)

	trend, err = ledger.Trend(ctx, subject.ID)
	require.NoError(t, err)
	require.Equal(t, TrendWorsening, trend)

	_, err = ledger.Commit(ctx, draftAssessment(subject.ID, 42, models.RiskLevelLow, base.Add(3*time.Minute)))
	require.NoError(t, err)

	trend, err = ledger.Trend(ctx, subject.ID)
	require.NoError(t, err)
	require.Equal(t, TrendImproving, trend)
}
