package service

import (
	"context"
	"io"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/univpredict/early-warning-api/internal/dto"
	"github.com/univpredict/early-warning-api/internal/models"
	"github.com/univpredict/early-warning-api/internal/repository"
)

type stubStorage struct {
	uploads int
}

func (s *stubStorage) Upload(_ context.Context, name string, _ io.Reader) (string, error) {
	s.uploads++
	return "https://files.test/" + name, nil
}

func newInterventionFixture(t *testing.T, storage FileStorage) (*gorm.DB, models.Subject, InterventionLog, FollowUpAggregator) {
	t.Helper()

	db := newTestDB(t)
	subject := createTestSubject(t, db, "I001")

	subjectRepo := repository.NewSubjectRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	interventionRepo := repository.NewInterventionRepository(db)
	followupRepo := repository.NewFollowUpRepository(db)

	aggregator := NewFollowUpAggregator(followupRepo, assessmentRepo, alertRepo, interventionRepo, nil, 0, zerolog.Nop())
	validate := validator.New(validator.WithRequiredStructEnabled())
	log := NewInterventionLog(interventionRepo, subjectRepo, alertRepo, aggregator, storage, validate, zerolog.Nop())

	return db, subject, log, aggregator
}

func TestRecordIntervention(t *testing.T) {
	_, subject, log, aggregator := newInterventionFixture(t, nil)
	ctx := context.Background()

	recorded, err := log.Record(ctx, dto.InterventionCreateRequest{
		SubjectID:   subject.ID,
		Kind:        "tutoring",
		Title:       "Weekly tutoring session",
		Description: "Paired with a peer tutor for calculus",
	}, nil, Actor{ID: 7, Role: "counselor"})
	require.NoError(t, err)
	require.Equal(t, "pending", recorded.Outcome)
	require.Equal(t, uint(7), recorded.RecordedBy)
	require.False(t, recorded.PerformedAt.IsZero())

	record, err := aggregator.Get(ctx, subject.ID)
	require.NoError(t, err)
	require.Equal(t, 1, record.TotalInterventions)
	require.Equal(t, 0, record.SuccessfulInterventions)
}

func TestRecordInterventionValidation(t *testing.T) {
	_, subject, log, _ := newInterventionFixture(t, nil)

	_, err := log.Record(context.Background(), dto.InterventionCreateRequest{
		SubjectID:   subject.ID,
		Kind:        "exorcism",
		Title:       "x",
		Description: "y",
	}, nil, Actor{ID: 1})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestRecordInterventionUnknownSubject(t *testing.T) {
	_, _, log, _ := newInterventionFixture(t, nil)

	_, err := log.Record(context.Background(), dto.InterventionCreateRequest{
		SubjectID:   999,
		Kind:        "meeting",
		Title:       "x",
		Description: "y",
	}, nil, Actor{ID: 1})
	require.ErrorIs(t, err, ErrSubjectNotFound)
}

func TestRecordInterventionUnknownRelatedAlert(t *testing.T) {
	_, subject, log, _ := newInterventionFixture(t, nil)

	missing := uint(404)
	_, err := log.Record(context.Background(), dto.InterventionCreateRequest{
		SubjectID:      subject.ID,
		RelatedAlertID: &missing,
		Kind:           "meeting",
		Title:          "x",
		Description:    "y",
	}, nil, Actor{ID: 1})
	require.ErrorIs(t, err, ErrAlertNotFound)
}

func TestRecordInterventionWithAttachment(t *testing.T) {
	storage := &stubStorage{}
	_, subject, log, _ := newInterventionFixture(t, storage)

	pdf := []byte("%PDF-1.4 minimal attachment body")
	recorded, err := log.Record(context.Background(), dto.InterventionCreateRequest{
		SubjectID:   subject.ID,
		Kind:        "meeting",
		Title:       "Meeting minutes",
		Description: "Signed agreement attached",
	}, &AttachmentUpload{Filename: "minutes.pdf", Data: pdf}, Actor{ID: 1})
	require.NoError(t, err)
	require.Equal(t, 1, storage.uploads)
	require.Contains(t, recorded.AttachmentURL, "https://files.test/")
}

func TestRecordInterventionRejectsUnsupportedAttachment(t *testing.T) {
	storage := &stubStorage{}
	_, subject, log, _ := newInterventionFixture(t, storage)

	_, err := log.Record(context.Background(), dto.InterventionCreateRequest{
		SubjectID:   subject.ID,
		Kind:        "meeting",
		Title:       "x",
		Description: "y",
	}, &AttachmentUpload{Filename: "run.sh", Data: []byte("#!/bin/sh\nrm -rf /\n")}, Actor{ID: 1})
	require.ErrorIs(t, err, ErrUnsupportedAttachment)
	require.Equal(t, 0, storage.uploads)
}

func TestMarkOutcomeWriteOnce(t *testing.T) {
	_, subject, log, aggregator := newInterventionFixture(t, nil)
	ctx := context.Background()

	recorded, err := log.Record(ctx, dto.InterventionCreateRequest{
		SubjectID:   subject.ID,
		Kind:        "psychological",
		Title:       "Counseling session",
		Description: "Initial evaluation",
	}, nil, Actor{ID: 2})
	require.NoError(t, err)

	finalized, err := log.MarkOutcome(ctx, recorded.ID, dto.InterventionOutcomeRequest{
		Outcome: "successful",
		Notes:   "Student re-engaged with coursework",
	})
	require.NoError(t, err)
	require.Equal(t, "successful", finalized.Outcome)

	_, err = log.MarkOutcome(ctx, recorded.ID, dto.InterventionOutcomeRequest{Outcome: "no_effect"})
	require.ErrorIs(t, err, ErrAlreadyFinalized)

	record, err := aggregator.Get(ctx, subject.ID)
	require.NoError(t, err)
	require.Equal(t, 1, record.SuccessfulInterventions)
}

func TestMarkOutcomeNotFound(t *testing.T) {
	_, _, log, _ := newInterventionFixture(t, nil)

	_, err := log.MarkOutcome(context.Background(), 404, dto.InterventionOutcomeRequest{Outcome: "partial"})
	require.ErrorIs(t, err, ErrInterventionNotFound)
}

func TestListInterventionsBySubject(t *testing.T) {
	_, subject, log, _ := newInterventionFixture(t, nil)
	ctx := context.Background()

	for _, title := range []string{"first", "second"} {
		_, err := log.Record(ctx, dto.InterventionCreateRequest{
			SubjectID:   subject.ID,
			Kind:        "follow_up",
			Title:       title,
			Description: "d",
		}, nil, Actor{ID: 1})
		require.NoError(t, err)
	}

	listed, err := log.ListBySubject(ctx, subject.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, listed, 2)

	_, err = log.ListBySubject(ctx, 999, 10, 0)
	require.ErrorIs(t, err, ErrSubjectNotFound)
}
