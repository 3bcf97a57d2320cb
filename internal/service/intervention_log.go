package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/univpredict/early-warning-api/internal/dto"
	"github.com/univpredict/early-warning-api/internal/models"
	"github.com/univpredict/early-warning-api/internal/observability"
	"github.com/univpredict/early-warning-api/internal/repository"
)

// FileStorage uploads intervention attachments and returns a public URL.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// AttachmentUpload carries an uploaded evidence file before storage.
type AttachmentUpload struct {
	Filename string
	Data     []byte
}

var allowedAttachmentTypes = []string{
	"application/pdf",
	"image/png",
	"image/jpeg",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// ErrUnsupportedAttachment rejects attachment uploads outside the document
// and image allowlist.
var ErrUnsupportedAttachment = errors.New("unsupported attachment type")

// InterventionLog is the append-only record of remediation actions.
type InterventionLog interface {
	Record(ctx context.Context, payload dto.InterventionCreateRequest, attachment *AttachmentUpload, actor Actor) (dto.InterventionResponse, error)
	MarkOutcome(ctx context.Context, interventionID uint, payload dto.InterventionOutcomeRequest) (dto.InterventionResponse, error)
	ListBySubject(ctx context.Context, subjectID uint, limit, offset int) ([]dto.InterventionResponse, error)
}

type interventionLog struct {
	interventions repository.InterventionRepository
	subjects      repository.SubjectRepository
	alerts        repository.AlertRepository
	aggregator    FollowUpAggregator
	storage       FileStorage
	validate      *validator.Validate
	sanitizer     *bluemonday.Policy
	logger        zerolog.Logger
	now           func() time.Time
}

// NewInterventionLog constructs the intervention log. storage may be nil, in
// which case attachments are rejected.
func NewInterventionLog(
	interventions repository.InterventionRepository,
	subjects repository.SubjectRepository,
	alerts repository.AlertRepository,
	aggregator FollowUpAggregator,
	storage FileStorage,
	validate *validator.Validate,
	logger zerolog.Logger,
) InterventionLog {
	return &interventionLog{
		interventions: interventions,
		subjects:      subjects,
		alerts:        alerts,
		aggregator:    aggregator,
		storage:       storage,
		validate:      validate,
		sanitizer:     bluemonday.StrictPolicy(),
		logger:        logger.With().Str("component", "intervention_log").Logger(),
		now:           time.Now,
	}
}

// Record appends a new intervention. The record is immutable afterwards except
// for its outcome.
func (s *interventionLog) Record(ctx context.Context, payload dto.InterventionCreateRequest, attachment *AttachmentUpload, actor Actor) (dto.InterventionResponse, error) {
	if err := s.validate.Struct(payload); err != nil {
		return dto.InterventionResponse{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	exists, err := s.subjects.Exists(ctx, payload.SubjectID)
	if err != nil {
		return dto.InterventionResponse{}, fmt.Errorf("intervention record: %w", err)
	}
	if !exists {
		return dto.InterventionResponse{}, ErrSubjectNotFound
	}

	if payload.RelatedAlertID != nil {
		if _, err := s.alerts.FindByID(ctx, *payload.RelatedAlertID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.InterventionResponse{}, ErrAlertNotFound
			}
			return dto.InterventionResponse{}, fmt.Errorf("intervention record: %w", err)
		}
	}

	performedAt := s.now()
	if payload.PerformedAt != nil {
		performedAt = *payload.PerformedAt
	}

	intervention := models.Intervention{
		SubjectID:        payload.SubjectID,
		RelatedAlertID:   payload.RelatedAlertID,
		Kind:             models.InterventionKind(payload.Kind),
		PerformedAt:      performedAt,
		Title:            s.sanitizer.Sanitize(payload.Title),
		Description:      s.sanitizer.Sanitize(payload.Description),
		Outcome:          models.InterventionOutcomePending,
		RequiresFollowup: payload.RequiresFollowup,
		FollowupDate:     payload.FollowupDate,
		RecordedBy:       actor.ID,
	}

	if attachment != nil {
		url, err := s.storeAttachment(ctx, attachment)
		if err != nil {
			return dto.InterventionResponse{}, err
		}
		intervention.AttachmentURL = url
	}

	if err := s.interventions.Create(ctx, &intervention); err != nil {
		return dto.InterventionResponse{}, fmt.Errorf("intervention record: %w", err)
	}

	observability.InterventionsRecorded().WithLabelValues(string(intervention.Kind)).Inc()

	if _, err := s.aggregator.Recompute(ctx, intervention.SubjectID); err != nil {
		return dto.InterventionResponse{}, fmt.Errorf("intervention record: %w", err)
	}

	s.logger.Info().
		Uint("intervention_id", intervention.ID).
		Uint("subject_id", intervention.SubjectID).
		Str("kind", string(intervention.Kind)).
		Uint("recorded_by", actor.ID).
		Msg("intervention recorded")

	return dto.NewInterventionResponse(intervention), nil
}

func (s *interventionLog) storeAttachment(ctx context.Context, attachment *AttachmentUpload) (string, error) {
	if s.storage == nil {
		return "", fmt.Errorf("%w: attachment storage not configured", ErrInvalidInput)
	}

	detected := mimetype.Detect(attachment.Data)
	if !mimetype.EqualsAny(detected.String(), allowedAttachmentTypes...) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedAttachment, detected.String())
	}

	url, err := s.storage.Upload(ctx, attachment.Filename, bytes.NewReader(attachment.Data))
	if err != nil {
		return "", fmt.Errorf("attachment upload: %w", err)
	}

	return url, nil
}

// MarkOutcome finalises a pending intervention. Outcomes are write-once.
func (s *interventionLog) MarkOutcome(ctx context.Context, interventionID uint, payload dto.InterventionOutcomeRequest) (dto.InterventionResponse, error) {
	if err := s.validate.Struct(payload); err != nil {
		return dto.InterventionResponse{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	intervention, err := s.interventions.FindByID(ctx, interventionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.InterventionResponse{}, ErrInterventionNotFound
		}
		return dto.InterventionResponse{}, err
	}

	if intervention.Outcome.IsTerminal() {
		return dto.InterventionResponse{}, ErrAlreadyFinalized
	}

	intervention.Outcome = models.InterventionOutcome(payload.Outcome)
	intervention.Notes = s.sanitizer.Sanitize(payload.Notes)

	if err := s.interventions.Update(ctx, &intervention); err != nil {
		return dto.InterventionResponse{}, fmt.Errorf("intervention outcome: %w", err)
	}

	if _, err := s.aggregator.Recompute(ctx, intervention.SubjectID); err != nil {
		return dto.InterventionResponse{}, fmt.Errorf("intervention outcome: %w", err)
	}

	s.logger.Info().
		Uint("intervention_id", intervention.ID).
		Str("outcome", string(intervention.Outcome)).
		Msg("intervention outcome recorded")

	return dto.NewInterventionResponse(intervention), nil
}

func (s *interventionLog) ListBySubject(ctx context.Context, subjectID uint, limit, offset int) ([]dto.InterventionResponse, error) {
	exists, err := s.subjects.Exists(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrSubjectNotFound
	}

	interventions, err := s.interventions.ListBySubject(ctx, subjectID, limit, offset)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.InterventionResponse, 0, len(interventions))
	for _, intervention := range interventions {
		responses = append(responses, dto.NewInterventionResponse(intervention))
	}

	return responses, nil
}
