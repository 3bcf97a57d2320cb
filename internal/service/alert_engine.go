package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/univpredict/early-warning-api/internal/dto"
	"github.com/univpredict/early-warning-api/internal/models"
	"github.com/univpredict/early-warning-api/internal/observability"
	"github.com/univpredict/early-warning-api/internal/repository"
)

// Actor identifies the authenticated user performing an alert operation.
type Actor struct {
	ID   uint
	Role string
}

// alertTransitions is the full state machine: pending and in_review are open,
// resolved and dismissed are terminal.
var alertTransitions = map[models.AlertState]map[models.AlertState]bool{
	models.AlertStatePending: {
		models.AlertStateInReview:  true,
		models.AlertStateResolved:  true,
		models.AlertStateDismissed: true,
	},
	models.AlertStateInReview: {
		models.AlertStateResolved:  true,
		models.AlertStateDismissed: true,
	},
}

// AlertEngine derives alerts from ledger commits and manages their lifecycle.
type AlertEngine interface {
	OnAssessmentCommitted(ctx context.Context, assessment models.RiskAssessment) (*models.Alert, error)
	Transition(ctx context.Context, alertID uint, toState models.AlertState, actor Actor, note string) (dto.AlertResponse, error)
	Assign(ctx context.Context, alertID uint, assigneeID uint) (dto.AlertResponse, error)
	List(ctx context.Context, filter repository.AlertFilter) ([]dto.AlertResponse, int64, error)
}

type alertEngine struct {
	alerts     repository.AlertRepository
	subjects   repository.SubjectRepository
	aggregator FollowUpAggregator
	notifier   AlertNotifier
	sanitizer  *bluemonday.Policy
	locks      *subjectLocks
	logger     zerolog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewAlertEngine constructs the alert engine.
func NewAlertEngine(
	alerts repository.AlertRepository,
	subjects repository.SubjectRepository,
	aggregator FollowUpAggregator,
	notifier AlertNotifier,
	logger zerolog.Logger,
) AlertEngine {
	return &alertEngine{
		alerts:     alerts,
		subjects:   subjects,
		aggregator: aggregator,
		notifier:   notifier,
		sanitizer:  bluemonday.StrictPolicy(),
		locks:      newSubjectLocks(),
		logger:     logger.With().Str("component", "alert_engine").Logger(),
		tracer:     otel.Tracer("github.com/univpredict/early-warning-api/internal/service/alert_engine"),
		now:        time.Now,
	}
}

func priorityForLevel(level models.RiskLevel) models.AlertPriority {
	if level == models.RiskLevelCritical {
		return models.AlertPriorityCritical
	}
	return models.AlertPriorityHigh
}

func titleForLevel(level models.RiskLevel) string {
	if level == models.RiskLevelCritical {
		return "Student at critical dropout risk"
	}
	return "Student at high dropout risk"
}

// OnAssessmentCommitted creates an alert for a high or critical assessment
// unless the subject already has an open visible alert. The dedup check and
// the insert run under the subject's lock so repeated batch runs cannot raise
// duplicate alerts.
func (e *alertEngine) OnAssessmentCommitted(ctx context.Context, assessment models.RiskAssessment) (*models.Alert, error) {
	if !assessment.RiskLevel.RequiresAttention() {
		return nil, nil
	}

	ctx, span := e.tracer.Start(ctx, "alerts.on_assessment_committed", trace.WithAttributes(
		attribute.Int64("alert.subject_id", int64(assessment.SubjectID)),
		attribute.String("alert.risk_level", string(assessment.RiskLevel)),
	))
	defer span.End()

	unlock := e.locks.acquire(assessment.SubjectID)
	defer unlock()

	_, err := e.alerts.FindOpenBySubject(ctx, assessment.SubjectID)
	switch {
	case err == nil:
		// Open alert already covers this subject; leave it untouched. The
		// rollup still refreshes so its snapshot tracks the new assessment.
		observability.AlertsDeduplicated().Inc()
		span.SetAttributes(attribute.Bool("alert.deduplicated", true))
		if _, err := e.aggregator.Recompute(ctx, assessment.SubjectID); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("alert dedup recompute: %w", err)
		}
		return nil, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		// No open alert, fall through to creation.
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "dedup_lookup_failed")
		return nil, fmt.Errorf("alert dedup check: %w", err)
	}

	kind := models.AlertKindHighRiskDetected
	message := fmt.Sprintf("Model flagged a dropout risk index of %.1f%%", assessment.RiskIndex)
	if assessment.SignificantChange && assessment.ChangeDescription != "" {
		kind = models.AlertKindRiskLevelChange
		message = fmt.Sprintf("Significant change detected: %s. Risk index: %.1f%%", assessment.ChangeDescription, assessment.RiskIndex)
	}

	assessmentID := assessment.ID
	alert := models.Alert{
		SubjectID:           assessment.SubjectID,
		SourceAssessmentID:  &assessmentID,
		Kind:                kind,
		Priority:            priorityForLevel(assessment.RiskLevel),
		State:               models.AlertStatePending,
		Title:               titleForLevel(assessment.RiskLevel),
		Message:             message,
		RiskIndexAtCreation: assessment.RiskIndex,
		Visible:             true,
	}

	if err := e.alerts.Create(ctx, &alert); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "alert_create_failed")
		return nil, fmt.Errorf("alert create: %w", err)
	}

	observability.AlertsCreated().WithLabelValues(string(alert.Priority)).Inc()

	e.dispatchNotification(ctx, &alert)

	if _, err := e.aggregator.Recompute(ctx, alert.SubjectID); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("alert create: %w", err)
	}

	e.logger.Info().
		Uint("alert_id", alert.ID).
		Uint("subject_id", alert.SubjectID).
		Str("priority", string(alert.Priority)).
		Msg("alert created")

	return &alert, nil
}

// dispatchNotification is best-effort: a failed notification is logged and
// retried out of band, never propagated to the caller.
func (e *alertEngine) dispatchNotification(ctx context.Context, alert *models.Alert) {
	if e.notifier == nil {
		return
	}

	subject, err := e.subjects.GetByID(ctx, alert.SubjectID)
	if err != nil {
		e.logger.Warn().Err(err).Uint("alert_id", alert.ID).Msg("subject lookup failed, skipping notification")
		observability.Notifications().WithLabelValues("failed").Inc()
		return
	}

	recipients, err := e.notifier.Notify(ctx, *alert, subject)
	if err != nil {
		e.logger.Warn().Err(err).Uint("alert_id", alert.ID).Msg("alert notification failed")
		observability.Notifications().WithLabelValues("failed").Inc()
		return
	}

	notifiedAt := e.now()
	alert.NotificationSent = true
	alert.NotifiedAt = &notifiedAt
	alert.Recipients = recipients
	if err := e.alerts.Update(ctx, alert); err != nil {
		e.logger.Warn().Err(err).Uint("alert_id", alert.ID).Msg("failed to record notification delivery")
	}

	observability.Notifications().WithLabelValues("sent").Inc()
}

// Transition moves an alert through the state machine, stamping review and
// resolution times as it goes.
func (e *alertEngine) Transition(ctx context.Context, alertID uint, toState models.AlertState, actor Actor, note string) (dto.AlertResponse, error) {
	ctx, span := e.tracer.Start(ctx, "alerts.transition", trace.WithAttributes(
		attribute.Int64("alert.id", int64(alertID)),
		attribute.String("alert.to_state", string(toState)),
		attribute.Int64("alert.actor_id", int64(actor.ID)),
	))
	defer span.End()

	alert, err := e.alerts.FindByID(ctx, alertID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AlertResponse{}, ErrAlertNotFound
		}
		return dto.AlertResponse{}, err
	}

	if !alertTransitions[alert.State][toState] {
		span.SetStatus(codes.Error, "invalid_transition")
		return dto.AlertResponse{}, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, alert.State, toState)
	}

	now := e.now()
	alert.State = toState

	switch toState {
	case models.AlertStateInReview:
		alert.ReviewedAt = &now
	case models.AlertStateResolved, models.AlertStateDismissed:
		alert.ResolvedAt = &now
	}

	if cleanNote := strings.TrimSpace(e.sanitizer.Sanitize(note)); cleanNote != "" {
		if alert.ActionsTaken != "" {
			alert.ActionsTaken += "\n"
		}
		alert.ActionsTaken += cleanNote
	}

	if err := e.alerts.Update(ctx, &alert); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "alert_update_failed")
		return dto.AlertResponse{}, fmt.Errorf("alert transition: %w", err)
	}

	observability.AlertTransitions().WithLabelValues(string(toState)).Inc()

	if _, err := e.aggregator.Recompute(ctx, alert.SubjectID); err != nil {
		span.RecordError(err)
		return dto.AlertResponse{}, fmt.Errorf("alert transition: %w", err)
	}

	e.logger.Info().
		Uint("alert_id", alert.ID).
		Str("state", string(toState)).
		Uint("actor_id", actor.ID).
		Msg("alert transitioned")

	return dto.NewAlertResponse(alert), nil
}

// Assign sets the reviewer while the alert is still open.
func (e *alertEngine) Assign(ctx context.Context, alertID uint, assigneeID uint) (dto.AlertResponse, error) {
	alert, err := e.alerts.FindByID(ctx, alertID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AlertResponse{}, ErrAlertNotFound
		}
		return dto.AlertResponse{}, err
	}

	if !alert.State.IsOpen() {
		return dto.AlertResponse{}, ErrAlertClosed
	}

	alert.AssigneeID = &assigneeID
	if err := e.alerts.Update(ctx, &alert); err != nil {
		return dto.AlertResponse{}, fmt.Errorf("alert assign: %w", err)
	}

	if _, err := e.aggregator.Recompute(ctx, alert.SubjectID); err != nil {
		return dto.AlertResponse{}, fmt.Errorf("alert assign: %w", err)
	}

	return dto.NewAlertResponse(alert), nil
}

func (e *alertEngine) List(ctx context.Context, filter repository.AlertFilter) ([]dto.AlertResponse, int64, error) {
	alerts, total, err := e.alerts.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	return dto.NewAlertResponseSlice(alerts), total, nil
}
