package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/univpredict/early-warning-api/internal/models"
	"github.com/univpredict/early-warning-api/internal/repository"
	"github.com/univpredict/early-warning-api/internal/service"
	"github.com/univpredict/early-warning-api/internal/utils"
)

func setupAlertApp(t *testing.T) (*fiber.App, *gorm.DB, service.AlertEngine, models.Subject) {
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

	subject := models.Subject{Code: "H001", Name: "Test Student", Status: models.SubjectStatusEnrolled}
	require.NoError(t, db.Create(&subject).Error)

	subjectRepo := repository.NewSubjectRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	interventionRepo := repository.NewInterventionRepository(db)
	followupRepo := repository.NewFollowUpRepository(db)

	logger := zerolog.Nop()
	aggregator := service.NewFollowUpAggregator(followupRepo, assessmentRepo, alertRepo, interventionRepo, nil, 0, logger)
	notifier := service.NewLogAlertNotifier(nil, logger)
	engine := service.NewAlertEngine(alertRepo, subjectRepo, aggregator, notifier, logger)

	validate := validator.New(validator.WithRequiredStructEnabled())
	alertHandler := NewAlertHandler(engine, validate, logger)

	app := fiber.New()
	group := app.Group("/api/v2/alerts")
	alertHandler.Register(group)

	return app, db, engine, subject
}

func raiseAlert(t *testing.T, db *gorm.DB, engine service.AlertEngine, subjectID uint) models.Alert {
	t.Helper()

	assessment := models.RiskAssessment{
		SubjectID:          subjectID,
		CreatedAt:          time.Now().UTC(),
		DropoutProbability: 0.96,
		RiskIndex:          96,
		RiskLevel:          models.RiskLevelHigh,
		Active:             true,
	}
	require.NoError(t, db.Create(&assessment).Error)

	alert, err := engine.OnAssessmentCommitted(context.Background(), assessment)
	require.NoError(t, err)
	require.NotNil(t, alert)

	return *alert
}

func TestAlertHandlerList(t *testing.T) {
	app, db, engine, subject := setupAlertApp(t)
	raiseAlert(t, db, engine, subject.ID)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/api/v2/alerts?state=pending", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body utils.APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.True(t, body.Success)
	require.NotNil(t, body.Meta)
	require.EqualValues(t, 1, body.Meta.Total)
}

func TestAlertHandlerListRejectsBadState(t *testing.T) {
	app, _, _, _ := setupAlertApp(t)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/api/v2/alerts?state=archived", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestAlertHandlerTransition(t *testing.T) {
	app, db, engine, subject := setupAlertApp(t)
	alert := raiseAlert(t, db, engine, subject.ID)

	payload, err := json.Marshal(fiber.Map{"to_state": "in_review", "note": "checking records"})
	require.NoError(t, err)

	req := httptest.NewRequest(fiber.MethodPatch, "/api/v2/alerts/1/state", bytes.NewReader(payload))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var stored models.Alert
	require.NoError(t, db.First(&stored, alert.ID).Error)
	require.Equal(t, models.AlertStateInReview, stored.State)

	// The same transition again is a conflict, not a repeat.
	req = httptest.NewRequest(fiber.MethodPatch, "/api/v2/alerts/1/state", bytes.NewReader(payload))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)

	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestAlertHandlerTransitionNotFound(t *testing.T) {
	app, _, _, _ := setupAlertApp(t)

	payload, err := json.Marshal(fiber.Map{"to_state": "resolved"})
	require.NoError(t, err)

	req := httptest.NewRequest(fiber.MethodPatch, "/api/v2/alerts/404/state", bytes.NewReader(payload))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
