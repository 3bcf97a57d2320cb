package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/univpredict/early-warning-api/internal/config"
	"github.com/univpredict/early-warning-api/internal/database"
	"github.com/univpredict/early-warning-api/internal/handler"
	"github.com/univpredict/early-warning-api/internal/middleware"
	"github.com/univpredict/early-warning-api/internal/models"
	"github.com/univpredict/early-warning-api/internal/repository"
	"github.com/univpredict/early-warning-api/internal/router"
	"github.com/univpredict/early-warning-api/internal/service"
	cloud "github.com/univpredict/early-warning-api/pkg/cloudinary"
	"github.com/univpredict/early-warning-api/pkg/scoring"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Subject{},
		&models.RiskAssessment{},
		&models.Alert{},
		&models.Intervention{},
		&models.FollowUpRecord{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	var storage service.FileStorage
	if cfg.CloudinaryCloud != "" {
		store, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloud,
			APIKey:    cfg.CloudinaryKey,
			APISecret: cfg.CloudinarySecret,
			Folder:    cfg.AttachmentFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		storage = store
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	subjectRepo := repository.NewSubjectRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	interventionRepo := repository.NewInterventionRepository(db)
	followupRepo := repository.NewFollowUpRepository(db)

	classifier, err := service.NewRiskClassifier(cfg.Thresholds)
	if err != nil {
		log.Fatalf("invalid risk thresholds: %v", err)
	}

	fusion := service.NewScoreFusion(classifier, cfg.ModelName, cfg.ModelVersion)
	ledger := service.NewPredictionLedger(assessmentRepo, subjectRepo, logger)
	aggregator := service.NewFollowUpAggregator(followupRepo, assessmentRepo, alertRepo, interventionRepo, redisClient, cfg.FollowupCacheTTL, logger)

	var notifier service.AlertNotifier
	if redisClient != nil || natsConn != nil {
		notifier = service.NewBrokerAlertNotifier(redisClient, natsConn, cfg.NotifyChannel, cfg.NotifyRecipients, logger)
	} else {
		notifier = service.NewLogAlertNotifier(cfg.NotifyRecipients, logger)
	}

	alertEngine := service.NewAlertEngine(alertRepo, subjectRepo, aggregator, notifier, logger)
	interventionLog := service.NewInterventionLog(interventionRepo, subjectRepo, alertRepo, aggregator, storage, validate, logger)
	riskQuery := service.NewRiskQuery(subjectRepo, ledger, logger)

	scoringClient, err := scoring.New(scoring.Config{
		BaseURL: cfg.ScoringAPIURL,
		APIKey:  cfg.ScoringAPIKey,
		Logger:  logger,
	})
	if err != nil {
		log.Fatalf("failed to create scoring client: %v", err)
	}

	scoringService := service.NewScoringService(
		service.NewRemoteFeatureProvider(scoringClient),
		service.NewRemoteModelScorer(scoringClient),
		fusion,
		ledger,
		alertEngine,
		aggregator,
		validate,
		cfg.BatchWorkers,
		logger,
	)

	riskHandler := handler.NewRiskHandler(riskQuery, logger)
	scoringHandler := handler.NewScoringHandler(scoringService, logger)
	alertHandler := handler.NewAlertHandler(alertEngine, validate, logger)
	interventionHandler := handler.NewInterventionHandler(interventionLog, logger)
	followupHandler := handler.NewFollowUpHandler(aggregator, subjectRepo, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		RiskHandler:         riskHandler,
		ScoringHandler:      scoringHandler,
		AlertHandler:        alertHandler,
		InterventionHandler: interventionHandler,
		FollowUpHandler:     followupHandler,
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
