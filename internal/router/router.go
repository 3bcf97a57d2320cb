package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/univpredict/early-warning-api/internal/config"
	"github.com/univpredict/early-warning-api/internal/handler"
	"github.com/univpredict/early-warning-api/internal/middleware"
	"github.com/univpredict/early-warning-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	RiskHandler         *handler.RiskHandler
	ScoringHandler      *handler.ScoringHandler
	AlertHandler        *handler.AlertHandler
	InterventionHandler *handler.InterventionHandler
	FollowUpHandler     *handler.FollowUpHandler
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	// Scoring runs are restricted to schedulers and admins, and rate limited
	// so a misconfigured cron cannot stampede the model service.
	if deps.ScoringHandler != nil {
		scoring := app.Group("/api/v2/scoring",
			jwtMiddleware,
			middleware.RequireRole(middleware.RoleAdmin, middleware.RoleScheduler),
			middleware.RateLimit("scoring", 5, time.Minute),
		)
		deps.ScoringHandler.Register(scoring)
	}

	// Risk views
	if deps.RiskHandler != nil {
		risk := app.Group("/api/v2/risk", jwtMiddleware)
		deps.RiskHandler.Register(risk)
	}

	// Alert lifecycle
	if deps.AlertHandler != nil {
		alerts := app.Group("/api/v2/alerts",
			jwtMiddleware,
			middleware.RequireRole(middleware.RoleAdmin, middleware.RoleCoordinator, middleware.RoleCounselor),
		)
		deps.AlertHandler.Register(alerts)
	}

	// Intervention log
	if deps.InterventionHandler != nil {
		interventions := app.Group("/api/v2/interventions",
			jwtMiddleware,
			middleware.RequireRole(middleware.RoleAdmin, middleware.RoleCoordinator, middleware.RoleCounselor),
		)
		deps.InterventionHandler.Register(interventions)
	}

	// Follow-up rollups
	if deps.FollowUpHandler != nil {
		followups := app.Group("/api/v2/followups",
			jwtMiddleware,
			middleware.RequireRole(middleware.RoleAdmin, middleware.RoleCoordinator, middleware.RoleCounselor),
		)
		deps.FollowUpHandler.Register(followups)
	}
}
