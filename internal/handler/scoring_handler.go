package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/univpredict/early-warning-api/internal/dto"
	"github.com/univpredict/early-warning-api/internal/service"
	"github.com/univpredict/early-warning-api/internal/utils"
)

// ScoringHandler triggers scoring runs.
type ScoringHandler struct {
	scoring service.ScoringService
	logger  zerolog.Logger
}

// NewScoringHandler constructs the handler.
func NewScoringHandler(scoring service.ScoringService, logger zerolog.Logger) *ScoringHandler {
	return &ScoringHandler{
		scoring: scoring,
		logger:  logger.With().Str("component", "scoring_handler").Logger(),
	}
}

// Register attaches scoring endpoints to the router group.
func (h *ScoringHandler) Register(router fiber.Router) {
	router.Post("/runs", h.runBatch)
	router.Post("/subjects/:id", h.scoreSubject)
}

func (h *ScoringHandler) runBatch(c *fiber.Ctx) error {
	var payload dto.BatchRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	report, err := h.scoring.RunBatch(c.Context(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "scoring run completed", report)
}

func (h *ScoringHandler) scoreSubject(c *fiber.Ctx) error {
	subjectID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	assessment, err := h.scoring.ScoreSubject(c.Context(), subjectID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "subject scored", assessment)
}

func (h *ScoringHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrInvalidScore):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrSubjectNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "subject not found")
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
