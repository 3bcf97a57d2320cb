package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/univpredict/early-warning-api/internal/service"
	"github.com/univpredict/early-warning-api/internal/utils"
)

// RiskHandler serves read-only risk views keyed by subject code.
type RiskHandler struct {
	query  service.RiskQuery
	logger zerolog.Logger
}

// NewRiskHandler constructs the handler.
func NewRiskHandler(query service.RiskQuery, logger zerolog.Logger) *RiskHandler {
	return &RiskHandler{
		query:  query,
		logger: logger.With().Str("component", "risk_handler").Logger(),
	}
}

// Register attaches risk endpoints to the router group.
func (h *RiskHandler) Register(router fiber.Router) {
	router.Get("/subjects/:code", h.active)
	router.Get("/subjects/:code/history", h.history)
}

func (h *RiskHandler) active(c *fiber.Ctx) error {
	code := c.Params("code")

	risk, err := h.query.ActiveByCode(c.Context(), code)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "active risk retrieved", risk)
}

func (h *RiskHandler) history(c *fiber.Ctx) error {
	code := c.Params("code")

	since, err := parseQueryTime(c, "since")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid since timestamp")
	}

	limit, err := parseQueryInt(c, "limit")
	if err != nil || limit < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}
	if limit == 0 || limit > 100 {
		limit = 20
	}

	offset, err := parseQueryInt(c, "offset")
	if err != nil || offset < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid offset")
	}

	history, total, err := h.query.HistoryByCode(c.Context(), code, since, limit, offset)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendPage(c, "assessment history retrieved", history, utils.PageMeta{
		Page:     offset/limit + 1,
		PageSize: limit,
		Total:    total,
	})
}

func (h *RiskHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrSubjectNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "subject not found")
	case errors.Is(err, service.ErrAssessmentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "no assessment recorded for subject")
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
