package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/univpredict/early-warning-api/internal/dto"
	"github.com/univpredict/early-warning-api/internal/models"
	"github.com/univpredict/early-warning-api/internal/repository"
	"github.com/univpredict/early-warning-api/internal/service"
	"github.com/univpredict/early-warning-api/internal/utils"
)

// AlertHandler wires alert lifecycle HTTP routes.
type AlertHandler struct {
	engine    service.AlertEngine
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewAlertHandler constructs the handler.
func NewAlertHandler(engine service.AlertEngine, validator *validator.Validate, logger zerolog.Logger) *AlertHandler {
	return &AlertHandler{
		engine:    engine,
		validator: validator,
		logger:    logger.With().Str("component", "alert_handler").Logger(),
	}
}

// Register attaches alert endpoints to the router group.
func (h *AlertHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Patch("/:id/state", h.transition)
	router.Patch("/:id/assignee", h.assign)
}

func (h *AlertHandler) list(c *fiber.Ctx) error {
	var request dto.AlertListRequest
	if err := c.QueryParser(&request); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	if err := h.validator.Struct(request); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if request.Page < 1 {
		request.Page = 1
	}
	if request.PageSize < 1 || request.PageSize > 100 {
		request.PageSize = 20
	}

	filter := repository.AlertFilter{
		State:        models.AlertState(request.State),
		Priority:     models.AlertPriority(request.Priority),
		SubjectQuery: request.SubjectQuery,
		Page:         request.Page,
		PageSize:     request.PageSize,
	}

	alerts, total, err := h.engine.List(c.Context(), filter)
	if err != nil {
		return h.internalError(c, err)
	}

	return utils.SendPage(c, "alerts retrieved", alerts, utils.PageMeta{
		Page:     request.Page,
		PageSize: request.PageSize,
		Total:    total,
	})
}

func (h *AlertHandler) transition(c *fiber.Ctx) error {
	alertID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AlertTransitionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	alert, err := h.engine.Transition(c.Context(), alertID, models.AlertState(payload.ToState), actorFromContext(c), payload.Note)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "alert transitioned", alert)
}

func (h *AlertHandler) assign(c *fiber.Ctx) error {
	alertID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AlertAssignRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	alert, err := h.engine.Assign(c.Context(), alertID, payload.AssigneeID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "alert assigned", alert)
}

func (h *AlertHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrAlertNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "alert not found")
	case errors.Is(err, service.ErrInvalidTransition):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrAlertClosed):
		return utils.SendError(c, fiber.StatusConflict, "alert is closed")
	default:
		return h.internalError(c, err)
	}
}

func (h *AlertHandler) internalError(c *fiber.Ctx, err error) error {
	h.logger.Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
