package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/univpredict/early-warning-api/internal/dto"
	"github.com/univpredict/early-warning-api/internal/repository"
	"github.com/univpredict/early-warning-api/internal/service"
	"github.com/univpredict/early-warning-api/internal/utils"
)

// FollowUpHandler wires follow-up rollup HTTP routes, keyed by subject code.
type FollowUpHandler struct {
	aggregator service.FollowUpAggregator
	subjects   repository.SubjectRepository
	validator  *validator.Validate
	logger     zerolog.Logger
}

// NewFollowUpHandler constructs the handler.
func NewFollowUpHandler(aggregator service.FollowUpAggregator, subjects repository.SubjectRepository, validator *validator.Validate, logger zerolog.Logger) *FollowUpHandler {
	return &FollowUpHandler{
		aggregator: aggregator,
		subjects:   subjects,
		validator:  validator,
		logger:     logger.With().Str("component", "followup_handler").Logger(),
	}
}

// Register attaches follow-up endpoints to the router group.
func (h *FollowUpHandler) Register(router fiber.Router) {
	router.Get("/:code", h.get)
	router.Patch("/:code", h.update)
}

func (h *FollowUpHandler) resolveSubject(c *fiber.Ctx) (uint, error) {
	subject, err := h.subjects.GetByCode(c.Context(), c.Params("code"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, service.ErrSubjectNotFound
		}
		return 0, err
	}
	return subject.ID, nil
}

func (h *FollowUpHandler) get(c *fiber.Ctx) error {
	subjectID, err := h.resolveSubject(c)
	if err != nil {
		return h.handleError(c, err)
	}

	record, err := h.aggregator.Get(c.Context(), subjectID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "follow-up record retrieved", record)
}

func (h *FollowUpHandler) update(c *fiber.Ctx) error {
	subjectID, err := h.resolveSubject(c)
	if err != nil {
		return h.handleError(c, err)
	}

	var payload dto.FollowUpUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	record, err := h.aggregator.Update(c.Context(), subjectID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "follow-up record updated", record)
}

func (h *FollowUpHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrSubjectNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "subject not found")
	case errors.Is(err, service.ErrFollowUpNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "follow-up record not found")
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
