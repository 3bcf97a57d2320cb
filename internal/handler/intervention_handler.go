package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/univpredict/early-warning-api/internal/dto"
	"github.com/univpredict/early-warning-api/internal/service"
	"github.com/univpredict/early-warning-api/internal/utils"
)

// InterventionHandler wires intervention HTTP routes.
type InterventionHandler struct {
	log    service.InterventionLog
	logger zerolog.Logger
}

// NewInterventionHandler constructs the handler.
func NewInterventionHandler(log service.InterventionLog, logger zerolog.Logger) *InterventionHandler {
	return &InterventionHandler{
		log:    log,
		logger: logger.With().Str("component", "intervention_handler").Logger(),
	}
}

// Register attaches intervention endpoints to the router group.
func (h *InterventionHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	router.Patch("/:id/outcome", h.markOutcome)
	router.Get("/subjects/:id", h.listBySubject)
}

// create accepts either a JSON body or a multipart form with an optional
// attachment file.
func (h *InterventionHandler) create(c *fiber.Ctx) error {
	var payload dto.InterventionCreateRequest
	var attachment *service.AttachmentUpload

	if form, err := c.MultipartForm(); err == nil && form != nil {
		parsed, err := interventionPayloadFromForm(c)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		payload = parsed

		if fileHeader, err := c.FormFile("attachment"); err == nil && fileHeader != nil {
			data, err := readMultipartFile(fileHeader)
			if err != nil {
				return utils.SendError(c, fiber.StatusBadRequest, "unreadable attachment")
			}
			attachment = &service.AttachmentUpload{Filename: fileHeader.Filename, Data: data}
		}
	} else if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	intervention, err := h.log.Record(c.Context(), payload, attachment, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "intervention recorded", intervention)
}

func (h *InterventionHandler) markOutcome(c *fiber.Ctx) error {
	interventionID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.InterventionOutcomeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	intervention, err := h.log.MarkOutcome(c.Context(), interventionID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "intervention outcome recorded", intervention)
}

func (h *InterventionHandler) listBySubject(c *fiber.Ctx) error {
	subjectID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	limit, err := parseQueryInt(c, "limit")
	if err != nil || limit < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	offset, err := parseQueryInt(c, "offset")
	if err != nil || offset < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid offset")
	}

	interventions, err := h.log.ListBySubject(c.Context(), subjectID, limit, offset)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "interventions retrieved", interventions)
}

func (h *InterventionHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrUnsupportedAttachment):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrSubjectNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "subject not found")
	case errors.Is(err, service.ErrAlertNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "related alert not found")
	case errors.Is(err, service.ErrInterventionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "intervention not found")
	case errors.Is(err, service.ErrAlreadyFinalized):
		return utils.SendError(c, fiber.StatusConflict, "intervention outcome already finalized")
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

func interventionPayloadFromForm(c *fiber.Ctx) (dto.InterventionCreateRequest, error) {
	payload := dto.InterventionCreateRequest{
		Kind:        c.FormValue("kind"),
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
	}

	subjectID, err := strconv.ParseUint(c.FormValue("subject_id"), 10, 64)
	if err != nil {
		return dto.InterventionCreateRequest{}, errors.New("invalid subject_id")
	}
	payload.SubjectID = uint(subjectID)

	if raw := c.FormValue("related_alert_id"); raw != "" {
		alertID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return dto.InterventionCreateRequest{}, errors.New("invalid related_alert_id")
		}
		id := uint(alertID)
		payload.RelatedAlertID = &id
	}

	if raw := c.FormValue("performed_at"); raw != "" {
		performedAt, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return dto.InterventionCreateRequest{}, errors.New("invalid performed_at")
		}
		payload.PerformedAt = &performedAt
	}

	if raw := c.FormValue("requires_followup"); raw != "" {
		requires, err := strconv.ParseBool(raw)
		if err != nil {
			return dto.InterventionCreateRequest{}, errors.New("invalid requires_followup")
		}
		payload.RequiresFollowup = requires
	}

	if raw := c.FormValue("followup_date"); raw != "" {
		followupDate, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return dto.InterventionCreateRequest{}, errors.New("invalid followup_date")
		}
		payload.FollowupDate = &followupDate
	}

	return payload, nil
}

func readMultipartFile(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(file)
}
