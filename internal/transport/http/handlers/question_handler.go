package handlers

import (
	"github.com/agora/backend/internal/core/services"
	"github.com/agora/backend/internal/domain"
	"github.com/agora/backend/internal/infrastructure/logger"
	"github.com/agora/backend/internal/transport/http/dto"
	"github.com/gofiber/fiber/v2"
)

type QuestionHandler struct {
	service *services.QuestionService
	logger  *logger.Logger
}

func NewQuestionHandler(service *services.QuestionService, logger *logger.Logger) *QuestionHandler {
	return &QuestionHandler{service: service, logger: logger}
}

func (h *QuestionHandler) Ask(c *fiber.Ctx) error {
	var req dto.AskRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Warnw("question_ask_body_parse_failed", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "invalid request body",
		})
	}

	if errors := req.Validate(); len(errors) > 0 {
		h.logger.Warnw("question_ask_validation_failed", "details", errors)
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error:   "validation failed",
			Details: errors,
		})
	}

	input := services.AskInput{
		RequesterID:    req.RequesterID,
		Question:       req.Question,
		Language:       req.Language,
		PartialContext: req.PartialContext,
	}
	if req.PartialAnswer != "" {
		input.PartialAnswer = &req.PartialAnswer
	}
	for _, f := range req.MissingFields {
		input.MissingFields = append(input.MissingFields, domain.DataField(f))
	}

	h.logger.Infow("question_ask_request", "requester_id", req.RequesterID)
	task, err := h.service.Ask(c.Context(), input)
	if err != nil {
		h.logger.Errorw("question_ask_failed", "requester_id", req.RequesterID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: err.Error(),
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(dto.NewTaskResponse(task))
}

func (h *QuestionHandler) Latest(c *fiber.Ctx) error {
	requesterID := c.Query("requester_id")
	if requesterID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "requester_id is required",
		})
	}

	task, err := h.service.Latest(c.Context(), requesterID)
	if err != nil {
		h.logger.Errorw("question_latest_failed", "requester_id", requesterID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: err.Error(),
		})
	}
	if task == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: "no tasks for requester",
		})
	}

	return c.JSON(dto.NewTaskResponse(task))
}
