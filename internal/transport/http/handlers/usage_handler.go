package handlers

import (
	"github.com/agora/backend/internal/core/ports"
	"github.com/agora/backend/internal/infrastructure/logger"
	"github.com/agora/backend/internal/transport/http/dto"
	"github.com/gofiber/fiber/v2"
)

type UsageHandler struct {
	usage  ports.UsageRepository
	logger *logger.Logger
}

func NewUsageHandler(usage ports.UsageRepository, logger *logger.Logger) *UsageHandler {
	return &UsageHandler{usage: usage, logger: logger}
}

func (h *UsageHandler) Totals(c *fiber.Ctx) error {
	requesterID := c.Query("requester_id")
	if requesterID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "requester_id is required",
		})
	}

	totals, err := h.usage.TotalsByRequester(c.Context(), requesterID)
	if err != nil {
		h.logger.Errorw("usage_totals_failed", "requester_id", requesterID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: err.Error(),
		})
	}

	return c.JSON(totals)
}
