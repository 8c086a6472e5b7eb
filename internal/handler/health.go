package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HandleHealth probes store connectivity.
func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.log.WithError(err).Error("health check failed")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"success": false,
			"status":  "unhealthy",
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"status":  "ok",
	})
}
