package handler

import (
	"license-activation-service/internal/auth"
	"license-activation-service/internal/license"
	"license-activation-service/internal/service"
	"license-activation-service/internal/store"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Handler wires the HTTP surface to the activation engine and the store.
// All dependencies are injected; there are no package globals.
type Handler struct {
	engine *license.Engine
	store  *store.LicenseStore
	audit  *service.AuditLog
	sheets *service.SheetSyncService
	issuer *auth.TokenIssuer
	db     *gorm.DB
	log    *logrus.Logger
}

func New(engine *license.Engine, st *store.LicenseStore, audit *service.AuditLog, sheets *service.SheetSyncService, issuer *auth.TokenIssuer, db *gorm.DB, log *logrus.Logger) *Handler {
	return &Handler{
		engine: engine,
		store:  st,
		audit:  audit,
		sheets: sheets,
		issuer: issuer,
		db:     db,
		log:    log,
	}
}

// internalError logs the underlying failure with context and returns a
// generic message. Raw store errors never reach the client.
func (h *Handler) internalError(c *fiber.Ctx, op string, err error) error {
	h.log.WithError(err).WithField("op", op).Error("request failed")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"message": "internal server error",
	})
}

func (h *Handler) currentUserID(c *fiber.Ctx) uint {
	if id, ok := c.Locals("userID").(uint); ok {
		return id
	}
	return 0
}
