package handler

import (
	"errors"

	"license-activation-service/internal/license"
	"license-activation-service/internal/store"

	"github.com/gofiber/fiber/v2"
)

type GenerateInput struct {
	ClientName   string `json:"client_name"`
	ClientEmail  string `json:"client_email"`
	Notes        string `json:"notes"`
	LicenseType  string `json:"license_type"`
	DurationDays int    `json:"duration_days"`
	MaxDevices   int    `json:"max_devices"`
}

type ValidateInput struct {
	Key         string `json:"key"`
	Fingerprint string `json:"fingerprint"`
}

// HandleLicenseGenerate creates a new license in unused status.
func (h *Handler) HandleLicenseGenerate(c *fiber.Ctx) error {
	input := new(GenerateInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid input data",
		})
	}

	lic, err := h.engine.Generate(license.GenerateInput{
		ClientName:   input.ClientName,
		ClientEmail:  input.ClientEmail,
		Notes:        input.Notes,
		LicenseType:  input.LicenseType,
		DurationDays: input.DurationDays,
		MaxDevices:   input.MaxDevices,
	})
	if err != nil {
		return h.internalError(c, "generate", err)
	}

	h.audit.Record(h.currentUserID(c), "generate", lic.Key, input)
	if h.sheets != nil {
		go h.sheets.SyncLicense(lic)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":      true,
		"key":          lic.Key,
		"client_name":  lic.ClientName,
		"client_email": lic.ClientEmail,
		"created_at":   lic.CreatedAt,
	})
}

// HandleLicenseValidate runs the activation state machine for a
// (key, fingerprint) pair. Business rejections come back as 200 with
// valid=false; only store failures produce a 500.
func (h *Handler) HandleLicenseValidate(c *fiber.Ctx) error {
	input := new(ValidateInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"valid":   false,
			"message": "invalid input data",
		})
	}

	res, err := h.engine.ValidateAndActivate(input.Key, input.Fingerprint, license.RequestMeta{
		IPAddress: c.IP(),
		UserAgent: c.Get("User-Agent"),
	})
	if err != nil {
		return h.internalError(c, "validate", err)
	}

	if !res.Valid {
		return c.JSON(fiber.Map{
			"valid":   false,
			"message": res.Message,
		})
	}

	return c.JSON(fiber.Map{
		"valid":        true,
		"message":      res.Message,
		"key":          res.Key,
		"fingerprint":  res.Fingerprint,
		"activated_at": res.ActivatedAt,
		"expires_at":   res.ExpiresAt,
		"user": fiber.Map{
			"name":  res.ClientName,
			"email": res.ClientEmail,
		},
	})
}

// HandleGetAllLicenses returns every license, newest first.
func (h *Handler) HandleGetAllLicenses(c *fiber.Ctx) error {
	licenses, err := h.store.List()
	if err != nil {
		return h.internalError(c, "list", err)
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"licenses": licenses,
	})
}

// HandleGetLicense returns one license and its activation history.
func (h *Handler) HandleGetLicense(c *fiber.Ctx) error {
	key := c.Params("key")
	lic, activations, err := h.store.GetWithActivations(key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"message": "license not found",
			})
		}
		return h.internalError(c, "get", err)
	}
	return c.JSON(fiber.Map{
		"success":     true,
		"license":     lic,
		"activations": activations,
	})
}

// HandleLicenseRevoke moves a license to revoked regardless of state.
func (h *Handler) HandleLicenseRevoke(c *fiber.Ctx) error {
	key := c.Params("key")
	if err := h.engine.Revoke(key); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"message": "license not found",
			})
		}
		return h.internalError(c, "revoke", err)
	}

	h.audit.Record(h.currentUserID(c), "revoke", key, nil)
	h.syncKey(key)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "license revoked",
	})
}

// HandleLicenseReset frees the license back to unused (path-parameter form).
func (h *Handler) HandleLicenseReset(c *fiber.Ctx) error {
	return h.resetLicense(c, c.Params("key"))
}

// HandleLicenseResetBody is the legacy entry point taking the key in the
// request body. Both routes call the same core reset.
func (h *Handler) HandleLicenseResetBody(c *fiber.Ctx) error {
	input := new(struct {
		Key string `json:"key"`
	})
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid input data",
		})
	}
	return h.resetLicense(c, input.Key)
}

func (h *Handler) resetLicense(c *fiber.Ctx, key string) error {
	if key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "license key is required",
		})
	}

	if err := h.engine.Reset(key); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"message": "license not found",
			})
		}
		return h.internalError(c, "reset", err)
	}

	h.audit.Record(h.currentUserID(c), "reset", key, nil)
	h.syncKey(key)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "license reset",
	})
}

// HandleLicenseDelete removes a license and its activation history.
func (h *Handler) HandleLicenseDelete(c *fiber.Ctx) error {
	key := c.Params("key")
	if err := h.store.Delete(key); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"message": "license not found",
			})
		}
		return h.internalError(c, "delete", err)
	}

	h.audit.Record(h.currentUserID(c), "delete", key, nil)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "license deleted",
	})
}

// HandleLicenseStats reports counts of licenses grouped by status.
func (h *Handler) HandleLicenseStats(c *fiber.Ctx) error {
	stats, err := h.store.Stats()
	if err != nil {
		return h.internalError(c, "stats", err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"stats":   stats,
	})
}

func (h *Handler) syncKey(key string) {
	if h.sheets == nil {
		return
	}
	lic, err := h.store.Get(key)
	if err != nil {
		return
	}
	go h.sheets.SyncLicense(lic)
}
