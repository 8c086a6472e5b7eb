package main

import (
	"time"

	"license-activation-service/internal/auth"
	"license-activation-service/internal/config"
	"license-activation-service/internal/database"
	"license-activation-service/internal/handler"
	"license-activation-service/internal/license"
	"license-activation-service/internal/logs"
	"license-activation-service/internal/middleware"
	"license-activation-service/internal/service"
	"license-activation-service/internal/store"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func main() {
	cfg := config.MustLoad()
	log := logs.New(logs.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	db, err := database.Open(cfg.Database.Dir, cfg.Database.File,
		cfg.Auth.AdminUsername, cfg.Auth.AdminPassword)
	if err != nil {
		log.WithError(err).Fatal("database init failed")
	}
	defer database.Close(db)

	licenseStore := store.NewLicenseStore(db)
	engine := license.NewEngine(licenseStore, log)
	audit := service.NewAuditLog(db)
	issuer := auth.NewTokenIssuer(cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.TokenTTLHours)*time.Hour)

	sheets, err := service.NewSheetSyncService(
		cfg.SheetSync.Enabled,
		cfg.SheetSync.CredentialFile,
		cfg.SheetSync.SpreadsheetID,
		cfg.SheetSync.SheetName,
		log,
	)
	if err != nil {
		log.WithError(err).Fatal("sheet sync init failed")
	}

	h := handler.New(engine, licenseStore, audit, sheets, issuer, db, log)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.WithError(err).Error("unhandled error")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "internal server error",
			})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New())

	app.Get("/health", h.HandleHealth)

	api := app.Group("/api/v1")

	api.Post("/auth/login", h.HandleLogin)

	licenses := api.Group("/licenses")
	authMW := middleware.Auth(issuer)
	adminMW := middleware.AdminOnly(db)

	// Client-facing: the key itself is the credential.
	licenses.Post("/validate", h.HandleLicenseValidate)

	// Admin surface.
	licenses.Post("/generate", authMW, adminMW, h.HandleLicenseGenerate)
	licenses.Get("/", authMW, adminMW, h.HandleGetAllLicenses)
	licenses.Get("/stats", authMW, adminMW, h.HandleLicenseStats)
	licenses.Post("/reset", authMW, adminMW, h.HandleLicenseResetBody)
	licenses.Get("/:key", authMW, adminMW, h.HandleGetLicense)
	licenses.Post("/:key/revoke", authMW, adminMW, h.HandleLicenseRevoke)
	licenses.Post("/:key/reset", authMW, adminMW, h.HandleLicenseReset)
	licenses.Delete("/:key", authMW, adminMW, h.HandleLicenseDelete)

	api.Get("/logs", authMW, adminMW, h.HandleGetLogs)

	// Backfill the sheet with existing licenses on startup.
	if sheets != nil {
		if existing, err := licenseStore.List(); err == nil {
			go sheets.SyncAll(existing)
		}
	}

	log.Fatal(app.Listen(cfg.Server.Address + ":" + cfg.Server.Port))
}
