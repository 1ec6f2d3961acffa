package hosting

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/wavecrate/wavecrate/src/features/config"
	"github.com/wavecrate/wavecrate/src/features/ingesting"
	"github.com/wavecrate/wavecrate/src/features/jobs"
	"github.com/wavecrate/wavecrate/src/features/library"
	"github.com/wavecrate/wavecrate/src/features/metrics"
)

// Server is the HTTP server for the application.
type Server struct {
	app  *fiber.App
	port uint32
}

// NewServer creates a new HTTP server and mounts every feature's routes.
func NewServer(cfg *config.Manager, ingestingService *ingesting.Service, folderWatcher *ingesting.FolderWatcher, libraryService *library.Service, jobService *jobs.Service, metricsService *metrics.Service) *Server {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			slog.Error("Internal Server Error", "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
		AppName:               "Wavecrate",
		DisableStartupMessage: true,
		EnablePrintRoutes:     cfg.Get().Server.PrintRoutes,
		// Uncompressed studio masters run large.
		BodyLimit: 2 * 1024 * 1024 * 1024,
	})

	app.Use(RequestLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})

	ingesting.RegisterRoutes(app, ingestingService, folderWatcher)
	library.RegisterRoutes(app, libraryService)
	config.RegisterRoutes(app, cfg)
	jobs.RegisterRoutes(app, jobService)
	metrics.RegisterRoutes(app, metricsService)

	return &Server{app: app, port: cfg.Get().Server.Port}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.app.Listen(":" + fmt.Sprint(s.port))
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
