package ingesting

import (
	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes registers the routes for the ingesting feature.
func RegisterRoutes(app *fiber.App, service *Service, watcher *FolderWatcher) {
	handler := NewHandler(service, watcher)

	app.Post("/ingest", handler.HandleIngestUpload)
	app.Post("/ingest/directory", handler.HandleIngestDirectory)
	app.Put("/tracks/:id/audio", handler.HandleReplaceAudio)
	if watcher != nil {
		app.Get("/ingest/watch", handler.HandleWatchStatus)
		app.Post("/ingest/watch", handler.HandleWatchToggle)
	}
}
