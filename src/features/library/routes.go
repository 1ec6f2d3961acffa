package library

import "github.com/gofiber/fiber/v2"

// RegisterRoutes registers the routes for the library feature.
func RegisterRoutes(app *fiber.App, service *Service) {
	handler := NewHandler(service)

	albums := app.Group("/albums")
	albums.Get("/", handler.GetAlbums)
	albums.Get("/:id", handler.GetAlbum)
	albums.Delete("/:id", handler.DeleteAlbum)
	albums.Put("/:id/art", handler.SetAlbumArt)

	tracks := app.Group("/tracks")
	tracks.Get("/", handler.GetTracks)
	tracks.Get("/:id", handler.GetTrack)
	tracks.Get("/:id/url", handler.GetTrackURL)
	tracks.Patch("/:id", handler.UpdateTrack)
	tracks.Delete("/:id", handler.DeleteTrack)
}
