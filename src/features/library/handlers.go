package library

import (
	"io"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/wavecrate/wavecrate/src/music"
)

// Handler is the handler for the library feature.
type Handler struct {
	service *Service
}

// NewHandler creates a new handler for the library feature.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) GetAlbums(c *fiber.Ctx) error {
	if query := c.Query("q"); query != "" {
		albums, err := h.service.SearchAlbums(c.Context(), query)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(albums)
	}
	albums, err := h.service.GetAlbums(c.Context())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(albums)
}

func (h *Handler) GetAlbum(c *fiber.Ctx) error {
	album, tracks, err := h.service.GetAlbum(c.Context(), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"album": album, "tracks": tracks})
}

func (h *Handler) DeleteAlbum(c *fiber.Ctx) error {
	cascade := c.QueryBool("cascade")
	if err := h.service.DeleteAlbum(c.Context(), c.Params("id"), cascade); err != nil {
		return errorResponse(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) SetAlbumArt(c *fiber.Ctx) error {
	file, err := c.FormFile("art")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "expected form field 'art'"})
	}
	src, err := file.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cannot open uploaded file"})
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cannot read uploaded file"})
	}

	key, err := h.service.SetAlbumArt(c.Context(), c.Params("id"), data)
	if err != nil {
		slog.Error("Setting album art failed", "album", c.Params("id"), "error", err)
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"artKey": key})
}

func (h *Handler) GetTracks(c *fiber.Ctx) error {
	if query := c.Query("q"); query != "" {
		tracks, err := h.service.SearchTracks(c.Context(), query)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(tracks)
	}

	sortField := c.Query("sort", "title")
	dir := music.SortAsc
	if c.Query("dir") == "desc" {
		dir = music.SortDesc
	}
	limit, _ := strconv.Atoi(c.Query("limit", "100"))
	skip, _ := strconv.Atoi(c.Query("skip", "0"))

	page, err := h.service.ListTracks(c.Context(), sortField, dir, limit, skip)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(page)
}

func (h *Handler) GetTrack(c *fiber.Ctx) error {
	track, err := h.service.GetTrack(c.Context(), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(track)
}

func (h *Handler) GetTrackURL(c *fiber.Ctx) error {
	tier := c.Query("tier", music.TierOriginal)
	url, err := h.service.TrackURL(c.Context(), c.Params("id"), tier)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"tier": tier, "url": url})
}

func (h *Handler) UpdateTrack(c *fiber.Ctx) error {
	var update music.TrackUpdate
	if err := c.BodyParser(&update); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cannot parse request body"})
	}
	track, err := h.service.UpdateTrack(c.Context(), c.Params("id"), &update)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(track)
}

func (h *Handler) DeleteTrack(c *fiber.Ctx) error {
	if err := h.service.DeleteTrack(c.Context(), c.Params("id")); err != nil {
		return errorResponse(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// errorResponse maps a domain error kind to an HTTP status.
func errorResponse(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch music.KindOf(err) {
	case music.KindValidation:
		status = fiber.StatusBadRequest
	case music.KindNotFound:
		status = fiber.StatusNotFound
	case music.KindConsistency:
		status = fiber.StatusConflict
	case music.KindTransient:
		status = fiber.StatusBadGateway
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
