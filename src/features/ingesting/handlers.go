package ingesting

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/wavecrate/wavecrate/src/music"
)

// Handler is the handler for the ingesting feature.
type Handler struct {
	service *Service
	watcher *FolderWatcher
}

// NewHandler creates a new handler for the ingesting feature.
func NewHandler(service *Service, watcher *FolderWatcher) *Handler {
	return &Handler{service: service, watcher: watcher}
}

// HandleIngestUpload receives one or more uploaded audio files and starts
// a batch job over them.
func (h *Handler) HandleIngestUpload(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "expected multipart form"})
	}
	files := form.File["files"]
	if len(files) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no files in form field 'files'"})
	}

	uploadDir := filepath.Join(h.service.config.Get().TempPath, "uploads", uuid.New().String())
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "cannot create upload directory"})
	}

	paths := make([]string, 0, len(files))
	for _, file := range files {
		dst := filepath.Join(uploadDir, filepath.Base(file.Filename))
		if err := c.SaveFile(file, dst); err != nil {
			os.RemoveAll(uploadDir)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": fmt.Sprintf("cannot save %s", file.Filename)})
		}
		paths = append(paths, dst)
	}

	jobID, err := h.service.IngestUpload(c.Context(), uploadDir, paths)
	if err != nil {
		os.RemoveAll(uploadDir)
		return errorResponse(c, err)
	}
	slog.Info("Batch ingest started from upload", "files", len(paths), "jobID", jobID)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"job_id": jobID, "files": len(paths)})
}

// HandleIngestDirectory starts a batch over a server-side directory.
func (h *Handler) HandleIngestDirectory(c *fiber.Ctx) error {
	var req struct {
		DirectoryPath string `json:"directoryPath"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cannot parse request body"})
	}
	if req.DirectoryPath == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "directoryPath is required"})
	}

	jobID, err := h.service.IngestDirectory(c.Context(), req.DirectoryPath)
	if err != nil {
		slog.Error("Error starting directory ingest", "path", req.DirectoryPath, "error", err)
		return errorResponse(c, err)
	}
	slog.Info("Directory ingest started", "path", req.DirectoryPath, "jobID", jobID)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"job_id": jobID})
}

// HandleReplaceAudio swaps a track's audio for an uploaded file. Runs
// synchronously; replacement is a single-item operation.
func (h *Handler) HandleReplaceAudio(c *fiber.Ctx) error {
	trackID := c.Params("id")
	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "expected form field 'file'"})
	}

	tmpDir := filepath.Join(h.service.config.Get().TempPath, "uploads", uuid.New().String())
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "cannot create upload directory"})
	}
	defer os.RemoveAll(tmpDir)

	dst := filepath.Join(tmpDir, filepath.Base(file.Filename))
	if err := c.SaveFile(file, dst); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "cannot save uploaded file"})
	}

	track, err := h.service.ReplaceAudio(c.Context(), trackID, dst)
	if err != nil {
		slog.Error("Audio replacement failed", "track", trackID, "error", err)
		return errorResponse(c, err)
	}
	return c.JSON(track)
}

// HandleWatchStatus reports whether the watch folder is active.
func (h *Handler) HandleWatchStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"enabled": h.watcher.Enabled(),
		"path":    h.service.config.Get().Watch.Path,
	})
}

// HandleWatchToggle enables or disables the watch folder at runtime.
func (h *Handler) HandleWatchToggle(c *fiber.Ctx) error {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cannot parse request body"})
	}
	if req.Enabled {
		if err := h.watcher.Enable(); err != nil {
			return errorResponse(c, err)
		}
	} else {
		h.watcher.Disable()
	}
	return c.JSON(fiber.Map{"enabled": h.watcher.Enabled()})
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
