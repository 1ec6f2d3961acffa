package config

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

// Handler is the handler for the config feature.
type Handler struct {
	manager *Manager
}

// NewHandler creates a new handler for the config feature.
func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

// GetConfig returns the redacted configuration as JSON.
func (h *Handler) GetConfig(c *fiber.Ctx) error {
	c.Set("Content-Type", "application/json")
	return c.SendString(h.manager.GetJSON())
}

// GetConfigYAML returns the redacted configuration as YAML.
func (h *Handler) GetConfigYAML(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/yaml")
	return c.SendString(h.manager.GetYAML())
}

// UpdateIngest replaces the ingest section of the running configuration.
// Tier presets and concurrency caps take effect for the next batch.
func (h *Handler) UpdateIngest(c *fiber.Ctx) error {
	var ingest Ingest
	if err := c.BodyParser(&ingest); err != nil {
		slog.Error("UpdateIngest: bad request body", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid ingest config"})
	}
	for name, tier := range ingest.Tiers {
		if tier.Codec == "" || tier.Bitrate == "" || tier.SampleRate <= 0 || tier.Ext == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "tier " + name + " is missing codec, bitrate, sample_rate or ext",
			})
		}
	}

	updated := *h.manager.Get()
	updated.Ingest = ingest
	applyDefaults(&updated)
	h.manager.Update(&updated)
	slog.Info("Ingest configuration updated", "tiers", len(ingest.Tiers))
	return c.JSON(fiber.Map{"status": "updated"})
}
