package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/wavecrate/wavecrate/src/music"
)

// Service refreshes the catalog gauges before each scrape.
type Service struct {
	catalog music.Catalog
}

// NewService creates a new metrics service.
func NewService(catalog music.Catalog) *Service {
	return &Service{catalog: catalog}
}

// Refresh updates the catalog gauges. Failures leave the previous values
// in place; a scrape never fails because the database hiccuped.
func (s *Service) Refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if count, err := s.catalog.GetTracksCount(ctx); err != nil {
		slog.Warn("Failed to refresh track count gauge", "error", err)
	} else {
		CatalogTracks.Set(float64(count))
	}
	if albums, err := s.catalog.GetAlbums(ctx); err != nil {
		slog.Warn("Failed to refresh album count gauge", "error", err)
	} else {
		CatalogAlbums.Set(float64(len(albums)))
	}
}
