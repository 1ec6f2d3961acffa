package library

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/wavecrate/wavecrate/src/infra/objectstore"
	"github.com/wavecrate/wavecrate/src/music"
)

// ObjectStore is the slice of the object store the library feature needs:
// removing blobs when records go away, storing replacement album art, and
// minting public URLs.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader, size int64) (string, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	PublicURL(key string) string
}

// ArtNormalizer converts uploaded images into the stored cover format.
type ArtNormalizer interface {
	Normalize(data []byte) ([]byte, error)
}

// Service is the domain service for the library feature: browsing,
// editing and removing catalogued albums and tracks.
type Service struct {
	catalog music.Catalog
	store   ObjectStore
	art     ArtNormalizer
}

// NewService creates a new library service.
func NewService(catalog music.Catalog, store ObjectStore, art ArtNormalizer) *Service {
	return &Service{
		catalog: catalog,
		store:   store,
		art:     art,
	}
}

// GetAlbums returns all albums.
func (s *Service) GetAlbums(ctx context.Context) ([]*music.Album, error) {
	return s.catalog.GetAlbums(ctx)
}

// GetAlbum returns one album with its tracks.
func (s *Service) GetAlbum(ctx context.Context, id string) (*music.Album, []*music.Track, error) {
	album, err := s.catalog.GetAlbum(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	tracks, err := s.catalog.TracksByAlbum(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return album, tracks, nil
}

// SearchAlbums finds albums matching the query.
func (s *Service) SearchAlbums(ctx context.Context, query string) ([]*music.Album, error) {
	return s.catalog.SearchAlbums(ctx, query)
}

// ListTracks returns one page of the sorted track listing.
func (s *Service) ListTracks(ctx context.Context, sortField string, dir music.SortDirection, limit, skip int) (*music.TrackPage, error) {
	return s.catalog.ListTracks(ctx, sortField, dir, limit, skip)
}

// SearchTracks finds tracks matching the query.
func (s *Service) SearchTracks(ctx context.Context, query string) ([]*music.Track, error) {
	return s.catalog.SearchTracks(ctx, query)
}

// GetTrack returns one track.
func (s *Service) GetTrack(ctx context.Context, id string) (*music.Track, error) {
	return s.catalog.GetTrack(ctx, id)
}

// GetTracksCount returns the catalog's track count.
func (s *Service) GetTracksCount(ctx context.Context) (int, error) {
	return s.catalog.GetTracksCount(ctx)
}

// UpdateTrack applies a partial metadata edit and returns the result.
func (s *Service) UpdateTrack(ctx context.Context, id string, update *music.TrackUpdate) (*music.Track, error) {
	if err := s.catalog.UpdateTrack(ctx, id, update); err != nil {
		return nil, err
	}
	return s.catalog.GetTrack(ctx, id)
}

// TrackURL returns a public URL for one of the track's stored tiers.
func (s *Service) TrackURL(ctx context.Context, id, tier string) (string, error) {
	track, err := s.catalog.GetTrack(ctx, id)
	if err != nil {
		return "", err
	}
	key, ok := track.Paths[tier]
	if !ok {
		return "", music.Errorf(music.KindNotFound, "library.TrackURL", "track %s has no %q tier", id, tier)
	}
	stored, err := s.store.Exists(ctx, key)
	if err != nil {
		return "", err
	}
	if !stored {
		return "", music.Errorf(music.KindConsistency, "library.TrackURL", "track %s tier %q is recorded but missing from storage", id, tier)
	}
	return s.store.PublicURL(key), nil
}

// Detach retry budget. The album must not keep referencing a deleted
// track, so the unlink gets the same insistence as the ingest-side append.
const (
	detachAttempts  = 5
	detachBaseDelay = 100 * time.Millisecond
	detachMaxDelay  = 2 * time.Second
)

// detachWithRetry unlinks a deleted track from its album, retrying
// transient store failures with backoff. NotFound means the link is
// already gone and counts as success.
func (s *Service) detachWithRetry(ctx context.Context, albumID, trackID string) error {
	var err error
	for attempt := 0; attempt < detachAttempts; attempt++ {
		err = s.catalog.DetachTrackFromAlbum(ctx, albumID, trackID)
		if err == nil || music.IsNotFound(err) {
			return nil
		}
		switch music.KindOf(err) {
		case music.KindValidation, music.KindConsistency:
			return err
		}
		delay := detachBaseDelay << attempt
		if delay > detachMaxDelay {
			delay = detachMaxDelay
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// DeleteTrack removes a track record and every object stored for it. The
// record goes first so that a browser can never see a track whose audio is
// already gone; leftover objects are reported but not fatal.
func (s *Service) DeleteTrack(ctx context.Context, id string) error {
	track, err := s.catalog.GetTrack(ctx, id)
	if err != nil {
		return err
	}
	if err := s.catalog.DeleteTrack(ctx, id); err != nil {
		return err
	}
	if err := s.detachWithRetry(ctx, track.AlbumID, id); err != nil {
		return err
	}
	for tier, key := range track.Paths {
		if err := s.store.Delete(ctx, key); err != nil {
			slog.Warn("Could not delete stored object for removed track", "track", id, "tier", tier, "key", key, "error", err)
		}
	}
	slog.Info("Track deleted", "track", id, "title", track.Title)
	return nil
}

// DeleteAlbum removes an album. Without cascade an album that still has
// tracks is rejected; with cascade its tracks and their objects go too.
func (s *Service) DeleteAlbum(ctx context.Context, id string, cascade bool) error {
	album, err := s.catalog.GetAlbum(ctx, id)
	if err != nil {
		return err
	}
	if cascade {
		tracks, err := s.catalog.TracksByAlbum(ctx, id)
		if err != nil {
			return err
		}
		for _, track := range tracks {
			if err := s.DeleteTrack(ctx, track.ID); err != nil && !music.IsNotFound(err) {
				return err
			}
		}
	}
	if err := s.catalog.DeleteAlbum(ctx, id); err != nil {
		return err
	}
	if album.ArtKey != "" {
		if err := s.store.Delete(ctx, album.ArtKey); err != nil {
			slog.Warn("Could not delete album art", "album", id, "key", album.ArtKey, "error", err)
		}
	}
	slog.Info("Album deleted", "album", id, "name", album.Name, "cascade", cascade)
	return nil
}

// SetAlbumArt replaces an album's cover with an uploaded image.
func (s *Service) SetAlbumArt(ctx context.Context, albumID string, data []byte) (string, error) {
	if _, err := s.catalog.GetAlbum(ctx, albumID); err != nil {
		return "", err
	}
	normalized, err := s.art.Normalize(data)
	if err != nil {
		return "", err
	}
	key := objectstore.AlbumArtKey(albumID)
	if _, err := s.store.Put(ctx, key, "image/jpeg", bytes.NewReader(normalized), int64(len(normalized))); err != nil {
		return "", err
	}
	if err := s.catalog.UpdateAlbumArt(ctx, albumID, key); err != nil {
		return "", err
	}
	return key, nil
}
