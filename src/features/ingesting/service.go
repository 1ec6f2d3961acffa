package ingesting

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/wavecrate/wavecrate/src/features/config"
	"github.com/wavecrate/wavecrate/src/features/jobs"
	"github.com/wavecrate/wavecrate/src/features/metrics"
	"github.com/wavecrate/wavecrate/src/infra/objectstore"
	"github.com/wavecrate/wavecrate/src/music"
)

// Service is the domain service for the ingesting feature. It drives one
// file through extract, transcode, upload and link, and owns the two
// concurrency gates shared by every batch: encoder slots and upload slots.
type Service struct {
	catalog    music.Catalog
	extractor  Extractor
	transcoder Transcoder
	store      BlobStore
	art        ArtProcessor
	config     *config.Manager
	jobService jobs.JobService
	resolver   *albumResolver

	transcodeSem chan struct{}
	uploadSem    chan struct{}
}

// NewService creates a new ingesting service.
func NewService(catalog music.Catalog, extractor Extractor, transcoder Transcoder, store BlobStore, art ArtProcessor, cfg *config.Manager, jobService jobs.JobService) *Service {
	ingest := cfg.Get().Ingest
	return &Service{
		catalog:      catalog,
		extractor:    extractor,
		transcoder:   transcoder,
		store:        store,
		art:          art,
		config:       cfg,
		jobService:   jobService,
		resolver:     newAlbumResolver(catalog, ingest.Retry),
		transcodeSem: make(chan struct{}, atLeastOne(ingest.MaxParallelTranscodes)),
		uploadSem:    make(chan struct{}, atLeastOne(ingest.MaxParallelUploads)),
	}
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// IngestBatch starts a job processing the given files. The files stay in
// place; they belong to the caller.
func (s *Service) IngestBatch(ctx context.Context, paths []string) (string, error) {
	return s.startBatch(paths, "")
}

// IngestUpload starts a batch over files the server saved itself under
// dir. The directory is removed when the job finishes.
func (s *Service) IngestUpload(ctx context.Context, dir string, paths []string) (string, error) {
	return s.startBatch(paths, dir)
}

func (s *Service) startBatch(paths []string, ownedDir string) (string, error) {
	if len(paths) == 0 {
		return "", music.Errorf(music.KindValidation, "ingesting.IngestBatch", "no files to ingest")
	}
	metadata := map[string]any{"paths": paths}
	if ownedDir != "" {
		metadata["owned_dir"] = ownedDir
	}
	jobID, err := s.jobService.StartJob("batch_ingest", "Batch Ingest", metadata)
	if err != nil {
		slog.Error("Service.startBatch: failed to start job", "error", err)
		return "", fmt.Errorf("failed to start batch ingest job: %w", err)
	}
	return jobID, nil
}

// IngestDirectory walks a directory recursively and starts a batch over
// every supported audio file found.
func (s *Service) IngestDirectory(ctx context.Context, dir string) (string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && s.supportedFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return "", music.E(music.KindValidation, "ingesting.IngestDirectory", err)
	}
	if len(paths) == 0 {
		return "", music.Errorf(music.KindValidation, "ingesting.IngestDirectory", "no supported audio files under %s", dir)
	}
	return s.IngestBatch(ctx, paths)
}

// supportedFile reports whether the file extension is one of the
// configured ingest formats.
func (s *Service) supportedFile(path string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, format := range s.config.Get().Ingest.Formats {
		if strings.ToLower(format) == ext {
			return true
		}
	}
	return false
}

// ingestFile runs the full pipeline for one file. It never returns an
// error: every outcome, including failure, is an ItemReport so a batch can
// keep going. Objects uploaded before a fatal failure are removed; the
// catalog never references a key that was rolled back.
func (s *Service) ingestFile(ctx context.Context, path string, logger *slog.Logger) ItemReport {
	if logger == nil {
		logger = slog.Default()
	}
	report := ItemReport{Path: path, Status: ItemFailed}
	cfg := s.config.Get()
	policy := cfg.Ingest.Retry

	fail := func(stage Stage, err error) ItemReport {
		report.FailedStage = stage
		report.Error = err.Error()
		metrics.StageFailures.WithLabelValues(string(stage)).Inc()
		logger.Error("Item failed", "path", path, "stage", stage, "error", err)
		return report
	}

	var meta *Metadata
	err := withRetry(ctx, policy, func() error {
		var err error
		meta, err = s.extractor.Extract(ctx, path)
		return err
	})
	if err != nil {
		return fail(StageExtract, err)
	}

	art := meta.Art
	if len(art) == 0 {
		art = s.folderArt(filepath.Dir(path))
	}

	album, err := s.resolver.Resolve(ctx, meta.Album)
	if err != nil {
		return fail(StageResolve, err)
	}
	report.AlbumID = album.ID

	trackID := music.NewTrackID()
	report.TrackID = trackID

	var uploaded []string
	paths := map[string]string{}

	originalKey := objectstore.TrackKey(meta.Artist, album.Name, trackID, meta.Title, music.TierOriginal, filepath.Ext(path))
	if err := s.uploadFile(ctx, policy, originalKey, contentTypeFor(meta.Format), path); err != nil {
		return fail(StageUpload, err)
	}
	uploaded = append(uploaded, originalKey)
	paths[music.TierOriginal] = originalKey

	s.ensureAlbumArt(ctx, album, art, logger)

	var missing []string
	for _, tierName := range sortedTierNames(cfg.Ingest.Tiers) {
		tier := cfg.Ingest.Tiers[tierName]

		renditionPath, err := s.transcodeTier(ctx, policy, path, tierName)
		if err != nil {
			metrics.TierFailures.WithLabelValues(tierName).Inc()
			if tier.Required {
				s.removeObjects(uploaded, logger)
				return fail(StageTranscode, err)
			}
			logger.Warn("Optional tier failed, continuing", "path", path, "tier", tierName, "error", err)
			missing = append(missing, tierName)
			continue
		}

		if err := s.art.Embed(renditionPath, art); err != nil {
			logger.Warn("Could not embed art in rendition", "tier", tierName, "error", err)
		}

		key := objectstore.TrackKey(meta.Artist, album.Name, trackID, meta.Title, tierName, tier.Ext)
		err = s.uploadFile(ctx, policy, key, contentTypeForExt(tier.Ext), renditionPath)
		os.Remove(renditionPath)
		if err != nil {
			metrics.TierFailures.WithLabelValues(tierName).Inc()
			if tier.Required {
				s.removeObjects(uploaded, logger)
				return fail(StageUpload, err)
			}
			logger.Warn("Optional tier upload failed, continuing", "path", path, "tier", tierName, "error", err)
			missing = append(missing, tierName)
			continue
		}
		uploaded = append(uploaded, key)
		paths[tierName] = key
	}

	now := time.Now()
	track := &music.Track{
		ID:           trackID,
		Title:        meta.Title,
		AlbumID:      album.ID,
		AlbumName:    album.Name,
		Filename:     filepath.Base(path),
		Duration:     meta.Duration,
		Artist:       meta.Artist,
		Genres:       genresOf(meta.Genre),
		Paths:        paths,
		Partial:      len(missing) > 0,
		Bitrate:      meta.Bitrate,
		SampleRate:   meta.SampleRate,
		Format:       meta.Format,
		AddedDate:    now,
		ModifiedDate: now,
	}

	if err := withRetry(ctx, policy, func() error {
		return s.catalog.CreateTrack(ctx, track)
	}); err != nil {
		s.removeObjects(uploaded, logger)
		return fail(StageLink, err)
	}

	// The track document exists now. If the append cannot be made to stick
	// the document is rolled back too, so nothing is left orphaned.
	if err := withLinkRetry(ctx, policy, func() error {
		return s.catalog.AppendTrackToAlbum(ctx, album.ID, trackID)
	}); err != nil {
		s.rollbackTrack(trackID, uploaded, logger)
		return fail(StageLink, err)
	}

	report.MissingTiers = track.MissingTiers(cfg.Ingest.TierNames())
	if len(report.MissingTiers) > 0 {
		report.Status = ItemPartial
		logger.Info("Item ingested with missing tiers", "path", path, "track", trackID, "missing", report.MissingTiers)
	} else {
		report.Status = ItemCompleted
		logger.Info("Item ingested", "path", path, "track", trackID, "album", album.Name)
	}
	logger.Debug("Catalogued track", "detail", track.Pretty())
	return report
}

// ReplaceAudio swaps a track's audio for a new source file. The track
// keeps its identity and editable metadata; only the stored objects and
// technical fields change.
func (s *Service) ReplaceAudio(ctx context.Context, trackID, path string) (*music.Track, error) {
	track, err := s.catalog.GetTrack(ctx, trackID)
	if err != nil {
		return nil, err
	}
	cfg := s.config.Get()
	policy := cfg.Ingest.Retry

	var meta *Metadata
	if err := withRetry(ctx, policy, func() error {
		var err error
		meta, err = s.extractor.Extract(ctx, path)
		return err
	}); err != nil {
		return nil, err
	}

	var uploaded []string
	newPaths := map[string]string{}

	// Keys are derived from the stored identity, not the new file's tags,
	// so renditions stay grouped under the same prefix.
	originalKey := objectstore.TrackKey(track.Artist, track.AlbumName, track.ID, track.Title, music.TierOriginal, filepath.Ext(path))
	if err := s.uploadFile(ctx, policy, originalKey, contentTypeFor(meta.Format), path); err != nil {
		return nil, err
	}
	uploaded = append(uploaded, originalKey)
	newPaths[music.TierOriginal] = originalKey

	var missing []string
	for _, tierName := range sortedTierNames(cfg.Ingest.Tiers) {
		tier := cfg.Ingest.Tiers[tierName]

		renditionPath, err := s.transcodeTier(ctx, policy, path, tierName)
		if err != nil {
			metrics.TierFailures.WithLabelValues(tierName).Inc()
			if tier.Required {
				s.removeObjects(uploaded, nil)
				return nil, err
			}
			missing = append(missing, tierName)
			continue
		}
		if err := s.art.Embed(renditionPath, meta.Art); err != nil {
			slog.Warn("Could not embed art in rendition", "tier", tierName, "error", err)
		}

		key := objectstore.TrackKey(track.Artist, track.AlbumName, track.ID, track.Title, tierName, tier.Ext)
		err = s.uploadFile(ctx, policy, key, contentTypeForExt(tier.Ext), renditionPath)
		os.Remove(renditionPath)
		if err != nil {
			metrics.TierFailures.WithLabelValues(tierName).Inc()
			if tier.Required {
				s.removeObjects(uploaded, nil)
				return nil, err
			}
			missing = append(missing, tierName)
			continue
		}
		uploaded = append(uploaded, key)
		newPaths[tierName] = key
	}

	if err := withRetry(ctx, policy, func() error {
		return s.catalog.UpdateTrackPaths(ctx, track.ID, newPaths, meta.Duration, meta.Bitrate, meta.SampleRate, meta.Format, len(missing) > 0)
	}); err != nil {
		s.removeObjects(uploaded, nil)
		return nil, err
	}

	// Old objects whose keys were not overwritten are stale now.
	var stale []string
	for _, oldKey := range track.Paths {
		replaced := false
		for _, newKey := range newPaths {
			if oldKey == newKey {
				replaced = true
				break
			}
		}
		if !replaced {
			stale = append(stale, oldKey)
		}
	}
	s.removeObjects(stale, nil)

	return s.catalog.GetTrack(ctx, trackID)
}

// transcodeTier runs the encoder under the transcode gate.
func (s *Service) transcodeTier(ctx context.Context, policy config.Retry, path, tierName string) (string, error) {
	select {
	case s.transcodeSem <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-s.transcodeSem }()

	start := time.Now()
	var out string
	err := withRetry(ctx, policy, func() error {
		var err error
		out, err = s.transcoder.Transcode(ctx, path, tierName)
		return err
	})
	metrics.TranscodeSeconds.WithLabelValues(tierName).Observe(time.Since(start).Seconds())
	return out, err
}

// uploadFile stores a file under the upload gate and retry policy.
func (s *Service) uploadFile(ctx context.Context, policy config.Retry, key, contentType, path string) error {
	select {
	case s.uploadSem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.uploadSem }()

	err := withRetry(ctx, policy, func() error {
		_, err := s.store.PutFile(ctx, key, contentType, path)
		return err
	})
	if err == nil {
		if info, statErr := os.Stat(path); statErr == nil {
			metrics.UploadBytes.Add(float64(info.Size()))
		}
	}
	return err
}

// folderArt looks for a cover image sitting next to the source file, used
// when the file carries no embedded picture.
func (s *Service) folderArt(dir string) []byte {
	for _, name := range []string{"cover.jpg", "cover.png", "folder.jpg", "front.jpg"} {
		if data, err := s.art.ReadFile(filepath.Join(dir, name)); err == nil {
			return data
		}
	}
	return nil
}

// ensureAlbumArt stores the first embedded cover seen for an album. Art is
// cosmetic; any failure here is logged and swallowed.
func (s *Service) ensureAlbumArt(ctx context.Context, album *music.Album, art []byte, logger *slog.Logger) {
	if len(art) == 0 || album.ArtKey != "" {
		return
	}
	normalized, err := s.art.Normalize(art)
	if err != nil {
		logger.Warn("Could not normalize album art", "album", album.Name, "error", err)
		return
	}
	key := objectstore.AlbumArtKey(album.ID)
	if _, err := s.store.Put(ctx, key, "image/jpeg", bytes.NewReader(normalized), int64(len(normalized))); err != nil {
		logger.Warn("Could not upload album art", "album", album.Name, "error", err)
		return
	}
	if err := s.catalog.UpdateAlbumArt(ctx, album.ID, key); err != nil {
		logger.Warn("Could not record album art key", "album", album.Name, "error", err)
		return
	}
	album.ArtKey = key
}

// removeObjects deletes uploaded objects after a failed item. Deletion runs
// detached from the item's context so a cancelled batch still cleans up.
func (s *Service) removeObjects(keys []string, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, key := range keys {
		if err := s.store.Delete(ctx, key); err != nil {
			logger.Warn("Could not remove object during rollback", "key", key, "error", err)
		}
	}
}

// rollbackTrack removes a track document and its objects after the album
// link could not be established.
func (s *Service) rollbackTrack(trackID string, keys []string, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.catalog.DeleteTrack(ctx, trackID); err != nil && !music.IsNotFound(err) {
		logger.Error("Could not roll back track document", "track", trackID, "error", err)
	}
	s.removeObjects(keys, logger)
}

// sortedTierNames returns the configured tier names in a stable order.
func sortedTierNames(tiers map[string]config.Tier) []string {
	names := make([]string, 0, len(tiers))
	for name := range tiers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func genresOf(genre string) []string {
	genre = strings.TrimSpace(genre)
	if genre == "" {
		return nil
	}
	return []string{genre}
}

func contentTypeFor(format string) string {
	return contentTypeForExt(format)
}

func contentTypeForExt(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "mp3":
		return "audio/mpeg"
	case "flac":
		return "audio/flac"
	case "wav":
		return "audio/wav"
	case "m4a", "aac", "mp4":
		return "audio/mp4"
	case "ogg", "opus", "vorbis":
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}
