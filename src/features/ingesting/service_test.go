package ingesting

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wavecrate/wavecrate/src/features/config"
	"github.com/wavecrate/wavecrate/src/features/jobs"
	"github.com/wavecrate/wavecrate/src/music"
)

// MockCatalog is an in-memory implementation of music.Catalog.
type MockCatalog struct {
	music.Catalog
	mu     sync.Mutex
	albums map[string]*music.Album
	tracks map[string]*music.Track

	appendFailures int // consume this many append calls with transient errors
}

func NewMockCatalog() *MockCatalog {
	return &MockCatalog{
		albums: make(map[string]*music.Album),
		tracks: make(map[string]*music.Track),
	}
}

func (m *MockCatalog) FindOrCreateAlbum(ctx context.Context, name string) (*music.Album, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	normalized := music.NormalizeAlbumName(name)
	for _, album := range m.albums {
		if album.NormalizedName == normalized {
			return album, nil
		}
	}
	album := music.NewAlbum(name)
	m.albums[album.ID] = album
	return album, nil
}

func (m *MockCatalog) CreateTrack(ctx context.Context, track *music.Track) error {
	if err := track.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracks[track.ID] = track
	return nil
}

func (m *MockCatalog) GetTrack(ctx context.Context, id string) (*music.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	track, ok := m.tracks[id]
	if !ok {
		return nil, music.Errorf(music.KindNotFound, "mock.GetTrack", "track not found: %s", id)
	}
	copied := *track
	return &copied, nil
}

func (m *MockCatalog) AppendTrackToAlbum(ctx context.Context, albumID, trackID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendFailures > 0 {
		m.appendFailures--
		return music.Errorf(music.KindTransient, "mock.AppendTrackToAlbum", "connection reset")
	}
	album, ok := m.albums[albumID]
	if !ok {
		return music.Errorf(music.KindNotFound, "mock.AppendTrackToAlbum", "album not found: %s", albumID)
	}
	if !album.HasTrack(trackID) {
		album.TrackIDs = append(album.TrackIDs, trackID)
	}
	return nil
}

func (m *MockCatalog) DeleteTrack(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tracks[id]; !ok {
		return music.Errorf(music.KindNotFound, "mock.DeleteTrack", "track not found: %s", id)
	}
	delete(m.tracks, id)
	return nil
}

func (m *MockCatalog) UpdateAlbumArt(ctx context.Context, albumID, artKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if album, ok := m.albums[albumID]; ok {
		album.ArtKey = artKey
	}
	return nil
}

func (m *MockCatalog) UpdateTrackPaths(ctx context.Context, id string, paths map[string]string, duration float64, bitrate, sampleRate int, format string, partial bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	track, ok := m.tracks[id]
	if !ok {
		return music.Errorf(music.KindNotFound, "mock.UpdateTrackPaths", "track not found: %s", id)
	}
	track.Paths = paths
	track.Duration = duration
	track.Bitrate = bitrate
	track.SampleRate = sampleRate
	track.Format = format
	track.Partial = partial
	return nil
}

// MockExtractor returns canned metadata keyed by file base name.
type MockExtractor struct {
	metadata  map[string]*Metadata
	failures  map[string]error
	onExtract func(filePath string)
}

func (m *MockExtractor) Extract(ctx context.Context, filePath string) (*Metadata, error) {
	if m.onExtract != nil {
		m.onExtract(filePath)
	}
	base := filepath.Base(filePath)
	if err, ok := m.failures[base]; ok {
		return nil, err
	}
	if meta, ok := m.metadata[base]; ok {
		copied := *meta
		return &copied, nil
	}
	return &Metadata{Title: base, Artist: "Unknown Artist", Album: "", Duration: 100, Format: "flac"}, nil
}

// MockTranscoder writes a tiny rendition file next to the input.
type MockTranscoder struct {
	mu       sync.Mutex
	failTier string
	calls    map[string]int
}

func (m *MockTranscoder) Transcode(ctx context.Context, inputPath, tier string) (string, error) {
	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[tier]++
	m.mu.Unlock()
	if tier == m.failTier {
		return "", music.Errorf(music.KindProcess, "mock.Transcode", "encoder exited with status 1")
	}
	out := inputPath + "." + tier
	if err := os.WriteFile(out, []byte("rendition"), 0644); err != nil {
		return "", err
	}
	return out, nil
}

// MockStore records stored and deleted keys.
type MockStore struct {
	mu      sync.Mutex
	objects map[string]bool
	deleted []string
}

func NewMockStore() *MockStore {
	return &MockStore{objects: make(map[string]bool)}
}

func (m *MockStore) Put(ctx context.Context, key, contentType string, r io.Reader, size int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = true
	return key, nil
}

func (m *MockStore) PutFile(ctx context.Context, key, contentType, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", music.E(music.KindNotFound, "mock.PutFile", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = true
	return key, nil
}

func (m *MockStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *MockStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.objects[key]
}

func (m *MockStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// MockArt is an art processor that serves folder images by base name.
type MockArt struct {
	files map[string][]byte
}

func (m MockArt) Normalize(data []byte) ([]byte, error) { return data, nil }
func (m MockArt) Embed(path string, art []byte) error   { return nil }

func (m MockArt) ReadFile(path string) ([]byte, error) {
	if data, ok := m.files[filepath.Base(path)]; ok {
		return data, nil
	}
	return nil, music.Errorf(music.KindNotFound, "mock.ReadFile", "no image at %s", path)
}

func testConfig(t *testing.T) *config.Manager {
	t.Helper()
	return config.NewManager(&config.Config{
		TempPath: t.TempDir(),
		Ingest: config.Ingest{
			Formats: []string{"flac", "mp3", "wav"},
			Tiers: map[string]config.Tier{
				"medium": {Codec: "aac", Bitrate: "128k", SampleRate: 44100, Ext: "m4a"},
				"low":    {Codec: "aac", Bitrate: "64k", SampleRate: 22050, Ext: "m4a"},
			},
			MaxParallelFiles:      2,
			MaxParallelTranscodes: 2,
			MaxParallelUploads:    2,
			Retry: config.Retry{
				TransientAttempts: 3,
				ProcessAttempts:   2,
				LinkAttempts:      5,
				BaseDelay:         config.Duration(time.Millisecond),
				MaxDelay:          config.Duration(5 * time.Millisecond),
			},
		},
	})
}

func writeSource(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("audio"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestService(catalog *MockCatalog, extractor *MockExtractor, transcoder *MockTranscoder, store *MockStore, t *testing.T) *Service {
	return NewService(catalog, extractor, transcoder, store, MockArt{}, testConfig(t), nil)
}

func TestIngestFile_Completed(t *testing.T) {
	catalog := NewMockCatalog()
	store := NewMockStore()
	extractor := &MockExtractor{metadata: map[string]*Metadata{
		"song.flac": {Title: "My Song", Artist: "Some Artist", Album: "Demo", Duration: 180, Bitrate: 900, SampleRate: 44100, Format: "flac"},
	}}
	service := newTestService(catalog, extractor, &MockTranscoder{}, store, t)

	report := service.ingestFile(context.Background(), writeSource(t, "song.flac"), slog.Default())

	if report.Status != ItemCompleted {
		t.Fatalf("expected completed, got %s (%s)", report.Status, report.Error)
	}
	track, err := catalog.GetTrack(context.Background(), report.TrackID)
	if err != nil {
		t.Fatalf("expected track in catalog: %v", err)
	}
	if track.Partial {
		t.Error("expected complete track, got partial")
	}
	for _, tier := range []string{music.TierOriginal, "medium", "low"} {
		key, ok := track.Paths[tier]
		if !ok {
			t.Fatalf("missing path for tier %s", tier)
		}
		if !store.has(key) {
			t.Errorf("object %s not in store", key)
		}
	}
	album := catalog.albums[report.AlbumID]
	if !album.HasTrack(report.TrackID) {
		t.Error("track not appended to album")
	}
}

func TestIngestFile_SameAlbumResolvesOnce(t *testing.T) {
	catalog := NewMockCatalog()
	extractor := &MockExtractor{metadata: map[string]*Metadata{
		"a.flac": {Title: "A", Artist: "X", Album: "Night Drive", Duration: 100, Format: "flac"},
		"b.flac": {Title: "B", Artist: "X", Album: "  night  drive ", Duration: 100, Format: "flac"},
	}}
	service := newTestService(catalog, extractor, &MockTranscoder{}, NewMockStore(), t)

	r1 := service.ingestFile(context.Background(), writeSource(t, "a.flac"), slog.Default())
	r2 := service.ingestFile(context.Background(), writeSource(t, "b.flac"), slog.Default())

	if r1.Status != ItemCompleted || r2.Status != ItemCompleted {
		t.Fatalf("expected both completed, got %s / %s", r1.Status, r2.Status)
	}
	if r1.AlbumID != r2.AlbumID {
		t.Errorf("expected one album for both tracks, got %s and %s", r1.AlbumID, r2.AlbumID)
	}
	if len(catalog.albums) != 1 {
		t.Errorf("expected 1 album, got %d", len(catalog.albums))
	}
	if got := len(catalog.albums[r1.AlbumID].TrackIDs); got != 2 {
		t.Errorf("expected 2 tracks in album, got %d", got)
	}
}

func TestIngestFile_ExtractFailureLeavesNothing(t *testing.T) {
	catalog := NewMockCatalog()
	store := NewMockStore()
	extractor := &MockExtractor{failures: map[string]error{
		"bad.mp3": music.E(music.KindValidation, "extract", ErrCorruptFile),
	}}
	service := newTestService(catalog, extractor, &MockTranscoder{}, store, t)

	report := service.ingestFile(context.Background(), writeSource(t, "bad.mp3"), slog.Default())

	if report.Status != ItemFailed {
		t.Fatalf("expected failed, got %s", report.Status)
	}
	if report.FailedStage != StageExtract {
		t.Errorf("expected extract stage, got %s", report.FailedStage)
	}
	if store.count() != 0 {
		t.Errorf("expected no objects in store, got %d", store.count())
	}
	if len(catalog.tracks) != 0 {
		t.Errorf("expected no tracks, got %d", len(catalog.tracks))
	}
}

func TestIngestFile_OptionalTierFailureIsPartial(t *testing.T) {
	catalog := NewMockCatalog()
	store := NewMockStore()
	extractor := &MockExtractor{metadata: map[string]*Metadata{
		"song.flac": {Title: "S", Artist: "X", Album: "Demo", Duration: 100, Format: "flac"},
	}}
	transcoder := &MockTranscoder{failTier: "low"}
	service := newTestService(catalog, extractor, transcoder, store, t)

	report := service.ingestFile(context.Background(), writeSource(t, "song.flac"), slog.Default())

	if report.Status != ItemPartial {
		t.Fatalf("expected partial, got %s (%s)", report.Status, report.Error)
	}
	if len(report.MissingTiers) != 1 || report.MissingTiers[0] != "low" {
		t.Errorf("expected missing tiers [low], got %v", report.MissingTiers)
	}
	track, err := catalog.GetTrack(context.Background(), report.TrackID)
	if err != nil {
		t.Fatal(err)
	}
	if !track.Partial {
		t.Error("expected track marked partial")
	}
	if _, ok := track.Paths["low"]; ok {
		t.Error("partial track must not list the failed tier")
	}
	if _, ok := track.Paths[music.TierOriginal]; !ok {
		t.Error("partial track must keep the original path")
	}
	// Process errors get the smaller retry budget.
	if got := transcoder.calls["low"]; got != 2 {
		t.Errorf("expected 2 encoder attempts for low, got %d", got)
	}
}

func TestIngestFile_RequiredTierFailureRollsBack(t *testing.T) {
	catalog := NewMockCatalog()
	store := NewMockStore()
	extractor := &MockExtractor{metadata: map[string]*Metadata{
		"song.flac": {Title: "S", Artist: "X", Album: "Demo", Duration: 100, Format: "flac"},
	}}
	service := NewService(catalog, extractor, &MockTranscoder{failTier: "medium"}, store, MockArt{}, config.NewManager(&config.Config{
		TempPath: t.TempDir(),
		Ingest: config.Ingest{
			Formats: []string{"flac"},
			Tiers: map[string]config.Tier{
				"medium": {Codec: "aac", Bitrate: "128k", SampleRate: 44100, Ext: "m4a", Required: true},
			},
			Retry: config.Retry{
				TransientAttempts: 1,
				ProcessAttempts:   1,
				LinkAttempts:      1,
				BaseDelay:         config.Duration(time.Millisecond),
				MaxDelay:          config.Duration(time.Millisecond),
			},
		},
	}), nil)

	report := service.ingestFile(context.Background(), writeSource(t, "song.flac"), slog.Default())

	if report.Status != ItemFailed {
		t.Fatalf("expected failed, got %s", report.Status)
	}
	if report.FailedStage != StageTranscode {
		t.Errorf("expected transcode stage, got %s", report.FailedStage)
	}
	if store.count() != 0 {
		t.Errorf("expected uploaded original to be rolled back, %d objects remain", store.count())
	}
	if len(catalog.tracks) != 0 {
		t.Errorf("expected no track document, got %d", len(catalog.tracks))
	}
}

func TestIngestFile_AppendRetriesUntilLinked(t *testing.T) {
	catalog := NewMockCatalog()
	catalog.appendFailures = 3
	extractor := &MockExtractor{metadata: map[string]*Metadata{
		"song.flac": {Title: "S", Artist: "X", Album: "Demo", Duration: 100, Format: "flac"},
	}}
	service := newTestService(catalog, extractor, &MockTranscoder{}, NewMockStore(), t)

	report := service.ingestFile(context.Background(), writeSource(t, "song.flac"), slog.Default())

	if report.Status != ItemCompleted {
		t.Fatalf("expected completed after append retries, got %s (%s)", report.Status, report.Error)
	}
	album := catalog.albums[report.AlbumID]
	if !album.HasTrack(report.TrackID) {
		t.Error("track not linked after retries")
	}
}

func TestIngestFile_AppendExhaustionRollsBackTrack(t *testing.T) {
	catalog := NewMockCatalog()
	catalog.appendFailures = 100
	store := NewMockStore()
	extractor := &MockExtractor{metadata: map[string]*Metadata{
		"song.flac": {Title: "S", Artist: "X", Album: "Demo", Duration: 100, Format: "flac"},
	}}
	service := newTestService(catalog, extractor, &MockTranscoder{}, store, t)

	report := service.ingestFile(context.Background(), writeSource(t, "song.flac"), slog.Default())

	if report.Status != ItemFailed {
		t.Fatalf("expected failed, got %s", report.Status)
	}
	if report.FailedStage != StageLink {
		t.Errorf("expected link stage, got %s", report.FailedStage)
	}
	if len(catalog.tracks) != 0 {
		t.Error("expected orphaned track document to be rolled back")
	}
	if store.count() != 0 {
		t.Errorf("expected objects rolled back, %d remain", store.count())
	}
}

func TestReplaceAudio_PreservesIdentityAndMetadata(t *testing.T) {
	catalog := NewMockCatalog()
	store := NewMockStore()
	extractor := &MockExtractor{metadata: map[string]*Metadata{
		"first.flac": {Title: "Tagged Title", Artist: "Tagged Artist", Album: "Demo", Duration: 100, Format: "flac"},
		"second.wav": {Title: "Other Title", Artist: "Other Artist", Album: "Other", Duration: 90, Format: "wav"},
	}}
	service := newTestService(catalog, extractor, &MockTranscoder{}, store, t)

	first := service.ingestFile(context.Background(), writeSource(t, "first.flac"), slog.Default())
	if first.Status != ItemCompleted {
		t.Fatalf("setup ingest failed: %s", first.Error)
	}
	before, _ := catalog.GetTrack(context.Background(), first.TrackID)

	writers := []music.Split{{Name: "W", Percentage: 100}}
	catalog.mu.Lock()
	catalog.tracks[first.TrackID].Writers = writers
	catalog.mu.Unlock()

	after, err := service.ReplaceAudio(context.Background(), first.TrackID, writeSource(t, "second.wav"))
	if err != nil {
		t.Fatalf("replace failed: %v", err)
	}

	if after.ID != before.ID {
		t.Errorf("replace must preserve track ID, got %s", after.ID)
	}
	if after.Title != before.Title {
		t.Errorf("replace must preserve title, got %q", after.Title)
	}
	if len(after.Writers) != 1 {
		t.Error("replace must preserve splits")
	}
	if after.Duration != 90 {
		t.Errorf("expected new duration 90, got %v", after.Duration)
	}
	if after.Format != "wav" {
		t.Errorf("expected new format wav, got %s", after.Format)
	}
	if !strings.HasSuffix(after.Paths[music.TierOriginal], ".wav") {
		t.Errorf("expected new original key, got %s", after.Paths[music.TierOriginal])
	}
	// The old .flac original has no counterpart in the new set.
	found := false
	for _, key := range store.deleted {
		if key == before.Paths[music.TierOriginal] {
			found = true
		}
	}
	if !found {
		t.Errorf("expected stale original %s to be deleted", before.Paths[music.TierOriginal])
	}
}

func TestIngestBatch_RejectsEmpty(t *testing.T) {
	service := newTestService(NewMockCatalog(), &MockExtractor{}, &MockTranscoder{}, NewMockStore(), t)
	_, err := service.IngestBatch(context.Background(), nil)
	if !music.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestWithRetry_ValidationNotRetried(t *testing.T) {
	policy := config.Retry{TransientAttempts: 5, ProcessAttempts: 3, BaseDelay: config.Duration(time.Millisecond), MaxDelay: config.Duration(time.Millisecond)}
	calls := 0
	err := withRetry(context.Background(), policy, func() error {
		calls++
		return music.Errorf(music.KindValidation, "op", "bad input")
	})
	if !music.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("validation errors must not be retried, got %d calls", calls)
	}
}

func TestWithRetry_TransientBudget(t *testing.T) {
	policy := config.Retry{TransientAttempts: 3, BaseDelay: config.Duration(time.Millisecond), MaxDelay: config.Duration(time.Millisecond)}
	calls := 0
	err := withRetry(context.Background(), policy, func() error {
		calls++
		return music.Errorf(music.KindTransient, "op", "timeout")
	})
	if err == nil {
		t.Fatal("expected error after exhausted budget")
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestWithRetry_UnclassifiedErrorTreatedTransient(t *testing.T) {
	policy := config.Retry{TransientAttempts: 2, BaseDelay: config.Duration(time.Millisecond), MaxDelay: config.Duration(time.Millisecond)}
	calls := 0
	withRetry(context.Background(), policy, func() error {
		calls++
		return errors.New("plain failure")
	})
	if calls != 2 {
		t.Errorf("unclassified errors get the transient budget, got %d calls", calls)
	}
}

func TestWithRetry_SucceedsMidway(t *testing.T) {
	policy := config.Retry{TransientAttempts: 5, BaseDelay: config.Duration(time.Millisecond), MaxDelay: config.Duration(time.Millisecond)}
	calls := 0
	err := withRetry(context.Background(), policy, func() error {
		calls++
		if calls < 3 {
			return music.Errorf(music.KindTransient, "op", "timeout")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestIngestFile_FolderArtFallback(t *testing.T) {
	catalog := NewMockCatalog()
	store := NewMockStore()
	extractor := &MockExtractor{metadata: map[string]*Metadata{
		"song.flac": {Title: "My Song", Artist: "Some Artist", Album: "Demo", Duration: 180, Format: "flac"},
	}}
	art := MockArt{files: map[string][]byte{"cover.jpg": []byte("jpegdata")}}
	service := NewService(catalog, extractor, &MockTranscoder{}, store, art, testConfig(t), nil)

	report := service.ingestFile(context.Background(), writeSource(t, "song.flac"), slog.Default())
	if report.Status != ItemCompleted {
		t.Fatalf("expected completed, got %s (%s)", report.Status, report.Error)
	}
	album := catalog.albums[report.AlbumID]
	if album.ArtKey == "" {
		t.Fatal("expected folder cover to be stored as album art")
	}
	if !store.has(album.ArtKey) {
		t.Errorf("album art key %s not in store", album.ArtKey)
	}
}

func TestBatchIngest_CancelStopsScheduling(t *testing.T) {
	catalog := NewMockCatalog()
	store := NewMockStore()
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a.flac", "b.flac", "c.flac", "d.flac"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("audio"), 0644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, path)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	extractor := &MockExtractor{onExtract: func(string) { cancel() }}
	cfg := testConfig(t)
	cfg.Get().Ingest.MaxParallelFiles = 1
	service := NewService(catalog, extractor, &MockTranscoder{}, store, MockArt{}, cfg, nil)
	task := NewBatchIngestTask(service)

	job := &jobs.Job{ID: "batch-1", Metadata: map[string]any{"paths": paths}, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	result, err := task.Execute(ctx, job, func(int, string) {})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	stats, ok := result["stats"].(BatchStats)
	if !ok {
		t.Fatalf("expected stats in result, got %v", result)
	}
	processed := stats.Completed + stats.Partial + stats.Failed
	if processed >= len(paths) {
		t.Errorf("cancel did not stop scheduling: %d of %d processed", processed, len(paths))
	}

	// Sources belong to the caller and in-flight items clean their own
	// renditions, so the directory holds exactly the original files.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != len(paths) {
		t.Errorf("source directory changed during cancelled batch: %v", entries)
	}
}

func TestBatchIngest_CleanupRemovesOwnedUploadDir(t *testing.T) {
	service := newTestService(NewMockCatalog(), &MockExtractor{}, &MockTranscoder{}, NewMockStore(), t)
	task := NewBatchIngestTask(service)

	owned := filepath.Join(t.TempDir(), "upload-batch")
	if err := os.MkdirAll(owned, 0755); err != nil {
		t.Fatal(err)
	}
	saved := filepath.Join(owned, "song.flac")
	if err := os.WriteFile(saved, []byte("audio"), 0644); err != nil {
		t.Fatal(err)
	}
	job := &jobs.Job{Metadata: map[string]any{"paths": []string{saved}, "owned_dir": owned}}
	if err := task.Cleanup(job); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if _, err := os.Stat(owned); !os.IsNotExist(err) {
		t.Error("owned upload directory not removed")
	}

	// A batch without owned_dir leaves user files in place.
	userFile := writeSource(t, "keep.flac")
	job = &jobs.Job{Metadata: map[string]any{"paths": []string{userFile}}}
	if err := task.Cleanup(job); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if _, err := os.Stat(userFile); err != nil {
		t.Error("cleanup touched a user-owned file")
	}
}
