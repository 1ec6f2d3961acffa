package library

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/wavecrate/wavecrate/src/music"
)

// MockCatalog is an in-memory implementation of music.Catalog.
type MockCatalog struct {
	music.Catalog
	albums map[string]*music.Album
	tracks map[string]*music.Track

	detachFailures int // consume this many detach calls with transient errors
}

func NewMockCatalog() *MockCatalog {
	return &MockCatalog{
		albums: make(map[string]*music.Album),
		tracks: make(map[string]*music.Track),
	}
}

func (m *MockCatalog) GetAlbum(ctx context.Context, id string) (*music.Album, error) {
	album, ok := m.albums[id]
	if !ok {
		return nil, music.Errorf(music.KindNotFound, "mock.GetAlbum", "album not found: %s", id)
	}
	return album, nil
}

func (m *MockCatalog) GetTrack(ctx context.Context, id string) (*music.Track, error) {
	track, ok := m.tracks[id]
	if !ok {
		return nil, music.Errorf(music.KindNotFound, "mock.GetTrack", "track not found: %s", id)
	}
	return track, nil
}

func (m *MockCatalog) DeleteTrack(ctx context.Context, id string) error {
	if _, ok := m.tracks[id]; !ok {
		return music.Errorf(music.KindNotFound, "mock.DeleteTrack", "track not found: %s", id)
	}
	delete(m.tracks, id)
	return nil
}

func (m *MockCatalog) DetachTrackFromAlbum(ctx context.Context, albumID, trackID string) error {
	if m.detachFailures > 0 {
		m.detachFailures--
		return music.Errorf(music.KindTransient, "mock.DetachTrackFromAlbum", "connection reset")
	}
	album, ok := m.albums[albumID]
	if !ok {
		return music.Errorf(music.KindNotFound, "mock.DetachTrackFromAlbum", "album not found: %s", albumID)
	}
	kept := album.TrackIDs[:0]
	for _, tid := range album.TrackIDs {
		if tid != trackID {
			kept = append(kept, tid)
		}
	}
	album.TrackIDs = kept
	return nil
}

func (m *MockCatalog) DeleteAlbum(ctx context.Context, id string) error {
	album, ok := m.albums[id]
	if !ok {
		return music.Errorf(music.KindNotFound, "mock.DeleteAlbum", "album not found: %s", id)
	}
	if len(album.TrackIDs) > 0 {
		return music.Errorf(music.KindConsistency, "mock.DeleteAlbum", "album %q still has %d tracks", album.Name, len(album.TrackIDs))
	}
	delete(m.albums, id)
	return nil
}

func (m *MockCatalog) TracksByAlbum(ctx context.Context, albumID string) ([]*music.Track, error) {
	var tracks []*music.Track
	for _, track := range m.tracks {
		if track.AlbumID == albumID {
			tracks = append(tracks, track)
		}
	}
	return tracks, nil
}

func (m *MockCatalog) UpdateTrack(ctx context.Context, id string, update *music.TrackUpdate) error {
	if err := update.Validate(); err != nil {
		return err
	}
	track, ok := m.tracks[id]
	if !ok {
		return music.Errorf(music.KindNotFound, "mock.UpdateTrack", "track not found: %s", id)
	}
	if update.Title != nil {
		track.Title = *update.Title
	}
	if update.Writers != nil {
		track.Writers = *update.Writers
	}
	return nil
}

func (m *MockCatalog) UpdateAlbumArt(ctx context.Context, albumID, artKey string) error {
	album, ok := m.albums[albumID]
	if !ok {
		return music.Errorf(music.KindNotFound, "mock.UpdateAlbumArt", "album not found: %s", albumID)
	}
	album.ArtKey = artKey
	return nil
}

// MockStore records deletions.
type MockStore struct {
	objects map[string]bool
	deleted []string
}

func NewMockStore() *MockStore {
	return &MockStore{objects: make(map[string]bool)}
}

func (m *MockStore) Put(ctx context.Context, key, contentType string, r io.Reader, size int64) (string, error) {
	m.objects[key] = true
	return key, nil
}

func (m *MockStore) Delete(ctx context.Context, key string) error {
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *MockStore) Exists(ctx context.Context, key string) (bool, error) {
	return m.objects[key], nil
}

func (m *MockStore) PublicURL(key string) string { return "https://cdn.example.com/" + key }

type MockArt struct{}

func (MockArt) Normalize(data []byte) ([]byte, error) { return data, nil }

func seedTrack(catalog *MockCatalog, albumName string) *music.Track {
	album := music.NewAlbum(albumName)
	catalog.albums[album.ID] = album
	track := &music.Track{
		ID:        music.NewTrackID(),
		Title:     "Song",
		AlbumID:   album.ID,
		AlbumName: album.Name,
		Duration:  120,
		Paths: map[string]string{
			music.TierOriginal: "original/x/" + album.ID + "/t/song_original.flac",
			"medium":           "transcoded/x/" + album.ID + "/t/song_medium.m4a",
		},
		AddedDate:    time.Now(),
		ModifiedDate: time.Now(),
	}
	catalog.tracks[track.ID] = track
	album.TrackIDs = append(album.TrackIDs, track.ID)
	return track
}

func TestDeleteTrack_RemovesRecordAndObjects(t *testing.T) {
	catalog := NewMockCatalog()
	store := NewMockStore()
	track := seedTrack(catalog, "Demo")
	for _, key := range track.Paths {
		store.objects[key] = true
	}
	service := NewService(catalog, store, MockArt{})

	if err := service.DeleteTrack(context.Background(), track.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok := catalog.tracks[track.ID]; ok {
		t.Error("track record still present")
	}
	if len(store.deleted) != len(track.Paths) {
		t.Errorf("expected %d object deletions, got %d", len(track.Paths), len(store.deleted))
	}
	album := catalog.albums[track.AlbumID]
	if album.HasTrack(track.ID) {
		t.Error("track still listed in album")
	}
}

func TestDeleteTrack_TwiceIsNotFound(t *testing.T) {
	catalog := NewMockCatalog()
	track := seedTrack(catalog, "Demo")
	service := NewService(catalog, NewMockStore(), MockArt{})

	if err := service.DeleteTrack(context.Background(), track.ID); err != nil {
		t.Fatalf("first delete failed: %v", err)
	}
	err := service.DeleteTrack(context.Background(), track.ID)
	if !music.IsNotFound(err) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestDeleteTrack_DetachRetriedAfterTransientFailure(t *testing.T) {
	catalog := NewMockCatalog()
	track := seedTrack(catalog, "Demo")
	catalog.detachFailures = 2
	service := NewService(catalog, NewMockStore(), MockArt{})

	if err := service.DeleteTrack(context.Background(), track.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if catalog.detachFailures != 0 {
		t.Error("detach was not retried through the transient failures")
	}
	album := catalog.albums[track.AlbumID]
	if album.HasTrack(track.ID) {
		t.Error("album still references the deleted track")
	}
}

func TestDeleteAlbum_WithTracksRejectedWithoutCascade(t *testing.T) {
	catalog := NewMockCatalog()
	track := seedTrack(catalog, "Demo")
	service := NewService(catalog, NewMockStore(), MockArt{})

	err := service.DeleteAlbum(context.Background(), track.AlbumID, false)
	if !music.IsKind(err, music.KindConsistency) {
		t.Fatalf("expected consistency error, got %v", err)
	}
	if _, ok := catalog.albums[track.AlbumID]; !ok {
		t.Error("album must survive rejected delete")
	}
}

func TestDeleteAlbum_CascadeRemovesTracksAndObjects(t *testing.T) {
	catalog := NewMockCatalog()
	store := NewMockStore()
	track := seedTrack(catalog, "Demo")
	for _, key := range track.Paths {
		store.objects[key] = true
	}
	service := NewService(catalog, store, MockArt{})

	if err := service.DeleteAlbum(context.Background(), track.AlbumID, true); err != nil {
		t.Fatalf("cascade delete failed: %v", err)
	}
	if len(catalog.albums) != 0 {
		t.Error("album still present")
	}
	if len(catalog.tracks) != 0 {
		t.Error("tracks still present")
	}
	if len(store.objects) != 0 {
		t.Errorf("expected all objects gone, %d remain", len(store.objects))
	}
}

func TestUpdateTrack_RejectsBadSplits(t *testing.T) {
	catalog := NewMockCatalog()
	track := seedTrack(catalog, "Demo")
	service := NewService(catalog, NewMockStore(), MockArt{})

	bad := []music.Split{{Name: "A", Percentage: 60}, {Name: "B", Percentage: 50}}
	_, err := service.UpdateTrack(context.Background(), track.ID, &music.TrackUpdate{Writers: &bad})
	if !music.IsValidation(err) {
		t.Fatalf("expected validation error for 110%% split, got %v", err)
	}

	good := []music.Split{{Name: "A", Percentage: 60}, {Name: "B", Percentage: 40}}
	updated, err := service.UpdateTrack(context.Background(), track.ID, &music.TrackUpdate{Writers: &good})
	if err != nil {
		t.Fatalf("expected valid split to pass, got %v", err)
	}
	if len(updated.Writers) != 2 {
		t.Errorf("expected 2 writers, got %d", len(updated.Writers))
	}
}

func TestTrackURL_UnknownTier(t *testing.T) {
	catalog := NewMockCatalog()
	track := seedTrack(catalog, "Demo")
	store := NewMockStore()
	for _, key := range track.Paths {
		store.objects[key] = true
	}
	service := NewService(catalog, store, MockArt{})

	if _, err := service.TrackURL(context.Background(), track.ID, "ultra"); !music.IsNotFound(err) {
		t.Fatalf("expected not found for unknown tier, got %v", err)
	}
	url, err := service.TrackURL(context.Background(), track.ID, music.TierOriginal)
	if err != nil {
		t.Fatalf("expected URL for original tier, got %v", err)
	}
	if url == "" {
		t.Error("expected non-empty URL")
	}
}

func TestTrackURL_MissingObjectIsConsistencyFault(t *testing.T) {
	catalog := NewMockCatalog()
	track := seedTrack(catalog, "Demo")
	service := NewService(catalog, NewMockStore(), MockArt{})

	_, err := service.TrackURL(context.Background(), track.ID, music.TierOriginal)
	if music.KindOf(err) != music.KindConsistency {
		t.Fatalf("expected consistency fault for missing object, got %v", err)
	}
}
