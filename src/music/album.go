package music

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SinglesAlbum is the album name tracks fall back to when their source file
// carries no album tag.
const SinglesAlbum = "Singles"

// Album is a collection of tracks, de-duplicated by normalized name.
// TrackIDs always reflects exactly the tracks whose AlbumID is this album's
// ID; the catalog store maintains the pairing on append and detach.
type Album struct {
	ID   string `json:"id" bson:"_id"`
	Name string `json:"name" bson:"name"`
	// NormalizedName is the de-duplication key, derived from Name.
	NormalizedName string    `json:"-" bson:"normalized_name"`
	ArtKey         string    `json:"artKey,omitempty" bson:"art_key,omitempty"`
	TrackIDs       []string  `json:"trackIds" bson:"track_ids"`
	AddedDate      time.Time `json:"addedDate" bson:"added_date"`
	ModifiedDate   time.Time `json:"modifiedDate" bson:"modified_date"`
}

// NormalizeAlbumName collapses case and whitespace so that "Demo" and
// "demo " resolve to the same album.
func NormalizeAlbumName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// Validate validates the album fields.
func (a *Album) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return Errorf(KindValidation, "music.Album.Validate", "album id cannot be empty")
	}
	if strings.TrimSpace(a.Name) == "" {
		return Errorf(KindValidation, "music.Album.Validate", "album name cannot be empty")
	}
	if len(a.Name) > 500 {
		return Errorf(KindValidation, "music.Album.Validate", "album name cannot exceed 500 characters, got %d", len(a.Name))
	}
	if a.NormalizedName != NormalizeAlbumName(a.Name) {
		return Errorf(KindValidation, "music.Album.Validate", "normalized name out of sync for album %q", a.Name)
	}
	return nil
}

// HasTrack reports whether the album already lists the given track.
func (a *Album) HasTrack(trackID string) bool {
	for _, id := range a.TrackIDs {
		if id == trackID {
			return true
		}
	}
	return false
}

// NewAlbum builds an album record for a raw (un-normalized) name.
func NewAlbum(name string) *Album {
	now := time.Now()
	return &Album{
		ID:             uuid.New().String(),
		Name:           strings.TrimSpace(name),
		NormalizedName: NormalizeAlbumName(name),
		TrackIDs:       []string{},
		AddedDate:      now,
		ModifiedDate:   now,
	}
}
