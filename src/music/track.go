package music

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TierOriginal is the one quality tier that always exists: the uploaded
// source file itself. Every other tier comes from configuration.
const TierOriginal = "original"

// SplitTolerance is how far a writer/publisher percentage sum may drift
// from 100 before the split list is rejected.
const SplitTolerance = 0.01

// Split attributes a share of a track to a writer or publisher.
type Split struct {
	Name       string  `json:"name" bson:"name"`
	Percentage float64 `json:"percentage" bson:"percentage"`
}

// ValidateSplits checks a writer or publisher list. An empty list is valid
// (unattributed); a non-empty list must carry non-negative percentages that
// sum to 100 within SplitTolerance.
func ValidateSplits(field string, splits []Split) error {
	if len(splits) == 0 {
		return nil
	}
	var sum float64
	for i, s := range splits {
		if strings.TrimSpace(s.Name) == "" {
			return Errorf(KindValidation, "music.ValidateSplits", "%s[%d] name cannot be empty", field, i)
		}
		if s.Percentage < 0 {
			return Errorf(KindValidation, "music.ValidateSplits", "%s[%d] percentage cannot be negative, got %v", field, i, s.Percentage)
		}
		sum += s.Percentage
	}
	if math.Abs(sum-100) > SplitTolerance {
		return Errorf(KindValidation, "music.ValidateSplits", "%s percentages must sum to 100, got %v", field, sum)
	}
	return nil
}

// Track represents a single catalogued audio recording. Paths maps a quality
// tier name to its object-store key; TierOriginal is always present on a
// fully ingested track.
type Track struct {
	ID          string            `json:"id" bson:"_id"`
	Title       string            `json:"title" bson:"title"`
	AlbumID     string            `json:"albumId" bson:"album_id"`
	AlbumName   string            `json:"albumName" bson:"album_name"`
	Filename    string            `json:"filename" bson:"filename"`
	Duration    float64           `json:"duration" bson:"duration"`
	Writers     []Split           `json:"writers" bson:"writers"`
	Publishers  []Split           `json:"publishers" bson:"publishers"`
	Artist      string            `json:"artist" bson:"artist"`
	Genres      []string          `json:"genres" bson:"genres"`
	Instruments []string          `json:"instruments" bson:"instruments"`
	Moods       []string          `json:"moods" bson:"moods"`
	Comments    string            `json:"comments" bson:"comments"`
	Paths       map[string]string `json:"paths" bson:"paths"`
	// Partial marks a track whose configured tier set is incomplete.
	// It is never presented as fully ingested while true.
	Partial      bool      `json:"partial" bson:"partial"`
	Bitrate      int       `json:"bitrate" bson:"bitrate"`
	SampleRate   int       `json:"sampleRate" bson:"sample_rate"`
	Format       string    `json:"format" bson:"format"`
	AddedDate    time.Time `json:"addedDate" bson:"added_date"`
	ModifiedDate time.Time `json:"modifiedDate" bson:"modified_date"`
}

// Validate validates the track fields.
func (t *Track) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return Errorf(KindValidation, "music.Track.Validate", "track id cannot be empty")
	}
	if strings.TrimSpace(t.Title) == "" {
		return Errorf(KindValidation, "music.Track.Validate", "track title cannot be empty")
	}
	if len(t.Title) > 500 {
		return Errorf(KindValidation, "music.Track.Validate", "title cannot exceed 500 characters, got %d", len(t.Title))
	}
	if strings.TrimSpace(t.AlbumID) == "" {
		return Errorf(KindValidation, "music.Track.Validate", "track must reference an album: title -> %s", t.Title)
	}
	if t.Duration <= 0 {
		return Errorf(KindValidation, "music.Track.Validate", "duration must be positive, got %v: title -> %s", t.Duration, t.Title)
	}
	if err := ValidateSplits("writers", t.Writers); err != nil {
		return err
	}
	if err := ValidateSplits("publishers", t.Publishers); err != nil {
		return err
	}
	if len(t.Comments) > 5000 {
		return Errorf(KindValidation, "music.Track.Validate", "comments cannot exceed 5000 characters, got %d", len(t.Comments))
	}
	if len(t.Paths) == 0 || t.Paths[TierOriginal] == "" {
		return Errorf(KindValidation, "music.Track.Validate", "track must have an %q path: title -> %s", TierOriginal, t.Title)
	}
	for tier, key := range t.Paths {
		if strings.TrimSpace(key) == "" {
			return Errorf(KindValidation, "music.Track.Validate", "empty object key for tier %q: title -> %s", tier, t.Title)
		}
	}
	return nil
}

// MissingTiers returns the configured tiers this track has no path for.
func (t *Track) MissingTiers(configured []string) []string {
	var missing []string
	for _, tier := range configured {
		if _, ok := t.Paths[tier]; !ok {
			missing = append(missing, tier)
		}
	}
	return missing
}

func (t *Track) Pretty() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-14s: %s\n", "ID", t.ID)
	fmt.Fprintf(&b, "%-14s: %s\n", "Title", t.Title)
	fmt.Fprintf(&b, "%-14s: %s\n", "Artist", t.Artist)
	fmt.Fprintf(&b, "%-14s: %s\n", "Album", t.AlbumID)
	fmt.Fprintf(&b, "%-14s: %.1fs\n", "Duration", t.Duration)
	fmt.Fprintf(&b, "%-14s: %s\n", "Genres", strings.Join(t.Genres, ", "))
	for tier, key := range t.Paths {
		fmt.Fprintf(&b, "%-14s: %s -> %s\n", "Path", tier, key)
	}
	if t.Partial {
		fmt.Fprintf(&b, "%-14s: partially processed\n", "State")
	}
	return b.String()
}

// NewTrackID creates an opaque track identifier.
func NewTrackID() string {
	return uuid.New().String()
}

// TrackUpdate is a partial update to a track's editable metadata. Nil fields
// are left untouched. Duration is deliberately absent: it is derived from
// extraction and never user-editable.
type TrackUpdate struct {
	Title       *string   `json:"title"`
	Artist      *string   `json:"artist"`
	Writers     *[]Split  `json:"writers"`
	Publishers  *[]Split  `json:"publishers"`
	Genres      *[]string `json:"genres"`
	Instruments *[]string `json:"instruments"`
	Moods       *[]string `json:"moods"`
	Comments    *string   `json:"comments"`
}

// Validate checks the fields present in the update.
func (u *TrackUpdate) Validate() error {
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		return Errorf(KindValidation, "music.TrackUpdate.Validate", "track title cannot be empty")
	}
	if u.Writers != nil {
		if err := ValidateSplits("writers", *u.Writers); err != nil {
			return err
		}
	}
	if u.Publishers != nil {
		if err := ValidateSplits("publishers", *u.Publishers); err != nil {
			return err
		}
	}
	return nil
}
