package objectstore

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gosimple/unidecode"
	"github.com/wavecrate/wavecrate/src/music"
)

var keyUnsafe = regexp.MustCompile(`[^a-z0-9._-]+`)

// SanitizeSegment turns arbitrary user text into a key-safe path segment:
// ASCII-folded, lower-cased, with anything outside [a-z0-9._-] collapsed to
// a single underscore. Two different inputs may sanitize to the same string;
// the track-id segment of every key keeps that from colliding across tracks.
func SanitizeSegment(s string) string {
	s = unidecode.Unidecode(s)
	s = strings.ToLower(strings.TrimSpace(s))
	s = keyUnsafe.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "unknown"
	}
	return s
}

// TrackKey derives the object-store key for one rendition of a track. The
// scheme is deterministic so re-uploading a replacement overwrites in place:
//
//	{original|transcoded}/{artist}/{albumOrSingles}/{trackId}/{title}_{tier}.{ext}
func TrackKey(artist, album, trackID, title, tier, ext string) string {
	prefix := "transcoded"
	if tier == music.TierOriginal {
		prefix = "original"
	}
	if strings.TrimSpace(album) == "" {
		album = music.SinglesAlbum
	}
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	return fmt.Sprintf("%s/%s/%s/%s/%s_%s.%s",
		prefix,
		SanitizeSegment(artist),
		SanitizeSegment(album),
		trackID,
		SanitizeSegment(title),
		SanitizeSegment(tier),
		ext,
	)
}

// AlbumArtKey derives the object-store key for an album's cover image.
func AlbumArtKey(albumID string) string {
	return fmt.Sprintf("artwork/%s/cover.jpg", albumID)
}
