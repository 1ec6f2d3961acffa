package music

import (
	"context"
)

// SortDirection for track listings.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// TrackPage is one page of a sorted track listing.
type TrackPage struct {
	Tracks     []*Track `json:"tracks"`
	TotalCount int      `json:"totalCount"`
}

// Catalog is the repository interface for persisted albums and tracks.
// Implementations own schema validation: every write that would violate a
// §3-style invariant (required fields, split sums, orphaned references) is
// rejected at this boundary so all writers are protected uniformly.
type Catalog interface {
	// Album methods
	CreateAlbum(ctx context.Context, album *Album) error
	GetAlbum(ctx context.Context, id string) (*Album, error)
	FindAlbumByName(ctx context.Context, name string) (*Album, error)
	// FindOrCreateAlbum maps a normalized album name to a single canonical
	// record. It must be idempotent under concurrent calls for the same
	// name; the ingestion pipeline relies on that for batch de-duplication.
	FindOrCreateAlbum(ctx context.Context, name string) (*Album, error)
	UpdateAlbumArt(ctx context.Context, albumID, artKey string) error
	AppendTrackToAlbum(ctx context.Context, albumID, trackID string) error
	DetachTrackFromAlbum(ctx context.Context, albumID, trackID string) error
	// DeleteAlbum removes an empty album. An album with live tracks is a
	// consistency error unless cascade handling happens first.
	DeleteAlbum(ctx context.Context, id string) error
	SearchAlbums(ctx context.Context, query string) ([]*Album, error)
	GetAlbums(ctx context.Context) ([]*Album, error)

	// Track methods
	CreateTrack(ctx context.Context, track *Track) error
	GetTrack(ctx context.Context, id string) (*Track, error)
	UpdateTrack(ctx context.Context, id string, update *TrackUpdate) error
	// UpdateTrackPaths swaps the tier->key map and technical fields after an
	// audio replacement, preserving identity and editable metadata.
	UpdateTrackPaths(ctx context.Context, id string, paths map[string]string, duration float64, bitrate, sampleRate int, format string, partial bool) error
	// DeleteTrack removes the track record only. Callers unlink it from
	// its album through DetachTrackFromAlbum, which can be retried
	// independently of the delete.
	DeleteTrack(ctx context.Context, id string) error
	SearchTracks(ctx context.Context, query string) ([]*Track, error)
	TracksByAlbum(ctx context.Context, albumID string) ([]*Track, error)
	ListTracks(ctx context.Context, sortField string, dir SortDirection, limit, skip int) (*TrackPage, error)
	GetTracksCount(ctx context.Context) (int, error)
}
