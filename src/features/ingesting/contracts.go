package ingesting

import (
	"context"
	"errors"
	"io"
)

// ErrUnsupportedFormat marks a file whose extension or container is not one
// of the configured audio formats.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// ErrCorruptFile marks a file that claims to be audio but yields no readable
// duration or container data. A zero-duration record is never produced.
var ErrCorruptFile = errors.New("corrupt audio file")

// Metadata is the normalized record the extractor produces for one file.
// Tag fields absent from the source carry "Unknown ..." defaults; Duration
// is always derived, never defaulted.
type Metadata struct {
	Title       string
	Artist      string
	Album       string
	Duration    float64 // seconds
	Bitrate     int     // kbps
	SampleRate  int
	Genre       string
	Year        int
	TrackNumber int
	Format      string
	// Art is the embedded front-cover image, if the source carries one.
	Art []byte
}

// Extractor reads an audio file's tags and technical properties.
type Extractor interface {
	Extract(ctx context.Context, filePath string) (*Metadata, error)
}

// Transcoder produces one quality-tier rendition of an input file. The
// returned path is a temporary file the caller uploads and then deletes;
// on failure no partial output is left behind.
type Transcoder interface {
	Transcode(ctx context.Context, inputPath, tier string) (string, error)
}

// BlobStore is the object store surface the pipeline needs.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader, size int64) (string, error)
	PutFile(ctx context.Context, key, contentType, path string) (string, error)
	Delete(ctx context.Context, key string) error
}

// ArtProcessor normalizes album art for storage and embeds it into
// rendition files before upload. ReadFile loads cover images that sit on
// disk next to a source file.
type ArtProcessor interface {
	Normalize(data []byte) ([]byte, error)
	Embed(renditionPath string, art []byte) error
	ReadFile(path string) ([]byte, error)
}
