package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/wavecrate/wavecrate/src/features/config"
	"github.com/wavecrate/wavecrate/src/features/ingesting"
	"github.com/wavecrate/wavecrate/src/music"
)

func testConfig() *config.Manager {
	return config.NewManager(&config.Config{
		Ingest: config.Ingest{
			Formats:    []string{"mp3", "wav", "flac", "aac", "m4a"},
			FFmpegPath: "ffmpeg",
		},
	})
}

func TestExtract_UnsupportedExtension(t *testing.T) {
	e := NewExtractor(testConfig())
	_, err := e.Extract(context.Background(), "/tmp/document.pdf")
	if err == nil {
		t.Fatal("expected unsupported format error")
	}
	if !errors.Is(err, ingesting.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
	if !music.IsValidation(err) {
		t.Errorf("unsupported format must classify as validation, got %v", music.KindOf(err))
	}
}

func TestExtract_MissingFlacIsCorrupt(t *testing.T) {
	e := NewExtractor(testConfig())
	_, err := e.Extract(context.Background(), "/nonexistent/file.flac")
	if err == nil {
		t.Fatal("expected corrupt file error")
	}
	if !errors.Is(err, ingesting.ErrCorruptFile) {
		t.Errorf("expected ErrCorruptFile, got %v", err)
	}
}

func TestFfprobePath_RewritesFinalElementOnly(t *testing.T) {
	cases := map[string]string{
		"ffmpeg":                       "ffprobe",
		"/usr/bin/ffmpeg":              "/usr/bin/ffprobe",
		"/opt/ffmpeg-tools/bin/ffmpeg": "/opt/ffmpeg-tools/bin/ffprobe",
	}
	for in, want := range cases {
		if got := ffprobePath(in); got != want {
			t.Errorf("ffprobePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSupported_CaseInsensitive(t *testing.T) {
	e := &Extractor{config: testConfig()}
	if !e.supported("MP3") {
		t.Error("format matching should be case-insensitive")
	}
	if e.supported("ogg") {
		t.Error("ogg is not in the configured format set")
	}
}
