package transcode

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wavecrate/wavecrate/src/features/config"
	"github.com/wavecrate/wavecrate/src/music"
)

func TestBuildArgs(t *testing.T) {
	preset := config.Tier{Codec: "aac", Bitrate: "128k", SampleRate: 44100, Ext: "m4a"}
	args := buildArgs("/tmp/in.mp3", "/tmp/in_medium.m4a", preset)
	joined := strings.Join(args, " ")
	want := "-y -i /tmp/in.mp3 -vn -c:a aac -b:a 128k -ar 44100 /tmp/in_medium.m4a"
	if joined != want {
		t.Errorf("args = %q, want %q", joined, want)
	}
}

func TestCodecArg(t *testing.T) {
	cases := map[string]string{
		"aac":    "aac",
		"MP3":    "libmp3lame",
		"opus":   "libopus",
		"vorbis": "libvorbis",
		"flac":   "flac",
	}
	for in, want := range cases {
		if got := codecArg(in); got != want {
			t.Errorf("codecArg(%q) = %q, want %q", in, got, want)
		}
	}
}

// fakeEncoder is a stand-in for ffmpeg that writes its last argument.
func fakeEncoder(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-ffmpeg")
	script := "#!/bin/sh\nfor a; do out=$a; done\necho rendition > \"$out\"\n"
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTranscode_OutputGoesToTempPath(t *testing.T) {
	tempPath := t.TempDir()
	sourceDir := t.TempDir()
	input := filepath.Join(sourceDir, "song.mp3")
	if err := os.WriteFile(input, []byte("audio"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := config.NewManager(&config.Config{
		TempPath: tempPath,
		Ingest: config.Ingest{
			FFmpegPath: fakeEncoder(t),
			Tiers:      map[string]config.Tier{"medium": {Codec: "aac", Bitrate: "128k", SampleRate: 44100, Ext: "m4a"}},
		},
	})
	tr := NewFFmpegTranscoder(cfg)

	out, err := tr.Transcode(context.Background(), input, "medium")
	if err != nil {
		t.Fatalf("transcode failed: %v", err)
	}
	if filepath.Dir(out) != tempPath {
		t.Errorf("rendition written to %s, want it under %s", out, tempPath)
	}

	// The source directory may be a watched folder; a rendition with an
	// ingestable extension there would re-trigger ingestion.
	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "song.mp3" {
		t.Errorf("source directory gained files: %v", entries)
	}
}

func TestTranscode_UnknownTier(t *testing.T) {
	cfg := config.NewManager(&config.Config{
		Ingest: config.Ingest{
			FFmpegPath: "ffmpeg",
			Tiers:      map[string]config.Tier{"medium": {Codec: "aac", Bitrate: "128k", SampleRate: 44100, Ext: "m4a"}},
		},
	})
	tr := NewFFmpegTranscoder(cfg)
	_, err := tr.Transcode(context.Background(), "/tmp/in.mp3", "ultra")
	if err == nil {
		t.Fatal("expected unknown tier to be rejected")
	}
	if !music.IsValidation(err) {
		t.Errorf("unknown tier should be a validation error, got %v", music.KindOf(err))
	}
}
