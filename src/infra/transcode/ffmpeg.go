package transcode

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/wavecrate/wavecrate/src/features/config"
	"github.com/wavecrate/wavecrate/src/features/ingesting"
	"github.com/wavecrate/wavecrate/src/music"
)

// FFmpegTranscoder produces quality-tier renditions by invoking ffmpeg.
// Output is written under the configured temp path, never next to the
// source file, so watched and library folders stay free of renditions.
type FFmpegTranscoder struct {
	config *config.Manager
}

// NewFFmpegTranscoder creates a new FFmpegTranscoder.
func NewFFmpegTranscoder(cfg *config.Manager) ingesting.Transcoder {
	return &FFmpegTranscoder{config: cfg}
}

// Transcode renders one tier of the input file. Output exists only when the
// encoder exits zero; any partial output is removed before an error is
// returned, so a failed tier never leaves a corrupt file behind.
func (t *FFmpegTranscoder) Transcode(ctx context.Context, inputPath, tier string) (string, error) {
	preset, ok := t.config.Get().Ingest.Tiers[tier]
	if !ok {
		return "", music.Errorf(music.KindValidation, "transcode.Transcode", "unknown tier %q", tier)
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	outputPath := filepath.Join(t.config.Get().TempPath, fmt.Sprintf("%s_%s_%s.%s", base, tier, uuid.New().String(), preset.Ext))

	args := buildArgs(inputPath, outputPath, preset)
	cmd := exec.CommandContext(ctx, t.config.Get().Ingest.FFmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	slog.Debug("Transcoding", "input", filepath.Base(inputPath), "tier", tier, "preset", preset)

	if err := cmd.Run(); err != nil {
		if removeErr := os.Remove(outputPath); removeErr != nil && !os.IsNotExist(removeErr) {
			slog.Warn("Failed to remove partial transcoder output", "path", outputPath, "error", removeErr)
		}
		return "", music.Errorf(music.KindProcess, "transcode.Transcode",
			"ffmpeg failed for %s tier %s: %v: %s", filepath.Base(inputPath), tier, err, strings.TrimSpace(stderr.String()))
	}

	info, err := os.Stat(outputPath)
	if err != nil || info.Size() == 0 {
		os.Remove(outputPath)
		return "", music.Errorf(music.KindProcess, "transcode.Transcode",
			"ffmpeg produced no output for %s tier %s", filepath.Base(inputPath), tier)
	}
	return outputPath, nil
}

// buildArgs assembles the encoder invocation for a preset.
func buildArgs(inputPath, outputPath string, preset config.Tier) []string {
	return []string{
		"-y",
		"-i", inputPath,
		"-vn",
		"-c:a", codecArg(preset.Codec),
		"-b:a", preset.Bitrate,
		"-ar", strconv.Itoa(preset.SampleRate),
		outputPath,
	}
}

// codecArg maps a preset codec name onto the ffmpeg encoder name.
func codecArg(codec string) string {
	switch strings.ToLower(codec) {
	case "mp3":
		return "libmp3lame"
	case "opus":
		return "libopus"
	case "vorbis":
		return "libvorbis"
	default:
		return strings.ToLower(codec)
	}
}
