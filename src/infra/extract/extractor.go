package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dhowden/tag"
	goflac "github.com/go-flac/go-flac"
	"github.com/wavecrate/wavecrate/src/features/config"
	"github.com/wavecrate/wavecrate/src/features/ingesting"
	"github.com/wavecrate/wavecrate/src/music"
)

// Extractor reads tags with dhowden/tag and technical properties with
// ffprobe (STREAMINFO directly for FLAC). It never writes to the file.
type Extractor struct {
	config *config.Manager
}

// NewExtractor creates a new Extractor.
func NewExtractor(cfg *config.Manager) ingesting.Extractor {
	return &Extractor{config: cfg}
}

// Extract reads metadata from an audio file. Missing tag fields get
// "Unknown ..." defaults; a file with no readable duration is corrupt.
func (e *Extractor) Extract(ctx context.Context, filePath string) (*ingesting.Metadata, error) {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(filePath)), ".")
	if !e.supported(format) {
		return nil, music.E(music.KindValidation, "extract.Extract",
			fmt.Errorf("%w: .%s", ingesting.ErrUnsupportedFormat, format))
	}

	meta := &ingesting.Metadata{
		Title:  "Unknown Title",
		Artist: "Unknown Artist",
		Album:  "Unknown Album",
		Format: format,
	}

	// Tag data is best-effort: an untagged file is fine, a container we
	// cannot probe is not.
	e.readTags(filePath, meta)

	var err error
	if format == "flac" {
		err = e.readStreamInfo(filePath, meta)
	} else {
		err = e.probe(ctx, filePath, meta)
	}
	if err != nil {
		return nil, err
	}
	if meta.Duration <= 0 {
		return nil, music.E(music.KindValidation, "extract.Extract",
			fmt.Errorf("%w: no readable duration in %s", ingesting.ErrCorruptFile, filepath.Base(filePath)))
	}
	return meta, nil
}

func (e *Extractor) supported(format string) bool {
	for _, f := range e.config.Get().Ingest.Formats {
		if strings.EqualFold(f, format) {
			return true
		}
	}
	return false
}

func (e *Extractor) readTags(filePath string, meta *ingesting.Metadata) {
	f, err := os.Open(filePath)
	if err != nil {
		return
	}
	defer f.Close()

	tags, err := tag.ReadFrom(f)
	if err != nil {
		return
	}
	if t := strings.TrimSpace(tags.Title()); t != "" {
		meta.Title = t
	}
	if a := strings.TrimSpace(tags.Artist()); a != "" {
		meta.Artist = a
	}
	if al := strings.TrimSpace(tags.Album()); al != "" {
		meta.Album = al
	}
	meta.Genre = tags.Genre()
	meta.Year = tags.Year()
	meta.TrackNumber, _ = tags.Track()
	if pic := tags.Picture(); pic != nil {
		meta.Art = pic.Data
	}
}

// readStreamInfo pulls exact duration, sample rate and bitrate for FLAC
// from the STREAMINFO block instead of spawning ffprobe.
func (e *Extractor) readStreamInfo(filePath string, meta *ingesting.Metadata) error {
	f, err := goflac.ParseFile(filePath)
	if err != nil {
		return music.E(music.KindValidation, "extract.readStreamInfo",
			fmt.Errorf("%w: %v", ingesting.ErrCorruptFile, err))
	}
	info, err := f.GetStreamInfo()
	if err != nil {
		return music.E(music.KindValidation, "extract.readStreamInfo",
			fmt.Errorf("%w: %v", ingesting.ErrCorruptFile, err))
	}
	meta.SampleRate = info.SampleRate
	if info.SampleRate > 0 {
		meta.Duration = float64(info.SampleCount) / float64(info.SampleRate)
	}
	if stat, err := os.Stat(filePath); err == nil && meta.Duration > 0 {
		meta.Bitrate = int(float64(stat.Size()*8) / meta.Duration / 1000)
	}
	return nil
}

// ffprobeOutput is the subset of ffprobe's JSON output we read.
type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		SampleRate string `json:"sample_rate"`
	} `json:"streams"`
}

// ffprobePath derives the ffprobe binary location from the configured
// ffmpeg path. Only the final path element is rewritten; parent
// directories named ffmpeg-something stay untouched.
func ffprobePath(ffmpegPath string) string {
	dir, file := filepath.Split(ffmpegPath)
	return filepath.Join(dir, strings.Replace(file, "ffmpeg", "ffprobe", 1))
}

func (e *Extractor) probe(ctx context.Context, filePath string, meta *ingesting.Metadata) error {
	probeBin := ffprobePath(e.config.Get().Ingest.FFmpegPath)

	args := []string{
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "format=duration,bit_rate",
		"-show_entries", "stream=codec_type,sample_rate",
		"-of", "json",
		filePath,
	}
	cmd := exec.CommandContext(ctx, probeBin, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return music.E(music.KindValidation, "extract.probe",
			fmt.Errorf("%w: ffprobe failed for %s: %s", ingesting.ErrCorruptFile, filepath.Base(filePath), strings.TrimSpace(stderr.String())))
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(out.Bytes(), &probe); err != nil {
		return music.E(music.KindValidation, "extract.probe",
			fmt.Errorf("%w: unreadable ffprobe output: %v", ingesting.ErrCorruptFile, err))
	}

	if d, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
		meta.Duration = d
	}
	if br, err := strconv.Atoi(probe.Format.BitRate); err == nil {
		meta.Bitrate = br / 1000
	}
	for _, s := range probe.Streams {
		if s.CodecType == "audio" {
			if sr, err := strconv.Atoi(s.SampleRate); err == nil {
				meta.SampleRate = sr
			}
			break
		}
	}
	return nil
}
