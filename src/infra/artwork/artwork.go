package artwork

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/go-flac/flacpicture"
	goflac "github.com/go-flac/go-flac"
	"github.com/nfnt/resize"
	"github.com/wavecrate/wavecrate/src/features/config"
	"github.com/wavecrate/wavecrate/src/music"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// Service normalizes album art for storage and embeds it into transcoded
// renditions.
type Service struct {
	config *config.Manager
}

// NewService creates a new artwork service.
func NewService(config *config.Manager) *Service {
	return &Service{
		config: config,
	}
}

// Normalize decodes uploaded art, constrains it to the configured maximum
// dimension, and re-encodes it as JPEG. Uploads in PNG, GIF, or WebP come
// out as a single canonical format so album art keys never change
// extension.
func (s *Service) Normalize(data []byte) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, music.Errorf(music.KindValidation, "artwork.Normalize", "cannot decode image: %v", err)
	}

	cfg := s.config.Get()
	if cfg.Artwork.MaxSize > 0 {
		img = resize.Thumbnail(uint(cfg.Artwork.MaxSize), uint(cfg.Artwork.MaxSize), img, resize.Lanczos3)
	}

	quality := cfg.Artwork.Quality
	if quality <= 0 || quality > 100 {
		quality = 85
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, music.E(music.KindProcess, "artwork.Normalize", err)
	}
	slog.Debug("Normalized album art", "sourceFormat", format, "bytes", buf.Len())
	return buf.Bytes(), nil
}

// Embed writes the album art into the rendition file's tags. Formats
// without a recognized picture container are skipped, never failed: a
// rendition without embedded art is still a valid rendition.
func (s *Service) Embed(renditionPath string, art []byte) error {
	if len(art) == 0 {
		return nil
	}
	cfg := s.config.Get()
	if !cfg.Artwork.Embedded.Enabled {
		return nil
	}

	if cfg.Artwork.Embedded.Size > 0 {
		resized, err := s.shrink(art, cfg.Artwork.Embedded.Size, cfg.Artwork.Embedded.Quality)
		if err != nil {
			slog.Warn("Failed to resize art for embedding, using original", "error", err)
		} else {
			art = resized
		}
	}

	ext := strings.ToLower(filepath.Ext(renditionPath))
	switch ext {
	case ".mp3":
		return s.embedMP3(renditionPath, art)
	case ".flac":
		return s.embedFLAC(renditionPath, art)
	default:
		slog.Debug("No art embedding for format", "format", ext)
		return nil
	}
}

func (s *Service) embedMP3(path string, art []byte) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return music.E(music.KindProcess, "artwork.embedMP3", err)
	}
	defer tag.Close()

	tag.AddAttachedPicture(id3v2.PictureFrame{
		Encoding:    id3v2.EncodingUTF8,
		MimeType:    detectMIME(art),
		PictureType: id3v2.PTFrontCover,
		Description: "Front cover",
		Picture:     art,
	})
	if err := tag.Save(); err != nil {
		return music.E(music.KindProcess, "artwork.embedMP3", err)
	}
	slog.Debug("Embedded art in MP3 rendition", "path", path)
	return nil
}

func (s *Service) embedFLAC(path string, art []byte) error {
	f, err := goflac.ParseFile(path)
	if err != nil {
		return music.E(music.KindProcess, "artwork.embedFLAC", err)
	}

	pic, err := flacpicture.NewFromImageData(flacpicture.PictureTypeFrontCover, "Front cover", art, detectMIME(art))
	if err != nil {
		return music.E(music.KindProcess, "artwork.embedFLAC", err)
	}
	marshaled := pic.Marshal()
	f.Meta = append(f.Meta, &goflac.MetaDataBlock{
		Type: goflac.Picture,
		Data: marshaled.Data,
	})
	if err := f.Save(path); err != nil {
		return music.E(music.KindProcess, "artwork.embedFLAC", err)
	}
	slog.Debug("Embedded art in FLAC rendition", "path", path)
	return nil
}

// shrink re-encodes art constrained to maxSize pixels on the long edge.
func (s *Service) shrink(art []byte, maxSize, quality int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(art))
	if err != nil {
		return nil, err
	}
	resized := resize.Thumbnail(uint(maxSize), uint(maxSize), img, resize.Lanczos3)

	if quality <= 0 || quality > 100 {
		quality = 85
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// detectMIME sniffs the image type from its magic bytes.
func detectMIME(data []byte) string {
	if len(data) >= 4 && string(data[:4]) == "\x89PNG" {
		return "image/png"
	}
	return "image/jpeg"
}

// ReadFile loads raw image bytes for filesystem-sourced art such as a
// cover.jpg dropped next to a watch-folder upload. Normalization happens
// downstream, where embedded art goes through the same path.
func (s *Service) ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, music.E(music.KindNotFound, "artwork.ReadFile", fmt.Errorf("read %s: %w", filepath.Base(path), err))
	}
	return data, nil
}
