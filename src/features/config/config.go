package config

import (
	"fmt"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML configs can use values like "200ms".
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config holds the application configuration.
type Config struct {
	TempPath string   `yaml:"tempPath" validate:"required"`
	Logger   Logger   `yaml:"logger"`
	Server   Server   `yaml:"server"`
	Storage  Storage  `yaml:"storage" validate:"required"`
	Database Database `yaml:"database" validate:"required"`
	Ingest   Ingest   `yaml:"ingest"`
	Watch    Watch    `yaml:"watch"`
	Artwork  Artwork  `yaml:"artwork"`
	Jobs     Jobs     `yaml:"jobs"`
}

// Logger holds the configuration for the app logging
type Logger struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
}

// Server holds the configuration for the Fiber server
type Server struct {
	PrintRoutes bool   `yaml:"show_routes"`
	Port        uint32 `yaml:"port"`
}

// Storage holds the S3-compatible object store settings. AccessKeyID and
// SecretAccessKey are normally injected through the environment rather
// than written into the file.
type Storage struct {
	Endpoint        string `yaml:"endpoint" validate:"required"`
	AccountID       string `yaml:"account_id"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Bucket          string `yaml:"bucket" validate:"required"`
	Region          string `yaml:"region"`
	UseSSL          bool   `yaml:"use_ssl"`
	// PublicDomain, when set, is used to build public URLs for stored objects.
	PublicDomain string `yaml:"public_domain"`
	// Uploads above MultipartThreshold bytes go through multipart upload.
	MultipartThreshold int64 `yaml:"multipart_threshold"`
	PartSize           int64 `yaml:"part_size"`
}

// Database holds the document database connection settings.
type Database struct {
	URI  string `yaml:"uri" validate:"required"`
	Name string `yaml:"name" validate:"required"`
}

// Tier is a named quality preset the transcoder produces.
type Tier struct {
	Codec      string `yaml:"codec" validate:"required"`
	Bitrate    string `yaml:"bitrate" validate:"required"`
	SampleRate int    `yaml:"sample_rate" validate:"required"`
	Ext        string `yaml:"ext" validate:"required"`
	// Required tiers must succeed for an item to count as fully ingested.
	// The original upload is always required regardless of this flag.
	Required bool `yaml:"required"`
}

// Ingest holds the pipeline settings: accepted formats, quality tiers,
// concurrency caps and the retry policy knobs.
type Ingest struct {
	Formats []string        `yaml:"formats"`
	Tiers   map[string]Tier `yaml:"tiers"`
	// MaxParallelFiles caps concurrently processed items in a batch.
	MaxParallelFiles int `yaml:"max_parallel_files"`
	// MaxParallelTranscodes caps concurrent encoder processes; transcoding
	// is CPU-bound so this defaults to the core count.
	MaxParallelTranscodes int    `yaml:"max_parallel_transcodes"`
	MaxParallelUploads    int    `yaml:"max_parallel_uploads"`
	FFmpegPath            string `yaml:"ffmpeg_path"`
	Retry                 Retry  `yaml:"retry"`
}

// Retry holds the central retry policy applied by the orchestrator.
type Retry struct {
	TransientAttempts int `yaml:"transient_attempts"`
	ProcessAttempts   int `yaml:"process_attempts"`
	// LinkAttempts bounds the album-append retry that guards against
	// orphaned tracks; it is deliberately higher than TransientAttempts.
	LinkAttempts int      `yaml:"link_attempts"`
	BaseDelay    Duration `yaml:"base_delay"`
	MaxDelay     Duration `yaml:"max_delay"`
}

// Watch holds the watch-folder settings for automatic ingestion.
type Watch struct {
	Enabled  bool     `yaml:"enabled"`
	Path     string   `yaml:"path"`
	Debounce Duration `yaml:"debounce"`
}

// Artwork holds configuration for album art handling.
type Artwork struct {
	MaxSize  int             `yaml:"max_size"`
	Quality  int             `yaml:"quality"`
	Embedded EmbeddedArtwork `yaml:"embedded"`
}

// EmbeddedArtwork controls embedding album art into transcoded renditions.
type EmbeddedArtwork struct {
	Enabled bool `yaml:"enabled"`
	Size    int  `yaml:"size"`
	Quality int  `yaml:"quality"`
}

// Jobs holds the job runner settings.
type Jobs struct {
	Log      bool          `yaml:"log"`
	LogPath  string        `yaml:"log_path"`
	Webhooks WebhookConfig `yaml:"webhooks"`
}

// WebhookConfig configures the optional command run when a job finishes.
type WebhookConfig struct {
	Enabled  bool     `yaml:"enabled"`
	JobTypes []string `yaml:"job_types"`
	Command  string   `yaml:"command"`
}

// TierNames returns the configured tier names plus the implicit original,
// in a stable order.
func (i Ingest) TierNames() []string {
	names := make([]string, 0, len(i.Tiers)+1)
	names = append(names, "original")
	for name := range i.Tiers {
		names = append(names, name)
	}
	sort.Strings(names[1:])
	return names
}
