package config

import (
	"runtime"
	"time"
)

// createDefaultConfig creates a new Config with sensible default values
func createDefaultConfig() *Config {
	return &Config{
		TempPath: "./tmp",
		Logger: Logger{
			Enabled: true,
			Level:   "info",
			Format:  "text",
		},
		Server: Server{
			PrintRoutes: false,
			Port:        3636,
		},
		Storage: Storage{
			Endpoint:           "localhost:9000",
			Bucket:             "wavecrate",
			Region:             "auto",
			UseSSL:             false,
			MultipartThreshold: 64 * 1024 * 1024,
			PartSize:           16 * 1024 * 1024,
		},
		Database: Database{
			URI:  "mongodb://localhost:27017",
			Name: "wavecrate",
		},
		Ingest: Ingest{
			Formats: []string{"mp3", "wav", "flac", "aac", "m4a"},
			Tiers: map[string]Tier{
				"medium": {Codec: "aac", Bitrate: "128k", SampleRate: 44100, Ext: "m4a"},
				"low":    {Codec: "aac", Bitrate: "64k", SampleRate: 22050, Ext: "m4a"},
			},
			MaxParallelFiles:      4,
			MaxParallelTranscodes: runtime.NumCPU(),
			MaxParallelUploads:    3,
			FFmpegPath:            "ffmpeg",
			Retry: Retry{
				TransientAttempts: 3,
				ProcessAttempts:   2,
				LinkAttempts:      8,
				BaseDelay:         Duration(200 * time.Millisecond),
				MaxDelay:          Duration(5 * time.Second),
			},
		},
		Watch: Watch{
			Enabled:  false,
			Path:     "./inbox",
			Debounce: Duration(2 * time.Second),
		},
		Artwork: Artwork{
			MaxSize: 1200,
			Quality: 85,
			Embedded: EmbeddedArtwork{
				Enabled: false,
				Size:    1000,
				Quality: 85,
			},
		},
		Jobs: Jobs{
			Log:     true,
			LogPath: "./logs/jobs",
			Webhooks: WebhookConfig{
				Enabled:  false,
				JobTypes: []string{},
				Command:  "",
			},
		},
	}
}
