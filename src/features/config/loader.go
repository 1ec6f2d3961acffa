package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Load reads a YAML file from the given path and returns a new Manager.
// If the file doesn't exist, creates a default configuration.
func Load(path string) (*Manager, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		slog.Info("Config file not found, creating default configuration", "path", path)
		defaultCfg := createDefaultConfig()
		applyEnvOverrides(defaultCfg)

		if err := saveDefaultConfig(path, defaultCfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}

		manager := NewManager(defaultCfg)
		if err := manager.EnsureDirectories(); err != nil {
			return nil, err
		}
		return manager, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	manager := NewManager(&cfg)
	if err := manager.EnsureDirectories(); err != nil {
		return nil, err
	}

	return manager, nil
}

// applyDefaults fills the fields a hand-written config commonly omits.
func applyDefaults(cfg *Config) {
	def := createDefaultConfig()
	if cfg.TempPath == "" {
		cfg.TempPath = def.TempPath
	}
	if len(cfg.Ingest.Formats) == 0 {
		cfg.Ingest.Formats = def.Ingest.Formats
	}
	if cfg.Ingest.MaxParallelFiles <= 0 {
		cfg.Ingest.MaxParallelFiles = def.Ingest.MaxParallelFiles
	}
	if cfg.Ingest.MaxParallelTranscodes <= 0 {
		cfg.Ingest.MaxParallelTranscodes = def.Ingest.MaxParallelTranscodes
	}
	if cfg.Ingest.MaxParallelUploads <= 0 {
		cfg.Ingest.MaxParallelUploads = def.Ingest.MaxParallelUploads
	}
	if cfg.Ingest.FFmpegPath == "" {
		cfg.Ingest.FFmpegPath = def.Ingest.FFmpegPath
	}
	if cfg.Ingest.Retry.TransientAttempts <= 0 {
		cfg.Ingest.Retry.TransientAttempts = def.Ingest.Retry.TransientAttempts
	}
	if cfg.Ingest.Retry.ProcessAttempts <= 0 {
		cfg.Ingest.Retry.ProcessAttempts = def.Ingest.Retry.ProcessAttempts
	}
	if cfg.Ingest.Retry.LinkAttempts <= 0 {
		cfg.Ingest.Retry.LinkAttempts = def.Ingest.Retry.LinkAttempts
	}
	if cfg.Ingest.Retry.BaseDelay <= 0 {
		cfg.Ingest.Retry.BaseDelay = def.Ingest.Retry.BaseDelay
	}
	if cfg.Ingest.Retry.MaxDelay <= 0 {
		cfg.Ingest.Retry.MaxDelay = def.Ingest.Retry.MaxDelay
	}
	if cfg.Storage.MultipartThreshold <= 0 {
		cfg.Storage.MultipartThreshold = def.Storage.MultipartThreshold
	}
	if cfg.Storage.PartSize <= 0 {
		cfg.Storage.PartSize = def.Storage.PartSize
	}
	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = def.Watch.Debounce
	}
	if cfg.Artwork.MaxSize <= 0 {
		cfg.Artwork.MaxSize = def.Artwork.MaxSize
	}
	if cfg.Artwork.Quality <= 0 {
		cfg.Artwork.Quality = def.Artwork.Quality
	}
}

// applyEnvOverrides lets secrets come from the environment so they never
// land in the config file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WAVECRATE_STORAGE_ACCESS_KEY_ID"); v != "" {
		cfg.Storage.AccessKeyID = v
	}
	if v := os.Getenv("WAVECRATE_STORAGE_SECRET_ACCESS_KEY"); v != "" {
		cfg.Storage.SecretAccessKey = v
	}
	if v := os.Getenv("WAVECRATE_STORAGE_ACCOUNT_ID"); v != "" {
		cfg.Storage.AccountID = v
	}
	if v := os.Getenv("WAVECRATE_DATABASE_URI"); v != "" {
		cfg.Database.URI = v
	}
}

// saveDefaultConfig saves the default configuration to the specified file path
func saveDefaultConfig(path string, cfg *Config) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()
	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(2)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	slog.Info("Default configuration saved", "path", path)
	return nil
}
