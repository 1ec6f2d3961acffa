package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Manager holds the application configuration and provides thread-safe access to it.
type Manager struct {
	mu     sync.RWMutex
	config *Config
}

// NewManager creates a new Manager.
func NewManager(config *Config) *Manager {
	return &Manager{config: config}
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Update updates the configuration.
func (m *Manager) Update(config *Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldConfig := m.config
	m.config = config

	if oldConfig != nil {
		slog.Debug("Configuration updated",
			"tiers_changed", len(oldConfig.Ingest.Tiers) != len(config.Ingest.Tiers),
			"bucket_changed", oldConfig.Storage.Bucket != config.Storage.Bucket,
			"watch_enabled_changed", oldConfig.Watch.Enabled != config.Watch.Enabled,
			"logger_enabled_changed", oldConfig.Logger.Enabled != config.Logger.Enabled,
		)
	}
}

// Save writes the current configuration to the specified file path.
func (m *Manager) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	file, err := os.Create(path)
	if err != nil {
		slog.Error("failed to create config file", "path", path, "error", err)
		return err
	}
	defer file.Close()

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(2)
	if err := encoder.Encode(m.config); err != nil {
		slog.Error("failed to encode config", "path", path, "error", err)
		return err
	}

	slog.Info("Configuration saved successfully", "path", path)
	return nil
}

// EnsureDirectories creates the temp and watch directories if they don't exist.
func (m *Manager) EnsureDirectories() error {
	m.mu.RLock()
	cfg := m.config
	m.mu.RUnlock()

	if err := os.MkdirAll(cfg.TempPath, 0755); err != nil {
		return fmt.Errorf("failed to create temp directory %s: %w", cfg.TempPath, err)
	}
	if cfg.Watch.Enabled && cfg.Watch.Path != "" {
		if err := os.MkdirAll(cfg.Watch.Path, 0755); err != nil {
			return fmt.Errorf("failed to create watch directory %s: %w", cfg.Watch.Path, err)
		}
	}

	slog.Info("Required directories created/verified", "temp", cfg.TempPath)
	return nil
}

// redactedCfg gets a redacted copy of the Config. The caller must hold
// m.mu; reading m.config directly keeps this from re-acquiring the lock.
func (m *Manager) redactedCfg() Config {
	var cfgCpy = *m.config
	if cfgCpy.Storage.SecretAccessKey != "" {
		cfgCpy.Storage.SecretAccessKey = "<redacted>"
	}
	if cfgCpy.Storage.AccessKeyID != "" {
		cfgCpy.Storage.AccessKeyID = "<redacted>"
	}
	cfgCpy.Database.URI = "<redacted>"
	return cfgCpy
}

// GetJSON returns the current configuration as a JSON string.
func (m *Manager) GetJSON() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	jsonBytes, err := json.Marshal(m.redactedCfg())
	if err != nil {
		slog.Error("failed to marshal config to JSON", "error", err)
		return err.Error()
	}
	return string(jsonBytes)
}

func (m *Manager) GetYAML() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	yamlBytes, err := yaml.Marshal(m.redactedCfg())
	if err != nil {
		slog.Error("failed to marshal config to YAML", "error", err)
		return err.Error()
	}
	return string(yamlBytes)
}
