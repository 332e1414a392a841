package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds all daemon configuration.
// Supports environment variables with sensible defaults.
//
// Environment Variables:
// HTTP:
// - HTTP_ADDR: listen address for the terminal API (default: :8080)
// - UI_DIR: directory with the built form UI (default: /app/ui)
// - UI_ENABLED: serve the UI (default: true)
//
// Storage:
// - DATA_DIR: directory for the queue database and settings (default: /app/data)
//
// Upload:
// - UPLOAD_URL: upload endpoint URL (required)
// - UPLOAD_TIMEOUT: request timeout in seconds (default: 120)
//
// Sync:
// - SYNC_CRON: periodic fallback trigger (default: every minute)
// - PROBE_INTERVAL: connectivity probe interval in seconds (default: 10)
//
// Logging:
// - LOG_LEVEL: debug|info|warn|error (default: info)
// - LOG_FILE: write logs to this file instead of stdout (optional)

type Config struct {
	HTTP   HTTPConfig   `json:"http"`
	Store  StoreConfig  `json:"store"`
	Upload UploadConfig `json:"upload"`
	Sync   SyncConfig   `json:"sync"`
	Log    LogConfig    `json:"log"`
}

type HTTPConfig struct {
	Addr      string `json:"addr"`
	UIDir     string `json:"ui_dir"`
	UIEnabled bool   `json:"ui_enabled"`
}

type StoreConfig struct {
	DataDir string `json:"data_dir"`
}

// DBFile is the queue database path inside the data directory.
func (c StoreConfig) DBFile() string {
	return filepath.Join(c.DataDir, "bolqueue.db")
}

// SettingsFile is the runtime settings path inside the data directory.
func (c StoreConfig) SettingsFile() string {
	return getEnvString("SETTINGS_FILE", filepath.Join(c.DataDir, "settings.json"))
}

type UploadConfig struct {
	URL            string `json:"url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type SyncConfig struct {
	CronExpr             string `json:"cron_expr"`
	ProbeIntervalSeconds int    `json:"probe_interval_seconds"`
}

type LogConfig struct {
	Level string `json:"level"`
	File  string `json:"file"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		HTTP: HTTPConfig{
			Addr:      getEnvString("HTTP_ADDR", ":8080"),
			UIDir:     getEnvString("UI_DIR", "/app/ui"),
			UIEnabled: getEnvBool("UI_ENABLED", true),
		},
		Store: StoreConfig{
			DataDir: getEnvString("DATA_DIR", "/app/data"),
		},
		Upload: UploadConfig{
			URL:            getEnvString("UPLOAD_URL", ""),
			TimeoutSeconds: getEnvInt("UPLOAD_TIMEOUT", 120),
		},
		Sync: SyncConfig{
			CronExpr:             getEnvString("SYNC_CRON", "* * * * *"),
			ProbeIntervalSeconds: getEnvInt("PROBE_INTERVAL", 10),
		},
		Log: LogConfig{
			Level: getEnvString("LOG_LEVEL", "info"),
			File:  getEnvString("LOG_FILE", ""),
		},
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.Upload.URL == "" {
		return fmt.Errorf("UPLOAD_URL is required")
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean value from environment variables with default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
