package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds all application configuration.
// Supports environment variables with sensible defaults; a .env file in the
// working directory is loaded first when present.
//
// Environment Variables:
// HTTP:
// - HTTP_ADDR: listen address (default: :8080)
// - MAX_UPLOAD_BYTES: upload size limit for scan images (default: 10485760)
//
// Storage:
// - DATA_DIR: directory for the sqlite database and settings file (default: ./data)
//
// Catalog:
// - CATALOG_FILE: YAML allergen catalog path (default: built-in catalog)
//
// OCR:
// - OCR_LANGUAGES: comma-separated Tesseract language hints (default: eng)
// - OCR_DPI: dots-per-inch hint for uploaded images (default: 0, unknown)
// - SCAN_CONCURRENCY: max concurrent OCR runs (default: 2)
//
// Matching:
// - MATCH_THRESHOLD: minimum fuzzy-match score in (0,1] (default: 0.6)
//
// Auth:
// - SESSION_TTL_HOURS: session token lifetime (default: 24)
//
// Retention:
// - RETENTION_CRON: schedule for the scan-history sweep (default: 0 3 * * *)
// - RETENTION_DAYS: scan history age limit in days (default: 90)
//
// UI:
// - UI_ENABLED: serve the static UI (default: false)
// - UI_DIR: static UI directory (default: ./web)
//
// Settings:
// - SETTINGS_FILE: runtime settings JSON path (default: DATA_DIR/settings.json)

type Config struct {
	HTTP      HTTPConfig      `json:"http"`
	Storage   StorageConfig   `json:"storage"`
	Catalog   CatalogConfig   `json:"catalog"`
	OCR       OCRConfig       `json:"ocr"`
	Match     MatchConfig     `json:"match"`
	Auth      AuthConfig      `json:"auth"`
	Retention RetentionConfig `json:"retention"`
	UI        UIConfig        `json:"ui"`
}

type HTTPConfig struct {
	Addr           string `json:"addr"`
	MaxUploadBytes int64  `json:"max_upload_bytes"`
}

type StorageConfig struct {
	DataDir string `json:"data_dir"`
}

// DatabasePath returns the sqlite database location inside the data dir.
func (c StorageConfig) DatabasePath() string {
	return filepath.Join(c.DataDir, "labelscan.db")
}

type CatalogConfig struct {
	// File is the YAML catalog path; empty means the embedded default.
	File string `json:"file"`
}

type OCRConfig struct {
	Languages   []string `json:"languages"`
	DPI         int      `json:"dpi"`
	Concurrency int64    `json:"concurrency"`
}

type MatchConfig struct {
	Threshold float64 `json:"threshold"`
}

type AuthConfig struct {
	SessionTTL time.Duration `json:"session_ttl"`
}

type RetentionConfig struct {
	CronExpr string `json:"cron_expr"`
	Days     int    `json:"days"`
}

type UIConfig struct {
	Enabled   bool   `json:"enabled"`
	StaticDir string `json:"static_dir"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// New creates a Config from environment variables and options.
func New(opts ...Option) (*Config, error) {
	_ = godotenv.Load()

	config := &Config{
		HTTP: HTTPConfig{
			Addr:           getEnvString("HTTP_ADDR", ":8080"),
			MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 10<<20)),
		},
		Storage: StorageConfig{
			DataDir: getEnvString("DATA_DIR", "./data"),
		},
		Catalog: CatalogConfig{
			File: getEnvString("CATALOG_FILE", ""),
		},
		OCR: OCRConfig{
			Languages:   splitList(getEnvString("OCR_LANGUAGES", "eng")),
			DPI:         getEnvInt("OCR_DPI", 0),
			Concurrency: int64(getEnvInt("SCAN_CONCURRENCY", 2)),
		},
		Match: MatchConfig{
			Threshold: getEnvFloat("MATCH_THRESHOLD", 0.6),
		},
		Auth: AuthConfig{
			SessionTTL: time.Duration(getEnvInt("SESSION_TTL_HOURS", 24)) * time.Hour,
		},
		Retention: RetentionConfig{
			CronExpr: getEnvString("RETENTION_CRON", "0 3 * * *"),
			Days:     getEnvInt("RETENTION_DAYS", 90),
		},
		UI: UIConfig{
			Enabled:   getEnvBool("UI_ENABLED", false),
			StaticDir: getEnvString("UI_DIR", "./web"),
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

// SettingsFilePath returns where runtime settings are persisted.
func (c *Config) SettingsFilePath() string {
	return getEnvString("SETTINGS_FILE", filepath.Join(c.Storage.DataDir, "settings.json"))
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		return fmt.Errorf("HTTP_ADDR is required")
	}
	if c.HTTP.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if strings.TrimSpace(c.Storage.DataDir) == "" {
		return fmt.Errorf("DATA_DIR is required")
	}
	if len(c.OCR.Languages) == 0 {
		return fmt.Errorf("OCR_LANGUAGES is required")
	}
	if c.OCR.Concurrency <= 0 {
		return fmt.Errorf("SCAN_CONCURRENCY must be positive")
	}
	if c.Match.Threshold <= 0 || c.Match.Threshold > 1 {
		return fmt.Errorf("MATCH_THRESHOLD must be in (0,1]")
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL_HOURS must be positive")
	}
	if _, err := cron.ParseStandard(c.Retention.CronExpr); err != nil {
		return fmt.Errorf("invalid RETENTION_CRON: %w", err)
	}
	if c.Retention.Days <= 0 {
		return fmt.Errorf("RETENTION_DAYS must be positive")
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

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
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

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	ret := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			ret = append(ret, trimmed)
		}
	}
	return ret
}
