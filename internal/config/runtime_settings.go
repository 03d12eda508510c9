package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
)

// RuntimeSettings are the knobs that can change without a restart, persisted
// to a JSON file and editable through the settings API.
type RuntimeSettings struct {
	MatchThreshold float64  `json:"match_threshold"`
	OCRLanguages   []string `json:"ocr_languages"`
	RetentionCron  string   `json:"retention_cron"`
	RetentionDays  int      `json:"retention_days"`
}

func (s RuntimeSettings) Validate() error {
	if s.MatchThreshold <= 0 || s.MatchThreshold > 1 {
		return fmt.Errorf("match_threshold must be in (0,1]")
	}
	if len(s.OCRLanguages) == 0 {
		return fmt.Errorf("ocr_languages is required")
	}
	for _, lang := range s.OCRLanguages {
		if strings.TrimSpace(lang) == "" {
			return fmt.Errorf("ocr_languages contains an empty entry")
		}
	}
	if strings.TrimSpace(s.RetentionCron) == "" {
		return fmt.Errorf("retention_cron is required")
	}
	if _, err := cron.ParseStandard(s.RetentionCron); err != nil {
		return fmt.Errorf("invalid retention_cron: %w", err)
	}
	if s.RetentionDays <= 0 {
		return fmt.Errorf("retention_days must be positive")
	}
	return nil
}

// RuntimeSettings derives the initial runtime settings from the config.
func (c *Config) RuntimeSettings() RuntimeSettings {
	return RuntimeSettings{
		MatchThreshold: c.Match.Threshold,
		OCRLanguages:   c.OCR.Languages,
		RetentionCron:  c.Retention.CronExpr,
		RetentionDays:  c.Retention.Days,
	}
}

// WithRuntimeSettings overlays persisted runtime settings onto a Config.
func WithRuntimeSettings(settings RuntimeSettings) Option {
	return func(c *Config) {
		if settings.MatchThreshold > 0 && settings.MatchThreshold <= 1 {
			c.Match.Threshold = settings.MatchThreshold
		}
		if len(settings.OCRLanguages) > 0 {
			c.OCR.Languages = settings.OCRLanguages
		}
		if strings.TrimSpace(settings.RetentionCron) != "" {
			c.Retention.CronExpr = settings.RetentionCron
		}
		if settings.RetentionDays > 0 {
			c.Retention.Days = settings.RetentionDays
		}
	}
}

func LoadRuntimeSettingsFile(path string) (RuntimeSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuntimeSettings{}, err
	}
	var settings RuntimeSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return RuntimeSettings{}, fmt.Errorf("invalid settings file: %w", err)
	}
	return settings, nil
}

func WriteRuntimeSettingsFile(path string, settings RuntimeSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	content, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	content = append(content, '\n')

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// RuntimeSettingsStore keeps the current settings in memory and persists
// updates to disk.
type RuntimeSettingsStore struct {
	path string

	mu      sync.RWMutex
	current RuntimeSettings
}

func NewRuntimeSettingsStore(path string, initial RuntimeSettings) (*RuntimeSettingsStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("settings file path is required")
	}
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	return &RuntimeSettingsStore{
		path:    path,
		current: initial,
	}, nil
}

func (s *RuntimeSettingsStore) GetRuntimeSettings() (RuntimeSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, nil
}

func (s *RuntimeSettingsStore) UpdateRuntimeSettings(next RuntimeSettings) (RuntimeSettings, error) {
	if err := next.Validate(); err != nil {
		return RuntimeSettings{}, err
	}
	if err := WriteRuntimeSettingsFile(s.path, next); err != nil {
		return RuntimeSettings{}, err
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	return next, nil
}
