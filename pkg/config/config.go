// Package config loads and validates kustodash configuration. Precedence
// is defaults, then an optional YAML file, then environment variables
// (including a .env file in the working directory).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/entrhq/kustodash/pkg/mcptool"
)

// Config is the full tool configuration. Loaded and validated once at
// startup; treated as read-only afterwards.
type Config struct {
	Environment string          `yaml:"environment"`
	Browser     BrowserConfig   `yaml:"browser"`
	Dashboard   DashboardConfig `yaml:"dashboard"`
	Export      ExportConfig    `yaml:"export"`
	Import      ImportConfig    `yaml:"import"`
	Retry       RetryConfig     `yaml:"retry"`
	Logging     LoggingConfig   `yaml:"logging"`
}

// BrowserConfig selects the browser the remote tool server launches.
type BrowserConfig struct {
	Kind        string `yaml:"kind"`
	Headless    bool   `yaml:"headless"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	ProfilePath string `yaml:"profile_path"`
}

// DashboardConfig points at the dashboard service being automated.
type DashboardConfig struct {
	// BaseURL is the dashboards root; ListURL defaults to it.
	BaseURL string `yaml:"base_url"`
	ListURL string `yaml:"list_url"`

	// CreatorName restricts bulk export to dashboards by this creator.
	// Required for export-all so other users' dashboards are never
	// touched by accident.
	CreatorName string `yaml:"creator_name"`
}

// ExportConfig controls the bulk export loop.
type ExportConfig struct {
	OutputDir    string `yaml:"output_dir"`
	DownloadsDir string `yaml:"downloads_dir"`

	// DownloadPattern is a glob matched against candidate files in
	// DownloadsDir when locating a just-triggered download.
	DownloadPattern   string `yaml:"download_pattern"`
	DownloadWindowSec int    `yaml:"download_window_sec"`

	// ListReadyMarker is text whose appearance signals the async
	// dashboard list has finished rendering. A snapshot taken before it
	// appears sees an empty grid.
	ListReadyMarker string `yaml:"list_ready_marker"`

	OptionsLabel  string `yaml:"options_label"`
	DownloadLabel string `yaml:"download_label"`
}

// ImportConfig holds the UI labels the import flow clicks through.
type ImportConfig struct {
	ImportLabel     string `yaml:"import_label"`
	DefinitionLabel string `yaml:"definition_label"`
	SubmitLabel     string `yaml:"submit_label"`
	ConflictMarker  string `yaml:"conflict_marker"`
	OverwriteLabel  string `yaml:"overwrite_label"`
	SuccessMarker   string `yaml:"success_marker"`
}

// RetryConfig mirrors mcptool.RetryPolicy in file-friendly units.
type RetryConfig struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialDelayMs    int     `yaml:"initial_delay_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
}

// LoggingConfig controls the per-run log file.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
}

var validEnvironments = []string{"development", "staging", "production", "test"}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Environment: "production",
		Browser: BrowserConfig{
			Kind:      "chromium",
			Headless:  false,
			TimeoutMs: 30000,
		},
		Dashboard: DashboardConfig{
			BaseURL: "https://dataexplorer.azure.com/dashboards",
		},
		Export: ExportConfig{
			OutputDir:         "exports",
			DownloadsDir:      defaultDownloadsDir(),
			DownloadPattern:   "*.json",
			DownloadWindowSec: 30,
			ListReadyMarker:   "Dashboards",
			OptionsLabel:      "Additional options",
			DownloadLabel:     "Download",
		},
		Import: ImportConfig{
			ImportLabel:     "Import dashboard",
			DefinitionLabel: "Dashboard definition",
			SubmitLabel:     "Create",
			ConflictMarker:  "already exists",
			OverwriteLabel:  "Overwrite",
			SuccessMarker:   "Dashboard created",
		},
		Retry: RetryConfig{
			MaxAttempts:       3,
			InitialDelayMs:    500,
			BackoffMultiplier: 2.0,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "INFO",
		},
	}
}

// Load builds the effective configuration: defaults, overlaid with the
// YAML file at path (if non-empty), overlaid with environment variables.
// The result is validated before it is returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks for values that would make a run fail in confusing
// ways later.
func (c *Config) Validate() error {
	switch c.Browser.Kind {
	case "chromium", "firefox", "webkit":
	default:
		return fmt.Errorf("invalid browser kind %q (must be chromium, firefox, or webkit)", c.Browser.Kind)
	}

	if c.Browser.TimeoutMs < 1000 {
		return fmt.Errorf("browser timeout must be at least 1000ms, got %d", c.Browser.TimeoutMs)
	}

	validEnv := false
	for _, env := range validEnvironments {
		if c.Environment == env {
			validEnv = true
			break
		}
	}
	if !validEnv {
		return fmt.Errorf("invalid environment %q (must be one of %v)", c.Environment, validEnvironments)
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.MaxAttempts > 1 && c.Retry.BackoffMultiplier <= 1.0 {
		return fmt.Errorf("retry backoff_multiplier must be greater than 1.0, got %v", c.Retry.BackoffMultiplier)
	}
	if c.Export.DownloadWindowSec < 1 {
		return fmt.Errorf("export download_window_sec must be at least 1, got %d", c.Export.DownloadWindowSec)
	}

	if c.Export.OutputDir == "" {
		return fmt.Errorf("export output_dir must not be empty")
	}

	return nil
}

// ListURL returns the dashboards list URL, falling back to the base URL.
func (c *Config) ListURL() string {
	if c.Dashboard.ListURL != "" {
		return c.Dashboard.ListURL
	}
	return c.Dashboard.BaseURL
}

// RetryPolicy converts the retry section to the invoker's policy type.
func (c *Config) RetryPolicy() mcptool.RetryPolicy {
	return mcptool.RetryPolicy{
		MaxAttempts:       c.Retry.MaxAttempts,
		InitialDelay:      time.Duration(c.Retry.InitialDelayMs) * time.Millisecond,
		BackoffMultiplier: c.Retry.BackoffMultiplier,
	}
}

// DownloadWindow returns the bounded window for locating a triggered
// download in the downloads directory.
func (c *Config) DownloadWindow() time.Duration {
	return time.Duration(c.Export.DownloadWindowSec) * time.Second
}

func defaultDownloadsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "Downloads"
	}
	return filepath.Join(home, "Downloads")
}
