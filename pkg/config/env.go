package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variable overrides. KDM_* variables take precedence over
// the YAML file; a .env in the working directory is loaded first without
// clobbering variables already set in the process environment.
const (
	envEnvironment = "KDM_ENVIRONMENT"
	envBrowser     = "KDM_BROWSER"
	envHeadless    = "KDM_HEADLESS"
	envTimeout     = "KDM_TIMEOUT_MS"
	envListURL     = "KDM_LIST_URL"
	envCreator     = "DASHBOARD_CREATOR_NAME"
	envOutputDir   = "DASHBOARD_OUTPUT_DIR"
	envLogLevel    = "KDM_LOG_LEVEL"
)

// LoadDotEnv reads a .env file from the working directory if one exists.
// Missing files are not an error.
func LoadDotEnv() error {
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	return godotenv.Load()
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(envEnvironment); v != "" {
		cfg.Environment = v
	}
	if v := os.Getenv(envBrowser); v != "" {
		cfg.Browser.Kind = v
	}
	if v := os.Getenv(envHeadless); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Browser.Headless = b
		}
	}
	if v := os.Getenv(envTimeout); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Browser.TimeoutMs = n
		}
	}
	if v := os.Getenv(envListURL); v != "" {
		cfg.Dashboard.ListURL = v
	}
	if v := os.Getenv(envCreator); v != "" {
		cfg.Dashboard.CreatorName = v
	}
	if v := os.Getenv(envOutputDir); v != "" {
		cfg.Export.OutputDir = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.Logging.Level = v
	}
}
