package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "chromium", cfg.Browser.Kind)
	assert.Equal(t, "https://dataexplorer.azure.com/dashboards", cfg.Dashboard.BaseURL)
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kustodash.yaml")
	content := `
environment: staging
browser:
  kind: firefox
  headless: true
  timeout_ms: 45000
dashboard:
  creator_name: Alice
retry:
  max_attempts: 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, "firefox", cfg.Browser.Kind)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 45000, cfg.Browser.TimeoutMs)
	assert.Equal(t, "Alice", cfg.Dashboard.CreatorName)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)

	// Untouched sections keep their defaults.
	assert.Equal(t, "Additional options", cfg.Export.OptionsLabel)
	assert.Equal(t, 500, cfg.Retry.InitialDelayMs)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("browser: [not a map"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kustodash.yaml")
	require.NoError(t, os.WriteFile(path, []byte("browser:\n  kind: firefox\n  timeout_ms: 30000\n"), 0644))

	t.Setenv(envBrowser, "webkit")
	t.Setenv(envCreator, "Bob")
	t.Setenv(envHeadless, "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "webkit", cfg.Browser.Kind)
	assert.Equal(t, "Bob", cfg.Dashboard.CreatorName)
	assert.True(t, cfg.Browser.Headless)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "unsupported browser kind",
			mutate:  func(c *Config) { c.Browser.Kind = "edge" },
			wantErr: "invalid browser kind",
		},
		{
			name:    "timeout below floor",
			mutate:  func(c *Config) { c.Browser.TimeoutMs = 500 },
			wantErr: "at least 1000ms",
		},
		{
			name:    "unknown environment",
			mutate:  func(c *Config) { c.Environment = "sandbox" },
			wantErr: "invalid environment",
		},
		{
			name:    "zero retry attempts",
			mutate:  func(c *Config) { c.Retry.MaxAttempts = 0 },
			wantErr: "max_attempts",
		},
		{
			name:    "flat backoff",
			mutate:  func(c *Config) { c.Retry.BackoffMultiplier = 1.0 },
			wantErr: "backoff_multiplier",
		},
		{
			name:    "empty output dir",
			mutate:  func(c *Config) { c.Export.OutputDir = "" },
			wantErr: "output_dir",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSingleAttemptSkipsBackoffCheck(t *testing.T) {
	cfg := Default()
	cfg.Retry.MaxAttempts = 1
	cfg.Retry.BackoffMultiplier = 0
	assert.NoError(t, cfg.Validate())
}

func TestListURLFallback(t *testing.T) {
	cfg := Default()
	assert.Equal(t, cfg.Dashboard.BaseURL, cfg.ListURL())

	cfg.Dashboard.ListURL = "https://dataexplorer.azure.com/dashboards?tenant=x"
	assert.Equal(t, "https://dataexplorer.azure.com/dashboards?tenant=x", cfg.ListURL())
}

func TestRetryPolicyConversion(t *testing.T) {
	cfg := Default()
	policy := cfg.RetryPolicy()

	assert.Equal(t, 3, policy.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, policy.InitialDelay)
	assert.Equal(t, 2.0, policy.BackoffMultiplier)
}

func TestLoadDotEnv_MissingFileIsFine(t *testing.T) {
	t.Chdir(t.TempDir())
	assert.NoError(t, LoadDotEnv())
}
