package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_CreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "console.yaml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr, "default config should be written on first run")
	assert.Equal(t, 2*time.Second, cfg.Backend.PollInterval)
	assert.Equal(t, int64(16*MiB), cfg.MaxFileSize())
	assert.Equal(t, []string{"pdf", "docx", "txt"}, cfg.Upload.AllowedTypes)
	assert.Equal(t, filepath.Join(dir, "data", "staging"), cfg.GetStagingDir())
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "console.yaml")
	content := `
server:
  port: 9100
backend:
  base_url: http://analysis.internal:5000
  poll_interval: 500ms
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "http://analysis.internal:5000", cfg.Backend.BaseURL)
	assert.Equal(t, 500*time.Millisecond, cfg.Backend.PollInterval)
	assert.Equal(t, 30*time.Second, cfg.Backend.RequestTimeout)
	assert.Equal(t, 16, cfg.Upload.MaxFileSizeMB)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "console.yaml")
	dataDir := filepath.Join(dir, "elsewhere")

	t.Setenv("PORT", "9200")
	t.Setenv("BACKEND_URL", "http://override:1234")
	t.Setenv("DATA_DIR", dataDir)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9200, cfg.Server.Port)
	assert.Equal(t, "http://override:1234", cfg.Backend.BaseURL)
	assert.Equal(t, filepath.Join(dataDir, "staging"), cfg.GetStagingDir())
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "server: [unterminated"},
		{"zero poll interval", "backend:\n  poll_interval: 0s\n"},
		{"empty types", "upload:\n  allowed_types: []\n"},
		{"bad port", "server:\n  port: 70000\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "console.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.resolvePaths(dir)

	require.NoError(t, cfg.EnsureDirectories())
	info, err := os.Stat(cfg.GetStagingDir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
