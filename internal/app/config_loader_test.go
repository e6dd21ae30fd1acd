package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/ytfetch-go/internal/domain"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9000
download:
  output_dir: /srv/media
  timeout: 5m
  prefetch_title: true
  audio_quality: 320K
tools:
  refresh: missing
  bin_dir: /srv/bin
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, config.Server.Port)
	assert.Equal(t, "/srv/media", config.Download.OutputDir)
	assert.Equal(t, 5*time.Minute, config.Download.Timeout)
	assert.True(t, config.Download.PrefetchTitle)
	assert.Equal(t, "320K", config.Download.AudioQuality)
	assert.Equal(t, domain.RefreshMissing, config.Tools.Refresh)
	assert.Equal(t, "/srv/bin", config.Tools.BinDir)

	// untouched keys keep their defaults
	assert.Equal(t, 2*time.Minute, config.Download.TitleTimeout)
	assert.Equal(t, domain.ToolDownloader, config.Tools.Downloader)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: 9000\n")
	t.Setenv("YTFETCH_SERVER_PORT", "9100")
	t.Setenv("YTFETCH_DOWNLOAD_CONCURRENT_LIMIT", "4")

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, config.Server.Port)
	assert.Equal(t, 4, config.Download.ConcurrentLimit)
}

func TestLoadConfig_ExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := writeConfigFile(t, "download:\n  output_dir: ~/Videos\n")

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "Videos"), config.Download.OutputDir)
	assert.Equal(t, filepath.Join(home, ".ytfetch", "bin"), config.Tools.BinDir)
	assert.Equal(t, filepath.Join(home, ".ytfetch", "history.db"), config.History.DatabasePath)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"port", "server:\n  port: 70000\n"},
		{"concurrency", "download:\n  concurrent_limit: 0\n"},
		{"refresh policy", "tools:\n  refresh: sometimes\n"},
		{"timeout", "download:\n  timeout: 0s\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfigFile(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	config := domain.DefaultConfig()
	config.Server.Port = 9200
	config.Download.OutputDir = "/srv/media"
	config.Download.Timeout = 7 * time.Minute
	config.Tools.Refresh = domain.RefreshMissing

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, SaveConfig(config, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "output_dir: /srv/media")

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9200, loaded.Server.Port)
	assert.Equal(t, "/srv/media", loaded.Download.OutputDir)
	assert.Equal(t, 7*time.Minute, loaded.Download.Timeout)
	assert.Equal(t, domain.RefreshMissing, loaded.Tools.Refresh)
}
