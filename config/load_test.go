package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, 30, cfg.ClubHub.TimeoutSeconds)
	assert.Equal(t, 200, cfg.ClubHub.PageSize)
	assert.Equal(t, 250, cfg.Checkin.PaceDelayMillis)
	assert.Equal(t, 10, cfg.Checkin.ProgressWriteInterval)
	assert.NotEmpty(t, cfg.Database.Path)
}

func TestLoadIsCached(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	first, err := Load()
	require.NoError(t, err)
	second, err := Load()
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[database]
path = "/tmp/rollcall-test.db"

[server]
port = 9901

[clubhub]
base_url = "https://clubhub.example.com"
club_id = 12
door_id = 4

[checkin]
pace_delay_millis = 0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/rollcall-test.db", cfg.Database.Path)
	assert.Equal(t, 9901, cfg.Server.Port)
	assert.Equal(t, "https://clubhub.example.com", cfg.ClubHub.BaseURL)
	assert.Equal(t, 12, cfg.ClubHub.ClubID)
	assert.Equal(t, 4, cfg.ClubHub.DoorID)
	assert.Equal(t, 0, cfg.Checkin.PaceDelayMillis)

	// Keys absent from the file fall back to defaults
	assert.Equal(t, 200, cfg.ClubHub.PageSize)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
