package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "http://localhost:5000", cfg.BaseURL)
	assert.Equal(t, 3, cfg.CountdownSeconds)
	assert.Equal(t, 10, cfg.RoundEndSeconds)
	assert.Equal(t, time.Second, cfg.AlterationInterval)
	assert.Equal(t, 10*time.Second, cfg.CredentialWait)
	assert.Equal(t, 20, cfg.IconRange)
	assert.Equal(t, "ws://localhost:5000/lobby", cfg.LobbyHubURL())
	assert.Equal(t, "ws://localhost:5000/game", cfg.GameHubURL())
}

func TestLoadFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
base_url: https://game.example.com
hub_base_url: wss://game.example.com
round_end_seconds: 15
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://game.example.com", cfg.BaseURL)
	assert.Equal(t, "wss://game.example.com/lobby", cfg.LobbyHubURL())
	assert.Equal(t, 15, cfg.RoundEndSeconds)
	assert.Equal(t, 3, cfg.CountdownSeconds, "unset key keeps its default")
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("icon_range: 30\n"), 0o600))

	t.Setenv("WG_ICON_RANGE", "40")
	t.Setenv("WG_BASE_URL", "https://env.example.com")
	t.Setenv("WG_COUNTDOWN_SECONDS", "not-a-number")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 40, cfg.IconRange)
	assert.Equal(t, "https://env.example.com", cfg.BaseURL)
	assert.Equal(t, 3, cfg.CountdownSeconds, "bad numeric env value is ignored")
}
