package appconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	toml := `
[player]
buffer_soft_stop = 1000

[scrobble]
lastfm_enabled = false
lastfm_api_key = "some-key"

[hotkeys.bindings]
"5" = "toggle_stop"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(toml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Player.BufferSoftStop)
	assert.Equal(t, Default().Player.BufferCapacity, cfg.Player.BufferCapacity, "fields absent from the file keep their default")
	assert.False(t, cfg.Scrobble.LastfmEnabled)
	assert.Equal(t, "some-key", cfg.Scrobble.LastfmAPIKey)
	assert.Equal(t, map[string]string{"5": "toggle_stop"}, cfg.Hotkeys.Bindings)
}

func TestDefaultValues(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 100*time.Millisecond, cfg.Player.ThreadSleep)
	assert.Equal(t, 5*time.Second, cfg.Player.DefaultSeek)
	assert.True(t, cfg.Scrobble.LastfmEnabled)
	assert.True(t, cfg.Scrobble.ListenBrainzEnabled)
	assert.Equal(t, "toggle_stop", cfg.Hotkeys.Bindings["5"])
}
