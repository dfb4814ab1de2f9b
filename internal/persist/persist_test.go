package persist

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonora-player/sonora/internal/trackmodel"
)

func TestStringFileSaveLoad(t *testing.T) {
	dir := t.TempDir()
	f := NewStringFile(dir, "greeting.txt", "greeting")

	require.NoError(t, f.Save("hello"))

	got, err := f.Load()
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
	assert.FileExists(t, filepath.Join(dir, "greeting.txt"))
}

func TestStringFileLoadMissing(t *testing.T) {
	dir := t.TempDir()
	f := NewStringFile(dir, "missing.txt", "missing file")

	_, err := f.Load()
	assert.Error(t, err)
}

func TestJSONFileSaveLoad(t *testing.T) {
	dir := t.TempDir()
	f := NewJSONFile[State](dir, "state.json", "state file")

	idx := 3
	require.NoError(t, f.Save(State{PlaylistIndex: &idx, Volume: 0.5}))

	got, err := f.Load()
	require.NoError(t, err)
	require.NotNil(t, got.PlaylistIndex)
	assert.Equal(t, 3, *got.PlaylistIndex)
	assert.Equal(t, float32(0.5), got.Volume)
}

func TestLoadStateOrDefaultMissing(t *testing.T) {
	dir := t.TempDir()
	got := LoadStateOrDefault(dir)
	assert.Equal(t, DefaultState(), got)
}

func TestSaveLoadState(t *testing.T) {
	dir := t.TempDir()
	idx := 7
	require.NoError(t, SaveState(dir, State{PlaylistIndex: &idx, Volume: 0.42}))

	got := LoadStateOrDefault(dir)
	require.NotNil(t, got.PlaylistIndex)
	assert.Equal(t, 7, *got.PlaylistIndex)
	assert.Equal(t, float32(0.42), got.Volume)
}

func TestSaveLoadPlaylist(t *testing.T) {
	dir := t.TempDir()
	tracks := []trackmodel.Track{
		{Filename: "/music/a.flac"},
		{Filename: "/music/album.flac", CueStart: 0, CueEnd: 100},
	}
	require.NoError(t, SavePlaylist(dir, tracks))

	got, err := LoadPlaylist(dir)
	require.NoError(t, err)
	assert.Equal(t, tracks, got)
}
