package playlistscan

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCue = `PERFORMER "Some Artist"
TITLE "Some Album"
FILE "album.flac" WAVE
  TRACK 01 AUDIO
    TITLE "First Track"
    INDEX 01 00:00:00
  TRACK 02 AUDIO
    TITLE "Second Track"
    INDEX 01 03:27:37
`

func TestCollectFlattensAndSorts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.mp3"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.mp3"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	playlist, factory, err := Collect([]string{dir})
	require.NoError(t, err)
	require.NotNil(t, factory)
	require.Equal(t, 2, playlist.Len())

	a, _ := playlist.At(0)
	b, _ := playlist.At(1)
	assert.Equal(t, "a.mp3", filepath.Base(a.Filename))
	assert.Equal(t, "b.mp3", filepath.Base(b.Filename))
}

func TestCollectExpandsCueSheetAndDropsSourceFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "album.flac"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "album.cue"), []byte(sampleCue), 0o644))

	playlist, _, err := Collect([]string{dir})
	require.NoError(t, err)
	require.Equal(t, 2, playlist.Len())

	first, _ := playlist.At(0)
	assert.True(t, first.IsCue())
	assert.Equal(t, time.Duration(0), first.CueStart)

	second, _ := playlist.At(1)
	assert.True(t, second.CueStart > first.CueStart)
}

func TestCollectSkipsMissingPaths(t *testing.T) {
	playlist, _, err := Collect([]string{filepath.Join(t.TempDir(), "does-not-exist")})
	require.NoError(t, err)
	assert.Equal(t, 0, playlist.Len())
}

func TestUriToPath(t *testing.T) {
	assert.Equal(t, "/music/a.mp3", uriToPath("file:///music/a.mp3"))
	assert.Equal(t, "/music/a.mp3", uriToPath("/music/a.mp3"))
}
