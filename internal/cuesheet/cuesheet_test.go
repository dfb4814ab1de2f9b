package cuesheet

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonora-player/sonora/internal/trackmodel"
)

const sampleCue = `REM GENRE Electronic
REM DATE 2011
REM DISCNUMBER 1
REM TOTALDISCS 1
PERFORMER "Some Artist"
TITLE "Some Album"
FILE "album.flac" WAVE
  TRACK 01 AUDIO
    TITLE "First Track"
    PERFORMER "Some Artist"
    INDEX 01 00:00:00
  TRACK 02 AUDIO
    TITLE "Second Track"
    INDEX 01 03:27:37
`

func writeSheet(t *testing.T, dir string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "album.flac"), []byte("x"), 0o644))
	cuePath := filepath.Join(dir, "album.cue")
	require.NoError(t, os.WriteFile(cuePath, []byte(sampleCue), 0o644))
	return cuePath
}

func TestParse(t *testing.T) {
	dir := t.TempDir()
	cuePath := writeSheet(t, dir)

	sheet, err := Parse(cuePath)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "album.flac"), sheet.SourceFilename)
	assert.Equal(t, []int{1, 2}, sheet.TrackIDs())

	start1, err := sheet.TrackStart(1)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), start1)

	start2, err := sheet.TrackStart(2)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Minute+27*time.Second+37*time.Second/framesPerSecond, start2)

	end2, err := sheet.TrackEnd(2)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), end2, "last track has no fixed end")

	meta1, err := sheet.TrackMeta(1, trackmodel.TrackMeta{Duration: 5 * time.Minute})
	require.NoError(t, err)
	assert.Equal(t, "First Track", meta1.Title)
	assert.Equal(t, "Some Artist", meta1.Artist)
	assert.Equal(t, "Some Album", meta1.Album)
	assert.Equal(t, 2011, meta1.Year)
	assert.Equal(t, 1, meta1.Disc)
}

func TestTrackIndexByPosition(t *testing.T) {
	dir := t.TempDir()
	cuePath := writeSheet(t, dir)
	sheet, err := Parse(cuePath)
	require.NoError(t, err)

	assert.Equal(t, 1, sheet.TrackIndexByPosition(time.Minute))
	assert.Equal(t, 2, sheet.TrackIndexByPosition(4*time.Minute))
}

func TestFactoryMemoizes(t *testing.T) {
	dir := t.TempDir()
	cuePath := writeSheet(t, dir)

	f := NewFactory()
	s1, err := f.GetOrNew(cuePath)
	require.NoError(t, err)
	s2, err := f.GetOrNew(cuePath)
	require.NoError(t, err)
	assert.Same(t, s1, s2)

	nonCue, err := f.GetOrNew(filepath.Join(dir, "album.flac"))
	require.NoError(t, err)
	assert.Nil(t, nonCue)
}
