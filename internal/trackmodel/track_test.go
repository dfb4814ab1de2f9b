package trackmodel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrackIsCue(t *testing.T) {
	assert.False(t, Track{Filename: "a.flac"}.IsCue())
	assert.True(t, Track{Filename: "a.flac", CueStart: time.Second}.IsCue())
	assert.True(t, Track{Filename: "a.flac", CueEnd: time.Second}.IsCue())
}

func TestTrackMetaHasArtistAndTitle(t *testing.T) {
	assert.False(t, TrackMeta{}.HasArtistAndTitle())
	assert.False(t, TrackMeta{Artist: "A"}.HasArtistAndTitle())
	assert.False(t, TrackMeta{Title: "T"}.HasArtistAndTitle())
	assert.True(t, TrackMeta{Artist: "A", Title: "T"}.HasArtistAndTitle())
}

func TestPlaylistLenAndAt(t *testing.T) {
	p := Playlist{Tracks: []Track{{Filename: "a"}, {Filename: "b"}}}
	assert.Equal(t, 2, p.Len())

	tr, ok := p.At(1)
	assert.True(t, ok)
	assert.Equal(t, "b", tr.Filename)

	_, ok = p.At(-1)
	assert.False(t, ok)
	_, ok = p.At(2)
	assert.False(t, ok)
}

func TestPlaybackStateString(t *testing.T) {
	assert.Equal(t, "Stopped", Stopped.String())
	assert.Equal(t, "Playing", Playing.String())
	assert.Equal(t, "Paused", Paused.String())
}

func TestPositionCallbackDueAt(t *testing.T) {
	start := FromStart(0, 5)
	due, ok := start.DueAt(3 * time.Minute)
	assert.True(t, ok)
	assert.Equal(t, 5*time.Second, due)

	end := FromEnd(1, 5)
	due, ok = end.DueAt(time.Minute)
	assert.True(t, ok)
	assert.Equal(t, time.Minute-5*time.Second, due)

	_, ok = end.DueAt(2 * time.Second)
	assert.False(t, ok, "callback anchored to the end cannot fire on a shorter track")
}
