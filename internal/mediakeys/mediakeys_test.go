package mediakeys

import (
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"

	"github.com/sonora-player/sonora/internal/trackmodel"
)

func TestUsFromDuration(t *testing.T) {
	assert.Equal(t, TimeInUs(1_000_000), usFromDuration(time.Second))
	assert.Equal(t, TimeInUs(500_000), usFromDuration(500*time.Millisecond))
}

func TestPlaybackStatus(t *testing.T) {
	assert.Equal(t, "Playing", playbackStatus(trackmodel.Playing))
	assert.Equal(t, "Paused", playbackStatus(trackmodel.Paused))
	assert.Equal(t, "Stopped", playbackStatus(trackmodel.Stopped))
}

func TestMetadataForNoTrack(t *testing.T) {
	md := metadataFor(trackmodel.Track{}, trackmodel.TrackMeta{})
	assert.Equal(t, dbus.ObjectPath("/org/mpris/MediaPlayer2/TrackList/NoTrack"), md["mpris:trackid"])
	assert.Len(t, md, 1)
}

func TestMetadataForTrack(t *testing.T) {
	track := trackmodel.Track{Filename: "/music/a.flac"}
	meta := trackmodel.TrackMeta{
		Album: "Some Album", Title: "Some Title",
		Artist: "Some Artist", AlbumArtist: "Various",
		Duration: 3 * time.Minute,
	}
	md := metadataFor(track, meta)

	assert.Equal(t, "Some Album", md["xesam:album"])
	assert.Equal(t, "Some Title", md["xesam:title"])
	assert.Equal(t, []string{"Some Artist"}, md["xesam:artist"])
	assert.Equal(t, []string{"Various"}, md["xesam:albumArtist"])
	assert.Equal(t, meta.Duration/time.Microsecond, md["mpris:length"])

	path, ok := md["mpris:trackid"].(dbus.ObjectPath)
	assert.True(t, ok)
	assert.Contains(t, string(path), "/org/sonora/Tracks/")
}

func TestTrackIDStableForSameTrack(t *testing.T) {
	a := trackmodel.Track{Filename: "/music/a.flac", CueStart: time.Second}
	b := trackmodel.Track{Filename: "/music/a.flac", CueStart: time.Second}
	c := trackmodel.Track{Filename: "/music/b.flac", CueStart: time.Second}

	assert.Equal(t, trackID(a), trackID(b))
	assert.NotEqual(t, trackID(a), trackID(c))
}
