package decoder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSetVolumeClamps(t *testing.T) {
	d := New(1024, 512)
	assert.Equal(t, float32(1), d.SetVolume(2))
	assert.Equal(t, float32(1), d.Volume())
	assert.Equal(t, float32(0), d.SetVolume(-1))
	assert.Equal(t, float32(0), d.Volume())
	assert.Equal(t, float32(0.5), d.SetVolume(0.5))
}

func TestApplyVolume(t *testing.T) {
	assert.Equal(t, float32(0.75), applyVolume(0.75, 1))
	assert.Equal(t, float32(0), applyVolume(0.75, 0))
	assert.Equal(t, float32(0.5), applyVolume(1, 0.5))
}

func TestIsFormatChange(t *testing.T) {
	assert.False(t, isFormatChange(nil, PacketMeta{ChannelsCount: 2, SampleRate: 44100}))

	cur := &PacketMeta{ChannelsCount: 2, SampleRate: 44100}
	assert.False(t, isFormatChange(cur, PacketMeta{ChannelsCount: 2, SampleRate: 44100}))
	assert.True(t, isFormatChange(cur, PacketMeta{ChannelsCount: 1, SampleRate: 44100}))
	assert.True(t, isFormatChange(cur, PacketMeta{ChannelsCount: 2, SampleRate: 48000}))
}

func TestCanReadMore(t *testing.T) {
	d := New(1024, 4)
	assert.True(t, d.canReadMore())
	d.buf.Push([]float32{1, 2, 3, 4, 5})
	assert.False(t, d.canReadMore())
}

func TestPlaybackPositionZeroWithoutPacketMeta(t *testing.T) {
	d := New(1024, 512)
	assert.Equal(t, time.Duration(0), d.PlaybackPosition(), "no packet metadata yet, nothing buffered")
}

func TestStopResetsState(t *testing.T) {
	d := New(1024, 512)
	d.position = 5 * time.Second
	d.framesPlayed = 1000
	d.buf.Push([]float32{1, 2, 3})

	d.Stop()

	assert.Equal(t, time.Duration(0), d.position)
	assert.Equal(t, int64(0), d.framesPlayed)
	assert.Equal(t, 0, d.buf.Len())
	assert.Nil(t, d.TrackMeta)
}
