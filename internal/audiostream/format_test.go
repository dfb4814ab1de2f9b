package audiostream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatForPath(t *testing.T) {
	assert.Equal(t, MP3, FormatForPath("/music/track.mp3"))
	assert.Equal(t, FLAC, FormatForPath("/music/track.FLAC"))
	assert.Equal(t, Ogg, FormatForPath("/music/track.ogg"))
	assert.Equal(t, Ogg, FormatForPath("/music/track.oga"))
	assert.Equal(t, Unknown, FormatForPath("/music/track.wav"))
	assert.Equal(t, Unknown, FormatForPath("/music/no-extension"))
}

func TestIsPathSupported(t *testing.T) {
	assert.True(t, IsPathSupported("a.mp3"))
	assert.True(t, IsPathSupported("a.flac"))
	assert.False(t, IsPathSupported("a.txt"))
}
