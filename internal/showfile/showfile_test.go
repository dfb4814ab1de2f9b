package showfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileURLString(t *testing.T) {
	f := &fileURL{path: "/music/Artist/Album/01 Track.flac"}
	assert.Equal(t, "file:///music/Artist/Album/01 Track.flac", f.String())
}
