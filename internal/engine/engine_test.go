package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonora-player/sonora/internal/trackmodel"
)

func newTestEngine(tracks []trackmodel.Track) *Engine {
	return &Engine{
		playlist: tracks,
		respCh:   make(chan Response, 16),
	}
}

func TestFetchNextPlaylistIndex(t *testing.T) {
	e := newTestEngine(make([]trackmodel.Track, 3))

	idx, err := e.fetchNextPlaylistIndex(0, false, false)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	idx, err = e.fetchNextPlaylistIndex(1, false, false)
	require.NoError(t, err)
	assert.Equal(t, 2, idx)

	_, err = e.fetchNextPlaylistIndex(2, false, false)
	assert.Error(t, err, "no wrap at the end of the playlist")

	idx, err = e.fetchNextPlaylistIndex(2, true, false)
	require.NoError(t, err)
	assert.Equal(t, 0, idx, "wrap goes back to the start")
}

func TestFetchNextPlaylistIndexEmitsEndedOnlyWhenAsked(t *testing.T) {
	e := newTestEngine(make([]trackmodel.Track, 1))

	_, err := e.fetchNextPlaylistIndex(0, false, true)
	assert.Error(t, err)
	select {
	case resp := <-e.respCh:
		assert.Equal(t, RespPlaylistEnded, resp.Kind)
	default:
		t.Fatal("expected a RespPlaylistEnded response")
	}

	_, err = e.fetchNextPlaylistIndex(0, false, false)
	assert.Error(t, err)
	select {
	case resp := <-e.respCh:
		t.Fatalf("unexpected response %v", resp)
	default:
	}
}

func TestFetchPrevPlaylistIndex(t *testing.T) {
	e := newTestEngine(make([]trackmodel.Track, 3))

	idx, err := e.fetchPrevPlaylistIndex(1, false)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	_, err = e.fetchPrevPlaylistIndex(0, false)
	assert.Error(t, err)

	idx, err = e.fetchPrevPlaylistIndex(0, true)
	require.NoError(t, err)
	assert.Equal(t, 2, idx)
}

func TestDecValidFiles(t *testing.T) {
	n := 2
	require.NoError(t, decValidFiles(&n))
	assert.Equal(t, 1, n)
	require.NoError(t, decValidFiles(&n))
	assert.Equal(t, 0, n)
	assert.Error(t, decValidFiles(&n))
}

func TestSendPlaylistIndexDedupes(t *testing.T) {
	e := newTestEngine([]trackmodel.Track{{Filename: "a"}, {Filename: "b"}})
	e.playlistIndex = 0

	e.sendPlaylistIndex(true)
	select {
	case resp := <-e.respCh:
		assert.Equal(t, RespNewPlaylistIndex, resp.Kind)
		assert.Equal(t, 0, resp.PlaylistIndex)
		assert.True(t, resp.UserNavigation)
	default:
		t.Fatal("expected a response")
	}

	e.sendPlaylistIndex(true)
	select {
	case resp := <-e.respCh:
		t.Fatalf("unexpected duplicate response %v", resp)
	default:
	}

	e.playlistIndex = 1
	e.sendPlaylistIndex(false)
	select {
	case resp := <-e.respCh:
		assert.Equal(t, 1, resp.PlaylistIndex)
		assert.False(t, resp.UserNavigation)
	default:
		t.Fatal("expected a response after the index changed")
	}
}

func TestPlaylistIndexDir(t *testing.T) {
	e := newTestEngine([]trackmodel.Track{
		{Filename: "/music/A/1.flac"},
		{Filename: "/music/B/1.flac"},
	})
	assert.Equal(t, "/music/A", e.playlistIndexDir(0))
	assert.Equal(t, "/music/B", e.playlistIndexDir(1))
}
