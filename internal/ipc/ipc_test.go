package ipc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Paths      []string `json:"paths"`
	CurrentDir string   `json:"current_dir"`
}

func uniqueName(t *testing.T) string {
	return "sonora-test-" + t.Name()
}

func TestNewFirstInstanceBecomesOwner(t *testing.T) {
	name := uniqueName(t)
	s, isOwner, err := New[payload](name, nil)
	require.NoError(t, err)
	require.True(t, isOwner)
	require.NotNil(t, s)
	t.Cleanup(s.Close)
}

func TestSecondInstanceHandsOffPayload(t *testing.T) {
	name := uniqueName(t)

	owner, isOwner, err := New[payload](name, nil)
	require.NoError(t, err)
	require.True(t, isOwner)
	t.Cleanup(owner.Close)

	received := make(chan payload, 1)
	require.NoError(t, owner.Listen(func(p payload) { received <- p }))

	sent := &payload{Paths: []string{"/music/a.flac"}, CurrentDir: "/music"}
	s, isOwner, err := New[payload](name, sent)
	require.NoError(t, err)
	assert.False(t, isOwner)
	assert.Nil(t, s)

	select {
	case got := <-received:
		assert.Equal(t, *sent, got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for handed-off payload")
	}
}

func TestCloseReleasesNameForNextOwner(t *testing.T) {
	name := uniqueName(t)

	first, isOwner, err := New[payload](name, nil)
	require.NoError(t, err)
	require.True(t, isOwner)
	first.Close()

	second, isOwner, err := New[payload](name, nil)
	require.NoError(t, err)
	require.True(t, isOwner)
	t.Cleanup(second.Close)
}
