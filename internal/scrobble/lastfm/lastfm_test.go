package lastfm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonora-player/sonora/internal/trackmodel"
)

func TestNewWithoutCredentialsIsNil(t *testing.T) {
	s := New(t.TempDir(), "", "")
	assert.Nil(t, s)
}

func TestNewWithoutStoredSessionIsNil(t *testing.T) {
	s := New(t.TempDir(), "key", "secret")
	assert.Nil(t, s)
}

func TestNilScrobblerMethodsAreNoOps(t *testing.T) {
	var s *Scrobbler
	assert.NotPanics(t, func() {
		s.PlayingNow(trackmodel.Track{}, trackmodel.TrackMeta{Artist: "A", Title: "T"})
	})
	assert.NotPanics(t, func() {
		s.Scrobble(trackmodel.TrackMeta{Artist: "A", Title: "T"}, time.Now())
	})
}

func TestBatchCapsAtMaxScrobbles(t *testing.T) {
	s := &Scrobbler{}
	for i := 0; i < maxScrobbles+10; i++ {
		s.notScrobbled = append(s.notScrobbled, pendingItem{Timestamp: int64(i)})
	}

	batch := s.batch()
	assert.Len(t, batch, maxScrobbles)
	assert.Equal(t, int64(10), batch[0].Timestamp, "batch keeps the most recent entries")
	assert.Equal(t, int64(maxScrobbles+9), batch[len(batch)-1].Timestamp)
}

func TestBatchUnderLimitReturnsAll(t *testing.T) {
	s := &Scrobbler{notScrobbled: []pendingItem{{Timestamp: 1}, {Timestamp: 2}}}
	assert.Len(t, s.batch(), 2)
}

func TestAuthenticateRequiresCredentials(t *testing.T) {
	err := Authenticate(t.TempDir(), "", "")
	assert.Error(t, err)
}

func TestAuthenticateRefusesToOverwriteExistingSession(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, sessionKeyFile(dir).Save("existing-session-key"))

	err := Authenticate(dir, "key", "secret")
	assert.Error(t, err)
}
