package listenbrainz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonora-player/sonora/internal/trackmodel"
)

func TestNewWithoutTokenIsNil(t *testing.T) {
	s := New(t.TempDir(), "sonora")
	assert.Nil(t, s)
}

func TestNewLoadsStoredToken(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, tokenFile(dir).Save(" some-token \n"))

	s := New(dir, "sonora")
	require.NotNil(t, s)
	assert.Equal(t, "some-token", s.token)
}

func TestNilSubmitterMethodsAreNoOps(t *testing.T) {
	var s *Submitter
	assert.NotPanics(t, func() {
		s.PlayingNow(trackmodel.TrackMeta{Artist: "A", Title: "T"})
	})
	assert.NotPanics(t, func() {
		s.Submit(trackmodel.TrackMeta{Artist: "A", Title: "T"}, time.Now())
	})
}

func TestBatchCapsAtMaxImport(t *testing.T) {
	s := &Submitter{}
	for i := 0; i < maxImport+5; i++ {
		s.notSubmitted = append(s.notSubmitted, listenItem{Timestamp: int64(i)})
	}

	batch := s.batch()
	assert.Len(t, batch, maxImport)
	assert.Equal(t, int64(5), batch[0].Timestamp)
}

func TestAdditionalInfoCarriesAppName(t *testing.T) {
	s := &Submitter{appName: "sonora"}
	info := s.additionalInfo(3)
	assert.Equal(t, 3, info.TrackNumber)
	assert.Equal(t, "sonora", info.ListeningFrom)
}

func TestAuthenticateRefusesToOverwriteExistingToken(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, tokenFile(dir).Save("existing-token"))

	err := Authenticate(dir)
	assert.Error(t, err)
}
