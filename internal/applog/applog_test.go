package applog

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorNil(t *testing.T) {
	assert.Equal(t, "", Error(nil).Key)
}

func TestErrorFormatsMessage(t *testing.T) {
	attr := Error(errors.New("boom"))
	assert.Equal(t, "error", attr.Key)
	assert.Contains(t, attr.Value.String(), "boom")
}

// TestInit is the only test in the package that calls Init, since it is
// memoized process-wide behind a sync.Once.
func TestInit(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, Init(dir))
	assert.FileExists(t, filepath.Join(dir, "sonora.log"))
}
