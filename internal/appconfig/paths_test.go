package appconfig

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestResolveWithSonoraRoot is the only test in the package that calls
// Resolve, since the result is memoized process-wide behind a sync.Once.
func TestResolveWithSonoraRoot(t *testing.T) {
	root := t.TempDir()
	t.Setenv("SONORA_ROOT", root)

	paths := Resolve()

	absRoot, err := filepath.Abs(root)
	assert.NoError(t, err)
	assert.Equal(t, absRoot, paths.ConfigDir)
	assert.Equal(t, absRoot, paths.StateDir)
	assert.Equal(t, filepath.Join(absRoot, "data"), paths.DataDir)
	assert.Equal(t, filepath.Join(absRoot, "cache"), paths.CacheDir)

	assert.DirExists(t, paths.DataDir)
	assert.DirExists(t, paths.CacheDir)
}
