// Package appconfig resolves sonora's on-disk layout (config, state, data,
// cache directories) and loads its TOML configuration file.
package appconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/adrg/xdg"
)

const appDirName = "sonora"

// Paths is the resolved set of per-user directories sonora writes to,
// following XDG base directories, with a "portable mode" override via
// SONORA_ROOT matching the teacher's MUSICFOX_ROOT escape hatch.
type Paths struct {
	ConfigDir string
	DataDir   string
	StateDir  string
	CacheDir  string
}

var (
	resolved Paths
	once     sync.Once
)

// Resolve computes (and creates) the directory layout. Safe to call more
// than once.
func Resolve() Paths {
	once.Do(func() {
		if root := os.Getenv("SONORA_ROOT"); root != "" {
			absRoot, err := filepath.Abs(root)
			if err != nil {
				panic(fmt.Sprintf("cannot resolve SONORA_ROOT: %v", err))
			}
			resolved = Paths{
				ConfigDir: absRoot,
				DataDir:   filepath.Join(absRoot, "data"),
				StateDir:  absRoot,
				CacheDir:  filepath.Join(absRoot, "cache"),
			}
		} else {
			configDir, err := xdg.ConfigFile(appDirName)
			if err != nil {
				panic(fmt.Sprintf("cannot resolve config dir: %v", err))
			}
			resolved = Paths{
				ConfigDir: configDir,
				DataDir:   filepath.Join(xdg.DataHome, appDirName),
				StateDir:  filepath.Join(xdg.StateHome, appDirName),
				CacheDir:  filepath.Join(xdg.CacheHome, appDirName),
			}
		}
		for _, d := range []string{resolved.ConfigDir, resolved.DataDir, resolved.StateDir, resolved.CacheDir} {
			_ = os.MkdirAll(d, 0o755)
		}
	})
	return resolved
}
