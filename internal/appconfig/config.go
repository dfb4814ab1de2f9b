package appconfig

import (
	"os"
	"path/filepath"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// PlayerConfig tunes the decode/mix pipeline.
type PlayerConfig struct {
	BufferSoftStop int           `koanf:"buffer_soft_stop"`
	BufferCapacity int           `koanf:"buffer_capacity"`
	ReadCycleSize  int           `koanf:"read_cycle_size"`
	ThreadSleep    time.Duration `koanf:"thread_sleep"`
	DefaultSeek    time.Duration `koanf:"default_seek"`
}

// ScrobbleConfig toggles and tunes the two scrobblers. Last.fm requires an
// API key/secret pair registered at last.fm/api; the original bakes these
// into the binary at build time, but this build reads them from config so
// no build-time secret injection step is required.
type ScrobbleConfig struct {
	LastfmEnabled       bool          `koanf:"lastfm_enabled"`
	LastfmAPIKey        string        `koanf:"lastfm_api_key"`
	LastfmAPISecret     string        `koanf:"lastfm_api_secret"`
	ListenBrainzEnabled bool          `koanf:"listenbrainz_enabled"`
	MinDurationToSubmit time.Duration `koanf:"min_duration_to_submit"`
}

// HotkeysConfig maps the numeric-keypad layout to engine actions. Keys are
// gohook key names; see internal/hotkeys for the action set.
type HotkeysConfig struct {
	Bindings map[string]string `koanf:"bindings"`
}

// Config is the root of sonora's TOML configuration file.
type Config struct {
	Player   PlayerConfig   `koanf:"player"`
	Scrobble ScrobbleConfig `koanf:"scrobble"`
	Hotkeys  HotkeysConfig  `koanf:"hotkeys"`
}

// Default returns the built-in defaults, grounded on the constants named in
// original_source/src/player.rs and app.rs (buffer sizing, read-cycle size,
// thread sleep, default seek length).
func Default() *Config {
	return &Config{
		Player: PlayerConfig{
			BufferSoftStop: 60000,
			BufferCapacity: 65535,
			ReadCycleSize:  5,
			ThreadSleep:    100 * time.Millisecond,
			DefaultSeek:    5 * time.Second,
		},
		Scrobble: ScrobbleConfig{
			LastfmEnabled:       true,
			ListenBrainzEnabled: true,
			MinDurationToSubmit: 30 * time.Second,
		},
		Hotkeys: HotkeysConfig{
			Bindings: map[string]string{
				"5": "toggle_stop",
				"4": "prev",
				"6": "next",
				"7": "prev_dir",
				"9": "next_dir",
				"0": "pause_toggle",
				"2": "vol_down",
				"8": "vol_up",
				"1": "sysvol_down",
				"3": "sysvol_up",
			},
		},
	}
}

// Load reads "<configDir>/config.toml" over the built-in defaults. A
// missing config file is not an error, matching the teacher's loader.
func Load(configDir string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, errors.Wrap(err, "loading default config")
	}

	tomlPath := filepath.Join(configDir, "config.toml")
	if err := k.Load(file.Provider(tomlPath), toml.Parser()); err != nil {
		if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "loading config file %q", tomlPath)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshalling config")
	}
	return cfg, nil
}
