// Package persist implements sonora's flat per-purpose data files (player
// state, playlist, scrobbler tokens and not-yet-submitted queues), each its
// own independently inspectable file under the resolved data directory.
// Grounded on original_source/src/project_file.rs's ProjectFileString/
// ProjectFileJson abstraction.
package persist

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/sonora-player/sonora/internal/trackmodel"
)

// StringFile reads and writes a single text file under dataDir.
type StringFile struct {
	dataDir     string
	filename    string
	description string
}

func NewStringFile(dataDir, filename, description string) StringFile {
	return StringFile{dataDir: dataDir, filename: filename, description: description}
}

func (f StringFile) path() string {
	return filepath.Join(f.dataDir, f.filename)
}

func (f StringFile) Load() (string, error) {
	b, err := os.ReadFile(f.path())
	if err != nil {
		return "", errors.Wrapf(err, "cannot read %s", f.description)
	}
	return string(b), nil
}

func (f StringFile) Save(contents string) error {
	if err := os.MkdirAll(f.dataDir, 0o755); err != nil {
		return errors.Wrapf(err, "cannot create directory for %s", f.description)
	}
	if err := os.WriteFile(f.path(), []byte(contents), 0o644); err != nil {
		return errors.Wrapf(err, "cannot write to %s", f.description)
	}
	return nil
}

// JSONFile[T] is a StringFile that marshals/unmarshals its contents as JSON.
type JSONFile[T any] struct {
	file StringFile
}

func NewJSONFile[T any](dataDir, filename, description string) JSONFile[T] {
	return JSONFile[T]{file: NewStringFile(dataDir, filename, description)}
}

func (f JSONFile[T]) Load() (T, error) {
	var zero T
	contents, err := f.file.Load()
	if err != nil {
		return zero, err
	}
	var v T
	if err := json.Unmarshal([]byte(contents), &v); err != nil {
		return zero, errors.Wrapf(err, "cannot parse %s", f.file.description)
	}
	return v, nil
}

func (f JSONFile[T]) Save(v T) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "cannot serialize %s", f.file.description)
	}
	return f.file.Save(string(b))
}

// State is the small bit of player state persisted across runs: the last
// playlist position and volume.
type State struct {
	PlaylistIndex *int    `json:"playlist_index"`
	Volume        float32 `json:"volume"`
}

func DefaultState() State { return State{Volume: 1.0} }

func stateFile(dataDir string) JSONFile[State] {
	return NewJSONFile[State](dataDir, "state.json", "state file")
}

// LoadStateOrDefault returns the persisted State, or DefaultState() if it
// cannot be read (matching the original's log-and-fall-back-to-default
// behavior rather than propagating the error).
func LoadStateOrDefault(dataDir string) State {
	state, err := stateFile(dataDir).Load()
	if err != nil {
		slog.Warn("cannot load state file, using defaults", slog.String("error", err.Error()))
		return DefaultState()
	}
	return state
}

func SaveState(dataDir string, state State) error {
	return stateFile(dataDir).Save(state)
}

func playlistFile(dataDir string) JSONFile[[]trackmodel.Track] {
	return NewJSONFile[[]trackmodel.Track](dataDir, "playlist.json", "playlist")
}

func SavePlaylist(dataDir string, tracks []trackmodel.Track) error {
	return playlistFile(dataDir).Save(tracks)
}

func LoadPlaylist(dataDir string) ([]trackmodel.Track, error) {
	return playlistFile(dataDir).Load()
}
