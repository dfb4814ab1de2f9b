// Package playlistscan expands CLI/IPC paths into a flattened, sorted
// Playlist, splitting CUE sheets into their sub-tracks. Grounded on
// original_source/src/playlist_man.rs's collect_tracks.
package playlistscan

import (
	"net/url"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/sonora-player/sonora/internal/audiostream"
	"github.com/sonora-player/sonora/internal/cuesheet"
	"github.com/sonora-player/sonora/internal/trackmodel"

	"io/fs"
	"os"
)

// uriToPath converts a file:// URI (as media-key/IPC callers may hand us)
// to a plain filesystem path; any other string is returned unchanged.
func uriToPath(s string) string {
	if !strings.HasPrefix(s, "file://") {
		return s
	}
	u, err := url.Parse(s)
	if err != nil {
		return s
	}
	if p := u.Path; p != "" {
		return p
	}
	return s
}

// Collect walks paths (files or directories, possibly file:// URIs),
// resolving supported audio files and CUE sheets into a flattened,
// sorted Playlist (case-insensitive lexicographic order). It returns the CueFactory used to parse any
// CUE sheets found, so the engine can reuse the same parsed sheets.
func Collect(paths []string) (trackmodel.Playlist, *cuesheet.Factory, error) {
	factory := cuesheet.NewFactory()
	var tracks []trackmodel.Track

	for _, raw := range paths {
		root := uriToPath(raw)
		walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // skip unreadable entries, matching the original's filter_map
			}
			if d.IsDir() {
				return nil
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return nil
			}

			if audiostream.IsPathSupported(abs) {
				tracks = append(tracks, trackmodel.Track{Filename: abs})
				return nil
			}

			sheet, err := factory.GetOrNew(abs)
			if err != nil || sheet == nil {
				return nil
			}
			for _, id := range sheet.TrackIDs() {
				start, err := sheet.TrackStart(id)
				if err != nil {
					continue
				}
				end, _ := sheet.TrackEnd(id)
				tracks = append(tracks, trackmodel.Track{
					Filename: abs,
					CueStart: start,
					CueEnd:   end,
				})
			}
			return nil
		})
		if walkErr != nil && !os.IsNotExist(walkErr) {
			return trackmodel.Playlist{}, nil, errors.Wrapf(walkErr, "scanning %s", root)
		}
	}

	sourceFilenames := make(map[string]bool)
	for _, sheet := range factory.Sheets() {
		sourceFilenames[sheet.SourceFilename] = true
	}
	filtered := tracks[:0]
	for _, t := range tracks {
		if !t.IsCue() && sourceFilenames[t.Filename] {
			continue
		}
		filtered = append(filtered, t)
	}
	tracks = filtered

	sort.SliceStable(tracks, func(i, j int) bool {
		a, b := strings.ToUpper(tracks[i].Filename), strings.ToUpper(tracks[j].Filename)
		if a != b {
			return a < b
		}
		return tracks[i].CueStart < tracks[j].CueStart
	})

	return trackmodel.Playlist{Tracks: tracks}, factory, nil
}
