// Package cuesheet parses CUE sheets describing virtual sub-tracks within a
// single audio file, and resolves the companion source file a sheet
// describes. Grounded on original_source/src/cue.rs; no CUE library in the
// pack exposes sheet-level REM comments, so this is a hand-rolled parser.
package cuesheet

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/sonora-player/sonora/internal/trackmodel"
)

// sourceExtensions lists container extensions CUE sheets may point to.
// Matches original_source's SOURCE_EXTS (FLAC only).
var sourceExtensions = []string{"flac"}

const framesPerSecond = 75

type cueTrack struct {
	id        int
	start     time.Duration
	duration  *time.Duration // nil for the last track: runs to EOF
	title     string
	performer string
}

// Sheet is a parsed CUE file plus its resolved source audio file.
type Sheet struct {
	tracks         []cueTrack
	album          string
	performer      string
	discNumber     int
	discTotal      int
	year           int
	SourceFilename string
}

// IsSupportedFile reports whether filename looks like a CUE sheet by
// extension.
func IsSupportedFile(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".cue")
}

// findSource looks in cueFilename's directory for an audio file matching
// it by stem (case-insensitively) with one of sourceExtensions, mirroring
// CueSheet::find_source.
func findSource(cueFilename string) (string, error) {
	dir := filepath.Dir(cueFilename)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", errors.Wrapf(err, "reading dir %s", dir)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
		supported := false
		for _, se := range sourceExtensions {
			if ext == se {
				supported = true
				break
			}
		}
		if !supported {
			continue
		}
		full := filepath.Join(dir, name)
		candidate := strings.TrimSuffix(full, filepath.Ext(full)) + ".cue"
		if strings.EqualFold(candidate, cueFilename) {
			return full, nil
		}
		if strings.EqualFold(full+".cue", cueFilename) {
			return full, nil
		}
	}
	return "", errors.Errorf("no source file found for %s", cueFilename)
}

var (
	reTrack     = regexp.MustCompile(`(?i)^TRACK\s+(\d+)\s+AUDIO$`)
	reIndex01   = regexp.MustCompile(`(?i)^INDEX\s+01\s+(\d+):(\d+):(\d+)$`)
	reTitle     = regexp.MustCompile(`(?i)^TITLE\s+"?(.*?)"?$`)
	rePerformer = regexp.MustCompile(`(?i)^PERFORMER\s+"?(.*?)"?$`)
	reRem       = regexp.MustCompile(`(?i)^REM\s+(\S+)\s+"?(.*?)"?$`)
)

// Parse reads and parses a CUE sheet, resolving its companion source file.
func Parse(filename string) (*Sheet, error) {
	contents, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", filename)
	}

	source, err := findSource(filename)
	if err != nil {
		return nil, err
	}

	sheet := &Sheet{SourceFilename: source}

	type pendingTrack struct {
		id               int
		title, performer string
		start            *time.Duration
	}
	var pending []pendingTrack
	var cur *pendingTrack

	scanner := bufio.NewScanner(strings.NewReader(string(contents)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if m := reTrack.FindStringSubmatch(line); m != nil {
			id, _ := strconv.Atoi(m[1])
			pending = append(pending, pendingTrack{id: id})
			cur = &pending[len(pending)-1]
			continue
		}
		if m := reIndex01.FindStringSubmatch(line); m != nil && cur != nil {
			mm, _ := strconv.Atoi(m[1])
			ss, _ := strconv.Atoi(m[2])
			ff, _ := strconv.Atoi(m[3])
			d := time.Duration(mm)*time.Minute + time.Duration(ss)*time.Second +
				time.Duration(ff)*time.Second/framesPerSecond
			cur.start = &d
			continue
		}
		if m := reTitle.FindStringSubmatch(line); m != nil {
			if cur != nil {
				cur.title = strings.TrimSpace(m[1])
			} else {
				sheet.album = strings.TrimSpace(m[1])
			}
			continue
		}
		if m := rePerformer.FindStringSubmatch(line); m != nil {
			if cur != nil {
				cur.performer = strings.TrimSpace(m[1])
			} else {
				sheet.performer = strings.TrimSpace(m[1])
			}
			continue
		}
		if m := reRem.FindStringSubmatch(line); m != nil {
			tag := strings.ToUpper(m[1])
			val := strings.TrimSpace(m[2])
			switch tag {
			case "DISCNUMBER":
				sheet.discNumber, _ = strconv.Atoi(val)
			case "TOTALDISCS":
				sheet.discTotal, _ = strconv.Atoi(val)
			case "DATE":
				sheet.year, _ = strconv.Atoi(val)
			}
			continue
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "scanning %s", filename)
	}

	if len(pending) == 0 {
		return nil, errors.Errorf("no tracks found in CUE file: %s", filename)
	}

	for i, p := range pending {
		if p.start == nil {
			return nil, errors.Errorf("cannot detect the start of track %d", p.id)
		}
		var duration *time.Duration
		if i+1 < len(pending) {
			next := *pending[i+1].start
			d := next - *p.start
			if d <= 0 {
				return nil, errors.Errorf("track %d has zero length", p.id)
			}
			duration = &d
		}
		sheet.tracks = append(sheet.tracks, cueTrack{
			id:        p.id,
			start:     *p.start,
			duration:  duration,
			title:     p.title,
			performer: p.performer,
		})
	}

	return sheet, nil
}

func (s *Sheet) track(id int) (*cueTrack, error) {
	for i := range s.tracks {
		if s.tracks[i].id == id {
			return &s.tracks[i], nil
		}
	}
	return nil, errors.Errorf("trying to get out-of-bounds track %d", id)
}

// TrackIDs returns the 1-based CUE track numbers in order.
func (s *Sheet) TrackIDs() []int {
	ids := make([]int, len(s.tracks))
	for i, t := range s.tracks {
		ids[i] = t.id
	}
	return ids
}

// TrackStart returns the start offset of the given track within the source
// file.
func (s *Sheet) TrackStart(id int) (time.Duration, error) {
	t, err := s.track(id)
	if err != nil {
		return 0, err
	}
	return t.start, nil
}

// TrackEnd returns the end offset of the given track, or zero if it runs to
// EOF (the last track on the sheet).
func (s *Sheet) TrackEnd(id int) (time.Duration, error) {
	t, err := s.track(id)
	if err != nil {
		return 0, err
	}
	if t.duration == nil {
		return 0, nil
	}
	return t.start + *t.duration, nil
}

// TrackIndexByPosition returns the track id that contains position within
// the source file.
func (s *Sheet) TrackIndexByPosition(position time.Duration) int {
	for i := len(s.tracks) - 1; i >= 0; i-- {
		if position >= s.tracks[i].start {
			return s.tracks[i].id
		}
	}
	return s.tracks[0].id
}

// TrackMeta combines the sheet's per-track and album-level tags with the
// decoded source file's own metadata, which supplies duration fallback and
// any field the sheet leaves blank.
func (s *Sheet) TrackMeta(id int, fileMeta trackmodel.TrackMeta) (trackmodel.TrackMeta, error) {
	t, err := s.track(id)
	if err != nil {
		return trackmodel.TrackMeta{}, err
	}

	duration := fileMeta.Duration - t.start
	if t.duration != nil {
		duration = *t.duration
	}

	meta := trackmodel.TrackMeta{
		Duration:   duration,
		Album:      firstNonEmpty(s.album, fileMeta.Album),
		Title:      firstNonEmpty(t.title, fileMeta.Title),
		Artist:     firstNonEmpty(t.performer, s.performer, fileMeta.Artist),
		Disc:       firstNonZero(s.discNumber, fileMeta.Disc),
		DiscTotal:  firstNonZero(s.discTotal, fileMeta.DiscTotal),
		Year:       firstNonZero(s.year, fileMeta.Year),
		Track:      t.id,
		TrackTotal: len(s.tracks),
	}
	return meta, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonZero(vals ...int) int {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}

// Factory memoizes parsed sheets by CUE filename, matching CueFactory's
// "parse once, fan out to every sub-track" lifecycle.
type Factory struct {
	mu     sync.Mutex
	sheets map[string]*Sheet
}

func NewFactory() *Factory {
	return &Factory{sheets: make(map[string]*Sheet)}
}

// GetOrNew returns the cached Sheet for filename, parsing it on first use.
// Returns (nil, nil) if filename is not a CUE file.
func (f *Factory) GetOrNew(filename string) (*Sheet, error) {
	if !IsSupportedFile(filename) {
		return nil, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if sheet, ok := f.sheets[filename]; ok {
		return sheet, nil
	}

	sheet, err := Parse(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "reading CUE sheet %s", filename)
	}
	f.sheets[filename] = sheet
	return sheet, nil
}

// Clear drops every cached sheet.
func (f *Factory) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sheets = make(map[string]*Sheet)
}

// Sheets returns every sheet parsed so far.
func (f *Factory) Sheets() []*Sheet {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Sheet, 0, len(f.sheets))
	for _, s := range f.sheets {
		out = append(out, s)
	}
	return out
}
