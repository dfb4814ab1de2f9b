// Package trackmodel holds the data types shared by the decode/playback
// pipeline and the playlist navigation state machine.
package trackmodel

import (
	"path/filepath"
	"strings"
	"time"
)

// Track identifies a single playable unit: either a whole audio file or one
// CUE-indexed sub-track within it.
type Track struct {
	// Filename is the path to the underlying audio file on disk.
	Filename string
	// CueStart is the offset within Filename where this track begins.
	// Zero for a non-CUE track.
	CueStart time.Duration
	// CueEnd is the offset within Filename where this track ends, or zero
	// if it runs to the end of the file (the last track on a sheet).
	CueEnd time.Duration
}

// IsCue reports whether this track is a CUE sub-track rather than a whole
// file played start to end.
func (t Track) IsCue() bool {
	return t.CueStart != 0 || t.CueEnd != 0 || strings.EqualFold(filepath.Ext(t.Filename), ".cue")
}

// TrackMeta carries the tag/duration information read from a Track. String
// fields are empty, not absent, when the tag is missing or contains control
// characters.
type TrackMeta struct {
	Artist      string
	Album       string
	AlbumArtist string
	Title       string
	Track       int // 1-based; 0 means unknown
	TrackTotal  int
	Disc        int
	DiscTotal   int
	Year        int
	Duration    time.Duration
}

// HasArtistAndTitle reports whether there is enough metadata to scrobble.
func (m TrackMeta) HasArtistAndTitle() bool {
	return m.Artist != "" && m.Title != ""
}

// Playlist is the ordered, flattened list of tracks the engine navigates.
// Directory grouping for NextDir/PrevDir is derived from Filename, not
// stored separately, matching how tracks were expanded from CLI paths.
type Playlist struct {
	Tracks []Track
}

func (p Playlist) Len() int { return len(p.Tracks) }

func (p Playlist) At(i int) (Track, bool) {
	if i < 0 || i >= len(p.Tracks) {
		return Track{}, false
	}
	return p.Tracks[i], true
}

// PlaybackState is the coarse transport state exposed to UI integrations.
type PlaybackState int

const (
	Stopped PlaybackState = iota
	Playing
	Paused
)

func (s PlaybackState) String() string {
	switch s {
	case Playing:
		return "Playing"
	case Paused:
		return "Paused"
	default:
		return "Stopped"
	}
}

// PositionCallback fires once per track when playback position crosses a
// threshold measured either from the start or from the end of the track.
type PositionCallback struct {
	ID        int
	FromStart bool
	Secs      float64
}

func FromStart(id int, secs float64) PositionCallback {
	return PositionCallback{ID: id, FromStart: true, Secs: secs}
}

func FromEnd(id int, secs float64) PositionCallback {
	return PositionCallback{ID: id, FromStart: false, Secs: secs}
}

// DueAt returns the position within a track of the given duration at which
// this callback should fire, and whether it is reachable at all (an
// end-anchored callback on a too-short track never fires).
func (c PositionCallback) DueAt(trackDuration time.Duration) (time.Duration, bool) {
	if c.FromStart {
		return time.Duration(c.Secs * float64(time.Second)), true
	}
	due := trackDuration - time.Duration(c.Secs*float64(time.Second))
	if due < 0 {
		return 0, false
	}
	return due, true
}
