package audiostream

import (
	"io"
	"os"
	"unicode"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/flac"
	"github.com/gopxl/beep/minimp3"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/vorbis"
	"github.com/pkg/errors"
	minimp3pkg "github.com/tosone/minimp3"

	"github.com/sonora-player/sonora/internal/trackmodel"

	"github.com/simonhull/audiometa"
)

// Decode opens path's audio content as a seekable beep.Streamer, dispatching
// on container extension the way the teacher's DecodeSong does.
func Decode(path string) (beep.StreamSeekCloser, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, errors.Wrapf(err, "opening %s", path)
	}

	switch FormatForPath(path) {
	case MP3:
		streamer, format, err := mp3.Decode(f)
		if err != nil {
			// Fall back to the alternate decoder (minimp3-backed), the way
			// the teacher's BeepMp3Decoder config switch does, for files
			// the primary mp3 decoder rejects.
			minimp3pkg.BufferSize = 1024 * 50
			if _, serr := f.Seek(0, io.SeekStart); serr == nil {
				if s2, f2, err2 := minimp3.Decode(f); err2 == nil {
					return s2, f2, nil
				}
			}
			_ = f.Close()
			return nil, beep.Format{}, errors.Wrapf(err, "decoding mp3 %s", path)
		}
		return streamer, format, nil
	case Ogg:
		streamer, format, err := vorbis.Decode(f)
		if err != nil {
			_ = f.Close()
			return nil, beep.Format{}, errors.Wrapf(err, "decoding ogg %s", path)
		}
		return streamer, format, nil
	case FLAC:
		streamer, format, err := flac.Decode(f)
		if err != nil {
			_ = f.Close()
			return nil, beep.Format{}, errors.Wrapf(err, "decoding flac %s", path)
		}
		return streamer, format, nil
	default:
		_ = f.Close()
		return nil, beep.Format{}, errors.Errorf("unsupported audio container: %s", path)
	}
}

// ReadMeta extracts tag/duration metadata from path using audiometa. Tag
// strings containing ASCII control characters are rejected per spec.
func ReadMeta(path string) (trackmodel.TrackMeta, error) {
	f, err := audiometa.Open(path)
	if err != nil {
		return trackmodel.TrackMeta{}, errors.Wrapf(err, "reading metadata for %s", path)
	}
	defer f.Close()

	return trackmodel.TrackMeta{
		Artist:      sanitize(f.Tags.Artist),
		Album:       sanitize(f.Tags.Album),
		AlbumArtist: sanitize(f.Tags.AlbumArtist),
		Title:       sanitize(f.Tags.Title),
		Track:       f.Tags.TrackNumber,
		TrackTotal:  f.Tags.TrackTotal,
		Disc:        f.Tags.DiscNumber,
		DiscTotal:   f.Tags.DiscTotal,
		Year:        f.Tags.Year,
		Duration:    f.Audio.Duration,
	}, nil
}

// sanitize returns s unchanged, or "" if it contains a control character
// other than a space or a tab.
func sanitize(s string) string {
	for _, r := range s {
		if unicode.IsControl(r) && r != ' ' && r != '\t' {
			return ""
		}
	}
	return s
}
