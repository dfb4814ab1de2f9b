// Package audiostream opens a local audio file (FLAC/Ogg-Vorbis/MP3) as a
// decodable beep.Streamer and extracts its tag metadata.
package audiostream

import "strings"

// Format identifies a supported container/codec by file extension.
type Format uint8

const (
	Unknown Format = iota
	MP3
	Ogg
	FLAC
)

var extensions = map[string]Format{
	"mp3":  MP3,
	"ogg":  Ogg,
	"oga":  Ogg,
	"flac": FLAC,
}

// FormatForPath returns the Format implied by path's extension, or Unknown
// if it is not one of the supported containers.
func FormatForPath(path string) Format {
	ext := path
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		ext = path[i+1:]
	}
	return extensions[strings.ToLower(ext)]
}

// IsPathSupported reports whether path names a file this package can
// decode, per spec §4.1.
func IsPathSupported(path string) bool {
	return FormatForPath(path) != Unknown
}
