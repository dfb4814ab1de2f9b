// Package decoder drives one audio Stream into a ring buffer, tracking
// playback position, CUE sub-track boundaries, and output-format changes.
// Grounded end to end on original_source/src/decoder.rs, expressed with
// gopxl/beep streamers in place of symphonia packets.
package decoder

import (
	"time"

	"github.com/gopxl/beep"
	"github.com/pkg/errors"

	"github.com/sonora-player/sonora/internal/audiostream"
	"github.com/sonora-player/sonora/internal/cuesheet"
	"github.com/sonora-player/sonora/internal/trackmodel"
)

// PacketMeta describes the format of the most recently decoded chunk.
type PacketMeta struct {
	ChannelsCount int
	SampleRate    int
	Position      *time.Duration
}

// ReadResult is the outcome of one ReadStream call.
type ReadResult int

const (
	BufferNotFull ReadResult = iota
	BufferFull
	NeedResetOutput
	ReadEnd
)

// framesPerRead is how many stereo frames one ReadStream call decodes —
// the Go analogue of one symphonia packet.
const framesPerRead = 4096

// Decoder owns the currently open Stream (if any), the ring buffer it
// feeds, and the bookkeeping needed to report an accurate playback
// position across CUE sub-track and format boundaries.
type Decoder struct {
	stream beep.StreamSeekCloser
	format beep.Format

	track              *trackmodel.Track
	packetMeta         *PacketMeta
	previousPacketMeta *PacketMeta
	fileMeta           *trackmodel.TrackMeta
	TrackMeta          *trackmodel.TrackMeta
	NewTrackMeta       *trackmodel.TrackMeta

	buf *RingBuffer

	position     time.Duration
	atEnd        bool
	waitEmptyBuf bool

	cueFactory *cuesheet.Factory
	cueSheet   *cuesheet.Sheet

	volume float32

	softStop int
	capacity int

	framesPlayed int64
}

func New(bufferCapacity, bufferSoftStop int) *Decoder {
	return &Decoder{
		buf:        NewRingBuffer(bufferCapacity),
		cueFactory: cuesheet.NewFactory(),
		volume:     1.0,
		softStop:   bufferSoftStop,
		capacity:   bufferCapacity,
	}
}

// Stop tears down the current stream and resets all per-track state.
func (d *Decoder) Stop() {
	if d.stream != nil {
		_ = d.stream.Close()
	}
	d.stream = nil
	d.track = nil
	d.packetMeta = nil
	d.previousPacketMeta = nil
	d.fileMeta = nil
	d.TrackMeta = nil
	d.NewTrackMeta = nil
	d.cueSheet = nil
	d.position = 0
	d.framesPlayed = 0
	d.buf.Clear()
}

func (d *Decoder) ClearCueFactory() { d.cueFactory.Clear() }

// SetCueFactory adopts an already-populated CueFactory (e.g. one a
// playlist scan built while splitting CUE sheets into sub-tracks), so
// sheets aren't parsed a second time on first playback. A nil factory
// resets to an empty one, equivalent to ClearCueFactory.
func (d *Decoder) SetCueFactory(f *cuesheet.Factory) {
	if f == nil {
		f = cuesheet.NewFactory()
	}
	d.cueFactory = f
}

func (d *Decoder) sheetForTrack(track trackmodel.Track) (*cuesheet.Sheet, error) {
	if !track.IsCue() {
		return nil, nil
	}
	sheet, err := d.cueFactory.GetOrNew(track.Filename)
	if err != nil {
		return nil, err
	}
	if sheet == nil {
		return nil, errors.Errorf("file is not CUE: %s", track.Filename)
	}
	return sheet, nil
}

func sourceFilename(track trackmodel.Track, sheet *cuesheet.Sheet) string {
	if sheet != nil {
		return sheet.SourceFilename
	}
	return track.Filename
}

func (d *Decoder) open(track trackmodel.Track) (beep.StreamSeekCloser, beep.Format, *cuesheet.Sheet, error) {
	sheet, err := d.sheetForTrack(track)
	if err != nil {
		return nil, beep.Format{}, nil, errors.Wrapf(err, "cannot load CUE for %s", track.Filename)
	}
	filename := sourceFilename(track, sheet)
	streamer, format, err := audiostream.Decode(filename)
	if err != nil {
		return nil, beep.Format{}, nil, errors.Wrapf(err, "error opening %s", filename)
	}
	return streamer, format, sheet, nil
}

// trackID returns this track's 1-based CUE index, matching track.CueStart
// translated through the active sheet; used for positional bookkeeping.
func (d *Decoder) trackID(sheet *cuesheet.Sheet, track trackmodel.Track) int {
	if sheet == nil {
		return 0
	}
	return sheet.TrackIndexByPosition(track.CueStart)
}

// LoadMeta opens track just long enough to read its tag metadata, without
// committing it as the now-playing track.
func (d *Decoder) LoadMeta(track trackmodel.Track) (trackmodel.TrackMeta, error) {
	sheet, err := d.sheetForTrack(track)
	if err != nil {
		return trackmodel.TrackMeta{}, err
	}
	filename := sourceFilename(track, sheet)
	fileMeta, err := audiostream.ReadMeta(filename)
	if err != nil {
		return trackmodel.TrackMeta{}, err
	}
	if sheet != nil {
		return sheet.TrackMeta(d.trackID(sheet, track), fileMeta)
	}
	return fileMeta, nil
}

// Play opens track for playback. When the new track is the next CUE
// sub-track of the source file already open, the stream and the buffered
// samples are kept as they are (the one gapless case). Another CUE track of
// the same source file reuses the stream and seeks to the track's start.
// Anything else opens a fresh stream, positioned at the track's start.
func (d *Decoder) Play(track trackmodel.Track) error {
	newSheet, err := d.sheetForTrack(track)
	if err != nil {
		return errors.Wrapf(err, "cannot load CUE for %s", track.Filename)
	}

	if newSheet != nil {
		if d.stream != nil && d.cueSheet != nil && newSheet.SourceFilename == d.cueSheet.SourceFilename {
			adjacent := d.track != nil && d.trackID(newSheet, track) == d.trackID(d.cueSheet, *d.track)+1
			d.track = &track
			d.cueSheet = newSheet
			if !adjacent {
				if _, err := d.SeekTo(0); err != nil {
					return errors.Wrap(err, "cannot seek to the start")
				}
			}
			d.atEnd = false
			if d.fileMeta != nil {
				fm := *d.fileMeta
				d.setTrackMeta(&fm)
			}
			return nil
		}

		streamer, format, err := audiostream.Decode(newSheet.SourceFilename)
		if err != nil {
			return errors.Wrapf(err, "error opening %s", newSheet.SourceFilename)
		}
		if d.stream != nil {
			_ = d.stream.Close()
		}
		d.stream = streamer
		d.format = format
		d.TrackMeta = nil
		d.fileMeta = nil
		d.track = &track
		d.cueSheet = newSheet
		if _, err := d.SeekTo(0); err != nil {
			return errors.Wrap(err, "cannot seek to the start")
		}
		d.atEnd = false
		if fileMeta, err := audiostream.ReadMeta(newSheet.SourceFilename); err == nil {
			d.setTrackMeta(&fileMeta)
		}
		return nil
	}

	if d.packetMeta != nil {
		d.previousPacketMeta = d.packetMeta
		d.packetMeta = nil
	}
	d.TrackMeta = nil
	d.fileMeta = nil

	streamer, format, err := audiostream.Decode(track.Filename)
	if err != nil {
		return errors.Wrapf(err, "error opening %s", track.Filename)
	}
	if d.stream != nil {
		_ = d.stream.Close()
	}
	d.stream = streamer
	d.format = format
	d.cueSheet = nil
	d.atEnd = false
	d.track = &track
	d.framesPlayed = 0
	d.position = 0
	if fileMeta, err := audiostream.ReadMeta(track.Filename); err == nil {
		d.setTrackMeta(&fileMeta)
	}
	return nil
}

func (d *Decoder) canReadMore() bool {
	return d.buf.Len() < d.softStop
}

func (d *Decoder) bufItemsPerSec() (int, error) {
	if d.packetMeta == nil {
		return 0, errors.New("no current packet")
	}
	return d.packetMeta.ChannelsCount * d.packetMeta.SampleRate, nil
}

func (d *Decoder) bufferDuration() time.Duration {
	perSec, err := d.bufItemsPerSec()
	if err != nil || perSec == 0 {
		return 0
	}
	secs := float64(d.buf.Len()) / float64(perSec)
	return time.Duration(secs * float64(time.Second))
}

// PlaybackPosition is the best-effort position accounting for the ring
// buffer's unplayed lead and the active CUE sub-track's start offset.
func (d *Decoder) PlaybackPosition() time.Duration {
	pos := d.position - d.bufferDuration()
	if pos < 0 {
		pos = 0
	}
	if d.cueSheet != nil && d.track != nil {
		start, err := d.cueSheet.TrackStart(d.trackID(d.cueSheet, *d.track))
		if err == nil {
			pos -= start
			if pos < 0 {
				pos = 0
			}
		}
	}
	return pos
}

// ValidPlaybackPosition is like PlaybackPosition but fails when there is no
// current packet to compute a buffer duration from, so callers (position
// callbacks) don't fire against a stale position.
func (d *Decoder) ValidPlaybackPosition() (time.Duration, error) {
	perSec, err := d.bufItemsPerSec()
	if err != nil {
		return 0, err
	}
	secs := float64(d.buf.Len()) / float64(perSec)
	bufDur := time.Duration(secs * float64(time.Second))

	pos := d.position - bufDur
	if pos < 0 {
		pos = 0
	}
	if sheet, idx, ok := d.sheetAndIndex(); ok {
		start, err := sheet.TrackStart(idx)
		if err != nil {
			return 0, err
		}
		pos -= start
		if pos < 0 {
			pos = 0
		}
	}
	return pos, nil
}

func (d *Decoder) sheetAndIndex() (*cuesheet.Sheet, int, bool) {
	if d.cueSheet != nil && d.track != nil && d.track.IsCue() {
		return d.cueSheet, d.trackID(d.cueSheet, *d.track), true
	}
	return nil, 0, false
}

// SeekTo seeks within the current track (CUE-start-relative) and returns
// the resulting in-track position.
func (d *Decoder) SeekTo(pos time.Duration) (time.Duration, error) {
	start := time.Duration(0)
	if sheet, idx, ok := d.sheetAndIndex(); ok {
		s, err := sheet.TrackStart(idx)
		if err != nil {
			return 0, errors.Wrapf(err, "can't get the start of track %d", idx)
		}
		start = s
	}
	target := pos + start

	if d.stream == nil {
		return 0, errors.New("the stream is not ready for seeking")
	}
	sampleIndex := d.format.SampleRate.N(target)
	if err := d.stream.Seek(sampleIndex); err != nil {
		return 0, errors.Wrap(err, "cannot seek")
	}
	d.buf.Clear()
	d.atEnd = false
	d.position = target
	d.framesPlayed = int64(sampleIndex)

	seekedTo := target - start
	if seekedTo < 0 {
		seekedTo = 0
	}
	return seekedTo, nil
}

// SetVolume clamps and stores the linear volume multiplier applied in the
// output callback.
func (d *Decoder) SetVolume(volume float32) float32 {
	if volume < 0 {
		volume = 0
	}
	if volume > 1 {
		volume = 1
	}
	d.volume = volume
	return volume
}

func (d *Decoder) Volume() float32 { return d.volume }

func isFormatChange(cur *PacketMeta, next PacketMeta) bool {
	if cur == nil {
		return false
	}
	return cur.ChannelsCount != next.ChannelsCount || cur.SampleRate != next.SampleRate
}

func (d *Decoder) setTrackMeta(meta *trackmodel.TrackMeta) {
	if meta == nil {
		return
	}
	if sheet, idx, ok := d.sheetAndIndex(); ok {
		if m, err := sheet.TrackMeta(idx, *meta); err == nil {
			d.TrackMeta = &m
		}
	} else {
		m := *meta
		d.TrackMeta = &m
	}
	fm := *meta
	d.fileMeta = &fm
	d.NewTrackMeta = d.TrackMeta
}

// ReadStream decodes one chunk from the current stream into the ring
// buffer. It is meant to be called repeatedly by the engine's decode loop.
func (d *Decoder) ReadStream() ReadResult {
	if d.atEnd || !d.canReadMore() {
		return BufferFull
	}
	if d.stream == nil {
		return BufferFull
	}

	if d.waitEmptyBuf {
		if d.buf.Len() != 0 {
			return BufferFull
		}
		d.waitEmptyBuf = false
		return NeedResetOutput
	}

	prevMeta := d.previousPacketMeta
	d.previousPacketMeta = nil

	frames := framesPerRead
	channels := d.format.NumChannels
	if channels < 1 {
		channels = 1
	}
	if room := (d.capacity - d.buf.Len()) / channels; room < frames {
		frames = room
	}
	if frames <= 0 {
		return BufferFull
	}
	samples := make([][2]float64, frames)
	n, ok := d.stream.Stream(samples)
	if n == 0 && !ok {
		d.atEnd = true
		return ReadEnd
	}

	newMeta := PacketMeta{
		ChannelsCount: d.format.NumChannels,
		SampleRate:    int(d.format.SampleRate),
	}
	formatChanged := isFormatChange(prevMeta, newMeta)
	if formatChanged {
		d.waitEmptyBuf = true
		return BufferFull
	}

	interleaved := make([]float32, 0, n*d.format.NumChannels)
	for i := 0; i < n; i++ {
		if d.format.NumChannels == 1 {
			interleaved = append(interleaved, float32(samples[i][0]))
		} else {
			interleaved = append(interleaved, float32(samples[i][0]), float32(samples[i][1]))
		}
	}
	d.buf.Push(interleaved)

	d.framesPlayed += int64(n)
	newMeta.Position = nil
	position := d.format.SampleRate.D(int(d.framesPlayed))
	newMeta.Position = &position
	d.packetMeta = &newMeta

	d.position = position
	if sheet, idx, ok := d.sheetAndIndex(); ok {
		if posIndex := sheet.TrackIndexByPosition(position); posIndex > idx {
			d.atEnd = true
			return ReadEnd
		}
	}

	if !ok && n > 0 {
		// Final short read: emit it, then report end on the next call.
		d.atEnd = false
	}

	return BufferNotFull
}

// AtEnd reports whether the current stream is exhausted.
func (d *Decoder) AtEnd() bool { return d.atEnd }

// Format returns the sample format of the currently open stream.
func (d *Decoder) Format() (beep.Format, bool) {
	if d.stream == nil {
		return beep.Format{}, false
	}
	return d.format, true
}

// OutputStreamer returns a beep.Streamer draining this decoder's ring
// buffer with its current volume applied, or nil if no stream is open.
// Grounded on decoder.rs's create_output_stream + copy_with_volume.
func (d *Decoder) OutputStreamer() beep.Streamer {
	if d.stream == nil {
		return nil
	}
	return &bufferStreamer{d: d}
}

type bufferStreamer struct {
	d *Decoder
}

func (b *bufferStreamer) Err() error { return nil }

func (b *bufferStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	channels := b.d.format.NumChannels
	if channels == 0 {
		channels = 2
	}
	flat := make([]float32, len(samples)*channels)
	drained := b.d.buf.Drain(flat)
	volume := b.d.Volume()

	frames := drained / channels
	for i := 0; i < frames; i++ {
		left := applyVolume(flat[i*channels], volume)
		right := left
		if channels > 1 {
			right = applyVolume(flat[i*channels+1], volume)
		}
		samples[i][0] = float64(left)
		samples[i][1] = float64(right)
	}
	for i := frames; i < len(samples); i++ {
		samples[i][0] = 0
		samples[i][1] = 0
	}
	return len(samples), true
}

func applyVolume(s float32, volume float32) float32 {
	switch volume {
	case 1:
		return s
	case 0:
		return 0
	default:
		return s * volume
	}
}
