// Package output owns the single process-wide audio output device and
// plays a decoder.Decoder's buffered stream through it, resampling to the
// device's fixed sample rate when a track's format differs. Grounded on
// the teacher's internal/player/beep_player.go speaker.Init/resample idiom;
// pause/resume reuse one beep.Ctrl the way cpal::Stream::pause/play do,
// rather than tearing the stream down.
package output

import (
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
	"github.com/pkg/errors"
)

const (
	deviceSampleRate = beep.SampleRate(44100)
	resampleQuality  = 4
	bufferLatency    = 200 * time.Millisecond
)

var (
	initOnce sync.Once
	initErr  error
)

// Init opens the speaker device exactly once per process.
func Init() error {
	initOnce.Do(func() {
		initErr = speaker.Init(deviceSampleRate, deviceSampleRate.N(bufferLatency))
	})
	if initErr != nil {
		return errors.Wrap(initErr, "opening audio output device")
	}
	return nil
}

// Device serializes playback of one streamer at a time onto the shared
// speaker, resampling as needed.
type Device struct {
	ctrl   *beep.Ctrl
	active bool
}

func NewDevice() *Device {
	return &Device{}
}

// Play starts (or restarts) output for streamer, resampled from sourceRate
// to the device's fixed rate.
func (d *Device) Play(streamer beep.Streamer, sourceRate beep.SampleRate) {
	resampled := streamer
	if sourceRate != deviceSampleRate {
		resampled = beep.Resample(resampleQuality, sourceRate, deviceSampleRate, streamer)
	}

	if !d.active {
		d.ctrl = &beep.Ctrl{Streamer: resampled}
		speaker.Play(d.ctrl)
		d.active = true
		return
	}
	speaker.Lock()
	d.ctrl.Streamer = resampled
	d.ctrl.Paused = false
	speaker.Unlock()
}

// Active reports whether an output stream is currently playing.
func (d *Device) Active() bool { return d.active }

// Pause suspends playback without discarding the streamer.
func (d *Device) Pause() {
	if !d.active {
		return
	}
	speaker.Lock()
	d.ctrl.Paused = true
	speaker.Unlock()
}

// Resume continues a previously paused streamer.
func (d *Device) Resume() {
	if !d.active {
		return
	}
	speaker.Lock()
	d.ctrl.Paused = false
	speaker.Unlock()
}

// Stop silences and detaches the current streamer.
func (d *Device) Stop() {
	if !d.active {
		return
	}
	speaker.Lock()
	d.ctrl.Streamer = nil
	speaker.Unlock()
	d.active = false
}

// Close releases the underlying device. Call once at process shutdown.
func Close() {
	speaker.Clear()
	speaker.Close()
}
