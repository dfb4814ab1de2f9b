// Package engine runs the decode/playback loop behind a command/response
// channel pair, exposing playlist navigation, transport control, seeking,
// volume, and position-callback scheduling. Grounded end to end on
// original_source/src/player.rs, translated onto Go channels in the style
// of the teacher's beepPlayer (musicChan/stateChan) command loop.
package engine

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/sonora-player/sonora/internal/appconfig"
	"github.com/sonora-player/sonora/internal/cuesheet"
	"github.com/sonora-player/sonora/internal/decoder"
	"github.com/sonora-player/sonora/internal/output"
	"github.com/sonora-player/sonora/internal/trackmodel"
)

// CmdKind identifies the operation carried by a Cmd.
type CmdKind int

const (
	CmdSetPlaylist CmdKind = iota
	CmdLoadMeta
	CmdPlay
	CmdPause
	CmdUnpause
	CmdStop
	CmdRequestPosition
	CmdNext
	CmdPrev
	CmdNextDir
	CmdPrevDir
	CmdSeekBy
	CmdSeekTo
	CmdSetVolume
	CmdExit
)

// Cmd is the single request type accepted by Engine's command channel. Only
// the fields relevant to Kind are read.
type Cmd struct {
	Kind       CmdKind
	Tracks     []trackmodel.Track
	CueFactory *cuesheet.Factory // nil: start the decoder with a fresh, empty factory
	Index      *int
	Forward    bool
	Length     time.Duration
	Position   time.Duration
	Volume     float32
}

// RespKind identifies the payload carried by a Response.
type RespKind int

const (
	RespNewPlaylistIndex RespKind = iota
	RespNewMeta
	RespPlaybackStateChanged
	RespPositionRequested
	RespPositionCallback
	RespPlaylistEnded
	RespSeeked
	RespVolumeSet
	RespExited
)

// Response is the single event type emitted on Engine's response channel.
type Response struct {
	Kind           RespKind
	PlaylistIndex  int
	Track          trackmodel.Track
	UserNavigation bool
	Meta           trackmodel.TrackMeta
	State          trackmodel.PlaybackState
	Position       time.Duration
	Callback       trackmodel.PositionCallback
	Volume         float32
}

type moveTo int

const (
	moveNext moveTo = iota
	movePrev
	moveNextDir
	movePrevDir
)

// Engine is the decode/playback state machine. It is driven exclusively by
// its own goroutine started by Start; all other access is through the
// returned Handle.
type Engine struct {
	cfg appconfig.PlayerConfig

	dec    *decoder.Decoder
	device *output.Device

	playlist          []trackmodel.Track
	playlistIndex     int
	sentPlaylistIndex *int

	cmdCh  chan Cmd
	respCh chan Response

	positionCallbacks []trackmodel.PositionCallback
	triggered         map[int]bool

	userNavigationForNextMeta bool
	needFastRead              bool
	outputPaused              bool
}

// Handle is the client-facing API for a running Engine, mirroring the
// original's PlayerTx.
type Handle struct {
	cmdCh  chan Cmd
	respCh chan Response
	done   chan struct{}
}

func (h *Handle) send(c Cmd) { h.cmdCh <- c }

// SetPlaylist replaces the playlist, stopping any current playback. factory
// may be the CueFactory a playlist scan already populated (reused as-is,
// avoiding re-parsing CUE sheets on first playback) or nil to start with an
// empty one.
func (h *Handle) SetPlaylist(tracks []trackmodel.Track, factory *cuesheet.Factory) {
	h.send(Cmd{Kind: CmdSetPlaylist, Tracks: tracks, CueFactory: factory})
}

func (h *Handle) LoadMeta(index int) { h.send(Cmd{Kind: CmdLoadMeta, Index: &index}) }

func (h *Handle) Play(index *int) { h.send(Cmd{Kind: CmdPlay, Index: index}) }

func (h *Handle) Pause()           { h.send(Cmd{Kind: CmdPause}) }
func (h *Handle) Unpause()         { h.send(Cmd{Kind: CmdUnpause}) }
func (h *Handle) Stop()            { h.send(Cmd{Kind: CmdStop}) }
func (h *Handle) RequestPosition() { h.send(Cmd{Kind: CmdRequestPosition}) }
func (h *Handle) Next()            { h.send(Cmd{Kind: CmdNext}) }
func (h *Handle) Prev()            { h.send(Cmd{Kind: CmdPrev}) }
func (h *Handle) NextDir()         { h.send(Cmd{Kind: CmdNextDir}) }
func (h *Handle) PrevDir()         { h.send(Cmd{Kind: CmdPrevDir}) }

func (h *Handle) SeekTo(position time.Duration) {
	h.send(Cmd{Kind: CmdSeekTo, Position: position})
}

func (h *Handle) SeekBy(forward bool, length time.Duration) {
	h.send(Cmd{Kind: CmdSeekBy, Forward: forward, Length: length})
}

func (h *Handle) SetVolume(volume float32) { h.send(Cmd{Kind: CmdSetVolume, Volume: volume}) }

func (h *Handle) Exit() { h.send(Cmd{Kind: CmdExit}) }

// Responses exposes the channel of events emitted by the engine.
func (h *Handle) Responses() <-chan Response { return h.respCh }

// Wait blocks until the engine goroutine has exited.
func (h *Handle) Wait() { <-h.done }

// Start launches the engine goroutine and returns a Handle to it.
func Start(cfg appconfig.PlayerConfig, positionCallbacks []trackmodel.PositionCallback) *Handle {
	cmdCh := make(chan Cmd)
	respCh := make(chan Response, 16)
	done := make(chan struct{})

	e := &Engine{
		cfg:               cfg,
		dec:               decoder.New(cfg.BufferCapacity, cfg.BufferSoftStop),
		device:            output.NewDevice(),
		cmdCh:             cmdCh,
		respCh:            respCh,
		positionCallbacks: positionCallbacks,
		triggered:         make(map[int]bool),
		needFastRead:      true,
	}

	go func() {
		defer close(done)
		for e.process() {
		}
	}()

	return &Handle{cmdCh: cmdCh, respCh: respCh, done: done}
}

func (e *Engine) emit(r Response) {
	select {
	case e.respCh <- r:
	default:
		e.respCh <- r // block if the buffer is full; callers must keep draining
	}
}

func (e *Engine) stop() {
	e.dec.Stop()
	e.device.Stop()
	e.sentPlaylistIndex = nil
	e.emit(Response{Kind: RespPlaybackStateChanged, State: trackmodel.Stopped})
}

func (e *Engine) setPlaylist(tracks []trackmodel.Track, factory *cuesheet.Factory) {
	e.stop()
	e.dec.SetCueFactory(factory)
	e.playlist = tracks
	e.playlistIndex = 0
}

func (e *Engine) loadMeta(index int) error {
	track := e.playlist[index]
	meta, err := e.dec.LoadMeta(track)
	if err != nil {
		return errors.Wrap(err, "cannot load meta")
	}
	e.playlistIndex = index

	e.emit(Response{Kind: RespNewPlaylistIndex, PlaylistIndex: index, Track: track})
	e.emit(Response{Kind: RespNewMeta, Meta: meta})
	return nil
}

func (e *Engine) play(index *int, userNavigation bool) error {
	idx := e.playlistIndex
	if index != nil {
		idx = *index
	}
	if idx < 0 || idx >= len(e.playlist) {
		return errors.Errorf("index %d is not in the playlist", idx)
	}
	track := e.playlist[idx]
	e.playlistIndex = idx
	if err := e.dec.Play(track); err != nil {
		return errors.Wrap(err, "cannot play")
	}
	e.needFastRead = true
	e.triggered = make(map[int]bool)
	e.sendPlaylistIndex(userNavigation)
	e.userNavigationForNextMeta = userNavigation
	e.emit(Response{Kind: RespPlaybackStateChanged, State: trackmodel.Playing})
	return nil
}

func (e *Engine) playlistIndexDir(index int) string {
	return filepath.Dir(e.playlist[index].Filename)
}

func (e *Engine) fetchNextPlaylistIndex(curIndex int, wrap, emitEnded bool) (int, error) {
	if curIndex < len(e.playlist)-1 {
		return curIndex + 1, nil
	}
	if wrap {
		return 0, nil
	}
	if emitEnded {
		e.emit(Response{Kind: RespPlaylistEnded})
	}
	return 0, errors.New("playlist end reached")
}

func (e *Engine) fetchPrevPlaylistIndex(curIndex int, wrap bool) (int, error) {
	if curIndex > 0 {
		return curIndex - 1, nil
	}
	if wrap {
		return len(e.playlist) - 1, nil
	}
	return 0, errors.New("playlist start reached")
}

func decValidFiles(x *int) error {
	if *x == 0 {
		return errors.New("no valid files in the playlist")
	}
	*x--
	return nil
}

func (e *Engine) fetchFirstPlaylistIndexInDir(curIndex, stopIndex int, wrap bool, filesLeft *int) (int, error) {
	curDir := e.playlistIndexDir(curIndex)
	index, err := e.fetchPrevPlaylistIndex(curIndex, wrap)
	if err != nil {
		return 0, err
	}
	if index != 0 && index != stopIndex && e.playlistIndexDir(index) != curDir {
		curDir = e.playlistIndexDir(index)
	}
	for index != 0 && index != stopIndex && e.playlistIndexDir(index-1) == curDir {
		if err := decValidFiles(filesLeft); err != nil {
			return 0, errors.Wrap(err, "no valid left")
		}
		index, err = e.fetchPrevPlaylistIndex(index, wrap)
		if err != nil {
			return 0, errors.Wrap(err, "cannot fetch previous playlist index")
		}
	}
	return index, nil
}

func (e *Engine) moveAndPlay(step moveTo, wrap, userNavigation bool) error {
	filesLeft := len(e.playlist)
	if filesLeft == 0 {
		return errors.New("no files in the playlist")
	}
	startIndex := e.playlistIndex
	curIndex := e.playlistIndex
	var indexAfterDirSkip *int

	for {
		if err := decValidFiles(&filesLeft); err != nil {
			return err
		}

		var newIndex int
		var err error
		switch step {
		case moveNext:
			newIndex, err = e.fetchNextPlaylistIndex(curIndex, wrap, true)
		case movePrev:
			newIndex, err = e.fetchPrevPlaylistIndex(curIndex, wrap)
		case moveNextDir:
			newIndex, err = e.fetchNextPlaylistIndex(curIndex, wrap, true)
			if err == nil && indexAfterDirSkip == nil {
				curDir := e.playlistIndexDir(curIndex)
				for newIndex != 0 && e.playlistIndexDir(newIndex) == curDir {
					if derr := decValidFiles(&filesLeft); derr != nil {
						err = derr
						break
					}
					newIndex, err = e.fetchNextPlaylistIndex(newIndex, wrap, true)
					if err != nil {
						break
					}
				}
				if err == nil {
					idx := newIndex
					indexAfterDirSkip = &idx
				}
			}
		case movePrevDir:
			if indexAfterDirSkip != nil {
				if nextIndex, nerr := e.fetchNextPlaylistIndex(curIndex, wrap, false); nerr == nil &&
					startIndex != nextIndex && e.playlistIndexDir(nextIndex) == e.playlistIndexDir(curIndex) {
					newIndex = nextIndex
				} else {
					idx, ferr := e.fetchFirstPlaylistIndexInDir(*indexAfterDirSkip, startIndex, wrap, &filesLeft)
					if ferr != nil {
						err = ferr
						break
					}
					indexAfterDirSkip = &idx
					newIndex = idx
				}
			} else {
				idx, ferr := e.fetchFirstPlaylistIndexInDir(curIndex, startIndex, wrap, &filesLeft)
				if ferr != nil {
					err = ferr
					break
				}
				indexAfterDirSkip = &idx
				newIndex = idx
			}
		}
		if err != nil {
			return err
		}

		if playErr := e.play(&newIndex, userNavigation); playErr == nil {
			return nil
		} else {
			slog.Warn("skipping unplayable track", slog.String("error", playErr.Error()))
		}
		curIndex = e.playlistIndex
	}
}

func (e *Engine) next(wrap, userNavigation bool) error {
	return e.moveAndPlay(moveNext, wrap, userNavigation)
}

func (e *Engine) prev() error { return e.moveAndPlay(movePrev, true, true) }

func (e *Engine) nextDir() error { return e.moveAndPlay(moveNextDir, true, true) }

func (e *Engine) prevDir() error { return e.moveAndPlay(movePrevDir, true, true) }

func (e *Engine) sendPlaylistIndex(userNavigation bool) {
	if e.sentPlaylistIndex != nil && *e.sentPlaylistIndex == e.playlistIndex {
		return
	}
	if e.playlistIndex >= len(e.playlist) {
		return
	}
	e.emit(Response{
		Kind:           RespNewPlaylistIndex,
		PlaylistIndex:  e.playlistIndex,
		Track:          e.playlist[e.playlistIndex],
		UserNavigation: userNavigation,
	})
	idx := e.playlistIndex
	e.sentPlaylistIndex = &idx
}

func (e *Engine) pause() error {
	if !e.device.Active() {
		return errors.New("no output created")
	}
	e.device.Pause()
	e.outputPaused = true
	e.emit(Response{Kind: RespPlaybackStateChanged, State: trackmodel.Paused, Position: e.dec.PlaybackPosition()})
	return nil
}

func (e *Engine) unpause() error {
	if !e.device.Active() {
		return errors.New("no output created")
	}
	e.device.Resume()
	e.outputPaused = false
	e.emit(Response{Kind: RespPlaybackStateChanged, State: trackmodel.Playing, Position: e.dec.PlaybackPosition()})
	return nil
}

func (e *Engine) seekTo(pos time.Duration) error {
	seekedTo, err := e.dec.SeekTo(pos)
	if err != nil {
		return err
	}
	e.emit(Response{Kind: RespSeeked, Position: seekedTo})
	return nil
}

func (e *Engine) sendPosition() {
	e.emit(Response{Kind: RespPositionRequested, Position: e.dec.PlaybackPosition()})
}

// processClientCmd waits for at most one command: with zero timeout while
// there is decode work to do quickly, or cfg.ThreadSleep otherwise. It
// returns false only on CmdExit.
func (e *Engine) processClientCmd() bool {
	timeout := e.cfg.ThreadSleep
	if e.needFastRead {
		timeout = 0
	}

	var cmd Cmd
	var got bool
	if timeout == 0 {
		select {
		case cmd = <-e.cmdCh:
			got = true
		default:
		}
	} else {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case cmd = <-e.cmdCh:
			got = true
		case <-timer.C:
		}
	}
	if !got {
		return true
	}

	var err error
	switch cmd.Kind {
	case CmdSetPlaylist:
		e.setPlaylist(cmd.Tracks, cmd.CueFactory)
	case CmdLoadMeta:
		e.stop()
		index := 0
		if cmd.Index != nil {
			index = *cmd.Index
		}
		loaded := false
		for index < len(e.playlist) {
			if lerr := e.loadMeta(index); lerr == nil {
				loaded = true
				break
			}
			index++
		}
		if !loaded {
			slog.Warn("the current file is not valid")
		}
	case CmdPlay:
		e.stop()
		if perr := e.play(cmd.Index, true); perr != nil {
			err = e.next(false, true)
		}
	case CmdStop:
		e.stop()
	case CmdRequestPosition:
		e.sendPosition()
	case CmdNext:
		e.stop()
		err = e.next(true, true)
	case CmdPrev:
		e.stop()
		err = e.prev()
	case CmdNextDir:
		e.stop()
		err = e.nextDir()
	case CmdPrevDir:
		e.stop()
		err = e.prevDir()
	case CmdPause:
		err = e.pause()
	case CmdUnpause:
		err = e.unpause()
	case CmdSeekBy:
		pos := e.dec.PlaybackPosition()
		if cmd.Forward {
			pos += cmd.Length
		} else {
			pos -= cmd.Length
			if pos < 0 {
				pos = 0
			}
		}
		err = e.seekTo(pos)
	case CmdSeekTo:
		err = e.seekTo(cmd.Position)
	case CmdSetVolume:
		volume := e.dec.SetVolume(cmd.Volume)
		e.emit(Response{Kind: RespVolumeSet, Volume: volume})
	case CmdExit:
		e.emit(Response{Kind: RespExited})
		return false
	}
	if err != nil {
		slog.Warn("command failed", slog.String("error", err.Error()))
	}
	return true
}

func (e *Engine) sendNewMeta() {
	if e.dec.NewTrackMeta == nil {
		return
	}
	meta := *e.dec.NewTrackMeta
	e.dec.NewTrackMeta = nil
	e.emit(Response{Kind: RespNewMeta, Meta: meta, UserNavigation: e.userNavigationForNextMeta})
	e.userNavigationForNextMeta = false
}

func (e *Engine) processPositionCallbacks() {
	if len(e.positionCallbacks) == 0 || e.dec.TrackMeta == nil {
		return
	}
	duration := e.dec.TrackMeta.Duration
	position, err := e.dec.ValidPlaybackPosition()
	if err != nil {
		return
	}
	for _, cb := range e.positionCallbacks {
		if e.triggered[cb.ID] {
			continue
		}
		due, reachable := cb.DueAt(duration)
		if !reachable {
			continue
		}
		if position >= due {
			e.emit(Response{Kind: RespPositionCallback, Callback: cb})
			e.triggered[cb.ID] = true
		}
	}
}

func (e *Engine) readStream() bool {
	mayCreateOutput := false
	needNextTrack := false
	needReadFast := false

	switch e.dec.ReadStream() {
	case decoder.BufferNotFull:
		needReadFast = true
	case decoder.BufferFull:
		mayCreateOutput = true
	case decoder.NeedResetOutput:
		e.device.Stop()
	case decoder.ReadEnd:
		needNextTrack = true
	}

	e.sendNewMeta()
	if e.device.Active() && !e.outputPaused {
		e.processPositionCallbacks()
	}

	if needNextTrack {
		if err := e.next(false, false); err != nil {
			e.stop()
			return false
		}
		return true
	}

	if mayCreateOutput && !e.device.Active() {
		if streamer := e.dec.OutputStreamer(); streamer != nil {
			if format, ok := e.dec.Format(); ok {
				e.device.Play(streamer, format.SampleRate)
				e.outputPaused = false
			}
		}
	}
	return needReadFast
}

func (e *Engine) readStreamPacketsBatch() bool {
	packetsLeft := e.cfg.ReadCycleSize
	if packetsLeft <= 0 {
		packetsLeft = 1
	}
	for packetsLeft > 0 {
		if !e.readStream() {
			return false
		}
		packetsLeft--
	}
	return true
}

func (e *Engine) process() bool {
	if !e.processClientCmd() {
		return false
	}
	e.needFastRead = e.readStreamPacketsBatch()
	return true
}
