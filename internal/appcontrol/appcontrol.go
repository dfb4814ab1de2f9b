// Package appcontrol is the composition root: it owns the running engine,
// hotkey listener, tray, MPRIS integration, scrobblers and persisted state,
// and wires their events together. Grounded end to end on
// original_source/src/app.rs's App/AppHandle/start().
package appcontrol

import (
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/sonora-player/sonora/internal/appconfig"
	"github.com/sonora-player/sonora/internal/engine"
	"github.com/sonora-player/sonora/internal/hotkeys"
	"github.com/sonora-player/sonora/internal/mediakeys"
	"github.com/sonora-player/sonora/internal/output"
	"github.com/sonora-player/sonora/internal/persist"
	"github.com/sonora-player/sonora/internal/playlistscan"
	"github.com/sonora-player/sonora/internal/popup"
	"github.com/sonora-player/sonora/internal/scrobble/lastfm"
	"github.com/sonora-player/sonora/internal/scrobble/listenbrainz"
	"github.com/sonora-player/sonora/internal/showfile"
	"github.com/sonora-player/sonora/internal/sysvol"
	"github.com/sonora-player/sonora/internal/trackmodel"
	"github.com/sonora-player/sonora/internal/traymenu"
)

const appName = "sonora"

// Constants named in original_source/src/app.rs.
const (
	volStep = 0.01

	posCallbackNowPlaying = 0
	posNowPlayingSecs     = 5.0
	posCallbackScrobble   = 1
	posScrobbleSecs       = 5.0
	posCallbackHLEnd      = 2
	posHLEndSecs          = 0.5

	posMinDurationToScrobble = 30 * time.Second
)

// Controller is the single-threaded application state machine, mirroring
// App. It is driven exclusively by Run's select loop; every field below is
// only ever touched from that goroutine.
type Controller struct {
	paths appconfig.Paths

	eng *engine.Handle

	playbackState    trackmodel.PlaybackState
	playlistIndex    int
	curTrack         *trackmodel.Track
	meta             trackmodel.TrackMeta
	position         time.Duration
	lastSeekPosition time.Duration

	hk     *hotkeys.Listener
	tray   traymenu.Tray
	mk     *mediakeys.MediaKeys
	mkCmds <-chan mediakeys.Command
	lb     *listenbrainz.Submitter
	lfm    *lastfm.Scrobbler
	state  persist.State
	pop    *popup.Popup

	// ipcPaths and quit carry events from outside Run's goroutine (a
	// second process instance handing over its paths, a terminating
	// signal) onto the single goroutine that owns all the fields above.
	ipcPaths chan []string
	quit     chan struct{}
}

// New performs the start() composition sequence: builds the scrobblers,
// decides whether position callbacks are needed at all, starts the engine,
// tray, hotkeys and MPRIS export, loads (or scans) the initial playlist, and
// wires the tray's menu.
func New(cfg *appconfig.Config, paths appconfig.Paths, cliPaths []string) (*Controller, error) {
	if err := output.Init(); err != nil {
		return nil, fmt.Errorf("cannot open audio output device: %w", err)
	}

	var lb *listenbrainz.Submitter
	if cfg.Scrobble.ListenBrainzEnabled {
		lb = listenbrainz.New(paths.DataDir, appName)
	}
	var lfm *lastfm.Scrobbler
	if cfg.Scrobble.LastfmEnabled {
		lfm = lastfm.New(paths.DataDir, cfg.Scrobble.LastfmAPIKey, cfg.Scrobble.LastfmAPISecret)
	}

	var positionCallbacks []trackmodel.PositionCallback
	if lb != nil || lfm != nil {
		positionCallbacks = []trackmodel.PositionCallback{
			trackmodel.FromStart(posCallbackNowPlaying, posNowPlayingSecs),
			trackmodel.FromEnd(posCallbackScrobble, posScrobbleSecs),
			trackmodel.FromStart(posCallbackHLEnd, posHLEndSecs),
		}
	}

	eng := engine.Start(cfg.Player, positionCallbacks)

	state := persist.LoadStateOrDefault(paths.DataDir)
	eng.SetVolume(state.Volume)

	tray, err := traymenu.New(appName)
	if err != nil {
		return nil, fmt.Errorf("cannot create tray: %w", err)
	}

	pop, err := popup.New(appName)
	if err != nil {
		return nil, fmt.Errorf("cannot create popup channel: %w", err)
	}

	mk, mkCmds, err := mediakeys.New(appName)
	if err != nil {
		return nil, fmt.Errorf("cannot create media keys: %w", err)
	}

	c := &Controller{
		paths:  paths,
		eng:    eng,
		tray:   tray,
		pop:    pop,
		mk:     mk,
		mkCmds: mkCmds,
		lb:     lb,
		lfm:    lfm,
		state:  state,

		ipcPaths: make(chan []string, 4),
		quit:     make(chan struct{}, 1),
	}

	c.setTrayMenu()

	c.hk = hotkeys.Start(cfg.Hotkeys.Bindings)

	c.initPlaylist(cliPaths)

	return c, nil
}

func (c *Controller) setTrayMenu() {
	c.tray.AddMenuItem(traymenu.MenuItem{
		Label: "Show current file",
		Activate: func() {
			if c.curTrack != nil {
				if err := showfile.ShowFile(c.curTrack.Filename); err != nil {
					slog.Warn("cannot show file", slog.String("error", err.Error()))
				}
			}
		},
	})
	c.tray.AddMenuItem(traymenu.MenuItem{
		Label:    "Exit",
		Activate: func() { c.userActionQuit() },
	})
}

// initPlaylist loads the saved playlist (and does not auto-play) when no
// paths were given on the command line, or scans the given paths and
// auto-plays from the first track otherwise.
func (c *Controller) initPlaylist(cliPaths []string) {
	var (
		tracks    []trackmodel.Track
		autoPlay  bool
		haveIndex bool
		index     int
	)

	if len(cliPaths) == 0 {
		loaded, err := persist.LoadPlaylist(c.paths.DataDir)
		if err != nil {
			slog.Warn("cannot load saved playlist", slog.String("error", err.Error()))
		}
		tracks = loaded
		autoPlay = false
		if len(tracks) > 0 {
			haveIndex = true
			if c.state.PlaylistIndex != nil {
				index = *c.state.PlaylistIndex
			}
		}
		c.eng.SetPlaylist(tracks, nil)
	} else {
		playlist, factory, err := playlistscan.Collect(cliPaths)
		if err != nil {
			slog.Warn("cannot scan paths", slog.String("error", err.Error()))
		}
		tracks = playlist.Tracks
		autoPlay = true
		if len(tracks) > 0 {
			haveIndex = true
			index = 0
			if err := persist.SavePlaylist(c.paths.DataDir, tracks); err != nil {
				slog.Warn("cannot save playlist", slog.String("error", err.Error()))
			}
		}
		c.eng.SetPlaylist(tracks, factory)
	}

	if len(tracks) == 0 {
		slog.Warn("the track list is empty")
	}
	if haveIndex {
		if autoPlay {
			idx := index
			c.eng.Play(&idx)
		} else {
			c.eng.LoadMeta(index)
		}
	}
}

// Run drains engine responses, hotkeys and MPRIS commands until the engine
// exits (via a quit request) or ctx-equivalent shutdown is triggered by
// userActionQuit. It blocks until the engine goroutine reports RespExited.
func (c *Controller) Run() {
	for {
		select {
		case resp, ok := <-c.eng.Responses():
			if !ok {
				return
			}
			if !c.processResponse(resp) {
				return
			}
		case action := <-c.hk.Actions():
			c.processHotkey(action)
		case cmd := <-c.mkCmds:
			c.processMediaCommand(cmd)
		case paths := <-c.ipcPaths:
			c.playPaths(paths)
		case <-c.quit:
			c.userActionQuit()
		}
	}
}

// SubmitPaths hands a second invocation's paths (received over the IPC
// singleton socket) to the running instance, mirroring entry.rs's
// single.listen callback into App::new_args. Safe to call from any
// goroutine.
func (c *Controller) SubmitPaths(paths []string) {
	select {
	case c.ipcPaths <- paths:
	default:
		slog.Warn("dropping IPC paths, channel full")
	}
}

// RequestQuit asks Run's goroutine to shut the player down, mirroring
// quit_signal.listen's callback into App::quit. Safe to call from any
// goroutine, including a signal handler.
func (c *Controller) RequestQuit() {
	select {
	case c.quit <- struct{}{}:
	default:
	}
}

// Shutdown performs AppHandle::wait()'s teardown sequence. It assumes the
// engine has already been told to exit (userActionQuit / RespExited
// observed) and Run has returned.
func (c *Controller) Shutdown() {
	c.hk.Stop()
	c.eng.Wait()
	c.lfm.Wait()
	c.lb.Wait()
	c.lfm = nil
	c.lb = nil
	c.tray.Shutdown()
	output.Close()
	// mediakeys.Release is intentionally skipped here: unregistering the
	// MPRIS export can take close to a second, and nothing downstream
	// depends on it having happened before the process exits.
}

func (c *Controller) track() trackmodel.Track {
	if c.curTrack == nil {
		return trackmodel.Track{}
	}
	return *c.curTrack
}

func (c *Controller) setPlaybackState(state trackmodel.PlaybackState, position *time.Duration) {
	switch state {
	case trackmodel.Playing:
		if it := c.tray.ImageType(); it != traymenu.Play && it != traymenu.PlayHL {
			c.tray.Play()
		}
	case trackmodel.Stopped:
		c.tray.Stop()
	case trackmodel.Paused:
		c.tray.Pause()
	}
	if position != nil {
		c.position = *position
		c.mk.SetPosition(*position)
	}
	c.mk.SetPlayingInfo(state, c.track(), c.meta, float64(c.state.Volume))
	c.playbackState = state
}

func (c *Controller) userActionToggleStop() {
	switch c.playbackState {
	case trackmodel.Stopped:
		c.eng.Play(nil)
		c.setPlaybackState(trackmodel.Playing, nil)
	case trackmodel.Playing:
		c.eng.Stop()
		c.setPlaybackState(trackmodel.Stopped, nil)
	case trackmodel.Paused:
		c.eng.Unpause()
		c.setPlaybackState(trackmodel.Playing, nil)
	}
}

func (c *Controller) userActionNext()    { c.eng.Next() }
func (c *Controller) userActionPrev()    { c.eng.Prev() }
func (c *Controller) userActionNextDir() { c.eng.NextDir() }
func (c *Controller) userActionPrevDir() { c.eng.PrevDir() }

func (c *Controller) userActionStop() {
	c.eng.Stop()
	c.setPlaybackState(trackmodel.Stopped, nil)
}

func (c *Controller) userActionQuit() {
	slog.Info("shutting down...")
	c.eng.Exit()
}

func (c *Controller) userActionPlay() {
	switch c.playbackState {
	case trackmodel.Paused:
		c.eng.Unpause()
		c.setPlaybackState(trackmodel.Playing, nil)
	case trackmodel.Stopped:
		c.eng.Play(nil)
		c.setPlaybackState(trackmodel.Playing, nil)
	case trackmodel.Playing:
	}
}

func (c *Controller) userActionPause() {
	if c.playbackState == trackmodel.Playing {
		c.eng.Pause()
		c.setPlaybackState(trackmodel.Paused, nil)
	}
}

func (c *Controller) userActionTogglePause() {
	switch c.playbackState {
	case trackmodel.Stopped:
		c.eng.Play(nil)
		c.setPlaybackState(trackmodel.Playing, nil)
	case trackmodel.Playing:
		c.eng.Pause()
		c.setPlaybackState(trackmodel.Paused, nil)
	case trackmodel.Paused:
		c.eng.Unpause()
		c.setPlaybackState(trackmodel.Playing, nil)
	}
}

func (c *Controller) changeVolume(step float64) {
	vol, err := sysvol.New().ModifyWithStep(step)
	if err != nil {
		slog.Warn("cannot change system volume", slog.String("error", err.Error()))
		return
	}
	c.pop.Show(fmt.Sprintf("system volume: %d%%", int(math.Round(vol*100))))
}

func (c *Controller) userActionSysVolDown() { c.changeVolume(-volStep) }
func (c *Controller) userActionSysVolUp()   { c.changeVolume(volStep) }

func (c *Controller) setVol(newVolume float32, showPopup bool) {
	if newVolume < 0 {
		newVolume = 0
	} else if newVolume > 1 {
		newVolume = 1
	}
	steps := math.Round(float64(newVolume) / volStep)
	newVolume = float32(steps * volStep)

	c.state.Volume = newVolume
	c.eng.SetVolume(newVolume)
	c.updateTray(showPopup)
	if err := persist.SaveState(c.paths.DataDir, c.state); err != nil {
		slog.Warn("cannot save state", slog.String("error", err.Error()))
	}
}

func (c *Controller) userActionVolDown()         { c.setVol(c.state.Volume-volStep, true) }
func (c *Controller) userActionVolUp()           { c.setVol(c.state.Volume+volStep, true) }
func (c *Controller) userActionSetVolume(v float32) { c.setVol(v, false) }

func (c *Controller) userActionSeekBy(forward bool, length time.Duration) {
	c.eng.SeekBy(forward, length)
}

func (c *Controller) userActionSeekTo(position time.Duration) {
	c.eng.SeekTo(position)
}

func (c *Controller) userActionOpenURI(uri string) {
	c.playPaths([]string{uri})
}

// playPaths mirrors play_paths: scan, persist and start playing from the
// beginning of a freshly supplied path list (e.g. a file dropped onto the
// running instance over IPC).
func (c *Controller) playPaths(paths []string) {
	playlist, factory, err := playlistscan.Collect(paths)
	if err != nil {
		slog.Warn("cannot scan paths", slog.String("error", err.Error()))
		return
	}
	if playlist.Len() == 0 {
		return
	}
	if err := persist.SavePlaylist(c.paths.DataDir, playlist.Tracks); err != nil {
		slog.Warn("cannot save playlist", slog.String("error", err.Error()))
	}
	c.eng.Stop()
	c.eng.SetPlaylist(playlist.Tracks, factory)
	zero := 0
	c.eng.Play(&zero)
}

func (c *Controller) processHotkey(a hotkeys.Action) {
	switch a {
	case hotkeys.ToggleStop:
		c.userActionToggleStop()
	case hotkeys.Next:
		c.userActionNext()
	case hotkeys.Prev:
		c.userActionPrev()
	case hotkeys.NextDir:
		c.userActionNextDir()
	case hotkeys.PrevDir:
		c.userActionPrevDir()
	case hotkeys.PauseToggle:
		c.userActionTogglePause()
	case hotkeys.SysVolDown:
		c.userActionSysVolDown()
	case hotkeys.SysVolUp:
		c.userActionSysVolUp()
	case hotkeys.VolDown:
		c.userActionVolDown()
	case hotkeys.VolUp:
		c.userActionVolUp()
	}
}

// processMediaCommand mirrors process_media_control_event. ActionStop
// covers both the Player.Stop call and MediaPlayer2.Quit (mediakeys maps
// Quit onto ActionStop, since exiting the whole process from a remote
// control call is not something any desktop session actually does in
// practice); it stops playback rather than exiting sonora.
func (c *Controller) processMediaCommand(cmd mediakeys.Command) {
	switch cmd.Action {
	case mediakeys.ActionPlay:
		c.userActionPlay()
	case mediakeys.ActionPause:
		c.userActionPause()
	case mediakeys.ActionPlayPause:
		c.userActionTogglePause()
	case mediakeys.ActionNext:
		c.userActionNext()
	case mediakeys.ActionPrevious:
		c.userActionPrev()
	case mediakeys.ActionStop:
		c.userActionStop()
	case mediakeys.ActionSeek:
		pos := c.position + cmd.Seek
		if pos < 0 {
			pos = 0
		}
		c.userActionSeekTo(pos)
	case mediakeys.ActionSetPosition:
		c.userActionSeekTo(cmd.Seek)
	case mediakeys.ActionSetVolume:
		c.userActionSetVolume(float32(cmd.Volume))
	}
}

// updateTray mirrors update_tray's tooltip construction exactly: directory
// name, volume percentage, 1-based playlist position, artist and title (or
// the filename stem when there is no title tag).
func (c *Controller) updateTray(showPopup bool) {
	volPercent := int(math.Round(float64(c.state.Volume) * 100))

	if c.curTrack == nil {
		c.tray.SetTooltip(fmt.Sprintf("[no file loaded] - %d%%", volPercent))
		return
	}

	dir := filepath.Base(filepath.Dir(c.curTrack.Filename))
	if dir == "" || dir == "." || dir == string(filepath.Separator) {
		dir = "?"
	}
	dirPart := fmt.Sprintf("[%s] - %d%%\n", dir, volPercent)

	artistPart := ""
	if c.meta.Artist != "" {
		artistPart = c.meta.Artist + " - "
	}

	titlePart := c.meta.Title
	if titlePart == "" {
		base := filepath.Base(c.curTrack.Filename)
		titlePart = strings.TrimSuffix(base, filepath.Ext(base))
	}

	tooltip := fmt.Sprintf("%s%d. %s%s", dirPart, c.playlistIndex+1, artistPart, titlePart)
	c.tray.SetTooltip(tooltip)

	c.mk.SetPlayingInfo(c.playbackState, *c.curTrack, c.meta, float64(c.state.Volume))
	c.eng.RequestPosition() // refresh the position published over MPRIS

	if showPopup {
		c.pop.Show(tooltip)
	}
}

// processPositionCallback mirrors process_position_callback: the now-
// playing and scrobble announcements only fire for tracks long enough and
// tagged enough to be worth tracking, and a scrobble is suppressed if the
// listener seeked anywhere in the track since it started, even back to 0:00
// (lastSeekPosition is reset to -1, meaning "no seek", on every new track).
func (c *Controller) processPositionCallback(cb trackmodel.PositionCallback) {
	if c.meta.Duration > posMinDurationToScrobble && c.meta.HasArtistAndTitle() {
		switch cb.ID {
		case posCallbackNowPlaying:
			c.lb.PlayingNow(c.meta)
			c.lfm.PlayingNow(c.track(), c.meta)
		case posCallbackScrobble:
			if c.lastSeekPosition < 0 {
				now := time.Now()
				c.lb.Submit(c.meta, now)
				c.lfm.Scrobble(c.meta, now)
			}
		}
	}

	if cb.ID == posCallbackHLEnd && c.tray.ImageType() == traymenu.PlayHL {
		c.tray.Play()
	}
}

// processResponse mirrors process_player_response. It returns false only
// for RespExited, telling Run to stop.
func (c *Controller) processResponse(resp engine.Response) bool {
	switch resp.Kind {
	case engine.RespNewPlaylistIndex:
		c.playlistIndex = resp.PlaylistIndex
		track := resp.Track
		c.curTrack = &track
		c.meta = trackmodel.TrackMeta{}
		if c.state.PlaylistIndex == nil || *c.state.PlaylistIndex != resp.PlaylistIndex {
			idx := resp.PlaylistIndex
			c.state.PlaylistIndex = &idx
			if err := persist.SaveState(c.paths.DataDir, c.state); err != nil {
				slog.Warn("cannot save state", slog.String("error", err.Error()))
			}
		}
		c.lastSeekPosition = -1
		if !resp.UserNavigation && c.tray.ImageType() == traymenu.Play {
			c.tray.PlayHL()
		}

	case engine.RespPlaylistEnded:
		c.pop.Show("the playlist has ended")

	case engine.RespNewMeta:
		c.meta = resp.Meta
		zero := time.Duration(0)
		c.setPlaybackState(c.playbackState, &zero)
		c.updateTray(resp.UserNavigation)

	case engine.RespPlaybackStateChanged:
		pos := resp.Position
		c.setPlaybackState(resp.State, &pos)

	case engine.RespPositionRequested:
		pos := resp.Position
		c.setPlaybackState(c.playbackState, &pos)

	case engine.RespSeeked:
		c.lastSeekPosition = resp.Position
		c.position = resp.Position
		c.mk.SetPosition(resp.Position)

	case engine.RespPositionCallback:
		c.processPositionCallback(resp.Callback)

	case engine.RespVolumeSet:
		// no-op, matching PlayerResponse::VolumeSet

	case engine.RespExited:
		return false
	}
	return true
}
