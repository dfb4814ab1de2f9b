// Package mediakeys exposes the player as an MPRIS MediaPlayer2 object on
// the session bus, so desktop media keys and shell integrations (GNOME's
// top bar, playerctl, KDE's media widget) can drive playback. Grounded on
// the teacher's internal/remote_control/{remote_control_linux.go,
// mpris_player_linux.go}, generalized from the teacher's Controller/
// PlayingInfo types onto trackmodel.
package mediakeys

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"
	"github.com/pkg/errors"

	"github.com/sonora-player/sonora/internal/trackmodel"
)

// Action names a control request received over MPRIS.
type Action int

const (
	ActionNext Action = iota
	ActionPrevious
	ActionPlay
	ActionPause
	ActionPlayPause
	ActionStop
	ActionSeek
	ActionSetPosition
	ActionSetVolume
)

// Command is one inbound MPRIS control request.
type Command struct {
	Action Action
	// Seek is the relative offset for ActionSeek (may be negative).
	Seek time.Duration
	// Volume is the absolute [0,1] volume for ActionSetVolume.
	Volume float64
}

// TimeInUs is time in microseconds, MPRIS's wire representation of
// durations and positions.
// https://specifications.freedesktop.org/mpris-spec/latest/Player_Interface.html#Simple-Type:Time_In_Us
type TimeInUs int64

func usFromDuration(d time.Duration) TimeInUs { return TimeInUs(d / time.Microsecond) }

// playbackStatus maps a trackmodel.PlaybackState onto the MPRIS enum.
// https://specifications.freedesktop.org/mpris-spec/latest/Player_Interface.html#Enum:Playback_Status
func playbackStatus(s trackmodel.PlaybackState) string {
	switch s {
	case trackmodel.Playing:
		return "Playing"
	case trackmodel.Paused:
		return "Paused"
	default:
		return "Stopped"
	}
}

// MediaPlayer2 implements the root org.mpris.MediaPlayer2 interface.
type MediaPlayer2 struct {
	*MediaKeys
}

func (m *MediaPlayer2) properties() map[string]*prop.Prop {
	return map[string]*prop.Prop{
		"CanQuit":             newProp(true, nil),
		"CanRaise":            newProp(false, nil),
		"HasTrackList":        newProp(false, nil),
		"Identity":            newProp(m.appName, nil),
		"SupportedUriSchemes": newProp([]string{}, nil),
		"SupportedMimeTypes":  newProp([]string{}, nil),
	}
}

func (m *MediaPlayer2) Raise() *dbus.Error { return nil }

func (m *MediaPlayer2) Quit() *dbus.Error {
	m.send(Command{Action: ActionStop})
	return nil
}

// Player implements org.mpris.MediaPlayer2.Player.
type Player struct {
	*MediaKeys
	props map[string]*prop.Prop
}

func (p *Player) onVolume(c *prop.Change) *dbus.Error {
	p.send(Command{Action: ActionSetVolume, Volume: c.Value.(float64)})
	return nil
}

func (p *Player) createProps() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.props = map[string]*prop.Prop{
		"PlaybackStatus": newProp(playbackStatus(p.state), nil),
		"LoopStatus":     newProp("None", nil),
		"Rate":           newProp(1.0, nil),
		"Shuffle":        newProp(false, nil),
		"Metadata":       newProp(metadataFor(p.track, p.meta), nil),
		"Volume":         newProp(p.volume, p.onVolume),
		"Position": {
			Value:    usFromDuration(p.position),
			Writable: false,
			Emit:     prop.EmitFalse,
		},
		"MinimumRate":   newProp(1.0, nil),
		"MaximumRate":   newProp(1.0, nil),
		"CanGoNext":     newProp(true, nil),
		"CanGoPrevious": newProp(true, nil),
		"CanPlay":       newProp(true, nil),
		"CanPause":      newProp(true, nil),
		"CanSeek":       newProp(true, nil),
		"CanControl":    newProp(true, nil),
	}
}

func (p *Player) Next() *dbus.Error       { p.send(Command{Action: ActionNext}); return nil }
func (p *Player) Previous() *dbus.Error   { p.send(Command{Action: ActionPrevious}); return nil }
func (p *Player) Pause() *dbus.Error      { p.send(Command{Action: ActionPause}); return nil }
func (p *Player) Play() *dbus.Error       { p.send(Command{Action: ActionPlay}); return nil }
func (p *Player) PlayPause() *dbus.Error  { p.send(Command{Action: ActionPlayPause}); return nil }
func (p *Player) Stop() *dbus.Error       { p.send(Command{Action: ActionStop}); return nil }

func (p *Player) Seek(offsetUs int64) *dbus.Error {
	p.send(Command{Action: ActionSeek, Seek: time.Duration(offsetUs) * time.Microsecond})
	return nil
}

func (p *Player) SetPosition(trackID dbus.ObjectPath, positionUs int64) *dbus.Error {
	p.send(Command{Action: ActionSetPosition, Seek: time.Duration(positionUs) * time.Microsecond})
	return nil
}

type metadataMap map[string]interface{}

func metadataFor(t trackmodel.Track, m trackmodel.TrackMeta) metadataMap {
	if t.Filename == "" {
		return metadataMap{
			"mpris:trackid": dbus.ObjectPath("/org/mpris/MediaPlayer2/TrackList/NoTrack"),
		}
	}
	md := metadataMap{
		"mpris:trackid": dbus.ObjectPath(fmt.Sprintf("/org/sonora/Tracks/%d", trackID(t))),
		"mpris:length":  m.Duration / time.Microsecond,
	}
	if m.Album != "" {
		md["xesam:album"] = m.Album
	}
	if m.Title != "" {
		md["xesam:title"] = m.Title
	}
	if m.Artist != "" {
		md["xesam:artist"] = []string{m.Artist}
	}
	if m.AlbumArtist != "" {
		md["xesam:albumArtist"] = []string{m.AlbumArtist}
	}
	return md
}

// trackID derives a stable-enough numeric id from a track's identity for
// the mpris:trackid object path; MPRIS only requires uniqueness, not
// meaning.
func trackID(t trackmodel.Track) int64 {
	h := int64(0)
	for _, c := range t.Filename {
		h = h*31 + int64(c)
	}
	return h ^ int64(t.CueStart)
}

// MediaKeys owns the session-bus export and the current transport snapshot
// used to answer MPRIS property reads.
type MediaKeys struct {
	appName string
	name    string
	conn    *dbus.Conn
	props   *prop.Properties
	cmds    chan Command

	mu       sync.Mutex
	state    trackmodel.PlaybackState
	track    trackmodel.Track
	meta     trackmodel.TrackMeta
	volume   float64
	position time.Duration
}

// New exports an MPRIS MediaPlayer2 object on the session bus and returns a
// channel of inbound control commands (media keys, playerctl, shell
// widgets). A failure to reach the session bus is non-fatal: New still
// returns a usable MediaKeys whose Set* calls become no-ops, matching the
// original's best-effort remote-control setup.
func New(appName string) (*MediaKeys, <-chan Command, error) {
	mk := &MediaKeys{
		appName: appName,
		name:    fmt.Sprintf("org.mpris.MediaPlayer2.sonora.instance%d", os.Getpid()),
		cmds:    make(chan Command, 16),
		volume:  1.0,
	}

	conn, err := dbus.SessionBus()
	if err != nil {
		slog.Warn("cannot init MPRIS", slog.String("error", err.Error()))
		return mk, mk.cmds, nil
	}
	mk.conn = conn

	mp2 := &MediaPlayer2{MediaKeys: mk}
	if err := conn.Export(mp2, "/org/mpris/MediaPlayer2", "org.mpris.MediaPlayer2"); err != nil {
		return nil, nil, errors.Wrap(err, "cannot export MediaPlayer2")
	}

	player := &Player{MediaKeys: mk}
	player.createProps()
	if err := conn.Export(player, "/org/mpris/MediaPlayer2", "org.mpris.MediaPlayer2.Player"); err != nil {
		return nil, nil, errors.Wrap(err, "cannot export MediaPlayer2.Player")
	}

	if err := conn.Export(introspect.NewIntrospectable(introspectNode(mk.name)), "/org/mpris/MediaPlayer2", "org.freedesktop.DBus.Introspectable"); err != nil {
		return nil, nil, errors.Wrap(err, "cannot export introspection")
	}

	mk.props, err = prop.Export(conn, "/org/mpris/MediaPlayer2", map[string]map[string]*prop.Prop{
		"org.mpris.MediaPlayer2":        mp2.properties(),
		"org.mpris.MediaPlayer2.Player": player.props,
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "cannot export properties")
	}

	if _, err := conn.RequestName(mk.name, dbus.NameFlagReplaceExisting); err != nil {
		slog.Warn("cannot request MPRIS bus name", slog.String("error", err.Error()))
	}

	return mk, mk.cmds, nil
}

func (m *MediaKeys) send(c Command) {
	select {
	case m.cmds <- c:
	default:
		slog.Warn("mediakeys command dropped, channel full")
	}
}

// SetPlayingInfo publishes the current track, metadata, transport state and
// volume. Safe to call before a successful session-bus connection.
func (m *MediaKeys) SetPlayingInfo(state trackmodel.PlaybackState, track trackmodel.Track, meta trackmodel.TrackMeta, volume float64) {
	m.mu.Lock()
	m.state, m.track, m.meta, m.volume = state, track, meta, volume
	m.mu.Unlock()

	if m.props == nil {
		return
	}
	go func() {
		m.setProp("org.mpris.MediaPlayer2.Player", "PlaybackStatus", dbus.MakeVariant(playbackStatus(state)))
		m.setProp("org.mpris.MediaPlayer2.Player", "Metadata", dbus.MakeVariant(metadataFor(track, meta)))
		m.setProp("org.mpris.MediaPlayer2.Player", "Volume", dbus.MakeVariant(math.Max(0, volume)))
	}()
}

// SetPosition publishes the current playback offset within the track.
func (m *MediaKeys) SetPosition(d time.Duration) {
	m.mu.Lock()
	m.position = d
	m.mu.Unlock()

	if m.props == nil {
		return
	}
	_ = m.props.Set("org.mpris.MediaPlayer2.Player", "Position", dbus.MakeVariant(usFromDuration(d)))
}

func (m *MediaKeys) setProp(iface, name string, value dbus.Variant) {
	if err := m.props.Set(iface, name, value); err != nil {
		slog.Warn("cannot set MPRIS property",
			slog.String("interface", iface), slog.String("property", name), slog.String("error", err.Error()))
	}
}

// Release tears down the session-bus connection.
func (m *MediaKeys) Release() {
	if m.conn == nil {
		return
	}
	_ = m.conn.Close()
}

func newProp(value interface{}, cb func(*prop.Change) *dbus.Error) *prop.Prop {
	return &prop.Prop{Value: value, Writable: cb != nil, Emit: prop.EmitTrue, Callback: cb}
}

func introspectNode(name string) *introspect.Node {
	return &introspect.Node{
		Name: name,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name: "org.mpris.MediaPlayer2",
				Properties: []introspect.Property{
					{Name: "CanQuit", Type: "b", Access: "read"},
					{Name: "CanRaise", Type: "b", Access: "read"},
					{Name: "HasTrackList", Type: "b", Access: "read"},
					{Name: "Identity", Type: "s", Access: "read"},
					{Name: "SupportedUriSchemes", Type: "as", Access: "read"},
					{Name: "SupportedMimeTypes", Type: "as", Access: "read"},
				},
				Methods: []introspect.Method{{Name: "Raise"}, {Name: "Quit"}},
			},
			{
				Name: "org.mpris.MediaPlayer2.Player",
				Properties: []introspect.Property{
					{Name: "PlaybackStatus", Type: "s", Access: "read"},
					{Name: "LoopStatus", Type: "s", Access: "readwrite"},
					{Name: "Rate", Type: "d", Access: "readwrite"},
					{Name: "Shuffle", Type: "b", Access: "readwrite"},
					{Name: "Metadata", Type: "a{sv}", Access: "read"},
					{Name: "Volume", Type: "d", Access: "readwrite"},
					{Name: "Position", Type: "x", Access: "read"},
					{Name: "MinimumRate", Type: "d", Access: "read"},
					{Name: "MaximumRate", Type: "d", Access: "read"},
					{Name: "CanGoNext", Type: "b", Access: "read"},
					{Name: "CanGoPrevious", Type: "b", Access: "read"},
					{Name: "CanPlay", Type: "b", Access: "read"},
					{Name: "CanSeek", Type: "b", Access: "read"},
					{Name: "CanControl", Type: "b", Access: "read"},
				},
				Signals: []introspect.Signal{
					{Name: "Seeked", Args: []introspect.Arg{{Name: "Position", Type: "x"}}},
				},
				Methods: []introspect.Method{
					{Name: "Next"}, {Name: "Previous"}, {Name: "Pause"},
					{Name: "PlayPause"}, {Name: "Stop"}, {Name: "Play"},
					{Name: "Seek", Args: []introspect.Arg{{Name: "Offset", Type: "x", Direction: "in"}}},
					{Name: "SetPosition", Args: []introspect.Arg{
						{Name: "TrackId", Type: "o", Direction: "in"},
						{Name: "Position", Type: "x", Direction: "in"},
					}},
				},
			},
		},
	}
}
