// Package traymenu defines the 4-state icon tray contract the player
// drives (Stop/Play/PlayHL/Pause, a tooltip, and a menu), grounded on
// original_source/src/tray_icon.rs's TrayIcon/TrayIconData/TrayMenuItem.
//
// The teacher backs its tray with getlantern/systray, which needs cgo and
// a running X11/Wayland tray host with per-platform build tags the curated
// copy doesn't carry on this target (see DESIGN.md's dropped-dependency
// note). The concrete backend here instead announces state transitions as
// desktop notifications through internal/popup, so the same call shape
// (Play/Pause/Stop/PlayHL/SetTooltip/AddMenuItem) stays a drop-in target
// for a systray-backed implementation later.
package traymenu

import (
	"fmt"
	"sync"

	"github.com/sonora-player/sonora/internal/popup"
)

// ImageType mirrors original_source's TrayIconImageType.
type ImageType int

const (
	Stop ImageType = iota
	Play
	PlayHL
	Pause
)

func (t ImageType) String() string {
	switch t {
	case Play:
		return "Play"
	case PlayHL:
		return "Play (liked)"
	case Pause:
		return "Pause"
	default:
		return "Stop"
	}
}

// MenuItem is one clickable tray menu entry, mirroring TrayMenuItem.
type MenuItem struct {
	Label    string
	Activate func()
}

// Tray is the contract internal/appcontrol drives. SetTooltip and the four
// state setters are no-ops when the image/tooltip doesn't change, matching
// the original's same-state short-circuit.
type Tray interface {
	Play()
	PlayHL()
	Stop()
	Pause()
	ImageType() ImageType
	SetTooltip(text string)
	AddMenuItem(item MenuItem)
	Shutdown()
}

// NotifyTray implements Tray by posting a desktop notification on every
// state transition instead of rendering a status-notifier-item icon.
type NotifyTray struct {
	notify *popup.Popup

	mu        sync.Mutex
	imageType ImageType
	tooltip   string
	menuItems []MenuItem
}

// New connects its own notification channel (distinct from any popup used
// for scrobble announcements) and starts in the Stop state.
func New(appName string) (*NotifyTray, error) {
	p, err := popup.New(appName + " tray")
	if err != nil {
		return nil, err
	}
	return &NotifyTray{notify: p, imageType: Stop}, nil
}

func (t *NotifyTray) setImage(it ImageType) {
	t.mu.Lock()
	if t.imageType == it {
		t.mu.Unlock()
		return
	}
	t.imageType = it
	tooltip := t.tooltip
	t.mu.Unlock()

	body := it.String()
	if tooltip != "" {
		body = fmt.Sprintf("%s — %s", it, tooltip)
	}
	t.notify.Show(body)
}

func (t *NotifyTray) Play()   { t.setImage(Play) }
func (t *NotifyTray) PlayHL() { t.setImage(PlayHL) }
func (t *NotifyTray) Stop()   { t.setImage(Stop) }
func (t *NotifyTray) Pause()  { t.setImage(Pause) }

func (t *NotifyTray) ImageType() ImageType {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.imageType
}

// SetTooltip updates the text shown alongside the next state-change
// notification; it does not itself trigger one.
func (t *NotifyTray) SetTooltip(text string) {
	t.mu.Lock()
	t.tooltip = text
	t.mu.Unlock()
}

// AddMenuItem records a menu entry. There is no clickable surface to
// attach it to without a real tray icon; it is kept so a systray-backed
// Tray can be swapped in without changing callers.
func (t *NotifyTray) AddMenuItem(item MenuItem) {
	t.mu.Lock()
	t.menuItems = append(t.menuItems, item)
	t.mu.Unlock()
}

// Shutdown releases the notification channel.
func (t *NotifyTray) Shutdown() {
	t.notify.Close()
}
