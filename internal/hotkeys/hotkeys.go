// Package hotkeys listens for global (desktop-wide) key combinations and
// turns them into named engine actions, per the bindings in
// appconfig.HotkeysConfig. Grounded on the teacher's
// internal/ui/global_hotkey_enabled.go + vendored
// anhoder/foxful-cli/model/global_hotkey_enabled.go
// (hook.Register/hook.Start/hook.Process), adapted onto
// original_source/src/app.rs's HotKeyAction set (toggle_stop/next/prev/
// next_dir/prev_dir/pause_toggle/vol_down/vol_up/sysvol_down/sysvol_up).
package hotkeys

import (
	"log/slog"
	"strings"

	hook "github.com/robotn/gohook"
)

// Action names a bound engine operation, matching the strings used in
// appconfig.HotkeysConfig.Bindings (and original_source's HotKeyAction).
type Action string

const (
	ToggleStop  Action = "toggle_stop"
	Next        Action = "next"
	Prev        Action = "prev"
	NextDir     Action = "next_dir"
	PrevDir     Action = "prev_dir"
	PauseToggle Action = "pause_toggle"
	VolDown     Action = "vol_down"
	VolUp       Action = "vol_up"
	SysVolDown  Action = "sysvol_down"
	SysVolUp    Action = "sysvol_up"
)

// Listener delivers Actions as their bound key combination fires.
type Listener struct {
	actions chan Action
}

// Start registers every binding as a global hotkey and begins processing
// events in the background. bindings maps a "+"-joined key combination
// (gohook key names) to an Action name; unknown action names are skipped
// with a warning rather than failing startup.
func Start(bindings map[string]string) *Listener {
	l := &Listener{actions: make(chan Action, 16)}

	for combo, name := range bindings {
		action := Action(name)
		if !validAction(action) {
			slog.Warn("invalid hotkey action, ignoring binding",
				slog.String("action", name), slog.String("combo", combo))
			continue
		}
		keys := strings.Split(combo, "+")
		hook.Register(hook.KeyDown, keys, func(hook.Event) {
			select {
			case l.actions <- action:
			default:
			}
		})
	}

	s := hook.Start()
	go hook.Process(s)

	return l
}

func validAction(a Action) bool {
	switch a {
	case ToggleStop, Next, Prev, NextDir, PrevDir, PauseToggle, VolDown, VolUp, SysVolDown, SysVolUp:
		return true
	default:
		return false
	}
}

// Actions exposes the channel of fired hotkey actions.
func (l *Listener) Actions() <-chan Action { return l.actions }

// Stop unregisters all global hotkeys and stops event processing.
func (l *Listener) Stop() {
	hook.End()
}
