// Package popup shows desktop notifications over the freedesktop
// Notifications D-Bus interface, reusing the last notification's id so a
// fast sequence of updates (e.g. scrobble/now-playing popups) replaces the
// previous bubble instead of stacking new ones. Grounded on
// original_source/src/popup.rs's handle-id reuse and close-callback logic,
// ported onto the same org.freedesktop.Notifications call the teacher's
// utils/notify.Notify uses on Linux.
package popup

import (
	"html"
	"log/slog"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/pkg/errors"

	"github.com/sonora-player/sonora/internal/errutil"
)

const (
	notifyDest = "org.freedesktop.Notifications"
	notifyPath = "/org/freedesktop/Notifications"
	expireMs   = int32(5000)
)

// tooManySimilar is the error text notify-daemons return when a client is
// rate-limited for repeating near-identical notifications in quick
// succession. The original treats it as a non-error to avoid log spam.
const tooManySimilar = "too many"

// Popup shows a single rolling desktop notification for an application.
type Popup struct {
	appName string

	mu       sync.Mutex
	conn     *dbus.Conn
	handleID uint32 // 0 means "no current notification"
}

// New connects to the session bus and starts watching for notification
// close events so a reused handle id is forgotten once the user dismisses
// it.
func New(appName string) (*Popup, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, errors.Wrap(err, "cannot create D-Bus session")
	}

	p := &Popup{appName: appName, conn: conn}

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface(notifyDest),
		dbus.WithMatchMember("NotificationClosed"),
	); err != nil {
		return nil, errors.Wrap(err, "cannot subscribe to notification close events")
	}
	signals := make(chan *dbus.Signal, 8)
	conn.Signal(signals)
	go p.watchClose(signals)

	return p, nil
}

func (p *Popup) watchClose(signals <-chan *dbus.Signal) {
	for sig := range signals {
		if sig.Name != notifyDest+".NotificationClosed" || len(sig.Body) == 0 {
			continue
		}
		closedID, ok := sig.Body[0].(uint32)
		if !ok {
			continue
		}
		p.mu.Lock()
		if p.handleID == closedID {
			p.handleID = 0
		}
		p.mu.Unlock()
	}
}

// Show displays body, replacing the previous popup if one is still open.
// It runs in its own goroutine, matching the original's fire-and-forget
// thread_util::thread("popup", ...) dispatch.
func (p *Popup) Show(body string) {
	errutil.WaitGoStart("popup-show", func() {
		if err := p.showRaw(body); err != nil {
			slog.Warn("cannot show popup", slog.String("error", err.Error()))
		}
	})
}

func (p *Popup) showRaw(body string) error {
	htmlBody := html.EscapeString(body)

	p.mu.Lock()
	replaceID := p.handleID
	p.mu.Unlock()

	obj := p.conn.Object(notifyDest, dbus.ObjectPath(notifyPath))
	call := obj.Call(notifyDest+".Notify", 0,
		p.appName, replaceID, "", "", htmlBody, []string{}, map[string]dbus.Variant{}, expireMs)
	if call.Err != nil {
		if replaceID != 0 && strings.Contains(strings.ToLower(call.Err.Error()), tooManySimilar) {
			return nil
		}
		if replaceID != 0 {
			return errors.Wrap(call.Err, "cannot update popup")
		}
		return errors.Wrap(call.Err, "cannot create popup")
	}

	var newID uint32
	if err := call.Store(&newID); err != nil {
		return errors.Wrap(err, "cannot read popup id")
	}

	p.mu.Lock()
	p.handleID = newID
	p.mu.Unlock()
	return nil
}

// Close stops watching for close events. It does not close the underlying
// D-Bus connection: dbus.SessionBus() hands out a process-wide shared
// connection, and other packages (mediakeys, showfile) may still be using
// it.
func (p *Popup) Close() error {
	return p.conn.RemoveMatchSignal(
		dbus.WithMatchInterface(notifyDest),
		dbus.WithMatchMember("NotificationClosed"),
	)
}
