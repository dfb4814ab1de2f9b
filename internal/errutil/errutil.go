// Package errutil centralizes the "log and continue" and goroutine-recover
// idioms. The recover helpers contain panics in the scrobblers' and the
// popup's background calls.
package errutil

import (
	"log/slog"
	"runtime/debug"

	"github.com/pkg/errors"
)

// LogIfErr logs err at warn level with context, if non-nil. It is the Go
// analogue of the teacher's errorx "ignore but log" helpers.
func LogIfErr(context string, err error) {
	if err == nil {
		return
	}
	slog.Warn(context, "error", err)
}

// Wrap attaches context to err using github.com/pkg/errors, preserving a
// stack trace for the eventual slog record.
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	return errors.WithMessage(err, context)
}

// Recover runs fn in the current goroutine, recovering any panic and
// logging it instead of crashing the process. Used to wrap the scrobble
// workers and, through WaitGoStart, popup notifications, the way the
// teacher wraps its player callback in beep_player.go.
func Recover(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("recovered from panic", "goroutine", name, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn()
}

// WaitGoStart runs fn in a new goroutine, wrapped with Recover, and returns
// immediately. Mirrors the teacher's errorx.WaitGoStart naming.
func WaitGoStart(name string, fn func()) {
	go Recover(name, fn)
}
