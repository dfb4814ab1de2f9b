// Package applog wires process-wide structured logging the way the
// teacher's utils/slogx does: a single text handler over a log file under
// the state directory, with the stdlib log package redirected to the same
// writer so third-party libraries that still use log.Print end up in the
// same file.
package applog

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

var initOnce sync.Once

// Init opens "<stateDir>/sonora.log" and installs it as the default slog
// handler. Safe to call more than once; only the first call takes effect.
func Init(stateDir string) error {
	var initErr error
	initOnce.Do(func() {
		if err := os.MkdirAll(stateDir, 0o755); err != nil {
			initErr = errors.Wrap(err, "cannot create log directory")
			return
		}
		logPath := filepath.Join(stateDir, "sonora.log")
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			initErr = errors.Wrap(err, "cannot open log file")
			return
		}
		logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{AddSource: true}))
		log.SetOutput(f)
		slog.SetDefault(logger)
	})
	return initErr
}

// Error renders err (with its pkg/errors stack trace, when present) as a
// slog attribute, mirroring the teacher's slogx.Error helper.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", fmt.Sprintf("%+v", err))
}
