// Package showfile asks the desktop's file manager to reveal a file,
// over the org.freedesktop.FileManager1 D-Bus interface. Grounded on
// original_source/src/show_file.rs.
package showfile

import (
	"context"
	"path/filepath"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/pkg/errors"
)

const callTimeout = 5 * time.Second

// ShowFile reveals path in the default file manager, with it selected.
func ShowFile(path string) error {
	return runMethod(path, "ShowItems")
}

// OpenFolder opens the folder at path in the default file manager.
func OpenFolder(path string) error {
	return runMethod(path, "ShowFolders")
}

func runMethod(path, method string) error {
	conn, err := dbus.SessionBus()
	if err != nil {
		return errors.Wrap(err, "cannot create D-Bus session")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrapf(err, "can't transform a path into URL: %s", path)
	}
	url := (&fileURL{abs}).String()

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	obj := conn.Object("org.freedesktop.FileManager1", "/org/freedesktop/FileManager1")
	call := obj.CallWithContext(ctx, "org.freedesktop.FileManager1."+method, 0, []string{url}, "")
	if call.Err != nil {
		return errors.Wrapf(call.Err, "failed to call D-Bus method %s on %s", method, url)
	}
	return nil
}

type fileURL struct{ path string }

func (f *fileURL) String() string {
	return "file://" + filepath.ToSlash(f.path)
}
