// Package ipc provides a single-instance guard: the first process to run
// becomes the listener on a Unix socket; later invocations detect it, hand
// their payload over the socket, and exit. Grounded on
// original_source/src/singleton.rs, using a flock'd lock file plus a Unix
// socket in place of interprocess::local_socket + fd_lock.
package ipc

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"net"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

func sockPath(name string) string { return filepath.Join(os.TempDir(), name+".sock") }
func lockPath(name string) string { return filepath.Join(os.TempDir(), name+".lock") }

// Singleton is the listening end of the single-instance guard, held by the
// one process allowed to own name.
type Singleton[T any] struct {
	lockFile *os.File
	sockPath string
	listener net.Listener
}

// New attempts to become the singleton owner of name. If another instance
// already owns it, payload (when non-nil) is forwarded to it over the
// socket and New returns (nil, false, nil): the caller should exit
// immediately. Otherwise it returns a Singleton ready for Listen.
func New[T any](name string, payload *T) (*Singleton[T], bool, error) {
	path := sockPath(name)

	if conn, err := net.Dial("unix", path); err == nil {
		defer conn.Close()
		if payload != nil {
			b, merr := json.Marshal(payload)
			if merr != nil {
				return nil, false, errors.Wrap(merr, "cannot serialize singleton data")
			}
			b = append(b, '\n')
			if _, werr := conn.Write(b); werr != nil {
				return nil, false, errors.Wrap(werr, "socket send failed")
			}
		}
		return nil, false, nil
	}

	lockFile, err := createLockFile(name)
	if err != nil {
		return nil, false, errors.Wrap(err, "cannot create lock file")
	}

	_ = os.Remove(path) // stale socket left by a crashed previous run
	return &Singleton[T]{lockFile: lockFile, sockPath: path}, true, nil
}

func createLockFile(name string) (*os.File, error) {
	path := lockPath(name)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open %s", path)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "cannot lock %s", path)
	}
	if _, err := f.WriteString(name); err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "cannot write %s", path)
	}
	return f, nil
}

// Listen starts accepting connections in the background, calling onData
// for each successfully decoded payload.
func (s *Singleton[T]) Listen(onData func(T)) error {
	listener, err := net.Listen("unix", s.sockPath)
	if err != nil {
		return errors.Wrap(err, "cannot bind to local socket")
	}
	s.listener = listener

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				scanner := bufio.NewScanner(c)
				if !scanner.Scan() {
					return
				}
				var data T
				if err := json.Unmarshal(scanner.Bytes(), &data); err != nil {
					slog.Warn("cannot parse incoming socket buffer", slog.String("error", err.Error()))
					return
				}
				onData(data)
			}(conn)
		}
	}()
	return nil
}

// Close releases the lock file and socket, making this name available for
// the next process to claim.
func (s *Singleton[T]) Close() {
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.lockFile != nil {
		_ = unix.Flock(int(s.lockFile.Fd()), unix.LOCK_UN)
		_ = s.lockFile.Close()
		_ = os.Remove(s.lockFile.Name())
	}
	_ = os.Remove(s.sockPath)
}
