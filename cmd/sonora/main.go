// Command sonora is a background audio player for local music libraries:
// decode/mix/playback, CUE sheets, playlist navigation, MPRIS/media-key
// control, and Last.fm/ListenBrainz scrobbling. Grounded on
// original_source/src/{entry.rs,cli.rs,main.rs} and the teacher's
// cmd/musicfox.go composition (gookit/gcli subcommand app).
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/gookit/gcli/v2"

	"github.com/sonora-player/sonora/internal/appconfig"
	"github.com/sonora-player/sonora/internal/appcontrol"
	"github.com/sonora-player/sonora/internal/applog"
	"github.com/sonora-player/sonora/internal/ipc"
	"github.com/sonora-player/sonora/internal/scrobble/lastfm"
	"github.com/sonora-player/sonora/internal/scrobble/listenbrainz"
	"github.com/sonora-player/sonora/internal/showfile"
)

// singletonID mirrors entry.rs's SINGLETON_ID: a fixed id so the IPC socket
// and lock file names are stable across runs and independent of install
// path.
const singletonID = "sonora-bfde662d-2ed2-4672-b3bb-ca27b6b97002"

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

// singletonPayload is what a second invocation hands to the first over the
// IPC socket, mirroring entry.rs's SingletonPayload.
type singletonPayload struct {
	Paths      []string `json:"paths"`
	CurrentDir string   `json:"current_dir"`
}

func main() {
	app := gcli.NewApp()
	app.Name = "sonora"
	app.Version = version
	app.Description = "a background audio player for local music libraries"

	app.Add(newLastfmAuthCommand())
	app.Add(newListenBrainzAuthCommand())
	app.Add(newDataFolderCommand())
	app.Add(newVersionCommand())
	app.Add(newRunCommand())
	app.DefaultCommand("run")

	app.Run()
}

func newVersionCommand() *gcli.Command {
	return &gcli.Command{
		Name:   "version",
		UseFor: "Print detailed version information",
		Func: func(_ *gcli.Command, _ []string) error {
			fmt.Printf("version: %s\n", version)
			fmt.Printf("go version: %s\n", runtime.Version())
			fmt.Printf("target system: %s-%s\n", runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
}

func newDataFolderCommand() *gcli.Command {
	return &gcli.Command{
		Name:   "data-folder",
		UseFor: "Open the data folder in the file manager",
		Func: func(_ *gcli.Command, _ []string) error {
			paths := appconfig.Resolve()
			return showfile.OpenFolder(paths.DataDir)
		},
	}
}

func newLastfmAuthCommand() *gcli.Command {
	return &gcli.Command{
		Name:   "lastfm-auth",
		UseFor: "Authenticate with Last.fm",
		Func: func(_ *gcli.Command, _ []string) error {
			paths := appconfig.Resolve()
			cfg, err := appconfig.Load(paths.ConfigDir)
			if err != nil {
				return err
			}
			return lastfm.Authenticate(paths.DataDir, cfg.Scrobble.LastfmAPIKey, cfg.Scrobble.LastfmAPISecret)
		},
	}
}

func newListenBrainzAuthCommand() *gcli.Command {
	return &gcli.Command{
		Name:   "listenbrainz-auth",
		UseFor: "Authenticate with ListenBrainz",
		Func: func(_ *gcli.Command, _ []string) error {
			paths := appconfig.Resolve()
			return listenbrainz.Authenticate(paths.DataDir)
		},
	}
}

func newRunCommand() *gcli.Command {
	return &gcli.Command{
		Name:   "run",
		UseFor: "Start sonora (the default when no subcommand is given)",
		Func: func(_ *gcli.Command, trailingArgs []string) error {
			return runApp(trailingArgs)
		},
	}
}

func runApp(cliPaths []string) error {
	paths := appconfig.Resolve()

	if err := applog.Init(paths.StateDir); err != nil {
		return fmt.Errorf("cannot init logging: %w", err)
	}

	cfg, err := appconfig.Load(paths.ConfigDir)
	if err != nil {
		return fmt.Errorf("cannot load config: %w", err)
	}

	currentDir, _ := os.Getwd()
	payload := &singletonPayload{Paths: cliPaths, CurrentDir: currentDir}

	single, isOwner, err := ipc.New(singletonID, payload)
	if err != nil {
		return fmt.Errorf("cannot set up single-instance guard: %w", err)
	}
	if !isOwner {
		slog.Info("another instance is already running, handed off paths to it")
		return nil
	}
	defer single.Close()

	slog.Info("starting up...")
	ctl, err := appcontrol.New(cfg, paths, resolveAll(cliPaths, currentDir))
	if err != nil {
		return fmt.Errorf("cannot start: %w", err)
	}

	if err := single.Listen(func(p singletonPayload) {
		ctl.SubmitPaths(resolveAll(p.Paths, p.CurrentDir))
	}); err != nil {
		return fmt.Errorf("cannot listen for other instances: %w", err)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sigs
		ctl.RequestQuit()
	}()

	slog.Info("started")
	ctl.Run()
	ctl.Shutdown()
	slog.Info("shutdown complete")
	return nil
}

// resolveAll turns relative CLI/IPC paths into absolute ones using the
// directory the invoking process was run from, matching entry.rs handing
// current_dir alongside the raw path list to App::new_args.
func resolveAll(paths []string, fromDir string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		if filepath.IsAbs(p) || fromDir == "" {
			out[i] = p
			continue
		}
		out[i] = filepath.Join(fromDir, p)
	}
	return out
}
