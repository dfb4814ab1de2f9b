// Package lastfm scrobbles finished tracks and announces the currently
// playing one to Last.fm. Grounded on original_source/src/lastfm.rs: the
// session-key auth handshake and session storage mirror that file's
// new_or_none/useable_or_none/cli_auth, and the batched-scrobble-with-
// not-yet-submitted-on-failure logic mirrors its scrobble/not_scrobbled_file
// pair. The session-key handshake and Track.Scrobble/UpdateNowPlaying calls
// use the teacher's github.com/shkh/lastfm-go client (internal/lastfm/
// api.go), in place of the original's hand-signed ureq HTTP calls.
package lastfm

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	lastfmgo "github.com/shkh/lastfm-go"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/pkg/errors"

	"github.com/sonora-player/sonora/internal/errutil"
	"github.com/sonora-player/sonora/internal/persist"
	"github.com/sonora-player/sonora/internal/trackmodel"
)

// maxScrobbles mirrors original_source's MAX_SCROBBLES: the most recent
// pending scrobbles submitted in one API call.
const maxScrobbles = 50

// pendingItem is one not-yet-confirmed scrobble, mirroring ScrobbleItem.
type pendingItem struct {
	Artist    string `json:"artist"`
	Track     string `json:"track"`
	Album     string `json:"album,omitempty"`
	Number    int    `json:"number,omitempty"`
	Duration  int64  `json:"duration,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func sessionKeyFile(dataDir string) persist.StringFile {
	return persist.NewStringFile(dataDir, "lastfm_session_key", "Last.fm session key file")
}

func notScrobbledFile(dataDir string) persist.JSONFile[[]pendingItem] {
	return persist.NewJSONFile[[]pendingItem](dataDir, "lastfm_not_scrobbled.json", "not-scrobbled tracks file")
}

// Scrobbler submits now-playing and scrobble events to Last.fm. A nil
// *Scrobbler (returned by New when no API key/secret or no stored session
// exists) is valid to call methods on; they are then no-ops, matching
// useable_or_none's "support not enabled" fallback.
type Scrobbler struct {
	api     *lastfmgo.Api
	dataDir string

	eg errgroup.Group

	mu           sync.Mutex
	notScrobbled []pendingItem
}

// Wait blocks until every in-flight now-playing/scrobble call started by
// this Scrobbler has returned, so a caller can await them at shutdown.
// Each scrobble call persists the not-scrobbled queue itself.
func (s *Scrobbler) Wait() {
	if s == nil {
		return
	}
	_ = s.eg.Wait()
}

// New builds a Scrobbler if apiKey/apiSecret are set and a session key was
// previously stored by Authenticate; otherwise it logs why and returns nil,
// matching useable_or_none.
func New(dataDir, apiKey, apiSecret string) *Scrobbler {
	if apiKey == "" || apiSecret == "" {
		slog.Info("Last.fm is not configured, skipping")
		return nil
	}
	sessionKey, err := sessionKeyFile(dataDir).Load()
	if err != nil {
		slog.Info("no Last.fm authorization found, run the lastfm-auth subcommand to enable scrobbling")
		return nil
	}

	api := lastfmgo.New(apiKey, apiSecret)
	api.SetSession(sessionKey)

	s := &Scrobbler{api: api, dataDir: dataDir}
	if pending, err := notScrobbledFile(dataDir).Load(); err == nil {
		s.notScrobbled = pending
	}
	return s
}

// PlayingNow announces the currently playing track. Errors are logged, not
// returned: a failed now-playing call does not affect scrobbling.
func (s *Scrobbler) PlayingNow(track trackmodel.Track, meta trackmodel.TrackMeta) {
	if s == nil {
		return
	}
	params := lastfmgo.P{
		"artist": meta.Artist,
		"track":  meta.Title,
	}
	if meta.Album != "" {
		params["album"] = meta.Album
	}
	if meta.Track > 0 {
		params["trackNumber"] = meta.Track
	}
	if meta.Duration > 0 {
		params["duration"] = int64(meta.Duration / time.Second)
	}

	s.eg.Go(func() error {
		errutil.Recover("lastfm-now-playing", func() {
			if _, err := s.api.Track.UpdateNowPlaying(params); err != nil {
				slog.Warn("Last.fm now-playing call failed", slog.String("error", err.Error()))
			}
		})
		return nil
	})
}

// Scrobble queues a finished track for submission and flushes the pending
// batch (most recent maxScrobbles entries, per Last.fm's scrobble API
// limit). On failure the batch is kept and persisted to disk so it is
// retried on the next successful call or the next run.
func (s *Scrobbler) Scrobble(meta trackmodel.TrackMeta, playedAt time.Time) {
	if s == nil {
		return
	}
	item := pendingItem{
		Artist:    meta.Artist,
		Track:     meta.Title,
		Album:     meta.Album,
		Number:    meta.Track,
		Timestamp: playedAt.Unix(),
	}
	if meta.Duration > 0 {
		item.Duration = int64(meta.Duration / time.Second)
	}

	s.mu.Lock()
	s.notScrobbled = append(s.notScrobbled, item)
	batch := s.batch()
	s.mu.Unlock()

	s.eg.Go(func() error {
		errutil.Recover("lastfm-scrobble", func() { s.submit(batch) })
		return nil
	})
}

func (s *Scrobbler) batch() []pendingItem {
	n := len(s.notScrobbled)
	start := 0
	if n > maxScrobbles {
		start = n - maxScrobbles
	}
	out := make([]pendingItem, n-start)
	copy(out, s.notScrobbled[start:])
	return out
}

func (s *Scrobbler) submit(batch []pendingItem) {
	params := lastfmgo.P{}
	for i, item := range batch {
		params[fmt.Sprintf("artist[%d]", i)] = item.Artist
		params[fmt.Sprintf("track[%d]", i)] = item.Track
		params[fmt.Sprintf("timestamp[%d]", i)] = item.Timestamp
		if item.Album != "" {
			params[fmt.Sprintf("album[%d]", i)] = item.Album
		}
		if item.Number > 0 {
			params[fmt.Sprintf("trackNumber[%d]", i)] = item.Number
		}
		if item.Duration > 0 {
			params[fmt.Sprintf("duration[%d]", i)] = item.Duration
		}
	}

	submitted := make(map[int64]bool, len(batch))
	if _, err := s.api.Track.Scrobble(params); err != nil {
		slog.Warn("Last.fm scrobble call failed", slog.String("error", err.Error()))
	} else {
		for _, item := range batch {
			submitted[item.Timestamp] = true
		}
	}

	s.mu.Lock()
	if len(submitted) > 0 {
		kept := s.notScrobbled[:0]
		for _, item := range s.notScrobbled {
			if !submitted[item.Timestamp] {
				kept = append(kept, item)
			}
		}
		s.notScrobbled = kept
	}
	toSave := make([]pendingItem, len(s.notScrobbled))
	copy(toSave, s.notScrobbled)
	s.mu.Unlock()

	if err := notScrobbledFile(s.dataDir).Save(toSave); err != nil {
		slog.Warn("cannot persist not-scrobbled queue", slog.String("error", err.Error()))
	}
}

// Authenticate runs the interactive username/password handshake (Last.fm's
// mobile session API, via lastfm-go's Login) and stores the resulting
// session key, mirroring cli_auth. It refuses to overwrite an existing
// stored session.
func Authenticate(dataDir, apiKey, apiSecret string) error {
	if apiKey == "" || apiSecret == "" {
		return errors.New("Last.fm support was not enabled: no api key/secret configured")
	}
	keyFile := sessionKeyFile(dataDir)
	if _, err := keyFile.Load(); err == nil {
		return errors.New("there is already a stored Last.fm session key; remove it to authenticate again")
	}

	username, err := readLine("Last.fm username: ")
	if err != nil {
		return errors.Wrap(err, "cannot read username")
	}
	if username == "" {
		return errors.New("the username can't be empty")
	}
	password, err := readPassword("Last.fm password: ")
	if err != nil {
		return errors.Wrap(err, "cannot read password")
	}
	if password == "" {
		return errors.New("the password can't be empty")
	}

	api := lastfmgo.New(apiKey, apiSecret)
	if err := api.Login(username, password); err != nil {
		return errors.Wrap(err, "Last.fm login failed")
	}

	if err := keyFile.Save(api.GetSessionKey()); err != nil {
		return errors.Wrap(err, "cannot save session key")
	}
	fmt.Println("Authenticated with Last.fm")
	return nil
}

func readLine(prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
