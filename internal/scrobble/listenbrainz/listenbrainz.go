// Package listenbrainz submits listens to ListenBrainz's /1/submit-listens
// API. Grounded on original_source/src/listenbrainz.rs; no ListenBrainz
// client library appears anywhere in the example pack, so this talks to
// the HTTP API directly (a justified stdlib net/http exception, mirroring
// the shape of the original's ureq calls rather than reimplementing a
// generic client).
package listenbrainz

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/sonora-player/sonora/internal/errutil"
	"github.com/sonora-player/sonora/internal/persist"
	"github.com/sonora-player/sonora/internal/trackmodel"
)

const (
	submitEndpoint   = "https://api.listenbrainz.org/1/submit-listens"
	validateEndpoint = "https://api.listenbrainz.org/1/validate-token"
	// maxImport mirrors the original's MAX_IMPORT: ListenBrainz's
	// MAX_LISTEN_SIZE server-side cap per submit-listens call.
	maxImport  = 25
	httpTimeout = 10 * time.Second
)

type listenType string

const (
	listenTypePlayingNow listenType = "playing_now"
	listenTypeImport     listenType = "import"
)

type additionalInfo struct {
	TrackNumber   int    `json:"tracknumber,omitempty"`
	ListeningFrom string `json:"listening_from"`
}

type trackMetadata struct {
	ArtistName     string         `json:"artist_name"`
	TrackName      string         `json:"track_name"`
	ReleaseName    string         `json:"release_name,omitempty"`
	AdditionalInfo additionalInfo `json:"additional_info"`
}

type payload struct {
	ListenedAt    *int64        `json:"listened_at,omitempty"`
	TrackMetadata trackMetadata `json:"track_metadata"`
}

type submitRequest struct {
	ListenType listenType `json:"listen_type"`
	Payload    []payload  `json:"payload"`
}

type tokenValidationResponse struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Valid    bool   `json:"valid"`
	UserName string `json:"user_name"`
}

// listenItem is one not-yet-submitted listen, mirroring ListenItem.
type listenItem struct {
	Artist    string `json:"artist"`
	Track     string `json:"track"`
	Album     string `json:"album,omitempty"`
	Number    int    `json:"number,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func tokenFile(dataDir string) persist.StringFile {
	return persist.NewStringFile(dataDir, "listenbrainz_token", "ListenBrainz token file")
}

func notSubmittedFile(dataDir string) persist.JSONFile[[]listenItem] {
	return persist.NewJSONFile[[]listenItem](dataDir, "listenbrainz_not_submitted.json", "ListenBrainz not-submitted listens list")
}

// Submitter submits listens to ListenBrainz. A nil *Submitter (returned by
// New when no token is stored) is valid to call methods on; they become
// no-ops, matching useable_or_none's log-and-skip fallback.
type Submitter struct {
	token      string
	dataDir    string
	appName    string
	httpClient *http.Client

	eg errgroup.Group

	mu           sync.Mutex
	notSubmitted []listenItem
}

// Wait blocks until every in-flight playing-now/submit call started by this
// Submitter has returned, so a caller can await them at shutdown. Each
// submit call persists the not-submitted queue itself.
func (s *Submitter) Wait() {
	if s == nil {
		return
	}
	_ = s.eg.Wait()
}

// New builds a Submitter from a previously stored token, or logs why it
// can't and returns nil.
func New(dataDir, appName string) *Submitter {
	token, err := tokenFile(dataDir).Load()
	if err != nil {
		slog.Info("no ListenBrainz authorization found, run the listenbrainz-auth subcommand to enable submission")
		return nil
	}
	s := &Submitter{
		token:      strings.TrimSpace(token),
		dataDir:    dataDir,
		appName:    appName,
		httpClient: &http.Client{Timeout: httpTimeout},
	}
	if pending, err := notSubmittedFile(dataDir).Load(); err == nil {
		s.notSubmitted = pending
	}
	return s
}

func (s *Submitter) additionalInfo(number int) additionalInfo {
	return additionalInfo{TrackNumber: number, ListeningFrom: s.appName}
}

// PlayingNow announces the currently playing track. Errors are logged, not
// returned.
func (s *Submitter) PlayingNow(meta trackmodel.TrackMeta) {
	if s == nil {
		return
	}
	req := submitRequest{
		ListenType: listenTypePlayingNow,
		Payload: []payload{{
			TrackMetadata: trackMetadata{
				ArtistName:     meta.Artist,
				TrackName:      meta.Title,
				ReleaseName:    meta.Album,
				AdditionalInfo: s.additionalInfo(meta.Track),
			},
		}},
	}
	s.eg.Go(func() error {
		errutil.Recover("listenbrainz-playing-now", func() {
			if err := s.send(req); err != nil {
				slog.Warn("ListenBrainz playing-now call failed", slog.String("error", err.Error()))
			}
		})
		return nil
	})
}

// Submit queues a finished track for submission and flushes the pending
// batch (most recent maxImport entries). On failure the batch is kept and
// persisted to disk for retry.
func (s *Submitter) Submit(meta trackmodel.TrackMeta, playedAt time.Time) {
	if s == nil {
		return
	}
	item := listenItem{
		Artist:    meta.Artist,
		Track:     meta.Title,
		Album:     meta.Album,
		Number:    meta.Track,
		Timestamp: playedAt.Unix(),
	}

	s.mu.Lock()
	s.notSubmitted = append(s.notSubmitted, item)
	batch := s.batch()
	s.mu.Unlock()

	s.eg.Go(func() error {
		errutil.Recover("listenbrainz-submit", func() { s.submitBatch(batch) })
		return nil
	})
}

func (s *Submitter) batch() []listenItem {
	n := len(s.notSubmitted)
	start := 0
	if n > maxImport {
		start = n - maxImport
	}
	out := make([]listenItem, n-start)
	copy(out, s.notSubmitted[start:])
	return out
}

func (s *Submitter) submitBatch(batch []listenItem) {
	payloads := make([]payload, len(batch))
	submitted := make(map[int64]bool, len(batch))
	for i, item := range batch {
		ts := item.Timestamp
		payloads[i] = payload{
			ListenedAt: &ts,
			TrackMetadata: trackMetadata{
				ArtistName:     item.Artist,
				TrackName:      item.Track,
				ReleaseName:    item.Album,
				AdditionalInfo: s.additionalInfo(item.Number),
			},
		}
	}
	req := submitRequest{ListenType: listenTypeImport, Payload: payloads}

	if err := s.send(req); err != nil {
		slog.Warn("ListenBrainz submit call failed", slog.String("error", err.Error()))
	} else {
		for _, item := range batch {
			submitted[item.Timestamp] = true
		}
	}

	s.mu.Lock()
	if len(submitted) > 0 {
		kept := s.notSubmitted[:0]
		for _, item := range s.notSubmitted {
			if !submitted[item.Timestamp] {
				kept = append(kept, item)
			}
		}
		s.notSubmitted = kept
	}
	toSave := make([]listenItem, len(s.notSubmitted))
	copy(toSave, s.notSubmitted)
	s.mu.Unlock()

	if err := notSubmittedFile(s.dataDir).Save(toSave); err != nil {
		slog.Warn("cannot persist ListenBrainz not-submitted queue", slog.String("error", err.Error()))
	}
}

func (s *Submitter) send(req submitRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return errors.Wrap(err, "cannot serialize payload")
	}

	ctx, cancel := context.WithTimeout(context.Background(), httpTimeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, submitEndpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "cannot build request")
	}
	httpReq.Header.Set("Authorization", "Token "+s.token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return errors.Wrap(err, "cannot perform ListenBrainz API call")
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return errors.Errorf("ListenBrainz API returned %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}
	return nil
}

// validateToken checks a token against ListenBrainz and returns the
// associated username, mirroring validate_token.
func validateToken(token string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), httpTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, validateEndpoint, nil)
	if err != nil {
		return "", errors.Wrap(err, "cannot build request")
	}
	req.Header.Set("Authorization", "Token "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := (&http.Client{Timeout: httpTimeout}).Do(req)
	if err != nil {
		return "", errors.Wrap(err, "cannot reach ListenBrainz")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "cannot read response")
	}
	var result tokenValidationResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", errors.Wrap(err, "cannot parse token response")
	}
	if !result.Valid {
		return "", errors.Errorf("[%d] %s", result.Code, result.Message)
	}
	if result.UserName == "" {
		return "", errors.New("user_name field is missing from the response")
	}
	return result.UserName, nil
}

// Authenticate stores a ListenBrainz user token after validating it,
// mirroring cli_auth. It refuses to overwrite an existing stored token.
func Authenticate(dataDir string) error {
	tf := tokenFile(dataDir)
	if _, err := tf.Load(); err == nil {
		return errors.New("there is already a stored ListenBrainz token; remove it to authenticate again")
	}

	token, err := readLine("ListenBrainz token: ")
	if err != nil {
		return errors.Wrap(err, "cannot read token")
	}
	if token == "" {
		return errors.New("the token can't be empty")
	}

	userName, err := validateToken(token)
	if err != nil {
		return errors.Wrap(err, "cannot validate token")
	}
	if err := tf.Save(token); err != nil {
		return errors.Wrap(err, "cannot save token")
	}
	fmt.Printf("Authenticated: %s\n", userName)
	return nil
}

func readLine(prompt string) (string, error) {
	fmt.Print(prompt)
	var line string
	_, err := fmt.Fscanln(os.Stdin, &line)
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
