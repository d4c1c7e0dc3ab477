// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

/*
lastfm.go - Last.fm Client Adapter

Submits scrobbles and now-playing updates to the Last.fm API and lists
the account's recent scrobbles for the duplicate check. Authorization
uses the desktop token flow: the user approves the application at
last.fm, the callback token is exchanged for a session key, and the key
is persisted so a restart does not force re-authorization. Write calls
are signed with MD5 as the API requires.

API Reference: https://www.last.fm/api
*/

package client

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/audiographus/internal/config"
	"github.com/tomtom215/audiographus/internal/creds"
	"github.com/tomtom215/audiographus/internal/logging"
	"github.com/tomtom215/audiographus/internal/models"
)

const (
	lastfmAPIBase  = "https://ws.audioscrobbler.com/2.0/"
	lastfmAuthBase = "https://www.last.fm/api/auth/"
)

func init() {
	Register("lastfm", Capabilities{
		RequiresAuth:  true,
		NowPlaying:    true,
		RecentHistory: true,
	}, func(cfg config.ClientConfig, deps Deps) (Adapter, error) {
		return newLastfm(cfg, deps), nil
	})
}

type lastfmData struct {
	APIKey string `json:"apiKey"`
	Secret string `json:"secret"`

	// SessionKey skips the interactive flow for users who already hold
	// one. User must be set with it or the history check has no account
	// to query.
	SessionKey string `json:"sessionKey"`
	User       string `json:"user"`

	// RedirectURI overrides the default publicURL + /lastfm/callback,
	// for deployments behind a rewriting proxy.
	RedirectURI string `json:"redirectUri"`
}

// Lastfm is the lastfm adapter. It satisfies NowPlayer, RecentFetcher,
// Initializer and Authenticator.
type Lastfm struct {
	name string
	raw  map[string]interface{}
	deps Deps

	apiBase  string
	authBase string

	apiKey   string
	secret   string
	redirect string

	mu         sync.Mutex
	authURL    string
	sessionKey string
	user       string
}

func newLastfm(cfg config.ClientConfig, deps Deps) *Lastfm {
	return &Lastfm{
		name:     cfg.Name,
		raw:      cfg.Data,
		deps:     deps,
		apiBase:  lastfmAPIBase,
		authBase: lastfmAuthBase,
	}
}

// Type implements Adapter.
func (l *Lastfm) Type() string { return "lastfm" }

// BuildInitData parses the data block. Missing API credentials are a
// configuration error, not something a retry can fix.
func (l *Lastfm) BuildInitData(_ context.Context) error {
	var data lastfmData
	if err := decodeData(l.raw, &data); err != nil {
		return &models.ValidationError{Field: "data", Message: err.Error()}
	}
	if data.APIKey == "" {
		return &models.ValidationError{Field: "data.apiKey", Message: "lastfm api key is required"}
	}
	if data.Secret == "" {
		return &models.ValidationError{Field: "data.secret", Message: "lastfm shared secret is required"}
	}

	l.apiKey = data.APIKey
	l.secret = data.Secret
	l.redirect = data.RedirectURI
	if l.redirect == "" {
		l.redirect = l.deps.PublicURL + "/lastfm/callback"
	}

	if data.SessionKey != "" {
		l.setSession(lastfmSession{SessionKey: data.SessionKey, User: data.User})
		if data.User == "" {
			logging.Warn().Str("client", l.name).
				Msg("data.sessionKey without data.user, upstream duplicate check disabled")
		}
	}
	return nil
}

// lastfmSession is what gets persisted after the token exchange.
type lastfmSession struct {
	SessionKey string `json:"sessionKey"`
	User       string `json:"user"`
}

// Authenticate loads a stored session. Without one it prepares the
// approval URL and reports that user interaction is needed.
func (l *Lastfm) Authenticate(_ context.Context) (bool, error) {
	if sk, _ := l.session(); sk != "" {
		return true, nil
	}

	var sess lastfmSession
	err := l.deps.Creds.Load(l.name, &sess)
	switch {
	case err == nil:
		l.setSession(sess)
		return true, nil
	case errors.Is(err, creds.ErrNotFound):
		l.mu.Lock()
		l.authURL = fmt.Sprintf("%s?api_key=%s&cb=%s",
			l.authBase, url.QueryEscape(l.apiKey), url.QueryEscape(l.redirect))
		l.mu.Unlock()
		return false, nil
	default:
		return false, err
	}
}

// AuthURL returns the approval URL prepared by Authenticate.
func (l *Lastfm) AuthURL() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.authURL
}

// HandleCallback exchanges the redirect token for a session key and
// persists it.
func (l *Lastfm) HandleCallback(ctx context.Context, query url.Values) error {
	token := query.Get("token")
	if token == "" {
		return errors.New("lastfm callback missing token")
	}

	var out struct {
		Session struct {
			Name string `json:"name"`
			Key  string `json:"key"`
		} `json:"session"`
	}
	if err := l.signedCall(ctx, "auth.getSession", url.Values{"token": {token}}, &out); err != nil {
		return fmt.Errorf("exchange lastfm token: %w", err)
	}
	if out.Session.Key == "" {
		return errors.New("lastfm returned an empty session key")
	}

	sess := lastfmSession{SessionKey: out.Session.Key, User: out.Session.Name}
	if err := l.deps.Creds.Save(l.name, sess); err != nil {
		return fmt.Errorf("store lastfm session: %w", err)
	}
	l.setSession(sess)
	return nil
}

func (l *Lastfm) setSession(sess lastfmSession) {
	l.mu.Lock()
	l.sessionKey = sess.SessionKey
	l.user = sess.User
	l.mu.Unlock()
}

func (l *Lastfm) session() (key, user string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sessionKey, l.user
}

// Scrobble submits one play. The upstream's corrections are folded into
// the returned record so the duplicate check sees what Last.fm kept.
func (l *Lastfm) Scrobble(ctx context.Context, play models.Play) (models.Play, error) {
	sk, _ := l.session()
	if sk == "" {
		return models.Play{}, lastfmNoSession()
	}

	params := url.Values{}
	params.Set("artist", play.PrimaryArtist())
	params.Set("track", play.Data.Track)
	params.Set("timestamp", strconv.FormatInt(play.Data.PlayDate.Unix(), 10))
	params.Set("sk", sk)
	if play.Data.Album != "" {
		params.Set("album", play.Data.Album)
	}
	if len(play.Data.AlbumArtists) > 0 {
		params.Set("albumArtist", play.Data.AlbumArtists[0])
	}
	if play.Data.Duration > 0 {
		params.Set("duration", strconv.Itoa(play.Data.Duration))
	}

	var out lastfmScrobbleEnvelope
	if err := l.signedCall(ctx, "track.scrobble", params, &out); err != nil {
		return models.Play{}, err
	}

	sc := out.Scrobbles.Scrobble
	if code := sc.IgnoredMessage.Code; code != "" && code != "0" {
		msg := sc.IgnoredMessage.Text
		if msg == "" {
			msg = "scrobble ignored"
		}
		return models.Play{}, &models.UpstreamError{
			Service: "lastfm",
			Message: fmt.Sprintf("%s (filter %s)", msg, code),
		}
	}

	scrobbled := play.Clone()
	if sc.Track.Text != "" {
		scrobbled.Data.Track = sc.Track.Text
	}
	if sc.Artist.Text != "" {
		scrobbled.Data.Artists = []string{sc.Artist.Text}
	}
	if sc.Album.Text != "" {
		scrobbled.Data.Album = sc.Album.Text
	}
	return scrobbled, nil
}

// NowPlaying sends a live notice for the current track.
func (l *Lastfm) NowPlaying(ctx context.Context, play models.Play) error {
	sk, _ := l.session()
	if sk == "" {
		return lastfmNoSession()
	}

	params := url.Values{}
	params.Set("artist", play.PrimaryArtist())
	params.Set("track", play.Data.Track)
	params.Set("sk", sk)
	if play.Data.Album != "" {
		params.Set("album", play.Data.Album)
	}
	if play.Data.Duration > 0 {
		params.Set("duration", strconv.Itoa(play.Data.Duration))
	}
	return l.signedCall(ctx, "track.updateNowPlaying", params, nil)
}

// RecentScrobbles lists the account's latest scrobbles, skipping the
// in-flight now-playing entry the API mixes into the listing.
func (l *Lastfm) RecentScrobbles(ctx context.Context, limit int) ([]models.Play, error) {
	_, user := l.session()
	if user == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("user", user)
	params.Set("limit", strconv.Itoa(limit))

	var out lastfmRecentEnvelope
	if err := l.get(ctx, "user.getrecenttracks", params, &out); err != nil {
		return nil, err
	}

	plays := make([]models.Play, 0, len(out.RecentTracks.Tracks))
	for _, t := range out.RecentTracks.Tracks {
		if t.Attr.NowPlaying == "true" {
			continue
		}
		plays = append(plays, t.play())
	}
	return plays, nil
}

// sign builds the api_sig parameter: parameters sorted by name,
// concatenated as name+value, the shared secret appended, MD5 over the
// whole string. format and callback are excluded per the Last.fm docs.
func (l *Lastfm) sign(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "format" || k == "callback" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(params.Get(k))
	}
	b.WriteString(l.secret)

	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// signedCall performs one signed write call as a form-encoded POST.
func (l *Lastfm) signedCall(ctx context.Context, apiMethod string, params url.Values, out interface{}) error {
	params.Set("method", apiMethod)
	params.Set("api_key", l.apiKey)
	params.Set("api_sig", l.sign(params))
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.apiBase, strings.NewReader(params.Encode()))
	if err != nil {
		return fmt.Errorf("build lastfm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return l.do(req, apiMethod, out)
}

// get performs one unsigned read call.
func (l *Lastfm) get(ctx context.Context, apiMethod string, params url.Values, out interface{}) error {
	params.Set("method", apiMethod)
	params.Set("api_key", l.apiKey)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.apiBase+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return fmt.Errorf("build lastfm request: %w", err)
	}
	return l.do(req, apiMethod, out)
}

// do executes a prepared request. Last.fm reports API failures in the
// body under assorted HTTP statuses, so the error envelope is decoded
// before the status code is consulted.
func (l *Lastfm) do(req *http.Request, apiMethod string, out interface{}) error {
	resp, err := l.deps.HTTP.Do(req)
	if err != nil {
		return wrapTransport("lastfm", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read lastfm %s response: %w", apiMethod, err)
	}

	var envelope struct {
		Error   int    `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != 0 {
		return lastfmError(envelope.Error, envelope.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return lastfmStatusError(resp.StatusCode, body)
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode lastfm %s response: %w", apiMethod, err)
		}
	}
	return nil
}

// lastfmError maps an API error code onto the worker's taxonomy. Codes
// follow https://www.last.fm/api/errorcodes: credential codes must stop
// the worker until re-auth, signature and suspension failures repeat on
// every call, and the rest are per-call conditions the dead-letter
// replay can retry.
func lastfmError(code int, msg string) error {
	ue := &models.UpstreamError{
		Service: "lastfm",
		Message: fmt.Sprintf("%s (code %d)", msg, code),
	}
	switch code {
	case 4, 9, 10, 14, 15:
		ue.AuthFailure = true
		ue.ShowStopper = true
	case 13, 26:
		ue.ShowStopper = true
	case 29:
		ue.RateLimited = true
	}
	return ue
}

func lastfmStatusError(status int, body []byte) error {
	ue := &models.UpstreamError{
		Service: "lastfm",
		Message: fmt.Sprintf("status %d: %s", status, snippet(body)),
	}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		ue.AuthFailure = true
		ue.ShowStopper = true
	case http.StatusTooManyRequests:
		ue.RateLimited = true
	}
	return ue
}

func lastfmNoSession() error {
	return &models.UpstreamError{
		Service:     "lastfm",
		Message:     "no session key",
		AuthFailure: true,
		ShowStopper: true,
	}
}

// snippet bounds upstream bodies quoted in error messages.
func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 256 {
		return s[:256]
	}
	return s
}

// lastfmText is the {"#text": ...} shape the API uses for corrected
// and nested fields.
type lastfmText struct {
	Text      string `json:"#text"`
	Corrected string `json:"corrected"`
}

type lastfmScrobbleEnvelope struct {
	Scrobbles struct {
		Scrobble struct {
			Track          lastfmText `json:"track"`
			Artist         lastfmText `json:"artist"`
			Album          lastfmText `json:"album"`
			AlbumArtist    lastfmText `json:"albumArtist"`
			Timestamp      string     `json:"timestamp"`
			IgnoredMessage struct {
				Code string `json:"code"`
				Text string `json:"#text"`
			} `json:"ignoredMessage"`
		} `json:"scrobble"`
	} `json:"scrobbles"`
}

type lastfmRecentEnvelope struct {
	RecentTracks struct {
		Tracks []lastfmRecentTrack `json:"track"`
	} `json:"recenttracks"`
}

type lastfmRecentTrack struct {
	Name   string     `json:"name"`
	URL    string     `json:"url"`
	Artist lastfmText `json:"artist"`
	Album  lastfmText `json:"album"`
	Date   struct {
		UTS string `json:"uts"`
	} `json:"date"`
	Attr struct {
		NowPlaying string `json:"nowplaying"`
	} `json:"@attr"`
}

func (t lastfmRecentTrack) play() models.Play {
	p := models.Play{
		Data: models.PlayData{
			Track: t.Name,
			Album: t.Album.Text,
		},
		Meta: models.PlayMeta{WebURL: t.URL},
	}
	if t.Artist.Text != "" {
		p.Data.Artists = []string{t.Artist.Text}
	}
	if uts, err := strconv.ParseInt(t.Date.UTS, 10, 64); err == nil && uts > 0 {
		p.Data.PlayDate = time.Unix(uts, 0)
	}
	return p
}
