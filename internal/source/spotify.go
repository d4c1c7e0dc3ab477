// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

/*
spotify.go - Spotify Source Adapter

Polls the Spotify Web API for recently played tracks. Authorization
uses the OAuth2 authorization-code flow; the signed state parameter
ties the callback to the source that started the flow, and refreshed
tokens are persisted so a restart does not force re-authorization.

API Reference: https://developer.spotify.com/documentation/web-api
*/

package source

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	spotifyauth "golang.org/x/oauth2/spotify"

	"github.com/tomtom215/audiographus/internal/config"
	"github.com/tomtom215/audiographus/internal/creds"
	"github.com/tomtom215/audiographus/internal/logging"
	"github.com/tomtom215/audiographus/internal/models"
)

const (
	spotifyAPIBase     = "https://api.spotify.com/v1"
	spotifyRecentLimit = 50

	// spotifyStateTTL bounds how long an authorization redirect stays
	// valid.
	spotifyStateTTL = 10 * time.Minute
)

var spotifyScopes = []string{
	"user-read-recently-played",
	"user-read-currently-playing",
}

func init() {
	Register("spotify", Capabilities{
		RequiresAuth: true,
		CanPoll:      true,
		CanBacklog:   true,
	}, func(cfg config.SourceConfig, deps Deps) (Adapter, error) {
		return newSpotify(cfg, deps), nil
	})
}

type spotifyData struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`

	// RedirectURI overrides the default publicURL + /spotify/callback,
	// for deployments behind a rewriting proxy.
	RedirectURI string `json:"redirectUri"`
}

// Spotify is the spotify adapter. It satisfies Poller, Backlogger,
// Initializer and Authenticator.
type Spotify struct {
	name string
	raw  map[string]interface{}
	deps Deps

	conf     *oauth2.Config
	stateKey []byte

	mu      sync.Mutex
	authURL string
	client  *http.Client
}

func newSpotify(cfg config.SourceConfig, deps Deps) *Spotify {
	return &Spotify{name: cfg.Name, raw: cfg.Data, deps: deps}
}

// Type implements Adapter.
func (s *Spotify) Type() string { return "spotify" }

// BuildInitData parses the data block and assembles the OAuth2 config.
// Missing API credentials are a configuration error, not something a
// retry can fix.
func (s *Spotify) BuildInitData(_ context.Context) error {
	var data spotifyData
	if err := decodeData(s.raw, &data); err != nil {
		return &models.ValidationError{Field: "data", Message: err.Error()}
	}
	if data.ClientID == "" {
		return &models.ValidationError{Field: "data.clientId", Message: "spotify client id is required"}
	}
	if data.ClientSecret == "" {
		return &models.ValidationError{Field: "data.clientSecret", Message: "spotify client secret is required"}
	}

	redirect := data.RedirectURI
	if redirect == "" {
		redirect = s.deps.PublicURL + "/spotify/callback"
	}
	s.conf = &oauth2.Config{
		ClientID:     data.ClientID,
		ClientSecret: data.ClientSecret,
		Endpoint:     spotifyauth.Endpoint,
		RedirectURL:  redirect,
		Scopes:       spotifyScopes,
	}

	s.stateKey = make([]byte, 32)
	if _, err := rand.Read(s.stateKey); err != nil {
		return fmt.Errorf("generate state key: %w", err)
	}
	return nil
}

// Authenticate loads a stored token. Without one it prepares the
// authorization URL and reports that user interaction is needed.
func (s *Spotify) Authenticate(ctx context.Context) (bool, error) {
	var tok oauth2.Token
	err := s.deps.Creds.Load(s.name, &tok)
	switch {
	case err == nil:
		s.setToken(tok)
		return true, nil
	case errors.Is(err, creds.ErrNotFound):
		state, err := s.signState()
		if err != nil {
			return false, err
		}
		s.mu.Lock()
		s.authURL = s.conf.AuthCodeURL(state)
		s.mu.Unlock()
		return false, nil
	default:
		return false, err
	}
}

// AuthURL returns the authorization URL prepared by Authenticate.
func (s *Spotify) AuthURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authURL
}

// HandleCallback finishes the authorization-code flow: it checks the
// signed state, exchanges the code and persists the token.
func (s *Spotify) HandleCallback(ctx context.Context, query url.Values) error {
	if errMsg := query.Get("error"); errMsg != "" {
		return fmt.Errorf("spotify authorization refused: %s", errMsg)
	}
	if err := s.verifyState(query.Get("state")); err != nil {
		return err
	}
	code := query.Get("code")
	if code == "" {
		return errors.New("spotify callback missing code")
	}

	tok, err := s.conf.Exchange(s.oauthContext(ctx), code)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	if err := s.deps.Creds.Save(s.name, tok); err != nil {
		return fmt.Errorf("store spotify token: %w", err)
	}
	s.setToken(*tok)
	return nil
}

// signState issues a short-lived HS256 token naming this source so the
// callback can only complete the flow it belongs to.
func (s *Spotify) signState() (string, error) {
	now := s.deps.Clock.Now()
	claims := jwt.RegisteredClaims{
		Subject:   s.name,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(spotifyStateTTL)),
	}
	state, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.stateKey)
	if err != nil {
		return "", fmt.Errorf("sign oauth state: %w", err)
	}
	return state, nil
}

func (s *Spotify) verifyState(state string) error {
	if state == "" {
		return errors.New("spotify callback missing state")
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(state, claims, func(*jwt.Token) (interface{}, error) {
		return s.stateKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return fmt.Errorf("invalid oauth state: %w", err)
	}
	if claims.Subject != s.name {
		return fmt.Errorf("oauth state belongs to %q, not %q", claims.Subject, s.name)
	}
	return nil
}

// setToken wires an authorized HTTP client whose token source writes
// refreshed tokens back to the credential store.
func (s *Spotify) setToken(tok oauth2.Token) {
	ctx := s.oauthContext(context.Background())
	ts := &persistingTokenSource{
		name:  s.name,
		store: s.deps.Creds,
		base:  s.conf.TokenSource(ctx, &tok),
		last:  tok.AccessToken,
	}
	s.mu.Lock()
	s.client = oauth2.NewClient(ctx, ts)
	s.mu.Unlock()
}

// oauthContext routes the oauth2 package's own HTTP calls (token
// exchange, refresh) through our shared client.
func (s *Spotify) oauthContext(ctx context.Context) context.Context {
	if s.deps.HTTP == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, s.deps.HTTP)
}

func (s *Spotify) httpClient() *http.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

// RecentlyPlayed fetches the recently-played listing, newest first.
func (s *Spotify) RecentlyPlayed(ctx context.Context) ([]models.Play, error) {
	httpc := s.httpClient()
	if httpc == nil {
		return nil, ErrAuthRequired
	}

	endpoint := fmt.Sprintf("%s/me/player/recently-played?limit=%d", spotifyAPIBase, spotifyRecentLimit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build spotify request: %w", err)
	}

	resp, err := httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("spotify recently-played request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: spotify returned status %d", ErrAuthRevoked, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("spotify rate limited, retry after %s", resp.Header.Get("Retry-After"))
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("spotify recently-played returned status %d: %s", resp.StatusCode, string(body))
	}

	var page spotifyRecentPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode spotify recently-played: %w", err)
	}

	plays := make([]models.Play, 0, len(page.Items))
	for i := range page.Items {
		plays = append(plays, page.Items[i].play())
	}
	return plays, nil
}

// Backlog reuses the recently-played listing; Spotify keeps no deeper
// history accessible to this scope.
func (s *Spotify) Backlog(ctx context.Context) ([]models.Play, error) {
	return s.RecentlyPlayed(ctx)
}

type spotifyRecentPage struct {
	Items []spotifyPlayedItem `json:"items"`
}

type spotifyPlayedItem struct {
	Track    spotifyTrack `json:"track"`
	PlayedAt time.Time    `json:"played_at"`
}

type spotifyTrack struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	DurationMS   int               `json:"duration_ms"`
	Artists      []spotifyArtist   `json:"artists"`
	Album        spotifyAlbum      `json:"album"`
	ExternalURLs map[string]string `json:"external_urls"`
}

type spotifyArtist struct {
	Name string `json:"name"`
}

type spotifyAlbum struct {
	Name    string          `json:"name"`
	Artists []spotifyArtist `json:"artists"`
}

func (it spotifyPlayedItem) play() models.Play {
	artists := artistNames(it.Track.Artists)
	albumArtists := artistNames(it.Track.Album.Artists)
	if sameStrings(artists, albumArtists) {
		albumArtists = nil
	}
	return models.Play{
		Data: models.PlayData{
			Track:        it.Track.Name,
			Artists:      artists,
			AlbumArtists: albumArtists,
			Album:        it.Track.Album.Name,
			Duration:     it.Track.DurationMS / 1000,
			PlayDate:     it.PlayedAt,
		},
		Meta: models.PlayMeta{
			TrackID: it.Track.ID,
			WebURL:  it.Track.ExternalURLs["spotify"],
		},
	}
}

func artistNames(in []spotifyArtist) []string {
	out := make([]string, 0, len(in))
	for _, a := range in {
		if a.Name != "" {
			out = append(out, a.Name)
		}
	}
	return out
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// persistingTokenSource writes refreshed tokens back to the credential
// store so restarts pick up where the last refresh left off.
type persistingTokenSource struct {
	name  string
	store *creds.Store
	base  oauth2.TokenSource

	mu   sync.Mutex
	last string
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	changed := tok.AccessToken != p.last
	if changed {
		p.last = tok.AccessToken
	}
	p.mu.Unlock()

	if changed {
		if err := p.store.Save(p.name, tok); err != nil {
			logging.Warn().Err(err).Str("source", p.name).Msg("Failed to persist refreshed token")
		}
	}
	return tok, nil
}
