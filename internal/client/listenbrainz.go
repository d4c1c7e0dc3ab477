// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

/*
listenbrainz.go - ListenBrainz Client Adapter

Submits listens and playing-now notices to a ListenBrainz server and
lists the account's recent listens for the duplicate check. The token
is validated at startup, which also resolves the account name the
listens endpoint needs. Works against listenbrainz.org or a self-hosted
instance through the url override.

API Reference: https://listenbrainz.readthedocs.io/
*/

package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/audiographus/internal/config"
	"github.com/tomtom215/audiographus/internal/models"
)

const listenbrainzAPIBase = "https://api.listenbrainz.org"

func init() {
	Register("listenbrainz", Capabilities{
		NowPlaying:    true,
		RecentHistory: true,
	}, func(cfg config.ClientConfig, deps Deps) (Adapter, error) {
		return newListenBrainz(cfg, deps), nil
	})
}

type listenbrainzData struct {
	Token string `json:"token"`

	// URL points at a self-hosted instance; empty means the public API.
	URL string `json:"url"`

	// User overrides the account name resolved from the token.
	User string `json:"user"`
}

// ListenBrainz is the listenbrainz adapter. It satisfies NowPlayer,
// RecentFetcher, Initializer and ConnectionChecker.
type ListenBrainz struct {
	name string
	raw  map[string]interface{}
	deps Deps

	base  string
	token string

	mu   sync.Mutex
	user string
}

func newListenBrainz(cfg config.ClientConfig, deps Deps) *ListenBrainz {
	return &ListenBrainz{name: cfg.Name, raw: cfg.Data, deps: deps}
}

// Type implements Adapter.
func (b *ListenBrainz) Type() string { return "listenbrainz" }

// BuildInitData parses the data block. A missing token is a
// configuration error, not something a retry can fix.
func (b *ListenBrainz) BuildInitData(_ context.Context) error {
	var data listenbrainzData
	if err := decodeData(b.raw, &data); err != nil {
		return &models.ValidationError{Field: "data", Message: err.Error()}
	}
	if data.Token == "" {
		return &models.ValidationError{Field: "data.token", Message: "listenbrainz token is required"}
	}

	b.token = data.Token
	b.base = strings.TrimRight(data.URL, "/")
	if b.base == "" {
		b.base = listenbrainzAPIBase
	}
	b.setUser(data.User)
	return nil
}

// CheckConnection validates the token. The response also names the
// account, which the listens endpoint needs later.
func (b *ListenBrainz) CheckConnection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.base+"/1/validate-token", http.NoBody)
	if err != nil {
		return fmt.Errorf("build listenbrainz request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+b.token)

	resp, err := b.deps.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("listenbrainz unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("read listenbrainz response: %w", err)
	}

	var out struct {
		Valid    bool   `json:"valid"`
		UserName string `json:"user_name"`
		Message  string `json:"message"`
	}
	if resp.StatusCode == http.StatusOK {
		if err := json.Unmarshal(body, &out); err != nil {
			return fmt.Errorf("decode listenbrainz validate-token: %w", err)
		}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusOK && !out.Valid:
		return &models.ValidationError{Field: "data.token", Message: "listenbrainz rejected the token"}
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("listenbrainz validate-token returned status %d: %s", resp.StatusCode, snippet(body))
	}

	if b.userName() == "" {
		b.setUser(out.UserName)
	}
	return nil
}

// Scrobble submits one listen. ListenBrainz echoes nothing back, so the
// submitted play stands in as the upstream record.
func (b *ListenBrainz) Scrobble(ctx context.Context, play models.Play) (models.Play, error) {
	payload := listenbrainzSubmission{
		ListenType: "single",
		Payload:    []listenbrainzListen{b.listen(play, true)},
	}
	if err := b.post(ctx, "/1/submit-listens", payload); err != nil {
		return models.Play{}, err
	}
	return play.Clone(), nil
}

// NowPlaying sends a playing-now notice, which carries no timestamp.
func (b *ListenBrainz) NowPlaying(ctx context.Context, play models.Play) error {
	payload := listenbrainzSubmission{
		ListenType: "playing_now",
		Payload:    []listenbrainzListen{b.listen(play, false)},
	}
	return b.post(ctx, "/1/submit-listens", payload)
}

// RecentScrobbles lists the account's latest listens.
func (b *ListenBrainz) RecentScrobbles(ctx context.Context, limit int) ([]models.Play, error) {
	user := b.userName()
	if user == "" {
		return nil, nil
	}

	endpoint := fmt.Sprintf("%s/1/user/%s/listens?count=%d", b.base, url.PathEscape(user), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build listenbrainz request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+b.token)

	resp, err := b.deps.HTTP.Do(req)
	if err != nil {
		return nil, wrapTransport("listenbrainz", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read listenbrainz listens: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, listenbrainzStatusError(resp.StatusCode, body)
	}

	var out struct {
		Payload struct {
			Listens []listenbrainzListen `json:"listens"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode listenbrainz listens: %w", err)
	}

	plays := make([]models.Play, 0, len(out.Payload.Listens))
	for _, l := range out.Payload.Listens {
		plays = append(plays, l.play())
	}
	return plays, nil
}

func (b *ListenBrainz) setUser(user string) {
	b.mu.Lock()
	b.user = user
	b.mu.Unlock()
}

func (b *ListenBrainz) userName() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.user
}

// listen lowers a Play into the submission shape. stamped is false for
// playing-now notices, which must not carry listened_at.
func (b *ListenBrainz) listen(play models.Play, stamped bool) listenbrainzListen {
	info := map[string]interface{}{
		"submission_client": "audiographus",
	}
	if play.Data.Duration > 0 {
		info["duration_ms"] = play.Data.Duration * 1000
	}
	if play.Meta.WebURL != "" {
		info["origin_url"] = play.Meta.WebURL
	}
	if play.Meta.Source != "" {
		info["music_service_name"] = play.Meta.Source
	}

	l := listenbrainzListen{
		TrackMetadata: listenbrainzTrackMetadata{
			ArtistName:     play.PrimaryArtist(),
			TrackName:      play.Data.Track,
			ReleaseName:    play.Data.Album,
			AdditionalInfo: info,
		},
	}
	if stamped {
		l.ListenedAt = play.Data.PlayDate.Unix()
	}
	return l
}

func (b *ListenBrainz) post(ctx context.Context, path string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode listenbrainz payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.base+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build listenbrainz request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+b.token)

	resp, err := b.deps.HTTP.Do(req)
	if err != nil {
		return wrapTransport("listenbrainz", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return listenbrainzStatusError(resp.StatusCode, body)
}

func listenbrainzStatusError(status int, body []byte) error {
	ue := &models.UpstreamError{
		Service: "listenbrainz",
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

type listenbrainzSubmission struct {
	ListenType string               `json:"listen_type"`
	Payload    []listenbrainzListen `json:"payload"`
}

type listenbrainzListen struct {
	ListenedAt    int64                     `json:"listened_at,omitempty"`
	TrackMetadata listenbrainzTrackMetadata `json:"track_metadata"`
}

type listenbrainzTrackMetadata struct {
	ArtistName     string                 `json:"artist_name"`
	TrackName      string                 `json:"track_name"`
	ReleaseName    string                 `json:"release_name,omitempty"`
	AdditionalInfo map[string]interface{} `json:"additional_info,omitempty"`
}

func (l listenbrainzListen) play() models.Play {
	p := models.Play{
		Data: models.PlayData{
			Track: l.TrackMetadata.TrackName,
			Album: l.TrackMetadata.ReleaseName,
		},
	}
	if l.TrackMetadata.ArtistName != "" {
		p.Data.Artists = []string{l.TrackMetadata.ArtistName}
	}
	if l.ListenedAt > 0 {
		p.Data.PlayDate = time.Unix(l.ListenedAt, 0)
	}
	if ms, ok := l.TrackMetadata.AdditionalInfo["duration_ms"].(float64); ok && ms > 0 {
		p.Data.Duration = int(ms) / 1000
	}
	return p
}
