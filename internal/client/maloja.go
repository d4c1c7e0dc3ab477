// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

/*
maloja.go - Maloja Client Adapter

Submits scrobbles to a self-hosted Maloja server through its native
API. Maloja exposes no compatible history listing and no now-playing
endpoint, so the duplicate check relies on the local scrobbled ring
alone.

API Reference: https://github.com/krateng/maloja/blob/master/API.md
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

	"github.com/goccy/go-json"

	"github.com/tomtom215/audiographus/internal/config"
	"github.com/tomtom215/audiographus/internal/models"
)

func init() {
	Register("maloja", Capabilities{}, func(cfg config.ClientConfig, deps Deps) (Adapter, error) {
		return newMaloja(cfg, deps), nil
	})
}

type malojaData struct {
	URL    string `json:"url"`
	APIKey string `json:"apiKey"`
}

// Maloja is the maloja adapter. It satisfies Initializer and
// ConnectionChecker.
type Maloja struct {
	name string
	raw  map[string]interface{}
	deps Deps

	base   string
	apiKey string
}

func newMaloja(cfg config.ClientConfig, deps Deps) *Maloja {
	return &Maloja{name: cfg.Name, raw: cfg.Data, deps: deps}
}

// Type implements Adapter.
func (m *Maloja) Type() string { return "maloja" }

// BuildInitData parses the data block. A missing or malformed server
// URL is a configuration error, not something a retry can fix.
func (m *Maloja) BuildInitData(_ context.Context) error {
	var data malojaData
	if err := decodeData(m.raw, &data); err != nil {
		return &models.ValidationError{Field: "data", Message: err.Error()}
	}
	if data.URL == "" {
		return &models.ValidationError{Field: "data.url", Message: "maloja server url is required"}
	}
	if data.APIKey == "" {
		return &models.ValidationError{Field: "data.apiKey", Message: "maloja api key is required"}
	}

	u, err := url.Parse(data.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &models.ValidationError{Field: "data.url", Message: "maloja server url must be http(s)"}
	}

	m.base = strings.TrimRight(data.URL, "/")
	m.apiKey = data.APIKey
	return nil
}

// CheckConnection probes the test endpoint, which also validates the
// key.
func (m *Maloja) CheckConnection(ctx context.Context) error {
	endpoint := m.base + "/apis/mlj_1/test?key=" + url.QueryEscape(m.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("build maloja request: %w", err)
	}

	resp, err := m.deps.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("maloja unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return &models.ValidationError{Field: "data.apiKey", Message: "maloja rejected the api key"}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("maloja test returned status %d: %s", resp.StatusCode, snippet(body))
	}
	return nil
}

// Scrobble submits one play. Maloja's normalized track is folded into
// the returned record.
func (m *Maloja) Scrobble(ctx context.Context, play models.Play) (models.Play, error) {
	sub := malojaScrobble{
		Title:        play.Data.Track,
		Artists:      play.Data.Artists,
		Album:        play.Data.Album,
		AlbumArtists: play.Data.AlbumArtists,
		Time:         play.Data.PlayDate.Unix(),
		Key:          m.apiKey,
	}
	if play.Data.Duration > 0 {
		sub.Length = play.Data.Duration
	}
	if play.Data.ListenedFor > 0 {
		sub.Duration = play.Data.ListenedFor
	}

	raw, err := json.Marshal(sub)
	if err != nil {
		return models.Play{}, fmt.Errorf("encode maloja scrobble: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.base+"/apis/mlj_1/newscrobble", bytes.NewReader(raw))
	if err != nil {
		return models.Play{}, fmt.Errorf("build maloja request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.deps.HTTP.Do(req)
	if err != nil {
		return models.Play{}, wrapTransport("maloja", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return models.Play{}, fmt.Errorf("read maloja response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return models.Play{}, malojaStatusError(resp.StatusCode, body)
	}

	var out struct {
		Status string `json:"status"`
		Track  struct {
			Title   string   `json:"title"`
			Artists []string `json:"artists"`
		} `json:"track"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return models.Play{}, fmt.Errorf("decode maloja response: %w", err)
	}
	if out.Status != "success" {
		return models.Play{}, &models.UpstreamError{
			Service: "maloja",
			Message: fmt.Sprintf("scrobble not accepted: %s", snippet(body)),
		}
	}

	scrobbled := play.Clone()
	if out.Track.Title != "" {
		scrobbled.Data.Track = out.Track.Title
	}
	if len(out.Track.Artists) > 0 {
		scrobbled.Data.Artists = out.Track.Artists
	}
	return scrobbled, nil
}

func malojaStatusError(status int, body []byte) error {
	ue := &models.UpstreamError{
		Service: "maloja",
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

// malojaScrobble is the newscrobble request body. Duration is seconds
// actually listened; Length is the track length.
type malojaScrobble struct {
	Title        string   `json:"title"`
	Artists      []string `json:"artists"`
	Album        string   `json:"album,omitempty"`
	AlbumArtists []string `json:"albumartists,omitempty"`
	Duration     int      `json:"duration,omitempty"`
	Length       int      `json:"length,omitempty"`
	Time         int64    `json:"time"`
	Key          string   `json:"key"`
}
