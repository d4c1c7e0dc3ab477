// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

/*
tautulli.go - Tautulli Source Adapter

Two ways in: a notification-agent webhook fired on Tautulli's own
"watched" trigger, and polling of the get_history API when a server
URL and API key are configured. The history listing gets rewritten by
Tautulli's session grouping, so polled discovery runs behind the
stability gate.

API Reference: https://github.com/Tautulli/Tautulli/wiki/Tautulli-API-Reference
*/

package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/audiographus/internal/config"
	"github.com/tomtom215/audiographus/internal/models"
)

const tautulliHistoryLength = 50

func init() {
	Register("tautulli", Capabilities{
		CanPoll:       true,
		CanBacklog:    true,
		SourceOfTruth: true,
	}, func(cfg config.SourceConfig, deps Deps) (Adapter, error) {
		return newTautulli(cfg, deps), nil
	})
}

type tautulliData struct {
	URL    string `json:"url"`
	APIKey string `json:"apiKey"`

	// Users restricts which accounts are scrobbled. Empty means all.
	Users []string `json:"users"`
}

// Tautulli is the tautulli adapter. It satisfies Ingester and, when a
// server is configured, Poller and Backlogger.
type Tautulli struct {
	name string
	raw  map[string]interface{}
	deps Deps

	data tautulliData
	poll bool
}

func newTautulli(cfg config.SourceConfig, deps Deps) *Tautulli {
	return &Tautulli{name: cfg.Name, raw: cfg.Data, deps: deps}
}

// Type implements Adapter.
func (t *Tautulli) Type() string { return "tautulli" }

// BuildInitData parses the data block. With no server URL the source
// is webhook-only.
func (t *Tautulli) BuildInitData(_ context.Context) error {
	if err := decodeData(t.raw, &t.data); err != nil {
		return &models.ValidationError{Field: "data", Message: err.Error()}
	}
	if t.data.URL != "" {
		u, err := url.Parse(t.data.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return &models.ValidationError{Field: "data.url", Message: "must be an absolute http(s) URL"}
		}
		t.data.URL = strings.TrimSuffix(t.data.URL, "/")
	}
	t.poll = t.data.URL != "" && t.data.APIKey != ""
	return nil
}

// PollEnabled reports whether history polling is configured.
func (t *Tautulli) PollEnabled() bool { return t.poll }

// CheckConnection asks Tautulli for its status.
func (t *Tautulli) CheckConnection(ctx context.Context) error {
	if !t.poll {
		return nil
	}
	_, err := t.apiCall(ctx, "status", nil)
	return err
}

// RecentlyPlayed fetches the track history, newest first.
func (t *Tautulli) RecentlyPlayed(ctx context.Context) ([]models.Play, error) {
	if !t.poll {
		return nil, fmt.Errorf("source %s: tautulli polling is not configured", t.name)
	}
	raw, err := t.apiCall(ctx, "get_history", url.Values{
		"media_type": {"track"},
		"length":     {strconv.Itoa(tautulliHistoryLength)},
	})
	if err != nil {
		return nil, err
	}

	var page struct {
		Data []tautulliHistoryRow `json:"data"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("decode tautulli history: %w", err)
	}

	plays := make([]models.Play, 0, len(page.Data))
	for i := range page.Data {
		row := &page.Data[i]
		if len(t.data.Users) > 0 && !containsFold(t.data.Users, row.User) {
			continue
		}
		plays = append(plays, row.play())
	}
	return plays, nil
}

// Backlog seeds from the same history listing.
func (t *Tautulli) Backlog(ctx context.Context) ([]models.Play, error) {
	if !t.poll {
		return nil, nil
	}
	return t.RecentlyPlayed(ctx)
}

// Lower turns a notification-agent payload into a report. The webhook
// is expected on Tautulli's "watched" trigger, which already applies a
// completion threshold, so those map straight to scrobbles.
func (t *Tautulli) Lower(body []byte) ([]Report, error) {
	var hook tautulliWebhook
	if err := json.Unmarshal(body, &hook); err != nil {
		return nil, fmt.Errorf("parse tautulli webhook: %w", err)
	}
	if hook.MediaType != "" && hook.MediaType != "track" {
		return nil, nil
	}
	if len(t.data.Users) > 0 && !containsFold(t.data.Users, hook.Username) {
		return nil, nil
	}

	play := hook.play()
	switch hook.Action {
	case "watched":
		play.Data.PlayDate = t.deps.Clock.Now()
		return []Report{{Kind: ReportScrobble, Play: play}}, nil
	case "play", "resume":
		return []Report{{Kind: ReportNowPlaying, Play: play}}, nil
	default:
		return nil, nil
	}
}

// apiCall hits /api/v2 and unwraps Tautulli's response envelope.
func (t *Tautulli) apiCall(ctx context.Context, cmd string, params url.Values) (json.RawMessage, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("apikey", t.data.APIKey)
	params.Set("cmd", cmd)

	endpoint := t.data.URL + "/api/v2?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build tautulli request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.deps.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tautulli %s request failed: %w", cmd, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tautulli %s returned status %d", cmd, resp.StatusCode)
	}

	var envelope struct {
		Response struct {
			Result  string          `json:"result"`
			Message string          `json:"message"`
			Data    json.RawMessage `json:"data"`
		} `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode tautulli %s response: %w", cmd, err)
	}
	if envelope.Response.Result != "success" {
		msg := envelope.Response.Message
		if strings.Contains(strings.ToLower(msg), "apikey") {
			return nil, fmt.Errorf("%w: tautulli: %s", ErrAuthRevoked, msg)
		}
		return nil, fmt.Errorf("tautulli %s failed: %s", cmd, msg)
	}
	return envelope.Response.Data, nil
}

type tautulliHistoryRow struct {
	RatingKey        int    `json:"rating_key"`
	Title            string `json:"title"`
	GrandparentTitle string `json:"grandparent_title"`
	OriginalTitle    string `json:"original_title"`
	ParentTitle      string `json:"parent_title"`
	User             string `json:"user"`
	MachineID        string `json:"machine_id"`
	Date             int64  `json:"date"`
	Started          int64  `json:"started"`
	Stopped          int64  `json:"stopped"`
	Duration         int    `json:"duration"`
}

func (r *tautulliHistoryRow) play() models.Play {
	// grandparent is the album artist; original_title carries the
	// track artist when it differs.
	artist := r.OriginalTitle
	var albumArtists []string
	if artist == "" {
		artist = r.GrandparentTitle
	} else if r.GrandparentTitle != "" && r.GrandparentTitle != artist {
		albumArtists = []string{r.GrandparentTitle}
	}
	var artists []string
	if artist != "" {
		artists = []string{artist}
	}

	at := r.Stopped
	if at == 0 {
		at = r.Date
	}
	var playDate time.Time
	if at > 0 {
		playDate = time.Unix(at, 0)
	}

	return models.Play{
		Data: models.PlayData{
			Track:        r.Title,
			Artists:      artists,
			AlbumArtists: albumArtists,
			Album:        r.ParentTitle,
			PlayDate:     playDate,
			ListenedFor:  r.Duration,
		},
		Meta: models.PlayMeta{
			TrackID:  strconv.Itoa(r.RatingKey),
			DeviceID: r.MachineID,
			User:     r.User,
		},
	}
}

type tautulliWebhook struct {
	Action      string `json:"action"`
	MediaType   string `json:"media_type"`
	TrackName   string `json:"track_name"`
	TrackArtist string `json:"track_artist"`
	ArtistName  string `json:"artist_name"`
	AlbumName   string `json:"album_name"`
	Title       string `json:"title"`
	Duration    string `json:"duration"`
	Username    string `json:"username"`
	MachineID   string `json:"machine_id"`
	Device      string `json:"device"`
}

func (h *tautulliWebhook) play() models.Play {
	track := h.TrackName
	if track == "" {
		track = h.Title
	}
	artist := h.TrackArtist
	var albumArtists []string
	if artist == "" {
		artist = h.ArtistName
	} else if h.ArtistName != "" && h.ArtistName != artist {
		albumArtists = []string{h.ArtistName}
	}
	var artists []string
	if artist != "" {
		artists = []string{artist}
	}
	device := h.MachineID
	if device == "" {
		device = h.Device
	}
	return models.Play{
		Data: models.PlayData{
			Track:        track,
			Artists:      artists,
			AlbumArtists: albumArtists,
			Album:        h.AlbumName,
			Duration:     parseClockDuration(h.Duration),
		},
		Meta: models.PlayMeta{
			DeviceID: device,
			User:     h.Username,
		},
	}
}

// parseClockDuration reads Tautulli's duration rendering: either plain
// seconds or a "3:45" / "1:02:03" clock string.
func parseClockDuration(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0
	}
	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return 0
		}
		total = total*60 + n
	}
	return total
}
