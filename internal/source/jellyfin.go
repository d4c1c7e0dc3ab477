// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

/*
jellyfin.go - Jellyfin Source Adapter

Accepts playback webhooks from the Jellyfin webhook plugin and, when a
server URL and API key are configured, polls the Sessions API as a
fallback for deployments where the plugin is unavailable. Both paths
produce playback reports; the player tracker decides when a session
becomes a listen.

API Reference: https://api.jellyfin.org/
*/

package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/audiographus/internal/config"
	"github.com/tomtom215/audiographus/internal/models"
)

// jellyfinTicksPerSecond converts Jellyfin's 100ns ticks.
const jellyfinTicksPerSecond = 10_000_000

func init() {
	Register("jellyfin", Capabilities{
		CanPoll: true,
	}, func(cfg config.SourceConfig, deps Deps) (Adapter, error) {
		return newJellyfin(cfg, deps), nil
	})
}

type jellyfinData struct {
	URL    string `json:"url"`
	APIKey string `json:"apiKey"`

	// Users and Devices restrict which sessions are scrobbled. Empty
	// means all.
	Users   []string `json:"users"`
	Devices []string `json:"devices"`
}

// Jellyfin is the jellyfin adapter. It satisfies Ingester and, when a
// server is configured, SessionPoller.
type Jellyfin struct {
	name string
	raw  map[string]interface{}
	deps Deps

	data jellyfinData
	poll bool
}

func newJellyfin(cfg config.SourceConfig, deps Deps) *Jellyfin {
	return &Jellyfin{name: cfg.Name, raw: cfg.Data, deps: deps}
}

// Type implements Adapter.
func (j *Jellyfin) Type() string { return "jellyfin" }

// BuildInitData parses the data block. Everything is optional: with no
// server URL the source is webhook-only.
func (j *Jellyfin) BuildInitData(_ context.Context) error {
	if err := decodeData(j.raw, &j.data); err != nil {
		return &models.ValidationError{Field: "data", Message: err.Error()}
	}
	if j.data.URL != "" {
		u, err := url.Parse(j.data.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return &models.ValidationError{Field: "data.url", Message: "must be an absolute http(s) URL"}
		}
		j.data.URL = strings.TrimSuffix(j.data.URL, "/")
	}
	j.poll = j.data.URL != "" && j.data.APIKey != ""
	return nil
}

// PollEnabled reports whether session polling is configured.
func (j *Jellyfin) PollEnabled() bool { return j.poll }

// CheckConnection pings the configured server. Webhook-only sources
// have nothing to check.
func (j *Jellyfin) CheckConnection(ctx context.Context) error {
	if !j.poll {
		return nil
	}
	resp, err := j.doRequest(ctx, "/System/Ping")
	if err != nil {
		return fmt.Errorf("jellyfin ping failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jellyfin ping returned status %d", resp.StatusCode)
	}
	return nil
}

// Sessions fetches active sessions and lowers the audio ones into
// playback reports.
func (j *Jellyfin) Sessions(ctx context.Context) ([]Report, error) {
	resp, err := j.doRequest(ctx, "/Sessions")
	if err != nil {
		return nil, fmt.Errorf("jellyfin sessions request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: jellyfin returned status 401", ErrAuthRevoked)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("jellyfin sessions returned status %d: %s", resp.StatusCode, string(body))
	}

	var sessions []jellyfinSession
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		return nil, fmt.Errorf("decode jellyfin sessions: %w", err)
	}

	reports := make([]Report, 0, len(sessions))
	for i := range sessions {
		sess := &sessions[i]
		if sess.NowPlayingItem == nil || sess.NowPlayingItem.Type != "Audio" {
			continue
		}
		if !j.wanted(sess.UserName, sess.DeviceID, sess.DeviceName) {
			continue
		}

		kind := ReportPlaying
		if sess.PlayState.IsPaused {
			kind = ReportPaused
		}
		reports = append(reports, Report{
			Kind:     kind,
			Play:     sess.play(),
			Position: time.Duration(sess.PlayState.PositionTicks/jellyfinTicksPerSecond) * time.Second,
		})
	}
	return reports, nil
}

// Lower turns a webhook plugin payload into a playback report.
// Non-audio notifications are ignored, not errors; the plugin is often
// configured to fire for everything.
func (j *Jellyfin) Lower(body []byte) ([]Report, error) {
	var hook jellyfinWebhook
	if err := json.Unmarshal(body, &hook); err != nil {
		return nil, fmt.Errorf("parse jellyfin webhook: %w", err)
	}
	if hook.ItemType != "Audio" {
		return nil, nil
	}

	var kind ReportKind
	switch hook.NotificationType {
	case "PlaybackStart":
		kind = ReportPlaying
	case "PlaybackProgress":
		kind = ReportPlaying
		if hook.IsPaused {
			kind = ReportPaused
		}
	case "PlaybackStop":
		kind = ReportStopped
	default:
		return nil, nil
	}

	if !j.wanted(hook.NotificationUsername, hook.DeviceID, hook.DeviceName) {
		return nil, nil
	}

	return []Report{{
		Kind:     kind,
		Play:     hook.play(),
		Position: time.Duration(hook.PlaybackPositionTicks/jellyfinTicksPerSecond) * time.Second,
	}}, nil
}

// wanted applies the user and device allowlists.
func (j *Jellyfin) wanted(user, deviceID, deviceName string) bool {
	if len(j.data.Users) > 0 && !containsFold(j.data.Users, user) {
		return false
	}
	if len(j.data.Devices) > 0 &&
		!containsFold(j.data.Devices, deviceID) && !containsFold(j.data.Devices, deviceName) {
		return false
	}
	return true
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func (j *Jellyfin) doRequest(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.data.URL+endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Emby-Token", j.data.APIKey)
	req.Header.Set("X-Emby-Client", "Audiographus")
	req.Header.Set("X-Emby-Device-Name", "Audiographus")
	req.Header.Set("X-Emby-Device-Id", "audiographus-"+j.name)
	req.Header.Set("Accept", "application/json")
	return j.deps.HTTP.Do(req)
}

type jellyfinSession struct {
	UserID         string            `json:"UserId"`
	UserName       string            `json:"UserName"`
	DeviceID       string            `json:"DeviceId"`
	DeviceName     string            `json:"DeviceName"`
	NowPlayingItem *jellyfinItem     `json:"NowPlayingItem"`
	PlayState      jellyfinPlayState `json:"PlayState"`
}

type jellyfinItem struct {
	ID           string   `json:"Id"`
	Name         string   `json:"Name"`
	Type         string   `json:"Type"`
	Album        string   `json:"Album"`
	AlbumArtist  string   `json:"AlbumArtist"`
	Artists      []string `json:"Artists"`
	RunTimeTicks int64    `json:"RunTimeTicks"`
}

type jellyfinPlayState struct {
	PositionTicks int64 `json:"PositionTicks"`
	IsPaused      bool  `json:"IsPaused"`
}

func (s *jellyfinSession) play() models.Play {
	item := s.NowPlayingItem
	artists := item.Artists
	if len(artists) == 0 && item.AlbumArtist != "" {
		artists = []string{item.AlbumArtist}
	}
	var albumArtists []string
	if item.AlbumArtist != "" && !sameStrings(artists, []string{item.AlbumArtist}) {
		albumArtists = []string{item.AlbumArtist}
	}
	user := s.UserName
	if user == "" {
		user = s.UserID
	}
	return models.Play{
		Data: models.PlayData{
			Track:        item.Name,
			Artists:      artists,
			AlbumArtists: albumArtists,
			Album:        item.Album,
			Duration:     int(item.RunTimeTicks / jellyfinTicksPerSecond),
		},
		Meta: models.PlayMeta{
			TrackID:  item.ID,
			DeviceID: s.DeviceID,
			User:     user,
		},
	}
}

type jellyfinWebhook struct {
	NotificationType      string   `json:"NotificationType"`
	ItemType              string   `json:"ItemType"`
	ItemID                string   `json:"ItemId"`
	Name                  string   `json:"Name"`
	Album                 string   `json:"Album"`
	Artist                string   `json:"Artist"`
	Artists               []string `json:"Artists"`
	RunTimeTicks          int64    `json:"RunTimeTicks"`
	PlaybackPositionTicks int64    `json:"PlaybackPositionTicks"`
	IsPaused              bool     `json:"IsPaused"`
	UserID                string   `json:"UserId"`
	NotificationUsername  string   `json:"NotificationUsername"`
	DeviceID              string   `json:"DeviceId"`
	DeviceName            string   `json:"DeviceName"`
}

func (h *jellyfinWebhook) play() models.Play {
	artists := h.Artists
	if len(artists) == 0 && h.Artist != "" {
		artists = []string{h.Artist}
	}
	user := h.NotificationUsername
	if user == "" {
		user = h.UserID
	}
	device := h.DeviceID
	if device == "" {
		device = h.DeviceName
	}
	return models.Play{
		Data: models.PlayData{
			Track:    h.Name,
			Artists:  artists,
			Album:    h.Album,
			Duration: int(h.RunTimeTicks / jellyfinTicksPerSecond),
		},
		Meta: models.PlayMeta{
			TrackID:  h.ItemID,
			DeviceID: device,
			User:     user,
		},
	}
}
