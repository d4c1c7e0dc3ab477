// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

/*
plex.go - Plex Source Adapter

Accepts Plex webhooks. Plex posts multipart/form-data with the event
JSON in a "payload" field; the HTTP layer unwraps that envelope before
Lower sees the body. Plex applies its own listen threshold and fires
media.scrobble when it is crossed, so those events go straight to
discovery while play/pause/resume keep the player tracker current.

API Reference: https://support.plex.tv/articles/115002267687-webhooks/
*/

package source

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/audiographus/internal/config"
	"github.com/tomtom215/audiographus/internal/models"
)

func init() {
	Register("plex", Capabilities{}, func(cfg config.SourceConfig, deps Deps) (Adapter, error) {
		return newPlex(cfg, deps), nil
	})
}

type plexData struct {
	// Users restricts which Plex accounts are scrobbled. Empty means
	// all.
	Users []string `json:"users"`
}

// Plex is the plex adapter. It satisfies Ingester.
type Plex struct {
	name string
	raw  map[string]interface{}
	deps Deps

	data plexData
}

func newPlex(cfg config.SourceConfig, deps Deps) *Plex {
	return &Plex{name: cfg.Name, raw: cfg.Data, deps: deps}
}

// Type implements Adapter.
func (p *Plex) Type() string { return "plex" }

// BuildInitData parses the data block.
func (p *Plex) BuildInitData(_ context.Context) error {
	if err := decodeData(p.raw, &p.data); err != nil {
		return &models.ValidationError{Field: "data", Message: err.Error()}
	}
	return nil
}

// Lower turns a webhook payload into a playback report. Non-track
// media and unwatched users are ignored.
func (p *Plex) Lower(body []byte) ([]Report, error) {
	var hook plexWebhook
	if err := json.Unmarshal(body, &hook); err != nil {
		return nil, fmt.Errorf("parse plex webhook: %w", err)
	}
	if hook.Metadata.Type != "track" {
		return nil, nil
	}
	if len(p.data.Users) > 0 && !containsFold(p.data.Users, hook.Account.Title) {
		return nil, nil
	}

	var kind ReportKind
	switch hook.Event {
	case "media.play", "media.resume":
		kind = ReportPlaying
	case "media.pause":
		kind = ReportPaused
	case "media.stop":
		kind = ReportStopped
	case "media.scrobble":
		kind = ReportScrobble
	default:
		return nil, nil
	}

	play := hook.play()
	if kind == ReportScrobble {
		// Plex does not timestamp the webhook; the listen just ended.
		play.Data.PlayDate = p.deps.Clock.Now()
	}
	return []Report{{
		Kind:     kind,
		Play:     play,
		Position: time.Duration(hook.Metadata.ViewOffset) * time.Millisecond,
	}}, nil
}

type plexWebhook struct {
	Event    string       `json:"event"`
	Metadata plexMetadata `json:"Metadata"`
	Player   plexPlayer   `json:"Player"`
	Account  plexAccount  `json:"Account"`
}

type plexMetadata struct {
	Type             string `json:"type"`
	Title            string `json:"title"`
	GrandparentTitle string `json:"grandparentTitle"`
	ParentTitle      string `json:"parentTitle"`
	OriginalTitle    string `json:"originalTitle"`
	GUID             string `json:"guid"`
	Duration         int64  `json:"duration"`
	ViewOffset       int64  `json:"viewOffset"`
}

type plexPlayer struct {
	UUID  string `json:"uuid"`
	Title string `json:"title"`
}

type plexAccount struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

func (h *plexWebhook) play() models.Play {
	// For tracks the grandparent is the album artist; originalTitle
	// carries the track artist when it differs.
	artist := h.Metadata.OriginalTitle
	var albumArtists []string
	if artist == "" {
		artist = h.Metadata.GrandparentTitle
	} else if h.Metadata.GrandparentTitle != "" && h.Metadata.GrandparentTitle != artist {
		albumArtists = []string{h.Metadata.GrandparentTitle}
	}

	var artists []string
	if artist != "" {
		artists = []string{artist}
	}
	device := h.Player.UUID
	if device == "" {
		device = h.Player.Title
	}
	return models.Play{
		Data: models.PlayData{
			Track:        h.Metadata.Title,
			Artists:      artists,
			AlbumArtists: albumArtists,
			Album:        h.Metadata.ParentTitle,
			Duration:     int(h.Metadata.Duration / 1000),
		},
		Meta: models.PlayMeta{
			TrackID:  h.Metadata.GUID,
			DeviceID: device,
			User:     h.Account.Title,
		},
	}
}
