// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

/*
webscrobbler.go - Web Scrobbler Source Adapter

Accepts webhooks from the Web Scrobbler browser extension. The
extension applies its own listen threshold and sends a "scrobble"
event when it is crossed; nowplaying/paused/resumedplaying events keep
the dashboard current. Each song carries both the raw parsed fields
and the user-corrected processed ones; processed wins.

Payload reference: https://github.com/web-scrobbler/web-scrobbler/wiki/Developer-API
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
	Register("webscrobbler", Capabilities{}, func(cfg config.SourceConfig, deps Deps) (Adapter, error) {
		return newWebScrobbler(cfg, deps), nil
	})
}

type webScrobblerData struct {
	// Whitelist and Blacklist filter by connector label ("YouTube",
	// "SoundCloud"). A whitelist wins over a blacklist.
	Whitelist []string `json:"whitelist"`
	Blacklist []string `json:"blacklist"`
}

// WebScrobbler is the webscrobbler adapter. It satisfies Ingester.
type WebScrobbler struct {
	name string
	raw  map[string]interface{}
	deps Deps

	data webScrobblerData
}

func newWebScrobbler(cfg config.SourceConfig, deps Deps) *WebScrobbler {
	return &WebScrobbler{name: cfg.Name, raw: cfg.Data, deps: deps}
}

// Type implements Adapter.
func (w *WebScrobbler) Type() string { return "webscrobbler" }

// BuildInitData parses the data block.
func (w *WebScrobbler) BuildInitData(_ context.Context) error {
	if err := decodeData(w.raw, &w.data); err != nil {
		return &models.ValidationError{Field: "data", Message: err.Error()}
	}
	return nil
}

// Lower turns an extension event into a playback report.
func (w *WebScrobbler) Lower(body []byte) ([]Report, error) {
	var hook webScrobblerPayload
	if err := json.Unmarshal(body, &hook); err != nil {
		return nil, fmt.Errorf("parse webscrobbler payload: %w", err)
	}

	song := hook.Data.Song
	label := song.Metadata.Label
	if len(w.data.Whitelist) > 0 {
		if !containsFold(w.data.Whitelist, label) {
			return nil, nil
		}
	} else if containsFold(w.data.Blacklist, label) {
		return nil, nil
	}

	play := song.play()
	play.Meta.DeviceID = label

	switch hook.EventType {
	case "scrobble":
		if play.Data.PlayDate.IsZero() {
			play.Data.PlayDate = w.deps.Clock.Now()
		}
		return []Report{{Kind: ReportScrobble, Play: play}}, nil
	case "nowplaying", "resumedplaying":
		return []Report{{Kind: ReportNowPlaying, Play: play}}, nil
	case "paused":
		return nil, nil
	default:
		return nil, nil
	}
}

type webScrobblerPayload struct {
	EventType string `json:"eventType"`
	Data      struct {
		Song webScrobblerSong `json:"song"`
	} `json:"data"`
}

type webScrobblerSong struct {
	Parsed    webScrobblerFields `json:"parsed"`
	Processed webScrobblerFields `json:"processed"`
	Metadata  struct {
		StartTimestamp int64  `json:"startTimestamp"`
		Label          string `json:"label"`
	} `json:"metadata"`
}

type webScrobblerFields struct {
	Artist      string  `json:"artist"`
	Track       string  `json:"track"`
	Album       string  `json:"album"`
	AlbumArtist string  `json:"albumArtist"`
	Duration    float64 `json:"duration"`
}

func (s *webScrobblerSong) play() models.Play {
	artist := pick(s.Processed.Artist, s.Parsed.Artist)
	albumArtist := pick(s.Processed.AlbumArtist, s.Parsed.AlbumArtist)

	var artists []string
	if artist != "" {
		artists = []string{artist}
	}
	var albumArtists []string
	if albumArtist != "" && albumArtist != artist {
		albumArtists = []string{albumArtist}
	}

	duration := s.Processed.Duration
	if duration == 0 {
		duration = s.Parsed.Duration
	}

	var playDate time.Time
	if s.Metadata.StartTimestamp > 0 {
		playDate = time.Unix(s.Metadata.StartTimestamp, 0)
	}

	return models.Play{
		Data: models.PlayData{
			Track:        pick(s.Processed.Track, s.Parsed.Track),
			Artists:      artists,
			AlbumArtists: albumArtists,
			Album:        pick(s.Processed.Album, s.Parsed.Album),
			Duration:     int(duration),
			PlayDate:     playDate,
		},
	}
}

func pick(processed, parsed string) string {
	if processed != "" {
		return processed
	}
	return parsed
}
