// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

package source

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/audiographus/internal/clock"
	"github.com/tomtom215/audiographus/internal/config"
)

func newTestPlex(t *testing.T, data map[string]interface{}, deps Deps) *Plex {
	t.Helper()
	if deps.Clock == nil {
		deps.Clock = clock.NewFake(testBase)
	}
	p := newPlex(config.SourceConfig{Name: "plex", Data: data}, deps)
	if err := p.BuildInitData(context.Background()); err != nil {
		t.Fatalf("BuildInitData() error = %v", err)
	}
	return p
}

func TestPlexLowerKinds(t *testing.T) {
	tests := []struct {
		name  string
		event string
		want  ReportKind
		none  bool
	}{
		{name: "play", event: "media.play", want: ReportPlaying},
		{name: "resume", event: "media.resume", want: ReportPlaying},
		{name: "pause", event: "media.pause", want: ReportPaused},
		{name: "stop", event: "media.stop", want: ReportStopped},
		{name: "scrobble", event: "media.scrobble", want: ReportScrobble},
		{name: "rating", event: "media.rate", none: true},
	}
	p := newTestPlex(t, nil, Deps{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := []byte(`{
				"event": "` + tt.event + `",
				"Metadata": {"type": "track", "title": "T", "grandparentTitle": "A"},
				"Account": {"id": 1, "title": "alice"}
			}`)
			reports, err := p.Lower(body)
			if err != nil {
				t.Fatalf("Lower() error = %v", err)
			}
			if tt.none {
				if len(reports) != 0 {
					t.Fatalf("Lower() = %d reports, want 0", len(reports))
				}
				return
			}
			if len(reports) != 1 {
				t.Fatalf("Lower() = %d reports, want 1", len(reports))
			}
			if reports[0].Kind != tt.want {
				t.Errorf("Kind = %s, want %s", reports[0].Kind, tt.want)
			}
		})
	}
}

func TestPlexLowerSkipsNonTracks(t *testing.T) {
	p := newTestPlex(t, nil, Deps{})
	body := []byte(`{"event":"media.scrobble","Metadata":{"type":"episode","title":"Pilot"}}`)
	reports, err := p.Lower(body)
	if err != nil {
		t.Fatalf("Lower() error = %v", err)
	}
	if len(reports) != 0 {
		t.Errorf("Lower() = %d reports for an episode, want 0", len(reports))
	}
}

func TestPlexLowerUserFilter(t *testing.T) {
	p := newTestPlex(t, map[string]interface{}{"users": []interface{}{"alice"}}, Deps{})

	allowed := []byte(`{"event":"media.play","Metadata":{"type":"track","title":"T","grandparentTitle":"A"},"Account":{"title":"Alice"}}`)
	if reports, _ := p.Lower(allowed); len(reports) != 1 {
		t.Errorf("Lower() for allowed user = %d reports, want 1", len(reports))
	}

	blocked := []byte(`{"event":"media.play","Metadata":{"type":"track","title":"T","grandparentTitle":"A"},"Account":{"title":"bob"}}`)
	if reports, _ := p.Lower(blocked); len(reports) != 0 {
		t.Errorf("Lower() for blocked user = %d reports, want 0", len(reports))
	}
}

func TestPlexLowerScrobbleTimestamp(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 14, 15, 30, 0, 0, time.UTC))
	p := newTestPlex(t, nil, Deps{Clock: clk})

	body := []byte(`{
		"event": "media.scrobble",
		"Metadata": {
			"type": "track",
			"title": "Décollage",
			"grandparentTitle": "L'Impératrice",
			"parentTitle": "Matahari",
			"guid": "plex://track/abc",
			"duration": 254000
		},
		"Player": {"uuid": "player-1", "title": "Bedroom"},
		"Account": {"id": 7, "title": "alice"}
	}`)

	reports, err := p.Lower(body)
	if err != nil {
		t.Fatalf("Lower() error = %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("Lower() = %d reports, want 1", len(reports))
	}

	play := reports[0].Play
	// Plex sends no timestamp with the scrobble; the listen just ended.
	if !play.Data.PlayDate.Equal(clk.Now()) {
		t.Errorf("PlayDate = %v, want clock time %v", play.Data.PlayDate, clk.Now())
	}
	if play.Data.Track != "Décollage" || play.PrimaryArtist() != "L'Impératrice" {
		t.Errorf("play = %s", play.String())
	}
	if play.Data.Album != "Matahari" || play.Data.Duration != 254 {
		t.Errorf("album = %q duration = %d", play.Data.Album, play.Data.Duration)
	}
	if play.Meta.TrackID != "plex://track/abc" || play.Meta.DeviceID != "player-1" || play.Meta.User != "alice" {
		t.Errorf("meta = %+v", play.Meta)
	}
}

func TestPlexLowerArtistPrecedence(t *testing.T) {
	p := newTestPlex(t, nil, Deps{})

	// originalTitle carries the track artist when it differs from the
	// album artist in grandparentTitle.
	body := []byte(`{
		"event": "media.play",
		"Metadata": {
			"type": "track",
			"title": "Collab",
			"originalTitle": "Guest Artist",
			"grandparentTitle": "Album Artist",
			"viewOffset": 15000
		},
		"Player": {"title": "Web"},
		"Account": {"title": "alice"}
	}`)

	reports, err := p.Lower(body)
	if err != nil {
		t.Fatalf("Lower() error = %v", err)
	}
	play := reports[0].Play
	if play.PrimaryArtist() != "Guest Artist" {
		t.Errorf("PrimaryArtist() = %q, want originalTitle", play.PrimaryArtist())
	}
	if len(play.Data.AlbumArtists) != 1 || play.Data.AlbumArtists[0] != "Album Artist" {
		t.Errorf("AlbumArtists = %v, want grandparentTitle", play.Data.AlbumArtists)
	}
	if reports[0].Position != 15*time.Second {
		t.Errorf("Position = %v, want 15s from viewOffset", reports[0].Position)
	}
	// No uuid: the player title identifies the device.
	if play.Meta.DeviceID != "Web" {
		t.Errorf("DeviceID = %q, want player title fallback", play.Meta.DeviceID)
	}
}
