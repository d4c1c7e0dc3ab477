// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tomtom215/audiographus/internal/config"
	"github.com/tomtom215/audiographus/internal/models"
)

func newTestJellyfin(t *testing.T, data map[string]interface{}, deps Deps) *Jellyfin {
	t.Helper()
	j := newJellyfin(config.SourceConfig{Name: "jf", Data: data}, deps)
	if err := j.BuildInitData(context.Background()); err != nil {
		t.Fatalf("BuildInitData() error = %v", err)
	}
	return j
}

func TestJellyfinBuildInitData(t *testing.T) {
	tests := []struct {
		name     string
		data     map[string]interface{}
		wantPoll bool
		wantErr  bool
	}{
		{name: "webhook only", data: nil, wantPoll: false},
		{name: "url without key", data: map[string]interface{}{"url": "http://jf.local"}, wantPoll: false},
		{
			name:     "url and key",
			data:     map[string]interface{}{"url": "http://jf.local:8096", "apiKey": "k"},
			wantPoll: true,
		},
		{name: "relative url", data: map[string]interface{}{"url": "jf.local"}, wantErr: true},
		{name: "bad scheme", data: map[string]interface{}{"url": "ftp://jf.local"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := newJellyfin(config.SourceConfig{Name: "jf", Data: tt.data}, Deps{})
			err := j.BuildInitData(context.Background())
			if tt.wantErr {
				var verr *models.ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("BuildInitData() error = %v, want ValidationError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("BuildInitData() error = %v", err)
			}
			if j.PollEnabled() != tt.wantPoll {
				t.Errorf("PollEnabled() = %v, want %v", j.PollEnabled(), tt.wantPoll)
			}
		})
	}
}

func TestJellyfinBuildInitDataTrimsSlash(t *testing.T) {
	j := newTestJellyfin(t, map[string]interface{}{"url": "http://jf.local:8096/", "apiKey": "k"}, Deps{})
	if j.data.URL != "http://jf.local:8096" {
		t.Errorf("URL = %q, want trailing slash trimmed", j.data.URL)
	}
}

func TestJellyfinLowerKinds(t *testing.T) {
	tests := []struct {
		name string
		body string
		want ReportKind
		none bool
	}{
		{
			name: "playback start",
			body: `{"NotificationType":"PlaybackStart","ItemType":"Audio","Name":"T","Artist":"A"}`,
			want: ReportPlaying,
		},
		{
			name: "progress playing",
			body: `{"NotificationType":"PlaybackProgress","ItemType":"Audio","Name":"T","Artist":"A","IsPaused":false}`,
			want: ReportPlaying,
		},
		{
			name: "progress paused",
			body: `{"NotificationType":"PlaybackProgress","ItemType":"Audio","Name":"T","Artist":"A","IsPaused":true}`,
			want: ReportPaused,
		},
		{
			name: "playback stop",
			body: `{"NotificationType":"PlaybackStop","ItemType":"Audio","Name":"T","Artist":"A"}`,
			want: ReportStopped,
		},
		{
			name: "non-audio item",
			body: `{"NotificationType":"PlaybackStart","ItemType":"Movie","Name":"Film"}`,
			none: true,
		},
		{
			name: "library notification",
			body: `{"NotificationType":"ItemAdded","ItemType":"Audio","Name":"T"}`,
			none: true,
		},
	}
	j := newTestJellyfin(t, nil, Deps{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reports, err := j.Lower([]byte(tt.body))
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

func TestJellyfinLowerFields(t *testing.T) {
	j := newTestJellyfin(t, nil, Deps{})
	body := `{
		"NotificationType": "PlaybackProgress",
		"ItemType": "Audio",
		"ItemId": "item-7",
		"Name": "Svefn-g-englar",
		"Album": "Ágætis byrjun",
		"Artist": "Sigur Rós",
		"RunTimeTicks": 6000000000,
		"PlaybackPositionTicks": 3000000000,
		"UserId": "u1",
		"NotificationUsername": "alice",
		"DeviceId": "dev-1",
		"DeviceName": "Living Room"
	}`

	reports, err := j.Lower([]byte(body))
	if err != nil {
		t.Fatalf("Lower() error = %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("Lower() = %d reports, want 1", len(reports))
	}

	r := reports[0]
	if r.Position != 300*time.Second {
		t.Errorf("Position = %v, want 5m from ticks", r.Position)
	}
	p := r.Play
	if p.Data.Track != "Svefn-g-englar" || p.PrimaryArtist() != "Sigur Rós" || p.Data.Album != "Ágætis byrjun" {
		t.Errorf("play = %s album = %q", p.String(), p.Data.Album)
	}
	if p.Data.Duration != 600 {
		t.Errorf("Duration = %d, want 600 from ticks", p.Data.Duration)
	}
	if p.Meta.TrackID != "item-7" || p.Meta.DeviceID != "dev-1" || p.Meta.User != "alice" {
		t.Errorf("meta = %+v", p.Meta)
	}
}

func TestJellyfinLowerFilters(t *testing.T) {
	j := newTestJellyfin(t, map[string]interface{}{
		"users":   []interface{}{"alice"},
		"devices": []interface{}{"Living Room"},
	}, Deps{})

	base := `{"NotificationType":"PlaybackStart","ItemType":"Audio","Name":"T","Artist":"A",` +
		`"NotificationUsername":%q,"DeviceName":%q}`

	tests := []struct {
		name   string
		user   string
		device string
		want   int
	}{
		{name: "allowed", user: "alice", device: "Living Room", want: 1},
		{name: "case folded", user: "ALICE", device: "living room", want: 1},
		{name: "wrong user", user: "bob", device: "Living Room", want: 0},
		{name: "wrong device", user: "alice", device: "Bedroom", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := []byte(fmt.Sprintf(base, tt.user, tt.device))
			reports, err := j.Lower(body)
			if err != nil {
				t.Fatalf("Lower() error = %v", err)
			}
			if len(reports) != tt.want {
				t.Errorf("Lower() = %d reports, want %d", len(reports), tt.want)
			}
		})
	}
}

func TestJellyfinSessions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Sessions" {
			t.Errorf("request path = %q", r.URL.Path)
		}
		if got := r.Header.Get("X-Emby-Token"); got != "key-1" {
			t.Errorf("X-Emby-Token = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{
				"UserId": "u1", "UserName": "alice",
				"DeviceId": "dev-1", "DeviceName": "Living Room",
				"NowPlayingItem": {
					"Id": "song-1", "Name": "Ný batterí", "Type": "Audio",
					"Album": "Ágætis byrjun", "AlbumArtist": "Sigur Rós",
					"Artists": ["Sigur Rós"], "RunTimeTicks": 2450000000
				},
				"PlayState": {"PositionTicks": 1000000000, "IsPaused": false}
			},
			{
				"UserId": "u1", "UserName": "alice",
				"DeviceId": "dev-2", "DeviceName": "Kitchen",
				"NowPlayingItem": {
					"Id": "song-2", "Name": "Flugufrelsarinn", "Type": "Audio",
					"Artists": ["Sigur Rós"], "RunTimeTicks": 1800000000
				},
				"PlayState": {"PositionTicks": 500000000, "IsPaused": true}
			},
			{
				"UserId": "u2", "UserName": "bob",
				"DeviceId": "dev-3", "DeviceName": "Office",
				"NowPlayingItem": {"Id": "song-3", "Name": "Other", "Type": "Audio"},
				"PlayState": {"PositionTicks": 0, "IsPaused": false}
			},
			{
				"UserId": "u1", "UserName": "alice",
				"DeviceId": "dev-4", "DeviceName": "TV",
				"NowPlayingItem": {"Id": "film-1", "Name": "Heima", "Type": "Movie"},
				"PlayState": {"PositionTicks": 0, "IsPaused": false}
			},
			{
				"UserId": "u1", "UserName": "alice",
				"DeviceId": "dev-5", "DeviceName": "Idle",
				"NowPlayingItem": null,
				"PlayState": {"PositionTicks": 0, "IsPaused": false}
			}
		]`))
	}))
	defer srv.Close()

	j := newTestJellyfin(t, map[string]interface{}{
		"url":    srv.URL,
		"apiKey": "key-1",
		"users":  []interface{}{"alice"},
	}, Deps{HTTP: srv.Client()})

	reports, err := j.Sessions(context.Background())
	if err != nil {
		t.Fatalf("Sessions() error = %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("Sessions() = %d reports, want 2 audio sessions for alice", len(reports))
	}

	playing := reports[0]
	if playing.Kind != ReportPlaying {
		t.Errorf("report[0] Kind = %s, want playing", playing.Kind)
	}
	if playing.Position != 100*time.Second {
		t.Errorf("report[0] Position = %v, want 1m40s", playing.Position)
	}
	if playing.Play.Data.Duration != 245 {
		t.Errorf("report[0] Duration = %d, want 245", playing.Play.Data.Duration)
	}
	if playing.Play.Meta.User != "alice" || playing.Play.Meta.DeviceID != "dev-1" {
		t.Errorf("report[0] meta = %+v", playing.Play.Meta)
	}
	if playing.Play.Data.AlbumArtists != nil {
		t.Errorf("report[0] AlbumArtists = %v, want nil when identical to artists", playing.Play.Data.AlbumArtists)
	}

	if reports[1].Kind != ReportPaused {
		t.Errorf("report[1] Kind = %s, want paused", reports[1].Kind)
	}
}

func TestJellyfinSessionsUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	j := newTestJellyfin(t, map[string]interface{}{"url": srv.URL, "apiKey": "stale"}, Deps{HTTP: srv.Client()})
	if _, err := j.Sessions(context.Background()); !errors.Is(err, ErrAuthRevoked) {
		t.Errorf("Sessions() with 401 error = %v, want ErrAuthRevoked", err)
	}
}

func TestJellyfinCheckConnection(t *testing.T) {
	var pinged bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/System/Ping" {
			pinged = true
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	j := newTestJellyfin(t, map[string]interface{}{"url": srv.URL, "apiKey": "k"}, Deps{HTTP: srv.Client()})
	if err := j.CheckConnection(context.Background()); err != nil {
		t.Errorf("CheckConnection() error = %v", err)
	}
	if !pinged {
		t.Error("CheckConnection() did not hit /System/Ping")
	}

	// Webhook-only sources have nothing to check.
	webhookOnly := newTestJellyfin(t, nil, Deps{})
	if err := webhookOnly.CheckConnection(context.Background()); err != nil {
		t.Errorf("CheckConnection() for webhook-only source error = %v", err)
	}
}
