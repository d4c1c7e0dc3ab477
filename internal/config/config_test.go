// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

package config

import (
	"strings"
	"testing"
	"time"
)

func boolPtr(v bool) *bool { return &v }
func intPtr(v int) *int    { return &v }

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Sources = []SourceConfig{
		{Name: "spotify-main", Type: "spotify"},
		{Name: "jellyfin-den", Type: "jellyfin"},
	}
	cfg.Clients = []ClientConfig{
		{Name: "lastfm-main", Type: "lastfm"},
		{Name: "lb-main", Type: "listenbrainz"},
	}
	cfg.resolveDefaults()
	return cfg
}

func TestValidateAcceptsMinimalConfig(t *testing.T) {
	cfg := defaultConfig()
	cfg.resolveDefaults()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults error = %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{
			name: "duplicate source name",
			mutate: func(c *Config) {
				c.Sources = append(c.Sources, SourceConfig{Name: "spotify-main", Type: "spotify"})
			},
			wantSub: "duplicate name",
		},
		{
			name: "duplicate client name",
			mutate: func(c *Config) {
				c.Clients = append(c.Clients, ClientConfig{Name: "lastfm-main", Type: "lastfm"})
			},
			wantSub: "duplicate name",
		},
		{
			name: "source without type",
			mutate: func(c *Config) {
				c.Sources = append(c.Sources, SourceConfig{Name: "mystery"})
			},
			wantSub: "type is required",
		},
		{
			name: "source without name",
			mutate: func(c *Config) {
				c.Sources = append(c.Sources, SourceConfig{Type: "plex"})
			},
			wantSub: "name is required",
		},
		{
			name: "route to unknown client",
			mutate: func(c *Config) {
				c.Sources[0].Clients = []string{"nope"}
			},
			wantSub: "unknown client",
		},
		{
			name: "port out of range",
			mutate: func(c *Config) {
				c.Server.Port = 70000
			},
			wantSub: "Port",
		},
		{
			name: "bad log level",
			mutate: func(c *Config) {
				c.Logging.Level = "verbose"
			},
			wantSub: "Level",
		},
		{
			name: "webhook notifier without url",
			mutate: func(c *Config) {
				c.Notifier.Webhook.Enabled = true
			},
			wantSub: "notifier.webhook.url",
		},
		{
			name: "webhook notifier with ftp url",
			mutate: func(c *Config) {
				c.Notifier.Webhook.Enabled = true
				c.Notifier.Webhook.URL = "ftp://example.com/hook"
			},
			wantSub: "http or https",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("Validate() error = %q, want substring %q", err, tt.wantSub)
			}
		})
	}
}

func TestSourceOptionsDefaultsCascade(t *testing.T) {
	cfg := defaultConfig()
	cfg.SourceDefaults.Interval = 15 * time.Second
	cfg.SourceDefaults.ScrobbleBacklog = boolPtr(false)
	cfg.Sources = []SourceConfig{
		{Name: "a", Type: "spotify"},
		{Name: "b", Type: "spotify", Options: SourceOptions{
			Interval:        5 * time.Second,
			ScrobbleBacklog: boolPtr(true),
		}},
	}
	cfg.resolveDefaults()

	a := cfg.Sources[0].Options
	if a.Interval != 15*time.Second {
		t.Errorf("source a interval = %v, want inherited 15s", a.Interval)
	}
	if a.BacklogEnabled() {
		t.Error("source a BacklogEnabled() = true, want inherited false")
	}
	if a.MaxInterval != DefaultMaxPollInterval {
		t.Errorf("source a maxInterval = %v, want built-in %v", a.MaxInterval, DefaultMaxPollInterval)
	}
	if a.RetryMultiplier != DefaultRetryMultiplier {
		t.Errorf("source a retryMultiplier = %v, want built-in %v", a.RetryMultiplier, DefaultRetryMultiplier)
	}
	if a.PlayerExpiry != DefaultPlayerExpiry {
		t.Errorf("source a playerExpiry = %v, want built-in %v", a.PlayerExpiry, DefaultPlayerExpiry)
	}

	b := cfg.Sources[1].Options
	if b.Interval != 5*time.Second {
		t.Errorf("source b interval = %v, want own 5s", b.Interval)
	}
	if !b.BacklogEnabled() {
		t.Error("source b BacklogEnabled() = false, want own true")
	}
}

func TestSourceOptionsMaxIntervalNeverBelowInterval(t *testing.T) {
	opts := SourceOptions{Interval: 10 * time.Minute}.withDefaults(SourceOptions{})
	if opts.MaxInterval < opts.Interval {
		t.Errorf("maxInterval %v < interval %v after defaulting", opts.MaxInterval, opts.Interval)
	}
}

func TestStabilityTicks(t *testing.T) {
	tests := []struct {
		name string
		opts SourceOptions
		want int
	}{
		{name: "unset uses default", opts: SourceOptions{}, want: DefaultListStabilityTicks},
		{name: "explicit zero is honored", opts: SourceOptions{ListStabilityTicks: intPtr(0)}, want: 0},
		{name: "explicit three", opts: SourceOptions{ListStabilityTicks: intPtr(3)}, want: 3},
		{name: "negative falls back", opts: SourceOptions{ListStabilityTicks: intPtr(-1)}, want: DefaultListStabilityTicks},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.opts.StabilityTicks(); got != tt.want {
				t.Errorf("StabilityTicks() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestClientOptionsDefaultsCascade(t *testing.T) {
	cfg := defaultConfig()
	cfg.ClientDefaults.ScrobbleDelay = 2 * time.Second
	cfg.ClientDefaults.CheckExistingScrobbles = boolPtr(false)
	cfg.Clients = []ClientConfig{
		{Name: "a", Type: "lastfm"},
		{Name: "b", Type: "maloja", Options: ClientOptions{
			ScrobbleDelay:          250 * time.Millisecond,
			CheckExistingScrobbles: boolPtr(true),
			DeadLetterRetries:      7,
		}},
	}
	cfg.resolveDefaults()

	a := cfg.Clients[0].Options
	if a.ScrobbleDelay != 2*time.Second {
		t.Errorf("client a scrobbleDelay = %v, want inherited 2s", a.ScrobbleDelay)
	}
	if a.CheckExisting() {
		t.Error("client a CheckExisting() = true, want inherited false")
	}
	if a.DeadLetterRetries != DefaultDeadLetterRetries {
		t.Errorf("client a deadLetterRetries = %d, want built-in %d", a.DeadLetterRetries, DefaultDeadLetterRetries)
	}
	if !a.NowPlayingEnabled() {
		t.Error("client a NowPlayingEnabled() = false, want default true")
	}

	b := cfg.Clients[1].Options
	if b.ScrobbleDelay != 250*time.Millisecond {
		t.Errorf("client b scrobbleDelay = %v, want own 250ms", b.ScrobbleDelay)
	}
	if !b.CheckExisting() {
		t.Error("client b CheckExisting() = false, want own true")
	}
	if b.DeadLetterRetries != 7 {
		t.Errorf("client b deadLetterRetries = %d, want own 7", b.DeadLetterRetries)
	}
}

func TestEnabledDefaultsToTrue(t *testing.T) {
	src := SourceConfig{Name: "a", Type: "spotify"}
	if !src.Enabled() {
		t.Error("source Enabled() = false with enable unset")
	}
	src.Enable = boolPtr(false)
	if src.Enabled() {
		t.Error("source Enabled() = true with enable: false")
	}

	cl := ClientConfig{Name: "a", Type: "lastfm"}
	if !cl.Enabled() {
		t.Error("client Enabled() = false with enable unset")
	}
	cl.Enable = boolPtr(false)
	if cl.Enabled() {
		t.Error("client Enabled() = true with enable: false")
	}
}

func TestEnabledSourcesAndClients(t *testing.T) {
	cfg := validConfig()
	cfg.Sources[1].Enable = boolPtr(false)
	cfg.Clients[0].Enable = boolPtr(false)

	sources := cfg.EnabledSources()
	if len(sources) != 1 || sources[0].Name != "spotify-main" {
		t.Errorf("EnabledSources() = %+v, want only spotify-main", sources)
	}
	clients := cfg.EnabledClients()
	if len(clients) != 1 || clients[0].Name != "lb-main" {
		t.Errorf("EnabledClients() = %+v, want only lb-main", clients)
	}
}

func TestSourcesOfType(t *testing.T) {
	cfg := validConfig()
	cfg.Sources = append(cfg.Sources, SourceConfig{Name: "spotify-alt", Type: "spotify", Enable: boolPtr(false)})

	got := cfg.SourcesOfType("spotify")
	if len(got) != 1 || got[0].Name != "spotify-main" {
		t.Errorf("SourcesOfType(spotify) = %+v, want only enabled spotify-main", got)
	}
	if out := cfg.SourcesOfType("tautulli"); len(out) != 0 {
		t.Errorf("SourcesOfType(tautulli) = %+v, want empty", out)
	}
}

func TestAcceptedSources(t *testing.T) {
	cfg := validConfig()
	// spotify-main routes everywhere, jellyfin-den only to lastfm-main.
	cfg.Sources[1].Clients = []string{"lastfm-main"}

	lastfm := cfg.AcceptedSources("lastfm-main")
	if !lastfm["spotify-main"] || !lastfm["jellyfin-den"] {
		t.Errorf("AcceptedSources(lastfm-main) = %v, want both sources", lastfm)
	}

	lb := cfg.AcceptedSources("lb-main")
	if !lb["spotify-main"] {
		t.Error("AcceptedSources(lb-main) missing spotify-main")
	}
	if lb["jellyfin-den"] {
		t.Error("AcceptedSources(lb-main) includes jellyfin-den despite routing list")
	}
}

func TestAcceptedSourcesSkipsDisabled(t *testing.T) {
	cfg := validConfig()
	cfg.Sources[0].Enable = boolPtr(false)

	got := cfg.AcceptedSources("lastfm-main")
	if got["spotify-main"] {
		t.Error("AcceptedSources() includes disabled source")
	}
}

func TestListenAddrAndPublicURL(t *testing.T) {
	cfg := defaultConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 9090
	if got := cfg.ListenAddr(); got != "127.0.0.1:9090" {
		t.Errorf("ListenAddr() = %q", got)
	}
	if got := cfg.PublicURL(); got != "http://localhost:9090" {
		t.Errorf("PublicURL() without baseUrl = %q", got)
	}

	cfg.Server.BaseURL = "https://scrobble.example.com/"
	if got := cfg.PublicURL(); got != "https://scrobble.example.com" {
		t.Errorf("PublicURL() with baseUrl = %q", got)
	}
}

func TestFindSourceAndClient(t *testing.T) {
	cfg := validConfig()

	if src, ok := cfg.FindSource("jellyfin-den"); !ok || src.Type != "jellyfin" {
		t.Errorf("FindSource(jellyfin-den) = %+v, %v", src, ok)
	}
	if _, ok := cfg.FindSource("missing"); ok {
		t.Error("FindSource(missing) = true")
	}
	if cl, ok := cfg.FindClient("lb-main"); !ok || cl.Type != "listenbrainz" {
		t.Errorf("FindClient(lb-main) = %+v, %v", cl, ok)
	}
	if _, ok := cfg.FindClient("missing"); ok {
		t.Error("FindClient(missing) = true")
	}
}
