// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

package config

import (
	"fmt"
	"strings"
	"time"
)

// Built-in fallbacks applied after file and defaults sections have been merged.
// Anything the operator does not set lands on one of these.
const (
	DefaultPort               = 9078
	DefaultHost               = "0.0.0.0"
	DefaultTimeout            = 30 * time.Second
	DefaultPollInterval       = 30 * time.Second
	DefaultMaxPollInterval    = 5 * time.Minute
	DefaultRetryMultiplier    = 1.5
	DefaultListStabilityTicks = 1
	DefaultPlayerExpiry       = 10 * time.Minute
	DefaultScrobbleDelay      = time.Second
	DefaultDeadLetterRetries  = 3
	DefaultMaxPollRetries     = 5
	DefaultRefreshLimit       = 20
	DefaultRetryInterval      = 30 * time.Second
)

// Config holds all application configuration loaded from the config file and
// environment variables.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML or JSON config file for persistent settings
//  3. Environment Variables: Override any setting via environment variables
//
// Configuration Categories:
//
//  1. Sources: where plays are discovered (Spotify, Jellyfin, Plex, Tautulli,
//     WebScrobbler). Each entry names an adapter type plus adapter-specific
//     connection data and per-source options.
//
//  2. Clients: where scrobbles are delivered (Last.fm, ListenBrainz, Maloja).
//     Each entry names an adapter type plus credentials and per-client options.
//
//  3. Defaults: sourceDefaults and clientDefaults apply to every source or
//     client that does not override the setting itself.
//
//  4. Infrastructure: HTTP server, API auth and rate limits, dead-letter
//     storage, the outbound event notifier, and logging.
//
// Thread Safety:
// Config is immutable after Load() and safe for concurrent read access from
// multiple goroutines.
type Config struct {
	Server         ServerConfig     `koanf:"server"`
	Logging        LoggingConfig    `koanf:"logging"`
	API            APIConfig        `koanf:"api"`
	Notifier       NotifierConfig   `koanf:"notifier"`
	DeadLetter     DeadLetterConfig `koanf:"deadLetter"`
	SourceDefaults SourceOptions    `koanf:"sourceDefaults"`
	ClientDefaults ClientOptions    `koanf:"clientDefaults"`
	Sources        []SourceConfig   `koanf:"sources"`
	Clients        []ClientConfig   `koanf:"clients"`
}

// ServerConfig holds HTTP server settings.
//
// Environment Variables:
//   - PORT: listen port (default: 9078)
//   - HOST: bind address (default: 0.0.0.0)
//   - BASE_URL: public URL used to build OAuth redirect URIs
//   - CONFIG_DIR: directory holding config file, credentials, and dead-letter store
//   - IS_DOCKER: "true" forces 0.0.0.0 binding and JSON log output
type ServerConfig struct {
	Host      string        `koanf:"host"`
	Port      int           `koanf:"port" validate:"min=1,max=65535"`
	BaseURL   string        `koanf:"baseUrl" validate:"omitempty,url"`
	ConfigDir string        `koanf:"configDir"`
	IsDocker  bool          `koanf:"isDocker"`
	Timeout   time.Duration `koanf:"timeout"`

	// CredsSecret, when set, encrypts persisted source credentials at rest
	// with a key derived from it. Changing the secret orphans previously
	// written credential files.
	CredsSecret string `koanf:"credsSecret"`
}

// LoggingConfig holds log output settings.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, or error (default: info)
//   - LOG_FORMAT: json or console (default: console; json when IS_DOCKER=true)
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// APIConfig holds dashboard API settings. An empty Token leaves the dashboard
// API unauthenticated; webhook ingestion endpoints never require the token.
type APIConfig struct {
	Token       string          `koanf:"token"`
	CORSOrigins []string        `koanf:"corsOrigins"`
	RateLimit   RateLimitConfig `koanf:"rateLimit"`
}

// RateLimitConfig buckets requests per minute per client IP. Zero values fall
// back to the built-in limits (300 dashboard, 100 webhooks, 20 auth).
type RateLimitConfig struct {
	Dashboard int  `koanf:"dashboard" validate:"min=0"`
	Webhooks  int  `koanf:"webhooks" validate:"min=0"`
	Auth      int  `koanf:"auth" validate:"min=0"`
	Disabled  bool `koanf:"disabled"`
}

// NotifierConfig configures outbound notifications for operational events.
type NotifierConfig struct {
	Webhook WebhookNotifierConfig `koanf:"webhook"`
}

// WebhookNotifierConfig posts a JSON body to URL whenever one of the listed
// event kinds fires. An empty Events list means dead-letter and worker-stop
// events only, which are the two an operator cannot afford to miss. Headers
// carries receiver credentials, for example an ntfy Authorization value or
// an X-Gotify-Key.
type WebhookNotifierConfig struct {
	Enabled bool              `koanf:"enabled"`
	URL     string            `koanf:"url" validate:"omitempty,url"`
	Events  []string          `koanf:"events"`
	Headers map[string]string `koanf:"headers"`
	Timeout time.Duration     `koanf:"timeout"`
}

// DeadLetterConfig holds settings for the persistent dead-letter store.
// Path defaults to <CONFIG_DIR>/deadletter when empty.
type DeadLetterConfig struct {
	Path          string        `koanf:"path"`
	RetryInterval time.Duration `koanf:"retryInterval"`
	InMemory      bool          `koanf:"inMemory"`
}

// SourceConfig describes one configured play source. Type selects the adapter
// ("spotify", "jellyfin", "plex", "tautulli", "webscrobbler"), Data carries
// adapter-specific connection settings, and Options tunes discovery behavior.
// Clients limits which scrobble clients receive this source's plays; empty
// means all of them.
type SourceConfig struct {
	Name    string                 `koanf:"name" validate:"required"`
	Type    string                 `koanf:"type" validate:"required"`
	Enable  *bool                  `koanf:"enable"`
	Clients []string               `koanf:"clients"`
	Data    map[string]interface{} `koanf:"data"`
	Options SourceOptions          `koanf:"options"`
}

// Enabled reports whether the source should run. Omitting enable means yes.
func (s SourceConfig) Enabled() bool {
	return s.Enable == nil || *s.Enable
}

// SourceOptions tunes discovery behavior for one source. Zero values inherit
// from sourceDefaults, then from the built-in constants. Pointer fields
// distinguish "unset" from an explicit false or zero.
type SourceOptions struct {
	// Interval is the base polling cadence. Consecutive poll failures back
	// off by RetryMultiplier per attempt, clamped at MaxInterval; the first
	// success resets the cadence.
	Interval        time.Duration `koanf:"interval"`
	MaxInterval     time.Duration `koanf:"maxInterval"`
	RetryMultiplier float64       `koanf:"retryMultiplier" validate:"omitempty,min=1"`

	// ScrobbleBacklog controls whether plays fetched by the initial backlog
	// pass are forwarded to clients or only seeded into the duplicate
	// detection window. Defaults to true.
	ScrobbleBacklog *bool `koanf:"scrobbleBacklog"`

	// ListStabilityTicks is how many extra consecutive consistent polls a
	// source-of-truth listing must survive before its plays are trusted.
	// 0 emits on the first consistent poll after a reset.
	ListStabilityTicks *int `koanf:"listStabilityTicks"`

	// RecentCapacity sizes the recently-discovered ring used for duplicate
	// detection. 0 picks the built-in size.
	RecentCapacity int `koanf:"recentCapacity" validate:"min=0"`

	// PlayerExpiry evicts in-progress player state that has not reported
	// within this window.
	PlayerExpiry time.Duration `koanf:"playerExpiry"`

	// PlayTransform holds the raw transform DSL for this source, parsed once
	// at startup.
	PlayTransform map[string]interface{} `koanf:"playTransform"`
}

// withDefaults overlays unset fields from d, then from built-in constants.
func (o SourceOptions) withDefaults(d SourceOptions) SourceOptions {
	if o.Interval <= 0 {
		o.Interval = d.Interval
	}
	if o.Interval <= 0 {
		o.Interval = DefaultPollInterval
	}
	if o.MaxInterval <= 0 {
		o.MaxInterval = d.MaxInterval
	}
	if o.MaxInterval <= 0 {
		o.MaxInterval = DefaultMaxPollInterval
	}
	if o.MaxInterval < o.Interval {
		o.MaxInterval = o.Interval
	}
	if o.RetryMultiplier <= 0 {
		o.RetryMultiplier = d.RetryMultiplier
	}
	if o.RetryMultiplier <= 0 {
		o.RetryMultiplier = DefaultRetryMultiplier
	}
	if o.ScrobbleBacklog == nil {
		o.ScrobbleBacklog = d.ScrobbleBacklog
	}
	if o.ListStabilityTicks == nil {
		o.ListStabilityTicks = d.ListStabilityTicks
	}
	if o.RecentCapacity <= 0 {
		o.RecentCapacity = d.RecentCapacity
	}
	if o.PlayerExpiry <= 0 {
		o.PlayerExpiry = d.PlayerExpiry
	}
	if o.PlayerExpiry <= 0 {
		o.PlayerExpiry = DefaultPlayerExpiry
	}
	if o.PlayTransform == nil {
		o.PlayTransform = d.PlayTransform
	}
	return o
}

// BacklogEnabled reports whether backlog plays should be scrobbled rather
// than only seeding duplicate detection.
func (o SourceOptions) BacklogEnabled() bool {
	return o.ScrobbleBacklog == nil || *o.ScrobbleBacklog
}

// StabilityTicks returns the configured listing stability threshold.
func (o SourceOptions) StabilityTicks() int {
	if o.ListStabilityTicks == nil || *o.ListStabilityTicks < 0 {
		return DefaultListStabilityTicks
	}
	return *o.ListStabilityTicks
}

// ClientConfig describes one configured scrobble client. Type selects the
// adapter ("lastfm", "listenbrainz", "maloja"), Data carries credentials, and
// Options tunes delivery behavior.
type ClientConfig struct {
	Name    string                 `koanf:"name" validate:"required"`
	Type    string                 `koanf:"type" validate:"required"`
	Enable  *bool                  `koanf:"enable"`
	Data    map[string]interface{} `koanf:"data"`
	Options ClientOptions          `koanf:"options"`
}

// Enabled reports whether the client should run. Omitting enable means yes.
func (c ClientConfig) Enabled() bool {
	return c.Enable == nil || *c.Enable
}

// ClientOptions tunes delivery behavior for one client. Zero values inherit
// from clientDefaults, then from the built-in constants.
type ClientOptions struct {
	// ScrobbleDelay is the minimum gap between successive scrobble calls.
	ScrobbleDelay time.Duration `koanf:"scrobbleDelay"`

	// DeadLetterRetries caps automatic replays of a dead-lettered scrobble.
	DeadLetterRetries int `koanf:"deadLetterRetries" validate:"min=0"`

	// MaxPollRetries caps worker restarts after show-stopper failures before
	// the client is parked for operator attention.
	MaxPollRetries  int     `koanf:"maxPollRetries" validate:"min=0"`
	RetryMultiplier float64 `koanf:"retryMultiplier" validate:"omitempty,min=1"`

	// CheckExistingScrobbles gates the duplicate checks against the client's
	// own upstream history. Defaults to true.
	CheckExistingScrobbles *bool `koanf:"checkExistingScrobbles"`

	// NowPlaying forwards now-playing updates to clients that support them.
	// Defaults to true.
	NowPlaying *bool `koanf:"nowPlaying"`

	// RefreshLimit is how many recent upstream scrobbles to fetch when the
	// local snapshot goes stale.
	RefreshLimit int `koanf:"refreshLimit" validate:"min=0"`

	// ScrobbledCapacity sizes the ring of plays this client has already
	// scrobbled. 0 picks the built-in size.
	ScrobbledCapacity int `koanf:"scrobbledCapacity" validate:"min=0"`

	// PlayTransform holds the raw transform DSL for this client, parsed once
	// at startup.
	PlayTransform map[string]interface{} `koanf:"playTransform"`
}

// withDefaults overlays unset fields from d, then from built-in constants.
func (o ClientOptions) withDefaults(d ClientOptions) ClientOptions {
	if o.ScrobbleDelay <= 0 {
		o.ScrobbleDelay = d.ScrobbleDelay
	}
	if o.ScrobbleDelay <= 0 {
		o.ScrobbleDelay = DefaultScrobbleDelay
	}
	if o.DeadLetterRetries <= 0 {
		o.DeadLetterRetries = d.DeadLetterRetries
	}
	if o.DeadLetterRetries <= 0 {
		o.DeadLetterRetries = DefaultDeadLetterRetries
	}
	if o.MaxPollRetries <= 0 {
		o.MaxPollRetries = d.MaxPollRetries
	}
	if o.MaxPollRetries <= 0 {
		o.MaxPollRetries = DefaultMaxPollRetries
	}
	if o.RetryMultiplier <= 0 {
		o.RetryMultiplier = d.RetryMultiplier
	}
	if o.RetryMultiplier <= 0 {
		o.RetryMultiplier = DefaultRetryMultiplier
	}
	if o.CheckExistingScrobbles == nil {
		o.CheckExistingScrobbles = d.CheckExistingScrobbles
	}
	if o.NowPlaying == nil {
		o.NowPlaying = d.NowPlaying
	}
	if o.RefreshLimit <= 0 {
		o.RefreshLimit = d.RefreshLimit
	}
	if o.RefreshLimit <= 0 {
		o.RefreshLimit = DefaultRefreshLimit
	}
	if o.ScrobbledCapacity <= 0 {
		o.ScrobbledCapacity = d.ScrobbledCapacity
	}
	if o.PlayTransform == nil {
		o.PlayTransform = d.PlayTransform
	}
	return o
}

// CheckExisting reports whether upstream duplicate checks are enabled.
func (o ClientOptions) CheckExisting() bool {
	return o.CheckExistingScrobbles == nil || *o.CheckExistingScrobbles
}

// NowPlayingEnabled reports whether now-playing forwarding is enabled.
func (o ClientOptions) NowPlayingEnabled() bool {
	return o.NowPlaying == nil || *o.NowPlaying
}

// resolveDefaults pushes sourceDefaults and clientDefaults down into every
// source and client entry so consumers read fully resolved options.
func (c *Config) resolveDefaults() {
	for i := range c.Sources {
		c.Sources[i].Options = c.Sources[i].Options.withDefaults(c.SourceDefaults)
	}
	for i := range c.Clients {
		c.Clients[i].Options = c.Clients[i].Options.withDefaults(c.ClientDefaults)
	}
	if c.DeadLetter.RetryInterval <= 0 {
		c.DeadLetter.RetryInterval = DefaultRetryInterval
	}
	if c.Notifier.Webhook.Timeout <= 0 {
		c.Notifier.Webhook.Timeout = 10 * time.Second
	}
}

// ListenAddr returns the host:port the HTTP server should bind.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// PublicURL returns the externally reachable base URL, used when building
// OAuth redirect URIs. Falls back to localhost with the configured port.
func (c *Config) PublicURL() string {
	if c.Server.BaseURL != "" {
		return strings.TrimRight(c.Server.BaseURL, "/")
	}
	return fmt.Sprintf("http://localhost:%d", c.Server.Port)
}

// FindSource returns the source entry with the given name.
func (c *Config) FindSource(name string) (SourceConfig, bool) {
	for _, s := range c.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return SourceConfig{}, false
}

// FindClient returns the client entry with the given name.
func (c *Config) FindClient(name string) (ClientConfig, bool) {
	for _, cl := range c.Clients {
		if cl.Name == name {
			return cl, true
		}
	}
	return ClientConfig{}, false
}

// EnabledSources returns the source entries that should run.
func (c *Config) EnabledSources() []SourceConfig {
	var out []SourceConfig
	for _, s := range c.Sources {
		if s.Enabled() {
			out = append(out, s)
		}
	}
	return out
}

// EnabledClients returns the client entries that should run.
func (c *Config) EnabledClients() []ClientConfig {
	var out []ClientConfig
	for _, cl := range c.Clients {
		if cl.Enabled() {
			out = append(out, cl)
		}
	}
	return out
}

// SourcesOfType returns all enabled sources using the given adapter type.
// Webhook dispatch uses this to find slug candidates for a payload.
func (c *Config) SourcesOfType(typ string) []SourceConfig {
	var out []SourceConfig
	for _, s := range c.Sources {
		if s.Enabled() && s.Type == typ {
			out = append(out, s)
		}
	}
	return out
}

// AcceptedSources returns the set of source names whose plays the named
// client should scrobble. A source with an empty clients list routes to every
// client; a non-empty list routes only to the clients it names.
func (c *Config) AcceptedSources(clientName string) map[string]bool {
	accepted := make(map[string]bool)
	for _, s := range c.Sources {
		if !s.Enabled() {
			continue
		}
		if len(s.Clients) == 0 {
			accepted[s.Name] = true
			continue
		}
		for _, target := range s.Clients {
			if target == clientName {
				accepted[s.Name] = true
				break
			}
		}
	}
	return accepted
}
