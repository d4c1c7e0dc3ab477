// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/audiographus/internal/bus"
	"github.com/tomtom215/audiographus/internal/clock"
	"github.com/tomtom215/audiographus/internal/config"
	"github.com/tomtom215/audiographus/internal/creds"
	"github.com/tomtom215/audiographus/internal/models"
)

// Adapter is the minimal contract every platform adapter fulfils. The
// optional capability interfaces below describe what else it can do;
// the Source inspects them at construction time and wires only the
// paths the adapter actually supports.
type Adapter interface {
	// Type returns the registry type string ("spotify", "jellyfin").
	Type() string
}

// Poller fetches a recently-played listing from the platform. The
// returned plays carry platform timestamps and are deduplicated by the
// Source before any of them leaves the process.
type Poller interface {
	RecentlyPlayed(ctx context.Context) ([]models.Play, error)
}

// SessionPoller fetches the platform's live playback sessions instead
// of a history listing. Session reports feed the player tracker, which
// decides when a listen counts.
type SessionPoller interface {
	Sessions(ctx context.Context) ([]Report, error)
}

// Backlogger fetches historical plays once at startup so the recent
// ring starts warm and pre-downtime listens are not re-discovered.
type Backlogger interface {
	Backlog(ctx context.Context) ([]models.Play, error)
}

// Ingester lowers a pushed webhook body into reports. The body is the
// raw JSON payload; transport concerns (content types, multipart
// envelopes) are stripped by the HTTP layer before this is called.
type Ingester interface {
	Lower(body []byte) ([]Report, error)
}

// Initializer parses the adapter's config data and assembles derived
// state. A *models.ValidationError fails initialization permanently.
type Initializer interface {
	BuildInitData(ctx context.Context) error
}

// ConnectionChecker proves the upstream is reachable before the
// adapter starts work.
type ConnectionChecker interface {
	CheckConnection(ctx context.Context) error
}

// Authenticator is implemented by adapters whose platform requires an
// interactive authorization flow.
type Authenticator interface {
	// Authenticate loads stored credentials. Returning (false, nil)
	// means user interaction is needed; AuthURL must then return the
	// URL to visit.
	Authenticate(ctx context.Context) (bool, error)

	// AuthURL returns the authorization URL prepared by Authenticate.
	AuthURL() string

	// HandleCallback completes the flow with the provider's redirect
	// query and persists the obtained credentials.
	HandleCallback(ctx context.Context, query url.Values) error
}

// pollToggle lets an adapter whose polling depends on optional config
// (a server URL and API key that may be absent on webhook-only
// deployments) turn the poll loop off at runtime.
type pollToggle interface {
	PollEnabled() bool
}

// ReportKind classifies what a platform told us about playback.
type ReportKind string

const (
	// ReportPlaying marks an active playback session.
	ReportPlaying ReportKind = "playing"
	// ReportPaused marks a paused session.
	ReportPaused ReportKind = "paused"
	// ReportStopped marks a session that ended.
	ReportStopped ReportKind = "stopped"
	// ReportScrobble is a listen the platform itself asserts is
	// complete. It bypasses the player tracker.
	ReportScrobble ReportKind = "scrobble"
	// ReportNowPlaying is a stateless now-playing notice.
	ReportNowPlaying ReportKind = "nowplaying"
)

// Report is one playback observation lowered from a webhook payload or
// a session listing. Position is the playback progress for stateful
// kinds; zero means unknown.
type Report struct {
	Kind     ReportKind
	Play     models.Play
	Position time.Duration
}

// Capabilities is the static capability record registered per type.
type Capabilities struct {
	RequiresAuth bool
	CanPoll      bool
	CanBacklog   bool

	// SourceOfTruth marks types whose polled history listing can be
	// rewritten upstream (grouped, pruned, backfilled). Discovery from
	// such listings is gated behind the stability tracker.
	SourceOfTruth bool
}

// Deps carries the shared infrastructure handed to every adapter.
type Deps struct {
	Creds *creds.Store
	Clock clock.Clock
	HTTP  *http.Client

	// PublicURL is the externally reachable base URL, used to build
	// OAuth redirect URIs.
	PublicURL string
}

// Publisher is where discovered plays and status changes go. *bus.Bus
// satisfies it.
type Publisher interface {
	Publish(kind, name, from string, payload interface{}) error
}

var _ Publisher = (*bus.Bus)(nil)

// Builder constructs an adapter from a config entry. Builders stash
// config and dependencies only; parsing and validation happen in
// BuildInitData so failures land in the lifecycle machine where the
// dashboard can see them.
type Builder func(cfg config.SourceConfig, deps Deps) (Adapter, error)

// registration pairs a builder with its capability record.
type registration struct {
	build Builder
	caps  Capabilities
}

var (
	registryMu sync.RWMutex
	registry   = map[string]registration{}
)

// Register adds a source type to the registry. It panics on duplicate
// registration; types register once from init.
func Register(typ string, caps Capabilities, build Builder) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[typ]; dup {
		panic(fmt.Sprintf("source: type %q registered twice", typ))
	}
	registry[typ] = registration{build: build, caps: caps}
}

// Lookup returns the registration for a type.
func Lookup(typ string) (Builder, Capabilities, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	reg, ok := registry[typ]
	return reg.build, reg.caps, ok
}

// Types returns the registered type strings, sorted.
func Types() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	types := make([]string, 0, len(registry))
	for typ := range registry {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}

// decodeData maps a config entry's free-form data block onto an
// adapter's typed struct. Unknown keys are ignored so configs can
// carry fields for other consumers (slugs, comments).
func decodeData(data map[string]interface{}, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode source data: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode source data: %w", err)
	}
	return nil
}
