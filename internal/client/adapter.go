// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

package client

import (
	"context"
	"errors"
	"fmt"
	"net"
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
	"github.com/tomtom215/audiographus/internal/deadletter"
	"github.com/tomtom215/audiographus/internal/models"
)

// Adapter is the contract every scrobble destination fulfils: it can
// submit one finished play. The optional capability interfaces below
// describe what else it can do; the Client inspects them at
// construction time and wires only the paths the adapter supports.
type Adapter interface {
	// Type returns the registry type string ("lastfm", "listenbrainz").
	Type() string

	// Scrobble submits one play and returns the upstream's record of it,
	// normalized into a Play. Failures are classified through
	// *models.UpstreamError so the worker can route them.
	Scrobble(ctx context.Context, play models.Play) (models.Play, error)
}

// NowPlayer forwards live now-playing notices. Notices are ephemeral;
// failures are logged and never dead-lettered.
type NowPlayer interface {
	NowPlaying(ctx context.Context, play models.Play) error
}

// RecentFetcher lists the account's most recent scrobbles as the
// upstream sees them. The listing feeds the duplicate and timeframe
// checks before each submit.
type RecentFetcher interface {
	RecentScrobbles(ctx context.Context, limit int) ([]models.Play, error)
}

// Initializer parses the adapter's config data and assembles derived
// state. A *models.ValidationError fails initialization permanently.
type Initializer interface {
	BuildInitData(ctx context.Context) error
}

// ConnectionChecker proves the upstream is reachable before the
// worker starts draining the queue.
type ConnectionChecker interface {
	CheckConnection(ctx context.Context) error
}

// Authenticator is implemented by adapters whose service requires an
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

// Capabilities is the static capability record registered per type.
type Capabilities struct {
	RequiresAuth bool

	// NowPlaying marks types that accept live now-playing notices.
	NowPlaying bool

	// RecentHistory marks types whose account history can be listed for
	// the duplicate check. Types without it rely on the local scrobbled
	// ring alone.
	RecentHistory bool
}

// Deps carries the shared infrastructure handed to every client. The
// adapter builders see the same struct and use what they need.
type Deps struct {
	Creds *creds.Store
	Clock clock.Clock
	HTTP  *http.Client

	// PublicURL is the externally reachable base URL, used to build
	// authorization callback URIs.
	PublicURL string

	// Letters is the shared dead-letter store. Nil keeps dead letters
	// in memory only.
	Letters *deadletter.Store

	// RetryInterval is the dead-letter heartbeat cadence. Zero means
	// config.DefaultRetryInterval.
	RetryInterval time.Duration

	// Accepted maps source names to whether this client takes their
	// plays. Nil or empty accepts nothing, so the supervisor always
	// computes it from the routing config.
	Accepted map[string]bool
}

// EventBus is the client's view of the process bus: plays arrive
// through Subscribe and scrobble outcomes leave through Publish.
// *bus.Bus satisfies it.
type EventBus interface {
	Publish(kind, name, from string, payload interface{}) error
	Subscribe(ctx context.Context, kinds ...string) (<-chan bus.Event, error)
}

var _ EventBus = (*bus.Bus)(nil)

// Builder constructs an adapter from a config entry. Builders stash
// config and dependencies only; parsing and validation happen in
// BuildInitData so failures land in the lifecycle machine where the
// dashboard can see them.
type Builder func(cfg config.ClientConfig, deps Deps) (Adapter, error)

// registration pairs a builder with its capability record.
type registration struct {
	build Builder
	caps  Capabilities
}

var (
	registryMu sync.RWMutex
	registry   = map[string]registration{}
)

// Register adds a client type to the registry. It panics on duplicate
// registration; types register once from init.
func Register(typ string, caps Capabilities, build Builder) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[typ]; dup {
		panic(fmt.Sprintf("client: type %q registered twice", typ))
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
// carry fields for other consumers.
func decodeData(data map[string]interface{}, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode client data: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode client data: %w", err)
	}
	return nil
}

// wrapTransport classifies a transport-level failure. Timeouts become
// retryable upstream errors the dead-letter path can replay; any other
// network failure bubbles up unwrapped and stops the worker.
func wrapTransport(service string, err error) error {
	var ne net.Error
	if (errors.As(err, &ne) && ne.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
		return &models.UpstreamError{
			Service: service,
			Message: "request timed out",
			Cause:   err,
		}
	}
	return err
}
