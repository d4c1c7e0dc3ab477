// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

// Package lifecycle is the shared init/auth state machine for sources and
// clients. Components supply stage hooks; the machine orders them, records
// state, and emits statusChange events for the dashboard.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tomtom215/audiographus/internal/bus"
	"github.com/tomtom215/audiographus/internal/logging"
	"github.com/tomtom215/audiographus/internal/models"
)

// State names a point in the component lifecycle.
type State string

const (
	StateNotInitialized State = "NOT_INITIALIZED"
	StateInitializing   State = "INITIALIZING"
	StateInitialized    State = "INITIALIZED"
	StatePolling        State = "POLLING"
	StateAwaitingData   State = "AWAITING_DATA"
	StateIdle           State = "IDLE"
)

var validTransitions = map[State][]State{
	StateNotInitialized: {StateInitializing},
	StateInitializing:   {StateInitialized, StateNotInitialized},
	StateInitialized:    {StatePolling, StateAwaitingData, StateIdle},
	StatePolling:        {StateIdle, StateInitialized},
	StateAwaitingData:   {StateIdle, StateInitialized},
	StateIdle:           {StatePolling, StateAwaitingData, StateInitialized},
}

// ErrInvalidState is returned when a transition or operation is not legal
// from the current state.
var ErrInvalidState = errors.New("lifecycle: invalid state")

// ErrFatal marks an initialization error as permanent. Wrap with
// fmt.Errorf("...: %w", lifecycle.ErrFatal) in a stage hook to stop the
// supervisor from scheduling a retry.
var ErrFatal = errors.New("lifecycle: fatal")

// InitError reports a failed initialization stage. Fatal errors come from
// invalid configuration and must not be retried; everything else is a
// transient condition the caller may retry with backoff.
type InitError struct {
	Stage string
	Fatal bool
	Err   error
}

func (e *InitError) Error() string {
	if e.Fatal {
		return fmt.Sprintf("%s: %v (fatal)", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// IsFatal reports whether err is a permanent initialization failure.
func IsFatal(err error) bool {
	var ie *InitError
	if errors.As(err, &ie) {
		return ie.Fatal
	}
	return classifyFatal(err)
}

func classifyFatal(err error) bool {
	if errors.Is(err, ErrFatal) {
		return true
	}
	var ve *models.ValidationError
	return errors.As(err, &ve)
}

// Hooks supplies the component-specific initialization stages, run in
// declaration order. A nil hook is skipped.
type Hooks struct {
	// BuildInitData parses config and assembles derived state (URLs,
	// credential paths). A *models.ValidationError or ErrFatal wrap
	// fails initialization permanently.
	BuildInitData func(ctx context.Context) error

	// CheckConnection proves the upstream is reachable. Nil for
	// pure-ingress components.
	CheckConnection func(ctx context.Context) error

	// Authenticate proves or acquires credentials. Only runs when the
	// component requires auth. Returning authed=false with a nil error
	// means user interaction is needed; the hook records the redirect
	// URL via SetAuthURL before returning.
	Authenticate func(ctx context.Context) (authed bool, err error)
}

// Notifier receives lifecycle events. *bus.Bus satisfies it; nil disables
// emission.
type Notifier interface {
	Publish(kind, name, from string, payload interface{}) error
}

// Config describes the component the machine tracks.
type Config struct {
	// Name is the configured component name ("spotify-main", "lastfm").
	Name string

	// From is bus.FromSource or bus.FromClient.
	From string

	RequiresAuth bool

	Hooks Hooks

	Notifier Notifier
}

// Machine tracks one component's lifecycle state.
type Machine struct {
	name         string
	from         string
	requiresAuth bool
	hooks        Hooks
	notifier     Notifier

	// initMu serializes Initialize so stage hooks never run twice
	// concurrently. mu guards the fields below and is never held across
	// a hook call.
	initMu sync.Mutex
	mu     sync.RWMutex

	state           State
	authed          bool
	authInteraction bool
	authURL         string
	lastError       string
}

// New creates a Machine in NOT_INITIALIZED. Components that require no
// authentication start out authed.
func New(cfg Config) *Machine {
	return &Machine{
		name:         cfg.Name,
		from:         cfg.From,
		requiresAuth: cfg.RequiresAuth,
		hooks:        cfg.Hooks,
		notifier:     cfg.Notifier,
		state:        StateNotInitialized,
		authed:       !cfg.RequiresAuth,
	}
}

// Initialize runs the stage hooks in order. It is idempotent: once the
// machine reaches INITIALIZED, further calls return nil without re-running
// any hook. On failure the machine returns to NOT_INITIALIZED with the
// error recorded for the dashboard, and the returned *InitError tells the
// caller whether a retry is worthwhile.
func (m *Machine) Initialize(ctx context.Context) error {
	m.initMu.Lock()
	defer m.initMu.Unlock()

	if m.State() != StateNotInitialized {
		if m.State() == StateInitializing {
			return fmt.Errorf("%w: already initializing", ErrInvalidState)
		}
		return nil
	}

	m.setState(StateInitializing, "")

	if err := m.runStage(ctx, "buildInitData", m.hooks.BuildInitData); err != nil {
		return m.failInit("buildInitData", err)
	}
	if err := m.runStage(ctx, "checkConnection", m.hooks.CheckConnection); err != nil {
		return m.failInit("checkConnection", err)
	}

	if m.requiresAuth && m.hooks.Authenticate != nil {
		authed, err := m.hooks.Authenticate(ctx)
		if err != nil {
			return m.failInit("authentication", err)
		}
		m.mu.Lock()
		m.authed = authed
		m.authInteraction = !authed && m.authURL != ""
		m.mu.Unlock()
		if !authed {
			logging.Warn().Str(m.from, m.name).Msg("Authentication requires user interaction")
		}
	}

	m.setState(StateInitialized, "")
	return nil
}

func (m *Machine) runStage(ctx context.Context, stage string, hook func(context.Context) error) error {
	if hook == nil {
		logging.Debug().Str(m.from, m.name).Str("stage", stage).Msg("Stage skipped")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	logging.Debug().Str(m.from, m.name).Str("stage", stage).Msg("Stage running")
	return hook(ctx)
}

func (m *Machine) failInit(stage string, err error) error {
	ie := &InitError{Stage: stage, Fatal: classifyFatal(err), Err: err}
	m.setState(StateNotInitialized, ie.Error())
	logging.Error().Err(err).Str(m.from, m.name).Str("stage", stage).Bool("fatal", ie.Fatal).
		Msg("Initialization failed")
	return ie
}

// TransitionTo moves the machine between run states and emits a
// statusChange event. Illegal moves return ErrInvalidState.
func (m *Machine) TransitionTo(next State) error {
	m.mu.Lock()
	ok := false
	for _, s := range validTransitions[m.state] {
		if s == next {
			ok = true
			break
		}
	}
	if !ok {
		cur := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidState, cur, next)
	}
	m.state = next
	m.mu.Unlock()

	m.emitStatus()
	return nil
}

func (m *Machine) setState(next State, lastError string) {
	m.mu.Lock()
	m.state = next
	m.lastError = lastError
	m.mu.Unlock()
	m.emitStatus()
}

// State returns the current lifecycle state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Ready reports whether the component may start work: initialized (or
// resting between runs) and authenticated.
func (m *Machine) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (m.state == StateInitialized || m.state == StateIdle) && m.authed
}

// Authed reports whether the component holds working credentials.
func (m *Machine) Authed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.authed
}

// SetAuthed records an authentication change (OAuth callback completed,
// or upstream revoked credentials) and emits a statusChange event.
func (m *Machine) SetAuthed(authed bool) {
	m.mu.Lock()
	m.authed = authed
	if authed {
		m.authInteraction = false
	}
	m.mu.Unlock()
	m.emitStatus()
}

// SetAuthURL records the URL a user must visit to complete authentication.
func (m *Machine) SetAuthURL(url string) {
	m.mu.Lock()
	m.authURL = url
	m.mu.Unlock()
}

// AuthURL returns the recorded interaction URL, if any.
func (m *Machine) AuthURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.authURL
}

// Name returns the component name.
func (m *Machine) Name() string { return m.name }

// Status is the dashboard view of one component.
type Status struct {
	Name                    string `json:"name"`
	From                    string `json:"from"`
	State                   State  `json:"state"`
	Authed                  bool   `json:"authed"`
	RequiresAuth            bool   `json:"requiresAuth"`
	RequiresAuthInteraction bool   `json:"requiresAuthInteraction,omitempty"`
	AuthURL                 string `json:"authUrl,omitempty"`
	Error                   string `json:"error,omitempty"`
}

// Snapshot returns the current status.
func (m *Machine) Snapshot() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Status{
		Name:                    m.name,
		From:                    m.from,
		State:                   m.state,
		Authed:                  m.authed,
		RequiresAuth:            m.requiresAuth,
		RequiresAuthInteraction: m.authInteraction,
		AuthURL:                 m.authURL,
		Error:                   m.lastError,
	}
}

func (m *Machine) emitStatus() {
	if m.notifier == nil {
		return
	}
	m.mu.RLock()
	payload := bus.StatusData{Status: string(m.state), Error: m.lastError}
	m.mu.RUnlock()
	if err := m.notifier.Publish(bus.KindStatusChange, m.name, m.from, payload); err != nil {
		logging.Warn().Err(err).Str(m.from, m.name).Msg("Failed to publish status change")
	}
}
