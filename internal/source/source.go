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
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/audiographus/internal/breaker"
	"github.com/tomtom215/audiographus/internal/bus"
	"github.com/tomtom215/audiographus/internal/clock"
	"github.com/tomtom215/audiographus/internal/compare"
	"github.com/tomtom215/audiographus/internal/config"
	"github.com/tomtom215/audiographus/internal/lifecycle"
	"github.com/tomtom215/audiographus/internal/logging"
	"github.com/tomtom215/audiographus/internal/metrics"
	"github.com/tomtom215/audiographus/internal/models"
	"github.com/tomtom215/audiographus/internal/rings"
	"github.com/tomtom215/audiographus/internal/transform"
)

var (
	// ErrAlreadyPolling is returned when a poll is requested while one
	// is still running.
	ErrAlreadyPolling = errors.New("source: poll already in progress")

	// ErrAuthRequired is returned when an operation needs credentials
	// the source does not hold yet.
	ErrAuthRequired = errors.New("source: authentication required")

	// ErrAuthRevoked marks an upstream response that means stored
	// credentials are no longer accepted.
	ErrAuthRevoked = errors.New("source: upstream rejected credentials")

	// ErrNoIngest is returned when a pushed event reaches a source
	// whose adapter only polls.
	ErrNoIngest = errors.New("source: adapter does not accept pushed events")

	// ErrNoPoll is returned when a poll is requested on a push-only
	// source.
	ErrNoPoll = errors.New("source: adapter cannot poll")
)

// Source drives one configured platform adapter: it initializes it
// through the lifecycle machine, polls or ingests its events, runs
// every observation through the transform and dedup pipeline, and
// publishes fresh plays on the bus.
type Source struct {
	name string
	typ  string
	slug string
	opts config.SourceOptions

	adapter Adapter
	caps    Capabilities

	machine    *lifecycle.Machine
	notifier   Publisher
	transforms *transform.Config
	comparator *compare.Comparator
	ring       *rings.Ring[models.Play]
	players    *PlayerTracker
	stability  *StabilityTracker

	listBreaker    *breaker.Breaker[[]models.Play]
	sessionBreaker *breaker.Breaker[[]Report]

	mu      sync.Mutex
	polling bool

	discovered atomic.Uint64

	authReady   chan struct{}
	authOnce    sync.Once
	backlogOnce sync.Once
}

// New builds a Source from a config entry. The adapter type must be
// registered; config parsing beyond that is deferred to Initialize so
// failures are visible on the dashboard.
func New(cfg config.SourceConfig, notifier Publisher, deps Deps) (*Source, error) {
	build, caps, ok := Lookup(cfg.Type)
	if !ok {
		return nil, fmt.Errorf("source %s: unknown type %q", cfg.Name, cfg.Type)
	}

	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.HTTP == nil {
		deps.HTTP = &http.Client{Timeout: 30 * time.Second}
	}

	adapter, err := build(cfg, deps)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", cfg.Name, err)
	}

	s := &Source{
		name:       cfg.Name,
		typ:        cfg.Type,
		opts:       cfg.Options,
		adapter:    adapter,
		caps:       caps,
		notifier:   notifier,
		comparator: compare.New(compare.DefaultTolerances),
		ring:       rings.NewPlayRing(cfg.Options.RecentCapacity),
		authReady:  make(chan struct{}),
	}
	if slug, ok := cfg.Data["slug"].(string); ok {
		s.slug = slug
	}
	s.players = NewPlayerTracker(cfg.Options.PlayerExpiry, deps.Clock)
	s.stability = NewStabilityTracker(cfg.Options.StabilityTicks())

	hooks := lifecycle.Hooks{
		BuildInitData: func(ctx context.Context) error {
			tc, err := transform.Parse(cfg.Options.PlayTransform)
			if err != nil {
				return &models.ValidationError{Field: "options.playTransform", Message: err.Error()}
			}
			s.transforms = tc
			if init, ok := adapter.(Initializer); ok {
				return init.BuildInitData(ctx)
			}
			return nil
		},
	}
	if chk, ok := adapter.(ConnectionChecker); ok {
		hooks.CheckConnection = chk.CheckConnection
	}
	if auth, ok := adapter.(Authenticator); ok {
		hooks.Authenticate = func(ctx context.Context) (bool, error) {
			authed, err := auth.Authenticate(ctx)
			if err == nil && !authed {
				s.machine.SetAuthURL(auth.AuthURL())
			}
			return authed, err
		}
	}

	s.machine = lifecycle.New(lifecycle.Config{
		Name:         cfg.Name,
		From:         bus.FromSource,
		RequiresAuth: caps.RequiresAuth,
		Hooks:        hooks,
		Notifier:     notifier,
	})

	switch adapter.(type) {
	case Poller:
		s.listBreaker = breaker.New[[]models.Play](cfg.Name)
	case SessionPoller:
		s.sessionBreaker = breaker.New[[]Report](cfg.Name)
	}

	return s, nil
}

// String names the source for the supervisor's logs.
func (s *Source) String() string { return "source-" + s.name }

// Serve runs the source until ctx is cancelled. Fatal initialization
// errors tell the supervisor to give up on this source; transient ones
// get the supervisor's restart backoff.
func (s *Source) Serve(ctx context.Context) error {
	if err := s.machine.Initialize(ctx); err != nil {
		if lifecycle.IsFatal(err) {
			logging.Error().Err(err).Str("source", s.name).Msg("Source configuration invalid, not retrying")
			return fmt.Errorf("initialize %s: %w: %w", s.name, err, suture.ErrDoNotRestart)
		}
		return fmt.Errorf("initialize %s: %w", s.name, err)
	}

	if !s.machine.Authed() {
		if err := s.machine.TransitionTo(lifecycle.StateIdle); err != nil {
			return err
		}
		logging.Info().Str("source", s.name).Str("authUrl", s.machine.AuthURL()).Msg("Waiting for authentication")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.authReady:
		}
	}

	s.backlogOnce.Do(func() { s.seedBacklog(ctx) })

	if s.pollable() {
		return s.pollLoop(ctx)
	}
	return s.awaitData(ctx)
}

// pollable reports whether this source should run a poll loop.
func (s *Source) pollable() bool {
	if !s.caps.CanPoll {
		return false
	}
	if t, ok := s.adapter.(pollToggle); ok && !t.PollEnabled() {
		return false
	}
	switch s.adapter.(type) {
	case Poller, SessionPoller:
		return true
	}
	return false
}

// seedBacklog warms the recent ring from the platform's history so
// pre-startup listens are not re-discovered. Seeded plays are only
// published when the scrobbleBacklog option asks for it.
func (s *Source) seedBacklog(ctx context.Context) {
	if !s.caps.CanBacklog {
		return
	}
	b, ok := s.adapter.(Backlogger)
	if !ok {
		return
	}

	plays, err := b.Backlog(ctx)
	if err != nil {
		logging.Warn().Err(err).Str("source", s.name).Msg("Backlog fetch failed")
		return
	}
	if len(plays) == 0 {
		return
	}

	fresh, _ := s.discover(plays, false)
	logging.Info().Str("source", s.name).Int("plays", len(plays)).Int("seeded", fresh).
		Bool("scrobbling", s.opts.BacklogEnabled()).Msg("Backlog seeded")
}

// pollLoop fetches on a timer. Failures stretch the delay by the
// configured multiplier up to the ceiling; the first success snaps it
// back to the base interval.
func (s *Source) pollLoop(ctx context.Context) error {
	if err := s.machine.TransitionTo(lifecycle.StatePolling); err != nil {
		return err
	}
	defer func() { _ = s.machine.TransitionTo(lifecycle.StateIdle) }()

	logging.Info().Str("source", s.name).Dur("interval", s.opts.Interval).Msg("Starting poller")

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.opts.Interval
	bo.RandomizationFactor = 0
	bo.Multiplier = s.opts.RetryMultiplier
	bo.MaxInterval = s.opts.MaxInterval
	bo.Reset()

	timer := time.NewTimer(0)
	defer timer.Stop()

	sweep := time.NewTicker(playerSweepInterval(s.opts.PlayerExpiry))
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Str("source", s.name).Msg("Poller stopped")
			return ctx.Err()
		case <-sweep.C:
			s.players.EvictStale()
		case <-timer.C:
			delay := s.opts.Interval
			if err := s.Poll(ctx); err != nil && !errors.Is(err, ErrAlreadyPolling) {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				delay = bo.NextBackOff()
				logging.Warn().Err(err).Str("source", s.name).Dur("retryIn", delay).Msg("Poll failed")
			} else {
				bo.Reset()
			}
			timer.Reset(delay)
		}
	}
}

// awaitData parks a push-only source, keeping the player tracker swept
// while webhooks arrive through Ingest.
func (s *Source) awaitData(ctx context.Context) error {
	if err := s.machine.TransitionTo(lifecycle.StateAwaitingData); err != nil {
		return err
	}
	defer func() { _ = s.machine.TransitionTo(lifecycle.StateIdle) }()

	logging.Info().Str("source", s.name).Msg("Awaiting pushed events")

	sweep := time.NewTicker(playerSweepInterval(s.opts.PlayerExpiry))
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sweep.C:
			if evicted := s.players.EvictStale(); evicted > 0 {
				logging.Debug().Str("source", s.name).Int("evicted", evicted).Msg("Evicted stale players")
			}
		}
	}
}

func playerSweepInterval(expiry time.Duration) time.Duration {
	if expiry <= 0 {
		return time.Minute
	}
	half := expiry / 2
	if half < 10*time.Second {
		return 10 * time.Second
	}
	return half
}

// Poll runs a single fetch against the platform. Only one poll may be
// in flight per source; concurrent calls get ErrAlreadyPolling.
func (s *Source) Poll(ctx context.Context) error {
	switch s.machine.State() {
	case lifecycle.StateNotInitialized, lifecycle.StateInitializing:
		return fmt.Errorf("%w: source %s is %s", lifecycle.ErrInvalidState, s.name, s.machine.State())
	}
	if !s.machine.Authed() {
		return fmt.Errorf("%w: source %s", ErrAuthRequired, s.name)
	}

	s.mu.Lock()
	if s.polling {
		s.mu.Unlock()
		return ErrAlreadyPolling
	}
	s.polling = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.polling = false
		s.mu.Unlock()
	}()

	start := time.Now()
	switch a := s.adapter.(type) {
	case Poller:
		plays, err := s.listBreaker.Execute(func() ([]models.Play, error) {
			return a.RecentlyPlayed(ctx)
		})
		metrics.RecordPoll(s.name, time.Since(start), err)
		if err != nil {
			return s.pollError(err)
		}
		if s.caps.SourceOfTruth && !s.stability.Observe(playKeys(plays)) {
			logging.Warn().Str("source", s.name).Msg("History listing unstable, holding discovery")
			return nil
		}
		s.discover(plays, true)
		return nil

	case SessionPoller:
		reports, err := s.sessionBreaker.Execute(func() ([]Report, error) {
			return a.Sessions(ctx)
		})
		metrics.RecordPoll(s.name, time.Since(start), err)
		if err != nil {
			return s.pollError(err)
		}
		for _, r := range reports {
			s.lower(r)
		}
		return nil

	default:
		return fmt.Errorf("%w: source %s is type %s", ErrNoPoll, s.name, s.typ)
	}
}

func (s *Source) pollError(err error) error {
	if errors.Is(err, ErrAuthRevoked) {
		s.machine.SetAuthed(false)
		logging.Error().Err(err).Str("source", s.name).Msg("Upstream rejected credentials, re-authentication required")
	}
	return fmt.Errorf("poll %s: %w", s.name, err)
}

// Ingest lowers a pushed webhook body through the adapter and feeds
// the resulting reports into the discovery pipeline.
func (s *Source) Ingest(body []byte) error {
	a, ok := s.adapter.(Ingester)
	if !ok {
		return fmt.Errorf("%w: source %s is type %s", ErrNoIngest, s.name, s.typ)
	}
	switch s.machine.State() {
	case lifecycle.StateNotInitialized, lifecycle.StateInitializing:
		return fmt.Errorf("%w: source %s is %s", lifecycle.ErrInvalidState, s.name, s.machine.State())
	}

	reports, err := a.Lower(body)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", s.name, err)
	}
	for _, r := range reports {
		s.lower(r)
	}
	return nil
}

// lower routes one report: completed listens go straight to discovery,
// session updates go through the player tracker, now-playing notices
// go out as events.
func (s *Source) lower(r Report) {
	switch r.Kind {
	case ReportScrobble:
		s.discover([]models.Play{r.Play}, true)
	case ReportNowPlaying:
		s.publishNowPlaying(r.Play)
	case ReportPlaying, ReportPaused, ReportStopped:
		up := s.players.Update(r)
		if up.NewTrack {
			s.publishNowPlaying(r.Play)
		}
		if up.Discovered != nil {
			s.discover([]models.Play{*up.Discovered}, true)
		}
	}
}

// discover pushes plays through preCompare transforms, validation and
// the fuzzy dedup against the recent ring. Fresh plays land in the
// ring; live ones (and backlog ones when scrobbleBacklog asks) are
// published as newPlay events. Plays are processed oldest first so the
// ring's order matches listen order regardless of fetch order.
func (s *Source) discover(plays []models.Play, live bool) (fresh, dups int) {
	emit := live || s.opts.BacklogEnabled()

	sorted := make([]models.Play, len(plays))
	copy(sorted, plays)
	slices.SortStableFunc(sorted, func(a, b models.Play) int {
		return a.Data.PlayDate.Compare(b.Data.PlayDate)
	})

	for _, p := range sorted {
		out, err := s.transforms.Apply(transform.StagePreCompare, s.name, p)
		if err != nil {
			logging.Warn().Err(err).Str("source", s.name).Msg("Play dropped by transform")
			metrics.RecordPlayDropped(s.name, "transform")
			continue
		}
		if err := out.Validate(); err != nil {
			logging.Debug().Err(err).Str("source", s.name).Msg("Play failed validation")
			metrics.RecordPlayDropped(s.name, "invalid")
			continue
		}
		if s.isDuplicate(out) {
			dups++
			continue
		}

		out.Meta.Source = s.name
		out.Meta.NewFromSource = live
		s.ring.Add(out)
		s.discovered.Add(1)
		fresh++

		if emit {
			s.publishPlay(bus.KindNewPlay, out)
		} else {
			metrics.RecordPlayDropped(s.name, "backlog")
		}
	}

	if fresh > 0 || dups > 0 {
		metrics.RecordDiscovery(s.name, fresh, dups)
		logging.Debug().Str("source", s.name).Int("fresh", fresh).Int("duplicates", dups).Msg("Discovery pass complete")
	}
	return fresh, dups
}

// isDuplicate compares a candidate against the recent ring. Compare
// stage transforms adjust both sides for the comparator only; the ring
// keeps the untransformed plays.
func (s *Source) isDuplicate(p models.Play) bool {
	existing := s.ring.Items()
	if len(existing) == 0 {
		return false
	}

	cand := p
	if len(s.transforms.HooksFor(transform.StageCandidate)) > 0 {
		if out, err := s.transforms.Apply(transform.StageCandidate, s.name, p); err == nil {
			cand = out
		}
	}
	if len(s.transforms.HooksFor(transform.StageExisting)) > 0 {
		adjusted := make([]models.Play, len(existing))
		for i, e := range existing {
			if out, err := s.transforms.Apply(transform.StageExisting, s.name, e); err == nil {
				adjusted[i] = out
			} else {
				adjusted[i] = e
			}
		}
		existing = adjusted
	}

	_, res, dup := s.comparator.FindDuplicate(cand, existing)
	if dup {
		logging.Trace().Str("source", s.name).Float64("score", res.Score).Str("play", p.String()).Msg("Duplicate play discarded")
	}
	return dup
}

func (s *Source) publishPlay(kind string, p models.Play) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(kind, s.name, bus.FromSource, bus.PlayData{Play: p}); err != nil {
		logging.Warn().Err(err).Str("source", s.name).Str("kind", kind).Msg("Failed to publish play")
	}
}

// publishNowPlaying emits a now-playing notice with the source's
// transforms applied, so the displayed title matches what would be
// scrobbled. Notices missing a track or artist are not worth showing.
func (s *Source) publishNowPlaying(p models.Play) {
	out, err := s.transforms.Apply(transform.StagePreCompare, s.name, p)
	if err != nil {
		return
	}
	if strings.TrimSpace(out.Data.Track) == "" || len(out.Data.Artists) == 0 {
		return
	}
	out.Meta.Source = s.name
	s.publishPlay(bus.KindNowPlaying, out)
}

// HandleAuthCallback completes an interactive authorization flow and
// unblocks Serve if it was waiting for credentials.
func (s *Source) HandleAuthCallback(ctx context.Context, query url.Values) error {
	a, ok := s.adapter.(Authenticator)
	if !ok {
		return fmt.Errorf("source %s: type %s has no authentication flow", s.name, s.typ)
	}
	if err := a.HandleCallback(ctx, query); err != nil {
		return fmt.Errorf("auth callback %s: %w", s.name, err)
	}
	s.machine.SetAuthed(true)
	s.authOnce.Do(func() { close(s.authReady) })
	logging.Info().Str("source", s.name).Msg("Authentication completed")
	return nil
}

// Name returns the configured source name.
func (s *Source) Name() string { return s.name }

// Type returns the adapter type string.
func (s *Source) Type() string { return s.typ }

// Slug returns the webhook slug from the config data block, if any.
func (s *Source) Slug() string { return s.slug }

// Recent returns a copy of the recent-plays ring, oldest first.
func (s *Source) Recent() []models.Play { return s.ring.Items() }

// Players returns the tracked playback sessions for the dashboard.
func (s *Source) Players() []PlayerStatus { return s.players.Snapshot() }

// Discovered returns the number of plays discovered since startup.
func (s *Source) Discovered() uint64 { return s.discovered.Load() }

// Status returns the lifecycle view of this source.
func (s *Source) Status() lifecycle.Status { return s.machine.Snapshot() }

// Stats is the dashboard view of one source.
type Stats struct {
	lifecycle.Status
	Type          string `json:"type"`
	Discovered    uint64 `json:"tracksDiscovered"`
	RecentPlays   int    `json:"recentPlays"`
	ActivePlayers int    `json:"activePlayers"`
	CanPoll       bool   `json:"canPoll"`
}

// Stats snapshots the source for the dashboard.
func (s *Source) Stats() Stats {
	return Stats{
		Status:        s.machine.Snapshot(),
		Type:          s.typ,
		Discovered:    s.discovered.Load(),
		RecentPlays:   s.ring.Len(),
		ActivePlayers: s.players.Active(),
		CanPoll:       s.pollable(),
	}
}

func playKeys(plays []models.Play) []string {
	keys := make([]string, len(plays))
	for i := range plays {
		keys[i] = playKey(plays[i])
	}
	return keys
}

// playKey identifies one listing entry for the stability diff.
func playKey(p models.Play) string {
	ts := strconv.FormatInt(p.Data.PlayDate.Unix(), 10)
	if p.Meta.TrackID != "" {
		return p.Meta.TrackID + "@" + ts
	}
	return strings.ToLower(p.Data.Track) + "|" + strings.ToLower(p.PrimaryArtist()) + "@" + ts
}
