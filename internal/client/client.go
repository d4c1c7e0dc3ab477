// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

// Package client delivers discovered plays to scrobble services. Each
// configured client owns a play-date-ordered queue fed from the bus, a
// worker that paces submissions and filters duplicates against both its
// own history and the upstream's, and a dead-letter list that replays
// transient failures on a heartbeat.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/thejerf/suture/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

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

// ErrNoDeadLetter is returned when a manual dead-letter operation names
// an entry that does not exist.
var ErrNoDeadLetter = errors.New("client: no such dead letter")

// historySnapshot is the upstream's recent listing as of the last
// refresh. oldest bounds the timeframe check; newest decides staleness.
type historySnapshot struct {
	plays  []models.Play
	oldest time.Time
	newest time.Time
	at     time.Time
}

// closestMatch records the nearest upstream scrobble seen by the
// duplicate check, whether or not it crossed the threshold.
type closestMatch struct {
	Play  string    `json:"play"`
	Score float64   `json:"score"`
	At    time.Time `json:"at"`
}

// Client drives one configured scrobble destination: it initializes the
// adapter through the lifecycle machine, consumes plays from the bus,
// and delivers them in listen order with duplicate and timeframe gates
// in front of every submission.
type Client struct {
	name     string
	typ      string
	opts     config.ClientOptions
	accepted map[string]bool

	adapter       Adapter
	caps          Capabilities
	nowPlayer     NowPlayer
	recentFetcher RecentFetcher

	machine    *lifecycle.Machine
	events     EventBus
	transforms *transform.Config
	comparator *compare.Comparator
	queue      *queue
	scrobbled  *rings.Ring[models.ScrobbledPlay]
	letters    *letterbox
	clk        clock.Clock

	limiter         *rate.Limiter
	scrobbleBreaker *breaker.Breaker[models.Play]
	recentBreaker   *breaker.Breaker[[]models.Play]

	retryInterval time.Duration
	replaySpacing time.Duration

	mu   sync.Mutex
	snap historySnapshot

	closestMu sync.Mutex
	closest   closestMatch

	scrobbledCount atomic.Uint64
	failures       atomic.Int32
	scrobbling     atomic.Bool

	wake chan struct{}

	authReady   chan struct{}
	authOnce    sync.Once
	lettersOnce sync.Once
}

// New builds a Client from a config entry. The adapter type must be
// registered; config parsing beyond that is deferred to Initialize so
// failures are visible on the dashboard.
func New(cfg config.ClientConfig, events EventBus, deps Deps) (*Client, error) {
	build, caps, ok := Lookup(cfg.Type)
	if !ok {
		return nil, fmt.Errorf("client %s: unknown type %q", cfg.Name, cfg.Type)
	}

	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.HTTP == nil {
		deps.HTTP = &http.Client{Timeout: 30 * time.Second}
	}
	if deps.RetryInterval <= 0 {
		deps.RetryInterval = config.DefaultRetryInterval
	}

	opts := cfg.Options
	if opts.ScrobbleDelay <= 0 {
		opts.ScrobbleDelay = config.DefaultScrobbleDelay
	}
	if opts.DeadLetterRetries <= 0 {
		opts.DeadLetterRetries = config.DefaultDeadLetterRetries
	}
	if opts.MaxPollRetries <= 0 {
		opts.MaxPollRetries = config.DefaultMaxPollRetries
	}
	if opts.RefreshLimit <= 0 {
		opts.RefreshLimit = config.DefaultRefreshLimit
	}

	adapter, err := build(cfg, deps)
	if err != nil {
		return nil, fmt.Errorf("client %s: %w", cfg.Name, err)
	}

	c := &Client{
		name:          cfg.Name,
		typ:           cfg.Type,
		opts:          opts,
		accepted:      deps.Accepted,
		adapter:       adapter,
		caps:          caps,
		events:        events,
		comparator:    compare.New(compare.DefaultTolerances),
		queue:         &queue{},
		scrobbled:     rings.NewScrobbledRing(opts.ScrobbledCapacity),
		letters:       newLetterbox(cfg.Name, deps.Letters),
		clk:           deps.Clock,
		limiter:       rate.NewLimiter(rate.Every(opts.ScrobbleDelay), 1),
		retryInterval: deps.RetryInterval,
		replaySpacing: time.Second,
		wake:          make(chan struct{}, 1),
		authReady:     make(chan struct{}),
	}
	c.nowPlayer, _ = adapter.(NowPlayer)
	c.recentFetcher, _ = adapter.(RecentFetcher)

	hooks := lifecycle.Hooks{
		BuildInitData: func(ctx context.Context) error {
			tc, err := transform.Parse(opts.PlayTransform)
			if err != nil {
				return &models.ValidationError{Field: "options.playTransform", Message: err.Error()}
			}
			c.transforms = tc
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
				c.machine.SetAuthURL(auth.AuthURL())
			}
			return authed, err
		}
	}

	c.machine = lifecycle.New(lifecycle.Config{
		Name:         cfg.Name,
		From:         bus.FromClient,
		RequiresAuth: caps.RequiresAuth,
		Hooks:        hooks,
		Notifier:     events,
	})

	c.scrobbleBreaker = breaker.New[models.Play](cfg.Name + "-scrobble")
	if c.recentFetcher != nil {
		c.recentBreaker = breaker.New[[]models.Play](cfg.Name + "-recent")
	}

	return c, nil
}

// String names the client for the supervisor's logs.
func (c *Client) String() string { return "client-" + c.name }

// Serve runs the client until ctx is cancelled: one goroutine consumes
// the bus, one drains the queue, one replays dead letters. A
// show-stopper from any of them tears the group down; the supervisor
// restarts the whole client until the failure budget runs out.
func (c *Client) Serve(ctx context.Context) error {
	if err := c.machine.Initialize(ctx); err != nil {
		if lifecycle.IsFatal(err) {
			logging.Error().Err(err).Str("client", c.name).Msg("Client configuration invalid, not retrying")
			return fmt.Errorf("initialize %s: %w: %w", c.name, err, suture.ErrDoNotRestart)
		}
		return fmt.Errorf("initialize %s: %w", c.name, err)
	}

	if !c.machine.Authed() {
		if err := c.machine.TransitionTo(lifecycle.StateIdle); err != nil {
			return err
		}
		logging.Info().Str("client", c.name).Str("authUrl", c.machine.AuthURL()).Msg("Waiting for authentication")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.authReady:
		}
	}

	c.lettersOnce.Do(c.letters.load)

	if c.opts.CheckExisting() {
		c.refreshScrobbles(ctx)
	}

	if err := c.machine.TransitionTo(lifecycle.StateAwaitingData); err != nil {
		return err
	}
	defer func() { _ = c.machine.TransitionTo(lifecycle.StateIdle) }()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.consume(gctx) })
	g.Go(func() error { return c.work(gctx) })
	g.Go(func() error { return c.heartbeat(gctx) })

	err := g.Wait()
	if err == nil || errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return err
	}

	n := c.failures.Add(1)
	if int(n) > c.opts.MaxPollRetries {
		logging.Error().Err(err).Str("client", c.name).Int32("failures", n).
			Msg("Client exceeded its restart budget, parking")
		c.publish(bus.KindStatusChange, bus.StatusData{Status: bus.StatusStopped, Error: err.Error()})
		return fmt.Errorf("client %s: %w: %w", c.name, err, suture.ErrDoNotRestart)
	}
	return err
}

// consume feeds the queue from the bus. Only plays from accepted
// sources are taken; everything else on the feed is skipped.
func (c *Client) consume(ctx context.Context) error {
	events, err := c.events.Subscribe(ctx, bus.KindNewPlay, bus.KindNowPlaying)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", c.name, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			if evt.From != bus.FromSource || !c.accepted[evt.Name] {
				continue
			}
			var payload bus.PlayData
			if err := evt.Decode(&payload); err != nil {
				logging.Warn().Err(err).Str("client", c.name).Str("kind", evt.Type).Msg("Undecodable play event")
				continue
			}
			switch evt.Type {
			case bus.KindNewPlay:
				c.Enqueue(evt.Name, payload.Play)
			case bus.KindNowPlaying:
				c.forwardNowPlaying(ctx, payload.Play)
			}
		}
	}
}

// Enqueue accepts one play for delivery. The client-side preCompare
// transforms run here so the queue holds exactly what the duplicate
// check will see.
func (c *Client) Enqueue(source string, play models.Play) {
	switch c.machine.State() {
	case lifecycle.StateNotInitialized, lifecycle.StateInitializing:
		logging.Debug().Str("client", c.name).Str("state", string(c.machine.State())).Msg("Not ready, play dropped")
		return
	}

	out, err := c.transforms.Apply(transform.StagePreCompare, c.name, play)
	if err != nil {
		logging.Warn().Err(err).Str("client", c.name).Msg("Play dropped by transform")
		metrics.RecordScrobble(c.name, "dropped", 0)
		return
	}

	q := models.NewQueuedScrobble(source, out)
	depth := c.queue.add(q)
	metrics.UpdateQueueDepth(c.name, depth)
	c.publish(bus.KindScrobbleQueued, bus.QueuedData{Queued: q})
	logging.Debug().Str("client", c.name).Str("play", out.String()).Int("depth", depth).Msg("Scrobble queued")
	c.signal()
}

// signal wakes the worker without blocking; a pending wakeup is enough.
func (c *Client) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// work drains the queue whenever there is something to deliver. After a
// restart the queue may already hold requeued items, so the loop primes
// its own wakeup.
func (c *Client) work(ctx context.Context) error {
	c.scrobbling.Store(true)
	defer c.scrobbling.Store(false)

	if c.queue.depth() > 0 {
		c.signal()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.wake:
		}
		if err := c.drain(ctx); err != nil {
			return err
		}
	}
}

// drain processes queued scrobbles oldest first. Transient upstream
// failures move the item to the dead-letter list and the loop goes on;
// a show-stopper puts the item back at the front and stops the worker
// so the supervisor's backoff paces the retry.
func (c *Client) drain(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		q, ok := c.queue.shift()
		if !ok {
			return nil
		}
		metrics.UpdateQueueDepth(c.name, c.queue.depth())

		result, err := c.deliver(ctx, q)
		if err == nil {
			if result == "scrobbled" {
				c.failures.Store(0)
			}
			continue
		}

		if ctx.Err() != nil {
			c.requeue(q)
			return ctx.Err()
		}

		var ue *models.UpstreamError
		switch {
		case errors.As(err, &ue) && ue.AuthFailure:
			c.machine.SetAuthed(false)
			c.requeue(q)
			logging.Error().Err(err).Str("client", c.name).Msg("Upstream rejected credentials, re-authentication required")
			return fmt.Errorf("scrobble %s: %w", c.name, err)
		case errors.As(err, &ue) && !ue.ShowStopper:
			c.addDeadLetter(q, err)
		default:
			c.requeue(q)
			logging.Error().Err(err).Str("client", c.name).Str("play", q.Play.String()).Msg("Scrobble failed hard, stopping worker")
			return fmt.Errorf("scrobble %s: %w", c.name, err)
		}
	}
}

func (c *Client) requeue(q models.QueuedScrobble) {
	c.queue.requeueFront(q)
	metrics.UpdateQueueDepth(c.name, c.queue.depth())
}

// deliver runs one queued scrobble through the timeframe, duplicate and
// transform gates and submits it. The worker and the dead-letter replay
// both come through here so their semantics cannot drift. The result
// names what happened: "scrobbled", "duplicate", "timeframe" or
// "dropped".
func (c *Client) deliver(ctx context.Context, q models.QueuedScrobble) (string, error) {
	if c.recentFetcher != nil && c.opts.CheckExisting() && c.snapshotStale(q.Play.Data.PlayDate) {
		c.refreshScrobbles(ctx)
	}

	if !c.timeframeValid(q.Play) {
		logging.Warn().Str("client", c.name).Str("play", q.Play.String()).Msg("Play predates upstream history, discarding")
		metrics.RecordScrobble(c.name, "timeframe", 0)
		c.publish(bus.KindScrobbleDequeued, bus.QueuedData{Queued: q, Reason: "timeframe"})
		return "timeframe", nil
	}

	if c.alreadyScrobbled(q.Play) {
		metrics.RecordScrobble(c.name, "duplicate", 0)
		c.publish(bus.KindScrobbleDequeued, bus.QueuedData{Queued: q, Reason: "duplicate"})
		return "duplicate", nil
	}

	out, err := c.transforms.Apply(transform.StagePostCompare, c.name, q.Play)
	if err != nil {
		logging.Warn().Err(err).Str("client", c.name).Str("play", q.Play.String()).Msg("Play dropped by transform")
		metrics.RecordScrobble(c.name, "dropped", 0)
		c.publish(bus.KindScrobbleDequeued, bus.QueuedData{Queued: q, Reason: "transform"})
		return "dropped", nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	start := time.Now()
	scrobble, err := c.scrobbleBreaker.Execute(func() (models.Play, error) {
		return c.adapter.Scrobble(ctx, out)
	})
	if err != nil {
		metrics.RecordScrobble(c.name, "error", time.Since(start))
		return "", err
	}
	metrics.RecordScrobble(c.name, "scrobbled", time.Since(start))

	scrobbled := models.ScrobbledPlay{Play: out, Scrobble: scrobble, At: c.clk.Now()}
	c.scrobbled.Add(scrobbled)
	c.scrobbledCount.Add(1)
	c.publish(bus.KindScrobble, bus.ScrobbleData{Scrobbled: scrobbled})
	logging.Info().Str("client", c.name).Str("play", out.String()).Msg("Scrobbled")
	return "scrobbled", nil
}

// snapshotStale reports whether the upstream snapshot predates a play,
// meaning the duplicate check would run against history fetched before
// the play happened.
func (c *Client) snapshotStale(playDate time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap.at.IsZero() {
		return true
	}
	return c.snap.newest.Before(playDate)
}

// refreshScrobbles refetches the upstream's recent listing. Failures
// keep the previous snapshot; the duplicate check degrades to the local
// ring rather than blocking delivery.
func (c *Client) refreshScrobbles(ctx context.Context) {
	if c.recentFetcher == nil {
		return
	}

	plays, err := c.recentBreaker.Execute(func() ([]models.Play, error) {
		return c.recentFetcher.RecentScrobbles(ctx, c.opts.RefreshLimit)
	})
	if err != nil {
		logging.Warn().Err(err).Str("client", c.name).Msg("Recent scrobbles refresh failed")
		return
	}

	sorted := make([]models.Play, len(plays))
	copy(sorted, plays)
	slices.SortStableFunc(sorted, func(a, b models.Play) int {
		return a.Data.PlayDate.Compare(b.Data.PlayDate)
	})

	snap := historySnapshot{plays: sorted, at: c.clk.Now()}
	if len(sorted) > 0 {
		snap.oldest = sorted[0].Data.PlayDate
		snap.newest = sorted[len(sorted)-1].Data.PlayDate
	}

	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()
	logging.Debug().Str("client", c.name).Int("scrobbles", len(sorted)).Msg("Upstream history refreshed")
}

// timeframeValid reports whether the play still falls inside the window
// the upstream reports history for. Anything older than the oldest
// scrobble we can see would land out of order, so it is discarded.
func (c *Client) timeframeValid(p models.Play) bool {
	c.mu.Lock()
	oldest := c.snap.oldest
	c.mu.Unlock()
	if oldest.IsZero() {
		return true
	}
	return p.Data.PlayDate.After(oldest)
}

// alreadyScrobbled applies the two duplicate tiers: an exact match in
// this client's own scrobbled ring, then the fuzzy comparator against
// the upstream snapshot. The closest upstream match is remembered for
// the dashboard even when it stays under the threshold.
func (c *Client) alreadyScrobbled(p models.Play) bool {
	if !c.opts.CheckExisting() {
		return false
	}

	for _, s := range c.scrobbled.Items() {
		if c.exactMatch(s.Play, p) {
			logging.Debug().Str("client", c.name).Str("play", p.String()).Msg("Already scrobbled by this client, discarding")
			return true
		}
	}

	c.mu.Lock()
	existing := c.snap.plays
	c.mu.Unlock()
	if len(existing) == 0 {
		return false
	}

	cand := p
	if len(c.transforms.HooksFor(transform.StageCandidate)) > 0 {
		if out, err := c.transforms.Apply(transform.StageCandidate, c.name, p); err == nil {
			cand = out
		}
	}
	if len(c.transforms.HooksFor(transform.StageExisting)) > 0 {
		adjusted := make([]models.Play, len(existing))
		for i, e := range existing {
			if out, err := c.transforms.Apply(transform.StageExisting, c.name, e); err == nil {
				adjusted[i] = out
			} else {
				adjusted[i] = e
			}
		}
		existing = adjusted
	}

	best, res, found := c.comparator.ClosestMatch(cand, existing)
	if !found {
		return false
	}
	c.noteClosest(best, res)
	if res.Duplicate() {
		logging.Debug().Str("client", c.name).Float64("score", res.Score).Str("play", p.String()).
			Msg("Upstream already has this play, discarding")
		return true
	}
	return false
}

// exactMatch is the strict tier: same track, artist and album with a
// play date inside the close window.
func (c *Client) exactMatch(a, b models.Play) bool {
	if !strings.EqualFold(strings.TrimSpace(a.Data.Track), strings.TrimSpace(b.Data.Track)) {
		return false
	}
	if !strings.EqualFold(strings.TrimSpace(a.PrimaryArtist()), strings.TrimSpace(b.PrimaryArtist())) {
		return false
	}
	if !strings.EqualFold(strings.TrimSpace(a.Data.Album), strings.TrimSpace(b.Data.Album)) {
		return false
	}
	switch c.comparator.TemporalAccuracy(a, b) {
	case compare.AccuracyExact, compare.AccuracyClose:
		return true
	}
	return false
}

func (c *Client) noteClosest(p models.Play, res compare.Result) {
	c.closestMu.Lock()
	c.closest = closestMatch{Play: p.String(), Score: res.Score, At: c.clk.Now()}
	c.closestMu.Unlock()
}

// forwardNowPlaying relays a live notice. Notices are ephemeral: a busy
// limiter skips instead of queueing, and failures are only logged.
func (c *Client) forwardNowPlaying(ctx context.Context, p models.Play) {
	if c.nowPlayer == nil || !c.opts.NowPlayingEnabled() || !c.machine.Authed() {
		return
	}
	out, err := c.transforms.Apply(transform.StagePreCompare, c.name, p)
	if err != nil {
		return
	}
	if !c.limiter.Allow() {
		logging.Debug().Str("client", c.name).Msg("Skipping now-playing update, limiter busy")
		return
	}
	if err := c.nowPlayer.NowPlaying(ctx, out); err != nil {
		logging.Warn().Err(err).Str("client", c.name).Msg("Now-playing update failed")
		return
	}
	metrics.RecordNowPlaying(c.name)
}

// addDeadLetter parks a failed scrobble for replay.
func (c *Client) addDeadLetter(q models.QueuedScrobble, cause error) {
	d := models.DeadLetterScrobble{
		QueuedScrobble: q,
		Error:          cause.Error(),
		CreatedAt:      c.clk.Now(),
	}
	c.letters.add(d)
	metrics.RecordDeadLetterEntry(c.name)
	c.publish(bus.KindDeadLetter, bus.DeadLetterData{DeadLetter: d})
	logging.Warn().Err(cause).Str("client", c.name).Str("play", q.Play.String()).Msg("Scrobble dead-lettered")
}

// heartbeat replays dead letters on the configured cadence.
func (c *Client) heartbeat(ctx context.Context) error {
	t := time.NewTicker(c.retryInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			c.replayDeadLetters(ctx)
		}
	}
}

// replayDeadLetters walks eligible entries oldest play first, spacing
// attempts so a replay burst cannot trip the upstream's rate limit. A
// show-stopper or credential failure ends the pass; remaining entries
// wait for the next tick.
func (c *Client) replayDeadLetters(ctx context.Context) {
	due := c.letters.due(c.opts.DeadLetterRetries)
	for i, d := range due {
		if ctx.Err() != nil {
			return
		}
		if i > 0 && !sleepCtx(ctx, c.replaySpacing) {
			return
		}
		if err := c.replayOne(ctx, d); err != nil {
			var ue *models.UpstreamError
			if errors.As(err, &ue) && (ue.ShowStopper || ue.AuthFailure) {
				logging.Warn().Err(err).Str("client", c.name).Msg("Upstream is failing hard, ending replay pass")
				break
			}
		}
	}
	c.updateLetterGauges()
}

// replayOne resubmits one dead letter through the regular delivery
// path. Resolution of any kind removes the entry; failure counts a
// retry against its budget.
func (c *Client) replayOne(ctx context.Context, d models.DeadLetterScrobble) error {
	result, err := c.deliver(ctx, d.QueuedScrobble)
	if err == nil {
		c.letters.remove(d.ID)
		metrics.RecordDeadLetterRetry(c.name, true)
		metrics.RecordDeadLetterRemoval(c.name)
		logging.Info().Str("client", c.name).Str("play", d.Play.String()).Str("result", result).Msg("Dead letter resolved")
		return nil
	}
	if ctx.Err() != nil {
		return err
	}

	var ue *models.UpstreamError
	if errors.As(err, &ue) && ue.AuthFailure {
		c.machine.SetAuthed(false)
	}

	d.Retries++
	d.Error = err.Error()
	d.LastRetry = c.clk.Now()
	c.letters.update(d)
	metrics.RecordDeadLetterRetry(c.name, false)
	logging.Warn().Err(err).Str("client", c.name).Int("retries", d.Retries).Str("play", d.Play.String()).
		Msg("Dead letter replay failed")
	return err
}

func (c *Client) updateLetterGauges() {
	age := 0.0
	if oldest, ok := c.letters.oldestCreated(); ok {
		age = c.clk.Now().Sub(oldest).Seconds()
	}
	metrics.UpdateDeadLetterGauges(c.name, c.letters.size(), age)
}

// sleepCtx sleeps unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// RetryDeadLetter replays one entry immediately, ignoring its retry
// budget. Manual retries come from the dashboard.
func (c *Client) RetryDeadLetter(ctx context.Context, id string) error {
	d, ok := c.letters.get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoDeadLetter, id)
	}
	err := c.replayOne(ctx, d)
	c.updateLetterGauges()
	return err
}

// RemoveDeadLetter discards one entry without replaying it.
func (c *Client) RemoveDeadLetter(id string) error {
	d, ok := c.letters.get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoDeadLetter, id)
	}
	c.letters.remove(id)
	metrics.RecordDeadLetterRemoval(c.name)
	c.publish(bus.KindScrobbleDequeued, bus.QueuedData{Queued: d.QueuedScrobble, Reason: "removed"})
	c.updateLetterGauges()
	return nil
}

// HandleAuthCallback completes an interactive authorization flow and
// unblocks Serve if it was waiting for credentials.
func (c *Client) HandleAuthCallback(ctx context.Context, query url.Values) error {
	a, ok := c.adapter.(Authenticator)
	if !ok {
		return fmt.Errorf("client %s: type %s has no authentication flow", c.name, c.typ)
	}
	if err := a.HandleCallback(ctx, query); err != nil {
		return fmt.Errorf("auth callback %s: %w", c.name, err)
	}
	c.machine.SetAuthed(true)
	c.authOnce.Do(func() { close(c.authReady) })
	logging.Info().Str("client", c.name).Msg("Authentication completed")
	return nil
}

func (c *Client) publish(kind string, payload interface{}) {
	if c.events == nil {
		return
	}
	if err := c.events.Publish(kind, c.name, bus.FromClient, payload); err != nil {
		logging.Warn().Err(err).Str("client", c.name).Str("kind", kind).Msg("Failed to publish event")
	}
}

// Name returns the configured client name.
func (c *Client) Name() string { return c.name }

// Type returns the adapter type string.
func (c *Client) Type() string { return c.typ }

// Accepts reports whether plays from the named source route here.
func (c *Client) Accepts(source string) bool { return c.accepted[source] }

// Queue returns a copy of the pending queue, oldest first.
func (c *Client) Queue() []models.QueuedScrobble { return c.queue.snapshot() }

// Scrobbled returns a copy of the recently scrobbled ring, oldest
// first.
func (c *Client) Scrobbled() []models.ScrobbledPlay { return c.scrobbled.Items() }

// DeadLetters returns the dead-letter entries, oldest play first.
func (c *Client) DeadLetters() []models.DeadLetterScrobble { return c.letters.list() }

// Status returns the lifecycle view of this client.
func (c *Client) Status() lifecycle.Status { return c.machine.Snapshot() }

// Stats is the dashboard view of one client.
type Stats struct {
	lifecycle.Status
	Type        string        `json:"type"`
	Scrobbled   uint64        `json:"tracksScrobbled"`
	QueueDepth  int           `json:"queueDepth"`
	DeadLetters int           `json:"deadLetters"`
	Scrobbling  bool          `json:"scrobbling"`
	NowPlaying  bool          `json:"nowPlaying"`
	Closest     *closestMatch `json:"closestMatch,omitempty"`
}

// Stats snapshots the client for the dashboard.
func (c *Client) Stats() Stats {
	st := Stats{
		Status:      c.machine.Snapshot(),
		Type:        c.typ,
		Scrobbled:   c.scrobbledCount.Load(),
		QueueDepth:  c.queue.depth(),
		DeadLetters: c.letters.size(),
		Scrobbling:  c.scrobbling.Load(),
		NowPlaying:  c.nowPlayer != nil && c.opts.NowPlayingEnabled(),
	}
	c.closestMu.Lock()
	if !c.closest.At.IsZero() {
		cm := c.closest
		st.Closest = &cm
	}
	c.closestMu.Unlock()
	return st
}
