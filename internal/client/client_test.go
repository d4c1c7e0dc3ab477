// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/audiographus/internal/bus"
	"github.com/tomtom215/audiographus/internal/clock"
	"github.com/tomtom215/audiographus/internal/compare"
	"github.com/tomtom215/audiographus/internal/config"
	"github.com/tomtom215/audiographus/internal/lifecycle"
	"github.com/tomtom215/audiographus/internal/models"
)

// Test adapter types registered once; each test stubs the adapter
// instance for its client name before calling New.
var (
	clientAdaptersMu sync.Mutex
	clientAdapters   = map[string]Adapter{}
)

func init() {
	build := func(cfg config.ClientConfig, _ Deps) (Adapter, error) {
		clientAdaptersMu.Lock()
		defer clientAdaptersMu.Unlock()
		a, ok := clientAdapters[cfg.Name]
		if !ok {
			return nil, fmt.Errorf("no test adapter stubbed for %s", cfg.Name)
		}
		return a, nil
	}
	Register("fakefull", Capabilities{NowPlaying: true, RecentHistory: true}, build)
	Register("fakebare", Capabilities{}, build)
	Register("fakeauth", Capabilities{RequiresAuth: true}, build)
}

// fakeScrobbler satisfies NowPlayer and RecentFetcher with
// test-supplied behavior.
type fakeScrobbler struct {
	typ string

	mu   sync.Mutex
	sent []models.Play

	scrobble func(ctx context.Context, p models.Play) (models.Play, error)
	recent   func(ctx context.Context, limit int) ([]models.Play, error)
	now      func(ctx context.Context, p models.Play) error
}

func (f *fakeScrobbler) Type() string { return f.typ }

func (f *fakeScrobbler) Scrobble(ctx context.Context, p models.Play) (models.Play, error) {
	f.mu.Lock()
	f.sent = append(f.sent, p)
	f.mu.Unlock()
	if f.scrobble != nil {
		return f.scrobble(ctx, p)
	}
	return p, nil
}

func (f *fakeScrobbler) NowPlaying(ctx context.Context, p models.Play) error {
	if f.now != nil {
		return f.now(ctx, p)
	}
	return nil
}

func (f *fakeScrobbler) RecentScrobbles(ctx context.Context, limit int) ([]models.Play, error) {
	if f.recent != nil {
		return f.recent(ctx, limit)
	}
	return nil, nil
}

func (f *fakeScrobbler) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeScrobbler) sentTracks() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, p := range f.sent {
		out[i] = p.Data.Track
	}
	return out
}

// fakeMinimal is scrobble-only; it deliberately lacks the now-playing
// and history interfaces.
type fakeMinimal struct {
	typ string

	mu   sync.Mutex
	sent []models.Play

	scrobble func(ctx context.Context, p models.Play) (models.Play, error)
}

func (f *fakeMinimal) Type() string { return f.typ }

func (f *fakeMinimal) Scrobble(ctx context.Context, p models.Play) (models.Play, error) {
	f.mu.Lock()
	f.sent = append(f.sent, p)
	f.mu.Unlock()
	if f.scrobble != nil {
		return f.scrobble(ctx, p)
	}
	return p, nil
}

func (f *fakeMinimal) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// fakeAuthScrobbler is a destination behind an interactive
// authorization flow.
type fakeAuthScrobbler struct {
	fakeMinimal
	authURL  string
	callback func(ctx context.Context, query url.Values) error
}

func (f *fakeAuthScrobbler) Authenticate(context.Context) (bool, error) { return false, nil }

func (f *fakeAuthScrobbler) AuthURL() string { return f.authURL }

func (f *fakeAuthScrobbler) HandleCallback(ctx context.Context, query url.Values) error {
	if f.callback != nil {
		return f.callback(ctx, query)
	}
	return nil
}

// fakeBus records everything published and feeds subscribers from a
// buffered channel.
type fakeBus struct {
	mu     sync.Mutex
	events []publishedEvent
	feed   chan bus.Event
}

type publishedEvent struct {
	kind    string
	name    string
	from    string
	payload interface{}
}

func newFakeBus() *fakeBus {
	return &fakeBus{feed: make(chan bus.Event, 16)}
}

func (b *fakeBus) Publish(kind, name, from string, payload interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, publishedEvent{kind: kind, name: name, from: from, payload: payload})
	return nil
}

func (b *fakeBus) Subscribe(context.Context, ...string) (<-chan bus.Event, error) {
	return b.feed, nil
}

func (b *fakeBus) emit(kind, source string, p models.Play) {
	raw, _ := json.Marshal(bus.PlayData{Play: p})
	b.feed <- bus.Event{Type: kind, Name: source, From: bus.FromSource, Data: raw}
}

func (b *fakeBus) count(kind string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, ev := range b.events {
		if ev.kind == kind {
			n++
		}
	}
	return n
}

// reasons lists the dequeue reasons in publish order.
func (b *fakeBus) reasons() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, ev := range b.events {
		if ev.kind != bus.KindScrobbleDequeued {
			continue
		}
		if qd, ok := ev.payload.(bus.QueuedData); ok {
			out = append(out, qd.Reason)
		}
	}
	return out
}

func (b *fakeBus) stoppedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, ev := range b.events {
		if ev.kind != bus.KindStatusChange {
			continue
		}
		if sd, ok := ev.payload.(bus.StatusData); ok && sd.Status == "STOPPED" {
			n++
		}
	}
	return n
}

var testBase = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func testPlay(track, artist string, at time.Time) models.Play {
	return models.Play{Data: models.PlayData{
		Track:    track,
		Artists:  []string{artist},
		Duration: 240,
		PlayDate: at,
	}}
}

func testClientOptions() config.ClientOptions {
	return config.ClientOptions{ScrobbleDelay: time.Nanosecond}
}

func boolPtr(b bool) *bool { return &b }

// newTestClient stubs the adapter under name and builds a Client for it.
func newTestClient(t *testing.T, typ, name string, a Adapter, opts config.ClientOptions, b EventBus) *Client {
	t.Helper()
	clientAdaptersMu.Lock()
	clientAdapters[name] = a
	clientAdaptersMu.Unlock()
	t.Cleanup(func() {
		clientAdaptersMu.Lock()
		delete(clientAdapters, name)
		clientAdaptersMu.Unlock()
	})

	c, err := New(config.ClientConfig{Name: name, Type: typ, Options: opts}, b, Deps{
		Clock:    clock.NewFake(testBase),
		Accepted: map[string]bool{"deck": true},
	})
	if err != nil {
		t.Fatalf("New(%s) error = %v", name, err)
	}
	c.replaySpacing = 0
	return c
}

func initClient(t *testing.T, c *Client) {
	t.Helper()
	if err := c.machine.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestNewRejectsUnknownType(t *testing.T) {
	_, err := New(config.ClientConfig{Name: "mystery", Type: "minidisc"}, nil, Deps{})
	if err == nil || !strings.Contains(err.Error(), "unknown type") {
		t.Errorf("New() error = %v, want unknown type", err)
	}
}

func TestEnqueueBeforeInitializeDrops(t *testing.T) {
	pub := newFakeBus()
	c := newTestClient(t, "fakefull", "enqueue-uninit", &fakeScrobbler{typ: "fakefull"}, testClientOptions(), pub)

	c.Enqueue("deck", testPlay("Too Early", "Artist", testBase))
	if got := c.queue.depth(); got != 0 {
		t.Errorf("queue depth = %d, want 0 before initialization", got)
	}
	if got := pub.count(bus.KindScrobbleQueued); got != 0 {
		t.Errorf("scrobbleQueued events = %d, want 0", got)
	}
}

func TestEnqueueKeepsPlayDateOrder(t *testing.T) {
	pub := newFakeBus()
	c := newTestClient(t, "fakefull", "enqueue-order", &fakeScrobbler{typ: "fakefull"}, testClientOptions(), pub)
	initClient(t, c)

	c.Enqueue("deck", testPlay("Newer", "Artist", testBase.Add(time.Hour)))
	c.Enqueue("deck", testPlay("Older", "Artist", testBase))

	queued := c.Queue()
	if len(queued) != 2 {
		t.Fatalf("Queue() = %d items, want 2", len(queued))
	}
	if queued[0].Play.Data.Track != "Older" || queued[1].Play.Data.Track != "Newer" {
		t.Errorf("queue order = [%s, %s], want oldest first",
			queued[0].Play.Data.Track, queued[1].Play.Data.Track)
	}
	if got := pub.count(bus.KindScrobbleQueued); got != 2 {
		t.Errorf("scrobbleQueued events = %d, want 2", got)
	}
}

func TestEnqueueDropsGuttedPlays(t *testing.T) {
	opts := testClientOptions()
	opts.PlayTransform = map[string]interface{}{
		"preCompare": map[string]interface{}{"artists": "/.+/"},
	}
	pub := newFakeBus()
	c := newTestClient(t, "fakefull", "enqueue-gutted", &fakeScrobbler{typ: "fakefull"}, opts, pub)
	initClient(t, c)

	c.Enqueue("deck", testPlay("Stripped", "Artist", testBase))
	if got := c.queue.depth(); got != 0 {
		t.Errorf("queue depth = %d, want 0 for a play the transform gutted", got)
	}
}

func TestDrainDeliversOldestFirst(t *testing.T) {
	adapter := &fakeScrobbler{typ: "fakefull"}
	pub := newFakeBus()
	c := newTestClient(t, "fakefull", "drain-order", adapter, testClientOptions(), pub)
	initClient(t, c)

	c.Enqueue("deck", testPlay("Two", "Artist", testBase.Add(time.Hour)))
	c.Enqueue("deck", testPlay("One", "Artist", testBase))

	if err := c.drain(context.Background()); err != nil {
		t.Fatalf("drain() error = %v", err)
	}

	got := adapter.sentTracks()
	if len(got) != 2 || got[0] != "One" || got[1] != "Two" {
		t.Errorf("submit order = %v, want [One Two]", got)
	}
	if got := pub.count(bus.KindScrobble); got != 2 {
		t.Errorf("scrobble events = %d, want 2", got)
	}
	if got := c.queue.depth(); got != 0 {
		t.Errorf("queue depth after drain = %d, want 0", got)
	}
	if got := len(c.Scrobbled()); got != 2 {
		t.Errorf("Scrobbled() = %d plays, want 2", got)
	}
}

func TestDeliverSkipsOwnHistoryDuplicate(t *testing.T) {
	adapter := &fakeScrobbler{typ: "fakefull"}
	pub := newFakeBus()
	c := newTestClient(t, "fakefull", "dedup-ring", adapter, testClientOptions(), pub)
	initClient(t, c)

	play := testPlay("Repeat", "Artist", testBase)
	c.Enqueue("deck", play)
	if err := c.drain(context.Background()); err != nil {
		t.Fatalf("first drain() error = %v", err)
	}

	// The same play arrives again, say from a second poll overlap.
	c.Enqueue("deck", play)
	if err := c.drain(context.Background()); err != nil {
		t.Fatalf("second drain() error = %v", err)
	}

	if got := adapter.sentCount(); got != 1 {
		t.Errorf("submits = %d, want 1", got)
	}
	if got := pub.reasons(); len(got) != 1 || got[0] != "duplicate" {
		t.Errorf("dequeue reasons = %v, want [duplicate]", got)
	}
}

func TestDeliverSkipsUpstreamDuplicate(t *testing.T) {
	existing := testPlay("Known", "Artist", testBase)
	adapter := &fakeScrobbler{
		typ: "fakefull",
		recent: func(context.Context, int) ([]models.Play, error) {
			return []models.Play{existing}, nil
		},
	}
	pub := newFakeBus()
	c := newTestClient(t, "fakefull", "dedup-upstream", adapter, testClientOptions(), pub)
	initClient(t, c)

	// Slight clock skew against the upstream's record of the same listen.
	c.Enqueue("deck", testPlay("Known", "Artist", testBase.Add(2*time.Second)))
	if err := c.drain(context.Background()); err != nil {
		t.Fatalf("drain() error = %v", err)
	}

	if got := adapter.sentCount(); got != 0 {
		t.Errorf("submits = %d, want 0 for an upstream duplicate", got)
	}
	if got := pub.reasons(); len(got) != 1 || got[0] != "duplicate" {
		t.Errorf("dequeue reasons = %v, want [duplicate]", got)
	}

	st := c.Stats()
	if st.Closest == nil {
		t.Fatal("Stats().Closest = nil after an upstream comparison")
	}
	if st.Closest.Score < compare.DupScoreThreshold {
		t.Errorf("Closest.Score = %v, want >= %v", st.Closest.Score, compare.DupScoreThreshold)
	}
}

func TestDeliverTimeframe(t *testing.T) {
	t.Run("predating play discarded", func(t *testing.T) {
		history := []models.Play{
			testPlay("Oldest Visible", "Artist", testBase.Add(time.Hour)),
			testPlay("Newest Visible", "Artist", testBase.Add(2*time.Hour)),
		}
		adapter := &fakeScrobbler{
			typ:    "fakefull",
			recent: func(context.Context, int) ([]models.Play, error) { return history, nil },
		}
		pub := newFakeBus()
		c := newTestClient(t, "fakefull", "timeframe-old", adapter, testClientOptions(), pub)
		initClient(t, c)

		c.Enqueue("deck", testPlay("Ancient", "Artist", testBase))
		if err := c.drain(context.Background()); err != nil {
			t.Fatalf("drain() error = %v", err)
		}

		if got := adapter.sentCount(); got != 0 {
			t.Errorf("submits = %d, want 0 for a play older than upstream history", got)
		}
		if got := pub.reasons(); len(got) != 1 || got[0] != "timeframe" {
			t.Errorf("dequeue reasons = %v, want [timeframe]", got)
		}
	})

	t.Run("empty history accepts everything", func(t *testing.T) {
		adapter := &fakeScrobbler{
			typ:    "fakefull",
			recent: func(context.Context, int) ([]models.Play, error) { return nil, nil },
		}
		pub := newFakeBus()
		c := newTestClient(t, "fakefull", "timeframe-empty", adapter, testClientOptions(), pub)
		initClient(t, c)

		c.Enqueue("deck", testPlay("Anything", "Artist", testBase))
		if err := c.drain(context.Background()); err != nil {
			t.Fatalf("drain() error = %v", err)
		}
		if got := adapter.sentCount(); got != 1 {
			t.Errorf("submits = %d, want 1 against an empty history", got)
		}
	})
}

func TestDeliverSkipsChecksWhenDisabled(t *testing.T) {
	var refreshes atomic.Int32
	duplicate := testPlay("Known", "Artist", testBase)
	adapter := &fakeScrobbler{
		typ: "fakefull",
		recent: func(context.Context, int) ([]models.Play, error) {
			refreshes.Add(1)
			return []models.Play{duplicate}, nil
		},
	}
	opts := testClientOptions()
	opts.CheckExistingScrobbles = boolPtr(false)
	c := newTestClient(t, "fakefull", "checks-off", adapter, opts, newFakeBus())
	initClient(t, c)

	c.Enqueue("deck", duplicate)
	if err := c.drain(context.Background()); err != nil {
		t.Fatalf("drain() error = %v", err)
	}

	if got := adapter.sentCount(); got != 1 {
		t.Errorf("submits = %d, want 1 with checks disabled", got)
	}
	if got := refreshes.Load(); got != 0 {
		t.Errorf("history refreshes = %d, want 0 with checks disabled", got)
	}
}

func TestDeliverDropsOnPostCompareTransform(t *testing.T) {
	opts := testClientOptions()
	opts.PlayTransform = map[string]interface{}{
		"postCompare": map[string]interface{}{"artists": "/.+/"},
	}
	adapter := &fakeScrobbler{typ: "fakefull"}
	pub := newFakeBus()
	c := newTestClient(t, "fakefull", "transform-drop", adapter, opts, pub)
	initClient(t, c)

	c.Enqueue("deck", testPlay("Stripped", "Artist", testBase))
	if err := c.drain(context.Background()); err != nil {
		t.Fatalf("drain() error = %v", err)
	}

	if got := adapter.sentCount(); got != 0 {
		t.Errorf("submits = %d, want 0 for a play the transform gutted", got)
	}
	if got := pub.reasons(); len(got) != 1 || got[0] != "transform" {
		t.Errorf("dequeue reasons = %v, want [transform]", got)
	}
}

func TestDrainDeadLettersTransientFailures(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)
	adapter := &fakeScrobbler{
		typ: "fakefull",
		scrobble: func(_ context.Context, p models.Play) (models.Play, error) {
			if failing.Load() {
				return models.Play{}, &models.UpstreamError{Service: "fake", Message: "bad gateway"}
			}
			return p, nil
		},
	}
	pub := newFakeBus()
	c := newTestClient(t, "fakefull", "dlq-flow", adapter, testClientOptions(), pub)
	initClient(t, c)

	c.Enqueue("deck", testPlay("Flaky", "Artist", testBase))
	if err := c.drain(context.Background()); err != nil {
		t.Fatalf("drain() error = %v, want nil for a transient failure", err)
	}

	letters := c.DeadLetters()
	if len(letters) != 1 {
		t.Fatalf("DeadLetters() = %d entries, want 1", len(letters))
	}
	if !strings.Contains(letters[0].Error, "bad gateway") {
		t.Errorf("dead letter error = %q, want the upstream cause", letters[0].Error)
	}
	if letters[0].CreatedAt.IsZero() {
		t.Error("dead letter CreatedAt is zero")
	}
	if got := pub.count(bus.KindDeadLetter); got != 1 {
		t.Errorf("deadLetter events = %d, want 1", got)
	}
	if got := c.queue.depth(); got != 0 {
		t.Errorf("queue depth = %d, want 0 after dead-lettering", got)
	}

	// The upstream recovers and the heartbeat replays the entry.
	failing.Store(false)
	c.replayDeadLetters(context.Background())

	if got := len(c.DeadLetters()); got != 0 {
		t.Errorf("DeadLetters() after replay = %d, want 0", got)
	}
	if got := len(c.Scrobbled()); got != 1 {
		t.Errorf("Scrobbled() after replay = %d, want 1", got)
	}
}

func TestDrainStopsOnShowStopper(t *testing.T) {
	adapter := &fakeScrobbler{
		typ: "fakefull",
		scrobble: func(context.Context, models.Play) (models.Play, error) {
			return models.Play{}, &models.UpstreamError{Service: "fake", Message: "maintenance", ShowStopper: true}
		},
	}
	c := newTestClient(t, "fakefull", "stop-hard", adapter, testClientOptions(), newFakeBus())
	initClient(t, c)

	c.Enqueue("deck", testPlay("First", "Artist", testBase))
	c.Enqueue("deck", testPlay("Second", "Artist", testBase.Add(time.Hour)))

	err := c.drain(context.Background())
	if err == nil {
		t.Fatal("drain() = nil, want the show-stopper")
	}
	if got := adapter.sentCount(); got != 1 {
		t.Errorf("submits = %d, want 1 before the worker stops", got)
	}
	if got := c.queue.depth(); got != 2 {
		t.Errorf("queue depth = %d, want 2 with the failed item requeued", got)
	}
	if got := len(c.DeadLetters()); got != 0 {
		t.Errorf("DeadLetters() = %d, want 0 for a show-stopper", got)
	}
}

func TestDrainAuthFailureFlipsAuth(t *testing.T) {
	adapter := &fakeScrobbler{
		typ: "fakefull",
		scrobble: func(context.Context, models.Play) (models.Play, error) {
			return models.Play{}, &models.UpstreamError{
				Service: "fake", Message: "session revoked", ShowStopper: true, AuthFailure: true,
			}
		},
	}
	c := newTestClient(t, "fakefull", "auth-revoked", adapter, testClientOptions(), newFakeBus())
	initClient(t, c)

	c.Enqueue("deck", testPlay("Rejected", "Artist", testBase))
	if err := c.drain(context.Background()); err == nil {
		t.Fatal("drain() = nil, want the credential failure")
	}
	if c.Status().Authed {
		t.Error("client still authed after upstream rejected credentials")
	}
	if got := c.queue.depth(); got != 1 {
		t.Errorf("queue depth = %d, want 1 with the item requeued", got)
	}
}

func TestReplayRespectsRetryBudget(t *testing.T) {
	adapter := &fakeScrobbler{
		typ: "fakefull",
		scrobble: func(context.Context, models.Play) (models.Play, error) {
			return models.Play{}, &models.UpstreamError{Service: "fake", Message: "still broken"}
		},
	}
	opts := testClientOptions()
	opts.DeadLetterRetries = 2
	c := newTestClient(t, "fakefull", "dlq-budget", adapter, opts, newFakeBus())
	initClient(t, c)

	c.Enqueue("deck", testPlay("Cursed", "Artist", testBase))
	if err := c.drain(context.Background()); err != nil {
		t.Fatalf("drain() error = %v", err)
	}

	// Two replay passes spend the budget; the third must not submit.
	c.replayDeadLetters(context.Background())
	c.replayDeadLetters(context.Background())
	c.replayDeadLetters(context.Background())

	if got := adapter.sentCount(); got != 3 {
		t.Errorf("submits = %d, want 1 original + 2 replays", got)
	}
	letters := c.DeadLetters()
	if len(letters) != 1 {
		t.Fatalf("DeadLetters() = %d, want the exhausted entry kept", len(letters))
	}
	if letters[0].Retries != 2 {
		t.Errorf("Retries = %d, want 2", letters[0].Retries)
	}
	if letters[0].LastRetry.IsZero() {
		t.Error("LastRetry is zero after replays")
	}
}

func TestReplayPassEndsOnShowStopper(t *testing.T) {
	adapter := &fakeScrobbler{
		typ: "fakefull",
		scrobble: func(context.Context, models.Play) (models.Play, error) {
			return models.Play{}, &models.UpstreamError{Service: "fake", Message: "maintenance", ShowStopper: true}
		},
	}
	c := newTestClient(t, "fakefull", "dlq-halt", adapter, testClientOptions(), newFakeBus())
	initClient(t, c)

	c.letters.add(letterAt("First Letter", testBase))
	c.letters.add(letterAt("Second Letter", testBase.Add(time.Minute)))

	c.replayDeadLetters(context.Background())

	if got := adapter.sentCount(); got != 1 {
		t.Errorf("submits = %d, want 1 before the pass ends", got)
	}
	letters := c.DeadLetters()
	if len(letters) != 2 {
		t.Fatalf("DeadLetters() = %d, want both kept", len(letters))
	}
	if letters[0].Retries != 1 || letters[1].Retries != 0 {
		t.Errorf("retries = [%d, %d], want [1, 0]", letters[0].Retries, letters[1].Retries)
	}
}

func TestRetryDeadLetterIgnoresBudget(t *testing.T) {
	adapter := &fakeScrobbler{typ: "fakefull"}
	c := newTestClient(t, "fakefull", "dlq-manual", adapter, testClientOptions(), newFakeBus())
	initClient(t, c)

	d := letterAt("Operator Pick", testBase)
	d.Retries = 99
	c.letters.add(d)

	if err := c.RetryDeadLetter(context.Background(), d.ID); err != nil {
		t.Fatalf("RetryDeadLetter() error = %v", err)
	}
	if got := adapter.sentCount(); got != 1 {
		t.Errorf("submits = %d, want 1", got)
	}
	if got := len(c.DeadLetters()); got != 0 {
		t.Errorf("DeadLetters() = %d, want 0 after a successful retry", got)
	}

	if err := c.RetryDeadLetter(context.Background(), "missing"); !errors.Is(err, ErrNoDeadLetter) {
		t.Errorf("RetryDeadLetter(missing) error = %v, want ErrNoDeadLetter", err)
	}
}

func TestRemoveDeadLetter(t *testing.T) {
	pub := newFakeBus()
	c := newTestClient(t, "fakefull", "dlq-remove", &fakeScrobbler{typ: "fakefull"}, testClientOptions(), pub)
	initClient(t, c)

	d := letterAt("Unwanted", testBase)
	c.letters.add(d)

	if err := c.RemoveDeadLetter(d.ID); err != nil {
		t.Fatalf("RemoveDeadLetter() error = %v", err)
	}
	if got := len(c.DeadLetters()); got != 0 {
		t.Errorf("DeadLetters() = %d, want 0", got)
	}
	if got := pub.reasons(); len(got) != 1 || got[0] != "removed" {
		t.Errorf("dequeue reasons = %v, want [removed]", got)
	}

	if err := c.RemoveDeadLetter("missing"); !errors.Is(err, ErrNoDeadLetter) {
		t.Errorf("RemoveDeadLetter(missing) error = %v, want ErrNoDeadLetter", err)
	}
}

func TestForwardNowPlaying(t *testing.T) {
	t.Run("forwards when enabled", func(t *testing.T) {
		var notices atomic.Int32
		adapter := &fakeScrobbler{
			typ: "fakefull",
			now: func(context.Context, models.Play) error { notices.Add(1); return nil },
		}
		c := newTestClient(t, "fakefull", "now-on", adapter, testClientOptions(), newFakeBus())
		initClient(t, c)

		c.forwardNowPlaying(context.Background(), testPlay("Live", "Artist", testBase))
		if got := notices.Load(); got != 1 {
			t.Errorf("now-playing notices = %d, want 1", got)
		}
	})

	t.Run("respects the option", func(t *testing.T) {
		var notices atomic.Int32
		adapter := &fakeScrobbler{
			typ: "fakefull",
			now: func(context.Context, models.Play) error { notices.Add(1); return nil },
		}
		opts := testClientOptions()
		opts.NowPlaying = boolPtr(false)
		c := newTestClient(t, "fakefull", "now-off", adapter, opts, newFakeBus())
		initClient(t, c)

		c.forwardNowPlaying(context.Background(), testPlay("Live", "Artist", testBase))
		if got := notices.Load(); got != 0 {
			t.Errorf("now-playing notices = %d, want 0 when disabled", got)
		}
	})

	t.Run("skips when limiter busy", func(t *testing.T) {
		var notices atomic.Int32
		adapter := &fakeScrobbler{
			typ: "fakefull",
			now: func(context.Context, models.Play) error { notices.Add(1); return nil },
		}
		opts := testClientOptions()
		opts.ScrobbleDelay = time.Hour
		c := newTestClient(t, "fakefull", "now-busy", adapter, opts, newFakeBus())
		initClient(t, c)

		c.forwardNowPlaying(context.Background(), testPlay("Live", "Artist", testBase))
		c.forwardNowPlaying(context.Background(), testPlay("Live Again", "Artist", testBase))
		if got := notices.Load(); got != 1 {
			t.Errorf("now-playing notices = %d, want 1 with the limiter busy", got)
		}
	})
}

func TestServeFatalOnInvalidTransform(t *testing.T) {
	opts := testClientOptions()
	opts.PlayTransform = map[string]interface{}{"bogus": true}
	c := newTestClient(t, "fakefull", "serve-badcfg", &fakeScrobbler{typ: "fakefull"}, opts, newFakeBus())

	err := c.Serve(context.Background())
	if err == nil {
		t.Fatal("Serve() = nil for an invalid transform config")
	}
	if !errors.Is(err, suture.ErrDoNotRestart) {
		t.Errorf("Serve() error = %v, want ErrDoNotRestart for a config error", err)
	}
}

func TestServeWaitsForAuthCallback(t *testing.T) {
	adapter := &fakeAuthScrobbler{
		fakeMinimal: fakeMinimal{typ: "fakeauth"},
		authURL:     "https://auth.example/approve?token=x",
	}
	pub := newFakeBus()
	c := newTestClient(t, "fakeauth", "serve-auth", adapter, testClientOptions(), pub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- c.Serve(ctx) }()

	// Initialization parks the client, exposing the authorization URL.
	waitFor(t, "idle unauthenticated client", func() bool {
		st := c.Status()
		return st.State == lifecycle.StateIdle && !st.Authed
	})
	if got := c.Status().AuthURL; got != adapter.authURL {
		t.Errorf("AuthURL = %q, want %q", got, adapter.authURL)
	}

	if err := c.HandleAuthCallback(context.Background(), url.Values{"token": {"ok"}}); err != nil {
		t.Fatalf("HandleAuthCallback() error = %v", err)
	}

	// The callback unblocks Serve and queued plays start flowing.
	pub.emit(bus.KindNewPlay, "deck", testPlay("After Auth", "Artist", testBase))
	waitFor(t, "first scrobble after auth", func() bool { return len(c.Scrobbled()) == 1 })

	cancel()
	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}

func TestServeSkipsUnacceptedSources(t *testing.T) {
	adapter := &fakeScrobbler{typ: "fakefull"}
	pub := newFakeBus()
	c := newTestClient(t, "fakefull", "serve-routing", adapter, testClientOptions(), pub)

	// Both events are buffered before the consumer starts, so order is
	// fixed: the foreign play is skipped, then the accepted one lands.
	pub.emit(bus.KindNewPlay, "other", testPlay("Foreign", "Artist", testBase))
	pub.emit(bus.KindNewPlay, "deck", testPlay("Accepted", "Artist", testBase.Add(time.Minute)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- c.Serve(ctx) }()

	waitFor(t, "the accepted play", func() bool { return len(c.Scrobbled()) == 1 })
	if got := adapter.sentTracks(); len(got) != 1 || got[0] != "Accepted" {
		t.Errorf("submits = %v, want only the accepted source's play", got)
	}

	cancel()
	<-errc
}

func TestServeParksAfterRestartBudget(t *testing.T) {
	adapter := &fakeMinimal{
		typ: "fakebare",
		scrobble: func(context.Context, models.Play) (models.Play, error) {
			return models.Play{}, &models.UpstreamError{Service: "fake", Message: "down", ShowStopper: true}
		},
	}
	opts := testClientOptions()
	opts.MaxPollRetries = 1
	pub := newFakeBus()
	c := newTestClient(t, "fakebare", "serve-park", adapter, opts, pub)

	c.queue.add(models.NewQueuedScrobble("deck", testPlay("Stuck", "Artist", testBase)))

	err := c.Serve(context.Background())
	if err == nil || errors.Is(err, suture.ErrDoNotRestart) {
		t.Fatalf("first Serve() error = %v, want a restartable failure", err)
	}

	// The item was requeued, so the restarted worker fails again and the
	// budget runs out.
	err = c.Serve(context.Background())
	if !errors.Is(err, suture.ErrDoNotRestart) {
		t.Fatalf("second Serve() error = %v, want ErrDoNotRestart", err)
	}
	if got := pub.stoppedCount(); got != 1 {
		t.Errorf("STOPPED status events = %d, want 1", got)
	}
}

func TestServeRestoresDeadLetters(t *testing.T) {
	store := openTestLetterStore(t)
	seed := letterAt("Parked Play", testBase)
	if err := store.Put("serve-restore", seed); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	adapter := &fakeScrobbler{typ: "fakefull"}
	clientAdaptersMu.Lock()
	clientAdapters["serve-restore"] = adapter
	clientAdaptersMu.Unlock()
	t.Cleanup(func() {
		clientAdaptersMu.Lock()
		delete(clientAdapters, "serve-restore")
		clientAdaptersMu.Unlock()
	})

	c, err := New(config.ClientConfig{Name: "serve-restore", Type: "fakefull", Options: testClientOptions()}, newFakeBus(), Deps{
		Clock:    clock.NewFake(testBase),
		Accepted: map[string]bool{"deck": true},
		Letters:  store,
		// Keep the heartbeat out of the way so the restored entry stays
		// visible.
		RetryInterval: time.Hour,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- c.Serve(ctx) }()

	waitFor(t, "restored dead letters", func() bool { return len(c.DeadLetters()) == 1 })
	letters := c.DeadLetters()
	if letters[0].ID != seed.ID || letters[0].Play.Data.Track != "Parked Play" {
		t.Errorf("restored entry = %s (%s), want the seeded one", letters[0].Play.Data.Track, letters[0].ID)
	}

	cancel()
	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}

func TestStatsSnapshot(t *testing.T) {
	adapter := &fakeScrobbler{typ: "fakefull"}
	c := newTestClient(t, "fakefull", "stats-view", adapter, testClientOptions(), newFakeBus())
	initClient(t, c)

	c.Enqueue("deck", testPlay("Counted", "Artist", testBase))
	if err := c.drain(context.Background()); err != nil {
		t.Fatalf("drain() error = %v", err)
	}

	st := c.Stats()
	if st.Type != "fakefull" {
		t.Errorf("Stats().Type = %q, want fakefull", st.Type)
	}
	if st.Name != "stats-view" {
		t.Errorf("Stats().Name = %q, want stats-view", st.Name)
	}
	if st.Scrobbled != 1 {
		t.Errorf("Stats().Scrobbled = %d, want 1", st.Scrobbled)
	}
	if st.QueueDepth != 0 || st.DeadLetters != 0 {
		t.Errorf("Stats() queue = %d letters = %d, want 0/0", st.QueueDepth, st.DeadLetters)
	}
	if !st.NowPlaying {
		t.Error("Stats().NowPlaying = false for a now-playing capable client")
	}
	if st.Closest != nil {
		t.Errorf("Stats().Closest = %+v, want nil before any upstream comparison", st.Closest)
	}
}

func TestAcceptsRouting(t *testing.T) {
	c := newTestClient(t, "fakefull", "accepts-view", &fakeScrobbler{typ: "fakefull"}, testClientOptions(), newFakeBus())
	if !c.Accepts("deck") {
		t.Error("Accepts(deck) = false for a routed source")
	}
	if c.Accepts("other") {
		t.Error("Accepts(other) = true for an unrouted source")
	}
}
