// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

package source

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/audiographus/internal/clock"
	"github.com/tomtom215/audiographus/internal/models"
)

const (
	// scrobbleCompletion is the fraction of a track that must be
	// heard before a session counts as a listen.
	scrobbleCompletion = 0.5

	// scrobbleMinimum caps the requirement for long tracks: four
	// minutes of any track is always enough.
	scrobbleMinimum = 4 * time.Minute
)

// playerKey identifies one playback session per device and user.
type playerKey struct {
	deviceID string
	userID   string
}

// playerState tracks what one player is doing between reports.
type playerState struct {
	play     models.Play
	track    string
	paused   bool
	progress time.Duration
	lastSeen time.Time
	counted  bool
}

// PlayerUpdate is the outcome of feeding one report into the tracker.
type PlayerUpdate struct {
	// Discovered is set when this report pushed the session across
	// the listen threshold.
	Discovered *models.Play

	// NewTrack is true when this is the first report of this track on
	// this player, which is when a now-playing notice is worth
	// sending.
	NewTrack bool
}

// PlayerTracker folds stateful playback reports (playing, paused,
// stopped) into listens. Sessions are keyed by (deviceId, userId); a
// session that reaches half the track or four minutes of progress
// counts once. Players that stop reporting are evicted after the
// configured expiry.
type PlayerTracker struct {
	mu      sync.Mutex
	players map[playerKey]*playerState
	expiry  time.Duration
	clk     clock.Clock
}

// NewPlayerTracker creates a tracker with the given stale-player
// expiry.
func NewPlayerTracker(expiry time.Duration, clk clock.Clock) *PlayerTracker {
	if clk == nil {
		clk = clock.Real{}
	}
	if expiry <= 0 {
		expiry = 10 * time.Minute
	}
	return &PlayerTracker{
		players: make(map[playerKey]*playerState),
		expiry:  expiry,
		clk:     clk,
	}
}

// Update folds one report into the tracker.
func (t *PlayerTracker) Update(r Report) PlayerUpdate {
	key := keyFor(r.Play)
	now := t.clk.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.players[key]
	track := trackIdentity(r.Play)
	isNew := !ok || state.track != track
	if isNew {
		state = &playerState{play: r.Play, track: track}
		t.players[key] = state
	}

	state.lastSeen = now
	state.paused = r.Kind == ReportPaused
	if r.Position > 0 {
		state.progress = r.Position
	}
	// Later reports can fill in fields the first one lacked.
	if state.play.Data.Duration == 0 && r.Play.Data.Duration > 0 {
		state.play.Data.Duration = r.Play.Data.Duration
	}

	up := PlayerUpdate{NewTrack: isNew}

	if !state.counted && crossedThreshold(state.progress, state.play.Data.Duration) {
		state.counted = true
		play := state.play.Clone()
		play.Data.ListenedFor = int(state.progress / time.Second)
		if play.Data.PlayDate.IsZero() {
			play.Data.PlayDate = now.Add(-state.progress)
		}
		up.Discovered = &play
	}

	if r.Kind == ReportStopped {
		delete(t.players, key)
	}
	return up
}

// crossedThreshold applies the listen rule: half the track when its
// length is known, or four minutes of progress either way.
func crossedThreshold(progress time.Duration, durationSec int) bool {
	if progress <= 0 {
		return false
	}
	if progress >= scrobbleMinimum {
		return true
	}
	if durationSec <= 0 {
		return false
	}
	need := time.Duration(float64(durationSec)*scrobbleCompletion) * time.Second
	return progress >= need
}

// EvictStale drops players that have not reported within the expiry
// and returns how many were removed.
func (t *PlayerTracker) EvictStale() int {
	cutoff := t.clk.Now().Add(-t.expiry)

	t.mu.Lock()
	defer t.mu.Unlock()

	evicted := 0
	for key, state := range t.players {
		if state.lastSeen.Before(cutoff) {
			delete(t.players, key)
			evicted++
		}
	}
	return evicted
}

// Active returns the number of tracked players.
func (t *PlayerTracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.players)
}

// PlayerStatus is the dashboard view of one tracked player.
type PlayerStatus struct {
	Play     models.Play `json:"play"`
	Progress int         `json:"progress"`
	Paused   bool        `json:"paused,omitempty"`
	LastSeen time.Time   `json:"lastSeen"`
}

// Snapshot returns the tracked players, most recently seen first.
func (t *PlayerTracker) Snapshot() []PlayerStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]PlayerStatus, 0, len(t.players))
	for _, state := range t.players {
		out = append(out, PlayerStatus{
			Play:     state.play.Clone(),
			Progress: int(state.progress / time.Second),
			Paused:   state.paused,
			LastSeen: state.lastSeen,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeen.After(out[j].LastSeen) })
	return out
}

func keyFor(p models.Play) playerKey {
	return playerKey{deviceID: p.Meta.DeviceID, userID: p.Meta.User}
}

// trackIdentity tells one track from the next on the same player.
func trackIdentity(p models.Play) string {
	if p.Meta.TrackID != "" {
		return p.Meta.TrackID
	}
	return strings.ToLower(p.Data.Track) + "|" + strings.ToLower(p.PrimaryArtist())
}
