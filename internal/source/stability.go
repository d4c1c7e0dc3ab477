// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

package source

// StabilityTracker gates discovery for sources whose polled history
// listing can be rewritten upstream. Some platforms group, prune or
// backfill their history; emitting plays from a listing that is still
// settling would scrobble entries that disappear a tick later.
//
// Each poll's listing (newest first) is diffed against the previous
// one. A consistent step is new entries prepended to the front with
// the old entries still behind them in order; anything else (entries
// reordered, removed from the head, or a wholesale rewrite) flips the
// listing to not-OK. Emission is allowed again only after the listing
// has stepped consistently for ticks+1 polls in a row.
type StabilityTracker struct {
	ticks  int
	prev   []string
	streak int
}

// NewStabilityTracker creates a tracker requiring ticks+1 consecutive
// consistent polls before emission. Zero means emit after the first
// consistent poll.
func NewStabilityTracker(ticks int) *StabilityTracker {
	if ticks < 0 {
		ticks = 0
	}
	return &StabilityTracker{ticks: ticks}
}

// Observe records a freshly fetched listing, identified by entry keys
// in fetch order, and reports whether its plays may be emitted.
func (t *StabilityTracker) Observe(keys []string) bool {
	if t.prev == nil {
		t.prev = append([]string(nil), keys...)
		t.streak = 1
		return t.streak >= t.ticks+1
	}

	if consistentPrepend(t.prev, keys) {
		t.streak++
	} else {
		t.streak = 0
	}
	t.prev = append(t.prev[:0:0], keys...)
	return t.streak >= t.ticks+1
}

// OK reports whether the last observed step was consistent.
func (t *StabilityTracker) OK() bool {
	return t.streak > 0
}

// consistentPrepend reports whether next is prev with zero or more new
// entries added at the front. prev's entries must appear in next in
// their original order, starting from prev's head; next may run past
// prev's tail (a longer fetch window) and prev may run past next's
// (the window slid). An empty prev accepts anything.
func consistentPrepend(prev, next []string) bool {
	if len(prev) == 0 {
		return true
	}

	inPrev := make(map[string]int, len(prev))
	for i, k := range prev {
		if _, dup := inPrev[k]; !dup {
			inPrev[k] = i
		}
	}

	// Everything before the first shared entry must be genuinely new;
	// a shared entry that is not prev's head means the head was
	// removed or shuffled away.
	start := -1
	for i, k := range next {
		if j, ok := inPrev[k]; ok {
			if j != 0 {
				return false
			}
			start = i
			break
		}
	}
	if start == -1 {
		// No overlap at all: the whole window was replaced. That is
		// indistinguishable from a rewrite, so hold a tick.
		return false
	}

	for i := start; i < len(next); i++ {
		j := i - start
		if j >= len(prev) {
			break
		}
		if next[i] != prev[j] {
			return false
		}
	}
	return true
}
