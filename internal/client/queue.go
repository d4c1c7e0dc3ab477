// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

package client

import (
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/audiographus/internal/models"
)

// queue holds scrobbles waiting for delivery, ordered by play date so
// the oldest listen is always submitted first. Sources deliver plays
// in whatever order their webhooks and polls produce them; the sort
// here is what keeps the upstream timeline monotonic.
type queue struct {
	mu    sync.Mutex
	items []models.QueuedScrobble
}

// add inserts keeping play-date order. Equal dates keep arrival order.
// Returns the new depth.
func (q *queue) add(item models.QueuedScrobble) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	at := sort.Search(len(q.items), func(i int) bool {
		return q.items[i].Play.Data.PlayDate.After(item.Play.Data.PlayDate)
	})
	q.items = append(q.items, models.QueuedScrobble{})
	copy(q.items[at+1:], q.items[at:])
	q.items[at] = item
	return len(q.items)
}

// shift removes and returns the oldest item.
func (q *queue) shift() (models.QueuedScrobble, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return models.QueuedScrobble{}, false
	}
	item := q.items[0]
	copy(q.items, q.items[1:])
	q.items[len(q.items)-1] = models.QueuedScrobble{}
	q.items = q.items[:len(q.items)-1]
	return item, true
}

// requeueFront puts a failed item back at the head so a restarted
// worker picks up exactly where it stopped.
func (q *queue) requeueFront(item models.QueuedScrobble) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, models.QueuedScrobble{})
	copy(q.items[1:], q.items)
	q.items[0] = item
}

// depth returns the number of queued items.
func (q *queue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// snapshot returns clones of the queued items, oldest first.
func (q *queue) snapshot() []models.QueuedScrobble {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.QueuedScrobble, len(q.items))
	for i, item := range q.items {
		out[i] = item.Clone()
	}
	return out
}

// oldestPlayDate returns the play date at the head of the queue.
func (q *queue) oldestPlayDate() (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return time.Time{}, false
	}
	return q.items[0].Play.Data.PlayDate, true
}
