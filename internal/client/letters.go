// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

package client

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/audiographus/internal/deadletter"
	"github.com/tomtom215/audiographus/internal/logging"
	"github.com/tomtom215/audiographus/internal/models"
)

// letterbox is the in-memory authority for one client's dead letters.
// Every mutation is written through to the shared store when one is
// configured, so entries survive restarts; store failures are logged
// and never block the worker.
type letterbox struct {
	client string
	store  *deadletter.Store

	mu      sync.Mutex
	entries map[string]models.DeadLetterScrobble
}

func newLetterbox(client string, store *deadletter.Store) *letterbox {
	return &letterbox{
		client:  client,
		store:   store,
		entries: make(map[string]models.DeadLetterScrobble),
	}
}

// load pulls persisted entries into memory. Called once per process
// before the heartbeat starts.
func (l *letterbox) load() {
	if l.store == nil {
		return
	}
	persisted, err := l.store.List(l.client)
	if err != nil {
		logging.Warn().Err(err).Str("client", l.client).Msg("Failed to load persisted dead letters")
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, d := range persisted {
		l.entries[d.ID] = d
	}
	if len(persisted) > 0 {
		logging.Info().Str("client", l.client).Int("entries", len(persisted)).Msg("Dead letters restored")
	}
}

// add stores a new entry, replacing any previous one with the same ID.
func (l *letterbox) add(d models.DeadLetterScrobble) {
	l.mu.Lock()
	l.entries[d.ID] = d.Clone()
	l.mu.Unlock()
	l.persist(d)
}

// update rewrites an entry after a failed replay.
func (l *letterbox) update(d models.DeadLetterScrobble) {
	l.add(d)
}

// remove drops an entry. Reports whether it existed.
func (l *letterbox) remove(id string) bool {
	l.mu.Lock()
	_, ok := l.entries[id]
	delete(l.entries, id)
	l.mu.Unlock()
	if l.store != nil {
		if err := l.store.Delete(l.client, id); err != nil && !errors.Is(err, deadletter.ErrNotFound) {
			logging.Warn().Err(err).Str("client", l.client).Str("id", id).Msg("Failed to delete persisted dead letter")
		}
	}
	return ok
}

// get returns a clone of one entry.
func (l *letterbox) get(id string) (models.DeadLetterScrobble, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	d, ok := l.entries[id]
	if !ok {
		return models.DeadLetterScrobble{}, false
	}
	return d.Clone(), true
}

// list returns clones of all entries, oldest play first.
func (l *letterbox) list() []models.DeadLetterScrobble {
	l.mu.Lock()
	out := make([]models.DeadLetterScrobble, 0, len(l.entries))
	for _, d := range l.entries {
		out = append(out, d.Clone())
	}
	l.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Play.Data.PlayDate, out[j].Play.Data.PlayDate
		if a.Equal(b) {
			return out[i].ID < out[j].ID
		}
		return a.Before(b)
	})
	return out
}

// due returns the entries still eligible for automatic replay, oldest
// play first.
func (l *letterbox) due(maxRetries int) []models.DeadLetterScrobble {
	all := l.list()
	out := all[:0]
	for _, d := range all {
		if d.Retries < maxRetries {
			out = append(out, d)
		}
	}
	return out
}

// size returns the number of entries.
func (l *letterbox) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// oldestCreated returns the CreatedAt of the oldest entry.
func (l *letterbox) oldestCreated() (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var oldest time.Time
	for _, d := range l.entries {
		if oldest.IsZero() || d.CreatedAt.Before(oldest) {
			oldest = d.CreatedAt
		}
	}
	return oldest, !oldest.IsZero()
}

func (l *letterbox) persist(d models.DeadLetterScrobble) {
	if l.store == nil {
		return
	}
	if err := l.store.Put(l.client, d); err != nil {
		logging.Warn().Err(err).Str("client", l.client).Str("id", d.ID).Msg("Failed to persist dead letter")
	}
}
