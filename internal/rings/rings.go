// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

// Package rings provides the bounded play windows the pipeline deduplicates
// against: per-source rings of discovered plays and per-client rings of
// completed scrobbles. Entries are cloned on the way in and on the way out,
// so a ring never shares memory with its callers.
package rings

import "sync"

// Cloner is satisfied by models that can deep-copy themselves.
type Cloner[T any] interface {
	Clone() T
}

// Ring is a bounded FIFO window over a circular buffer. When full, adding
// evicts the oldest entry.
//
// Complexity:
//   - Add: O(1)
//   - Items: O(n) with one clone per entry
type Ring[T Cloner[T]] struct {
	mu   sync.RWMutex
	buf  []T
	head int // index of the oldest entry
	size int
}

// New creates a ring holding at most capacity entries.
func New[T Cloner[T]](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Add appends a clone of v, evicting the oldest entry when full.
func (r *Ring[T]) Add(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size < len(r.buf) {
		r.buf[(r.head+r.size)%len(r.buf)] = v.Clone()
		r.size++
		return
	}
	r.buf[r.head] = v.Clone()
	r.head = (r.head + 1) % len(r.buf)
}

// Items returns clones of all entries, oldest first.
func (r *Ring[T]) Items() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]T, 0, r.size)
	for i := 0; i < r.size; i++ {
		out = append(out, r.buf[(r.head+i)%len(r.buf)].Clone())
	}
	return out
}

// Newest returns a clone of the most recently added entry.
func (r *Ring[T]) Newest() (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var zero T
	if r.size == 0 {
		return zero, false
	}
	return r.buf[(r.head+r.size-1)%len(r.buf)].Clone(), true
}

// Len returns the number of entries currently held.
func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// Clear drops all entries.
func (r *Ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.head = 0
	r.size = 0
}
