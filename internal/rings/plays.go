// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

package rings

import "github.com/tomtom215/audiographus/internal/models"

const (
	// DefaultPlayCapacity is the per-source discovered-plays window size.
	DefaultPlayCapacity = 100
	// MinPlayCapacity and MaxPlayCapacity bound configurable ring sizes.
	MinPlayCapacity = 50
	MaxPlayCapacity = 200

	// DefaultScrobbledCapacity bounds the per-client record of its own
	// completed scrobbles.
	DefaultScrobbledCapacity = 40
)

// NewPlayRing creates the per-source window of discovered plays. Zero
// selects the default capacity; out-of-range values are clamped.
func NewPlayRing(capacity int) *Ring[models.Play] {
	switch {
	case capacity == 0:
		capacity = DefaultPlayCapacity
	case capacity < MinPlayCapacity:
		capacity = MinPlayCapacity
	case capacity > MaxPlayCapacity:
		capacity = MaxPlayCapacity
	}
	return New[models.Play](capacity)
}

// NewScrobbledRing creates the per-client window of completed scrobbles.
func NewScrobbledRing(capacity int) *Ring[models.ScrobbledPlay] {
	if capacity <= 0 {
		capacity = DefaultScrobbledCapacity
	}
	return New[models.ScrobbledPlay](capacity)
}
