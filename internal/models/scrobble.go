// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

package models

import (
	"time"

	"github.com/google/uuid"
)

// QueuedScrobble is a Play on its way to one client. It is owned by
// exactly one client worker from enqueue until it is either scrobbled
// (dropped from the queue) or moved to the dead-letter list.
type QueuedScrobble struct {
	// ID is a fresh opaque identifier assigned at enqueue time.
	ID string `json:"id"`

	// Source is the name of the source that discovered the Play.
	Source string `json:"source"`

	Play Play `json:"play"`
}

// NewQueuedScrobble wraps a Play for a client queue. The Play is cloned
// so the queue never aliases the caller's copy.
func NewQueuedScrobble(source string, play Play) QueuedScrobble {
	return QueuedScrobble{
		ID:     uuid.New().String(),
		Source: source,
		Play:   play.Clone(),
	}
}

// Clone returns a deep copy of the QueuedScrobble.
func (q QueuedScrobble) Clone() QueuedScrobble {
	c := q
	c.Play = q.Play.Clone()
	return c
}

// DeadLetterScrobble is a QueuedScrobble that failed non-fatally and is
// waiting to be retried.
type DeadLetterScrobble struct {
	QueuedScrobble

	// Retries counts replay attempts made so far.
	Retries int `json:"retries"`

	// Error is the message of the most recent failure.
	Error string `json:"error"`

	// CreatedAt is when the scrobble first failed and entered the list.
	CreatedAt time.Time `json:"createdAt"`

	// LastRetry is when the most recent replay was attempted.
	LastRetry time.Time `json:"lastRetry,omitempty"`
}

// Clone returns a deep copy of the DeadLetterScrobble.
func (d DeadLetterScrobble) Clone() DeadLetterScrobble {
	c := d
	c.QueuedScrobble = d.QueuedScrobble.Clone()
	return c
}

// ScrobbledPlay pairs a Play with whatever the upstream service returned
// for it. Kept in a bounded per-client ring as the authoritative local
// record of what this client already scrobbled.
type ScrobbledPlay struct {
	// Play is the Play as it was scrobbled (post-transform).
	Play Play `json:"play"`

	// Scrobble is the upstream response normalized into a Play.
	Scrobble Play `json:"scrobble"`

	At time.Time `json:"at"`
}

// Clone returns a deep copy of the ScrobbledPlay.
func (s ScrobbledPlay) Clone() ScrobbledPlay {
	c := s
	c.Play = s.Play.Clone()
	c.Scrobble = s.Scrobble.Clone()
	return c
}
