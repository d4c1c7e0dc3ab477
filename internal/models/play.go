// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

package models

import (
	"fmt"
	"strings"
	"time"
)

// PlayData holds the listen itself: what was played and when.
type PlayData struct {
	// Track is the track title. Required on any Play that leaves a source.
	Track string `json:"track"`

	// Artists is the ordered artist list; the first entry is the primary
	// artist. Required (length >= 1) on any Play that leaves a source.
	Artists []string `json:"artists,omitempty"`

	// AlbumArtists is only retained when it differs from Artists.
	AlbumArtists []string `json:"albumArtists,omitempty"`

	Album string `json:"album,omitempty"`

	// Duration is the track length in seconds. Zero means unknown.
	Duration int `json:"duration,omitempty"`

	// PlayDate is the instant the listen was complete or observed,
	// carrying the source's timezone.
	PlayDate time.Time `json:"playDate"`

	// ListenedFor is the number of seconds actually listened,
	// at most Duration. Zero means unknown.
	ListenedFor int `json:"listenedFor,omitempty"`
}

// PlayMeta carries context about where a Play came from.
type PlayMeta struct {
	// Source is the symbolic name of the originating adapter.
	Source string `json:"source,omitempty"`

	// TrackID is a platform-specific opaque identifier.
	TrackID string `json:"trackId,omitempty"`

	DeviceID string `json:"deviceId,omitempty"`
	User     string `json:"user,omitempty"`

	// WebURL links to the track on the originating platform.
	WebURL string `json:"webUrl,omitempty"`

	// NewFromSource is true when the source observed this play in real
	// time rather than reading it from a backlog.
	NewFromSource bool `json:"newFromSource,omitempty"`
}

// Play is a single listen event.
type Play struct {
	Data PlayData `json:"data"`
	Meta PlayMeta `json:"meta"`
}

// Clone returns a deep copy of the Play. Slices are copied so that the
// clone shares no memory with the original.
func (p Play) Clone() Play {
	c := p
	if p.Data.Artists != nil {
		c.Data.Artists = append([]string(nil), p.Data.Artists...)
	}
	if p.Data.AlbumArtists != nil {
		c.Data.AlbumArtists = append([]string(nil), p.Data.AlbumArtists...)
	}
	return c
}

// PrimaryArtist returns the first artist, or "" when the list is empty.
func (p Play) PrimaryArtist() string {
	if len(p.Data.Artists) == 0 {
		return ""
	}
	return p.Data.Artists[0]
}

// Validate reports whether the Play is fit to leave a source.
func (p Play) Validate() error {
	if strings.TrimSpace(p.Data.Track) == "" {
		return &ValidationError{Field: "data.track", Message: "track is required"}
	}
	if len(p.Data.Artists) == 0 {
		return &ValidationError{Field: "data.artists", Message: "at least one artist is required"}
	}
	if p.Data.PlayDate.IsZero() {
		return &ValidationError{Field: "data.playDate", Message: "playDate is required"}
	}
	if p.Data.ListenedFor > 0 && p.Data.Duration > 0 && p.Data.ListenedFor > p.Data.Duration {
		return &ValidationError{Field: "data.listenedFor", Message: "listenedFor exceeds duration"}
	}
	return nil
}

// String renders the Play for logs: "Artist - Track @ 2026-01-02T15:04:05Z".
func (p Play) String() string {
	artist := p.PrimaryArtist()
	if artist == "" {
		artist = "?"
	}
	return fmt.Sprintf("%s - %s @ %s", artist, p.Data.Track, p.Data.PlayDate.Format(time.RFC3339))
}

// ValidationError reports a malformed Play or config entry.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}
