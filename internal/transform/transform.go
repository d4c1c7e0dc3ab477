// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

package transform

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tomtom215/audiographus/internal/logging"
	"github.com/tomtom215/audiographus/internal/models"
)

// Stage identifies one of the hook points in a play's lifecycle.
type Stage int

const (
	// StagePreCompare runs once when a play enters a component.
	StagePreCompare Stage = iota
	// StageCandidate adjusts the incoming play for comparison only.
	StageCandidate
	// StageExisting adjusts an already-held play for comparison only.
	StageExisting
	// StagePostCompare runs after dedup, before downstream handoff.
	StagePostCompare
)

func (s Stage) String() string {
	switch s {
	case StagePreCompare:
		return "preCompare"
	case StageCandidate:
		return "compare.candidate"
	case StageExisting:
		return "compare.existing"
	case StagePostCompare:
		return "postCompare"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// ErrPlayDropped is returned when a transform stage strips every artist.
// The caller must discard the play and surface the error; it must not
// pass the gutted play downstream.
var ErrPlayDropped = errors.New("transform removed every artist")

// DropError carries which field a transform emptied.
type DropError struct {
	Field string
	Play  models.Play
}

func (e *DropError) Error() string {
	return fmt.Sprintf("transform removed %s from %q", e.Field, e.Play.String())
}

func (e *DropError) Unwrap() error { return ErrPlayDropped }

// HooksFor returns the hook array bound to a stage.
func (c *Config) HooksFor(stage Stage) []Hook {
	if c == nil {
		return nil
	}
	switch stage {
	case StagePreCompare:
		return c.PreCompare
	case StageCandidate:
		return c.CompareCandidate
	case StageExisting:
		return c.CompareExisting
	case StagePostCompare:
		return c.PostCompare
	default:
		return nil
	}
}

// Apply runs a stage's hooks against a play and returns the transformed
// copy. The input play is never mutated. Compare-stage results are for
// the comparator only; callers keep the original for storage.
//
// After preCompare and postCompare the result is pruned: whitespace-only
// fields are unset, emptied artist entries are dropped, and albumArtists
// identical to artists is removed. If pruning leaves the play without
// any artist, Apply returns a DropError wrapping ErrPlayDropped and the
// caller must not use the play. Any other emptied field simply travels
// on unset.
func (c *Config) Apply(stage Stage, component string, play models.Play) (models.Play, error) {
	hooks := c.HooksFor(stage)
	if len(hooks) == 0 {
		return play, nil
	}

	before := play
	out := play
	for i := range hooks {
		prev := out
		out = hooks[i].apply(out)
		if c.Log == LogAll {
			logDiff(component, stage, i, prev, out)
		}
	}

	if stage == StagePreCompare || stage == StagePostCompare {
		out = prune(out)
	}
	if c.Log == LogSummary {
		logDiff(component, stage, -1, before, out)
	}

	if err := checkRequired(before, out); err != nil {
		return play, err
	}
	return out, nil
}

// checkRequired rejects a play whose transforms removed every artist.
// Other emptied fields stay unset and the play continues; a scrobble can
// go out without an album or title, but never without an artist.
func checkRequired(before, after models.Play) error {
	if len(before.Data.Artists) > 0 && len(after.Data.Artists) == 0 {
		return &DropError{Field: "artists", Play: before}
	}
	return nil
}

// prune normalizes a transformed play: trims string fields, unsets the
// ones left empty, and drops albumArtists when it duplicates artists.
func prune(p models.Play) models.Play {
	p.Data.Track = strings.TrimSpace(p.Data.Track)
	p.Data.Album = strings.TrimSpace(p.Data.Album)

	p.Data.Artists = pruneList(p.Data.Artists)
	p.Data.AlbumArtists = pruneList(p.Data.AlbumArtists)
	if sameList(p.Data.AlbumArtists, p.Data.Artists) {
		p.Data.AlbumArtists = nil
	}
	return p
}

func pruneList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := in[:0]
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func sameList(a, b []string) bool {
	if len(a) == 0 || len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// logDiff emits one transform diff. hook is -1 for a whole-stage summary.
func logDiff(component string, stage Stage, hook int, before, after models.Play) {
	ev := logging.Info().
		Str("component", component).
		Str("stage", stage.String()).
		Bool("changed", !equalPlays(before, after))
	if hook >= 0 {
		ev = ev.Int("hook", hook)
	}
	ev.Str("before", playFields(before)).
		Str("after", playFields(after)).
		Msg("play transform")
}

func equalPlays(a, b models.Play) bool {
	return a.Data.Track == b.Data.Track &&
		a.Data.Album == b.Data.Album &&
		sameListOrBothEmpty(a.Data.Artists, b.Data.Artists) &&
		sameListOrBothEmpty(a.Data.AlbumArtists, b.Data.AlbumArtists)
}

func sameListOrBothEmpty(a, b []string) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return sameList(a, b)
}

func playFields(p models.Play) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "title=%q artists=[%s]", p.Data.Track, strings.Join(p.Data.Artists, ", "))
	if p.Data.Album != "" {
		fmt.Fprintf(&sb, " album=%q", p.Data.Album)
	}
	return sb.String()
}
