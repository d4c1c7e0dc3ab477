// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

package transform

import (
	"strings"

	"github.com/tomtom215/audiographus/internal/models"
)

// Rule rewrites one field value: find Search, substitute Replace. A bare
// string in the config becomes a remove rule (Replace == "").
type Rule struct {
	Search  Pattern
	Replace string

	// When gates the rule on the Play it is about to touch. Empty means
	// unconditional.
	When []WhenClause
}

func (r Rule) apply(s string) string {
	return r.Search.replace(s, r.Replace)
}

// WhenClause gates a hook or rule. All present matchers must hold (AND);
// the clauses of a when array are OR'd by the caller.
type WhenClause struct {
	Artist *Pattern
	Album  *Pattern
	Title  *Pattern
}

// matches tests the clause against a Play. The artist matcher passes when
// any artist matches.
func (w WhenClause) matches(p models.Play) bool {
	if w.Title != nil && !w.Title.Match(p.Data.Track) {
		return false
	}
	if w.Album != nil && !w.Album.Match(p.Data.Album) {
		return false
	}
	if w.Artist != nil {
		hit := false
		for _, a := range p.Data.Artists {
			if w.Artist.Match(a) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

func anyClauseMatches(clauses []WhenClause, p models.Play) bool {
	if len(clauses) == 0 {
		return true
	}
	for _, c := range clauses {
		if c.matches(p) {
			return true
		}
	}
	return false
}

// Hook is one transform step: an optional guard plus per-field rule
// lists. Title and album rules run against the single string; artist
// rules run against each artist independently.
type Hook struct {
	When    []WhenClause
	Title   []Rule
	Artists []Rule
	Album   []Rule
}

// empty reports whether the hook would never change a Play.
func (h Hook) empty() bool {
	return len(h.Title) == 0 && len(h.Artists) == 0 && len(h.Album) == 0
}

// apply runs the hook against a Play and returns the rewritten copy.
// The input is never mutated.
func (h Hook) apply(p models.Play) models.Play {
	if !anyClauseMatches(h.When, p) {
		return p
	}
	out := p.Clone()

	for _, r := range h.Title {
		if !anyClauseMatches(r.When, out) {
			continue
		}
		out.Data.Track = r.apply(out.Data.Track)
	}
	for _, r := range h.Album {
		if !anyClauseMatches(r.When, out) {
			continue
		}
		out.Data.Album = r.apply(out.Data.Album)
	}
	if len(h.Artists) > 0 {
		kept := make([]string, 0, len(out.Data.Artists))
		for _, artist := range out.Data.Artists {
			v := artist
			for _, r := range h.Artists {
				if !anyClauseMatches(r.When, out) {
					continue
				}
				v = r.apply(v)
			}
			if strings.TrimSpace(v) != "" {
				kept = append(kept, strings.TrimSpace(v))
			}
		}
		out.Data.Artists = kept
	}
	return out
}
