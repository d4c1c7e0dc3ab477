// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

// Package transform applies user-defined mutation rules to Plays at three
// hook points: preCompare (before discovery dedup), compare (visible only
// to the comparator), and postCompare (just before the scrobble call).
//
// The configuration DSL deliberately accepts loose shapes: a stage is a
// hook or a list of hooks, a rule is a bare string (match and remove) or
// a {search, replace, when} object, and any string is either a literal or
// a /pattern/flags regular expression. Parse normalizes all of that into
// a fixed rule tree once, at config load; the worker hot path only walks
// the tree.
package transform
