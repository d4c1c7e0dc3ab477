// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

// Package compare scores how likely two Plays are the same listen.
//
// The score is a weighted sum of three subscores in [0, 1]: artist-set
// similarity (0.3), title similarity (0.4), and discretized temporal
// accuracy (0.3). A multi-artist bonus compensates for sources that
// report only the primary artist while others report the full list.
// Scores at or above the duplicate threshold (0.8) are treated as the
// same listen by both the source discovery filter and the client
// existing-scrobble check.
package compare
