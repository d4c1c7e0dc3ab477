// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

package compare

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)

	// trailingParenRe matches one trailing parenthetical or bracketed
	// segment: "My Song (Album Version)" -> "My Song".
	trailingParenRe = regexp.MustCompile(`\s*[(\[][^()\[\]]*[)\]]\s*$`)
)

// Normalize lowercases s, folds away diacritics, and collapses runs of
// whitespace. The result is the canonical form used for all similarity
// scoring.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	// The chain is built per call: chained transformers carry internal
	// buffers and must not be shared across goroutines.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}
	return whitespaceRe.ReplaceAllString(s, " ")
}

// NormalizeTitle normalizes a track title and strips trailing
// parenthetical noise ("(Live)", "[Remastered 2009]"). Stripping stops
// before it would empty the title, so "(What)" stays intact.
func NormalizeTitle(s string) string {
	s = Normalize(s)
	for {
		stripped := strings.TrimSpace(trailingParenRe.ReplaceAllString(s, ""))
		if stripped == "" || stripped == s {
			return s
		}
		s = stripped
	}
}
