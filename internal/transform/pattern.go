// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

package transform

import (
	"fmt"
	"regexp"
	"strings"
)

// Pattern is a parsed rule or matcher string: either a literal substring
// or a compiled regular expression.
//
// A string is a regular expression iff it begins with "/" and contains a
// closing "/" optionally followed by flag letters. Anything else,
// including "/foo" with no closing slash, is a literal.
type Pattern struct {
	// Raw is the original string, kept for logs and round-tripping.
	Raw string

	// Re is non-nil when the string was recognized as a regex.
	Re *regexp.Regexp

	// Literal is the substring to search for when Re is nil.
	Literal string

	// Global is true when the regex carried the g flag: replacements
	// hit every match instead of the first.
	Global bool
}

// IsRegex reports whether the pattern compiled as a regular expression.
func (p Pattern) IsRegex() bool { return p.Re != nil }

// flag letters accepted after the closing slash. i, m and s map onto Go
// inline flags; g switches replacement to global; u and y are accepted
// for compatibility and carry no meaning here.
const patternFlags = "gimsuy"

// ParsePattern recognizes s as a regex or a literal. A malformed regex
// (recognized shape, uncompilable body) is a configuration error.
func ParsePattern(s string) (Pattern, error) {
	p := Pattern{Raw: s}

	if !strings.HasPrefix(s, "/") {
		p.Literal = s
		return p, nil
	}
	last := strings.LastIndex(s[1:], "/")
	if last < 0 {
		// "/foo": no closing slash, stays literal.
		p.Literal = s
		return p, nil
	}
	last++ // index into s

	body := s[1:last]
	flags := s[last+1:]
	for _, f := range flags {
		if !strings.ContainsRune(patternFlags, f) {
			p.Literal = s
			return p, nil
		}
	}

	var inline strings.Builder
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's':
			inline.WriteRune(f)
		case 'g':
			p.Global = true
		}
	}
	// JavaScript spells named groups (?<name>...); Go wants (?P<name>...).
	// Lookarounds also start with "(?<" but fail to compile either way.
	expr := strings.ReplaceAll(body, "(?<", "(?P<")
	if inline.Len() > 0 {
		expr = "(?" + inline.String() + ")" + expr
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, fmt.Errorf("compile pattern %q: %w", s, err)
	}
	p.Re = re
	return p, nil
}

// Match reports whether s matches the pattern. Literals match on
// case-insensitive containment, which is what a user writing
// `artist: "Elephant Gym"` expects of a guard.
func (p Pattern) Match(s string) bool {
	if p.Re != nil {
		return p.Re.MatchString(s)
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(p.Literal))
}

// jsGroupRe rewrites JavaScript-style named back-references "$<name>"
// into Go's "${name}".
var jsGroupRe = regexp.MustCompile(`\$<([^>]+)>`)

// translateReplacement converts a replacement template from the config
// DSL into Go regexp template syntax. "$1" passes through untouched.
func translateReplacement(s string) string {
	return jsGroupRe.ReplaceAllString(s, "${$1}")
}

// replace applies the pattern to s with the given replacement template.
// Regex patterns expand capture groups; without the g flag only the
// first match is replaced, mirroring the DSL's JavaScript heritage.
// Literal patterns replace the first case-sensitive occurrence.
func (p Pattern) replace(s, replacement string) string {
	if p.Re == nil {
		idx := strings.Index(s, p.Literal)
		if idx < 0 {
			return s
		}
		return s[:idx] + replacement + s[idx+len(p.Literal):]
	}
	if p.Global {
		return p.Re.ReplaceAllString(s, replacement)
	}
	loc := p.Re.FindStringSubmatchIndex(s)
	if loc == nil {
		return s
	}
	expanded := p.Re.ExpandString(nil, replacement, s, loc)
	return s[:loc[0]] + string(expanded) + s[loc[1]:]
}
