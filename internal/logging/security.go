// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

package logging

import (
	"fmt"
	"strings"
)

// SanitizeLogValue escapes control characters in a string so values that
// originated outside the process (webhook bodies, upstream responses,
// callback query parameters) cannot forge or corrupt log lines.
// Control characters are replaced with their hex escape:
//
//	"Track\nTitle" -> "Track\\x0aTitle"
func SanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			b.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SanitizeToken masks a credential, showing only the first and last four
// characters. Tokens too short to mask meaningfully are hidden entirely.
//
//	"d41d8cd98f00b204e9800998ecf8427e" -> "d41d...427e"
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// credentialMarkers are key-name fragments that mark a value as secret.
// Covers apiKey, sessionKey, token, credsSecret, clientSecret, password
// and Authorization headers.
var credentialMarkers = []string{"token", "secret", "password", "key", "authorization"}

// SanitizeValue masks a value when its key names a credential, and
// escapes control characters otherwise. Adapter data blocks and notifier
// headers pass through here before they are logged.
func SanitizeValue(key, value string) string {
	lower := strings.ToLower(key)
	for _, marker := range credentialMarkers {
		if strings.Contains(lower, marker) {
			return SanitizeToken(value)
		}
	}
	return SanitizeLogValue(value)
}
