// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

package models

import (
	"errors"
	"fmt"
)

// UpstreamError is raised by a client adapter when the upstream service
// rejects or fails a call.
//
// ShowStopper marks failures the service will keep producing for every
// request (revoked credentials, permanently rejected payload shapes).
// The worker requeues the scrobble and stops; the supervisor restarts it
// with backoff. Everything else is per-call: the scrobble moves to the
// dead-letter list and the worker continues.
type UpstreamError struct {
	// Service names the upstream ("lastfm", "listenbrainz", ...).
	Service string

	// Message describes the failure in the upstream's terms.
	Message string

	ShowStopper bool

	// RateLimited marks explicit rate-limit rejections so callers can
	// widen their pacing.
	RateLimited bool

	// AuthFailure marks revoked or rejected credentials. Implies the
	// component must be re-authenticated before the worker resumes.
	AuthFailure bool

	Cause error
}

func (e *UpstreamError) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.ShowStopper {
		return fmt.Sprintf("%s: %s (show stopper)", e.Service, msg)
	}
	return fmt.Sprintf("%s: %s", e.Service, msg)
}

func (e *UpstreamError) Unwrap() error { return e.Cause }

// AsUpstreamError unwraps err looking for an UpstreamError.
func AsUpstreamError(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

// IsShowStopper reports whether err carries a show-stopping upstream
// failure. Plain network errors are not show stoppers: they are
// retryable and handled by the caller's backoff.
func IsShowStopper(err error) bool {
	ue, ok := AsUpstreamError(err)
	return ok && ue.ShowStopper
}
