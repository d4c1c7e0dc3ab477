// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/audiographus/internal/config"
)

// NewServer builds the http.Server around the assembled router. The
// write timeout does not touch /api/events: gorilla hijacks the
// connection out of the server's control during the upgrade.
func NewServer(cfg *config.Config, handler http.Handler) *http.Server {
	timeout := cfg.Server.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           handler,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      timeout,
		IdleTimeout:       60 * time.Second,
	}
}
