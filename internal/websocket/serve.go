// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

package websocket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/audiographus/internal/logging"
	"github.com/tomtom215/audiographus/internal/metrics"
)

// ServeHTTP upgrades the request to a websocket connection and registers
// the resulting client with the hub. The router mounts the hub directly
// on the events route.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkOrigin,
		HandshakeTimeout: 10 * time.Second,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		metrics.WSErrors.WithLabelValues("upgrade_failed").Inc()
		logging.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := NewClient(h, conn)
	select {
	case h.Register <- client:
		client.Start()
	case <-r.Context().Done():
		// Hub is not consuming registrations (shutdown race).
		_ = conn.Close()
	}
}

// checkOrigin validates the upgrade handshake origin.
//
// A missing Origin header is rejected: legitimate browser websockets
// always include Origin, and allowing its absence would bypass the CORS
// posture entirely. An empty configured list means any non-empty origin
// is accepted; otherwise "*" or an exact match is required.
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Msg("websocket connection rejected: missing Origin header")
		return false
	}

	if len(h.origins) == 0 {
		return true
	}

	for _, allowed := range h.origins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	logging.Warn().
		Str("origin", logging.SanitizeLogValue(origin)).
		Msg("websocket connection rejected from unauthorized origin")
	return false
}
