// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

/*
Package websocket streams the event bus to dashboard clients in real time.

The Hub subscribes to the full bus feed and forwards every event (newPlay,
scrobble, scrobbleQueued, scrobbleDequeued, deadLetter, statusChange,
nowPlaying) to all connected clients over gorilla/websocket. It runs as a
suture service and doubles as the http.Handler the router mounts on the
events route.

Architecture is hub-and-spoke:

	bus ──► Hub ──┬──► Client 1
	              ├──► Client 2
	              └──► Client n

Each client has two goroutines: readPump (inbound pings, pong deadline
refresh) and writePump (event frames plus protocol-level keepalive pings).
Frames are JSON envelopes:

	{"type": "newPlay", "data": {"id": "...", "name": "spotify", ...}}

where data carries the full bus event. Clients may send {"type": "ping"}
and receive {"type": "pong"}; everything else inbound is ignored.

Slow consumers do not stall the hub: a client whose send buffer is full is
disconnected and counted in websocket_errors_total{error_type="slow_client"}.

The upgrade handshake enforces the configured CORS origin list. Requests
without an Origin header are always refused.

See Also:

  - github.com/gorilla/websocket: underlying websocket library
  - internal/bus: the event feed
  - internal/api: mounts the hub on the events route
*/
package websocket
