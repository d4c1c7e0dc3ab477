// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

/*
Package api is the HTTP surface of the router: inbound webhooks, OAuth
callbacks and the dashboard JSON API.

Route Map:

	POST   /plex                                 Plex webhook (multipart payload or JSON)
	POST   /tautulli                             Tautulli notification agent
	POST   /jellyfin                             Jellyfin webhook plugin (JSON only)
	POST   /api/webscrobbler                     Web Scrobbler extension, slug-less sources
	POST   /api/webscrobbler/{slug}              Web Scrobbler extension, exact slug match
	GET    /{service}/callback                   OAuth / token handshake completion

	GET    /api/status                           Source and client snapshot
	GET    /api/recent                           Per-source recently discovered plays
	GET    /api/scrobbled                        Per-client delivered scrobbles
	GET    /api/deadletter                       Per-client dead letters
	POST   /api/deadletter/{client}/{id}/retry   Replay one dead letter         (token)
	DELETE /api/deadletter/{client}/{id}         Discard one dead letter        (token)
	POST   /api/source/{name}/poll               Trigger an immediate poll      (token)
	GET    /api/events                           Websocket event stream

	GET    /healthz                              Liveness probe
	GET    /metrics                              Prometheus exposition
	GET    /swagger/*                            Generated API documentation

Envelope:

Every JSON endpoint answers with the same shape:

	{"success": true,  "data": {...}, "meta": {"count": 3}}
	{"success": false, "error": {"code": "NOT_FOUND", "message": "..."}}

Error codes are the ErrCode constants; clients switch on them, not on
messages.

Dependency Injection:

Handler reads live state through the SourceHandle and ClientHandle
interfaces. *source.Source and *client.Client satisfy them; tests
substitute fakes, so no handler test needs a running supervisor tree.

Authentication:

Mutating routes honor the optional api.token config value. When set,
callers present it as Authorization: Bearer or X-Api-Token and the
comparison is constant-time. Read routes stay open: the dashboard is a
LAN-facing surface and the read model contains nothing the logs don't.

Rate Limits:

Per-IP, per-minute, per group: dashboard 300, webhooks 100, auth 20 by
default, each overridable. Hitting a limit answers 429 in the standard
envelope and increments api_rate_limit_hits_total.
*/
package api
