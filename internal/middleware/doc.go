// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

/*
Package middleware provides HTTP middleware shared by the API router.

The package deliberately stays small. Concerns that chi already ships
middleware for (panic recovery, real IP resolution, compression) are
taken from chi directly in the router; only the pieces that need to
talk to Audiographus internals live here.

Request Tracing:

RequestID assigns every request a unique ID, honouring an upstream
X-Request-ID header when present. The ID is echoed back to the client
and threaded through the request context together with a fresh
correlation ID, so handlers logging via logging.Ctx automatically
carry both fields:

	r.Use(middleware.RequestID)

	// later, in a handler
	logging.CtxInfo(r.Context()).Msg("scrobble accepted")
	// {"level":"info","request_id":"...","correlation_id":"...",...}

Handlers that need the raw ID can read it back with GetRequestID:

	func handler(w http.ResponseWriter, r *http.Request) {
	    id := middleware.GetRequestID(r.Context())
	    w.Header().Set("X-Trace", id)
	}

Metrics:

PrometheusMetrics records the in-flight request gauge plus a counter
and duration histogram per (method, route, status) triple:

	r.Use(middleware.PrometheusMetrics)

The route label is the matched chi pattern, not the raw URL path, so
parameterised routes such as /api/deadletter/{client}/{id} stay a
single series regardless of how many IDs pass through them. The
response wrapper passes Hijacker through, which the websocket upgrade
on /api/events depends on.

See Also:

  - internal/api: the router that assembles the middleware stack
  - internal/metrics: Prometheus metric definitions
  - internal/logging: request and correlation ID context helpers
*/
package middleware
