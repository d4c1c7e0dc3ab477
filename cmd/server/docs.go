// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

// Package main provides the Audiographus HTTP server
//
// Audiographus routes music plays from media servers and listening
// platforms to every configured scrobble service.
//
// @title Audiographus API
// @version 1.0
// @description Multi-source music scrobble router. Audiographus watches media
// @description servers and listening platforms for music plays and forwards each
// @description one to every configured scrobble client, with per-client queues,
// @description ordered delivery, duplicate suppression, retries and a dead-letter
// @description list behind a live dashboard.
// @description
// @description ## Envelope
// @description
// @description Every JSON endpoint answers with the same envelope:
// @description ```json
// @description {"success": true, "data": {}, "meta": {"count": 3}}
// @description {"success": false, "error": {"code": "NOT_FOUND", "message": "..."}}
// @description ```
// @description Error codes are stable; clients should switch on them, not on messages.
// @description
// @description ## Authentication
// @description
// @description Read routes are open: the dashboard is a LAN-facing surface. Mutating
// @description routes require the configured api.token, presented either as
// @description `Authorization: Bearer <token>` or as an `X-Api-Token` header.
// @description
// @description ## Rate Limiting
// @description
// @description Per-IP, per-minute budgets apply per route group: dashboard 300,
// @description webhooks 100, auth callbacks 20. Hitting a limit answers 429 in the
// @description standard envelope.
//
// @contact.name GitHub Repository
// @contact.url https://github.com/tomtom215/audiographus/issues
//
// @license.name AGPL-3.0-or-later
// @license.url https://www.gnu.org/licenses/agpl-3.0.html
//
// @host localhost:9078
// @BasePath /
// @schemes http
//
// @securityDefinitions.apikey ApiToken
// @in header
// @name X-Api-Token
// @description API token for mutating routes. Only enforced when api.token is set in the configuration.
//
// @tag.name webhooks
// @tag.description Inbound play notifications from media servers and browser extensions
//
// @tag.name dashboard
// @tag.description Router state, recent activity, dead-letter management and the live event stream
//
// @tag.name auth
// @tag.description OAuth and token handshake callbacks for sources and clients
package main
