// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

// Package logging provides centralized zerolog-based structured logging for Audiographus.
//
// Every component (source poll loops, client workers, webhook handlers,
// the event bus, the supervision tree) writes through one global zerolog
// instance so a single LOG_LEVEL controls the whole process.
//
// # Overview
//
// The package provides:
//   - Zero-allocation structured logging via zerolog
//   - JSON output for containers, console output for a terminal
//   - Correlation ID propagation from webhook ingest through scrobble fan-out
//   - slog adapter shared by suture (supervision) and watermill (event bus)
//   - Sanitizers for values that arrive in webhook bodies or upstream responses
//
// # Configuration
//
//	logging.Init(logging.Config{
//	    Level:     "debug",    // trace, debug, info, warn, error, fatal
//	    Format:    "console",  // json or console
//	    Caller:    true,       // include caller file:line
//	    Timestamp: true,
//	    Output:    os.Stderr,
//	})
//
// LOG_LEVEL from the environment reaches this package through
// internal/config; IS_DOCKER=true switches the format to json.
//
// # Component Loggers
//
// Long-lived workers tag their lines once:
//
//	logger := logging.WithComponent("client.lastfm")
//	logger.Info().Msg("Worker started")
//
// # Context-Aware Logging
//
// Webhook handlers stamp a correlation ID into the request context; the
// plays and scrobbles fanned out from that request carry it in every line:
//
//	logging.Ctx(ctx).Info().Str("source", name).Msg("Play received")
//
// # Sanitization
//
// Track titles, artist names and player fields originate in payloads the
// process does not control. Anything request-derived goes through
// SanitizeLogValue before logging so embedded newlines cannot forge log
// entries; credentials go through SanitizeToken so they never appear in
// full:
//
//	logging.Info().
//	    Str("track", logging.SanitizeLogValue(play.Data.Track)).
//	    Msg("Webhook play")
//
// # slog Adapter
//
// suture/v4 (via sutureslog) and watermill both log through slog. The
// adapter routes them into the same zerolog sink:
//
//	sutureHandler := &sutureslog.Handler{Logger: logging.NewSlogLogger()}
//
// # Testing
//
//	var buf bytes.Buffer
//	logging.SetLogger(logging.NewTestLogger(&buf))
//	// ... exercise code, then assert on buf.String()
package logging
