// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

/*
Package supervisor provides process supervision for Audiographus using suture v4.

This package implements a hierarchical supervisor tree that manages the
lifecycle of all long-running workers in the application. It provides
Erlang/OTP-style supervision with automatic restart, failure isolation,
and graceful shutdown.

# Overview

The supervisor tree organizes services into three layers:

	RootSupervisor ("audiographus")
	├── SourcesSupervisor ("sources")
	│   └── one poll or ingest worker per configured source
	├── ClientsSupervisor ("clients")
	│   ├── one scrobble worker per configured client
	│   └── NotifierService (if webhooks are configured)
	└── APISupervisor ("api")
	    ├── WebSocketHub
	    └── HTTPServerService

This hierarchy ensures that:
  - A crashing source adapter cannot take the scrobble workers down with it
  - Scrobble client failures don't impact webhook ingestion or the dashboard
  - Each layer restarts independently with its own failure counting

# Key Features

Automatic Restart:
  - Crashed services are automatically restarted
  - Exponential backoff prevents restart storms
  - Configurable failure thresholds and decay rates

Graceful Shutdown:
  - Context cancellation triggers orderly shutdown
  - Configurable shutdown timeout per service
  - UnstoppedServiceReport for debugging hangs

Structured Logging:
  - Service starts, stops, failures, and restarts logged via slog
  - Event hooks wired through the sutureslog adapter

# Usage Example

Basic setup in main.go:

	logger := logging.NewSlogLogger()
	tree := supervisor.NewTree(logger, supervisor.DefaultTreeConfig())

	tree.AddSourceService(src)
	tree.AddClientService(clt)
	tree.AddAPIService(hub)
	tree.AddAPIService(supervisor.NewHTTPServerService(server, 10*time.Second))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if err := tree.Serve(ctx); err != nil {
		log.Printf("supervisor stopped: %v", err)
	}

# Configuration

The TreeConfig controls restart behavior:

	config := supervisor.TreeConfig{
	    FailureThreshold: 5.0,              // Failures before backoff
	    FailureDecay:     30.0,             // Seconds for failures to decay
	    FailureBackoff:   15 * time.Second, // Backoff duration
	    ShutdownTimeout:  10 * time.Second, // Per-service shutdown timeout
	}

Defaults match suture's production-ready values. Zero-value fields in
TreeConfig fall back to those defaults.

# Service Interface

All services must implement suture.Service:

	type Service interface {
	    Serve(ctx context.Context) error
	}

Return behavior:
  - Return nil: service stopped cleanly, will not be restarted
  - Return error: service crashed, will be restarted
  - Context canceled: shutdown requested, return promptly

Source, client, notifier, and websocket hub workers implement this
interface directly. The HTTP server does not, so HTTPServerService
adapts http.Server's ListenAndServe/Shutdown pair to it.

# Debugging Shutdown Issues

If services don't stop within the timeout:

	report, err := tree.UnstoppedServiceReport()
	for _, svc := range report {
	    log.Printf("service didn't stop: %v", svc)
	}

Common causes:
  - Goroutines not respecting context cancellation
  - Blocked network I/O without deadlines

# See Also

  - internal/source: poll and ingest workers
  - internal/client: scrobble workers
  - internal/websocket: dashboard event hub
  - github.com/thejerf/suture/v4: underlying library
*/
package supervisor
