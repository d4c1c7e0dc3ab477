// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

/*
Package config provides centralized configuration management for Audiographus.

This package handles loading, merging, and validation of the config file and
environment variables for all application components. It ensures consistent
configuration across sources, clients, and the HTTP server, and provides
sensible defaults for optional settings.

# Configuration Sources

Configuration is layered, later layers overriding earlier ones:

 1. Built-in defaults
 2. Config file: config.yaml, config.yml, or config.json in CONFIG_DIR
    (JSON parses through the YAML parser; YAML 1.2 is a superset of JSON)
 3. Environment variables

# Configuration Structure

The config file has five main sections:

  - server, logging, api, notifier, deadLetter: infrastructure settings
  - sourceDefaults: options inherited by every source
  - clientDefaults: options inherited by every client
  - sources: one entry per play source (spotify, jellyfin, plex, tautulli,
    webscrobbler)
  - clients: one entry per scrobble destination (lastfm, listenbrainz, maloja)

Each source and client entry has the same shape:

	sources:
	  - name: spotify-main
	    type: spotify
	    enable: true
	    clients: [lastfm-main]     # omit to route to every client
	    data:
	      clientId: "..."
	      clientSecret: "..."
	    options:
	      interval: 10s
	      playTransform:
	        preCompare:
	          title:
	            - search: ' (Remastered)'
	              replace: ''

# Environment Variables

Short names cover the settings operators touch most:

  - PORT: listen port (default: 9078)
  - HOST: bind address (default: 0.0.0.0)
  - BASE_URL: public URL used for OAuth redirect URIs
  - CONFIG_PATH: explicit config file path
  - CONFIG_DIR: directory for config file, credentials, dead-letter store
  - IS_DOCKER: "true" forces 0.0.0.0 binding and JSON logs
  - LOG_LEVEL: trace, debug, info, warn, error (default: info)
  - LOG_FORMAT: json or console
  - API_TOKEN: bearer token protecting the dashboard API
  - CORS_ORIGINS: comma-separated allowed origins
  - WEBHOOK_URL, WEBHOOK_ENABLED, WEBHOOK_EVENTS: outbound notifier

AG_-prefixed names address any nested key by replacing underscores with dots:
AG_SERVER_PORT, AG_LOGGING_LEVEL, AG_DEADLETTER_RETRYINTERVAL.

# Usage Example

	import "github.com/tomtom215/audiographus/internal/config"

	cfg, err := config.Load()
	if err != nil {
	    log.Fatalf("Failed to load config: %v", err)
	}

	fmt.Printf("Starting server on %s\n", cfg.ListenAddr())
	for _, src := range cfg.EnabledSources() {
	    fmt.Printf("source %s (%s) polling every %s\n",
	        src.Name, src.Type, src.Options.Interval)
	}

# Validation

Load() rejects configurations with:

  - Duplicate source or client names
  - Sources routing to client names that do not exist
  - Out-of-range ports, negative rate limits, unknown log levels
  - An enabled webhook notifier without a valid http(s) URL

Adapter-specific data (API keys, server URLs, slugs) is validated by the
adapter during initialization, where a failure can be classed as fatal and
stop restarts rather than fail the whole load.

# Defaults

  - PORT: 9078
  - Poll interval: 30s, backing off ×1.5 per failure, clamped at 5m
  - scrobbleDelay: 1s between scrobbles per client
  - deadLetterRetries: 3 automatic replays per dead-lettered scrobble
  - listStabilityTicks: 1 extra consistent poll before trusting a reset listing
  - playerExpiry: 10m before in-progress player state is evicted

# Docker Deployment

	services:
	  audiographus:
	    image: ghcr.io/tomtom215/audiographus:latest
	    environment:
	      IS_DOCKER: "true"
	      API_TOKEN: ${API_TOKEN}
	    volumes:
	      - ./config:/config
	    ports:
	      - "9078:9078"

# Thread Safety

The Config struct is immutable after Load() returns, making it safe for
concurrent access from multiple goroutines without synchronization.

# See Also

  - README.md: User-facing configuration documentation
  - internal/transform: the playTransform DSL applied to plays
*/
package config
