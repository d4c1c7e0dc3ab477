// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

// Package main is the entry point for the Audiographus server.
//
// Audiographus is a self-hosted scrobble router: it watches media servers
// and listening platforms for music plays and forwards each play to every
// configured scrobble service, with per-client queues, ordered delivery,
// duplicate suppression, retries and a dead-letter list behind a live
// dashboard.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Koanf v2 with environment variables and config files
//  2. Logging: zerolog with JSON/console output modes
//  3. Credential store: currentCreds-<name>.json files under CONFIG_DIR,
//     optionally encrypted at rest (CREDS_SECRET)
//  4. Dead-letter store: BadgerDB under CONFIG_DIR/deadletter
//  5. Event bus: in-process pub/sub connecting sources to clients
//  6. Sources and clients: one supervised worker per config entry
//  7. WebSocket hub: live event feed for the dashboard
//  8. HTTP server: webhooks, dashboard API and Swagger documentation
//
// Everything long-running sits in a suture v4 supervisor tree:
//
//	RootSupervisor ("audiographus")
//	├── SourcesSupervisor ("sources")
//	├── ClientsSupervisor ("clients")
//	└── APISupervisor ("api")
//
// Component initialization itself happens inside each worker's Serve, so a
// source with bad credentials shows up as a dashboard state, not a crashed
// process.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//
//	Priority: Environment variables > Config file (config.yaml) > Defaults
//
// Short environment names cover the common settings:
//
//	PORT=9078                # HTTP listen port
//	LOG_LEVEL=info           # trace, debug, info, warn, error
//	LOG_FORMAT=console       # json or console (json is forced in Docker)
//	BASE_URL=                # public URL for OAuth redirect URIs
//	CONFIG_DIR=              # persistent state directory
//	API_TOKEN=               # token guarding mutating dashboard routes
//
// Any nested key is reachable with the AG_ prefix, AG_SERVER_PORT and so
// on. Sources and clients are declared in the config file, one entry per
// source or scrobble target.
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops accepting new HTTP connections
//   - Closes websocket clients and waits for in-flight requests (10s)
//   - Stops source and client workers, flushing queued scrobbles to the
//     dead-letter store
//   - Reports any services that failed to stop in time
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	_ "github.com/tomtom215/audiographus/docs" // Import generated swagger docs
	"github.com/tomtom215/audiographus/internal/api"
	"github.com/tomtom215/audiographus/internal/bus"
	"github.com/tomtom215/audiographus/internal/client"
	"github.com/tomtom215/audiographus/internal/config"
	"github.com/tomtom215/audiographus/internal/creds"
	"github.com/tomtom215/audiographus/internal/deadletter"
	"github.com/tomtom215/audiographus/internal/logging"
	"github.com/tomtom215/audiographus/internal/notify"
	"github.com/tomtom215/audiographus/internal/source"
	"github.com/tomtom215/audiographus/internal/supervisor"
	ws "github.com/tomtom215/audiographus/internal/websocket"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Int("sources", len(cfg.EnabledSources())).
		Int("clients", len(cfg.EnabledClients())).
		Str("listen", cfg.ListenAddr()).
		Str("publicUrl", cfg.PublicURL()).
		Msg("Starting Audiographus")
	echoConfig(cfg)

	credStore, err := openCreds(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open credential store")
	}

	letters, err := deadletter.Open(cfg.DeadLetter)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open dead-letter store")
	}
	defer func() {
		if err := letters.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing dead-letter store")
		}
	}()

	events := bus.New()
	defer func() {
		if err := events.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	// Create supervisor tree with a slog bridge so suture lifecycle
	// events land in the zerolog sink
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	sources, err := buildSources(cfg, events, credStore, tree)
	if err != nil {
		// Close the store before fatal exit so Badger releases its lock
		if closeErr := letters.Close(); closeErr != nil {
			logging.Error().Err(closeErr).Msg("Error closing dead-letter store")
		}
		logging.Fatal().Err(err).Msg("Failed to build sources")
	}

	clients, err := buildClients(cfg, events, credStore, letters, tree)
	if err != nil {
		if closeErr := letters.Close(); closeErr != nil {
			logging.Error().Err(closeErr).Msg("Error closing dead-letter store")
		}
		logging.Fatal().Err(err).Msg("Failed to build clients")
	}

	if len(sources) == 0 && len(clients) == 0 {
		logging.Warn().Msg("No sources or clients configured; only the dashboard will run")
	}

	// The notifier rides in the clients layer: it consumes the same bus
	// feed the scrobble workers produce
	if notifier := notify.New(events, cfg.Notifier); notifier.Active() {
		tree.AddClientService(notifier)
		logging.Info().
			Str("url", logging.SanitizeLogValue(cfg.Notifier.Webhook.URL)).
			Strs("events", cfg.Notifier.Webhook.Events).
			Msg("Webhook notifier enabled")
	}

	hub := ws.NewHub(events, cfg.API.CORSOrigins)
	tree.AddAPIService(hub)

	handler := api.NewHandler(cfg, sourceHandles(sources), clientHandles(clients), hub)
	server := api.NewServer(cfg, api.NewRouter(handler))
	tree.AddAPIService(supervisor.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// Wait for supervisor to finish (either from signal or error)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Audiographus stopped gracefully")
}

// openCreds picks the at-rest treatment for persisted credentials. The
// files live directly under CONFIG_DIR so they sit next to the config
// file they belong to.
func openCreds(cfg *config.Config) (*creds.Store, error) {
	if cfg.Server.CredsSecret != "" {
		logging.Info().Msg("Credential encryption at rest enabled")
		return creds.NewEncryptedStore(cfg.Server.ConfigDir, cfg.Server.CredsSecret)
	}
	return creds.NewStore(cfg.Server.ConfigDir), nil
}

// buildSources constructs one supervised worker per enabled source entry
// and registers it in the sources layer.
func buildSources(cfg *config.Config, events *bus.Bus, credStore *creds.Store, tree *supervisor.Tree) ([]*source.Source, error) {
	deps := source.Deps{
		Creds:     credStore,
		PublicURL: cfg.PublicURL(),
	}

	var out []*source.Source
	for _, sc := range cfg.EnabledSources() {
		s, err := source.New(sc, events, deps)
		if err != nil {
			return nil, err
		}
		tree.AddSourceService(s)
		out = append(out, s)
		logging.Info().Str("source", sc.Name).Str("type", sc.Type).Msg("Source added to supervisor tree")
	}
	return out, nil
}

// buildClients constructs one supervised worker per enabled client entry
// and registers it in the clients layer. Each client gets its accepted
// source set resolved from the routing config up front.
func buildClients(cfg *config.Config, events *bus.Bus, credStore *creds.Store, letters *deadletter.Store, tree *supervisor.Tree) ([]*client.Client, error) {
	var out []*client.Client
	for _, cc := range cfg.EnabledClients() {
		accepted := cfg.AcceptedSources(cc.Name)
		c, err := client.New(cc, events, client.Deps{
			Creds:         credStore,
			PublicURL:     cfg.PublicURL(),
			Letters:       letters,
			RetryInterval: cfg.DeadLetter.RetryInterval,
			Accepted:      accepted,
		})
		if err != nil {
			return nil, err
		}
		tree.AddClientService(c)
		out = append(out, c)
		logging.Info().
			Str("client", cc.Name).
			Str("type", cc.Type).
			Int("acceptedSources", len(accepted)).
			Msg("Client added to supervisor tree")
	}
	return out, nil
}

// sourceHandles converts the concrete workers to the read surface the
// HTTP layer consumes.
func sourceHandles(sources []*source.Source) []api.SourceHandle {
	out := make([]api.SourceHandle, 0, len(sources))
	for _, s := range sources {
		out = append(out, s)
	}
	return out
}

func clientHandles(clients []*client.Client) []api.ClientHandle {
	out := make([]api.ClientHandle, 0, len(clients))
	for _, c := range clients {
		out = append(out, c)
	}
	return out
}

// echoConfig logs the effective source and client entries at debug level
// with credential-looking values masked, so a support bundle shows what
// the process actually loaded without leaking secrets.
func echoConfig(cfg *config.Config) {
	if !logging.IsLevelEnabled(zerolog.DebugLevel) {
		return
	}

	for _, s := range cfg.Sources {
		ev := logging.Debug().Str("source", s.Name).Str("type", s.Type).Bool("enabled", s.Enabled())
		if len(s.Clients) > 0 {
			ev = ev.Strs("clients", s.Clients)
		}
		for k, v := range s.Data {
			if str, ok := v.(string); ok {
				ev = ev.Str("data."+k, logging.SanitizeValue(k, str))
			}
		}
		ev.Msg("Source config")
	}

	for _, c := range cfg.Clients {
		ev := logging.Debug().Str("client", c.Name).Str("type", c.Type).Bool("enabled", c.Enabled())
		for k, v := range c.Data {
			if str, ok := v.(string); ok {
				ev = ev.Str("data."+k, logging.SanitizeValue(k, str))
			}
		}
		ev.Msg("Client config")
	}

	for k, v := range cfg.Notifier.Webhook.Headers {
		logging.Debug().Str("header", k).Str("value", logging.SanitizeValue(k, v)).Msg("Notifier header")
	}
}
