// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

// Package source discovers plays from music platforms and publishes
// them as newPlay events for the clients to scrobble.
//
// # Architecture
//
// A Source pairs one config entry with a platform adapter. The Source
// owns everything platform-independent: the lifecycle machine, the
// recent-plays ring, fuzzy dedup, preCompare transforms, polling
// cadence with exponential backoff, backlog seeding, and per-player
// progress tracking. Adapters only speak their platform's protocol and
// declare what they can do through capability interfaces:
//
//   - Poller: fetches a recently-played listing (spotify, tautulli)
//   - SessionPoller: fetches live sessions (jellyfin)
//   - Ingester: lowers pushed webhook bodies (jellyfin, plex,
//     tautulli, webscrobbler)
//   - Backlogger: seeds history at startup (spotify, tautulli)
//   - Authenticator: runs an interactive OAuth flow (spotify)
//
// # Discovery pipeline
//
// Every observation, polled or pushed, flows through the same steps:
// preCompare transforms, validation, fuzzy comparison against the
// recent ring, then ring insertion and a newPlay event. Stateful
// reports (playing/paused/stopped) first go through the player
// tracker, which keys sessions by (deviceId, userId) and counts a
// listen at half the track or four minutes of progress.
//
// Sources whose polled history can be rewritten upstream run behind a
// stability tracker: discovery is held until the listing has stepped
// consistently for the configured number of ticks.
//
// # Usage
//
//	src, err := source.New(cfg, eventBus, source.Deps{
//		Creds:     credStore,
//		Clock:     clock.Real{},
//		HTTP:      httpClient,
//		PublicURL: cfg.PublicURL(),
//	})
//	if err != nil {
//		return err
//	}
//	supervisor.Add(src)
//
// Serve initializes the adapter, waits for authentication when the
// platform needs it, seeds the backlog once, then either polls or
// parks awaiting webhooks until the context is cancelled.
package source
