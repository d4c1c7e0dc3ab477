// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

// Package models defines the canonical data types that move through the
// scrobble pipeline: the Play listen event, the queue and dead-letter
// wrappers that carry a Play toward a client, and the upstream error
// taxonomy client adapters raise.
//
// A Play is treated as immutable once it has been handed to the event bus
// or enqueued toward a client. Code that needs to mutate a Play must work
// on a Clone; the transform engine and the bus both rely on this.
package models
