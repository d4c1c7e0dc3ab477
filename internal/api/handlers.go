// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tomtom215/audiographus/internal/client"
	"github.com/tomtom215/audiographus/internal/config"
	"github.com/tomtom215/audiographus/internal/models"
	"github.com/tomtom215/audiographus/internal/source"
)

// maxBodyBytes caps webhook and API request bodies. Scrobble payloads
// are a few KB; anything near the cap is not a scrobble.
const maxBodyBytes = 1 << 20

// SourceHandle is the slice of a running source the HTTP layer needs.
// *source.Source satisfies it; tests substitute fakes.
type SourceHandle interface {
	Name() string
	Type() string
	Slug() string
	Poll(ctx context.Context) error
	Ingest(body []byte) error
	HandleAuthCallback(ctx context.Context, query url.Values) error
	Stats() source.Stats
	Recent() []models.Play
}

// ClientHandle is the slice of a running client the HTTP layer needs.
type ClientHandle interface {
	Name() string
	Type() string
	Stats() client.Stats
	Scrobbled() []models.ScrobbledPlay
	DeadLetters() []models.DeadLetterScrobble
	RetryDeadLetter(ctx context.Context, id string) error
	RemoveDeadLetter(id string) error
	HandleAuthCallback(ctx context.Context, query url.Values) error
}

var (
	_ SourceHandle = (*source.Source)(nil)
	_ ClientHandle = (*client.Client)(nil)
)

// Handler owns the HTTP handlers for webhooks, OAuth callbacks and the
// dashboard API. It reads live state through the handles; it never
// reaches into source or client internals.
type Handler struct {
	cfg       *config.Config
	sources   []SourceHandle
	clients   []ClientHandle
	events    http.Handler
	startTime time.Time
}

// NewHandler creates the API handler. events serves the websocket
// stream on /api/events and may be nil when the hub is not running.
func NewHandler(cfg *config.Config, sources []SourceHandle, clients []ClientHandle, events http.Handler) *Handler {
	return &Handler{
		cfg:       cfg,
		sources:   sources,
		clients:   clients,
		events:    events,
		startTime: time.Now(),
	}
}

func (h *Handler) findSource(name string) (SourceHandle, bool) {
	for _, s := range h.sources {
		if s.Name() == name {
			return s, true
		}
	}
	return nil, false
}

func (h *Handler) findClient(name string) (ClientHandle, bool) {
	for _, c := range h.clients {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

func (h *Handler) sourcesOfType(typ string) []SourceHandle {
	var out []SourceHandle
	for _, s := range h.sources {
		if s.Type() == typ {
			out = append(out, s)
		}
	}
	return out
}

// requireToken guards mutating routes. With no token configured every
// request passes; otherwise the caller must present the exact token and
// the comparison is constant-time.
func (h *Handler) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.cfg.API.Token
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		presented := bearerToken(r)
		if presented == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			respondError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "Missing or invalid API token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearerToken pulls the API token from Authorization: Bearer or the
// X-Api-Token header.
func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.Header.Get("X-Api-Token")
}

// readBody drains the request body under the size cap. A true return
// means the response has already been written.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "Request body too large")
		} else {
			respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "Failed to read request body")
		}
		return nil, true
	}
	return body, false
}
