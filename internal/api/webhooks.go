// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

package api

import (
	"errors"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/audiographus/internal/lifecycle"
	"github.com/tomtom215/audiographus/internal/logging"
	"github.com/tomtom215/audiographus/internal/metrics"
	"github.com/tomtom215/audiographus/internal/source"
)

// maxPlexMultipartMemory bounds Plex webhook parsing. Plex posts
// multipart bodies that may include a thumbnail part alongside the
// JSON payload.
const maxPlexMultipartMemory = 4 << 20

// WebScrobbler godoc
// @Summary Receive a Web Scrobbler webhook
// @Description Accepts the JSON body posted by the Web Scrobbler browser
// @Description extension. A source configured without a slug receives
// @Description posts to the slug-less path only; a source with a slug
// @Description requires the exact slug in the path.
// @Tags webhooks
// @Accept json
// @Produce json
// @Param slug path string false "Webhook slug"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Failure 503 {object} APIResponse
// @Router /api/webscrobbler [post]
// @Router /api/webscrobbler/{slug} [post]
func (h *Handler) WebScrobbler(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	body, done := readBody(w, r)
	if done {
		metrics.RecordWebhook("webscrobbler", "bad_payload")
		return
	}

	var matched []SourceHandle
	for _, s := range h.sourcesOfType("webscrobbler") {
		if s.Slug() == slug {
			matched = append(matched, s)
		}
	}
	if len(matched) == 0 {
		metrics.RecordWebhook("webscrobbler", "no_source")
		logging.CtxWarn(r.Context()).
			Str("slug", logging.SanitizeLogValue(slug)).
			Msg("Web Scrobbler webhook matched no source")
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "No Web Scrobbler source matches this slug")
		return
	}

	h.deliver(w, r, "webscrobbler", matched, body)
}

// PlexWebhook godoc
// @Summary Receive a Plex webhook
// @Description Accepts Plex's multipart/form-data webhook (JSON in the
// @Description payload field) as well as a raw JSON body.
// @Tags webhooks
// @Accept json
// @Accept mpfd
// @Produce json
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Failure 503 {object} APIResponse
// @Router /plex [post]
func (h *Handler) PlexWebhook(w http.ResponseWriter, r *http.Request) {
	var body []byte

	ct := r.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(ct); err == nil && mt == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxPlexMultipartMemory); err != nil {
			metrics.RecordWebhook("plex", "bad_payload")
			respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "Failed to parse multipart form")
			return
		}
		payload := r.FormValue("payload")
		if payload == "" {
			metrics.RecordWebhook("plex", "bad_payload")
			respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "Multipart form has no payload field")
			return
		}
		body = []byte(payload)
	} else {
		var done bool
		body, done = readBody(w, r)
		if done {
			metrics.RecordWebhook("plex", "bad_payload")
			return
		}
	}

	h.dispatch(w, r, "plex", body)
}

// TautulliWebhook godoc
// @Summary Receive a Tautulli notification
// @Description Accepts the JSON body of a Tautulli webhook notification
// @Description agent configured for scrobble events.
// @Tags webhooks
// @Accept json
// @Produce json
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Failure 503 {object} APIResponse
// @Router /tautulli [post]
func (h *Handler) TautulliWebhook(w http.ResponseWriter, r *http.Request) {
	body, done := readBody(w, r)
	if done {
		metrics.RecordWebhook("tautulli", "bad_payload")
		return
	}
	h.dispatch(w, r, "tautulli", body)
}

// JellyfinWebhook godoc
// @Summary Receive a Jellyfin webhook
// @Description Accepts the JSON body posted by the Jellyfin webhook
// @Description plugin. Non-JSON content types are rejected, which
// @Description usually means the plugin template is misconfigured.
// @Tags webhooks
// @Accept json
// @Produce json
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Failure 415 {object} APIResponse
// @Failure 503 {object} APIResponse
// @Router /jellyfin [post]
func (h *Handler) JellyfinWebhook(w http.ResponseWriter, r *http.Request) {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mt != "application/json" {
		metrics.RecordWebhook("jellyfin", "unsupported_media")
		logging.CtxWarn(r.Context()).
			Str("contentType", logging.SanitizeLogValue(r.Header.Get("Content-Type"))).
			Msg("Jellyfin webhook rejected: body must be application/json, check the webhook plugin template")
		respondError(w, http.StatusUnsupportedMediaType, ErrCodeUnsupportedMedia, "Jellyfin webhooks must be application/json")
		return
	}

	body, done := readBody(w, r)
	if done {
		metrics.RecordWebhook("jellyfin", "bad_payload")
		return
	}
	h.dispatch(w, r, "jellyfin", body)
}

// dispatch hands the body to every source of the given type. Media
// server webhooks are broadcast: each adapter decides from the payload
// (user, server, player) whether the event is for it.
func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request, typ string, body []byte) {
	matched := h.sourcesOfType(typ)
	if len(matched) == 0 {
		metrics.RecordWebhook(typ, "no_source")
		logging.CtxWarn(r.Context()).
			Str("sourceType", typ).
			Msg("Webhook received but no source of this type is configured")
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "No "+typ+" source configured")
		return
	}
	h.deliver(w, r, typ, matched, body)
}

// deliver ingests into each matched source. One acceptance is success;
// if every source refuses, the most actionable error wins the response.
func (h *Handler) deliver(w http.ResponseWriter, r *http.Request, typ string, matched []SourceHandle, body []byte) {
	var delivered int
	var lastErr error
	for _, s := range matched {
		if err := s.Ingest(body); err != nil {
			lastErr = err
			logging.CtxWarn(r.Context()).
				Str("source", s.Name()).
				Err(err).
				Msg("Source refused webhook payload")
			continue
		}
		delivered++
	}

	if delivered == 0 {
		h.ingestError(w, typ, lastErr)
		return
	}

	metrics.RecordWebhook(typ, "")
	logging.CtxDebug(r.Context()).
		Str("sourceType", typ).
		Int("delivered", delivered).
		Int("bytes", len(body)).
		Msg("Webhook delivered")
	respondJSON(w, http.StatusOK, map[string]int{"delivered": delivered})
}

func (h *Handler) ingestError(w http.ResponseWriter, typ string, err error) {
	switch {
	case errors.Is(err, lifecycle.ErrInvalidState):
		metrics.RecordWebhook(typ, "not_running")
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Source is not running")
	case errors.Is(err, source.ErrNoIngest):
		metrics.RecordWebhook(typ, "not_ingester")
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	default:
		metrics.RecordWebhook(typ, "bad_payload")
		msg := "Payload rejected"
		if err != nil {
			msg = "Payload rejected: " + err.Error()
		}
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, msg)
	}
}
