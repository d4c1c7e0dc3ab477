// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

package api

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/audiographus/internal/logging"
)

// AuthCallback godoc
// @Summary Complete an OAuth or token handshake
// @Description Third-party services redirect here after the user grants
// @Description access. The service path segment selects the adapter
// @Description type; every source and client of that type is offered
// @Description the callback until one accepts it.
// @Tags auth
// @Produce plain
// @Param service path string true "Adapter type, e.g. spotify or lastfm"
// @Success 200 {string} string "Authentication complete"
// @Failure 400 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /{service}/callback [get]
func (h *Handler) AuthCallback(w http.ResponseWriter, r *http.Request) {
	service := strings.ToLower(chi.URLParam(r, "service"))
	query := r.URL.Query()

	logging.CtxInfo(r.Context()).
		Str("service", logging.SanitizeLogValue(service)).
		Strs("params", queryKeys(query)).
		Msg("Auth callback received")

	type candidate struct {
		name string
		kind string
		fn   func() error
	}
	var candidates []candidate
	for _, s := range h.sources {
		if s.Type() == service {
			s := s
			candidates = append(candidates, candidate{s.Name(), "source", func() error {
				return s.HandleAuthCallback(r.Context(), query)
			}})
		}
	}
	for _, c := range h.clients {
		if c.Type() == service {
			c := c
			candidates = append(candidates, candidate{c.Name(), "client", func() error {
				return c.HandleAuthCallback(r.Context(), query)
			}})
		}
	}

	if len(candidates) == 0 {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "No source or client of type "+service+" is configured")
		return
	}

	var lastErr error
	for _, c := range candidates {
		if err := c.fn(); err != nil {
			lastErr = err
			logging.CtxWarn(r.Context()).
				Str(c.kind, c.name).
				Err(err).
				Msg("Auth callback rejected")
			continue
		}

		logging.CtxInfo(r.Context()).
			Str(c.kind, c.name).
			Msg("Authentication completed")

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "Authentication complete for %s %s. You can close this window.\n", c.kind, c.name)
		return
	}

	respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "Authentication failed: "+lastErr.Error())
}

// queryKeys lists the parameter names of a callback so the exchange can
// be logged without the secrets it carries.
func queryKeys(q url.Values) []string {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, logging.SanitizeLogValue(k))
	}
	sort.Strings(keys)
	return keys
}
