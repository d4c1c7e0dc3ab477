// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/audiographus/internal/client"
	"github.com/tomtom215/audiographus/internal/lifecycle"
	"github.com/tomtom215/audiographus/internal/logging"
	"github.com/tomtom215/audiographus/internal/models"
	"github.com/tomtom215/audiographus/internal/source"
)

// StatusPayload is the full router snapshot served by /api/status.
type StatusPayload struct {
	UptimeSeconds float64        `json:"uptimeSeconds"`
	Sources       []source.Stats `json:"sources"`
	Clients       []client.Stats `json:"clients"`
}

// SourcePlays pairs a source with its recent-plays ring.
type SourcePlays struct {
	Name  string        `json:"name"`
	Plays []models.Play `json:"plays"`
}

// ClientScrobbles pairs a client with its scrobbled-plays ring.
type ClientScrobbles struct {
	Name      string                 `json:"name"`
	Scrobbles []models.ScrobbledPlay `json:"scrobbles"`
}

// ClientDeadLetters pairs a client with its dead-letter list.
type ClientDeadLetters struct {
	Name    string                      `json:"name"`
	Letters []models.DeadLetterScrobble `json:"letters"`
}

// Status godoc
// @Summary Snapshot of every source and client
// @Description Returns lifecycle state, auth state and counters for all
// @Description configured sources and clients, in configuration order.
// @Tags dashboard
// @Produce json
// @Success 200 {object} APIResponse{data=StatusPayload}
// @Router /api/status [get]
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	payload := StatusPayload{
		UptimeSeconds: time.Since(h.startTime).Seconds(),
		Sources:       make([]source.Stats, 0, len(h.sources)),
		Clients:       make([]client.Stats, 0, len(h.clients)),
	}
	for _, s := range h.sources {
		payload.Sources = append(payload.Sources, s.Stats())
	}
	for _, c := range h.clients {
		payload.Clients = append(payload.Clients, c.Stats())
	}
	respondJSON(w, http.StatusOK, payload)
}

// Recent godoc
// @Summary Recently discovered plays per source
// @Description Returns each source's bounded ring of recently
// @Description discovered plays, newest first. Filter to one source
// @Description with ?source=name.
// @Tags dashboard
// @Produce json
// @Param source query string false "Source name"
// @Success 200 {object} APIResponse{data=[]SourcePlays}
// @Failure 404 {object} APIResponse
// @Router /api/recent [get]
func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	handles := h.sources
	if name := r.URL.Query().Get("source"); name != "" {
		s, ok := h.findSource(name)
		if !ok {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "Unknown source: "+logging.SanitizeLogValue(name))
			return
		}
		handles = []SourceHandle{s}
	}

	out := make([]SourcePlays, 0, len(handles))
	total := 0
	for _, s := range handles {
		plays := s.Recent()
		total += len(plays)
		out = append(out, SourcePlays{Name: s.Name(), Plays: plays})
	}
	respondList(w, http.StatusOK, out, total)
}

// Scrobbled godoc
// @Summary Recently scrobbled plays per client
// @Description Returns each client's bounded ring of successfully
// @Description delivered scrobbles. Filter to one client with
// @Description ?client=name.
// @Tags dashboard
// @Produce json
// @Param client query string false "Client name"
// @Success 200 {object} APIResponse{data=[]ClientScrobbles}
// @Failure 404 {object} APIResponse
// @Router /api/scrobbled [get]
func (h *Handler) Scrobbled(w http.ResponseWriter, r *http.Request) {
	handles := h.clients
	if name := r.URL.Query().Get("client"); name != "" {
		c, ok := h.findClient(name)
		if !ok {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "Unknown client: "+logging.SanitizeLogValue(name))
			return
		}
		handles = []ClientHandle{c}
	}

	out := make([]ClientScrobbles, 0, len(handles))
	total := 0
	for _, c := range handles {
		scrobbles := c.Scrobbled()
		total += len(scrobbles)
		out = append(out, ClientScrobbles{Name: c.Name(), Scrobbles: scrobbles})
	}
	respondList(w, http.StatusOK, out, total)
}

// DeadLetters godoc
// @Summary Dead-lettered scrobbles per client
// @Description Returns every scrobble that exhausted its retries,
// @Description grouped by client. Filter with ?client=name.
// @Tags dashboard
// @Produce json
// @Param client query string false "Client name"
// @Success 200 {object} APIResponse{data=[]ClientDeadLetters}
// @Failure 404 {object} APIResponse
// @Router /api/deadletter [get]
func (h *Handler) DeadLetters(w http.ResponseWriter, r *http.Request) {
	handles := h.clients
	if name := r.URL.Query().Get("client"); name != "" {
		c, ok := h.findClient(name)
		if !ok {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "Unknown client: "+logging.SanitizeLogValue(name))
			return
		}
		handles = []ClientHandle{c}
	}

	out := make([]ClientDeadLetters, 0, len(handles))
	total := 0
	for _, c := range handles {
		letters := c.DeadLetters()
		total += len(letters)
		out = append(out, ClientDeadLetters{Name: c.Name(), Letters: letters})
	}
	respondList(w, http.StatusOK, out, total)
}

// RetryDeadLetter godoc
// @Summary Replay one dead-lettered scrobble
// @Description Attempts immediate delivery of the identified dead
// @Description letter. On success the entry leaves the list; on
// @Description failure it stays with an updated error and retry count.
// @Tags dashboard
// @Produce json
// @Param client path string true "Client name"
// @Param id path string true "Dead letter ID"
// @Security ApiToken
// @Success 200 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Failure 502 {object} APIResponse
// @Router /api/deadletter/{client}/{id}/retry [post]
func (h *Handler) RetryDeadLetter(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "client")
	id := chi.URLParam(r, "id")

	c, ok := h.findClient(name)
	if !ok {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "Unknown client: "+logging.SanitizeLogValue(name))
		return
	}

	if err := c.RetryDeadLetter(r.Context(), id); err != nil {
		if errors.Is(err, client.ErrNoDeadLetter) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "No such dead letter: "+logging.SanitizeLogValue(id))
			return
		}
		logging.CtxWarn(r.Context()).
			Str("client", name).
			Str("id", logging.SanitizeLogValue(id)).
			Err(err).
			Msg("Dead letter retry failed")
		respondError(w, http.StatusBadGateway, ErrCodeBadGateway, "Retry failed: "+err.Error())
		return
	}

	logging.CtxInfo(r.Context()).
		Str("client", name).
		Str("id", logging.SanitizeLogValue(id)).
		Msg("Dead letter retried")
	respondJSON(w, http.StatusOK, map[string]string{"retried": id})
}

// RemoveDeadLetter godoc
// @Summary Discard one dead-lettered scrobble
// @Description Removes the identified dead letter without delivering
// @Description it. The play is gone for good.
// @Tags dashboard
// @Param client path string true "Client name"
// @Param id path string true "Dead letter ID"
// @Security ApiToken
// @Success 204 "Removed"
// @Failure 401 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /api/deadletter/{client}/{id} [delete]
func (h *Handler) RemoveDeadLetter(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "client")
	id := chi.URLParam(r, "id")

	c, ok := h.findClient(name)
	if !ok {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "Unknown client: "+logging.SanitizeLogValue(name))
		return
	}

	if err := c.RemoveDeadLetter(id); err != nil {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "No such dead letter: "+logging.SanitizeLogValue(id))
		return
	}

	logging.CtxInfo(r.Context()).
		Str("client", name).
		Str("id", logging.SanitizeLogValue(id)).
		Msg("Dead letter removed")
	w.WriteHeader(http.StatusNoContent)
}

// PollSource godoc
// @Summary Trigger an immediate poll
// @Description Runs a single fetch against the named source's platform
// @Description right now, outside its regular schedule.
// @Tags dashboard
// @Produce json
// @Param name path string true "Source name"
// @Security ApiToken
// @Success 200 {object} APIResponse{data=source.Stats}
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Failure 409 {object} APIResponse
// @Failure 502 {object} APIResponse
// @Failure 503 {object} APIResponse
// @Router /api/source/{name}/poll [post]
func (h *Handler) PollSource(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	s, ok := h.findSource(name)
	if !ok {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "Unknown source: "+logging.SanitizeLogValue(name))
		return
	}

	if err := s.Poll(r.Context()); err != nil {
		h.pollFailure(w, r, name, err)
		return
	}

	logging.CtxInfo(r.Context()).Str("source", name).Msg("Manual poll completed")
	respondJSON(w, http.StatusOK, s.Stats())
}

func (h *Handler) pollFailure(w http.ResponseWriter, r *http.Request, name string, err error) {
	logging.CtxWarn(r.Context()).Str("source", name).Err(err).Msg("Manual poll failed")

	switch {
	case errors.Is(err, source.ErrAlreadyPolling):
		respondError(w, http.StatusConflict, ErrCodeConflict, "A poll is already in progress")
	case errors.Is(err, source.ErrAuthRequired):
		respondError(w, http.StatusConflict, ErrCodeConflict, "Source is not authenticated")
	case errors.Is(err, source.ErrNoPoll):
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, lifecycle.ErrInvalidState):
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Source is not running")
	default:
		respondError(w, http.StatusBadGateway, ErrCodeBadGateway, "Poll failed: "+err.Error())
	}
}

// Healthz godoc
// @Summary Liveness probe
// @Description Answers 200 while the HTTP service is up. Suitable for
// @Description container health checks.
// @Tags dashboard
// @Produce json
// @Success 200 {object} APIResponse
// @Router /healthz [get]
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"uptimeSeconds": time.Since(h.startTime).Seconds(),
		"sources":       len(h.sources),
		"clients":       len(h.clients),
	})
}

// Events godoc
// @Summary Live event stream
// @Description Upgrades to a websocket carrying bus events: discovered
// @Description plays, scrobbles, dead letters, now-playing notices and
// @Description state changes.
// @Tags dashboard
// @Success 101 "Switching Protocols"
// @Failure 503 {object} APIResponse
// @Router /api/events [get]
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Event stream is not running")
		return
	}
	h.events.ServeHTTP(w, r)
}
