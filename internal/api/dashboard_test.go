// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/audiographus/internal/client"
	"github.com/tomtom215/audiographus/internal/config"
	"github.com/tomtom215/audiographus/internal/lifecycle"
	"github.com/tomtom215/audiographus/internal/models"
	"github.com/tomtom215/audiographus/internal/source"
)

// dashboardRouter mounts the dashboard handlers without middleware so
// chi.URLParam resolves path parameters.
func dashboardRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/api/status", h.Status)
	r.Get("/api/recent", h.Recent)
	r.Get("/api/scrobbled", h.Scrobbled)
	r.Get("/api/deadletter", h.DeadLetters)
	r.Post("/api/deadletter/{client}/{id}/retry", h.RetryDeadLetter)
	r.Delete("/api/deadletter/{client}/{id}", h.RemoveDeadLetter)
	r.Post("/api/source/{name}/poll", h.PollSource)
	r.Get("/healthz", h.Healthz)
	r.Get("/api/events", h.Events)
	return r
}

func testLetter(id, track string) models.DeadLetterScrobble {
	return models.DeadLetterScrobble{
		QueuedScrobble: models.QueuedScrobble{
			ID:     id,
			Source: "spotify",
			Play:   testPlay(track, "Ladytron"),
		},
		Retries:   2,
		Error:     "last.fm error 11: service offline",
		CreatedAt: time.Date(2026, 2, 14, 20, 0, 0, 0, time.UTC),
	}
}

func TestStatus_AggregatesSourcesAndClients(t *testing.T) {
	sp := &fakeSource{name: "spotify", typ: "spotify", stats: source.Stats{
		Status:  lifecycle.Status{Name: "spotify", State: lifecycle.StateIdle, Authed: true},
		Type:    "spotify",
		CanPoll: true,
	}}
	jf := &fakeSource{name: "jellyfin", typ: "jellyfin", stats: source.Stats{
		Status: lifecycle.Status{Name: "jellyfin", State: lifecycle.StateIdle},
		Type:   "jellyfin",
	}}
	lf := &fakeClient{name: "lastfm", typ: "lastfm", stats: client.Stats{
		Status: lifecycle.Status{Name: "lastfm", State: lifecycle.StateIdle, Authed: true},
		Type:   "lastfm",
	}}
	h := newTestHandler([]SourceHandle{sp, jf}, []ClientHandle{lf})

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	dashboardRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", rec.Code)
	}
	resp := decodeResponse(t, rec.Body)
	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Data = %T, want object", resp.Data)
	}

	sources, ok := data["sources"].([]interface{})
	if !ok || len(sources) != 2 {
		t.Fatalf("sources = %v, want 2 entries", data["sources"])
	}
	first, _ := sources[0].(map[string]interface{})
	if first["name"] != "spotify" {
		t.Errorf("First source name = %v, want spotify (config order)", first["name"])
	}
	if first["canPoll"] != true {
		t.Errorf("canPoll = %v, want true", first["canPoll"])
	}

	clients, ok := data["clients"].([]interface{})
	if !ok || len(clients) != 1 {
		t.Fatalf("clients = %v, want 1 entry", data["clients"])
	}

	if _, ok := data["uptimeSeconds"].(float64); !ok {
		t.Errorf("uptimeSeconds missing from payload: %v", data)
	}
}

func TestRecent_AllSources(t *testing.T) {
	sp := &fakeSource{name: "spotify", typ: "spotify", recent: []models.Play{
		testPlay("Seventeen", "Ladytron"),
		testPlay("Destroy Everything You Touch", "Ladytron"),
	}}
	jf := &fakeSource{name: "jellyfin", typ: "jellyfin", recent: []models.Play{
		testPlay("Sæglópur", "Sigur Rós"),
	}}
	h := newTestHandler([]SourceHandle{sp, jf}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/recent", nil)
	rec := httptest.NewRecorder()
	dashboardRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", rec.Code)
	}
	resp := decodeResponse(t, rec.Body)
	if resp.Meta == nil || resp.Meta.Count != 3 {
		t.Errorf("Meta = %+v, want count 3", resp.Meta)
	}
	entries, ok := resp.Data.([]interface{})
	if !ok || len(entries) != 2 {
		t.Fatalf("Data = %v, want 2 source entries", resp.Data)
	}
}

func TestRecent_FilterBySource(t *testing.T) {
	sp := &fakeSource{name: "spotify", typ: "spotify", recent: []models.Play{testPlay("Seventeen", "Ladytron")}}
	jf := &fakeSource{name: "jellyfin", typ: "jellyfin"}
	h := newTestHandler([]SourceHandle{sp, jf}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/recent?source=spotify", nil)
	rec := httptest.NewRecorder()
	dashboardRouter(h).ServeHTTP(rec, req)

	resp := decodeResponse(t, rec.Body)
	entries, ok := resp.Data.([]interface{})
	if !ok || len(entries) != 1 {
		t.Fatalf("Data = %v, want exactly the filtered source", resp.Data)
	}
	entry, _ := entries[0].(map[string]interface{})
	if entry["name"] != "spotify" {
		t.Errorf("Entry name = %v, want spotify", entry["name"])
	}
}

func TestRecent_UnknownSource404(t *testing.T) {
	h := newTestHandler([]SourceHandle{&fakeSource{name: "spotify", typ: "spotify"}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/recent?source=tidal", nil)
	rec := httptest.NewRecorder()
	dashboardRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("Status = %d, want 404", rec.Code)
	}
}

func TestRecent_EmptyRingsStayArrays(t *testing.T) {
	h := newTestHandler([]SourceHandle{&fakeSource{name: "spotify", typ: "spotify"}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/recent", nil)
	rec := httptest.NewRecorder()
	dashboardRouter(h).ServeHTTP(rec, req)

	body := rec.Body.String()
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", rec.Code)
	}
	resp := decodeResponse(t, rec.Body)
	if _, ok := resp.Data.([]interface{}); !ok {
		t.Errorf("Data must be an array even with no plays: %s", body)
	}
}

func TestScrobbled_PerClient(t *testing.T) {
	play := testPlay("Seventeen", "Ladytron")
	lf := &fakeClient{name: "lastfm", typ: "lastfm", scrobbled: []models.ScrobbledPlay{
		{Play: play, Scrobble: play, At: time.Date(2026, 2, 14, 21, 4, 0, 0, time.UTC)},
	}}
	lb := &fakeClient{name: "listenbrainz", typ: "listenbrainz"}
	h := newTestHandler(nil, []ClientHandle{lf, lb})

	req := httptest.NewRequest(http.MethodGet, "/api/scrobbled", nil)
	rec := httptest.NewRecorder()
	dashboardRouter(h).ServeHTTP(rec, req)

	resp := decodeResponse(t, rec.Body)
	if resp.Meta == nil || resp.Meta.Count != 1 {
		t.Errorf("Meta = %+v, want count 1", resp.Meta)
	}
	entries, _ := resp.Data.([]interface{})
	if len(entries) != 2 {
		t.Fatalf("Data has %d entries, want one per client", len(entries))
	}
}

func TestScrobbled_UnknownClient404(t *testing.T) {
	h := newTestHandler(nil, []ClientHandle{&fakeClient{name: "lastfm", typ: "lastfm"}})

	req := httptest.NewRequest(http.MethodGet, "/api/scrobbled?client=libre", nil)
	rec := httptest.NewRecorder()
	dashboardRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("Status = %d, want 404", rec.Code)
	}
}

func TestDeadLetters_Listing(t *testing.T) {
	lf := &fakeClient{name: "lastfm", typ: "lastfm", letters: []models.DeadLetterScrobble{
		testLetter("dl-1", "Seventeen"),
		testLetter("dl-2", "Discotraxx"),
	}}
	h := newTestHandler(nil, []ClientHandle{lf})

	req := httptest.NewRequest(http.MethodGet, "/api/deadletter", nil)
	rec := httptest.NewRecorder()
	dashboardRouter(h).ServeHTTP(rec, req)

	resp := decodeResponse(t, rec.Body)
	if resp.Meta == nil || resp.Meta.Count != 2 {
		t.Errorf("Meta = %+v, want count 2", resp.Meta)
	}
	entries, _ := resp.Data.([]interface{})
	entry, _ := entries[0].(map[string]interface{})
	letters, _ := entry["letters"].([]interface{})
	if len(letters) != 2 {
		t.Fatalf("letters = %v, want 2", entry["letters"])
	}
	letter, _ := letters[0].(map[string]interface{})
	if letter["id"] != "dl-1" {
		t.Errorf("Letter id = %v, want dl-1", letter["id"])
	}
	if letter["retries"] != float64(2) {
		t.Errorf("Letter retries = %v, want 2", letter["retries"])
	}
}

func TestRetryDeadLetter_Success(t *testing.T) {
	lf := &fakeClient{name: "lastfm", typ: "lastfm"}
	h := newTestHandler(nil, []ClientHandle{lf})

	req := httptest.NewRequest(http.MethodPost, "/api/deadletter/lastfm/dl-1/retry", nil)
	rec := httptest.NewRecorder()
	dashboardRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if len(lf.retried) != 1 || lf.retried[0] != "dl-1" {
		t.Errorf("Retried = %v, want [dl-1]", lf.retried)
	}
}

func TestRetryDeadLetter_UnknownClient(t *testing.T) {
	h := newTestHandler(nil, []ClientHandle{&fakeClient{name: "lastfm", typ: "lastfm"}})

	req := httptest.NewRequest(http.MethodPost, "/api/deadletter/libre/dl-1/retry", nil)
	rec := httptest.NewRecorder()
	dashboardRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("Status = %d, want 404", rec.Code)
	}
}

func TestRetryDeadLetter_UnknownID(t *testing.T) {
	lf := &fakeClient{name: "lastfm", typ: "lastfm", retryErr: client.ErrNoDeadLetter}
	h := newTestHandler(nil, []ClientHandle{lf})

	req := httptest.NewRequest(http.MethodPost, "/api/deadletter/lastfm/missing/retry", nil)
	rec := httptest.NewRecorder()
	dashboardRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("Status = %d, want 404", rec.Code)
	}
	resp := decodeResponse(t, rec.Body)
	if resp.Error == nil || resp.Error.Code != ErrCodeNotFound {
		t.Errorf("Error = %+v, want code NOT_FOUND", resp.Error)
	}
}

func TestRetryDeadLetter_DeliveryFailure(t *testing.T) {
	lf := &fakeClient{name: "lastfm", typ: "lastfm", retryErr: fmt.Errorf("last.fm error 11: service offline")}
	h := newTestHandler(nil, []ClientHandle{lf})

	req := httptest.NewRequest(http.MethodPost, "/api/deadletter/lastfm/dl-1/retry", nil)
	rec := httptest.NewRecorder()
	dashboardRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("Status = %d, want 502", rec.Code)
	}
	resp := decodeResponse(t, rec.Body)
	if resp.Error == nil || resp.Error.Code != ErrCodeBadGateway {
		t.Errorf("Error = %+v, want code BAD_GATEWAY", resp.Error)
	}
}

func TestRemoveDeadLetter_Success(t *testing.T) {
	lf := &fakeClient{name: "lastfm", typ: "lastfm"}
	h := newTestHandler(nil, []ClientHandle{lf})

	req := httptest.NewRequest(http.MethodDelete, "/api/deadletter/lastfm/dl-1", nil)
	rec := httptest.NewRecorder()
	dashboardRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("Status = %d, want 204", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("204 must carry no body, got %q", rec.Body.String())
	}
	if len(lf.removed) != 1 || lf.removed[0] != "dl-1" {
		t.Errorf("Removed = %v, want [dl-1]", lf.removed)
	}
}

func TestRemoveDeadLetter_UnknownID(t *testing.T) {
	lf := &fakeClient{name: "lastfm", typ: "lastfm", removeErr: client.ErrNoDeadLetter}
	h := newTestHandler(nil, []ClientHandle{lf})

	req := httptest.NewRequest(http.MethodDelete, "/api/deadletter/lastfm/missing", nil)
	rec := httptest.NewRecorder()
	dashboardRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("Status = %d, want 404", rec.Code)
	}
}

func TestPollSource_Success(t *testing.T) {
	sp := &fakeSource{name: "spotify", typ: "spotify", stats: source.Stats{
		Status: lifecycle.Status{Name: "spotify", State: lifecycle.StateIdle, Authed: true},
		Type:   "spotify",
	}}
	h := newTestHandler([]SourceHandle{sp}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/source/spotify/poll", nil)
	rec := httptest.NewRecorder()
	dashboardRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if sp.polled != 1 {
		t.Errorf("Polled = %d, want 1", sp.polled)
	}
	resp := decodeResponse(t, rec.Body)
	data, _ := resp.Data.(map[string]interface{})
	if data["name"] != "spotify" {
		t.Errorf("Poll response data = %v, want the source stats", resp.Data)
	}
}

func TestPollSource_Failures(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{"already polling", source.ErrAlreadyPolling, http.StatusConflict, ErrCodeConflict},
		{"auth required", fmt.Errorf("%w: source spotify", source.ErrAuthRequired), http.StatusConflict, ErrCodeConflict},
		{"push only source", fmt.Errorf("%w: source ws is type webscrobbler", source.ErrNoPoll), http.StatusBadRequest, ErrCodeBadRequest},
		{"not running", fmt.Errorf("%w: source spotify is NOT_INITIALIZED", lifecycle.ErrInvalidState), http.StatusServiceUnavailable, ErrCodeServiceUnavailable},
		{"upstream failure", fmt.Errorf("poll spotify: status 502"), http.StatusBadGateway, ErrCodeBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sp := &fakeSource{name: "spotify", typ: "spotify", pollErr: tt.err}
			h := newTestHandler([]SourceHandle{sp}, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/source/spotify/poll", nil)
			rec := httptest.NewRecorder()
			dashboardRouter(h).ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("Status = %d, want %d", rec.Code, tt.expectedStatus)
			}
			resp := decodeResponse(t, rec.Body)
			if resp.Error == nil || resp.Error.Code != tt.expectedCode {
				t.Errorf("Error = %+v, want code %s", resp.Error, tt.expectedCode)
			}
		})
	}
}

func TestPollSource_Unknown404(t *testing.T) {
	h := newTestHandler([]SourceHandle{&fakeSource{name: "spotify", typ: "spotify"}}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/source/tidal/poll", nil)
	rec := httptest.NewRecorder()
	dashboardRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("Status = %d, want 404", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	h := newTestHandler(
		[]SourceHandle{&fakeSource{name: "spotify", typ: "spotify"}},
		[]ClientHandle{&fakeClient{name: "lastfm", typ: "lastfm"}},
	)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	dashboardRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", rec.Code)
	}
	resp := decodeResponse(t, rec.Body)
	data, _ := resp.Data.(map[string]interface{})
	if data["status"] != "ok" {
		t.Errorf("status = %v, want ok", data["status"])
	}
	if data["sources"] != float64(1) || data["clients"] != float64(1) {
		t.Errorf("counts = %v/%v, want 1/1", data["sources"], data["clients"])
	}
}

func TestEvents_NoHub503(t *testing.T) {
	h := newTestHandler(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	rec := httptest.NewRecorder()
	dashboardRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("Status = %d, want 503", rec.Code)
	}
}

func TestEvents_DelegatesToHub(t *testing.T) {
	var upgradeAttempted bool
	hub := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgradeAttempted = true
		w.WriteHeader(http.StatusSwitchingProtocols)
	})
	h := NewHandler(&config.Config{}, nil, nil, hub)

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	rec := httptest.NewRecorder()
	dashboardRouter(h).ServeHTTP(rec, req)

	if !upgradeAttempted {
		t.Error("Expected the events handler to be invoked")
	}
	if rec.Code != http.StatusSwitchingProtocols {
		t.Errorf("Status = %d, want 101", rec.Code)
	}
}
