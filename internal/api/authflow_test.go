// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func callAuthCallback(h *Handler, path string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Get("/{service}/callback", h.AuthCallback)

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAuthCallback_SourceAccepts(t *testing.T) {
	sp := &fakeSource{name: "spotify", typ: "spotify"}
	h := newTestHandler([]SourceHandle{sp}, nil)

	rec := callAuthCallback(h, "/spotify/callback?code=abc123&state=xyz")

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if len(sp.authed) != 1 {
		t.Fatalf("Source saw %d callbacks, want 1", len(sp.authed))
	}
	if got := sp.authed[0].Get("code"); got != "abc123" {
		t.Errorf("code = %q, want abc123", got)
	}
	if !strings.Contains(rec.Body.String(), "spotify") {
		t.Errorf("Success page should name the source: %s", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q, want text/plain", ct)
	}
}

func TestAuthCallback_ClientAccepts(t *testing.T) {
	lf := &fakeClient{name: "lastfm", typ: "lastfm"}
	h := newTestHandler(nil, []ClientHandle{lf})

	rec := callAuthCallback(h, "/lastfm/callback?token=tok789")

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if len(lf.authed) != 1 {
		t.Fatalf("Client saw %d callbacks, want 1", len(lf.authed))
	}
	if got := lf.authed[0].Get("token"); got != "tok789" {
		t.Errorf("token = %q, want tok789", got)
	}
}

func TestAuthCallback_ServiceIsCaseInsensitive(t *testing.T) {
	sp := &fakeSource{name: "spotify", typ: "spotify"}
	h := newTestHandler([]SourceHandle{sp}, nil)

	rec := callAuthCallback(h, "/Spotify/callback?code=abc")

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", rec.Code)
	}
	if len(sp.authed) != 1 {
		t.Errorf("Source saw %d callbacks, want 1", len(sp.authed))
	}
}

func TestAuthCallback_FirstAcceptanceWins(t *testing.T) {
	rejecting := &fakeSource{name: "spotify-a", typ: "spotify", authErr: fmt.Errorf("state mismatch")}
	accepting := &fakeSource{name: "spotify-b", typ: "spotify"}
	h := newTestHandler([]SourceHandle{rejecting, accepting}, nil)

	rec := callAuthCallback(h, "/spotify/callback?code=abc&state=for-b")

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if len(accepting.authed) != 1 {
		t.Errorf("Second candidate saw %d callbacks, want 1", len(accepting.authed))
	}
	if !strings.Contains(rec.Body.String(), "spotify-b") {
		t.Errorf("Success page should name the accepting source: %s", rec.Body.String())
	}
}

func TestAuthCallback_NoCandidate404(t *testing.T) {
	h := newTestHandler([]SourceHandle{&fakeSource{name: "jellyfin", typ: "jellyfin"}}, nil)

	rec := callAuthCallback(h, "/spotify/callback?code=abc")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("Status = %d, want 404", rec.Code)
	}
	resp := decodeResponse(t, rec.Body)
	if resp.Error == nil || resp.Error.Code != ErrCodeNotFound {
		t.Errorf("Error = %+v, want code NOT_FOUND", resp.Error)
	}
}

func TestAuthCallback_AllReject400(t *testing.T) {
	sp := &fakeSource{name: "spotify", typ: "spotify", authErr: fmt.Errorf("token exchange failed: invalid_grant")}
	h := newTestHandler([]SourceHandle{sp}, nil)

	rec := callAuthCallback(h, "/spotify/callback?code=expired")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Status = %d, want 400", rec.Code)
	}
	resp := decodeResponse(t, rec.Body)
	if resp.Error == nil || !strings.Contains(resp.Error.Message, "invalid_grant") {
		t.Errorf("Error = %+v, want the upstream failure surfaced", resp.Error)
	}
}

func TestAuthCallback_TriesSourcesAndClients(t *testing.T) {
	src := &fakeSource{name: "lastfm-src", typ: "lastfm", authErr: fmt.Errorf("not mine")}
	cl := &fakeClient{name: "lastfm", typ: "lastfm"}
	h := newTestHandler([]SourceHandle{src}, []ClientHandle{cl})

	rec := callAuthCallback(h, "/lastfm/callback?token=tok")

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if len(cl.authed) != 1 {
		t.Errorf("Client saw %d callbacks, want 1 after source rejected", len(cl.authed))
	}
}
