// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRespondJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	respondJSON(rec, http.StatusOK, map[string]string{"hello": "world"})

	if rec.Code != http.StatusOK {
		t.Errorf("Status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	resp := decodeResponse(t, rec.Body)
	if !resp.Success {
		t.Error("Expected success=true")
	}
	if resp.Error != nil {
		t.Errorf("Error = %+v, want nil", resp.Error)
	}
	data, _ := resp.Data.(map[string]interface{})
	if data["hello"] != "world" {
		t.Errorf("Data = %v", resp.Data)
	}
}

func TestRespondList(t *testing.T) {
	rec := httptest.NewRecorder()
	respondList(rec, http.StatusOK, []string{"a", "b", "c"}, 3)

	resp := decodeResponse(t, rec.Body)
	if !resp.Success {
		t.Error("Expected success=true")
	}
	if resp.Meta == nil || resp.Meta.Count != 3 {
		t.Errorf("Meta = %+v, want count 3", resp.Meta)
	}
}

func TestRespondError(t *testing.T) {
	rec := httptest.NewRecorder()
	respondError(rec, http.StatusNotFound, ErrCodeNotFound, "Unknown source: tidal")

	if rec.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", rec.Code)
	}

	resp := decodeResponse(t, rec.Body)
	if resp.Success {
		t.Error("Expected success=false")
	}
	if resp.Error == nil {
		t.Fatal("Expected an error payload")
	}
	if resp.Error.Code != ErrCodeNotFound {
		t.Errorf("Code = %q, want NOT_FOUND", resp.Error.Code)
	}
	if resp.Error.Message != "Unknown source: tidal" {
		t.Errorf("Message = %q", resp.Error.Message)
	}
	if resp.Data != nil {
		t.Errorf("Data = %v, want omitted on errors", resp.Data)
	}
}

func TestRespondError_OmitsEmptyFields(t *testing.T) {
	rec := httptest.NewRecorder()
	respondError(rec, http.StatusBadRequest, ErrCodeBadRequest, "nope")

	body := rec.Body.String()
	if strings.Contains(body, `"data"`) {
		t.Errorf("Error body should omit data: %s", body)
	}
	if strings.Contains(body, `"meta"`) {
		t.Errorf("Error body should omit meta: %s", body)
	}
	if strings.Contains(body, `"details"`) {
		t.Errorf("Error body should omit empty details: %s", body)
	}
}
