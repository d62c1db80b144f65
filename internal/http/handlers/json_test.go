package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestJSONError(t *testing.T) {
	rec := httptest.NewRecorder()
	jsonError(rec, "oops", http.StatusTeapot)

	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected content type application/json, got %q", ct)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode json response: %v", err)
	}
	if body["error"] != "oops" {
		t.Fatalf("unexpected error message %q", body["error"])
	}
}

func TestDecodeJSONRejectsEmptyAndOversized(t *testing.T) {
	var dst map[string]string
	rec := httptest.NewRecorder()
	if err := decodeJSON(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("")), &dst); err == nil {
		t.Fatalf("expected error for empty body")
	}
	big := `{"text":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	if err := decodeJSON(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big)), &dst); err == nil {
		t.Fatalf("expected error for oversized body")
	}
}
