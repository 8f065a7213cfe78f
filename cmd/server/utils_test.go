package main

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriteSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := writeSuccess(rec, 200, map[string]any{"ok": true}); err != nil {
		t.Fatalf("writeSuccess returned error: %v", err)
	}

	var resp APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected Success=true, got false")
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := writeError(rec, 400, "bad request"); err != nil {
		t.Fatalf("writeError returned error: %v", err)
	}

	var resp APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Success {
		t.Fatalf("expected Success=false, got true")
	}
	if resp.Error != "bad request" {
		t.Fatalf("expected error message 'bad request', got %q", resp.Error)
	}
}

func TestReadJSONBody(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"a": 1}`))
	var body map[string]any
	if err := readJSONBody(req, &body); err != nil {
		t.Fatalf("readJSONBody returned error: %v", err)
	}
	if body["a"].(float64) != 1 {
		t.Fatalf("expected a=1, got %v", body["a"])
	}
}
