package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriteJSONError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSONError(w, 400, "bad pose")

	if w.Code != 400 {
		t.Errorf("expected status 400, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected json content type, got %q", ct)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if body["error"] != "bad pose" {
		t.Errorf("expected error message 'bad pose', got %q", body["error"])
	}
}

func TestWriteJSONOK(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSONOK(w, map[string]bool{"started": true})

	if w.Code != 200 {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"started":true`) {
		t.Errorf("unexpected body %q", w.Body.String())
	}
}

func TestMockHTTPClientReplaysQueuedResponses(t *testing.T) {
	m := NewMockHTTPClient()
	m.AddResponse(200, `{"ok":true}`).AddResponse(500, `{"error":"boom"}`)

	resp, err := m.Post("http://bridge/step_physics", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	if string(b) != `{"ok":true}` {
		t.Errorf("unexpected first body %q", b)
	}

	resp, err = m.Get("http://bridge/pose")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != 500 {
		t.Errorf("expected queued 500, got %d", resp.StatusCode)
	}

	if m.RequestCount() != 2 {
		t.Errorf("expected 2 recorded requests, got %d", m.RequestCount())
	}
}

func TestMockHTTPClientRecordsBodies(t *testing.T) {
	m := NewMockHTTPClient()
	if _, err := m.Post("http://bridge/open_map", "application/json", strings.NewReader(`{"path":"env.usd"}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Bodies[0] != `{"path":"env.usd"}` {
		t.Errorf("body not recorded, got %q", m.Bodies[0])
	}
}

func TestMockHTTPClientErrorResponse(t *testing.T) {
	m := NewMockHTTPClient()
	m.AddErrorResponse(errors.New("connection refused"))

	if _, err := m.Get("http://bridge/pose"); err == nil {
		t.Fatal("expected transport error")
	}
}
