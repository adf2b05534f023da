package app_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mkoriyama/Akari/internal/akari/app"
)

// countStore satisfies the health server's view of the store.
type countStore struct {
	notes         int
	notifications int
}

func (c *countStore) CountNotes(context.Context) (int, error)         { return c.notes, nil }
func (c *countStore) CountNotifications(context.Context) (int, error) { return c.notifications, nil }

func getJSON(t *testing.T, hs *app.HealthServer, path string) (int, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	hs.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	if w.Body.Len() > 0 {
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode %s response: %v", path, err)
		}
	}
	return w.Code, body
}

func TestHealthEndpoint(t *testing.T) {
	hs := app.NewHealthServer("127.0.0.1:0", &countStore{notes: 3})

	code, body := getJSON(t, hs, "/health")
	if code != http.StatusOK {
		t.Fatalf("GET /health = %d, want 200", code)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if _, ok := body["version"]; !ok {
		t.Error("payload is missing version")
	}
}

func TestStatusEndpointReportsCounts(t *testing.T) {
	hs := app.NewHealthServer("127.0.0.1:0", &countStore{notes: 5, notifications: 12})

	code, body := getJSON(t, hs, "/status")
	if code != http.StatusOK {
		t.Fatalf("GET /status = %d, want 200", code)
	}
	if got := int(body["note_count"].(float64)); got != 5 {
		t.Errorf("note_count = %d, want 5", got)
	}
	if got := int(body["notification_count"].(float64)); got != 12 {
		t.Errorf("notification_count = %d, want 12", got)
	}
	if body["uptime_seconds"] == nil {
		t.Error("payload is missing uptime_seconds")
	}
}

func TestStatusEndpointWithoutStore(t *testing.T) {
	hs := app.NewHealthServer("127.0.0.1:0", nil)

	code, body := getJSON(t, hs, "/status")
	if code != http.StatusOK {
		t.Fatalf("GET /status = %d, want 200", code)
	}
	if got := int(body["note_count"].(float64)); got != 0 {
		t.Errorf("note_count = %d, want 0", got)
	}
}

func TestHealthRouting(t *testing.T) {
	hs := app.NewHealthServer("127.0.0.1:0", &countStore{})

	w := httptest.NewRecorder()
	hs.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("GET /nope = %d, want 404", w.Code)
	}

	w = httptest.NewRecorder()
	hs.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/health", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /health = %d, want 405", w.Code)
	}
}
