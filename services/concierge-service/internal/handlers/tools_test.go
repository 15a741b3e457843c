package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/clock"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/coordinator"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/notify"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/session"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/storage"
)

type nopNotifier struct{}

func (nopNotifier) Dispatch(context.Context, notify.Event) <-chan error {
	ch := make(chan error, 1)
	close(ch)
	return ch
}

func (nopNotifier) BroadcastRepeated(context.Context, notify.Event, int, time.Duration) <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fc := clock.NewFake(time.Date(2025, 6, 9, 12, 0, 0, 0, time.UTC))
	coord := coordinator.New(coordinator.Deps{
		Store:    storage.NewMemoryStore(),
		Sessions: session.NewRegistry(logger, fc, time.Hour),
		Notifier: nopNotifier{},
		Clock:    fc,
		Logger:   logger,
	})
	mux := http.NewServeMux()
	NewToolHandler(coord, logger).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func openSession(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, body := post(t, srv.URL+"/api/v1/sessions", `{"room_name":"aria-room-abc"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if body["room_name"] != "aria-room-abc" || body["state"] != "anonymous" {
		t.Fatalf("unexpected session %v", body)
	}
	return body["session_id"].(string)
}

func TestToolFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	id := openSession(t, srv)
	base := srv.URL + "/api/v1/sessions/" + id + "/tools/"

	_, body := post(t, base+"identify_user", `{"phone_number":"555-123-4567"}`)
	if body["outcome"] != "not_found_user" || body["tool"] != "identify_user" {
		t.Fatalf("unexpected identify reply %v", body)
	}

	_, body = post(t, base+"book_appointment", `{"name":"Ada","contact_number":"5551234567","date":"2025-06-10","time_str":"2:00 PM"}`)
	if body["outcome"] != "ok" {
		t.Fatalf("unexpected book reply %v", body)
	}
	data := body["data"].(map[string]any)
	if data["appointment_slot"] != "2025-06-10T14:00:00Z" {
		t.Fatalf("unexpected slot %v", data)
	}

	_, body = post(t, base+"book_appointment", `{"name":"Ada","contact_number":"5551234567","date":"2025-06-10","time_str":"2:15 PM"}`)
	if body["outcome"] != "conflict" {
		t.Fatalf("expected conflict, got %v", body)
	}

	_, body = post(t, base+"retrieve_appointments", `{}`)
	if body["outcome"] != "ok" || !strings.Contains(body["message"].(string), "Option 1: Tuesday, Jun 10 at 02:00 PM (Upcoming)") {
		t.Fatalf("unexpected listing %v", body)
	}

	_, body = post(t, base+"modify_appointment", `{"appointment_number":1,"new_date":"2025-06-10","new_time":"4 PM"}`)
	if body["outcome"] != "ok" || body["message"] != "Updated to 2025-06-10 at 04:00 PM." {
		t.Fatalf("unexpected modify reply %v", body)
	}

	_, body = post(t, base+"cancel_appointment", `{"appointment_number":"#1"}`)
	if body["outcome"] != "ok" {
		t.Fatalf("unexpected cancel reply %v", body)
	}

	_, body = post(t, base+"summarize_and_exit", `{"summary":"Booked and cancelled."}`)
	if body["message"] != "Summary generated. Goodbye." {
		t.Fatalf("unexpected close reply %v", body)
	}

	resp, _ := post(t, base+"fetch_slots", `{"date":"2025-06-10"}`)
	if resp.StatusCode != http.StatusGone {
		t.Fatalf("expected 410 after close, got %d", resp.StatusCode)
	}
}

func TestInvokeErrors(t *testing.T) {
	srv := newTestServer(t)
	id := openSession(t, srv)

	resp, _ := post(t, srv.URL+"/api/v1/sessions/nope/tools/fetch_slots", `{"date":"2025-06-10"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", resp.StatusCode)
	}
	resp, _ = post(t, srv.URL+"/api/v1/sessions/"+id+"/tools/teleport", `{}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown tool, got %d", resp.StatusCode)
	}
	resp, _ = post(t, srv.URL+"/api/v1/sessions/"+id+"/tools/fetch_slots", `{"date":`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed json, got %d", resp.StatusCode)
	}
	resp, body := post(t, srv.URL+"/api/v1/sessions/"+id+"/tools/book_appointment", `{"name":"Ada"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing args, got %d", resp.StatusCode)
	}
	if msg, _ := body["error"].(string); !strings.Contains(msg, "contact_number") || !strings.Contains(msg, "time_str") {
		t.Fatalf("expected json field names in error, got %v", body)
	}
}

func TestGetSession(t *testing.T) {
	srv := newTestServer(t)
	id := openSession(t, srv)

	resp, err := http.Get(srv.URL + "/api/v1/sessions/" + id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp2, err := http.Get(srv.URL + "/api/v1/sessions/missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp2.StatusCode)
	}
}

func TestCreateSessionWithoutBody(t *testing.T) {
	srv := newTestServer(t)
	resp, body := post(t, srv.URL+"/api/v1/sessions", "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if room, _ := body["room_name"].(string); !strings.HasPrefix(room, "aria-room-") {
		t.Fatalf("expected generated room, got %v", body)
	}
}

func TestOrdinalArg(t *testing.T) {
	for in, want := range map[string]string{`2`: "2", `"#3"`: "#3", `" two "`: "two", `null`: ""} {
		var o ordinalArg
		if err := json.Unmarshal([]byte(in), &o); err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if string(o) != want {
			t.Fatalf("%s: expected %q, got %q", in, want, o)
		}
	}
	var o ordinalArg
	if err := json.Unmarshal([]byte(`{}`), &o); err == nil {
		t.Fatal("object must be rejected")
	}
}
