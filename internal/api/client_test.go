package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"groupcal/internal/model"
)

func TestGroupSendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sekret" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		if r.URL.Path != "/groups/g1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"id":"g1","name":"Runners","routines":[{"name":"Leg day","day":"Lunes","start_hour":18,"end_hour":19}]}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sekret", t.TempDir())
	g, err := c.Group(context.Background(), "g1")
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	if g.ID != "g1" || len(g.Routines) != 1 || g.Routines[0].Day != "Lunes" {
		t.Fatalf("unexpected group: %+v", g)
	}
}

func TestGroupEvents_FreshThenNotModified(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"e1","name":"Weigh-in","date":"2024-06-12","start_hour":9,"end_hour":10}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", t.TempDir())
	ctx := context.Background()

	first, err := c.GroupEvents(ctx, "g1")
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if first.FromCache || len(first.Events) != 1 || first.Events[0].ID != "e1" {
		t.Fatalf("unexpected first result: %+v", first)
	}

	second, err := c.GroupEvents(ctx, "g1")
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if !second.FromCache {
		t.Fatalf("second fetch should come from cache after 304")
	}
	if len(second.Events) != 1 || second.Events[0].ID != "e1" {
		t.Fatalf("cached events differ: %+v", second.Events)
	}
	if calls != 2 {
		t.Fatalf("server saw %d calls, want 2", calls)
	}
}

func TestGroupEvents_ServerErrorFallsBackToCache(t *testing.T) {
	failing := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing {
			http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"e1","date":"2024-06-12"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", t.TempDir())
	ctx := context.Background()

	if _, err := c.GroupEvents(ctx, "g1"); err != nil {
		t.Fatalf("priming fetch: %v", err)
	}

	failing = true
	res, err := c.GroupEvents(ctx, "g1")
	if err != nil {
		t.Fatalf("degraded fetch should use cache, got error: %v", err)
	}
	if !res.FromCache || len(res.Events) != 1 {
		t.Fatalf("unexpected degraded result: %+v", res)
	}
}

func TestGroupEvents_ServerErrorWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"boom"}`, http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", t.TempDir())
	_, err := c.GroupEvents(context.Background(), "g1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("want *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", apiErr.Status)
	}
}

func TestCreateEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/groups/g1/events" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"e9","name":"Hike","date":"2024-06-20","start_hour":8,"end_hour":12}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", t.TempDir())
	ev, err := c.CreateEvent(context.Background(), "g1", model.Event{
		Name: "Hike", Date: "2024-06-20", StartHour: 8, EndHour: 12,
	})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if ev.ID != "e9" {
		t.Fatalf("server-assigned id missing: %+v", ev)
	}
}

func TestUpdateEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/groups/g1/events/e1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"data":{"id":"e1","name":"Hike (moved)","date":"2024-06-21","start_hour":8,"end_hour":12}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", t.TempDir())
	ev, err := c.UpdateEvent(context.Background(), "g1", model.Event{
		ID: "e1", Name: "Hike (moved)", Date: "2024-06-21", StartHour: 8, EndHour: 12,
	})
	if err != nil {
		t.Fatalf("UpdateEvent: %v", err)
	}
	if ev.Date != "2024-06-21" {
		t.Fatalf("updated event not returned: %+v", ev)
	}
}

func TestRedactURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://api.example.com/groups/g1/events", "https://api.example.com/...(redacted)"},
		{"https://api.example.com", "https://api.example.com/...(redacted)"},
		{"not a url", "api://...(redacted)"},
	}
	for _, c := range cases {
		if got := redactURL(c.in); got != c.want {
			t.Fatalf("redactURL(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestDeleteEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/groups/g1/events/e1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", t.TempDir())
	if err := c.DeleteEvent(context.Background(), "g1", "e1"); err != nil {
		t.Fatalf("DeleteEvent: %v", err)
	}
}
