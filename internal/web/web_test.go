package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pampatime/internal/analysis"
	"pampatime/internal/config"
	"pampatime/internal/conflict"
	"pampatime/internal/store"
)

type testEnv struct {
	srv *httptest.Server
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()

	db, err := store.OpenDB(filepath.Join(t.TempDir(), "web.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	rec := store.NewHistory(db)
	st := store.New(db, store.Options{Location: time.UTC, Recorder: rec})

	an := analysis.New()
	stop, err := an.Follow(context.Background(), st)
	if err != nil {
		t.Fatalf("follow: %v", err)
	}
	t.Cleanup(stop)

	srv := httptest.NewServer(NewServer(st, an, rec, opts).Handler())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("X-User", "tester")
	resp, err := e.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func slotBody(title, day, start, end, room, teacher, class string) map[string]string {
	return map[string]string{
		"title": title, "day": day, "startTime": start, "endTime": end,
		"room": room, "teacher": teacher, "class": class, "type": "theory",
	}
}

func TestAPI_ConflictLifecycle(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{})

	resp := env.do(t, http.MethodPost, "/api/events", slotBody("Calculus", "Monday", "08:00", "10:00", "101", "Silva", "T1"))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create E1 status = %d", resp.StatusCode)
	}
	e1 := decode[mutationResponse](t, resp)
	if len(e1.Conflicts) != 0 || e1.Overlap {
		t.Fatalf("first event cannot conflict: %+v", e1)
	}

	resp = env.do(t, http.MethodPost, "/api/events", slotBody("Physics", "segunda", "09:00", "11:00", "101", "Costa", "T2"))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create E2 status = %d", resp.StatusCode)
	}
	e2 := decode[mutationResponse](t, resp)
	if len(e2.Conflicts) != 1 || e2.Conflicts[0].Type != conflict.TypeRoom || e2.Conflicts[0].ConflictWith != e1.Event.ID {
		t.Fatalf("E2 conflicts = %+v", e2.Conflicts)
	}
	if !e2.Event.Conflict || !e2.Overlap {
		t.Fatalf("E2 should be flagged: %+v", e2)
	}

	resp = env.do(t, http.MethodGet, "/api/conflicts", nil)
	all := decode[struct {
		Index struct {
			ConflictIDs []string `json:"conflictIds"`
		} `json:"index"`
		Summary conflict.Summary `json:"summary"`
	}](t, resp)
	if len(all.Index.ConflictIDs) != 2 || all.Summary.Total != 2 || len(all.Summary.Room) != 1 {
		t.Fatalf("conflicts = %+v", all)
	}

	resp = env.do(t, http.MethodGet, "/api/events/"+e1.Event.ID+"/conflicts", nil)
	detail := decode[eventConflictsResponse](t, resp)
	if detail.Description != "Room 101 occupied" || len(detail.Suggestions) != 2 || len(detail.With) != 1 {
		t.Fatalf("detail = %+v", detail)
	}

	resp = env.do(t, http.MethodGet, "/api/conflicts?dimension=teacher&value=Silva", nil)
	restricted := decode[struct {
		Index struct {
			ConflictIDs []string `json:"conflictIds"`
		} `json:"index"`
	}](t, resp)
	if len(restricted.Index.ConflictIDs) != 1 || restricted.Index.ConflictIDs[0] != e1.Event.ID {
		t.Fatalf("restricted ids = %v", restricted.Index.ConflictIDs)
	}

	resp = env.do(t, http.MethodPatch, "/api/events/"+e2.Event.ID, map[string]string{"room": "102"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch status = %d", resp.StatusCode)
	}
	patched := decode[mutationResponse](t, resp)
	if patched.Event.ID != e2.Event.ID || len(patched.Conflicts) != 0 || !patched.Overlap {
		t.Fatalf("patched = %+v", patched)
	}

	resp = env.do(t, http.MethodGet, "/api/history?limit=1", nil)
	entries := decode[[]map[string]any](t, resp)
	if len(entries) != 1 || entries[0]["user"] != "tester" || entries[0]["action"] != "update" {
		t.Fatalf("history = %+v", entries)
	}

	resp = env.do(t, http.MethodDelete, "/api/events/"+e2.Event.ID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp = env.do(t, http.MethodGet, "/api/events", nil)
	list := decode[eventsResponse](t, resp)
	if list.Total != 1 || len(list.Events) != 1 || list.Events[0].Display.Time != "08:00 - 10:00" {
		t.Fatalf("list = %+v", list)
	}
}

func TestAPI_Errors(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"invalid slot", http.MethodPost, "/api/events", slotBody("", "Monday", "06:00", "07:00", "101", "Silva", "T1"), http.StatusUnprocessableEntity},
		{"unknown field", http.MethodPost, "/api/events", map[string]string{"nope": "x"}, http.StatusBadRequest},
		{"patch missing", http.MethodPatch, "/api/events/missing", map[string]string{"room": "1"}, http.StatusNotFound},
		{"delete missing", http.MethodDelete, "/api/events/missing", nil, http.StatusNotFound},
		{"conflicts missing", http.MethodGet, "/api/events/missing/conflicts", nil, http.StatusNotFound},
		{"bad dimension", http.MethodGet, "/api/events?dimension=color&value=x", nil, http.StatusBadRequest},
		{"unknown form", http.MethodGet, "/api/forms/unicorns", nil, http.StatusNotFound},
		{"bad start", http.MethodGet, "/api/end-times?start=late", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		resp := env.do(t, tt.method, tt.path, tt.body)
		if resp.StatusCode != tt.status {
			t.Fatalf("%s: status = %d, want %d", tt.name, resp.StatusCode, tt.status)
		}
	}

	resp := env.do(t, http.MethodPost, "/api/events", slotBody("", "Monday", "06:00", "07:00", "101", "Silva", "T1"))
	body := decode[errorResponse](t, resp)
	if len(body.Details) != 2 {
		t.Fatalf("validation details = %v", body.Details)
	}
}

func TestAPI_FormsFiltersAndCalendar(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{CalendarName: "Campus"})
	env.do(t, http.MethodPost, "/api/events", slotBody("Calculus", "Tuesday", "08:00", "10:00", "101", "Silva", "T1"))

	resp := env.do(t, http.MethodGet, "/api/filters", nil)
	opts := decode[map[string][]string](t, resp)
	if len(opts["teacher"]) != 1 || opts["teacher"][0] != "Silva" {
		t.Fatalf("filters = %v", opts)
	}

	resp = env.do(t, http.MethodGet, "/api/forms/event", nil)
	form := decode[struct {
		Fields []struct {
			ID      string `json:"id"`
			Options []struct {
				Value string `json:"value"`
			} `json:"options"`
		} `json:"fields"`
	}](t, resp)
	found := false
	for _, f := range form.Fields {
		if f.ID == "room" && len(f.Options) == 1 && f.Options[0].Value == "101" {
			found = true
		}
	}
	if !found {
		t.Fatalf("room options not resolved: %+v", form)
	}

	resp = env.do(t, http.MethodPost, "/api/forms/professores/validate", map[string]string{"name": "Ana", "email": "bad"})
	result := decode[struct {
		Valid  bool     `json:"valid"`
		Errors []string `json:"errors"`
	}](t, resp)
	if result.Valid || len(result.Errors) != 1 {
		t.Fatalf("form validation = %+v", result)
	}

	session := slotBody("Calculus", "Funday", "08:00", "10:00", "Lab 9", "Costa", "T1")
	resp = env.do(t, http.MethodPost, "/api/forms/event/validate", session)
	result = decode[struct {
		Valid  bool     `json:"valid"`
		Errors []string `json:"errors"`
	}](t, resp)
	if result.Valid || len(result.Errors) != 1 || !strings.HasPrefix(result.Errors[0], "day") {
		t.Fatalf("event form validation = %+v", result)
	}

	resp = env.do(t, http.MethodGet, "/api/end-times?start=20:00", nil)
	ends := decode[map[string][]string](t, resp)
	if len(ends["endTimes"]) != 3 || ends["endTimes"][0] != "20:30" {
		t.Fatalf("end times = %v", ends)
	}

	resp = env.do(t, http.MethodGet, "/calendar.ics", nil)
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	cal := buf.String()
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/calendar") {
		t.Fatalf("content type = %q", resp.Header.Get("Content-Type"))
	}
	for _, want := range []string{"SUMMARY:Calculus", "RRULE:FREQ=WEEKLY", "X-WR-CALNAME:Campus"} {
		if !strings.Contains(cal, want) {
			t.Fatalf("calendar missing %q:\n%s", want, cal)
		}
	}
}

func TestAPI_BasicAuth(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{BasicAuth: &config.BasicAuthConfig{Username: "admin", Password: "pw"}})

	resp := env.do(t, http.MethodGet, "/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health must stay public, got %d", resp.StatusCode)
	}
	resp = env.do(t, http.MethodGet, "/api/events", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, env.srv.URL+"/api/events", nil)
	req.SetBasicAuth("admin", "pw")
	authed, err := env.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer authed.Body.Close()
	if authed.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with credentials, got %d", authed.StatusCode)
	}
}
