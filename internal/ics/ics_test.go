package ics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"pampatime/internal/model"
)

const feedBody = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:calc@school
DTSTAMP:20250301T000000Z
DTSTART:20250303T080000Z
DTEND:20250303T100000Z
RRULE:FREQ=WEEKLY;BYDAY=MO,WE
SUMMARY:Calculus
LOCATION:101
ORGANIZER;CN=Silva:mailto:silva@school.edu
CATEGORIES:Theory
END:VEVENT
BEGIN:VEVENT
UID:seminar@school
DTSTAMP:20250301T000000Z
DTSTART:20250307T140000Z
DTEND:20250307T150000Z
SUMMARY:Seminar
X-PAMPATIME-TEACHER:Costa
X-PAMPATIME-CLASS:T1
END:VEVENT
BEGIN:VEVENT
DTSTAMP:20250301T000000Z
DTSTART:20250307T140000Z
SUMMARY:No uid
END:VEVENT
END:VCALENDAR
`

func TestParse_ReadsSessions(t *testing.T) {
	t.Parallel()

	sessions, err := Parse("feed", []byte(feedBody))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}

	calc := sessions[0]
	if calc.Title != "Calculus" || calc.Room != "101" || calc.Teacher != "Silva" || calc.Type != "theory" {
		t.Fatalf("calc = %+v", calc)
	}
	if calc.RRule == "" || calc.AllDay {
		t.Fatalf("calc rrule/allday = %q/%v", calc.RRule, calc.AllDay)
	}
	if sessions[1].Teacher != "Costa" || sessions[1].Class != "T1" {
		t.Fatalf("seminar = %+v", sessions[1])
	}

	if _, err := Parse("feed", nil); err == nil {
		t.Fatalf("expected error for empty body")
	}
}

func TestWeekly_ExpandsRuleOntoReferenceWeek(t *testing.T) {
	t.Parallel()

	sessions, err := Parse("feed", []byte(feedBody))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	events := Weekly("feed", sessions, WeeklyOptions{Location: time.UTC})
	if len(events) != 3 {
		t.Fatalf("expected 3 events (Mon, Wed, Fri), got %d", len(events))
	}

	wantDays := []time.Weekday{time.Monday, time.Wednesday, time.Friday}
	for i, ev := range events {
		if ev.Start.Weekday() != wantDays[i] {
			t.Fatalf("event %d weekday = %s, want %s", i, ev.Start.Weekday(), wantDays[i])
		}
		ref := model.ReferenceDate(wantDays[i])
		if ev.Start.Year() != ref.Year() || ev.Start.YearDay() != ref.YearDay() {
			t.Fatalf("event %d not on reference week: %s", i, ev.Start)
		}
		if !ev.HasBounds() {
			t.Fatalf("event %d lost its end", i)
		}
	}
	if events[0].Start.Hour() != 8 || events[0].End.Sub(events[0].Start) != 2*time.Hour {
		t.Fatalf("monday calc = %s-%s", events[0].Start, events[0].End)
	}

	again := Weekly("feed", sessions, WeeklyOptions{Location: time.UTC})
	for i := range events {
		if events[i].ID != again[i].ID {
			t.Fatalf("ids must be stable across imports")
		}
	}
	if events[0].ID == events[1].ID {
		t.Fatalf("each weekday gets its own id")
	}
	other := Weekly("other", sessions, WeeklyOptions{Location: time.UTC})
	if other[0].ID == events[0].ID {
		t.Fatalf("ids are scoped to the feed")
	}
}

func TestExport_RoundTrip(t *testing.T) {
	t.Parallel()

	start, end, err := model.SlotBounds("Tuesday", "08:00", "10:00", time.UTC)
	if err != nil {
		t.Fatalf("bounds: %v", err)
	}
	events := []model.ScheduleEvent{
		{ID: "e1", Title: "Calculus", Start: start, End: end, Room: "101", Teacher: "Silva", Class: "T1", Type: "theory", Semester: "2025.1"},
		{ID: "e2", Title: "No bounds"},
	}

	out := Export(events, ExportOptions{Name: "Timetable", Now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)})
	if !strings.Contains(out, "RRULE:FREQ=WEEKLY") {
		t.Fatalf("export missing weekly rule:\n%s", out)
	}
	if strings.Contains(out, "No bounds") {
		t.Fatalf("unbounded events must be skipped")
	}

	sessions, err := Parse("self", []byte(out))
	if err != nil {
		t.Fatalf("parse export: %v", err)
	}
	back := Weekly("self", sessions, WeeklyOptions{Location: time.UTC})
	if len(back) != 1 {
		t.Fatalf("expected 1 event back, got %d", len(back))
	}
	got := back[0]
	if got.Title != "Calculus" || got.Room != "101" || got.Teacher != "Silva" || got.Class != "T1" ||
		got.Type != "theory" || got.Semester != "2025.1" {
		t.Fatalf("round trip = %+v", got)
	}
	if !got.Start.Equal(start) || !got.End.Equal(end) {
		t.Fatalf("round trip bounds = %s-%s, want %s-%s", got.Start, got.End, start, end)
	}
}

func TestFetcher_ConditionalRequestAndFallback(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	var failing atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if failing.Load() {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(feedBody))
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), t.TempDir(), 0)
	feed := Feed{Name: "school", URL: srv.URL + "/cal.ics?token=secret"}
	ctx := context.Background()

	first, err := f.Fetch(ctx, feed)
	if err != nil || first.Cached || len(first.Body) == 0 {
		t.Fatalf("first fetch = %+v, %v", first, err)
	}

	second, err := f.Fetch(ctx, feed)
	if err != nil || !second.Cached || string(second.Body) != feedBody {
		t.Fatalf("second fetch should be served from cache: %+v, %v", second.Cached, err)
	}

	failing.Store(true)
	third, err := f.Fetch(ctx, feed)
	if err != nil || !third.Cached {
		t.Fatalf("server error should fall back to cache: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 requests, got %d", calls.Load())
	}

	if _, err := f.Fetch(ctx, Feed{Name: "none", URL: srv.URL + "/other.ics"}); err == nil {
		t.Fatalf("expected error without cache")
	}
}

func TestFetcher_BodyLimit(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feedBody))
	}))
	t.Cleanup(srv.Close)

	feed := Feed{Name: "school", URL: srv.URL + "/cal.ics"}
	ctx := context.Background()

	tests := []struct {
		name    string
		max     int64
		wantErr bool
	}{
		{"over the cap", 64, true},
		{"exactly the cap", int64(len(feedBody)), false},
		{"default cap", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, err := NewFetcher(srv.Client(), t.TempDir(), tt.max).Fetch(ctx, feed)
			if tt.wantErr {
				if !errors.Is(err, ErrBodyTooLarge) {
					t.Fatalf("Fetch error = %v, want ErrBodyTooLarge", err)
				}
				return
			}
			if err != nil || string(p.Body) != feedBody {
				t.Fatalf("Fetch = %d bytes, %v", len(p.Body), err)
			}
		})
	}
}

type importRecorder struct {
	source string
	events []model.ScheduleEvent
}

func (r *importRecorder) ReplaceSource(_ context.Context, source string, events []model.ScheduleEvent) error {
	r.source = source
	r.events = events
	return nil
}

func TestSyncer_SyncAll(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.ics" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(feedBody))
	}))
	defer srv.Close()

	dest := &importRecorder{}
	s := NewSyncer(NewFetcher(srv.Client(), t.TempDir(), 0), dest, []Feed{
		{Name: "school", URL: srv.URL + "/cal.ics"},
		{Name: "broken", URL: srv.URL + "/missing.ics"},
	}, WeeklyOptions{Location: time.UTC})

	err := s.SyncAll(context.Background())
	if err == nil || !strings.Contains(err.Error(), "broken") {
		t.Fatalf("expected joined error naming the broken feed, got %v", err)
	}
	if dest.source != "school" || len(dest.events) != 3 {
		t.Fatalf("import = %q with %d events", dest.source, len(dest.events))
	}
}

func TestRedact(t *testing.T) {
	t.Parallel()

	if got := redact("https://cal.example.com/private/abc.ics?token=x"); got != "https://cal.example.com/(redacted)" {
		t.Fatalf("redact = %q", got)
	}
	if got := redact("not a url"); got != "ics://(redacted)" {
		t.Fatalf("redact = %q", got)
	}
}
